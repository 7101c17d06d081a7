// Package api exposes the assistant's HTTP surface: chat, image
// generation, audio transcription, conversation management, the model
// catalog, and account endpoints.
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mod-ship/Mod-ai-assistant/internal/auth"
	"github.com/mod-ship/Mod-ai-assistant/internal/catalog"
	"github.com/mod-ship/Mod-ai-assistant/internal/conversation"
	"github.com/mod-ship/Mod-ai-assistant/internal/models"
	"github.com/mod-ship/Mod-ai-assistant/internal/providers"
)

const maxAudioUploadBytes = 25 << 20

// ModelRouter is the slice of the provider router the handlers need.
type ModelRouter interface {
	Chat(ctx context.Context, modelID string, messages []providers.ChatMessage, opts providers.ChatOptions) (*providers.ChatResult, error)
	GenerateImage(ctx context.Context, modelID, prompt string, opts providers.ImageOptions) *providers.ImageResult
	Transcribe(ctx context.Context, req providers.AudioRequest) (*providers.TranscriptionResult, error)
}

// Handler wires HTTP routes to the conversation store, provider router,
// and auth service.
type Handler struct {
	store       *conversation.Store
	router      ModelRouter
	authService *auth.Service
	tokenBudget int
	logger      *zap.SugaredLogger
}

func NewHandler(store *conversation.Store, router ModelRouter, authService *auth.Service, tokenBudget int, logger *zap.SugaredLogger) *Handler {
	if tokenBudget <= 0 {
		tokenBudget = 4000
	}
	return &Handler{
		store:       store,
		router:      router,
		authService: authService,
		tokenBudget: tokenBudget,
		logger:      logger,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	apiGroup := router.Group("/api")

	apiGroup.POST("/chat", h.handleChat)
	apiGroup.POST("/image-generation", h.handleImageGeneration)
	apiGroup.POST("/audio", h.handleAudio)

	apiGroup.GET("/models", h.handleListModels)

	convGroup := apiGroup.Group("/conversations")
	convGroup.GET("", h.handleListConversations)
	convGroup.POST("", h.handleCreateConversation)
	convGroup.DELETE("", h.handleClearConversations)
	convGroup.GET("/export", h.handleExportConversations)
	convGroup.POST("/import", h.handleImportConversations)
	convGroup.PUT("/current", h.handleSetCurrentConversation)
	convGroup.GET("/:id", h.handleGetConversation)
	convGroup.DELETE("/:id", h.handleDeleteConversation)
	convGroup.PUT("/:id/model", h.handleSetConversationModel)

	authGroup := apiGroup.Group("/auth")
	authGroup.POST("/register", h.handleRegister)
	authGroup.POST("/login", h.handleLogin)
}

type chatMessagePayload struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatOptionsPayload struct {
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"maxTokens"`
}

type chatRequest struct {
	Message        string               `json:"message"`
	Messages       []chatMessagePayload `json:"messages"`
	ConversationID string               `json:"conversationId"`
	Model          string               `json:"model"`
	Options        chatOptionsPayload   `json:"options"`
}

func (h *Handler) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request payload", err)
		return
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		writeError(c, http.StatusBadRequest, "message is required", nil)
		return
	}

	modelID := strings.TrimSpace(req.Model)
	history := historyFromPayload(req.Messages)

	// A conversation id switches history to the stored conversation,
	// trimmed to the token budget.
	conversationID := strings.TrimSpace(req.ConversationID)
	if conversationID != "" {
		if conv, ok := h.store.Get(conversationID); ok {
			window := conversation.SelectWindow(conv.Messages, h.tokenBudget)
			history = make([]providers.ChatMessage, 0, len(window))
			for _, msg := range window {
				history = append(history, providers.ChatMessage{Role: string(msg.Role), Content: msg.Content})
			}
			if modelID == "" {
				modelID = conv.Model
			}
		} else {
			conversationID = ""
		}
	}

	if modelID == "" {
		modelID = catalog.Default().ID
	}

	outgoing := append(history, providers.ChatMessage{Role: "user", Content: message})

	result, err := h.router.Chat(c.Request.Context(), modelID, outgoing, providers.ChatOptions{
		Temperature: req.Options.Temperature,
		MaxTokens:   req.Options.MaxTokens,
	})
	if err != nil {
		h.logger.Warnw("chat request failed", "model", modelID, "error", err)
		writeError(c, statusFromError(err), "chat request failed", err)
		return
	}

	metadata := models.MessageMetadata{
		Cost:     result.Cost,
		Provider: string(result.Provider),
	}
	if result.Usage != nil {
		metadata.Tokens = result.Usage.TotalTokens
	}

	if conversationID != "" {
		ctx := c.Request.Context()
		_ = h.store.Append(ctx, conversationID, conversation.AppendInput{
			Content: message,
			Role:    models.RoleUser,
		})
		_ = h.store.Append(ctx, conversationID, conversation.AppendInput{
			Content:  result.Content,
			Role:     models.RoleAssistant,
			Model:    result.Model,
			Metadata: &metadata,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  result.Content,
		"model":    result.Model,
		"provider": result.Provider,
		"metadata": gin.H{
			"tokens":   metadata.Tokens,
			"cost":     metadata.Cost,
			"provider": metadata.Provider,
		},
	})
}

type imageOptionsPayload struct {
	N       int    `json:"n"`
	Size    string `json:"size"`
	Quality string `json:"quality"`
	Style   string `json:"style"`
}

type imageRequest struct {
	Prompt  string              `json:"prompt"`
	Model   string              `json:"model"`
	Options imageOptionsPayload `json:"options"`
}

func (h *Handler) handleImageGeneration(c *gin.Context) {
	var req imageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request payload", err)
		return
	}

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		writeError(c, http.StatusBadRequest, "prompt is required", nil)
		return
	}

	result := h.router.GenerateImage(c.Request.Context(), strings.TrimSpace(req.Model), prompt, providers.ImageOptions{
		N:       req.Options.N,
		Size:    req.Options.Size,
		Quality: req.Options.Quality,
		Style:   req.Options.Style,
	})

	c.JSON(http.StatusOK, gin.H{
		"images": result.Images,
		"metadata": gin.H{
			"provider": result.Provider,
			"model":    result.Model,
			"fallback": result.Fallback,
		},
	})
}

func (h *Handler) handleAudio(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		writeError(c, http.StatusBadRequest, "audio file is required", err)
		return
	}
	if fileHeader.Size > maxAudioUploadBytes {
		writeError(c, http.StatusBadRequest, "audio file too large", nil)
		return
	}

	action := providers.AudioAction(strings.ToLower(strings.TrimSpace(c.PostForm("action"))))
	switch action {
	case "":
		action = providers.ActionTranscribe
	case providers.ActionTranscribe, providers.ActionTranslate:
	default:
		writeError(c, http.StatusBadRequest, "action must be transcribe or translate", nil)
		return
	}

	temperature := 0.0
	if raw := strings.TrimSpace(c.PostForm("temperature")); raw != "" {
		if parsed, parseErr := strconv.ParseFloat(raw, 64); parseErr == nil {
			temperature = parsed
		}
	}

	file, err := fileHeader.Open()
	if err != nil {
		writeError(c, http.StatusInternalServerError, "failed to read audio file", err)
		return
	}
	defer file.Close()

	result, err := h.router.Transcribe(c.Request.Context(), providers.AudioRequest{
		Action:      action,
		File:        file,
		Filename:    fileHeader.Filename,
		Model:       strings.TrimSpace(c.PostForm("model")),
		Language:    strings.TrimSpace(c.PostForm("language")),
		Temperature: temperature,
	})
	if err != nil {
		h.logger.Warnw("audio request failed", "action", action, "error", err)
		writeError(c, statusFromError(err), "audio processing failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"text":     result.Text,
		"language": result.Language,
		"duration": result.Duration,
	})
}

func (h *Handler) handleListModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"models": catalog.List()})
}

func (h *Handler) handleListConversations(c *gin.Context) {
	currentID, _ := h.store.Current()
	c.JSON(http.StatusOK, gin.H{
		"conversations": h.store.List(),
		"currentId":     currentID,
	})
}

type createConversationRequest struct {
	Model string `json:"model"`
}

func (h *Handler) handleCreateConversation(c *gin.Context) {
	var req createConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(c, http.StatusBadRequest, "invalid request payload", err)
		return
	}

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = catalog.Default().ID
	}

	conv, err := h.store.Create(c.Request.Context(), model)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "failed to create conversation", err)
		return
	}

	c.JSON(http.StatusCreated, conv)
}

func (h *Handler) handleGetConversation(c *gin.Context) {
	conv, ok := h.store.Get(c.Param("id"))
	if !ok {
		writeError(c, http.StatusNotFound, "conversation not found", nil)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (h *Handler) handleDeleteConversation(c *gin.Context) {
	h.store.Delete(c.Request.Context(), c.Param("id"))
	c.Status(http.StatusNoContent)
}

type setModelRequest struct {
	Model string `json:"model"`
}

func (h *Handler) handleSetConversationModel(c *gin.Context) {
	var req setModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request payload", err)
		return
	}
	if strings.TrimSpace(req.Model) == "" {
		writeError(c, http.StatusBadRequest, "model is required", nil)
		return
	}

	if !h.store.SetModel(c.Request.Context(), c.Param("id"), req.Model) {
		writeError(c, http.StatusNotFound, "conversation not found", nil)
		return
	}
	c.Status(http.StatusNoContent)
}

type setCurrentRequest struct {
	ConversationID string `json:"conversationId"`
}

func (h *Handler) handleSetCurrentConversation(c *gin.Context) {
	var req setCurrentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request payload", err)
		return
	}

	if !h.store.SetCurrent(c.Request.Context(), req.ConversationID) {
		writeError(c, http.StatusNotFound, "conversation not found", nil)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) handleClearConversations(c *gin.Context) {
	h.store.Clear(c.Request.Context())
	c.Status(http.StatusNoContent)
}

func (h *Handler) handleExportConversations(c *gin.Context) {
	snapshot, err := h.store.Export()
	if err != nil {
		writeError(c, http.StatusInternalServerError, "failed to export conversations", err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="conversations.json"`)
	c.Data(http.StatusOK, "application/json", snapshot)
}

func (h *Handler) handleImportConversations(c *gin.Context) {
	snapshot, err := io.ReadAll(c.Request.Body)
	if err != nil {
		writeError(c, http.StatusBadRequest, "failed to read snapshot", err)
		return
	}

	if !h.store.Import(c.Request.Context(), snapshot) {
		writeError(c, http.StatusBadRequest, "malformed snapshot", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"imported": len(h.store.List())})
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) handleRegister(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request payload", err)
		return
	}

	result, err := h.authService.Register(c.Request.Context(), auth.RegisterInput{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUsernameRequired), errors.Is(err, auth.ErrPasswordTooWeak):
			writeError(c, http.StatusBadRequest, err.Error(), err)
		case errors.Is(err, auth.ErrUserExists):
			writeError(c, http.StatusConflict, err.Error(), err)
		default:
			writeError(c, http.StatusInternalServerError, "failed to register user", err)
		}
		return
	}

	c.JSON(http.StatusCreated, newAuthResponse(result))
}

func (h *Handler) handleLogin(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request payload", err)
		return
	}

	result, err := h.authService.Login(c.Request.Context(), auth.LoginInput{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(c, http.StatusUnauthorized, err.Error(), err)
		} else {
			writeError(c, http.StatusInternalServerError, "failed to login", err)
		}
		return
	}

	c.JSON(http.StatusOK, newAuthResponse(result))
}

func newAuthResponse(result *auth.AuthResult) gin.H {
	return gin.H{
		"token":     result.Token,
		"expiresAt": result.ExpiresAt,
		"user":      result.User,
	}
}

func historyFromPayload(payload []chatMessagePayload) []providers.ChatMessage {
	history := make([]providers.ChatMessage, 0, len(payload))
	for _, msg := range payload {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		role := strings.ToLower(strings.TrimSpace(msg.Role))
		if role != "user" && role != "assistant" {
			role = "user"
		}
		history = append(history, providers.ChatMessage{Role: role, Content: content})
	}
	return history
}

// statusFromError propagates the upstream HTTP status when the failure came
// from a provider API; everything else is a 500.
func statusFromError(err error) int {
	var apiErr *providers.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, status int, message string, err error) {
	body := gin.H{"error": message}
	if err != nil {
		body["details"] = err.Error()
	}
	c.JSON(status, body)
}
