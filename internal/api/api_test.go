package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mod-ship/Mod-ai-assistant/internal/auth"
	"github.com/mod-ship/Mod-ai-assistant/internal/conversation"
	"github.com/mod-ship/Mod-ai-assistant/internal/models"
	"github.com/mod-ship/Mod-ai-assistant/internal/providers"
	"github.com/mod-ship/Mod-ai-assistant/internal/storage"
	"github.com/mod-ship/Mod-ai-assistant/internal/utils"
)

// stubRouter scripts provider results without touching the network.
type stubRouter struct {
	chatResult  *providers.ChatResult
	chatErr     error
	chatCalls   [][]providers.ChatMessage
	imageResult *providers.ImageResult
	audioResult *providers.TranscriptionResult
	audioErr    error
}

func (s *stubRouter) Chat(_ context.Context, modelID string, messages []providers.ChatMessage, _ providers.ChatOptions) (*providers.ChatResult, error) {
	s.chatCalls = append(s.chatCalls, messages)
	if s.chatErr != nil {
		return nil, s.chatErr
	}
	if s.chatResult != nil {
		return s.chatResult, nil
	}
	return &providers.ChatResult{
		Content:  "stub reply",
		Model:    modelID,
		Provider: providers.Route(modelID),
		Usage:    &providers.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		Cost:     0.000123,
	}, nil
}

func (s *stubRouter) GenerateImage(_ context.Context, modelID, prompt string, opts providers.ImageOptions) *providers.ImageResult {
	if s.imageResult != nil {
		return s.imageResult
	}
	return &providers.ImageResult{
		Images:   []providers.GeneratedImage{{URL: "https://cdn.test/img.png"}},
		Provider: providers.ProviderOpenRouter,
		Model:    modelID,
	}
}

func (s *stubRouter) Transcribe(_ context.Context, _ providers.AudioRequest) (*providers.TranscriptionResult, error) {
	if s.audioErr != nil {
		return nil, s.audioErr
	}
	if s.audioResult != nil {
		return s.audioResult, nil
	}
	return &providers.TranscriptionResult{Text: "stub transcript", Language: "en", Duration: 1.5}, nil
}

func setupTestRouter(t *testing.T) (*gin.Engine, *conversation.Store, *stubRouter) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	kv, err := storage.NewFile(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create file backend: %v", err)
	}

	logger := zap.NewNop().Sugar()
	store, err := conversation.NewStore(context.Background(), kv, utils.LimitsConfig{}, logger)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	authService, err := auth.NewService(context.Background(), kv, "test-secret", time.Hour, logger)
	if err != nil {
		t.Fatalf("failed to create auth service: %v", err)
	}

	stub := &stubRouter{}
	handler := NewHandler(store, stub, authService, 4000, logger)

	router := gin.New()
	handler.RegisterRoutes(router)

	return router, store, stub
}

func newJSONRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	req, err := http.NewRequest(method, path, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, data []byte, out any) {
	t.Helper()
	if err := json.Unmarshal(data, out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func TestChatWithConversationAppendsBothTurns(t *testing.T) {
	router, store, stub := setupTestRouter(t)

	conv, err := store.Create(context.Background(), "llama-3.3-70b-versatile")
	if err != nil {
		t.Fatalf("create returned error: %v", err)
	}

	rec := httptest.NewRecorder()
	req := newJSONRequest(t, http.MethodPost, "/api/chat", gin.H{
		"message":        "Hello there",
		"conversationId": conv.ID,
	})
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]any
	decodeBody(t, rec.Body.Bytes(), &resp)
	if resp["message"] != "stub reply" {
		t.Fatalf("expected stub reply, got %v", resp["message"])
	}
	if resp["provider"] != "groq" {
		t.Fatalf("expected groq provider for the conversation model, got %v", resp["provider"])
	}

	got, _ := store.Get(conv.ID)
	if len(got.Messages) != 2 {
		t.Fatalf("expected user+assistant appended, got %d messages", len(got.Messages))
	}
	if got.Messages[0].Content != "Hello there" || got.Messages[1].Content != "stub reply" {
		t.Fatalf("unexpected stored turns: %+v", got.Messages)
	}
	if got.Messages[1].Metadata == nil || got.Messages[1].Metadata.Tokens != 15 {
		t.Fatalf("expected usage metadata on the assistant turn")
	}
	if got.Title != "Hello there" {
		t.Fatalf("expected title from first user message, got %q", got.Title)
	}

	if len(stub.chatCalls) != 1 {
		t.Fatalf("expected a single provider call")
	}
	outgoing := stub.chatCalls[0]
	if outgoing[len(outgoing)-1].Content != "Hello there" {
		t.Fatalf("expected the new message last in the outgoing prompt")
	}
}

func TestChatWindowsStoredHistory(t *testing.T) {
	router, store, stub := setupTestRouter(t)
	ctx := context.Background()

	conv, _ := store.Create(ctx, "llama-3.3-70b-versatile")
	for i := 0; i < 6; i++ {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		store.Append(ctx, conv.ID, conversation.AppendInput{
			Content: fmt.Sprintf("turn %d: %s", i, strings.Repeat("x", 4000)),
			Role:    role,
		})
	}

	rec := httptest.NewRecorder()
	req := newJSONRequest(t, http.MethodPost, "/api/chat", gin.H{
		"message":        "latest question",
		"conversationId": conv.ID,
	})
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	// 4000-char turns are ~1000 tokens each; a 4000-token budget holds at
	// most 3 of them plus the fresh message.
	outgoing := stub.chatCalls[0]
	if len(outgoing) > 4 {
		t.Fatalf("expected history trimmed to the token budget, got %d messages", len(outgoing))
	}
	if outgoing[len(outgoing)-1].Content != "latest question" {
		t.Fatalf("expected the new message last")
	}
}

func TestChatUpstreamErrorPropagatesStatus(t *testing.T) {
	router, _, stub := setupTestRouter(t)
	stub.chatErr = &providers.APIError{
		Provider:   providers.ProviderOpenRouter,
		StatusCode: http.StatusTooManyRequests,
		Message:    "rate limited",
	}

	rec := httptest.NewRecorder()
	req := newJSONRequest(t, http.MethodPost, "/api/chat", gin.H{"message": "hi", "model": "anthropic/claude-sonnet-4"})
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected upstream 429 propagated, got %d", rec.Code)
	}

	var resp map[string]any
	decodeBody(t, rec.Body.Bytes(), &resp)
	details, _ := resp["details"].(string)
	if !strings.Contains(details, "rate limited") {
		t.Fatalf("expected upstream message in details, got %v", resp)
	}
}

func TestChatRequiresMessage(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	rec := httptest.NewRecorder()
	req := newJSONRequest(t, http.MethodPost, "/api/chat", gin.H{"message": "  "})
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestImageGenerationFallbackStillSucceeds(t *testing.T) {
	router, _, stub := setupTestRouter(t)
	stub.imageResult = &providers.ImageResult{
		Images:   []providers.GeneratedImage{{URL: "https://placehold.co/1024x1024/1E90FF/FFFFFF?text=ocean+1"}},
		Provider: providers.ProviderOpenRouter,
		Model:    "openai/dall-e-3",
		Fallback: true,
	}

	rec := httptest.NewRecorder()
	req := newJSONRequest(t, http.MethodPost, "/api/image-generation", gin.H{"prompt": "an ocean"})
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("image failures must still return 200, got %d", rec.Code)
	}

	var resp struct {
		Images   []map[string]any `json:"images"`
		Metadata map[string]any   `json:"metadata"`
	}
	decodeBody(t, rec.Body.Bytes(), &resp)
	if len(resp.Images) != 1 || resp.Images[0]["url"] == "" {
		t.Fatalf("expected a placeholder image, got %v", resp.Images)
	}
	if resp.Metadata["fallback"] != true {
		t.Fatalf("expected fallback marker, got %v", resp.Metadata)
	}
}

func TestAudioEndpoint(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, _ := writer.CreateFormFile("file", "clip.wav")
	io.Copy(part, strings.NewReader("fake-audio"))
	writer.WriteField("action", "transcribe")
	writer.Close()

	req, _ := http.NewRequest(http.MethodPost, "/api/audio", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]any
	decodeBody(t, rec.Body.Bytes(), &resp)
	if resp["text"] != "stub transcript" {
		t.Fatalf("expected transcript in response, got %v", resp)
	}
}

func TestAudioRejectsUnknownAction(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, _ := writer.CreateFormFile("file", "clip.wav")
	io.Copy(part, strings.NewReader("fake-audio"))
	writer.WriteField("action", "summarize")
	writer.Close()

	req, _ := http.NewRequest(http.MethodPost, "/api/audio", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestConversationLifecycleOverHTTP(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	// create
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, newJSONRequest(t, http.MethodPost, "/api/conversations", gin.H{"model": "openai/gpt-4o"}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rec.Code)
	}
	var created map[string]any
	decodeBody(t, rec.Body.Bytes(), &created)
	id, _ := created["id"].(string)
	if id == "" {
		t.Fatalf("expected conversation id")
	}

	// list includes it as current
	rec = httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/conversations", nil)
	router.ServeHTTP(rec, req)
	var listResp map[string]any
	decodeBody(t, rec.Body.Bytes(), &listResp)
	if listResp["currentId"] != id {
		t.Fatalf("expected new conversation to be current, got %v", listResp["currentId"])
	}

	// change model
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, newJSONRequest(t, http.MethodPut, "/api/conversations/"+id+"/model", gin.H{"model": "llama-3.1-8b-instant"}))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rec.Code)
	}

	// delete
	rec = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodDelete, "/api/conversations/"+id, nil)
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/api/conversations/"+id, nil)
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 after delete, got %d", rec.Code)
	}
}

func TestExportImportOverHTTP(t *testing.T) {
	router, store, _ := setupTestRouter(t)
	ctx := context.Background()

	conv, _ := store.Create(ctx, "model-a")
	store.Append(ctx, conv.ID, conversation.AppendInput{Content: "keep me", Role: "user"})

	rec := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/conversations/export", nil)
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	snapshot := rec.Body.Bytes()

	// wipe, then import the snapshot back
	rec = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodDelete, "/api/conversations", nil)
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodPost, "/api/conversations/import", bytes.NewReader(snapshot))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	restored, ok := store.Get(conv.ID)
	if !ok || len(restored.Messages) != 1 || restored.Messages[0].Content != "keep me" {
		t.Fatalf("expected conversation restored from snapshot")
	}
}

func TestImportRejectsMalformedPayload(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	rec := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api/conversations/import", strings.NewReader("{broken"))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestAuthEndpoints(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, newJSONRequest(t, http.MethodPost, "/api/auth/register", gin.H{
		"username": "alice",
		"password": "secret123",
	}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, newJSONRequest(t, http.MethodPost, "/api/auth/login", gin.H{
		"username": "alice",
		"password": "secret123",
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp map[string]any
	decodeBody(t, rec.Body.Bytes(), &resp)
	if token, _ := resp["token"].(string); token == "" {
		t.Fatalf("expected token in login response")
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, newJSONRequest(t, http.MethodPost, "/api/auth/login", gin.H{
		"username": "alice",
		"password": "wrong",
	}))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}
