package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mod-ship/Mod-ai-assistant/internal/catalog"
)

const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 2000

	// systemPreamble is prepended to every outgoing chat request.
	systemPreamble = "You are a helpful AI assistant. Answer clearly and concisely, " +
		"and say so when you are unsure rather than guessing."
)

// ChatMessage mirrors the OpenAI-compatible chat message payload both
// providers accept.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage contains the token counts reported by the upstream API.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatOptions are caller-supplied generation parameters. Zero values take
// the documented defaults (temperature 0.7, max tokens 2000).
type ChatOptions struct {
	Temperature float64
	MaxTokens   int
}

// ChatResult is the assistant reply plus informational metadata.
type ChatResult struct {
	Content      string
	Model        string
	Provider     Provider
	FinishReason string
	Usage        *Usage
	Cost         float64
}

type chatAPIRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream"`
}

type chatAPIChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatAPIResponse struct {
	ID      string          `json:"id"`
	Model   string          `json:"model"`
	Choices []chatAPIChoice `json:"choices"`
	Usage   *Usage          `json:"usage"`
}

// Chat routes the request to the provider serving modelID, prepends the
// system preamble, and returns the reply with an estimated cost. Each
// request is independent: no retries, no circuit breaking.
func (r *Router) Chat(ctx context.Context, modelID string, messages []ChatMessage, opts ChatOptions) (*ChatResult, error) {
	provider := Route(modelID)

	temperature := opts.Temperature
	if temperature <= 0 {
		temperature = defaultTemperature
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	prompt := make([]ChatMessage, 0, len(messages)+1)
	prompt = append(prompt, ChatMessage{Role: "system", Content: systemPreamble})
	prompt = append(prompt, messages...)

	payload := chatAPIRequest{
		Model:       modelID,
		Messages:    prompt,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Stream:      false,
	}

	var (
		apiResp *chatAPIResponse
		err     error
	)
	switch provider {
	case ProviderGroq:
		apiResp, err = r.completeGroq(ctx, payload)
	default:
		apiResp, err = r.completeOpenRouter(ctx, payload)
	}
	if err != nil {
		return nil, err
	}

	if len(apiResp.Choices) == 0 {
		return nil, fmt.Errorf("%s: chat response contained no choices", provider)
	}

	choice := apiResp.Choices[0]
	content := choice.Message.Content

	result := &ChatResult{
		Content:      content,
		Model:        modelID,
		Provider:     provider,
		FinishReason: choice.FinishReason,
		Usage:        apiResp.Usage,
	}
	if apiResp.Usage != nil {
		result.Cost = estimateCost(modelID, apiResp.Usage)
	}

	return result, nil
}

// completeOpenRouter calls the aggregator. One credential is picked at
// random per request.
func (r *Router) completeOpenRouter(ctx context.Context, payload chatAPIRequest) (*chatAPIResponse, error) {
	key, err := r.openRouterKeys.Select()
	if err != nil {
		return nil, err
	}

	headers := map[string]string{
		"HTTP-Referer": r.referer,
		"X-Title":      r.title,
	}
	body, err := r.postJSON(ctx, ProviderOpenRouter, r.openRouterBase+"/chat/completions", key, headers, payload)
	if err != nil {
		return nil, err
	}

	var apiResp chatAPIResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("openrouter: decode chat response: %w", err)
	}
	return &apiResp, nil
}

// completeGroq calls the fast-inference provider through its own
// OpenAI-compatible endpoint.
func (r *Router) completeGroq(ctx context.Context, payload chatAPIRequest) (*chatAPIResponse, error) {
	key, err := r.groqKey.Select()
	if err != nil {
		return nil, err
	}

	body, err := r.postJSON(ctx, ProviderGroq, r.groqBase+"/chat/completions", key, nil, payload)
	if err != nil {
		return nil, err
	}

	var apiResp chatAPIResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("groq: decode chat response: %w", err)
	}
	return &apiResp, nil
}

func (r *Router) postJSON(ctx context.Context, provider Provider, endpoint, key string, headers map[string]string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: marshal request: %w", provider, err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", provider, err)
	}
	request.Header.Set("Authorization", "Bearer "+key)
	request.Header.Set("Content-Type", "application/json")
	for name, value := range headers {
		if strings.TrimSpace(value) != "" {
			request.Header.Set(name, value)
		}
	}

	response, err := r.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("%s: call api: %w", provider, err)
	}
	defer response.Body.Close()

	respBody, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", provider, err)
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, newAPIError(provider, response.StatusCode, respBody)
	}

	return respBody, nil
}

// estimateCost approximates the request cost from catalog rates, scaled per
// 1K tokens. Informational only, not billing-grade.
func estimateCost(modelID string, usage *Usage) float64 {
	info := catalog.Resolve(modelID)
	return (float64(usage.PromptTokens)*info.InputRate + float64(usage.CompletionTokens)*info.OutputRate) / 1000
}
