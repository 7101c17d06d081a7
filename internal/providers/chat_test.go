package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/mod-ship/Mod-ai-assistant/internal/utils"
)

// fakeDoer replays a canned response and records the request it received.
type fakeDoer struct {
	status   int
	body     string
	err      error
	requests []*http.Request
	bodies   [][]byte
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	f.requests = append(f.requests, req)
	if req.Body != nil {
		data, _ := io.ReadAll(req.Body)
		f.bodies = append(f.bodies, data)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &http.Response{
		StatusCode: f.status,
		Body:       io.NopCloser(bytes.NewReader([]byte(f.body))),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}, nil
}

func newTestRouter(doer httpDoer) *Router {
	r := NewRouter(utils.ProvidersConfig{
		OpenRouter: utils.OpenRouterConfig{
			BaseURL: "https://openrouter.test/api/v1",
			APIKeys: []string{"or-key-1", "or-key-2"},
			Referer: "https://assistant.test",
			Title:   "Assistant Test",
		},
		Groq: utils.GroqConfig{
			BaseURL: "https://groq.test/openai/v1",
			APIKey:  "groq-key",
		},
	}, zap.NewNop().Sugar())
	r.client = doer
	r.fallback = FallbackPolicy{}
	return r
}

const chatSuccessBody = `{
	"id": "gen-1",
	"model": "anthropic/claude-sonnet-4",
	"choices": [{"index": 0, "message": {"role": "assistant", "content": "Hello back!"}, "finish_reason": "stop"}],
	"usage": {"prompt_tokens": 100, "completion_tokens": 50, "total_tokens": 150}
}`

func TestChatAggregatorSuccess(t *testing.T) {
	doer := &fakeDoer{status: http.StatusOK, body: chatSuccessBody}
	router := newTestRouter(doer)

	result, err := router.Chat(context.Background(), "anthropic/claude-sonnet-4",
		[]ChatMessage{{Role: "user", Content: "Hello"}}, ChatOptions{})
	if err != nil {
		t.Fatalf("chat returned error: %v", err)
	}

	if result.Content != "Hello back!" {
		t.Fatalf("expected reply content, got %q", result.Content)
	}
	if result.Provider != ProviderOpenRouter {
		t.Fatalf("expected openrouter provider, got %s", result.Provider)
	}
	if result.Usage == nil || result.Usage.TotalTokens != 150 {
		t.Fatalf("expected usage to be decoded")
	}

	// cost = (100*0.003 + 50*0.015) / 1000
	wantCost := (100*0.003 + 50*0.015) / 1000
	if diff := result.Cost - wantCost; diff > 1e-12 || diff < -1e-12 {
		t.Fatalf("expected cost %f, got %f", wantCost, result.Cost)
	}

	req := doer.requests[0]
	if req.URL.String() != "https://openrouter.test/api/v1/chat/completions" {
		t.Fatalf("unexpected endpoint %s", req.URL)
	}
	authz := req.Header.Get("Authorization")
	if authz != "Bearer or-key-1" && authz != "Bearer or-key-2" {
		t.Fatalf("expected one of the configured keys, got %q", authz)
	}

	var payload chatAPIRequest
	if err := json.Unmarshal(doer.bodies[0], &payload); err != nil {
		t.Fatalf("failed to decode outgoing payload: %v", err)
	}
	if payload.Stream {
		t.Fatalf("streaming must be disabled")
	}
	if payload.Temperature != defaultTemperature || payload.MaxTokens != defaultMaxTokens {
		t.Fatalf("expected documented defaults, got %f/%d", payload.Temperature, payload.MaxTokens)
	}
	if len(payload.Messages) != 2 || payload.Messages[0].Role != "system" {
		t.Fatalf("expected system preamble prepended, got %+v", payload.Messages)
	}
}

func TestChatFastInferenceEndpoint(t *testing.T) {
	doer := &fakeDoer{status: http.StatusOK, body: chatSuccessBody}
	router := newTestRouter(doer)

	result, err := router.Chat(context.Background(), "llama-3.3-70b-versatile",
		[]ChatMessage{{Role: "user", Content: "Hi"}}, ChatOptions{Temperature: 0.2, MaxTokens: 256})
	if err != nil {
		t.Fatalf("chat returned error: %v", err)
	}
	if result.Provider != ProviderGroq {
		t.Fatalf("expected groq provider, got %s", result.Provider)
	}

	req := doer.requests[0]
	if req.URL.String() != "https://groq.test/openai/v1/chat/completions" {
		t.Fatalf("unexpected endpoint %s", req.URL)
	}
	if req.Header.Get("Authorization") != "Bearer groq-key" {
		t.Fatalf("expected groq key, got %q", req.Header.Get("Authorization"))
	}

	var payload chatAPIRequest
	if err := json.Unmarshal(doer.bodies[0], &payload); err != nil {
		t.Fatalf("decode request body: %v", err)
	}
	if payload.Temperature != 0.2 || payload.MaxTokens != 256 {
		t.Fatalf("expected caller options to pass through, got %f/%d", payload.Temperature, payload.MaxTokens)
	}
}

func TestChatUpstreamErrorMessageSurfaced(t *testing.T) {
	doer := &fakeDoer{status: http.StatusTooManyRequests, body: `{"error":{"message":"rate limited"}}`}
	router := newTestRouter(doer)

	_, err := router.Chat(context.Background(), "anthropic/claude-sonnet-4",
		[]ChatMessage{{Role: "user", Content: "Hello"}}, ChatOptions{})
	if err == nil {
		t.Fatalf("expected error for 429 response")
	}
	if !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("expected upstream message surfaced, got %q", err.Error())
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected APIError carrying status 429, got %v", err)
	}
}

func TestChatErrorWithoutBodySynthesizesStatus(t *testing.T) {
	doer := &fakeDoer{status: http.StatusBadGateway, body: ""}
	router := newTestRouter(doer)

	_, err := router.Chat(context.Background(), "anthropic/claude-sonnet-4",
		[]ChatMessage{{Role: "user", Content: "Hello"}}, ChatOptions{})
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Fatalf("expected synthesized status message, got %v", err)
	}
}

func TestChatEmptyChoicesIsValidationError(t *testing.T) {
	doer := &fakeDoer{status: http.StatusOK, body: `{"choices":[],"usage":{"total_tokens":0}}`}
	router := newTestRouter(doer)

	_, err := router.Chat(context.Background(), "anthropic/claude-sonnet-4",
		[]ChatMessage{{Role: "user", Content: "Hello"}}, ChatOptions{})
	if err == nil || !strings.Contains(err.Error(), "no choices") {
		t.Fatalf("expected validation error for empty choices, got %v", err)
	}
}

func TestChatNoCredentialsFailsBeforeNetwork(t *testing.T) {
	doer := &fakeDoer{status: http.StatusOK, body: chatSuccessBody}
	router := newTestRouter(doer)
	router.openRouterKeys = NewRandomSelector(nil, 1)

	_, err := router.Chat(context.Background(), "anthropic/claude-sonnet-4",
		[]ChatMessage{{Role: "user", Content: "Hello"}}, ChatOptions{})
	if !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("expected ErrNoCredentials, got %v", err)
	}
	if len(doer.requests) != 0 {
		t.Fatalf("no network call may happen without credentials")
	}
}
