package providers

import (
	"time"

	"go.uber.org/zap"

	"github.com/mod-ship/Mod-ai-assistant/internal/utils"
)

// Provider names an upstream service.
type Provider string

const (
	// ProviderGroq is the fast-inference provider hosting a fixed set of
	// open-weight models plus Whisper audio.
	ProviderGroq Provider = "groq"
	// ProviderOpenRouter is the general-purpose aggregator; every model id
	// not reserved for Groq goes here.
	ProviderOpenRouter Provider = "openrouter"
)

// groqModels is the finite allow-list of model ids served by the
// fast-inference provider.
var groqModels = map[string]struct{}{
	"llama-3.3-70b-versatile": {},
	"llama-3.1-8b-instant":    {},
	"mixtral-8x7b-32768":      {},
	"whisper-large-v3":        {},
}

// Route decides which provider serves a model id. Pure function: ids on the
// Groq allow-list go to Groq, everything else to the aggregator.
func Route(modelID string) Provider {
	if _, ok := groqModels[modelID]; ok {
		return ProviderGroq
	}
	return ProviderOpenRouter
}

// Router dispatches chat, image, and audio requests to the provider that
// Route selects, translating each provider's request and response shapes.
type Router struct {
	openRouterBase string
	referer        string
	title          string
	openRouterKeys KeySelector
	groqBase       string
	groqKey        KeySelector
	client         httpDoer
	fallback       FallbackPolicy
	logger         *zap.SugaredLogger
}

// NewRouter builds a Router from provider configuration.
func NewRouter(cfg utils.ProvidersConfig, logger *zap.SugaredLogger) *Router {
	return &Router{
		openRouterBase: cfg.OpenRouter.BaseURL,
		referer:        cfg.OpenRouter.Referer,
		title:          cfg.OpenRouter.Title,
		openRouterKeys: NewRandomSelector(cfg.OpenRouter.APIKeys, time.Now().UnixNano()),
		groqBase:       cfg.Groq.BaseURL,
		groqKey:        staticSelector(cfg.Groq.APIKey),
		client:         newDefaultHTTPClient(),
		fallback:       DefaultFallbackPolicy(),
		logger:         logger,
	}
}
