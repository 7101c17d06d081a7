// Package catalog is the static model registry: display metadata, context
// windows, capability tags, and price rates for every model the assistant
// offers. Pure lookup, no state.
package catalog

import "sort"

const (
	ProviderGroq       = "groq"
	ProviderOpenRouter = "openrouter"
)

// ModelInfo describes one model. Rates are USD per 1K tokens.
type ModelInfo struct {
	ID            string   `json:"id"`
	DisplayName   string   `json:"displayName"`
	Provider      string   `json:"provider"`
	ContextWindow int      `json:"contextWindow"`
	Capabilities  []string `json:"capabilities"`
	InputRate     float64  `json:"inputRate"`
	OutputRate    float64  `json:"outputRate"`
}

const defaultContextWindow = 8192

var registry = map[string]ModelInfo{
	"llama-3.3-70b-versatile": {
		ID:            "llama-3.3-70b-versatile",
		DisplayName:   "Llama 3.3 70B Versatile",
		Provider:      ProviderGroq,
		ContextWindow: 131072,
		Capabilities:  []string{"chat"},
		InputRate:     0.00059,
		OutputRate:    0.00079,
	},
	"llama-3.1-8b-instant": {
		ID:            "llama-3.1-8b-instant",
		DisplayName:   "Llama 3.1 8B Instant",
		Provider:      ProviderGroq,
		ContextWindow: 131072,
		Capabilities:  []string{"chat"},
		InputRate:     0.00005,
		OutputRate:    0.00008,
	},
	"mixtral-8x7b-32768": {
		ID:            "mixtral-8x7b-32768",
		DisplayName:   "Mixtral 8x7B",
		Provider:      ProviderGroq,
		ContextWindow: 32768,
		Capabilities:  []string{"chat"},
		InputRate:     0.00024,
		OutputRate:    0.00024,
	},
	"whisper-large-v3": {
		ID:            "whisper-large-v3",
		DisplayName:   "Whisper Large v3",
		Provider:      ProviderGroq,
		ContextWindow: 0,
		Capabilities:  []string{"transcription", "translation"},
	},
	"anthropic/claude-sonnet-4": {
		ID:            "anthropic/claude-sonnet-4",
		DisplayName:   "Claude Sonnet 4",
		Provider:      ProviderOpenRouter,
		ContextWindow: 200000,
		Capabilities:  []string{"chat"},
		InputRate:     0.003,
		OutputRate:    0.015,
	},
	"anthropic/claude-3.5-haiku": {
		ID:            "anthropic/claude-3.5-haiku",
		DisplayName:   "Claude 3.5 Haiku",
		Provider:      ProviderOpenRouter,
		ContextWindow: 200000,
		Capabilities:  []string{"chat"},
		InputRate:     0.0008,
		OutputRate:    0.004,
	},
	"openai/gpt-4o": {
		ID:            "openai/gpt-4o",
		DisplayName:   "GPT-4o",
		Provider:      ProviderOpenRouter,
		ContextWindow: 128000,
		Capabilities:  []string{"chat"},
		InputRate:     0.0025,
		OutputRate:    0.01,
	},
	"openai/gpt-4o-mini": {
		ID:            "openai/gpt-4o-mini",
		DisplayName:   "GPT-4o mini",
		Provider:      ProviderOpenRouter,
		ContextWindow: 128000,
		Capabilities:  []string{"chat"},
		InputRate:     0.00015,
		OutputRate:    0.0006,
	},
	"google/gemini-2.0-flash-001": {
		ID:            "google/gemini-2.0-flash-001",
		DisplayName:   "Gemini 2.0 Flash",
		Provider:      ProviderOpenRouter,
		ContextWindow: 1000000,
		Capabilities:  []string{"chat"},
		InputRate:     0.0001,
		OutputRate:    0.0004,
	},
	"openai/dall-e-3": {
		ID:            "openai/dall-e-3",
		DisplayName:   "DALL-E 3",
		Provider:      ProviderOpenRouter,
		ContextWindow: 0,
		Capabilities:  []string{"image"},
	},
}

// Lookup returns the catalog entry for id.
func Lookup(id string) (ModelInfo, bool) {
	info, ok := registry[id]
	return info, ok
}

// Resolve returns the catalog entry for id, or a synthesized entry with zero
// rates and a default context window when the model is not listed. Unknown
// models still route and run; they just carry no pricing metadata.
func Resolve(id string) ModelInfo {
	if info, ok := registry[id]; ok {
		return info
	}
	return ModelInfo{
		ID:            id,
		DisplayName:   id,
		Provider:      ProviderOpenRouter,
		ContextWindow: defaultContextWindow,
		Capabilities:  []string{"chat"},
	}
}

// List returns all catalog entries sorted by id.
func List() []ModelInfo {
	result := make([]ModelInfo, 0, len(registry))
	for _, info := range registry {
		result = append(result, info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Default is the model used when neither the request nor the conversation
// names one.
func Default() ModelInfo {
	return registry["llama-3.3-70b-versatile"]
}
