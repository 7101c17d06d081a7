package providers

import (
	"context"
	"encoding/json"
	"fmt"
)

const defaultImageModel = "openai/dall-e-3"

// ImageOptions are caller-supplied generation parameters for images.
type ImageOptions struct {
	N       int
	Size    string
	Quality string
	Style   string
}

// GeneratedImage is one produced (or substituted) image descriptor.
type GeneratedImage struct {
	URL           string `json:"url"`
	RevisedPrompt string `json:"revisedPrompt,omitempty"`
}

// ImageResult always represents a success: when the upstream call fails the
// fallback policy substitutes placeholder descriptors and Fallback is set.
type ImageResult struct {
	Images   []GeneratedImage
	Provider Provider
	Model    string
	Fallback bool
}

type imageAPIRequest struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	N       int    `json:"n"`
	Size    string `json:"size"`
	Quality string `json:"quality,omitempty"`
	Style   string `json:"style,omitempty"`
}

type imageAPIResponse struct {
	Data []struct {
		URL           string `json:"url"`
		RevisedPrompt string `json:"revised_prompt"`
	} `json:"data"`
}

// GenerateImage never fails: any error on the upstream path (missing
// credentials, non-2xx status, malformed response, transport failure) is
// swallowed and replaced by placeholder images. Image requests must never
// show a hard failure to the user; real outages are masked on purpose.
func (r *Router) GenerateImage(ctx context.Context, modelID, prompt string, opts ImageOptions) *ImageResult {
	if modelID == "" {
		modelID = defaultImageModel
	}
	if opts.N <= 0 {
		opts.N = 1
	}
	if opts.Size == "" {
		opts.Size = "1024x1024"
	}

	images, err := r.generateUpstream(ctx, modelID, prompt, opts)
	if err != nil {
		r.logger.Warnw("image generation failed, substituting placeholder",
			"model", modelID, "error", err)
		return &ImageResult{
			Images:   r.fallback.Placeholders(ctx, prompt, opts.N, opts.Size),
			Provider: ProviderOpenRouter,
			Model:    modelID,
			Fallback: true,
		}
	}

	return &ImageResult{
		Images:   images,
		Provider: ProviderOpenRouter,
		Model:    modelID,
	}
}

func (r *Router) generateUpstream(ctx context.Context, modelID, prompt string, opts ImageOptions) ([]GeneratedImage, error) {
	key, err := r.openRouterKeys.Select()
	if err != nil {
		return nil, err
	}

	payload := imageAPIRequest{
		Model:   modelID,
		Prompt:  prompt,
		N:       opts.N,
		Size:    opts.Size,
		Quality: opts.Quality,
		Style:   opts.Style,
	}

	headers := map[string]string{
		"HTTP-Referer": r.referer,
		"X-Title":      r.title,
	}
	body, err := r.postJSON(ctx, ProviderOpenRouter, r.openRouterBase+"/images/generations", key, headers, payload)
	if err != nil {
		return nil, err
	}

	var apiResp imageAPIResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("openrouter: decode image response: %w", err)
	}
	if len(apiResp.Data) == 0 {
		return nil, fmt.Errorf("openrouter: image response contained no data")
	}

	images := make([]GeneratedImage, 0, len(apiResp.Data))
	for _, item := range apiResp.Data {
		images = append(images, GeneratedImage{URL: item.URL, RevisedPrompt: item.RevisedPrompt})
	}
	return images, nil
}
