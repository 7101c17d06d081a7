package providers

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// FallbackPolicy generates deterministic placeholder image descriptors when
// the upstream image path fails. It is a named strategy rather than a
// blanket catch so tests can assert on exactly when it triggers.
type FallbackPolicy struct {
	// Delay simulates generation latency before the placeholder is
	// returned, matching the pacing of a real request.
	Delay time.Duration
}

func DefaultFallbackPolicy() FallbackPolicy {
	return FallbackPolicy{Delay: 1500 * time.Millisecond}
}

// placeholderTheme pairs a display category with a background color.
type placeholderTheme struct {
	category string
	color    string
}

// themeKeywords maps prompt keywords to placeholder themes, first match
// wins. The default theme applies when nothing matches.
var themeKeywords = []struct {
	keywords []string
	theme    placeholderTheme
}{
	{[]string{"nature", "forest", "tree", "mountain", "landscape"}, placeholderTheme{"nature", "228B22"}},
	{[]string{"ocean", "sea", "water", "beach", "wave"}, placeholderTheme{"ocean", "1E90FF"}},
	{[]string{"sunset", "sunrise", "fire", "flame"}, placeholderTheme{"sunset", "FF8C00"}},
	{[]string{"city", "urban", "street", "building"}, placeholderTheme{"city", "708090"}},
	{[]string{"space", "star", "galaxy", "planet", "cosmos"}, placeholderTheme{"space", "191970"}},
	{[]string{"animal", "cat", "dog", "bird", "wildlife"}, placeholderTheme{"animal", "8B4513"}},
	{[]string{"food", "meal", "dish", "fruit"}, placeholderTheme{"food", "DC143C"}},
}

var defaultTheme = placeholderTheme{"abstract", "9370DB"}

// Placeholders returns n placeholder descriptors themed by keyword matching
// against the prompt. The result is deterministic for a given prompt.
func (p FallbackPolicy) Placeholders(ctx context.Context, prompt string, n int, size string) []GeneratedImage {
	if n <= 0 {
		n = 1
	}
	if size == "" {
		size = "1024x1024"
	}

	if p.Delay > 0 {
		select {
		case <-time.After(p.Delay):
		case <-ctx.Done():
		}
	}

	theme := matchTheme(prompt)

	images := make([]GeneratedImage, 0, n)
	for i := 0; i < n; i++ {
		url := fmt.Sprintf("https://placehold.co/%s/%s/FFFFFF?text=%s+%d",
			size, theme.color, theme.category, i+1)
		images = append(images, GeneratedImage{URL: url})
	}
	return images
}

func matchTheme(prompt string) placeholderTheme {
	lowered := strings.ToLower(prompt)
	for _, entry := range themeKeywords {
		for _, keyword := range entry.keywords {
			if strings.Contains(lowered, keyword) {
				return entry.theme
			}
		}
	}
	return defaultTheme
}
