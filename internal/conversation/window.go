package conversation

import "github.com/mod-ship/Mod-ai-assistant/internal/models"

// Token estimation uses a fixed approximation of four characters per token,
// rounded up. Close enough for window sizing; not a tokenizer.
const charsPerToken = 4

// EstimateTokens approximates the token count of a piece of text.
func EstimateTokens(content string) int {
	if content == "" {
		return 0
	}
	return (len(content) + charsPerToken - 1) / charsPerToken
}

// SelectWindow returns the longest suffix of messages whose estimated token
// total fits within budget. Selection walks newest to oldest and stops at
// the first message that would exceed the budget, so the result is always
// contiguous and ends with the most recent message. A non-empty input never
// yields an empty window: when even the newest message alone exceeds the
// budget (or the budget is non-positive) that single message is returned
// anyway, since sending nothing upstream would be worse than sending an
// oversized prompt.
func SelectWindow(messages []models.Message, budget int) []models.Message {
	if len(messages) == 0 {
		return nil
	}

	start := len(messages)
	total := 0
	for i := len(messages) - 1; i >= 0; i-- {
		estimate := EstimateTokens(messages[i].Content)
		if total+estimate > budget {
			break
		}
		total += estimate
		start = i
	}

	if start == len(messages) {
		start = len(messages) - 1
	}

	window := make([]models.Message, len(messages)-start)
	copy(window, messages[start:])
	return window
}
