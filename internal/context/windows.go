package ctxengine

import "strings"

// DefaultContextWindow is used for models missing from the table.
const DefaultContextWindow = 128_000

// CompressionTriggerRatio is the share of the context window that may be
// used before compression triggers.
const CompressionTriggerRatio = 0.75

// contextWindows maps model name prefixes to context window sizes. The
// longest matching prefix wins.
var contextWindows = map[string]int{
	"claude-opus-4":     200_000,
	"claude-sonnet-4":   200_000,
	"claude-haiku-4":    200_000,
	"claude-3-7-sonnet": 200_000,
	"claude-3-5-sonnet": 200_000,
	"claude-3-5-haiku":  200_000,
	"claude-3-opus":     200_000,
	"claude-3-haiku":    200_000,
	"gpt-4o":            128_000,
	"gpt-4.1":           1_047_576,
	"gpt-4-turbo":       128_000,
	"gpt-4":             8_192,
	"gpt-3.5-turbo":     16_385,
	"gpt-5":             400_000,
	"o1":                200_000,
	"o3":                200_000,
	"o4-mini":           200_000,
	"gemini-1.5-pro":    2_097_152,
	"gemini-1.5-flash":  1_048_576,
	"gemini-2.0-flash":  1_048_576,
	"gemini-2.5":        1_048_576,
	"mistral-large":     128_000,
	"llama-3.1":         128_000,
}

// ContextWindow returns the context window size of model in tokens.
func ContextWindow(model string) int {
	model = strings.ToLower(strings.TrimSpace(model))
	best, size := "", DefaultContextWindow
	for prefix, window := range contextWindows {
		if strings.HasPrefix(model, prefix) && len(prefix) > len(best) {
			best, size = prefix, window
		}
	}
	return size
}

// ShouldCompress reports whether the last prompt plus the incoming message
// exceeds CompressionTriggerRatio of the model's context window.
func ShouldCompress(lastPromptTokens, newMessageEstimate int, model string) bool {
	limit := float64(ContextWindow(model)) * CompressionTriggerRatio
	return float64(lastPromptTokens+newMessageEstimate) > limit
}
