package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/phillt/bernard-sub001/internal/provider"
)

// MaxFactChars is the longest fact accepted from an extraction response.
const MaxFactChars = 500

const defaultExtractionMaxTokens = 1024

// FactExtractionPrompt instructs the model to return durable facts as a
// JSON array of strings.
const FactExtractionPrompt = `You extract durable facts from a conversation transcript for long-term memory.

Return ONLY a JSON array of strings. Each string is one self-contained fact that
will still be true and useful in a future, unrelated conversation: the user's
preferences, personal details, environment and tooling, long-lived project
decisions, and recurring constraints. Write each fact so it can be understood
without the transcript (name the subject explicitly). Keep each fact under 500
characters.

Do NOT include transient task details (files currently being edited, one-off
commands, intermediate errors), generic knowledge, or anything the assistant
merely suggested without the user agreeing.

If there is nothing worth remembering, return [].`

// Extractor pulls durable facts out of a serialized transcript.
type Extractor interface {
	ExtractFacts(ctx context.Context, transcript string) ([]string, error)
}

// LLMExtractor asks a completion provider for facts.
type LLMExtractor struct {
	provider  provider.Provider
	maxTokens int
}

// Compile-time interface check.
var _ Extractor = (*LLMExtractor)(nil)

// NewLLMExtractor creates an extractor backed by p. maxTokens <= 0 uses a
// default.
func NewLLMExtractor(p provider.Provider, maxTokens int) *LLMExtractor {
	if maxTokens <= 0 {
		maxTokens = defaultExtractionMaxTokens
	}
	return &LLMExtractor{provider: p, maxTokens: maxTokens}
}

// ExtractFacts implements Extractor. A malformed response yields no facts
// and no error; only a failed completion is an error.
func (e *LLMExtractor) ExtractFacts(ctx context.Context, transcript string) ([]string, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, nil
	}
	text, err := provider.CompleteText(ctx, e.provider, FactExtractionPrompt, []provider.LLMMessage{
		{Role: provider.MessageRoleUser, Content: transcript},
	}, e.maxTokens)
	if err != nil {
		return nil, fmt.Errorf("memory: extraction failed: %w", err)
	}
	return ParseFacts(text), nil
}

// ParseFacts decodes a JSON array of fact strings from a model response.
// Markdown code fences are tolerated. Entries that are not strings, are
// blank, or exceed MaxFactChars are dropped. Anything unparseable yields nil.
func ParseFacts(response string) []string {
	body := stripCodeFence(response)

	start := strings.Index(body, "[")
	end := strings.LastIndex(body, "]")
	if start < 0 || end <= start {
		return nil
	}

	var raw []any
	if err := json.Unmarshal([]byte(body[start:end+1]), &raw); err != nil {
		return nil
	}

	facts := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" || len([]rune(s)) > MaxFactChars {
			continue
		}
		facts = append(facts, s)
	}
	return facts
}

// stripCodeFence removes a surrounding ``` or ```json fence.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// Drop the info string (e.g. "json").
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// NopExtractor never finds facts. Used when no provider is configured.
type NopExtractor struct{}

// Compile-time interface check.
var _ Extractor = NopExtractor{}

// ExtractFacts always returns nil.
func (NopExtractor) ExtractFacts(context.Context, string) ([]string, error) {
	return nil, nil
}
