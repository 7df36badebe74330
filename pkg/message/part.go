package message

import (
	"encoding/json"
	"strings"
)

// Part is a flat union representing one piece of message content.
// The Type field discriminates which fields are meaningful:
//   - text:        Text
//   - tool_call:   Name, Args
//   - tool_result: Name, Result
type Part struct {
	Type   PartType        `json:"type"`
	Text   string          `json:"text,omitempty"`
	Name   string          `json:"name,omitempty"`
	Args   json.RawMessage `json:"args,omitempty"`
	Result string          `json:"result,omitempty"`
}

// MarshalJSON implements json.Marshaler.
// Fields that do not belong to the part's variant are dropped.
func (p Part) MarshalJSON() ([]byte, error) {
	type alias Part
	normalized := alias{Type: p.Type}

	switch p.Type {
	case PartText:
		normalized.Text = p.Text
	case PartToolCall:
		normalized.Name = p.Name
		normalized.Args = p.Args
	case PartToolResult:
		normalized.Name = p.Name
		normalized.Result = p.Result
	default:
		normalized = alias(p)
	}

	return json.Marshal(normalized)
}

// TextPart creates a text part.
func TextPart(text string) Part {
	return Part{Type: PartText, Text: text}
}

// ToolCallPart creates a tool-call part. The arguments are copied.
func ToolCallPart(name string, args json.RawMessage) Part {
	var cp json.RawMessage
	if len(args) > 0 {
		cp = make(json.RawMessage, len(args))
		copy(cp, args)
	}
	return Part{Type: PartToolCall, Name: name, Args: cp}
}

// ToolResultPart creates a tool-result part.
func ToolResultPart(name, result string) Part {
	return Part{Type: PartToolResult, Name: name, Result: result}
}

// ExtractText concatenates the text parts of m, separated by newlines.
// Tool calls and tool results are ignored.
func ExtractText(m Message) string {
	var texts []string
	for _, p := range m.Parts {
		if p.Type == PartText && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// HasBoundaryPrefix reports whether text starts with one of the reserved
// boundary prefixes.
func HasBoundaryPrefix(text string) bool {
	text = strings.TrimSpace(text)
	return strings.HasPrefix(text, ContextSummaryPrefix) ||
		strings.HasPrefix(text, SessionEndedPrefix)
}
