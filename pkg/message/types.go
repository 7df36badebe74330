// Package message defines the conversation history contract shared by the
// agent loop, the context compressor, and the recall query composer.
// A message carries a role and an ordered list of typed parts.
package message

import (
	"encoding/json"
	"time"
)

// Role identifies the author of a conversation message.
type Role string

// Supported roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleSystem    Role = "system"
)

// PartType discriminates the variant stored in a Part.
type PartType string

// Supported part types.
const (
	PartText       PartType = "text"
	PartToolCall   PartType = "tool_call"
	PartToolResult PartType = "tool_result"
)

// Reserved prefixes of synthetic boundary messages. They are never real user
// turns and must not leak into recall queries.
const (
	ContextSummaryPrefix = "[Context Summary"
	SessionEndedPrefix   = "[Previous session ended"
)

// Message is one entry of a conversation history.
type Message struct {
	Role  Role   `json:"role"`
	Parts []Part `json:"content"`
}

// NewText creates a message whose content is a single text part.
func NewText(role Role, text string) Message {
	return Message{Role: role, Parts: []Part{TextPart(text)}}
}

// NewToolCall creates an assistant message carrying a single tool call.
func NewToolCall(name string, args json.RawMessage) Message {
	return Message{Role: RoleAssistant, Parts: []Part{ToolCallPart(name, args)}}
}

// NewToolResult creates a tool message carrying a single tool result.
func NewToolResult(name, result string) Message {
	return Message{Role: RoleTool, Parts: []Part{ToolResultPart(name, result)}}
}

// SessionEndedMarker builds the user message injected at the start of a
// resumed conversation to mark where the previous session stopped.
func SessionEndedMarker(endedAt time.Time) Message {
	return NewText(RoleUser, SessionEndedPrefix+" at "+endedAt.UTC().Format(time.RFC3339)+"]")
}

// IsBoundary reports whether m is a synthetic boundary message (compression
// summary or session-ended marker) rather than a real turn.
func (m Message) IsBoundary() bool {
	if m.Role != RoleUser {
		return false
	}
	return HasBoundaryPrefix(ExtractText(m))
}

// ToolCalls returns the tool-call parts of m in order.
func (m Message) ToolCalls() []Part {
	var calls []Part
	for _, p := range m.Parts {
		if p.Type == PartToolCall {
			calls = append(calls, p)
		}
	}
	return calls
}

// UnmarshalJSON accepts either a plain string or a list of parts for the
// content field, so stored transcripts written by older clients still load.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role    Role            `json:"role"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Role = raw.Role
	m.Parts = nil

	if len(raw.Content) == 0 || string(raw.Content) == "null" {
		return nil
	}

	var text string
	if err := json.Unmarshal(raw.Content, &text); err == nil {
		m.Parts = []Part{TextPart(text)}
		return nil
	}

	return json.Unmarshal(raw.Content, &m.Parts)
}
