package message

import (
	"encoding/json"
	"testing"
	"time"
)

func TestExtractText(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want string
	}{
		{"plain text", NewText(RoleUser, "hello"), "hello"},
		{"no parts", Message{Role: RoleUser}, ""},
		{
			"mixed parts",
			Message{Role: RoleAssistant, Parts: []Part{
				TextPart("checking"),
				ToolCallPart("read_file", json.RawMessage(`{"path":"a.go"}`)),
				TextPart("done"),
			}},
			"checking\ndone",
		},
		{"tool result only", NewToolResult("shell", "ok"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractText(tt.msg); got != tt.want {
				t.Errorf("ExtractText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMessage_IsBoundary(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want bool
	}{
		{"summary", NewText(RoleUser, "[Context Summary — 10 earlier messages compressed]\n\n- a"), true},
		{"session ended", SessionEndedMarker(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)), true},
		{"regular user", NewText(RoleUser, "what about [Context Summary"), false},
		{"assistant with prefix", NewText(RoleAssistant, "[Context Summary"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.msg.IsBoundary(); got != tt.want {
				t.Errorf("IsBoundary() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPart_MarshalJSON_DropsForeignFields(t *testing.T) {
	p := Part{Type: PartText, Text: "hi", Name: "stray", Result: "stray"}
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if got, want := string(data), `{"type":"text","text":"hi"}`; got != want {
		t.Errorf("Marshal = %s, want %s", got, want)
	}
}

func TestMessage_UnmarshalJSON_StringContent(t *testing.T) {
	var m Message
	if err := json.Unmarshal([]byte(`{"role":"user","content":"plain"}`), &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if m.Role != RoleUser || ExtractText(m) != "plain" {
		t.Errorf("got %+v", m)
	}
}

func TestMessage_UnmarshalJSON_Parts(t *testing.T) {
	raw := `{"role":"assistant","content":[{"type":"tool_call","name":"grep","args":{"pattern":"x"}}]}`
	var m Message
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	calls := m.ToolCalls()
	if len(calls) != 1 || calls[0].Name != "grep" {
		t.Fatalf("ToolCalls() = %+v", calls)
	}
	if string(calls[0].Args) != `{"pattern":"x"}` {
		t.Errorf("Args = %s", calls[0].Args)
	}
}

func TestToolCallPart_CopiesArgs(t *testing.T) {
	args := json.RawMessage(`{"a":1}`)
	p := ToolCallPart("t", args)
	args[2] = 'b'
	if string(p.Args) != `{"a":1}` {
		t.Errorf("Args mutated through caller slice: %s", p.Args)
	}
}
