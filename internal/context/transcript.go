package ctxengine

import (
	"strings"

	"github.com/phillt/bernard-sub001/pkg/message"
)

// TruncationMarker is appended to tool results cut short in a transcript.
const TruncationMarker = "... (truncated)"

// SerializeTranscript renders messages as role-prefixed plain text lines:
//
//	User: ...
//	Assistant: ...
//	Assistant [tool call]: name({"arg":"value"})
//	Tool [name]: result
//
// Tool results longer than maxToolResultChars are truncated.
func SerializeTranscript(messages []message.Message, maxToolResultChars int) string {
	if maxToolResultChars <= 0 {
		maxToolResultChars = DefaultToolResultMaxChars
	}

	var lines []string
	for _, m := range messages {
		for _, p := range m.Parts {
			switch p.Type {
			case message.PartText:
				text := strings.TrimSpace(p.Text)
				if text == "" {
					continue
				}
				lines = append(lines, roleLabel(m.Role)+": "+text)
			case message.PartToolCall:
				args := strings.TrimSpace(string(p.Args))
				lines = append(lines, "Assistant [tool call]: "+p.Name+"("+args+")")
			case message.PartToolResult:
				result := p.Result
				if truncated, cut := truncateRunes(result, maxToolResultChars); cut {
					result = truncated + TruncationMarker
				}
				lines = append(lines, "Tool ["+p.Name+"]: "+result)
			}
		}
	}
	return strings.Join(lines, "\n")
}

func roleLabel(r message.Role) string {
	switch r {
	case message.RoleUser:
		return "User"
	case message.RoleAssistant:
		return "Assistant"
	case message.RoleTool:
		return "Tool"
	case message.RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// truncateRunes cuts s to at most n runes and reports whether it cut.
func truncateRunes(s string, n int) (string, bool) {
	if n <= 0 {
		return "", s != ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i], true
		}
		count++
	}
	return s, false
}

func runeLen(s string) int {
	return len([]rune(s))
}
