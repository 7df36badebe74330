package ctxengine

import (
	"bytes"
	"encoding/json"
	"slices"
	"strings"

	"github.com/phillt/bernard-sub001/pkg/message"
)

const (
	querySeparator     = ". "
	toolArgValueChars  = 60
	minToolBudgetChars = 10
	ellipsis           = "..."
)

// ExtractRecentUserTexts returns the text of up to maxMessages of the most
// recent user messages, oldest first. Boundary messages and blank texts are
// skipped.
func ExtractRecentUserTexts(history []message.Message, maxMessages int) []string {
	if maxMessages <= 0 {
		return nil
	}

	var texts []string
	for i := len(history) - 1; i >= 0 && len(texts) < maxMessages; i-- {
		m := history[i]
		if m.Role != message.RoleUser {
			continue
		}
		text := strings.TrimSpace(message.ExtractText(m))
		if text == "" || message.HasBoundaryPrefix(text) {
			continue
		}
		texts = append(texts, text)
	}

	slices.Reverse(texts)
	return texts
}

// ExtractRecentToolContext summarizes the tool calls of the last
// maxMessages assistant messages as "name(firstKey=value)" tokens, oldest
// first, joined with ", ". The result is cut to maxChars with a trailing
// "...".
func ExtractRecentToolContext(history []message.Message, maxMessages, maxChars int) string {
	if maxMessages <= 0 || maxChars <= 0 {
		return ""
	}

	var groups [][]string
	inspected := 0
	for i := len(history) - 1; i >= 0 && inspected < maxMessages; i-- {
		m := history[i]
		if m.Role != message.RoleAssistant {
			continue
		}
		inspected++

		var tokens []string
		for _, call := range m.ToolCalls() {
			tokens = append(tokens, formatToolCall(call))
		}
		if len(tokens) > 0 {
			groups = append(groups, tokens)
		}
	}

	slices.Reverse(groups)
	var all []string
	for _, g := range groups {
		all = append(all, g...)
	}
	return truncateWithEllipsis(strings.Join(all, ", "), maxChars)
}

// formatToolCall renders name(firstKey=value), or name() without arguments.
func formatToolCall(call message.Part) string {
	key, value, ok := firstArg(call.Args)
	if !ok {
		return call.Name + "()"
	}
	value, _ = truncateRunes(value, toolArgValueChars)
	return call.Name + "(" + key + "=" + value + ")"
}

// firstArg returns the first key of a JSON object in document order and
// its value. String values are unquoted; other values keep their JSON form.
func firstArg(args json.RawMessage) (key, value string, ok bool) {
	if len(bytes.TrimSpace(args)) == 0 {
		return "", "", false
	}

	dec := json.NewDecoder(bytes.NewReader(args))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return "", "", false
	}
	if !dec.More() {
		return "", "", false
	}
	tok, err := dec.Token()
	if err != nil {
		return "", "", false
	}
	key, ok = tok.(string)
	if !ok {
		return "", "", false
	}

	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return "", "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return key, s, true
	}
	return key, string(raw), true
}

// BuildRAGQuery composes a bounded search query. The current input is kept
// last and is only truncated when it alone exceeds the budget. Older texts
// are admitted from the most recent backwards, each cut to what remains.
// Tool context is prepended only if more than 10 characters remain.
// Fragments are joined with ". ".
func BuildRAGQuery(currentInput string, recentUserTexts []string, opts QueryOptions) string {
	budget := opts.MaxQueryChars
	if budget <= 0 {
		budget = DefaultMaxQueryChars
	}

	current, _ := truncateRunes(strings.TrimSpace(currentInput), budget)
	remaining := budget - runeLen(current)
	fragments := 0
	if current != "" {
		fragments = 1
	}

	// cost returns the separator overhead of one more fragment.
	cost := func() int {
		if fragments == 0 {
			return 0
		}
		return len(querySeparator)
	}

	var older []string
	for i := len(recentUserTexts) - 1; i >= 0; i-- {
		text := strings.TrimSpace(recentUserTexts[i])
		if text == "" || text == current {
			continue
		}
		avail := remaining - cost()
		if avail <= 0 {
			break
		}
		text, _ = truncateRunes(text, avail)
		older = append(older, text)
		remaining = avail - runeLen(text)
		fragments++
	}
	slices.Reverse(older)

	var parts []string
	if tc := strings.TrimSpace(opts.ToolContext); tc != "" {
		avail := remaining - cost()
		if avail > minToolBudgetChars {
			inner := truncateWithEllipsis(tc, avail-len("[tools: ]"))
			if inner != "" {
				parts = append(parts, "[tools: "+inner+"]")
			}
		}
	}
	parts = append(parts, older...)
	if current != "" {
		parts = append(parts, current)
	}
	return strings.Join(parts, querySeparator)
}

// truncateWithEllipsis cuts s to at most n runes, ending in "..." when cut.
func truncateWithEllipsis(s string, n int) string {
	if runeLen(s) <= n {
		return s
	}
	if n <= len(ellipsis) {
		cut, _ := truncateRunes(s, n)
		return cut
	}
	cut, _ := truncateRunes(s, n-len(ellipsis))
	return cut + ellipsis
}
