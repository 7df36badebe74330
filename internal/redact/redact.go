// Package redact scrubs credentials out of text before it is logged or
// queued for fact extraction, so an API key pasted into a conversation
// never ends up in the memory store.
package redact

import (
	"regexp"
	"strings"
	"sync"
)

// Placeholder replaces every redacted secret.
const Placeholder = "[REDACTED]"

// Redactor replaces known credential formats and registered literal
// values. It is safe for concurrent use.
type Redactor struct {
	mu       sync.RWMutex
	patterns []*regexp.Regexp
	literals []string
}

// New returns a Redactor loaded with DefaultPatterns and the given
// literal secrets. Empty literals are ignored.
func New(literals ...string) *Redactor {
	r := &Redactor{patterns: DefaultPatterns()}
	for _, l := range literals {
		r.AddLiteral(l)
	}
	return r
}

// AddLiteral registers a secret value loaded at runtime, such as a
// configured token.
func (r *Redactor) AddLiteral(secret string) {
	if strings.TrimSpace(secret) == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.literals = append(r.literals, secret)
}

// AddPattern registers an additional credential format.
func (r *Redactor) AddPattern(p *regexp.Regexp) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patterns = append(r.patterns, p)
}

// String returns s with every secret replaced by Placeholder. A nil
// Redactor returns s unchanged.
func (r *Redactor) String(s string) string {
	if r == nil || s == "" {
		return s
	}

	r.mu.RLock()
	patterns, literals := r.patterns, r.literals
	r.mu.RUnlock()

	// Literals first: a configured token may itself match a pattern and
	// should not be split by a partial replacement.
	for _, lit := range literals {
		s = strings.ReplaceAll(s, lit, Placeholder)
	}
	for _, p := range patterns {
		s = p.ReplaceAllString(s, Placeholder)
	}
	return s
}

// DefaultPatterns returns the credential formats redacted out of the box.
func DefaultPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		// Anthropic keys come before the generic sk- form.
		regexp.MustCompile(`sk-ant-[A-Za-z0-9_\-]{20,}`),
		regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`),
		regexp.MustCompile(`(ghp_|gho_|ghs_|github_pat_)[A-Za-z0-9_]{20,}`),
		regexp.MustCompile(`AKIA[A-Z0-9]{16}`),
		regexp.MustCompile(`xox[bp]-[0-9]+-[A-Za-z0-9\-]+`),
		regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._~+/\-]{16,}=*`),
	}
}
