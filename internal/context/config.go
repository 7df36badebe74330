// Package ctxengine manages the live conversation context: when to compress
// history, how to compress it, and how to compose the semantic recall query
// for the next turn.
package ctxengine

import "time"

// Compression defaults.
const (
	DefaultRecentTurnsToKeep   = 4
	DefaultCompressTimeout     = 60 * time.Second
	DefaultSummaryMaxTokens    = 2048
	DefaultExtractionMaxTokens = 1024
	DefaultToolResultMaxChars  = 500
)

// Query defaults.
const (
	DefaultMaxQueryChars       = 1000
	DefaultRecentUserTexts     = 4
	DefaultToolContextMessages = 3
	DefaultToolContextChars    = 200
)

// CompressConfig tunes one compression cycle.
type CompressConfig struct {
	// RecentTurnsToKeep is the number of trailing user turns kept verbatim.
	RecentTurnsToKeep int

	// Timeout bounds the summarize and extract LLM calls.
	Timeout time.Duration

	// SummaryMaxTokens caps the summary completion.
	SummaryMaxTokens int

	// ToolResultMaxChars truncates tool results in the transcript.
	ToolResultMaxChars int
}

func (c CompressConfig) withDefaults() CompressConfig {
	if c.RecentTurnsToKeep <= 0 {
		c.RecentTurnsToKeep = DefaultRecentTurnsToKeep
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultCompressTimeout
	}
	if c.SummaryMaxTokens <= 0 {
		c.SummaryMaxTokens = DefaultSummaryMaxTokens
	}
	if c.ToolResultMaxChars <= 0 {
		c.ToolResultMaxChars = DefaultToolResultMaxChars
	}
	return c
}

// QueryOptions tunes BuildRAGQuery.
type QueryOptions struct {
	// MaxQueryChars bounds the query length in characters.
	MaxQueryChars int

	// ToolContext is a summary of recent tool activity, added only when
	// budget remains after the user texts.
	ToolContext string
}

// RecallConfig tunes how the Assembler composes the recall query.
type RecallConfig struct {
	// MaxQueryChars bounds the query length.
	MaxQueryChars int

	// RecentUserTexts is how many earlier user messages feed the query.
	RecentUserTexts int

	// ToolContextMessages is how many assistant messages are scanned for
	// tool calls.
	ToolContextMessages int

	// ToolContextChars bounds the tool-activity fragment.
	ToolContextChars int
}

func (c RecallConfig) withDefaults() RecallConfig {
	if c.MaxQueryChars <= 0 {
		c.MaxQueryChars = DefaultMaxQueryChars
	}
	if c.RecentUserTexts <= 0 {
		c.RecentUserTexts = DefaultRecentUserTexts
	}
	if c.ToolContextMessages <= 0 {
		c.ToolContextMessages = DefaultToolContextMessages
	}
	if c.ToolContextChars <= 0 {
		c.ToolContextChars = DefaultToolContextChars
	}
	return c
}
