package ctxengine

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/phillt/bernard-sub001/pkg/message"
)

// TokenEstimator estimates the token count of a string.
type TokenEstimator interface {
	Estimate(text string) int
}

// CharEstimator estimates tokens using a simple characters-per-token ratio.
// A ratio of ~4 works well for English; ~3 for French or other Latin languages.
type CharEstimator struct {
	CharsPerToken float64
}

// NewCharEstimator creates a CharEstimator with the given ratio.
// If charsPerToken is <= 0, defaults to 4.0 (English approximation).
func NewCharEstimator(charsPerToken float64) *CharEstimator {
	if charsPerToken <= 0 {
		charsPerToken = 4.0
	}
	return &CharEstimator{CharsPerToken: charsPerToken}
}

// Estimate returns the estimated token count for the given text.
func (e *CharEstimator) Estimate(text string) int {
	if len(text) == 0 {
		return 0
	}
	tokens := float64(len(text)) / e.CharsPerToken
	// Always round up to avoid underestimation.
	return int(tokens) + 1
}

// TiktokenEstimator counts tokens with the cl100k_base BPE, a close
// approximation for Claude and GPT-4 class models.
type TiktokenEstimator struct {
	mu  sync.Mutex
	enc *tiktoken.Tiktoken
}

// NewTiktokenEstimator loads the cl100k_base encoding. Loading may need
// network access the first time; callers fall back to CharEstimator on error.
func NewTiktokenEstimator() (*TiktokenEstimator, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("ctxengine: load tiktoken encoding: %w", err)
	}
	return &TiktokenEstimator{enc: enc}, nil
}

// Estimate implements TokenEstimator.
func (e *TiktokenEstimator) Estimate(text string) int {
	if text == "" {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.enc.Encode(text, nil, nil))
}

// ContextBudget is the token breakdown of a prepared turn.
type ContextBudget struct {
	WindowSize int // total context window in tokens
	System     int // tokens used by the base system prompt
	Memory     int // tokens used by the recalled context block
	History    int // tokens used by conversation history
}

// Used returns the total number of tokens consumed across all sections.
func (b ContextBudget) Used() int {
	return b.System + b.Memory + b.History
}

// Available returns the number of tokens remaining for additional content.
// Returns 0 if the budget is already exceeded.
func (b ContextBudget) Available() int {
	return max(0, b.WindowSize-b.Used())
}

// Exceeded reports whether total usage exceeds the context window.
func (b ContextBudget) Exceeded() bool {
	return b.Used() > b.WindowSize
}

// EstimateHistory returns the estimated tokens of a conversation history.
func EstimateHistory(estimator TokenEstimator, history []message.Message) int {
	total := 0
	for i := range history {
		// Per-message overhead: role tokens + formatting (~4 tokens).
		total += 4
		for _, p := range history[i].Parts {
			switch p.Type {
			case message.PartText:
				total += estimator.Estimate(p.Text)
			case message.PartToolCall:
				total += estimator.Estimate(p.Name)
				total += estimator.Estimate(string(p.Args))
			case message.PartToolResult:
				total += estimator.Estimate(p.Name)
				total += estimator.Estimate(p.Result)
			}
		}
	}
	return total
}
