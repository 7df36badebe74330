package ctxengine

import (
	"context"
	"strings"

	"github.com/phillt/bernard-sub001/internal/memory"
	"github.com/phillt/bernard-sub001/pkg/message"
)

// Searcher retrieves stored facts relevant to a query.
type Searcher interface {
	Search(ctx context.Context, query string) []memory.SearchResult
}

// AssemblyRequest contains the inputs for preparing one turn.
type AssemblyRequest struct {
	// SystemPrompt is the base system prompt.
	SystemPrompt string

	// History is the conversation so far, excluding Input.
	History []message.Message

	// Input is the new user message.
	Input string

	// Model names the model the turn will run on.
	Model string

	// LastPromptTokens is the prompt size reported by the previous call.
	// Zero estimates it from History.
	LastPromptTokens int
}

// AssemblyResult is the output of turn preparation.
type AssemblyResult struct {
	// SystemPrompt is the base prompt followed by the recalled context.
	SystemPrompt string

	// History is the (possibly compressed) conversation history.
	History []message.Message

	// Recalled holds the facts injected into SystemPrompt.
	Recalled []memory.SearchResult

	// Query is the search query that produced Recalled.
	Query string

	// Budget is the token breakdown of the prepared turn.
	Budget ContextBudget

	// Compressed is true if history was compressed during assembly.
	Compressed bool
}

// ContextAssembler prepares each turn: it compresses history under
// context-window pressure, then recalls facts for the new input and injects
// them into the system prompt.
type ContextAssembler struct {
	estimator  TokenEstimator
	compressor *Compressor
	searcher   Searcher
	tracker    *memory.RecallTracker
	compress   CompressConfig
	recall     RecallConfig
	stickiness memory.StickinessOptions
}

// NewContextAssembler creates a ContextAssembler. A nil compressor never
// compresses; a nil searcher never recalls.
func NewContextAssembler(estimator TokenEstimator, compressor *Compressor, searcher Searcher) *ContextAssembler {
	if estimator == nil {
		estimator = NewCharEstimator(0)
	}
	return &ContextAssembler{
		estimator:  estimator,
		compressor: compressor,
		searcher:   searcher,
		tracker:    memory.NewRecallTracker(),
	}
}

// SetCompressConfig overrides the compression settings.
func (a *ContextAssembler) SetCompressConfig(cfg CompressConfig) {
	a.compress = cfg
}

// SetRecallConfig overrides the query and re-ranking settings.
func (a *ContextAssembler) SetRecallConfig(cfg RecallConfig, stickiness memory.StickinessOptions) {
	a.recall = cfg
	a.stickiness = stickiness
}

// ResetSession forgets the previous turn's recalled facts.
func (a *ContextAssembler) ResetSession() {
	a.tracker.Reset()
}

// Assemble prepares one turn. It never fails: compression and recall each
// degrade to "unchanged" on their own.
func (a *ContextAssembler) Assemble(ctx context.Context, req AssemblyRequest) AssemblyResult {
	history := req.History
	compressed := false

	lastPrompt := req.LastPromptTokens
	if lastPrompt <= 0 {
		lastPrompt = a.estimator.Estimate(req.SystemPrompt) + EstimateHistory(a.estimator, history)
	}
	if a.compressor != nil && ShouldCompress(lastPrompt, a.estimator.Estimate(req.Input), req.Model) {
		history, compressed = a.compressor.compress(ctx, history, a.compress)
	}

	res := AssemblyResult{
		SystemPrompt: req.SystemPrompt,
		History:      history,
		Compressed:   compressed,
	}

	if a.searcher != nil {
		cfg := a.recall.withDefaults()
		res.Query = BuildRAGQuery(req.Input, ExtractRecentUserTexts(history, cfg.RecentUserTexts), QueryOptions{
			MaxQueryChars: cfg.MaxQueryChars,
			ToolContext:   ExtractRecentToolContext(history, cfg.ToolContextMessages, cfg.ToolContextChars),
		})
		if res.Query != "" {
			res.Recalled = a.tracker.Apply(a.searcher.Search(ctx, res.Query), a.stickiness)
		}
	}

	block := memory.BuildRecalledContextBlock(res.Recalled)
	if block != "" {
		res.SystemPrompt = joinPrompt(req.SystemPrompt, block)
	}

	res.Budget = ContextBudget{
		WindowSize: ContextWindow(req.Model),
		System:     a.estimator.Estimate(req.SystemPrompt),
		Memory:     a.estimator.Estimate(block),
		History:    EstimateHistory(a.estimator, history) + a.estimator.Estimate(req.Input),
	}
	return res
}

func joinPrompt(base, block string) string {
	base = strings.TrimRight(base, "\n")
	if base == "" {
		return block
	}
	return base + "\n\n" + block
}
