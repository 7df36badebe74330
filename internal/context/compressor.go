package ctxengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/phillt/bernard-sub001/internal/memory"
	"github.com/phillt/bernard-sub001/internal/provider"
	"github.com/phillt/bernard-sub001/pkg/message"
)

// ErrEmptySummary indicates that the summarizer returned no text.
var ErrEmptySummary = errors.New("ctxengine: empty summary")

// SummaryPrompt instructs the model how to summarize compressed history.
const SummaryPrompt = `You summarize the earlier part of a conversation between a user and an AI assistant so the assistant can continue without the original messages.

Write concise bullet points. Preserve:
- facts the user stated about themselves, their environment, and their goals
- decisions that were made and the reasons given
- outcomes of actions and tool calls (what succeeded, what failed, key values)
- open questions and unfinished work

Omit greetings, pleasantries, filler, and restated content. Do not add
commentary or information that is not in the transcript.`

// AcknowledgementText is the assistant reply paired with a summary.
const AcknowledgementText = "Understood. I have the summary of our earlier conversation and will continue from here."

var tracer = otel.Tracer("github.com/phillt/bernard-sub001/internal/context")

// FactStore receives facts extracted during compression.
type FactStore interface {
	AddFacts(ctx context.Context, facts []string, source string) int
}

// CompressorOption configures a Compressor.
type CompressorOption func(*Compressor)

// WithExtractor overrides the fact extractor. Defaults to an LLM extractor
// on the compressor's provider.
func WithExtractor(e memory.Extractor) CompressorOption {
	return func(c *Compressor) { c.extractor = e }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) CompressorOption {
	return func(c *Compressor) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records compression outcomes on m.
func WithMetrics(m *Metrics) CompressorOption {
	return func(c *Compressor) { c.metrics = m }
}

// WithFactsStored registers a callback run by the background storage
// goroutine after facts were handed to the store.
func WithFactsStored(fn func(facts []string, added int)) CompressorOption {
	return func(c *Compressor) { c.onStored = fn }
}

// Compressor replaces older conversation turns with an LLM summary and
// feeds facts extracted from them into long-term memory.
type Compressor struct {
	provider  provider.Provider
	extractor memory.Extractor
	facts     FactStore
	logger    *slog.Logger
	metrics   *Metrics
	onStored  func(facts []string, added int)

	wg sync.WaitGroup
}

// NewCompressor creates a Compressor. A nil facts store discards extracted
// facts.
func NewCompressor(p provider.Provider, facts FactStore, opts ...CompressorOption) *Compressor {
	c := &Compressor{
		provider: p,
		facts:    facts,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.extractor == nil {
		c.extractor = memory.NewLLMExtractor(p, DefaultExtractionMaxTokens)
	}
	c.logger = c.logger.With("component", "ctxengine")
	return c
}

// CountRecentMessages returns the index where the last turnsToKeep user
// turns begin. Messages before it are old enough to compress. It returns 0
// when the history holds no more than turnsToKeep user turns. Boundary
// messages (summaries, session markers) are not turns.
func CountRecentMessages(history []message.Message, turnsToKeep int) int {
	if turnsToKeep <= 0 {
		turnsToKeep = DefaultRecentTurnsToKeep
	}

	total := 0
	for _, m := range history {
		if isUserTurn(m) {
			total++
		}
	}
	if total <= turnsToKeep {
		return 0
	}

	seen := 0
	for i := len(history) - 1; i >= 0; i-- {
		if !isUserTurn(history[i]) {
			continue
		}
		seen++
		if seen == turnsToKeep {
			return i
		}
	}
	return 0
}

func isUserTurn(m message.Message) bool {
	return m.Role == message.RoleUser && !m.IsBoundary()
}

// Compress summarizes the messages older than the last
// cfg.RecentTurnsToKeep user turns. It returns
// [summary, acknowledgement, recent...] on success and history itself when
// there is nothing to compress or summarization fails. history is never
// modified.
func (c *Compressor) Compress(ctx context.Context, history []message.Message, cfg CompressConfig) []message.Message {
	out, _ := c.compress(ctx, history, cfg)
	return out
}

type result[T any] struct {
	val T
	err error
}

func (c *Compressor) compress(ctx context.Context, history []message.Message, cfg CompressConfig) ([]message.Message, bool) {
	ctx, span := tracer.Start(ctx, "ctxengine.Compress")
	defer span.End()

	cfg = cfg.withDefaults()
	split := CountRecentMessages(history, cfg.RecentTurnsToKeep)
	span.SetAttributes(
		attribute.Int("ctxengine.history.messages", len(history)),
		attribute.Int("ctxengine.split", split),
	)
	if split == 0 {
		c.metrics.recordCompression(OutcomeSkipped)
		return history, false
	}

	transcript := SerializeTranscript(history[:split], cfg.ToolResultMaxChars)
	if strings.TrimSpace(transcript) == "" {
		c.metrics.recordCompression(OutcomeSkipped)
		return history, false
	}

	callCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	summaryCh := make(chan result[string], 1)
	factsCh := make(chan result[[]string], 1)

	go func() {
		text, err := provider.CompleteText(callCtx, c.provider, SummaryPrompt, []provider.LLMMessage{
			{Role: provider.MessageRoleUser, Content: transcript},
		}, cfg.SummaryMaxTokens)
		summaryCh <- result[string]{val: text, err: err}
	}()
	go func() {
		facts, err := c.extractor.ExtractFacts(callCtx, transcript)
		factsCh <- result[[]string]{val: facts, err: err}
	}()

	summary := <-summaryCh
	extracted := <-factsCh

	if extracted.err != nil {
		c.logger.Warn("fact extraction failed, continuing without it", "error", extracted.err)
	} else if len(extracted.val) > 0 {
		c.storeFacts(ctx, extracted.val)
	}

	if summary.err == nil && strings.TrimSpace(summary.val) == "" {
		summary.err = ErrEmptySummary
	}
	if summary.err != nil {
		c.logger.Warn("summarization failed, keeping full history", "error", summary.err)
		span.RecordError(summary.err)
		c.metrics.recordCompression(OutcomeFailed)
		return history, false
	}

	out := make([]message.Message, 0, 2+len(history)-split)
	out = append(out,
		message.NewText(message.RoleUser, formatSummary(split, summary.val)),
		message.NewText(message.RoleAssistant, AcknowledgementText),
	)
	out = append(out, history[split:]...)

	c.metrics.recordCompression(OutcomeCompressed)
	c.logger.Info("conversation compressed",
		"compressed_messages", split,
		"kept_messages", len(history)-split,
		"facts_extracted", len(extracted.val),
	)
	return out, true
}

// formatSummary builds the boundary message text. It must start with
// message.ContextSummaryPrefix so query composition skips it.
func formatSummary(compressed int, summary string) string {
	return fmt.Sprintf("%s — %d earlier messages compressed]\n\n%s",
		message.ContextSummaryPrefix, compressed, strings.TrimSpace(summary))
}

// storeFacts hands facts to the store on a detached goroutine. The outcome
// only reaches the logger.
func (c *Compressor) storeFacts(ctx context.Context, facts []string) {
	if c.facts == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("fact storage panicked", "panic", r)
			}
		}()

		added := c.facts.AddFacts(ctx, facts, memory.SourceCompression)
		c.logger.Debug("compression facts stored", "extracted", len(facts), "added", added)
		if c.onStored != nil {
			c.onStored(facts, added)
		}
	}()
}

// Wait blocks until every background fact-storage goroutine has finished.
func (c *Compressor) Wait() {
	c.wg.Wait()
}
