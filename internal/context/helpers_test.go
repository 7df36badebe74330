package ctxengine_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/phillt/bernard-sub001/internal/memory"
	"github.com/phillt/bernard-sub001/internal/provider"
	"github.com/phillt/bernard-sub001/internal/provider/providertest"
	"github.com/phillt/bernard-sub001/pkg/message"
)

// mockEstimator implements ctxengine.TokenEstimator for tests.
type mockEstimator struct{}

func (m *mockEstimator) Estimate(text string) int { return len(text) }

// recordingStore implements ctxengine.FactStore and ctxengine.Searcher.
type recordingStore struct {
	mu      sync.Mutex
	facts   []string
	sources []string
	queries []string
	results []memory.SearchResult
}

func (s *recordingStore) AddFacts(_ context.Context, facts []string, source string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.facts = append(s.facts, facts...)
	s.sources = append(s.sources, source)
	return len(facts)
}

func (s *recordingStore) Search(_ context.Context, query string) []memory.SearchResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, query)
	return s.results
}

func (s *recordingStore) Facts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.facts...)
}

// scriptedProvider answers summary and extraction prompts differently.
func scriptedProvider(summary string, summaryErr error, facts string, factsErr error) *providertest.MockProvider {
	return &providertest.MockProvider{
		CompleteFunc: func(_ context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
			if req.System == memory.FactExtractionPrompt {
				return provider.CompletionResponse{Content: facts}, factsErr
			}
			return provider.CompletionResponse{Content: summary}, summaryErr
		},
	}
}

// makeTurns builds n user/assistant exchanges.
func makeTurns(n int) []message.Message {
	msgs := make([]message.Message, 0, 2*n)
	for i := range n {
		msgs = append(msgs,
			message.NewText(message.RoleUser, fmt.Sprintf("question %d", i)),
			message.NewText(message.RoleAssistant, fmt.Sprintf("answer %d", i)),
		)
	}
	return msgs
}

func toolCall(name, args string) message.Message {
	return message.NewToolCall(name, json.RawMessage(args))
}
