package ctxengine_test

import (
	"context"
	"strings"
	"testing"

	ctxengine "github.com/phillt/bernard-sub001/internal/context"
	"github.com/phillt/bernard-sub001/internal/memory"
	"github.com/phillt/bernard-sub001/pkg/message"
)

func TestContextAssembler_Recall(t *testing.T) {
	t.Parallel()

	store := &recordingStore{results: []memory.SearchResult{
		{Fact: "User prefers tabs", Similarity: 0.81},
	}}
	a := ctxengine.NewContextAssembler(&mockEstimator{}, nil, store)

	history := []message.Message{
		message.NewText(message.RoleUser, "set up the linter"),
		message.NewText(message.RoleAssistant, "done"),
	}
	res := a.Assemble(context.Background(), ctxengine.AssemblyRequest{
		SystemPrompt: "You are helpful.",
		History:      history,
		Input:        "format the file",
		Model:        "gpt-4o",
	})

	if res.Query != "set up the linter. format the file" {
		t.Errorf("Query = %q", res.Query)
	}
	if len(store.queries) != 1 || store.queries[0] != res.Query {
		t.Errorf("searcher queries = %v", store.queries)
	}
	if !strings.HasPrefix(res.SystemPrompt, "You are helpful.\n\n"+memory.RecalledContextHeading) {
		t.Errorf("SystemPrompt = %q", res.SystemPrompt)
	}
	if !strings.Contains(res.SystemPrompt, "- User prefers tabs (relevance 81%)") {
		t.Errorf("recalled line missing from %q", res.SystemPrompt)
	}
	if res.Compressed || len(res.History) != 2 {
		t.Errorf("unexpected compression: %+v", res)
	}
	if res.Budget.WindowSize != 128_000 || res.Budget.Memory == 0 || res.Budget.Used() >= res.Budget.WindowSize {
		t.Errorf("Budget = %+v", res.Budget)
	}
}

func TestContextAssembler_NoResults(t *testing.T) {
	t.Parallel()

	a := ctxengine.NewContextAssembler(nil, nil, &recordingStore{})
	res := a.Assemble(context.Background(), ctxengine.AssemblyRequest{
		SystemPrompt: "base",
		Input:        "hello",
	})

	if res.SystemPrompt != "base" {
		t.Errorf("SystemPrompt = %q, want base prompt unchanged", res.SystemPrompt)
	}
	if res.Budget.Memory != 0 {
		t.Errorf("Memory tokens = %d, want 0", res.Budget.Memory)
	}
}

func TestContextAssembler_Stickiness(t *testing.T) {
	t.Parallel()

	store := &recordingStore{results: []memory.SearchResult{
		{Fact: "a", Similarity: 0.60},
		{Fact: "b", Similarity: 0.58},
	}}
	a := ctxengine.NewContextAssembler(nil, nil, store)
	a.SetRecallConfig(ctxengine.RecallConfig{}, memory.StickinessOptions{Boost: 0.1})

	req := ctxengine.AssemblyRequest{Input: "q"}
	a.Assemble(context.Background(), req)

	store.results = []memory.SearchResult{
		{Fact: "c", Similarity: 0.62},
		{Fact: "b", Similarity: 0.58},
	}
	res := a.Assemble(context.Background(), req)
	if res.Recalled[0].Fact != "b" || res.Recalled[0].Similarity < 0.679 {
		t.Errorf("Recalled = %+v, want b boosted first", res.Recalled)
	}

	a.ResetSession()
	res = a.Assemble(context.Background(), req)
	if res.Recalled[0].Fact != "c" {
		t.Errorf("after reset Recalled = %+v, want c first", res.Recalled)
	}
}

func TestContextAssembler_CompressesUnderPressure(t *testing.T) {
	t.Parallel()

	store := &recordingStore{}
	c := ctxengine.NewCompressor(scriptedProvider("- earlier work", nil, `[]`, nil), store)
	a := ctxengine.NewContextAssembler(&mockEstimator{}, c, store)

	res := a.Assemble(context.Background(), ctxengine.AssemblyRequest{
		History:          makeTurns(6),
		Input:            "next",
		Model:            "unknown-model",
		LastPromptTokens: 100_000,
	})
	c.Wait()

	if !res.Compressed {
		t.Fatal("expected compression")
	}
	if len(res.History) != 10 || !res.History[0].IsBoundary() {
		t.Errorf("History = %+v", res.History)
	}
	// The summary is a boundary and stays out of the query.
	if strings.Contains(res.Query, "earlier work") || strings.Contains(res.Query, "question 1") {
		t.Errorf("Query = %q", res.Query)
	}
}

func TestContextAssembler_CompressionFailureKeepsHistory(t *testing.T) {
	t.Parallel()

	c := ctxengine.NewCompressor(scriptedProvider("", nil, "", nil), nil)
	a := ctxengine.NewContextAssembler(&mockEstimator{}, c, nil)

	history := makeTurns(6)
	res := a.Assemble(context.Background(), ctxengine.AssemblyRequest{
		History:          history,
		Input:            "next",
		LastPromptTokens: 100_000,
	})
	if res.Compressed || len(res.History) != len(history) {
		t.Errorf("Compressed=%v len=%d", res.Compressed, len(res.History))
	}
	if res.Query != "" {
		t.Errorf("Query = %q, want empty without searcher", res.Query)
	}
}
