// Package provider defines the narrow LLM completion contract consumed by the
// memory layer: summarization and fact extraction both go through Complete.
package provider

import (
	"context"
	"strings"
)

// Provider is the interface for communicating with an LLM.
// Concrete implementations live in sub-packages (e.g. provider/anthropic).
type Provider interface {
	// Complete sends a completion request and returns the full response.
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)

	// ContextWindowSize returns the maximum context window in tokens.
	ContextWindowSize() int

	// ModelName returns the identifier of the underlying model.
	ModelName() string
}

// CompleteText is a convenience wrapper that sends a system prompt and a
// message list and returns the trimmed text of the reply.
func CompleteText(ctx context.Context, p Provider, system string, messages []LLMMessage, maxTokens int) (string, error) {
	if p == nil {
		return "", ErrNoProvider
	}
	resp, err := p.Complete(ctx, CompletionRequest{
		System:    system,
		Messages:  messages,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

// HealthChecker is an optional interface that providers may implement
// to support active health probing from the gateway.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
