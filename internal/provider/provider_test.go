package provider_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/phillt/bernard-sub001/internal/provider"
	"github.com/phillt/bernard-sub001/internal/provider/providertest"
)

func TestCompleteText(t *testing.T) {
	t.Parallel()

	mock := &providertest.MockProvider{
		CompleteFunc: func(_ context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
			if req.System != "be brief" {
				t.Errorf("System = %q, want %q", req.System, "be brief")
			}
			if req.MaxTokens != 128 {
				t.Errorf("MaxTokens = %d, want 128", req.MaxTokens)
			}
			return provider.CompletionResponse{Content: "ok"}, nil
		},
	}

	got, err := provider.CompleteText(context.Background(), mock, "be brief",
		[]provider.LLMMessage{{Role: provider.MessageRoleUser, Content: "hi"}}, 128)
	if err != nil {
		t.Fatalf("CompleteText: %v", err)
	}
	if got != "ok" {
		t.Errorf("CompleteText = %q, want %q", got, "ok")
	}
	if mock.CompleteCalls() != 1 {
		t.Errorf("CompleteCalls = %d, want 1", mock.CompleteCalls())
	}
}

func TestCompleteText_NilProvider(t *testing.T) {
	t.Parallel()

	_, err := provider.CompleteText(context.Background(), nil, "", nil, 0)
	if !errors.Is(err, provider.ErrNoProvider) {
		t.Errorf("err = %v, want ErrNoProvider", err)
	}
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limit", provider.ErrRateLimit, true},
		{"wrapped provider down", fmt.Errorf("x: %w", provider.ErrProviderDown), true},
		{"context length", provider.ErrContextLength, false},
		{"other", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := provider.IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
