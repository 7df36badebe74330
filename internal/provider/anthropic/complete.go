package anthropic

import (
	"context"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/phillt/bernard-sub001/internal/provider"
)

// Complete sends a synchronous completion request to the Anthropic Messages API.
func (a *Anthropic) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	params := convertRequest(req, &a.config, a.logger)

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return provider.CompletionResponse{}, mapError(err)
	}

	return convertResponse(msg), nil
}

// HealthCheck validates connectivity and authentication by sending a minimal
// completion request. The Anthropic API has no dedicated health endpoint,
// so a 1-token completion is the cheapest probe available.
func (a *Anthropic) HealthCheck(ctx context.Context) error {
	_, err := a.client.Messages.New(ctx, sdkanthropic.MessageNewParams{
		Model:     sdkanthropic.Model(a.config.Model),
		MaxTokens: 1,
		Messages: []sdkanthropic.MessageParam{
			sdkanthropic.NewUserMessage(sdkanthropic.NewTextBlock("hi")),
		},
	})
	return mapError(err)
}
