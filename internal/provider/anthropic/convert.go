package anthropic

import (
	"log/slog"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/phillt/bernard-sub001/internal/provider"
)

// convertRequest transforms a CompletionRequest into Anthropic SDK parameters.
// The request-level System prompt and any leading system messages are merged
// into the dedicated System field.
func convertRequest(req provider.CompletionRequest, cfg *Config, logger *slog.Logger) sdkanthropic.MessageNewParams {
	system, messages := splitSystemMessages(req.Messages)
	if req.System != "" {
		system = append([]sdkanthropic.TextBlockParam{{Text: req.System}}, system...)
	}

	params := sdkanthropic.MessageNewParams{
		Model:    sdkanthropic.Model(cfg.Model),
		Messages: convertMessages(messages, logger),
		System:   system,
	}

	params.MaxTokens = int64(cfg.MaxTokens)
	if req.MaxTokens > 0 {
		params.MaxTokens = int64(req.MaxTokens)
	}
	if req.Temperature != nil {
		params.Temperature = sdkanthropic.Float(*req.Temperature)
	}

	return params
}

// splitSystemMessages extracts leading system messages into Anthropic's System
// parameter format and returns the remaining messages.
func splitSystemMessages(msgs []provider.LLMMessage) ([]sdkanthropic.TextBlockParam, []provider.LLMMessage) {
	var system []sdkanthropic.TextBlockParam
	var idx int
	for idx = 0; idx < len(msgs); idx++ {
		if msgs[idx].Role != provider.MessageRoleSystem {
			break
		}
		system = append(system, sdkanthropic.TextBlockParam{
			Text: msgs[idx].Content,
		})
	}
	return system, msgs[idx:]
}

// convertMessages transforms completion messages into Anthropic SDK message
// params. Non-leading system messages are dropped with a warning since the
// API only accepts system text as a separate parameter.
func convertMessages(msgs []provider.LLMMessage, logger *slog.Logger) []sdkanthropic.MessageParam {
	result := make([]sdkanthropic.MessageParam, 0, len(msgs))

	for i, msg := range msgs {
		switch msg.Role {
		case provider.MessageRoleUser:
			result = append(result, sdkanthropic.NewUserMessage(sdkanthropic.NewTextBlock(msg.Content)))
		case provider.MessageRoleAssistant:
			result = append(result, sdkanthropic.NewAssistantMessage(sdkanthropic.NewTextBlock(msg.Content)))
		case provider.MessageRoleSystem:
			if logger != nil {
				logger.Warn("dropping non-leading system message", "index", i)
			}
		}
	}

	return result
}

// convertResponse transforms an Anthropic SDK Message into a CompletionResponse.
// Text blocks are joined with newlines; tool-use blocks are ignored because
// the memory layer never offers tools.
func convertResponse(msg *sdkanthropic.Message) provider.CompletionResponse {
	var content string

	for _, block := range msg.Content {
		if v, ok := block.AsAny().(sdkanthropic.TextBlock); ok {
			if content != "" {
				content += "\n"
			}
			content += v.Text
		}
	}

	return provider.CompletionResponse{
		Content:      content,
		FinishReason: convertStopReason(msg.StopReason),
		Usage: provider.TokenUsage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}
}

// convertStopReason maps an Anthropic stop reason to a FinishReason.
func convertStopReason(reason sdkanthropic.StopReason) provider.FinishReason {
	switch reason {
	case sdkanthropic.StopReasonMaxTokens:
		return provider.FinishReasonLength
	case sdkanthropic.StopReasonToolUse:
		return provider.FinishReasonToolUse
	case sdkanthropic.StopReasonRefusal:
		return provider.FinishReasonFiltering
	default:
		return provider.FinishReasonStop
	}
}
