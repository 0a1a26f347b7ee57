package openai

import (
	"context"
	"errors"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/joseph-ayodele/doc-cleanser/internal/llm"
)

// Extract implements llm.Provider with a JSON-object mode chat completion.
// The schema travels as a system message; the extractor validates the reply.
func (c *Client) Extract(ctx context.Context, cleansedText string, fieldSchema map[string]any) ([]byte, error) {
	start := time.Now()
	strict := llm.IsStrict(ctx)

	c.logger.Debug("llm.openai.request",
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"text_len", len(cleansedText),
		"strict", strict,
	)

	req := goopenai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		ResponseFormat: &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: llm.BuildSystemPrompt(strict)},
			{Role: goopenai.ChatMessageRoleUser, Content: llm.BuildUserPrompt(cleansedText)},
			{Role: goopenai.ChatMessageRoleSystem, Content: llm.SchemaMessage(fieldSchema)},
		},
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		c.logger.Error("llm.openai.http_error", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, &llm.ProviderError{Provider: c.Name(), Status: statusOf(err), Err: err}
	}
	if len(resp.Choices) == 0 {
		// a 200 with nothing in it is a malformed answer, not a transport failure
		return []byte{}, nil
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)

	c.logger.Debug("llm.openai.response",
		"finish_reason", resp.Choices[0].FinishReason,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return []byte(content), nil
}

func statusOf(err error) int {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

var _ llm.Provider = (*Client)(nil)
