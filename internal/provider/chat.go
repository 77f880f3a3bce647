package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/starford/ansuz/internal/apperr"
)

// chatAdapter covers the OpenAI chat.completions wire family, shared by
// OpenAI itself and OpenAI-compatible gateways such as OpenRouter.
type chatAdapter struct {
	kind Kind
	defs Defaults
}

func (a *chatAdapter) Kind() Kind         { return a.kind }
func (a *chatAdapter) Defaults() Defaults { return a.defs }

func (a *chatAdapter) BuildRequest(ctx context.Context, cfg Config, prompt string, maxTokens int) (*http.Request, error) {
	body, err := json.Marshal(openai.ChatCompletionRequest{
		Model:     cfg.model(a.defs),
		MaxTokens: maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("provider: encode %s request: %w", a.kind, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.endpoint(a.defs), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("provider: build %s request: %w", a.kind, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	}
	return req, nil
}

func (a *chatAdapter) ParseResponse(status int, body []byte) (string, error) {
	if err := classifyStatus(status, body); err != nil {
		return "", err
	}
	var resp openai.ChatCompletionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &apperr.ProviderError{Kind: apperr.MalformedResponse, Detail: err.Error()}
	}
	if len(resp.Choices) == 0 {
		return "", &apperr.ProviderError{Kind: apperr.MalformedResponse, Detail: "no choices in response"}
	}
	return resp.Choices[0].Message.Content, nil
}
