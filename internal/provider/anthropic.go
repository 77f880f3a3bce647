package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/starford/ansuz/internal/apperr"
)

// anthropicAdapter speaks the Anthropic Messages API. The API version
// travels in a header rather than the path.
type anthropicAdapter struct{}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

func (a *anthropicAdapter) Kind() Kind { return Anthropic }

func (a *anthropicAdapter) Defaults() Defaults {
	return Defaults{
		Endpoint:   "https://api.anthropic.com/v1/messages",
		Model:      "claude-haiku-4-5-20251001",
		APIVersion: "2023-06-01",
	}
}

func (a *anthropicAdapter) BuildRequest(ctx context.Context, cfg Config, prompt string, maxTokens int) (*http.Request, error) {
	defs := a.Defaults()
	body, err := json.Marshal(anthropicRequest{
		Model:     cfg.model(defs),
		MaxTokens: maxTokens,
		Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, fmt.Errorf("provider: encode anthropic request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.endpoint(defs), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("provider: build anthropic request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", cfg.APIKey)
	req.Header.Set("anthropic-version", cfg.apiVersion(defs))
	return req, nil
}

func (a *anthropicAdapter) ParseResponse(status int, body []byte) (string, error) {
	if err := classifyStatus(status, body); err != nil {
		return "", err
	}
	var resp anthropicResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &apperr.ProviderError{Kind: apperr.MalformedResponse, Detail: err.Error()}
	}
	if len(resp.Content) == 0 {
		return "", &apperr.ProviderError{Kind: apperr.MalformedResponse, Detail: "empty content block"}
	}
	return resp.Content[0].Text, nil
}
