package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/starford/ansuz/internal/apperr"
)

// ollamaAdapter speaks the native Ollama generate API. No auth; local by
// default.
type ollamaAdapter struct{}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	NumPredict int `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

func (a *ollamaAdapter) Kind() Kind { return Ollama }

func (a *ollamaAdapter) Defaults() Defaults {
	return Defaults{
		Endpoint: "http://localhost:11434/api/generate",
		Model:    "llama3.2",
	}
}

func (a *ollamaAdapter) BuildRequest(ctx context.Context, cfg Config, prompt string, maxTokens int) (*http.Request, error) {
	defs := a.Defaults()
	body, err := json.Marshal(ollamaRequest{
		Model:   cfg.model(defs),
		Prompt:  prompt,
		Stream:  false,
		Options: ollamaOptions{NumPredict: maxTokens},
	})
	if err != nil {
		return nil, fmt.Errorf("provider: encode ollama request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.endpoint(defs), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("provider: build ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (a *ollamaAdapter) ParseResponse(status int, body []byte) (string, error) {
	if err := classifyStatus(status, body); err != nil {
		return "", err
	}
	var resp ollamaResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &apperr.ProviderError{Kind: apperr.MalformedResponse, Detail: err.Error()}
	}
	if resp.Response == "" {
		return "", &apperr.ProviderError{Kind: apperr.MalformedResponse, Detail: "empty response field"}
	}
	return resp.Response, nil
}
