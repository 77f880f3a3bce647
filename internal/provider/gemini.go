package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/starford/ansuz/internal/apperr"
)

// geminiAdapter speaks the Google Generative Language REST API. The API
// version is a path segment; Config.Endpoint overrides the host only.
type geminiAdapter struct{}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig geminiGenConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	MaxOutputTokens int `json:"maxOutputTokens,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (a *geminiAdapter) Kind() Kind { return Gemini }

func (a *geminiAdapter) Defaults() Defaults {
	return Defaults{
		Endpoint:   "https://generativelanguage.googleapis.com",
		Model:      "gemini-2.0-flash",
		APIVersion: "v1beta",
	}
}

func (a *geminiAdapter) BuildRequest(ctx context.Context, cfg Config, prompt string, maxTokens int) (*http.Request, error) {
	defs := a.Defaults()
	body, err := json.Marshal(geminiRequest{
		Contents:         []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: geminiGenConfig{MaxOutputTokens: maxTokens},
	})
	if err != nil {
		return nil, fmt.Errorf("provider: encode gemini request: %w", err)
	}
	url := fmt.Sprintf("%s/%s/models/%s:generateContent",
		cfg.endpoint(defs), cfg.apiVersion(defs), cfg.model(defs))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("provider: build gemini request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", cfg.APIKey)
	return req, nil
}

func (a *geminiAdapter) ParseResponse(status int, body []byte) (string, error) {
	if err := classifyStatus(status, body); err != nil {
		return "", err
	}
	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &apperr.ProviderError{Kind: apperr.MalformedResponse, Detail: err.Error()}
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", &apperr.ProviderError{Kind: apperr.MalformedResponse, Detail: "no candidates in response"}
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}
