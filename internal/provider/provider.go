// Package provider translates generic generation requests into each AI
// backend's wire format and parses responses back into raw model text.
package provider

import (
	"context"
	"fmt"
	"net/http"

	"github.com/starford/ansuz/internal/apperr"
)

// Kind identifies a supported AI backend family.
type Kind string

const (
	OpenAI     Kind = "openai"
	OpenRouter Kind = "openrouter"
	Anthropic  Kind = "anthropic"
	Gemini     Kind = "gemini"
	Ollama     Kind = "ollama"
)

// Defaults are an adapter's fallback endpoint, model, and API version,
// used when the corresponding Config override is unset.
type Defaults struct {
	Endpoint   string
	Model      string
	APIVersion string
}

// Config carries caller-supplied provider settings.
type Config struct {
	Kind       Kind
	APIKey     string
	Endpoint   string
	Model      string
	APIVersion string
}

// Adapter is implemented once per backend family. BuildRequest produces a
// ready-to-send HTTP request for a single-turn completion; ParseResponse
// extracts the raw model text or classifies the failure.
type Adapter interface {
	Kind() Kind
	Defaults() Defaults
	BuildRequest(ctx context.Context, cfg Config, prompt string, maxTokens int) (*http.Request, error)
	ParseResponse(status int, body []byte) (string, error)
}

var adapters = map[Kind]Adapter{
	OpenAI: &chatAdapter{kind: OpenAI, defs: Defaults{
		Endpoint: "https://api.openai.com/v1/chat/completions",
		Model:    "gpt-4o-mini",
	}},
	OpenRouter: &chatAdapter{kind: OpenRouter, defs: Defaults{
		Endpoint: "https://openrouter.ai/api/v1/chat/completions",
		Model:    "openrouter/auto",
	}},
	Anthropic: &anthropicAdapter{},
	Gemini:    &geminiAdapter{},
	Ollama:    &ollamaAdapter{},
}

// ForKind returns the adapter registered for kind.
func ForKind(k Kind) (Adapter, error) {
	a, ok := adapters[k]
	if !ok {
		return nil, fmt.Errorf("provider: unknown kind %q (valid: %v)", k, Kinds())
	}
	return a, nil
}

// Kinds returns all registered provider kinds.
func Kinds() []Kind {
	return []Kind{OpenAI, OpenRouter, Anthropic, Gemini, Ollama}
}

// Endpoint returns the configured endpoint or the adapter default.
func (c Config) endpoint(d Defaults) string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	return d.Endpoint
}

func (c Config) model(d Defaults) string {
	if c.Model != "" {
		return c.Model
	}
	return d.Model
}

func (c Config) apiVersion(d Defaults) string {
	if c.APIVersion != "" {
		return c.APIVersion
	}
	return d.APIVersion
}

// classifyStatus maps an HTTP status to a ProviderError, or nil for 200.
func classifyStatus(status int, body []byte) error {
	detail := httpDetail(status, body)
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &apperr.ProviderError{Kind: apperr.AuthFailure, Detail: detail}
	case status == http.StatusTooManyRequests:
		return &apperr.ProviderError{Kind: apperr.RateLimited, Detail: detail}
	case status == http.StatusRequestTimeout:
		return &apperr.ProviderError{Kind: apperr.Timeout, Detail: detail}
	case status >= 500:
		return &apperr.ProviderError{Kind: apperr.NetworkError, Detail: detail}
	default:
		return &apperr.ProviderError{Kind: apperr.MalformedResponse, Detail: detail}
	}
}

// httpDetail renders a truncated status + body string for error details.
func httpDetail(status int, body []byte) string {
	const maxBody = 256
	if len(body) > maxBody {
		body = body[:maxBody]
	}
	return fmt.Sprintf("HTTP %d: %s", status, body)
}
