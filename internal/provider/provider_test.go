package provider

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/starford/ansuz/internal/apperr"
)

func TestForKind_AllRegistered(t *testing.T) {
	for _, k := range Kinds() {
		a, err := ForKind(k)
		if err != nil {
			t.Errorf("ForKind(%s): %v", k, err)
			continue
		}
		if a.Kind() != k {
			t.Errorf("adapter for %s reports kind %s", k, a.Kind())
		}
		if a.Defaults().Endpoint == "" || a.Defaults().Model == "" {
			t.Errorf("adapter %s missing defaults: %+v", k, a.Defaults())
		}
	}
}

func TestForKind_Unknown(t *testing.T) {
	if _, err := ForKind("mystery"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestChatAdapter_BuildRequest(t *testing.T) {
	a, _ := ForKind(OpenAI)
	req, err := a.BuildRequest(context.Background(), Config{Kind: OpenAI, APIKey: "sk-test"}, "hello", 256)
	if err != nil {
		t.Fatalf("BuildRequest: %v", err)
	}
	if req.URL.String() != "https://api.openai.com/v1/chat/completions" {
		t.Errorf("url = %s", req.URL)
	}
	if got := req.Header.Get("Authorization"); got != "Bearer sk-test" {
		t.Errorf("auth header = %q", got)
	}

	var body struct {
		Model     string `json:"model"`
		MaxTokens int    `json:"max_tokens"`
		Messages  []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	raw, _ := io.ReadAll(req.Body)
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Model != "gpt-4o-mini" {
		t.Errorf("default model = %q", body.Model)
	}
	if body.MaxTokens != 256 {
		t.Errorf("max_tokens = %d", body.MaxTokens)
	}
	if len(body.Messages) != 1 || body.Messages[0].Content != "hello" {
		t.Errorf("messages = %+v", body.Messages)
	}
}

func TestChatAdapter_EndpointAndModelOverride(t *testing.T) {
	a, _ := ForKind(OpenAI)
	cfg := Config{Kind: OpenAI, Endpoint: "http://127.0.0.1:9999/v1/chat/completions", Model: "local-model"}
	req, err := a.BuildRequest(context.Background(), cfg, "x", 10)
	if err != nil {
		t.Fatal(err)
	}
	if req.URL.Host != "127.0.0.1:9999" {
		t.Errorf("endpoint override ignored: %s", req.URL)
	}
	raw, _ := io.ReadAll(req.Body)
	if !strings.Contains(string(raw), `"local-model"`) {
		t.Errorf("model override ignored: %s", raw)
	}
}

func TestChatAdapter_ParseResponse(t *testing.T) {
	a, _ := ForKind(OpenAI)
	body := `{"choices":[{"message":{"role":"assistant","content":"[\"go\",\"testing\"]"}}]}`
	text, err := a.ParseResponse(200, []byte(body))
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if text != `["go","testing"]` {
		t.Errorf("text = %q", text)
	}
}

func TestAnthropicAdapter_Headers(t *testing.T) {
	a, _ := ForKind(Anthropic)
	req, err := a.BuildRequest(context.Background(), Config{Kind: Anthropic, APIKey: "ak"}, "p", 64)
	if err != nil {
		t.Fatal(err)
	}
	if got := req.Header.Get("x-api-key"); got != "ak" {
		t.Errorf("x-api-key = %q", got)
	}
	if got := req.Header.Get("anthropic-version"); got != "2023-06-01" {
		t.Errorf("anthropic-version = %q", got)
	}

	// API version override.
	req, _ = a.BuildRequest(context.Background(), Config{Kind: Anthropic, APIVersion: "2024-10-22"}, "p", 64)
	if got := req.Header.Get("anthropic-version"); got != "2024-10-22" {
		t.Errorf("version override = %q", got)
	}
}

func TestAnthropicAdapter_ParseResponse(t *testing.T) {
	a, _ := ForKind(Anthropic)
	text, err := a.ParseResponse(200, []byte(`{"content":[{"type":"text","text":"tags: go"}]}`))
	if err != nil {
		t.Fatal(err)
	}
	if text != "tags: go" {
		t.Errorf("text = %q", text)
	}
}

func TestGeminiAdapter_VersionInPath(t *testing.T) {
	a, _ := ForKind(Gemini)
	req, err := a.BuildRequest(context.Background(), Config{Kind: Gemini, APIKey: "gk"}, "p", 64)
	if err != nil {
		t.Fatal(err)
	}
	want := "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:generateContent"
	if req.URL.String() != want {
		t.Errorf("url = %s, want %s", req.URL, want)
	}
	if got := req.Header.Get("x-goog-api-key"); got != "gk" {
		t.Errorf("x-goog-api-key = %q", got)
	}

	req, _ = a.BuildRequest(context.Background(), Config{Kind: Gemini, APIVersion: "v1"}, "p", 64)
	if !strings.Contains(req.URL.Path, "/v1/models/") {
		t.Errorf("version override not in path: %s", req.URL.Path)
	}
}

func TestGeminiAdapter_ParseResponse(t *testing.T) {
	a, _ := ForKind(Gemini)
	body := `{"candidates":[{"content":{"parts":[{"text":"kubernetes, devops"}]}}]}`
	text, err := a.ParseResponse(200, []byte(body))
	if err != nil {
		t.Fatal(err)
	}
	if text != "kubernetes, devops" {
		t.Errorf("text = %q", text)
	}
}

func TestOllamaAdapter_ParseResponse(t *testing.T) {
	a, _ := ForKind(Ollama)
	text, err := a.ParseResponse(200, []byte(`{"model":"llama3.2","response":"go, testing","done":true}`))
	if err != nil {
		t.Fatal(err)
	}
	if text != "go, testing" {
		t.Errorf("text = %q", text)
	}
}

func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		status int
		kind   apperr.FailureKind
	}{
		{401, apperr.AuthFailure},
		{403, apperr.AuthFailure},
		{429, apperr.RateLimited},
		{408, apperr.Timeout},
		{500, apperr.NetworkError},
		{503, apperr.NetworkError},
		{400, apperr.MalformedResponse},
	}
	a, _ := ForKind(OpenAI)
	for _, c := range cases {
		_, err := a.ParseResponse(c.status, []byte(`{"error":"boom"}`))
		if err == nil {
			t.Errorf("status %d: expected error", c.status)
			continue
		}
		if !apperr.IsKind(err, c.kind) {
			t.Errorf("status %d: got %v, want kind %s", c.status, err, c.kind)
		}
	}
}

func TestParseResponse_MalformedJSON(t *testing.T) {
	for _, k := range Kinds() {
		a, _ := ForKind(k)
		_, err := a.ParseResponse(200, []byte("not json at all"))
		if !apperr.IsKind(err, apperr.MalformedResponse) {
			t.Errorf("%s: got %v, want MalformedResponse", k, err)
		}
	}
}
