package internal

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Provider.Timeout() != 30*time.Second {
		t.Errorf("timeout = %v", cfg.Provider.Timeout())
	}
	if cfg.Generation.Cache.TTL() != 168*time.Hour {
		t.Errorf("ttl = %v", cfg.Generation.Cache.TTL())
	}
	if cfg.Triggers.Debounce() != 2*time.Second {
		t.Errorf("debounce = %v", cfg.Triggers.Debounce())
	}
}

func TestProviderConfig_UnknownKind(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Provider.Kind = "skynet"
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown provider kind should fail validation")
	}
}

func TestProviderConfig_AllKnownKinds(t *testing.T) {
	for _, kind := range []string{"openai", "openrouter", "anthropic", "gemini", "ollama"} {
		cfg := ProviderConfig{Kind: kind}
		if err := cfg.Validate(); err != nil {
			t.Errorf("kind %q should validate: %v", kind, err)
		}
	}
}

func TestCacheConfig_DisabledSkipsPathCheck(t *testing.T) {
	cfg := CacheConfig{Enabled: false}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled cache should not require a path: %v", err)
	}

	cfg = CacheConfig{Enabled: true}
	if err := cfg.Validate(); err == nil {
		t.Fatal("enabled cache without a path should fail")
	}
}

func TestHTTPConfig_PortRange(t *testing.T) {
	cfg := HTTPConfig{Port: 0}
	if err := cfg.Validate(); err == nil {
		t.Fatal("port 0 should fail")
	}
	cfg = HTTPConfig{Port: 70000}
	if err := cfg.Validate(); err == nil {
		t.Fatal("port 70000 should fail")
	}
	cfg = HTTPConfig{Port: 8080}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("port 8080 should pass: %v", err)
	}
	if cfg.Address() != ":8080" {
		t.Errorf("address = %q", cfg.Address())
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestFullConfig_ProviderValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Provider.Kind = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("full config validate should catch provider error")
	}
}
