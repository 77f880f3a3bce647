package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/starford/ansuz/internal/provider"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App        ApplicationConfig `yaml:"app"`
	Vault      VaultConfig       `yaml:"vault"`
	Provider   ProviderConfig    `yaml:"provider"`
	Generation GenerationConfig  `yaml:"generation"`
	Triggers   TriggersConfig    `yaml:"triggers"`
	Auth       AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.Provider.Validate(); err != nil {
		return err
	}
	if err := c.Generation.Validate(); err != nil {
		return err
	}
	if err := c.Triggers.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// VaultConfig holds the path to the Markdown vault directory.
type VaultConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// ProviderConfig selects and configures the AI backend.
//
// Endpoint, Model, and APIVersion are optional overrides; each backend
// carries its own defaults. APIKey may reference an environment variable
// via ${VAR} expansion in the config file.
type ProviderConfig struct {
	Kind       string `yaml:"kind"`
	APIKey     string `yaml:"api_key"`
	Endpoint   string `yaml:"endpoint"`
	Model      string `yaml:"model"`
	APIVersion string `yaml:"api_version"`
	TimeoutMs  int    `yaml:"timeout_ms"`
}

// Validate validates the provider configuration.
func (c *ProviderConfig) Validate() error {
	kinds := provider.Kinds()
	allowed := make([]interface{}, len(kinds))
	for i, k := range kinds {
		allowed[i] = string(k)
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Kind, validation.Required, validation.In(allowed...)),
		validation.Field(&c.TimeoutMs, validation.Min(0)),
	)
}

// Timeout returns the per-request provider timeout.
func (c *ProviderConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// AsProvider converts the YAML representation into the provider package form.
func (c *ProviderConfig) AsProvider() provider.Config {
	return provider.Config{
		Kind:       provider.Kind(c.Kind),
		APIKey:     c.APIKey,
		Endpoint:   c.Endpoint,
		Model:      c.Model,
		APIVersion: c.APIVersion,
	}
}

// GenerationConfig controls what metadata is generated and how.
type GenerationConfig struct {
	TagCount   int         `yaml:"tag_count"`
	Properties bool        `yaml:"properties"`
	MaxTokens  int         `yaml:"max_tokens"`
	Cache      CacheConfig `yaml:"cache"`
}

// Validate validates the generation configuration.
func (c *GenerationConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.TagCount, validation.Min(0), validation.Max(50)),
		validation.Field(&c.MaxTokens, validation.Min(0)),
	); err != nil {
		return err
	}
	return c.Cache.Validate()
}

// CacheConfig holds generation cache settings.
type CacheConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Path     string `yaml:"path"`
	TTLHours int    `yaml:"ttl_hours"`
}

// Validate validates the cache configuration.
func (c *CacheConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.TTLHours, validation.Min(0)),
	)
}

// TTL returns the cache entry lifetime.
func (c *CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// TriggersConfig controls automatic annotation triggers.
type TriggersConfig struct {
	Watch      bool `yaml:"watch"`
	DebounceMs int  `yaml:"debounce_ms"`
}

// Validate validates the triggers configuration.
func (c *TriggersConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DebounceMs, validation.Min(0)),
	)
}

// Debounce returns the watcher quiescence window.
func (c *TriggersConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			Path: "./vault",
		},
		Provider: ProviderConfig{
			Kind:      string(provider.OpenAI),
			TimeoutMs: 30000,
		},
		Generation: GenerationConfig{
			TagCount:  5,
			MaxTokens: 256,
			Cache: CacheConfig{
				Enabled:  true,
				Path:     "./ansuz-cache.db",
				TTLHours: 168,
			},
		},
		Triggers: TriggersConfig{
			Watch:      true,
			DebounceMs: 2000,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
