// Package tagger orchestrates AI metadata generation: cache lookups,
// provider calls, and model output parsing.
package tagger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/fingerprint"
	"github.com/starford/ansuz/internal/gencache"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/provider"
)

// Request kinds, part of the cache key so tags-only and full-property
// generations for the same text never collide.
const (
	reqKindTags       = "tags"
	reqKindProperties = "properties"
)

const maxResponseBytes = 1 << 20

// Options configures a Service.
type Options struct {
	Provider  provider.Config
	TagCount  int
	MaxTokens int
	Timeout   time.Duration
	Cache     *gencache.Cache // nil disables caching
	CacheTTL  time.Duration
	Logger    *slog.Logger
}

// Service issues generation requests against the active provider adapter.
type Service struct {
	cfg       provider.Config
	adapter   provider.Adapter
	client    *http.Client
	tagCount  int
	maxTokens int
	timeout   time.Duration
	cache     *gencache.Cache
	cacheTTL  time.Duration
	logger    *slog.Logger
}

// New creates a Service for the configured provider kind.
func New(opts Options) (*Service, error) {
	adapter, err := provider.ForKind(opts.Provider.Kind)
	if err != nil {
		return nil, err
	}
	s := &Service{
		cfg:       opts.Provider,
		adapter:   adapter,
		client:    &http.Client{},
		tagCount:  opts.TagCount,
		maxTokens: opts.MaxTokens,
		timeout:   opts.Timeout,
		cache:     opts.Cache,
		cacheTTL:  opts.CacheTTL,
		logger:    opts.Logger,
	}
	if s.tagCount <= 0 {
		s.tagCount = 5
	}
	if s.maxTokens <= 0 {
		s.maxTokens = 256
	}
	if s.timeout <= 0 {
		s.timeout = 30 * time.Second
	}
	if s.cacheTTL <= 0 {
		s.cacheTTL = 7 * 24 * time.Hour
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// ProviderFingerprint identifies the provider configuration for cache
// invalidation purposes. Same fingerprint, same cacheable results.
func (s *Service) ProviderFingerprint() string {
	defs := s.adapter.Defaults()
	model := s.cfg.Model
	if model == "" {
		model = defs.Model
	}
	endpoint := s.cfg.Endpoint
	if endpoint == "" {
		endpoint = defs.Endpoint
	}
	return fingerprint.Sum(string(s.cfg.Kind), model, endpoint)
}

// FetchTags generates a tag list for text. An empty list is a valid
// result, not an error; provider and parse failures surface as
// user-readable errors only.
func (s *Service) FetchTags(ctx context.Context, text string) ([]string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.ErrEmptyInput
	}

	key := s.key(reqKindTags, text)
	if p, ok := s.cacheGet(key); ok {
		return p.Tags, nil
	}

	raw, err := s.complete(ctx, tagPrompt(s.tagCount, text))
	if err != nil {
		return nil, err
	}
	tags := parseTags(raw, s.tagCount)
	if len(tags) > 0 {
		s.cachePut(key, &models.Properties{Tags: tags})
	}
	return tags, nil
}

// FetchProperties generates the full property set for text. Fields the
// model omitted stay absent. A result with no tags at all, even after the
// heuristic fallback, is reported as ErrUnparsable.
func (s *Service) FetchProperties(ctx context.Context, text string) (*models.Properties, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.ErrEmptyInput
	}

	key := s.key(reqKindProperties, text)
	if p, ok := s.cacheGet(key); ok {
		return p, nil
	}

	raw, err := s.complete(ctx, propsPrompt(s.tagCount, text))
	if err != nil {
		return nil, err
	}
	p := parseProperties(raw, s.tagCount)
	if !p.Usable() {
		return nil, apperr.ErrUnparsable
	}
	s.cachePut(key, p)
	return p, nil
}

// TestConnection issues a minimal request and reports reachability and
// auth validity. No document is touched and nothing is cached.
func (s *Service) TestConnection(ctx context.Context) models.CheckResult {
	if _, err := s.complete(ctx, checkPrompt); err != nil {
		return models.CheckResult{Success: false, Message: err.Error()}
	}
	defs := s.adapter.Defaults()
	model := s.cfg.Model
	if model == "" {
		model = defs.Model
	}
	return models.CheckResult{
		Success: true,
		Message: fmt.Sprintf("%s is reachable (model %s)", s.cfg.Kind, model),
	}
}

// InvalidateCache drops all cached generations, forcing fresh provider
// calls on subsequent requests.
func (s *Service) InvalidateCache() error {
	if s.cache == nil {
		return nil
	}
	return s.cache.InvalidateAll()
}

// complete performs one provider round trip under the configured timeout
// and returns the raw model text.
func (s *Service) complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := s.adapter.BuildRequest(ctx, s.cfg, prompt, s.maxTokens)
	if err != nil {
		return "", &apperr.ProviderError{Kind: apperr.NetworkError, Detail: err.Error()}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", &apperr.ProviderError{
				Kind:   apperr.Timeout,
				Detail: fmt.Sprintf("no response within %s", s.timeout),
			}
		}
		return "", &apperr.ProviderError{Kind: apperr.NetworkError, Detail: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		// The deadline can also expire mid-body, after Do returned.
		if errors.Is(err, context.DeadlineExceeded) {
			return "", &apperr.ProviderError{
				Kind:   apperr.Timeout,
				Detail: fmt.Sprintf("no response within %s", s.timeout),
			}
		}
		return "", &apperr.ProviderError{Kind: apperr.NetworkError, Detail: err.Error()}
	}
	return s.adapter.ParseResponse(resp.StatusCode, body)
}

func (s *Service) key(kind, text string) string {
	defs := s.adapter.Defaults()
	model := s.cfg.Model
	if model == "" {
		model = defs.Model
	}
	return fingerprint.Sum(string(s.cfg.Kind), model, kind, text)
}

func (s *Service) cacheGet(key string) (*models.Properties, bool) {
	if s.cache == nil {
		return nil, false
	}
	p, ok, err := s.cache.Get(key)
	if err != nil {
		s.logger.Warn("cache read failed", slog.String("error", err.Error()))
		return nil, false
	}
	return p, ok
}

func (s *Service) cachePut(key string, p *models.Properties) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Put(key, p, s.cacheTTL); err != nil {
		s.logger.Warn("cache write failed", slog.String("error", err.Error()))
	}
}
