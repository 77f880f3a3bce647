// Package noteservice runs the per-note annotation pipeline: read,
// generate, merge, write, report.
package noteservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/fingerprint"
	"github.com/starford/ansuz/internal/frontmatter"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/storage"
)

// Generator produces metadata from note content.
type Generator interface {
	FetchTags(ctx context.Context, text string) ([]string, error)
	FetchProperties(ctx context.Context, text string) (*models.Properties, error)
}

// Service coordinates storage, generation, and frontmatter merging.
type Service struct {
	store  storage.Provider
	gen    Generator
	props  bool // generate the full property set, not just tags
	logger *slog.Logger

	flight singleflight.Group

	// lastWritten records the checksum of our own most recent write per
	// path, so watcher events caused by that write are recognized and
	// skipped instead of triggering another provider call.
	mu          sync.Mutex
	lastWritten map[string]string
}

// NewService creates a note service. When generateProperties is true,
// ProcessNote requests the full property set and applies scalar
// overwrites; otherwise it only merges tags.
func NewService(store storage.Provider, gen Generator, generateProperties bool, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:       store,
		gen:         gen,
		props:       generateProperties,
		logger:      logger,
		lastWritten: make(map[string]string),
	}
}

// ProcessNote runs the full pipeline for one note. Concurrent calls for
// the same path collapse into a single run; each run completes before its
// result is applied, so no partial state is ever visible.
func (s *Service) ProcessNote(ctx context.Context, path string, force bool) (models.MergeResult, error) {
	v, err, _ := s.flight.Do(path, func() (any, error) {
		return s.process(ctx, path, force)
	})
	if err != nil {
		return models.MergeResult{}, err
	}
	return v.(models.MergeResult), nil
}

func (s *Service) process(ctx context.Context, path string, force bool) (models.MergeResult, error) {
	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return models.MergeResult{}, apperr.ErrNotFound
		}
		return models.MergeResult{}, err
	}

	// A forced run must always reach the merge rules: the guard only
	// exists to stop watcher echoes of unforced pipeline output.
	if !force && s.isOwnWrite(path, data) {
		return models.MergeResult{Updated: false, Message: "no changes since last annotation"}, nil
	}

	doc := frontmatter.Parse(data)
	body := string(doc.Body())

	var res models.MergeResult
	if s.props {
		p, err := s.gen.FetchProperties(ctx, body)
		if err != nil {
			if errors.Is(err, apperr.ErrUnparsable) {
				return models.MergeResult{Updated: false, Message: "no usable metadata found"}, nil
			}
			return models.MergeResult{}, err
		}
		res = doc.MergeProperties(p, force)
	} else {
		tags, err := s.gen.FetchTags(ctx, body)
		if err != nil {
			return models.MergeResult{}, err
		}
		if len(tags) == 0 {
			return models.MergeResult{Updated: false, Message: "no tags found"}, nil
		}
		res = doc.MergeTags(tags, force)
	}

	if !res.Updated {
		s.rememberWrite(path, data)
		return res, nil
	}

	out := doc.Bytes()
	if err := s.store.Write(path, out); err != nil {
		return models.MergeResult{}, fmt.Errorf("write %s: %w", path, err)
	}
	s.rememberWrite(path, out)

	s.logger.Info("note annotated",
		slog.String("path", path),
		slog.String("result", res.Message))
	return res, nil
}

// UpdateTags merges the given tags into a note without calling the
// provider. Idempotent: a second run with the same tags changes nothing.
func (s *Service) UpdateTags(path string, tags []string, force bool) (models.MergeResult, error) {
	return s.merge(path, func(doc *frontmatter.Document) models.MergeResult {
		return doc.MergeTags(tags, force)
	})
}

// UpdateFrontmatter merges a full property set into a note without
// calling the provider.
func (s *Service) UpdateFrontmatter(path string, p *models.Properties, force bool) (models.MergeResult, error) {
	return s.merge(path, func(doc *frontmatter.Document) models.MergeResult {
		return doc.MergeProperties(p, force)
	})
}

func (s *Service) merge(path string, apply func(*frontmatter.Document) models.MergeResult) (models.MergeResult, error) {
	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return models.MergeResult{}, apperr.ErrNotFound
		}
		return models.MergeResult{}, err
	}
	doc := frontmatter.Parse(data)
	res := apply(doc)
	if !res.Updated {
		return res, nil
	}
	out := doc.Bytes()
	if err := s.store.Write(path, out); err != nil {
		return models.MergeResult{}, fmt.Errorf("write %s: %w", path, err)
	}
	s.rememberWrite(path, out)
	return res, nil
}

func (s *Service) isOwnWrite(path string, data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastWritten[path] == fingerprint.Sum(string(data))
}

func (s *Service) rememberWrite(path string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastWritten[path] = fingerprint.Sum(string(data))
}
