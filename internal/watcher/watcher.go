// Package watcher turns filesystem change events in the vault into
// debounced annotation requests.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ProcessFunc is called with the vault-relative path of a note once its
// quiescence window has elapsed without further events.
type ProcessFunc func(ctx context.Context, path string)

// Watch starts an fsnotify watcher on the vault root and invokes process
// for changed .md files until ctx is cancelled.
//
// Editors fire bursts of Write events while a file is being saved, so each
// path carries its own debounce timer: every new event resets it, and
// process runs only after quiescence of inactivity. New directories created
// at runtime are automatically added to the watch list.
func Watch(ctx context.Context, root string, quiescence time.Duration, logger *slog.Logger, process ProcessFunc) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started",
		slog.String("root", root),
		slog.Duration("quiescence", quiescence))

	var mu sync.Mutex
	pending := make(map[string]*time.Timer)

	defer func() {
		mu.Lock()
		for _, t := range pending {
			t.Stop()
		}
		mu.Unlock()
	}()

	schedule := func(rel string) {
		mu.Lock()
		defer mu.Unlock()
		if t, ok := pending[rel]; ok {
			t.Reset(quiescence)
			return
		}
		pending[rel] = time.AfterFunc(quiescence, func() {
			mu.Lock()
			delete(pending, rel)
			mu.Unlock()
			if ctx.Err() != nil {
				return
			}
			logger.Debug("watcher: quiesced", slog.String("path", rel))
			process(ctx, rel)
		})
	}

	cancel := func(rel string) {
		mu.Lock()
		defer mu.Unlock()
		if t, ok := pending[rel]; ok {
			t.Stop()
			delete(pending, rel)
		}
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher: stopped")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					continue
				}
			}

			if !strings.HasSuffix(absPath, ".md") {
				continue
			}

			rel, relErr := filepath.Rel(root, absPath)
			if relErr != nil {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				schedule(rel)

			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				// A pending timer for a removed file would fire on a path
				// that no longer exists.
				cancel(rel)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
