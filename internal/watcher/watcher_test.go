package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

// recorder collects processed paths behind a mutex.
type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) process(_ context.Context, path string) {
	r.mu.Lock()
	r.paths = append(r.paths, path)
	r.mu.Unlock()
}

func (r *recorder) count(path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, p := range r.paths {
		if p == path {
			n++
		}
	}
	return n
}

func TestWatch_NewFileProcessed(t *testing.T) {
	vaultDir := t.TempDir()
	rec := &recorder{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, vaultDir, 100*time.Millisecond, testLogger(), rec.process)
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(vaultDir, "new.md"), []byte("# New"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.count("new.md") == 1
	}, "new file not processed by watcher")
}

func TestWatch_BurstCollapsed(t *testing.T) {
	vaultDir := t.TempDir()
	rec := &recorder{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, vaultDir, 300*time.Millisecond, testLogger(), rec.process)
	time.Sleep(100 * time.Millisecond)

	// Editors save in bursts of writes well inside the quiescence window.
	path := filepath.Join(vaultDir, "burst.md")
	for i := 0; i < 5; i++ {
		_ = os.WriteFile(path, []byte("# Burst"), 0o644)
		time.Sleep(30 * time.Millisecond)
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.count("burst.md") >= 1
	}, "burst not processed at all")

	// The timer must not fire again once the burst has drained.
	time.Sleep(500 * time.Millisecond)
	if got := rec.count("burst.md"); got != 1 {
		t.Errorf("burst processed %d times, want 1", got)
	}
}

func TestWatch_NonMarkdownIgnored(t *testing.T) {
	vaultDir := t.TempDir()
	rec := &recorder{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, vaultDir, 50*time.Millisecond, testLogger(), rec.process)
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(vaultDir, "data.json"), []byte("{}"), 0o644)
	_ = os.WriteFile(filepath.Join(vaultDir, "note.md"), []byte("# N"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.count("note.md") == 1
	}, "markdown file not processed")

	if rec.count("data.json") != 0 {
		t.Error("non-markdown file processed")
	}
}

func TestWatch_NewDirWatched(t *testing.T) {
	vaultDir := t.TempDir()
	rec := &recorder{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, vaultDir, 50*time.Millisecond, testLogger(), rec.process)
	time.Sleep(100 * time.Millisecond)

	subDir := filepath.Join(vaultDir, "subdir")
	_ = os.MkdirAll(subDir, 0o755)
	time.Sleep(300 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(subDir, "deep.md"), []byte("# Deep"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.count(filepath.Join("subdir", "deep.md")) == 1
	}, "file in new subdir not processed by watcher")
}

func TestWatch_RemoveCancelsPending(t *testing.T) {
	vaultDir := t.TempDir()
	rec := &recorder{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, vaultDir, 400*time.Millisecond, testLogger(), rec.process)
	time.Sleep(100 * time.Millisecond)

	path := filepath.Join(vaultDir, "gone.md")
	_ = os.WriteFile(path, []byte("# Gone"), 0o644)
	time.Sleep(100 * time.Millisecond)
	_ = os.Remove(path)

	time.Sleep(800 * time.Millisecond)
	if rec.count("gone.md") != 0 {
		t.Error("removed file still processed")
	}
}
