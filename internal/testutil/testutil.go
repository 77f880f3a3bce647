// Package testutil provides shared test helpers for setting up vaults and caches.
package testutil

import (
	"os"
	"testing"

	"github.com/starford/ansuz/internal/gencache"
	"github.com/starford/ansuz/internal/storage"
)

// TestVault creates a temporary vault directory with a storage.Provider.
func TestVault(t *testing.T) (string, storage.Provider) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// TestCache creates a temporary SQLite generation cache that is
// automatically cleaned up.
func TestCache(t *testing.T) *gencache.Cache {
	t.Helper()
	dbFile, err := os.CreateTemp("", "ansuz-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	cache, err := gencache.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { cache.Close() })
	return cache
}
