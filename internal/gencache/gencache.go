// Package gencache provides a SQLite-backed cache of generated properties
// keyed by request fingerprint, with lazy time-based eviction.
package gencache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/ansuz/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS generations (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	ttl_sec    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// Cache stores generation results. Safe for concurrent use; a racing
// lookup-then-insert pair may recompute a value, which is acceptable.
type Cache struct {
	conn *sql.DB
	now  func() time.Time
}

// Open opens (or creates) the cache database and applies the schema.
func Open(dsn string) (*Cache, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("gencache: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("gencache: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("gencache: apply schema: %w", err)
	}
	return &Cache{conn: conn, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (c *Cache) Close() error {
	return c.conn.Close()
}

// Get returns the cached properties for key, or ok=false when the key is
// absent or expired. Expired rows are deleted on access.
func (c *Cache) Get(key string) (*models.Properties, bool, error) {
	var (
		raw     string
		created int64
		ttlSec  int64
	)
	err := c.conn.QueryRow(
		`SELECT value, created_at, ttl_sec FROM generations WHERE key = ?`, key,
	).Scan(&raw, &created, &ttlSec)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("gencache: get: %w", err)
	}

	if c.now().Unix()-created > ttlSec {
		if _, err := c.conn.Exec(`DELETE FROM generations WHERE key = ?`, key); err != nil {
			return nil, false, fmt.Errorf("gencache: evict: %w", err)
		}
		return nil, false, nil
	}

	var p models.Properties
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		// Unreadable row: drop it and report a miss.
		_, _ = c.conn.Exec(`DELETE FROM generations WHERE key = ?`, key)
		return nil, false, nil
	}
	return &p, true, nil
}

// Put stores properties under key with the given ttl.
func (c *Cache) Put(key string, p *models.Properties, ttl time.Duration) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("gencache: encode: %w", err)
	}
	_, err = c.conn.Exec(`
		INSERT INTO generations (key, value, created_at, ttl_sec) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			created_at = excluded.created_at,
			ttl_sec = excluded.ttl_sec
	`, key, string(raw), c.now().Unix(), int64(ttl.Seconds()))
	if err != nil {
		return fmt.Errorf("gencache: put: %w", err)
	}
	return nil
}

// InvalidateAll removes every cached generation.
func (c *Cache) InvalidateAll() error {
	if _, err := c.conn.Exec(`DELETE FROM generations`); err != nil {
		return fmt.Errorf("gencache: invalidate: %w", err)
	}
	return nil
}

// EnsureProvider compares fp against the provider fingerprint recorded in
// the meta table and wipes all cached generations when it changed. Cached
// results are provider-specific; entries made under an old provider
// configuration must not leak into the new one.
func (c *Cache) EnsureProvider(fp string) error {
	var stored string
	err := c.conn.QueryRow(`SELECT value FROM meta WHERE key = 'provider'`).Scan(&stored)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("gencache: read provider fingerprint: %w", err)
	}
	if stored == fp {
		return nil
	}
	if stored != "" {
		if err := c.InvalidateAll(); err != nil {
			return err
		}
	}
	_, err = c.conn.Exec(`
		INSERT INTO meta (key, value) VALUES ('provider', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, fp)
	if err != nil {
		return fmt.Errorf("gencache: store provider fingerprint: %w", err)
	}
	return nil
}

// Len returns the number of stored rows, including not-yet-evicted
// expired ones.
func (c *Cache) Len() (int, error) {
	var n int
	if err := c.conn.QueryRow(`SELECT COUNT(*) FROM generations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("gencache: count: %w", err)
	}
	return n, nil
}
