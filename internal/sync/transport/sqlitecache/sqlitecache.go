// Package sqlitecache is the durable local cache transport: a SQLite-backed
// key/value table holding the JSON-serialized snapshot. It acts as the
// write-through backstop on every successful sync and as the fallback
// source of truth when no networked transport is reachable.
package sqlitecache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"checkdesk/internal/roster/models"
	"checkdesk/internal/sync/transport"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value BLOB NOT NULL
);`

// Cache persists snapshots in a local SQLite database.
type Cache struct {
	db  *sql.DB
	key string
}

// Open opens (or creates) the cache database at path. The namespace keeps
// multiple deployments from sharing a snapshot key.
func Open(path, namespace string) (*Cache, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("cache path is required")
	}
	// The driver only honors _pragma=name(value) parameters; the pragmas
	// must apply on every pooled connection or concurrent readers hit
	// SQLITE_BUSY with no retry window.
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping cache db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}
	return &Cache{db: db, key: namespace + "_snapshot"}, nil
}

// Close closes the database handle.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Name implements transport.Transport.
func (c *Cache) Name() string { return "cache" }

// Push overwrites the cached snapshot.
func (c *Cache) Push(ctx context.Context, env transport.Envelope) error {
	raw, err := json.Marshal(env.Snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		c.key, raw)
	if err != nil {
		return fmt.Errorf("write cached snapshot: %w", err)
	}
	return nil
}

// Pull reads the cached snapshot. Returns nil, nil when the cache is empty.
func (c *Cache) Pull(ctx context.Context) (*models.Snapshot, error) {
	var raw []byte
	err := c.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, c.key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cached snapshot: %w", err)
	}
	var snap models.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode cached snapshot: %w", err)
	}
	return &snap, nil
}

// Delete removes the cached snapshot. Backs the reset action.
func (c *Cache) Delete(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, c.key); err != nil {
		return fmt.Errorf("delete cached snapshot: %w", err)
	}
	return nil
}

// Health reports whether the database handle is usable.
func (c *Cache) Health(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

var _ transport.Transport = (*Cache)(nil)
