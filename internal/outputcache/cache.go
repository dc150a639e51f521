// Package outputcache stores rendered pane output in SQLite so a remounted
// pane can be seeded with its history.
package outputcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"pkt.systems/termdeck/schema"
	"pkt.systems/pslog"
)

// DefaultMaxPayloadsPerPane caps the cached history of a single pane.
const DefaultMaxPayloadsPerPane = 2000

// Cache is a per-workspace payload history backed by SQLite.
type Cache struct {
	db         *sql.DB
	workspace  schema.WorkspaceID
	maxPerPane int
	log        pslog.Logger
}

// Options tunes a cache.
type Options struct {
	MaxPayloadsPerPane int
	Logger             pslog.Logger
}

// Open opens (or creates) the cache database at path and applies migrations.
func Open(ctx context.Context, path string, workspace schema.WorkspaceID, opts Options) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil && !errors.Is(err, os.ErrNotExist) {
		_ = db.Close()
		return nil, fmt.Errorf("chmod cache path: %w", err)
	}
	if err := ApplyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	max := opts.MaxPayloadsPerPane
	if max <= 0 {
		max = DefaultMaxPayloadsPerPane
	}
	log := opts.Logger
	if log == nil {
		log = pslog.Ctx(ctx)
	}
	return &Cache{db: db, workspace: workspace, maxPerPane: max, log: log.With("cache", path)}, nil
}

// Close releases the database.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// LoadPaneHistory returns the cached payloads of a pane in display order.
func (c *Cache) LoadPaneHistory(ctx context.Context, tabID schema.TabID, paneID schema.PaneID) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `
SELECT payload FROM pane_output
WHERE workspace_id = ? AND tab_id = ? AND pane_id = ?
ORDER BY seq ASC`, string(c.workspace), string(tabID), string(paneID))
	if err != nil {
		return nil, fmt.Errorf("query pane history: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan pane history: %w", err)
		}
		out = append(out, payload)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pane history: %w", err)
	}
	c.log.Trace("cache history loaded", "tab", tabID, "pane", paneID, "payloads", len(out))
	return out, nil
}

// RecordPayload appends a payload to the pane's history, trimming the
// oldest entries beyond the per-pane cap.
func (c *Cache) RecordPayload(ctx context.Context, tabID schema.TabID, paneID schema.PaneID, payload string) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO pane_output(workspace_id, tab_id, pane_id, payload, recorded_at)
VALUES (?, ?, ?, ?, ?)`, string(c.workspace), string(tabID), string(paneID), payload, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert payload: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
DELETE FROM pane_output
WHERE workspace_id = ? AND tab_id = ? AND pane_id = ? AND seq <= (
	SELECT seq FROM pane_output
	WHERE workspace_id = ? AND tab_id = ? AND pane_id = ?
	ORDER BY seq DESC LIMIT 1 OFFSET ?
)`, string(c.workspace), string(tabID), string(paneID), string(c.workspace), string(tabID), string(paneID), c.maxPerPane); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("trim pane history: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit record: %w", err)
	}
	return nil
}

// DropPane forgets a pane's history.
func (c *Cache) DropPane(ctx context.Context, tabID schema.TabID, paneID schema.PaneID) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM pane_output WHERE workspace_id = ? AND tab_id = ? AND pane_id = ?`, string(c.workspace), string(tabID), string(paneID))
	if err != nil {
		return fmt.Errorf("drop pane history: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		c.log.Debug("cache pane dropped", "tab", tabID, "pane", paneID, "payloads", n)
	}
	return nil
}

// DropTab forgets the history of every pane of a tab.
func (c *Cache) DropTab(ctx context.Context, tabID schema.TabID) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM pane_output WHERE workspace_id = ? AND tab_id = ?`, string(c.workspace), string(tabID)); err != nil {
		return fmt.Errorf("drop tab history: %w", err)
	}
	return nil
}
