// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/teradata-labs/loom/internal/sqlitedriver" // registers "sqlite3" driver
)

// IndexEntry is one row of the session index: everything a session list view
// needs without reading every session's metadata.json off disk.
type IndexEntry struct {
	ID           string
	Title        string
	ModelName    string
	UpdatedAt    time.Time
	TotalCostUSD float64
}

// Index is an optional SQLite-backed accelerator for SessionStore.List. The
// JSON file layout under <root>/sessions/ remains the canonical store; Index
// only exists so listing sessions doesn't require a full directory walk plus
// a metadata.json read per session once a deployment accumulates thousands
// of them.
type Index struct {
	db *sql.DB
}

// OpenIndex opens (creating if necessary) a session index database at path.
func OpenIndex(path string) (*Index, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open index %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers; avoid SQLITE_BUSY churn

	const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id             TEXT PRIMARY KEY,
	title          TEXT NOT NULL DEFAULT '',
	model_name     TEXT NOT NULL DEFAULT '',
	updated_at     INTEGER NOT NULL,
	total_cost_usd REAL NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions(updated_at DESC);
`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: create index schema: %w", err)
	}

	return &Index{db: db}, nil
}

// Close releases the underlying database handle.
func (x *Index) Close() error {
	return x.db.Close()
}

// Upsert inserts or updates a session's index row.
func (x *Index) Upsert(ctx context.Context, entry IndexEntry) error {
	_, err := x.db.ExecContext(ctx, `
INSERT INTO sessions (id, title, model_name, updated_at, total_cost_usd)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	title = excluded.title,
	model_name = excluded.model_name,
	updated_at = excluded.updated_at,
	total_cost_usd = excluded.total_cost_usd
`, entry.ID, entry.Title, entry.ModelName, entry.UpdatedAt.Unix(), entry.TotalCostUSD)
	if err != nil {
		return fmt.Errorf("sqlite: upsert session %s: %w", entry.ID, err)
	}
	return nil
}

// Delete removes a session's index row. Deleting an absent row is not an
// error.
func (x *Index) Delete(ctx context.Context, id string) error {
	if _, err := x.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: delete session %s: %w", id, err)
	}
	return nil
}

// List returns every indexed session, most recently updated first.
func (x *Index) List(ctx context.Context) ([]IndexEntry, error) {
	rows, err := x.db.QueryContext(ctx, `
SELECT id, title, model_name, updated_at, total_cost_usd
FROM sessions
ORDER BY updated_at DESC
`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list sessions: %w", err)
	}
	defer rows.Close()

	var entries []IndexEntry
	for rows.Next() {
		var e IndexEntry
		var updatedAtUnix int64
		if err := rows.Scan(&e.ID, &e.Title, &e.ModelName, &updatedAtUnix, &e.TotalCostUSD); err != nil {
			return nil, fmt.Errorf("sqlite: scan session row: %w", err)
		}
		e.UpdatedAt = time.Unix(updatedAtUnix, 0).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Backup writes a timestamped, integrity-checked copy of the index database
// alongside it and returns the backup's path. The JSON session files are the
// durable record; this exists so the index can be restored without a full
// directory-walk rebuild after disk corruption takes out the `.db` file.
func (x *Index) Backup() (string, error) {
	path, err := x.Path()
	if err != nil {
		return "", err
	}
	return Backup(path)
}

// Path returns the backing database's file path, for use with Backup.
func (x *Index) Path() (string, error) {
	var path string
	row := x.db.QueryRow(`PRAGMA database_list`)
	var seq int
	var name string
	if err := row.Scan(&seq, &name, &path); err != nil {
		return "", fmt.Errorf("sqlite: resolve index path: %w", err)
	}
	return path, nil
}
