// Package sqlite stores per-machine metadata in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS machine_metadata (
	machine    TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (machine, key)
)`

// Entry is one metadata key/value pair of a machine.
type Entry struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}

// MetadataStore keeps machine metadata key/value pairs.
type MetadataStore struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*MetadataStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &MetadataStore{db: db, now: time.Now}, nil
}

func (s *MetadataStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Metadata returns the value stored under key for machine. The bool is false
// when no value is stored.
func (s *MetadataStore) Metadata(ctx context.Context, machine, key string) (string, bool, error) {
	const query = `SELECT value FROM machine_metadata WHERE machine = ? AND key = ?`

	var value string
	if err := s.db.QueryRowContext(ctx, query, machine, key).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read metadata %s/%s: %w", machine, key, err)
	}
	return value, true, nil
}

// SetMetadata stores value under key for machine, replacing any previous value.
func (s *MetadataStore) SetMetadata(ctx context.Context, machine, key, value string) error {
	const upsert = `
INSERT INTO machine_metadata (machine, key, value, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(machine, key) DO UPDATE SET
	value = excluded.value,
	updated_at = excluded.updated_at`

	updatedAt := s.now().UTC().Format(time.RFC3339Nano)
	if _, err := s.db.ExecContext(ctx, upsert, machine, key, value, updatedAt); err != nil {
		return fmt.Errorf("write metadata %s/%s: %w", machine, key, err)
	}
	return nil
}

// DeleteMetadata removes key for machine. Missing keys are not an error.
func (s *MetadataStore) DeleteMetadata(ctx context.Context, machine, key string) error {
	const del = `DELETE FROM machine_metadata WHERE machine = ? AND key = ?`
	if _, err := s.db.ExecContext(ctx, del, machine, key); err != nil {
		return fmt.Errorf("delete metadata %s/%s: %w", machine, key, err)
	}
	return nil
}

// List returns all metadata of machine sorted by key.
func (s *MetadataStore) List(ctx context.Context, machine string) ([]Entry, error) {
	const query = `SELECT key, value, updated_at FROM machine_metadata WHERE machine = ? ORDER BY key`

	rows, err := s.db.QueryContext(ctx, query, machine)
	if err != nil {
		return nil, fmt.Errorf("list metadata of %s: %w", machine, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			updatedAt string
		)
		if err := rows.Scan(&e.Key, &e.Value, &updatedAt); err != nil {
			return nil, fmt.Errorf("list metadata of %s: %w", machine, err)
		}
		if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
			e.UpdatedAt = t
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list metadata of %s: %w", machine, err)
	}
	return entries, nil
}

// Machines returns every machine with stored metadata.
func (s *MetadataStore) Machines(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT machine FROM machine_metadata ORDER BY machine`)
	if err != nil {
		return nil, fmt.Errorf("list machines: %w", err)
	}
	defer rows.Close()

	var machines []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("list machines: %w", err)
		}
		machines = append(machines, m)
	}
	return machines, rows.Err()
}
