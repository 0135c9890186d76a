// Package sqlite provides SQLite-backed adapters: a checkpoint store and a local section index
// that serves retrieval requests without a remote backend.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "github.com/glebarez/go-sqlite"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS checkpoints (
		session_id TEXT PRIMARY KEY,
		state TEXT NOT NULL,
		revision INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`,
	`CREATE TABLE IF NOT EXISTS sections (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		num TEXT NOT NULL,
		title TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT 'Other'
	);`,
	`CREATE TABLE IF NOT EXISTS chunks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		section_id INTEGER NOT NULL REFERENCES sections(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		data_type TEXT NOT NULL DEFAULT 'Other',
		content TEXT NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS chunks_section ON chunks(section_id, seq);`,
}

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	for _, q := range schema {
		if _, err := db.Exec(q); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return db, nil
}
