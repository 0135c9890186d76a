package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aretw0/arbor/pkg/domain"
)

// Store implements ports.StateStore on a SQLite table, one row per session.
type Store struct {
	db *sql.DB
}

// NewStore wraps a database prepared by Open.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Save upserts the checkpoint row.
func (s *Store) Save(ctx context.Context, sessionID string, state *domain.ExecutionState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	query := `INSERT INTO checkpoints (session_id, state, revision, updated_at)
		VALUES (?, ?, ?, datetime('now'))
		ON CONFLICT(session_id) DO UPDATE SET
			state = excluded.state,
			revision = excluded.revision,
			updated_at = excluded.updated_at`
	if _, err := s.db.ExecContext(ctx, query, sessionID, string(data), state.Revision); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// Load reads the checkpoint row.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.ExecutionState, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT state FROM checkpoints WHERE session_id = ?`, sessionID).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	var state domain.ExecutionState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCheckpointCorrupt, err)
	}
	return &state, nil
}

// Delete removes the checkpoint row.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

// List returns session IDs, most recently updated first.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT session_id FROM checkpoints ORDER BY updated_at DESC, session_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer rows.Close()

	sessions := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		sessions = append(sessions, id)
	}
	return sessions, rows.Err()
}
