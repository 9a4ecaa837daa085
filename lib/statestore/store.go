// Package statestore persists opaque state snapshots keyed by name.
// Load and Save operate on whole documents, there are no partial
// updates: a run either commits its full snapshot or nothing, so a
// crash mid-run can never leave a half-written state behind.
package statestore

import (
	"context"
	"database/sql"
	"errors"

	"restockd/lib/statestore/db"
	"restockd/lib/timezone"
)

type Store struct {
	db *sql.DB
}

func NewStore(database *sql.DB) Store {
	return Store{db: database}
}

// EnsureSchema creates the snapshot table when it doesn't exist yet.
func (s Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, db.Schema)
	return err
}

// Load returns the snapshot stored under key, or nil when the key has
// never been written.
func (s Store) Load(ctx context.Context, key string) ([]byte, error) {
	var data string
	err := s.db.QueryRowContext(
		ctx,
		"SELECT data FROM state_snapshots WHERE key = ?",
		key,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(data), nil
}

// Save upserts the snapshot under key in a single statement.
func (s Store) Save(ctx context.Context, key string, data []byte) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO state_snapshots (key, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		key,
		string(data),
		timezone.Now().Unix(),
	)
	return err
}
