package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists states in PostgreSQL. The schema comes from db/migrations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an open pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Get(ctx context.Context, chatID int64) (State, error) {
	var raw string
	err := s.pool.QueryRow(ctx, `SELECT state FROM conversation_states WHERE chat_id = $1`, chatID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return Start, nil
	}
	if err != nil {
		return "", fmt.Errorf("get state: %w", err)
	}
	return Parse(raw)
}

func (s *PostgresStore) Set(ctx context.Context, chatID int64, st State) error {
	if _, err := Parse(string(st)); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO conversation_states (chat_id, state, updated_at) VALUES ($1, $2, now())
ON CONFLICT (chat_id) DO UPDATE SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at`, chatID, string(st))
	if err != nil {
		return fmt.Errorf("set state: %w", err)
	}
	return nil
}

func (s *PostgresStore) Reset(ctx context.Context, chatID int64) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM conversation_states WHERE chat_id = $1`, chatID); err != nil {
		return fmt.Errorf("reset state: %w", err)
	}
	return nil
}
