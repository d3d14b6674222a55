package rolestore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"procurement-client/core/procurement"
)

// PGStore persists roles in a key/value table.
type PGStore struct {
	pool *pgxpool.Pool
	key  string
}

// NewPGStore connects and initializes schema.
func NewPGStore(ctx context.Context, dsn, key string) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if key == "" {
		key = DefaultKey
	}
	s := &PGStore{pool: pool, key: key}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PGStore) initSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS client_settings (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updated_at TIMESTAMPTZ DEFAULT now()
);
`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func (s *PGStore) Load(ctx context.Context) (procurement.Role, bool, error) {
	var raw string
	err := s.pool.QueryRow(ctx, "SELECT value FROM client_settings WHERE key=$1", s.key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load role: %w", err)
	}
	return procurement.ParseRole(raw), true, nil
}

func (s *PGStore) Save(ctx context.Context, role procurement.Role) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO client_settings (key, value, updated_at) VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		s.key, role.String())
	if err != nil {
		return fmt.Errorf("save role: %w", err)
	}
	return nil
}

func (s *PGStore) Close() { s.pool.Close() }
