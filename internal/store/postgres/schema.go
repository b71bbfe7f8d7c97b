package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS entries (
	id         BIGSERIAL PRIMARY KEY,
	key        TEXT NOT NULL UNIQUE,
	payload    JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS scheduler_lock (
	id                 SMALLINT PRIMARY KEY DEFAULT 1,
	last_refreshed_at  TIMESTAMPTZ NOT NULL,
	CONSTRAINT scheduler_lock_singleton CHECK (id = 1)
);
`

// EnsureSchema creates the entries and scheduler_lock tables if they do
// not already exist. Called by cmd/schema, and by cmd/scheduler at startup
// when the Postgres backend is selected.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}
