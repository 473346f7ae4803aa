package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

// schema is applied idempotently at startup. model, model_script and
// user_subscription are owned by the upload and billing flows; they are
// created here so a fresh database can serve the gateway on its own.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS model (
		id          UUID PRIMARY KEY,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		name        TEXT NOT NULL UNIQUE,
		model_type  TEXT NOT NULL DEFAULT '',
		source_url  TEXT NOT NULL DEFAULT '',
		revision    TEXT NOT NULL DEFAULT '',
		parameters  BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS model_script (
		id          UUID PRIMARY KEY,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		model_id    UUID NOT NULL UNIQUE REFERENCES model(id) ON DELETE CASCADE,
		content     TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS deployment (
		id          UUID PRIMARY KEY,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		model_id    UUID NOT NULL REFERENCES model(id) ON DELETE CASCADE,
		status      TEXT NOT NULL,
		url         TEXT NOT NULL DEFAULT '',
		api_key     TEXT NOT NULL,
		gpu_type    TEXT NOT NULL DEFAULT 'default',
		last_error  TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS deployment_model_id_key ON deployment (model_id)`,
	`CREATE TABLE IF NOT EXISTS user_subscription (
		id          UUID PRIMARY KEY,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		user_id     TEXT NOT NULL,
		model_id    UUID NOT NULL REFERENCES model(id) ON DELETE CASCADE,
		api_key     TEXT NOT NULL,
		status      TEXT NOT NULL,
		end_date    TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS user_subscription_key_idx ON user_subscription (api_key, model_id)`,
	`CREATE TABLE IF NOT EXISTS model_api_call (
		id             UUID PRIMARY KEY,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		model_id       UUID REFERENCES model(id) ON DELETE SET NULL,
		identifier     TEXT NOT NULL,
		latency_ms     BIGINT NOT NULL,
		status_code    INTEGER NOT NULL,
		error_message  TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS model_api_call_model_idx ON model_api_call (model_id, created_at)`,
}

// Migrate creates the tables the gateway reads and writes.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i, err)
		}
	}
	log.WithField("statements", len(schema)).Info("database schema up to date")
	return nil
}
