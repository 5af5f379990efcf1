package db

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SchemaVersion is bumped whenever the table shapes change. There is no
// migration story: on a version mismatch the old tables are dropped and
// recreated from scratch.
const SchemaVersion = 2

var createStatements = []string{
	`CREATE TABLE IF NOT EXISTS markme_meta (
		schema_version INT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		full_name     TEXT NOT NULL,
		email         TEXT NOT NULL,
		role          TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		qr_token      TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_email_lower_uniq ON users (lower(email))`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_qr_token_uniq ON users (qr_token)`,
	`CREATE TABLE IF NOT EXISTS attendance (
		id        TEXT PRIMARY KEY,
		user_id   TEXT NOT NULL,
		user_name TEXT NOT NULL,
		day       TEXT NOT NULL,
		time_in   TIMESTAMPTZ NOT NULL,
		time_out  TIMESTAMPTZ,
		status    TEXT NOT NULL,
		CONSTRAINT attendance_user_day_uniq UNIQUE (user_id, day)
	)`,
	`CREATE INDEX IF NOT EXISTS attendance_day_idx ON attendance (day)`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id          TEXT PRIMARY KEY,
		user_id     TEXT NOT NULL,
		token_hash  TEXT NOT NULL,
		expires_at  TIMESTAMPTZ NOT NULL,
		revoked_at  TIMESTAMPTZ,
		replaced_by TEXT,
		created_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS jobs (
		id           TEXT PRIMARY KEY,
		type         TEXT NOT NULL,
		payload      JSONB NOT NULL,
		status       TEXT NOT NULL,
		attempts     INT NOT NULL DEFAULT 0,
		max_attempts INT NOT NULL,
		run_at       TIMESTAMPTZ NOT NULL,
		locked_at    TIMESTAMPTZ,
		locked_by    TEXT,
		last_error   TEXT,
		created_at   TIMESTAMPTZ NOT NULL,
		updated_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS jobs_claim_idx ON jobs (status, run_at)`,
	`CREATE TABLE IF NOT EXISTS notification_deliveries (
		kind       TEXT NOT NULL,
		user_id    TEXT NOT NULL,
		day        TEXT NOT NULL,
		job_id     TEXT NOT NULL,
		status     TEXT NOT NULL,
		last_error TEXT,
		sent_at    TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		CONSTRAINT deliveries_kind_user_day_uniq UNIQUE (kind, user_id, day)
	)`,
}

var dropStatements = []string{
	`DROP TABLE IF EXISTS notification_deliveries`,
	`DROP TABLE IF EXISTS jobs`,
	`DROP TABLE IF EXISTS refresh_tokens`,
	`DROP TABLE IF EXISTS attendance`,
	`DROP TABLE IF EXISTS users`,
	`DROP TABLE IF EXISTS markme_meta`,
}

// EnsureSchema creates the tables, destroying and recreating everything when
// the stored schema version does not match SchemaVersion.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, log *slog.Logger) error {
	var stored int

	err := pool.QueryRow(ctx, `SELECT schema_version FROM markme_meta LIMIT 1`).Scan(&stored)

	switch {
	case err == nil && stored == SchemaVersion:
		return nil

	case err == nil && stored != SchemaVersion:
		log.Warn("schema version mismatch, recreating tables", "stored", stored, "want", SchemaVersion)

		for _, stmt := range dropStatements {
			if _, err := pool.Exec(ctx, stmt); err != nil {
				return err
			}
		}

	case errors.Is(err, pgx.ErrNoRows):
		// meta table exists but is empty; fall through to create + stamp

	default:
		// most likely the meta table does not exist yet; creation below is
		// idempotent either way
	}

	for _, stmt := range createStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}

	if _, err := pool.Exec(ctx, `DELETE FROM markme_meta`); err != nil {
		return err
	}

	_, err = pool.Exec(ctx, `INSERT INTO markme_meta (schema_version) VALUES ($1)`, SchemaVersion)

	return err
}
