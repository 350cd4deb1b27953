package postgres

import (
	"context"
	"fmt"
)

// schema creates the tables the bank persists to. Statements are
// idempotent so Migrate runs on every start.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		principal        TEXT PRIMARY KEY,
		cp               BIGINT NOT NULL DEFAULT 0 CHECK (cp >= 0),
		sp               BIGINT NOT NULL DEFAULT 0 CHECK (sp >= 0),
		ep               BIGINT NOT NULL DEFAULT 0 CHECK (ep >= 0),
		gp               BIGINT NOT NULL DEFAULT 0 CHECK (gp >= 0),
		pp               BIGINT NOT NULL DEFAULT 0 CHECK (pp >= 0),
		interest_bearing BOOLEAN NOT NULL,
		last_interest_at TIMESTAMPTZ NOT NULL,
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS settings (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id            UUID PRIMARY KEY,
		principal     TEXT,
		action        TEXT NOT NULL,
		resource_type TEXT NOT NULL,
		details       TEXT,
		ip_address    TEXT,
		created_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_logs_principal ON audit_logs (principal, created_at)`,
}

// Migrate applies the schema.
func Migrate(ctx context.Context, pool Pool) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d: %w", i+1, err)
		}
	}
	return nil
}
