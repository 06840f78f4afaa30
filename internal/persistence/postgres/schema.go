package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Schema creates the run tables. Statements are idempotent.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS equilibrium_runs (
		id          UUID PRIMARY KEY,
		kind        TEXT NOT NULL,
		source      TEXT NOT NULL,
		assets      INTEGER NOT NULL,
		failures    INTEGER NOT NULL,
		dropped     INTEGER NOT NULL,
		model       JSONB NOT NULL,
		override    JSONB,
		started_at  TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS equilibrium_runs_kind_started_idx ON equilibrium_runs (kind, started_at DESC)`,
	`CREATE TABLE IF NOT EXISTS equilibrium_results (
		run_id             UUID NOT NULL REFERENCES equilibrium_runs (id) ON DELETE CASCADE,
		symbol             TEXT NOT NULL,
		rank               INTEGER NOT NULL,
		current_price      DOUBLE PRECISION NOT NULL,
		force_demand       DOUBLE PRECISION NOT NULL,
		force_supply       DOUBLE PRECISION NOT NULL,
		force_volatility   DOUBLE PRECISION NOT NULL,
		force_liquidity    DOUBLE PRECISION NOT NULL,
		force_speculation  DOUBLE PRECISION NOT NULL,
		equilibrium_shift  DOUBLE PRECISION NOT NULL,
		equilibrium_center DOUBLE PRECISION NOT NULL,
		band_lower         DOUBLE PRECISION NOT NULL,
		band_upper         DOUBLE PRECISION NOT NULL,
		tension_score      DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (run_id, symbol, rank)
	)`,
	`CREATE INDEX IF NOT EXISTS equilibrium_results_symbol_idx ON equilibrium_results (symbol)`,
	`CREATE TABLE IF NOT EXISTS equilibrium_failures (
		run_id UUID NOT NULL REFERENCES equilibrium_runs (id) ON DELETE CASCADE,
		symbol TEXT NOT NULL,
		rank   INTEGER NOT NULL,
		reason TEXT NOT NULL
	)`,
}

// Migrate applies Schema.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range Schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d failed: %w", i+1, err)
		}
	}
	return nil
}
