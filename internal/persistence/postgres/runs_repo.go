package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sawpanic/equilibrium/internal/breakers"
	"github.com/sawpanic/equilibrium/internal/persistence"
)

// runsRepo implements RunsRepo for PostgreSQL
type runsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
	breaker *breakers.Breaker
}

// NewRunsRepo creates a new PostgreSQL runs repository
func NewRunsRepo(db *sqlx.DB, timeout time.Duration, breaker *breakers.Breaker) persistence.RunsRepo {
	return &runsRepo{
		db:      db,
		timeout: timeout,
		breaker: breaker,
	}
}

const insertRun = `
	INSERT INTO equilibrium_runs
	(id, kind, source, assets, failures, dropped, model, override, started_at, finished_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	RETURNING created_at`

const insertResult = `
	INSERT INTO equilibrium_results
	(run_id, symbol, rank, current_price, force_demand, force_supply, force_volatility,
	 force_liquidity, force_speculation, equilibrium_shift, equilibrium_center,
	 band_lower, band_upper, tension_score)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	ON CONFLICT (run_id, symbol, rank) DO NOTHING`

const insertFailure = `
	INSERT INTO equilibrium_failures (run_id, symbol, rank, reason)
	VALUES ($1, $2, $3, $4)`

// Save writes the run, its results, and its failures in one transaction
func (r *runsRepo) Save(ctx context.Context, run persistence.Run, results []persistence.AssetResult, failures []persistence.AssetFailure) error {
	if run.ID == uuid.Nil {
		return fmt.Errorf("run id is required")
	}

	modelJSON, err := json.Marshal(run.Model)
	if err != nil {
		return fmt.Errorf("failed to marshal model: %w", err)
	}
	var overrideJSON *string
	if run.Override != nil {
		b, err := json.Marshal(run.Override)
		if err != nil {
			return fmt.Errorf("failed to marshal override: %w", err)
		}
		s := string(b)
		overrideJSON = &s
	}

	_, err = r.breaker.Execute(func() (any, error) {
		ctx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		return nil, r.save(ctx, run, string(modelJSON), overrideJSON, results, failures)
	})
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}
	return nil
}

func (r *runsRepo) save(ctx context.Context, run persistence.Run, modelJSON string, overrideJSON *string, results []persistence.AssetResult, failures []persistence.AssetFailure) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := tx.QueryRowxContext(ctx, insertRun,
		run.ID, run.Kind, run.Source, run.Assets, run.Failures, run.Dropped,
		modelJSON, overrideJSON, run.StartedAt, run.FinishedAt).
		Scan(&run.CreatedAt); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if len(results) > 0 {
		stmt, err := tx.PreparexContext(ctx, insertResult)
		if err != nil {
			return fmt.Errorf("prepare results: %w", err)
		}
		defer stmt.Close()

		for _, res := range results {
			if _, err := stmt.ExecContext(ctx,
				run.ID, res.Symbol, res.Rank, res.CurrentPrice,
				res.ForceDemand, res.ForceSupply, res.ForceVolatility,
				res.ForceLiquidity, res.ForceSpeculation,
				res.EquilibriumShift, res.EquilibriumCenter,
				res.BandLower, res.BandUpper, res.TensionScore); err != nil {
				return fmt.Errorf("insert result %s: %w", res.Symbol, err)
			}
		}
	}

	for _, f := range failures {
		if _, err := tx.ExecContext(ctx, insertFailure, run.ID, f.Symbol, f.Rank, f.Reason); err != nil {
			return fmt.Errorf("insert failure %s: %w", f.Symbol, err)
		}
	}

	return tx.Commit()
}

// Latest returns the most recent run of a kind
func (r *runsRepo) Latest(ctx context.Context, kind string) (*persistence.Run, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, kind, source, assets, failures, dropped, model, override,
		       started_at, finished_at, created_at
		FROM equilibrium_runs
		WHERE kind = $1
		ORDER BY started_at DESC
		LIMIT 1`

	run, err := scanRun(r.db.QueryRowxContext(ctx, query, kind))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return run, nil
}

// Results returns a run's results ordered by rank
func (r *runsRepo) Results(ctx context.Context, runID uuid.UUID) ([]persistence.AssetResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT run_id, symbol, rank, current_price, force_demand, force_supply,
		       force_volatility, force_liquidity, force_speculation, equilibrium_shift,
		       equilibrium_center, band_lower, band_upper, tension_score
		FROM equilibrium_results
		WHERE run_id = $1
		ORDER BY rank ASC`

	var results []persistence.AssetResult
	if err := r.db.SelectContext(ctx, &results, query, runID); err != nil {
		return nil, fmt.Errorf("failed to list results for run %s: %w", runID, err)
	}
	return results, nil
}

// History returns the most recent results for one symbol across runs
func (r *runsRepo) History(ctx context.Context, symbol string, limit int) ([]persistence.AssetResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT res.run_id, res.symbol, res.rank, res.current_price, res.force_demand,
		       res.force_supply, res.force_volatility, res.force_liquidity,
		       res.force_speculation, res.equilibrium_shift, res.equilibrium_center,
		       res.band_lower, res.band_upper, res.tension_score
		FROM equilibrium_results res
		JOIN equilibrium_runs run ON run.id = res.run_id
		WHERE res.symbol = $1
		ORDER BY run.started_at DESC
		LIMIT $2`

	var results []persistence.AssetResult
	if err := r.db.SelectContext(ctx, &results, query, symbol, limit); err != nil {
		return nil, fmt.Errorf("failed to get history for %s: %w", symbol, err)
	}
	return results, nil
}

func scanRun(row *sqlx.Row) (*persistence.Run, error) {
	var run persistence.Run
	var modelJSON, overrideJSON []byte

	err := row.Scan(
		&run.ID, &run.Kind, &run.Source, &run.Assets, &run.Failures, &run.Dropped,
		&modelJSON, &overrideJSON, &run.StartedAt, &run.FinishedAt, &run.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(modelJSON, &run.Model); err != nil {
		return nil, fmt.Errorf("failed to unmarshal model: %w", err)
	}
	if len(overrideJSON) > 0 {
		if err := json.Unmarshal(overrideJSON, &run.Override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal override: %w", err)
		}
	}
	return &run, nil
}
