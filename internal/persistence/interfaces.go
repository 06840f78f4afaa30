package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested run does not exist.
var ErrNotFound = errors.New("not found")

// Run is one evaluation of a dataset with one model.
type Run struct {
	ID         uuid.UUID      `json:"id" db:"id"`
	Kind       string         `json:"kind" db:"kind"`
	Source     string         `json:"source" db:"source"`
	Assets     int            `json:"assets" db:"assets"`
	Failures   int            `json:"failures" db:"failures"`
	Dropped    int            `json:"dropped" db:"dropped"`
	Model      map[string]any `json:"model" db:"model"`
	Override   map[string]any `json:"override,omitempty" db:"override"`
	StartedAt  time.Time      `json:"started_at" db:"started_at"`
	FinishedAt time.Time      `json:"finished_at" db:"finished_at"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
}

// AssetResult is the persisted equilibrium of one asset within a run.
type AssetResult struct {
	RunID             uuid.UUID `json:"run_id" db:"run_id"`
	Symbol            string    `json:"symbol" db:"symbol"`
	Rank              int       `json:"rank" db:"rank"`
	CurrentPrice      float64   `json:"current_price" db:"current_price"`
	ForceDemand       float64   `json:"force_demand" db:"force_demand"`
	ForceSupply       float64   `json:"force_supply" db:"force_supply"`
	ForceVolatility   float64   `json:"force_volatility" db:"force_volatility"`
	ForceLiquidity    float64   `json:"force_liquidity" db:"force_liquidity"`
	ForceSpeculation  float64   `json:"force_speculation" db:"force_speculation"`
	EquilibriumShift  float64   `json:"equilibrium_shift" db:"equilibrium_shift"`
	EquilibriumCenter float64   `json:"equilibrium_center" db:"equilibrium_center"`
	BandLower         float64   `json:"band_lower" db:"band_lower"`
	BandUpper         float64   `json:"band_upper" db:"band_upper"`
	TensionScore      float64   `json:"tension_score" db:"tension_score"`
}

// AssetFailure records an asset that was excluded from a run.
type AssetFailure struct {
	RunID  uuid.UUID `json:"run_id" db:"run_id"`
	Symbol string    `json:"symbol" db:"symbol"`
	Rank   int       `json:"rank" db:"rank"`
	Reason string    `json:"reason" db:"reason"`
}

// RunsRepo stores evaluation runs and their per-asset outcomes.
type RunsRepo interface {
	// Save writes the run, its results, and its failures atomically.
	Save(ctx context.Context, run Run, results []AssetResult, failures []AssetFailure) error

	// Latest returns the most recent run of a kind.
	Latest(ctx context.Context, kind string) (*Run, error)

	// Results returns a run's results ordered by rank.
	Results(ctx context.Context, runID uuid.UUID) ([]AssetResult, error)

	// History returns the most recent results for one symbol across runs.
	History(ctx context.Context, symbol string, limit int) ([]AssetResult, error)
}

// Repository aggregates all persistence interfaces
type Repository struct {
	Runs RunsRepo
}

// HealthCheck represents repository health status
type HealthCheck struct {
	Healthy        bool           `json:"healthy"`
	Errors         []string       `json:"errors,omitempty"`
	ConnectionPool map[string]int `json:"connection_pool"`
	LastCheck      time.Time      `json:"last_check"`
	ResponseTimeMS int64          `json:"response_time_ms"`
}

// RepositoryHealth provides health monitoring for persistence layer
type RepositoryHealth interface {
	Health(ctx context.Context) HealthCheck
	Ping(ctx context.Context) error
}
