// Package pipeline orchestrates dataset preparation, scenario simulation,
// and the market map on top of the equilibrium engine.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/sawpanic/equilibrium/internal/cache"
	"github.com/sawpanic/equilibrium/internal/config"
	"github.com/sawpanic/equilibrium/internal/dataset"
	"github.com/sawpanic/equilibrium/internal/equilibrium"
	"github.com/sawpanic/equilibrium/internal/metrics"
	"github.com/sawpanic/equilibrium/internal/persistence"
)

// RunKindPrepare labels persisted dataset preparations.
const RunKindPrepare = "prepare"

// Executor runs the simulator's use cases. It is safe for concurrent use.
type Executor struct {
	cfg     *config.Config
	engine  *equilibrium.Engine
	cache   cache.Cache
	runs    persistence.RunsRepo
	metrics *metrics.Registry

	group   singleflight.Group
	mu      sync.RWMutex
	records []dataset.Record
}

// Option configures an Executor.
type Option func(*Executor)

// WithCache sets the scenario result cache. The default is in-memory.
func WithCache(c cache.Cache) Option {
	return func(e *Executor) { e.cache = c }
}

// WithRuns enables persistence of preparation runs.
func WithRuns(r persistence.RunsRepo) Option {
	return func(e *Executor) { e.runs = r }
}

// WithMetrics sets the metrics registry. The default is a fresh registry.
func WithMetrics(m *metrics.Registry) Option {
	return func(e *Executor) { e.metrics = m }
}

// NewExecutor builds the engine from cfg.Model and applies the options.
func NewExecutor(cfg *config.Config, opts ...Option) (*Executor, error) {
	engine, err := equilibrium.NewEngine(cfg.Model, equilibrium.WithWorkers(cfg.Batch.Workers))
	if err != nil {
		return nil, err
	}

	e := &Executor{cfg: cfg, engine: engine}
	for _, opt := range opts {
		opt(e)
	}
	if e.cache == nil {
		e.cache = cache.NewMemory()
	}
	if e.metrics == nil {
		e.metrics = metrics.New()
	}
	return e, nil
}

// Engine returns the engine bound to the configured model.
func (e *Executor) Engine() *equilibrium.Engine { return e.engine }

// Metrics returns the registry the executor records into.
func (e *Executor) Metrics() *metrics.Registry { return e.metrics }

// Config returns the executor's configuration.
func (e *Executor) Config() *config.Config { return e.cfg }

// AssetFailure is a per-asset failure in a form fit for reports.
type AssetFailure struct {
	Symbol string `json:"symbol"`
	Rank   int    `json:"rank"`
	Reason string `json:"reason"`
	Error  string `json:"error"`
}

// Report summarizes one preparation run.
type Report struct {
	RunID     uuid.UUID      `json:"run_id"`
	Source    string         `json:"source"`
	Output    string         `json:"output"`
	Assets    int            `json:"assets"`
	Evaluated int            `json:"evaluated"`
	Dropped   int            `json:"dropped"`
	Failures  []AssetFailure `json:"failures,omitempty"`
	Persisted bool           `json:"persisted"`
	Duration  time.Duration  `json:"duration"`
}

// Prepare reads the raw dataset, evaluates every asset, and writes the
// processed cache. Per-asset failures are reported, not fatal.
func (e *Executor) Prepare(ctx context.Context) (*Report, []dataset.Record, error) {
	start := time.Now()
	paths := e.cfg.Paths

	ds, err := dataset.Read(paths.RawDataset, paths.RawSheet)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read raw dataset: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	batchStart := time.Now()
	result := e.engine.EvaluateBatch(ds.Assets)
	e.metrics.ObserveBatch("baseline", len(ds.Assets), result, time.Since(batchStart))

	records := dataset.Records(ds.Assets, result)
	if err := dataset.WriteParquet(paths.Processed, records); err != nil {
		return nil, nil, err
	}

	report := &Report{
		RunID:     uuid.New(),
		Source:    ds.Source,
		Output:    paths.Processed,
		Assets:    len(ds.Assets),
		Evaluated: len(records),
		Dropped:   ds.Dropped,
	}
	for _, f := range result.Failures {
		report.Failures = append(report.Failures, AssetFailure{
			Symbol: f.Key.Symbol,
			Rank:   f.Key.Rank,
			Reason: metrics.FailureReason(f),
			Error:  f.Err.Error(),
		})
		log.Warn().Str("symbol", f.Key.Symbol).Int("rank", f.Key.Rank).Err(f.Err).Msg("Asset excluded from evaluation")
	}

	if e.runs != nil {
		if err := e.persist(ctx, report, records, start); err != nil {
			log.Error().Err(err).Str("run_id", report.RunID.String()).Msg("Failed to persist run")
		} else {
			report.Persisted = true
		}
	}

	e.setRecords(records)
	report.Duration = time.Since(start)

	log.Info().
		Str("run_id", report.RunID.String()).
		Int("assets", report.Assets).
		Int("evaluated", report.Evaluated).
		Int("failures", len(report.Failures)).
		Int("dropped", report.Dropped).
		Dur("duration", report.Duration).
		Msg("Dataset prepared")

	return report, records, nil
}

func (e *Executor) persist(ctx context.Context, report *Report, records []dataset.Record, start time.Time) error {
	model, err := toMap(e.engine.Model())
	if err != nil {
		return err
	}

	run := persistence.Run{
		ID:         report.RunID,
		Kind:       RunKindPrepare,
		Source:     report.Source,
		Assets:     report.Evaluated,
		Failures:   len(report.Failures),
		Dropped:    report.Dropped,
		Model:      model,
		StartedAt:  start.UTC(),
		FinishedAt: time.Now().UTC(),
	}

	results := make([]persistence.AssetResult, len(records))
	for i, r := range records {
		results[i] = persistence.AssetResult{
			RunID:             report.RunID,
			Symbol:            r.Symbol,
			Rank:              int(r.Rank),
			CurrentPrice:      r.CurrentPrice,
			ForceDemand:       r.ForceDemand,
			ForceSupply:       r.ForceSupply,
			ForceVolatility:   r.ForceVolatility,
			ForceLiquidity:    r.ForceLiquidity,
			ForceSpeculation:  r.ForceSpeculation,
			EquilibriumShift:  r.EquilibriumShift,
			EquilibriumCenter: r.EquilibriumCenter,
			BandLower:         r.EquilibriumLower,
			BandUpper:         r.EquilibriumUpper,
			TensionScore:      r.TensionScore,
		}
	}

	failures := make([]persistence.AssetFailure, len(report.Failures))
	for i, f := range report.Failures {
		failures[i] = persistence.AssetFailure{RunID: report.RunID, Symbol: f.Symbol, Rank: f.Rank, Reason: f.Error}
	}

	return e.runs.Save(ctx, run, results, failures)
}

// LoadProcessed returns the processed dataset, preparing it first when the
// cache file does not exist yet. Concurrent callers share one load.
func (e *Executor) LoadProcessed(ctx context.Context) ([]dataset.Record, error) {
	if records := e.loaded(); records != nil {
		return records, nil
	}

	v, err, _ := e.group.Do("processed", func() (any, error) {
		if records := e.loaded(); records != nil {
			return records, nil
		}

		path := e.cfg.Paths.Processed
		if _, err := os.Stat(path); err == nil {
			records, err := dataset.ReadParquet(path)
			if err != nil {
				return nil, err
			}
			e.metrics.RecordCacheHit("processed")
			log.Info().Str("path", path).Int("assets", len(records)).Msg("Loaded processed dataset")
			e.setRecords(records)
			return records, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat processed dataset: %w", err)
		}

		e.metrics.RecordCacheMiss("processed")
		_, records, err := e.Prepare(ctx)
		return records, err
	})
	if err != nil {
		return nil, err
	}
	return v.([]dataset.Record), nil
}

func (e *Executor) loaded() []dataset.Record {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.records
}

func (e *Executor) setRecords(records []dataset.Record) {
	if records == nil {
		records = []dataset.Record{}
	}
	e.mu.Lock()
	e.records = records
	e.mu.Unlock()
}

// Export writes the processed dataset as csv or xlsx. An empty format is
// inferred from the path's extension.
func (e *Executor) Export(ctx context.Context, path, format string) (int, error) {
	records, err := e.LoadProcessed(ctx)
	if err != nil {
		return 0, err
	}

	if format == "" {
		format = formatFromPath(path)
	}
	switch format {
	case "csv":
		err = dataset.WriteCSVFile(path, records)
	case "xlsx":
		err = dataset.WriteXLSX(path, records)
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return 0, err
	}

	log.Info().Str("path", path).Str("format", format).Int("assets", len(records)).Msg("Exported equilibrium snapshot")
	return len(records), nil
}

func toMap(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
