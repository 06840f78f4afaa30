package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/equilibrium/internal/cache"
	"github.com/sawpanic/equilibrium/internal/config"
	"github.com/sawpanic/equilibrium/internal/dataset"
	"github.com/sawpanic/equilibrium/internal/equilibrium"
	"github.com/sawpanic/equilibrium/internal/persistence"
)

const rawCSV = `symbol,name,market_cap_rank,current_price,market_cap,total_volume,circulating_supply,max_supply,price_change_percentage_1h_in_currency,price_change_percentage_24h,price_change_percentage_7d_in_currency,price_change_percentage_30d_in_currency
btc,Bitcoin,1,67000,1320000000000,35000000000,19700000,21000000,0.2,1.5,4.1,-2.0
eth,Ethereum,2,3114,374000000000,18500000000,120100000,,0.4,2.1,6.8,-3.5
doge,Dogecoin,8,0.16,23000000000,2500000000,146000000000,,3.5,18.0,42.0,60.0
dead,Dead Coin,9,-1,1000,5,,,,,,
,Nameless,10,1,100,10,,,,,,
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	raw := filepath.Join(dir, "raw", "top1000.csv")
	require.NoError(t, os.MkdirAll(filepath.Dir(raw), 0o755))
	require.NoError(t, os.WriteFile(raw, []byte(rawCSV), 0o644))

	cfg := config.Default()
	cfg.Paths.RawDataset = raw
	cfg.Paths.Processed = filepath.Join(dir, "processed", "crypto_equilibrium.parquet")
	cfg.Paths.Export = filepath.Join(dir, "reports", "equilibrium_snapshot.csv")
	return cfg
}

type recordingRuns struct {
	mu       sync.Mutex
	runs     []persistence.Run
	results  [][]persistence.AssetResult
	failures [][]persistence.AssetFailure
	err      error
}

func (r *recordingRuns) Save(_ context.Context, run persistence.Run, results []persistence.AssetResult, failures []persistence.AssetFailure) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.runs = append(r.runs, run)
	r.results = append(r.results, results)
	r.failures = append(r.failures, failures)
	return nil
}

func (r *recordingRuns) Latest(context.Context, string) (*persistence.Run, error) {
	return nil, persistence.ErrNotFound
}

func (r *recordingRuns) Results(context.Context, uuid.UUID) ([]persistence.AssetResult, error) {
	return nil, nil
}

func (r *recordingRuns) History(context.Context, string, int) ([]persistence.AssetResult, error) {
	return nil, nil
}

func TestPrepare(t *testing.T) {
	cfg := testConfig(t)
	runs := &recordingRuns{}
	ex, err := NewExecutor(cfg, WithRuns(runs))
	require.NoError(t, err)

	report, records, err := ex.Prepare(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, report.Assets)
	assert.Equal(t, 3, report.Evaluated)
	assert.Equal(t, 1, report.Dropped)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "DEAD", report.Failures[0].Symbol)
	assert.Equal(t, "malformed_input", report.Failures[0].Reason)
	assert.True(t, report.Persisted)

	require.Len(t, records, 3)
	assert.FileExists(t, cfg.Paths.Processed)

	require.Len(t, runs.runs, 1)
	assert.Equal(t, report.RunID, runs.runs[0].ID)
	assert.Equal(t, RunKindPrepare, runs.runs[0].Kind)
	assert.Equal(t, 0.15, runs.runs[0].Model["dampening"])
	assert.Len(t, runs.results[0], 3)
	assert.Len(t, runs.failures[0], 1)
}

func TestPrepare_PersistenceFailureIsNotFatal(t *testing.T) {
	cfg := testConfig(t)
	ex, err := NewExecutor(cfg, WithRuns(&recordingRuns{err: errors.New("connection refused")}))
	require.NoError(t, err)

	report, _, err := ex.Prepare(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Persisted)
}

func TestPrepare_MissingRawDataset(t *testing.T) {
	cfg := testConfig(t)
	cfg.Paths.RawDataset = filepath.Join(t.TempDir(), "absent.csv")
	ex, err := NewExecutor(cfg)
	require.NoError(t, err)

	_, _, err = ex.Prepare(context.Background())
	assert.Error(t, err)
}

func TestNewExecutor_RejectsInvalidModel(t *testing.T) {
	cfg := config.Default()
	cfg.Model.Dampening = 5

	_, err := NewExecutor(cfg)
	assert.True(t, errors.Is(err, equilibrium.ErrInvalidModel))
}

func TestLoadProcessed_UsesCacheFile(t *testing.T) {
	cfg := testConfig(t)
	first, err := NewExecutor(cfg)
	require.NoError(t, err)

	// no processed file yet: prepares on demand
	records, err := first.LoadProcessed(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)

	// a fresh executor reads the parquet cache without touching the raw file
	require.NoError(t, os.Remove(cfg.Paths.RawDataset))
	second, err := NewExecutor(cfg)
	require.NoError(t, err)

	cached, err := second.LoadProcessed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, records, cached)
}

func TestLoadProcessed_Concurrent(t *testing.T) {
	ex, err := NewExecutor(testConfig(t))
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([][]dataset.Record, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			records, err := ex.LoadProcessed(context.Background())
			assert.NoError(t, err)
			results[i] = records
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Len(t, r, 3)
	}
}

func TestExport(t *testing.T) {
	cfg := testConfig(t)
	ex, err := NewExecutor(cfg)
	require.NoError(t, err)
	dir := t.TempDir()

	n, err := ex.Export(context.Background(), cfg.Paths.Export, "")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.FileExists(t, cfg.Paths.Export)

	xlsx := filepath.Join(dir, "snapshot.xlsx")
	_, err = ex.Export(context.Background(), xlsx, "xlsx")
	require.NoError(t, err)
	ds, err := dataset.ReadXLSX(xlsx, "")
	require.NoError(t, err)
	assert.Len(t, ds.Assets, 3)

	_, err = ex.Export(context.Background(), filepath.Join(dir, "snapshot.json"), "")
	assert.True(t, errors.Is(err, ErrUnknownFormat))
}

func TestSimulate_CachesResult(t *testing.T) {
	cfg := testConfig(t)
	c := cache.NewMemory()
	ex, err := NewExecutor(cfg, WithCache(c))
	require.NoError(t, err)

	o, label, err := ex.ResolveOverride(OverrideRequest{Preset: "panic"})
	require.NoError(t, err)
	assert.Equal(t, "panic", label)

	first, err := ex.Simulate(context.Background(), "eth", o, label)
	require.NoError(t, err)
	assert.Equal(t, "ETH", first.Scenario.Key.Symbol)
	assert.Greater(t, first.Delta.Forces.Volatility, 0.0)

	_, hit := c.Get(context.Background(), ex.scenarioKey(first.Baseline.Key, o))
	assert.True(t, hit)

	second, err := ex.Simulate(context.Background(), "ETH", o, label)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSimulate_IdentityMatchesProcessedBaseline(t *testing.T) {
	ex, err := NewExecutor(testConfig(t))
	require.NoError(t, err)

	records, err := ex.LoadProcessed(context.Background())
	require.NoError(t, err)

	cmp, err := ex.Simulate(context.Background(), "DOGE", equilibrium.IdentityOverride(), "baseline")
	require.NoError(t, err)

	doge, err := Select(records, 0, "doge")
	require.NoError(t, err)
	assert.Equal(t, doge.EquilibriumCenter, cmp.Scenario.Result.EquilibriumCenter)
	assert.Equal(t, equilibrium.Delta{}, cmp.Delta)
}

func TestSimulate_UnknownSymbol(t *testing.T) {
	ex, err := NewExecutor(testConfig(t))
	require.NoError(t, err)

	_, err = ex.Simulate(context.Background(), "NOPE", equilibrium.IdentityOverride(), "")
	assert.True(t, errors.Is(err, ErrUnknownSymbol))
}
