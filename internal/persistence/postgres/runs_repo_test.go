package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/equilibrium/internal/breakers"
	"github.com/sawpanic/equilibrium/internal/persistence"
)

func newMockRepo(t *testing.T) (persistence.RunsRepo, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	db := sqlx.NewDb(mockDB, "postgres")
	return NewRunsRepo(db, time.Second, breakers.Default("test")), mock
}

func sampleRun() persistence.Run {
	start := time.Date(2025, 9, 7, 10, 0, 0, 0, time.UTC)
	return persistence.Run{
		ID:         uuid.MustParse("7c9e6679-7425-40de-944b-e07fc1f90ae7"),
		Kind:       "prepare",
		Source:     "data/raw/crypto_top1000_dataset.csv",
		Assets:     2,
		Failures:   1,
		Dropped:    0,
		Model:      map[string]any{"dampening": 0.15},
		StartedAt:  start,
		FinishedAt: start.Add(2 * time.Second),
	}
}

func TestRunsRepo_Save(t *testing.T) {
	repo, mock := newMockRepo(t)
	run := sampleRun()

	results := []persistence.AssetResult{
		{Symbol: "BTC", Rank: 1, CurrentPrice: 67000, EquilibriumCenter: 68000, TensionScore: 0.4},
		{Symbol: "ETH", Rank: 2, CurrentPrice: 3114, EquilibriumCenter: 3333.5, TensionScore: 0.6},
	}
	failures := []persistence.AssetFailure{{Symbol: "DEAD", Rank: 5, Reason: "malformed input"}}

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO equilibrium_runs").
		WithArgs(run.ID, "prepare", run.Source, 2, 1, 0, `{"dampening":0.15}`, nil, run.StartedAt, run.FinishedAt).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	prep := mock.ExpectPrepare("INSERT INTO equilibrium_results")
	for _, res := range results {
		prep.ExpectExec().
			WithArgs(run.ID, res.Symbol, res.Rank, res.CurrentPrice,
				sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
				sqlmock.AnyArg(), res.EquilibriumCenter, sqlmock.AnyArg(), sqlmock.AnyArg(), res.TensionScore).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectExec("INSERT INTO equilibrium_failures").
		WithArgs(run.ID, "DEAD", 5, "malformed input").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Save(context.Background(), run, results, failures))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunsRepo_SaveRollsBackOnError(t *testing.T) {
	repo, mock := newMockRepo(t)
	run := sampleRun()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO equilibrium_runs").
		WillReturnError(errors.New("duplicate key"))
	mock.ExpectRollback()

	err := repo.Save(context.Background(), run, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate key")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunsRepo_SaveRequiresID(t *testing.T) {
	repo, _ := newMockRepo(t)
	run := sampleRun()
	run.ID = uuid.Nil

	assert.Error(t, repo.Save(context.Background(), run, nil, nil))
}

func TestRunsRepo_Latest(t *testing.T) {
	repo, mock := newMockRepo(t)
	run := sampleRun()

	rows := sqlmock.NewRows([]string{"id", "kind", "source", "assets", "failures", "dropped", "model", "override", "started_at", "finished_at", "created_at"}).
		AddRow(run.ID.String(), run.Kind, run.Source, run.Assets, run.Failures, run.Dropped,
			[]byte(`{"dampening":0.15}`), []byte(`{"volume_multiplier":2}`), run.StartedAt, run.FinishedAt, run.FinishedAt)
	mock.ExpectQuery("SELECT (.+) FROM equilibrium_runs").WithArgs("prepare").WillReturnRows(rows)

	got, err := repo.Latest(context.Background(), "prepare")
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, 0.15, got.Model["dampening"])
	assert.Equal(t, 2.0, got.Override["volume_multiplier"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunsRepo_LatestNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM equilibrium_runs").
		WithArgs("prepare").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.Latest(context.Background(), "prepare")
	assert.True(t, errors.Is(err, persistence.ErrNotFound))
}

func TestRunsRepo_ResultsAndHistory(t *testing.T) {
	repo, mock := newMockRepo(t)
	runID := sampleRun().ID

	columns := []string{"run_id", "symbol", "rank", "current_price", "force_demand", "force_supply",
		"force_volatility", "force_liquidity", "force_speculation", "equilibrium_shift",
		"equilibrium_center", "band_lower", "band_upper", "tension_score"}

	mock.ExpectQuery("SELECT (.+) FROM equilibrium_results").
		WithArgs(runID).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(runID.String(), "BTC", 1, 67000.0, 0.1, 0.9, -0.2, 0.3, 0.1, 0.02, 68340.0, 64000.0, 72680.0, 0.5).
			AddRow(runID.String(), "ETH", 2, 3114.0, 0.6, 0.1, -0.3, 0.2, 0.5, 0.07, 3333.5, 3200.0, 3467.0, 0.6))

	results, err := repo.Results(context.Background(), runID)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "ETH", results[1].Symbol)
	assert.Equal(t, runID, results[1].RunID)
	assert.Equal(t, 3333.5, results[1].EquilibriumCenter)

	mock.ExpectQuery("SELECT (.+) FROM equilibrium_results res").
		WithArgs("ETH", 100).
		WillReturnRows(sqlmock.NewRows(columns))

	history, err := repo.History(context.Background(), "ETH", 0)
	require.NoError(t, err)
	assert.Empty(t, history)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	for range Schema {
		mock.ExpectExec("CREATE").WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, Migrate(context.Background(), sqlx.NewDb(mockDB, "postgres")))
	assert.NoError(t, mock.ExpectationsWereMet())
}
