package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	io_prometheus_client "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/equilibrium/internal/equilibrium"
)

func metricFamily(t *testing.T, m *Registry, name string) *io_prometheus_client.MetricFamily {
	t.Helper()
	families, err := m.Gatherer().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("metric %s not gathered", name)
	return nil
}

func TestObserveBatch(t *testing.T) {
	m := New()
	engine := equilibrium.MustDefaultEngine()

	assets := []equilibrium.AssetSnapshot{
		{Symbol: "ETH", Rank: 2, CurrentPrice: 3114, MarketCap: 3.7e11, Volume24h: 1.8e10},
		{Symbol: "BAD", Rank: 9, CurrentPrice: -1},
	}
	result := engine.EvaluateBatch(assets)
	m.ObserveBatch("baseline", len(assets), result, 20*time.Millisecond)

	evals := metricFamily(t, m, "equilibrium_evaluations_total")
	require.Len(t, evals.GetMetric(), 1)
	assert.Equal(t, 1.0, evals.GetMetric()[0].GetCounter().GetValue())

	failures := metricFamily(t, m, "equilibrium_failures_total")
	require.Len(t, failures.GetMetric(), 1)
	assert.Equal(t, "malformed_input", failures.GetMetric()[0].GetLabel()[0].GetValue())

	gauge := metricFamily(t, m, "equilibrium_batch_assets")
	assert.Equal(t, 2.0, gauge.GetMetric()[0].GetGauge().GetValue())

	hist := metricFamily(t, m, "equilibrium_batch_duration_seconds")
	assert.Equal(t, uint64(1), hist.GetMetric()[0].GetHistogram().GetSampleCount())
}

func TestFailureReason(t *testing.T) {
	tests := []struct {
		err      error
		expected string
	}{
		{&equilibrium.AssetError{Err: equilibrium.ErrMalformedInput}, "malformed_input"},
		{equilibrium.ErrInvalidOverride, "invalid_override"},
		{equilibrium.ErrInvalidModel, "invalid_model"},
		{errors.New("disk full"), "other"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, FailureReason(tt.err))
	}
}

func TestCacheHitRatio(t *testing.T) {
	m := New()

	m.RecordCacheHit("scenario")
	m.RecordCacheHit("scenario")
	m.RecordCacheHit("processed")
	m.RecordCacheMiss("scenario")

	ratio := metricFamily(t, m, "equilibrium_cache_hit_ratio")
	assert.InDelta(t, 0.75, ratio.GetMetric()[0].GetGauge().GetValue(), 1e-12)
}

func TestHandler(t *testing.T) {
	m := New()
	m.ScenarioRequests.WithLabelValues("panic").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), `equilibrium_scenario_requests_total{preset="panic"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
