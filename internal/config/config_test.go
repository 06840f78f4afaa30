package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/equilibrium/internal/equilibrium"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "equilibrium.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, equilibrium.DefaultModel(), cfg.Model)
}

func TestLoad_ShippedFileMatchesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", DefaultPath))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_MissingDefaultFileFallsBack(t *testing.T) {
	// the package directory has no configs/ subdirectory
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
model:
  dampening: 0.1
  weights:
    demand: 0.5
scenarios:
  halving:
    volume_multiplier: 1.2
    volatility_multiplier: 1.1
    supply_utilization_shift: 0.05
server:
  port: 9000
  read_timeout: 3s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.1, cfg.Model.Dampening)
	assert.Equal(t, 0.5, cfg.Model.Weights.Demand)
	assert.Equal(t, 0.20, cfg.Model.Weights.Supply)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.WriteTimeout)

	halving, err := cfg.Scenario("halving")
	require.NoError(t, err)
	assert.Equal(t, 1.2, halving.VolumeMultiplier)
	_, err = cfg.Scenario("panic")
	assert.NoError(t, err, "built-in presets survive a file that adds new ones")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9000\n")
	t.Setenv("EQ_SERVER_PORT", "9100")
	t.Setenv("EQ_CACHE_TTL", "2m")
	t.Setenv("EQ_LOGGING_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 2*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		is   error
	}{
		{"dampening_breaks_bound", "model:\n  dampening: 2\n", equilibrium.ErrInvalidModel},
		{"bad_preset", "scenarios:\n  broken:\n    volume_multiplier: 0\n    volatility_multiplier: 1\n", equilibrium.ErrInvalidOverride},
		{"bad_port", "server:\n  port: 70000\n", nil},
		{"unknown_backend", "cache:\n  backend: memcached\n", nil},
		{"database_without_dsn", "database:\n  enabled: true\n  dsn: \"\"\n", nil},
		{"bad_log_level", "logging:\n  level: loud\n", nil},
		{"malformed_yaml", "server: [port\n", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			if tt.is != nil {
				assert.True(t, errors.Is(err, tt.is), "got %v", err)
			}
		})
	}
}

func TestScenarioNames_Sorted(t *testing.T) {
	cfg := Default()
	assert.Equal(t, []string{"baseline", "panic", "supply_unlock", "volatility_crush", "volume_surge"}, cfg.ScenarioNames())

	_, err := cfg.Scenario("moon")
	assert.Error(t, err)
}

func TestSave_RoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 8181
	cfg.Cache.Timeout = 750 * time.Millisecond

	path := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
