package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/equilibrium/internal/config"
	"github.com/sawpanic/equilibrium/internal/dataset"
	"github.com/sawpanic/equilibrium/internal/equilibrium"
)

func sampleRecords() []dataset.Record {
	return []dataset.Record{
		{Symbol: "BTC", Rank: 1, MarketCap: 1300, EquilibriumShift: 0.01, TensionScore: 0.4},
		{Symbol: "ETH", Rank: 2, MarketCap: 370, EquilibriumShift: 0.03, TensionScore: 0.9},
		{Symbol: "USDT", Rank: 3, MarketCap: 110, EquilibriumShift: 0, TensionScore: 0.4},
		{Symbol: "eth", Name: "Ether Clone", Rank: 412, MarketCap: 1, TensionScore: 0.2},
	}
}

func TestSelect(t *testing.T) {
	records := sampleRecords()

	tests := []struct {
		name   string
		index  int
		symbol string
		rank   int64
		err    error
	}{
		{"by_index", 2, "", 3, nil},
		{"symbol_wins_over_index", 0, "usdt", 3, nil},
		{"duplicate_symbol_prefers_best_rank", 0, "ETH", 2, nil},
		{"symbol_whitespace_trimmed", 3, "  btc ", 1, nil},
		{"unknown_symbol", 0, "DOGE", 0, ErrUnknownSymbol},
		{"negative_index", -1, "", 0, ErrIndexOutOfRange},
		{"index_past_end", 4, "", 0, ErrIndexOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Select(records, tt.index, tt.symbol)
			if tt.err != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.rank, got.Rank)
		})
	}
}

func TestMarketMap(t *testing.T) {
	points := MarketMap(sampleRecords(), 0)
	require.Len(t, points, 4)

	order := make([]string, len(points))
	for i, p := range points {
		order[i] = p.Symbol
	}
	assert.Equal(t, []string{"ETH", "BTC", "USDT", "eth"}, order, "tension descending, rank breaks ties")

	top := MarketMap(sampleRecords(), 2)
	require.Len(t, top, 2)
	assert.Equal(t, 2, top[0].Rank)

	assert.Len(t, MarketMap(sampleRecords(), 50), 4)
	assert.Empty(t, MarketMap(nil, 5))
}

func TestResolveOverride(t *testing.T) {
	ex, err := NewExecutor(config.Default())
	require.NoError(t, err)

	f := equilibrium.Float

	tests := []struct {
		name  string
		req   OverrideRequest
		want  equilibrium.ScenarioOverride
		label string
		err   error
	}{
		{
			name:  "empty_is_identity",
			req:   OverrideRequest{},
			want:  equilibrium.IdentityOverride(),
			label: CustomPreset,
		},
		{
			name:  "preset",
			req:   OverrideRequest{Preset: "supply_unlock"},
			want:  equilibrium.ScenarioOverride{VolumeMultiplier: 1.5, VolatilityMultiplier: 1.5, SupplyUtilizationShift: -0.2},
			label: "supply_unlock",
		},
		{
			name:  "explicit_value_replaces_preset_field",
			req:   OverrideRequest{Preset: "volume_surge", VolatilityMultiplier: f(2)},
			want:  equilibrium.ScenarioOverride{VolumeMultiplier: 3, VolatilityMultiplier: 2},
			label: CustomPreset,
		},
		{
			name:  "explicit_only",
			req:   OverrideRequest{SupplyUtilizationShift: f(0.1)},
			want:  equilibrium.ScenarioOverride{VolumeMultiplier: 1, VolatilityMultiplier: 1, SupplyUtilizationShift: 0.1},
			label: CustomPreset,
		},
		{
			name: "unknown_preset",
			req:  OverrideRequest{Preset: "moon"},
			err:  config.ErrUnknownPreset,
		},
		{
			name: "non_positive_multiplier",
			req:  OverrideRequest{VolumeMultiplier: f(-1)},
			err:  equilibrium.ErrInvalidOverride,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, label, err := ex.ResolveOverride(tt.req)
			if tt.err != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, o)
			assert.Equal(t, tt.label, label)
		})
	}
}
