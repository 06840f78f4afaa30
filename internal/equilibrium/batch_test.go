package equilibrium

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateBatch_MalformedRecordIsIsolated(t *testing.T) {
	engine, err := NewEngine(DefaultModel(), WithWorkers(4))
	require.NoError(t, err)

	r := rand.New(rand.NewSource(3))
	assets := make([]AssetSnapshot, 0, 50)
	for i := 0; i < 50; i++ {
		s := randomSnapshot(r, i)
		s.Symbol = fmt.Sprintf("A%02d", i)
		assets = append(assets, s)
	}
	assets[17].CurrentPrice = -1

	result := engine.EvaluateBatch(assets)

	require.Len(t, result.Evaluations, 49)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, AssetKey{Symbol: "A17", Rank: 18}, result.Failures[0].Key)
	assert.True(t, errors.Is(result.Failures[0], ErrMalformedInput))

	// input order is preserved for the survivors
	for i, ev := range result.Evaluations {
		want := i
		if i >= 17 {
			want = i + 1
		}
		assert.Equal(t, assets[want].Key(), ev.Key)
		assert.Equal(t, want, result.Indices[i])

		single, err := engine.Evaluate(assets[want])
		require.NoError(t, err)
		assert.Equal(t, single, ev, "batch and single evaluation must agree")
	}

	_, found := result.ByKey()[AssetKey{Symbol: "A17", Rank: 18}]
	assert.False(t, found)
}

func TestEvaluateBatch_Empty(t *testing.T) {
	result := MustDefaultEngine().EvaluateBatch(nil)
	assert.Empty(t, result.Evaluations)
	assert.Empty(t, result.Failures)
}

func TestSimulateBatch(t *testing.T) {
	engine := MustDefaultEngine()
	assets := []AssetSnapshot{ethSnapshot(), {Symbol: "ZERO", Rank: 3, CurrentPrice: 0}}

	t.Run("valid_override", func(t *testing.T) {
		o := IdentityOverride()
		o.VolumeMultiplier = 2
		result := engine.SimulateBatch(assets, o)

		require.Len(t, result.Evaluations, 1)
		require.Len(t, result.Failures, 1)
		assert.Equal(t, "ZERO", result.Failures[0].Key.Symbol)
		require.NotNil(t, result.Evaluations[0].Override)
	})

	t.Run("invalid_override_fails_every_asset", func(t *testing.T) {
		result := engine.SimulateBatch(assets[:1], ScenarioOverride{VolumeMultiplier: 1})

		assert.Empty(t, result.Evaluations)
		require.Len(t, result.Failures, 1)
		assert.True(t, errors.Is(result.Failures[0], ErrInvalidOverride))
	})
}
