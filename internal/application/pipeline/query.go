package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/equilibrium/internal/cache"
	"github.com/sawpanic/equilibrium/internal/dataset"
	"github.com/sawpanic/equilibrium/internal/equilibrium"
	"github.com/sawpanic/equilibrium/internal/metrics"
)

var (
	// ErrUnknownSymbol is returned when no processed record has the symbol.
	ErrUnknownSymbol = errors.New("unknown symbol")

	// ErrIndexOutOfRange is returned for a row index outside the dataset.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrUnknownFormat is returned for export formats other than csv and xlsx.
	ErrUnknownFormat = errors.New("unknown export format")
)

// CustomPreset labels scenario requests that were not a pure preset.
const CustomPreset = "custom"

// Select picks one record. A non-empty symbol wins over index and matches
// case-insensitively; the best-ranked match is returned.
func Select(records []dataset.Record, index int, symbol string) (dataset.Record, error) {
	if symbol = strings.TrimSpace(symbol); symbol != "" {
		found := -1
		for i, r := range records {
			if strings.EqualFold(r.Symbol, symbol) && (found < 0 || r.Rank < records[found].Rank) {
				found = i
			}
		}
		if found < 0 {
			return dataset.Record{}, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
		}
		return records[found], nil
	}

	if index < 0 || index >= len(records) {
		return dataset.Record{}, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, index, len(records))
	}
	return records[index], nil
}

// MapPoint is one asset on the market map.
type MapPoint struct {
	Symbol           string  `json:"symbol"`
	Name             string  `json:"name"`
	Rank             int     `json:"rank"`
	MarketCap        float64 `json:"market_cap"`
	EquilibriumShift float64 `json:"equilibrium_shift"`
	TensionScore     float64 `json:"tension_score"`
	ForceVolatility  float64 `json:"force_volatility"`
}

// MarketMap projects records onto (shift, tension) points, most tense
// first. top <= 0 returns every point.
func MarketMap(records []dataset.Record, top int) []MapPoint {
	points := make([]MapPoint, len(records))
	for i, r := range records {
		points[i] = MapPoint{
			Symbol:           r.Symbol,
			Name:             r.Name,
			Rank:             int(r.Rank),
			MarketCap:        r.MarketCap,
			EquilibriumShift: r.EquilibriumShift,
			TensionScore:     r.TensionScore,
			ForceVolatility:  r.ForceVolatility,
		}
	}

	sort.SliceStable(points, func(i, j int) bool {
		if points[i].TensionScore != points[j].TensionScore {
			return points[i].TensionScore > points[j].TensionScore
		}
		return points[i].Rank < points[j].Rank
	})

	if top > 0 && top < len(points) {
		points = points[:top]
	}
	return points
}

// OverrideRequest describes a scenario: an optional preset plus optional
// explicit values that replace the preset's.
type OverrideRequest struct {
	Preset                 string
	VolumeMultiplier       *float64
	VolatilityMultiplier   *float64
	SupplyUtilizationShift *float64
}

// ResolveOverride turns a request into an override and its metrics label.
func (e *Executor) ResolveOverride(req OverrideRequest) (equilibrium.ScenarioOverride, string, error) {
	o := equilibrium.IdentityOverride()
	label := CustomPreset

	if req.Preset != "" {
		preset, err := e.cfg.Scenario(req.Preset)
		if err != nil {
			return o, "", err
		}
		o = preset
		label = req.Preset
	}

	adjusted := false
	if req.VolumeMultiplier != nil {
		o.VolumeMultiplier, adjusted = *req.VolumeMultiplier, true
	}
	if req.VolatilityMultiplier != nil {
		o.VolatilityMultiplier, adjusted = *req.VolatilityMultiplier, true
	}
	if req.SupplyUtilizationShift != nil {
		o.SupplyUtilizationShift, adjusted = *req.SupplyUtilizationShift, true
	}
	if adjusted {
		label = CustomPreset
	}

	if err := o.Validate(); err != nil {
		return o, "", err
	}
	return o, label, nil
}

// Simulate compares one asset's baseline with the override. Results are
// cached by symbol, override, and model.
func (e *Executor) Simulate(ctx context.Context, symbol string, o equilibrium.ScenarioOverride, label string) (equilibrium.Comparison, error) {
	if label == "" {
		label = CustomPreset
	}
	e.metrics.ScenarioRequests.WithLabelValues(label).Inc()

	records, err := e.LoadProcessed(ctx)
	if err != nil {
		return equilibrium.Comparison{}, err
	}
	record, err := Select(records, 0, symbol)
	if err != nil {
		return equilibrium.Comparison{}, err
	}

	key := e.scenarioKey(record.Key(), o)
	var cmp equilibrium.Comparison
	if cache.GetJSON(ctx, e.cache, key, &cmp) {
		e.metrics.RecordCacheHit("scenario")
		return cmp, nil
	}
	e.metrics.RecordCacheMiss("scenario")

	cmp, err = e.engine.Compare(record.Snapshot(), o)
	if err != nil {
		e.metrics.Failures.WithLabelValues(metrics.FailureReason(err)).Inc()
		return equilibrium.Comparison{}, err
	}
	e.metrics.Evaluations.WithLabelValues("scenario").Inc()

	if err := cache.SetJSON(ctx, e.cache, key, cmp, e.cfg.Cache.TTL); err != nil {
		log.Warn().Err(err).Str("symbol", record.Symbol).Msg("Failed to cache scenario result")
	}

	log.Debug().
		Str("symbol", record.Symbol).
		Int("rank", int(record.Rank)).
		Str("preset", label).
		Float64("shift_delta", cmp.Delta.EquilibriumShift).
		Msg("Scenario simulated")

	return cmp, nil
}

func (e *Executor) scenarioKey(k equilibrium.AssetKey, o equilibrium.ScenarioOverride) string {
	return fmt.Sprintf("eq:scenario:%s:%s:%g:%g:%g",
		e.modelFingerprint(), k, o.VolumeMultiplier, o.VolatilityMultiplier, o.SupplyUtilizationShift)
}

func (e *Executor) modelFingerprint() string {
	b, _ := json.Marshal(e.engine.Model())
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:6])
}

func formatFromPath(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}
