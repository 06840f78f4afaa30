package equilibrium

import (
	"fmt"
	"math"
)

// Weights are the fixed coefficients combining forces into a raw shift.
// Volatility carries a negative weight: higher volatility pushes the
// equilibrium down.
type Weights struct {
	Demand      float64 `json:"demand" yaml:"demand"`
	Supply      float64 `json:"supply" yaml:"supply"`
	Volatility  float64 `json:"volatility" yaml:"volatility"`
	Liquidity   float64 `json:"liquidity" yaml:"liquidity"`
	Speculation float64 `json:"speculation" yaml:"speculation"`
}

// DefaultWeights returns the canonical force weights.
func DefaultWeights() Weights {
	return Weights{
		Demand:      0.35,
		Supply:      0.20,
		Volatility:  -0.20,
		Liquidity:   0.15,
		Speculation: 0.30,
	}
}

// AbsSum is the largest magnitude raw shift the weights can produce from
// forces bounded to [-1, 1].
func (w Weights) AbsSum() float64 {
	return math.Abs(w.Demand) + math.Abs(w.Supply) + math.Abs(w.Volatility) +
		math.Abs(w.Liquidity) + math.Abs(w.Speculation)
}

// NormalizerParams controls how raw fields are mapped onto force inputs.
// Percent scales are expressed in percentage points.
type NormalizerParams struct {
	TurnoverFloor            float64 `json:"turnover_floor" yaml:"turnover_floor"`
	TurnoverCap              float64 `json:"turnover_cap" yaml:"turnover_cap"`
	TypicalTurnover          float64 `json:"typical_turnover" yaml:"typical_turnover"`
	HotTurnover              float64 `json:"hot_turnover" yaml:"hot_turnover"`
	DemandMomentumScale      float64 `json:"demand_momentum_scale" yaml:"demand_momentum_scale"`
	TrendScale               float64 `json:"trend_scale" yaml:"trend_scale"`
	VolatilityScale          float64 `json:"volatility_scale" yaml:"volatility_scale"`
	LiquiditySpread          float64 `json:"liquidity_spread" yaml:"liquidity_spread"`
	SpeculationMomentumScale float64 `json:"speculation_momentum_scale" yaml:"speculation_momentum_scale"`
	UnboundedUtilization     float64 `json:"unbounded_utilization" yaml:"unbounded_utilization"`
}

// DefaultNormalizerParams returns the built-in normalization constants.
func DefaultNormalizerParams() NormalizerParams {
	return NormalizerParams{
		TurnoverFloor:            1e-6,
		TurnoverCap:              10,
		TypicalTurnover:          0.05,
		HotTurnover:              0.25,
		DemandMomentumScale:      15,
		TrendScale:               30,
		VolatilityScale:          10,
		LiquiditySpread:          2,
		SpeculationMomentumScale: 15,
		UnboundedUtilization:     0.25,
	}
}

// BandParams shapes the equilibrium band. Widths are fractions of the
// current price.
type BandParams struct {
	Base            float64 `json:"base" yaml:"base"`
	VolatilityCoef  float64 `json:"volatility_coef" yaml:"volatility_coef"`
	SpeculationCoef float64 `json:"speculation_coef" yaml:"speculation_coef"`
	LiquidityCoef   float64 `json:"liquidity_coef" yaml:"liquidity_coef"`
	MinWidth        float64 `json:"min_width" yaml:"min_width"`
	MaxWidth        float64 `json:"max_width" yaml:"max_width"`
}

// DefaultBandParams returns the built-in band shape.
func DefaultBandParams() BandParams {
	return BandParams{
		Base:            0.05,
		VolatilityCoef:  0.10,
		SpeculationCoef: 0.05,
		LiquidityCoef:   0.03,
		MinWidth:        0.02,
		MaxWidth:        0.25,
	}
}

// Model is the complete, immutable parameter set of an engine.
type Model struct {
	Weights                 Weights          `json:"weights" yaml:"weights"`
	Dampening               float64          `json:"dampening" yaml:"dampening"`
	Normalizer              NormalizerParams `json:"normalizer" yaml:"normalizer"`
	Band                    BandParams       `json:"band" yaml:"band"`
	TensionVolatilityWeight float64          `json:"tension_volatility_weight" yaml:"tension_volatility_weight"`
}

// DefaultModel returns the canonical model.
func DefaultModel() Model {
	return Model{
		Weights:                 DefaultWeights(),
		Dampening:               0.15,
		Normalizer:              DefaultNormalizerParams(),
		Band:                    DefaultBandParams(),
		TensionVolatilityWeight: 1.0,
	}
}

// Validate rejects parameter sets that would break the price-floor or
// finiteness guarantees.
func (m Model) Validate() error {
	values := []struct {
		name  string
		value float64
	}{
		{"weights.demand", m.Weights.Demand},
		{"weights.supply", m.Weights.Supply},
		{"weights.volatility", m.Weights.Volatility},
		{"weights.liquidity", m.Weights.Liquidity},
		{"weights.speculation", m.Weights.Speculation},
		{"dampening", m.Dampening},
		{"band.base", m.Band.Base},
		{"band.volatility_coef", m.Band.VolatilityCoef},
		{"band.speculation_coef", m.Band.SpeculationCoef},
		{"band.liquidity_coef", m.Band.LiquidityCoef},
		{"band.min_width", m.Band.MinWidth},
		{"band.max_width", m.Band.MaxWidth},
		{"tension_volatility_weight", m.TensionVolatilityWeight},
	}
	for _, v := range values {
		if !isFinite(v.value) {
			return fmt.Errorf("%w: %s is not finite", ErrInvalidModel, v.name)
		}
	}

	if m.Dampening < 0 {
		return fmt.Errorf("%w: dampening must be non-negative, got %f", ErrInvalidModel, m.Dampening)
	}
	if reach := m.Dampening * m.Weights.AbsSum(); reach >= 1 {
		return fmt.Errorf("%w: dampening × Σ|weights| = %.3f would allow a non-positive equilibrium center", ErrInvalidModel, reach)
	}

	if m.Band.MinWidth < 0 || m.Band.MaxWidth < m.Band.MinWidth {
		return fmt.Errorf("%w: band widths must satisfy 0 <= min_width <= max_width", ErrInvalidModel)
	}
	if m.Band.VolatilityCoef < 0 || m.Band.SpeculationCoef < 0 || m.Band.LiquidityCoef < 0 {
		return fmt.Errorf("%w: band coefficients must be non-negative", ErrInvalidModel)
	}
	if m.TensionVolatilityWeight <= 0 {
		return fmt.Errorf("%w: tension_volatility_weight must be positive", ErrInvalidModel)
	}

	return m.Normalizer.validate()
}

func (p NormalizerParams) validate() error {
	positive := []struct {
		name  string
		value float64
	}{
		{"turnover_floor", p.TurnoverFloor},
		{"turnover_cap", p.TurnoverCap},
		{"typical_turnover", p.TypicalTurnover},
		{"hot_turnover", p.HotTurnover},
		{"demand_momentum_scale", p.DemandMomentumScale},
		{"trend_scale", p.TrendScale},
		{"volatility_scale", p.VolatilityScale},
		{"liquidity_spread", p.LiquiditySpread},
		{"speculation_momentum_scale", p.SpeculationMomentumScale},
	}
	for _, v := range positive {
		if !isFinite(v.value) || v.value <= 0 {
			return fmt.Errorf("%w: normalizer.%s must be positive, got %v", ErrInvalidModel, v.name, v.value)
		}
	}
	if p.TurnoverCap < p.TurnoverFloor {
		return fmt.Errorf("%w: normalizer.turnover_cap below turnover_floor", ErrInvalidModel)
	}
	if !isFinite(p.UnboundedUtilization) || p.UnboundedUtilization < 0 || p.UnboundedUtilization > 1 {
		return fmt.Errorf("%w: normalizer.unbounded_utilization must be within [0, 1]", ErrInvalidModel)
	}
	return nil
}
