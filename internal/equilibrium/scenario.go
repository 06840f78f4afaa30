package equilibrium

import "fmt"

// ScenarioOverride perturbs raw market fields for a what-if evaluation.
type ScenarioOverride struct {
	VolumeMultiplier       float64 `json:"volume_multiplier" yaml:"volume_multiplier"`
	VolatilityMultiplier   float64 `json:"volatility_multiplier" yaml:"volatility_multiplier"`
	SupplyUtilizationShift float64 `json:"supply_utilization_shift" yaml:"supply_utilization_shift"`
}

// IdentityOverride leaves every field unchanged.
func IdentityOverride() ScenarioOverride {
	return ScenarioOverride{VolumeMultiplier: 1, VolatilityMultiplier: 1}
}

// IsIdentity reports whether the override is a no-op.
func (o ScenarioOverride) IsIdentity() bool {
	return o.VolumeMultiplier == 1 && o.VolatilityMultiplier == 1 && o.SupplyUtilizationShift == 0
}

// Validate rejects overrides with no sane clamp. Out-of-range supply shifts
// are clamped on application, not rejected.
func (o ScenarioOverride) Validate() error {
	if !isFinite(o.VolumeMultiplier) || o.VolumeMultiplier <= 0 {
		return fmt.Errorf("%w: volume_multiplier must be positive, got %v", ErrInvalidOverride, o.VolumeMultiplier)
	}
	if !isFinite(o.VolatilityMultiplier) || o.VolatilityMultiplier <= 0 {
		return fmt.Errorf("%w: volatility_multiplier must be positive, got %v", ErrInvalidOverride, o.VolatilityMultiplier)
	}
	if !isFinite(o.SupplyUtilizationShift) {
		return fmt.Errorf("%w: supply_utilization_shift must be finite", ErrInvalidOverride)
	}
	return nil
}

// apply returns adjusted copies of the fields; the input is not modified.
// Every adjustment is independent, so the order below does not matter.
func (o ScenarioOverride) apply(f marketFields) marketFields {
	out := f
	out.volume = f.volume * o.VolumeMultiplier
	out.pct1h = scaled(f.pct1h, o.VolatilityMultiplier)
	out.pct24h = scaled(f.pct24h, o.VolatilityMultiplier)
	out.pct7d = scaled(f.pct7d, o.VolatilityMultiplier)
	out.utilization = clip(f.utilization+o.SupplyUtilizationShift, 0, 1)
	return out
}

func scaled(p *float64, k float64) *float64 {
	v, ok := valueOf(p)
	if !ok {
		return nil
	}
	return Float(v * k)
}

// Delta is the scenario-minus-baseline difference of the headline fields.
type Delta struct {
	Forces            ForceVector `json:"forces"`
	EquilibriumShift  float64     `json:"equilibrium_shift"`
	EquilibriumCenter float64     `json:"equilibrium_center"`
	BandHalfWidth     float64     `json:"band_half_width"`
	TensionScore      float64     `json:"tension_score"`
}

// Comparison pairs a baseline and a scenario evaluation of one asset.
type Comparison struct {
	Baseline Evaluation `json:"baseline"`
	Scenario Evaluation `json:"scenario"`
	Delta    Delta      `json:"delta"`
}

func compare(base, scenario Evaluation) Comparison {
	bf, sf := base.Forces, scenario.Forces
	br, sr := base.Result, scenario.Result
	return Comparison{
		Baseline: base,
		Scenario: scenario,
		Delta: Delta{
			Forces: ForceVector{
				Demand:      sf.Demand - bf.Demand,
				Supply:      sf.Supply - bf.Supply,
				Volatility:  sf.Volatility - bf.Volatility,
				Liquidity:   sf.Liquidity - bf.Liquidity,
				Speculation: sf.Speculation - bf.Speculation,
			},
			EquilibriumShift:  sr.EquilibriumShift - br.EquilibriumShift,
			EquilibriumCenter: sr.EquilibriumCenter - br.EquilibriumCenter,
			BandHalfWidth:     sr.BandHalfWidth - br.BandHalfWidth,
			TensionScore:      sr.TensionScore - br.TensionScore,
		},
	}
}
