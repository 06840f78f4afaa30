package equilibrium

import "math"

// Result is the equilibrium derived from one force vector and one price.
type Result struct {
	RawShift          float64 `json:"raw_shift"`
	EquilibriumShift  float64 `json:"equilibrium_shift"`
	EquilibriumCenter float64 `json:"equilibrium_center"`
	BandLower         float64 `json:"band_lower"`
	BandUpper         float64 `json:"band_upper"`
	BandHalfWidth     float64 `json:"band_half_width"`
	BandWidthPct      float64 `json:"band_width_pct"`
	TensionScore      float64 `json:"tension_score"`
}

// RawShift is the weighted sum of the forces.
func (w Weights) RawShift(f ForceVector) float64 {
	return w.Demand*f.Demand +
		w.Supply*f.Supply +
		w.Volatility*f.Volatility +
		w.Liquidity*f.Liquidity +
		w.Speculation*f.Speculation
}

// Evaluate combines a force vector and the current price into an
// equilibrium. It has no error path: the caller guarantees a positive price
// and the forces are already bounded.
func (m Model) Evaluate(f ForceVector, currentPrice float64) Result {
	raw := m.Weights.RawShift(f)
	shift := m.Dampening * raw
	center := currentPrice * (1 + shift)

	widthPct := m.bandWidth(f)
	halfWidth := currentPrice * widthPct

	return Result{
		RawShift:          raw,
		EquilibriumShift:  shift,
		EquilibriumCenter: center,
		BandLower:         math.Max(0, center-halfWidth),
		BandUpper:         center + halfWidth,
		BandHalfWidth:     halfWidth,
		BandWidthPct:      widthPct,
		TensionScore:      m.tension(f),
	}
}

// bandWidth grows with volatility and speculation magnitude and shrinks
// with liquidity.
func (m Model) bandWidth(f ForceVector) float64 {
	b := m.Band
	width := b.Base +
		b.VolatilityCoef*f.volatilityMagnitude() +
		b.SpeculationCoef*math.Abs(f.Speculation) -
		b.LiquidityCoef*f.liquidityLevel()
	return clip(width, b.MinWidth, b.MaxWidth)
}

// tension is the dispersion of the forces plus the volatility magnitude.
// Dispersion uses pairwise differences so that equal forces give exactly 0.
func (m Model) tension(f ForceVector) float64 {
	c := f.Components()
	n := float64(len(c))

	sum := 0.0
	for i := 0; i < len(c); i++ {
		for j := i + 1; j < len(c); j++ {
			d := c[i] - c[j]
			sum += d * d
		}
	}

	return math.Sqrt(sum)/n + m.TensionVolatilityWeight*f.volatilityMagnitude()
}
