package equilibrium

import "math"

// Inputs are the bounded force inputs produced by the normalizer.
// Volatility is unsigned in [0, 1); the others lie in [-1, 1].
type Inputs struct {
	Demand      float64 `json:"demand"`
	Supply      float64 `json:"supply"`
	Volatility  float64 `json:"volatility"`
	Liquidity   float64 `json:"liquidity"`
	Speculation float64 `json:"speculation"`
}

// marketFields are the effective raw fields the normalizer reads. Scenario
// overrides are applied here, never after normalization.
type marketFields struct {
	volume    float64
	marketCap float64

	pct1h  *float64
	pct24h *float64
	pct7d  *float64
	pct30d *float64

	utilization float64
}

func extractFields(s AssetSnapshot, p NormalizerParams) marketFields {
	f := marketFields{
		volume:    nonNegative(s.Volume24h),
		marketCap: nonNegative(s.MarketCap),
		pct1h:     s.PctChange1h,
		pct24h:    s.PctChange24h,
		pct7d:     s.PctChange7d,
		pct30d:    s.PctChange30d,
	}
	f.utilization = supplyUtilization(s, p)
	return f
}

// supplyUtilization resolves circulating-to-max supply. Unbounded supply is
// dilutive; bounded supply with unknown circulation is neutral.
func supplyUtilization(s AssetSnapshot, p NormalizerParams) float64 {
	if u, ok := valueOf(s.SupplyUtilization); ok {
		return clip(u, 0, 1)
	}

	maxSupply, bounded := valueOf(s.MaxSupply)
	if !bounded || maxSupply <= 0 {
		return p.UnboundedUtilization
	}

	circulating, ok := valueOf(s.CirculatingSupply)
	if !ok || circulating <= 0 {
		return 0.5
	}
	return clip(circulating/maxSupply, 0, 1)
}

// normalize maps effective fields onto force inputs.
func normalize(f marketFields, p NormalizerParams) Inputs {
	turnover, known := turnoverRatio(f, p)

	participation := 0.0
	liquidity := 0.0
	hot := 0.0
	if known {
		participation = math.Tanh(turnover / p.TypicalTurnover)
		liquidity = math.Tanh(math.Log(turnover/p.TypicalTurnover) / p.LiquiditySpread)
		hot = math.Tanh(turnover / p.HotTurnover)
	}

	pct1h := pct(f.pct1h)
	pct24h := pct(f.pct24h)
	pct7d := pct(f.pct7d)
	pct30d := pct(f.pct30d)

	momentum := math.Tanh((0.4*pct24h + 0.6*pct7d) / p.DemandMomentumScale)
	trend := math.Tanh(pct30d / p.TrendScale)
	demand := 0.7*momentum*(0.5+0.5*participation) + 0.3*trend

	dispersion := 0.2*math.Abs(pct1h) + 0.5*math.Abs(pct24h) + 0.3*math.Abs(pct7d)
	volatility := math.Tanh(dispersion / p.VolatilityScale)

	shortMomentum := math.Tanh((pct1h + pct24h) / p.SpeculationMomentumScale)
	heat := 0.5*volatility + 0.5*hot
	speculation := shortMomentum * heat

	return Inputs{
		Demand:      clip(demand, -1, 1),
		Supply:      clip(2*f.utilization-1, -1, 1),
		Volatility:  clip(volatility, 0, 1),
		Liquidity:   clip(liquidity, -1, 1),
		Speculation: clip(speculation, -1, 1),
	}
}

// turnoverRatio is volume over market cap, bounded so a near-zero market cap
// cannot dominate. It is unknown when market cap is missing.
func turnoverRatio(f marketFields, p NormalizerParams) (float64, bool) {
	if f.marketCap <= 0 {
		return 0, false
	}
	return clip(f.volume/f.marketCap, p.TurnoverFloor, p.TurnoverCap), true
}

func pct(p *float64) float64 {
	v, _ := valueOf(p)
	return v
}

func nonNegative(v float64) float64 {
	if !isFinite(v) || v < 0 {
		return 0
	}
	return v
}

// clip is a hard floor/ceiling. NaN is treated as the neutral value 0.
func clip(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		v = 0
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
