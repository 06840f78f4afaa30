package dataset

import (
	"github.com/sawpanic/equilibrium/internal/equilibrium"
)

// Record is one processed row: the raw snapshot joined with its normalized
// inputs, forces, and equilibrium outputs. It is the unit of the processed
// cache and of every export.
type Record struct {
	Symbol       string  `parquet:"symbol" json:"symbol"`
	Name         string  `parquet:"name" json:"name"`
	Rank         int64   `parquet:"market_cap_rank" json:"market_cap_rank"`
	CurrentPrice float64 `parquet:"current_price" json:"current_price"`
	MarketCap    float64 `parquet:"market_cap" json:"market_cap"`
	TotalVolume  float64 `parquet:"total_volume" json:"total_volume"`

	PctChange1h       *float64 `parquet:"price_change_percentage_1h" json:"price_change_percentage_1h,omitempty"`
	PctChange24h      *float64 `parquet:"price_change_percentage_24h" json:"price_change_percentage_24h,omitempty"`
	PctChange7d       *float64 `parquet:"price_change_percentage_7d" json:"price_change_percentage_7d,omitempty"`
	PctChange30d      *float64 `parquet:"price_change_percentage_30d" json:"price_change_percentage_30d,omitempty"`
	PctChange1y       *float64 `parquet:"price_change_percentage_1y" json:"price_change_percentage_1y,omitempty"`
	CirculatingSupply *float64 `parquet:"circulating_supply" json:"circulating_supply,omitempty"`
	TotalSupply       *float64 `parquet:"total_supply" json:"total_supply,omitempty"`
	MaxSupply         *float64 `parquet:"max_supply" json:"max_supply,omitempty"`
	SupplyUtilization *float64 `parquet:"supply_utilization" json:"supply_utilization,omitempty"`
	ATH               *float64 `parquet:"ath" json:"ath,omitempty"`
	ATHChangePct      *float64 `parquet:"ath_change_percentage" json:"ath_change_percentage,omitempty"`
	ATL               *float64 `parquet:"atl" json:"atl,omitempty"`
	ATLChangePct      *float64 `parquet:"atl_change_percentage" json:"atl_change_percentage,omitempty"`

	InputDemand      float64 `parquet:"input_demand" json:"input_demand"`
	InputSupply      float64 `parquet:"input_supply" json:"input_supply"`
	InputVolatility  float64 `parquet:"input_volatility" json:"input_volatility"`
	InputLiquidity   float64 `parquet:"input_liquidity" json:"input_liquidity"`
	InputSpeculation float64 `parquet:"input_speculation" json:"input_speculation"`

	ForceDemand      float64 `parquet:"force_demand" json:"force_demand"`
	ForceSupply      float64 `parquet:"force_supply" json:"force_supply"`
	ForceVolatility  float64 `parquet:"force_volatility" json:"force_volatility"`
	ForceLiquidity   float64 `parquet:"force_liquidity" json:"force_liquidity"`
	ForceSpeculation float64 `parquet:"force_speculation" json:"force_speculation"`

	RawShift          float64 `parquet:"raw_shift" json:"raw_shift"`
	EquilibriumShift  float64 `parquet:"equilibrium_shift" json:"equilibrium_shift"`
	EquilibriumCenter float64 `parquet:"equilibrium_center" json:"equilibrium_center"`
	EquilibriumLower  float64 `parquet:"equilibrium_lower" json:"equilibrium_lower"`
	EquilibriumUpper  float64 `parquet:"equilibrium_upper" json:"equilibrium_upper"`
	BandHalfWidth     float64 `parquet:"band_half_width" json:"band_half_width"`
	BandWidthPct      float64 `parquet:"band_width_pct" json:"band_width_pct"`
	TensionScore      float64 `parquet:"tension_score" json:"tension_score"`
}

// NewRecord joins a snapshot with its evaluation.
func NewRecord(s equilibrium.AssetSnapshot, ev equilibrium.Evaluation) Record {
	return Record{
		Symbol:            s.Symbol,
		Name:              s.Name,
		Rank:              int64(s.Rank),
		CurrentPrice:      s.CurrentPrice,
		MarketCap:         s.MarketCap,
		TotalVolume:       s.Volume24h,
		PctChange1h:       s.PctChange1h,
		PctChange24h:      s.PctChange24h,
		PctChange7d:       s.PctChange7d,
		PctChange30d:      s.PctChange30d,
		PctChange1y:       s.PctChange1y,
		CirculatingSupply: s.CirculatingSupply,
		TotalSupply:       s.TotalSupply,
		MaxSupply:         s.MaxSupply,
		SupplyUtilization: s.SupplyUtilization,
		ATH:               s.ATH,
		ATHChangePct:      s.ATHChangePct,
		ATL:               s.ATL,
		ATLChangePct:      s.ATLChangePct,

		InputDemand:      ev.Inputs.Demand,
		InputSupply:      ev.Inputs.Supply,
		InputVolatility:  ev.Inputs.Volatility,
		InputLiquidity:   ev.Inputs.Liquidity,
		InputSpeculation: ev.Inputs.Speculation,

		ForceDemand:      ev.Forces.Demand,
		ForceSupply:      ev.Forces.Supply,
		ForceVolatility:  ev.Forces.Volatility,
		ForceLiquidity:   ev.Forces.Liquidity,
		ForceSpeculation: ev.Forces.Speculation,

		RawShift:          ev.Result.RawShift,
		EquilibriumShift:  ev.Result.EquilibriumShift,
		EquilibriumCenter: ev.Result.EquilibriumCenter,
		EquilibriumLower:  ev.Result.BandLower,
		EquilibriumUpper:  ev.Result.BandUpper,
		BandHalfWidth:     ev.Result.BandHalfWidth,
		BandWidthPct:      ev.Result.BandWidthPct,
		TensionScore:      ev.Result.TensionScore,
	}
}

// Records joins a batch result back onto the snapshots it was computed from.
// Failed assets have no record.
func Records(assets []equilibrium.AssetSnapshot, result equilibrium.BatchResult) []Record {
	out := make([]Record, 0, len(result.Evaluations))
	for i, ev := range result.Evaluations {
		out = append(out, NewRecord(assets[result.Indices[i]], ev))
	}
	return out
}

// Key identifies the record's asset.
func (r Record) Key() equilibrium.AssetKey {
	return equilibrium.AssetKey{Symbol: r.Symbol, Rank: int(r.Rank)}
}

// Snapshot recovers the raw snapshot the record was built from.
func (r Record) Snapshot() equilibrium.AssetSnapshot {
	return equilibrium.AssetSnapshot{
		Symbol:            r.Symbol,
		Name:              r.Name,
		Rank:              int(r.Rank),
		CurrentPrice:      r.CurrentPrice,
		MarketCap:         r.MarketCap,
		Volume24h:         r.TotalVolume,
		PctChange1h:       r.PctChange1h,
		PctChange24h:      r.PctChange24h,
		PctChange7d:       r.PctChange7d,
		PctChange30d:      r.PctChange30d,
		PctChange1y:       r.PctChange1y,
		CirculatingSupply: r.CirculatingSupply,
		TotalSupply:       r.TotalSupply,
		MaxSupply:         r.MaxSupply,
		SupplyUtilization: r.SupplyUtilization,
		ATH:               r.ATH,
		ATHChangePct:      r.ATHChangePct,
		ATL:               r.ATL,
		ATLChangePct:      r.ATLChangePct,
	}
}

// Evaluation recovers the baseline evaluation stored in the record.
func (r Record) Evaluation() equilibrium.Evaluation {
	return equilibrium.Evaluation{
		Key:          r.Key(),
		CurrentPrice: r.CurrentPrice,
		Inputs: equilibrium.Inputs{
			Demand:      r.InputDemand,
			Supply:      r.InputSupply,
			Volatility:  r.InputVolatility,
			Liquidity:   r.InputLiquidity,
			Speculation: r.InputSpeculation,
		},
		Forces: equilibrium.ForceVector{
			Demand:      r.ForceDemand,
			Supply:      r.ForceSupply,
			Volatility:  r.ForceVolatility,
			Liquidity:   r.ForceLiquidity,
			Speculation: r.ForceSpeculation,
		},
		Result: equilibrium.Result{
			RawShift:          r.RawShift,
			EquilibriumShift:  r.EquilibriumShift,
			EquilibriumCenter: r.EquilibriumCenter,
			BandLower:         r.EquilibriumLower,
			BandUpper:         r.EquilibriumUpper,
			BandHalfWidth:     r.BandHalfWidth,
			BandWidthPct:      r.BandWidthPct,
			TensionScore:      r.TensionScore,
		},
	}
}
