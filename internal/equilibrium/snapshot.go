package equilibrium

import (
	"fmt"
	"math"
	"strings"
)

// AssetSnapshot is one row of static market metadata for an asset.
// Optional fields are nil when the source column is absent or unparseable;
// a nil or non-finite optional value is treated as a zero-effect input.
type AssetSnapshot struct {
	Symbol       string  `json:"symbol"`
	Name         string  `json:"name"`
	Rank         int     `json:"rank"`
	CurrentPrice float64 `json:"current_price"`
	MarketCap    float64 `json:"market_cap"`
	Volume24h    float64 `json:"volume_24h"`

	PctChange1h  *float64 `json:"pct_change_1h,omitempty"`
	PctChange24h *float64 `json:"pct_change_24h,omitempty"`
	PctChange7d  *float64 `json:"pct_change_7d,omitempty"`
	PctChange30d *float64 `json:"pct_change_30d,omitempty"`
	PctChange1y  *float64 `json:"pct_change_1y,omitempty"`

	CirculatingSupply *float64 `json:"circulating_supply,omitempty"`
	TotalSupply       *float64 `json:"total_supply,omitempty"`
	MaxSupply         *float64 `json:"max_supply,omitempty"` // nil means unbounded
	SupplyUtilization *float64 `json:"supply_utilization,omitempty"`

	ATH          *float64 `json:"ath,omitempty"`
	ATHChangePct *float64 `json:"ath_change_pct,omitempty"`
	ATL          *float64 `json:"atl,omitempty"`
	ATLChangePct *float64 `json:"atl_change_pct,omitempty"`
}

// AssetKey identifies an asset within a dataset.
type AssetKey struct {
	Symbol string `json:"symbol"`
	Rank   int    `json:"rank"`
}

func (k AssetKey) String() string {
	return fmt.Sprintf("%s#%d", k.Symbol, k.Rank)
}

// Key returns the identity used to report results and failures.
func (s AssetSnapshot) Key() AssetKey {
	return AssetKey{Symbol: s.Symbol, Rank: s.Rank}
}

// Validate reports structurally invalid snapshots. Everything that can be
// defaulted is defaulted later by the normalizer instead.
func (s AssetSnapshot) Validate() error {
	if strings.TrimSpace(s.Symbol) == "" {
		return &AssetError{Key: s.Key(), Err: fmt.Errorf("%w: symbol is required", ErrMalformedInput)}
	}
	if !isFinite(s.CurrentPrice) || s.CurrentPrice <= 0 {
		return &AssetError{Key: s.Key(), Err: fmt.Errorf("%w: current_price must be positive, got %v", ErrMalformedInput, s.CurrentPrice)}
	}
	return nil
}

// Float returns a pointer to v, for building snapshots with optional fields.
func Float(v float64) *float64 {
	return &v
}

// valueOf resolves an optional field, reporting whether it carries a usable value.
func valueOf(p *float64) (float64, bool) {
	if p == nil || !isFinite(*p) {
		return 0, false
	}
	return *p, true
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
