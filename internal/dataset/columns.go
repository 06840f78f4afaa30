package dataset

import (
	"math"
	"strconv"
	"strings"

	"github.com/sawpanic/equilibrium/internal/equilibrium"
)

// Canonical raw column names, as published in the top-1000 market dataset.
const (
	colSymbol            = "symbol"
	colName              = "name"
	colRank              = "market_cap_rank"
	colCurrentPrice      = "current_price"
	colMarketCap         = "market_cap"
	colTotalVolume       = "total_volume"
	colCirculatingSupply = "circulating_supply"
	colTotalSupply       = "total_supply"
	colMaxSupply         = "max_supply"
	colATH               = "ath"
	colATHChangePct      = "ath_change_percentage"
	colATL               = "atl"
	colATLChangePct      = "atl_change_percentage"
	colPct1h             = "price_change_percentage_1h"
	colPct24h            = "price_change_percentage_24h"
	colPct7d             = "price_change_percentage_7d"
	colPct30d            = "price_change_percentage_30d"
	colPct1y             = "price_change_percentage_1y"
	colSupplyUtilization = "supply_utilization"
)

// requiredColumns must be present in the header and non-empty in a row.
var requiredColumns = []string{colSymbol, colCurrentPrice, colMarketCap, colTotalVolume}

// normalizeColumnName maps header variations onto the canonical names.
func normalizeColumnName(column string) string {
	c := strings.ToLower(strings.TrimSpace(column))
	c = strings.NewReplacer(" ", "_", "-", "_").Replace(c)

	switch c {
	case "ticker", "sym":
		return colSymbol
	case "coin", "coin_name":
		return colName
	case "rank", "cmc_rank":
		return colRank
	case "price", "price_usd", "close":
		return colCurrentPrice
	case "marketcap", "market_cap_usd", "mcap":
		return colMarketCap
	case "volume", "volume_24h", "total_volume_24h", "volume24h":
		return colTotalVolume
	case "circulating", "circ_supply":
		return colCirculatingSupply
	case "max_supply_cap", "maxsupply":
		return colMaxSupply
	case "price_change_percentage_1h_in_currency", "pct_change_1h", "change_1h":
		return colPct1h
	case "price_change_percentage_24h_in_currency", "pct_change_24h", "change_24h":
		return colPct24h
	case "price_change_percentage_7d_in_currency", "pct_change_7d", "change_7d":
		return colPct7d
	case "price_change_percentage_30d_in_currency", "pct_change_30d", "change_30d":
		return colPct30d
	case "price_change_percentage_1y_in_currency", "pct_change_1y", "change_1y":
		return colPct1y
	case "utilization":
		return colSupplyUtilization
	default:
		return c
	}
}

// header resolves canonical column names to cell positions. The first
// occurrence of a column wins.
type header map[string]int

func mapColumns(cells []string) header {
	h := make(header, len(cells))
	for i, cell := range cells {
		name := normalizeColumnName(cell)
		if _, seen := h[name]; !seen {
			h[name] = i
		}
	}
	return h
}

func (h header) missing() []string {
	var out []string
	for _, c := range requiredColumns {
		if _, ok := h[c]; !ok {
			out = append(out, c)
		}
	}
	return out
}

func (h header) text(row []string, col string) string {
	i, ok := h[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// number coerces a cell to a finite float. Anything unparseable is missing.
func (h header) number(row []string, col string) *float64 {
	s := strings.ReplaceAll(h.text(row, col), ",", "")
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// parseRow builds a snapshot from one data row. It reports false when a
// required field is missing. position is the 1-based row number and stands
// in for an absent rank.
func (h header) parseRow(row []string, position int) (equilibrium.AssetSnapshot, bool) {
	symbol := strings.ToUpper(h.text(row, colSymbol))
	price := h.number(row, colCurrentPrice)
	marketCap := h.number(row, colMarketCap)
	volume := h.number(row, colTotalVolume)
	if symbol == "" || price == nil || marketCap == nil || volume == nil {
		return equilibrium.AssetSnapshot{}, false
	}

	rank := position
	if r := h.number(row, colRank); r != nil && *r >= 1 {
		rank = int(*r)
	}

	return equilibrium.AssetSnapshot{
		Symbol:            symbol,
		Name:              h.text(row, colName),
		Rank:              rank,
		CurrentPrice:      *price,
		MarketCap:         *marketCap,
		Volume24h:         *volume,
		PctChange1h:       h.number(row, colPct1h),
		PctChange24h:      h.number(row, colPct24h),
		PctChange7d:       h.number(row, colPct7d),
		PctChange30d:      h.number(row, colPct30d),
		PctChange1y:       h.number(row, colPct1y),
		CirculatingSupply: h.number(row, colCirculatingSupply),
		TotalSupply:       h.number(row, colTotalSupply),
		MaxSupply:         h.number(row, colMaxSupply),
		SupplyUtilization: h.number(row, colSupplyUtilization),
		ATH:               h.number(row, colATH),
		ATHChangePct:      h.number(row, colATHChangePct),
		ATL:               h.number(row, colATL),
		ATLChangePct:      h.number(row, colATLChangePct),
	}, true
}
