package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// ExportSheet is the sheet name used by WriteXLSX.
const ExportSheet = "equilibrium"

type exportColumn struct {
	name  string
	value func(*Record) any
}

func optional(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

// exportColumns is the column order of every tabular export.
var exportColumns = []exportColumn{
	{colSymbol, func(r *Record) any { return r.Symbol }},
	{colName, func(r *Record) any { return r.Name }},
	{colRank, func(r *Record) any { return r.Rank }},
	{colCurrentPrice, func(r *Record) any { return r.CurrentPrice }},
	{colMarketCap, func(r *Record) any { return r.MarketCap }},
	{colTotalVolume, func(r *Record) any { return r.TotalVolume }},
	{colPct1h, func(r *Record) any { return optional(r.PctChange1h) }},
	{colPct24h, func(r *Record) any { return optional(r.PctChange24h) }},
	{colPct7d, func(r *Record) any { return optional(r.PctChange7d) }},
	{colPct30d, func(r *Record) any { return optional(r.PctChange30d) }},
	{colPct1y, func(r *Record) any { return optional(r.PctChange1y) }},
	{colCirculatingSupply, func(r *Record) any { return optional(r.CirculatingSupply) }},
	{colTotalSupply, func(r *Record) any { return optional(r.TotalSupply) }},
	{colMaxSupply, func(r *Record) any { return optional(r.MaxSupply) }},
	{colSupplyUtilization, func(r *Record) any { return optional(r.SupplyUtilization) }},
	{"input_demand", func(r *Record) any { return r.InputDemand }},
	{"input_supply", func(r *Record) any { return r.InputSupply }},
	{"input_volatility", func(r *Record) any { return r.InputVolatility }},
	{"input_liquidity", func(r *Record) any { return r.InputLiquidity }},
	{"input_speculation", func(r *Record) any { return r.InputSpeculation }},
	{"force_demand", func(r *Record) any { return r.ForceDemand }},
	{"force_supply", func(r *Record) any { return r.ForceSupply }},
	{"force_volatility", func(r *Record) any { return r.ForceVolatility }},
	{"force_liquidity", func(r *Record) any { return r.ForceLiquidity }},
	{"force_speculation", func(r *Record) any { return r.ForceSpeculation }},
	{"raw_shift", func(r *Record) any { return r.RawShift }},
	{"equilibrium_shift", func(r *Record) any { return r.EquilibriumShift }},
	{"equilibrium_center", func(r *Record) any { return r.EquilibriumCenter }},
	{"equilibrium_lower", func(r *Record) any { return r.EquilibriumLower }},
	{"equilibrium_upper", func(r *Record) any { return r.EquilibriumUpper }},
	{"band_width_pct", func(r *Record) any { return r.BandWidthPct }},
	{"tension_score", func(r *Record) any { return r.TensionScore }},
}

// ExportHeader returns the column names written by WriteCSV and WriteXLSX.
func ExportHeader() []string {
	out := make([]string, len(exportColumns))
	for i, c := range exportColumns {
		out[i] = c.name
	}
	return out
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

// WriteCSV writes records with a header row. Missing optional values are
// written as empty cells.
func WriteCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeader()); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	row := make([]string, len(exportColumns))
	for i := range records {
		for j, c := range exportColumns {
			row[j] = formatCell(c.value(&records[i]))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row %d: %w", i+1, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteCSVFile creates path and its parent directory and writes records to it.
func WriteCSVFile(path string, records []Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	if err := WriteCSV(file, records); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// WriteXLSX writes records to a single-sheet workbook at path.
func WriteXLSX(path string, records []Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), ExportSheet); err != nil {
		return fmt.Errorf("failed to name export sheet: %w", err)
	}

	header := make([]any, len(exportColumns))
	for i, c := range exportColumns {
		header[i] = c.name
	}
	if err := f.SetSheetRow(ExportSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write XLSX header: %w", err)
	}

	row := make([]any, len(exportColumns))
	for i := range records {
		for j, c := range exportColumns {
			row[j] = c.value(&records[i])
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(ExportSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write XLSX row %d: %w", i+1, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save XLSX file: %w", err)
	}
	return nil
}
