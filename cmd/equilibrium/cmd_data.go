package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sawpanic/equilibrium/internal/application/pipeline"
	"github.com/sawpanic/equilibrium/internal/dataset"
)

func (a *app) prepareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prepare-data",
		Short: "Clean the raw dataset and compute every asset's equilibrium",
		Long: `Reads the raw market snapshot (CSV or XLSX), evaluates every asset, and writes the
processed parquet cache. Assets that cannot be evaluated are listed and skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, _, err := a.exec.Prepare(commandContext(cmd))
			if err != nil {
				return err
			}
			printReport(a.out, report)
			return nil
		},
	}
}

func printReport(w io.Writer, r *pipeline.Report) {
	fmt.Fprintf(w, "Prepared processed dataset with %d rows from %s.\n", r.Evaluated, r.Source)
	fmt.Fprintf(w, "Processed cache: %s\n", r.Output)
	if r.Dropped > 0 {
		fmt.Fprintf(w, "Dropped %d rows missing required fields.\n", r.Dropped)
	}
	if len(r.Failures) > 0 {
		fmt.Fprintf(w, "Excluded %d assets:\n", len(r.Failures))
		for _, f := range r.Failures {
			fmt.Fprintf(w, "- %s (rank %d): %s\n", f.Symbol, f.Rank, f.Error)
		}
	}
	fmt.Fprintf(w, "Columns available:\n%s\n", strings.Join(dataset.ExportHeader(), ", "))
}

func (a *app) showCmd() *cobra.Command {
	var (
		index  int
		symbol string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "show-equilibrium",
		Short: "Show equilibrium details for a single asset",
		Example: `  equilibrium show-equilibrium --symbol BTC
  equilibrium show-equilibrium --index 3 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if symbol == "" && !cmd.Flags().Changed("index") {
				return fmt.Errorf("either --index or --symbol must be provided")
			}

			records, err := a.exec.LoadProcessed(commandContext(cmd))
			if err != nil {
				return err
			}
			record, err := pipeline.Select(records, index, symbol)
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(a.out, record)
			}
			printRecord(a.out, record)
			return nil
		},
	}

	cmd.Flags().IntVar(&index, "index", 0, "Row index in the processed dataset")
	cmd.Flags().StringVar(&symbol, "symbol", "", "Asset symbol (e.g. BTC, ETH); overrides --index")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full record as JSON")
	return cmd
}

func printRecord(w io.Writer, r dataset.Record) {
	fmt.Fprintln(w, "Asset:")
	fmt.Fprintf(w, "- symbol: %s\n- name: %s\n- market_cap_rank: %d\n", r.Symbol, r.Name, r.Rank)

	fmt.Fprintln(w, "\nCurrent state:")
	fmt.Fprintf(w, "- current_price: %g\n- market_cap: %g\n- total_volume: %g\n", r.CurrentPrice, r.MarketCap, r.TotalVolume)

	fmt.Fprintln(w, "\nForces:")
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"force_demand", r.ForceDemand},
		{"force_supply", r.ForceSupply},
		{"force_volatility", r.ForceVolatility},
		{"force_liquidity", r.ForceLiquidity},
		{"force_speculation", r.ForceSpeculation},
	} {
		fmt.Fprintf(w, "- %s: %+.3f\n", f.name, f.value)
	}

	fmt.Fprintln(w, "\nEquilibrium:")
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"equilibrium_shift", r.EquilibriumShift},
		{"equilibrium_center", r.EquilibriumCenter},
		{"equilibrium_lower", r.EquilibriumLower},
		{"equilibrium_upper", r.EquilibriumUpper},
		{"tension_score", r.TensionScore},
	} {
		fmt.Fprintf(w, "- %s: %.6f\n", f.name, f.value)
	}
}

func (a *app) exportCmd() *cobra.Command {
	var out, format string

	cmd := &cobra.Command{
		Use:   "export-equilibrium",
		Short: "Export the full equilibrium snapshot to CSV or XLSX",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if out == "" {
				out = a.cfg.Paths.Export
			}
			n, err := a.exec.Export(commandContext(cmd), out, strings.ToLower(format))
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Exported equilibrium snapshot of %d assets to %s\n", n, out)
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "Output path (default paths.export)")
	cmd.Flags().StringVar(&format, "format", "", "Output format csv|xlsx (default from --out extension)")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
