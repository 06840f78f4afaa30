package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sawpanic/equilibrium/internal/application/pipeline"
	"github.com/sawpanic/equilibrium/internal/equilibrium"
	"github.com/sawpanic/equilibrium/internal/persistence"
)

// optionalFloat returns the flag's value only if the user set it.
func optionalFloat(flags *pflag.FlagSet, name string) (*float64, error) {
	if !flags.Changed(name) {
		return nil, nil
	}
	v, err := flags.GetFloat64(name)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (a *app) simulateCmd() *cobra.Command {
	var (
		symbol string
		preset string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Compare an asset's baseline equilibrium with a what-if scenario",
		Example: `  equilibrium simulate --symbol ETH --volatility-mult 2
  equilibrium simulate --symbol DOGE --preset panic
  equilibrium simulate --symbol SOL --preset supply_unlock --supply-shift -0.4`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := pipeline.OverrideRequest{Preset: preset}
			var err error
			if req.VolumeMultiplier, err = optionalFloat(cmd.Flags(), "volume-mult"); err != nil {
				return err
			}
			if req.VolatilityMultiplier, err = optionalFloat(cmd.Flags(), "volatility-mult"); err != nil {
				return err
			}
			if req.SupplyUtilizationShift, err = optionalFloat(cmd.Flags(), "supply-shift"); err != nil {
				return err
			}

			override, label, err := a.exec.ResolveOverride(req)
			if err != nil {
				return err
			}
			cmp, err := a.exec.Simulate(commandContext(cmd), symbol, override, label)
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(a.out, cmp)
			}
			printComparison(a.out, label, override, cmp)
			return nil
		},
	}

	cmd.Flags().StringVar(&symbol, "symbol", "", "Asset symbol (required)")
	cmd.Flags().Float64("volume-mult", 1, "Multiply 24h volume")
	cmd.Flags().Float64("volatility-mult", 1, "Multiply the volatility input")
	cmd.Flags().Float64("supply-shift", 0, "Add to supply utilization")
	cmd.Flags().StringVar(&preset, "preset", "", "Named scenario preset from config")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the comparison as JSON")
	_ = cmd.MarkFlagRequired("symbol")
	return cmd
}

func printComparison(w io.Writer, label string, o equilibrium.ScenarioOverride, cmp equilibrium.Comparison) {
	b, s, d := cmp.Baseline, cmp.Scenario, cmp.Delta

	fmt.Fprintf(w, "%s (rank %d) at %g\n", b.Key.Symbol, b.Key.Rank, b.CurrentPrice)
	fmt.Fprintf(w, "Scenario %s: volume x%g, volatility x%g, supply shift %+g\n\n",
		label, o.VolumeMultiplier, o.VolatilityMultiplier, o.SupplyUtilizationShift)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "\tbaseline\tscenario\tdelta\t")
	bf, sf, df := b.Forces.Components(), s.Forces.Components(), d.Forces.Components()
	for i, name := range equilibrium.ForceNames {
		fmt.Fprintf(tw, "force_%s\t%+.3f\t%+.3f\t%+.3f\t\n", name, bf[i], sf[i], df[i])
	}
	fmt.Fprintf(tw, "equilibrium_shift\t%+.4f\t%+.4f\t%+.4f\t\n", b.Result.EquilibriumShift, s.Result.EquilibriumShift, d.EquilibriumShift)
	fmt.Fprintf(tw, "equilibrium_center\t%.6g\t%.6g\t%+.6g\t\n", b.Result.EquilibriumCenter, s.Result.EquilibriumCenter, d.EquilibriumCenter)
	fmt.Fprintf(tw, "band_half_width\t%.6g\t%.6g\t%+.6g\t\n", b.Result.BandHalfWidth, s.Result.BandHalfWidth, d.BandHalfWidth)
	fmt.Fprintf(tw, "tension_score\t%.4f\t%.4f\t%+.4f\t\n", b.Result.TensionScore, s.Result.TensionScore, d.TensionScore)
	tw.Flush()
}

func (a *app) marketMapCmd() *cobra.Command {
	var (
		top    int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "market-map",
		Short: "List assets by tension with their equilibrium shift",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			records, err := a.exec.LoadProcessed(commandContext(cmd))
			if err != nil {
				return err
			}
			points := pipeline.MarketMap(records, top)

			if asJSON {
				return writeJSON(a.out, points)
			}
			printMarketMap(a.out, points)
			return nil
		},
	}

	cmd.Flags().IntVar(&top, "top", 20, "Number of most tense assets to list (0 = all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the points as JSON")
	return cmd
}

func printMarketMap(w io.Writer, points []pipeline.MapPoint) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tSYMBOL\tNAME\tMARKET CAP\tSHIFT\tTENSION\tVOLATILITY")
	for _, p := range points {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.3g\t%+.4f\t%.4f\t%+.3f\n",
			p.Rank, p.Symbol, truncate(p.Name, 24), p.MarketCap, p.EquilibriumShift, p.TensionScore, p.ForceVolatility)
	}
	tw.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func (a *app) historyCmd() *cobra.Command {
	var (
		symbol string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show persisted equilibrium results for one asset across runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runs, err := a.runs()
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)

			if latest, err := runs.Latest(ctx, pipeline.RunKindPrepare); err == nil {
				fmt.Fprintf(a.out, "Latest run %s: %d assets from %s at %s\n\n",
					latest.ID, latest.Assets, latest.Source, latest.FinishedAt.Format("2006-01-02 15:04:05"))
			}

			results, err := runs.History(ctx, strings.ToUpper(symbol), limit)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				return fmt.Errorf("%w: no persisted results for %s", persistence.ErrNotFound, symbol)
			}
			printHistory(a.out, results)
			return nil
		},
	}

	cmd.Flags().StringVar(&symbol, "symbol", "", "Asset symbol (required)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to show")
	_ = cmd.MarkFlagRequired("symbol")
	return cmd
}

func printHistory(w io.Writer, results []persistence.AssetResult) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tRANK\tPRICE\tCENTER\tLOWER\tUPPER\tSHIFT\tTENSION")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%d\t%.6g\t%.6g\t%.6g\t%.6g\t%+.4f\t%.4f\n",
			r.RunID.String()[:8], r.Rank, r.CurrentPrice, r.EquilibriumCenter, r.BandLower, r.BandUpper, r.EquilibriumShift, r.TensionScore)
	}
	tw.Flush()
}
