package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sawpanic/equilibrium/internal/application/pipeline"
	"github.com/sawpanic/equilibrium/internal/cache"
	"github.com/sawpanic/equilibrium/internal/config"
	"github.com/sawpanic/equilibrium/internal/infrastructure/db"
	"github.com/sawpanic/equilibrium/internal/persistence"
)

const (
	appName = "equilibrium"
	version = "v0.4.0"
)

// app holds what every subcommand needs once flags are parsed.
type app struct {
	configPath string
	logLevel   string

	cfg  *config.Config
	db   *db.Manager
	exec *pipeline.Executor
	out  io.Writer
}

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	a := &app{out: os.Stdout}
	if err := a.rootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     appName,
		Short:   "Crypto price equilibrium simulator",
		Version: version,
		Long: `Equilibrium models each asset's price as the resting point of five market forces
(demand, supply, volatility, liquidity, speculation) and reports an equilibrium band and
a tension score for every asset in a market snapshot.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) { a.close() },
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (default "+config.DefaultPath+")")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level override (trace|debug|info|warn|error)")

	root.AddCommand(
		a.prepareCmd(),
		a.showCmd(),
		a.exportCmd(),
		a.simulateCmd(),
		a.marketMapCmd(),
		a.historyCmd(),
		a.serveCmd(),
	)
	return root
}

// setup loads configuration, configures logging, and wires the pipeline.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if err := setupLogging(cfg.Logging, os.Stderr); err != nil {
		return err
	}
	a.cfg = cfg

	opts := []pipeline.Option{pipeline.WithCache(cache.New(cfg.Cache))}

	manager, err := db.NewManager(commandContext(cmd), cfg.Database)
	if err != nil {
		// the engine works without postgres; only history needs it
		log.Warn().Err(err).Msg("Database unavailable, runs will not be persisted")
	} else {
		a.db = manager
		if repo := manager.Repository(); repo != nil {
			opts = append(opts, pipeline.WithRuns(repo.Runs))
		}
	}

	exec, err := pipeline.NewExecutor(cfg, opts...)
	if err != nil {
		return err
	}
	a.exec = exec
	return nil
}

func (a *app) close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close database")
		}
	}
}

func (a *app) runs() (persistence.RunsRepo, error) {
	if a.db == nil || a.db.Repository() == nil {
		return nil, fmt.Errorf("database persistence is disabled (set database.enabled or %s_DATABASE_ENABLED)", config.EnvPrefix)
	}
	return a.db.Repository().Runs, nil
}

func (a *app) health() persistence.RepositoryHealth {
	if a.db == nil || !a.db.IsEnabled() {
		return nil
	}
	return a.db.Health()
}

// setupLogging applies level and output format to the global logger.
func setupLogging(c config.LoggingConfig, w io.Writer) error {
	level, err := zerolog.ParseLevel(strings.ToLower(c.Level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.Level, err)
	}
	zerolog.SetGlobalLevel(level)

	console := c.Format == "console"
	if c.Format == "auto" {
		f, ok := w.(*os.File)
		console = ok && term.IsTerminal(int(f.Fd()))
	}

	if console {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(w).With().Timestamp().Logger()
	}
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
