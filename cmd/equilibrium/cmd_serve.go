package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	httpapi "github.com/sawpanic/equilibrium/internal/interfaces/http"
)

func (a *app) serveCmd() *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve processed equilibrium results over a read-only HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg.Server
			if cmd.Flags().Changed("host") {
				cfg.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}

			// warm the processed cache so the first request does not pay for it
			if _, err := a.exec.LoadProcessed(commandContext(cmd)); err != nil {
				return fmt.Errorf("failed to load processed dataset: %w", err)
			}

			server := httpapi.NewServer(cfg, a.exec, a.health())

			serverErr := make(chan error, 1)
			go func() {
				addr := server.Address()
				log.Info().
					Str("health", fmt.Sprintf("http://%s/health", addr)).
					Str("assets", fmt.Sprintf("http://%s/assets", addr)).
					Str("scenario", fmt.Sprintf("http://%s/assets/{symbol}/scenario", addr)).
					Str("market_map", fmt.Sprintf("http://%s/market-map", addr)).
					Str("metrics", fmt.Sprintf("http://%s/metrics", addr)).
					Msg("Endpoints available")
				serverErr <- server.Start()
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(quit)

			select {
			case <-quit:
				log.Info().Msg("Shutdown signal received")
			case err := <-serverErr:
				if err != nil {
					return fmt.Errorf("server error: %w", err)
				}
				return nil
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Server shutdown error")
				return err
			}

			log.Info().Msg("Server shutdown complete")
			return nil
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Listen host (default server.host)")
	cmd.Flags().IntVar(&port, "port", 0, "Listen port (default server.port)")
	return cmd
}
