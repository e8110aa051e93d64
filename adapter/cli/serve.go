package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/flagwise/adapter/api"
)

const shutdownTimeout = 10 * time.Second

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the flag HTTP API",
	Long: `Serve flag decisions and administration over HTTP until interrupted.

When RABBITMQ_URL is set the server also consumes invalidations published by
peer instances so its decision cache stays coherent.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a := GetApp()
		if a == nil || a.Evaluator == nil {
			return fmt.Errorf("application not initialized")
		}

		cfg := api.DefaultServerConfig()
		if a.HTTPAddr != "" {
			cfg.Addr = a.HTTPAddr
		}
		if serveAddr != "" {
			cfg.Addr = serveAddr
		}

		handler := api.NewFlagHandler(a.Evaluator, a.Administrator, logger)
		server := api.NewServer(cfg, handler, a.Health, a.Metrics, logger)

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		errCh := make(chan error, 2)
		if a.RunPeerSync != nil {
			go func() {
				if err := a.RunPeerSync(ctx); err != nil {
					errCh <- fmt.Errorf("peer sync stopped: %w", err)
				}
			}()
		}
		go func() {
			if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		var runErr error
		select {
		case <-ctx.Done():
		case runErr = <-errCh:
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Join(runErr, fmt.Errorf("failed to shut down server: %w", err))
		}
		return runErr
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides FLAGWISE_HTTP_ADDR)")
	rootCmd.AddCommand(serveCmd)
}
