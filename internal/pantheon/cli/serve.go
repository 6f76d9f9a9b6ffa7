package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bdobrica/pantheon/common/version"
	"github.com/bdobrica/pantheon/internal/pantheon/app"
)

func newServeCmd(opts *options) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long:  "Awaken every persona and serve the HTTP API until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.config()
			if addr != "" {
				cfg.HTTPAddr = addr
			}
			if cfg.HTTPAddr == "" {
				return fmt.Errorf("serve: no listen address; set --addr or PANTHEON_HTTP_ADDR")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			slog.Info("starting pantheon", "version", version.Version, "commit", version.GitCommit)
			a, err := app.New(cfg, app.Options{Logger: slog.Default()})
			if err != nil {
				return fmt.Errorf("failed to initialize pantheon: %w", err)
			}
			defer a.Close()
			return run(ctx, a)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: $PANTHEON_HTTP_ADDR or :8080)")
	return cmd
}

func run(ctx context.Context, a *app.App) error {
	if err := a.Run(ctx); err != nil {
		return fmt.Errorf("pantheon exited with error: %w", err)
	}
	slog.Info("pantheon stopped")
	return nil
}
