package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/grc-approval/internal/container"
	httpapi "github.com/garyjia/grc-approval/internal/interfaces/http"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background workers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()

			logger.Info("Starting GRC approval service",
				zap.String("version", httpapi.Version),
				zap.Int("port", cfg.Server.Port))

			c, err := container.NewContainer(cfg.ToContainerConfig(), logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := c.Start(ctx); err != nil {
				return err
			}
			defer c.Close()

			health := c.Health(ctx)
			logger.Info("Component health", zap.Bool("overall", health.Overall), zap.Any("components", health.Components))

			if err := c.Serve(ctx); err != nil {
				logger.Error("Server exited with error", zap.Error(err))
				return err
			}

			logger.Info("Server exited successfully")
			return nil
		},
	}
}

// commandContext returns the command context or Background when run outside Execute
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
