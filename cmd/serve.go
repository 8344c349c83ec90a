package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/seo-crawler/internal/server"
)

func newServeCmd(state *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the crawl API and worker pool",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := server.Build(ctx, state.cfg, state.logger)
			if err != nil {
				return fmt.Errorf("build service: %w", err)
			}
			if err := app.Run(ctx); err != nil {
				state.logger.Error("service stopped with error", zap.Error(err))
				return err
			}
			return nil
		},
	}
}
