package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/signal-news/internal/config"
	"github.com/JakeFAU/signal-news/internal/server"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and generation workers",
		Long: `Builds storage, the report repository, the publisher and the worker pool from
configuration and serves the API until interrupted. In-flight generations are
canceled on shutdown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if port > 0 {
				cfg.Server.Port = port
			}

			app, err := server.Build(cmd.Context(), &cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			if err := app.Run(cmd.Context()); err != nil {
				zap.L().Error("server exited with error", zap.Error(err))
				return err
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides server.port)")
	return cmd
}
