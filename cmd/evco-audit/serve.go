package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/xela07ax/evco-audit/internal/app"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the audit ingestion API.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := appConfig.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		logger, err := newLogger()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		a, err := app.New(cmd.Context(), appConfig, logger)
		if err != nil {
			logger.Error("failed to initialize", zap.Error(err))
			return err
		}

		logger.Info("starting audit service",
			zap.String("addr", appConfig.Server.Addr()),
			zap.String("sink", appConfig.Audit.Sink))
		return a.Run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
