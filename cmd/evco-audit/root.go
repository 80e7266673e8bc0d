package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/xela07ax/evco-audit/internal/infra"
	"go.uber.org/zap"
)

var (
	cfgFile   string
	appConfig *infra.Config
)

var rootCmd = &cobra.Command{
	Use:   "evco-audit",
	Short: "Audit log ingestion for the EV co-ownership platform.",
	Long: `Accepts audit entries about staff and technician actions (document
reviews, maintenance tasks, inspection reviews) on POST /api/audit/logs and
hands them to a configurable log sink.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		// A local .env is optional; real deployments set the environment directly.
		_ = godotenv.Load()

		cfg, err := infra.LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		appConfig = cfg
		return nil
	},
}

// Execute runs the root command with a context cancelled on SIGINT/SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Path to config file (default: ./config.yaml or ./configs/config.yaml)")
}

func newLogger() (*zap.Logger, error) {
	return infra.NewLogger(appConfig.Logger)
}
