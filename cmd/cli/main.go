package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sguter90/sensormaestro/pkg/config"
	"github.com/sguter90/sensormaestro/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const serviceName = "sensormaestro"

type contextKey string

const (
	configContextKey contextKey = "config"
	loggerContextKey contextKey = "logger"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "sensormaestro",
	Short: "SensorMaestro - sensor ingest and live dashboard backend",
	Long: `SensorMaestro receives environmental (RS485) and vibration (ADXL) samples,
stores them in Postgres and pushes them live to connected dashboards.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		log, err := logger.New(cfg.LogLevel, cfg.LogFormat, serviceName)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		ctx := context.WithValue(cmd.Context(), configContextKey, cfg)
		ctx = context.WithValue(ctx, loggerContextKey, log)
		cmd.SetContext(ctx)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to a config file (yaml, json or toml)")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// configFrom returns the configuration loaded for cmd
func configFrom(cmd *cobra.Command) *config.Config {
	return cmd.Context().Value(configContextKey).(*config.Config)
}

// loggerFrom returns the logger built for cmd
func loggerFrom(cmd *cobra.Command) *zap.Logger {
	if log, ok := cmd.Context().Value(loggerContextKey).(*zap.Logger); ok {
		return log
	}
	return zap.NewNop()
}
