package main

import (
	"fmt"

	"github.com/sguter90/sensormaestro/pkg/database"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg := configFrom(cmd)
	log := loggerFrom(cmd)

	dbManager, err := database.NewDatabaseManager(cfg.DSN(), log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbManager.Close()

	runner, err := database.NewMigrationsRunner(dbManager.GetDB(), log)
	if err != nil {
		return fmt.Errorf("failed to create migration runner: %w", err)
	}

	for _, m := range runner.Migrations() {
		log.Debug("Known migration", zap.Int("version", m.Version), zap.String("name", m.Name))
	}

	if err := runner.Run(cmd.Context()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "✓ Database is up to date")
	return nil
}
