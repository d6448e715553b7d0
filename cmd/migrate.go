package cmd

import (
	"context"
	"fmt"
	"time"

	"car-rental/pkg/database"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateTimeout time.Duration

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE:  runMigrate,
}

func init() {
	migrateCmd.Flags().DurationVar(&migrateTimeout, "timeout", 2*time.Minute, "overall migration timeout")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	config, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync()

	db, err := database.InitDB(config.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), migrateTimeout)
	defer cancel()

	if err := database.Migrate(ctx, db, logger); err != nil {
		logger.Error("Migration failed", zap.Error(err))
		return err
	}
	logger.Info("Migrations applied")
	return nil
}
