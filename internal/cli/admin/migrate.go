package admin

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cloo-solutions/otter/internal/config"
	"github.com/cloo-solutions/otter/internal/database"
	"github.com/cloo-solutions/otter/internal/logging"
)

// MigrateCmd applies pending schema migrations and exits.
func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger, err := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			dir, _ := cmd.Flags().GetString("dir")
			if dir == "" {
				dir = cfg.MigrationsPath
			}

			status, err := database.Migrate(cfg.DatabaseURL, dir, logger)
			if err != nil {
				return err
			}
			logger.Info("migrations complete", zap.Uint("version", status.Version), zap.Bool("applied", status.Applied))
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", status.Version)
			return nil
		},
	}

	cmd.Flags().String("dir", "", "Migrations directory (overrides OTTER_MIGRATIONS_PATH)")
	return cmd
}
