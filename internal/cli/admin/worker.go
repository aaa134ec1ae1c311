package admin

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// WorkerCmd runs the ingestion worker without the HTTP API.
func WorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Process queued ingestion jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			noMigrate, _ := cmd.Flags().GetBool("no-migrate")
			a, err := newApp(ctx, appOptions{migrate: !noMigrate, needsProvider: true})
			if err != nil {
				return err
			}
			defer a.Close()

			a.logger.Info("processing queued jobs", zap.Int("concurrency", a.jobPool.Size()))
			// Start returns once ctx is cancelled and the in-flight poll has unwound.
			a.newWorker().Start(ctx)
			return nil
		},
	}

	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	return cmd
}
