package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cloo-solutions/otter/internal/api/handlers"
	"github.com/cloo-solutions/otter/internal/jobs"
	"github.com/cloo-solutions/otter/internal/server"
	"github.com/cloo-solutions/otter/internal/service"
)

const shutdownTimeout = 30 * time.Second

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server and ingestion worker",
		Long:  "Start the otter HTTP API. Unless --no-worker is set the ingestion worker runs in the same process.",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (overrides OTTER_PORT)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().Bool("no-worker", false, "Serve the API without processing queued jobs")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	noWorker, _ := cmd.Flags().GetBool("no-worker")

	a, err := newApp(ctx, appOptions{migrate: !noMigrate, needsProvider: true})
	if err != nil {
		return err
	}
	defer a.Close()

	if port, _ := cmd.Flags().GetString("port"); port != "" {
		a.cfg.Port = port
	}

	auth := service.NewStaticKeyAuthenticator(a.cfg.APIKeys)
	if auth.Len() == 0 {
		a.logger.Warn("no API keys configured; every /v1 request will be rejected")
	}

	router := server.NewRouter(server.RouterConfig{
		Logger:        a.logger,
		Metrics:       a.metrics,
		Gatherer:      a.registry,
		Database:      a.pool,
		AuthValidator: auth,
		MaxBodyBytes:  a.cfg.MaxUploadBytes,
		SourceHandler: handlers.NewSourceHandler(a.sources),
		JobHandler:    handlers.NewJobHandler(a.ingestion),
		QueryHandler:  handlers.NewQueryHandler(a.retrieval),
	})

	var worker *jobs.Worker
	if !noWorker {
		worker = a.newWorker()
		go worker.Start(ctx)
		a.logger.Info("ingestion worker started",
			zap.Int("concurrency", a.jobPool.Size()),
			zap.Duration("poll_interval", a.cfg.WorkerPollInterval))
	}

	srv := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("starting server", zap.String("port", a.cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}
	a.logger.Info("shutting down")

	if worker != nil {
		worker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	a.logger.Info("server exited")
	return nil
}

func (a *app) newWorker() *jobs.Worker {
	processor := jobs.NewIngestionWorker(a.jobs, a.ingestion, a.jobPool, a.cfg.JobTimeout, a.logger)
	return jobs.NewWorker(processor, a.cfg.WorkerPollInterval, a.logger)
}
