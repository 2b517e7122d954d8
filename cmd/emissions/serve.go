package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/web3-frozen/unlock-emissions/internal/handler"
	"github.com/web3-frozen/unlock-emissions/internal/middleware"
	"github.com/web3-frozen/unlock-emissions/internal/pipeline"
)

const runRetention = 30 * 24 * time.Hour

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the run trigger API and run the scheduler",
	RunE:  serve,
}

var serveNoScheduleFlag bool

func init() {
	serveCmd.Flags().BoolVar(&serveNoScheduleFlag, "no-schedule", false, "Only run batches triggered over HTTP")
}

func serve(cmd *cobra.Command, _ []string) error {
	logger := newLogger()

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, logger)
	if err != nil {
		return err
	}
	defer a.close()

	// Start background goroutines
	if !serveNoScheduleFlag {
		sched := pipeline.NewScheduler(a.orch, a.cfg.ScheduleChunk, a.cfg.ScheduleInterval, logger)
		go sched.Run(ctx)
	}
	go a.cleanupRuns(ctx)

	// HTTP routes
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics())

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", handler.Health())
	r.Get("/readyz", handler.Ready(a.db))

	r.Route("/api", func(r chi.Router) {
		r.Get("/adapters", handler.ListAdapters(a.adapters.Names()))
		r.Get("/runs", handler.ListRuns(a.db))
		r.Post("/runs", handler.TriggerRun(ctx, a.orch))
	})

	srv := &http.Server{
		Addr:         ":" + a.cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", a.cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("server failed", "error", err)
		return err
	}

	logger.Info("shutting down gracefully")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	// The store stays open until in-flight runs have recorded themselves.
	if err := a.orch.Wait(shutdownCtx); err != nil {
		logger.Warn("runs still in flight at shutdown", "error", err)
	}
	return nil
}

// cleanupRuns prunes old run history once a day.
func (a *app) cleanupRuns(ctx context.Context) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		n, err := a.db.CleanupOldRuns(ctx, runRetention)
		if err != nil {
			a.logger.Error("cleanup run history failed", "error", err)
		} else if n > 0 {
			a.logger.Info("cleaned up run history", "deleted", n)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
