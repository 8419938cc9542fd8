package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trading-journal/internal/backend"
	"trading-journal/internal/config"
	"trading-journal/internal/logger"
	"trading-journal/internal/scheduler"
	"trading-journal/internal/server"
	"trading-journal/internal/trace"
	"trading-journal/internal/tracker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const sweepSpec = "@every 1m"

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := trace.Init(cfg.Tracing.Enabled, os.Stdout); err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	newBackend, closeBackend, err := backend.NewFactory(&cfg, log)
	if err != nil {
		log.Fatal("Failed to set up backend", zap.Error(err))
	}
	defer closeBackend()

	srv := server.New(newBackend, tracker.Config{
		Timeout:  cfg.Backend.Timeout,
		Defaults: cfg.Journal.Settings(),
	}, cfg.Server.SessionTTL, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jobs := scheduler.New(log, ctx)
	if _, err := jobs.Add(sweepSpec, scheduler.SweepJob(srv.Sessions(), log)); err != nil {
		log.Fatal("Failed to schedule session sweep", zap.Error(err))
	}
	if cfg.Backup.Schedule != "" {
		job := scheduler.BackupJob(srv.Sessions(), cfg.Backup.Dir, time.Now, log.Named("backup"))
		if _, err := jobs.Add(cfg.Backup.Schedule, job); err != nil {
			log.Fatal("Failed to schedule backups", zap.Error(err), zap.String("schedule", cfg.Backup.Schedule))
		}
		log.Info("Scheduled backups enabled", zap.String("schedule", cfg.Backup.Schedule), zap.String("dir", cfg.Backup.Dir))
	}
	jobs.Start()

	gin.SetMode(gin.ReleaseMode)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Starting web server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Web server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutdown signal received, gracefully shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Web server shutdown failed", zap.Error(err))
	}
	jobs.Stop()
	if err := trace.Shutdown(shutdownCtx); err != nil {
		log.Warn("Tracer shutdown failed", zap.Error(err))
	}

	log.Info("Server has been shut down.")
}
