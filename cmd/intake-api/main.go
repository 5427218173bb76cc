package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/noah-isme/school-intake-api/api/swagger"
	"github.com/noah-isme/school-intake-api/internal/app"
	"github.com/noah-isme/school-intake-api/pkg/config"
	"github.com/noah-isme/school-intake-api/pkg/logger"
)

// @title School Intake API
// @version 1.0.0
// @description Receives school partnership inquiries and fans them out to the record board, file storage and email.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logr)
	if err != nil {
		logr.Sugar().Fatalw("failed to build application", "error", err)
	}
	defer application.Close() //nolint:errcheck

	maintenance, err := application.Maintenance()
	if err != nil {
		logr.Sugar().Fatalw("failed to schedule maintenance", "error", err)
	}
	maintenance.Start(ctx)
	defer maintenance.Stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           application.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting",
			"addr", srv.Addr,
			"env", cfg.Env,
			"storage", cfg.Storage.Driver,
			"ledger", cfg.Ledger.Enabled,
			"folder_cache", cfg.Storage.FolderCacheEnabled,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
