package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yeet-socket/yeet/api/handlers"
	"github.com/yeet-socket/yeet/internal/config"
	"github.com/yeet-socket/yeet/internal/db"
	"github.com/yeet-socket/yeet/internal/driver"
	"github.com/yeet-socket/yeet/internal/logging"
	"github.com/yeet-socket/yeet/internal/repository"
	"github.com/yeet-socket/yeet/internal/session"
	"github.com/yeet-socket/yeet/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	os.Exit(exitCode(logger, run(cfg, logger)))
}

// exitCode logs err and flushes the logger, since os.Exit skips deferred calls.
func exitCode(logger *zap.Logger, err error) int {
	code := 0
	if err != nil {
		logger.Error("Server stopped", zap.Error(err))
		code = 1
	}
	_ = logger.Sync()
	return code
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize session registry, optionally backed by the audit database
	var store session.Store
	if cfg.Server.AuditEnabled() {
		database, err := db.Open(cfg.Server.DBPath)
		if err != nil {
			return err
		}
		defer database.Close()
		store = repository.NewSessionRepository(database)
	}
	registry := session.NewManager(store, logger)
	if err := registry.Recover(ctx); err != nil {
		return err
	}

	// Initialize text generation
	gen, err := driver.New(cfg.Generation, logging.Module(logger, "ai"))
	if err != nil {
		return err
	}
	if closer, ok := gen.(interface{ Close() }); ok {
		defer closer.Close()
	}

	service := ws.NewService(gen, registry, ws.Options{
		PromptRate:      cfg.Server.PromptRate,
		PromptBurst:     cfg.Server.PromptBurst,
		GenerateTimeout: cfg.Generation.Timeout,
	}, logger)

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: handlers.NewRouter(service, logger),
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("Starting server", zap.String("addr", srv.Addr), zap.String("driver", gen.Name()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		logger.Info("Shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Hijacked WebSocket connections are not tracked by Shutdown.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", zap.Error(err))
	}
	if err := service.Close(shutdownCtx); err != nil {
		logger.Warn("Sessions did not close in time", zap.Error(err))
	}
	return nil
}
