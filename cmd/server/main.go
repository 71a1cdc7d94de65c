// Package main is the entry point for the promptbridge server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/promptbridge/promptbridge/internal/cache"
	"github.com/promptbridge/promptbridge/internal/config"
	"github.com/promptbridge/promptbridge/internal/dispatch"
	"github.com/promptbridge/promptbridge/internal/field"
	"github.com/promptbridge/promptbridge/internal/handler"
	"github.com/promptbridge/promptbridge/internal/record"
	"github.com/promptbridge/promptbridge/internal/security"
	"github.com/promptbridge/promptbridge/internal/ui"
)

const version = "v1.0.0"

func main() {
	configPath := flag.String("config", "", "path to config file (default: search ./config.yaml)")
	flag.Parse()

	// =========================================================================
	// 1. Load configuration
	// =========================================================================
	cfg, err := config.Load(*configPath)
	if err != nil {
		switch {
		case config.IsValidationError(err):
			fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		case config.IsConfigError(err):
			fmt.Fprintf(os.Stderr, "could not load configuration: %v\n", err)
		default:
			fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		}
		os.Exit(1)
	}

	// =========================================================================
	// 2. Setup structured logger (JSON, secrets redacted)
	// =========================================================================
	logger := setupLogger(cfg.Logging)

	logger.Info("starting promptbridge",
		slog.String("version", version),
		slog.String("host", cfg.Server.Host),
		slog.Int("port", cfg.Server.Port),
		slog.String("default_provider", string(cfg.DefaultProvider())),
	)

	// =========================================================================
	// 3. Initialize the response cache
	// =========================================================================
	store, err := openCacheStore(cfg.Cache, logger)
	if err != nil {
		logger.Error("failed to initialize cache", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// =========================================================================
	// 4. Initialize dispatcher and usage tally
	// =========================================================================
	tally := dispatch.NewUsageTally()
	dispatcher := dispatch.New(cfg,
		dispatch.WithCache(store),
		dispatch.WithLogger(logger),
		dispatch.WithUsageTally(tally),
	)

	// =========================================================================
	// 5. Initialize the record store and field service
	// =========================================================================
	recordStore, err := openRecordStore(cfg.Record, logger)
	if err != nil {
		logger.Error("failed to open record store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	fieldService := field.NewService(dispatcher, recordStore, field.WithLogger(logger))

	// =========================================================================
	// 6. Setup Gin router with middleware and routes
	// =========================================================================
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(handler.RecoveryMiddleware(logger))
	router.Use(handler.CORSMiddleware())
	router.Use(handler.LoggingMiddleware(logger))

	dispatchHandler := handler.NewDispatchHandler(dispatcher, logger)
	adminHandler := handler.NewAdminHandler(cfg, dispatcher, store, tally, logger)
	fieldHandler := handler.NewFieldHandler(fieldService, logger)

	router.POST("/v1/dispatch", dispatchHandler.HandleDispatch)
	router.POST("/v1/dispatch/broadcast", dispatchHandler.HandleBroadcast)

	router.POST("/v1/records/:id/fields/:name", fieldHandler.HandleGenerateField)
	router.POST("/v1/records/:id/fields", fieldHandler.HandleGenerateFields)

	router.GET("/v1/providers", adminHandler.HandleProviders)
	router.POST("/v1/providers/:provider/keys/:index/test", adminHandler.HandleTestCredential)
	router.GET("/v1/usage", adminHandler.HandleUsage)
	router.GET("/v1/cache/stats", adminHandler.HandleCacheStats)
	router.POST("/v1/cache/sweep", adminHandler.HandleCacheSweep)
	router.DELETE("/v1/cache", adminHandler.HandleCacheClear)
	router.DELETE("/v1/cache/:context", adminHandler.HandleCacheClearContext)
	router.DELETE("/v1/cache/:context/:key", adminHandler.HandleCacheDeleteEntry)
	router.GET("/health", adminHandler.HandleHealth)

	// =========================================================================
	// 7. Start the expired-entry sweeper
	// =========================================================================
	sweepDone := make(chan struct{})
	if store != nil && cfg.Cache.SweepIntervalHours > 0 {
		go runSweeper(store, time.Duration(cfg.Cache.SweepIntervalHours)*time.Hour, logger, sweepDone)
	}

	// =========================================================================
	// 8. Start HTTP server with graceful shutdown
	// =========================================================================
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
	}

	go func() {
		logger.Info("server starting", slog.String("address", addr))
		ui.PrintBanner(version, addr)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	close(sweepDone)

	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeoutSeconds) * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// setupLogger creates the structured logger. All records pass through the
// redacting handler so API keys never reach the output even on debug level.
func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var inner slog.Handler
	if cfg.Format == "text" {
		inner = slog.NewTextHandler(os.Stdout, opts)
	} else {
		inner = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(security.NewRedactingHandler(inner))
	slog.SetDefault(logger)
	return logger
}

// openCacheStore creates the response cache whenever a directory is
// configured. The store must exist even with cache.enabled false: that flag
// only sets the default policy, and a per-call cache setting can still turn
// caching on for an individual request.
func openCacheStore(cfg config.CacheConfig, logger *slog.Logger) (*cache.Store, error) {
	if cfg.Dir == "" {
		return nil, nil
	}
	store, err := cache.NewStore(cfg.Dir, cache.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	logger.Info("cache initialized",
		slog.String("dir", cfg.Dir),
		slog.String("default_ttl", cfg.DefaultTTL),
		slog.Bool("default_on", cfg.Enabled),
	)
	return store, nil
}

// openRecordStore selects the record-field backend from configuration.
func openRecordStore(cfg config.RecordConfig, logger *slog.Logger) (record.Store, error) {
	switch cfg.Driver {
	case "mysql":
		store, err := record.OpenMySQL(cfg.DSN)
		if err != nil {
			return nil, err
		}
		logger.Info("record store connected", slog.String("driver", "mysql"))
		return store, nil
	case "", "memory":
		logger.Info("record store in memory; field values will not survive restarts")
		return record.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported record driver %q", cfg.Driver)
	}
}

// runSweeper removes expired cache entries on a fixed cadence until done closes.
func runSweeper(store *cache.Store, interval time.Duration, logger *slog.Logger, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("cache sweeper started", slog.Duration("interval", interval))
	for {
		select {
		case <-ticker.C:
			removed := store.SweepExpired()
			if removed > 0 {
				ui.PrintSweep(removed)
			}
		case <-done:
			return
		}
	}
}
