package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/coveragecompare/internal/api/handlers"
	"github.com/zatekoja/coveragecompare/internal/api/middleware"
	"github.com/zatekoja/coveragecompare/internal/api/routes"
	"github.com/zatekoja/coveragecompare/internal/bootstrap"
	"github.com/zatekoja/coveragecompare/internal/infrastructure/observability"
	"github.com/zatekoja/coveragecompare/pkg/config"
)

func main() {

	// Load configuration

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Environment)

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(
			ctx,
			cfg.OTEL.ServiceName,
			cfg.OTEL.ServiceVersion,
			cfg.OTEL.Endpoint,
		)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
			log.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	// Initialize metrics
	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize metrics")
	}

	// Storage, cache, bus, search and the engine
	rt, err := bootstrap.Build(ctx, cfg, bootstrap.Options{Migrate: true, Metrics: metrics})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize engine")
	}
	defer func() {
		if err := rt.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing clients")
		}
	}()

	if err := rt.Engine.Start(); err != nil {
		log.Warn().Err(err).Msg("Alias index refresh listener not started")
	}

	engine := rt.Engine

	// Response cache is only useful with a shared cache
	var cacheMiddleware *middleware.CacheMiddleware
	if rt.Cache != nil {
		cacheMiddleware = middleware.NewCacheMiddleware(rt.Cache, int(cfg.Server.ResponseCacheTTL.Seconds()))
		engine.Registry.OnChange(cacheMiddleware.Invalidate)
	}

	router := routes.NewRouter(
		handlers.NewUniverseHandler(engine.Universe, engine.ReResolver),
		handlers.NewCompareHandler(engine.Compare, engine.Index),
		handlers.NewDecisionHandler(engine.Decisions),
		handlers.NewDiseaseScopeHandler(engine.Scopes),
		handlers.NewWorkbenchHandler(engine.Workbench, engine.Search),
		cacheMiddleware,
		metrics,
		cfg.Server.AllowedOrigins,
		rt.Health,
	)

	handler := router.SetupRoutes()

	// Create HTTP server
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("addr", serverAddr).Str("store", cfg.Store.Driver).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Server shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during server shutdown")
	}

	log.Info().Msg("Server stopped")
}
