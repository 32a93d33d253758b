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

	"github.com/zatekoja/coveragecompare/internal/bootstrap"
	"github.com/zatekoja/coveragecompare/internal/graphql/server"
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

	serviceName := cfg.OTEL.ServiceName + "-graphql"
	observability.InitLogger(serviceName, cfg.Environment)

	log.Info().
		Str("service", serviceName).
		Str("version", cfg.OTEL.ServiceVersion).
		Str("env", cfg.Environment).
		Msg("Starting GraphQL Server")

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, serviceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			defer func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				if err := shutdown(shutdownCtx); err != nil {
					log.Error().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
			log.Info().Msg("OpenTelemetry initialized successfully")
		}
	}

	// Initialize metrics
	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize metrics")
	}

	// The API server owns migrations; this process only reads
	rt, err := bootstrap.Build(ctx, cfg, bootstrap.Options{Metrics: metrics})
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
	handler := server.NewHandler(engine.Compare, engine.Workbench, engine.Registry, server.Options{
		Metrics:        metrics,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Health:         rt.Health,
		Playground:     cfg.Environment != "production",
	})
	if cfg.Environment != "production" {
		log.Info().Int("port", cfg.Server.GraphQLPort).Msg("GraphQL Playground available at /playground")
	}

	// Create HTTP server
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.GraphQLPort)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("address", serverAddr).Msg("GraphQL server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("GraphQL server shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during server shutdown")
	}

	log.Info().Msg("GraphQL server stopped")
}
