// Package bootstrap connects configuration to the storage, cache, bus and
// search backends and builds the engine on top of them. The API server and
// canonctl share it.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/coveragecompare/internal/adapters/cache"
	"github.com/zatekoja/coveragecompare/internal/adapters/database"
	"github.com/zatekoja/coveragecompare/internal/adapters/events"
	"github.com/zatekoja/coveragecompare/internal/adapters/memory"
	"github.com/zatekoja/coveragecompare/internal/adapters/search"
	"github.com/zatekoja/coveragecompare/internal/application"
	"github.com/zatekoja/coveragecompare/internal/domain/providers"
	"github.com/zatekoja/coveragecompare/internal/domain/repositories"
	"github.com/zatekoja/coveragecompare/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/coveragecompare/internal/infrastructure/clients/redis"
	"github.com/zatekoja/coveragecompare/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/coveragecompare/internal/infrastructure/observability"
	"github.com/zatekoja/coveragecompare/pkg/config"
	"github.com/zatekoja/coveragecompare/pkg/utils"
)

// Options tune what Build connects
type Options struct {
	// Migrate applies pending schema migrations before the store is used
	Migrate bool
	// SkipRedis leaves the cache and bus out; one-shot commands use it
	SkipRedis bool
	Metrics   *observability.Metrics
}

// Runtime is a built engine together with the clients it owns
type Runtime struct {
	Engine   *application.Engine
	Cache    providers.CacheProvider
	Bus      providers.EventBus
	Postgres *postgres.Client
	Redis    *redis.Client

	closers []func() error
}

// Build opens the configured backends and wires the engine. Redis and
// Typesense are optional: a failed connection is logged and the engine runs
// without them. The database is not optional.
func Build(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	rt := &Runtime{}

	store, err := rt.openStore(ctx, cfg, opts)
	if err != nil {
		rt.Close()
		return nil, err
	}

	if cfg.Redis.Enabled && !opts.SkipRedis {
		client, err := redis.NewClient(&cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, running without cache and event bus")
		} else {
			rt.Redis = client
			rt.Cache = cache.NewRedisAdapter(client)
			bus := events.NewRedisEventBus(client)
			rt.Bus = bus
			rt.closers = append(rt.closers, client.Close, bus.Close)
			log.Info().Str("addr", cfg.Redis.RedisAddr()).Msg("Redis client initialized")
		}
	}

	var searchProvider providers.CanonicalSearchProvider
	if cfg.Typesense.Enabled {
		client, err := typesense.NewClient(&cfg.Typesense)
		if err != nil {
			log.Warn().Err(err).Msg("Typesense unavailable, canonical search scans the registry")
		} else {
			searchProvider = search.NewTypesenseAdapter(client)
			log.Info().Str("url", cfg.Typesense.URL).Msg("Typesense client initialized")
		}
	}

	rules, err := utils.LoadNormalizationRules(cfg.Canon.NormalizationConfigPath)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to load normalization rules: %w", err)
	}
	normalizer, err := utils.NewCoverageNormalizer(rules)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to build normalizer: %w", err)
	}

	deps := application.Dependencies{
		Store:      store,
		Normalizer: normalizer,
		Cache:      rt.Cache,
		Bus:        rt.Bus,
		Search:     searchProvider,
		Metrics:    opts.Metrics,
	}

	rt.Engine, err = application.NewEngine(cfg.Canon, deps)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to build engine: %w", err)
	}
	return rt, nil
}

func (rt *Runtime) openStore(ctx context.Context, cfg *config.Config, opts Options) (repositories.Store, error) {
	switch cfg.Store.Driver {
	case "memory":
		log.Warn().Msg("Using the in-memory store; data is lost on exit")
		return memory.NewStore().Repositories(), nil
	case "postgres", "":
	default:
		return repositories.Store{}, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	client, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		return repositories.Store{}, fmt.Errorf("failed to initialize PostgreSQL client: %w", err)
	}
	rt.Postgres = client
	rt.closers = append(rt.closers, client.Close)
	log.Info().Str("host", cfg.Database.Host).Str("database", cfg.Database.Database).Msg("PostgreSQL client initialized")

	if opts.Migrate {
		applied, err := postgres.Migrate(ctx, client)
		if err != nil {
			return repositories.Store{}, fmt.Errorf("failed to migrate database: %w", err)
		}
		if len(applied) > 0 {
			log.Info().Strs("migrations", applied).Msg("Applied database migrations")
		}
	}
	return database.NewStore(client), nil
}

// Health pings the database and Redis when they are connected
func (rt *Runtime) Health(ctx context.Context) error {
	var errs []error
	if rt.Postgres != nil {
		if err := rt.Postgres.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("postgres: %w", err))
		}
	}
	if rt.Redis != nil {
		if err := rt.Redis.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Close stops the engine and releases clients in reverse order of opening
func (rt *Runtime) Close() error {
	if rt.Engine != nil {
		rt.Engine.Stop()
	}
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
