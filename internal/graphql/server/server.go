package server

import (
	"context"
	"net/http"
	"time"

	"github.com/99designs/gqlgen/graphql/handler"
	"github.com/99designs/gqlgen/graphql/handler/lru"
	"github.com/99designs/gqlgen/graphql/handler/transport"
	"github.com/99designs/gqlgen/graphql/playground"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/zatekoja/coveragecompare/internal/api/middleware"
	"github.com/zatekoja/coveragecompare/internal/graphql/loaders"
	"github.com/zatekoja/coveragecompare/internal/graphql/resolvers"
	"github.com/zatekoja/coveragecompare/internal/graphql/schema"
	"github.com/zatekoja/coveragecompare/internal/infrastructure/observability"
)

// Options configures the GraphQL HTTP surface
type Options struct {
	Metrics        *observability.Metrics
	AllowedOrigins []string
	Health         func(ctx context.Context) error
	// Playground serves the GraphQL playground at /playground
	Playground bool
}

// NewHandler serves the read-only query API at /graphql
func NewHandler(compare resolvers.Comparer, events resolvers.EventReader, registry resolvers.Registry, opts Options) http.Handler {
	srv := handler.New(schema.NewExecutableSchema(schema.Config{
		Resolvers: resolvers.NewResolver(compare, events, registry),
	}))

	srv.AddTransport(transport.Options{})
	srv.AddTransport(transport.GET{})
	srv.AddTransport(transport.POST{})

	srv.SetQueryCache(lru.New[*ast.QueryDocument](1000))

	// Apply middleware: Compression -> Observability -> Logging -> CORS -> DataLoader
	graphqlHandler := middleware.Compression(
		middleware.ObservabilityMiddleware(opts.Metrics)(
			middleware.LoggingMiddleware(
				middleware.CORSMiddleware(opts.AllowedOrigins)(
					loaders.Middleware(registry, srv),
				),
			),
		),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.Health != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := opts.Health(ctx); err != nil {
				observability.LoggerFromContext(ctx).Warn().Err(err).Msg("Health check failed")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"unavailable","service":"graphql"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","service":"graphql"}`))
	})
	mux.Handle("/graphql", graphqlHandler)
	if opts.Playground {
		mux.Handle("/playground", playground.Handler("Coverage GraphQL", "/graphql"))
	}
	return mux
}
