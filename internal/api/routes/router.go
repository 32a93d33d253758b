package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/zatekoja/coveragecompare/internal/api/handlers"
	"github.com/zatekoja/coveragecompare/internal/api/middleware"
	"github.com/zatekoja/coveragecompare/internal/infrastructure/observability"
)

// HealthCheck reports whether a dependency is reachable
type HealthCheck func(ctx context.Context) error

// Router holds all route handlers

type Router struct {
	mux *http.ServeMux

	universeHandler  *handlers.UniverseHandler
	compareHandler   *handlers.CompareHandler
	decisionHandler  *handlers.DecisionHandler
	scopeHandler     *handlers.DiseaseScopeHandler
	workbenchHandler *handlers.WorkbenchHandler

	cacheMiddleware *middleware.CacheMiddleware
	metrics         *observability.Metrics
	allowedOrigins  []string
	health          HealthCheck
}

// NewRouter creates a new router

func NewRouter(
	universeHandler *handlers.UniverseHandler,
	compareHandler *handlers.CompareHandler,
	decisionHandler *handlers.DecisionHandler,
	scopeHandler *handlers.DiseaseScopeHandler,
	workbenchHandler *handlers.WorkbenchHandler,

	cacheMiddleware *middleware.CacheMiddleware,
	metrics *observability.Metrics,
	allowedOrigins []string,
	health HealthCheck,
) *Router {
	return &Router{
		mux: http.NewServeMux(),

		universeHandler:  universeHandler,
		compareHandler:   compareHandler,
		decisionHandler:  decisionHandler,
		scopeHandler:     scopeHandler,
		workbenchHandler: workbenchHandler,

		cacheMiddleware: cacheMiddleware,
		metrics:         metrics,
		allowedOrigins:  allowedOrigins,
		health:          health,
	}
}

// SetupRoutes configures all application routes

func (r *Router) SetupRoutes() http.Handler {

	// Health check endpoint

	r.mux.HandleFunc("GET /health", r.healthCheck)

	// Universe endpoints

	r.mux.HandleFunc("POST /api/universe/rows", r.universeHandler.IngestRows)
	r.mux.HandleFunc("POST /api/universe/proposals/{insurer}/{proposalId}/reresolve", r.universeHandler.ReResolveProposal)

	// Compare endpoints

	r.mux.HandleFunc("GET /api/resolve", r.compareHandler.Resolve)
	r.mux.HandleFunc("GET /api/recall", r.compareHandler.Recall)

	// Decision endpoints

	r.mux.HandleFunc("POST /api/decisions", r.decisionHandler.Decide)
	r.mux.HandleFunc("GET /api/decisions/stats", r.decisionHandler.Stats)

	// Disease scope endpoints

	r.mux.HandleFunc("POST /api/disease-groups", r.scopeHandler.CreateGroup)
	r.mux.HandleFunc("POST /api/disease-scopes", r.scopeHandler.AttachScope)
	r.mux.HandleFunc("GET /api/disease-scopes", r.scopeHandler.GetScope)

	// Workbench endpoints

	r.mux.HandleFunc("GET /api/admin/mapping-events", r.workbenchHandler.ListEvents)
	r.mux.HandleFunc("GET /api/admin/mapping-events/{id}", r.workbenchHandler.GetEvent)
	r.mux.HandleFunc("POST /api/admin/mapping-events/{id}/approve", r.workbenchHandler.Approve)
	r.mux.HandleFunc("POST /api/admin/mapping-events/{id}/reject", r.workbenchHandler.Reject)
	r.mux.HandleFunc("POST /api/admin/mapping-events/{id}/snooze", r.workbenchHandler.Snooze)
	r.mux.HandleFunc("POST /api/admin/mapping-events/{id}/suggestions", r.workbenchHandler.AddSuggestions)
	r.mux.HandleFunc("GET /api/admin/audit-log", r.workbenchHandler.ListAudit)
	r.mux.HandleFunc("GET /api/admin/canonical-coverages/search", r.workbenchHandler.SearchCanonical)

	// Apply middleware in reverse order (last middleware wraps first)
	// CORS must be outermost so cached responses also get CORS headers.

	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)

	// Apply cache middleware if available
	if r.cacheMiddleware != nil {
		handler = r.cacheMiddleware.Middleware(handler)
	}

	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.ResponseOptimization(handler)
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}

func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	if r.health != nil {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if err := r.health(ctx); err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).Msg("Health check failed")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("UNAVAILABLE"))
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		return
	}
}
