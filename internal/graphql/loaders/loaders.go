package loaders

import (
	"context"
	"net/http"
	"time"

	"github.com/graph-gophers/dataloader/v7"

	"github.com/zatekoja/coveragecompare/internal/domain/entities"
	apperrors "github.com/zatekoja/coveragecompare/pkg/errors"
)

type ctxKey string

const loadersKey ctxKey = "dataloaders"

// CoverageSource batches registry lookups
type CoverageSource interface {
	LookupMany(ctx context.Context, codes []string) ([]*entities.CanonicalCoverage, error)
}

// Loaders holds the per-request dataloaders
type Loaders struct {
	CoverageLoader *dataloader.Loader[string, *entities.CanonicalCoverage]
}

// NewLoaders creates the loaders for one request
func NewLoaders(registry CoverageSource) *Loaders {
	return &Loaders{
		CoverageLoader: dataloader.NewBatchedLoader(func(ctx context.Context, keys []string) []*dataloader.Result[*entities.CanonicalCoverage] {
			results := make([]*dataloader.Result[*entities.CanonicalCoverage], len(keys))
			coverages, err := registry.LookupMany(ctx, keys)

			byCode := make(map[string]*entities.CanonicalCoverage, len(coverages))
			if err == nil {
				for _, c := range coverages {
					byCode[c.Code().String()] = c
				}
			}

			for i, key := range keys {
				if err != nil {
					results[i] = &dataloader.Result[*entities.CanonicalCoverage]{Error: err}
				} else if c, ok := byCode[key]; ok {
					results[i] = &dataloader.Result[*entities.CanonicalCoverage]{Data: c}
				} else {
					results[i] = &dataloader.Result[*entities.CanonicalCoverage]{
						Error: apperrors.NewNotFoundError("canonical coverage " + key + " not found"),
					}
				}
			}
			return results
		}, dataloader.WithWait[string, *entities.CanonicalCoverage](2*time.Millisecond)),
	}
}

// For returns the loaders attached to ctx
func For(ctx context.Context) *Loaders {
	l, _ := ctx.Value(loadersKey).(*Loaders)
	return l
}

// WithLoaders returns a new context with the loaders attached
func WithLoaders(ctx context.Context, loaders *Loaders) context.Context {
	return context.WithValue(ctx, loadersKey, loaders)
}

// Middleware attaches fresh loaders to every request
func Middleware(registry CoverageSource, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithLoaders(r.Context(), NewLoaders(registry))))
	})
}
