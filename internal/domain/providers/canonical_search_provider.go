package providers

import (
	"context"

	"github.com/zatekoja/coveragecompare/internal/domain/entities"
)

// CanonicalSearchProvider indexes registry entries for the admin code picker
type CanonicalSearchProvider interface {
	// InitSchema ensures the search collection exists
	InitSchema(ctx context.Context) error

	// Index upserts a coverage into the search index
	Index(ctx context.Context, coverage *entities.CanonicalCoverage) error

	// Search returns codes whose display name or code matches query
	Search(ctx context.Context, query string, family string, limit int) ([]CanonicalSearchHit, error)
}

// CanonicalSearchHit is one search result. Hits are suggestions only; the
// registry remains the source of truth.
type CanonicalSearchHit struct {
	Code        string  `json:"code"`
	DisplayName string  `json:"display_name"`
	Family      string  `json:"family"`
	Score       float64 `json:"score"`
}
