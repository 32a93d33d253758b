package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/zatekoja/coveragecompare/internal/domain/entities"
	"github.com/zatekoja/coveragecompare/internal/domain/providers"
	tsclient "github.com/zatekoja/coveragecompare/internal/infrastructure/clients/typesense"
)

const collectionName = "canonical_coverages"

// TypesenseAdapter implements canonical coverage search using Typesense
type TypesenseAdapter struct {
	client *tsclient.Client
}

var _ providers.CanonicalSearchProvider = (*TypesenseAdapter)(nil)

// NewTypesenseAdapter creates a new Typesense adapter
func NewTypesenseAdapter(client *tsclient.Client) *TypesenseAdapter {
	return &TypesenseAdapter{client: client}
}

// InitSchema ensures the collection exists
func (a *TypesenseAdapter) InitSchema(ctx context.Context) error {
	_, err := a.client.Client().Collection(collectionName).Retrieve(ctx)
	if err == nil {
		return nil
	}

	schema := &api.CollectionSchema{
		Name: collectionName,
		Fields: []api.Field{
			{Name: "id", Type: "string"},
			{Name: "code", Type: "string"},
			{Name: "display_name", Type: "string", Locale: pointer.String("ko")},
			{Name: "family", Type: "string", Facet: pointer.True()},
			{Name: "event_type", Type: "string", Facet: pointer.True(), Optional: pointer.True()},
			{Name: "requires_decision", Type: "bool"},
			{Name: "created_at", Type: "int64"},
		},
		DefaultSortingField: pointer.String("created_at"),
	}
	if _, err := a.client.Client().Collections().Create(ctx, schema); err != nil {
		return fmt.Errorf("failed to create typesense collection: %w", err)
	}
	return nil
}

// Index upserts a coverage document
func (a *TypesenseAdapter) Index(ctx context.Context, coverage *entities.CanonicalCoverage) error {
	_, err := a.client.Client().Collection(collectionName).Documents().Upsert(ctx, coverageDocument(coverage))
	if err != nil {
		return fmt.Errorf("failed to index coverage %s: %w", coverage.Code().String(), err)
	}
	return nil
}

// Search matches query against display names and codes
func (a *TypesenseAdapter) Search(ctx context.Context, query, family string, limit int) ([]providers.CanonicalSearchHit, error) {
	if limit <= 0 {
		limit = 20
	}
	q := strings.TrimSpace(query)
	if q == "" {
		q = "*"
	}
	params := &api.SearchCollectionParams{
		Q:       pointer.String(q),
		QueryBy: pointer.String("display_name,code"),
		PerPage: pointer.Int(limit),
	}
	if family != "" {
		params.FilterBy = pointer.String(fmt.Sprintf("family:=%s", family))
	}

	result, err := a.client.Client().Collection(collectionName).Documents().Search(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to search canonical coverages: %w", err)
	}

	hits := []providers.CanonicalSearchHit{}
	if result.Hits == nil {
		return hits, nil
	}
	for _, hit := range *result.Hits {
		if hit.Document == nil {
			continue
		}
		var score float64
		if hit.TextMatch != nil {
			score = float64(*hit.TextMatch)
		}
		if h, ok := hitFromDocument(*hit.Document, score); ok {
			hits = append(hits, h)
		}
	}
	return hits, nil
}

func coverageDocument(c *entities.CanonicalCoverage) map[string]interface{} {
	return map[string]interface{}{
		"id":                c.Code().String(),
		"code":              c.Code().String(),
		"display_name":      c.DisplayName,
		"family":            c.Family,
		"event_type":        c.EventType,
		"requires_decision": c.RequiresDecision,
		"created_at":        c.CreatedAt.Unix(),
	}
}

func hitFromDocument(doc map[string]interface{}, score float64) (providers.CanonicalSearchHit, bool) {
	code, ok := doc["code"].(string)
	if !ok || code == "" {
		return providers.CanonicalSearchHit{}, false
	}
	h := providers.CanonicalSearchHit{Code: code, Score: score}
	if v, ok := doc["display_name"].(string); ok {
		h.DisplayName = v
	}
	if v, ok := doc["family"].(string); ok {
		h.Family = v
	}
	return h, true
}
