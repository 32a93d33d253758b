package services

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/coveragecompare/internal/domain/providers"
	"github.com/zatekoja/coveragecompare/pkg/utils"
)

// CanonicalSearchService backs the code picker of the workbench. Hits are
// re-checked against the registry so a stale search index never offers a
// code that is not published.
type CanonicalSearchService struct {
	registry   *RegistryService
	search     providers.CanonicalSearchProvider
	normalizer *utils.CoverageNormalizer
}

// NewCanonicalSearchService creates a new canonical search service. search
// may be nil, in which case the registry is scanned directly.
func NewCanonicalSearchService(registry *RegistryService, search providers.CanonicalSearchProvider, normalizer *utils.CoverageNormalizer) *CanonicalSearchService {
	return &CanonicalSearchService{registry: registry, search: search, normalizer: normalizer}
}

// IndexAll pushes every registry entry into the search index
func (s *CanonicalSearchService) IndexAll(ctx context.Context) (int, error) {
	if s.search == nil {
		return 0, nil
	}
	if err := s.search.InitSchema(ctx); err != nil {
		return 0, err
	}
	coverages, err := s.registry.List(ctx)
	if err != nil {
		return 0, err
	}
	for i, c := range coverages {
		if err := s.search.Index(ctx, c); err != nil {
			return i, err
		}
	}
	return len(coverages), nil
}

// Search finds registry codes by display name or code
func (s *CanonicalSearchService) Search(ctx context.Context, query, family string, limit int) ([]providers.CanonicalSearchHit, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if s.search != nil {
		hits, err := s.search.Search(ctx, query, family, limit)
		if err == nil {
			return s.published(ctx, hits)
		}
		log.Warn().Err(err).Msg("Canonical search failed, scanning registry")
	}
	return s.scan(ctx, query, family, limit)
}

func (s *CanonicalSearchService) published(ctx context.Context, hits []providers.CanonicalSearchHit) ([]providers.CanonicalSearchHit, error) {
	out := make([]providers.CanonicalSearchHit, 0, len(hits))
	for _, h := range hits {
		ok, err := s.registry.Exists(ctx, h.Code)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, h)
		}
	}
	return out, nil
}

func (s *CanonicalSearchService) scan(ctx context.Context, query, family string, limit int) ([]providers.CanonicalSearchHit, error) {
	coverages, err := s.registry.List(ctx)
	if err != nil {
		return nil, err
	}
	key := s.normalizer.Key(query)
	upper := strings.ToUpper(strings.TrimSpace(query))

	hits := []providers.CanonicalSearchHit{}
	for _, c := range coverages {
		if family != "" && c.Family != family {
			continue
		}
		var score float64
		switch {
		case upper == "":
			score = 0
		case strings.Contains(c.Code().String(), upper):
			score = 1
		case key != "":
			score = utils.Similarity(key, s.normalizer.Key(c.DisplayName))
			if strings.Contains(s.normalizer.Key(c.DisplayName), key) && score < 0.9 {
				score = 0.9
			}
			if score < 0.5 {
				continue
			}
		default:
			continue
		}
		hits = append(hits, providers.CanonicalSearchHit{Code: c.Code().String(), DisplayName: c.DisplayName, Family: c.Family, Score: score})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Code < hits[j].Code
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}
