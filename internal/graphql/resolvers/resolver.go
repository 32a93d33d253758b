package resolvers

import (
	"context"

	"github.com/zatekoja/coveragecompare/internal/application/services"
	"github.com/zatekoja/coveragecompare/internal/domain/entities"
	"github.com/zatekoja/coveragecompare/internal/graphql/loaders"
	"github.com/zatekoja/coveragecompare/internal/graphql/schema"
	apperrors "github.com/zatekoja/coveragecompare/pkg/errors"
)

// Comparer answers coverage resolutions
type Comparer interface {
	Resolve(ctx context.Context, insurer, coverageName, proposalID string) (*services.CompareResult, error)
}

// EventReader reads the workbench queue
type EventReader interface {
	ListEvents(ctx context.Context, filter entities.EventFilter) ([]*entities.MappingEvent, int, error)
	GetEvent(ctx context.Context, id string) (*services.EventDetail, error)
}

// Registry looks up published coverages
type Registry interface {
	Lookup(ctx context.Context, code string) (*entities.CanonicalCoverage, error)
	LookupMany(ctx context.Context, codes []string) ([]*entities.CanonicalCoverage, error)
}

// Resolver is the read-only GraphQL root
type Resolver struct {
	compare  Comparer
	events   EventReader
	registry Registry
}

// NewResolver creates a new resolver with dependencies
func NewResolver(compare Comparer, events EventReader, registry Registry) *Resolver {
	return &Resolver{compare: compare, events: events, registry: registry}
}

// Query returns the root query resolver
func (r *Resolver) Query() schema.QueryResolver { return &queryResolver{r} }

// Coverage returns the resolver for fields that name registry codes
func (r *Resolver) Coverage() schema.CoverageResolver { return &coverageResolver{r} }

type queryResolver struct{ *Resolver }

func (r *queryResolver) Resolve(ctx context.Context, insurer, coverageName string, proposalID *string) (*services.CompareResult, error) {
	var proposal string
	if proposalID != nil {
		proposal = *proposalID
	}
	return r.compare.Resolve(ctx, insurer, coverageName, proposal)
}

func (r *queryResolver) CanonicalCoverage(ctx context.Context, code string) (*entities.CanonicalCoverage, error) {
	c, err := r.Coverage().Coverage(ctx, code)
	if apperrors.Is(err, apperrors.ErrorTypeNotFound) {
		return nil, nil
	}
	return c, err
}

func (r *queryResolver) MappingEvents(ctx context.Context, q schema.EventQuery) (*schema.MappingEventPage, error) {
	filter := entities.EventFilter{Limit: q.Limit, Offset: q.Offset}
	if q.State != nil {
		filter.State = entities.EventState(*q.State)
	}
	if q.Insurer != nil {
		filter.Insurer = *q.Insurer
	}
	items, total, err := r.events.ListEvents(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &schema.MappingEventPage{Items: items, Total: total}, nil
}

func (r *queryResolver) MappingEvent(ctx context.Context, id string) (*services.EventDetail, error) {
	detail, err := r.events.GetEvent(ctx, id)
	if apperrors.Is(err, apperrors.ErrorTypeNotFound) {
		return nil, nil
	}
	return detail, err
}

type coverageResolver struct{ *Resolver }

// Coverage goes through the request loader when one is attached
func (r *coverageResolver) Coverage(ctx context.Context, code string) (*entities.CanonicalCoverage, error) {
	if l := loaders.For(ctx); l != nil {
		return l.CoverageLoader.Load(ctx, code)()
	}
	return r.registry.Lookup(ctx, code)
}

func (r *coverageResolver) Coverages(ctx context.Context, codes []string) ([]*entities.CanonicalCoverage, error) {
	if len(codes) == 0 {
		return []*entities.CanonicalCoverage{}, nil
	}
	if l := loaders.For(ctx); l != nil {
		coverages, errs := l.CoverageLoader.LoadMany(ctx, codes)()
		for _, err := range errs {
			if err != nil {
				return nil, err
			}
		}
		return coverages, nil
	}

	out := make([]*entities.CanonicalCoverage, 0, len(codes))
	for _, code := range codes {
		c, err := r.registry.Lookup(ctx, code)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
