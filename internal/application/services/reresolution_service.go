package services

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/zatekoja/coveragecompare/internal/domain/entities"
	"github.com/zatekoja/coveragecompare/internal/domain/repositories"
	"github.com/zatekoja/coveragecompare/internal/infrastructure/observability"
)

// ReResolveBatchSize is the page size used when walking all rows
const ReResolveBatchSize = 500

// ReResolveReport summarizes a re-resolve run
type ReResolveReport struct {
	Resolved  int `json:"resolved"`
	Changed   int `json:"changed"`
	Mapped    int `json:"mapped"`
	Unmapped  int `json:"unmapped"`
	Ambiguous int `json:"ambiguous"`
	Failed    int `json:"failed"`
}

type reResolveCounters struct {
	resolved, changed, mapped, unmapped, ambiguous, failed int64
}

func (c *reResolveCounters) report() *ReResolveReport {
	return &ReResolveReport{
		Resolved:  int(atomic.LoadInt64(&c.resolved)),
		Changed:   int(atomic.LoadInt64(&c.changed)),
		Mapped:    int(atomic.LoadInt64(&c.mapped)),
		Unmapped:  int(atomic.LoadInt64(&c.unmapped)),
		Ambiguous: int(atomic.LoadInt64(&c.ambiguous)),
		Failed:    int(atomic.LoadInt64(&c.failed)),
	}
}

// ReResolutionService re-runs the resolver over stored rows after aliases or
// the registry changed
type ReResolutionService struct {
	rows    repositories.UniverseRepository
	mapping *MappingService
	workers int
	limiter *rate.Limiter
}

var _ KeyReResolver = (*ReResolutionService)(nil)

// NewReResolutionService creates a new re-resolution service. A rate of zero
// or less disables throttling.
func NewReResolutionService(rows repositories.UniverseRepository, mapping *MappingService, workers int, ratePerSecond float64) *ReResolutionService {
	if workers <= 0 {
		workers = 1
	}
	limit := rate.Inf
	if ratePerSecond > 0 {
		limit = rate.Limit(ratePerSecond)
	}
	return &ReResolutionService{
		rows:    rows,
		mapping: mapping,
		workers: workers,
		limiter: rate.NewLimiter(limit, workers),
	}
}

// ReResolveKey re-resolves the rows of an insurer that share a normalized key
func (s *ReResolutionService) ReResolveKey(ctx context.Context, insurer, normalizedKey string) (*ReResolveReport, error) {
	rows, err := s.rows.FindByInsurerKey(ctx, insurer, normalizedKey)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, func(yield func([]*entities.UniverseRow) error) error { return yield(rows) })
}

// ReResolveProposal re-resolves the rows of one proposal
func (s *ReResolutionService) ReResolveProposal(ctx context.Context, insurer, proposalID string) (*ReResolveReport, error) {
	rows, err := s.rows.ListByProposal(ctx, insurer, proposalID)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, func(yield func([]*entities.UniverseRow) error) error { return yield(rows) })
}

// ReResolveAll re-resolves every row, page by page
func (s *ReResolutionService) ReResolveAll(ctx context.Context) (*ReResolveReport, error) {
	return s.run(ctx, func(yield func([]*entities.UniverseRow) error) error {
		after := ""
		for {
			rows, err := s.rows.ListAfter(ctx, after, ReResolveBatchSize)
			if err != nil {
				return fmt.Errorf("failed to list universe rows: %w", err)
			}
			if len(rows) == 0 {
				return nil
			}
			if err := yield(rows); err != nil {
				return err
			}
			if len(rows) < ReResolveBatchSize {
				return nil
			}
			after = rows[len(rows)-1].ID
		}
	})
}

// run feeds rows from produce to a bounded worker group. A failed row is
// counted and logged; only cancellation and listing errors abort the run.
func (s *ReResolutionService) run(ctx context.Context, produce func(yield func([]*entities.UniverseRow) error) error) (*ReResolveReport, error) {
	counters := &reResolveCounters{}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	err := produce(func(rows []*entities.UniverseRow) error {
		for _, row := range rows {
			if err := s.limiter.Wait(gctx); err != nil {
				return err
			}
			row := row
			g.Go(func() error {
				s.resolveOne(gctx, row, counters)
				return nil
			})
		}
		return nil
	})
	waitErr := g.Wait()
	if err != nil {
		return counters.report(), err
	}
	if waitErr != nil {
		return counters.report(), waitErr
	}
	if err := ctx.Err(); err != nil {
		return counters.report(), err
	}
	return counters.report(), nil
}

func (s *ReResolutionService) resolveOne(ctx context.Context, row *entities.UniverseRow, c *reResolveCounters) {
	result, changed, err := s.mapping.resolveWithRetry(ctx, row)
	if err != nil {
		atomic.AddInt64(&c.failed, 1)
		rowCtx := observability.WithLogFields(ctx, observability.LogFields{Insurer: row.Insurer, ProposalID: row.ProposalID, RowID: row.ID})
		observability.LoggerFromContext(rowCtx).Error().Err(err).Msg("Failed to re-resolve row")
		return
	}
	atomic.AddInt64(&c.resolved, 1)
	if changed {
		atomic.AddInt64(&c.changed, 1)
	}
	switch result.Status() {
	case entities.MappingStatusMapped:
		atomic.AddInt64(&c.mapped, 1)
	case entities.MappingStatusAmbiguous:
		atomic.AddInt64(&c.ambiguous, 1)
	default:
		atomic.AddInt64(&c.unmapped, 1)
	}
}
