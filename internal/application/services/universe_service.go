package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/coveragecompare/internal/domain/entities"
	"github.com/zatekoja/coveragecompare/internal/domain/repositories"
	"github.com/zatekoja/coveragecompare/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/coveragecompare/pkg/errors"
	"github.com/zatekoja/coveragecompare/pkg/retry"
	"github.com/zatekoja/coveragecompare/pkg/utils"
)

// PurgeReport counts what a proposal purge removed
type PurgeReport struct {
	Mappings int64 `json:"mappings"`
	Scopes   int64 `json:"scopes"`
	Rows     int64 `json:"rows"`
}

// UniverseService is the only entry point for rows into the universe
type UniverseService struct {
	rows       repositories.UniverseRepository
	mappings   repositories.MappingRepository
	disease    repositories.DiseaseRepository
	normalizer *utils.CoverageNormalizer
	filter     *MetaRowFilter
	metrics    *observability.Metrics
}

// NewUniverseService creates a new universe service
func NewUniverseService(store repositories.Store, normalizer *utils.CoverageNormalizer, filter *MetaRowFilter, metrics *observability.Metrics) *UniverseService {
	return &UniverseService{
		rows:       store.Universe,
		mappings:   store.Mappings,
		disease:    store.Disease,
		normalizer: normalizer,
		filter:     filter,
		metrics:    metrics,
	}
}

// Ingest stores one candidate row. Meta rows are rejected and never stored;
// content that is already present is reported as a duplicate.
func (s *UniverseService) Ingest(ctx context.Context, candidate entities.UniverseRowCandidate) (*entities.IngestResult, error) {
	if candidate.Insurer == "" || candidate.ProposalID == "" {
		return nil, apperrors.NewValidationError("insurer and proposal_id are required")
	}
	if !entities.ValidPage(candidate.Page) {
		return nil, apperrors.NewValidationError("page must be 1 or greater").WithDetail("page", fmt.Sprint(candidate.Page))
	}

	if rejected, reason := s.filter.Reject(candidate.RawCoverageName); rejected {
		observability.RecordIngest(ctx, s.metrics, candidate.Insurer, string(entities.IngestStatusRejected))
		log.Debug().Str("insurer", candidate.Insurer).Str("raw", candidate.RawCoverageName).Str("reason", reason).
			Msg("Rejected meta row")
		return &entities.IngestResult{Status: entities.IngestStatusRejected, Reason: reason}, nil
	}

	span := candidate.EvidenceText()
	row := &entities.UniverseRow{
		Insurer:         candidate.Insurer,
		ProposalID:      candidate.ProposalID,
		DocumentID:      candidate.DocumentID,
		Page:            candidate.Page,
		RawCoverageName: strings.TrimSpace(candidate.RawCoverageName),
		NormalizedName:  s.normalizer.Key(candidate.RawCoverageName),
		SpanText:        span,
		Amount:          candidate.Amount,
		ContentHash:     entities.ContentHash(candidate.Insurer, candidate.ProposalID, candidate.Page, span),
	}

	var inserted bool
	err := retry.DoIf(ctx, retry.StorageConfig(), retry.IsTransient, func() error {
		var err error
		inserted, err = s.rows.Insert(ctx, row)
		return err
	})
	if err != nil {
		return nil, err
	}
	if inserted {
		observability.RecordIngest(ctx, s.metrics, candidate.Insurer, string(entities.IngestStatusInserted))
		return &entities.IngestResult{Status: entities.IngestStatusInserted, Row: row}, nil
	}

	existing, err := s.findExisting(ctx, row)
	if err != nil {
		return nil, err
	}
	observability.RecordIngest(ctx, s.metrics, candidate.Insurer, string(entities.IngestStatusDuplicate))
	return &entities.IngestResult{Status: entities.IngestStatusDuplicate, Row: existing}, nil
}

func (s *UniverseService) findExisting(ctx context.Context, row *entities.UniverseRow) (*entities.UniverseRow, error) {
	existing, err := s.rows.FindByContentHash(ctx, row.ContentHash)
	if err == nil {
		return existing, nil
	}
	if !apperrors.Is(err, apperrors.ErrorTypeNotFound) {
		return nil, err
	}
	return s.rows.FindByName(ctx, row.Insurer, row.ProposalID, row.NormalizedName)
}

// IngestBatch ingests rows in order and reports each outcome. A storage
// failure stops the batch; rows already stored stay stored.
func (s *UniverseService) IngestBatch(ctx context.Context, candidates []entities.UniverseRowCandidate) ([]*entities.IngestResult, error) {
	results := make([]*entities.IngestResult, 0, len(candidates))
	for i, c := range candidates {
		res, err := s.Ingest(ctx, c)
		if err != nil {
			if apperrors.Is(err, apperrors.ErrorTypeValidation) {
				results = append(results, &entities.IngestResult{Status: entities.IngestStatusRejected, Reason: err.Error()})
				continue
			}
			return results, fmt.Errorf("row %d: %w", i, err)
		}
		results = append(results, res)
	}
	return results, nil
}

// Get retrieves a universe row
func (s *UniverseService) Get(ctx context.Context, id string) (*entities.UniverseRow, error) {
	return s.rows.GetByID(ctx, id)
}

// ListByProposal retrieves the rows of a proposal
func (s *UniverseService) ListByProposal(ctx context.Context, insurer, proposalID string) ([]*entities.UniverseRow, error) {
	return s.rows.ListByProposal(ctx, insurer, proposalID)
}

// Find looks up the universe row for an insurer's coverage name. Without a
// proposal the most recently ingested row is used. nil means the coverage is
// not in the universe.
func (s *UniverseService) Find(ctx context.Context, insurer, coverageName, proposalID string) (*entities.UniverseRow, error) {
	key := s.normalizer.Key(coverageName)
	if key == "" {
		return nil, nil
	}
	if proposalID != "" {
		row, err := s.rows.FindByName(ctx, insurer, proposalID, key)
		if apperrors.Is(err, apperrors.ErrorTypeNotFound) {
			return nil, nil
		}
		return row, err
	}
	rows, err := s.rows.FindByInsurerKey(ctx, insurer, key)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[len(rows)-1], nil
}

// PurgeProposal deletes state derived from one proposal so it can be
// recomputed. Universe rows are removed only when includeRows is set.
func (s *UniverseService) PurgeProposal(ctx context.Context, insurer, proposalID string, includeRows bool) (*PurgeReport, error) {
	if insurer == "" || proposalID == "" {
		return nil, apperrors.NewValidationError("insurer and proposal_id are required")
	}
	report := &PurgeReport{}
	var err error
	if report.Mappings, err = s.mappings.DeleteByProposal(ctx, insurer, proposalID); err != nil {
		return nil, err
	}
	if report.Scopes, err = s.disease.DeleteScopesByProposal(ctx, insurer, proposalID); err != nil {
		return nil, err
	}
	if includeRows {
		if report.Rows, err = s.rows.DeleteByProposal(ctx, insurer, proposalID); err != nil {
			return nil, err
		}
	}
	log.Info().Str("insurer", insurer).Str("proposal_id", proposalID).
		Int64("mappings", report.Mappings).Int64("scopes", report.Scopes).Int64("rows", report.Rows).
		Msg("Purged proposal derived state")
	return report, nil
}
