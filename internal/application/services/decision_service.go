package services

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/coveragecompare/internal/domain/entities"
	"github.com/zatekoja/coveragecompare/internal/domain/repositories"
	"github.com/zatekoja/coveragecompare/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/coveragecompare/pkg/errors"
)

// DecideRequest is the input of Decide. When RecalledCandidates is nil the
// recall index supplies them.
type DecideRequest struct {
	CoverageNameRaw    string                    `json:"coverage_name_raw"`
	Insurer            string                    `json:"insurer"`
	RecalledCandidates []string                  `json:"recalled_candidates,omitempty"`
	PolicyEvidence     []entities.PolicyEvidence `json:"policy_evidence"`
}

// DecisionService settles which canonical codes a coverage name may be
// compared under, based on policy evidence only
type DecisionService struct {
	repo     repositories.DecisionRepository
	registry *RegistryService
	index    *AliasIndexService
	metrics  *observability.Metrics
}

// NewDecisionService creates a new decision service
func NewDecisionService(repo repositories.DecisionRepository, registry *RegistryService, index *AliasIndexService, metrics *observability.Metrics) *DecisionService {
	return &DecisionService{repo: repo, registry: registry, index: index, metrics: metrics}
}

// Decide builds and stores a decision. Without evidence-backed codes the
// decision is UNDECIDED, however many candidates recall produced.
func (s *DecisionService) Decide(ctx context.Context, req DecideRequest) (*entities.CancerCanonicalDecision, error) {
	if strings.TrimSpace(req.CoverageNameRaw) == "" || req.Insurer == "" {
		return nil, apperrors.NewValidationError("coverage_name_raw and insurer are required")
	}

	recalled := req.RecalledCandidates
	if recalled == nil && s.index != nil {
		res, err := s.index.Recall(ctx, req.CoverageNameRaw, req.Insurer)
		if err != nil {
			return nil, err
		}
		recalled = res.Codes
	}

	decided, spans, err := s.acceptedEvidence(ctx, req.PolicyEvidence)
	if err != nil {
		return nil, err
	}

	var decision *entities.CancerCanonicalDecision
	if len(decided) > 0 {
		decision, err = entities.NewDecidedDecision(req.CoverageNameRaw, req.Insurer, recalled, decided, spans)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to build decision", err)
		}
	} else {
		decision = entities.NewUndecidedDecision(req.CoverageNameRaw, req.Insurer, recalled)
	}

	if err := s.repo.Save(ctx, decision.Record()); err != nil {
		return nil, err
	}
	observability.RecordDecision(ctx, s.metrics, string(decision.Status()))
	return decision, nil
}

// acceptedEvidence keeps evidence that points at a real document location
// with text, is not synthetic, and names a registry code
func (s *DecisionService) acceptedEvidence(ctx context.Context, evidence []entities.PolicyEvidence) ([]*entities.CanonicalCoverage, []entities.EvidenceSpan, error) {
	var (
		coverages []*entities.CanonicalCoverage
		spans     []entities.EvidenceSpan
		seen      = make(map[string]bool)
	)
	for _, ev := range evidence {
		if ev.Synthetic || ev.DocumentID == "" || !entities.ValidPage(ev.Page) || strings.TrimSpace(ev.Text) == "" {
			continue
		}
		coverage, err := s.registry.Lookup(ctx, ev.CanonicalCode)
		if apperrors.Is(err, apperrors.ErrorTypeNotFound) {
			log.Warn().Str("code", ev.CanonicalCode).Str("document_id", ev.DocumentID).
				Msg("Ignoring evidence for code outside the registry")
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		code := coverage.Code().String()
		spans = append(spans, entities.EvidenceSpan{
			CanonicalCode: code,
			DocumentID:    ev.DocumentID,
			Page:          ev.Page,
			Text:          ev.Text,
		})
		if !seen[code] {
			seen[code] = true
			coverages = append(coverages, coverage)
		}
	}
	return coverages, spans, nil
}

// Get retrieves the stored decision for (coverage name, insurer)
func (s *DecisionService) Get(ctx context.Context, coverageNameRaw, insurer string) (*entities.CancerCanonicalDecision, error) {
	rec, err := s.repo.Get(ctx, coverageNameRaw, insurer)
	if err != nil {
		return nil, err
	}
	return entities.RestoreDecision(*rec, s.registry.LookupFunc(ctx))
}

// Stats aggregates stored decisions
func (s *DecisionService) Stats(ctx context.Context) (entities.DecisionStats, error) {
	decided, undecided, err := s.repo.Counts(ctx)
	if err != nil {
		return entities.DecisionStats{}, err
	}
	return entities.NewDecisionStats(decided, undecided), nil
}
