package services

import (
	"context"
	"strings"

	"github.com/zatekoja/coveragecompare/internal/domain/entities"
	apperrors "github.com/zatekoja/coveragecompare/pkg/errors"
)

// CompareResult is the answer for one (insurer, coverage name)
type CompareResult struct {
	Insurer         string                            `json:"insurer"`
	CoverageName    string                            `json:"coverage_name"`
	ProposalID      string                            `json:"proposal_id,omitempty"`
	UniverseRowID   string                            `json:"universe_row_id,omitempty"`
	MappingStatus   entities.MappingStatus            `json:"mapping_status"`
	CanonicalCode   *string                           `json:"canonical_code,omitempty"`
	Reason          string                            `json:"reason,omitempty"`
	Candidates      []string                          `json:"candidates,omitempty"`
	Slots           *entities.CoverageSlots           `json:"slots,omitempty"`
	DiseaseScope    *entities.ResolvedScope           `json:"disease_scope,omitempty"`
	Decision        *entities.CancerCanonicalDecision `json:"decision,omitempty"`
	CodesForCompare []string                          `json:"codes_for_compare"`
}

// CompareService answers which canonical code an insurer's coverage compares
// under. Only rows in the universe are ever answered with a code.
type CompareService struct {
	universe  *UniverseService
	mapping   *MappingService
	registry  *RegistryService
	scopes    *DiseaseScopeService
	decisions *DecisionService
}

// NewCompareService creates a new compare service
func NewCompareService(universe *UniverseService, mapping *MappingService, registry *RegistryService, scopes *DiseaseScopeService, decisions *DecisionService) *CompareService {
	return &CompareService{
		universe:  universe,
		mapping:   mapping,
		registry:  registry,
		scopes:    scopes,
		decisions: decisions,
	}
}

// Resolve looks the coverage up in the universe and assembles its mapping,
// slots, disease scope and decision
func (s *CompareService) Resolve(ctx context.Context, insurer, coverageName, proposalID string) (*CompareResult, error) {
	if insurer == "" || strings.TrimSpace(coverageName) == "" {
		return nil, apperrors.NewValidationError("insurer and coverage_name are required")
	}

	out := &CompareResult{
		Insurer:         insurer,
		CoverageName:    coverageName,
		ProposalID:      proposalID,
		CodesForCompare: []string{},
	}

	row, err := s.universe.Find(ctx, insurer, coverageName, proposalID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		out.MappingStatus = entities.MappingStatusUnmapped
		out.Reason = entities.ReasonOutsideUniverse
		return out, nil
	}
	out.UniverseRowID = row.ID
	out.ProposalID = row.ProposalID

	result, err := s.mapping.Get(ctx, row.ID)
	if apperrors.Is(err, apperrors.ErrorTypeNotFound) {
		result, err = s.mapping.ResolveWithRetry(ctx, row)
	}
	if err != nil {
		return nil, err
	}
	out.MappingStatus = result.Status()
	out.Reason = result.Reason()
	out.Candidates = result.Candidates()

	var mapped *entities.CanonicalCoverage
	if code, ok := result.Code(); ok {
		c := code.String()
		out.CanonicalCode = &c
		if mapped, err = s.registry.Lookup(ctx, c); err != nil {
			return nil, err
		}
		if out.Slots, err = s.mapping.GetSlots(ctx, row.ID); err != nil && !apperrors.Is(err, apperrors.ErrorTypeNotFound) {
			return nil, err
		}
		if mapped.RequiresDiseaseScope {
			scope, err := s.scopes.Resolve(ctx, c, row.Insurer, row.ProposalID)
			if err != nil && !apperrors.Is(err, apperrors.ErrorTypeNotFound) {
				return nil, err
			}
			out.DiseaseScope = scope
		}
	}

	needsDecision, err := s.requiresDecision(ctx, mapped, out.Candidates)
	if err != nil {
		return nil, err
	}
	switch {
	case needsDecision:
		decision, err := s.decisions.Get(ctx, row.RawCoverageName, row.Insurer)
		if apperrors.Is(err, apperrors.ErrorTypeNotFound) {
			decision, err = entities.NewUndecidedDecision(row.RawCoverageName, row.Insurer, out.Candidates), nil
		}
		if err != nil {
			return nil, err
		}
		out.Decision = decision
		for _, code := range decision.CodesForCompare() {
			out.CodesForCompare = append(out.CodesForCompare, code.String())
		}
	case out.CanonicalCode != nil:
		out.CodesForCompare = append(out.CodesForCompare, *out.CanonicalCode)
	}
	return out, nil
}

func (s *CompareService) requiresDecision(ctx context.Context, mapped *entities.CanonicalCoverage, candidates []string) (bool, error) {
	if mapped != nil {
		return mapped.RequiresDecision, nil
	}
	for _, code := range candidates {
		coverage, err := s.registry.Lookup(ctx, code)
		if err != nil {
			return false, err
		}
		if coverage.RequiresDecision {
			return true, nil
		}
	}
	return false, nil
}
