package services

import (
	"context"
	"fmt"

	"github.com/zatekoja/coveragecompare/internal/domain/entities"
	apperrors "github.com/zatekoja/coveragecompare/pkg/errors"
)

// CandidateRejection explains why a candidate did not validate
type CandidateRejection struct {
	Candidate entities.EntityCandidate `json:"candidate"`
	Reason    string                   `json:"reason"`
}

// CandidateValidator is the only way an extraction candidate becomes a
// trusted code. Every field is checked; confidence never skips a check.
type CandidateValidator struct {
	registry      *RegistryService
	allowedTypes  map[string]struct{}
	minConfidence float64
}

// NewCandidateValidator creates a new candidate validator
func NewCandidateValidator(registry *RegistryService, allowedTypes []string, minConfidence float64) *CandidateValidator {
	allowed := make(map[string]struct{}, len(allowedTypes))
	for _, t := range allowedTypes {
		allowed[t] = struct{}{}
	}
	return &CandidateValidator{registry: registry, allowedTypes: allowed, minConfidence: minConfidence}
}

// Validate checks a candidate against the whitelist, the confidence floor and
// the registry
func (v *CandidateValidator) Validate(ctx context.Context, c entities.EntityCandidate) (*entities.ValidatedCandidate, error) {
	if _, ok := v.allowedTypes[c.ProposedEntityType]; !ok {
		return nil, apperrors.NewValidationError(fmt.Sprintf("entity type %q is not allowed", c.ProposedEntityType))
	}
	if c.Confidence < v.minConfidence {
		return nil, apperrors.NewValidationError(fmt.Sprintf("confidence %.2f is below %.2f", c.Confidence, v.minConfidence))
	}
	if c.ProposedCoverageCode == nil || *c.ProposedCoverageCode == "" {
		return nil, apperrors.NewValidationError("candidate has no proposed coverage code")
	}

	coverage, err := v.registry.Lookup(ctx, *c.ProposedCoverageCode)
	if apperrors.Is(err, apperrors.ErrorTypeNotFound) {
		return nil, apperrors.NewValidationError(fmt.Sprintf("canonical code %s is not in the registry", *c.ProposedCoverageCode)).
			WithDetail("code", *c.ProposedCoverageCode)
	}
	if err != nil {
		return nil, err
	}

	validated, err := entities.NewValidatedCandidate(c, coverage)
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}
	return validated, nil
}

// ValidateAll splits candidates into validated ones and rejections. Storage
// failures abort.
func (v *CandidateValidator) ValidateAll(ctx context.Context, candidates []entities.EntityCandidate) ([]*entities.ValidatedCandidate, []CandidateRejection, error) {
	var (
		valid    []*entities.ValidatedCandidate
		rejected []CandidateRejection
	)
	for _, c := range candidates {
		vc, err := v.Validate(ctx, c)
		if err == nil {
			valid = append(valid, vc)
			continue
		}
		if !apperrors.Is(err, apperrors.ErrorTypeValidation) {
			return nil, nil, err
		}
		rejected = append(rejected, CandidateRejection{Candidate: c, Reason: err.Error()})
	}
	return valid, rejected, nil
}
