package entities

import "fmt"

// EntityCandidate is an untrusted proposal from the extraction layer
type EntityCandidate struct {
	Span                 string  `json:"span"`
	ProposedEntityType   string  `json:"proposed_entity_type"`
	ProposedCoverageCode *string `json:"proposed_coverage_code,omitempty"`
	Confidence           float64 `json:"confidence"`
}

// ValidatedCandidate is a candidate whose proposed code resolved to a
// registry entry
type ValidatedCandidate struct {
	candidate EntityCandidate
	code      CanonicalCode
}

// NewValidatedCandidate pairs a candidate with the registry entry its
// proposed code refers to
func NewValidatedCandidate(candidate EntityCandidate, coverage *CanonicalCoverage) (*ValidatedCandidate, error) {
	if candidate.ProposedCoverageCode == nil || coverage == nil {
		return nil, fmt.Errorf("candidate has no registry coverage")
	}
	if *candidate.ProposedCoverageCode != coverage.code {
		return nil, fmt.Errorf("candidate code %s does not match coverage %s", *candidate.ProposedCoverageCode, coverage.code)
	}
	return &ValidatedCandidate{candidate: candidate, code: coverage.Code()}, nil
}

func (v *ValidatedCandidate) Code() CanonicalCode        { return v.code }
func (v *ValidatedCandidate) Candidate() EntityCandidate { return v.candidate }
