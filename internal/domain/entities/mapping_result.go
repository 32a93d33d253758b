package entities

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// MappingStatus classifies a universe row against the registry
type MappingStatus string

const (
	MappingStatusMapped    MappingStatus = "MAPPED"
	MappingStatusUnmapped  MappingStatus = "UNMAPPED"
	MappingStatusAmbiguous MappingStatus = "AMBIGUOUS"
)

// Reasons recorded on unmapped results
const (
	ReasonNoMatch         = "no_match"
	ReasonOutsideUniverse = "outside_universe"
	ReasonEmptyKey        = "empty_key"
)

// MatchTier is the resolver tier that produced a match
type MatchTier int

const (
	TierNone MatchTier = iota
	TierInsurerExact
	TierCanonicalExact
	TierFuzzy
)

func (t MatchTier) String() string {
	switch t {
	case TierInsurerExact:
		return "insurer_exact"
	case TierCanonicalExact:
		return "canonical_exact"
	case TierFuzzy:
		return "fuzzy"
	default:
		return "none"
	}
}

// MatchEvidence records why a code was considered
type MatchEvidence struct {
	Code       string  `json:"code"`
	Source     string  `json:"source"`
	MatchedKey string  `json:"matched_key"`
	Similarity float64 `json:"similarity,omitempty"`
}

// MappingResult is the classification of one universe row. It can only be
// built through NewMappedResult, NewUnmappedResult or NewAmbiguousResult, so a
// code is present exactly when the status is MAPPED.
type MappingResult struct {
	universeRowID string
	status        MappingStatus
	code          CanonicalCode
	tier          MatchTier
	candidates    []string
	evidence      []MatchEvidence
	reason        string
	revision      int64
	updatedAt     time.Time
}

// NewMappedResult builds a MAPPED result for a registry entry
func NewMappedResult(universeRowID string, coverage *CanonicalCoverage, tier MatchTier, evidence []MatchEvidence) (*MappingResult, error) {
	if universeRowID == "" {
		return nil, fmt.Errorf("universe row id is required")
	}
	if coverage == nil || coverage.code == "" {
		return nil, fmt.Errorf("mapped result requires a registry coverage")
	}
	if tier == TierNone {
		return nil, fmt.Errorf("mapped result requires a match tier")
	}
	return &MappingResult{
		universeRowID: universeRowID,
		status:        MappingStatusMapped,
		code:          coverage.Code(),
		tier:          tier,
		evidence:      append([]MatchEvidence(nil), evidence...),
	}, nil
}

// NewUnmappedResult builds an UNMAPPED result
func NewUnmappedResult(universeRowID, reason string) *MappingResult {
	if reason == "" {
		reason = ReasonNoMatch
	}
	return &MappingResult{
		universeRowID: universeRowID,
		status:        MappingStatusUnmapped,
		reason:        reason,
	}
}

// NewAmbiguousResult builds an AMBIGUOUS result. At least two distinct codes
// are required.
func NewAmbiguousResult(universeRowID string, tier MatchTier, candidates []*CanonicalCoverage, evidence []MatchEvidence) (*MappingResult, error) {
	if universeRowID == "" {
		return nil, fmt.Errorf("universe row id is required")
	}
	codes := distinctCodes(candidates)
	if len(codes) < 2 {
		return nil, fmt.Errorf("ambiguous result requires at least two distinct codes, got %d", len(codes))
	}
	return &MappingResult{
		universeRowID: universeRowID,
		status:        MappingStatusAmbiguous,
		tier:          tier,
		candidates:    codes,
		evidence:      append([]MatchEvidence(nil), evidence...),
	}, nil
}

func distinctCodes(coverages []*CanonicalCoverage) []string {
	seen := make(map[string]struct{}, len(coverages))
	codes := make([]string, 0, len(coverages))
	for _, c := range coverages {
		if c == nil || c.code == "" {
			continue
		}
		if _, ok := seen[c.code]; ok {
			continue
		}
		seen[c.code] = struct{}{}
		codes = append(codes, c.code)
	}
	sort.Strings(codes)
	return codes
}

func (r *MappingResult) UniverseRowID() string     { return r.universeRowID }
func (r *MappingResult) Status() MappingStatus     { return r.status }
func (r *MappingResult) Tier() MatchTier           { return r.tier }
func (r *MappingResult) Reason() string            { return r.reason }
func (r *MappingResult) Revision() int64           { return r.revision }
func (r *MappingResult) UpdatedAt() time.Time      { return r.updatedAt }
func (r *MappingResult) IsMapped() bool            { return r.status == MappingStatusMapped }
func (r *MappingResult) Evidence() []MatchEvidence { return append([]MatchEvidence(nil), r.evidence...) }

// Code returns the canonical code; ok is false unless the result is MAPPED
func (r *MappingResult) Code() (CanonicalCode, bool) {
	return r.code, r.status == MappingStatusMapped
}

// Candidates returns the competing codes of an AMBIGUOUS result
func (r *MappingResult) Candidates() []string {
	return append([]string(nil), r.candidates...)
}

// WithRevision returns a copy carrying a storage revision
func (r *MappingResult) WithRevision(revision int64, updatedAt time.Time) *MappingResult {
	cp := *r
	cp.revision = revision
	cp.updatedAt = updatedAt
	return &cp
}

// SameOutcome reports whether two results classify the row identically
func (r *MappingResult) SameOutcome(other *MappingResult) bool {
	if other == nil || r.status != other.status || r.code != other.code {
		return false
	}
	if len(r.candidates) != len(other.candidates) {
		return false
	}
	for i := range r.candidates {
		if r.candidates[i] != other.candidates[i] {
			return false
		}
	}
	return true
}

type mappingResultJSON struct {
	UniverseRowID string          `json:"universe_row_id"`
	Status        MappingStatus   `json:"status"`
	CanonicalCode *string         `json:"canonical_code,omitempty"`
	Tier          string          `json:"tier"`
	Candidates    []string        `json:"candidates,omitempty"`
	Evidence      []MatchEvidence `json:"evidence,omitempty"`
	Reason        string          `json:"reason,omitempty"`
	Revision      int64           `json:"revision"`
}

// MarshalJSON encodes the result for API responses
func (r *MappingResult) MarshalJSON() ([]byte, error) {
	out := mappingResultJSON{
		UniverseRowID: r.universeRowID,
		Status:        r.status,
		Tier:          r.tier.String(),
		Candidates:    r.candidates,
		Evidence:      r.evidence,
		Reason:        r.reason,
		Revision:      r.revision,
	}
	if code, ok := r.Code(); ok {
		s := code.String()
		out.CanonicalCode = &s
	}
	return json.Marshal(out)
}

// MappingRecord is the storage form of a MappingResult
type MappingRecord struct {
	UniverseRowID string          `db:"universe_row_id"`
	Status        MappingStatus   `db:"status"`
	CanonicalCode *string         `db:"canonical_code"`
	Tier          int             `db:"tier"`
	Candidates    []string        `db:"-"`
	Evidence      []MatchEvidence `db:"-"`
	Reason        string          `db:"reason"`
	Revision      int64           `db:"revision"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

// Record converts the result into its storage form
func (r *MappingResult) Record() MappingRecord {
	rec := MappingRecord{
		UniverseRowID: r.universeRowID,
		Status:        r.status,
		Tier:          int(r.tier),
		Candidates:    r.Candidates(),
		Evidence:      r.Evidence(),
		Reason:        r.reason,
		Revision:      r.revision,
		UpdatedAt:     r.updatedAt,
	}
	if code, ok := r.Code(); ok {
		s := code.String()
		rec.CanonicalCode = &s
	}
	return rec
}

// CoverageLookup resolves a code string against the registry
type CoverageLookup func(code string) (*CanonicalCoverage, error)

// RestoreMappingResult rebuilds a result from storage. MAPPED records are
// re-validated through lookup so that a stored string never becomes a
// trusted code on its own.
func RestoreMappingResult(rec MappingRecord, lookup CoverageLookup) (*MappingResult, error) {
	var (
		result *MappingResult
		err    error
	)
	switch rec.Status {
	case MappingStatusMapped:
		if rec.CanonicalCode == nil {
			return nil, fmt.Errorf("mapped record %s has no canonical code", rec.UniverseRowID)
		}
		coverage, lookupErr := lookup(*rec.CanonicalCode)
		if lookupErr != nil {
			return nil, lookupErr
		}
		result, err = NewMappedResult(rec.UniverseRowID, coverage, MatchTier(rec.Tier), rec.Evidence)
	case MappingStatusUnmapped:
		if rec.CanonicalCode != nil {
			return nil, fmt.Errorf("unmapped record %s carries a canonical code", rec.UniverseRowID)
		}
		result = NewUnmappedResult(rec.UniverseRowID, rec.Reason)
	case MappingStatusAmbiguous:
		if rec.CanonicalCode != nil {
			return nil, fmt.Errorf("ambiguous record %s carries a canonical code", rec.UniverseRowID)
		}
		candidates := make([]*CanonicalCoverage, 0, len(rec.Candidates))
		for _, c := range rec.Candidates {
			coverage, lookupErr := lookup(c)
			if lookupErr != nil {
				return nil, lookupErr
			}
			candidates = append(candidates, coverage)
		}
		result, err = NewAmbiguousResult(rec.UniverseRowID, MatchTier(rec.Tier), candidates, rec.Evidence)
	default:
		return nil, fmt.Errorf("unknown mapping status %q", rec.Status)
	}
	if err != nil {
		return nil, err
	}
	return result.WithRevision(rec.Revision, rec.UpdatedAt), nil
}
