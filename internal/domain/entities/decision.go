package entities

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// DecisionStatus tells whether evidence settled a coverage's canonical codes
type DecisionStatus string

const (
	DecisionStatusDecided   DecisionStatus = "DECIDED"
	DecisionStatusUndecided DecisionStatus = "UNDECIDED"
)

// MarkerInsufficientEvidence is carried by every UNDECIDED decision
const MarkerInsufficientEvidence = "insufficient_evidence"

// PolicyEvidence is a claimed evidence span for a canonical code. The code is
// untrusted until checked against the registry.
type PolicyEvidence struct {
	CanonicalCode string `json:"canonical_code"`
	DocumentID    string `json:"document_id"`
	Page          int    `json:"page"`
	Text          string `json:"text"`
	Synthetic     bool   `json:"synthetic"`
}

// EvidenceSpan is an accepted evidence reference
type EvidenceSpan struct {
	CanonicalCode string `json:"canonical_code"`
	DocumentID    string `json:"document_id"`
	Page          int    `json:"page"`
	Text          string `json:"text"`
}

// CancerCanonicalDecision separates recalled candidates from evidence-decided
// codes. Only CodesForCompare may be used by comparison code.
type CancerCanonicalDecision struct {
	coverageNameRaw string
	insurer         string
	recalled        []string
	decided         []CanonicalCode
	evidence        []EvidenceSpan
	status          DecisionStatus
	decidedAt       time.Time
}

// NewDecidedDecision builds a DECIDED decision. decided must be non-empty and
// every code must be backed by at least one span in evidence.
func NewDecidedDecision(coverageNameRaw, insurer string, recalled []string, decided []*CanonicalCoverage, evidence []EvidenceSpan) (*CancerCanonicalDecision, error) {
	if len(decided) == 0 {
		return nil, fmt.Errorf("decided decision requires at least one code")
	}
	backed := make(map[string]bool, len(evidence))
	for _, ev := range evidence {
		backed[ev.CanonicalCode] = true
	}

	seen := make(map[string]struct{}, len(decided))
	codes := make([]CanonicalCode, 0, len(decided))
	for _, c := range decided {
		if c == nil || c.code == "" {
			return nil, fmt.Errorf("decided decision requires registry coverages")
		}
		if !backed[c.code] {
			return nil, fmt.Errorf("code %s has no evidence span", c.code)
		}
		if _, ok := seen[c.code]; ok {
			continue
		}
		seen[c.code] = struct{}{}
		codes = append(codes, c.Code())
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i].String() < codes[j].String() })

	return &CancerCanonicalDecision{
		coverageNameRaw: coverageNameRaw,
		insurer:         insurer,
		recalled:        sortedCopy(recalled),
		decided:         codes,
		evidence:        append([]EvidenceSpan(nil), evidence...),
		status:          DecisionStatusDecided,
		decidedAt:       time.Now().UTC(),
	}, nil
}

// NewUndecidedDecision builds an UNDECIDED decision
func NewUndecidedDecision(coverageNameRaw, insurer string, recalled []string) *CancerCanonicalDecision {
	return &CancerCanonicalDecision{
		coverageNameRaw: coverageNameRaw,
		insurer:         insurer,
		recalled:        sortedCopy(recalled),
		status:          DecisionStatusUndecided,
		decidedAt:       time.Now().UTC(),
	}
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

func (d *CancerCanonicalDecision) CoverageNameRaw() string  { return d.coverageNameRaw }
func (d *CancerCanonicalDecision) Insurer() string          { return d.insurer }
func (d *CancerCanonicalDecision) Status() DecisionStatus   { return d.status }
func (d *CancerCanonicalDecision) DecidedAt() time.Time     { return d.decidedAt }
func (d *CancerCanonicalDecision) Evidence() []EvidenceSpan { return append([]EvidenceSpan(nil), d.evidence...) }

// RecalledCandidates returns the recall set. It is informational only.
func (d *CancerCanonicalDecision) RecalledCandidates() []string {
	return append([]string(nil), d.recalled...)
}

// Marker returns the insufficient-evidence marker for UNDECIDED decisions
func (d *CancerCanonicalDecision) Marker() string {
	if d.status == DecisionStatusUndecided {
		return MarkerInsufficientEvidence
	}
	return ""
}

// CodesForCompare returns the codes comparison may use: the decided set when
// DECIDED, and an empty set otherwise.
func (d *CancerCanonicalDecision) CodesForCompare() []CanonicalCode {
	if d.status != DecisionStatusDecided {
		return []CanonicalCode{}
	}
	return append([]CanonicalCode{}, d.decided...)
}

func codeStrings(codes []CanonicalCode) []string {
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		out = append(out, c.String())
	}
	return out
}

type decisionJSON struct {
	CoverageNameRaw    string         `json:"coverage_name_raw"`
	Insurer            string         `json:"insurer"`
	DecisionStatus     DecisionStatus `json:"decision_status"`
	RecalledCandidates []string       `json:"recalled_candidates"`
	DecidedCodes       []string       `json:"decided_canonical_codes"`
	CodesForCompare    []string       `json:"codes_for_compare"`
	Marker             string         `json:"marker,omitempty"`
	Evidence           []EvidenceSpan `json:"evidence,omitempty"`
	DecidedAt          time.Time      `json:"decided_at"`
}

// MarshalJSON encodes the decision for API responses
func (d *CancerCanonicalDecision) MarshalJSON() ([]byte, error) {
	return json.Marshal(decisionJSON{
		CoverageNameRaw:    d.coverageNameRaw,
		Insurer:            d.insurer,
		DecisionStatus:     d.status,
		RecalledCandidates: nonNil(d.recalled),
		DecidedCodes:       codeStrings(d.decided),
		CodesForCompare:    codeStrings(d.CodesForCompare()),
		Marker:             d.Marker(),
		Evidence:           d.evidence,
		DecidedAt:          d.decidedAt,
	})
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

// DecisionRecord is the storage form of a decision
type DecisionRecord struct {
	CoverageNameRaw    string         `db:"coverage_name_raw"`
	Insurer            string         `db:"insurer"`
	Status             DecisionStatus `db:"decision_status"`
	RecalledCandidates []string       `db:"-"`
	DecidedCodes       []string       `db:"-"`
	Evidence           []EvidenceSpan `db:"-"`
	DecidedAt          time.Time      `db:"decided_at"`
}

// Record converts the decision into its storage form
func (d *CancerCanonicalDecision) Record() DecisionRecord {
	return DecisionRecord{
		CoverageNameRaw:    d.coverageNameRaw,
		Insurer:            d.insurer,
		Status:             d.status,
		RecalledCandidates: d.RecalledCandidates(),
		DecidedCodes:       codeStrings(d.decided),
		Evidence:           d.Evidence(),
		DecidedAt:          d.decidedAt,
	}
}

// RestoreDecision rebuilds a decision from storage, re-validating decided
// codes through lookup
func RestoreDecision(rec DecisionRecord, lookup CoverageLookup) (*CancerCanonicalDecision, error) {
	var d *CancerCanonicalDecision
	switch rec.Status {
	case DecisionStatusDecided:
		coverages := make([]*CanonicalCoverage, 0, len(rec.DecidedCodes))
		for _, code := range rec.DecidedCodes {
			c, err := lookup(code)
			if err != nil {
				return nil, err
			}
			coverages = append(coverages, c)
		}
		var err error
		d, err = NewDecidedDecision(rec.CoverageNameRaw, rec.Insurer, rec.RecalledCandidates, coverages, rec.Evidence)
		if err != nil {
			return nil, err
		}
	case DecisionStatusUndecided:
		if len(rec.DecidedCodes) > 0 {
			return nil, fmt.Errorf("undecided record carries decided codes")
		}
		d = NewUndecidedDecision(rec.CoverageNameRaw, rec.Insurer, rec.RecalledCandidates)
	default:
		return nil, fmt.Errorf("unknown decision status %q", rec.Status)
	}
	d.decidedAt = rec.DecidedAt
	return d, nil
}

// DecisionStats aggregates decisions for observability
type DecisionStats struct {
	DecidedCount   int64   `json:"decided_count"`
	UndecidedCount int64   `json:"undecided_count"`
	DecidedRate    float64 `json:"decided_rate"`
}

// NewDecisionStats computes the rate from counts
func NewDecisionStats(decided, undecided int64) DecisionStats {
	stats := DecisionStats{DecidedCount: decided, UndecidedCount: undecided}
	if total := decided + undecided; total > 0 {
		stats.DecidedRate = float64(decided) / float64(total)
	}
	return stats
}
