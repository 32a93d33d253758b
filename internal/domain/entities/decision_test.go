package entities

import (
	"errors"
	"testing"
)

var errNotFound = errors.New("not found")

func TestUndecidedDecision_CodesForCompareIsEmpty(t *testing.T) {
	recalled := []string{"CA_DIAG_GENERAL", "CA_DIAG_SIMILAR", "CA_DIAG_THYROID", "CA_DIAG_HIGH_COST"}
	d := NewUndecidedDecision("암진단비", "SAMSUNG", recalled)

	if got := d.CodesForCompare(); got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil set, got %v", got)
	}
	if d.Marker() != MarkerInsufficientEvidence {
		t.Errorf("expected marker %q, got %q", MarkerInsufficientEvidence, d.Marker())
	}
	if len(d.RecalledCandidates()) != len(recalled) {
		t.Errorf("recalled candidates must be preserved")
	}
}

func TestDecidedDecision_ExactlyEvidenceBackedSet(t *testing.T) {
	general := &CanonicalCoverage{code: "CA_DIAG_GENERAL"}
	evidence := []EvidenceSpan{{CanonicalCode: "CA_DIAG_GENERAL", DocumentID: "doc-1", Page: 3, Text: "일반암 진단 시"}}

	d, err := NewDecidedDecision("암진단비", "SAMSUNG", []string{"CA_DIAG_GENERAL", "CA_DIAG_SIMILAR"}, []*CanonicalCoverage{general, general}, evidence)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := d.CodesForCompare()
	if len(got) != 1 || got[0].String() != "CA_DIAG_GENERAL" {
		t.Errorf("expected [CA_DIAG_GENERAL], got %v", got)
	}
	if d.Marker() != "" {
		t.Errorf("decided decision must not carry a marker")
	}
}

func TestDecidedDecision_RequiresEvidencePerCode(t *testing.T) {
	general := &CanonicalCoverage{code: "CA_DIAG_GENERAL"}
	similar := &CanonicalCoverage{code: "CA_DIAG_SIMILAR"}
	evidence := []EvidenceSpan{{CanonicalCode: "CA_DIAG_GENERAL", DocumentID: "doc-1", Page: 3, Text: "x"}}

	if _, err := NewDecidedDecision("암", "KB", nil, nil, evidence); err == nil {
		t.Error("expected error for empty decided set")
	}
	if _, err := NewDecidedDecision("암", "KB", nil, []*CanonicalCoverage{general, similar}, evidence); err == nil {
		t.Error("expected error for a code without evidence")
	}
}

func TestRestoreDecision(t *testing.T) {
	rec := DecisionRecord{CoverageNameRaw: "암", Insurer: "KB", Status: DecisionStatusUndecided, DecidedCodes: []string{"X"}}
	if _, err := RestoreDecision(rec, nil); err == nil {
		t.Error("expected error for undecided record with codes")
	}

	rec = DecisionRecord{
		CoverageNameRaw: "암", Insurer: "KB", Status: DecisionStatusDecided,
		DecidedCodes: []string{"CA_DIAG_GENERAL"},
		Evidence:     []EvidenceSpan{{CanonicalCode: "CA_DIAG_GENERAL", DocumentID: "d", Page: 1, Text: "t"}},
	}
	if _, err := RestoreDecision(rec, func(string) (*CanonicalCoverage, error) { return nil, errNotFound }); err == nil {
		t.Error("expected lookup failure to propagate")
	}
	d, err := RestoreDecision(rec, func(c string) (*CanonicalCoverage, error) { return &CanonicalCoverage{code: c}, nil })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Status() != DecisionStatusDecided || len(d.CodesForCompare()) != 1 {
		t.Errorf("unexpected restored decision: %+v", d.Record())
	}
}

func TestNewDecisionStats(t *testing.T) {
	s := NewDecisionStats(3, 1)
	if s.DecidedRate != 0.75 {
		t.Errorf("expected 0.75, got %v", s.DecidedRate)
	}
	if z := NewDecisionStats(0, 0); z.DecidedRate != 0 {
		t.Errorf("expected 0 rate with no decisions, got %v", z.DecidedRate)
	}
}
