package entities

import (
	"encoding/json"
	"testing"
)

func TestNewMappedResult_CarriesCode(t *testing.T) {
	cov := &CanonicalCoverage{code: "CA_DIAG_GENERAL", DisplayName: "암 진단비(유사암 제외)"}
	r, err := NewMappedResult("row-1", cov, TierCanonicalExact, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	code, ok := r.Code()
	if !ok || code.String() != "CA_DIAG_GENERAL" {
		t.Errorf("expected CA_DIAG_GENERAL, got %q (ok=%v)", code.String(), ok)
	}
	if r.Status() != MappingStatusMapped {
		t.Errorf("expected MAPPED, got %s", r.Status())
	}
}

func TestNewMappedResult_RequiresCoverage(t *testing.T) {
	if _, err := NewMappedResult("row-1", nil, TierFuzzy, nil); err == nil {
		t.Error("expected error for nil coverage")
	}
	if _, err := NewMappedResult("row-1", &CanonicalCoverage{}, TierFuzzy, nil); err == nil {
		t.Error("expected error for empty code")
	}
	if _, err := NewMappedResult("", &CanonicalCoverage{code: "X"}, TierFuzzy, nil); err == nil {
		t.Error("expected error for empty row id")
	}
}

func TestNewAmbiguousResult_RequiresTwoDistinctCodes(t *testing.T) {
	a := &CanonicalCoverage{code: "A"}
	b := &CanonicalCoverage{code: "B"}

	if _, err := NewAmbiguousResult("row-1", TierFuzzy, []*CanonicalCoverage{a, a}, nil); err == nil {
		t.Error("expected error for a single distinct code")
	}

	r, err := NewAmbiguousResult("row-1", TierFuzzy, []*CanonicalCoverage{b, a, b}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := r.Code(); ok {
		t.Error("ambiguous result must not expose a code")
	}
	if got := r.Candidates(); len(got) != 2 || got[0] != "A" || got[1] != "B" {
		t.Errorf("expected sorted [A B], got %v", got)
	}
}

func TestUnmappedResult_HasNoCode(t *testing.T) {
	r := NewUnmappedResult("row-1", "")
	if _, ok := r.Code(); ok {
		t.Error("unmapped result must not expose a code")
	}
	if r.Reason() != ReasonNoMatch {
		t.Errorf("expected default reason %q, got %q", ReasonNoMatch, r.Reason())
	}
	rec := r.Record()
	if rec.CanonicalCode != nil {
		t.Error("unmapped record must not carry a code")
	}
}

func TestRestoreMappingResult_RevalidatesCode(t *testing.T) {
	code := "GONE"
	rec := MappingRecord{UniverseRowID: "row-1", Status: MappingStatusMapped, CanonicalCode: &code, Tier: int(TierFuzzy)}

	_, err := RestoreMappingResult(rec, func(string) (*CanonicalCoverage, error) {
		return nil, errNotFound
	})
	if err == nil {
		t.Error("expected lookup failure to propagate")
	}

	restored, err := RestoreMappingResult(rec, func(c string) (*CanonicalCoverage, error) {
		return &CanonicalCoverage{code: c}, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, _ := restored.Code(); got.String() != "GONE" {
		t.Errorf("expected GONE, got %s", got)
	}
}

func TestRestoreMappingResult_AmbiguousCandidatesGoThroughLookup(t *testing.T) {
	rec := MappingRecord{UniverseRowID: "row-1", Status: MappingStatusAmbiguous, Candidates: []string{"A", "GONE"}, Tier: int(TierFuzzy)}
	known := map[string]bool{"A": true, "B": true}
	lookup := func(c string) (*CanonicalCoverage, error) {
		if !known[c] {
			return nil, errNotFound
		}
		return RestoreCanonicalCoverage(CoverageDefinition{Code: c}), nil
	}

	if _, err := RestoreMappingResult(rec, lookup); err == nil {
		t.Error("expected unknown candidate to fail the restore")
	}

	rec.Candidates = []string{"B", "A"}
	restored, err := RestoreMappingResult(rec, lookup)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := restored.Candidates(); len(got) != 2 || got[0] != "A" || got[1] != "B" {
		t.Errorf("expected [A B], got %v", got)
	}
}

func TestCanonicalCoverage_CodeOnlyFromDefinition(t *testing.T) {
	forged := &CanonicalCoverage{DisplayName: "암수술비"}
	if !forged.Code().IsZero() {
		t.Errorf("literal coverage must not carry a code, got %s", forged.Code())
	}
	if _, err := NewMappedResult("row-1", forged, TierFuzzy, nil); err == nil {
		t.Error("expected a coverage without a code to be rejected")
	}

	def := CoverageDefinition{Code: "CA_SURGERY", DisplayName: "암수술비", Family: "cancer"}
	restored := RestoreCanonicalCoverage(def)
	if restored.Code().String() != "CA_SURGERY" || !restored.Definition().Same(def) {
		t.Errorf("unexpected restored coverage: %+v", restored.Definition())
	}
	data, err := json.Marshal(restored)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var out map[string]interface{}
	_ = json.Unmarshal(data, &out)
	if out["code"] != "CA_SURGERY" {
		t.Errorf("expected code in payload: %s", data)
	}
}

func TestRestoreMappingResult_RejectsInconsistentRecords(t *testing.T) {
	code := "X"
	cases := []MappingRecord{
		{UniverseRowID: "r", Status: MappingStatusMapped},
		{UniverseRowID: "r", Status: MappingStatusUnmapped, CanonicalCode: &code},
		{UniverseRowID: "r", Status: MappingStatusAmbiguous, CanonicalCode: &code, Candidates: []string{"A", "B"}},
		{UniverseRowID: "r", Status: "WHATEVER"},
	}
	lookup := func(c string) (*CanonicalCoverage, error) { return &CanonicalCoverage{code: c}, nil }
	for _, rec := range cases {
		if _, err := RestoreMappingResult(rec, lookup); err == nil {
			t.Errorf("expected error for %+v", rec)
		}
	}
}

func TestMappingResult_MarshalJSON(t *testing.T) {
	r, _ := NewMappedResult("row-1", &CanonicalCoverage{code: "CA_DIAG_GENERAL"}, TierInsurerExact, nil)
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["canonical_code"] != "CA_DIAG_GENERAL" || out["tier"] != "insurer_exact" {
		t.Errorf("unexpected payload: %s", data)
	}

	u := NewUnmappedResult("row-2", ReasonOutsideUniverse)
	data, _ = json.Marshal(u)
	out = map[string]interface{}{}
	_ = json.Unmarshal(data, &out)
	if _, present := out["canonical_code"]; present {
		t.Errorf("unmapped payload must omit canonical_code: %s", data)
	}
}
