package evaluation

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "golden.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func TestLoadGoldenCases_ValidFile(t *testing.T) {
	content := `[
		{"id": "g1", "insurer": "SAMSUNG", "coverage_name": "암수술비", "expected_code": "CA_SURGERY", "difficulty": "easy"},
		{"id": "g2", "insurer": "HANWHA", "coverage_name": "합계 보험료", "difficulty": "medium"}
	]`
	cases, err := LoadGoldenCases(writeTempFile(t, content))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cases) != 2 {
		t.Fatalf("expected 2 cases, got %d", len(cases))
	}
	if cases[0].ExpectedCode != "CA_SURGERY" {
		t.Errorf("expected CA_SURGERY, got %s", cases[0].ExpectedCode)
	}
	if cases[1].ExpectedCode != "" {
		t.Errorf("expected an unlabeled code, got %s", cases[1].ExpectedCode)
	}
	if err := ValidateGoldenCases(cases); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestLoadGoldenCases_InvalidFile(t *testing.T) {
	if _, err := LoadGoldenCases("/nonexistent/path.json"); err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadGoldenCases_InvalidJSON(t *testing.T) {
	if _, err := LoadGoldenCases(writeTempFile(t, `not valid json`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestValidateGoldenCases(t *testing.T) {
	valid := GoldenCase{ID: "g1", Insurer: "SAMSUNG", CoverageName: "암수술비", Difficulty: DifficultyEasy}

	tests := []struct {
		name  string
		cases []GoldenCase
	}{
		{"missing id", []GoldenCase{{Insurer: "SAMSUNG", CoverageName: "x", Difficulty: DifficultyEasy}}},
		{"duplicate id", []GoldenCase{valid, valid}},
		{"missing insurer", []GoldenCase{{ID: "g2", CoverageName: "x", Difficulty: DifficultyEasy}}},
		{"missing name", []GoldenCase{{ID: "g2", Insurer: "SAMSUNG", Difficulty: DifficultyEasy}}},
		{"bad difficulty", []GoldenCase{{ID: "g2", Insurer: "SAMSUNG", CoverageName: "x", Difficulty: "trivial"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateGoldenCases(tt.cases); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
