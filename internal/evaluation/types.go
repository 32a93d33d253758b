package evaluation

import "time"

// Difficulty labels how hard a golden case is expected to be
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"   // exact registry or alias wording
	DifficultyMedium Difficulty = "medium" // spacing, brackets or suffix noise
	DifficultyHard   Difficulty = "hard"   // insurer-specific wording
)

// IsValid checks if the difficulty is one of the defined constants.
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// GoldenCase is a labeled coverage title with its expected canonical code.
// An empty ExpectedCode means the title must stay unmapped.
type GoldenCase struct {
	ID           string     `json:"id"`
	Insurer      string     `json:"insurer"`
	CoverageName string     `json:"coverage_name"`
	ExpectedCode string     `json:"expected_code"`
	Difficulty   Difficulty `json:"difficulty"`
}

// Outcome classifies a single mapping against its label
type Outcome string

const (
	OutcomeCorrect   Outcome = "correct"
	OutcomeWrongCode Outcome = "wrong_code"
	OutcomeAmbiguous Outcome = "ambiguous"
	OutcomeMissed    Outcome = "missed"
	OutcomeUnmapped  Outcome = "unmapped" // correctly left unmapped
	OutcomeError     Outcome = "error"
)

// CaseResult holds the evaluation outcome for a single golden case.
type CaseResult struct {
	CaseID       string        `json:"case_id"`
	Outcome      Outcome       `json:"outcome"`
	ExpectedCode string        `json:"expected_code,omitempty"`
	MappedCode   string        `json:"mapped_code,omitempty"`
	Recalled     []string      `json:"recalled,omitempty"`
	RecallAt10   float64       `json:"recall_at_10"`
	MRRAt10      float64       `json:"mrr_at_10"`
	Latency      time.Duration `json:"latency_ns"`
	Err          string        `json:"error,omitempty"`
}

// Summary holds aggregate metrics across all golden cases.
type Summary struct {
	TotalCases    int                             `json:"total_cases"`
	Outcomes      map[Outcome]int                 `json:"outcomes"`
	Precision     float64                         `json:"precision"`
	MappedRate    float64                         `json:"mapped_rate"`
	AvgRecallAt10 float64                         `json:"avg_recall_at_10"`
	AvgMRRAt10    float64                         `json:"avg_mrr_at_10"`
	AvgLatency    time.Duration                   `json:"avg_latency_ns"`
	ByDifficulty  map[Difficulty]*DifficultyStats `json:"by_difficulty"`
	Failures      []CaseResult                    `json:"failures,omitempty"`
}

// DifficultyStats holds metrics grouped by difficulty.
type DifficultyStats struct {
	Count   int `json:"count"`
	Correct int `json:"correct"`
}
