package evaluation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/coveragecompare/internal/domain/entities"
	"github.com/zatekoja/coveragecompare/internal/recall"
)

type fakeClassifier struct {
	byName map[string]string // coverage name -> mapped code, "?" for ambiguous
}

func (f *fakeClassifier) Classify(ctx context.Context, row *entities.UniverseRow) (*entities.MappingResult, error) {
	code, ok := f.byName[row.RawCoverageName]
	switch {
	case row.RawCoverageName == "boom":
		return nil, errors.New("index unavailable")
	case !ok:
		return entities.NewUnmappedResult(row.ID, entities.ReasonNoMatch), nil
	case code == "?":
		return entities.NewAmbiguousResult(row.ID, entities.TierFuzzy, entities.RestoreCanonicalCoverages([]entities.CoverageDefinition{
			{Code: "CA_DIAG_GENERAL"}, {Code: "CA_DIAG_SIMILAR"},
		}), nil)
	default:
		return entities.NewMappedResult(row.ID, entities.RestoreCanonicalCoverage(entities.CoverageDefinition{Code: code}), entities.TierInsurerExact, nil)
	}
}

type fakeRecaller struct{}

func (fakeRecaller) Recall(ctx context.Context, text, insurer string) (*recall.Result, error) {
	return &recall.Result{Codes: []string{"CA_DIAG_SIMILAR", "CA_DIAG_GENERAL"}}, nil
}

func TestRunner_Run(t *testing.T) {
	classifier := &fakeClassifier{byName: map[string]string{
		"암수술비": "CA_SURGERY",
		"뇌질환":  "IHD_DIAG",
		"암진단비": "?",
	}}

	cases := []GoldenCase{
		{ID: "ok", Insurer: "SAMSUNG", CoverageName: "암수술비", ExpectedCode: "CA_SURGERY", Difficulty: DifficultyEasy},
		{ID: "wrong", Insurer: "SAMSUNG", CoverageName: "뇌질환", ExpectedCode: "CBV_DIAG", Difficulty: DifficultyHard},
		{ID: "ambiguous", Insurer: "SAMSUNG", CoverageName: "암진단비", ExpectedCode: "CA_DIAG_GENERAL", Difficulty: DifficultyMedium},
		{ID: "meta", Insurer: "SAMSUNG", CoverageName: "합계보험료", Difficulty: DifficultyEasy},
		{ID: "err", Insurer: "SAMSUNG", CoverageName: "boom", ExpectedCode: "CA_SURGERY", Difficulty: DifficultyEasy},
	}

	summary, err := NewRunner(classifier, fakeRecaller{}).Run(context.Background(), cases)
	require.NoError(t, err)

	assert.Equal(t, 5, summary.TotalCases)
	assert.Equal(t, 1, summary.Outcomes[OutcomeCorrect])
	assert.Equal(t, 1, summary.Outcomes[OutcomeWrongCode])
	assert.Equal(t, 1, summary.Outcomes[OutcomeAmbiguous])
	assert.Equal(t, 1, summary.Outcomes[OutcomeUnmapped])
	assert.Equal(t, 1, summary.Outcomes[OutcomeError])
	assert.InDelta(t, 0.5, summary.Precision, 1e-9)
	assert.InDelta(t, 2.0/3.0, summary.MappedRate, 1e-9)
	assert.Equal(t, 2, summary.ByDifficulty[DifficultyEasy].Correct)
	assert.Len(t, summary.Failures, 3)

	// Only the ambiguous case has its expected code in the recall set
	assert.InDelta(t, 1.0/3.0, summary.AvgRecallAt10, 1e-9)
	assert.InDelta(t, 0.5/3.0, summary.AvgMRRAt10, 1e-9)
}

func TestRunner_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner(&fakeClassifier{}, nil).Run(ctx, []GoldenCase{{ID: "g1"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGuardrails_Check(t *testing.T) {
	g := NewGuardrails(GuardrailConfig{MaxWrongCodes: 0, MinMappedRate: 0.8, MinRecallAt10: 0.9})

	passing := &Summary{Outcomes: map[Outcome]int{OutcomeCorrect: 9}, MappedRate: 0.9, AvgRecallAt10: 0.95}
	assert.Empty(t, g.Check(passing))

	failing := &Summary{Outcomes: map[Outcome]int{OutcomeWrongCode: 1, OutcomeError: 2}, MappedRate: 0.5, AvgRecallAt10: 0.5}
	assert.Len(t, g.Check(failing), 4)
}
