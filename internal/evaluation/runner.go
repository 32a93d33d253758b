package evaluation

import (
	"context"
	"time"

	"github.com/zatekoja/coveragecompare/internal/domain/entities"
	"github.com/zatekoja/coveragecompare/internal/recall"
)

// Classifier maps a row without storing the result
type Classifier interface {
	Classify(ctx context.Context, row *entities.UniverseRow) (*entities.MappingResult, error)
}

// Recaller returns the candidate codes for a title
type Recaller interface {
	Recall(ctx context.Context, text, insurer string) (*recall.Result, error)
}

// Runner runs evaluation across a set of golden cases.
type Runner struct {
	classifier Classifier
	recaller   Recaller
}

func NewRunner(classifier Classifier, recaller Recaller) *Runner {
	return &Runner{classifier: classifier, recaller: recaller}
}

// Run evaluates every case. Nothing is written to the store.
func (r *Runner) Run(ctx context.Context, cases []GoldenCase) (*Summary, error) {
	summary := &Summary{
		TotalCases:   len(cases),
		Outcomes:     make(map[Outcome]int),
		ByDifficulty: make(map[Difficulty]*DifficultyStats),
	}

	for _, gc := range cases {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res := r.evaluate(ctx, gc)
		r.updateSummary(summary, gc, res)
	}

	r.finalizeSummary(summary)
	return summary, nil
}

func (r *Runner) evaluate(ctx context.Context, gc GoldenCase) CaseResult {
	res := CaseResult{CaseID: gc.ID, ExpectedCode: gc.ExpectedCode}
	start := time.Now()
	defer func() { res.Latency = time.Since(start) }()

	row := &entities.UniverseRow{
		ID:              "eval:" + gc.ID,
		Insurer:         gc.Insurer,
		RawCoverageName: gc.CoverageName,
		SpanText:        gc.CoverageName,
	}
	result, err := r.classifier.Classify(ctx, row)
	if err != nil {
		res.Outcome = OutcomeError
		res.Err = err.Error()
		return res
	}
	if code, ok := result.Code(); ok {
		res.MappedCode = code.String()
	}
	res.Outcome = outcomeOf(gc, result)

	if r.recaller != nil && gc.ExpectedCode != "" {
		recalled, err := r.recaller.Recall(ctx, gc.CoverageName, gc.Insurer)
		if err == nil {
			res.Recalled = recalled.Codes
			res.RecallAt10 = RecallAtK([]string{gc.ExpectedCode}, recalled.Codes, 10)
			res.MRRAt10 = MRRAtK([]string{gc.ExpectedCode}, recalled.Codes, 10)
		}
	}
	return res
}

func outcomeOf(gc GoldenCase, result *entities.MappingResult) Outcome {
	switch result.Status() {
	case entities.MappingStatusMapped:
		code, _ := result.Code()
		if code.String() == gc.ExpectedCode {
			return OutcomeCorrect
		}
		return OutcomeWrongCode
	case entities.MappingStatusAmbiguous:
		return OutcomeAmbiguous
	default:
		if gc.ExpectedCode == "" {
			return OutcomeUnmapped
		}
		return OutcomeMissed
	}
}

func (r *Runner) updateSummary(s *Summary, gc GoldenCase, res CaseResult) {
	s.Outcomes[res.Outcome]++
	s.AvgRecallAt10 += res.RecallAt10
	s.AvgMRRAt10 += res.MRRAt10
	s.AvgLatency += res.Latency

	ds, ok := s.ByDifficulty[gc.Difficulty]
	if !ok {
		ds = &DifficultyStats{}
		s.ByDifficulty[gc.Difficulty] = ds
	}
	ds.Count++
	switch res.Outcome {
	case OutcomeCorrect, OutcomeUnmapped:
		ds.Correct++
	default:
		s.Failures = append(s.Failures, res)
	}
}

func (r *Runner) finalizeSummary(s *Summary) {
	mapped := s.Outcomes[OutcomeCorrect] + s.Outcomes[OutcomeWrongCode]
	if mapped > 0 {
		s.Precision = float64(s.Outcomes[OutcomeCorrect]) / float64(mapped)
	}

	var labeled int
	for _, o := range []Outcome{OutcomeCorrect, OutcomeWrongCode, OutcomeAmbiguous, OutcomeMissed} {
		labeled += s.Outcomes[o]
	}
	if labeled > 0 {
		// Recall metrics only cover labeled cases
		s.MappedRate = float64(mapped) / float64(labeled)
		s.AvgRecallAt10 /= float64(labeled)
		s.AvgMRRAt10 /= float64(labeled)
	}
	if s.TotalCases > 0 {
		s.AvgLatency /= time.Duration(s.TotalCases)
	}
}
