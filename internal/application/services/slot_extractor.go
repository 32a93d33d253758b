package services

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/zatekoja/coveragecompare/internal/domain/entities"
	"github.com/zatekoja/coveragecompare/internal/domain/repositories"
	apperrors "github.com/zatekoja/coveragecompare/pkg/errors"
)

var waitingPeriodPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d+)\s*일\s*(?:면책|대기|부담보)`),
	regexp.MustCompile(`(?:면책기간|대기기간|보장개시)\s*:?\s*(\d+)\s*일`),
}

var eventTypeKeywords = []struct {
	keyword   string
	eventType string
}{
	{"진단", "diagnosis"},
	{"수술", "surgery"},
	{"입원", "hospitalization"},
	{"통원", "outpatient"},
	{"사망", "death"},
	{"후유장해", "disability"},
}

// SlotExtractor fills coverage slots from a universe row and an attached
// disease scope. Nothing is inferred beyond what the row text states.
type SlotExtractor struct {
	disease repositories.DiseaseRepository
}

// NewSlotExtractor creates a new slot extractor
func NewSlotExtractor(disease repositories.DiseaseRepository) *SlotExtractor {
	return &SlotExtractor{disease: disease}
}

// Extract derives the slots of a MAPPED row
func (e *SlotExtractor) Extract(ctx context.Context, row *entities.UniverseRow, coverage *entities.CanonicalCoverage, result *entities.MappingResult) (*entities.CoverageSlots, error) {
	slots, err := entities.NewCoverageSlots(result)
	if err != nil {
		return nil, err
	}
	evidence := entities.SlotEvidence{DocumentID: row.DocumentID, Page: row.Page, Span: row.SpanText}

	if row.Amount != nil {
		slots.PayoutLimit = entities.ConfirmedAmount(*row.Amount, evidence)
	}

	if days, ok := waitingPeriodDays(row.SpanText); ok {
		slots.WaitingPeriodDays = entities.ConfirmedAmount(days, evidence)
	}

	text := row.RawCoverageName + " " + row.SpanText
	for _, kw := range eventTypeKeywords {
		if strings.Contains(text, kw.keyword) {
			slots.EventType = entities.ConfirmedText(kw.eventType, evidence)
			break
		}
	}

	slots.DiseaseScope = entities.UnknownText(coverage.RequiresDiseaseScope)
	if e.disease != nil {
		scope, err := e.disease.GetScope(ctx, coverage.Code().String(), row.Insurer, row.ProposalID)
		switch {
		case err == nil:
			slots.DiseaseScope = entities.ConfirmedText(scope.ID, entities.SlotEvidence{
				DocumentID: scope.Provenance.SourceDocumentID,
				Page:       scope.Provenance.Page,
				Span:       scope.Provenance.TextSpan,
			})
		case !apperrors.Is(err, apperrors.ErrorTypeNotFound):
			return nil, err
		}
	}

	slots.UpdatedAt = time.Now().UTC()
	return slots, nil
}

func waitingPeriodDays(text string) (int64, bool) {
	for _, re := range waitingPeriodPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		days, err := strconv.ParseInt(m[1], 10, 64)
		if err == nil {
			return days, true
		}
	}
	return 0, false
}
