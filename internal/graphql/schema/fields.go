package schema

import (
	"context"

	"github.com/zatekoja/coveragecompare/internal/application/services"
	"github.com/zatekoja/coveragecompare/internal/domain/entities"
)

var objectFields = map[string]map[string]fieldFunc{
	"Query":              queryFields,
	"CanonicalCoverage":  coverageFields,
	"Resolution":         resolutionFields,
	"Decision":           decisionFields,
	"EvidenceSpan":       evidenceFields,
	"MappingEvent":       eventFields,
	"EventSuggestion":    suggestionFields,
	"MappingEventDetail": eventDetailFields,
	"MappingEventPage":   eventPageFields,
}

var queryFields = map[string]fieldFunc{
	"resolve": func(ctx context.Context, ec *executionContext, _ any, args map[string]any) (any, error) {
		res, err := ec.resolvers.Query().Resolve(ctx, argString(args, "insurer"), argString(args, "coverageName"), argOptionalString(args, "proposalId"))
		if err != nil || res == nil {
			return nil, err
		}
		return res, nil
	},
	"canonicalCoverage": func(ctx context.Context, ec *executionContext, _ any, args map[string]any) (any, error) {
		c, err := ec.resolvers.Query().CanonicalCoverage(ctx, argString(args, "code"))
		if err != nil || c == nil {
			return nil, err
		}
		return c, nil
	},
	"mappingEvents": func(ctx context.Context, ec *executionContext, _ any, args map[string]any) (any, error) {
		limit, err := argInt(args, "limit", 50)
		if err != nil {
			return nil, err
		}
		offset, err := argInt(args, "offset", 0)
		if err != nil {
			return nil, err
		}
		page, err := ec.resolvers.Query().MappingEvents(ctx, EventQuery{
			State:   argOptionalString(args, "state"),
			Insurer: argOptionalString(args, "insurer"),
			Limit:   limit,
			Offset:  offset,
		})
		if err != nil || page == nil {
			return nil, err
		}
		return page, nil
	},
	"mappingEvent": func(ctx context.Context, ec *executionContext, _ any, args map[string]any) (any, error) {
		detail, err := ec.resolvers.Query().MappingEvent(ctx, argString(args, "id"))
		if err != nil || detail == nil {
			return nil, err
		}
		return detail, nil
	},
}

var coverageFields = map[string]fieldFunc{
	"code":                 coverageField(func(c *entities.CanonicalCoverage) any { return c.Code().String() }),
	"displayName":          coverageField(func(c *entities.CanonicalCoverage) any { return c.DisplayName }),
	"family":               coverageField(func(c *entities.CanonicalCoverage) any { return c.Family }),
	"eventType":            coverageField(func(c *entities.CanonicalCoverage) any { return c.EventType }),
	"requiresDecision":     coverageField(func(c *entities.CanonicalCoverage) any { return c.RequiresDecision }),
	"requiresDiseaseScope": coverageField(func(c *entities.CanonicalCoverage) any { return c.RequiresDiseaseScope }),
}

func coverageField(get func(*entities.CanonicalCoverage) any) fieldFunc {
	return func(_ context.Context, _ *executionContext, obj any, _ map[string]any) (any, error) {
		return get(obj.(*entities.CanonicalCoverage)), nil
	}
}

var resolutionFields = map[string]fieldFunc{
	"insurer":         resolutionField(func(r *services.CompareResult) any { return r.Insurer }),
	"coverageName":    resolutionField(func(r *services.CompareResult) any { return r.CoverageName }),
	"proposalId":      resolutionField(func(r *services.CompareResult) any { return optional(r.ProposalID) }),
	"universeRowId":   resolutionField(func(r *services.CompareResult) any { return optional(r.UniverseRowID) }),
	"mappingStatus":   resolutionField(func(r *services.CompareResult) any { return string(r.MappingStatus) }),
	"canonicalCode":   resolutionField(func(r *services.CompareResult) any { return optionalPtr(r.CanonicalCode) }),
	"reason":          resolutionField(func(r *services.CompareResult) any { return optional(r.Reason) }),
	"codesForCompare": resolutionField(func(r *services.CompareResult) any { return stringList(r.CodesForCompare) }),
	"decision": resolutionField(func(r *services.CompareResult) any {
		if r.Decision == nil {
			return nil
		}
		return r.Decision
	}),
	"coverage": func(ctx context.Context, ec *executionContext, obj any, _ map[string]any) (any, error) {
		r := obj.(*services.CompareResult)
		if r.CanonicalCode == nil {
			return nil, nil
		}
		return coverage(ctx, ec, *r.CanonicalCode)
	},
	"candidates": func(ctx context.Context, ec *executionContext, obj any, _ map[string]any) (any, error) {
		return coverageList(ctx, ec, obj.(*services.CompareResult).Candidates)
	},
}

func resolutionField(get func(*services.CompareResult) any) fieldFunc {
	return func(_ context.Context, _ *executionContext, obj any, _ map[string]any) (any, error) {
		return get(obj.(*services.CompareResult)), nil
	}
}

var decisionFields = map[string]fieldFunc{
	"status":             decisionField(func(d *entities.CancerCanonicalDecision) any { return string(d.Status()) }),
	"marker":             decisionField(func(d *entities.CancerCanonicalDecision) any { return optional(d.Marker()) }),
	"recalledCandidates": decisionField(func(d *entities.CancerCanonicalDecision) any { return stringList(d.RecalledCandidates()) }),
	"codesForCompare": decisionField(func(d *entities.CancerCanonicalDecision) any {
		codes := d.CodesForCompare()
		out := make([]any, 0, len(codes))
		for _, c := range codes {
			out = append(out, c.String())
		}
		return out
	}),
	"evidence": decisionField(func(d *entities.CancerCanonicalDecision) any {
		spans := d.Evidence()
		out := make([]any, 0, len(spans))
		for i := range spans {
			out = append(out, &spans[i])
		}
		return out
	}),
}

func decisionField(get func(*entities.CancerCanonicalDecision) any) fieldFunc {
	return func(_ context.Context, _ *executionContext, obj any, _ map[string]any) (any, error) {
		return get(obj.(*entities.CancerCanonicalDecision)), nil
	}
}

var evidenceFields = map[string]fieldFunc{
	"canonicalCode": evidenceField(func(e *entities.EvidenceSpan) any { return e.CanonicalCode }),
	"documentId":    evidenceField(func(e *entities.EvidenceSpan) any { return e.DocumentID }),
	"page":          evidenceField(func(e *entities.EvidenceSpan) any { return e.Page }),
	"text":          evidenceField(func(e *entities.EvidenceSpan) any { return e.Text }),
}

func evidenceField(get func(*entities.EvidenceSpan) any) fieldFunc {
	return func(_ context.Context, _ *executionContext, obj any, _ map[string]any) (any, error) {
		return get(obj.(*entities.EvidenceSpan)), nil
	}
}

var eventFields = map[string]fieldFunc{
	"id":               eventField(func(e *entities.MappingEvent) any { return e.ID }),
	"insurer":          eventField(func(e *entities.MappingEvent) any { return e.Insurer }),
	"rawCoverageTitle": eventField(func(e *entities.MappingEvent) any { return e.RawCoverageTitle }),
	"normalizedKey":    eventField(func(e *entities.MappingEvent) any { return e.NormalizedKey }),
	"detectedStatus":   eventField(func(e *entities.MappingEvent) any { return string(e.DetectedStatus) }),
	"universeRowId":    eventField(func(e *entities.MappingEvent) any { return optional(e.UniverseRowID) }),
	"proposalId":       eventField(func(e *entities.MappingEvent) any { return optional(e.ProposalID) }),
	"state":            eventField(func(e *entities.MappingEvent) any { return string(e.State) }),
	"resolvedCode":     eventField(func(e *entities.MappingEvent) any { return optionalPtr(e.ResolvedCode) }),
	"resolutionType":   eventField(func(e *entities.MappingEvent) any { return optional(string(e.ResolutionType)) }),
	"note":             eventField(func(e *entities.MappingEvent) any { return optional(e.Note) }),
	"resolvedBy":       eventField(func(e *entities.MappingEvent) any { return optional(e.ResolvedBy) }),
	"snoozedUntil": eventField(func(e *entities.MappingEvent) any {
		if e.SnoozedUntil == nil {
			return nil
		}
		return *e.SnoozedUntil
	}),
	"createdAt": eventField(func(e *entities.MappingEvent) any { return e.CreatedAt }),
	"updatedAt": eventField(func(e *entities.MappingEvent) any { return e.UpdatedAt }),
	"candidates": func(ctx context.Context, ec *executionContext, obj any, _ map[string]any) (any, error) {
		return coverageList(ctx, ec, obj.(*entities.MappingEvent).Candidates)
	},
	"resolvedCoverage": func(ctx context.Context, ec *executionContext, obj any, _ map[string]any) (any, error) {
		e := obj.(*entities.MappingEvent)
		if e.ResolvedCode == nil {
			return nil, nil
		}
		return coverage(ctx, ec, *e.ResolvedCode)
	},
}

func eventField(get func(*entities.MappingEvent) any) fieldFunc {
	return func(_ context.Context, _ *executionContext, obj any, _ map[string]any) (any, error) {
		return get(obj.(*entities.MappingEvent)), nil
	}
}

var suggestionFields = map[string]fieldFunc{
	"id":            suggestionField(func(s *entities.EventSuggestion) any { return s.ID }),
	"canonicalCode": suggestionField(func(s *entities.EventSuggestion) any { return s.CanonicalCode }),
	"entityType":    suggestionField(func(s *entities.EventSuggestion) any { return s.EntityType }),
	"confidence":    suggestionField(func(s *entities.EventSuggestion) any { return s.Confidence }),
	"span":          suggestionField(func(s *entities.EventSuggestion) any { return s.Span }),
	"createdAt":     suggestionField(func(s *entities.EventSuggestion) any { return s.CreatedAt }),
	"coverage": func(ctx context.Context, ec *executionContext, obj any, _ map[string]any) (any, error) {
		return coverage(ctx, ec, obj.(*entities.EventSuggestion).CanonicalCode)
	},
}

func suggestionField(get func(*entities.EventSuggestion) any) fieldFunc {
	return func(_ context.Context, _ *executionContext, obj any, _ map[string]any) (any, error) {
		return get(obj.(*entities.EventSuggestion)), nil
	}
}

var eventDetailFields = map[string]fieldFunc{
	"event": func(_ context.Context, _ *executionContext, obj any, _ map[string]any) (any, error) {
		d := obj.(*services.EventDetail)
		if d.Event == nil {
			return nil, nil
		}
		return d.Event, nil
	},
	"suggestions": func(_ context.Context, _ *executionContext, obj any, _ map[string]any) (any, error) {
		suggestions := obj.(*services.EventDetail).Suggestions
		out := make([]any, 0, len(suggestions))
		for _, s := range suggestions {
			out = append(out, s)
		}
		return out, nil
	},
}

var eventPageFields = map[string]fieldFunc{
	"items": func(_ context.Context, _ *executionContext, obj any, _ map[string]any) (any, error) {
		items := obj.(*MappingEventPage).Items
		out := make([]any, 0, len(items))
		for _, e := range items {
			out = append(out, e)
		}
		return out, nil
	},
	"total": func(_ context.Context, _ *executionContext, obj any, _ map[string]any) (any, error) {
		return obj.(*MappingEventPage).Total, nil
	},
}

func coverage(ctx context.Context, ec *executionContext, code string) (any, error) {
	c, err := ec.resolvers.Coverage().Coverage(ctx, code)
	if err != nil || c == nil {
		return nil, err
	}
	return c, nil
}

func coverageList(ctx context.Context, ec *executionContext, codes []string) (any, error) {
	coverages, err := ec.resolvers.Coverage().Coverages(ctx, codes)
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(coverages))
	for _, c := range coverages {
		out = append(out, c)
	}
	return out, nil
}

func optional(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func optionalPtr(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func stringList(values []string) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		out = append(out, v)
	}
	return out
}
