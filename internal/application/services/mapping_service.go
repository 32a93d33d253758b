package services

import (
	"context"
	"fmt"
	"math"
	"time"


	"github.com/zatekoja/coveragecompare/internal/domain/entities"
	"github.com/zatekoja/coveragecompare/internal/domain/providers"
	"github.com/zatekoja/coveragecompare/internal/domain/repositories"
	"github.com/zatekoja/coveragecompare/internal/infrastructure/observability"
	"github.com/zatekoja/coveragecompare/internal/recall"
	apperrors "github.com/zatekoja/coveragecompare/pkg/errors"
	"github.com/zatekoja/coveragecompare/pkg/utils"
)

const similarityEpsilon = 1e-9

// EventOpener records rows the resolver could not map
type EventOpener interface {
	OpenForRow(ctx context.Context, row *entities.UniverseRow, result *entities.MappingResult) (bool, error)
}

// MappingService resolves universe rows to canonical codes
type MappingService struct {
	rows           repositories.UniverseRepository
	mappings       repositories.MappingRepository
	registry       *RegistryService
	index          *AliasIndexService
	slots          *SlotExtractor
	events         EventOpener
	bus            providers.EventBus
	fuzzyThreshold float64
	metrics        *observability.Metrics
}

// NewMappingService creates a new mapping service
func NewMappingService(
	store repositories.Store,
	registry *RegistryService,
	index *AliasIndexService,
	slots *SlotExtractor,
	fuzzyThreshold float64,
) *MappingService {
	return &MappingService{
		rows:           store.Universe,
		mappings:       store.Mappings,
		registry:       registry,
		index:          index,
		slots:          slots,
		fuzzyThreshold: fuzzyThreshold,
	}
}

// SetEventOpener wires the workbench that receives unmapped rows
func (s *MappingService) SetEventOpener(events EventOpener) {
	s.events = events
}

// SetEventBus enables mapping.changed notifications
func (s *MappingService) SetEventBus(bus providers.EventBus) {
	s.bus = bus
}

// SetMetrics enables resolution metrics
func (s *MappingService) SetMetrics(metrics *observability.Metrics) {
	s.metrics = metrics
}

type match struct {
	tier     entities.MatchTier
	codes    []string
	evidence []entities.MatchEvidence
}

// classify runs the tiers in order and stops at the first tier with a hit
func (s *MappingService) classify(idx *recall.Index, row *entities.UniverseRow, key utils.NormalizedKey) match {
	if codes := idx.NameMapCodes(row.Insurer, row.RawCoverageName); len(codes) > 0 {
		return newMatch(entities.TierInsurerExact, recall.SourceNameMap, recall.NameMapKey(row.RawCoverageName), codes, 1)
	}
	if codes := idx.InsurerAliasCodes(row.Insurer, key.Key); len(codes) > 0 {
		return newMatch(entities.TierInsurerExact, recall.SourceInsurerAlias, key.Key, codes, 1)
	}

	display := idx.DisplayNameCodes(key.Key)
	global := idx.GlobalAliasCodes(key.Key)
	if len(display)+len(global) > 0 {
		m := newMatch(entities.TierCanonicalExact, recall.SourceDisplayName, key.Key, display, 1)
		g := newMatch(entities.TierCanonicalExact, recall.SourceGlobalAlias, key.Key, global, 1)
		m.codes = append(m.codes, g.codes...)
		m.evidence = append(m.evidence, g.evidence...)
		return m
	}

	best := 0.0
	var fuzzy []entities.MatchEvidence
	for _, entry := range idx.DisplayEntries() {
		sim := utils.Similarity(key.Key, entry.Key)
		if sim < s.fuzzyThreshold {
			continue
		}
		switch {
		case sim > best+similarityEpsilon:
			best = sim
			fuzzy = fuzzy[:0]
		case math.Abs(sim-best) > similarityEpsilon:
			continue
		}
		fuzzy = append(fuzzy, entities.MatchEvidence{Code: entry.Code, Source: "fuzzy", MatchedKey: entry.Key, Similarity: sim})
	}
	if len(fuzzy) > 0 {
		m := match{tier: entities.TierFuzzy, evidence: fuzzy}
		for _, ev := range fuzzy {
			m.codes = append(m.codes, ev.Code)
		}
		return m
	}
	return match{tier: entities.TierNone}
}

func newMatch(tier entities.MatchTier, source, matchedKey string, codes []string, sim float64) match {
	m := match{tier: tier, codes: codes}
	for _, c := range codes {
		m.evidence = append(m.evidence, entities.MatchEvidence{Code: c, Source: source, MatchedKey: matchedKey, Similarity: sim})
	}
	return m
}

// Classify computes the mapping of a row without persisting it
func (s *MappingService) Classify(ctx context.Context, row *entities.UniverseRow) (*entities.MappingResult, error) {
	idx, err := s.index.Current(ctx)
	if err != nil {
		return nil, err
	}
	key := idx.Normalize(row.RawCoverageName)
	if key.IsEmpty() {
		return entities.NewUnmappedResult(row.ID, entities.ReasonEmptyKey), nil
	}

	m := s.classify(idx, row, key)
	if m.tier == entities.TierNone {
		return entities.NewUnmappedResult(row.ID, entities.ReasonNoMatch), nil
	}

	// Registry check right before the result is formed. The index only holds
	// registry codes, so a miss here means the registry and index disagree.
	coverages := make([]*entities.CanonicalCoverage, 0, len(m.codes))
	seen := make(map[string]struct{}, len(m.codes))
	for _, code := range m.codes {
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		coverage, err := s.registry.Lookup(ctx, code)
		if apperrors.Is(err, apperrors.ErrorTypeNotFound) {
			return nil, apperrors.NewValidationError(fmt.Sprintf("canonical code %s is not in the registry", code)).
				WithDetail("code", code)
		}
		if err != nil {
			return nil, err
		}
		coverages = append(coverages, coverage)
	}

	if len(coverages) == 1 {
		return entities.NewMappedResult(row.ID, coverages[0], m.tier, m.evidence)
	}
	return entities.NewAmbiguousResult(row.ID, m.tier, coverages, m.evidence)
}

// Resolve classifies a row and stores the result. Resolving an unchanged row
// again is a no-op; losing a race with a concurrent resolver of the same row
// is a ConflictError.
func (s *MappingService) Resolve(ctx context.Context, row *entities.UniverseRow) (*entities.MappingResult, error) {
	result, _, err := s.resolve(ctx, row)
	return result, err
}

func (s *MappingService) resolve(ctx context.Context, row *entities.UniverseRow) (*entities.MappingResult, bool, error) {
	ctx, span := observability.StartSpan(ctx, "MappingService.Resolve")
	defer span.End()
	ctx = observability.WithLogFields(ctx, observability.LogFields{Insurer: row.Insurer, ProposalID: row.ProposalID, RowID: row.ID})

	result, err := s.Classify(ctx, row)
	if err != nil {
		observability.RecordError(span, err)
		return nil, false, err
	}

	stored, changed, err := s.persist(ctx, result)
	if err != nil {
		observability.RecordError(span, err)
		return nil, false, err
	}
	observability.RecordResolution(ctx, s.metrics, string(stored.Status()), stored.Tier().String())

	if err := s.afterResolve(ctx, row, stored); err != nil {
		return nil, false, err
	}
	if changed && s.bus != nil {
		code, _ := stored.Code()
		ev := entities.NewCanonEvent(entities.CanonEventMappingChanged, row.Insurer, row.NormalizedName, code.String(), 0)
		if err := s.bus.Publish(ctx, providers.EventChannelMappingChanges, ev); err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).Msg("Failed to publish mapping change")
		}
	}
	return stored, changed, nil
}

// ResolveWithRetry resolves again once after losing a concurrent race
func (s *MappingService) ResolveWithRetry(ctx context.Context, row *entities.UniverseRow) (*entities.MappingResult, error) {
	result, _, err := s.resolveWithRetry(ctx, row)
	return result, err
}

func (s *MappingService) resolveWithRetry(ctx context.Context, row *entities.UniverseRow) (*entities.MappingResult, bool, error) {
	result, changed, err := s.resolve(ctx, row)
	if apperrors.Is(err, apperrors.ErrorTypeConflict) {
		return s.resolve(ctx, row)
	}
	return result, changed, err
}

// ResolveByID loads a row and resolves it
func (s *MappingService) ResolveByID(ctx context.Context, rowID string) (*entities.MappingResult, error) {
	row, err := s.rows.GetByID(ctx, rowID)
	if err != nil {
		return nil, err
	}
	return s.ResolveWithRetry(ctx, row)
}

func (s *MappingService) persist(ctx context.Context, result *entities.MappingResult) (*entities.MappingResult, bool, error) {
	rec := result.Record()
	now := time.Now().UTC()
	rec.UpdatedAt = now

	existing, err := s.mappings.Get(ctx, result.UniverseRowID())
	if apperrors.Is(err, apperrors.ErrorTypeNotFound) {
		inserted, err := s.mappings.Insert(ctx, rec)
		if err != nil {
			return nil, false, err
		}
		if !inserted {
			return nil, false, apperrors.NewConflictError(fmt.Sprintf("mapping for row %s was written concurrently", result.UniverseRowID()))
		}
		return result.WithRevision(1, now), true, nil
	}
	if err != nil {
		return nil, false, err
	}

	prev, restoreErr := entities.RestoreMappingResult(*existing, s.registry.LookupFunc(ctx))
	if restoreErr == nil && prev.SameOutcome(result) {
		return prev, false, nil
	}
	if restoreErr != nil {
		observability.LoggerFromContext(ctx).Warn().Err(restoreErr).Msg("Replacing unreadable mapping record")
	}

	updated, err := s.mappings.UpdateIfRevision(ctx, rec, existing.Revision)
	if err != nil {
		return nil, false, err
	}
	if !updated {
		return nil, false, apperrors.NewConflictError(fmt.Sprintf("mapping for row %s changed concurrently", result.UniverseRowID()))
	}
	return result.WithRevision(existing.Revision+1, now), true, nil
}

func (s *MappingService) afterResolve(ctx context.Context, row *entities.UniverseRow, result *entities.MappingResult) error {
	if result.IsMapped() {
		code, _ := result.Code()
		coverage, err := s.registry.Lookup(ctx, code.String())
		if err != nil {
			return err
		}
		slots, err := s.slots.Extract(ctx, row, coverage, result)
		if err != nil {
			return err
		}
		return s.mappings.SaveSlots(ctx, slots)
	}

	if err := s.mappings.DeleteSlots(ctx, row.ID); err != nil {
		return err
	}
	if s.events == nil {
		return nil
	}
	if _, err := s.events.OpenForRow(ctx, row, result); err != nil {
		observability.LoggerFromContext(ctx).Error().Err(err).Msg("Failed to open mapping event")
		return err
	}
	return nil
}

// Get retrieves the stored mapping of a row
func (s *MappingService) Get(ctx context.Context, rowID string) (*entities.MappingResult, error) {
	rec, err := s.mappings.Get(ctx, rowID)
	if err != nil {
		return nil, err
	}
	return entities.RestoreMappingResult(*rec, s.registry.LookupFunc(ctx))
}

// GetSlots retrieves the slots of a MAPPED row
func (s *MappingService) GetSlots(ctx context.Context, rowID string) (*entities.CoverageSlots, error) {
	return s.mappings.GetSlots(ctx, rowID)
}
