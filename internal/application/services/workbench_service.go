package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zatekoja/coveragecompare/internal/domain/entities"
	"github.com/zatekoja/coveragecompare/internal/domain/providers"
	"github.com/zatekoja/coveragecompare/internal/domain/repositories"
	"github.com/zatekoja/coveragecompare/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/coveragecompare/pkg/errors"
	"github.com/zatekoja/coveragecompare/pkg/utils"
)

// KeyReResolver re-resolves the rows of one insurer that share a normalized key
type KeyReResolver interface {
	ReResolveKey(ctx context.Context, insurer, normalizedKey string) (*ReResolveReport, error)
}

// EventDetail is an event together with its validated suggestions
type EventDetail struct {
	Event       *entities.MappingEvent      `json:"event"`
	Suggestions []*entities.EventSuggestion `json:"suggestions"`
}

// SuggestionReport is the outcome of AddSuggestions
type SuggestionReport struct {
	Added    []*entities.EventSuggestion `json:"added"`
	Rejected []CandidateRejection        `json:"rejected"`
}

// WorkbenchService is the admin queue for rows that did not map. Approvals
// are the only path by which insurer aliases and name maps are written.
type WorkbenchService struct {
	repo           repositories.WorkbenchRepository
	normalizer     *utils.CoverageNormalizer
	validator      *CandidateValidator
	snoozeDuration time.Duration
	bus            providers.EventBus
	reresolver     KeyReResolver
	metrics        *observability.Metrics
	nowFn          func() time.Time
}

var _ EventOpener = (*WorkbenchService)(nil)

// NewWorkbenchService creates a new workbench service
func NewWorkbenchService(
	repo repositories.WorkbenchRepository,
	normalizer *utils.CoverageNormalizer,
	validator *CandidateValidator,
	snoozeDuration time.Duration,
) *WorkbenchService {
	return &WorkbenchService{
		repo:           repo,
		normalizer:     normalizer,
		validator:      validator,
		snoozeDuration: snoozeDuration,
		nowFn:          func() time.Time { return time.Now().UTC() },
	}
}

// SetEventBus enables alias.changed notifications after approvals
func (s *WorkbenchService) SetEventBus(bus providers.EventBus) {
	s.bus = bus
}

// SetReResolver wires the job that re-resolves rows after an approval
func (s *WorkbenchService) SetReResolver(r KeyReResolver) {
	s.reresolver = r
}

// SetMetrics enables transition metrics
func (s *WorkbenchService) SetMetrics(metrics *observability.Metrics) {
	s.metrics = metrics
}

// SetClock replaces the clock
func (s *WorkbenchService) SetClock(now func() time.Time) {
	s.nowFn = now
}

// OpenForRow opens an event for a row the resolver left UNMAPPED or
// AMBIGUOUS. A matching OPEN or still snoozed event suppresses it.
func (s *WorkbenchService) OpenForRow(ctx context.Context, row *entities.UniverseRow, result *entities.MappingResult) (bool, error) {
	if result.IsMapped() {
		return false, nil
	}
	event := &entities.MappingEvent{
		Insurer:          row.Insurer,
		RawCoverageTitle: row.RawCoverageName,
		NormalizedKey:    row.NormalizedName,
		DetectedStatus:   result.Status(),
		UniverseRowID:    row.ID,
		ProposalID:       row.ProposalID,
		Candidates:       result.Candidates(),
	}
	created, err := s.repo.OpenEvent(ctx, event, s.nowFn())
	if err != nil {
		return false, err
	}
	if created {
		observability.LoggerFromContext(ctx).Info().Str("event_id", event.ID).Str("status", string(result.Status())).
			Msg("Opened mapping event")
	}
	return created, nil
}

// Execute validates and applies a command in one transaction. Re-approving
// an event with the code it was already approved with returns it unchanged.
func (s *WorkbenchService) Execute(ctx context.Context, cmd WorkbenchCommand) (*entities.MappingEvent, error) {
	ctx, span := observability.StartSpan(ctx, "WorkbenchService.Execute")
	defer span.End()
	ctx = observability.WithLogFields(ctx, observability.LogFields{EventID: cmd.EventID()})

	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	env := &commandEnv{normalizer: s.normalizer, now: s.nowFn(), snoozeDuration: s.snoozeDuration}
	var (
		result *entities.MappingEvent
		noop   bool
	)
	err := s.repo.WithinTx(ctx, func(tx repositories.WorkbenchTx) error {
		event, err := tx.LockEvent(ctx, cmd.EventID())
		if err != nil {
			return err
		}
		if sameApproval(event, cmd) {
			result, noop = event, true
			return nil
		}
		if !event.CanTransition(cmd.Target()) {
			return apperrors.NewConflictError(fmt.Sprintf("event %s is %s", event.ID, event.State)).
				WithDetail("state", string(event.State))
		}

		before, err := snapshotEvent(event)
		if err != nil {
			return apperrors.NewInternalError("failed to snapshot event", err)
		}
		if err := cmd.apply(ctx, tx, env, event); err != nil {
			return err
		}
		event.State = cmd.Target()
		event.ResolvedBy = cmd.Actor()
		if note := noteOf(cmd); note != "" {
			event.Note = note
		}
		event.UpdatedAt = env.now
		if err := tx.UpdateEvent(ctx, event); err != nil {
			return err
		}

		after, err := snapshotEvent(event)
		if err != nil {
			return apperrors.NewInternalError("failed to snapshot event", err)
		}
		entry := cmd.audit(before, after)
		entry.ID = uuid.NewString()
		entry.CreatedAt = env.now
		if err := tx.AppendAudit(ctx, entry); err != nil {
			return err
		}
		result = event
		return nil
	})
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	if noop {
		return result, nil
	}

	observability.RecordWorkbenchTransition(ctx, s.metrics, cmd.Action())
	ctx = observability.WithLogFields(ctx, observability.LogFields{Insurer: result.Insurer, ProposalID: result.ProposalID})
	observability.LoggerFromContext(ctx).Info().Str("action", cmd.Action()).Str("actor", cmd.Actor()).
		Msg("Workbench transition")

	if env.written {
		s.afterAliasWrite(ctx, result, env.aliasVersion)
	}
	return result, nil
}

// afterAliasWrite runs once the approval is committed. Failures here do not
// undo the approval; the periodic re-resolve job catches up.
func (s *WorkbenchService) afterAliasWrite(ctx context.Context, event *entities.MappingEvent, version int64) {
	if s.bus != nil {
		ev := entities.NewCanonEvent(entities.CanonEventAliasChanged, event.Insurer, event.NormalizedKey, *event.ResolvedCode, version)
		if err := s.bus.Publish(ctx, providers.EventChannelAliasChanges, ev); err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).Msg("Failed to publish alias change")
		}
	}
	if s.reresolver == nil {
		return
	}
	report, err := s.reresolver.ReResolveKey(ctx, event.Insurer, event.NormalizedKey)
	if err != nil {
		observability.LoggerFromContext(ctx).Error().Err(err).Msg("Failed to re-resolve rows after approval")
		return
	}
	observability.LoggerFromContext(ctx).Info().Int("resolved", report.Resolved).Int("changed", report.Changed).
		Msg("Re-resolved rows after approval")
}

func sameApproval(event *entities.MappingEvent, cmd WorkbenchCommand) bool {
	approve, ok := cmd.(*ApproveCommand)
	if !ok || event.State != entities.EventStateApproved || event.ResolvedCode == nil {
		return false
	}
	return *event.ResolvedCode == approve.CanonicalCode
}

func noteOf(cmd WorkbenchCommand) string {
	switch c := cmd.(type) {
	case *ApproveCommand:
		return c.Note
	case *RejectCommand:
		return c.Note
	case *SnoozeCommand:
		return c.Note
	}
	return ""
}

// Approve is shorthand for executing an ApproveCommand
func (s *WorkbenchService) Approve(ctx context.Context, cmd *ApproveCommand) (*entities.MappingEvent, error) {
	return s.Execute(ctx, cmd)
}

// Reject is shorthand for executing a RejectCommand
func (s *WorkbenchService) Reject(ctx context.Context, cmd *RejectCommand) (*entities.MappingEvent, error) {
	return s.Execute(ctx, cmd)
}

// Snooze is shorthand for executing a SnoozeCommand
func (s *WorkbenchService) Snooze(ctx context.Context, cmd *SnoozeCommand) (*entities.MappingEvent, error) {
	return s.Execute(ctx, cmd)
}

// ListEvents lists events newest first with the total count
func (s *WorkbenchService) ListEvents(ctx context.Context, filter entities.EventFilter) ([]*entities.MappingEvent, int, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.ListEvents(ctx, filter)
}

// GetEvent retrieves an event with its suggestions
func (s *WorkbenchService) GetEvent(ctx context.Context, id string) (*EventDetail, error) {
	event, err := s.repo.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	suggestions, err := s.repo.ListSuggestions(ctx, id)
	if err != nil {
		return nil, err
	}
	if suggestions == nil {
		suggestions = []*entities.EventSuggestion{}
	}
	return &EventDetail{Event: event, Suggestions: suggestions}, nil
}

// ListAudit lists audit entries newest first
func (s *WorkbenchService) ListAudit(ctx context.Context, filter entities.AuditFilter) ([]*entities.AuditLogEntry, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return s.repo.ListAudit(ctx, filter)
}

// AddSuggestions validates extraction candidates and attaches the ones that
// pass to an event. Suggestions never resolve an event on their own.
func (s *WorkbenchService) AddSuggestions(ctx context.Context, eventID string, candidates []entities.EntityCandidate) (*SuggestionReport, error) {
	if _, err := s.repo.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	valid, rejected, err := s.validator.ValidateAll(ctx, candidates)
	if err != nil {
		return nil, err
	}

	report := &SuggestionReport{Added: []*entities.EventSuggestion{}, Rejected: rejected}
	if report.Rejected == nil {
		report.Rejected = []CandidateRejection{}
	}
	now := s.nowFn()
	for _, vc := range valid {
		c := vc.Candidate()
		suggestion := &entities.EventSuggestion{
			ID:            uuid.NewString(),
			EventID:       eventID,
			CanonicalCode: vc.Code().String(),
			EntityType:    c.ProposedEntityType,
			Confidence:    c.Confidence,
			Span:          c.Span,
			CreatedAt:     now,
		}
		if err := s.repo.AddSuggestion(ctx, suggestion); err != nil {
			return nil, err
		}
		report.Added = append(report.Added, suggestion)
	}
	return report, nil
}
