package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/zatekoja/coveragecompare/internal/domain/entities"
	"github.com/zatekoja/coveragecompare/internal/domain/repositories"
	"github.com/zatekoja/coveragecompare/internal/recall"
	apperrors "github.com/zatekoja/coveragecompare/pkg/errors"
	"github.com/zatekoja/coveragecompare/pkg/utils"
)

// WorkbenchCommand is one admin action on a mapping event. A command is
// validated, then applied inside a single transaction, and the audit entry is
// derived from the command itself.
type WorkbenchCommand interface {
	EventID() string
	Actor() string
	Action() string
	Target() entities.EventState
	Validate() error
	apply(ctx context.Context, tx repositories.WorkbenchTx, env *commandEnv, event *entities.MappingEvent) error
	audit(before, after []byte) *entities.AuditLogEntry
}

// commandEnv carries what commands need while they run
type commandEnv struct {
	normalizer     *utils.CoverageNormalizer
	now            time.Time
	snoozeDuration time.Duration
	aliasVersion   int64
	written        bool
}

type baseCommand struct {
	ID   string `json:"event_id"`
	By   string `json:"actor"`
	Note string `json:"note,omitempty"`
}

func (c baseCommand) EventID() string { return c.ID }
func (c baseCommand) Actor() string   { return c.By }

func (c baseCommand) validateBase() error {
	if c.ID == "" {
		return apperrors.NewValidationError("event id is required")
	}
	if strings.TrimSpace(c.By) == "" {
		return apperrors.NewValidationError("actor is required")
	}
	return nil
}

func (c baseCommand) entry(action string, before, after []byte, refs []string) *entities.AuditLogEntry {
	return &entities.AuditLogEntry{
		EventID:      c.ID,
		Actor:        c.By,
		Action:       action,
		Before:       before,
		After:        after,
		EvidenceRefs: refs,
		Note:         c.Note,
	}
}

// ApproveCommand resolves an event to a canonical code by writing an insurer
// alias or name map
type ApproveCommand struct {
	baseCommand
	CanonicalCode  string                  `json:"canonical_code"`
	ResolutionType entities.ResolutionType `json:"resolution_type"`
	EvidenceRefs   []string                `json:"evidence_refs,omitempty"`
}

// NewApproveCommand builds an approval. An empty resolution type means ALIAS.
func NewApproveCommand(eventID, code string, resolution entities.ResolutionType, note, actor string, evidenceRefs []string) *ApproveCommand {
	if resolution == "" {
		resolution = entities.ResolutionAlias
	}
	return &ApproveCommand{
		baseCommand:    baseCommand{ID: eventID, By: actor, Note: note},
		CanonicalCode:  code,
		ResolutionType: resolution,
		EvidenceRefs:   evidenceRefs,
	}
}

func (c *ApproveCommand) Action() string              { return entities.AuditActionApprove }
func (c *ApproveCommand) Target() entities.EventState { return entities.EventStateApproved }

func (c *ApproveCommand) Validate() error {
	if err := c.validateBase(); err != nil {
		return err
	}
	if c.CanonicalCode == "" {
		return apperrors.NewValidationError("canonical_code is required")
	}
	if !c.ResolutionType.Valid() {
		return apperrors.NewValidationError(fmt.Sprintf("unknown resolution type %q", c.ResolutionType))
	}
	return nil
}

func (c *ApproveCommand) apply(ctx context.Context, tx repositories.WorkbenchTx, env *commandEnv, event *entities.MappingEvent) error {
	ok, err := tx.CoverageExists(ctx, c.CanonicalCode)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NewValidationError(fmt.Sprintf("canonical code %s is not in the registry", c.CanonicalCode)).
			WithDetail("requested_code", c.CanonicalCode)
	}

	key := env.normalizer.Key(event.RawCoverageTitle)
	title := recall.NameMapKey(event.RawCoverageTitle)
	if key == "" && c.ResolutionType == entities.ResolutionAlias {
		return apperrors.NewValidationError("raw coverage title normalizes to an empty key")
	}

	// Aliases and name maps for the same title must agree, whichever kind
	// the approval writes.
	var alias *entities.AliasRecord
	if key != "" {
		if alias, err = tx.FindAlias(ctx, event.Insurer, key); err != nil {
			return err
		}
	}
	nameMap, err := tx.FindNameMap(ctx, event.Insurer, title)
	if err != nil {
		return err
	}
	if alias != nil && alias.CanonicalCode != c.CanonicalCode {
		return apperrors.NewCodeConflictError(
			fmt.Sprintf("alias %s for %s already resolves to %s", key, event.Insurer, alias.CanonicalCode),
			c.CanonicalCode, alias.CanonicalCode)
	}
	if nameMap != nil && nameMap.CanonicalCode != c.CanonicalCode {
		return apperrors.NewCodeConflictError(
			fmt.Sprintf("name map %q for %s already resolves to %s", title, event.Insurer, nameMap.CanonicalCode),
			c.CanonicalCode, nameMap.CanonicalCode)
	}

	switch c.ResolutionType {
	case entities.ResolutionNameMap:
		if nameMap == nil {
			err = c.writeNameMap(ctx, tx, env, event, title)
		}
	default:
		if alias == nil {
			err = c.writeAlias(ctx, tx, env, event, key)
		}
	}
	if err != nil {
		return err
	}

	if env.written {
		if env.aliasVersion, err = tx.BumpAliasVersion(ctx); err != nil {
			return err
		}
	}

	code := c.CanonicalCode
	event.ResolvedCode = &code
	event.ResolutionType = c.ResolutionType
	return nil
}

func (c *ApproveCommand) writeAlias(ctx context.Context, tx repositories.WorkbenchTx, env *commandEnv, event *entities.MappingEvent, key string) error {
	if err := tx.InsertAlias(ctx, &entities.AliasRecord{
		Insurer:       event.Insurer,
		AliasText:     event.RawCoverageTitle,
		NormalizedKey: key,
		CanonicalCode: c.CanonicalCode,
		Source:        "workbench",
		CreatedBy:     c.By,
		CreatedAt:     env.now,
	}); err != nil {
		return err
	}
	env.written = true
	return nil
}

func (c *ApproveCommand) writeNameMap(ctx context.Context, tx repositories.WorkbenchTx, env *commandEnv, event *entities.MappingEvent, title string) error {
	if err := tx.InsertNameMap(ctx, &entities.NameMapRecord{
		Insurer:       event.Insurer,
		RawTitle:      title,
		CanonicalCode: c.CanonicalCode,
		CreatedBy:     c.By,
		CreatedAt:     env.now,
	}); err != nil {
		return err
	}
	env.written = true
	return nil
}

func (c *ApproveCommand) audit(before, after []byte) *entities.AuditLogEntry {
	return c.entry(c.Action(), before, after, c.EvidenceRefs)
}

// RejectCommand closes an event without a resolution
type RejectCommand struct {
	baseCommand
}

// NewRejectCommand builds a rejection
func NewRejectCommand(eventID, note, actor string) *RejectCommand {
	return &RejectCommand{baseCommand{ID: eventID, By: actor, Note: note}}
}

func (c *RejectCommand) Action() string              { return entities.AuditActionReject }
func (c *RejectCommand) Target() entities.EventState { return entities.EventStateRejected }
func (c *RejectCommand) Validate() error             { return c.validateBase() }

func (c *RejectCommand) apply(ctx context.Context, tx repositories.WorkbenchTx, env *commandEnv, event *entities.MappingEvent) error {
	return nil
}

func (c *RejectCommand) audit(before, after []byte) *entities.AuditLogEntry {
	return c.entry(c.Action(), before, after, nil)
}

// SnoozeCommand parks an event. Until it expires, the same key does not open
// a new event.
type SnoozeCommand struct {
	baseCommand
	Until *time.Time `json:"until,omitempty"`
}

// NewSnoozeCommand builds a snooze. A nil until uses the configured window.
func NewSnoozeCommand(eventID, note, actor string, until *time.Time) *SnoozeCommand {
	return &SnoozeCommand{baseCommand: baseCommand{ID: eventID, By: actor, Note: note}, Until: until}
}

func (c *SnoozeCommand) Action() string              { return entities.AuditActionSnooze }
func (c *SnoozeCommand) Target() entities.EventState { return entities.EventStateSnoozed }
func (c *SnoozeCommand) Validate() error             { return c.validateBase() }

func (c *SnoozeCommand) apply(ctx context.Context, tx repositories.WorkbenchTx, env *commandEnv, event *entities.MappingEvent) error {
	until := env.now.Add(env.snoozeDuration)
	if c.Until != nil {
		if !c.Until.After(env.now) {
			return apperrors.NewValidationError("snooze end must be in the future")
		}
		until = c.Until.UTC()
	}
	event.SnoozedUntil = &until
	return nil
}

func (c *SnoozeCommand) audit(before, after []byte) *entities.AuditLogEntry {
	return c.entry(c.Action(), before, after, nil)
}

type eventState struct {
	State          entities.EventState     `json:"state"`
	ResolvedCode   *string                 `json:"resolved_code,omitempty"`
	ResolutionType entities.ResolutionType `json:"resolution_type,omitempty"`
	SnoozedUntil   *time.Time              `json:"snoozed_until,omitempty"`
	ResolvedBy     string                  `json:"resolved_by,omitempty"`
}

func snapshotEvent(e *entities.MappingEvent) ([]byte, error) {
	return json.Marshal(eventState{
		State:          e.State,
		ResolvedCode:   e.ResolvedCode,
		ResolutionType: e.ResolutionType,
		SnoozedUntil:   e.SnoozedUntil,
		ResolvedBy:     e.ResolvedBy,
	})
}
