package database

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/zatekoja/coveragecompare/internal/domain/entities"
	"github.com/zatekoja/coveragecompare/internal/domain/repositories"
	"github.com/zatekoja/coveragecompare/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/coveragecompare/pkg/errors"
)

var (
	eventColumns = []interface{}{
		"id", "insurer", "raw_coverage_title", "normalized_key", "detected_status", "universe_row_id", "proposal_id",
		"candidates", "state", "resolved_code", "resolution_type", "note", "resolved_by", "snoozed_until",
		"created_at", "updated_at",
	}
	suggestionColumns = []interface{}{"id", "event_id", "canonical_code", "entity_type", "confidence", "span", "created_at"}
	auditColumns      = []interface{}{"id", "event_id", "actor", "action", "before_state", "after_state", "evidence_refs", "note", "created_at"}
)

type eventRow struct {
	entities.MappingEvent
	CandidateCodes pq.StringArray `db:"candidates"`
}

func (r *eventRow) event() *entities.MappingEvent {
	e := r.MappingEvent
	e.Candidates = []string(r.CandidateCodes)
	return &e
}

type auditRow struct {
	entities.AuditLogEntry
	Refs pq.StringArray `db:"evidence_refs"`
}

// WorkbenchAdapter implements WorkbenchRepository
type WorkbenchAdapter struct {
	base
}

var _ repositories.WorkbenchRepository = (*WorkbenchAdapter)(nil)

// NewWorkbenchAdapter creates a new workbench adapter
func NewWorkbenchAdapter(client *postgres.Client) *WorkbenchAdapter {
	return &WorkbenchAdapter{base: newBase(client)}
}

// OpenEvent creates an OPEN event unless one is open for the same key or a
// snoozed one is still inside its window
func (a *WorkbenchAdapter) OpenEvent(ctx context.Context, event *entities.MappingEvent, now time.Time) (bool, error) {
	key := goqu.Ex{
		"insurer":            event.Insurer,
		"raw_coverage_title": event.RawCoverageTitle,
		"detected_status":    string(event.DetectedStatus),
	}
	suppressing := dialect.From("mapping_events").Where(key, goqu.Or(
		goqu.C("state").Eq(string(entities.EventStateOpen)),
		goqu.And(
			goqu.C("state").Eq(string(entities.EventStateSnoozed)),
			goqu.C("snoozed_until").Gt(now),
		),
	)).Prepared(true)

	id := event.ID
	if id == "" {
		id = uuid.NewString()
	}
	candidates := event.Candidates
	if candidates == nil {
		candidates = []string{}
	}
	insert := dialect.Insert("mapping_events").Rows(goqu.Record{
		"id":                 id,
		"insurer":            event.Insurer,
		"raw_coverage_title": event.RawCoverageTitle,
		"normalized_key":     event.NormalizedKey,
		"detected_status":    string(event.DetectedStatus),
		"universe_row_id":    event.UniverseRowID,
		"proposal_id":        event.ProposalID,
		"candidates":         pq.StringArray(candidates),
		"state":              string(entities.EventStateOpen),
		"created_at":         now,
		"updated_at":         now,
	}).OnConflict(goqu.DoNothing()).Prepared(true)

	created := false
	err := a.withTx(ctx, nil, func(tx *sqlx.Tx) error {
		found, err := a.exists(ctx, tx, suppressing, "suppressing event")
		if err != nil || found {
			return err
		}
		n, err := a.exec(ctx, tx, insert, "open mapping event")
		created = n == 1
		return err
	})
	if err != nil || !created {
		return false, err
	}
	event.ID = id
	event.State = entities.EventStateOpen
	event.CreatedAt = now
	event.UpdatedAt = now
	return true, nil
}

func eventByID(id string) *goqu.SelectDataset {
	return dialect.From("mapping_events").Select(eventColumns...).Where(goqu.Ex{"id": id}).Prepared(true)
}

func getEvent(ctx context.Context, b *base, q sqlx.QueryerContext, ds *goqu.SelectDataset, id string) (*entities.MappingEvent, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("mapping event %s not found", id))
	}
	row := &eventRow{}
	if err := b.get(ctx, q, row, ds, "mapping event "+id); err != nil {
		return nil, err
	}
	return row.event(), nil
}

// GetEvent retrieves an event by ID
func (a *WorkbenchAdapter) GetEvent(ctx context.Context, id string) (*entities.MappingEvent, error) {
	return getEvent(ctx, &a.base, a.client.X(), eventByID(id), id)
}

// ListEvents retrieves events newest first with the total count
func (a *WorkbenchAdapter) ListEvents(ctx context.Context, filter entities.EventFilter) ([]*entities.MappingEvent, int, error) {
	where := goqu.Ex{}
	if filter.State != "" {
		where["state"] = string(filter.State)
	}
	if filter.Insurer != "" {
		where["insurer"] = filter.Insurer
	}
	filtered := dialect.From("mapping_events").Where(where)

	var total int
	if err := a.get(ctx, a.client.X(), &total, filtered.Select(goqu.COUNT("*")).Prepared(true), "event count"); err != nil {
		return nil, 0, err
	}

	ds := filtered.Select(eventColumns...).
		Order(goqu.C("created_at").Desc(), goqu.C("id").Asc()).
		Limit(uint(filter.Limit)).
		Offset(uint(filter.Offset)).
		Prepared(true)
	var rows []*eventRow
	if err := a.selectAll(ctx, a.client.X(), &rows, ds, "mapping events"); err != nil {
		return nil, 0, err
	}
	events := make([]*entities.MappingEvent, 0, len(rows))
	for _, r := range rows {
		events = append(events, r.event())
	}
	return events, total, nil
}

// AddSuggestion attaches a validated suggestion to an event
func (a *WorkbenchAdapter) AddSuggestion(ctx context.Context, s *entities.EventSuggestion) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	rec := goqu.Record{
		"id":             s.ID,
		"event_id":       s.EventID,
		"canonical_code": s.CanonicalCode,
		"entity_type":    s.EntityType,
		"confidence":     s.Confidence,
		"span":           s.Span,
	}
	if !s.CreatedAt.IsZero() {
		rec["created_at"] = s.CreatedAt
	}
	_, err := a.exec(ctx, a.client.X(), dialect.Insert("event_suggestions").Rows(rec).Prepared(true), "add suggestion")
	return err
}

// ListSuggestions retrieves the suggestions of an event, oldest first
func (a *WorkbenchAdapter) ListSuggestions(ctx context.Context, eventID string) ([]*entities.EventSuggestion, error) {
	out := []*entities.EventSuggestion{}
	if _, err := uuid.Parse(eventID); err != nil {
		return out, nil
	}
	ds := dialect.From("event_suggestions").Select(suggestionColumns...).
		Where(goqu.Ex{"event_id": eventID}).
		Order(goqu.C("created_at").Asc(), goqu.C("id").Asc()).
		Prepared(true)
	if err := a.selectAll(ctx, a.client.X(), &out, ds, "suggestions"); err != nil {
		return nil, err
	}
	return out, nil
}

// ListAudit retrieves audit entries newest first
func (a *WorkbenchAdapter) ListAudit(ctx context.Context, filter entities.AuditFilter) ([]*entities.AuditLogEntry, error) {
	where := goqu.Ex{}
	if filter.EventID != "" {
		if _, err := uuid.Parse(filter.EventID); err != nil {
			return []*entities.AuditLogEntry{}, nil
		}
		where["event_id"] = filter.EventID
	}
	if filter.Actor != "" {
		where["actor"] = filter.Actor
	}
	ds := dialect.From("audit_log").Select(auditColumns...).Where(where).
		Order(goqu.C("created_at").Desc(), goqu.C("id").Desc()).
		Limit(uint(filter.Limit)).
		Offset(uint(filter.Offset)).
		Prepared(true)

	var rows []*auditRow
	if err := a.selectAll(ctx, a.client.X(), &rows, ds, "audit log"); err != nil {
		return nil, err
	}
	entries := make([]*entities.AuditLogEntry, 0, len(rows))
	for _, r := range rows {
		e := r.AuditLogEntry
		e.EvidenceRefs = []string(r.Refs)
		entries = append(entries, &e)
	}
	return entries, nil
}

// WithinTx runs fn in one transaction
func (a *WorkbenchAdapter) WithinTx(ctx context.Context, fn func(tx repositories.WorkbenchTx) error) error {
	return a.withTx(ctx, nil, func(tx *sqlx.Tx) error {
		return fn(&workbenchTx{base: &a.base, tx: tx})
	})
}

// workbenchTx implements WorkbenchTx over one database transaction
type workbenchTx struct {
	base *base
	tx   *sqlx.Tx
}

var _ repositories.WorkbenchTx = (*workbenchTx)(nil)

// LockEvent reads the event with FOR UPDATE
func (t *workbenchTx) LockEvent(ctx context.Context, id string) (*entities.MappingEvent, error) {
	return getEvent(ctx, t.base, t.tx, eventByID(id).ForUpdate(exp.Wait), id)
}

func (t *workbenchTx) CoverageExists(ctx context.Context, code string) (bool, error) {
	ds := dialect.From("canonical_coverages").Where(goqu.Ex{"code": code}).Prepared(true)
	return t.base.exists(ctx, t.tx, ds, "canonical coverage "+code)
}

func (t *workbenchTx) FindAlias(ctx context.Context, insurer, normalizedKey string) (*entities.AliasRecord, error) {
	alias := &entities.AliasRecord{}
	ds := dialect.From("coverage_aliases").Select(aliasColumns...).
		Where(goqu.Ex{"insurer": insurer, "normalized_key": normalizedKey}).Prepared(true)
	err := t.base.get(ctx, t.tx, alias, ds, "alias")
	if apperrors.Is(err, apperrors.ErrorTypeNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return alias, nil
}

func (t *workbenchTx) FindNameMap(ctx context.Context, insurer, rawTitle string) (*entities.NameMapRecord, error) {
	nameMap := &entities.NameMapRecord{}
	ds := dialect.From("coverage_name_maps").Select(nameMapColumns...).
		Where(goqu.Ex{"insurer": insurer, "raw_title": rawTitle}).Prepared(true)
	err := t.base.get(ctx, t.tx, nameMap, ds, "name map")
	if apperrors.Is(err, apperrors.ErrorTypeNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return nameMap, nil
}

func (t *workbenchTx) InsertAlias(ctx context.Context, alias *entities.AliasRecord) error {
	if alias.ID == "" {
		alias.ID = uuid.NewString()
	}
	ds := dialect.Insert("coverage_aliases").Rows(aliasRecord(alias)).Prepared(true)
	_, err := t.base.exec(ctx, t.tx, ds, "insert alias")
	return err
}

func (t *workbenchTx) InsertNameMap(ctx context.Context, nameMap *entities.NameMapRecord) error {
	if nameMap.ID == "" {
		nameMap.ID = uuid.NewString()
	}
	rec := goqu.Record{
		"id":             nameMap.ID,
		"insurer":        nameMap.Insurer,
		"raw_title":      nameMap.RawTitle,
		"canonical_code": nameMap.CanonicalCode,
		"created_by":     nameMap.CreatedBy,
	}
	if !nameMap.CreatedAt.IsZero() {
		rec["created_at"] = nameMap.CreatedAt
	}
	_, err := t.base.exec(ctx, t.tx, dialect.Insert("coverage_name_maps").Rows(rec).Prepared(true), "insert name map")
	return err
}

func (t *workbenchTx) BumpAliasVersion(ctx context.Context) (int64, error) {
	return bumpAliasVersion(ctx, t.base, t.tx)
}

func (t *workbenchTx) UpdateEvent(ctx context.Context, event *entities.MappingEvent) error {
	ds := dialect.Update("mapping_events").Set(goqu.Record{
		"state":           string(event.State),
		"resolved_code":   event.ResolvedCode,
		"resolution_type": string(event.ResolutionType),
		"note":            event.Note,
		"resolved_by":     event.ResolvedBy,
		"snoozed_until":   event.SnoozedUntil,
		"updated_at":      event.UpdatedAt,
	}).Where(goqu.Ex{"id": event.ID}).Prepared(true)
	n, err := t.base.exec(ctx, t.tx, ds, "update mapping event")
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("mapping event %s not found", event.ID))
	}
	return nil
}

func (t *workbenchTx) AppendAudit(ctx context.Context, entry *entities.AuditLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	refs := entry.EvidenceRefs
	if refs == nil {
		refs = []string{}
	}
	rec := goqu.Record{
		"id":            entry.ID,
		"event_id":      entry.EventID,
		"actor":         entry.Actor,
		"action":        entry.Action,
		"before_state":  string(jsonOrNull(entry.Before)),
		"after_state":   string(jsonOrNull(entry.After)),
		"evidence_refs": pq.StringArray(refs),
		"note":          entry.Note,
	}
	if !entry.CreatedAt.IsZero() {
		rec["created_at"] = entry.CreatedAt
	}
	_, err := t.base.exec(ctx, t.tx, dialect.Insert("audit_log").Rows(rec).Prepared(true), "append audit entry")
	return err
}

func jsonOrNull(raw []byte) []byte {
	if len(raw) == 0 {
		return []byte("null")
	}
	return raw
}
