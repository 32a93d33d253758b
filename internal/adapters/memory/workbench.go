package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/zatekoja/coveragecompare/internal/domain/entities"
	"github.com/zatekoja/coveragecompare/internal/domain/repositories"
	apperrors "github.com/zatekoja/coveragecompare/pkg/errors"
)

type workbenchRepo struct{ s *Store }

var _ repositories.WorkbenchRepository = (*workbenchRepo)(nil)

func copyEvent(e *entities.MappingEvent) *entities.MappingEvent {
	cp := *e
	cp.Candidates = append([]string(nil), e.Candidates...)
	return &cp
}

func (r *workbenchRepo) OpenEvent(ctx context.Context, event *entities.MappingEvent, now time.Time) (bool, error) {
	if err := ctxErr(ctx); err != nil {
		return false, err
	}
	created := false
	err := r.s.write(func(st *state) error {
		k := eventKey{event.Insurer, event.RawCoverageTitle, event.DetectedStatus}
		for _, existing := range st.events {
			if (eventKey{existing.Insurer, existing.RawCoverageTitle, existing.DetectedStatus}) != k {
				continue
			}
			if existing.SuppressesReopen(now) {
				return nil
			}
		}
		cp := copyEvent(event)
		if cp.ID == "" {
			cp.ID = uuid.NewString()
		}
		cp.State = entities.EventStateOpen
		cp.CreatedAt = now
		cp.UpdatedAt = now
		st.events[cp.ID] = cp
		event.ID = cp.ID
		event.State = cp.State
		event.CreatedAt = now
		event.UpdatedAt = now
		created = true
		return nil
	})
	return created, err
}

func (r *workbenchRepo) GetEvent(ctx context.Context, id string) (*entities.MappingEvent, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	var out *entities.MappingEvent
	r.s.read(func(st *state) {
		if e, ok := st.events[id]; ok {
			out = copyEvent(e)
		}
	})
	if out == nil {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("mapping event %s not found", id))
	}
	return out, nil
}

func (r *workbenchRepo) ListEvents(ctx context.Context, filter entities.EventFilter) ([]*entities.MappingEvent, int, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, 0, err
	}
	var matched []*entities.MappingEvent
	r.s.read(func(st *state) {
		for _, e := range st.events {
			if filter.State != "" && e.State != filter.State {
				continue
			}
			if filter.Insurer != "" && e.Insurer != filter.Insurer {
				continue
			}
			matched = append(matched, copyEvent(e))
		}
	})
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})
	return page(matched, filter.Offset, filter.Limit), len(matched), nil
}

func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func (r *workbenchRepo) AddSuggestion(ctx context.Context, suggestion *entities.EventSuggestion) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	return r.s.write(func(st *state) error {
		if _, ok := st.events[suggestion.EventID]; !ok {
			return apperrors.NewNotFoundError(fmt.Sprintf("mapping event %s not found", suggestion.EventID))
		}
		if _, ok := st.coverages[suggestion.CanonicalCode]; !ok {
			return apperrors.NewValidationError(fmt.Sprintf("canonical code %s is not in the registry", suggestion.CanonicalCode))
		}
		cp := *suggestion
		if cp.ID == "" {
			cp.ID = uuid.NewString()
		}
		if cp.CreatedAt.IsZero() {
			cp.CreatedAt = r.s.nowFn()
		}
		list := append([]*entities.EventSuggestion(nil), st.suggestions[cp.EventID]...)
		st.suggestions[cp.EventID] = append(list, &cp)
		suggestion.ID = cp.ID
		return nil
	})
}

func (r *workbenchRepo) ListSuggestions(ctx context.Context, eventID string) ([]*entities.EventSuggestion, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	out := []*entities.EventSuggestion{}
	r.s.read(func(st *state) {
		for _, s := range st.suggestions[eventID] {
			cp := *s
			out = append(out, &cp)
		}
	})
	return out, nil
}

func (r *workbenchRepo) ListAudit(ctx context.Context, filter entities.AuditFilter) ([]*entities.AuditLogEntry, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	var matched []*entities.AuditLogEntry
	r.s.read(func(st *state) {
		for i := len(st.audit) - 1; i >= 0; i-- {
			e := st.audit[i]
			if filter.EventID != "" && e.EventID != filter.EventID {
				continue
			}
			if filter.Actor != "" && e.Actor != filter.Actor {
				continue
			}
			cp := *e
			matched = append(matched, &cp)
		}
	})
	return page(matched, filter.Offset, filter.Limit), nil
}

// WithinTx holds the write lock for the whole transaction and runs fn against
// a cloned state that replaces the live one only when fn succeeds.
func (r *workbenchRepo) WithinTx(ctx context.Context, fn func(tx repositories.WorkbenchTx) error) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	tx := &workbenchTx{state: r.s.state.clone(), now: r.s.nowFn()}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctxErr(ctx); err != nil {
		return err
	}
	r.s.state = tx.state
	return nil
}

type workbenchTx struct {
	state state
	now   time.Time
}

var _ repositories.WorkbenchTx = (*workbenchTx)(nil)

func (tx *workbenchTx) LockEvent(ctx context.Context, id string) (*entities.MappingEvent, error) {
	e, ok := tx.state.events[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("mapping event %s not found", id))
	}
	return copyEvent(e), nil
}

func (tx *workbenchTx) CoverageExists(ctx context.Context, code string) (bool, error) {
	_, ok := tx.state.coverages[code]
	return ok, nil
}

func (tx *workbenchTx) FindAlias(ctx context.Context, insurer, normalizedKey string) (*entities.AliasRecord, error) {
	a, ok := tx.state.aliases[aliasKey{insurer, normalizedKey}]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (tx *workbenchTx) FindNameMap(ctx context.Context, insurer, rawTitle string) (*entities.NameMapRecord, error) {
	m, ok := tx.state.nameMaps[aliasKey{insurer, rawTitle}]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (tx *workbenchTx) InsertAlias(ctx context.Context, alias *entities.AliasRecord) error {
	k := aliasKey{alias.Insurer, alias.NormalizedKey}
	if _, ok := tx.state.aliases[k]; ok {
		return apperrors.NewConflictError(fmt.Sprintf("alias %s already exists for %s", alias.NormalizedKey, alias.Insurer))
	}
	if _, ok := tx.state.coverages[alias.CanonicalCode]; !ok {
		return apperrors.NewValidationError(fmt.Sprintf("canonical code %s is not in the registry", alias.CanonicalCode))
	}
	cp := *alias
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = tx.now
	}
	tx.state.aliases[k] = &cp
	alias.ID = cp.ID
	return nil
}

func (tx *workbenchTx) InsertNameMap(ctx context.Context, nameMap *entities.NameMapRecord) error {
	k := aliasKey{nameMap.Insurer, nameMap.RawTitle}
	if _, ok := tx.state.nameMaps[k]; ok {
		return apperrors.NewConflictError(fmt.Sprintf("name map %q already exists for %s", nameMap.RawTitle, nameMap.Insurer))
	}
	if _, ok := tx.state.coverages[nameMap.CanonicalCode]; !ok {
		return apperrors.NewValidationError(fmt.Sprintf("canonical code %s is not in the registry", nameMap.CanonicalCode))
	}
	cp := *nameMap
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = tx.now
	}
	tx.state.nameMaps[k] = &cp
	nameMap.ID = cp.ID
	return nil
}

func (tx *workbenchTx) BumpAliasVersion(ctx context.Context) (int64, error) {
	tx.state.aliasVersion++
	return tx.state.aliasVersion, nil
}

func (tx *workbenchTx) UpdateEvent(ctx context.Context, event *entities.MappingEvent) error {
	if _, ok := tx.state.events[event.ID]; !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("mapping event %s not found", event.ID))
	}
	cp := copyEvent(event)
	cp.UpdatedAt = tx.now
	tx.state.events[event.ID] = cp
	event.UpdatedAt = tx.now
	return nil
}

func (tx *workbenchTx) AppendAudit(ctx context.Context, entry *entities.AuditLogEntry) error {
	cp := *entry
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = tx.now
	}
	cp.EvidenceRefs = append([]string(nil), entry.EvidenceRefs...)
	tx.state.audit = append(tx.state.audit, &cp)
	entry.ID = cp.ID
	entry.CreatedAt = cp.CreatedAt
	return nil
}
