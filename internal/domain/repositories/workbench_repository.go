package repositories

import (
	"context"
	"time"

	"github.com/zatekoja/coveragecompare/internal/domain/entities"
)

// WorkbenchRepository defines data operations for the resolution workbench
type WorkbenchRepository interface {
	// OpenEvent creates an OPEN event unless an OPEN event for the same
	// (insurer, raw title, detected status) exists or a SNOOZED one is still
	// inside its window at now. created is false when suppressed.
	OpenEvent(ctx context.Context, event *entities.MappingEvent, now time.Time) (created bool, err error)

	// GetEvent retrieves an event by ID
	GetEvent(ctx context.Context, id string) (*entities.MappingEvent, error)

	// ListEvents retrieves events matching filter, newest first, and the total count
	ListEvents(ctx context.Context, filter entities.EventFilter) ([]*entities.MappingEvent, int, error)

	// AddSuggestion attaches a validated suggestion to an event
	AddSuggestion(ctx context.Context, suggestion *entities.EventSuggestion) error

	// ListSuggestions retrieves the suggestions of an event
	ListSuggestions(ctx context.Context, eventID string) ([]*entities.EventSuggestion, error)

	// ListAudit retrieves audit entries, newest first
	ListAudit(ctx context.Context, filter entities.AuditFilter) ([]*entities.AuditLogEntry, error)

	// WithinTx runs fn in a single transaction. The transaction commits when fn
	// returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(tx WorkbenchTx) error) error
}

// WorkbenchTx is the set of operations available inside a workbench transaction
type WorkbenchTx interface {
	// LockEvent retrieves an event and holds it until the transaction ends
	LockEvent(ctx context.Context, id string) (*entities.MappingEvent, error)

	// CoverageExists checks the registry inside the transaction
	CoverageExists(ctx context.Context, code string) (bool, error)

	// FindAlias retrieves the alias for (insurer, normalized key); nil when absent
	FindAlias(ctx context.Context, insurer, normalizedKey string) (*entities.AliasRecord, error)

	// FindNameMap retrieves the name map for (insurer, raw title); nil when absent
	FindNameMap(ctx context.Context, insurer, rawTitle string) (*entities.NameMapRecord, error)

	// InsertAlias stores an alias; a duplicate key is a ConflictError
	InsertAlias(ctx context.Context, alias *entities.AliasRecord) error

	// InsertNameMap stores a name map; a duplicate key is a ConflictError
	InsertNameMap(ctx context.Context, nameMap *entities.NameMapRecord) error

	// BumpAliasVersion increments and returns the alias table version
	BumpAliasVersion(ctx context.Context) (int64, error)

	// UpdateEvent persists the event's new state
	UpdateEvent(ctx context.Context, event *entities.MappingEvent) error

	// AppendAudit appends an audit entry
	AppendAudit(ctx context.Context, entry *entities.AuditLogEntry) error
}
