package entities

import (
	"time"
)

// EventState is the workbench state of a MappingEvent
type EventState string

const (
	EventStateOpen     EventState = "OPEN"
	EventStateApproved EventState = "APPROVED"
	EventStateRejected EventState = "REJECTED"
	EventStateSnoozed  EventState = "SNOOZED"
)

// ResolutionType selects which record an approval writes
type ResolutionType string

const (
	// ResolutionAlias writes an insurer alias keyed by the normalized title
	ResolutionAlias ResolutionType = "ALIAS"
	// ResolutionNameMap writes an insurer name map keyed by the exact raw title
	ResolutionNameMap ResolutionType = "NAME_MAP"
)

// Valid reports whether the resolution type is known
func (t ResolutionType) Valid() bool {
	return t == ResolutionAlias || t == ResolutionNameMap
}

// MappingEvent is a workbench case for a row the resolver could not map
type MappingEvent struct {
	ID               string         `json:"id" db:"id"`
	Insurer          string         `json:"insurer" db:"insurer"`
	RawCoverageTitle string         `json:"raw_coverage_title" db:"raw_coverage_title"`
	NormalizedKey    string         `json:"normalized_key" db:"normalized_key"`
	DetectedStatus   MappingStatus  `json:"detected_status" db:"detected_status"`
	UniverseRowID    string         `json:"universe_row_id,omitempty" db:"universe_row_id"`
	ProposalID       string         `json:"proposal_id,omitempty" db:"proposal_id"`
	Candidates       []string       `json:"candidates,omitempty" db:"-"`
	State            EventState     `json:"state" db:"state"`
	ResolvedCode     *string        `json:"resolved_code,omitempty" db:"resolved_code"`
	ResolutionType   ResolutionType `json:"resolution_type,omitempty" db:"resolution_type"`
	Note             string         `json:"note,omitempty" db:"note"`
	ResolvedBy       string         `json:"resolved_by,omitempty" db:"resolved_by"`
	SnoozedUntil     *time.Time     `json:"snoozed_until,omitempty" db:"snoozed_until"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at" db:"updated_at"`
}

// CanTransition reports whether the event may move to the target state
func (e *MappingEvent) CanTransition(to EventState) bool {
	if e.State != EventStateOpen {
		return false
	}
	switch to {
	case EventStateApproved, EventStateRejected, EventStateSnoozed:
		return true
	default:
		return false
	}
}

// SuppressesReopen reports whether the event blocks a new OPEN event for the
// same key at the given time
func (e *MappingEvent) SuppressesReopen(now time.Time) bool {
	switch e.State {
	case EventStateOpen:
		return true
	case EventStateSnoozed:
		return e.SnoozedUntil != nil && e.SnoozedUntil.After(now)
	default:
		return false
	}
}

// EventFilter narrows ListEvents
type EventFilter struct {
	State   EventState
	Insurer string
	Limit   int
	Offset  int
}

// AliasRecord maps a normalized key to a canonical code. An empty insurer
// marks a global alias.
type AliasRecord struct {
	ID            string    `json:"id" db:"id"`
	Insurer       string    `json:"insurer,omitempty" db:"insurer"`
	AliasText     string    `json:"alias_text" db:"alias_text"`
	NormalizedKey string    `json:"normalized_key" db:"normalized_key"`
	CanonicalCode string    `json:"canonical_code" db:"canonical_code"`
	Source        string    `json:"source" db:"source"`
	CreatedBy     string    `json:"created_by" db:"created_by"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// NameMapRecord maps an exact insurer title to a canonical code
type NameMapRecord struct {
	ID            string    `json:"id" db:"id"`
	Insurer       string    `json:"insurer" db:"insurer"`
	RawTitle      string    `json:"raw_title" db:"raw_title"`
	CanonicalCode string    `json:"canonical_code" db:"canonical_code"`
	CreatedBy     string    `json:"created_by" db:"created_by"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// AliasTable is a point-in-time view of all alias data
type AliasTable struct {
	Version  int64            `json:"version"`
	Aliases  []*AliasRecord   `json:"aliases"`
	NameMaps []*NameMapRecord `json:"name_maps"`
}

// EventSuggestion is a validated machine suggestion attached to an event
type EventSuggestion struct {
	ID            string    `json:"id" db:"id"`
	EventID       string    `json:"event_id" db:"event_id"`
	CanonicalCode string    `json:"canonical_code" db:"canonical_code"`
	EntityType    string    `json:"entity_type" db:"entity_type"`
	Confidence    float64   `json:"confidence" db:"confidence"`
	Span          string    `json:"span" db:"span"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
