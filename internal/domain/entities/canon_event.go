package entities

import (
	"time"

	"github.com/google/uuid"
)

// CanonEventType represents the type of canonicalization event
type CanonEventType string

const (
	CanonEventAliasChanged   CanonEventType = "alias.changed"
	CanonEventMappingChanged CanonEventType = "mapping.changed"
)

// CanonEvent notifies other instances about alias and mapping changes
type CanonEvent struct {
	ID            string         `json:"id"`
	EventType     CanonEventType `json:"event_type"`
	Insurer       string         `json:"insurer,omitempty"`
	Key           string         `json:"key,omitempty"`
	CanonicalCode string         `json:"canonical_code,omitempty"`
	AliasVersion  int64          `json:"alias_version,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}

// NewCanonEvent creates a new canonicalization event
func NewCanonEvent(eventType CanonEventType, insurer, key, code string, aliasVersion int64) *CanonEvent {
	return &CanonEvent{
		ID:            uuid.NewString(),
		EventType:     eventType,
		Insurer:       insurer,
		Key:           key,
		CanonicalCode: code,
		AliasVersion:  aliasVersion,
		Timestamp:     time.Now().UTC(),
	}
}
