package entities

import (
	"encoding/json"
	"time"
)

// Audit actions
const (
	AuditActionApprove = "APPROVE"
	AuditActionReject  = "REJECT"
	AuditActionSnooze  = "SNOOZE"
)

// AuditLogEntry is an append-only record of a workbench transition
type AuditLogEntry struct {
	ID           string          `json:"id" db:"id"`
	EventID      string          `json:"event_id" db:"event_id"`
	Actor        string          `json:"actor" db:"actor"`
	Action       string          `json:"action" db:"action"`
	Before       json.RawMessage `json:"before" db:"before_state"`
	After        json.RawMessage `json:"after" db:"after_state"`
	EvidenceRefs []string        `json:"evidence_refs,omitempty" db:"-"`
	Note         string          `json:"note,omitempty" db:"note"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// AuditFilter narrows audit listing
type AuditFilter struct {
	EventID string
	Actor   string
	Limit   int
	Offset  int
}
