package entities

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strconv"
	"time"
)

// UniverseRowCandidate is a coverage row as delivered by document ingestion
type UniverseRowCandidate struct {
	Insurer         string `json:"insurer"`
	ProposalID      string `json:"proposal_id"`
	DocumentID      string `json:"document_id"`
	Page            int    `json:"page"`
	RawCoverageName string `json:"raw_coverage_name"`
	SpanText        string `json:"span_text"`
	Amount          *int64 `json:"amount,omitempty"`
}

// EvidenceText returns the span text, falling back to the raw coverage name
func (c UniverseRowCandidate) EvidenceText() string {
	if c.SpanText != "" {
		return c.SpanText
	}
	return c.RawCoverageName
}

// UniverseRow is a coverage row that appears in an insurer proposal document
type UniverseRow struct {
	ID              string    `json:"id" db:"id"`
	Insurer         string    `json:"insurer" db:"insurer"`
	ProposalID      string    `json:"proposal_id" db:"proposal_id"`
	DocumentID      string    `json:"document_id" db:"document_id"`
	Page            int       `json:"page" db:"page"`
	RawCoverageName string    `json:"raw_coverage_name" db:"raw_coverage_name"`
	NormalizedName  string    `json:"normalized_name" db:"normalized_name"`
	SpanText        string    `json:"span_text" db:"span_text"`
	Amount          *int64    `json:"amount,omitempty" db:"amount"`
	ContentHash     string    `json:"content_hash" db:"content_hash"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// ValidPage reports whether a document page number can back evidence.
// Pages are numbered from 1.
func ValidPage(page int) bool {
	return page >= 1
}

// ContentHash identifies ingested content for idempotent re-ingestion. Each
// field is length prefixed so separators inside a field cannot collide.
func ContentHash(insurer, proposalID string, page int, spanText string) string {
	h := sha256.New()
	for _, field := range []string{insurer, proposalID, strconv.Itoa(page), spanText} {
		var size [8]byte
		binary.BigEndian.PutUint64(size[:], uint64(len(field)))
		h.Write(size[:])
		h.Write([]byte(field))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// IngestStatus is the outcome of a single ingestion
type IngestStatus string

const (
	IngestStatusInserted  IngestStatus = "inserted"
	IngestStatusDuplicate IngestStatus = "duplicate"
	IngestStatusRejected  IngestStatus = "rejected"
)

// IngestResult reports what happened to one candidate row
type IngestResult struct {
	Status IngestStatus `json:"status"`
	Row    *UniverseRow `json:"row,omitempty"`
	Reason string       `json:"reason,omitempty"`
}
