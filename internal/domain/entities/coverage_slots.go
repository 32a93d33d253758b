package entities

import (
	"fmt"
	"time"
)

// SourceConfidence tags where a slot value came from
type SourceConfidence string

const (
	ConfidenceProposalConfirmed SourceConfidence = "proposal_confirmed"
	ConfidencePolicyRequired    SourceConfidence = "policy_required"
	ConfidenceUnknown           SourceConfidence = "unknown"
)

// SlotEvidence points at the text a slot value was read from
type SlotEvidence struct {
	DocumentID string `json:"document_id"`
	Page       int    `json:"page"`
	Span       string `json:"span"`
}

// AmountSlot holds an integer valued attribute
type AmountSlot struct {
	Value      *int64           `json:"value,omitempty"`
	Confidence SourceConfidence `json:"source_confidence"`
	Evidence   *SlotEvidence    `json:"evidence,omitempty"`
}

// TextSlot holds a string valued attribute
type TextSlot struct {
	Value      *string          `json:"value,omitempty"`
	Confidence SourceConfidence `json:"source_confidence"`
	Evidence   *SlotEvidence    `json:"evidence,omitempty"`
}

// UnknownAmount is an absent amount slot
func UnknownAmount(required bool) AmountSlot {
	if required {
		return AmountSlot{Confidence: ConfidencePolicyRequired}
	}
	return AmountSlot{Confidence: ConfidenceUnknown}
}

// UnknownText is an absent text slot
func UnknownText(required bool) TextSlot {
	if required {
		return TextSlot{Confidence: ConfidencePolicyRequired}
	}
	return TextSlot{Confidence: ConfidenceUnknown}
}

// ConfirmedAmount is an amount read from the proposal
func ConfirmedAmount(v int64, ev SlotEvidence) AmountSlot {
	return AmountSlot{Value: &v, Confidence: ConfidenceProposalConfirmed, Evidence: &ev}
}

// ConfirmedText is a text value read from the proposal
func ConfirmedText(v string, ev SlotEvidence) TextSlot {
	return TextSlot{Value: &v, Confidence: ConfidenceProposalConfirmed, Evidence: &ev}
}

// CoverageSlots are the extracted attributes of a MAPPED row
type CoverageSlots struct {
	UniverseRowID     string     `json:"universe_row_id"`
	CanonicalCode     string     `json:"canonical_code"`
	WaitingPeriodDays AmountSlot `json:"waiting_period_days"`
	PayoutLimit       AmountSlot `json:"payout_limit"`
	DiseaseScope      TextSlot   `json:"disease_scope"`
	EventType         TextSlot   `json:"event_type"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// NewCoverageSlots starts an all-unknown slot set for a MAPPED result
func NewCoverageSlots(result *MappingResult) (*CoverageSlots, error) {
	code, ok := result.Code()
	if !ok {
		return nil, fmt.Errorf("slots require a MAPPED result, got %s", result.Status())
	}
	return &CoverageSlots{
		UniverseRowID:     result.UniverseRowID(),
		CanonicalCode:     code.String(),
		WaitingPeriodDays: UnknownAmount(false),
		PayoutLimit:       UnknownAmount(false),
		DiseaseScope:      UnknownText(false),
		EventType:         UnknownText(false),
	}, nil
}
