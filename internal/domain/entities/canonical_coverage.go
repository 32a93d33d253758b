package entities

import (
	"encoding/json"
	"time"
)

// CanonicalCode is a canonical coverage code that is known to the registry.
// The zero value is not a valid code. A non-zero value can only be obtained
// from a CanonicalCoverage, so untrusted strings never become codes without a
// registry lookup.
type CanonicalCode struct {
	value string
}

// String returns the code text
func (c CanonicalCode) String() string {
	return c.value
}

// IsZero reports whether the code is unset
func (c CanonicalCode) IsZero() bool {
	return c.value == ""
}

// MarshalJSON encodes the code as a plain string
func (c CanonicalCode) MarshalJSON() ([]byte, error) {
	if c.value == "" {
		return []byte("null"), nil
	}
	return json.Marshal(c.value)
}

// CoverageDefinition is the stored and imported form of a registry entry.
// It is untrusted until the registry publishes it.
type CoverageDefinition struct {
	Code                 string    `json:"code" db:"code" yaml:"code"`
	DisplayName          string    `json:"display_name" db:"display_name" yaml:"display_name"`
	Family               string    `json:"family" db:"family" yaml:"family"`
	EventType            string    `json:"event_type" db:"event_type" yaml:"event_type"`
	RequiresDecision     bool      `json:"requires_decision" db:"requires_decision" yaml:"requires_decision"`
	RequiresDiseaseScope bool      `json:"requires_disease_scope" db:"requires_disease_scope" yaml:"requires_disease_scope"`
	CreatedAt            time.Time `json:"created_at" db:"created_at" yaml:"-"`
}

// Same reports whether two definitions describe the same published code
func (d CoverageDefinition) Same(other CoverageDefinition) bool {
	return d.Code == other.Code &&
		d.DisplayName == other.DisplayName &&
		d.Family == other.Family &&
		d.EventType == other.EventType &&
		d.RequiresDecision == other.RequiresDecision &&
		d.RequiresDiseaseScope == other.RequiresDiseaseScope
}

// CanonicalCoverage is a published entry of the canonical registry. Its code
// is only set by RestoreCanonicalCoverage, which registry repositories call
// on rows they have stored.
type CanonicalCoverage struct {
	code                 string
	DisplayName          string
	Family               string
	EventType            string
	RequiresDecision     bool
	RequiresDiseaseScope bool
	CreatedAt            time.Time
}

// RestoreCanonicalCoverage rebuilds a published entry from its stored definition
func RestoreCanonicalCoverage(def CoverageDefinition) *CanonicalCoverage {
	return &CanonicalCoverage{
		code:                 def.Code,
		DisplayName:          def.DisplayName,
		Family:               def.Family,
		EventType:            def.EventType,
		RequiresDecision:     def.RequiresDecision,
		RequiresDiseaseScope: def.RequiresDiseaseScope,
		CreatedAt:            def.CreatedAt,
	}
}

// RestoreCanonicalCoverages rebuilds a list of published entries
func RestoreCanonicalCoverages(defs []CoverageDefinition) []*CanonicalCoverage {
	out := make([]*CanonicalCoverage, 0, len(defs))
	for _, def := range defs {
		out = append(out, RestoreCanonicalCoverage(def))
	}
	return out
}

// Code returns the trusted code of a registry entry
func (c *CanonicalCoverage) Code() CanonicalCode {
	if c == nil {
		return CanonicalCode{}
	}
	return CanonicalCode{value: c.code}
}

// Definition returns the stored form of the entry
func (c *CanonicalCoverage) Definition() CoverageDefinition {
	return CoverageDefinition{
		Code:                 c.code,
		DisplayName:          c.DisplayName,
		Family:               c.Family,
		EventType:            c.EventType,
		RequiresDecision:     c.RequiresDecision,
		RequiresDiseaseScope: c.RequiresDiseaseScope,
		CreatedAt:            c.CreatedAt,
	}
}

// MarshalJSON encodes the entry with its code
func (c *CanonicalCoverage) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Definition())
}

// DiseaseCode is an entry of the external disease classification master
type DiseaseCode struct {
	Code                  string `json:"code" db:"code" yaml:"code"`
	ClassificationVersion string `json:"classification_version" db:"classification_version" yaml:"classification_version"`
	Name                  string `json:"name" db:"name" yaml:"name"`
}
