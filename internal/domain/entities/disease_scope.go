package entities

import (
	"encoding/json"
	"fmt"
	"time"
)

// GroupKind distinguishes classification groups from insurer business concepts
type GroupKind string

const (
	GroupKindMedical        GroupKind = "MEDICAL"
	GroupKindInsurerConcept GroupKind = "INSURER_CONCEPT"
)

// Provenance locates the document text a record was derived from
type Provenance struct {
	SourceDocumentID string `json:"source_document_id" db:"source_document_id"`
	Page             int    `json:"page" db:"page"`
	TextSpan         string `json:"text_span" db:"text_span"`
}

// DiseaseCodeGroupMember is either a single code or a contiguous code range
type DiseaseCodeGroupMember struct {
	code     string
	codeFrom string
	codeTo   string
}

// NewCodeMember builds a single-code member
func NewCodeMember(code string) (DiseaseCodeGroupMember, error) {
	if code == "" {
		return DiseaseCodeGroupMember{}, fmt.Errorf("member code is required")
	}
	return DiseaseCodeGroupMember{code: code}, nil
}

// NewRangeMember builds a range member covering from..to inclusive
func NewRangeMember(from, to string) (DiseaseCodeGroupMember, error) {
	if from == "" || to == "" {
		return DiseaseCodeGroupMember{}, fmt.Errorf("range member requires both bounds")
	}
	if from > to {
		return DiseaseCodeGroupMember{}, fmt.Errorf("range member %s-%s is inverted", from, to)
	}
	return DiseaseCodeGroupMember{codeFrom: from, codeTo: to}, nil
}

// MemberFromColumns rebuilds a member from nullable storage columns
func MemberFromColumns(code, from, to *string) (DiseaseCodeGroupMember, error) {
	switch {
	case code != nil && from == nil && to == nil:
		return NewCodeMember(*code)
	case code == nil && from != nil && to != nil:
		return NewRangeMember(*from, *to)
	default:
		return DiseaseCodeGroupMember{}, fmt.Errorf("member must be either a code or a range")
	}
}

func (m DiseaseCodeGroupMember) IsRange() bool { return m.codeFrom != "" }
func (m DiseaseCodeGroupMember) Code() string  { return m.code }

// Range returns the bounds of a range member
func (m DiseaseCodeGroupMember) Range() (from, to string) {
	return m.codeFrom, m.codeTo
}

type memberJSON struct {
	Code     string `json:"code,omitempty"`
	CodeFrom string `json:"code_from,omitempty"`
	CodeTo   string `json:"code_to,omitempty"`
}

func (m DiseaseCodeGroupMember) MarshalJSON() ([]byte, error) {
	return json.Marshal(memberJSON{Code: m.code, CodeFrom: m.codeFrom, CodeTo: m.codeTo})
}

func (m *DiseaseCodeGroupMember) UnmarshalJSON(data []byte) error {
	var raw memberJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var (
		built DiseaseCodeGroupMember
		err   error
	)
	switch {
	case raw.Code != "" && raw.CodeFrom == "" && raw.CodeTo == "":
		built, err = NewCodeMember(raw.Code)
	case raw.Code == "" && raw.CodeFrom != "":
		built, err = NewRangeMember(raw.CodeFrom, raw.CodeTo)
	default:
		err = fmt.Errorf("member must be either a code or a range")
	}
	if err != nil {
		return err
	}
	*m = built
	return nil
}

// DiseaseCodeGroup is a named set of disease codes
type DiseaseCodeGroup struct {
	ID            string                   `json:"group_id" db:"id"`
	Label         string                   `json:"label" db:"label"`
	Kind          GroupKind                `json:"kind" db:"kind"`
	OwningInsurer string                   `json:"owning_insurer,omitempty" db:"owning_insurer"`
	Provenance    Provenance               `json:"provenance" db:"-"`
	Members       []DiseaseCodeGroupMember `json:"members" db:"-"`
	CreatedAt     time.Time                `json:"created_at" db:"created_at"`
}

// Validate enforces ownership and membership rules
func (g *DiseaseCodeGroup) Validate() error {
	if g.ID == "" {
		return fmt.Errorf("group id is required")
	}
	if g.Label == "" {
		return fmt.Errorf("group label is required")
	}
	switch g.Kind {
	case GroupKindMedical:
	case GroupKindInsurerConcept:
		if g.OwningInsurer == "" {
			return fmt.Errorf("insurer concept group %s requires an owning insurer", g.ID)
		}
	default:
		return fmt.Errorf("unknown group kind %q", g.Kind)
	}
	if len(g.Members) == 0 {
		return fmt.Errorf("group %s has no members", g.ID)
	}
	for _, m := range g.Members {
		if m.code == "" && m.codeFrom == "" {
			return fmt.Errorf("group %s has an empty member", g.ID)
		}
	}
	return nil
}

// AttachableBy reports whether insurer may reference the group in a scope
func (g *DiseaseCodeGroup) AttachableBy(insurer string) bool {
	return g.OwningInsurer == "" || g.OwningInsurer == insurer
}

// CoverageDiseaseScope attaches include/exclude groups to a canonical code
// for one insurer proposal. The include group is mandatory.
type CoverageDiseaseScope struct {
	ID             string     `json:"id" db:"id"`
	CanonicalCode  string     `json:"canonical_code" db:"canonical_code"`
	Insurer        string     `json:"insurer" db:"insurer"`
	ProposalID     string     `json:"proposal_id" db:"proposal_id"`
	IncludeGroupID string     `json:"include_group_id" db:"include_group_id"`
	ExcludeGroupID *string    `json:"exclude_group_id,omitempty" db:"exclude_group_id"`
	Provenance     Provenance `json:"provenance" db:"-"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

// ResolvedScope is a scope with its effective disease code set
type ResolvedScope struct {
	Scope        *CoverageDiseaseScope `json:"scope"`
	IncludeCount int                   `json:"include_count"`
	ExcludeCount int                   `json:"exclude_count"`
	Codes        []string              `json:"codes"`
}
