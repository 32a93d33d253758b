package recall

import (
	"encoding/json"
	"fmt"

	"github.com/zatekoja/coveragecompare/pkg/utils"
)

// Snapshot is the serialized form of an Index
type Snapshot struct {
	NormalizerVersion string                         `json:"normalizer_version"`
	AliasVersion      int64                          `json:"alias_version"`
	Global            map[string][]string            `json:"global"`
	Insurer           map[string]map[string][]string `json:"insurer"`
	NameMaps          map[string]map[string][]string `json:"name_maps"`
	DisplayNames      map[string][]string            `json:"display_names"`
	DisplayList       []DisplayEntry                 `json:"display_list"`
	Guardrails        map[string][]string            `json:"guardrails"`
}

// SnapshotKey is the cache key of an index snapshot
func SnapshotKey(normalizerVersion string, aliasVersion int64) string {
	return fmt.Sprintf("alias_index:%s:%d", normalizerVersion, aliasVersion)
}

// Snapshot serializes the index
func (idx *Index) Snapshot() ([]byte, error) {
	return json.Marshal(Snapshot{
		NormalizerVersion: idx.normalizer.Version(),
		AliasVersion:      idx.aliasVersion,
		Global:            idx.global,
		Insurer:           idx.insurer,
		NameMaps:          idx.nameMaps,
		DisplayNames:      idx.displayNames,
		DisplayList:       idx.displayList,
		Guardrails:        idx.guardrails,
	})
}

// FromSnapshot restores an index. A snapshot built by another normalizer
// version is rejected, since its keys would not match queries.
func FromSnapshot(data []byte, normalizer *utils.CoverageNormalizer) (*Index, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode index snapshot: %w", err)
	}
	if s.NormalizerVersion != normalizer.Version() {
		return nil, fmt.Errorf("snapshot normalizer %s does not match %s", s.NormalizerVersion, normalizer.Version())
	}
	return &Index{
		normalizer:   normalizer,
		aliasVersion: s.AliasVersion,
		global:       orEmpty(s.Global),
		insurer:      orEmptyNested(s.Insurer),
		nameMaps:     orEmptyNested(s.NameMaps),
		displayNames: orEmpty(s.DisplayNames),
		displayList:  s.DisplayList,
		guardrails:   orEmpty(s.Guardrails),
	}, nil
}

func orEmpty(m map[string][]string) map[string][]string {
	if m == nil {
		return map[string][]string{}
	}
	return m
}

func orEmptyNested(m map[string]map[string][]string) map[string]map[string][]string {
	if m == nil {
		return map[string]map[string][]string{}
	}
	return m
}
