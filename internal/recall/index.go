package recall

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zatekoja/coveragecompare/internal/domain/entities"
	"github.com/zatekoja/coveragecompare/pkg/utils"
)

// Hit sources
const (
	SourceGlobalAlias  = "global_alias"
	SourceInsurerAlias = "insurer_alias"
	SourceNameMap      = "name_map"
	SourceDisplayName  = "display_name"
	SourceGuardrail    = "guardrail"
)

// DisplayEntry is a canonical display name keyed for matching
type DisplayEntry struct {
	Key  string `json:"key"`
	Base string `json:"base"`
	Code string `json:"code"`
}

// Index maps normalized coverage keys to candidate canonical codes. An Index
// is immutable once built and safe for concurrent use.
type Index struct {
	normalizer   *utils.CoverageNormalizer
	aliasVersion int64

	global       map[string][]string
	insurer      map[string]map[string][]string
	nameMaps     map[string]map[string][]string
	displayNames map[string][]string
	displayList  []DisplayEntry
	guardrails   map[string][]string
	skipped      int
}

// Result is the answer to a recall query
type Result struct {
	Key     utils.NormalizedKey `json:"key"`
	Codes   []string            `json:"codes"`
	Sources map[string][]string `json:"sources,omitempty"`
}

// Empty reports a recall miss
func (r *Result) Empty() bool {
	return len(r.Codes) == 0
}

// Build creates an index from the alias table and the registry. Aliases that
// point at codes missing from the registry are skipped. Every key is derived
// by the given normalizer, never taken from stored keys.
func Build(normalizer *utils.CoverageNormalizer, table *entities.AliasTable, coverages []*entities.CanonicalCoverage) (*Index, error) {
	if normalizer == nil {
		return nil, fmt.Errorf("normalizer is required")
	}
	if table == nil {
		table = &entities.AliasTable{}
	}

	idx := &Index{
		normalizer:   normalizer,
		aliasVersion: table.Version,
	}

	registered := make(map[string]*entities.CanonicalCoverage, len(coverages))
	byFamily := make(map[string][]string)
	global := newKeySet()
	display := newKeySet()
	for _, c := range coverages {
		code := c.Code().String()
		registered[code] = c
		if c.Family != "" {
			byFamily[c.Family] = append(byFamily[c.Family], code)
		}
		key := normalizer.Normalize(c.DisplayName)
		if key.IsEmpty() {
			continue
		}
		display.add(key.Key, code)
		idx.displayList = append(idx.displayList, DisplayEntry{Key: key.Key, Base: key.Base, Code: code})
	}
	sort.Slice(idx.displayList, func(i, j int) bool {
		if idx.displayList[i].Key != idx.displayList[j].Key {
			return idx.displayList[i].Key < idx.displayList[j].Key
		}
		return idx.displayList[i].Code < idx.displayList[j].Code
	})

	insurer := make(map[string]*keySet)
	for _, a := range table.Aliases {
		if _, ok := registered[a.CanonicalCode]; !ok {
			idx.skipped++
			continue
		}
		key := normalizer.Key(a.AliasText)
		if key == "" {
			idx.skipped++
			continue
		}
		if a.Insurer == "" {
			global.add(key, a.CanonicalCode)
			continue
		}
		if insurer[a.Insurer] == nil {
			insurer[a.Insurer] = newKeySet()
		}
		insurer[a.Insurer].add(key, a.CanonicalCode)
	}

	nameMaps := make(map[string]*keySet)
	for _, m := range table.NameMaps {
		if _, ok := registered[m.CanonicalCode]; !ok {
			idx.skipped++
			continue
		}
		if nameMaps[m.Insurer] == nil {
			nameMaps[m.Insurer] = newKeySet()
		}
		nameMaps[m.Insurer].add(NameMapKey(m.RawTitle), m.CanonicalCode)
	}

	guardrails := newKeySet()
	for _, rule := range normalizer.Rules().Guardrails {
		codes := byFamily[rule.Family]
		for _, trigger := range rule.TriggerBases {
			base := normalizer.Normalize(trigger).Base
			if base == "" {
				continue
			}
			for _, code := range codes {
				guardrails.add(base, code)
			}
		}
	}

	idx.global = global.freeze()
	idx.displayNames = display.freeze()
	idx.guardrails = guardrails.freeze()
	idx.insurer = make(map[string]map[string][]string, len(insurer))
	for name, set := range insurer {
		idx.insurer[name] = set.freeze()
	}
	idx.nameMaps = make(map[string]map[string][]string, len(nameMaps))
	for name, set := range nameMaps {
		idx.nameMaps[name] = set.freeze()
	}

	return idx, nil
}

// NameMapKey is the exact-title key of a name map. Only surrounding
// whitespace is ignored.
func NameMapKey(rawTitle string) string {
	return strings.TrimSpace(rawTitle)
}

// NormalizerVersion returns the version of the normalizer the index was built with
func (idx *Index) NormalizerVersion() string {
	return idx.normalizer.Version()
}

// AliasVersion returns the alias table version the index was built from
func (idx *Index) AliasVersion() int64 {
	return idx.aliasVersion
}

// Skipped returns how many alias records were ignored during the build
func (idx *Index) Skipped() int {
	return idx.skipped
}

// Normalize applies the index's normalizer
func (idx *Index) Normalize(text string) utils.NormalizedKey {
	return idx.normalizer.Normalize(text)
}

// NameMapCodes returns the codes an insurer name map assigns to an exact raw title
func (idx *Index) NameMapCodes(insurer, rawTitle string) []string {
	return copyCodes(idx.nameMaps[insurer][NameMapKey(rawTitle)])
}

// InsurerAliasCodes returns insurer-specific alias hits for a key
func (idx *Index) InsurerAliasCodes(insurer, key string) []string {
	return copyCodes(idx.insurer[insurer][key])
}

// GlobalAliasCodes returns global alias hits for a key
func (idx *Index) GlobalAliasCodes(key string) []string {
	return copyCodes(idx.global[key])
}

// DisplayNameCodes returns codes whose normalized display name equals key
func (idx *Index) DisplayNameCodes(key string) []string {
	return copyCodes(idx.displayNames[key])
}

// DisplayEntries returns all keyed display names, ordered by key
func (idx *Index) DisplayEntries() []DisplayEntry {
	return append([]DisplayEntry(nil), idx.displayList...)
}

// Recall expands free text into the set of candidate codes for an insurer.
// The result is the union of global and insurer alias hits, name map and
// display name hits, and guardrail expansion on the base key. A miss yields
// an empty set.
func (idx *Index) Recall(text, insurer string) *Result {
	key := idx.normalizer.Normalize(text)
	res := &Result{Key: key, Codes: []string{}, Sources: map[string][]string{}}
	if key.IsEmpty() {
		return res
	}

	union := make(map[string]struct{})
	collect := func(source string, codes []string) {
		if len(codes) == 0 {
			return
		}
		res.Sources[source] = mergeSorted(res.Sources[source], codes)
		for _, c := range codes {
			union[c] = struct{}{}
		}
	}

	keys := []string{key.Key}
	if key.Base != key.Key {
		keys = append(keys, key.Base)
	}
	for _, k := range keys {
		collect(SourceGlobalAlias, idx.global[k])
		collect(SourceDisplayName, idx.displayNames[k])
		if insurer != "" {
			collect(SourceInsurerAlias, idx.insurer[insurer][k])
		}
	}
	if insurer != "" {
		collect(SourceNameMap, idx.nameMaps[insurer][NameMapKey(text)])
	}
	collect(SourceGuardrail, idx.guardrails[key.Base])

	for c := range union {
		res.Codes = append(res.Codes, c)
	}
	sort.Strings(res.Codes)
	if len(res.Sources) == 0 {
		res.Sources = nil
	}
	return res
}

type keySet struct {
	m map[string]map[string]struct{}
}

func newKeySet() *keySet {
	return &keySet{m: make(map[string]map[string]struct{})}
}

func (s *keySet) add(key, code string) {
	if s.m[key] == nil {
		s.m[key] = make(map[string]struct{})
	}
	s.m[key][code] = struct{}{}
}

func (s *keySet) freeze() map[string][]string {
	out := make(map[string][]string, len(s.m))
	for key, codes := range s.m {
		list := make([]string, 0, len(codes))
		for c := range codes {
			list = append(list, c)
		}
		sort.Strings(list)
		out[key] = list
	}
	return out
}

func copyCodes(codes []string) []string {
	return append([]string(nil), codes...)
}

func mergeSorted(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, c := range list {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}
