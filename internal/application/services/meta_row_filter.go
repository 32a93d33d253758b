package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/zatekoja/coveragecompare/pkg/utils"
)

// Meta row rejection reasons
const (
	RejectEmpty       = "empty"
	RejectPlaceholder = "placeholder"
	RejectPattern     = "meta_pattern"
	RejectTooShort    = "too_short"
	RejectAggregate   = "aggregate_row"
)

// MetaRowFilter decides whether a candidate row is a real coverage or a
// table artifact such as a total, subtotal or premium line
type MetaRowFilter struct {
	normalizer       *utils.CoverageNormalizer
	minLength        int
	patterns         []*regexp.Regexp
	placeholders     map[string]struct{}
	aggregateWords   []string
	coverageKeywords []string
}

// NewMetaRowFilter builds the filter from the normalizer's rule table
func NewMetaRowFilter(normalizer *utils.CoverageNormalizer) (*MetaRowFilter, error) {
	rules := normalizer.Rules().MetaRows
	f := &MetaRowFilter{
		normalizer:   normalizer,
		minLength:    rules.MinLength,
		placeholders: make(map[string]struct{}, len(rules.Placeholders)),
	}
	for _, p := range rules.Patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid meta row pattern %q: %w", p, err)
		}
		f.patterns = append(f.patterns, re)
	}
	for _, p := range rules.Placeholders {
		f.placeholders[strings.ToLower(strings.TrimSpace(p))] = struct{}{}
	}
	for _, w := range rules.AggregateKeywords {
		f.aggregateWords = append(f.aggregateWords, normalizer.Normalize(w).Base)
	}
	for _, w := range rules.CoverageKeywords {
		f.coverageKeywords = append(f.coverageKeywords, normalizer.Normalize(w).Base)
	}
	return f, nil
}

// Reject reports whether raw must be kept out of the universe, and why
func (f *MetaRowFilter) Reject(raw string) (bool, string) {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return true, RejectEmpty
	}
	if _, ok := f.placeholders[trimmed]; ok {
		return true, RejectPlaceholder
	}

	base := f.normalizer.Normalize(raw).Base
	for _, re := range f.patterns {
		if re.MatchString(trimmed) || re.MatchString(base) {
			return true, RejectPattern
		}
	}
	if len([]rune(base)) < f.minLength {
		return true, RejectTooShort
	}
	if containsAny(base, f.aggregateWords) && !containsAny(base, f.coverageKeywords) {
		return true, RejectAggregate
	}
	return false, ""
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if w != "" && strings.Contains(s, w) {
			return true
		}
	}
	return false
}
