package utils

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// algorithmVersion identifies the normalization steps themselves. The full
// normalizer version also includes the rules version.
const algorithmVersion = "norm-v1"

//go:embed normalization_rules.yaml
var defaultRules []byte

// NormalizationRules is the table that drives coverage name normalization,
// guardrail recall expansion and meta-row filtering
type NormalizationRules struct {
	Version         string            `yaml:"version"`
	Qualifiers      map[string]string `yaml:"qualifiers"`
	NoiseTokens     []string          `yaml:"noise_tokens"`
	VersionPatterns []string          `yaml:"version_patterns"`
	Typos           map[string]string `yaml:"typos"`
	Guardrails      []GuardrailRule   `yaml:"guardrails"`
	MetaRows        MetaRowRules      `yaml:"meta_rows"`
}

// GuardrailRule expands a generic query to every code of a family
type GuardrailRule struct {
	Family       string   `yaml:"family"`
	TriggerBases []string `yaml:"trigger_bases"`
}

// MetaRowRules configures detection of aggregate and footer rows
type MetaRowRules struct {
	MinLength         int      `yaml:"min_length"`
	Patterns          []string `yaml:"patterns"`
	Placeholders      []string `yaml:"placeholders"`
	AggregateKeywords []string `yaml:"aggregate_keywords"`
	CoverageKeywords  []string `yaml:"coverage_keywords"`
}

// NormalizedKey is the output of CoverageNormalizer.Normalize
type NormalizedKey struct {
	Raw        string   `json:"raw"`
	Base       string   `json:"base"`
	Qualifiers []string `json:"qualifiers,omitempty"`
	Key        string   `json:"key"`
}

// IsEmpty reports whether nothing matchable survived normalization
func (k NormalizedKey) IsEmpty() bool {
	return k.Base == ""
}

// CoverageNormalizer turns free-text coverage names into matching keys
type CoverageNormalizer struct {
	rules      *NormalizationRules
	qualifiers map[string]string
	noise      map[string]struct{}
	versionRes []*regexp.Regexp
	typoKeys   []string
	version    string
}

var bracketRe = regexp.MustCompile(`[(\[【〔]([^)\]】〕]*)[)\]】〕]`)

// LoadNormalizationRules reads rules from path, or the embedded defaults when
// path is empty
func LoadNormalizationRules(path string) (*NormalizationRules, error) {
	data := defaultRules
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read normalization rules: %w", err)
		}
		data = b
	}

	var rules NormalizationRules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse normalization rules: %w", err)
	}
	if rules.Version == "" {
		return nil, fmt.Errorf("normalization rules must declare a version")
	}
	return &rules, nil
}

// NewCoverageNormalizer compiles rules into a normalizer
func NewCoverageNormalizer(rules *NormalizationRules) (*CoverageNormalizer, error) {
	if rules == nil {
		return nil, fmt.Errorf("normalization rules are required")
	}

	n := &CoverageNormalizer{
		rules:      rules,
		qualifiers: make(map[string]string, len(rules.Qualifiers)),
		noise:      make(map[string]struct{}, len(rules.NoiseTokens)),
		version:    algorithmVersion + ":" + rules.Version,
	}

	for token, tag := range rules.Qualifiers {
		n.qualifiers[compact(fold(token))] = compact(fold(tag))
	}
	for _, token := range rules.NoiseTokens {
		n.noise[compact(fold(token))] = struct{}{}
	}
	for _, p := range rules.VersionPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid version pattern %q: %w", p, err)
		}
		n.versionRes = append(n.versionRes, re)
	}

	for typo := range rules.Typos {
		n.typoKeys = append(n.typoKeys, typo)
	}
	// Longest first, then lexical, so replacement order never depends on map iteration.
	sort.Slice(n.typoKeys, func(i, j int) bool {
		if len(n.typoKeys[i]) != len(n.typoKeys[j]) {
			return len(n.typoKeys[i]) > len(n.typoKeys[j])
		}
		return n.typoKeys[i] < n.typoKeys[j]
	})

	return n, nil
}

// NewDefaultCoverageNormalizer builds a normalizer from the embedded rules
func NewDefaultCoverageNormalizer() (*CoverageNormalizer, error) {
	rules, err := LoadNormalizationRules("")
	if err != nil {
		return nil, err
	}
	return NewCoverageNormalizer(rules)
}

// Version identifies both the algorithm and the rules table
func (n *CoverageNormalizer) Version() string {
	return n.version
}

// Rules returns the rules table the normalizer was built from
func (n *CoverageNormalizer) Rules() *NormalizationRules {
	return n.rules
}

// Normalize performs all normalization steps on a coverage name
func (n *CoverageNormalizer) Normalize(text string) NormalizedKey {
	out := NormalizedKey{Raw: text}

	folded := fold(text)
	if folded == "" {
		return out
	}

	// Step 1: Correct typos
	for _, typo := range n.typoKeys {
		folded = strings.ReplaceAll(folded, fold(typo), fold(n.rules.Typos[typo]))
	}

	// Step 2: Extract bracketed qualifiers, drop the rest of the bracket content
	tagSet := make(map[string]struct{})
	for _, match := range bracketRe.FindAllStringSubmatch(folded, -1) {
		inner := strings.TrimSpace(match[1])
		if inner == "" || n.isVersionTag(inner) {
			continue
		}
		token := compact(inner)
		if _, ok := n.noise[token]; ok {
			continue
		}
		if tag, ok := n.qualifiers[token]; ok {
			tagSet[tag] = struct{}{}
		}
	}
	remainder := strings.TrimSpace(bracketRe.ReplaceAllString(folded, " "))

	// Step 3: Remove version suffix tokens
	for _, re := range n.versionRes {
		remainder = re.ReplaceAllString(remainder, "")
	}

	// Step 4: Strip whitespace and punctuation
	out.Base = compact(remainder)
	if out.Base == "" {
		return out
	}

	for tag := range tagSet {
		out.Qualifiers = append(out.Qualifiers, tag)
	}
	sort.Strings(out.Qualifiers)

	out.Key = out.Base
	if len(out.Qualifiers) > 0 {
		out.Key = out.Base + "#" + strings.Join(out.Qualifiers, "+")
	}
	return out
}

// Key is a shorthand for Normalize(text).Key
func (n *CoverageNormalizer) Key(text string) string {
	return n.Normalize(text).Key
}

func (n *CoverageNormalizer) isVersionTag(inner string) bool {
	for _, re := range n.versionRes {
		if re.MatchString(inner) {
			return true
		}
	}
	return false
}

// fold applies NFKC compatibility folding and lowercasing
func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFKC.String(s)))
}

// compact keeps only letters and digits
func compact(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
