package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNormalizer(t *testing.T) *CoverageNormalizer {
	t.Helper()
	n, err := NewDefaultCoverageNormalizer()
	require.NoError(t, err)
	return n
}

func TestLoadNormalizationRules_Embedded(t *testing.T) {
	rules, err := LoadNormalizationRules("")
	require.NoError(t, err)
	assert.NotEmpty(t, rules.Version)
	assert.NotEmpty(t, rules.Guardrails)
	assert.Contains(t, rules.MetaRows.AggregateKeywords, "합계")
}

func TestLoadNormalizationRules_FileNotFound(t *testing.T) {
	rules, err := LoadNormalizationRules("/nonexistent/rules.yaml")
	assert.Error(t, err)
	assert.Nil(t, rules)
}

func TestLoadNormalizationRules_MissingVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("qualifiers: {}\n"), 0o600))

	_, err := LoadNormalizationRules(path)
	assert.Error(t, err)
}

func TestNewCoverageNormalizer_InvalidVersionPattern(t *testing.T) {
	_, err := NewCoverageNormalizer(&NormalizationRules{Version: "x", VersionPatterns: []string{"("}})
	assert.Error(t, err)
}

func TestNormalize_Qualifiers(t *testing.T) {
	n := newTestNormalizer(t)

	testCases := []struct {
		input      string
		base       string
		qualifiers []string
		key        string
	}{
		{"암 진단비(유사암 제외)", "암진단비", []string{"유사암제외"}, "암진단비#유사암제외"},
		{"암진단비 (유사암제외)", "암진단비", []string{"유사암제외"}, "암진단비#유사암제외"},
		{"암 진단비（유사암 제외）", "암진단비", []string{"유사암제외"}, "암진단비#유사암제외"},
		{"암진단비(갱신형)(유사암 제외)", "암진단비", []string{"갱신형", "유사암제외"}, "암진단비#갱신형+유사암제외"},
		{"암진단비(유사암제외)(갱신형)", "암진단비", []string{"갱신형", "유사암제외"}, "암진단비#갱신형+유사암제외"},
		{"뇌혈관질환 진단비", "뇌혈관질환진단비", nil, "뇌혈관질환진단비"},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got := n.Normalize(tc.input)
			assert.Equal(t, tc.input, got.Raw)
			assert.Equal(t, tc.base, got.Base)
			assert.Equal(t, tc.qualifiers, got.Qualifiers)
			assert.Equal(t, tc.key, got.Key)
		})
	}
}

func TestNormalize_DropsNoiseAndVersions(t *testing.T) {
	n := newTestNormalizer(t)

	testCases := []struct {
		input string
		key   string
	}{
		{"암진단비(v2)", "암진단비"},
		{"암진단비 v3.1", "암진단비"},
		{"암진단비[2024.01 개정]", "암진단비"},
		{"암진단비(특약)", "암진단비"},
		{"암진단비(알 수 없는 메모)", "암진단비"},
		{"암진단금", "암진단비"},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.key, n.Key(tc.input))
		})
	}
}

func TestNormalize_EmptyAndPunctuationOnly(t *testing.T) {
	n := newTestNormalizer(t)

	for _, input := range []string{"", "   ", "---", "(v2)"} {
		got := n.Normalize(input)
		assert.True(t, got.IsEmpty(), input)
		assert.Equal(t, "", got.Key, input)
	}
}

func TestNormalize_Deterministic(t *testing.T) {
	n := newTestNormalizer(t)
	want := n.Key("일반암 수술비(최초1회한)(비갱신형)")
	for i := 0; i < 50; i++ {
		assert.Equal(t, want, n.Key("일반암 수술비(최초1회한)(비갱신형)"))
	}
}

func TestVersion_TracksRulesVersion(t *testing.T) {
	a, err := NewCoverageNormalizer(&NormalizationRules{Version: "a"})
	require.NoError(t, err)
	b, err := NewCoverageNormalizer(&NormalizationRules{Version: "b"})
	require.NoError(t, err)

	assert.NotEqual(t, a.Version(), b.Version())
	assert.Contains(t, a.Version(), algorithmVersion)
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("", ""))
	assert.Equal(t, 1.0, Similarity("암진단비", "암진단비"))
	assert.Equal(t, 0.0, Similarity("abc", ""))
	assert.InDelta(t, 0.75, Similarity("암진단비", "암진단금"), 1e-9)
	assert.InDelta(t, 0.9, Similarity("허혈성심장질환진단비", "허혈성심장질환진단금"), 1e-9)
}
