package recall

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/coveragecompare/internal/domain/entities"
	"github.com/zatekoja/coveragecompare/pkg/utils"
)

func testRegistry() []*entities.CanonicalCoverage {
	return entities.RestoreCanonicalCoverages([]entities.CoverageDefinition{
		{Code: "CA_DIAG_GENERAL", DisplayName: "일반암 진단비", Family: "cancer", RequiresDecision: true},
		{Code: "CA_DIAG_SIMILAR", DisplayName: "유사암 진단비", Family: "cancer", RequiresDecision: true},
		{Code: "CA_DIAG_HIGH_COST", DisplayName: "고액암 진단비", Family: "cancer", RequiresDecision: true},
		{Code: "STROKE_DIAG", DisplayName: "뇌졸중 진단비", Family: "cerebrovascular"},
	})
}

func buildTestIndex(t *testing.T, table *entities.AliasTable) *Index {
	t.Helper()
	n, err := utils.NewDefaultCoverageNormalizer()
	require.NoError(t, err)
	idx, err := Build(n, table, testRegistry())
	require.NoError(t, err)
	return idx
}

func TestRecall_InsurerAlias(t *testing.T) {
	idx := buildTestIndex(t, &entities.AliasTable{
		Version: 3,
		Aliases: []*entities.AliasRecord{
			{Insurer: "SAMSUNG", AliasText: "암 진단비(유사암 제외)", CanonicalCode: "CA_DIAG_GENERAL"},
		},
	})

	res := idx.Recall("암진단비 (유사암제외)", "SAMSUNG")
	assert.Contains(t, res.Codes, "CA_DIAG_GENERAL")
	assert.Equal(t, []string{"CA_DIAG_GENERAL"}, res.Sources[SourceInsurerAlias])
	assert.Equal(t, int64(3), idx.AliasVersion())

	other := idx.Recall("암진단비 (유사암제외)", "KB")
	assert.Empty(t, other.Sources[SourceInsurerAlias])
}

func TestRecall_MissIsEmptyNotError(t *testing.T) {
	idx := buildTestIndex(t, nil)

	res := idx.Recall("매핑안된담보", "KB")
	assert.True(t, res.Empty())
	assert.NotNil(t, res.Codes)

	assert.True(t, idx.Recall("", "KB").Empty())
}

func TestRecall_GuardrailExpandsFamily(t *testing.T) {
	idx := buildTestIndex(t, nil)

	res := idx.Recall("암 진단비", "SAMSUNG")
	assert.Equal(t, []string{"CA_DIAG_GENERAL", "CA_DIAG_HIGH_COST", "CA_DIAG_SIMILAR"}, res.Codes)
	assert.NotEmpty(t, res.Sources[SourceGuardrail])
	assert.NotContains(t, res.Codes, "STROKE_DIAG")
}

func TestRecall_GuardrailAppliesToBaseWithQualifiers(t *testing.T) {
	idx := buildTestIndex(t, nil)

	res := idx.Recall("암진단비(유사암 제외)", "")
	assert.Len(t, res.Codes, 3)
}

func TestBuild_SkipsAliasesOutsideRegistry(t *testing.T) {
	idx := buildTestIndex(t, &entities.AliasTable{
		Aliases: []*entities.AliasRecord{
			{AliasText: "가짜담보", CanonicalCode: "FAKE_CODE"},
			{AliasText: "일반암진단금", CanonicalCode: "CA_DIAG_GENERAL"},
		},
	})

	assert.Equal(t, 1, idx.Skipped())
	assert.True(t, idx.Recall("가짜담보", "").Empty())
	assert.Equal(t, []string{"CA_DIAG_GENERAL"}, idx.GlobalAliasCodes(idx.Normalize("일반암 진단비").Key))
}

func TestBuild_RecomputesKeysWithCurrentNormalizer(t *testing.T) {
	idx := buildTestIndex(t, &entities.AliasTable{
		Aliases: []*entities.AliasRecord{
			{AliasText: "뇌졸중진단금(v2)", NormalizedKey: "stale-key", CanonicalCode: "STROKE_DIAG"},
		},
	})

	assert.Empty(t, idx.GlobalAliasCodes("stale-key"))
	assert.Equal(t, []string{"STROKE_DIAG"}, idx.GlobalAliasCodes("뇌졸중진단비"))
}

func TestNameMapCodes_ExactTitle(t *testing.T) {
	idx := buildTestIndex(t, &entities.AliasTable{
		NameMaps: []*entities.NameMapRecord{
			{Insurer: "KB", RawTitle: "매핑안된담보", CanonicalCode: "STROKE_DIAG"},
		},
	})

	assert.Equal(t, []string{"STROKE_DIAG"}, idx.NameMapCodes("KB", " 매핑안된담보 "))
	assert.Empty(t, idx.NameMapCodes("KB", "매핑안된 담보"))
	assert.Empty(t, idx.NameMapCodes("SAMSUNG", "매핑안된담보"))
}

func TestSnapshot_RoundTripAndVersionCheck(t *testing.T) {
	idx := buildTestIndex(t, &entities.AliasTable{
		Version: 7,
		Aliases: []*entities.AliasRecord{{Insurer: "SAMSUNG", AliasText: "암 진단비(유사암 제외)", CanonicalCode: "CA_DIAG_GENERAL"}},
	})

	data, err := idx.Snapshot()
	require.NoError(t, err)

	n, err := utils.NewDefaultCoverageNormalizer()
	require.NoError(t, err)
	restored, err := FromSnapshot(data, n)
	require.NoError(t, err)
	assert.Equal(t, idx.Recall("암 진단비(유사암 제외)", "SAMSUNG").Codes, restored.Recall("암 진단비(유사암 제외)", "SAMSUNG").Codes)
	assert.Equal(t, int64(7), restored.AliasVersion())

	other, err := utils.NewCoverageNormalizer(&utils.NormalizationRules{Version: "other"})
	require.NoError(t, err)
	_, err = FromSnapshot(data, other)
	assert.Error(t, err)
}

func TestSnapshotKey(t *testing.T) {
	assert.Equal(t, "alias_index:norm-v1:x:4", SnapshotKey("norm-v1:x", 4))
}
