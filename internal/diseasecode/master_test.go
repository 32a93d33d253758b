package diseasecode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/coveragecompare/internal/domain/entities"
)

func kcd(codes ...string) []*entities.DiseaseCode {
	out := make([]*entities.DiseaseCode, 0, len(codes))
	for _, c := range codes {
		out = append(out, &entities.DiseaseCode{Code: c, ClassificationVersion: "KCD8", Name: c})
	}
	return out
}

func TestNewMaster_IgnoresOtherVersions(t *testing.T) {
	codes := append(kcd("C00", "C73"), &entities.DiseaseCode{Code: "C50", ClassificationVersion: "KCD7"})
	m := NewMaster("KCD8", codes)

	assert.Equal(t, 2, m.Len())
	assert.True(t, m.Contains("C73"))
	assert.False(t, m.Contains("C50"))
}

func TestRange_IncludesSubcodesOfUpperBound(t *testing.T) {
	m := NewMaster("KCD8", kcd("C00", "C00.1", "C15", "C44", "C73", "C73.9", "C77", "D00"))

	assert.Equal(t, []string{"C15", "C44", "C73", "C73.9"}, m.Range("C15", "C73"))
	assert.Equal(t, []string{"C00", "C00.1"}, m.Range("C00", "C00"))
	assert.Nil(t, m.Range("C80", "C97"))
	assert.Equal(t, []string{"C00", "C00.1", "C15", "C44", "C73", "C73.9", "C77"}, m.Range("C00", "C97"))
}

func TestExpand_ReadsMasterAtQueryTime(t *testing.T) {
	all, err := entities.NewRangeMember("C00", "C97")
	require.NoError(t, err)
	thyroid, err := entities.NewCodeMember("C73")
	require.NoError(t, err)
	members := []entities.DiseaseCodeGroupMember{all, thyroid}

	before := NewMaster("KCD8", kcd("C00", "C73"))
	assert.Len(t, before.Expand(members), 2)

	after := NewMaster("KCD8", kcd("C00", "C16", "C73"))
	assert.Len(t, after.Expand(members), 3)
}

func TestDifference(t *testing.T) {
	include := map[string]struct{}{"C00": {}, "C16": {}, "C73": {}}
	exclude := map[string]struct{}{"C73": {}, "C44": {}}

	assert.Equal(t, []string{"C00", "C16"}, Difference(include, exclude))
	assert.Equal(t, []string{"C00", "C16", "C73"}, Difference(include, nil))
}
