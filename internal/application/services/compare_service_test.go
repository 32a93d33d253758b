package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/coveragecompare/internal/application/services"
	"github.com/zatekoja/coveragecompare/internal/domain/entities"
	apperrors "github.com/zatekoja/coveragecompare/pkg/errors"
)

func TestCompare_OutsideUniverse(t *testing.T) {
	env := newTestEnv(t)

	// The name is in the registry but no proposal carried it
	res, err := env.Compare.Resolve(context.Background(), "SAMSUNG", "암수술비", "")
	require.NoError(t, err)

	assert.Equal(t, entities.MappingStatusUnmapped, res.MappingStatus)
	assert.Equal(t, entities.ReasonOutsideUniverse, res.Reason)
	assert.Nil(t, res.CanonicalCode)
	assert.Empty(t, res.CodesForCompare)
}

func TestCompare_MappedWithoutDecision(t *testing.T) {
	env := newTestEnv(t)
	env.ingest(t, "SAMSUNG", "P1", "암수술비")

	res, err := env.Compare.Resolve(context.Background(), "SAMSUNG", "암 수술비", "P1")
	require.NoError(t, err)

	assert.Equal(t, entities.MappingStatusMapped, res.MappingStatus)
	require.NotNil(t, res.CanonicalCode)
	assert.Equal(t, "CA_SURGERY", *res.CanonicalCode)
	assert.NotNil(t, res.Slots)
	assert.Nil(t, res.Decision)
	assert.Equal(t, []string{"CA_SURGERY"}, res.CodesForCompare)
}

func TestCompare_RequiresDecisionBeforeCodes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	row := env.ingest(t, "SAMSUNG", "P1", "암진단비(유사암제외)")

	res, err := env.Compare.Resolve(ctx, "SAMSUNG", "암진단비(유사암제외)", "")
	require.NoError(t, err)
	require.NotNil(t, res.CanonicalCode)
	assert.Equal(t, "CA_DIAG_GENERAL", *res.CanonicalCode)
	require.NotNil(t, res.Decision)
	assert.Equal(t, entities.DecisionStatusUndecided, res.Decision.Status())
	assert.Empty(t, res.CodesForCompare)

	_, err = env.Decisions.Decide(ctx, services.DecideRequest{
		CoverageNameRaw: row.RawCoverageName,
		Insurer:         "SAMSUNG",
		PolicyEvidence: []entities.PolicyEvidence{
			{CanonicalCode: "CA_DIAG_GENERAL", DocumentID: "policy-1", Page: 4, Text: "암(유사암 제외)"},
		},
	})
	require.NoError(t, err)

	res, err = env.Compare.Resolve(ctx, "SAMSUNG", "암진단비(유사암제외)", "")
	require.NoError(t, err)
	assert.Equal(t, entities.DecisionStatusDecided, res.Decision.Status())
	assert.Equal(t, []string{"CA_DIAG_GENERAL"}, res.CodesForCompare)
}

func TestCompare_AmbiguousCandidatesNeedDecision(t *testing.T) {
	env := newTestEnv(t)
	env.ingest(t, "KB", "P1", "갑상선암진단비")

	res, err := env.Compare.Resolve(context.Background(), "KB", "갑상선암진단비", "P1")
	require.NoError(t, err)

	assert.Equal(t, entities.MappingStatusAmbiguous, res.MappingStatus)
	assert.Nil(t, res.CanonicalCode)
	require.NotNil(t, res.Decision)
	assert.Empty(t, res.CodesForCompare)
}

func TestCompare_RequiresInsurerAndName(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.Compare.Resolve(context.Background(), "", "암수술비", "")
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeValidation))
	_, err = env.Compare.Resolve(context.Background(), "KB", "  ", "")
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeValidation))
}
