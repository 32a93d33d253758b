package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/coveragecompare/internal/application/services"
	"github.com/zatekoja/coveragecompare/internal/domain/entities"
)

func codeStrings(codes []entities.CanonicalCode) []string {
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		out = append(out, c.String())
	}
	return out
}

func TestDecide_WithoutEvidenceIsUndecided(t *testing.T) {
	env := newTestEnv(t)

	decision, err := env.Decisions.Decide(context.Background(), services.DecideRequest{
		CoverageNameRaw: "암진단비",
		Insurer:         "SAMSUNG",
	})
	require.NoError(t, err)

	assert.Equal(t, entities.DecisionStatusUndecided, decision.Status())
	assert.Equal(t, entities.MarkerInsufficientEvidence, decision.Marker())
	assert.NotEmpty(t, decision.RecalledCandidates())
	assert.Empty(t, decision.CodesForCompare())
}

func TestDecide_OnlyDocumentEvidenceCounts(t *testing.T) {
	env := newTestEnv(t)

	decision, err := env.Decisions.Decide(context.Background(), services.DecideRequest{
		CoverageNameRaw:    "암진단비",
		Insurer:            "SAMSUNG",
		RecalledCandidates: []string{"CA_DIAG_GENERAL", "CA_DIAG_SIMILAR"},
		PolicyEvidence: []entities.PolicyEvidence{
			{CanonicalCode: "CA_DIAG_GENERAL", DocumentID: "policy-1", Page: 12, Text: "암(유사암 제외)으로 진단 확정된 경우"},
			{CanonicalCode: "CA_DIAG_SIMILAR", DocumentID: "policy-1", Page: 13, Text: "유사암", Synthetic: true},
			{CanonicalCode: "CA_DIAG_SIMILAR", DocumentID: "", Page: 13, Text: "유사암"},
			{CanonicalCode: "CA_DIAG_SIMILAR", DocumentID: "policy-1", Page: 0, Text: "유사암"},
			{CanonicalCode: "CA_DIAG_SIMILAR", DocumentID: "policy-1", Page: 14, Text: "  "},
			{CanonicalCode: "FAKE_CODE", DocumentID: "policy-1", Page: 15, Text: "가짜"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, entities.DecisionStatusDecided, decision.Status())
	assert.Equal(t, []string{"CA_DIAG_GENERAL"}, codeStrings(decision.CodesForCompare()))
	assert.Equal(t, []string{"CA_DIAG_GENERAL", "CA_DIAG_SIMILAR"}, decision.RecalledCandidates())
	require.Len(t, decision.Evidence(), 1)
	assert.Equal(t, 12, decision.Evidence()[0].Page)
}

func TestDecide_StoredAndStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.Decisions.Decide(ctx, services.DecideRequest{
		CoverageNameRaw: "암진단비", Insurer: "SAMSUNG",
		PolicyEvidence: []entities.PolicyEvidence{{CanonicalCode: "CA_DIAG_GENERAL", DocumentID: "d", Page: 1, Text: "암"}},
	})
	require.NoError(t, err)
	_, err = env.Decisions.Decide(ctx, services.DecideRequest{CoverageNameRaw: "유사암진단비", Insurer: "KB"})
	require.NoError(t, err)

	stored, err := env.Decisions.Get(ctx, "암진단비", "SAMSUNG")
	require.NoError(t, err)
	assert.Equal(t, entities.DecisionStatusDecided, stored.Status())
	assert.Equal(t, []string{"CA_DIAG_GENERAL"}, codeStrings(stored.CodesForCompare()))

	stats, err := env.Decisions.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.DecidedCount)
	assert.Equal(t, int64(1), stats.UndecidedCount)
	assert.InDelta(t, 0.5, stats.DecidedRate, 1e-9)
}
