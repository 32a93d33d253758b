package services_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/coveragecompare/internal/application/services"
	"github.com/zatekoja/coveragecompare/internal/domain/entities"
	"github.com/zatekoja/coveragecompare/internal/domain/providers"
	"github.com/zatekoja/coveragecompare/internal/recall"
	apperrors "github.com/zatekoja/coveragecompare/pkg/errors"
)

func TestResolve_DisplayNameWithQualifier(t *testing.T) {
	env := newTestEnv(t)
	row := env.ingest(t, "SAMSUNG", "P-2025-01", "암 진단비(유사암 제외)")

	result := env.resolve(t, row)

	require.Equal(t, entities.MappingStatusMapped, result.Status())
	code, ok := result.Code()
	require.True(t, ok)
	assert.Equal(t, "CA_DIAG_GENERAL", code.String())
	assert.Equal(t, entities.TierCanonicalExact, result.Tier())
	assert.Empty(t, env.openEvents(t, "SAMSUNG"))
}

func TestResolve_InsurerAliasIsPerInsurer(t *testing.T) {
	env := newTestEnv(t)
	row := env.ingest(t, "SAMSUNG", "P1", "뇌질환 진단비")

	result := env.resolve(t, row)

	code, ok := result.Code()
	require.True(t, ok)
	assert.Equal(t, "CBV_DIAG", code.String())
	assert.Equal(t, entities.TierInsurerExact, result.Tier())

	// The alias belongs to SAMSUNG only
	other := env.resolve(t, env.ingest(t, "KB", "P1", "뇌질환 진단비"))
	assert.NotEqual(t, entities.TierInsurerExact, other.Tier())
}

func TestResolve_AmbiguousOpensEvent(t *testing.T) {
	env := newTestEnv(t)
	row := env.ingest(t, "SAMSUNG", "P1", "갑상선암 진단비")

	result := env.resolve(t, row)

	assert.Equal(t, entities.MappingStatusAmbiguous, result.Status())
	assert.Equal(t, []string{"CA_DIAG_SIMILAR", "CA_DIAG_THYROID"}, result.Candidates())
	_, ok := result.Code()
	assert.False(t, ok)

	events := env.openEvents(t, "SAMSUNG")
	require.Len(t, events, 1)
	assert.Equal(t, entities.MappingStatusAmbiguous, events[0].DetectedStatus)
	assert.Equal(t, row.ID, events[0].UniverseRowID)
	assert.ElementsMatch(t, []string{"CA_DIAG_SIMILAR", "CA_DIAG_THYROID"}, events[0].Candidates)

	_, err := env.Mapping.GetSlots(context.Background(), row.ID)
	assert.Error(t, err)
}

func TestResolve_FuzzyMatch(t *testing.T) {
	env := newTestEnv(t)
	row := env.ingest(t, "HANWHA", "P1", "허혈성심장질환 진료비")

	result := env.resolve(t, row)

	code, ok := result.Code()
	require.True(t, ok)
	assert.Equal(t, "IHD_DIAG", code.String())
	assert.Equal(t, entities.TierFuzzy, result.Tier())
	require.NotEmpty(t, result.Evidence())
	assert.InDelta(t, 0.9, result.Evidence()[0].Similarity, 1e-9)
}

// importNearNames adds two codes whose display names differ in the last rune
func importNearNames(t *testing.T, env *testEnv) {
	t.Helper()
	bundle, err := services.ParseRegistryBundle([]byte(`
coverages:
  - {code: X_A, display_name: 가나다라마바사아자차카, family: misc, event_type: DIAGNOSIS}
  - {code: X_B, display_name: 가나다라마바사아자차타, family: misc, event_type: DIAGNOSIS}
`))
	require.NoError(t, err)
	_, err = env.Importer.Import(context.Background(), bundle, "test")
	require.NoError(t, err)
}

func TestResolve_FuzzyTieIsAmbiguous(t *testing.T) {
	env := newTestEnv(t)
	importNearNames(t, env)
	row := env.ingest(t, "KB", "P1", "가나다라마바사아자차파")

	result := env.resolve(t, row)

	assert.Equal(t, entities.MappingStatusAmbiguous, result.Status())
	assert.Equal(t, entities.TierFuzzy, result.Tier())
	assert.ElementsMatch(t, []string{"X_A", "X_B"}, result.Candidates())
	_, ok := result.Code()
	assert.False(t, ok)
	for _, ev := range result.Evidence() {
		assert.InDelta(t, 1-1.0/11, ev.Similarity, 1e-9)
	}

	events := env.openEvents(t, "KB")
	require.Len(t, events, 1)
	assert.Equal(t, entities.MappingStatusAmbiguous, events[0].DetectedStatus)
}

func TestResolve_FuzzyBelowThresholdIsUnmapped(t *testing.T) {
	env := newTestEnv(t)
	importNearNames(t, env)
	// Two edits over eleven runes is about 0.82, under the 0.85 threshold
	row := env.ingest(t, "KB", "P1", "가나다라마바사아자파파")

	result := env.resolve(t, row)

	assert.Equal(t, entities.MappingStatusUnmapped, result.Status())
	assert.Equal(t, entities.ReasonNoMatch, result.Reason())
	assert.Empty(t, result.Candidates())
}

func TestResolve_NoMatchIsUnmapped(t *testing.T) {
	env := newTestEnv(t)
	row := env.ingest(t, "KB", "P1", "알수없는담보")

	result := env.resolve(t, row)

	assert.Equal(t, entities.MappingStatusUnmapped, result.Status())
	assert.Equal(t, entities.ReasonNoMatch, result.Reason())
	assert.Len(t, env.openEvents(t, "KB"), 1)
}

func TestResolve_SecondRunIsNoop(t *testing.T) {
	env := newTestEnv(t)
	row := env.ingest(t, "SAMSUNG", "P1", "암수술비")

	first := env.resolve(t, row)
	second := env.resolve(t, row)

	assert.Equal(t, int64(1), first.Revision())
	assert.Equal(t, int64(1), second.Revision())
	assert.Len(t, env.bus.Published(providers.EventChannelMappingChanges), 1)
}

func TestResolve_MappedRowGetsSlots(t *testing.T) {
	env := newTestEnv(t)
	amount := int64(30_000_000)
	res, err := env.Universe.Ingest(context.Background(), entities.UniverseRowCandidate{
		Insurer:         "SAMSUNG",
		ProposalID:      "P1",
		DocumentID:      "doc-1",
		Page:            4,
		RawCoverageName: "암 진단비(유사암 제외)",
		SpanText:        "암 진단비(유사암 제외) 3,000만원 90일 면책",
		Amount:          &amount,
	})
	require.NoError(t, err)

	env.resolve(t, res.Row)

	slots, err := env.Mapping.GetSlots(context.Background(), res.Row.ID)
	require.NoError(t, err)
	assert.Equal(t, "CA_DIAG_GENERAL", slots.CanonicalCode)
	require.NotNil(t, slots.PayoutLimit.Value)
	assert.Equal(t, amount, *slots.PayoutLimit.Value)
	require.NotNil(t, slots.WaitingPeriodDays.Value)
	assert.Equal(t, int64(90), *slots.WaitingPeriodDays.Value)
	require.NotNil(t, slots.EventType.Value)
	assert.Equal(t, "diagnosis", *slots.EventType.Value)
	// No scope attached yet, and the code requires one
	assert.Nil(t, slots.DiseaseScope.Value)
	assert.Equal(t, entities.ConfidencePolicyRequired, slots.DiseaseScope.Confidence)
}

func TestAliasIndex_SnapshotCachedAndInvalidated(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	idx, err := env.Index.Current(ctx)
	require.NoError(t, err)
	key := recall.SnapshotKey(env.Index.Normalizer().Version(), idx.AliasVersion())
	assert.Contains(t, env.cache.Keys(), key)

	env.Index.Invalidate(ctx)
	assert.NotContains(t, env.cache.Keys(), key)

	rebuilt, err := env.Index.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, idx.AliasVersion(), rebuilt.AliasVersion())
}

func TestRecall_GuardrailExpandsFamily(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.Index.Recall(context.Background(), "암진단비", "SAMSUNG")
	require.NoError(t, err)

	assert.Contains(t, res.Codes, "CA_DIAG_GENERAL")
	assert.Contains(t, res.Codes, "CA_DIAG_SIMILAR")
	assert.NotContains(t, res.Codes, "CBV_DIAG")
}

func TestRecall_MissIsEmpty(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.Index.Recall(context.Background(), "전혀관계없는문구", "SAMSUNG")
	require.NoError(t, err)
	assert.True(t, res.Empty())
}

func TestResolve_ConcurrentResolvesOfOneRow(t *testing.T) {
	tests := []struct {
		name   string
		title  string
		status entities.MappingStatus
		events int
	}{
		{name: "mapped", title: "암수술비", status: entities.MappingStatusMapped, events: 0},
		{name: "unmapped", title: "알수없는담보", status: entities.MappingStatusUnmapped, events: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			row := env.ingest(t, "KB", "P1", tt.title)

			const workers = 16
			var wg sync.WaitGroup
			errs := make([]error, workers)
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					if i%2 == 0 {
						_, errs[i] = env.Mapping.Resolve(ctx, row)
						return
					}
					_, errs[i] = env.Mapping.ResolveWithRetry(ctx, row)
				}(i)
			}
			wg.Wait()

			for i, err := range errs {
				if err == nil {
					continue
				}
				require.Equal(t, 0, i%2, "ResolveWithRetry failed: %v", err)
				assert.True(t, apperrors.Is(err, apperrors.ErrorTypeConflict), err.Error())
			}

			stored, err := env.Mapping.Get(ctx, row.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.status, stored.Status())
			assert.Equal(t, int64(1), stored.Revision())
			assert.Len(t, env.openEvents(t, "KB"), tt.events)
		})
	}
}
