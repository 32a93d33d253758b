package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zatekoja/coveragecompare/internal/adapters/memory"
	"github.com/zatekoja/coveragecompare/internal/application"
	"github.com/zatekoja/coveragecompare/internal/application/services"
	"github.com/zatekoja/coveragecompare/internal/domain/entities"
	"github.com/zatekoja/coveragecompare/internal/domain/repositories"
	"github.com/zatekoja/coveragecompare/pkg/config"
	"github.com/zatekoja/coveragecompare/pkg/utils"
)

type testEnv struct {
	*application.Engine
	store *memory.Store
	repos repositories.Store
	cache *MockCacheProvider
	bus   *MockEventBus
	now   time.Time
}

func testCanonConfig() config.CanonConfig {
	return config.CanonConfig{
		FuzzyThreshold:               0.85,
		CandidateConfidenceThreshold: 0.8,
		AllowedEntityTypes:           []string{"coverage"},
		ClassificationVersion:        "KCD8",
		SnoozeDuration:               7 * 24 * time.Hour,
		AliasIndexCacheTTL:           time.Hour,
		AliasIndexLRUSize:            4,
		ReResolveWorkers:             2,
	}
}

// newTestEnv builds an engine over a fresh memory store seeded from
// testdata/registry.yaml
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	normalizer, err := utils.NewDefaultCoverageNormalizer()
	require.NoError(t, err)

	store := memory.NewStore()
	env := &testEnv{
		store: store,
		repos: store.Repositories(),
		cache: NewMockCacheProvider(),
		bus:   NewMockEventBus(),
		now:   time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	store.SetClock(env.clock)

	env.Engine, err = application.NewEngine(testCanonConfig(), application.Dependencies{
		Store:      env.repos,
		Normalizer: normalizer,
		Cache:      env.cache,
		Bus:        env.bus,
	})
	require.NoError(t, err)
	env.Workbench.SetClock(env.clock)

	bundle, err := services.LoadRegistryBundle("testdata/registry.yaml")
	require.NoError(t, err)
	_, err = env.Importer.Import(context.Background(), bundle, "test")
	require.NoError(t, err)
	return env
}

func (e *testEnv) clock() time.Time { return e.now }

func (e *testEnv) advance(d time.Duration) { e.now = e.now.Add(d) }

func (e *testEnv) ingest(t *testing.T, insurer, proposal, name string) *entities.UniverseRow {
	t.Helper()
	res, err := e.Universe.Ingest(context.Background(), entities.UniverseRowCandidate{
		Insurer:         insurer,
		ProposalID:      proposal,
		DocumentID:      "doc-" + proposal,
		Page:            1,
		RawCoverageName: name,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Row, "row %q was %s", name, res.Status)
	return res.Row
}

func (e *testEnv) resolve(t *testing.T, row *entities.UniverseRow) *entities.MappingResult {
	t.Helper()
	result, err := e.Mapping.ResolveWithRetry(context.Background(), row)
	require.NoError(t, err)
	return result
}

func (e *testEnv) openEvents(t *testing.T, insurer string) []*entities.MappingEvent {
	t.Helper()
	events, _, err := e.Workbench.ListEvents(context.Background(), entities.EventFilter{State: entities.EventStateOpen, Insurer: insurer})
	require.NoError(t, err)
	return events
}

func strPtr(s string) *string { return &s }
