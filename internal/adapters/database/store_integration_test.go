//go:build integration

package database_test

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/zatekoja/coveragecompare/internal/adapters/database"
	"github.com/zatekoja/coveragecompare/internal/application"
	"github.com/zatekoja/coveragecompare/internal/application/services"
	"github.com/zatekoja/coveragecompare/internal/domain/entities"
	"github.com/zatekoja/coveragecompare/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/coveragecompare/pkg/config"
	apperrors "github.com/zatekoja/coveragecompare/pkg/errors"
	"github.com/zatekoja/coveragecompare/pkg/utils"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func newTestPostgresClient(t *testing.T) *postgres.Client {
	t.Helper()
	port, err := strconv.Atoi(getEnv("TEST_DB_PORT", "5432"))
	require.NoError(t, err)

	client, err := postgres.NewClient(&config.DatabaseConfig{
		Host:         os.Getenv("TEST_DB_HOST"),
		Port:         port,
		User:         getEnv("TEST_DB_USER", "postgres"),
		Password:     getEnv("TEST_DB_PASSWORD", "postgres"),
		Database:     getEnv("TEST_DB_NAME", "coveragecompare_test"),
		SSLMode:      getEnv("TEST_DB_SSLMODE", "disable"),
		QueryTimeout: 5 * time.Second,
	})
	require.NoError(t, err, "Failed to create postgres client")
	return client
}

func resetCanonTables(t *testing.T, client *postgres.Client) {
	t.Helper()
	_, err := client.DB().Exec(`
		TRUNCATE TABLE
			audit_log, event_suggestions, mapping_events, canonical_decisions,
			coverage_disease_scopes, disease_code_group_members, disease_code_groups,
			coverage_slots, coverage_mappings, universe_rows, coverage_name_maps,
			coverage_aliases, disease_codes, canonical_coverages
		CASCADE`)
	require.NoError(t, err)
}

// PostgresStoreIntegrationTestSuite runs the engine against a real database
type PostgresStoreIntegrationTestSuite struct {
	suite.Suite
	client *postgres.Client
	engine *application.Engine
}

func TestPostgresStoreIntegration(t *testing.T) {
	if os.Getenv("TEST_DB_HOST") == "" {
		t.Skip("Skipping integration test: TEST_DB_HOST not set")
	}
	suite.Run(t, new(PostgresStoreIntegrationTestSuite))
}

// SetupSuite connects and migrates once
func (s *PostgresStoreIntegrationTestSuite) SetupSuite() {
	s.client = newTestPostgresClient(s.T())
	_, err := postgres.Migrate(context.Background(), s.client)
	s.Require().NoError(err)
}

// TearDownSuite runs once after the suite
func (s *PostgresStoreIntegrationTestSuite) TearDownSuite() {
	if s.client != nil {
		s.client.Close()
	}
}

// SetupTest starts every test from empty tables and a fresh engine
func (s *PostgresStoreIntegrationTestSuite) SetupTest() {
	resetCanonTables(s.T(), s.client)

	normalizer, err := utils.NewDefaultCoverageNormalizer()
	s.Require().NoError(err)
	s.engine, err = application.NewEngine(config.CanonConfig{
		FuzzyThreshold:               0.85,
		CandidateConfidenceThreshold: 0.8,
		AllowedEntityTypes:           []string{"coverage"},
		ClassificationVersion:        "KCD8",
		SnoozeDuration:               24 * time.Hour,
		AliasIndexCacheTTL:           time.Minute,
		AliasIndexLRUSize:            4,
		ReResolveWorkers:             2,
	}, application.Dependencies{Store: database.NewStore(s.client), Normalizer: normalizer})
	s.Require().NoError(err)

	bundle, err := services.ParseRegistryBundle([]byte(`
coverages:
  - {code: CBV_DIAG, display_name: 뇌혈관질환진단비, family: cerebrovascular, event_type: DIAGNOSIS}
  - {code: CA_SURGERY, display_name: 암수술비, family: cancer, event_type: SURGERY}
aliases:
  - {alias: 암수술 특약, canonical_code: CA_SURGERY}
`))
	s.Require().NoError(err)
	_, err = s.engine.Importer.Import(context.Background(), bundle, "it")
	s.Require().NoError(err)
}

// TearDownTest runs after each test
func (s *PostgresStoreIntegrationTestSuite) TearDownTest() {
	if s.engine != nil {
		s.engine.Stop()
	}
}

func (s *PostgresStoreIntegrationTestSuite) TestMigrateIsIdempotent() {
	applied, err := postgres.Migrate(context.Background(), s.client)
	s.Require().NoError(err)
	s.Empty(applied)
}

func (s *PostgresStoreIntegrationTestSuite) TestRegistryReimportIsUnchanged() {
	bundle, err := services.ParseRegistryBundle([]byte(`
coverages:
  - {code: CA_SURGERY, display_name: 암수술비, family: cancer, event_type: SURGERY}
`))
	s.Require().NoError(err)
	report, err := s.engine.Importer.Import(context.Background(), bundle, "it")
	s.Require().NoError(err)
	s.Equal(0, report.Coverages.Inserted)
	s.Equal(1, report.Coverages.Unchanged)
}

func (s *PostgresStoreIntegrationTestSuite) TestIngestApproveFlow() {
	t := s.T()
	ctx := context.Background()
	engine := s.engine

	results, err := engine.Universe.IngestBatch(ctx, []entities.UniverseRowCandidate{
		{Insurer: "HANWHA", ProposalID: "it-1", DocumentID: "d", Page: 1, RawCoverageName: "암수술 특약", SpanText: "암수술 특약 1,000만원"},
		{Insurer: "HANWHA", ProposalID: "it-1", DocumentID: "d", Page: 1, RawCoverageName: "특정순환계질환진단비", SpanText: "특정순환계질환진단비 500만원"},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, entities.IngestStatusInserted, results[0].Status)

	// Re-ingesting the same span is idempotent
	again, err := engine.Universe.IngestBatch(ctx, []entities.UniverseRowCandidate{
		{Insurer: "HANWHA", ProposalID: "it-1", DocumentID: "d", Page: 1, RawCoverageName: "암수술 특약", SpanText: "암수술 특약 1,000만원"},
	})
	require.NoError(t, err)
	assert.Equal(t, entities.IngestStatusDuplicate, again[0].Status)

	report, err := engine.ReResolver.ReResolveProposal(ctx, "HANWHA", "it-1")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Mapped)
	assert.Equal(t, 1, report.Unmapped)

	events, total, err := engine.Workbench.ListEvents(ctx, entities.EventFilter{State: entities.EventStateOpen, Insurer: "HANWHA", Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 1, total)

	_, err = engine.Workbench.Approve(ctx, services.NewApproveCommand(events[0].ID, "CBV_DIAG", "", "circulatory wording", "ops", nil))
	require.NoError(t, err)

	res, err := engine.Compare.Resolve(ctx, "HANWHA", "특정순환계질환진단비", "it-1")
	require.NoError(t, err)
	require.NotNil(t, res.CanonicalCode)
	assert.Equal(t, "CBV_DIAG", *res.CanonicalCode)

	_, err = engine.Workbench.Reject(ctx, services.NewRejectCommand(events[0].ID, "late", "ops"))
	assert.Equal(t, apperrors.ErrorTypeConflict, apperrors.TypeOf(err))

	audit, err := engine.Workbench.ListAudit(ctx, entities.AuditFilter{EventID: events[0].ID})
	require.NoError(t, err)
	require.Len(t, audit, 1)
	assert.Equal(t, "ops", audit[0].Actor)
}

func (s *PostgresStoreIntegrationTestSuite) TestAppendOnlyTablesRejectEdits() {
	_, err := s.client.DB().Exec(`UPDATE canonical_coverages SET display_name = 'renamed' WHERE code = 'CA_SURGERY'`)
	s.Error(err)
	_, err = s.client.DB().Exec(`DELETE FROM canonical_coverages WHERE code = 'CA_SURGERY'`)
	s.Error(err)

	_, err = s.client.DB().Exec(`INSERT INTO disease_codes (code, classification_version, name) VALUES ('C16', 'KCD8', '위의 악성신생물')`)
	s.Require().NoError(err)
	_, err = s.client.DB().Exec(`UPDATE disease_codes SET name = 'renamed' WHERE code = 'C16'`)
	s.Error(err)
	_, err = s.client.DB().Exec(`DELETE FROM disease_codes WHERE code = 'C16'`)
	s.Error(err)
}
