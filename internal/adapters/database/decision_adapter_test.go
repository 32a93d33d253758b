package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/coveragecompare/internal/adapters/database"
	"github.com/zatekoja/coveragecompare/internal/domain/entities"
)

func TestDecisionAdapter_Save(t *testing.T) {
	client, mock := setupMockClient(t)
	adapter := database.NewDecisionAdapter(client)

	mock.ExpectExec(`INSERT INTO "canonical_decisions" .+ ON CONFLICT \(coverage_name_raw, insurer\) DO UPDATE SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := adapter.Save(context.Background(), entities.DecisionRecord{
		CoverageNameRaw: "암진단비(유사암제외)",
		Insurer:         "SAMSUNG",
		Status:          entities.DecisionStatusUndecided,
		DecidedAt:       time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDecisionAdapter_Get(t *testing.T) {
	client, mock := setupMockClient(t)
	adapter := database.NewDecisionAdapter(client)
	decidedAt := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT .+ FROM "canonical_decisions" WHERE`).
		WillReturnRows(sqlmock.NewRows([]string{
			"coverage_name_raw", "insurer", "decision_status", "recalled_candidates", "decided_codes", "evidence", "decided_at",
		}).AddRow(
			"암진단비", "SAMSUNG", "DECIDED", "{CA_DIAG_GENERAL,CA_DIAG_SIMILAR}", "{CA_DIAG_GENERAL}",
			`[{"canonical_code":"CA_DIAG_GENERAL","document_id":"policy-1","page":12,"text":"암으로 진단 확정"}]`,
			decidedAt,
		))

	rec, err := adapter.Get(context.Background(), "암진단비", "SAMSUNG")
	require.NoError(t, err)
	assert.Equal(t, entities.DecisionStatusDecided, rec.Status)
	assert.Equal(t, []string{"CA_DIAG_GENERAL"}, rec.DecidedCodes)
	assert.Len(t, rec.RecalledCandidates, 2)
	require.Len(t, rec.Evidence, 1)
	assert.Equal(t, 12, rec.Evidence[0].Page)
	assert.Equal(t, decidedAt, rec.DecidedAt)
}

func TestDecisionAdapter_Counts(t *testing.T) {
	client, mock := setupMockClient(t)
	adapter := database.NewDecisionAdapter(client)

	mock.ExpectQuery(`SELECT "decision_status", COUNT\(\*\) AS "count" FROM "canonical_decisions" GROUP BY "decision_status"`).
		WillReturnRows(sqlmock.NewRows([]string{"decision_status", "count"}).
			AddRow("DECIDED", 7).
			AddRow("UNDECIDED", 3))

	decided, undecided, err := adapter.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), decided)
	assert.Equal(t, int64(3), undecided)
	assert.NoError(t, mock.ExpectationsWereMet())
}
