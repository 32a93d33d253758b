package database_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/coveragecompare/internal/adapters/database"
)

func TestRegistryAdapter_GetCoverages(t *testing.T) {
	t.Run("loads every code in one query", func(t *testing.T) {
		client, mock := setupMockClient(t)
		adapter := database.NewRegistryAdapter(client)

		mock.ExpectQuery(`SELECT .+ FROM "canonical_coverages" WHERE \("code" IN \(\$1, \$2\)\) ORDER BY "code" ASC`).
			WithArgs("CA_SURGERY", "CBV_DIAG").
			WillReturnRows(sqlmock.NewRows([]string{"code", "display_name", "family", "event_type", "requires_decision", "requires_disease_scope"}).
				AddRow("CA_SURGERY", "암수술비", "cancer", "SURGERY", false, false).
				AddRow("CBV_DIAG", "뇌혈관질환진단비", "cerebrovascular", "DIAGNOSIS", false, false))

		coverages, err := adapter.GetCoverages(context.Background(), []string{"CA_SURGERY", "CBV_DIAG"})
		require.NoError(t, err)
		require.Len(t, coverages, 2)
		assert.Equal(t, "CA_SURGERY", coverages[0].Code().String())
		assert.Equal(t, "뇌혈관질환진단비", coverages[1].DisplayName)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no codes skips the query", func(t *testing.T) {
		client, mock := setupMockClient(t)
		adapter := database.NewRegistryAdapter(client)

		coverages, err := adapter.GetCoverages(context.Background(), nil)
		require.NoError(t, err)
		assert.Empty(t, coverages)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
