package database_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/coveragecompare/internal/adapters/database"
	"github.com/zatekoja/coveragecompare/internal/domain/entities"
	apperrors "github.com/zatekoja/coveragecompare/pkg/errors"
)

func TestUniverseAdapter_Insert(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("assigns id and created_at", func(t *testing.T) {
		client, mock := setupMockClient(t)
		adapter := database.NewUniverseAdapter(client)

		mock.ExpectQuery(`INSERT INTO "universe_rows" .+ ON CONFLICT DO NOTHING RETURNING "created_at"`).
			WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

		row := &entities.UniverseRow{Insurer: "SAMSUNG", ProposalID: "P1", Page: 3, RawCoverageName: "암 진단비", NormalizedName: "암진단비", ContentHash: "h1"}
		inserted, err := adapter.Insert(ctx, row)
		require.NoError(t, err)
		assert.True(t, inserted)
		assert.NotEmpty(t, row.ID)
		assert.Equal(t, created, row.CreatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate is not inserted", func(t *testing.T) {
		client, mock := setupMockClient(t)
		adapter := database.NewUniverseAdapter(client)

		mock.ExpectQuery(`INSERT INTO "universe_rows"`).
			WillReturnRows(sqlmock.NewRows([]string{"created_at"}))

		row := &entities.UniverseRow{Insurer: "SAMSUNG", ProposalID: "P1", RawCoverageName: "암 진단비", NormalizedName: "암진단비", ContentHash: "h1"}
		inserted, err := adapter.Insert(ctx, row)
		require.NoError(t, err)
		assert.False(t, inserted)
		assert.Empty(t, row.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("check violation is a validation error", func(t *testing.T) {
		client, mock := setupMockClient(t)
		adapter := database.NewUniverseAdapter(client)

		mock.ExpectQuery(`INSERT INTO "universe_rows"`).
			WillReturnError(&pq.Error{Code: "23514", Constraint: "universe_rows_page_check"})

		_, err := adapter.Insert(ctx, &entities.UniverseRow{Insurer: "SAMSUNG", Page: -1})
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.ErrorTypeValidation))
	})
}

func TestUniverseAdapter_GetByID(t *testing.T) {
	ctx := context.Background()

	t.Run("non uuid id is not found without a query", func(t *testing.T) {
		client, mock := setupMockClient(t)
		adapter := database.NewUniverseAdapter(client)

		_, err := adapter.GetByID(ctx, "row-1")
		assert.True(t, apperrors.Is(err, apperrors.ErrorTypeNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row is not found", func(t *testing.T) {
		client, mock := setupMockClient(t)
		adapter := database.NewUniverseAdapter(client)

		mock.ExpectQuery(`SELECT .+ FROM "universe_rows" WHERE`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := adapter.GetByID(ctx, "4f1c2a8e-0d55-4b3c-9d0e-6f1f2c3b4a5d")
		assert.True(t, apperrors.Is(err, apperrors.ErrorTypeNotFound))
	})

	t.Run("transient failure is retried", func(t *testing.T) {
		client, mock := setupMockClient(t)
		adapter := database.NewUniverseAdapter(client)
		id := "4f1c2a8e-0d55-4b3c-9d0e-6f1f2c3b4a5d"

		mock.ExpectQuery(`SELECT .+ FROM "universe_rows"`).
			WillReturnError(&pq.Error{Code: "40001"})
		mock.ExpectQuery(`SELECT .+ FROM "universe_rows"`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "insurer", "proposal_id", "page", "raw_coverage_name"}).
				AddRow(id, "KB", "P9", 2, "뇌출혈진단비"))

		row, err := adapter.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "KB", row.Insurer)
		assert.Equal(t, 2, row.Page)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("other failures are internal", func(t *testing.T) {
		client, mock := setupMockClient(t)
		adapter := database.NewUniverseAdapter(client)

		mock.ExpectQuery(`SELECT .+ FROM "universe_rows"`).WillReturnError(fmt.Errorf("syntax error"))

		_, err := adapter.GetByID(ctx, "4f1c2a8e-0d55-4b3c-9d0e-6f1f2c3b4a5d")
		assert.True(t, apperrors.Is(err, apperrors.ErrorTypeInternal))
	})
}

func TestUniverseAdapter_ListAfter(t *testing.T) {
	client, mock := setupMockClient(t)
	adapter := database.NewUniverseAdapter(client)

	mock.ExpectQuery(`SELECT .+ FROM "universe_rows" WHERE .*"id" > \$1.* ORDER BY "id" ASC LIMIT`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "insurer"}).AddRow("b", "KB").AddRow("c", "KB"))

	rows, err := adapter.ListAfter(context.Background(), "a", 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "c", rows[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
