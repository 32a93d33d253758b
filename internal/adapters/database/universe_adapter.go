package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/zatekoja/coveragecompare/internal/domain/entities"
	"github.com/zatekoja/coveragecompare/internal/domain/repositories"
	"github.com/zatekoja/coveragecompare/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/coveragecompare/pkg/errors"
)

var universeColumns = []interface{}{
	"id", "insurer", "proposal_id", "document_id", "page", "raw_coverage_name",
	"normalized_name", "span_text", "amount", "content_hash", "created_at",
}

// UniverseAdapter implements UniverseRepository
type UniverseAdapter struct {
	base
}

var _ repositories.UniverseRepository = (*UniverseAdapter)(nil)

// NewUniverseAdapter creates a new universe adapter
func NewUniverseAdapter(client *postgres.Client) *UniverseAdapter {
	return &UniverseAdapter{base: newBase(client)}
}

// Insert stores a row unless its content hash or name key already exists
func (a *UniverseAdapter) Insert(ctx context.Context, row *entities.UniverseRow) (bool, error) {
	id := row.ID
	if id == "" {
		id = uuid.NewString()
	}
	query, args, err := dialect.Insert("universe_rows").
		Rows(goqu.Record{
			"id":                id,
			"insurer":           row.Insurer,
			"proposal_id":       row.ProposalID,
			"document_id":       row.DocumentID,
			"page":              row.Page,
			"raw_coverage_name": row.RawCoverageName,
			"normalized_name":   row.NormalizedName,
			"span_text":         row.SpanText,
			"amount":            row.Amount,
			"content_hash":      row.ContentHash,
		}).
		OnConflict(goqu.DoNothing()).
		Returning("created_at").
		Prepared(true).
		ToSQL()
	if err != nil {
		return false, apperrors.NewInternalError("failed to build insert query", err)
	}

	ctx, cancel := a.client.WithTimeout(ctx)
	defer cancel()
	err = a.client.X().QueryRowxContext(ctx, query, args...).Scan(&row.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, writeError("insert universe row", err)
	}
	row.ID = id
	return true, nil
}

func (a *UniverseAdapter) getBy(ctx context.Context, ex goqu.Ex, what string) (*entities.UniverseRow, error) {
	row := &entities.UniverseRow{}
	ds := dialect.From("universe_rows").Select(universeColumns...).Where(ex).Prepared(true)
	if err := a.get(ctx, a.client.X(), row, ds, what); err != nil {
		return nil, err
	}
	return row, nil
}

// GetByID retrieves a row by ID
func (a *UniverseAdapter) GetByID(ctx context.Context, id string) (*entities.UniverseRow, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.NewNotFoundError("universe row " + id + " not found")
	}
	return a.getBy(ctx, goqu.Ex{"id": id}, "universe row "+id)
}

// FindByContentHash retrieves the row with the given content hash
func (a *UniverseAdapter) FindByContentHash(ctx context.Context, hash string) (*entities.UniverseRow, error) {
	return a.getBy(ctx, goqu.Ex{"content_hash": hash}, "universe row")
}

// FindByName retrieves the row for (insurer, proposal, normalized name)
func (a *UniverseAdapter) FindByName(ctx context.Context, insurer, proposalID, normalizedName string) (*entities.UniverseRow, error) {
	return a.getBy(ctx, goqu.Ex{
		"insurer":         insurer,
		"proposal_id":     proposalID,
		"normalized_name": normalizedName,
	}, "universe row")
}

func (a *UniverseAdapter) list(ctx context.Context, ds *goqu.SelectDataset) ([]*entities.UniverseRow, error) {
	rows := []*entities.UniverseRow{}
	if err := a.selectAll(ctx, a.client.X(), &rows, ds.Prepared(true), "universe rows"); err != nil {
		return nil, err
	}
	return rows, nil
}

// FindByInsurerKey retrieves rows of an insurer sharing a normalized name, oldest first
func (a *UniverseAdapter) FindByInsurerKey(ctx context.Context, insurer, normalizedName string) ([]*entities.UniverseRow, error) {
	return a.list(ctx, dialect.From("universe_rows").Select(universeColumns...).
		Where(goqu.Ex{"insurer": insurer, "normalized_name": normalizedName}).
		Order(goqu.C("created_at").Asc(), goqu.C("id").Asc()))
}

// ListByProposal retrieves the rows of one proposal in document order
func (a *UniverseAdapter) ListByProposal(ctx context.Context, insurer, proposalID string) ([]*entities.UniverseRow, error) {
	return a.list(ctx, dialect.From("universe_rows").Select(universeColumns...).
		Where(goqu.Ex{"insurer": insurer, "proposal_id": proposalID}).
		Order(goqu.C("page").Asc(), goqu.C("created_at").Asc(), goqu.C("id").Asc()))
}

// ListAfter pages through all rows by ID
func (a *UniverseAdapter) ListAfter(ctx context.Context, afterID string, limit int) ([]*entities.UniverseRow, error) {
	ds := dialect.From("universe_rows").Select(universeColumns...).Order(goqu.C("id").Asc()).Limit(uint(limit))
	if afterID != "" {
		ds = ds.Where(goqu.C("id").Gt(afterID))
	}
	return a.list(ctx, ds)
}

// DeleteByProposal removes the rows of one proposal. Mappings and slots go
// with them through the foreign keys.
func (a *UniverseAdapter) DeleteByProposal(ctx context.Context, insurer, proposalID string) (int64, error) {
	ds := dialect.Delete("universe_rows").Where(goqu.Ex{"insurer": insurer, "proposal_id": proposalID}).Prepared(true)
	return a.exec(ctx, a.client.X(), ds, "delete universe rows")
}
