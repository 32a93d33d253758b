package database

import (
	"context"
	"database/sql"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/zatekoja/coveragecompare/internal/domain/entities"
	"github.com/zatekoja/coveragecompare/internal/domain/repositories"
	"github.com/zatekoja/coveragecompare/internal/infrastructure/clients/postgres"
)

var (
	aliasColumns   = []interface{}{"id", "insurer", "alias_text", "normalized_key", "canonical_code", "source", "created_by", "created_at"}
	nameMapColumns = []interface{}{"id", "insurer", "raw_title", "canonical_code", "created_by", "created_at"}
)

// AliasAdapter implements AliasRepository
type AliasAdapter struct {
	base
}

var _ repositories.AliasRepository = (*AliasAdapter)(nil)

// NewAliasAdapter creates a new alias adapter
func NewAliasAdapter(client *postgres.Client) *AliasAdapter {
	return &AliasAdapter{base: newBase(client)}
}

func aliasVersionQuery() *goqu.SelectDataset {
	return dialect.From("alias_version").Select("version").Where(goqu.Ex{"id": 1}).Prepared(true)
}

// CurrentVersion returns the alias table version
func (a *AliasAdapter) CurrentVersion(ctx context.Context) (int64, error) {
	var version int64
	if err := a.get(ctx, a.client.X(), &version, aliasVersionQuery(), "alias version"); err != nil {
		return 0, err
	}
	return version, nil
}

// LoadTable reads the version and every alias and name map from one snapshot
func (a *AliasAdapter) LoadTable(ctx context.Context) (*entities.AliasTable, error) {
	table := &entities.AliasTable{Aliases: []*entities.AliasRecord{}, NameMaps: []*entities.NameMapRecord{}}
	opts := &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	err := a.withTx(ctx, opts, func(tx *sqlx.Tx) error {
		if err := a.get(ctx, tx, &table.Version, aliasVersionQuery(), "alias version"); err != nil {
			return err
		}
		aliases := dialect.From("coverage_aliases").Select(aliasColumns...).
			Order(goqu.C("insurer").Asc(), goqu.C("normalized_key").Asc()).Prepared(true)
		if err := a.selectAll(ctx, tx, &table.Aliases, aliases, "aliases"); err != nil {
			return err
		}
		nameMaps := dialect.From("coverage_name_maps").Select(nameMapColumns...).
			Order(goqu.C("insurer").Asc(), goqu.C("raw_title").Asc()).Prepared(true)
		return a.selectAll(ctx, tx, &table.NameMaps, nameMaps, "name maps")
	})
	if err != nil {
		return nil, err
	}
	return table, nil
}

// ImportAliases inserts seed aliases, skipping existing keys, and bumps the
// version in the same transaction when anything was written
func (a *AliasAdapter) ImportAliases(ctx context.Context, aliases []*entities.AliasRecord) (int, error) {
	if len(aliases) == 0 {
		return 0, nil
	}
	rows := make([]interface{}, 0, len(aliases))
	for _, al := range aliases {
		if al.ID == "" {
			al.ID = uuid.NewString()
		}
		rows = append(rows, aliasRecord(al))
	}

	var inserted int64
	err := a.withTx(ctx, nil, func(tx *sqlx.Tx) error {
		ds := dialect.Insert("coverage_aliases").Rows(rows...).OnConflict(goqu.DoNothing()).Prepared(true)
		n, err := a.exec(ctx, tx, ds, "import aliases")
		if err != nil {
			return err
		}
		inserted = n
		if n == 0 {
			return nil
		}
		_, err = bumpAliasVersion(ctx, &a.base, tx)
		return err
	})
	return int(inserted), err
}

func aliasRecord(al *entities.AliasRecord) goqu.Record {
	rec := goqu.Record{
		"id":             al.ID,
		"insurer":        al.Insurer,
		"alias_text":     al.AliasText,
		"normalized_key": al.NormalizedKey,
		"canonical_code": al.CanonicalCode,
		"source":         al.Source,
		"created_by":     al.CreatedBy,
	}
	if !al.CreatedAt.IsZero() {
		rec["created_at"] = al.CreatedAt
	}
	return rec
}

// bumpAliasVersion increments the version row and returns the new value
func bumpAliasVersion(ctx context.Context, b *base, q sqlx.QueryerContext) (int64, error) {
	query, args, err := dialect.Update("alias_version").
		Set(goqu.Record{"version": goqu.L("version + 1")}).
		Where(goqu.Ex{"id": 1}).
		Returning("version").
		Prepared(true).
		ToSQL()
	if err != nil {
		return 0, err
	}
	var version int64
	ctx, cancel := b.client.WithTimeout(ctx)
	defer cancel()
	if err := sqlx.GetContext(ctx, q, &version, query, args...); err != nil {
		return 0, writeError("bump alias version", err)
	}
	return version, nil
}
