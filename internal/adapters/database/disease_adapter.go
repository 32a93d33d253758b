package database

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/zatekoja/coveragecompare/internal/domain/entities"
	"github.com/zatekoja/coveragecompare/internal/domain/repositories"
	"github.com/zatekoja/coveragecompare/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/coveragecompare/pkg/errors"
)

var scopeColumns = []interface{}{
	"id", "canonical_code", "insurer", "proposal_id", "include_group_id", "exclude_group_id",
	"source_document_id", "page", "text_span", "created_at",
}

type groupRow struct {
	entities.DiseaseCodeGroup
	Owner *string `db:"owner"`
	entities.Provenance
}

type memberRow struct {
	Code     *string `db:"code"`
	CodeFrom *string `db:"code_from"`
	CodeTo   *string `db:"code_to"`
}

type scopeRow struct {
	entities.CoverageDiseaseScope
	entities.Provenance
}

func (r *scopeRow) scope() *entities.CoverageDiseaseScope {
	s := r.CoverageDiseaseScope
	s.Provenance = r.Provenance
	return &s
}

// DiseaseAdapter implements DiseaseRepository
type DiseaseAdapter struct {
	base
}

var _ repositories.DiseaseRepository = (*DiseaseAdapter)(nil)

// NewDiseaseAdapter creates a new disease adapter
func NewDiseaseAdapter(client *postgres.Client) *DiseaseAdapter {
	return &DiseaseAdapter{base: newBase(client)}
}

// CreateGroup stores a group and its members in one transaction
func (a *DiseaseAdapter) CreateGroup(ctx context.Context, group *entities.DiseaseCodeGroup) error {
	record := goqu.Record{
		"id":                 group.ID,
		"label":              group.Label,
		"kind":               string(group.Kind),
		"owning_insurer":     nil,
		"source_document_id": group.Provenance.SourceDocumentID,
		"page":               group.Provenance.Page,
		"text_span":          group.Provenance.TextSpan,
	}
	if group.OwningInsurer != "" {
		record["owning_insurer"] = group.OwningInsurer
	}
	if !group.CreatedAt.IsZero() {
		record["created_at"] = group.CreatedAt
	}

	members := make([]interface{}, 0, len(group.Members))
	for _, m := range group.Members {
		row := goqu.Record{"group_id": group.ID, "code": nil, "code_from": nil, "code_to": nil}
		if m.IsRange() {
			from, to := m.Range()
			row["code_from"], row["code_to"] = from, to
		} else {
			row["code"] = m.Code()
		}
		members = append(members, row)
	}

	return a.withTx(ctx, nil, func(tx *sqlx.Tx) error {
		ds := dialect.Insert("disease_code_groups").Rows(record).Prepared(true)
		if _, err := a.exec(ctx, tx, ds, "create disease group "+group.ID); err != nil {
			return err
		}
		if len(members) == 0 {
			return nil
		}
		_, err := a.exec(ctx, tx, dialect.Insert("disease_code_group_members").Rows(members...).Prepared(true), "add group members")
		return err
	})
}

// GetGroup retrieves a group with its members
func (a *DiseaseAdapter) GetGroup(ctx context.Context, id string) (*entities.DiseaseCodeGroup, error) {
	row := &groupRow{}
	ds := dialect.From("disease_code_groups").
		Select("id", "label", "kind", goqu.I("owning_insurer").As("owner"), "source_document_id", "page", "text_span", "created_at").
		Where(goqu.Ex{"id": id}).Prepared(true)
	if err := a.get(ctx, a.client.X(), row, ds, "disease group "+id); err != nil {
		return nil, err
	}

	var members []memberRow
	mds := dialect.From("disease_code_group_members").Select("code", "code_from", "code_to").
		Where(goqu.Ex{"group_id": id}).Order(goqu.C("id").Asc()).Prepared(true)
	if err := a.selectAll(ctx, a.client.X(), &members, mds, "group members"); err != nil {
		return nil, err
	}

	group := row.DiseaseCodeGroup
	group.Provenance = row.Provenance
	if row.Owner != nil {
		group.OwningInsurer = *row.Owner
	}
	group.Members = make([]entities.DiseaseCodeGroupMember, 0, len(members))
	for _, m := range members {
		member, err := entities.MemberFromColumns(m.Code, m.CodeFrom, m.CodeTo)
		if err != nil {
			return nil, apperrors.NewInternalError(fmt.Sprintf("invalid member in group %s", id), err)
		}
		group.Members = append(group.Members, member)
	}
	return &group, nil
}

// SaveScope upserts the scope of (canonical code, insurer, proposal)
func (a *DiseaseAdapter) SaveScope(ctx context.Context, scope *entities.CoverageDiseaseScope) error {
	if scope.ID == "" {
		scope.ID = uuid.NewString()
	}
	record := goqu.Record{
		"id":                 scope.ID,
		"canonical_code":     scope.CanonicalCode,
		"insurer":            scope.Insurer,
		"proposal_id":        scope.ProposalID,
		"include_group_id":   scope.IncludeGroupID,
		"exclude_group_id":   scope.ExcludeGroupID,
		"source_document_id": scope.Provenance.SourceDocumentID,
		"page":               scope.Provenance.Page,
		"text_span":          scope.Provenance.TextSpan,
	}
	if !scope.CreatedAt.IsZero() {
		record["created_at"] = scope.CreatedAt
	}
	query, args, err := dialect.Insert("coverage_disease_scopes").Rows(record).
		OnConflict(goqu.DoUpdate("canonical_code, insurer, proposal_id", goqu.Record{
			"include_group_id":   goqu.L("EXCLUDED.include_group_id"),
			"exclude_group_id":   goqu.L("EXCLUDED.exclude_group_id"),
			"source_document_id": goqu.L("EXCLUDED.source_document_id"),
			"page":               goqu.L("EXCLUDED.page"),
			"text_span":          goqu.L("EXCLUDED.text_span"),
		})).
		Returning("id", "created_at").
		Prepared(true).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build query", err)
	}

	ctx, cancel := a.client.WithTimeout(ctx)
	defer cancel()
	if err := a.client.X().QueryRowxContext(ctx, query, args...).Scan(&scope.ID, &scope.CreatedAt); err != nil {
		return writeError("save disease scope", err)
	}
	return nil
}

// GetScope retrieves the scope of (canonical code, insurer, proposal)
func (a *DiseaseAdapter) GetScope(ctx context.Context, canonicalCode, insurer, proposalID string) (*entities.CoverageDiseaseScope, error) {
	row := &scopeRow{}
	ds := dialect.From("coverage_disease_scopes").Select(scopeColumns...).
		Where(goqu.Ex{"canonical_code": canonicalCode, "insurer": insurer, "proposal_id": proposalID}).
		Prepared(true)
	what := fmt.Sprintf("disease scope for %s/%s/%s", canonicalCode, insurer, proposalID)
	if err := a.get(ctx, a.client.X(), row, ds, what); err != nil {
		return nil, err
	}
	return row.scope(), nil
}

// DeleteScopesByProposal removes scopes derived from one proposal
func (a *DiseaseAdapter) DeleteScopesByProposal(ctx context.Context, insurer, proposalID string) (int64, error) {
	ds := dialect.Delete("coverage_disease_scopes").
		Where(goqu.Ex{"insurer": insurer, "proposal_id": proposalID}).Prepared(true)
	return a.exec(ctx, a.client.X(), ds, "delete disease scopes")
}
