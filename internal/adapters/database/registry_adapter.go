package database

import (
	"context"

	"github.com/doug-martin/goqu/v9"

	"github.com/zatekoja/coveragecompare/internal/domain/entities"
	"github.com/zatekoja/coveragecompare/internal/domain/repositories"
	"github.com/zatekoja/coveragecompare/internal/infrastructure/clients/postgres"
)

var coverageColumns = []interface{}{
	"code", "display_name", "family", "event_type", "requires_decision", "requires_disease_scope", "created_at",
}

// RegistryAdapter implements RegistryRepository
type RegistryAdapter struct {
	base
}

var _ repositories.RegistryRepository = (*RegistryAdapter)(nil)

// NewRegistryAdapter creates a new registry adapter
func NewRegistryAdapter(client *postgres.Client) *RegistryAdapter {
	return &RegistryAdapter{base: newBase(client)}
}

// InsertCoverages inserts codes that do not exist yet
func (a *RegistryAdapter) InsertCoverages(ctx context.Context, coverages []entities.CoverageDefinition) (int, error) {
	if len(coverages) == 0 {
		return 0, nil
	}
	rows := make([]interface{}, 0, len(coverages))
	for _, c := range coverages {
		rows = append(rows, goqu.Record{
			"code":                   c.Code,
			"display_name":           c.DisplayName,
			"family":                 c.Family,
			"event_type":             c.EventType,
			"requires_decision":      c.RequiresDecision,
			"requires_disease_scope": c.RequiresDiseaseScope,
		})
	}
	ds := dialect.Insert("canonical_coverages").Rows(rows...).OnConflict(goqu.DoNothing()).Prepared(true)
	n, err := a.exec(ctx, a.client.X(), ds, "insert canonical coverages")
	return int(n), err
}

// GetCoverage retrieves a coverage by code
func (a *RegistryAdapter) GetCoverage(ctx context.Context, code string) (*entities.CanonicalCoverage, error) {
	var def entities.CoverageDefinition
	ds := dialect.From("canonical_coverages").Select(coverageColumns...).Where(goqu.Ex{"code": code}).Prepared(true)
	if err := a.get(ctx, a.client.X(), &def, ds, "canonical coverage "+code); err != nil {
		return nil, err
	}
	return entities.RestoreCanonicalCoverage(def), nil
}

// GetCoverages retrieves the coverages among codes in one query
func (a *RegistryAdapter) GetCoverages(ctx context.Context, codes []string) ([]*entities.CanonicalCoverage, error) {
	if len(codes) == 0 {
		return []*entities.CanonicalCoverage{}, nil
	}
	defs := []entities.CoverageDefinition{}
	ds := dialect.From("canonical_coverages").Select(coverageColumns...).
		Where(goqu.C("code").In(codes)).Order(goqu.C("code").Asc()).Prepared(true)
	if err := a.selectAll(ctx, a.client.X(), &defs, ds, "canonical coverages"); err != nil {
		return nil, err
	}
	return entities.RestoreCanonicalCoverages(defs), nil
}

// CoverageExists checks whether a code is published
func (a *RegistryAdapter) CoverageExists(ctx context.Context, code string) (bool, error) {
	ds := dialect.From("canonical_coverages").Where(goqu.Ex{"code": code}).Prepared(true)
	return a.exists(ctx, a.client.X(), ds, "canonical coverage")
}

// ListCoverages retrieves all published coverages ordered by code
func (a *RegistryAdapter) ListCoverages(ctx context.Context) ([]*entities.CanonicalCoverage, error) {
	defs := []entities.CoverageDefinition{}
	ds := dialect.From("canonical_coverages").Select(coverageColumns...).Order(goqu.C("code").Asc()).Prepared(true)
	if err := a.selectAll(ctx, a.client.X(), &defs, ds, "canonical coverages"); err != nil {
		return nil, err
	}
	return entities.RestoreCanonicalCoverages(defs), nil
}

// InsertDiseaseCodes inserts disease codes that do not exist yet
func (a *RegistryAdapter) InsertDiseaseCodes(ctx context.Context, codes []*entities.DiseaseCode) (int, error) {
	if len(codes) == 0 {
		return 0, nil
	}
	rows := make([]interface{}, 0, len(codes))
	for _, c := range codes {
		rows = append(rows, goqu.Record{
			"code":                   c.Code,
			"classification_version": c.ClassificationVersion,
			"name":                   c.Name,
		})
	}
	ds := dialect.Insert("disease_codes").Rows(rows...).OnConflict(goqu.DoNothing()).Prepared(true)
	n, err := a.exec(ctx, a.client.X(), ds, "insert disease codes")
	return int(n), err
}

// ListDiseaseCodes retrieves the disease code master for a classification version
func (a *RegistryAdapter) ListDiseaseCodes(ctx context.Context, classificationVersion string) ([]*entities.DiseaseCode, error) {
	codes := []*entities.DiseaseCode{}
	ds := dialect.From("disease_codes").
		Select("code", "classification_version", "name").
		Where(goqu.Ex{"classification_version": classificationVersion}).
		Order(goqu.C("code").Asc()).
		Prepared(true)
	if err := a.selectAll(ctx, a.client.X(), &codes, ds, "disease codes"); err != nil {
		return nil, err
	}
	return codes, nil
}

// DiseaseCodeExists checks whether a disease code is in the master
func (a *RegistryAdapter) DiseaseCodeExists(ctx context.Context, code string) (bool, error) {
	ds := dialect.From("disease_codes").Where(goqu.Ex{"code": code}).Prepared(true)
	return a.exists(ctx, a.client.X(), ds, "disease code")
}
