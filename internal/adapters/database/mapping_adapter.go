package database

import (
	"context"
	"encoding/json"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/zatekoja/coveragecompare/internal/domain/entities"
	"github.com/zatekoja/coveragecompare/internal/domain/repositories"
	"github.com/zatekoja/coveragecompare/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/coveragecompare/pkg/errors"
)

var mappingColumns = []interface{}{
	"universe_row_id", "status", "canonical_code", "tier", "candidates", "evidence", "reason", "revision", "updated_at",
}

type mappingRow struct {
	entities.MappingRecord
	CandidateCodes pq.StringArray `db:"candidates"`
	EvidenceJSON   []byte         `db:"evidence"`
}

func (r *mappingRow) record() (*entities.MappingRecord, error) {
	rec := r.MappingRecord
	rec.Candidates = []string(r.CandidateCodes)
	if len(r.EvidenceJSON) > 0 {
		if err := json.Unmarshal(r.EvidenceJSON, &rec.Evidence); err != nil {
			return nil, apperrors.NewInternalError("failed to decode mapping evidence", err)
		}
	}
	return &rec, nil
}

func mappingRecordValues(rec entities.MappingRecord) (goqu.Record, error) {
	evidence := rec.Evidence
	if evidence == nil {
		evidence = []entities.MatchEvidence{}
	}
	raw, err := json.Marshal(evidence)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode mapping evidence", err)
	}
	candidates := rec.Candidates
	if candidates == nil {
		candidates = []string{}
	}
	return goqu.Record{
		"status":         string(rec.Status),
		"canonical_code": rec.CanonicalCode,
		"tier":           rec.Tier,
		"candidates":     pq.StringArray(candidates),
		"evidence":       string(raw),
		"reason":         rec.Reason,
		"updated_at":     rec.UpdatedAt,
	}, nil
}

// MappingAdapter implements MappingRepository
type MappingAdapter struct {
	base
}

var _ repositories.MappingRepository = (*MappingAdapter)(nil)

// NewMappingAdapter creates a new mapping adapter
func NewMappingAdapter(client *postgres.Client) *MappingAdapter {
	return &MappingAdapter{base: newBase(client)}
}

// Get retrieves the mapping record of a universe row
func (a *MappingAdapter) Get(ctx context.Context, universeRowID string) (*entities.MappingRecord, error) {
	row := &mappingRow{}
	ds := dialect.From("coverage_mappings").Select(mappingColumns...).
		Where(goqu.Ex{"universe_row_id": universeRowID}).Prepared(true)
	if err := a.get(ctx, a.client.X(), row, ds, "mapping for row "+universeRowID); err != nil {
		return nil, err
	}
	return row.record()
}

// Insert stores the first mapping of a row with revision 1
func (a *MappingAdapter) Insert(ctx context.Context, rec entities.MappingRecord) (bool, error) {
	values, err := mappingRecordValues(rec)
	if err != nil {
		return false, err
	}
	values["universe_row_id"] = rec.UniverseRowID
	values["revision"] = 1

	ds := dialect.Insert("coverage_mappings").Rows(values).OnConflict(goqu.DoNothing()).Prepared(true)
	n, err := a.exec(ctx, a.client.X(), ds, "insert mapping")
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// UpdateIfRevision replaces a mapping only if its revision is unchanged
func (a *MappingAdapter) UpdateIfRevision(ctx context.Context, rec entities.MappingRecord, expectedRevision int64) (bool, error) {
	values, err := mappingRecordValues(rec)
	if err != nil {
		return false, err
	}
	values["revision"] = goqu.L("revision + 1")

	ds := dialect.Update("coverage_mappings").Set(values).
		Where(goqu.Ex{"universe_row_id": rec.UniverseRowID, "revision": expectedRevision}).
		Prepared(true)
	n, err := a.exec(ctx, a.client.X(), ds, "update mapping")
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// SaveSlots upserts the slots of a MAPPED row
func (a *MappingAdapter) SaveSlots(ctx context.Context, slots *entities.CoverageSlots) error {
	raw, err := json.Marshal(slots)
	if err != nil {
		return apperrors.NewInternalError("failed to encode slots", err)
	}
	ds := dialect.Insert("coverage_slots").
		Rows(goqu.Record{
			"universe_row_id": slots.UniverseRowID,
			"canonical_code":  slots.CanonicalCode,
			"slots":           string(raw),
			"updated_at":      slots.UpdatedAt,
		}).
		OnConflict(goqu.DoUpdate("universe_row_id", goqu.Record{
			"canonical_code": goqu.L("EXCLUDED.canonical_code"),
			"slots":          goqu.L("EXCLUDED.slots"),
			"updated_at":     goqu.L("EXCLUDED.updated_at"),
		})).
		Prepared(true)
	_, err = a.exec(ctx, a.client.X(), ds, "save slots")
	return err
}

// GetSlots retrieves the slots of a row
func (a *MappingAdapter) GetSlots(ctx context.Context, universeRowID string) (*entities.CoverageSlots, error) {
	var raw []byte
	ds := dialect.From("coverage_slots").Select("slots").Where(goqu.Ex{"universe_row_id": universeRowID}).Prepared(true)
	if err := a.get(ctx, a.client.X(), &raw, ds, "slots for row "+universeRowID); err != nil {
		return nil, err
	}
	slots := &entities.CoverageSlots{}
	if err := json.Unmarshal(raw, slots); err != nil {
		return nil, apperrors.NewInternalError("failed to decode slots", err)
	}
	return slots, nil
}

// DeleteSlots removes the slots of a row
func (a *MappingAdapter) DeleteSlots(ctx context.Context, universeRowID string) error {
	ds := dialect.Delete("coverage_slots").Where(goqu.Ex{"universe_row_id": universeRowID}).Prepared(true)
	_, err := a.exec(ctx, a.client.X(), ds, "delete slots")
	return err
}

// DeleteByProposal removes mappings, and with them slots, derived from one proposal
func (a *MappingAdapter) DeleteByProposal(ctx context.Context, insurer, proposalID string) (int64, error) {
	rows := dialect.From("universe_rows").Select("id").Where(goqu.Ex{"insurer": insurer, "proposal_id": proposalID})
	var deleted int64
	err := a.withTx(ctx, nil, func(tx *sqlx.Tx) error {
		slots := dialect.Delete("coverage_slots").Where(goqu.C("universe_row_id").In(rows)).Prepared(true)
		if _, err := a.exec(ctx, tx, slots, "delete slots"); err != nil {
			return err
		}
		mappings := dialect.Delete("coverage_mappings").Where(goqu.C("universe_row_id").In(rows)).Prepared(true)
		n, err := a.exec(ctx, tx, mappings, "delete mappings")
		deleted = n
		return err
	})
	return deleted, err
}
