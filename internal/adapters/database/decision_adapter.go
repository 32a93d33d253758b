package database

import (
	"context"
	"encoding/json"

	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"

	"github.com/zatekoja/coveragecompare/internal/domain/entities"
	"github.com/zatekoja/coveragecompare/internal/domain/repositories"
	"github.com/zatekoja/coveragecompare/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/coveragecompare/pkg/errors"
)

type decisionRow struct {
	entities.DecisionRecord
	Recalled     pq.StringArray `db:"recalled_candidates"`
	Decided      pq.StringArray `db:"decided_codes"`
	EvidenceJSON []byte         `db:"evidence"`
}

// DecisionAdapter implements DecisionRepository
type DecisionAdapter struct {
	base
}

var _ repositories.DecisionRepository = (*DecisionAdapter)(nil)

// NewDecisionAdapter creates a new decision adapter
func NewDecisionAdapter(client *postgres.Client) *DecisionAdapter {
	return &DecisionAdapter{base: newBase(client)}
}

// Save upserts the decision for (coverage name, insurer)
func (a *DecisionAdapter) Save(ctx context.Context, rec entities.DecisionRecord) error {
	evidence := rec.Evidence
	if evidence == nil {
		evidence = []entities.EvidenceSpan{}
	}
	raw, err := json.Marshal(evidence)
	if err != nil {
		return apperrors.NewInternalError("failed to encode decision evidence", err)
	}
	recalled, decided := rec.RecalledCandidates, rec.DecidedCodes
	if recalled == nil {
		recalled = []string{}
	}
	if decided == nil {
		decided = []string{}
	}

	ds := dialect.Insert("canonical_decisions").
		Rows(goqu.Record{
			"coverage_name_raw":   rec.CoverageNameRaw,
			"insurer":             rec.Insurer,
			"decision_status":     string(rec.Status),
			"recalled_candidates": pq.StringArray(recalled),
			"decided_codes":       pq.StringArray(decided),
			"evidence":            string(raw),
			"decided_at":          rec.DecidedAt,
		}).
		OnConflict(goqu.DoUpdate("coverage_name_raw, insurer", goqu.Record{
			"decision_status":     goqu.L("EXCLUDED.decision_status"),
			"recalled_candidates": goqu.L("EXCLUDED.recalled_candidates"),
			"decided_codes":       goqu.L("EXCLUDED.decided_codes"),
			"evidence":            goqu.L("EXCLUDED.evidence"),
			"decided_at":          goqu.L("EXCLUDED.decided_at"),
		})).
		Prepared(true)
	_, err = a.exec(ctx, a.client.X(), ds, "save decision")
	return err
}

// Get retrieves the decision for (coverage name, insurer)
func (a *DecisionAdapter) Get(ctx context.Context, coverageNameRaw, insurer string) (*entities.DecisionRecord, error) {
	row := &decisionRow{}
	ds := dialect.From("canonical_decisions").
		Select("coverage_name_raw", "insurer", "decision_status", "recalled_candidates", "decided_codes", "evidence", "decided_at").
		Where(goqu.Ex{"coverage_name_raw": coverageNameRaw, "insurer": insurer}).
		Prepared(true)
	if err := a.get(ctx, a.client.X(), row, ds, "decision for "+coverageNameRaw); err != nil {
		return nil, err
	}

	rec := row.DecisionRecord
	rec.RecalledCandidates = []string(row.Recalled)
	rec.DecidedCodes = []string(row.Decided)
	if len(row.EvidenceJSON) > 0 {
		if err := json.Unmarshal(row.EvidenceJSON, &rec.Evidence); err != nil {
			return nil, apperrors.NewInternalError("failed to decode decision evidence", err)
		}
	}
	return &rec, nil
}

// Counts returns the number of DECIDED and UNDECIDED decisions
func (a *DecisionAdapter) Counts(ctx context.Context) (int64, int64, error) {
	var rows []struct {
		Status string `db:"decision_status"`
		Count  int64  `db:"count"`
	}
	ds := dialect.From("canonical_decisions").
		Select("decision_status", goqu.COUNT("*").As("count")).
		GroupBy("decision_status").
		Prepared(true)
	if err := a.selectAll(ctx, a.client.X(), &rows, ds, "decision counts"); err != nil {
		return 0, 0, err
	}
	var decided, undecided int64
	for _, r := range rows {
		switch entities.DecisionStatus(r.Status) {
		case entities.DecisionStatusDecided:
			decided = r.Count
		case entities.DecisionStatusUndecided:
			undecided = r.Count
		}
	}
	return decided, undecided, nil
}
