// Package memory is an in-process persistence backend for tests, the CLI and
// single-node deployments. It honours the same uniqueness, revision and
// transaction rules as the postgres adapters.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zatekoja/coveragecompare/internal/domain/entities"
	"github.com/zatekoja/coveragecompare/internal/domain/repositories"
	apperrors "github.com/zatekoja/coveragecompare/pkg/errors"
)

type scopeKey struct {
	code, insurer, proposal string
}

type nameKey struct {
	insurer, proposal, normalized string
}

type aliasKey struct {
	insurer, key string
}

type eventKey struct {
	insurer, title string
	status         entities.MappingStatus
}

// state holds every table. Stored values are private copies; writers replace
// entries instead of mutating them, so a shallow map clone is a snapshot.
type state struct {
	coverages    map[string]entities.CoverageDefinition
	diseaseCodes map[string]*entities.DiseaseCode

	aliasVersion int64
	aliases      map[aliasKey]*entities.AliasRecord
	nameMaps     map[aliasKey]*entities.NameMapRecord

	rows       map[string]*entities.UniverseRow
	rowsByHash map[string]string
	rowsByName map[nameKey]string

	mappings map[string]entities.MappingRecord
	slots    map[string]*entities.CoverageSlots

	groups map[string]*entities.DiseaseCodeGroup
	scopes map[scopeKey]*entities.CoverageDiseaseScope

	decisions map[aliasKey]entities.DecisionRecord

	events      map[string]*entities.MappingEvent
	suggestions map[string][]*entities.EventSuggestion
	audit       []*entities.AuditLogEntry
}

func newState() state {
	return state{
		coverages:    map[string]entities.CoverageDefinition{},
		diseaseCodes: map[string]*entities.DiseaseCode{},
		aliases:      map[aliasKey]*entities.AliasRecord{},
		nameMaps:     map[aliasKey]*entities.NameMapRecord{},
		rows:         map[string]*entities.UniverseRow{},
		rowsByHash:   map[string]string{},
		rowsByName:   map[nameKey]string{},
		mappings:     map[string]entities.MappingRecord{},
		slots:        map[string]*entities.CoverageSlots{},
		groups:       map[string]*entities.DiseaseCodeGroup{},
		scopes:       map[scopeKey]*entities.CoverageDiseaseScope{},
		decisions:    map[aliasKey]entities.DecisionRecord{},
		events:       map[string]*entities.MappingEvent{},
		suggestions:  map[string][]*entities.EventSuggestion{},
	}
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (s state) clone() state {
	return state{
		coverages:    cloneMap(s.coverages),
		diseaseCodes: cloneMap(s.diseaseCodes),
		aliasVersion: s.aliasVersion,
		aliases:      cloneMap(s.aliases),
		nameMaps:     cloneMap(s.nameMaps),
		rows:         cloneMap(s.rows),
		rowsByHash:   cloneMap(s.rowsByHash),
		rowsByName:   cloneMap(s.rowsByName),
		mappings:     cloneMap(s.mappings),
		slots:        cloneMap(s.slots),
		groups:       cloneMap(s.groups),
		scopes:       cloneMap(s.scopes),
		decisions:    cloneMap(s.decisions),
		events:       cloneMap(s.events),
		suggestions:  cloneMap(s.suggestions),
		audit:        append([]*entities.AuditLogEntry(nil), s.audit...),
	}
}

// Store is a mutex guarded set of tables
type Store struct {
	mu    sync.RWMutex
	state state
	nowFn func() time.Time
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{state: newState(), nowFn: time.Now}
}

// SetClock overrides the store clock
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = now
}

// Repositories exposes the store through the repository interfaces
func (s *Store) Repositories() repositories.Store {
	return repositories.Store{
		Registry:  &registryRepo{s},
		Aliases:   &aliasRepo{s},
		Universe:  &universeRepo{s},
		Mappings:  &mappingRepo{s},
		Disease:   &diseaseRepo{s},
		Decisions: &decisionRepo{s},
		Workbench: &workbenchRepo{s},
	}
}

func (s *Store) read(fn func(st *state)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(&s.state)
}

func (s *Store) write(fn func(st *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&s.state)
}

func ctxErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return apperrors.NewTransientError("store operation cancelled", err)
	}
	return nil
}

// registry

type registryRepo struct{ s *Store }

var _ repositories.RegistryRepository = (*registryRepo)(nil)

func (r *registryRepo) InsertCoverages(ctx context.Context, coverages []entities.CoverageDefinition) (int, error) {
	if err := ctxErr(ctx); err != nil {
		return 0, err
	}
	inserted := 0
	err := r.s.write(func(st *state) error {
		for _, c := range coverages {
			if _, ok := st.coverages[c.Code]; ok {
				continue
			}
			if c.CreatedAt.IsZero() {
				c.CreatedAt = r.s.nowFn()
			}
			st.coverages[c.Code] = c
			inserted++
		}
		return nil
	})
	return inserted, err
}

func (r *registryRepo) GetCoverage(ctx context.Context, code string) (*entities.CanonicalCoverage, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	var out *entities.CanonicalCoverage
	r.s.read(func(st *state) {
		if c, ok := st.coverages[code]; ok {
			out = entities.RestoreCanonicalCoverage(c)
		}
	})
	if out == nil {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("canonical coverage %s not found", code))
	}
	return out, nil
}

func (r *registryRepo) GetCoverages(ctx context.Context, codes []string) ([]*entities.CanonicalCoverage, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	out := []*entities.CanonicalCoverage{}
	r.s.read(func(st *state) {
		for _, code := range codes {
			if c, ok := st.coverages[code]; ok {
				out = append(out, entities.RestoreCanonicalCoverage(c))
			}
		}
	})
	return out, nil
}

func (r *registryRepo) CoverageExists(ctx context.Context, code string) (bool, error) {
	if err := ctxErr(ctx); err != nil {
		return false, err
	}
	var ok bool
	r.s.read(func(st *state) { _, ok = st.coverages[code] })
	return ok, nil
}

func (r *registryRepo) ListCoverages(ctx context.Context) ([]*entities.CanonicalCoverage, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	var out []*entities.CanonicalCoverage
	r.s.read(func(st *state) {
		out = make([]*entities.CanonicalCoverage, 0, len(st.coverages))
		for _, c := range st.coverages {
			out = append(out, entities.RestoreCanonicalCoverage(c))
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Code().String() < out[j].Code().String() })
	return out, nil
}

func (r *registryRepo) InsertDiseaseCodes(ctx context.Context, codes []*entities.DiseaseCode) (int, error) {
	if err := ctxErr(ctx); err != nil {
		return 0, err
	}
	inserted := 0
	err := r.s.write(func(st *state) error {
		for _, c := range codes {
			if _, ok := st.diseaseCodes[c.Code]; ok {
				continue
			}
			cp := *c
			st.diseaseCodes[c.Code] = &cp
			inserted++
		}
		return nil
	})
	return inserted, err
}

func (r *registryRepo) ListDiseaseCodes(ctx context.Context, classificationVersion string) ([]*entities.DiseaseCode, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	var out []*entities.DiseaseCode
	r.s.read(func(st *state) {
		for _, c := range st.diseaseCodes {
			if c.ClassificationVersion != classificationVersion {
				continue
			}
			cp := *c
			out = append(out, &cp)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r *registryRepo) DiseaseCodeExists(ctx context.Context, code string) (bool, error) {
	if err := ctxErr(ctx); err != nil {
		return false, err
	}
	var ok bool
	r.s.read(func(st *state) { _, ok = st.diseaseCodes[code] })
	return ok, nil
}

// aliases

type aliasRepo struct{ s *Store }

var _ repositories.AliasRepository = (*aliasRepo)(nil)

func (r *aliasRepo) CurrentVersion(ctx context.Context) (int64, error) {
	if err := ctxErr(ctx); err != nil {
		return 0, err
	}
	var v int64
	r.s.read(func(st *state) { v = st.aliasVersion })
	return v, nil
}

func (r *aliasRepo) LoadTable(ctx context.Context) (*entities.AliasTable, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	table := &entities.AliasTable{}
	r.s.read(func(st *state) {
		table.Version = st.aliasVersion
		for _, a := range st.aliases {
			cp := *a
			table.Aliases = append(table.Aliases, &cp)
		}
		for _, m := range st.nameMaps {
			cp := *m
			table.NameMaps = append(table.NameMaps, &cp)
		}
	})
	sort.Slice(table.Aliases, func(i, j int) bool {
		if table.Aliases[i].Insurer != table.Aliases[j].Insurer {
			return table.Aliases[i].Insurer < table.Aliases[j].Insurer
		}
		return table.Aliases[i].NormalizedKey < table.Aliases[j].NormalizedKey
	})
	sort.Slice(table.NameMaps, func(i, j int) bool {
		if table.NameMaps[i].Insurer != table.NameMaps[j].Insurer {
			return table.NameMaps[i].Insurer < table.NameMaps[j].Insurer
		}
		return table.NameMaps[i].RawTitle < table.NameMaps[j].RawTitle
	})
	return table, nil
}

func (r *aliasRepo) ImportAliases(ctx context.Context, aliases []*entities.AliasRecord) (int, error) {
	if err := ctxErr(ctx); err != nil {
		return 0, err
	}
	inserted := 0
	err := r.s.write(func(st *state) error {
		for _, a := range aliases {
			k := aliasKey{a.Insurer, a.NormalizedKey}
			if _, ok := st.aliases[k]; ok {
				continue
			}
			cp := *a
			if cp.ID == "" {
				cp.ID = uuid.NewString()
			}
			if cp.CreatedAt.IsZero() {
				cp.CreatedAt = r.s.nowFn()
			}
			st.aliases[k] = &cp
			inserted++
		}
		if inserted > 0 {
			st.aliasVersion++
		}
		return nil
	})
	return inserted, err
}

// universe

type universeRepo struct{ s *Store }

var _ repositories.UniverseRepository = (*universeRepo)(nil)

func (r *universeRepo) Insert(ctx context.Context, row *entities.UniverseRow) (bool, error) {
	if err := ctxErr(ctx); err != nil {
		return false, err
	}
	inserted := false
	err := r.s.write(func(st *state) error {
		if _, ok := st.rowsByHash[row.ContentHash]; ok {
			return nil
		}
		nk := nameKey{row.Insurer, row.ProposalID, row.NormalizedName}
		if _, ok := st.rowsByName[nk]; ok {
			return nil
		}
		cp := *row
		if cp.ID == "" {
			cp.ID = uuid.NewString()
		}
		if cp.CreatedAt.IsZero() {
			cp.CreatedAt = r.s.nowFn()
		}
		st.rows[cp.ID] = &cp
		st.rowsByHash[cp.ContentHash] = cp.ID
		st.rowsByName[nk] = cp.ID
		row.ID = cp.ID
		row.CreatedAt = cp.CreatedAt
		inserted = true
		return nil
	})
	return inserted, err
}

func (r *universeRepo) get(id string) *entities.UniverseRow {
	var out *entities.UniverseRow
	r.s.read(func(st *state) {
		if row, ok := st.rows[id]; ok {
			cp := *row
			out = &cp
		}
	})
	return out
}

func (r *universeRepo) GetByID(ctx context.Context, id string) (*entities.UniverseRow, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	if row := r.get(id); row != nil {
		return row, nil
	}
	return nil, apperrors.NewNotFoundError(fmt.Sprintf("universe row %s not found", id))
}

func (r *universeRepo) FindByContentHash(ctx context.Context, hash string) (*entities.UniverseRow, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	var id string
	r.s.read(func(st *state) { id = st.rowsByHash[hash] })
	if row := r.get(id); row != nil {
		return row, nil
	}
	return nil, apperrors.NewNotFoundError("universe row not found for content hash")
}

func (r *universeRepo) FindByName(ctx context.Context, insurer, proposalID, normalizedName string) (*entities.UniverseRow, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	var id string
	r.s.read(func(st *state) { id = st.rowsByName[nameKey{insurer, proposalID, normalizedName}] })
	if row := r.get(id); row != nil {
		return row, nil
	}
	return nil, apperrors.NewNotFoundError(fmt.Sprintf("universe row %s not found in proposal %s", normalizedName, proposalID))
}

func (r *universeRepo) filter(keep func(*entities.UniverseRow) bool) []*entities.UniverseRow {
	var out []*entities.UniverseRow
	r.s.read(func(st *state) {
		for _, row := range st.rows {
			if keep(row) {
				cp := *row
				out = append(out, &cp)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *universeRepo) FindByInsurerKey(ctx context.Context, insurer, normalizedName string) ([]*entities.UniverseRow, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	return r.filter(func(row *entities.UniverseRow) bool {
		return row.Insurer == insurer && row.NormalizedName == normalizedName
	}), nil
}

func (r *universeRepo) ListByProposal(ctx context.Context, insurer, proposalID string) ([]*entities.UniverseRow, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	return r.filter(func(row *entities.UniverseRow) bool {
		return row.Insurer == insurer && row.ProposalID == proposalID
	}), nil
}

func (r *universeRepo) ListAfter(ctx context.Context, afterID string, limit int) ([]*entities.UniverseRow, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	rows := r.filter(func(row *entities.UniverseRow) bool { return row.ID > afterID })
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (r *universeRepo) DeleteByProposal(ctx context.Context, insurer, proposalID string) (int64, error) {
	if err := ctxErr(ctx); err != nil {
		return 0, err
	}
	var n int64
	err := r.s.write(func(st *state) error {
		for id, row := range st.rows {
			if row.Insurer != insurer || row.ProposalID != proposalID {
				continue
			}
			delete(st.rows, id)
			delete(st.rowsByHash, row.ContentHash)
			delete(st.rowsByName, nameKey{row.Insurer, row.ProposalID, row.NormalizedName})
			n++
		}
		return nil
	})
	return n, err
}

// mappings

type mappingRepo struct{ s *Store }

var _ repositories.MappingRepository = (*mappingRepo)(nil)

func copyRecord(rec entities.MappingRecord) entities.MappingRecord {
	rec.Candidates = append([]string(nil), rec.Candidates...)
	rec.Evidence = append([]entities.MatchEvidence(nil), rec.Evidence...)
	if rec.CanonicalCode != nil {
		code := *rec.CanonicalCode
		rec.CanonicalCode = &code
	}
	return rec
}

func (r *mappingRepo) Get(ctx context.Context, universeRowID string) (*entities.MappingRecord, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	var (
		out entities.MappingRecord
		ok  bool
	)
	r.s.read(func(st *state) {
		out, ok = st.mappings[universeRowID]
	})
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("mapping for row %s not found", universeRowID))
	}
	out = copyRecord(out)
	return &out, nil
}

func (r *mappingRepo) Insert(ctx context.Context, rec entities.MappingRecord) (bool, error) {
	if err := ctxErr(ctx); err != nil {
		return false, err
	}
	inserted := false
	err := r.s.write(func(st *state) error {
		if _, ok := st.mappings[rec.UniverseRowID]; ok {
			return nil
		}
		if _, ok := st.rows[rec.UniverseRowID]; !ok {
			return apperrors.NewValidationError(fmt.Sprintf("universe row %s does not exist", rec.UniverseRowID))
		}
		if err := checkMappingCode(st, rec); err != nil {
			return err
		}
		rec = copyRecord(rec)
		rec.Revision = 1
		if rec.UpdatedAt.IsZero() {
			rec.UpdatedAt = r.s.nowFn()
		}
		st.mappings[rec.UniverseRowID] = rec
		inserted = true
		return nil
	})
	return inserted, err
}

func (r *mappingRepo) UpdateIfRevision(ctx context.Context, rec entities.MappingRecord, expectedRevision int64) (bool, error) {
	if err := ctxErr(ctx); err != nil {
		return false, err
	}
	updated := false
	err := r.s.write(func(st *state) error {
		current, ok := st.mappings[rec.UniverseRowID]
		if !ok || current.Revision != expectedRevision {
			return nil
		}
		if err := checkMappingCode(st, rec); err != nil {
			return err
		}
		rec = copyRecord(rec)
		rec.Revision = expectedRevision + 1
		if rec.UpdatedAt.IsZero() {
			rec.UpdatedAt = r.s.nowFn()
		}
		st.mappings[rec.UniverseRowID] = rec
		updated = true
		return nil
	})
	return updated, err
}

// checkMappingCode mirrors the foreign key from mapping_results to the registry
func checkMappingCode(st *state, rec entities.MappingRecord) error {
	if rec.CanonicalCode == nil {
		return nil
	}
	if _, ok := st.coverages[*rec.CanonicalCode]; !ok {
		return apperrors.NewValidationError(fmt.Sprintf("canonical code %s is not in the registry", *rec.CanonicalCode))
	}
	return nil
}

func (r *mappingRepo) SaveSlots(ctx context.Context, slots *entities.CoverageSlots) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	return r.s.write(func(st *state) error {
		rec, ok := st.mappings[slots.UniverseRowID]
		if !ok || rec.Status != entities.MappingStatusMapped {
			return apperrors.NewValidationError(fmt.Sprintf("row %s is not MAPPED", slots.UniverseRowID))
		}
		cp := *slots
		st.slots[slots.UniverseRowID] = &cp
		return nil
	})
}

func (r *mappingRepo) GetSlots(ctx context.Context, universeRowID string) (*entities.CoverageSlots, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	var out *entities.CoverageSlots
	r.s.read(func(st *state) {
		if s, ok := st.slots[universeRowID]; ok {
			cp := *s
			out = &cp
		}
	})
	if out == nil {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("slots for row %s not found", universeRowID))
	}
	return out, nil
}

func (r *mappingRepo) DeleteSlots(ctx context.Context, universeRowID string) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	return r.s.write(func(st *state) error {
		delete(st.slots, universeRowID)
		return nil
	})
}

func (r *mappingRepo) DeleteByProposal(ctx context.Context, insurer, proposalID string) (int64, error) {
	if err := ctxErr(ctx); err != nil {
		return 0, err
	}
	var n int64
	err := r.s.write(func(st *state) error {
		for id, row := range st.rows {
			if row.Insurer != insurer || row.ProposalID != proposalID {
				continue
			}
			if _, ok := st.mappings[id]; ok {
				delete(st.mappings, id)
				n++
			}
			delete(st.slots, id)
		}
		return nil
	})
	return n, err
}

// disease scopes

type diseaseRepo struct{ s *Store }

var _ repositories.DiseaseRepository = (*diseaseRepo)(nil)

func (r *diseaseRepo) CreateGroup(ctx context.Context, group *entities.DiseaseCodeGroup) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	return r.s.write(func(st *state) error {
		if _, ok := st.groups[group.ID]; ok {
			return apperrors.NewConflictError(fmt.Sprintf("disease code group %s already exists", group.ID))
		}
		cp := *group
		cp.Members = append([]entities.DiseaseCodeGroupMember(nil), group.Members...)
		if cp.CreatedAt.IsZero() {
			cp.CreatedAt = r.s.nowFn()
		}
		st.groups[group.ID] = &cp
		return nil
	})
}

func (r *diseaseRepo) GetGroup(ctx context.Context, id string) (*entities.DiseaseCodeGroup, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	var out *entities.DiseaseCodeGroup
	r.s.read(func(st *state) {
		if g, ok := st.groups[id]; ok {
			cp := *g
			cp.Members = append([]entities.DiseaseCodeGroupMember(nil), g.Members...)
			out = &cp
		}
	})
	if out == nil {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("disease code group %s not found", id))
	}
	return out, nil
}

func (r *diseaseRepo) SaveScope(ctx context.Context, scope *entities.CoverageDiseaseScope) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	return r.s.write(func(st *state) error {
		if _, ok := st.groups[scope.IncludeGroupID]; !ok {
			return apperrors.NewValidationError(fmt.Sprintf("include group %s does not exist", scope.IncludeGroupID))
		}
		if scope.ExcludeGroupID != nil {
			if _, ok := st.groups[*scope.ExcludeGroupID]; !ok {
				return apperrors.NewValidationError(fmt.Sprintf("exclude group %s does not exist", *scope.ExcludeGroupID))
			}
		}
		cp := *scope
		if cp.ID == "" {
			cp.ID = uuid.NewString()
		}
		if cp.CreatedAt.IsZero() {
			cp.CreatedAt = r.s.nowFn()
		}
		st.scopes[scopeKey{scope.CanonicalCode, scope.Insurer, scope.ProposalID}] = &cp
		scope.ID = cp.ID
		scope.CreatedAt = cp.CreatedAt
		return nil
	})
}

func (r *diseaseRepo) GetScope(ctx context.Context, canonicalCode, insurer, proposalID string) (*entities.CoverageDiseaseScope, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	var out *entities.CoverageDiseaseScope
	r.s.read(func(st *state) {
		if sc, ok := st.scopes[scopeKey{canonicalCode, insurer, proposalID}]; ok {
			cp := *sc
			out = &cp
		}
	})
	if out == nil {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("disease scope for %s not found", canonicalCode))
	}
	return out, nil
}

func (r *diseaseRepo) DeleteScopesByProposal(ctx context.Context, insurer, proposalID string) (int64, error) {
	if err := ctxErr(ctx); err != nil {
		return 0, err
	}
	var n int64
	err := r.s.write(func(st *state) error {
		for k := range st.scopes {
			if k.insurer == insurer && k.proposal == proposalID {
				delete(st.scopes, k)
				n++
			}
		}
		return nil
	})
	return n, err
}

// decisions

type decisionRepo struct{ s *Store }

var _ repositories.DecisionRepository = (*decisionRepo)(nil)

func (r *decisionRepo) Save(ctx context.Context, rec entities.DecisionRecord) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	return r.s.write(func(st *state) error {
		for _, code := range rec.DecidedCodes {
			if _, ok := st.coverages[code]; !ok {
				return apperrors.NewValidationError(fmt.Sprintf("decided code %s is not in the registry", code))
			}
		}
		rec.RecalledCandidates = append([]string(nil), rec.RecalledCandidates...)
		rec.DecidedCodes = append([]string(nil), rec.DecidedCodes...)
		rec.Evidence = append([]entities.EvidenceSpan(nil), rec.Evidence...)
		st.decisions[aliasKey{rec.Insurer, rec.CoverageNameRaw}] = rec
		return nil
	})
}

func (r *decisionRepo) Get(ctx context.Context, coverageNameRaw, insurer string) (*entities.DecisionRecord, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	var (
		rec entities.DecisionRecord
		ok  bool
	)
	r.s.read(func(st *state) { rec, ok = st.decisions[aliasKey{insurer, coverageNameRaw}] })
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("decision for %s not found", coverageNameRaw))
	}
	return &rec, nil
}

func (r *decisionRepo) Counts(ctx context.Context) (int64, int64, error) {
	if err := ctxErr(ctx); err != nil {
		return 0, 0, err
	}
	var decided, undecided int64
	r.s.read(func(st *state) {
		for _, rec := range st.decisions {
			if rec.Status == entities.DecisionStatusDecided {
				decided++
			} else {
				undecided++
			}
		}
	})
	return decided, undecided, nil
}
