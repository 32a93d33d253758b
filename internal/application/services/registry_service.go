package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/zatekoja/coveragecompare/internal/diseasecode"
	"github.com/zatekoja/coveragecompare/internal/domain/entities"
	"github.com/zatekoja/coveragecompare/internal/domain/repositories"
	apperrors "github.com/zatekoja/coveragecompare/pkg/errors"
	"github.com/zatekoja/coveragecompare/pkg/retry"
)

const masterTTL = 5 * time.Minute

// ImportReport summarizes a registry import
type ImportReport struct {
	Inserted  int `json:"inserted"`
	Unchanged int `json:"unchanged"`
}

// RegistryService guards the canonical registry and the disease code master.
// Codes are only ever added by an operator import.
type RegistryService struct {
	repo             repositories.RegistryRepository
	supportedVersion string
	retryCfg         retry.Config

	mu       sync.Mutex
	master   *diseasecode.Master
	loadedAt time.Time
	onChange []func(ctx context.Context)
}

// NewRegistryService creates a new registry service
func NewRegistryService(repo repositories.RegistryRepository, supportedVersion string) *RegistryService {
	return &RegistryService{
		repo:             repo,
		supportedVersion: supportedVersion,
		retryCfg:         retry.StorageConfig(),
	}
}

// SupportedVersion returns the disease classification version accepted on import
func (s *RegistryService) SupportedVersion() string {
	return s.supportedVersion
}

// ImportCoverages publishes new codes. Re-importing an identical entry is a
// no-op; changing a published entry is a validation error.
func (s *RegistryService) ImportCoverages(ctx context.Context, coverages []entities.CoverageDefinition) (*ImportReport, error) {
	report := &ImportReport{}
	fresh := make([]entities.CoverageDefinition, 0, len(coverages))
	seen := make(map[string]entities.CoverageDefinition, len(coverages))

	for _, c := range coverages {
		if c.Code == "" {
			return nil, apperrors.NewValidationError("coverage code is required")
		}
		if c.DisplayName == "" {
			return nil, apperrors.NewValidationError(fmt.Sprintf("coverage %s requires a display name", c.Code))
		}
		if prev, dup := seen[c.Code]; dup {
			if !prev.Same(c) {
				return nil, apperrors.NewValidationError(fmt.Sprintf("coverage %s is defined twice with different fields", c.Code))
			}
			continue
		}
		seen[c.Code] = c

		existing, err := s.Lookup(ctx, c.Code)
		switch {
		case err == nil:
			if !existing.Definition().Same(c) {
				return nil, apperrors.NewValidationError(fmt.Sprintf("coverage %s is already published and cannot change", c.Code)).
					WithDetail("code", c.Code)
			}
			report.Unchanged++
		case apperrors.Is(err, apperrors.ErrorTypeNotFound):
			fresh = append(fresh, c)
		default:
			return nil, err
		}
	}

	if len(fresh) == 0 {
		return report, nil
	}
	inserted, err := s.repo.InsertCoverages(ctx, fresh)
	if err != nil {
		return nil, err
	}
	report.Inserted = inserted
	report.Unchanged += len(fresh) - inserted
	if inserted > 0 {
		s.notifyChange(ctx)
	}
	return report, nil
}

// OnChange registers a callback run after new coverages are published
func (s *RegistryService) OnChange(fn func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

func (s *RegistryService) notifyChange(ctx context.Context) {
	s.mu.Lock()
	hooks := append([]func(context.Context){}, s.onChange...)
	s.mu.Unlock()
	for _, fn := range hooks {
		fn(ctx)
	}
}

// ImportDiseaseCodes adds codes to the disease master. Only the supported
// classification version is accepted.
func (s *RegistryService) ImportDiseaseCodes(ctx context.Context, codes []*entities.DiseaseCode) (*ImportReport, error) {
	for _, c := range codes {
		if c == nil || c.Code == "" {
			return nil, apperrors.NewValidationError("disease code is required")
		}
		if c.ClassificationVersion != s.supportedVersion {
			return nil, apperrors.NewValidationError(fmt.Sprintf("disease code %s uses classification %q, only %q is supported",
				c.Code, c.ClassificationVersion, s.supportedVersion))
		}
	}
	inserted, err := s.repo.InsertDiseaseCodes(ctx, codes)
	if err != nil {
		return nil, err
	}
	s.invalidateMaster()
	return &ImportReport{Inserted: inserted, Unchanged: len(codes) - inserted}, nil
}

// Lookup retrieves a published coverage
func (s *RegistryService) Lookup(ctx context.Context, code string) (*entities.CanonicalCoverage, error) {
	var coverage *entities.CanonicalCoverage
	err := retry.DoIf(ctx, s.retryCfg, retry.IsTransient, func() error {
		var err error
		coverage, err = s.repo.GetCoverage(ctx, code)
		return err
	})
	return coverage, err
}

// LookupMany retrieves the published coverages among codes. Unknown codes
// are left out of the result.
func (s *RegistryService) LookupMany(ctx context.Context, codes []string) ([]*entities.CanonicalCoverage, error) {
	var coverages []*entities.CanonicalCoverage
	err := retry.DoIf(ctx, s.retryCfg, retry.IsTransient, func() error {
		var err error
		coverages, err = s.repo.GetCoverages(ctx, codes)
		return err
	})
	return coverages, err
}

// LookupFunc adapts Lookup for restoring stored records
func (s *RegistryService) LookupFunc(ctx context.Context) entities.CoverageLookup {
	return func(code string) (*entities.CanonicalCoverage, error) {
		return s.Lookup(ctx, code)
	}
}

// Exists reports whether a code is published
func (s *RegistryService) Exists(ctx context.Context, code string) (bool, error) {
	var ok bool
	err := retry.DoIf(ctx, s.retryCfg, retry.IsTransient, func() error {
		var err error
		ok, err = s.repo.CoverageExists(ctx, code)
		return err
	})
	return ok, err
}

// List retrieves all published coverages
func (s *RegistryService) List(ctx context.Context) ([]*entities.CanonicalCoverage, error) {
	var coverages []*entities.CanonicalCoverage
	err := retry.DoIf(ctx, s.retryCfg, retry.IsTransient, func() error {
		var err error
		coverages, err = s.repo.ListCoverages(ctx)
		return err
	})
	return coverages, err
}

// FamilyCodes returns the codes of one family, sorted
func (s *RegistryService) FamilyCodes(ctx context.Context, family string) ([]string, error) {
	coverages, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	codes := make([]string, 0)
	for _, c := range coverages {
		if c.Family == family {
			codes = append(codes, c.Code().String())
		}
	}
	sort.Strings(codes)
	return codes, nil
}

// Master returns the disease code master of the supported version. The view
// is reloaded after an import or once it is older than masterTTL.
func (s *RegistryService) Master(ctx context.Context) (*diseasecode.Master, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.master != nil && time.Since(s.loadedAt) < masterTTL {
		return s.master, nil
	}

	var codes []*entities.DiseaseCode
	err := retry.DoIf(ctx, s.retryCfg, retry.IsTransient, func() error {
		var err error
		codes, err = s.repo.ListDiseaseCodes(ctx, s.supportedVersion)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.master = diseasecode.NewMaster(s.supportedVersion, codes)
	s.loadedAt = time.Now()
	return s.master, nil
}

func (s *RegistryService) invalidateMaster() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.master = nil
}
