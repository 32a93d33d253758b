package repositories

import (
	"context"

	"github.com/zatekoja/coveragecompare/internal/domain/entities"
)

// RegistryRepository defines data operations on the canonical registry. The
// registry is append-only: there are no update or delete operations.
type RegistryRepository interface {
	// InsertCoverages inserts codes that do not exist yet and returns how many were inserted
	InsertCoverages(ctx context.Context, coverages []entities.CoverageDefinition) (int, error)

	// GetCoverage retrieves a coverage by code
	GetCoverage(ctx context.Context, code string) (*entities.CanonicalCoverage, error)

	// GetCoverages retrieves the published coverages among codes; unknown codes are left out
	GetCoverages(ctx context.Context, codes []string) ([]*entities.CanonicalCoverage, error)

	// CoverageExists checks whether a code is published
	CoverageExists(ctx context.Context, code string) (bool, error)

	// ListCoverages retrieves all published coverages ordered by code
	ListCoverages(ctx context.Context) ([]*entities.CanonicalCoverage, error)

	// InsertDiseaseCodes inserts disease codes that do not exist yet
	InsertDiseaseCodes(ctx context.Context, codes []*entities.DiseaseCode) (int, error)

	// ListDiseaseCodes retrieves the disease code master for a classification version
	ListDiseaseCodes(ctx context.Context, classificationVersion string) ([]*entities.DiseaseCode, error)

	// DiseaseCodeExists checks whether a disease code is in the master
	DiseaseCodeExists(ctx context.Context, code string) (bool, error)
}
