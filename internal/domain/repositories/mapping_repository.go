package repositories

import (
	"context"

	"github.com/zatekoja/coveragecompare/internal/domain/entities"
)

// MappingRepository defines data operations for mapping results and slots
type MappingRepository interface {
	// Get retrieves the mapping record of a universe row
	Get(ctx context.Context, universeRowID string) (*entities.MappingRecord, error)

	// Insert stores the first mapping of a row. inserted is false when another
	// writer stored one first.
	Insert(ctx context.Context, rec entities.MappingRecord) (inserted bool, err error)

	// UpdateIfRevision replaces a mapping only if its stored revision still
	// equals expectedRevision, and increments the revision
	UpdateIfRevision(ctx context.Context, rec entities.MappingRecord, expectedRevision int64) (updated bool, err error)

	// SaveSlots stores the slots of a MAPPED row
	SaveSlots(ctx context.Context, slots *entities.CoverageSlots) error

	// GetSlots retrieves the slots of a row
	GetSlots(ctx context.Context, universeRowID string) (*entities.CoverageSlots, error)

	// DeleteSlots removes the slots of a row
	DeleteSlots(ctx context.Context, universeRowID string) error

	// DeleteByProposal removes mappings and slots derived from one proposal
	DeleteByProposal(ctx context.Context, insurer, proposalID string) (int64, error)
}
