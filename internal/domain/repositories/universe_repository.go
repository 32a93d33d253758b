package repositories

import (
	"context"

	"github.com/zatekoja/coveragecompare/internal/domain/entities"
)

// UniverseRepository defines data operations for universe rows
type UniverseRepository interface {
	// Insert stores a row unless its content hash or (insurer, proposal,
	// normalized name) already exists. inserted is false for duplicates.
	Insert(ctx context.Context, row *entities.UniverseRow) (inserted bool, err error)

	// GetByID retrieves a row by ID
	GetByID(ctx context.Context, id string) (*entities.UniverseRow, error)

	// FindByContentHash retrieves the row with the given content hash
	FindByContentHash(ctx context.Context, hash string) (*entities.UniverseRow, error)

	// FindByName retrieves the row for (insurer, proposal, normalized name)
	FindByName(ctx context.Context, insurer, proposalID, normalizedName string) (*entities.UniverseRow, error)

	// FindByInsurerKey retrieves rows of an insurer with the given normalized
	// name across all proposals, oldest first
	FindByInsurerKey(ctx context.Context, insurer, normalizedName string) ([]*entities.UniverseRow, error)

	// ListByProposal retrieves the rows of one proposal
	ListByProposal(ctx context.Context, insurer, proposalID string) ([]*entities.UniverseRow, error)

	// ListAfter retrieves up to limit rows with an ID greater than afterID,
	// ordered by ID
	ListAfter(ctx context.Context, afterID string, limit int) ([]*entities.UniverseRow, error)

	// DeleteByProposal removes the rows of one proposal
	DeleteByProposal(ctx context.Context, insurer, proposalID string) (int64, error)
}
