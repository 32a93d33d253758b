package repositories

import (
	"context"

	"github.com/zatekoja/coveragecompare/internal/domain/entities"
)

// DiseaseRepository defines data operations for disease code groups and scopes
type DiseaseRepository interface {
	// CreateGroup creates a group with its members
	CreateGroup(ctx context.Context, group *entities.DiseaseCodeGroup) error

	// GetGroup retrieves a group with its members
	GetGroup(ctx context.Context, id string) (*entities.DiseaseCodeGroup, error)

	// SaveScope stores the scope of (canonical code, insurer, proposal),
	// replacing a previous one for the same triple
	SaveScope(ctx context.Context, scope *entities.CoverageDiseaseScope) error

	// GetScope retrieves the scope of (canonical code, insurer, proposal)
	GetScope(ctx context.Context, canonicalCode, insurer, proposalID string) (*entities.CoverageDiseaseScope, error)

	// DeleteScopesByProposal removes scopes derived from one proposal
	DeleteScopesByProposal(ctx context.Context, insurer, proposalID string) (int64, error)
}
