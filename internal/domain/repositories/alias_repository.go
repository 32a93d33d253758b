package repositories

import (
	"context"

	"github.com/zatekoja/coveragecompare/internal/domain/entities"
)

// AliasRepository reads the versioned alias table
type AliasRepository interface {
	// CurrentVersion returns the alias table version
	CurrentVersion(ctx context.Context) (int64, error)

	// LoadTable returns all aliases and name maps with the version they were read at
	LoadTable(ctx context.Context) (*entities.AliasTable, error)

	// ImportAliases inserts seed aliases, skipping keys that already exist, and
	// bumps the version when anything was written
	ImportAliases(ctx context.Context, aliases []*entities.AliasRecord) (int, error)
}
