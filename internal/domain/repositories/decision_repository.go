package repositories

import (
	"context"

	"github.com/zatekoja/coveragecompare/internal/domain/entities"
)

// DecisionRepository defines data operations for canonical decisions
type DecisionRepository interface {
	// Save stores the decision for (coverage name, insurer), replacing a previous one
	Save(ctx context.Context, rec entities.DecisionRecord) error

	// Get retrieves the decision for (coverage name, insurer)
	Get(ctx context.Context, coverageNameRaw, insurer string) (*entities.DecisionRecord, error)

	// Counts returns the number of DECIDED and UNDECIDED decisions
	Counts(ctx context.Context) (decided, undecided int64, err error)
}
