package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/zatekoja/coveragecompare/internal/domain/repositories"
	"github.com/zatekoja/coveragecompare/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/coveragecompare/pkg/errors"
	"github.com/zatekoja/coveragecompare/pkg/retry"
)

var dialect = goqu.Dialect("postgres")

// PostgreSQL error codes mapped to application errors
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeRestrictViolation   = "23001"
)

// sqlBuilder is any goqu dataset
type sqlBuilder interface {
	ToSQL() (string, []interface{}, error)
}

// base carries what every adapter needs: the client, its query timeout and
// the retry policy for reads
type base struct {
	client   *postgres.Client
	retryCfg retry.Config
}

func newBase(client *postgres.Client) base {
	return base{client: client, retryCfg: retry.StorageConfig()}
}

// NewStore builds every repository over one PostgreSQL client
func NewStore(client *postgres.Client) repositories.Store {
	return repositories.Store{
		Registry:  NewRegistryAdapter(client),
		Aliases:   NewAliasAdapter(client),
		Universe:  NewUniverseAdapter(client),
		Mappings:  NewMappingAdapter(client),
		Disease:   NewDiseaseAdapter(client),
		Decisions: NewDecisionAdapter(client),
		Workbench: NewWorkbenchAdapter(client),
	}
}

// get scans one row into dest. Missing rows are NotFound errors.
func (b *base) get(ctx context.Context, q sqlx.QueryerContext, dest interface{}, ds sqlBuilder, what string) error {
	query, args, err := ds.ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build query", err)
	}
	err = b.read(ctx, func(ctx context.Context) error {
		return sqlx.GetContext(ctx, q, dest, query, args...)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NewNotFoundError(fmt.Sprintf("%s not found", what))
	}
	if err != nil {
		return readError(fmt.Sprintf("failed to get %s", what), err)
	}
	return nil
}

// selectAll scans all rows into dest, a pointer to a slice
func (b *base) selectAll(ctx context.Context, q sqlx.QueryerContext, dest interface{}, ds sqlBuilder, what string) error {
	query, args, err := ds.ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build query", err)
	}
	err = b.read(ctx, func(ctx context.Context) error {
		return sqlx.SelectContext(ctx, q, dest, query, args...)
	})
	if err != nil {
		return readError(fmt.Sprintf("failed to list %s", what), err)
	}
	return nil
}

// exists reports whether ds returns a row
func (b *base) exists(ctx context.Context, q sqlx.QueryerContext, ds *goqu.SelectDataset, what string) (bool, error) {
	var one int
	err := b.get(ctx, q, &one, ds.Select(goqu.L("1")).Limit(1), what)
	if apperrors.Is(err, apperrors.ErrorTypeNotFound) {
		return false, nil
	}
	return err == nil, err
}

// exec runs a write statement once; writes are never retried here
func (b *base) exec(ctx context.Context, e sqlx.ExecerContext, ds sqlBuilder, what string) (int64, error) {
	query, args, err := ds.ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build query", err)
	}
	ctx, cancel := b.client.WithTimeout(ctx)
	defer cancel()
	res, err := e.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, writeError(what, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to read affected rows", err)
	}
	return n, nil
}

// read runs fn under the query timeout, retrying transient failures
func (b *base) read(ctx context.Context, fn func(ctx context.Context) error) error {
	return retry.DoIf(ctx, b.retryCfg, retry.IsTransient, func() error {
		ctx, cancel := b.client.WithTimeout(ctx)
		defer cancel()
		return fn(ctx)
	})
}

// withTx runs fn in a transaction, committing only when it returns nil
func (b *base) withTx(ctx context.Context, opts *sql.TxOptions, fn func(tx *sqlx.Tx) error) error {
	tx, err := b.client.BeginTx(ctx, opts)
	if err != nil {
		return readError("failed to begin transaction", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return writeError("commit transaction", err)
	}
	return nil
}

func readError(message string, err error) error {
	if retry.IsTransient(err) {
		return apperrors.NewTransientError(message, err)
	}
	return apperrors.NewInternalError(message, err)
}

// writeError classifies a failed write. Constraint violations become
// conflicts or validation errors so callers can tell them from outages.
func writeError(what string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case codeUniqueViolation:
			return apperrors.NewConflictError(fmt.Sprintf("%s: %s already exists", what, pqErr.Constraint))
		case codeForeignKeyViolation:
			return apperrors.NewValidationError(fmt.Sprintf("%s: referenced record does not exist (%s)", what, pqErr.Constraint))
		case codeCheckViolation:
			return apperrors.NewValidationError(fmt.Sprintf("%s: %s violated", what, pqErr.Constraint))
		case codeRestrictViolation:
			return apperrors.NewValidationError(fmt.Sprintf("%s: %s", what, pqErr.Message))
		}
	}
	return readError(fmt.Sprintf("failed to %s", what), err)
}
