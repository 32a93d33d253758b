package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/coveragecompare/pkg/config"
	"github.com/zatekoja/coveragecompare/pkg/retry"
)

const defaultQueryTimeout = 5 * time.Second

// Client represents a PostgreSQL database client
type Client struct {
	db           *sqlx.DB
	queryTimeout time.Duration
}

// NewClient creates a new PostgreSQL client with exponential backoff retry
func NewClient(cfg *config.DatabaseConfig) (*Client, error) {
	db, err := sqlx.Open("postgres", cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Test the connection with retry
	err = retry.DoWithLog(
		context.Background(),
		retry.DefaultConfig(),
		"PostgreSQL",
		func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return db.PingContext(ctx)
		},
		func(attempt int, err error, nextDelay time.Duration) {
			log.Warn().Err(err).Int("attempt", attempt).Dur("next_delay", nextDelay).
				Msg("PostgreSQL connection attempt failed")
		},
	)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to PostgreSQL after retries: %w", err)
	}

	log.Info().Str("host", cfg.Host).Str("database", cfg.Database).Msg("Successfully connected to PostgreSQL")
	return &Client{db: db, queryTimeout: timeoutOrDefault(cfg.QueryTimeout)}, nil
}

// NewClientFromDB wraps an open connection, e.g. a sqlmock handle in tests
func NewClientFromDB(db *sql.DB, queryTimeout time.Duration) *Client {
	return &Client{db: sqlx.NewDb(db, "postgres"), queryTimeout: timeoutOrDefault(queryTimeout)}
}

func timeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultQueryTimeout
	}
	return d
}

// DB returns the underlying database connection
func (c *Client) DB() *sql.DB {
	return c.db.DB
}

// X returns the sqlx handle used for struct scanning
func (c *Client) X() *sqlx.DB {
	return c.db
}

// WithTimeout bounds a single statement by the configured query timeout
func (c *Client) WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.queryTimeout)
}

// Close closes the database connection
func (c *Client) Close() error {
	return c.db.Close()
}

// BeginTx starts a new transaction
func (c *Client) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return c.db.BeginTxx(ctx, opts)
}

// Ping verifies the connection to the database
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}
