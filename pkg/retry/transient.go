package retry

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"

	"github.com/lib/pq"
	apperrors "github.com/zatekoja/coveragecompare/pkg/errors"
)

// transientSQLStates lists PostgreSQL error codes that are safe to retry on
// read-only or idempotent paths.
var transientSQLStates = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"57P01": true, // admin_shutdown
	"57P03": true, // cannot_connect_now
	"53300": true, // too_many_connections
}

// IsTransient reports whether err looks like a connection loss or another
// storage failure that is expected to clear on its own.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if apperrors.Is(err, apperrors.ErrorTypeTransient) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		code := string(pqErr.Code)
		if len(code) >= 2 && code[:2] == "08" {
			return true
		}
		return transientSQLStates[code]
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return false
}
