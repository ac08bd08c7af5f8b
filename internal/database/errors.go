package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"

	apperrors "github.com/almacen/catalog/internal/errors"
)

// PostgreSQL SQLSTATE codes treated specially.
const (
	pgUniqueViolation      = "23505"
	pgLockNotAvailable     = "55P03"
	pgDeadlockDetected     = "40P01"
	pgSerializationFailure = "40001"
	pgQueryCanceled        = "57014"
	pgAdminShutdown        = "57P01"
	pgConnectionException  = "08"
)

// MySQL server error numbers treated specially.
const (
	mysqlDuplicateEntry  = 1062
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
)

// IsUniqueViolation reports whether err is a unique or primary key violation.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pgUniqueViolation
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlDuplicateEntry
	}

	return false
}

// IsTransient reports whether err is a failure that leaves no partial state and
// is worth retrying: lock wait timeouts, deadlocks, serialization failures,
// cancelled statements and lost connections.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pgLockNotAvailable, pgDeadlockDetected, pgSerializationFailure, pgQueryCanceled, pgAdminShutdown:
			return true
		}
		return string(pqErr.Code.Class()) == pgConnectionException
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlLockWaitTimeout || mysqlErr.Number == mysqlDeadlock
	}

	return false
}

// ClassifyError marks transient failures with apperrors.ErrUnavailable so callers
// can decide to retry without knowing about drivers. Other errors are returned as is.
func ClassifyError(err error) error {
	if IsTransient(err) {
		return apperrors.MarkTransient(err)
	}
	return err
}
