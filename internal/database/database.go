// Package database provides connection management, the context-carried
// transaction manager and driver error classification.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

const defaultPingTimeout = 5 * time.Second

// Config holds database configuration settings.
type Config struct {
	Driver             string
	ConnectionString   string
	MaxOpenConnections int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
	PingTimeout        time.Duration
	// LockTimeout bounds row lock waits. MySQL applies it to every pooled
	// connection; PostgreSQL sets it per transaction through the TxManager.
	LockTimeout time.Duration
}

// Connect opens a pool for cfg.Driver and verifies it with a ping.
// MySQL DSNs are forced to parseTime=true so timestamps scan into time.Time.
func Connect(ctx context.Context, cfg Config) (*sql.DB, error) {
	dsn, err := normalizeDSN(cfg.Driver, cfg.ConnectionString, cfg.LockTimeout)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConnections)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// normalizeDSN adapts dsn to what the repositories expect. For MySQL a positive
// lockTimeout becomes the innodb_lock_wait_timeout system variable, which the
// driver sets on each new connection; an explicit value in dsn wins.
func normalizeDSN(driver, dsn string, lockTimeout time.Duration) (string, error) {
	switch driver {
	case DriverPostgres:
		return dsn, nil
	case DriverMySQL:
		parsed, err := mysql.ParseDSN(dsn)
		if err != nil {
			return "", fmt.Errorf("invalid mysql connection string: %w", err)
		}
		parsed.ParseTime = true
		if lockTimeout > 0 {
			if parsed.Params == nil {
				parsed.Params = make(map[string]string)
			}
			if _, ok := parsed.Params[mysqlLockWaitTimeoutVar]; !ok {
				parsed.Params[mysqlLockWaitTimeoutVar] = strconv.FormatInt(mysqlLockWaitSeconds(lockTimeout), 10)
			}
		}
		return parsed.FormatDSN(), nil
	default:
		return "", fmt.Errorf("unsupported database driver: %s", driver)
	}
}

const mysqlLockWaitTimeoutVar = "innodb_lock_wait_timeout"

// mysqlLockWaitSeconds rounds timeout up to whole seconds with a minimum of one,
// the granularity innodb_lock_wait_timeout accepts.
func mysqlLockWaitSeconds(timeout time.Duration) int64 {
	return int64(math.Max(1, math.Ceil(timeout.Seconds())))
}
