package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

var (
	// ErrStorage wraps every I/O failure of the sample store
	ErrStorage = errors.New("storage error")
	// ErrNotFound is returned when a requested record does not exist
	ErrNotFound = errors.New("record not found")
)

// DatabaseManager handles all database operations
type DatabaseManager struct {
	db            *sql.DB
	healthChecker *HealthChecker
	logger        *zap.Logger

	// serialize appends per table so ids are assigned and committed in one order
	rs485Mu sync.Mutex
	adxlMu  sync.Mutex
}

// NewDatabaseManager connects to Postgres and starts health checking
func NewDatabaseManager(dsn string, logger *zap.Logger) (*DatabaseManager, error) {
	db, err := connectDatabase(dsn)
	if err != nil {
		return nil, err
	}

	dm := NewDatabaseManagerWithDB(db, logger)
	dm.healthChecker.Start()

	return dm, nil
}

// NewDatabaseManagerWithDB wraps an existing connection. Health checking is not started.
func NewDatabaseManagerWithDB(db *sql.DB, logger *zap.Logger) *DatabaseManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DatabaseManager{
		db:            db,
		healthChecker: NewHealthChecker(db, 30*time.Second, logger),
		logger:        logger,
	}
}

// GetDB returns the underlying database connection
func (dm *DatabaseManager) GetDB() *sql.DB {
	return dm.db
}

// Close closes the database connection and stops health checking
func (dm *DatabaseManager) Close() error {
	if dm.healthChecker != nil {
		dm.healthChecker.Stop()
	}
	if dm.db != nil {
		return dm.db.Close()
	}
	return nil
}

// QueryWithHealthCheck executes a query with connection health verification
func (dm *DatabaseManager) QueryWithHealthCheck(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	if err := dm.healthChecker.EnsureConnection(ctx); err != nil {
		return nil, err
	}

	return dm.db.QueryContext(ctx, query, args...)
}

// QueryRowWithHealthCheck executes a query that returns a single row and scans it into dest
func (dm *DatabaseManager) QueryRowWithHealthCheck(ctx context.Context, query string, args []interface{}, dest ...interface{}) error {
	if err := dm.healthChecker.EnsureConnection(ctx); err != nil {
		return err
	}

	return dm.db.QueryRowContext(ctx, query, args...).Scan(dest...)
}

// ExecWithHealthCheck executes a statement with health check
func (dm *DatabaseManager) ExecWithHealthCheck(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	if err := dm.healthChecker.EnsureConnection(ctx); err != nil {
		return nil, err
	}

	return dm.db.ExecContext(ctx, query, args...)
}

// IsConnectionHealthy returns the current health status
func (dm *DatabaseManager) IsConnectionHealthy() bool {
	return dm.healthChecker.IsHealthy()
}

// Ping verifies the database is reachable right now
func (dm *DatabaseManager) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := dm.db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("%w: ping failed: %w", ErrStorage, err)
	}
	dm.healthChecker.MarkHealthy()
	return nil
}

// Init initializes the database with migrations
func (dm *DatabaseManager) Init(ctx context.Context) error {
	dm.logger.Info("Running database migrations")

	runner, err := NewMigrationsRunner(dm.db, dm.logger)
	if err != nil {
		return fmt.Errorf("failed to create migration runner: %w", err)
	}

	if err := runner.Run(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	dm.logger.Info("Database initialization completed")
	return nil
}

func storageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

// connectDatabase establishes a connection to the database
func connectDatabase(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return db, nil
}
