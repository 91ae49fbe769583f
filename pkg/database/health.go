package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// errUnhealthy is returned while the last periodic ping failed
var errUnhealthy = errors.New("database connection is not healthy")

// HealthChecker monitors database connection health.
// Reconnects are left to the database/sql pool. While unhealthy, EnsureConnection pings again before failing.
type HealthChecker struct {
	db            *sql.DB
	checkInterval time.Duration
	logger        *zap.Logger
	stopChan      chan struct{}
	stopOnce      sync.Once
	started       bool
	mu            sync.RWMutex
	isHealthy     bool
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(db *sql.DB, checkInterval time.Duration, logger *zap.Logger) *HealthChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthChecker{
		db:            db,
		checkInterval: checkInterval,
		logger:        logger,
		stopChan:      make(chan struct{}),
		isHealthy:     true,
	}
}

// Start begins monitoring the database connection
func (chc *HealthChecker) Start() {
	chc.mu.Lock()
	if chc.started {
		chc.mu.Unlock()
		return
	}
	chc.started = true
	chc.mu.Unlock()

	ticker := time.NewTicker(chc.checkInterval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-chc.stopChan:
				return
			case <-ticker.C:
				chc.checkConnection()
			}
		}
	}()
}

// Stop stops monitoring the database connection. Safe to call more than once.
func (chc *HealthChecker) Stop() {
	chc.stopOnce.Do(func() {
		close(chc.stopChan)
	})
}

// checkConnection performs a health check on the database connection
func (chc *HealthChecker) checkConnection() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := chc.db.PingContext(ctx)
	chc.setHealthy(err == nil, err)
}

func (chc *HealthChecker) setHealthy(healthy bool, err error) {
	chc.mu.Lock()
	defer chc.mu.Unlock()

	if !healthy {
		if chc.isHealthy {
			chc.logger.Error("Database connection health check failed", zap.Error(err))
		}
		chc.isHealthy = false
		return
	}

	if !chc.isHealthy {
		chc.logger.Info("Database connection restored")
	}
	chc.isHealthy = true
}

// IsHealthy returns the current health status of the connection
func (chc *HealthChecker) IsHealthy() bool {
	chc.mu.RLock()
	defer chc.mu.RUnlock()
	return chc.isHealthy
}

// EnsureConnection passes while the connection is healthy. Once a check has
// failed it pings on demand, so callers recover as soon as the database is back.
func (chc *HealthChecker) EnsureConnection(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if chc.IsHealthy() {
		return nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := chc.db.PingContext(pingCtx); err != nil {
		chc.setHealthy(false, err)
		return fmt.Errorf("%w: %w", errUnhealthy, err)
	}

	chc.setHealthy(true, nil)
	return nil
}

// MarkHealthy records a successful round-trip made outside the checker
func (chc *HealthChecker) MarkHealthy() {
	chc.setHealthy(true, nil)
}
