package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"go.uber.org/zap"
)

func TestNewHealthChecker(t *testing.T) {
	db := &sql.DB{}
	interval := 5 * time.Second

	hc := NewHealthChecker(db, interval, nil)

	if hc == nil {
		t.Fatal("Expected HealthChecker instance, got nil")
	}

	if hc.db != db {
		t.Error("Expected db to be set correctly")
	}

	if hc.checkInterval != interval {
		t.Errorf("Expected checkInterval=%v, got %v", interval, hc.checkInterval)
	}

	if !hc.isHealthy {
		t.Error("Expected initial health status to be true")
	}

	if hc.logger == nil {
		t.Error("Expected logger to default to a no-op logger")
	}
}

func TestStartStop(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	hc := NewHealthChecker(db, 20*time.Millisecond, zap.NewNop())
	hc.Start()
	defer hc.Stop()

	deadline := time.Now().Add(time.Second)
	for hc.IsHealthy() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if hc.IsHealthy() {
		t.Error("Expected failed ping to mark connection unhealthy")
	}
}

func TestStop_Twice(t *testing.T) {
	hc := NewHealthChecker(&sql.DB{}, 5*time.Second, nil)

	// Should not panic when stopping without starting or twice
	hc.Stop()
	hc.Stop()

	select {
	case <-hc.stopChan:
	case <-time.After(100 * time.Millisecond):
		t.Error("Expected stopChan to be closed after Stop()")
	}
}

func TestSetHealthy(t *testing.T) {
	hc := NewHealthChecker(&sql.DB{}, 5*time.Second, nil)

	hc.setHealthy(false, errors.New("down"))
	if hc.IsHealthy() {
		t.Error("Expected health status to be false")
	}

	hc.setHealthy(true, nil)
	if !hc.IsHealthy() {
		t.Error("Expected health status to be restored")
	}
}

func TestEnsureConnection_Unhealthy(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer db.Close()

	hc := NewHealthChecker(db, time.Hour, nil)
	hc.setHealthy(false, errors.New("down"))
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	err = hc.EnsureConnection(context.Background())
	if !errors.Is(err, errUnhealthy) {
		t.Fatalf("Expected errUnhealthy, got: %v", err)
	}

	if hc.IsHealthy() {
		t.Error("Expected connection to stay unhealthy")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled expectations: %v", err)
	}
}

func TestEnsureConnection_RecoversBeforeNextCheck(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer db.Close()

	hc := NewHealthChecker(db, time.Hour, nil)
	hc.setHealthy(false, errors.New("down"))
	mock.ExpectPing()

	if err := hc.EnsureConnection(context.Background()); err != nil {
		t.Fatalf("Expected recovered connection, got: %v", err)
	}

	if !hc.IsHealthy() {
		t.Error("Expected health status to be restored")
	}

	// healthy again: no further ping
	if err := hc.EnsureConnection(context.Background()); err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled expectations: %v", err)
	}
}

func TestEnsureConnection_Healthy(t *testing.T) {
	hc := NewHealthChecker(&sql.DB{}, 5*time.Second, nil)

	if err := hc.EnsureConnection(context.Background()); err != nil {
		t.Errorf("Expected no error for healthy connection, got: %v", err)
	}
}

func TestEnsureConnection_ContextCanceled(t *testing.T) {
	hc := NewHealthChecker(&sql.DB{}, 5*time.Second, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := hc.EnsureConnection(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got: %v", err)
	}
}

func TestHealthChecker_ConcurrentAccess(t *testing.T) {
	hc := NewHealthChecker(&sql.DB{}, 5*time.Second, nil)

	done := make(chan bool)

	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				_ = hc.IsHealthy()
			}
			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		go func(val bool) {
			for j := 0; j < 100; j++ {
				hc.setHealthy(val, nil)
			}
			done <- true
		}(i%2 == 0)
	}

	for i := 0; i < 20; i++ {
		<-done
	}
}
