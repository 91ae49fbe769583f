package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewDatabaseManagerWithDB(t *testing.T) {
	dm, _ := newMockManager(t)

	assert.NotNil(t, dm.GetDB())
	assert.NotNil(t, dm.healthChecker)
	assert.NotNil(t, dm.logger)
	assert.True(t, dm.IsConnectionHealthy())
}

func TestNewDatabaseManagerWithDB_NilLogger(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	dm := NewDatabaseManagerWithDB(db, nil)
	assert.NotNil(t, dm.logger)
}

func TestPing_Mock(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	dm := NewDatabaseManagerWithDB(db, zap.NewNop())

	mock.ExpectPing()
	assert.NoError(t, dm.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	err = dm.Ping(context.Background())
	assert.ErrorIs(t, err, ErrStorage)
}

func TestQueryWithHealthCheck_Unhealthy(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	dm := NewDatabaseManagerWithDB(db, zap.NewNop())
	dm.healthChecker.setHealthy(false, errors.New("down"))
	for i := 0; i < 3; i++ {
		mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	}

	_, err = dm.QueryWithHealthCheck(context.Background(), "SELECT 1")
	assert.Error(t, err)

	_, err = dm.ExecWithHealthCheck(context.Background(), "SELECT 1")
	assert.Error(t, err)

	var n int
	err = dm.QueryRowWithHealthCheck(context.Background(), "SELECT 1", nil, &n)
	assert.Error(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryWithHealthCheck_RecoversAfterOutage(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	dm := NewDatabaseManagerWithDB(db, zap.NewNop())
	dm.healthChecker.setHealthy(false, errors.New("down"))

	mock.ExpectPing()
	mock.ExpectExec("DELETE FROM rs485_samples").WillReturnResult(sqlmock.NewResult(0, 0))

	_, err = dm.ExecWithHealthCheck(context.Background(), "DELETE FROM rs485_samples")
	require.NoError(t, err)
	assert.True(t, dm.IsConnectionHealthy())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPing_MarksHealthy(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	dm := NewDatabaseManagerWithDB(db, zap.NewNop())
	dm.healthChecker.setHealthy(false, errors.New("down"))

	mock.ExpectPing()
	require.NoError(t, dm.Ping(context.Background()))
	assert.True(t, dm.IsConnectionHealthy())
}

func TestClose_Mock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	dm := NewDatabaseManagerWithDB(db, zap.NewNop())
	mock.ExpectClose()

	assert.NoError(t, dm.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryWithHealthCheck(t *testing.T) {
	dm := setupTestDatabaseManager(t)
	if dm == nil {
		t.Skip("Skipping test that requires real database connection")
	}
	defer dm.Close()

	rows, err := dm.QueryWithHealthCheck(context.Background(), "SELECT 1 as num")
	if err != nil {
		t.Fatalf("Expected query to succeed: %v", err)
	}
	defer rows.Close()

	if !rows.Next() {
		t.Fatal("Expected at least one row")
	}

	var num int
	if err := rows.Scan(&num); err != nil {
		t.Errorf("Expected to scan result: %v", err)
	}

	if num != 1 {
		t.Errorf("Expected num=1, got %d", num)
	}
}

func TestQueryRowWithHealthCheck(t *testing.T) {
	dm := setupTestDatabaseManager(t)
	if dm == nil {
		t.Skip("Skipping test that requires real database connection")
	}
	defer dm.Close()

	var num int
	if err := dm.QueryRowWithHealthCheck(context.Background(), "SELECT $1::int", []interface{}{7}, &num); err != nil {
		t.Fatalf("Expected query to succeed: %v", err)
	}

	if num != 7 {
		t.Errorf("Expected num=7, got %d", num)
	}
}

func TestInit(t *testing.T) {
	dm := setupTestDatabaseManager(t)
	if dm == nil {
		t.Skip("Skipping test that requires real database connection")
	}
	defer dm.Close()

	// setupTestDatabaseManager already ran migrations, Init must be idempotent
	if err := dm.Init(context.Background()); err != nil {
		t.Errorf("Expected Init to succeed: %v", err)
	}

	var count int
	if err := dm.QueryRowWithHealthCheck(context.Background(), "SELECT COUNT(*) FROM schema_migrations", nil, &count); err != nil {
		t.Errorf("Expected to query migrations table: %v", err)
	}

	if count != 2 {
		t.Errorf("Expected 2 applied migrations, got %d", count)
	}
}

func TestQueryWithHealthCheck_ContextTimeout(t *testing.T) {
	dm := setupTestDatabaseManager(t)
	if dm == nil {
		t.Skip("Skipping test that requires real database connection")
	}
	defer dm.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Nanosecond)
	defer cancel()

	time.Sleep(10 * time.Millisecond)

	if _, err := dm.QueryWithHealthCheck(ctx, "SELECT pg_sleep(1)"); err == nil {
		t.Error("Expected error due to context timeout")
	}
}
