// Package integration provides integration testing utilities for the MES backend.
// It uses testcontainers to spin up real PostgreSQL databases for testing.
package integration

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/mes/backend/internal/infrastructure/config"
	"github.com/mes/backend/internal/infrastructure/migration"
	"github.com/mes/backend/internal/infrastructure/persistence"
	"github.com/mes/backend/migrations"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var (
	// Shared container for all tests in a package
	sharedContainer    testcontainers.Container
	sharedContainerMu  sync.Mutex
	sharedContainerDSN string
)

// TestDB represents a migrated test database
type TestDB struct {
	Database  *persistence.Database
	DB        *gorm.DB
	Container testcontainers.Container
	DSN       string
	t         *testing.T
}

// NewTestDB creates a new PostgreSQL container for testing.
// This creates a fresh container for each test, providing complete isolation.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()
	skipShort(t)

	ctx := context.Background()
	container, dsn := startPostgres(t, ctx, "mes_test")
	runMigrations(t, ctx, dsn)

	testDB := &TestDB{
		Container: container,
		DSN:       dsn,
		t:         t,
	}
	testDB.connect(ctx)

	t.Cleanup(func() {
		testDB.Close()
	})

	return testDB
}

// NewSharedTestDB returns a connection to a container shared by every test
// in the package. Tests sharing it should call CleanTables before seeding.
func NewSharedTestDB(t *testing.T) *TestDB {
	t.Helper()
	skipShort(t)

	sharedContainerMu.Lock()
	defer sharedContainerMu.Unlock()

	ctx := context.Background()

	if sharedContainer == nil {
		container, dsn := startPostgres(t, ctx, "mes_shared_test")
		runMigrations(t, ctx, dsn)
		sharedContainer = container
		sharedContainerDSN = dsn
	}

	testDB := &TestDB{
		Container: sharedContainer,
		DSN:       sharedContainerDSN,
		t:         t,
	}
	testDB.connect(ctx)

	// Only the connection belongs to this test
	t.Cleanup(func() {
		testDB.Close()
	})

	return testDB
}

// Close closes the database connection and terminates the container
func (tdb *TestDB) Close() {
	if tdb.Database != nil {
		if err := tdb.Database.Close(); err != nil {
			tdb.t.Logf("Warning: Failed to close database: %v", err)
		}
		tdb.Database = nil
	}

	// Only terminate if this is not the shared container
	if tdb.Container != nil && tdb.Container != sharedContainer {
		if err := tdb.Container.Terminate(context.Background()); err != nil {
			tdb.t.Logf("Warning: Failed to terminate container: %v", err)
		}
		tdb.Container = nil
	}
}

// Store returns the record store over this database
func (tdb *TestDB) Store() *persistence.GormRecordStore {
	return tdb.Database.RecordStore()
}

// CleanTables truncates all tables in the database
func (tdb *TestDB) CleanTables() {
	tdb.t.Helper()

	var tables []string
	err := tdb.DB.Raw(`
		SELECT tablename FROM pg_tables
		WHERE schemaname = 'public'
		AND tablename != 'schema_migrations'
	`).Scan(&tables).Error
	require.NoError(tdb.t, err, "Failed to get table names")

	for _, table := range tables {
		err := tdb.DB.Exec(fmt.Sprintf("TRUNCATE TABLE %q RESTART IDENTITY CASCADE", table)).Error
		if err != nil {
			tdb.t.Logf("Warning: Failed to truncate table %s: %v", table, err)
		}
	}
}

// connect opens the connection the way the server does, with test pool sizes
func (tdb *TestDB) connect(ctx context.Context) {
	tdb.t.Helper()

	log := zap.NewNop()
	level := gormlogger.Silent
	if os.Getenv("TEST_DB_DEBUG") != "" {
		log = zaptest.NewLogger(tdb.t)
		level = gormlogger.Info
	}

	db, err := persistence.NewDatabaseFromDialector(ctx, gormpostgres.Open(tdb.DSN), &config.DatabaseConfig{
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5,
	}, persistence.Options{
		Logger:   log,
		LogLevel: level,
	})
	require.NoError(tdb.t, err, "Failed to connect to database")

	tdb.Database = db
	tdb.DB = db.DB
}

func startPostgres(t *testing.T, ctx context.Context, dbName string) (testcontainers.Container, string) {
	t.Helper()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase(dbName),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		require.NoError(t, err, "Failed to get connection string")
	}
	return container, dsn
}

// runMigrations applies the embedded migrations
func runMigrations(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()

	m, err := migration.Open(ctx, dsn, migration.Source{FS: migrations.FS}, zap.NewNop())
	require.NoError(t, err, "Failed to open migrator")
	defer func() {
		_ = m.Close()
	}()

	require.NoError(t, m.Up(ctx), "Failed to run migrations")
}

func skipShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}

// CleanupSharedContainer terminates the shared container.
// This should be called in TestMain if using shared containers.
func CleanupSharedContainer() {
	sharedContainerMu.Lock()
	defer sharedContainerMu.Unlock()

	if sharedContainer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = sharedContainer.Terminate(ctx)
		sharedContainer = nil
		sharedContainerDSN = ""
	}
}
