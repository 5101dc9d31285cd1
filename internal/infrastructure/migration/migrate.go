package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Source selects where migration files are read from. Dir takes precedence;
// with an empty Dir the files are read from FS (usually the embedded set).
type Source struct {
	Dir string
	FS  fs.FS
}

func (s Source) files() (fs.FS, error) {
	if s.Dir != "" {
		return os.DirFS(s.Dir), nil
	}
	if s.FS == nil {
		return nil, errors.New("migration source has neither a directory nor a filesystem")
	}
	return s.FS, nil
}

// Migrator applies the hierarchy schema migrations with golang-migrate
type Migrator struct {
	migrate *migrate.Migrate
	source  Source
	logger  *zap.Logger
}

// Status summarizes the applied and pending migrations
type Status struct {
	Version uint
	Dirty   bool
	Applied []Entry
	Pending []Entry
}

// New creates a Migrator over an open postgres connection. The migrator
// takes ownership of db; Close closes it.
func New(db *sql.DB, src Source, logger *zap.Logger) (*Migrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	var m *migrate.Migrate
	if src.Dir != "" {
		abs, absErr := filepath.Abs(src.Dir)
		if absErr != nil {
			return nil, fmt.Errorf("failed to resolve migrations path: %w", absErr)
		}
		m, err = migrate.NewWithDatabaseInstance("file://"+filepath.ToSlash(abs), "postgres", driver)
	} else {
		if src.FS == nil {
			return nil, errors.New("migration source has neither a directory nor a filesystem")
		}
		sourceDriver, srcErr := iofs.New(src.FS, ".")
		if srcErr != nil {
			return nil, fmt.Errorf("failed to read embedded migrations: %w", srcErr)
		}
		m, err = migrate.NewWithInstance("iofs", sourceDriver, "postgres", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = newMigrateLogger(logger)

	return &Migrator{
		migrate: m,
		source:  src,
		logger:  logger,
	}, nil
}

// Open connects to dsn with lib/pq, verifies the connection and returns a
// Migrator owning it.
func Open(ctx context.Context, dsn string, src Source, logger *zap.Logger) (*Migrator, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	m, err := New(db, src, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return m, nil
}

// Up applies every pending migration. Cancelling ctx stops after the
// migration in flight.
func (m *Migrator) Up(ctx context.Context) error {
	m.logger.Info("Running migrations up")

	stop := m.watch(ctx)
	err := m.migrate.Up()
	stop()
	if done, err := m.finish(ctx, "up", err); done || err != nil {
		return err
	}

	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	m.logger.Info("Migrations completed",
		zap.Uint("version", version),
		zap.Bool("dirty", dirty),
	)
	return nil
}

// Down rolls back every applied migration
func (m *Migrator) Down(ctx context.Context) error {
	m.logger.Info("Running migrations down")

	stop := m.watch(ctx)
	err := m.migrate.Down()
	stop()
	if done, err := m.finish(ctx, "down", err); done || err != nil {
		return err
	}

	m.logger.Info("All migrations rolled back")
	return nil
}

// Steps applies n migrations; a negative n rolls back
func (m *Migrator) Steps(ctx context.Context, n int) error {
	if n == 0 {
		return errors.New("step count must not be zero")
	}
	m.logger.Info("Running migration steps", zap.Int("steps", n))

	stop := m.watch(ctx)
	err := m.migrate.Steps(n)
	stop()
	if done, err := m.finish(ctx, "steps", err); done || err != nil {
		return err
	}

	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	m.logger.Info("Migration steps completed",
		zap.Uint("version", version),
		zap.Bool("dirty", dirty),
	)
	return nil
}

// finish interprets the result of a migrate run. done reports that there
// was nothing left to do.
func (m *Migrator) finish(ctx context.Context, op string, err error) (done bool, _ error) {
	if errors.Is(err, migrate.ErrNoChange) {
		m.logger.Info("No migrations to apply", zap.String("op", op))
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("migration %s failed: %w", op, err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return false, fmt.Errorf("migration %s interrupted: %w", op, ctxErr)
	}
	return false, nil
}

// watch forwards ctx cancellation to golang-migrate's graceful stop.
// The returned func must be called once the run returns.
func (m *Migrator) watch(ctx context.Context) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			m.migrate.GracefulStop <- true
		case <-done:
		}
	}()
	return func() { close(done) }
}

// Version returns the current migration version; 0 when none is applied
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.migrate.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}
	return version, dirty, nil
}

// Status lists which migrations of the source are applied and which pending
func (m *Migrator) Status() (Status, error) {
	version, dirty, err := m.Version()
	if err != nil {
		return Status{}, err
	}
	files, err := m.source.files()
	if err != nil {
		return Status{}, err
	}
	entries, err := ListMigrations(files)
	if err != nil {
		return Status{}, err
	}

	applied, pending := splitApplied(entries, version)
	return Status{Version: version, Dirty: dirty, Applied: applied, Pending: pending}, nil
}

func splitApplied(entries []Entry, version uint) (applied, pending []Entry) {
	for _, e := range entries {
		if e.Version <= version {
			applied = append(applied, e)
		} else {
			pending = append(pending, e)
		}
	}
	return applied, pending
}

// Force sets the recorded version without running migrations.
// It is only meant for clearing a dirty state after a manual fix.
func (m *Migrator) Force(version int) error {
	m.logger.Warn("Forcing migration version", zap.Int("version", version))

	if err := m.migrate.Force(version); err != nil {
		return fmt.Errorf("failed to force version %d: %w", version, err)
	}

	m.logger.Info("Migration version forced", zap.Int("version", version))
	return nil
}

// Close releases the source and the database connection
func (m *Migrator) Close() error {
	sourceErr, dbErr := m.migrate.Close()
	if sourceErr != nil {
		return fmt.Errorf("failed to close source: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("failed to close database: %w", dbErr)
	}
	return nil
}

// migrateLogger routes golang-migrate's printf logging to zap
type migrateLogger struct {
	logger  *zap.Logger
	verbose bool
}

func newMigrateLogger(logger *zap.Logger) *migrateLogger {
	return &migrateLogger{
		logger:  logger.Named("migrate"),
		verbose: logger.Core().Enabled(zap.DebugLevel),
	}
}

func (l *migrateLogger) Printf(format string, v ...any) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l *migrateLogger) Verbose() bool {
	return l.verbose
}
