package migration

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/mes/backend/internal/domain/hierarchy"
	"github.com/mes/backend/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestEmbeddedMigrations(t *testing.T) {
	entries, err := ListMigrations(migrations.FS)
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	for i, e := range entries {
		assert.Equal(t, uint(i+1), e.Version, "versions are contiguous")
		assert.True(t, e.HasDown, "migration %d has a rollback", e.Version)
	}
}

func TestEmbeddedMigrations_CreateEveryTable(t *testing.T) {
	driver, err := iofs.New(migrations.FS, ".")
	require.NoError(t, err)
	defer driver.Close()

	var ddl strings.Builder
	version, err := driver.First()
	for err == nil {
		r, _, readErr := driver.ReadUp(version)
		require.NoError(t, readErr)
		body, readErr := io.ReadAll(r)
		require.NoError(t, readErr)
		_ = r.Close()
		ddl.Write(body)

		version, err = driver.Next(version)
	}
	require.ErrorIs(t, err, os.ErrNotExist)

	for _, c := range hierarchy.DefaultSchema().Collections() {
		assert.Contains(t, ddl.String(), "CREATE TABLE IF NOT EXISTS "+c.Table+" (", c.Name)
	}
}

func TestSplitApplied(t *testing.T) {
	entries := []Entry{{Version: 1}, {Version: 2}, {Version: 3}}

	tests := []struct {
		name    string
		version uint
		applied int
		pending int
	}{
		{"nothing applied", 0, 0, 3},
		{"partially applied", 2, 2, 1},
		{"all applied", 3, 3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			applied, pending := splitApplied(entries, tt.version)
			assert.Len(t, applied, tt.applied)
			assert.Len(t, pending, tt.pending)
		})
	}
}

func TestSourceFiles(t *testing.T) {
	t.Run("directory takes precedence", func(t *testing.T) {
		dir := t.TempDir()
		writeFiles(t, dir, "000001_init.up.sql", "000001_init.down.sql")

		files, err := Source{Dir: dir, FS: migrations.FS}.files()
		require.NoError(t, err)
		entries, err := ListMigrations(files)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "init", entries[0].Name)
	})

	t.Run("empty source is an error", func(t *testing.T) {
		_, err := Source{}.files()
		assert.Error(t, err)
	})
}

func TestOpen_InvalidDSN(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Open(ctx, "postgres://mes@127.0.0.1:1/mes?sslmode=disable", Source{FS: migrations.FS}, nil)
	assert.Error(t, err)
}

func TestMigrateLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := newMigrateLogger(zap.New(core))

	l.Printf("Start buffering %d/u %s\n", 1, "create_hierarchy")

	assert.True(t, l.Verbose())
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "Start buffering 1/u create_hierarchy", entry.Message)
	assert.Equal(t, "migrate", entry.LoggerName)

	quiet := newMigrateLogger(zap.NewNop())
	assert.False(t, quiet.Verbose())
}
