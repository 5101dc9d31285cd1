package persistence_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/mes/backend/internal/domain/hierarchy"
	"github.com/mes/backend/internal/domain/shared"
	"github.com/mes/backend/internal/infrastructure/persistence"
	"github.com/mes/backend/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormRecordStore_Columns(t *testing.T) {
	t.Run("returns column names", func(t *testing.T) {
		db := testutil.NewMockDB(t)
		defer db.Close()
		store, mock := db.Store(), db.Mock

		mock.ExpectQuery(`SELECT \* FROM "motors"`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "Motor_id", "FingerId"}))

		cols, err := store.Columns(context.Background(), "motors")
		require.NoError(t, err)
		assert.Equal(t, []string{"id", "Motor_id", "FingerId"}, cols)
		db.ExpectationsWereMet(t)
	})

	t.Run("wraps storage errors", func(t *testing.T) {
		db := testutil.NewMockDB(t)
		defer db.Close()
		store, mock := db.Store(), db.Mock

		dbErr := errors.New("relation \"motors\" does not exist")
		mock.ExpectQuery(`SELECT \* FROM "motors"`).WillReturnError(dbErr)

		_, err := store.Columns(context.Background(), "motors")
		require.Error(t, err)
		assert.ErrorIs(t, err, dbErr)
		assert.Contains(t, err.Error(), "read columns of motors")
	})

	t.Run("rejects invalid table names without querying", func(t *testing.T) {
		db := testutil.NewMockDB(t)
		defer db.Close()
		store := db.Store()

		_, err := store.Columns(context.Background(), `motors; DROP TABLE tasks`)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
		db.ExpectationsWereMet(t)
	})
}

func TestGormRecordStore_FindOne(t *testing.T) {
	t.Run("finds row by column", func(t *testing.T) {
		db := testutil.NewMockDB(t)
		defer db.Close()
		store, mock := db.Store(), db.Mock

		mock.ExpectQuery(`SELECT \* FROM "motors" WHERE "Motor_id" = \$1 LIMIT \$2`).
			WithArgs("M11021-0001", 1).
			WillReturnRows(sqlmock.NewRows([]string{"Motor_id", "FingerId"}).
				AddRow("M11021-0001", "MO-A-B-0001-01"))

		row, found, err := store.FindOne(context.Background(), "motors", "Motor_id", "M11021-0001")
		require.NoError(t, err)
		require.True(t, found)

		finger, ok := row.Value("FingerId")
		assert.True(t, ok)
		assert.Equal(t, "MO-A-B-0001-01", finger)
		db.ExpectationsWereMet(t)
	})

	t.Run("miss is not an error", func(t *testing.T) {
		db := testutil.NewMockDB(t)
		defer db.Close()
		store, mock := db.Store(), db.Mock

		mock.ExpectQuery(`SELECT \* FROM "palms" WHERE "palm_id" = \$1 LIMIT \$2`).
			WithArgs("DX021-P9", 1).
			WillReturnRows(sqlmock.NewRows([]string{"palm_id", "task_id"}))

		row, found, err := store.FindOne(context.Background(), "palms", "palm_id", "DX021-P9")
		require.NoError(t, err)
		assert.False(t, found)
		assert.Nil(t, row)
	})

	t.Run("wraps storage errors", func(t *testing.T) {
		db := testutil.NewMockDB(t)
		defer db.Close()
		store, mock := db.Store(), db.Mock

		mock.ExpectQuery(`SELECT \* FROM "palms"`).WillReturnError(sql.ErrConnDone)

		_, _, err := store.FindOne(context.Background(), "palms", "palm_id", "P1")
		assert.ErrorIs(t, err, sql.ErrConnDone)
	})

	t.Run("rejects invalid column", func(t *testing.T) {
		db := testutil.NewMockDB(t)
		defer db.Close()
		store := db.Store()

		_, _, err := store.FindOne(context.Background(), "palms", `palm_id" OR 1=1 --`, "P1")
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("canceled context", func(t *testing.T) {
		db := testutil.NewMockDB(t)
		defer db.Close()
		store := db.Store()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, _, err := store.FindOne(ctx, "palms", "palm_id", "P1")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestGormRecordStore_FindWhere(t *testing.T) {
	t.Run("finds rows with IN", func(t *testing.T) {
		db := testutil.NewMockDB(t)
		defer db.Close()
		store, mock := db.Store(), db.Mock

		mock.ExpectQuery(`SELECT \* FROM "fingers" WHERE "palm_id" IN \(\$1,\$2\)`).
			WithArgs("P1", "P2").
			WillReturnRows(sqlmock.NewRows([]string{"finger_id", "palm_id"}).
				AddRow("F1", "P1").
				AddRow("F2", "P1").
				AddRow("F3", "P2"))

		rows, err := store.FindWhere(context.Background(), "fingers", "palm_id", []any{"P1", "P2"})
		require.NoError(t, err)
		require.Len(t, rows, 3)
		id, _ := rows[2].Value("finger_id")
		assert.Equal(t, "F3", id)
		db.ExpectationsWereMet(t)
	})

	t.Run("empty values skip the query", func(t *testing.T) {
		db := testutil.NewMockDB(t)
		defer db.Close()
		store := db.Store()

		rows, err := store.FindWhere(context.Background(), "fingers", "palm_id", nil)
		require.NoError(t, err)
		assert.Empty(t, rows)
		db.ExpectationsWereMet(t)
	})

	t.Run("long lists are chunked", func(t *testing.T) {
		db := testutil.NewMockDB(t)
		defer db.Close()
		store, mock := db.Store(), db.Mock

		values := make([]any, persistence.MaxInValues+2)
		for i := range values {
			values[i] = fmt.Sprintf("F%d", i)
		}

		mock.ExpectQuery(`SELECT \* FROM "motors" WHERE "finger_id" IN`).
			WillReturnRows(sqlmock.NewRows([]string{"motor_id"}).AddRow("M1"))
		mock.ExpectQuery(`SELECT \* FROM "motors" WHERE "finger_id" IN \(\$1,\$2\)`).
			WithArgs(values[persistence.MaxInValues], values[persistence.MaxInValues+1]).
			WillReturnRows(sqlmock.NewRows([]string{"motor_id"}).AddRow("M2"))

		rows, err := store.FindWhere(context.Background(), "motors", "finger_id", values)
		require.NoError(t, err)
		assert.Len(t, rows, 2)
		db.ExpectationsWereMet(t)
	})

	t.Run("storage error stops the walk", func(t *testing.T) {
		db := testutil.NewMockDB(t)
		defer db.Close()
		store, mock := db.Store(), db.Mock

		mock.ExpectQuery(`SELECT \* FROM "motors"`).WillReturnError(sql.ErrConnDone)

		rows, err := store.FindWhere(context.Background(), "motors", "finger_id", []any{"F1"})
		assert.ErrorIs(t, err, sql.ErrConnDone)
		assert.Nil(t, rows)
	})
}

func TestGormRecordStore_Identifiers(t *testing.T) {
	db := testutil.NewMockDB(t)
	defer db.Close()
	store := db.Store()
	ctx := context.Background()

	valid := []string{"motors", "Motor_id", "_tmp", "rotary_servo_inspections", "SeqId2"}
	for _, name := range valid {
		db.Mock.ExpectQuery(fmt.Sprintf(`SELECT \* FROM "%s" WHERE "%s" = \$1`, name, name)).
			WillReturnRows(sqlmock.NewRows([]string{name}))
		_, _, err := store.FindOne(ctx, name, name, "x")
		assert.NoError(t, err, name)
	}

	invalid := []string{"", "1motors", "motor id", `"motors"`, "public.motors", "a-b"}
	for _, name := range invalid {
		_, _, err := store.FindOne(ctx, "motors", name, "x")
		assert.ErrorIs(t, err, shared.ErrInvalidInput, name)
		_, err = store.Columns(ctx, name)
		assert.ErrorIs(t, err, shared.ErrInvalidInput, name)
	}
	db.ExpectationsWereMet(t)
}

func TestGormRecordStore_ImplementsRecordStore(t *testing.T) {
	var _ hierarchy.RecordStore = persistence.NewGormRecordStore(nil)
}
