package persistence_test

import (
	"context"
	"testing"

	"github.com/mes/backend/internal/domain/hierarchy"
	"github.com/mes/backend/internal/domain/processgate"
	"github.com/mes/backend/internal/domain/traceability"
	"github.com/mes/backend/internal/infrastructure/persistence"
	"github.com/mes/backend/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	motorCode  = "M11021G27W-0001"
	fingerCode = "MO-20250411-001-FL-0001"
	palmCode   = "DX021-P0001-60001"
	taskID     = "T1"
)

// setupHierarchyDB creates the canonical tables plus a legacy motor table
// using the mixed-case spellings of older deployments.
func setupHierarchyDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	require.NoError(t, db.Exec(`CREATE TABLE legacy_motors (id INTEGER PRIMARY KEY, "Motor_id" TEXT, "FingerId" TEXT)`).Error)

	require.NoError(t, db.Create(&models.TaskModel{TaskID: taskID, TaskNo: "WO-2025-001", ExpectedUnitCount: 1}).Error)
	require.NoError(t, db.Create(&models.PalmModel{PalmID: palmCode, TaskID: taskID}).Error)
	require.NoError(t, db.Create(&models.FingerModel{FingerID: fingerCode, PalmID: palmCode}).Error)
	require.NoError(t, db.Create(&models.MotorModel{MotorID: "M-canonical", FingerID: fingerCode}).Error)
	require.NoError(t, db.Exec(`INSERT INTO legacy_motors ("Motor_id", "FingerId") VALUES (?, ?)`, motorCode, fingerCode).Error)

	inspections := []models.PalmInspectionModel{
		{Inspection: models.Inspection{SeqID: 1, Qualified: false}, PalmID: palmCode},
		{Inspection: models.Inspection{SeqID: 2, Qualified: true}, PalmID: palmCode},
	}
	require.NoError(t, db.Create(&inspections).Error)
	return db
}

func TestGormRecordStore_Sqlite(t *testing.T) {
	db := setupHierarchyDB(t)
	store := persistence.NewGormRecordStore(db)
	ctx := context.Background()

	t.Run("reads legacy column spellings", func(t *testing.T) {
		cols, err := store.Columns(ctx, "legacy_motors")
		require.NoError(t, err)
		assert.Equal(t, []string{"id", "Motor_id", "FingerId"}, cols)

		row, found, err := store.FindOne(ctx, "legacy_motors", "Motor_id", motorCode)
		require.NoError(t, err)
		require.True(t, found)
		finger, ok := row.Value("FingerId")
		assert.True(t, ok)
		assert.Equal(t, fingerCode, finger)
	})

	t.Run("traces through mixed tables", func(t *testing.T) {
		schema := hierarchy.DefaultSchema().WithTables(map[string]string{"motor": "legacy_motors"})
		tracer := traceability.NewTracer(hierarchy.NewLocator(store), schema, nil)

		chain, err := tracer.Trace(ctx, motorCode)
		require.NoError(t, err)
		require.True(t, chain.Complete())
		assert.Equal(t, fingerCode, *chain.FingerID)
		assert.Equal(t, palmCode, *chain.PalmID)
		assert.Equal(t, "L", *chain.PalmSide)
		assert.Equal(t, taskID, *chain.TaskID)
		assert.Equal(t, "WO-2025-001", *chain.TaskNo)
	})

	t.Run("latest palm inspection decides the gate", func(t *testing.T) {
		schema := hierarchy.DefaultSchema()
		stage, ok := processgate.DefaultCatalog(schema).Lookup(processgate.StagePalm)
		require.True(t, ok)

		result, err := processgate.NewAggregator(hierarchy.NewLocator(store), schema).
			EvaluateGate(ctx, taskID, stage)
		require.NoError(t, err)
		assert.True(t, result.Passed)
		assert.Equal(t, 1, result.Expected)
		assert.Equal(t, 1, result.Actual)
	})

	t.Run("motor gate counts uninspected motors as unqualified", func(t *testing.T) {
		schema := hierarchy.DefaultSchema()
		stage, ok := processgate.DefaultCatalog(schema).Lookup(processgate.StageMotor)
		require.True(t, ok)

		result, err := processgate.NewAggregator(hierarchy.NewLocator(store), schema).
			EvaluateGate(ctx, taskID, stage)
		require.NoError(t, err)
		assert.False(t, result.Passed)
		assert.Equal(t, processgate.MotorsPerUnit, result.Expected)
		assert.Equal(t, 1, result.Children)
		assert.Equal(t, 0, result.Actual)
	})
}
