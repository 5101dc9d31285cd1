package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/mes/backend/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestNewMockDB(t *testing.T) {
	mockDB := NewMockDB(t)
	defer mockDB.Close()

	assert.NotNil(t, mockDB.DB)
	assert.NotNil(t, mockDB.Mock)
	assert.NotNil(t, mockDB.SqlDB)
}

func TestMockDB_ExpectationsWereMet(t *testing.T) {
	mockDB := NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectationsWereMet(t)
}

func TestMockDB_Store(t *testing.T) {
	mockDB := NewMockDB(t)
	defer mockDB.Close()

	mockDB.Mock.ExpectQuery(`SELECT \* FROM "palms" WHERE "palm_id" = \$1 LIMIT \$2`).
		WithArgs("DX021-P0001-60001", 1).
		WillReturnRows(sqlmock.NewRows([]string{"palm_id", "task_id"}).AddRow("DX021-P0001-60001", "T1"))

	row, found, err := mockDB.Store().FindOne(context.Background(), "palms", "palm_id", "DX021-P0001-60001")
	require.NoError(t, err)
	require.True(t, found)
	task, ok := row.Value("task_id")
	assert.True(t, ok)
	assert.Equal(t, "T1", task)
	mockDB.ExpectationsWereMet(t)
}

func TestContextWithTimeout(t *testing.T) {
	ctx, cancel := ContextWithTimeout(t, time.Second)
	defer cancel()

	deadline, ok := ctx.Deadline()
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Second), deadline, 100*time.Millisecond)
}

func TestServe(t *testing.T) {
	engine := gin.New()
	engine.POST("/echo", func(c *gin.Context) {
		var body map[string]any
		_ = c.ShouldBindJSON(&body)
		c.JSON(http.StatusOK, gin.H{"success": true, "data": body})
	})

	tc := Serve(t, engine, http.MethodPost, "/echo", map[string]string{"code": "X"})

	assert.Equal(t, http.StatusOK, tc.ResponseCode())
	AssertSuccessResponse(t, tc)
	assert.Equal(t, map[string]any{"code": "X"}, JSONResponse(t, tc)["data"])
}

func TestJSONResponseAs(t *testing.T) {
	type response struct {
		Key string `json:"key"`
	}
	engine := gin.New()
	engine.GET("/key", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"key": "value"}) })

	resp := JSONResponseAs[response](t, Serve(t, engine, http.MethodGet, "/key", nil))
	assert.Equal(t, "value", resp.Key)
}

func TestAssertErrorResponse(t *testing.T) {
	engine := gin.New()
	engine.GET("/missing", func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   gin.H{"code": "ERR_NOT_FOUND", "message": "Resource not found"},
		})
	})

	tc := Serve(t, engine, http.MethodGet, "/missing", nil)
	assert.Equal(t, http.StatusNotFound, tc.ResponseCode())
	AssertErrorResponse(t, tc, "ERR_NOT_FOUND")
}

func TestSeed(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))

	Seed(t, db,
		Task("T1", "WO-1", 1),
		Palm("DX021-P0001-60001", "T1"),
		Finger("MO-20250411-001-FL-0001", "DX021-P0001-60001"),
		Motor("M11021G27W-0001", "MO-20250411-001-FL-0001"),
		Servo("S-0001", "DX021-P0001-60001"),
		MotorInspection("M11021G27W-0001", 1, true),
		ServoInspection("S-0001", 1, true),
		RotaryServoInspection("S-0001", 1, false),
		FingerInspection("MO-20250411-001-FL-0001", 1, true),
		PalmInspection("DX021-P0001-60001", 2, true),
	)

	var palm models.PalmInspectionModel
	require.NoError(t, db.First(&palm).Error)
	assert.Equal(t, 2, palm.SeqID)
	assert.True(t, palm.Qualified)

	var count int64
	require.NoError(t, db.Model(&models.MotorModel{}).Where("finger_id = ?", "MO-20250411-001-FL-0001").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
