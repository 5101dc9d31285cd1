package testutil

import (
	"testing"

	"github.com/mes/backend/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// Task builds a task row
func Task(taskID, taskNo string, expectedUnits int) *models.TaskModel {
	return &models.TaskModel{TaskID: taskID, TaskNo: taskNo, ExpectedUnitCount: expectedUnits}
}

// Palm builds a palm row owned by taskID
func Palm(palmID, taskID string) *models.PalmModel {
	return &models.PalmModel{PalmID: palmID, TaskID: taskID}
}

// Finger builds a finger row mounted on palmID
func Finger(fingerID, palmID string) *models.FingerModel {
	return &models.FingerModel{FingerID: fingerID, PalmID: palmID}
}

// Motor builds a motor row installed in fingerID
func Motor(motorID, fingerID string) *models.MotorModel {
	return &models.MotorModel{MotorID: motorID, FingerID: fingerID}
}

// Servo builds a servo row. superiorID is a finger id, or a palm id for a
// rotary servo.
func Servo(servoID, superiorID string) *models.ServoModel {
	return &models.ServoModel{ServoID: servoID, SuperiorID: superiorID}
}

func inspection(seq int, qualified bool) models.Inspection {
	return models.Inspection{SeqID: seq, Qualified: qualified}
}

// MotorInspection builds one motor inspection record
func MotorInspection(motorID string, seq int, qualified bool) *models.MotorInspectionModel {
	return &models.MotorInspectionModel{Inspection: inspection(seq, qualified), MotorID: motorID}
}

// ServoInspection builds one finger servo inspection record
func ServoInspection(servoID string, seq int, qualified bool) *models.ServoInspectionModel {
	return &models.ServoInspectionModel{Inspection: inspection(seq, qualified), ServoID: servoID}
}

// RotaryServoInspection builds one rotary servo inspection record
func RotaryServoInspection(servoID string, seq int, qualified bool) *models.RotaryServoInspectionModel {
	return &models.RotaryServoInspectionModel{Inspection: inspection(seq, qualified), ServoID: servoID}
}

// FingerInspection builds one finger inspection record
func FingerInspection(fingerID string, seq int, qualified bool) *models.FingerInspectionModel {
	return &models.FingerInspectionModel{Inspection: inspection(seq, qualified), FingerID: fingerID}
}

// PalmInspection builds one palm inspection record
func PalmInspection(palmID string, seq int, qualified bool) *models.PalmInspectionModel {
	return &models.PalmInspectionModel{Inspection: inspection(seq, qualified), PalmID: palmID}
}

// Seed inserts records in order and fails the test on the first error.
func Seed(t *testing.T, db *gorm.DB, records ...any) {
	t.Helper()

	for _, r := range records {
		require.NoError(t, db.Create(r).Error, "Failed to seed %T", r)
	}
}
