package models

import (
	"time"

	"github.com/mes/backend/internal/domain/hierarchy"
)

// TaskModel is a production task (work order).
type TaskModel struct {
	ID                uint   `gorm:"primaryKey"`
	TaskID            string `gorm:"column:task_id;size:64;not null;uniqueIndex"`
	TaskNo            string `gorm:"column:task_no;size:64"`
	ExpectedUnitCount int    `gorm:"column:expected_unit_count;not null;default:0"`
	CreatedAt         time.Time
}

// TableName returns the table name for GORM
func (TaskModel) TableName() string { return hierarchy.TableTasks }

// PalmModel is an assembled palm belonging to a task.
type PalmModel struct {
	ID        uint   `gorm:"primaryKey"`
	PalmID    string `gorm:"column:palm_id;size:64;not null;uniqueIndex"`
	TaskID    string `gorm:"column:task_id;size:64;index"`
	CreatedAt time.Time
}

// TableName returns the table name for GORM
func (PalmModel) TableName() string { return hierarchy.TablePalms }

// FingerModel is a finger assembly mounted on a palm.
type FingerModel struct {
	ID        uint   `gorm:"primaryKey"`
	FingerID  string `gorm:"column:finger_id;size:64;not null;uniqueIndex"`
	PalmID    string `gorm:"column:palm_id;size:64;index"`
	CreatedAt time.Time
}

// TableName returns the table name for GORM
func (FingerModel) TableName() string { return hierarchy.TableFingers }

// MotorModel is a motor installed in a finger.
type MotorModel struct {
	ID        uint   `gorm:"primaryKey"`
	MotorID   string `gorm:"column:motor_id;size:64;not null;uniqueIndex"`
	FingerID  string `gorm:"column:finger_id;size:64;index"`
	CreatedAt time.Time
}

// TableName returns the table name for GORM
func (MotorModel) TableName() string { return hierarchy.TableMotors }

// ServoModel is a servo. SuperiorID holds a finger id, or a palm id for
// rotary servos mounted directly on the palm.
type ServoModel struct {
	ID         uint   `gorm:"primaryKey"`
	ServoID    string `gorm:"column:servo_id;size:64;not null;uniqueIndex"`
	SuperiorID string `gorm:"column:superior_id;size:64;index"`
	CreatedAt  time.Time
}

// TableName returns the table name for GORM
func (ServoModel) TableName() string { return hierarchy.TableServos }

// Inspection holds the columns shared by every inspection table.
type Inspection struct {
	ID          uint `gorm:"primaryKey"`
	SeqID       int  `gorm:"column:seq_id;not null"`
	Qualified   bool `gorm:"column:qualified;not null"`
	InspectedAt time.Time
}

// MotorInspectionModel records one inspection of a motor.
type MotorInspectionModel struct {
	Inspection
	MotorID string `gorm:"column:motor_id;size:64;index"`
}

// TableName returns the table name for GORM
func (MotorInspectionModel) TableName() string { return hierarchy.TableMotorInspections }

// ServoInspectionModel records one inspection of a finger servo.
type ServoInspectionModel struct {
	Inspection
	ServoID string `gorm:"column:servo_id;size:64;index"`
}

// TableName returns the table name for GORM
func (ServoInspectionModel) TableName() string { return hierarchy.TableServoInspections }

// RotaryServoInspectionModel records one inspection of a rotary servo.
type RotaryServoInspectionModel struct {
	Inspection
	ServoID string `gorm:"column:servo_id;size:64;index"`
}

// TableName returns the table name for GORM
func (RotaryServoInspectionModel) TableName() string {
	return hierarchy.TableRotaryServoInspections
}

// FingerInspectionModel records one inspection of a finger.
type FingerInspectionModel struct {
	Inspection
	FingerID string `gorm:"column:finger_id;size:64;index"`
}

// TableName returns the table name for GORM
func (FingerInspectionModel) TableName() string { return hierarchy.TableFingerInspections }

// PalmInspectionModel records one inspection of a palm.
type PalmInspectionModel struct {
	Inspection
	PalmID string `gorm:"column:palm_id;size:64;index"`
}

// TableName returns the table name for GORM
func (PalmInspectionModel) TableName() string { return hierarchy.TablePalmInspections }

// All returns one zero value of every model, in dependency order, for AutoMigrate.
func All() []any {
	return []any{
		&TaskModel{},
		&PalmModel{},
		&FingerModel{},
		&MotorModel{},
		&ServoModel{},
		&MotorInspectionModel{},
		&ServoInspectionModel{},
		&RotaryServoInspectionModel{},
		&FingerInspectionModel{},
		&PalmInspectionModel{},
	}
}
