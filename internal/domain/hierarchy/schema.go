package hierarchy

// Collection names one record collection and the table backing it
type Collection struct {
	Name  string
	Table string
}

// Level describes one level of the part hierarchy
type Level struct {
	Collection Collection
	// Key lists historical spellings of the level's own id field, most preferred first
	Key []string
	// Parent lists spellings of the reference to the level above
	Parent []string
}

// TaskLevel is the root of the hierarchy
type TaskLevel struct {
	Level
	TaskNo        []string
	ExpectedUnits []string
}

// InspectionLevel describes a table of inspection records for one child level
type InspectionLevel struct {
	Collection Collection
	ChildKey   []string
	Sequence   []string
	Qualified  []string
}

// Schema is the complete set of levels the tracer and the gate aggregator read
type Schema struct {
	Task   TaskLevel
	Palm   Level
	Finger Level
	Motor  Level
	Servo  Level

	MotorInspection       InspectionLevel
	ServoInspection       InspectionLevel
	RotaryServoInspection InspectionLevel
	FingerInspection      InspectionLevel
	PalmInspection        InspectionLevel
}

// Table names used by DefaultSchema
const (
	TableTasks                  = "tasks"
	TablePalms                  = "palms"
	TableFingers                = "fingers"
	TableMotors                 = "motors"
	TableServos                 = "servos"
	TableMotorInspections       = "motor_inspections"
	TableServoInspections       = "servo_inspections"
	TableRotaryServoInspections = "rotary_servo_inspections"
	TableFingerInspections      = "finger_inspections"
	TablePalmInspections        = "palm_inspections"
)

var (
	sequenceFields  = []string{"seq_id", "SeqId", "sequence", "id", "ID"}
	qualifiedFields = []string{"qualified", "is_qualified", "IsQualified", "Qualified", "result"}
)

// DefaultSchema returns the levels with the default table names and the
// field spellings seen across schema generations.
func DefaultSchema() Schema {
	return Schema{
		Task: TaskLevel{
			Level: Level{
				Collection: Collection{Name: "task", Table: TableTasks},
				Key:        []string{"task_id", "TaskId", "taskId", "Task_id"},
			},
			TaskNo:        []string{"task_no", "TaskNo", "taskNo", "order_no"},
			ExpectedUnits: []string{"expected_unit_count", "ExpectedUnitCount", "quantity", "Qty", "order_qty"},
		},
		Palm: Level{
			Collection: Collection{Name: "palm", Table: TablePalms},
			Key:        []string{"palm_id", "PalmId", "palmId", "Palm_id", "palm_code"},
			Parent:     []string{"task_id", "TaskId", "taskId", "Task_id"},
		},
		Finger: Level{
			Collection: Collection{Name: "finger", Table: TableFingers},
			Key:        []string{"finger_id", "FingerId", "fingerId", "Finger_id", "finger_code"},
			Parent:     []string{"palm_id", "PalmId", "palmId", "Palm_id"},
		},
		Motor: Level{
			Collection: Collection{Name: "motor", Table: TableMotors},
			Key:        []string{"motor_id", "Motor_id", "MotorId", "motorId", "motor_code"},
			Parent:     []string{"finger_id", "FingerId", "fingerId", "Finger_id"},
		},
		Servo: Level{
			Collection: Collection{Name: "servo", Table: TableServos},
			Key:        []string{"servo_id", "Servo_id", "ServoId", "servoId", "servo_code"},
			Parent:     []string{"superior_id", "SuperiorId", "superior", "Superior"},
		},
		MotorInspection: InspectionLevel{
			Collection: Collection{Name: "motor_inspection", Table: TableMotorInspections},
			ChildKey:   []string{"motor_id", "Motor_id", "MotorId", "motorId"},
			Sequence:   sequenceFields,
			Qualified:  qualifiedFields,
		},
		ServoInspection: InspectionLevel{
			Collection: Collection{Name: "servo_inspection", Table: TableServoInspections},
			ChildKey:   []string{"servo_id", "Servo_id", "ServoId", "servoId"},
			Sequence:   sequenceFields,
			Qualified:  qualifiedFields,
		},
		RotaryServoInspection: InspectionLevel{
			Collection: Collection{Name: "rotary_servo_inspection", Table: TableRotaryServoInspections},
			ChildKey:   []string{"servo_id", "Servo_id", "ServoId", "servoId"},
			Sequence:   sequenceFields,
			Qualified:  qualifiedFields,
		},
		FingerInspection: InspectionLevel{
			Collection: Collection{Name: "finger_inspection", Table: TableFingerInspections},
			ChildKey:   []string{"finger_id", "FingerId", "fingerId", "Finger_id"},
			Sequence:   sequenceFields,
			Qualified:  qualifiedFields,
		},
		PalmInspection: InspectionLevel{
			Collection: Collection{Name: "palm_inspection", Table: TablePalmInspections},
			ChildKey:   []string{"palm_id", "PalmId", "palmId", "Palm_id"},
			Sequence:   sequenceFields,
			Qualified:  qualifiedFields,
		},
	}
}

// WithTables returns a copy of s with table names replaced from tables,
// keyed by collection name. Unknown names and blank tables are ignored.
func (s Schema) WithTables(tables map[string]string) Schema {
	set := func(c *Collection) {
		if t, ok := tables[c.Name]; ok && t != "" {
			c.Table = t
		}
	}
	set(&s.Task.Collection)
	set(&s.Palm.Collection)
	set(&s.Finger.Collection)
	set(&s.Motor.Collection)
	set(&s.Servo.Collection)
	set(&s.MotorInspection.Collection)
	set(&s.ServoInspection.Collection)
	set(&s.RotaryServoInspection.Collection)
	set(&s.FingerInspection.Collection)
	set(&s.PalmInspection.Collection)
	return s
}

// Collections lists every collection in the schema
func (s Schema) Collections() []Collection {
	return []Collection{
		s.Task.Collection, s.Palm.Collection, s.Finger.Collection, s.Motor.Collection, s.Servo.Collection,
		s.MotorInspection.Collection, s.ServoInspection.Collection, s.RotaryServoInspection.Collection,
		s.FingerInspection.Collection, s.PalmInspection.Collection,
	}
}
