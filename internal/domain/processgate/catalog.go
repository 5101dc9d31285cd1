package processgate

import (
	"fmt"

	"github.com/mes/backend/internal/domain/hierarchy"
	"github.com/mes/backend/internal/domain/shared"
)

// Stage names
const (
	StageMotor       = "motor"
	StageServo       = "servo"
	StageRotaryServo = "rotary_servo"
	StageFinger      = "finger"
	StagePalm        = "palm"
)

// Default children per task unit
const (
	MotorsPerUnit       = 11
	ServosPerUnit       = 5
	RotaryServosPerUnit = 1
	FingersPerUnit      = 5
	PalmsPerUnit        = 1
)

// Catalog is an ordered, name-indexed set of stages
type Catalog struct {
	stages []StageSpec
	index  map[string]int
}

// NewCatalog creates a catalog from stages. Names must be unique.
func NewCatalog(stages ...StageSpec) (*Catalog, error) {
	c := &Catalog{
		stages: make([]StageSpec, 0, len(stages)),
		index:  make(map[string]int, len(stages)),
	}
	for _, s := range stages {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.index[s.Name]; dup {
			return nil, shared.InvalidInput(fmt.Sprintf("duplicate stage %s", s.Name))
		}
		c.index[s.Name] = len(c.stages)
		c.stages = append(c.stages, s)
	}
	return c, nil
}

// DefaultCatalog returns the five assembly stages over schema
func DefaultCatalog(schema hierarchy.Schema) *Catalog {
	palm := HopOf(schema.Palm)
	finger := HopOf(schema.Finger)

	stage := func(name string, multiplier int, path []Hop, child hierarchy.Level, detection hierarchy.InspectionLevel) StageSpec {
		return StageSpec{
			Name:               name,
			ExpectedMultiplier: multiplier,
			Path:               path,
			Child:              child.Collection,
			ChildKey:           child.Key,
			ChildParent:        child.Parent,
			Detection:          detection.Collection,
			DetectionChildKey:  detection.ChildKey,
			DetectionSequence:  detection.Sequence,
			DetectionQualified: detection.Qualified,
		}
	}

	c, err := NewCatalog(
		stage(StageMotor, MotorsPerUnit, []Hop{palm, finger}, schema.Motor, schema.MotorInspection),
		stage(StageServo, ServosPerUnit, []Hop{palm, finger}, schema.Servo, schema.ServoInspection),
		stage(StageRotaryServo, RotaryServosPerUnit, []Hop{palm}, schema.Servo, schema.RotaryServoInspection),
		stage(StageFinger, FingersPerUnit, []Hop{palm}, schema.Finger, schema.FingerInspection),
		stage(StagePalm, PalmsPerUnit, nil, schema.Palm, schema.PalmInspection),
	)
	if err != nil {
		panic(err)
	}
	return c
}

// Lookup returns the stage named name
func (c *Catalog) Lookup(name string) (StageSpec, bool) {
	i, ok := c.index[name]
	if !ok {
		return StageSpec{}, false
	}
	return c.stages[i], true
}

// Names returns stage names in catalog order
func (c *Catalog) Names() []string {
	names := make([]string, len(c.stages))
	for i, s := range c.stages {
		names[i] = s.Name
	}
	return names
}

// Stages returns a copy of the stages in catalog order
func (c *Catalog) Stages() []StageSpec {
	return append([]StageSpec(nil), c.stages...)
}

// Len returns the number of stages
func (c *Catalog) Len() int {
	return len(c.stages)
}

// WithMultipliers returns a copy of the catalog with multipliers replaced
// for the named stages.
func (c *Catalog) WithMultipliers(multipliers map[string]int) (*Catalog, error) {
	stages := c.Stages()
	for name, m := range multipliers {
		i, ok := c.index[name]
		if !ok {
			return nil, shared.InvalidInput(fmt.Sprintf("unknown stage %s", name))
		}
		stages[i].ExpectedMultiplier = m
	}
	return NewCatalog(stages...)
}
