// Package processgate decides whether a production task may advance past a
// stage by comparing expected and qualified child counts.
package processgate

import (
	"fmt"
	"strings"

	"github.com/mes/backend/internal/domain/hierarchy"
	"github.com/mes/backend/internal/domain/shared"
)

// Hop is one intermediate level walked from the task towards the children
type Hop struct {
	Collection hierarchy.Collection
	Key        []string
	Parent     []string
}

// HopOf returns the hop walking into level
func HopOf(level hierarchy.Level) Hop {
	return Hop{Collection: level.Collection, Key: level.Key, Parent: level.Parent}
}

// StageSpec parameterizes one gate check
type StageSpec struct {
	Name string
	// ExpectedMultiplier is the number of children expected per task unit
	ExpectedMultiplier int
	// Path lists the levels between the task and the child level
	Path []Hop

	Child       hierarchy.Collection
	ChildKey    []string
	ChildParent []string

	Detection          hierarchy.Collection
	DetectionChildKey  []string
	DetectionSequence  []string
	DetectionQualified []string
}

// Validate checks the stage is usable
func (s StageSpec) Validate() error {
	switch {
	case strings.TrimSpace(s.Name) == "":
		return shared.InvalidInput("stage name is required")
	case s.ExpectedMultiplier < 0:
		return shared.InvalidInput(fmt.Sprintf("stage %s: multiplier must not be negative", s.Name))
	case s.Child.Table == "" || len(s.ChildKey) == 0 || len(s.ChildParent) == 0:
		return shared.InvalidInput(fmt.Sprintf("stage %s: child level is incomplete", s.Name))
	case s.Detection.Table == "" || len(s.DetectionChildKey) == 0 ||
		len(s.DetectionSequence) == 0 || len(s.DetectionQualified) == 0:
		return shared.InvalidInput(fmt.Sprintf("stage %s: detection level is incomplete", s.Name))
	}
	for i, hop := range s.Path {
		if hop.Collection.Table == "" || len(hop.Key) == 0 || len(hop.Parent) == 0 {
			return shared.InvalidInput(fmt.Sprintf("stage %s: path hop %d is incomplete", s.Name, i))
		}
	}
	return nil
}

// GateResult is the outcome of one gate evaluation
type GateResult struct {
	Stage    string
	TaskID   string
	Passed   bool
	Expected int
	Actual   int
	// Children is the number of distinct children found for the task
	Children int
}

// Message describes the result for operators
func (r GateResult) Message() string {
	if r.Passed {
		return fmt.Sprintf("%s gate passed: %d/%d qualified", r.Stage, r.Actual, r.Expected)
	}
	return fmt.Sprintf("%s gate not passed: expected %d, actual %d", r.Stage, r.Expected, r.Actual)
}
