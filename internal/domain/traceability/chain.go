// Package traceability reconstructs the provenance of a scanned part by
// climbing the Motor/Servo -> Finger -> Palm -> Task hierarchy.
package traceability

import "github.com/mes/backend/internal/domain/partcode"

// ProvenanceChain is the reconstructed ancestry of one scanned part.
// A nil field means that level was not reached; a chain that stops early is
// a valid outcome for work in progress, not an error.
type ProvenanceChain struct {
	ScannedCode      string
	IdentifiedKind   partcode.PartKind
	IdentifiedResult string

	MotorID  *string
	ServoID  *string
	FingerID *string
	PalmID   *string
	PalmSide *string
	TaskID   *string
	TaskNo   *string
}

// Depth returns how many hierarchy levels were found in storage
func (c ProvenanceChain) Depth() int {
	depth := 0
	for _, level := range []*string{c.MotorID, c.ServoID, c.FingerID, c.PalmID, c.TaskID} {
		if level != nil {
			depth++
		}
	}
	return depth
}

// Complete reports whether the chain reached a task
func (c ProvenanceChain) Complete() bool {
	return c.TaskID != nil
}

// Leaf returns the id of the lowest level found, or "" when nothing was found
func (c ProvenanceChain) Leaf() string {
	for _, level := range []*string{c.MotorID, c.ServoID, c.FingerID, c.PalmID, c.TaskID} {
		if level != nil {
			return *level
		}
	}
	return ""
}

func ptr(s string) *string {
	return &s
}
