package traceability

import (
	"github.com/mes/backend/internal/domain/partcode"
	"github.com/mes/backend/internal/domain/processgate"
	domain "github.com/mes/backend/internal/domain/traceability"
)

// PartIdentityResponse represents a classified code in API responses
type PartIdentityResponse struct {
	Code   string            `json:"code"`
	Kind   string            `json:"kind"`
	Result string            `json:"result"`
	Known  bool              `json:"known"`
	Reason string            `json:"reason,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

// ProvenanceChainResponse represents a reconstructed chain in API responses.
// Levels that were not reached are null.
type ProvenanceChainResponse struct {
	ScannedCode      string  `json:"scanned_code"`
	IdentifiedKind   string  `json:"identified_kind"`
	IdentifiedResult string  `json:"identified_result"`
	MotorID          *string `json:"motor_id"`
	ServoID          *string `json:"servo_id"`
	FingerID         *string `json:"finger_id"`
	PalmID           *string `json:"palm_id"`
	PalmSide         *string `json:"palm_side"`
	TaskID           *string `json:"task_id"`
	TaskNo           *string `json:"task_no"`
	Depth            int     `json:"depth"`
	Complete         bool    `json:"complete"`
}

// GateResultResponse represents one gate evaluation in API responses
type GateResultResponse struct {
	Stage    string `json:"stage"`
	TaskID   string `json:"task_id"`
	Passed   bool   `json:"passed"`
	Expected int    `json:"expected"`
	Actual   int    `json:"actual"`
	Children int    `json:"children"`
	Message  string `json:"message"`
}

// TaskGatesResponse holds every gate of a task in catalog order
type TaskGatesResponse struct {
	TaskID    string               `json:"task_id"`
	AllPassed bool                 `json:"all_passed"`
	Gates     []GateResultResponse `json:"gates"`
}

// StageResponse describes one configured stage
type StageResponse struct {
	Name               string   `json:"name"`
	ExpectedMultiplier int      `json:"expected_multiplier"`
	Path               []string `json:"path"`
	Child              string   `json:"child"`
	Detection          string   `json:"detection"`
}

// ToPartIdentityResponse converts a domain PartIdentity to a response DTO
func ToPartIdentityResponse(id partcode.PartIdentity) PartIdentityResponse {
	return PartIdentityResponse{
		Code:   id.Raw(),
		Kind:   id.Kind().String(),
		Result: id.ResultLabel(),
		Known:  !id.IsUnknown(),
		Reason: id.Reason(),
		Fields: id.Fields(),
	}
}

// ToProvenanceChainResponse converts a domain ProvenanceChain to a response DTO
func ToProvenanceChainResponse(c domain.ProvenanceChain) ProvenanceChainResponse {
	return ProvenanceChainResponse{
		ScannedCode:      c.ScannedCode,
		IdentifiedKind:   c.IdentifiedKind.String(),
		IdentifiedResult: c.IdentifiedResult,
		MotorID:          c.MotorID,
		ServoID:          c.ServoID,
		FingerID:         c.FingerID,
		PalmID:           c.PalmID,
		PalmSide:         c.PalmSide,
		TaskID:           c.TaskID,
		TaskNo:           c.TaskNo,
		Depth:            c.Depth(),
		Complete:         c.Complete(),
	}
}

// ToGateResultResponse converts a domain GateResult to a response DTO
func ToGateResultResponse(r processgate.GateResult) GateResultResponse {
	return GateResultResponse{
		Stage:    r.Stage,
		TaskID:   r.TaskID,
		Passed:   r.Passed,
		Expected: r.Expected,
		Actual:   r.Actual,
		Children: r.Children,
		Message:  r.Message(),
	}
}

// ToStageResponse converts a StageSpec to a response DTO
func ToStageResponse(s processgate.StageSpec) StageResponse {
	path := make([]string, len(s.Path))
	for i, hop := range s.Path {
		path[i] = hop.Collection.Name
	}
	return StageResponse{
		Name:               s.Name,
		ExpectedMultiplier: s.ExpectedMultiplier,
		Path:               path,
		Child:              s.Child.Name,
		Detection:          s.Detection.Name,
	}
}
