package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	traceabilityapp "github.com/mes/backend/internal/application/traceability"
)

// TraceabilityService is the part of the application service the HTTP
// layer depends on
type TraceabilityService interface {
	Classify(ctx context.Context, code string) traceabilityapp.PartIdentityResponse
	ClassifyBatch(ctx context.Context, codes []string) []traceabilityapp.PartIdentityResponse
	Trace(ctx context.Context, code string) (*traceabilityapp.ProvenanceChainResponse, error)
	EvaluateGate(ctx context.Context, taskID, stageName string) (*traceabilityapp.GateResultResponse, error)
	EvaluateAllGates(ctx context.Context, taskID string) (*traceabilityapp.TaskGatesResponse, error)
	ListStages() []traceabilityapp.StageResponse
}

// TraceabilityHandler handles part identity, provenance and gate endpoints
type TraceabilityHandler struct {
	BaseHandler
	service TraceabilityService
}

// NewTraceabilityHandler creates a new TraceabilityHandler
func NewTraceabilityHandler(service TraceabilityService) *TraceabilityHandler {
	return &TraceabilityHandler{service: service}
}

type partCodeURI struct {
	Code string `uri:"code" binding:"required,max=128,scancode"`
}

type taskURI struct {
	TaskID string `uri:"task_id" binding:"required,max=64"`
}

type taskStageURI struct {
	TaskID string `uri:"task_id" binding:"required,max=64"`
	Stage  string `uri:"stage" binding:"required,max=64"`
}

// IdentifyRequest classifies several codes in one call
type IdentifyRequest struct {
	Codes []string `json:"codes" binding:"required,min=1,max=100,dive,max=128"`
}

// Identify classifies one scanned code. Unknown codes are a 200 with kind
// Unknown.
func (h *TraceabilityHandler) Identify(c *gin.Context) {
	var uri partCodeURI
	if err := c.ShouldBindUri(&uri); err != nil {
		h.BindingError(c, err)
		return
	}
	h.Success(c, h.service.Classify(c.Request.Context(), uri.Code))
}

// IdentifyBatch classifies the codes of the request body in order
func (h *TraceabilityHandler) IdentifyBatch(c *gin.Context) {
	var req IdentifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	results := h.service.ClassifyBatch(c.Request.Context(), req.Codes)
	h.SuccessList(c, results, len(results))
}

// Trace reconstructs the provenance chain of a scanned code
func (h *TraceabilityHandler) Trace(c *gin.Context) {
	var uri partCodeURI
	if err := c.ShouldBindUri(&uri); err != nil {
		h.BindingError(c, err)
		return
	}
	chain, err := h.service.Trace(c.Request.Context(), uri.Code)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, chain)
}

// Gates evaluates every configured stage for a task
func (h *TraceabilityHandler) Gates(c *gin.Context) {
	var uri taskURI
	if err := c.ShouldBindUri(&uri); err != nil {
		h.BindingError(c, err)
		return
	}
	gates, err := h.service.EvaluateAllGates(c.Request.Context(), uri.TaskID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gates)
}

// Gate evaluates one stage for a task
func (h *TraceabilityHandler) Gate(c *gin.Context) {
	var uri taskStageURI
	if err := c.ShouldBindUri(&uri); err != nil {
		h.BindingError(c, err)
		return
	}
	gate, err := h.service.EvaluateGate(c.Request.Context(), uri.TaskID, uri.Stage)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gate)
}

// Stages lists the stage catalog
func (h *TraceabilityHandler) Stages(c *gin.Context) {
	stages := h.service.ListStages()
	h.SuccessList(c, stages, len(stages))
}
