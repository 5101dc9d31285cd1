// Package traceability exposes part classification, provenance tracing and
// process-gate evaluation as application use cases.
package traceability

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mes/backend/internal/domain/hierarchy"
	"github.com/mes/backend/internal/domain/partcode"
	"github.com/mes/backend/internal/domain/processgate"
	"github.com/mes/backend/internal/domain/shared"
	domain "github.com/mes/backend/internal/domain/traceability"
	"github.com/mes/backend/internal/infrastructure/logger"
	"github.com/mes/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const serviceName = "traceability"

// TraceabilityService composes the classifier, the tracer and the gate
// aggregator over one record store. It holds no request state.
type TraceabilityService struct {
	classifier *partcode.Classifier
	tracer     *domain.Tracer
	aggregator *processgate.Aggregator
	catalog    *processgate.Catalog
	metrics    *telemetry.TraceabilityMetrics
	logger     *zap.Logger
}

// Option configures a TraceabilityService
type Option func(*TraceabilityService)

// WithMetrics records classification, trace and gate metrics
func WithMetrics(m *telemetry.TraceabilityMetrics) Option {
	return func(s *TraceabilityService) { s.metrics = m }
}

// WithServiceLogger sets the logger used when the request context carries none
func WithServiceLogger(l *zap.Logger) Option {
	return func(s *TraceabilityService) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewTraceabilityService wires the domain services over store.
// A nil classifier uses the default code tables; a nil catalog uses the
// default stages over schema.
func NewTraceabilityService(
	store hierarchy.RecordStore,
	schema hierarchy.Schema,
	classifier *partcode.Classifier,
	catalog *processgate.Catalog,
	opts ...Option,
) *TraceabilityService {
	if classifier == nil {
		classifier = partcode.NewClassifier()
	}
	if catalog == nil {
		catalog = processgate.DefaultCatalog(schema)
	}
	locator := hierarchy.NewLocator(store)

	s := &TraceabilityService{
		classifier: classifier,
		tracer:     domain.NewTracer(locator, schema, classifier),
		aggregator: processgate.NewAggregator(locator, schema),
		catalog:    catalog,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Classify identifies a scanned code. It never fails; unrecognised codes
// come back with kind Unknown and a reason.
func (s *TraceabilityService) Classify(ctx context.Context, code string) PartIdentityResponse {
	ctx, _ = logger.WithScannedCode(ctx, logger.FromContextOr(ctx, s.logger), code)
	ctx, span := telemetry.StartServiceSpan(ctx, serviceName, "classify")
	defer span.End()

	identity := s.classifier.Parse(code)
	telemetry.SetAttributes(span,
		telemetry.SpanAttrScannedCode, code,
		telemetry.SpanAttrPartKind, identity.Kind().String(),
		telemetry.SpanAttrResultLabel, identity.ResultLabel(),
	)
	telemetry.SetOK(span)

	if s.metrics != nil {
		s.metrics.RecordClassification(ctx, identity.Kind().String())
	}
	s.log(ctx).Debug("Code classified",
		zap.String("kind", identity.Kind().String()),
		zap.String("reason", identity.Reason()),
	)
	return ToPartIdentityResponse(identity)
}

// ClassifyBatch classifies each code in order
func (s *TraceabilityService) ClassifyBatch(ctx context.Context, codes []string) []PartIdentityResponse {
	out := make([]PartIdentityResponse, len(codes))
	for i, code := range codes {
		out[i] = s.Classify(ctx, code)
	}
	return out
}

// Trace reconstructs the provenance chain of a scanned code. A chain that
// stops early is a result, not an error.
func (s *TraceabilityService) Trace(ctx context.Context, code string) (*ProvenanceChainResponse, error) {
	ctx, _ = logger.WithScannedCode(ctx, logger.FromContextOr(ctx, s.logger), code)
	ctx, span := telemetry.StartServiceSpan(ctx, serviceName, "trace")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrScannedCode, code)

	start := time.Now()
	var chain domain.ProvenanceChain
	var err error
	telemetry.WithProfilingLabels(ctx, map[string]string{
		telemetry.ProfilingLabelOperation: "trace",
	}, func(ctx context.Context) {
		chain, err = s.tracer.Trace(ctx, code)
	})
	if s.metrics != nil {
		kind := chain.IdentifiedKind
		if err != nil {
			kind = s.classifier.Parse(code).Kind()
		}
		s.metrics.RecordTrace(ctx, kind.String(), chain.Depth(), chain.Complete(), time.Since(start), err)
	}
	if err != nil {
		telemetry.RecordError(span, err)
		s.logFailure(ctx, "Trace failed", err)
		return nil, err
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrPartKind, chain.IdentifiedKind.String(),
		telemetry.SpanAttrTraceDepth, chain.Depth(),
		telemetry.SpanAttrComplete, chain.Complete(),
	)
	telemetry.SetOK(span)
	s.log(ctx).Debug("Trace completed",
		zap.String("kind", chain.IdentifiedKind.String()),
		zap.Int("depth", chain.Depth()),
		zap.Bool("complete", chain.Complete()),
	)

	resp := ToProvenanceChainResponse(chain)
	return &resp, nil
}

// EvaluateGate evaluates the named stage for a task. An unknown stage is
// shared.ErrNotFound.
func (s *TraceabilityService) EvaluateGate(ctx context.Context, taskID, stageName string) (*GateResultResponse, error) {
	if strings.TrimSpace(taskID) == "" {
		return nil, shared.InvalidInput("task id is required")
	}
	stage, ok := s.catalog.Lookup(strings.TrimSpace(stageName))
	if !ok {
		return nil, shared.NotFound("stage " + stageName)
	}

	ctx, _ = logger.WithTaskID(ctx, logger.FromContextOr(ctx, s.logger), taskID)
	result, err := s.evaluate(ctx, taskID, stage)
	if err != nil {
		return nil, err
	}
	resp := ToGateResultResponse(result)
	return &resp, nil
}

// EvaluateAllGates evaluates every catalog stage for a task concurrently
// and returns the results in catalog order. The first failure cancels the
// remaining evaluations.
func (s *TraceabilityService) EvaluateAllGates(ctx context.Context, taskID string) (*TaskGatesResponse, error) {
	if strings.TrimSpace(taskID) == "" {
		return nil, shared.InvalidInput("task id is required")
	}
	ctx, _ = logger.WithTaskID(ctx, logger.FromContextOr(ctx, s.logger), taskID)
	ctx, span := telemetry.StartServiceSpan(ctx, serviceName, "evaluate_all_gates")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrTaskID, taskID)

	stages := s.catalog.Stages()
	results := make([]processgate.GateResult, len(stages))

	g, gctx := errgroup.WithContext(ctx)
	for i, stage := range stages {
		g.Go(func() error {
			r, err := s.evaluate(gctx, taskID, stage)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	resp := &TaskGatesResponse{
		TaskID:    taskID,
		AllPassed: true,
		Gates:     make([]GateResultResponse, len(results)),
	}
	for i, r := range results {
		resp.Gates[i] = ToGateResultResponse(r)
		if r.TaskID != "" {
			resp.TaskID = r.TaskID
		}
		resp.AllPassed = resp.AllPassed && r.Passed
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrGatePassed, resp.AllPassed)
	telemetry.SetOK(span)
	return resp, nil
}

// ListStages returns the configured stages in catalog order
func (s *TraceabilityService) ListStages() []StageResponse {
	stages := s.catalog.Stages()
	out := make([]StageResponse, len(stages))
	for i, st := range stages {
		out[i] = ToStageResponse(st)
	}
	return out
}

func (s *TraceabilityService) evaluate(ctx context.Context, taskID string, stage processgate.StageSpec) (processgate.GateResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, serviceName, "evaluate_gate")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTaskID, taskID,
		telemetry.SpanAttrStage, stage.Name,
	)

	start := time.Now()
	var result processgate.GateResult
	var err error
	telemetry.WithProfilingLabels(ctx, map[string]string{
		telemetry.ProfilingLabelOperation: "evaluate_gate",
		telemetry.ProfilingLabelStage:     stage.Name,
	}, func(ctx context.Context) {
		result, err = s.aggregator.EvaluateGate(ctx, taskID, stage)
	})
	if s.metrics != nil {
		s.metrics.RecordGate(ctx, stage.Name, result.Passed, time.Since(start), err)
	}
	if err != nil {
		telemetry.RecordError(span, err)
		s.logFailure(ctx, "Gate evaluation failed", err, zap.String("stage", stage.Name))
		return processgate.GateResult{}, err
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrGatePassed, result.Passed,
		telemetry.SpanAttrGateExpected, result.Expected,
		telemetry.SpanAttrGateActual, result.Actual,
	)
	telemetry.SetOK(span)
	s.log(ctx).Debug("Gate evaluated",
		zap.String("stage", result.Stage),
		zap.Bool("passed", result.Passed),
		zap.Int("expected", result.Expected),
		zap.Int("actual", result.Actual),
	)
	return result, nil
}

// log expects ctx to carry a logger stored by one of the scoping helpers
func (s *TraceabilityService) log(ctx context.Context) *logger.ContextLogger {
	return logger.L(ctx)
}

// logFailure logs expected outcomes (bad input, missing task, cancellation)
// at debug and storage failures at warn.
func (s *TraceabilityService) logFailure(ctx context.Context, msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	switch {
	case shared.IsCanceled(err), isDomainError(err):
		s.log(ctx).Debug(msg, fields...)
	default:
		s.log(ctx).Warn(msg, fields...)
	}
}

func isDomainError(err error) bool {
	var de *shared.DomainError
	return errors.As(err, &de)
}
