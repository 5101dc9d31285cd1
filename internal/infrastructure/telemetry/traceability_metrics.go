package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewTraceabilityMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}

// TraceabilityMetrics counts classifications, provenance traces and gate
// evaluations.
type TraceabilityMetrics struct {
	classifiedTotal *Counter
	traceTotal      *Counter
	traceDepth      *Histogram
	traceDuration   *Histogram
	gateTotal       *Counter
	gateDuration    *Histogram
}

// NewTraceabilityMetrics creates the instruments on meter.
func NewTraceabilityMetrics(meter metric.Meter) (*TraceabilityMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	m := &TraceabilityMetrics{}
	var err error

	m.classifiedTotal, err = NewCounter(meter,
		"mes_part_classified_total",
		"Total number of scanned codes classified, by kind",
		"{codes}",
	)
	if err != nil {
		return nil, err
	}

	m.traceTotal, err = NewCounter(meter,
		"mes_provenance_trace_total",
		"Total number of provenance traces, by outcome",
		"{traces}",
	)
	if err != nil {
		return nil, err
	}

	m.traceDepth, err = NewHistogram(meter, HistogramOpts{
		Name:        "mes_provenance_trace_depth",
		Description: "Number of hierarchy levels found per trace",
		Unit:        "{levels}",
		Boundaries:  []float64{0, 1, 2, 3, 4},
	})
	if err != nil {
		return nil, err
	}

	m.traceDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "mes_provenance_trace_duration_seconds",
		Description: "Duration of provenance traces",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	m.gateTotal, err = NewCounter(meter,
		"mes_gate_evaluation_total",
		"Total number of process gate evaluations, by stage and result",
		"{evaluations}",
	)
	if err != nil {
		return nil, err
	}

	m.gateDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "mes_gate_evaluation_duration_seconds",
		Description: "Duration of process gate evaluations",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordClassification counts one classified code.
func (m *TraceabilityMetrics) RecordClassification(ctx context.Context, kind string) {
	m.classifiedTotal.Inc(ctx, AttrPartKind.String(kind))
}

// RecordTrace records one provenance trace.
func (m *TraceabilityMetrics) RecordTrace(ctx context.Context, kind string, depth int, complete bool, d time.Duration, err error) {
	outcome := outcomeOf(err)
	m.traceTotal.Inc(ctx,
		AttrPartKind.String(kind),
		AttrOutcome.String(outcome),
	)
	m.traceDuration.RecordDuration(ctx, d, AttrOutcome.String(outcome))
	if err == nil {
		m.traceDepth.Record(ctx, float64(depth),
			AttrPartKind.String(kind),
			AttrComplete.Bool(complete),
		)
	}
}

// RecordGate records one gate evaluation.
func (m *TraceabilityMetrics) RecordGate(ctx context.Context, stage string, passed bool, d time.Duration, err error) {
	attrs := []attribute.KeyValue{
		AttrStage.String(stage),
		AttrOutcome.String(outcomeOf(err)),
	}
	if err == nil {
		attrs = append(attrs, AttrPassed.Bool(passed))
	}
	m.gateTotal.Inc(ctx, attrs...)
	m.gateDuration.RecordDuration(ctx, d, AttrStage.String(stage))
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	default:
		return OutcomeError
	}
}
