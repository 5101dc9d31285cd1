package traceability

import (
	"context"
	"strings"

	"github.com/mes/backend/internal/domain/hierarchy"
	"github.com/mes/backend/internal/domain/partcode"
	"github.com/mes/backend/internal/domain/shared"
)

// Tracer builds provenance chains. It holds no per-call state and is safe
// for concurrent use.
type Tracer struct {
	classifier *partcode.Classifier
	locator    *hierarchy.Locator
	schema     hierarchy.Schema
}

// NewTracer creates a tracer. A nil classifier uses the default code tables.
func NewTracer(locator *hierarchy.Locator, schema hierarchy.Schema, classifier *partcode.Classifier) *Tracer {
	if classifier == nil {
		classifier = partcode.NewClassifier()
	}
	return &Tracer{
		classifier: classifier,
		locator:    locator,
		schema:     schema,
	}
}

// Trace classifies code and climbs the hierarchy as far as storage allows.
// Missing references stop the climb and leave the gathered fields in place.
// Cancellation is checked between levels and returns shared.ErrCanceled with
// an empty chain; storage errors are returned unchanged.
func (t *Tracer) Trace(ctx context.Context, code string) (ProvenanceChain, error) {
	identity := t.classifier.Parse(code)
	chain := ProvenanceChain{
		ScannedCode:      code,
		IdentifiedKind:   identity.Kind(),
		IdentifiedResult: identity.ResultLabel(),
	}
	if err := shared.CheckContext(ctx); err != nil {
		return ProvenanceChain{}, err
	}

	value := strings.TrimSpace(code)
	var err error
	switch identity.Kind() {
	case partcode.KindPalm:
		_, err = t.ascendPalm(ctx, &chain, value)
	case partcode.KindFinger:
		_, err = t.ascendFinger(ctx, &chain, value)
	case partcode.KindMotor:
		err = t.fromMotor(ctx, &chain, value)
	case partcode.KindServo, partcode.KindRotaryServo:
		err = t.fromServo(ctx, &chain, value)
	default:
		// products and unknown codes are not instances
	}
	if err != nil {
		return ProvenanceChain{}, err
	}
	return chain, nil
}

func (t *Tracer) fromMotor(ctx context.Context, chain *ProvenanceChain, code string) error {
	level := t.schema.Motor
	row, id, found, err := t.locate(ctx, level, code)
	if err != nil || !found {
		return err
	}
	chain.MotorID = ptr(id)

	fingerRef, ok, err := t.locator.Field(ctx, row, level.Collection, level.Parent)
	if err != nil || !ok {
		return err
	}
	_, err = t.ascendFinger(ctx, chain, fingerRef)
	return err
}

func (t *Tracer) fromServo(ctx context.Context, chain *ProvenanceChain, code string) error {
	level := t.schema.Servo
	row, id, found, err := t.locate(ctx, level, code)
	if err != nil || !found {
		return err
	}
	chain.ServoID = ptr(id)

	superior, ok, err := t.locator.Field(ctx, row, level.Collection, level.Parent)
	if err != nil || !ok {
		return err
	}

	// the superior id carries no type: a finger match wins, otherwise a
	// rotary servo is mounted straight on a palm
	found, err = t.ascendFinger(ctx, chain, superior)
	if err != nil || found {
		return err
	}
	_, err = t.ascendPalm(ctx, chain, superior)
	return err
}

func (t *Tracer) ascendFinger(ctx context.Context, chain *ProvenanceChain, fingerID string) (bool, error) {
	level := t.schema.Finger
	row, id, found, err := t.locate(ctx, level, fingerID)
	if err != nil || !found {
		return false, err
	}
	chain.FingerID = ptr(id)

	palmRef, ok, err := t.locator.Field(ctx, row, level.Collection, level.Parent)
	if err != nil || !ok {
		return true, err
	}
	_, err = t.ascendPalm(ctx, chain, palmRef)
	return true, err
}

func (t *Tracer) ascendPalm(ctx context.Context, chain *ProvenanceChain, palmID string) (bool, error) {
	level := t.schema.Palm
	row, id, found, err := t.locate(ctx, level, palmID)
	if err != nil || !found {
		return false, err
	}
	chain.PalmID = ptr(id)
	if side := t.classifier.PalmSideFromID(id); side != "" {
		chain.PalmSide = ptr(side)
	}

	taskRef, ok, err := t.locator.Field(ctx, row, level.Collection, level.Parent)
	if err != nil || !ok {
		return true, err
	}
	return true, t.ascendTask(ctx, chain, taskRef)
}

func (t *Tracer) ascendTask(ctx context.Context, chain *ProvenanceChain, taskID string) error {
	task := t.schema.Task
	row, id, found, err := t.locate(ctx, task.Level, taskID)
	if err != nil || !found {
		return err
	}
	chain.TaskID = ptr(id)

	taskNo, ok, err := t.locator.Field(ctx, row, task.Collection, task.TaskNo)
	if err != nil {
		return err
	}
	if ok {
		chain.TaskNo = ptr(taskNo)
	}
	return nil
}

// locate finds one record of level and returns it with its stored key value
func (t *Tracer) locate(ctx context.Context, level hierarchy.Level, value string) (hierarchy.Row, string, bool, error) {
	if err := shared.CheckContext(ctx); err != nil {
		return nil, "", false, err
	}
	row, found, err := t.locator.FindByCandidateKeys(ctx, level.Collection, level.Key, value)
	if err != nil || !found {
		return nil, "", false, shared.ContextError(ctx, err)
	}
	id, ok, err := t.locator.Field(ctx, row, level.Collection, level.Key)
	if err != nil {
		return nil, "", false, err
	}
	if !ok {
		return nil, "", false, nil
	}
	return row, id, true, nil
}
