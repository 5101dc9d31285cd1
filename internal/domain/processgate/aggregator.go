package processgate

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mes/backend/internal/domain/hierarchy"
	"github.com/mes/backend/internal/domain/shared"
)

// Aggregator evaluates stage gates for tasks. It is stateless apart from the
// locator's field cache and safe for concurrent use.
type Aggregator struct {
	locator *hierarchy.Locator
	task    hierarchy.TaskLevel
}

// NewAggregator creates an aggregator reading tasks through schema.Task
func NewAggregator(locator *hierarchy.Locator, schema hierarchy.Schema) *Aggregator {
	return &Aggregator{locator: locator, task: schema.Task}
}

type detection struct {
	sequence  int64
	qualified bool
}

// EvaluateGate compares task.expectedUnits * stage multiplier with the
// number of children whose latest inspection record is qualified.
// A blank task id is rejected before any lookup; a missing task is
// shared.ErrNotFound. The context is checked before each query.
func (a *Aggregator) EvaluateGate(ctx context.Context, taskID string, stage StageSpec) (GateResult, error) {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return GateResult{}, shared.InvalidInput("task id is required")
	}
	if err := stage.Validate(); err != nil {
		return GateResult{}, err
	}

	if err := shared.CheckContext(ctx); err != nil {
		return GateResult{}, err
	}
	task, found, err := a.locator.FindByCandidateKeys(ctx, a.task.Collection, a.task.Key, taskID)
	if err != nil {
		return GateResult{}, shared.ContextError(ctx, err)
	}
	if !found {
		return GateResult{}, fmt.Errorf("%w: task %s", shared.ErrNotFound, taskID)
	}

	taskKey, ok, err := a.locator.Field(ctx, task, a.task.Collection, a.task.Key)
	if err != nil {
		return GateResult{}, err
	}
	if !ok {
		taskKey = taskID
	}
	units, err := a.expectedUnits(ctx, task)
	if err != nil {
		return GateResult{}, err
	}

	result := GateResult{
		Stage:    stage.Name,
		TaskID:   taskKey,
		Expected: units * stage.ExpectedMultiplier,
	}

	parents := []string{taskKey}
	for _, hop := range stage.Path {
		if len(parents) == 0 {
			break
		}
		parents, err = a.collectKeys(ctx, hop.Collection, hop.Parent, hop.Key, parents)
		if err != nil {
			return GateResult{}, err
		}
	}

	var children []string
	if len(parents) > 0 {
		children, err = a.collectKeys(ctx, stage.Child, stage.ChildParent, stage.ChildKey, parents)
		if err != nil {
			return GateResult{}, err
		}
	}
	result.Children = len(children)

	latest, err := a.latestDetections(ctx, stage, children)
	if err != nil {
		return GateResult{}, err
	}
	for _, child := range children {
		if d, ok := latest[child]; ok && d.qualified {
			result.Actual++
		}
	}
	result.Passed = result.Actual == result.Expected
	return result, nil
}

func (a *Aggregator) expectedUnits(ctx context.Context, task hierarchy.Row) (int, error) {
	raw, ok, err := a.locator.Field(ctx, task, a.task.Collection, a.task.ExpectedUnits)
	if err != nil || !ok {
		return 0, err
	}
	if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
		return n, nil
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
		return int(f), nil
	}
	return 0, nil
}

// collectKeys loads the records of collection whose parent field is one of
// parents and returns their distinct keys in load order.
func (a *Aggregator) collectKeys(ctx context.Context, collection hierarchy.Collection, parent, key, parents []string) ([]string, error) {
	if err := shared.CheckContext(ctx); err != nil {
		return nil, err
	}
	rows, err := a.locator.FindAllByCandidateKeys(ctx, collection, parent, parents)
	if err != nil {
		return nil, shared.ContextError(ctx, err)
	}

	keys := make([]string, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		k, ok, err := a.locator.Field(ctx, row, collection, key)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys, nil
}

// latestDetections returns the highest-sequence inspection record per child
func (a *Aggregator) latestDetections(ctx context.Context, stage StageSpec, children []string) (map[string]detection, error) {
	latest := make(map[string]detection, len(children))
	if len(children) == 0 {
		return latest, nil
	}
	if err := shared.CheckContext(ctx); err != nil {
		return nil, err
	}
	records, err := a.locator.FindAllByCandidateKeys(ctx, stage.Detection, stage.DetectionChildKey, children)
	if err != nil {
		return nil, shared.ContextError(ctx, err)
	}

	for _, record := range records {
		child, ok, err := a.locator.Field(ctx, record, stage.Detection, stage.DetectionChildKey)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		seqRaw, _, err := a.locator.Field(ctx, record, stage.Detection, stage.DetectionSequence)
		if err != nil {
			return nil, err
		}
		seq, err := strconv.ParseInt(strings.TrimSpace(seqRaw), 10, 64)
		if err != nil {
			continue
		}
		flag, _, err := a.locator.Field(ctx, record, stage.Detection, stage.DetectionQualified)
		if err != nil {
			return nil, err
		}

		if cur, ok := latest[child]; ok && cur.sequence >= seq {
			continue
		}
		latest[child] = detection{sequence: seq, qualified: ParseQualified(flag)}
	}
	return latest, nil
}

// ParseQualified interprets the stored qualified flag. Booleans, 1/0 and
// the strings ok/pass/qualified are accepted; anything else is false.
func ParseQualified(raw string) bool {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch s {
	case "ok", "pass", "passed", "qualified", "y", "yes":
		return true
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n != 0
	}
	return false
}
