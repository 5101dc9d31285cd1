package traceability

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/mes/backend/internal/domain/hierarchy"
	"github.com/mes/backend/internal/domain/hierarchy/hierarchytest"
	"github.com/mes/backend/internal/domain/partcode"
	"github.com/mes/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	motorCode  = "M11021G27W-0001"
	motorCode2 = "M11021G27W-0002"
	servoCode  = "S12023A-0001"
	rotaryCode = "R13025B-0001"
	fingerCode = "MO-20250411-001-FL-0001"
	loneFinger = "MO-20250411-001-FR-0002"
	palmCode   = "DX021-P0001-60001"
	rightPalm  = "DX022-60002"
	taskID     = "T1"
)

// newFixture builds Motor -> Finger -> Palm -> Task using the mixed column
// spellings found in older schemas.
func newFixture() *hierarchytest.MemoryStore {
	store := hierarchytest.NewMemoryStore()
	store.CreateTable(hierarchy.TableTasks, "id", "task_id", "TaskNo", "quantity")
	store.CreateTable(hierarchy.TablePalms, "id", "PalmId", "Task_id")
	store.CreateTable(hierarchy.TableFingers, "id", "FingerId", "Palm_id")
	store.CreateTable(hierarchy.TableMotors, "id", "Motor_id", "FingerId")
	store.CreateTable(hierarchy.TableServos, "id", "servo_id", "SuperiorId")

	store.Insert(hierarchy.TableTasks, hierarchy.Row{"id": 1, "task_id": taskID, "TaskNo": "WO-2025-001", "quantity": 2})
	store.Insert(hierarchy.TablePalms, hierarchy.Row{"id": 1, "PalmId": palmCode, "Task_id": taskID})
	store.Insert(hierarchy.TablePalms, hierarchy.Row{"id": 2, "PalmId": rightPalm, "Task_id": "T-missing"})
	store.Insert(hierarchy.TableFingers, hierarchy.Row{"id": 1, "FingerId": fingerCode, "Palm_id": palmCode})
	store.Insert(hierarchy.TableFingers, hierarchy.Row{"id": 2, "FingerId": loneFinger, "Palm_id": nil})
	store.Insert(hierarchy.TableMotors, hierarchy.Row{"id": 1, "Motor_id": motorCode, "FingerId": fingerCode})
	store.Insert(hierarchy.TableMotors, hierarchy.Row{"id": 2, "Motor_id": motorCode2, "FingerId": loneFinger})
	store.Insert(hierarchy.TableServos, hierarchy.Row{"id": 1, "servo_id": servoCode, "SuperiorId": fingerCode})
	store.Insert(hierarchy.TableServos, hierarchy.Row{"id": 2, "servo_id": rotaryCode, "SuperiorId": palmCode})
	return store
}

func newTestTracer(store hierarchy.RecordStore) *Tracer {
	return NewTracer(hierarchy.NewLocator(store), hierarchy.DefaultSchema(), nil)
}

func strOf(p *string) string {
	if p == nil {
		return "<nil>"
	}
	return *p
}

func TestTracer_Motor(t *testing.T) {
	t.Run("full chain from motor", func(t *testing.T) {
		tracer := newTestTracer(newFixture())

		chain, err := tracer.Trace(context.Background(), motorCode)
		require.NoError(t, err)

		assert.Equal(t, partcode.KindMotor, chain.IdentifiedKind)
		assert.Equal(t, "Motor", chain.IdentifiedResult)
		assert.Equal(t, motorCode, strOf(chain.MotorID))
		assert.Equal(t, fingerCode, strOf(chain.FingerID))
		assert.Equal(t, palmCode, strOf(chain.PalmID))
		assert.Equal(t, "L", strOf(chain.PalmSide))
		assert.Equal(t, taskID, strOf(chain.TaskID))
		assert.Equal(t, "WO-2025-001", strOf(chain.TaskNo))
		assert.Nil(t, chain.ServoID)
		assert.True(t, chain.Complete())
		assert.Equal(t, 4, chain.Depth())
		assert.Equal(t, motorCode, chain.Leaf())
	})

	t.Run("lower-case scan records the stored id", func(t *testing.T) {
		tracer := newTestTracer(newFixture())

		chain, err := tracer.Trace(context.Background(), "  m11021g27w-0001 ")
		require.NoError(t, err)
		assert.Equal(t, motorCode, strOf(chain.MotorID))
		assert.Equal(t, "  m11021g27w-0001 ", chain.ScannedCode)
		assert.True(t, chain.Complete())
	})

	t.Run("finger without palm reference stops the climb", func(t *testing.T) {
		tracer := newTestTracer(newFixture())

		chain, err := tracer.Trace(context.Background(), motorCode2)
		require.NoError(t, err)
		assert.Equal(t, motorCode2, strOf(chain.MotorID))
		assert.Equal(t, loneFinger, strOf(chain.FingerID))
		assert.Nil(t, chain.PalmID)
		assert.Nil(t, chain.PalmSide)
		assert.Nil(t, chain.TaskID)
		assert.Nil(t, chain.TaskNo)
		assert.False(t, chain.Complete())
		assert.Equal(t, 2, chain.Depth())
	})

	t.Run("unknown motor returns identification only", func(t *testing.T) {
		tracer := newTestTracer(newFixture())

		chain, err := tracer.Trace(context.Background(), "M11021ZZZZ-9999")
		require.NoError(t, err)
		assert.Equal(t, partcode.KindMotor, chain.IdentifiedKind)
		assert.Zero(t, chain.Depth())
		assert.Equal(t, "", chain.Leaf())
	})
}

func TestTracer_Servo(t *testing.T) {
	t.Run("servo mounted on a finger", func(t *testing.T) {
		tracer := newTestTracer(newFixture())

		chain, err := tracer.Trace(context.Background(), servoCode)
		require.NoError(t, err)
		assert.Equal(t, partcode.KindServo, chain.IdentifiedKind)
		assert.Equal(t, servoCode, strOf(chain.ServoID))
		assert.Equal(t, fingerCode, strOf(chain.FingerID))
		assert.Equal(t, palmCode, strOf(chain.PalmID))
		assert.Equal(t, taskID, strOf(chain.TaskID))
		assert.Nil(t, chain.MotorID)
	})

	t.Run("rotary servo falls back to palm", func(t *testing.T) {
		tracer := newTestTracer(newFixture())

		chain, err := tracer.Trace(context.Background(), rotaryCode)
		require.NoError(t, err)
		assert.Equal(t, partcode.KindRotaryServo, chain.IdentifiedKind)
		assert.Equal(t, rotaryCode, strOf(chain.ServoID))
		assert.Nil(t, chain.FingerID)
		assert.Equal(t, palmCode, strOf(chain.PalmID))
		assert.Equal(t, taskID, strOf(chain.TaskID))
	})

	t.Run("finger is preferred when the superior id matches both", func(t *testing.T) {
		store := newFixture()
		store.Insert(hierarchy.TablePalms, hierarchy.Row{"id": 3, "PalmId": fingerCode, "Task_id": taskID})
		tracer := newTestTracer(store)

		chain, err := tracer.Trace(context.Background(), servoCode)
		require.NoError(t, err)
		assert.Equal(t, fingerCode, strOf(chain.FingerID))
		assert.Equal(t, palmCode, strOf(chain.PalmID))
	})
}

func TestTracer_FingerAndPalm(t *testing.T) {
	t.Run("finger scan", func(t *testing.T) {
		tracer := newTestTracer(newFixture())

		chain, err := tracer.Trace(context.Background(), fingerCode)
		require.NoError(t, err)
		assert.Equal(t, "Finger-F-L", chain.IdentifiedResult)
		assert.Equal(t, fingerCode, strOf(chain.FingerID))
		assert.Equal(t, taskID, strOf(chain.TaskID))
		assert.Equal(t, 3, chain.Depth())
	})

	t.Run("palm whose task is missing", func(t *testing.T) {
		tracer := newTestTracer(newFixture())

		chain, err := tracer.Trace(context.Background(), rightPalm)
		require.NoError(t, err)
		assert.Equal(t, partcode.KindPalm, chain.IdentifiedKind)
		assert.Equal(t, rightPalm, strOf(chain.PalmID))
		assert.Equal(t, "R", strOf(chain.PalmSide))
		assert.Nil(t, chain.TaskID)
	})
}

func TestTracer_IdentificationOnly(t *testing.T) {
	for _, code := range []string{"DX021", "", "not-a-part"} {
		store := newFixture()
		tracer := newTestTracer(store)

		chain, err := tracer.Trace(context.Background(), code)
		require.NoError(t, err, code)
		assert.Zero(t, chain.Depth(), code)
		assert.Zero(t, store.Queries.Load(), code)
		assert.Zero(t, store.ColumnReads.Load(), code)
	}
}

func TestTracer_NoFabrication(t *testing.T) {
	store := newFixture()
	tracer := newTestTracer(store)
	ctx := context.Background()
	schema := hierarchy.DefaultSchema()

	exists := func(level hierarchy.Level, id *string) bool {
		if id == nil {
			return true
		}
		rows, err := store.FindWhere(ctx, level.Collection.Table, firstColumn(t, store, level), []any{*id})
		require.NoError(t, err)
		return len(rows) == 1
	}

	for _, code := range []string{motorCode, motorCode2, servoCode, rotaryCode, fingerCode, loneFinger, palmCode, rightPalm, "M11021NOPE"} {
		chain, err := tracer.Trace(ctx, code)
		require.NoError(t, err, code)
		assert.True(t, exists(schema.Motor, chain.MotorID), code)
		assert.True(t, exists(schema.Servo, chain.ServoID), code)
		assert.True(t, exists(schema.Finger, chain.FingerID), code)
		assert.True(t, exists(schema.Palm, chain.PalmID), code)
		assert.True(t, exists(schema.Task.Level, chain.TaskID), code)
	}
}

func firstColumn(t *testing.T, store *hierarchytest.MemoryStore, level hierarchy.Level) string {
	columns, err := store.Columns(context.Background(), level.Collection.Table)
	require.NoError(t, err)
	fields := hierarchy.ResolveFields(columns, level.Key)
	require.NotEmpty(t, fields)
	return fields[0]
}

func TestTracer_Cancellation(t *testing.T) {
	t.Run("canceled before the first lookup", func(t *testing.T) {
		store := newFixture()
		tracer := newTestTracer(store)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		chain, err := tracer.Trace(ctx, motorCode)
		assert.ErrorIs(t, err, shared.ErrCanceled)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, ProvenanceChain{}, chain)
		assert.Zero(t, store.Queries.Load())
	})

	t.Run("canceled between levels", func(t *testing.T) {
		store := newFixture()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		store.OnQuery = func(table string) {
			if table == hierarchy.TableFingers {
				cancel()
			}
		}
		tracer := newTestTracer(store)

		chain, err := tracer.Trace(ctx, motorCode)
		assert.ErrorIs(t, err, shared.ErrCanceled)
		assert.NotErrorIs(t, err, shared.ErrNotFound)
		assert.Nil(t, chain.MotorID)
		assert.False(t, chain.Complete())
	})

	t.Run("query interrupted by cancellation", func(t *testing.T) {
		store := newFixture()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		interrupted := errors.New("pq: canceling statement due to user request")
		store.OnQuery = func(table string) {
			if table == hierarchy.TablePalms {
				cancel()
				store.Err = interrupted
			}
		}
		tracer := newTestTracer(store)

		_, err := tracer.Trace(ctx, motorCode)
		assert.ErrorIs(t, err, shared.ErrCanceled)
		assert.ErrorIs(t, err, interrupted)
	})
}

func TestTracer_StorageError(t *testing.T) {
	store := newFixture()
	boom := errors.New("database is locked")
	store.Err = boom
	tracer := newTestTracer(store)

	chain, err := tracer.Trace(context.Background(), motorCode)
	assert.ErrorIs(t, err, boom)
	assert.False(t, shared.IsCanceled(err))
	assert.Equal(t, ProvenanceChain{}, chain)
}

func TestTracer_Concurrent(t *testing.T) {
	tracer := newTestTracer(newFixture())
	codes := []string{motorCode, motorCode2, servoCode, rotaryCode, fingerCode, palmCode}

	var wg sync.WaitGroup
	results := make([]ProvenanceChain, len(codes)*4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			chain, err := tracer.Trace(context.Background(), codes[i%len(codes)])
			assert.NoError(t, err)
			results[i] = chain
		}(i)
	}
	wg.Wait()

	for i, chain := range results {
		expected, err := tracer.Trace(context.Background(), codes[i%len(codes)])
		require.NoError(t, err)
		assert.Equal(t, expected, chain)
	}
}
