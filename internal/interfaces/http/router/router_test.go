package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	traceabilityapp "github.com/mes/backend/internal/application/traceability"
	"github.com/mes/backend/internal/domain/hierarchy"
	"github.com/mes/backend/internal/domain/hierarchy/hierarchytest"
	"github.com/mes/backend/internal/interfaces/http/dto"
	"github.com/mes/backend/internal/interfaces/http/handler"
	"github.com/mes/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())

	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)
}

func TestRouterWithAPIVersion(t *testing.T) {
	r := NewRouter(gin.New(), WithAPIVersion("v2"))

	assert.Equal(t, "v2", r.apiVersion)
}

func TestDomainGroup(t *testing.T) {
	t.Run("creates group with name and prefix", func(t *testing.T) {
		g := NewDomainGroup("parts", "/parts")
		assert.Equal(t, "parts", g.Name())
		assert.Equal(t, "/parts", g.Prefix())
	})

	t.Run("registers routes, subgroups and middleware", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("test", "/test").Use(func(c *gin.Context) {
			c.Header("X-Group", "test")
			c.Next()
		})
		g.GET("/items", func(c *gin.Context) { c.String(http.StatusOK, "items") })
		g.POST("/items", func(c *gin.Context) { c.String(http.StatusCreated, "created") })
		g.Group("nested", "/nested").GET("/leaf", func(c *gin.Context) { c.String(http.StatusOK, "leaf") })

		r := NewRouter(engine)
		r.Register(g)
		r.Setup()

		tests := []struct {
			method string
			path   string
			status int
			body   string
		}{
			{http.MethodGet, "/api/v1/test/items", http.StatusOK, "items"},
			{http.MethodPost, "/api/v1/test/items", http.StatusCreated, "created"},
			{http.MethodGet, "/api/v1/test/nested/leaf", http.StatusOK, "leaf"},
		}
		for _, tt := range tests {
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.status, w.Code, tt.path)
			assert.Equal(t, tt.body, w.Body.String(), tt.path)
			assert.Equal(t, "test", w.Header().Get("X-Group"), tt.path)
		}
	})
}

// newHand registers task T1 with one palm, one finger and one motor. Only
// the palm is inspected.
func newHand() *hierarchytest.MemoryStore {
	store := hierarchytest.NewMemoryStore()
	store.CreateTable(hierarchy.TableTasks, "id", "task_id", "task_no", "expected_unit_count")
	store.CreateTable(hierarchy.TablePalms, "id", "palm_id", "task_id")
	store.CreateTable(hierarchy.TableFingers, "id", "finger_id", "palm_id")
	store.CreateTable(hierarchy.TableMotors, "id", "motor_id", "finger_id")
	store.CreateTable(hierarchy.TableServos, "id", "servo_id", "superior_id")
	store.CreateTable(hierarchy.TableMotorInspections, "id", "motor_id", "seq_id", "qualified")
	store.CreateTable(hierarchy.TableServoInspections, "id", "servo_id", "seq_id", "qualified")
	store.CreateTable(hierarchy.TableRotaryServoInspections, "id", "servo_id", "seq_id", "qualified")
	store.CreateTable(hierarchy.TableFingerInspections, "id", "finger_id", "seq_id", "qualified")
	store.CreateTable(hierarchy.TablePalmInspections, "id", "palm_id", "seq_id", "qualified")

	store.Insert(hierarchy.TableTasks, hierarchy.Row{"id": 1, "task_id": "T1", "task_no": "WO-2025-001", "expected_unit_count": 1})
	store.Insert(hierarchy.TablePalms, hierarchy.Row{"id": 1, "palm_id": "DX021-P0001-60001", "task_id": "T1"})
	store.Insert(hierarchy.TableFingers, hierarchy.Row{"id": 1, "finger_id": "MO-20250411-001-FL-0001", "palm_id": "DX021-P0001-60001"})
	store.Insert(hierarchy.TableMotors, hierarchy.Row{"id": 1, "motor_id": "M11021G27W-0001", "finger_id": "MO-20250411-001-FL-0001"})
	store.Insert(hierarchy.TablePalmInspections, hierarchy.Row{"id": 1, "palm_id": "DX021-P0001-60001", "seq_id": 1, "qualified": true})
	return store
}

func newTestEngine(t *testing.T) *gin.Engine {
	t.Helper()

	svc := traceabilityapp.NewTraceabilityService(newHand(), hierarchy.DefaultSchema(), nil, nil)
	engine, err := NewEngine(EngineConfig{
		Tracing:   middleware.TracingConfig{Enabled: false},
		Profiling: true,
	}, Handlers{
		Traceability: handler.NewTraceabilityHandler(svc),
		System:       handler.NewSystemHandler(nil, "mes-backend", "test"),
	})
	require.NoError(t, err)
	return engine
}

func get(engine *gin.Engine, path string) (*httptest.ResponseRecorder, dto.Response) {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	var resp dto.Response
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func TestNewEngine_Routes(t *testing.T) {
	engine := newTestEngine(t)

	t.Run("identity", func(t *testing.T) {
		w, resp := get(engine, "/api/v1/parts/M11021G27W-0001/identity")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Motor", resp.Data.(map[string]any)["kind"])
		assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
	})

	t.Run("trace", func(t *testing.T) {
		w, resp := get(engine, "/api/v1/parts/M11021G27W-0001/trace")
		require.Equal(t, http.StatusOK, w.Code)
		data := resp.Data.(map[string]any)
		assert.Equal(t, "T1", data["task_id"])
		assert.Equal(t, "WO-2025-001", data["task_no"])
		assert.Equal(t, "L", data["palm_side"])
		assert.Equal(t, true, data["complete"])
	})

	t.Run("one gate", func(t *testing.T) {
		w, resp := get(engine, "/api/v1/tasks/T1/gates/palm")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, resp.Data.(map[string]any)["passed"])
	})

	t.Run("all gates", func(t *testing.T) {
		w, resp := get(engine, "/api/v1/tasks/T1/gates")
		require.Equal(t, http.StatusOK, w.Code)
		data := resp.Data.(map[string]any)
		assert.Equal(t, false, data["all_passed"])
		assert.NotEmpty(t, data["gates"])
	})

	t.Run("missing task", func(t *testing.T) {
		w, resp := get(engine, "/api/v1/tasks/T404/gates/palm")
		assert.Equal(t, http.StatusNotFound, w.Code)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeNotFound, resp.Error.Code)
		assert.Equal(t, w.Header().Get(middleware.RequestIDHeader), resp.Error.RequestID)
	})

	t.Run("unknown stage", func(t *testing.T) {
		w, _ := get(engine, "/api/v1/tasks/T1/gates/paint")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("stages", func(t *testing.T) {
		w, resp := get(engine, "/api/v1/stages")
		require.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, resp.Meta)
		assert.Equal(t, len(resp.Data.([]any)), resp.Meta.Total)
	})

	t.Run("batch identify", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/parts/identify", strings.NewReader(`{"codes":["DX022-60002","???"]}`))
		req.Header.Set("Content-Type", "application/json")
		engine.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"reason":"No match"`)
	})

	t.Run("health and ping", func(t *testing.T) {
		w, _ := get(engine, "/health")
		assert.Equal(t, http.StatusOK, w.Code)
		w, resp := get(engine, "/api/v1/system/ping")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "pong", resp.Data.(map[string]any)["message"])
	})

	t.Run("unknown route", func(t *testing.T) {
		w, resp := get(engine, "/api/v1/nothing")
		assert.Equal(t, http.StatusNotFound, w.Code)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "Route not found", resp.Error.Message)
	})

	t.Run("security headers", func(t *testing.T) {
		w, _ := get(engine, "/api/v1/stages")
		assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	})
}
