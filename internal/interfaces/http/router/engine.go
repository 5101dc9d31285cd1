package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mes/backend/internal/infrastructure/logger"
	"github.com/mes/backend/internal/interfaces/http/dto"
	"github.com/mes/backend/internal/interfaces/http/handler"
	"github.com/mes/backend/internal/interfaces/http/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// EngineConfig configures the middleware stack of NewEngine
type EngineConfig struct {
	Logger         *zap.Logger
	Tracing        middleware.TracingConfig
	Meter          metric.Meter  // nil disables HTTP metrics
	RequestTimeout time.Duration // zero disables the per-request deadline
	TrustedProxies []string
	Profiling      bool // pprof route labels for Pyroscope
}

// Handlers are the endpoint implementations mounted by NewEngine
type Handlers struct {
	Traceability *handler.TraceabilityHandler
	System       *handler.SystemHandler
}

// NewEngine builds the gin engine with the middleware stack and every route.
//
// Middleware order: request id, recovery, tracing, span enrichment, request
// logging, metrics, profiling labels, security headers, request timeout.
func NewEngine(cfg EngineConfig, h Handlers) (*gin.Engine, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.Tracing(cfg.Tracing))
	engine.Use(middleware.SpanEnricher())
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.HTTPMetrics(cfg.Meter))
	if cfg.Profiling {
		engine.Use(middleware.Profiling(middleware.DefaultProfilingConfig()))
	}
	engine.Use(middleware.Secure())
	engine.Use(middleware.Timeout(cfg.RequestTimeout))

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeNotFound,
			"Route not found",
			c.GetString(logger.GinRequestIDKey),
		))
	})

	if h.System != nil {
		engine.GET("/health", h.System.Health)
	}

	r := NewRouter(engine, WithAPIVersion("v1"))

	if h.Traceability != nil {
		parts := NewDomainGroup("parts", "/parts")
		parts.POST("/identify", h.Traceability.IdentifyBatch)
		parts.GET("/:code/identity", h.Traceability.Identify)
		parts.GET("/:code/trace", h.Traceability.Trace)

		tasks := NewDomainGroup("tasks", "/tasks")
		tasks.GET("/:task_id/gates", h.Traceability.Gates)
		tasks.GET("/:task_id/gates/:stage", h.Traceability.Gate)

		stages := NewDomainGroup("stages", "/stages")
		stages.GET("", h.Traceability.Stages)

		r.Register(parts).Register(tasks).Register(stages)
	}

	if h.System != nil {
		system := NewDomainGroup("system", "/system")
		system.GET("/info", h.System.GetSystemInfo)
		system.GET("/ping", h.System.Ping)
		r.Register(system)
	}

	r.Setup()
	return engine, nil
}
