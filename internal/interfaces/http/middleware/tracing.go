// Package middleware provides HTTP middleware for the MES backend.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mes/backend/internal/infrastructure/logger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig holds configuration for the tracing middleware.
type TracingConfig struct {
	// ServiceName is the name of the service for trace identification.
	ServiceName string
	// Enabled controls whether tracing is active.
	Enabled bool
}

// DefaultTracingConfig returns default tracing configuration.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName: "mes-backend",
		Enabled:     true,
	}
}

// Tracing returns the otelgin server span middleware. It uses the global
// tracer provider, so telemetry must be initialised before the router.
func Tracing(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}
	return otelgin.Middleware(cfg.ServiceName)
}

// SpanEnricher adds the request id, the matched route parameters and the
// error status to the server span. Place it after Tracing and RequestID.
func SpanEnricher() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			c.Next()
			return
		}

		if requestID := c.GetString(logger.GinRequestIDKey); requestID != "" {
			span.SetAttributes(attribute.String("request_id", requestID))
		}
		for _, p := range c.Params {
			switch p.Key {
			case "code":
				span.SetAttributes(attribute.String("part.scanned_code", p.Value))
			case "task_id":
				span.SetAttributes(attribute.String("task.id", p.Value))
			case "stage":
				span.SetAttributes(attribute.String("gate.stage", p.Value))
			}
		}

		c.Next()

		status := c.Writer.Status()
		if status >= http.StatusBadRequest {
			span.SetStatus(codes.Error, statusMessage(status))
			span.SetAttributes(attribute.Int("http.status_code", status))
		}
	}
}

func statusMessage(status int) string {
	if text := http.StatusText(status); text != "" {
		return text
	}
	return "Client Closed Request"
}
