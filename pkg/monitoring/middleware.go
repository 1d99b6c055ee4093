package monitoring

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/mediflow/clinic/pkg/logger"
	"github.com/mediflow/clinic/pkg/types"
)

// MonitoringMiddleware combines metrics, tracing, and logging
type MonitoringMiddleware struct {
	metrics *MetricsCollector
	tracing *TracingManager
	logger  RequestLogger
}

// RequestLogger is the part of the logger the middleware needs
type RequestLogger interface {
	HTTPRequest(ctx context.Context, method, path, userAgent, clientIP string, statusCode int, duration int64, details map[string]interface{})
	DatabaseOperation(ctx context.Context, operation, collection string, duration int64, success bool, details map[string]interface{})
}

// NewMonitoringMiddleware creates a new monitoring middleware
func NewMonitoringMiddleware(metrics *MetricsCollector, tracing *TracingManager, logger RequestLogger) *MonitoringMiddleware {
	return &MonitoringMiddleware{
		metrics: metrics,
		tracing: tracing,
		logger:  logger,
	}
}

// HTTPMiddleware creates comprehensive HTTP monitoring middleware
func (mm *MonitoringMiddleware) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), logger.RequestIDKey, requestID)
		ctx = mm.tracing.ExtractTraceContext(ctx, r.Header)

		route := routeTemplate(r)
		ctx, span := mm.tracing.StartHTTPSpan(ctx, r.Method, route)
		defer span.End()

		if traceID := mm.tracing.TraceIDFromContext(ctx); traceID != "" {
			ctx = context.WithValue(ctx, logger.TraceIDKey, traceID)
		}

		span.SetAttributes(
			attribute.String("http.user_agent", r.UserAgent()),
			attribute.String("http.remote_addr", r.RemoteAddr),
			attribute.String("request.id", requestID),
		)

		wrapper := &monitoringResponseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}
		wrapper.Header().Set("X-Request-ID", requestID)
		mm.tracing.InjectTraceContext(ctx, wrapper.Header())

		next.ServeHTTP(wrapper, r.WithContext(ctx))

		duration := time.Since(start)
		mm.metrics.RecordHTTPRequest(r.Method, route, strconv.Itoa(wrapper.statusCode), duration)

		span.SetAttributes(
			attribute.Int("http.status_code", wrapper.statusCode),
			attribute.Int64("http.response_size", wrapper.bytesWritten),
		)
		if wrapper.statusCode >= 500 {
			span.SetStatus(codes.Error, http.StatusText(wrapper.statusCode))
		}

		mm.logger.HTTPRequest(
			ctx,
			r.Method,
			r.URL.Path,
			r.UserAgent(),
			r.RemoteAddr,
			wrapper.statusCode,
			duration.Milliseconds(),
			map[string]interface{}{
				"bytes_written": wrapper.bytesWritten,
				"span_id":       mm.tracing.SpanIDFromContext(ctx),
			},
		)
	})
}

// StoreOperation wraps one storage call with a span and a latency observation
func (mm *MonitoringMiddleware) StoreOperation(ctx context.Context, system, operation, collection string, fn func(ctx context.Context) error) error {
	start := time.Now()

	ctx, span := mm.tracing.StartStoreSpan(ctx, system, operation, collection)
	defer span.End()

	err := fn(ctx)
	duration := time.Since(start)

	mm.metrics.RecordStoreOperation(operation, collection, duration)
	details := map[string]interface{}{"system": system}
	// A missing document is an answer, not a store failure.
	failed := err != nil && !types.IsNotFound(err)
	if failed {
		mm.tracing.RecordError(span, err)
		mm.metrics.RecordSystemError("store_error", collection)
		details["error"] = err.Error()
	}
	mm.logger.DatabaseOperation(ctx, operation, collection, duration.Milliseconds(), !failed, details)

	return err
}

// AuthOperation wraps an authentication step with a span and an attempt counter
func (mm *MonitoringMiddleware) AuthOperation(ctx context.Context, method string, fn func(ctx context.Context) error) error {
	ctx, span := mm.tracing.StartAuthSpan(ctx, method)
	defer span.End()

	err := fn(ctx)

	status := "success"
	if err != nil {
		status = "failed"
		mm.tracing.RecordError(span, err)
	}
	mm.metrics.RecordAuthAttempt(method, status)
	span.SetAttributes(attribute.String("auth.status", status))

	return err
}

// monitoringResponseWriter wraps http.ResponseWriter to capture metrics
type monitoringResponseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (mrw *monitoringResponseWriter) WriteHeader(code int) {
	mrw.statusCode = code
	mrw.ResponseWriter.WriteHeader(code)
}

func (mrw *monitoringResponseWriter) Write(b []byte) (int, error) {
	n, err := mrw.ResponseWriter.Write(b)
	mrw.bytesWritten += int64(n)
	return n, err
}

// Hijack lets the websocket upgrader take over the connection
func (mrw *monitoringResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := mrw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	mrw.statusCode = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}

// routeTemplate returns the mux path template so path ids do not explode label cardinality
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return r.URL.Path
}
