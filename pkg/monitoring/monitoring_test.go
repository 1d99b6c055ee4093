package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediflow/clinic/pkg/types"
)

type recordedRequest struct {
	method string
	path   string
	status int
}

type recordedOperation struct {
	operation  string
	collection string
	success    bool
	details    map[string]interface{}
}

type fakeRequestLogger struct {
	requests   []recordedRequest
	operations []recordedOperation
}

func (f *fakeRequestLogger) HTTPRequest(ctx context.Context, method, path, userAgent, clientIP string, statusCode int, duration int64, details map[string]interface{}) {
	f.requests = append(f.requests, recordedRequest{method: method, path: path, status: statusCode})
}

func (f *fakeRequestLogger) DatabaseOperation(ctx context.Context, operation, collection string, duration int64, success bool, details map[string]interface{}) {
	f.operations = append(f.operations, recordedOperation{operation: operation, collection: collection, success: success, details: details})
}

func TestHealthManager_AggregatesChecks(t *testing.T) {
	hm := NewHealthManager("mediflow", "test", time.Second)
	hm.RegisterPing("mongodb", func(ctx context.Context) error { return nil })

	report := hm.CheckHealth(context.Background())
	assert.Equal(t, HealthStatusHealthy, report.Status)
	require.Len(t, report.Checks, 1)
	assert.Equal(t, "mongodb", report.Checks[0].Name)

	hm.RegisterPing("redis", func(ctx context.Context) error {
		return errors.New("connection refused")
	})
	report = hm.CheckHealth(context.Background())
	assert.Equal(t, HealthStatusUnhealthy, report.Status)
	assert.Equal(t, 1, report.Summary[string(HealthStatusUnhealthy)])
	require.Len(t, report.Checks, 2)
	assert.Equal(t, "mongodb", report.Checks[0].Name)
	assert.Equal(t, "redis", report.Checks[1].Name)
	assert.Equal(t, "redis ping failed: connection refused", report.Checks[1].Message)
}

func TestHealthManager_HTTPHandler(t *testing.T) {
	hm := NewHealthManager("mediflow", "test", time.Second)
	hm.RegisterPing("redis", func(ctx context.Context) error {
		return errors.New("connection refused")
	})

	rec := httptest.NewRecorder()
	hm.HTTPHandler()(rec, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var report HealthReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "mediflow", report.Service)
	assert.Contains(t, report.Checks[0].Message, "connection refused")
}

func TestHealthManager_CheckTimeout(t *testing.T) {
	hm := NewHealthManager("mediflow", "test", 20*time.Millisecond)
	hm.RegisterPing("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	report := hm.CheckHealth(context.Background())
	assert.Equal(t, HealthStatusUnhealthy, report.Status)
}

func TestHTTPMiddleware_RecordsRouteTemplate(t *testing.T) {
	metrics := NewMetricsCollector("mediflow-test")
	requests := &fakeRequestLogger{}
	mm := NewMonitoringMiddleware(metrics, NewNoopTracingManager("mediflow-test"), requests)

	router := mux.NewRouter()
	router.Use(mm.HTTPMiddleware)
	router.HandleFunc("/doctor/detailes/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}).Methods("GET")

	for _, id := range []string{"a1", "b2"} {
		req := httptest.NewRequest("GET", "/doctor/detailes/"+id, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusTeapot, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	}

	count := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/doctor/detailes/{id}", "418"))
	assert.Equal(t, float64(2), count)
	require.Len(t, requests.requests, 2)
	assert.Equal(t, "/doctor/detailes/b2", requests.requests[1].path)
}

func TestHTTPMiddleware_KeepsIncomingRequestID(t *testing.T) {
	mm := NewMonitoringMiddleware(NewMetricsCollector("mediflow-test"), NewNoopTracingManager("mediflow-test"), &fakeRequestLogger{})
	handler := mm.HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}

func TestStoreOperation_CountsErrors(t *testing.T) {
	metrics := NewMetricsCollector("mediflow-test")
	ops := &fakeRequestLogger{}
	mm := NewMonitoringMiddleware(metrics, NewNoopTracingManager("mediflow-test"), ops)

	err := mm.StoreOperation(context.Background(), "mongodb", "insert", "prescriptions", func(ctx context.Context) error {
		return errors.New("write conflict")
	})
	assert.EqualError(t, err, "write conflict")
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.systemErrors.WithLabelValues("store_error", "prescriptions")))

	require.NoError(t, mm.StoreOperation(context.Background(), "mongodb", "find", "users", func(ctx context.Context) error {
		return nil
	}))

	require.Len(t, ops.operations, 2)
	assert.Equal(t, "insert", ops.operations[0].operation)
	assert.Equal(t, "prescriptions", ops.operations[0].collection)
	assert.False(t, ops.operations[0].success)
	assert.Equal(t, "write conflict", ops.operations[0].details["error"])
	assert.Equal(t, "mongodb", ops.operations[0].details["system"])
	assert.True(t, ops.operations[1].success)
	assert.NotContains(t, ops.operations[1].details, "error")

	err = mm.StoreOperation(context.Background(), "mongodb", "find", "users", func(ctx context.Context) error {
		return types.NewNotFoundError(types.ErrCodeNotFound, "user not found: ghost")
	})
	assert.True(t, types.IsNotFound(err))
	require.Len(t, ops.operations, 3)
	assert.True(t, ops.operations[2].success)
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.systemErrors.WithLabelValues("store_error", "users")))
}

func TestAuthOperation_RecordsOutcome(t *testing.T) {
	metrics := NewMetricsCollector("mediflow-test")
	mm := NewMonitoringMiddleware(metrics, NewNoopTracingManager("mediflow-test"), &fakeRequestLogger{})

	_ = mm.AuthOperation(context.Background(), "password", func(ctx context.Context) error { return nil })
	_ = mm.AuthOperation(context.Background(), "password", func(ctx context.Context) error { return errors.New("bad password") })
	_ = mm.AuthOperation(context.Background(), "password", func(ctx context.Context) error { return errors.New("bad password") })

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.authAttemptsTotal.WithLabelValues("password", "success")))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.authAttemptsTotal.WithLabelValues("password", "failed")))
}

func TestMetricsHandler_ExposesRegistry(t *testing.T) {
	metrics := NewMetricsCollector("mediflow-test")
	metrics.RecordHandoffSend("delivered")
	metrics.SetRegisteredUsers(3)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `handoff_sends_total{outcome="delivered",service="mediflow-test"} 1`)
	assert.Contains(t, rec.Body.String(), "realtime_registered_users")
}
