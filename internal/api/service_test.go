package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mediflow/clinic/internal/auth"
	"github.com/mediflow/clinic/pkg/config"
	"github.com/mediflow/clinic/pkg/logger"
	"github.com/mediflow/clinic/pkg/monitoring"
	"github.com/mediflow/clinic/pkg/types"
)

type testEnv struct {
	service       *Service
	handler       http.Handler
	tokens        *auth.TokenManager
	users         *MockUserRepository
	prescriptions *MockPrescriptionRepository
	files         *MockFileRepository
	access        *MockAccessListRepository
	activity      *activityRecorder
	passwords     *MockPasswordHasher
	resetCodes    *MockResetCodeStore
	mailer        *MockMailer
	blobs         *MockBlobStore
	assistant     *MockAssistant
	google        *MockGoogleVerifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{
			AllowedOrigins:  []string{"http://localhost:5173"},
			MaxUploadSizeMB: 1,
		},
		JWT:       config.JWTConfig{SecretKey: "api-test-secret", AccessTokenTTL: 3600, Issuer: "mediflow"},
		RateLimit: config.RateLimitConfig{Enabled: true, LoginPerMin: 3, AskPerMin: 2},
	}

	env := &testEnv{
		tokens:        auth.NewTokenManager(cfg.JWT),
		users:         new(MockUserRepository),
		prescriptions: new(MockPrescriptionRepository),
		files:         new(MockFileRepository),
		access:        new(MockAccessListRepository),
		activity:      &activityRecorder{},
		passwords:     new(MockPasswordHasher),
		resetCodes:    new(MockResetCodeStore),
		mailer:        new(MockMailer),
		blobs:         new(MockBlobStore),
		assistant:     new(MockAssistant),
		google:        new(MockGoogleVerifier),
	}

	env.service = NewService(cfg, Dependencies{
		Users:         env.users,
		Prescriptions: env.prescriptions,
		Files:         env.files,
		AccessList:    env.access,
		Activity:      env.activity,
		Tokens:        env.tokens,
		Passwords:     env.passwords,
		ResetCodes:    env.resetCodes,
		Mailer:        env.mailer,
		Blobs:         env.blobs,
		Assistant:     env.assistant,
		Google:        env.google,
		Health:        monitoring.NewHealthManager("mediflow-test", "test", time.Second),
	}, monitoring.NewMetricsCollector("mediflow-test"), monitoring.NewNoopTracingManager("mediflow-test"),
		logger.NewWithOutput("error", io.Discard))
	env.handler = env.service.Handler()
	return env
}

func (e *testEnv) token(t *testing.T, claims *types.UserClaims) string {
	t.Helper()
	token, err := e.tokens.Issue(claims)
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

var (
	patientClaims = &types.UserClaims{UserID: "p1", Name: "Alice", Email: "alice@example.com", Role: types.RolePatient}
	doctorClaims  = &types.UserClaims{UserID: "d1", Name: "Dr. Bob", Email: "bob@example.com", Role: types.RoleDoctor, Receptionist: "r1"}
)

func TestWelcome(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "GET", "/", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to Mediflow API", decodeBody(t, rec)["message"])
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestHealthAndMetricsMounted(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusOK, env.do(t, "GET", "/health", nil, "").Code)

	env.do(t, "GET", "/", nil, "")
	rec := env.do(t, "GET", "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/login", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/login", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestAuthMiddleware(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "GET", "/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthorized access... Missing token", decodeBody(t, rec)["message"])

	rec = env.do(t, "GET", "/me", nil, "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, "GET", "/me", nil, env.token(t, patientClaims))
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "p1", body["id"])
	assert.Equal(t, "patient", body["role"])
}

func TestRoleEnforcement(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "POST", "/prescription/doc", map[string]string{"prescription": "x", "patientId": "p1"}, env.token(t, patientClaims))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, "GET", "/patient/accesslist", nil, env.token(t, doctorClaims))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	env.prescriptions.AssertNotCalled(t, "Insert")
	env.access.AssertNotCalled(t, "ListByUser")
}

func TestIncompleteProfileIsConfinedToCompletion(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, &types.UserClaims{UserID: "g1", Email: "g@example.com", Role: types.RoleNone, Provider: "google", Incomplete: true})

	assert.Equal(t, http.StatusForbidden, env.do(t, "GET", "/prescription", nil, token).Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, "DELETE", "/me", nil, token).Code)
	assert.Equal(t, http.StatusOK, env.do(t, "GET", "/me", nil, token).Code)
}

func TestDoctorDetails(t *testing.T) {
	env := newTestEnv(t)
	env.users.On("GetByIDAndRole", mock.Anything, "d1", types.RoleDoctor).
		Return(&types.User{ID: "d1", Name: "Dr. Bob", Role: types.RoleDoctor, Password: "hash"}, nil)
	env.users.On("GetByIDAndRole", mock.Anything, "zz", types.RoleDoctor).
		Return(nil, types.NewNotFoundError(types.ErrCodeNotFound, "user not found"))

	rec := env.do(t, "GET", "/doctor/detailes/d1", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.NotContains(t, rec.Body.String(), "hash")

	rec = env.do(t, "GET", "/doctor/detailes/zz", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "No doctor found", body["message"])
}

func TestAssignReceptionist(t *testing.T) {
	env := newTestEnv(t)
	env.users.On("GetByIDAndRole", mock.Anything, "r2", types.RoleReceptionist).Return(&types.User{ID: "r2"}, nil)
	env.users.On("GetByIDAndRole", mock.Anything, "p9", types.RoleReceptionist).
		Return(nil, types.NewNotFoundError(types.ErrCodeNotFound, "user not found"))
	env.users.On("Update", mock.Anything, "d1", mock.MatchedBy(func(u *types.UserUpdates) bool {
		return u.Receptionist != nil && *u.Receptionist == "r2"
	})).Return(nil)
	env.users.On("GetByID", mock.Anything, "d1").
		Return(&types.User{ID: "d1", Name: "Dr. Bob", Role: types.RoleDoctor, Receptionist: "r2"}, nil)

	token := env.token(t, doctorClaims)

	rec := env.do(t, "PUT", "/doctor/receptionist", map[string]string{"receptionistId": "p9"}, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, "PUT", "/doctor/receptionist", map[string]string{"receptionistId": "r2"}, token)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp types.LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	claims, err := env.tokens.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "r2", claims.Receptionist)
	env.users.AssertExpectations(t)
}
