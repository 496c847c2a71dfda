package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-recovery/pkg/audit"
	"github.com/tendant/simple-recovery/pkg/client"
	pkgconfig "github.com/tendant/simple-recovery/pkg/config"
	"github.com/tendant/simple-recovery/pkg/device"
	"github.com/tendant/simple-recovery/pkg/identity"
	"github.com/tendant/simple-recovery/pkg/recovery"
	"github.com/tendant/simple-recovery/pkg/recoverymethod"
)

const testSecret = "test-secret-key-for-testing-only"

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code string `json:"code"`
	} `json:"error"`
}

type testServer struct {
	handler http.Handler
	userID  uuid.UUID
	token   string
}

// newTestServer wires in-memory services behind SetupRoutes
func newTestServer(t *testing.T, mutate func(*pkgconfig.Config)) testServer {
	t.Helper()

	users := identity.NewInMemStore()
	userID, err := users.CreateUser("router@example.com", "original-secret")
	require.NoError(t, err)

	auditSvc := audit.NewAuditService(audit.NewInMemAuditRepository())
	methods := recoverymethod.NewRecoveryMethodService(
		recoverymethod.NewInMemRecoveryMethodRepository(),
		recoverymethod.WithAuditRecorder(auditSvc),
	)
	devices := device.NewDeviceService(device.NewInMemDeviceRepository(), device.WithAuditRecorder(auditSvc))
	recoverySvc := recovery.NewRecoveryService(
		recovery.NewInMemRecoveryRequestRepository(),
		methods,
		users,
		recovery.WithDebugTokens(true),
		recovery.WithAuditRecorder(auditSvc),
		recovery.WithDeviceRevoker(devices),
	)

	cfg := pkgconfig.Config{
		Prefix: pkgconfig.DefaultV1Prefixes(),
		JWT:    pkgconfig.JWTConfig{Secret: testSecret},
		RateLimit: pkgconfig.RateLimitConfig{
			Enabled:       true,
			PerIPRequests: 100,
			PerIPWindow:   time.Minute,
		},
	}
	if mutate != nil {
		mutate(&cfg)
	}

	routerCfg, err := NewConfig(context.Background(), Services{
		Recovery:       recoverySvc,
		RecoveryMethod: methods,
		Device:         devices,
		Audit:          auditSvc,
	}, cfg)
	require.NoError(t, err)

	r := chi.NewRouter()
	SetupRoutes(r, routerCfg)

	token, err := client.IssueToken([]byte(testSecret), userID, "router@example.com", time.Hour)
	require.NoError(t, err)

	return testServer{handler: r, userID: userID, token: token}
}

func (s testServer) do(t *testing.T, method, path string, body interface{}, authenticated bool) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/120.0")
	if authenticated {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec.Code, env
}

func TestAuthenticatedRoutes_RequireToken(t *testing.T) {
	s := newTestServer(t, nil)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/recovery-methods"},
		{http.MethodPost, "/api/v1/recovery-methods/email"},
		{http.MethodGet, "/api/v1/devices"},
		{http.MethodPost, "/api/v1/devices/trust"},
		{http.MethodGet, "/api/v1/audit/events"},
	}

	for _, p := range paths {
		t.Run(p.method+" "+p.path, func(t *testing.T) {
			status, env := s.do(t, p.method, p.path, nil, false)
			assert.Equal(t, http.StatusUnauthorized, status)
			require.NotNil(t, env.Error)
			assert.Equal(t, "NOT_AUTHENTICATED", env.Error.Code)
		})
	}
}

func TestAuthenticatedRoutes_RejectForeignSignature(t *testing.T) {
	s := newTestServer(t, nil)
	forged, err := client.IssueToken([]byte("some-other-secret"), s.userID, "", time.Hour)
	require.NoError(t, err)
	s.token = forged

	status, env := s.do(t, http.MethodGet, "/api/v1/devices", nil, true)
	assert.Equal(t, http.StatusUnauthorized, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_AUTHENTICATED", env.Error.Code)
}

func TestAccountRoutes(t *testing.T) {
	s := newTestServer(t, nil)

	status, _ := s.do(t, http.MethodPost, "/api/v1/recovery-methods/email", map[string]string{"email": "Backup@Example.com"}, true)
	require.Equal(t, http.StatusCreated, status)

	status, env := s.do(t, http.MethodGet, "/api/v1/recovery-methods", nil, true)
	require.Equal(t, http.StatusOK, status)
	var methods []map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &methods))
	require.Len(t, methods, 1)

	status, _ = s.do(t, http.MethodPost, "/api/v1/devices/trust", map[string]interface{}{"ttlDays": 7}, true)
	require.Equal(t, http.StatusCreated, status)

	status, env = s.do(t, http.MethodGet, "/api/v1/devices/check", nil, true)
	require.Equal(t, http.StatusOK, status)
	var trust device.TrustStatus
	require.NoError(t, json.Unmarshal(env.Data, &trust))
	assert.True(t, trust.Trusted)

	status, env = s.do(t, http.MethodGet, "/api/v1/audit/events", nil, true)
	require.Equal(t, http.StatusOK, status)
	var page struct {
		Events []struct {
			EventType string `json:"eventType"`
		} `json:"events"`
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, 2, page.Total)
	require.Len(t, page.Events, 2)
	assert.Equal(t, string(audit.EventDeviceTrusted), page.Events[0].EventType)
	assert.Equal(t, string(audit.EventRecoveryMethodAdded), page.Events[1].EventType)
}

func TestRecoveryRoutes_Public(t *testing.T) {
	s := newTestServer(t, nil)

	status, _ := s.do(t, http.MethodPost, "/api/v1/recovery-methods/email", map[string]string{"email": "backup@example.com"}, true)
	require.Equal(t, http.StatusCreated, status)

	status, env := s.do(t, http.MethodPost, "/api/v1/recovery/initiate", map[string]string{"email": "router@example.com"}, false)
	require.Equal(t, http.StatusOK, status)
	var initiated struct {
		Message string `json:"message"`
		Token   string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &initiated))
	assert.Equal(t, recovery.GenericMessage, initiated.Message)
	require.NotEmpty(t, initiated.Token)

	status, env = s.do(t, http.MethodPost, "/api/v1/recovery/verify-token", map[string]string{"token": initiated.Token}, false)
	require.Equal(t, http.StatusOK, status)
	var verified struct {
		UserID     uuid.UUID `json:"userId"`
		MethodType string    `json:"methodType"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &verified))
	assert.Equal(t, s.userID, verified.UserID)
	assert.Equal(t, "recovery_email", verified.MethodType)
}

func TestRecoveryRoutes_RequestValidation(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name string
		path string
		body interface{}
	}{
		{"missing email", "/api/v1/recovery/initiate", map[string]string{}},
		{"email of wrong type", "/api/v1/recovery/initiate", map[string]int{"email": 42}},
		{"answers not a list", "/api/v1/recovery/verify-answers", map[string]interface{}{"token": "abc", "answers": "paris"}},
		{"question id not a uuid", "/api/v1/recovery/verify-answers", map[string]interface{}{
			"token":   "abc",
			"answers": []map[string]string{{"questionId": "q1", "answer": "paris"}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := s.do(t, http.MethodPost, tt.path, tt.body, false)
			assert.Equal(t, http.StatusBadRequest, status)
			require.NotNil(t, env.Error)
			assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
		})
	}
}

func TestRecoveryRoutes_PerIPLimit(t *testing.T) {
	s := newTestServer(t, func(cfg *pkgconfig.Config) {
		cfg.RateLimit.PerIPRequests = 2
	})

	for i := 0; i < 2; i++ {
		status, _ := s.do(t, http.MethodPost, "/api/v1/recovery/initiate", map[string]string{"email": "nobody@example.com"}, false)
		require.Equal(t, http.StatusOK, status)
	}

	status, env := s.do(t, http.MethodPost, "/api/v1/recovery/initiate", map[string]string{"email": "nobody@example.com"}, false)
	assert.Equal(t, http.StatusTooManyRequests, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "RATE_LIMITED", env.Error.Code)

	// account routes are not behind the per-IP recovery limit
	status, _ = s.do(t, http.MethodGet, "/api/v1/devices", nil, true)
	assert.Equal(t, http.StatusOK, status)
}

func TestSetupRoutes_EmptyPrefixSkipsGroup(t *testing.T) {
	s := newTestServer(t, func(cfg *pkgconfig.Config) {
		cfg.Prefix.Audit = ""
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/audit/events", nil)
	req.Header.Set("Authorization", "Bearer "+s.token)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSetupPublicRoutes_OnlyRecovery(t *testing.T) {
	s := newTestServer(t, nil)
	routerCfg, err := NewConfig(context.Background(), Services{}, pkgconfig.Config{Prefix: pkgconfig.DefaultV1Prefixes()})
	require.NoError(t, err)
	assert.Nil(t, routerCfg.RecoveryHandle)
	assert.Zero(t, routerCfg.PerIPRequests)

	r := chi.NewRouter()
	SetupPublicRoutes(r, routerCfg)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices", nil)
	req.Header.Set("Authorization", "Bearer "+s.token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
