package client

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-jwt-secret-key")

func newProtectedRouter(t *testing.T) http.Handler {
	t.Helper()
	ja := jwtauth.New("HS256", testSecret, nil)

	r := chi.NewRouter()
	r.Use(Verifier(ja))
	r.Use(AuthUserMiddleware)
	r.Get("/me", func(w http.ResponseWriter, r *http.Request) {
		userID, err := RequireUserID(r)
		require.NoError(t, err)
		_, _ = w.Write([]byte(userID.String()))
	})
	return r
}

func TestAuthUserMiddleware_ValidToken(t *testing.T) {
	router := newProtectedRouter(t)
	userID := uuid.New()

	token, err := IssueToken(testSecret, userID, "user@example.com", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, userID.String(), rec.Body.String())
}

func TestAuthUserMiddleware_Cookie(t *testing.T) {
	router := newProtectedRouter(t)
	userID := uuid.New()

	token, err := IssueToken(testSecret, userID, "", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: ACCESS_TOKEN_NAME, Value: token})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthUserMiddleware_Rejects(t *testing.T) {
	router := newProtectedRouter(t)

	expired, err := IssueToken(testSecret, uuid.New(), "", -time.Hour)
	require.NoError(t, err)
	wrongKey, err := IssueToken([]byte("another-secret"), uuid.New(), "", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{"no token", ""},
		{"garbage", "Bearer not-a-jwt"},
		{"expired", "Bearer " + expired},
		{"wrong signing key", "Bearer " + wrongKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), "NOT_AUTHENTICATED")
		})
	}
}

func TestAuthUserMiddleware_NonUUIDSubject(t *testing.T) {
	router := newProtectedRouter(t)
	ja := jwtauth.New("HS256", testSecret, nil)
	_, token, err := ja.Encode(map[string]interface{}{
		"user_id": "admin",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireUserID_WithoutMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := RequireUserID(req)
	assert.Error(t, err)
}

func TestFromRequest(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		wantIP  string
	}{
		{"remote addr", nil, "192.0.2.10:51234", "192.0.2.10"},
		{"forwarded for", map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"}, "10.0.0.1:80", "203.0.113.5"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.7"}, "10.0.0.1:80", "198.51.100.7"},
		{"remote without port", nil, "192.0.2.11", "192.0.2.11"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			req.Header.Set("User-Agent", "Mozilla/5.0 Test")
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			rc := FromRequest(req)
			assert.Equal(t, tt.wantIP, rc.IPAddress)
			assert.Equal(t, "Mozilla/5.0 Test", rc.UserAgent)
			assert.Empty(t, rc.DeviceID)
		})
	}
}

func TestFromRequest_DeviceID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(DeviceIDHeader, " ios-device-1 ")
	assert.Equal(t, "ios-device-1", FromRequest(req).DeviceID)
}

func TestWithAuthUser(t *testing.T) {
	userID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithAuthUser(req.Context(), userID, "a@example.com"))

	got, err := RequireUserID(req)
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	authUser, ok := GetAuthUser(req.Context())
	require.True(t, ok)
	assert.Equal(t, "a@example.com", authUser.Email)
}
