package openapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T) (http.Handler, *string) {
	t.Helper()
	doc, err := LoadRecovery(context.Background())
	require.NoError(t, err)
	validate, err := RequestValidator(doc, "/api/v1/recovery")
	require.NoError(t, err)

	var seenBody string
	echo := func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		seenBody = string(b)
		w.WriteHeader(http.StatusNoContent)
	}

	r := chi.NewRouter()
	r.Route("/api/v1/recovery", func(r chi.Router) {
		r.Use(validate)
		r.Post("/initiate", echo)
		r.Get("/questions", echo)
		r.Post("/verify-answers", echo)
		r.Post("/undocumented", echo)
	})
	return r, &seenBody
}

func send(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestLoadRecovery(t *testing.T) {
	doc, err := LoadRecovery(context.Background())
	require.NoError(t, err)
	for _, path := range []string{"/initiate", "/verify-token", "/questions", "/verify-answers", "/reset"} {
		assert.NotNil(t, doc.Paths.Find(path), path)
	}
	assert.NotEmpty(t, RecoveryDocument())
}

func TestRequestValidator(t *testing.T) {
	h, seen := newRouter(t)

	rec := send(h, http.MethodPost, "/api/v1/recovery/initiate", `{"email":"u1@example.com"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.JSONEq(t, `{"email":"u1@example.com"}`, *seen, "body reaches the handler intact")

	tests := []struct {
		name   string
		method string
		target string
		body   string
	}{
		{"missing body", http.MethodPost, "/api/v1/recovery/initiate", ""},
		{"missing email", http.MethodPost, "/api/v1/recovery/initiate", `{}`},
		{"wrong type", http.MethodPost, "/api/v1/recovery/initiate", `{"email":42}`},
		{"missing token query", http.MethodGet, "/api/v1/recovery/questions", ""},
		{"no answers", http.MethodPost, "/api/v1/recovery/verify-answers", `{"token":"t","answers":[]}`},
		{"bad question id", http.MethodPost, "/api/v1/recovery/verify-answers", `{"token":"t","answers":[{"questionId":"nope","answer":"x"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := send(h, tt.method, tt.target, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var env struct {
				Success bool `json:"success"`
				Error   struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
			assert.False(t, env.Success)
			assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
		})
	}

	rec = send(h, http.MethodGet, "/api/v1/recovery/questions?token=abc", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = send(h, http.MethodPost, "/api/v1/recovery/undocumented", `{"anything":true}`)
	assert.Equal(t, http.StatusNoContent, rec.Code, "routes outside the document pass through")
}
