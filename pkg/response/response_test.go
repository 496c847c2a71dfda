package response

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	pkgerrors "github.com/tendant/simple-recovery/pkg/errors"
)

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestOK(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	OK(rec, req, map[string]string{"hello": "world"})

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
	assert.Nil(t, env.Error)
	assert.Equal(t, map[string]interface{}{"hello": "world"}, env.Data)
}

func TestError_Coded(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/verify", nil)

	Error(rec, req, pkgerrors.New(pkgerrors.ErrCodeTokenExpired, "recovery token expired"))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, pkgerrors.ErrCodeTokenExpired, env.Error.Code)
	assert.Equal(t, "recovery token expired", env.Error.Message)
}

func TestError_PlainErrorIsHidden(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	Error(rec, req, fmt.Errorf("pq: password authentication failed"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, pkgerrors.ErrCodeInternal, env.Error.Code)
	assert.NotContains(t, rec.Body.String(), "password authentication")
}

func TestError_StorageHidesCause(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	Error(rec, req, pkgerrors.Storage(fmt.Errorf("dial tcp 10.0.0.1:5432"), "failed to load devices"))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.1")
}

func TestDecode(t *testing.T) {
	var body struct {
		Email string `json:"email"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@example.com"}`))
	require.NoError(t, Decode(req, &body))
	assert.Equal(t, "a@example.com", body.Email)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":`))
	err := Decode(req, &body)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeValidation))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(``))
	err = Decode(req, &body)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeValidation))
}
