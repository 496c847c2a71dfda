package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-recovery/pkg/client"
	"github.com/tendant/simple-recovery/pkg/identity"
	"github.com/tendant/simple-recovery/pkg/recovery"
	"github.com/tendant/simple-recovery/pkg/recoverymethod"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func do(t *testing.T, h http.Handler, method, target string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) Firefox/121.0")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

type setup struct {
	handler http.Handler
	users   *identity.InMemStore
	userID  uuid.UUID
}

func newSetup(t *testing.T) setup {
	t.Helper()
	users := identity.NewInMemStore()
	userID, err := users.CreateUser("u1@example.com", "original-secret")
	require.NoError(t, err)

	methods := recoverymethod.NewRecoveryMethodService(recoverymethod.NewInMemRecoveryMethodRepository())
	_, err = methods.AddSecurityQuestions(context.Background(), userID, []recoverymethod.QuestionInput{
		{Question: "City?", Answer: "paris"},
		{Question: "Pet?", Answer: "rex"},
	}, client.RequestContext{})
	require.NoError(t, err)

	svc := recovery.NewRecoveryService(recovery.NewInMemRecoveryRequestRepository(), methods, users, recovery.WithDebugTokens(true))
	return setup{handler: Handler(NewRecoveryHandler(svc)), users: users, userID: userID}
}

func TestRecoveryRoutes(t *testing.T) {
	s := newSetup(t)

	rec, env := do(t, s.handler, http.MethodPost, "/initiate", InitiateRequest{Email: "u1@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	var initiated InitiateResponse
	require.NoError(t, json.Unmarshal(env.Data, &initiated))
	assert.Equal(t, recovery.GenericMessage, initiated.Message)
	require.NotEmpty(t, initiated.Token)
	token := initiated.Token

	rec, env = do(t, s.handler, http.MethodPost, "/verify-token", TokenRequest{Token: token})
	require.Equal(t, http.StatusOK, rec.Code)
	var verified VerifyTokenResponse
	require.NoError(t, json.Unmarshal(env.Data, &verified))
	assert.Equal(t, s.userID, verified.UserID)
	assert.Equal(t, recoverymethod.MethodSecurityQuestions, verified.MethodType)

	rec, env = do(t, s.handler, http.MethodGet, "/questions?token="+url.QueryEscape(token), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, string(env.Data), "answer")
	var questions []recoverymethod.Challenge
	require.NoError(t, json.Unmarshal(env.Data, &questions))
	require.Len(t, questions, 2)

	rec, env = do(t, s.handler, http.MethodPost, "/verify-answers", VerifyAnswersRequest{
		Token:   token,
		Answers: []recovery.Answer{{QuestionID: questions[0].ID, Answer: "rome"}, {QuestionID: questions[1].ID, Answer: "rex"}},
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, env.Success)
	var failed VerifyAnswersResponse
	require.NoError(t, json.Unmarshal(env.Data, &failed))
	assert.Equal(t, VerifyAnswersResponse{Completed: false, AttemptsRemaining: 2}, failed)

	rec, env = do(t, s.handler, http.MethodPost, "/verify-answers", VerifyAnswersRequest{
		Token:   token,
		Answers: []recovery.Answer{{QuestionID: questions[0].ID, Answer: "Paris"}, {QuestionID: questions[1].ID, Answer: "Rex"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var passed VerifyAnswersResponse
	require.NoError(t, json.Unmarshal(env.Data, &passed))
	assert.True(t, passed.Completed)

	rec, env = do(t, s.handler, http.MethodPost, "/reset", ResetRequest{Token: token, NewCredential: "brand-new-secret"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.True(t, s.users.VerifyCredential(s.userID, "brand-new-secret"))

	rec, env = do(t, s.handler, http.MethodPost, "/reset", ResetRequest{Token: token, NewCredential: "brand-new-secret"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INVALID_SESSION", env.Error.Code)
}

func TestInitiate_SameResponseForUnknownAccount(t *testing.T) {
	s := newSetup(t)

	rec, env := do(t, s.handler, http.MethodPost, "/initiate", InitiateRequest{Email: "nobody@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	var initiated InitiateResponse
	require.NoError(t, json.Unmarshal(env.Data, &initiated))
	assert.Equal(t, recovery.GenericMessage, initiated.Message)
	assert.Empty(t, initiated.Token)
}

func TestRecoveryRoutes_Errors(t *testing.T) {
	s := newSetup(t)

	tests := []struct {
		name   string
		method string
		target string
		body   interface{}
		status int
		code   string
	}{
		{"initiate without body", http.MethodPost, "/initiate", nil, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"initiate bad email", http.MethodPost, "/initiate", InitiateRequest{Email: "nope"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"verify unknown token", http.MethodPost, "/verify-token", TokenRequest{Token: "unknown"}, http.StatusUnauthorized, "INVALID_TOKEN"},
		{"questions without token", http.MethodGet, "/questions", nil, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"questions unknown token", http.MethodGet, "/questions?token=unknown", nil, http.StatusUnauthorized, "INVALID_TOKEN"},
		{"answers empty", http.MethodPost, "/verify-answers", VerifyAnswersRequest{Token: "unknown"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"reset short credential", http.MethodPost, "/reset", ResetRequest{Token: "unknown", NewCredential: "x"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"reset unknown token", http.MethodPost, "/reset", ResetRequest{Token: "unknown", NewCredential: "long-enough-secret"}, http.StatusUnauthorized, "INVALID_TOKEN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, s.handler, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}
