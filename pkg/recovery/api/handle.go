package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tendant/simple-recovery/pkg/client"
	"github.com/tendant/simple-recovery/pkg/errors"
	"github.com/tendant/simple-recovery/pkg/recovery"
	"github.com/tendant/simple-recovery/pkg/recoverymethod"
	"github.com/tendant/simple-recovery/pkg/response"
)

// RecoveryHandler serves the public recovery flow. None of its routes
// require authentication; the token is the credential.
type RecoveryHandler struct {
	recoveryService *recovery.RecoveryService
}

func NewRecoveryHandler(recoveryService *recovery.RecoveryService) *RecoveryHandler {
	return &RecoveryHandler{recoveryService: recoveryService}
}

type InitiateRequest struct {
	Email string `json:"email"`
}

type InitiateResponse struct {
	Message string `json:"message"`
	Token   string `json:"token,omitempty"`
}

type TokenRequest struct {
	Token string `json:"token"`
}

type VerifyTokenResponse struct {
	UserID           uuid.UUID                 `json:"userId"`
	RecoveryMethodID uuid.UUID                 `json:"recoveryMethodId"`
	MethodType       recoverymethod.MethodType `json:"methodType"`
}

type VerifyAnswersRequest struct {
	Token   string            `json:"token"`
	Answers []recovery.Answer `json:"answers"`
}

type VerifyAnswersResponse struct {
	Completed         bool `json:"completed"`
	AttemptsRemaining int  `json:"attemptsRemaining"`
}

type ResetRequest struct {
	Token         string `json:"token"`
	NewCredential string `json:"newCredential"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// Initiate handles POST /initiate
func (h *RecoveryHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	var req InitiateRequest
	if err := response.Decode(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	result, err := h.recoveryService.Initiate(r.Context(), req.Email, client.FromRequest(r))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, r, InitiateResponse{Message: result.Message, Token: result.Token})
}

// VerifyToken handles POST /verify-token
func (h *RecoveryHandler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := response.Decode(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	result, err := h.recoveryService.VerifyToken(r.Context(), req.Token, client.FromRequest(r))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, r, VerifyTokenResponse{
		UserID:           result.UserID,
		RecoveryMethodID: result.RecoveryMethodID,
		MethodType:       result.MethodType,
	})
}

// Questions handles GET /questions?token=
func (h *RecoveryHandler) Questions(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		response.Error(w, r, errors.Validation("token", "is required"))
		return
	}

	challenges, err := h.recoveryService.GetChallengeQuestionsForToken(r.Context(), token)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, r, challenges)
}

// VerifyAnswers handles POST /verify-answers. Wrong answers that leave
// attempts are a well-formed failure, not an error.
func (h *RecoveryHandler) VerifyAnswers(w http.ResponseWriter, r *http.Request) {
	var req VerifyAnswersRequest
	if err := response.Decode(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	result, err := h.recoveryService.VerifyAnswers(r.Context(), req.Token, req.Answers, client.FromRequest(r))
	if err != nil {
		response.Error(w, r, err)
		return
	}

	resp := VerifyAnswersResponse{Completed: result.Completed, AttemptsRemaining: result.AttemptsRemaining}
	if !result.Completed {
		response.Failure(w, r, http.StatusUnauthorized, "incorrect answers", resp)
		return
	}
	response.OK(w, r, resp)
}

// Reset handles POST /reset
func (h *RecoveryHandler) Reset(w http.ResponseWriter, r *http.Request) {
	var req ResetRequest
	if err := response.Decode(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	if err := h.recoveryService.ResetCredential(r.Context(), req.Token, req.NewCredential, client.FromRequest(r)); err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, r, MessageResponse{Message: "Your credential has been reset"})
}

// Handler mounts the recovery routes. Callers add rate limiting and request
// validation around it.
func Handler(h *RecoveryHandler) http.Handler {
	r := chi.NewRouter()

	r.Post("/initiate", h.Initiate)
	r.Post("/verify-token", h.VerifyToken)
	r.Get("/questions", h.Questions)
	r.Post("/verify-answers", h.VerifyAnswers)
	r.Post("/reset", h.Reset)

	return r
}
