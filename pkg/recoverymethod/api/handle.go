package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jinzhu/copier"

	"github.com/tendant/simple-recovery/pkg/client"
	"github.com/tendant/simple-recovery/pkg/errors"
	"github.com/tendant/simple-recovery/pkg/recoverymethod"
	"github.com/tendant/simple-recovery/pkg/response"
)

// RecoveryMethodHandler serves the authenticated user's recovery methods
type RecoveryMethodHandler struct {
	methodService *recoverymethod.RecoveryMethodService
}

func NewRecoveryMethodHandler(methodService *recoverymethod.RecoveryMethodService) *RecoveryMethodHandler {
	return &RecoveryMethodHandler{methodService: methodService}
}

type AddSecurityQuestionsRequest struct {
	Questions []recoverymethod.QuestionInput `json:"questions"`
}

type AddEmailRequest struct {
	Email string `json:"email"`
}

type AddPhoneRequest struct {
	Phone string `json:"phone"`
}

// MethodResponse is a recovery method without secrets
type MethodResponse struct {
	ID         uuid.UUID                 `json:"id"`
	MethodType recoverymethod.MethodType `json:"methodType"`
	IsVerified bool                      `json:"isVerified"`
	IsPrimary  bool                      `json:"isPrimary"`
	Contact    string                    `json:"contact,omitempty"`
	Questions  []string                  `json:"questions,omitempty"`
	CreatedAt  time.Time                 `json:"createdAt"`
	UpdatedAt  time.Time                 `json:"updatedAt"`
}

func toMethodResponse(m recoverymethod.RecoveryMethod) MethodResponse {
	var resp MethodResponse
	if err := copier.Copy(&resp, &m); err != nil {
		slog.Warn("Failed to copy recovery method response", "method_id", m.ID, "error", err)
	}
	return resp
}

// ListMethods handles GET /
func (h *RecoveryMethodHandler) ListMethods(w http.ResponseWriter, r *http.Request) {
	userID, err := client.RequireUserID(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	methods, err := h.methodService.ListMethods(r.Context(), userID)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	resp := make([]MethodResponse, 0, len(methods))
	if err := copier.Copy(&resp, &methods); err != nil {
		response.Error(w, r, errors.Wrap(err, errors.ErrCodeInternal, "failed to build response"))
		return
	}
	response.OK(w, r, resp)
}

// AddSecurityQuestions handles POST /security-questions
func (h *RecoveryMethodHandler) AddSecurityQuestions(w http.ResponseWriter, r *http.Request) {
	userID, err := client.RequireUserID(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	var req AddSecurityQuestionsRequest
	if err := response.Decode(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	m, err := h.methodService.AddSecurityQuestions(r.Context(), userID, req.Questions, client.FromRequest(r))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	resp := toMethodResponse(m)
	for _, q := range req.Questions {
		resp.Questions = append(resp.Questions, strings.TrimSpace(q.Question))
	}
	response.Created(w, r, resp)
}

// AddEmail handles POST /email
func (h *RecoveryMethodHandler) AddEmail(w http.ResponseWriter, r *http.Request) {
	userID, err := client.RequireUserID(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	var req AddEmailRequest
	if err := response.Decode(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	m, err := h.methodService.AddRecoveryEmail(r.Context(), userID, req.Email, client.FromRequest(r))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	h.renderContactMethod(w, r, m)
}

// AddPhone handles POST /phone
func (h *RecoveryMethodHandler) AddPhone(w http.ResponseWriter, r *http.Request) {
	userID, err := client.RequireUserID(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	var req AddPhoneRequest
	if err := response.Decode(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	m, err := h.methodService.AddRecoveryPhone(r.Context(), userID, req.Phone, client.FromRequest(r))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	h.renderContactMethod(w, r, m)
}

func (h *RecoveryMethodHandler) renderContactMethod(w http.ResponseWriter, r *http.Request, m recoverymethod.RecoveryMethod) {
	resp := toMethodResponse(m)
	contact, err := h.methodService.GetContact(r.Context(), m.ID)
	if err != nil {
		slog.Warn("Failed to load saved contact", "method_id", m.ID, "error", err)
	}
	resp.Contact = contact
	response.Created(w, r, resp)
}

// DeleteMethod handles DELETE /{id}
func (h *RecoveryMethodHandler) DeleteMethod(w http.ResponseWriter, r *http.Request) {
	userID, methodID, ok := h.ownerAndMethod(w, r)
	if !ok {
		return
	}

	if err := h.methodService.DeleteMethod(r.Context(), methodID, userID, client.FromRequest(r)); err != nil {
		response.Error(w, r, err)
		return
	}
	response.Message(w, r, "Recovery method removed", nil)
}

// SetPrimary handles POST /{id}/primary
func (h *RecoveryMethodHandler) SetPrimary(w http.ResponseWriter, r *http.Request) {
	userID, methodID, ok := h.ownerAndMethod(w, r)
	if !ok {
		return
	}

	if err := h.methodService.SetPrimary(r.Context(), methodID, userID, client.FromRequest(r)); err != nil {
		response.Error(w, r, err)
		return
	}
	response.Message(w, r, "Primary recovery method updated", nil)
}

func (h *RecoveryMethodHandler) ownerAndMethod(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	userID, err := client.RequireUserID(r)
	if err != nil {
		response.Error(w, r, err)
		return uuid.Nil, uuid.Nil, false
	}
	methodID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, r, errors.Validation("id", "must be a UUID"))
		return uuid.Nil, uuid.Nil, false
	}
	return userID, methodID, true
}

// Handler returns the recovery method routes. Authentication middleware must run first.
func Handler(h *RecoveryMethodHandler) http.Handler {
	r := chi.NewRouter()

	r.Get("/", h.ListMethods)
	r.Post("/security-questions", h.AddSecurityQuestions)
	r.Post("/email", h.AddEmail)
	r.Post("/phone", h.AddPhone)
	r.Delete("/{id}", h.DeleteMethod)
	r.Post("/{id}/primary", h.SetPrimary)

	return r
}
