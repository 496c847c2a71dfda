package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tendant/simple-recovery/pkg/audit"
	"github.com/tendant/simple-recovery/pkg/client"
	"github.com/tendant/simple-recovery/pkg/errors"
	"github.com/tendant/simple-recovery/pkg/response"
)

// AuditHandler serves the authenticated user's own audit trail
type AuditHandler struct {
	auditService *audit.AuditService
}

func NewAuditHandler(auditService *audit.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

// ListEvents handles GET /events?page=&pageSize=&eventType=&from=&to=
func (h *AuditHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	userID, err := client.RequireUserID(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	query, err := parseQuery(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	query.UserID = userID

	page, err := h.auditService.ListUserEvents(r.Context(), query)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, r, page)
}

func parseQuery(r *http.Request) (audit.Query, error) {
	values := r.URL.Query()
	var q audit.Query

	if v := values.Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return q, errors.Validation("page", "must be a positive integer")
		}
		q.Page = page
	}
	if v := values.Get("pageSize"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil || size < 1 {
			return q, errors.Validation("pageSize", "must be a positive integer")
		}
		q.PageSize = size
	}
	for _, v := range values["eventType"] {
		q.EventTypes = append(q.EventTypes, audit.EventType(v))
	}
	if v := values.Get("from"); v != "" {
		from, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return q, errors.Validation("from", "must be an RFC3339 timestamp")
		}
		q.From = &from
	}
	if v := values.Get("to"); v != "" {
		to, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return q, errors.Validation("to", "must be an RFC3339 timestamp")
		}
		q.To = &to
	}
	return q, nil
}

// Handler returns the audit routes. Authentication middleware must run first.
func Handler(h *AuditHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/events", h.ListEvents)
	return r
}
