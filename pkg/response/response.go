// Package response renders the {success, data, error} JSON envelope shared by
// every HTTP handler.
package response

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	pkgerrors "github.com/tendant/simple-recovery/pkg/errors"
)

// Envelope is the body of every API response
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
}

// ErrorBody describes a failed call
type ErrorBody struct {
	Code    pkgerrors.ErrorCode    `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// OK renders a 200 success envelope
func OK(w http.ResponseWriter, r *http.Request, data interface{}) {
	JSON(w, r, http.StatusOK, Envelope{Success: true, Data: data})
}

// Created renders a 201 success envelope
func Created(w http.ResponseWriter, r *http.Request, data interface{}) {
	JSON(w, r, http.StatusCreated, Envelope{Success: true, Data: data})
}

// Message renders a 200 success envelope with a message
func Message(w http.ResponseWriter, r *http.Request, message string, data interface{}) {
	JSON(w, r, http.StatusOK, Envelope{Success: true, Message: message, Data: data})
}

// Failure renders an unsuccessful but well-formed outcome, such as wrong
// security answers, with the given status.
func Failure(w http.ResponseWriter, r *http.Request, status int, message string, data interface{}) {
	JSON(w, r, status, Envelope{Success: false, Message: message, Data: data})
}

// Error renders err. Coded errors keep their code and message, anything else
// becomes an INTERNAL_ERROR without leaking the cause.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	var e *pkgerrors.Error
	if !errors.As(err, &e) {
		slog.Error("unhandled error", "path", r.URL.Path, "err", err)
		e = pkgerrors.Internal("internal error")
	}

	status := e.HTTPStatusCode()
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "path", r.URL.Path, "code", e.Code, "err", e)
	}

	JSON(w, r, status, Envelope{
		Success: false,
		Error: &ErrorBody{
			Code:    e.Code,
			Message: e.Message,
			Details: e.Details,
		},
	})
}

// JSON renders v with the given status
func JSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

// Decode reads a JSON request body into v. Malformed bodies are validation errors.
func Decode(r *http.Request, v interface{}) error {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		if errors.Is(err, io.EOF) {
			return pkgerrors.Validation("body", "request body is empty")
		}
		return pkgerrors.Wrap(err, pkgerrors.ErrCodeValidation, "invalid request body")
	}
	return nil
}
