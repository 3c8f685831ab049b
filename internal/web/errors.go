package web

// errors.go turns handler errors into responses.
//
// Every error goes through respondError, which:
//  1. picks the status from the error kind (statusFor)
//  2. maps it to a user-facing message via core.MapError
//  3. logs the technical error with the request id
//  4. renders the JSON envelope, or an HTML fragment for HTMX requests

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/Joshypeace/PharmaStore/internal/auth"
	"github.com/Joshypeace/PharmaStore/internal/core"
	"github.com/Joshypeace/PharmaStore/internal/logging"
	"github.com/Joshypeace/PharmaStore/internal/web/middleware"
	"github.com/Joshypeace/PharmaStore/internal/web/templates"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Status  string `json:"status"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
}

// successResponse wraps handler results.
type successResponse struct {
	Status string `json:"status"`
	Token  string `json:"token,omitempty"`
	Data   any    `json:"data"`
}

// statusFor maps an error kind to an HTTP status.
func statusFor(err error) int {
	switch {
	case core.IsValidation(err):
		return http.StatusBadRequest
	case core.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, middleware.ErrMissingToken):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrTooManyImports), errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, errBodyTooLarge), errors.Is(err, errFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes the mapped response. Server errors never
// expose the technical message.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := core.MapError(err)

	log := logging.FromContext(r.Context()).With(
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"code", msg.Code,
		"error", err.Error(),
	)
	if status >= http.StatusInternalServerError {
		log.Error("request error")
	} else {
		log.Debug("request rejected")
	}

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		if err := templates.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w); err != nil {
			log.Error("render error alert", "render_error", err)
		}
		return
	}

	resp := ErrorResponse{
		Status:  "error",
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}
	var ve *core.ValidationError
	if errors.As(err, &ve) {
		resp.Field = ve.Field
	}
	writeBody(w, r, status, resp)
}

// writeJSON writes data inside the success envelope.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeBody(w, r, status, successResponse{Status: "success", Data: data})
}

func writeBody(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("json encode error", "error", err)
	}
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true" && !strings.Contains(r.Header.Get("Accept"), "application/json")
}
