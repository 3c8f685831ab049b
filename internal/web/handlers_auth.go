package web

import (
	"context"
	"net/http"
	"time"

	"github.com/Joshypeace/PharmaStore/internal/logging"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := s.decodeJSON(w, r, maxJSONBody, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	token, user, err := s.deps.Accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeBody(w, r, http.StatusOK, successResponse{
		Status: "success",
		Token:  token,
		Data:   map[string]any{"user": user},
	})
}

// handleLogout exists for client symmetry; tokens are dropped client-side.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	writeBody(w, r, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Logged out successfully",
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.deps.Accounts.CurrentUser(r.Context(), actorFrom(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"user": user})
}

func (s *Server) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Reports.DashboardStats(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, stats)
}

const healthTimeout = 2 * time.Second

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	status, code := "ok", http.StatusOK
	if err := s.deps.Reports.Ping(ctx); err != nil {
		logging.FromContext(r.Context()).Warn("health check failed", "error", err)
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	writeBody(w, r, code, map[string]any{
		"status":  status,
		"imports": s.deps.Imports.Status(),
	})
}
