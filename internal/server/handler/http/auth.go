// Package http provides the HTTP handlers and router of the feedback server.
package http

import (
	"encoding/json"
	"net/http"

	"github.com/atinyakov/FeedbackTracker/internal/middleware"
	"github.com/atinyakov/FeedbackTracker/internal/models"
)

// AuthHandler handles login requests.
type AuthHandler struct{}

// Login handles POST /login. Credentials were already checked by
// middleware.BasicAuth, so it only echoes the authenticated user.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, models.LoginResponse{User: user, Message: "Login successful"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
