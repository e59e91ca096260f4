// Package middleware provides HTTP middlewares for authentication, role
// checks, request logging and metrics.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/FeedbackTracker/internal/models"
	"github.com/atinyakov/FeedbackTracker/internal/service"
)

type ctxKey string

const userKey ctxKey = "user"

// Authenticator verifies a username and password.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (models.User, error)
}

// WriteError writes {"detail": detail} with the given status.
func WriteError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(models.ErrorResponse{Detail: detail})
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Basic")
	WriteError(w, http.StatusUnauthorized, "Invalid credentials")
}

// BasicAuth is a middleware that requires HTTP Basic credentials on every
// request.
//
// Missing or wrong credentials get 401 with a WWW-Authenticate challenge.
// The response does not say whether the username or the password was wrong.
// On success the user is stored in the request context, see UserFromContext.
func BasicAuth(auth Authenticator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, password, ok := r.BasicAuth()
			if !ok {
				unauthorized(w)
				return
			}
			user, err := auth.Authenticate(r.Context(), username, password)
			if errors.Is(err, service.ErrInvalidCredentials) {
				unauthorized(w)
				return
			}
			if err != nil {
				logger.Error("authentication failed", zap.String("username", username), zap.Error(err))
				WriteError(w, http.StatusInternalServerError, "Internal server error")
				return
			}
			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects users without role with 403 and detail.
func RequireRole(role models.Role, detail string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				unauthorized(w)
				return
			}
			if user.Role != role {
				WriteError(w, http.StatusForbidden, detail)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserFromContext returns the authenticated user stored by BasicAuth.
func UserFromContext(ctx context.Context) (models.User, bool) {
	u, ok := ctx.Value(userKey).(models.User)
	return u, ok
}
