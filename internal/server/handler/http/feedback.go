package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/atinyakov/FeedbackTracker/internal/middleware"
	"github.com/atinyakov/FeedbackTracker/internal/models"
	"github.com/atinyakov/FeedbackTracker/internal/service"
)

// FeedbackService defines the operations required by the FeedbackHandler.
// Rule violations are reported as *service.Error.
type FeedbackService interface {
	Team(ctx context.Context, caller models.User) ([]models.User, error)
	List(ctx context.Context, caller models.User) ([]models.Feedback, error)
	Create(ctx context.Context, caller models.User, in models.FeedbackInput) (models.Feedback, error)
	Update(ctx context.Context, caller models.User, id int64, in models.FeedbackInput) (models.Feedback, error)
	Acknowledge(ctx context.Context, caller models.User, id int64) error
	Analytics(ctx context.Context, caller models.User) (models.AnalyticsSnapshot, error)
}

// FeedbackHandler handles the team, feedback and analytics endpoints.
type FeedbackHandler struct {
	FeedbackService FeedbackService
	Logger          *zap.Logger
}

// MessageResponse is the body of responses that carry no resource.
type MessageResponse struct {
	Message string `json:"message"`
}

func (h *FeedbackHandler) caller(w http.ResponseWriter, r *http.Request) (models.User, bool) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Invalid credentials")
	}
	return u, ok
}

func (h *FeedbackHandler) fail(w http.ResponseWriter, op string, err error) {
	var se *service.Error
	if errors.As(err, &se) {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(se, service.ErrForbidden):
			status = http.StatusForbidden
		case errors.Is(se, service.ErrNotFound):
			status = http.StatusNotFound
		case errors.Is(se, service.ErrInvalidInput):
			status = http.StatusUnprocessableEntity
		}
		middleware.WriteError(w, status, se.Detail)
		return
	}
	h.Logger.Error(op+" failed", zap.Error(err))
	middleware.WriteError(w, http.StatusInternalServerError, "Internal server error")
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		middleware.WriteError(w, http.StatusUnprocessableEntity, "invalid feedback id")
		return 0, false
	}
	return id, true
}

func decodeInput(w http.ResponseWriter, r *http.Request) (models.FeedbackInput, bool) {
	var in models.FeedbackInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		middleware.WriteError(w, http.StatusUnprocessableEntity, "invalid request body")
		return in, false
	}
	return in, true
}

// Team handles GET /team.
func (h *FeedbackHandler) Team(w http.ResponseWriter, r *http.Request) {
	u, ok := h.caller(w, r)
	if !ok {
		return
	}
	team, err := h.FeedbackService.Team(r.Context(), u)
	if err != nil {
		h.fail(w, "team", err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}

// List handles GET /feedback.
func (h *FeedbackHandler) List(w http.ResponseWriter, r *http.Request) {
	u, ok := h.caller(w, r)
	if !ok {
		return
	}
	items, err := h.FeedbackService.List(r.Context(), u)
	if err != nil {
		h.fail(w, "list feedback", err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// Create handles POST /feedback and responds 201 with the stored record.
func (h *FeedbackHandler) Create(w http.ResponseWriter, r *http.Request) {
	u, ok := h.caller(w, r)
	if !ok {
		return
	}
	in, ok := decodeInput(w, r)
	if !ok {
		return
	}
	created, err := h.FeedbackService.Create(r.Context(), u, in)
	if err != nil {
		h.fail(w, "create feedback", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// Update handles PUT /feedback/{id}.
func (h *FeedbackHandler) Update(w http.ResponseWriter, r *http.Request) {
	u, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	in, ok := decodeInput(w, r)
	if !ok {
		return
	}
	updated, err := h.FeedbackService.Update(r.Context(), u, id, in)
	if err != nil {
		h.fail(w, "update feedback", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Acknowledge handles POST /feedback/{id}/acknowledge.
func (h *FeedbackHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	u, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.FeedbackService.Acknowledge(r.Context(), u, id); err != nil {
		h.fail(w, "acknowledge feedback", err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Feedback acknowledged"})
}

// Analytics handles GET /analytics.
func (h *FeedbackHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	u, ok := h.caller(w, r)
	if !ok {
		return
	}
	snap, err := h.FeedbackService.Analytics(r.Context(), u)
	if err != nil {
		h.fail(w, "analytics", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
