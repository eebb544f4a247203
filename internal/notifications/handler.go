// Package notifications declares the notification HTTP contract. Requests
// are validated but nothing is delivered yet.
package notifications

import (
	"encoding/json"
	"net/http"

	"github.com/bissquit/leavedesk/internal/domain"
	"github.com/bissquit/leavedesk/internal/pkg/ctxlog"
	"github.com/bissquit/leavedesk/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

const msgNotImplemented = "Notifications are not implemented yet"

// Handler handles HTTP requests for the notification service.
type Handler struct {
	validator *validator.Validate
}

// NewHandler creates a new notification handler.
func NewHandler() *Handler {
	return &Handler{validator: httputil.NewValidator()}
}

// RegisterRoutes registers the notification routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/notifications", h.Send)
	r.Get("/notifications/{user_id}", h.List)
}

// SendRequest represents the request body for sending a notification.
type SendRequest struct {
	UserID  string `json:"user_id" validate:"required"`
	Title   string `json:"title" validate:"required"`
	Message string `json:"message" validate:"required"`
	Type    string `json:"type" validate:"required"`
}

// ToDomain converts the request to a domain model.
func (r *SendRequest) ToDomain() domain.Notification {
	return domain.Notification(*r)
}

// Send handles POST /notifications.
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.ValidationError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	n := req.ToDomain()
	ctxlog.FromContext(r.Context()).Info("notification received", "user_id", n.UserID, "type", n.Type)
	httputil.Error(w, http.StatusNotImplemented, msgNotImplemented)
}

// List handles GET /notifications/{user_id}.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if err := h.validator.Var(chi.URLParam(r, "user_id"), "required"); err != nil {
		httputil.ValidationError(w, err)
		return
	}
	httputil.Error(w, http.StatusNotImplemented, msgNotImplemented)
}
