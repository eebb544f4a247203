// Package leave declares the leave management HTTP contract. Requests are
// validated but no leave workflow is implemented yet.
package leave

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/bissquit/leavedesk/internal/domain"
	"github.com/bissquit/leavedesk/internal/pkg/ctxlog"
	"github.com/bissquit/leavedesk/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// DateLayout is the wire format of leave dates.
const DateLayout = time.DateOnly

const msgNotImplemented = "Leave management is not implemented yet"

// Handler handles HTTP requests for the leave service.
type Handler struct {
	validator *validator.Validate
}

// NewHandler creates a new leave handler.
func NewHandler() *Handler {
	return &Handler{validator: httputil.NewValidator()}
}

// RegisterRoutes registers the leave routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/leave/requests", h.CreateRequest)
	r.Get("/leave/balance/{user_id}", h.GetBalance)
}

// CreateLeaveRequest represents the request body for a leave request.
type CreateLeaveRequest struct {
	UserID    string  `json:"user_id" validate:"required"`
	LeaveType string  `json:"leave_type" validate:"required,oneof=VACATION SICK"`
	StartDate string  `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string  `json:"end_date" validate:"required,datetime=2006-01-02"`
	Reason    *string `json:"reason"`
}

// ToDomain converts the request to a pending leave request.
func (r *CreateLeaveRequest) ToDomain() *domain.LeaveRequest {
	return &domain.LeaveRequest{
		UserID:    r.UserID,
		LeaveType: domain.LeaveType(r.LeaveType),
		StartDate: r.StartDate,
		EndDate:   r.EndDate,
		Status:    domain.LeaveStatusPending,
		Reason:    r.Reason,
	}
}

// CreateRequest handles POST /leave/requests.
func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var req CreateLeaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.ValidationError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	// datetime validation already guarantees both parse.
	start, _ := time.Parse(DateLayout, req.StartDate)
	end, _ := time.Parse(DateLayout, req.EndDate)
	if end.Before(start) {
		httputil.JSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []httputil.FieldError{{Field: "end_date", Message: "gtefield"}},
		})
		return
	}

	leaveReq := req.ToDomain()
	ctxlog.FromContext(r.Context()).Info("leave request received",
		"user_id", leaveReq.UserID,
		"leave_type", leaveReq.LeaveType,
		"status", leaveReq.Status,
	)
	httputil.Error(w, http.StatusNotImplemented, msgNotImplemented)
}

// GetBalance handles GET /leave/balance/{user_id}.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	if err := h.validator.Var(chi.URLParam(r, "user_id"), "required"); err != nil {
		httputil.ValidationError(w, err)
		return
	}
	httputil.Error(w, http.StatusNotImplemented, msgNotImplemented)
}
