package users

import (
	"encoding/json"
	"net/http"

	"github.com/bissquit/leavedesk/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Handler handles HTTP requests for the user directory.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new user directory handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: httputil.NewValidator(),
	}
}

// RegisterRoutes registers the directory routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/users", h.ListUsers)
	r.Post("/users", h.CreateUser)
	r.Post("/users/manager-assignment", h.AssignManager)
	r.Put("/users/{id}", h.UpdateUser)
	r.Get("/users/{id}/team", h.GetTeam)
}

// CreateUserRequest represents the request body for creating a user.
type CreateUserRequest struct {
	Email     string  `json:"email" validate:"required,email"`
	FirstName *string `json:"first_name" validate:"required"`
	LastName  *string `json:"last_name" validate:"required"`
	Role      *string `json:"role"`
}

// UpdateUserRequest represents the request body for updating a user.
type UpdateUserRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Role      *string `json:"role"`
}

// AssignManagerRequest represents the request body for a manager assignment.
type AssignManagerRequest struct {
	ManagerID string `json:"manager_id" validate:"required"`
	MemberID  string `json:"member_id" validate:"required"`
}

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrUserNotFound, Status: http.StatusNotFound, Message: "User not found"},
	{Error: ErrManagerOrMemberNotFound, Status: http.StatusNotFound, Message: "Manager or member not found"},
	{Error: ErrNotManager, Status: http.StatusForbidden, Message: "User is not a manager"},
	{Error: ErrInvalidRole, Status: http.StatusBadRequest, Message: "Invalid role. Must be one of: MEMBER, MANAGER, ADMIN"},
	{Error: ErrEmailExists, Status: http.StatusBadRequest, Message: "Email already registered"},
	{Error: ErrManagerRoleRequired, Status: http.StatusBadRequest, Message: "User does not have MANAGER role"},
	{Error: ErrRelationExists, Status: http.StatusBadRequest, Message: "Relationship already exists"},
	{Error: ErrCreateFailed, Status: http.StatusInternalServerError, Message: "Failed to create user"},
	{Error: ErrUpdateFailed, Status: http.StatusInternalServerError, Message: "Failed to update user"},
	{Error: ErrRelationFailed, Status: http.StatusInternalServerError, Message: "Failed to create relationship"},
}

// ListUsers handles GET /users.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListUsers(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.JSON(w, http.StatusOK, list)
}

// CreateUser handles POST /users.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.service.CreateUser(r.Context(), CreateUserInput{
		Email:     req.Email,
		FirstName: *req.FirstName,
		LastName:  *req.LastName,
		Role:      req.Role,
	})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.JSON(w, http.StatusOK, user)
}

// UpdateUser handles PUT /users/{id}.
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req UpdateUserRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.service.UpdateUser(r.Context(), chi.URLParam(r, "id"), UpdateUserInput(req))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.JSON(w, http.StatusOK, user)
}

// GetTeam handles GET /users/{id}/team.
func (h *Handler) GetTeam(w http.ResponseWriter, r *http.Request) {
	team, err := h.service.GetTeam(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.JSON(w, http.StatusOK, team)
}

// AssignManager handles POST /users/manager-assignment.
func (h *Handler) AssignManager(w http.ResponseWriter, r *http.Request) {
	var req AssignManagerRequest
	if !h.decode(w, r, &req) {
		return
	}

	rel, err := h.service.AssignManager(r.Context(), AssignManagerInput(req))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.JSON(w, http.StatusOK, rel)
}

// decode reads a JSON body into dst and validates it, writing a 422 on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httputil.ValidationError(w, err)
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		httputil.ValidationError(w, err)
		return false
	}
	return true
}
