package auth

import (
	"errors"
	"net/http"

	"github.com/bissquit/leavedesk/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Handler handles HTTP requests for the auth service.
type Handler struct {
	service   *Service
	validator *validator.Validate
	limiter   func(http.Handler) http.Handler
}

// NewHandler creates a new auth handler. limiter, when not nil, wraps the
// token endpoint.
func NewHandler(service *Service, limiter func(http.Handler) http.Handler) *Handler {
	return &Handler{
		service:   service,
		validator: httputil.NewValidator(),
		limiter:   limiter,
	}
}

// RegisterRoutes registers the token and current-user routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.limiter != nil {
			r.Use(h.limiter)
		}
		r.Post("/token", h.Token)
	})

	r.Group(func(r chi.Router) {
		r.Use(httputil.AuthMiddleware(h.service))
		r.Get("/users/me", h.Me)
	})
}

// TokenRequest is the OAuth2 password grant form.
type TokenRequest struct {
	Username  string `form:"username" validate:"required"`
	Password  string `form:"password" validate:"required"`
	GrantType string `form:"grant_type" validate:"omitempty,eq=password"`
}

// Token handles POST /token.
func (h *Handler) Token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httputil.ValidationError(w, err)
		return
	}
	req := TokenRequest{
		Username:  r.PostForm.Get("username"),
		Password:  r.PostForm.Get("password"),
		GrantType: r.PostForm.Get("grant_type"),
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	resp, err := h.service.SignIn(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			httputil.Unauthorized(w, "Incorrect email or password")
			return
		}
		httputil.HandleError(r.Context(), w, err, nil)
		return
	}
	httputil.JSON(w, http.StatusOK, resp)
}

// Me handles GET /users/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	identity := httputil.GetIdentity(r.Context())
	if identity == nil {
		httputil.Unauthorized(w, httputil.MsgNotAuthenticated)
		return
	}
	httputil.JSON(w, http.StatusOK, identity)
}
