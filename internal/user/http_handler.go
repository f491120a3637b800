package user

import (
	"errors"
	"net/http"
	"strings"

	"libraryapi/internal/httpx"
	"libraryapi/internal/platform/crypto"
)

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

type registerReq struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Password string `json:"password" validate:"required"`
}

type createUserReq struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"required,role"`
}

// RegisterUser handles POST /users/register
// @Summary Register a student account
// @Tags users
// @Accept json
// @Produce json
// @Param request body registerReq true "Registration request"
// @Success 201 {object} httpx.SuccessResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Failure 409 {object} httpx.ErrorResponse
// @Router /users/register [post]
func (h *HTTPHandler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ValidationFailed(w, r, err.Error(), nil)
		return
	}
	h.register(w, r, NewUser{Email: req.Email, Name: req.Name, Password: req.Password, Role: RoleStudent}, req)
}

// CreateUser handles POST /users
// @Summary Create an account with any role
// @Tags users
// @Security Bearer
// @Param request body createUserReq true "User"
// @Success 201 {object} httpx.SuccessResponse
// @Failure 403 {object} httpx.ErrorResponse
// @Router /users [post]
func (h *HTTPHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ValidationFailed(w, r, err.Error(), nil)
		return
	}
	h.register(w, r, NewUser{Email: req.Email, Name: req.Name, Password: req.Password, Role: req.Role}, req)
}

func (h *HTTPHandler) register(w http.ResponseWriter, r *http.Request, in NewUser, req any) {
	if details := httpx.ValidateStruct(req); len(details) > 0 {
		httpx.ValidationFailed(w, r, "Invalid input", details)
		return
	}
	if err := crypto.ValidatePasswordStrength(in.Password); err != nil {
		httpx.ValidationFailed(w, r, "Invalid input", []httpx.ErrorDetail{{Field: "password", Message: err.Error()}})
		return
	}

	u, err := h.service.Register(r.Context(), in)
	if err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			httpx.JSONError(w, r, http.StatusConflict, "ALREADY_EXISTS", "Email already exists", nil)
			return
		}
		httpx.InternalError(w, r, "user.register", err)
		return
	}
	httpx.JSONSuccessCreated(w, r, u)
}

// GetUser handles GET /users/{id}
// @Summary Get a user
// @Tags users
// @Security Bearer
// @Success 200 {object} httpx.SuccessResponse
// @Failure 404 {object} httpx.ErrorResponse
// @Router /users/{id} [get]
func (h *HTTPHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id != httpx.UserIDFrom(r) && !IsStaff(httpx.RoleFrom(r)) {
		httpx.JSONError(w, r, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions", nil)
		return
	}

	u, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.JSONError(w, r, http.StatusNotFound, "NOT_FOUND", "User not found", nil)
			return
		}
		httpx.InternalError(w, r, "user.get", err)
		return
	}
	httpx.JSONSuccess(w, r, u, nil)
}

// ListUsers handles GET /users
// @Summary List users
// @Tags users
// @Security Bearer
// @Param role query string false "ADMIN, LIBRARIAN or STUDENT"
// @Success 200 {object} httpx.SuccessResponse
// @Router /users [get]
func (h *HTTPHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	role := strings.ToUpper(r.URL.Query().Get("role"))
	if role != "" && role != RoleAdmin && role != RoleLibrarian && role != RoleStudent {
		httpx.ValidationFailed(w, r, "Invalid role filter", []httpx.ErrorDetail{{Field: "role", Message: "role must be ADMIN, LIBRARIAN or STUDENT"}})
		return
	}
	page, pageSize := httpx.Page(r)

	users, total, err := h.service.List(r.Context(), role, pageSize, (page-1)*pageSize)
	if err != nil {
		httpx.InternalError(w, r, "user.list", err)
		return
	}
	httpx.JSONSuccess(w, r, users, httpx.PageMeta(page, pageSize, total))
}

// GetCurrentUser handles GET /me
// @Summary Get current user
// @Tags users
// @Security Bearer
// @Success 200 {object} httpx.SuccessResponse
// @Failure 401 {object} httpx.ErrorResponse
// @Router /me [get]
func (h *HTTPHandler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFrom(r)
	if userID == "" {
		httpx.JSONError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return
	}

	u, err := h.service.GetByID(r.Context(), userID)
	if err != nil {
		httpx.JSONError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return
	}
	httpx.JSONSuccess(w, r, u, nil)
}
