package notification

import (
	"errors"
	"net/http"
	"strings"

	"libraryapi/internal/httpx"
)

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

type systemAlertReq struct {
	UserID string `json:"userId" validate:"omitempty,max=64"`
	All    bool   `json:"all"`
	Title  string `json:"title" validate:"required,max=200"`
	Body   string `json:"body" validate:"required,max=2000"`
}

// ListMine handles GET /me/notifications
// @Summary List the caller's notifications
// @Tags notifications
// @Security Bearer
// @Param unread query bool false "Only unread"
// @Success 200 {object} httpx.SuccessResponse
// @Router /me/notifications [get]
func (h *HTTPHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	page, pageSize := httpx.Page(r)
	unread := r.URL.Query().Get("unread") == "true"

	items, total, err := h.service.List(r.Context(), httpx.UserIDFrom(r), unread, pageSize, (page-1)*pageSize)
	if err != nil {
		httpx.InternalError(w, r, "notification.list", err)
		return
	}
	httpx.JSONSuccess(w, r, items, httpx.PageMeta(page, pageSize, total))
}

// MarkRead handles PATCH /me/notifications/{id}/read
// @Summary Mark a notification as read
// @Tags notifications
// @Security Bearer
// @Success 204
// @Failure 404 {object} httpx.ErrorResponse
// @Router /me/notifications/{id}/read [patch]
func (h *HTTPHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	err := h.service.MarkRead(r.Context(), httpx.UserIDFrom(r), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.JSONError(w, r, http.StatusNotFound, "NOT_FOUND", "Notification not found", nil)
			return
		}
		httpx.InternalError(w, r, "notification.mark_read", err)
		return
	}
	httpx.JSONSuccessNoContent(w)
}

// SendSystemAlert handles POST /notifications
// @Summary Send a system alert to one user or everyone
// @Tags notifications
// @Security Bearer
// @Success 201 {object} httpx.SuccessResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Router /notifications [post]
func (h *HTTPHandler) SendSystemAlert(w http.ResponseWriter, r *http.Request) {
	var req systemAlertReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ValidationFailed(w, r, err.Error(), nil)
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Body = strings.TrimSpace(req.Body)
	if details := httpx.ValidateStruct(req); len(details) > 0 {
		httpx.ValidationFailed(w, r, "Invalid input", details)
		return
	}
	if req.All == (req.UserID != "") {
		httpx.ValidationFailed(w, r, "Exactly one of userId or all is required", []httpx.ErrorDetail{
			{Field: "userId", Message: "set userId or all=true, not both"},
		})
		return
	}

	if req.All {
		sent, err := h.service.Broadcast(r.Context(), req.Title, req.Body)
		if err != nil {
			httpx.InternalError(w, r, "notification.broadcast", err)
			return
		}
		httpx.JSONSuccessCreated(w, r, map[string]any{"sent": sent})
		return
	}

	if err := h.service.Send(r.Context(), SystemAlert{UserID: req.UserID, Title: req.Title, Body: req.Body}); err != nil {
		httpx.InternalError(w, r, "notification.send", err)
		return
	}
	httpx.JSONSuccessCreated(w, r, map[string]any{"sent": 1})
}
