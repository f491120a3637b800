package book

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

type createBookRequest struct {
	Title       string `json:"title" validate:"required,max=255"`
	Author      string `json:"author" validate:"required,max=255"`
	ISBN        string `json:"isbn" validate:"required,isbn"`
	Category    string `json:"category" validate:"max=100"`
	TotalCopies int    `json:"totalCopies" validate:"gte=1,lte=10000"`
}

type updateBookRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=255"`
	Author      *string `json:"author" validate:"omitempty,min=1,max=255"`
	Category    *string `json:"category" validate:"omitempty,max=100"`
	Status      *string `json:"status" validate:"omitempty,oneof=available reserved maintenance"`
	TotalCopies *int    `json:"totalCopies" validate:"omitempty,gte=1,lte=10000"`
}

// List handles GET /books
// @Summary List books
// @Tags books
// @Param category query string false "Category"
// @Param status query string false "available, borrowed, reserved or maintenance"
// @Param q query string false "Title, author or ISBN fragment"
// @Success 200 {object} httpx.SuccessResponse
// @Router /books [get]
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	params := Query{
		Category: query.Get("category"),
		Status:   Status(query.Get("status")),
		Q:        strings.TrimSpace(query.Get("q")),
	}
	if params.Status != "" && !params.Status.Valid() {
		httpx.ValidationFailed(w, r, "Invalid status filter", []httpx.ErrorDetail{
			{Field: "status", Message: "status must be one of: available borrowed reserved maintenance"},
		})
		return
	}

	page, pageSize := httpx.Page(r)
	params.Limit = pageSize
	params.Offset = (page - 1) * pageSize

	books, total, err := h.service.List(r.Context(), params)
	if err != nil {
		httpx.InternalError(w, r, "book.list", err)
		return
	}
	httpx.JSONSuccess(w, r, books, httpx.PageMeta(page, pageSize, total))
}

// Get handles GET /books/{id}
// @Summary Get a book
// @Tags books
// @Success 200 {object} httpx.SuccessResponse
// @Failure 404 {object} httpx.ErrorResponse
// @Router /books/{id} [get]
func (h *HTTPHandler) Get(w http.ResponseWriter, r *http.Request) {
	b, err := h.service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, "book.get", err)
		return
	}
	httpx.JSONSuccess(w, r, b, nil)
}

// Create handles POST /books
// @Summary Add a title to the catalog
// @Tags books
// @Security BearerAuth
// @Success 201 {object} httpx.SuccessResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Failure 409 {object} httpx.ErrorResponse
// @Router /books [post]
func (h *HTTPHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createBookRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ValidationFailed(w, r, err.Error(), nil)
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Author = strings.TrimSpace(req.Author)
	if details := httpx.ValidateStruct(req); len(details) > 0 {
		httpx.ValidationFailed(w, r, "Validation failed", details)
		return
	}

	b, err := h.service.Create(r.Context(), NewBook{
		Title:       req.Title,
		Author:      req.Author,
		ISBN:        httpx.NormalizeISBN(req.ISBN),
		Category:    strings.TrimSpace(req.Category),
		TotalCopies: req.TotalCopies,
	})
	if err != nil {
		h.writeError(w, r, "book.create", err)
		return
	}
	httpx.JSONSuccessCreated(w, r, b)
}

// Update handles PATCH /books/{id}
// @Summary Edit a catalog entry
// @Tags books
// @Security BearerAuth
// @Success 200 {object} httpx.SuccessResponse
// @Failure 404 {object} httpx.ErrorResponse
// @Router /books/{id} [patch]
func (h *HTTPHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateBookRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ValidationFailed(w, r, err.Error(), nil)
		return
	}
	if details := httpx.ValidateStruct(req); len(details) > 0 {
		httpx.ValidationFailed(w, r, "Validation failed", details)
		return
	}

	u := Update{
		Title:       req.Title,
		Author:      req.Author,
		Category:    req.Category,
		TotalCopies: req.TotalCopies,
	}
	if req.Status != nil {
		st := Status(*req.Status)
		u.Status = &st
	}

	b, err := h.service.Update(r.Context(), r.PathValue("id"), u)
	if err != nil {
		h.writeError(w, r, "book.update", err)
		return
	}
	httpx.JSONSuccess(w, r, b, nil)
}

// Delete handles DELETE /books/{id}
// @Summary Remove a title
// @Tags books
// @Security BearerAuth
// @Success 204
// @Router /books/{id} [delete]
func (h *HTTPHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.writeError(w, r, "book.delete", err)
		return
	}
	httpx.JSONSuccessNoContent(w)
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.JSONError(w, r, http.StatusNotFound, "NOT_FOUND", "Book not found", nil)
	case errors.Is(err, ErrDuplicateISBN):
		httpx.JSONError(w, r, http.StatusConflict, "DUPLICATE_ISBN", err.Error(), nil)
	case errors.Is(err, ErrConflict):
		httpx.JSONError(w, r, http.StatusConflict, "CONFLICT", "Book is being modified, try again", nil)
	default:
		httpx.InternalError(w, r, op, err)
	}
}
