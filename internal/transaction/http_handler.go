package transaction

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"libraryapi/internal/httpx"
	"libraryapi/internal/user"
)

const (
	actionReturn  = "return"
	actionRenew   = "renew"
	actionPayFine = "payFine"
)

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

type borrowRequest struct {
	BookID  string `json:"bookId" validate:"required,max=64"`
	UserID  string `json:"userId" validate:"max=64"`
	DueDate string `json:"dueDate"`
}

type actionRequest struct {
	Action     string `json:"action" validate:"required"`
	ReturnDate string `json:"returnDate"`
	RenewDays  *int   `json:"renewDays" validate:"omitempty,gte=1,lte=365"`
	FinePaid   *bool  `json:"finePaid"`
}

// Borrow handles POST /transactions
// @Summary Borrow a copy of a book
// @Tags transactions
// @Security BearerAuth
// @Success 201 {object} httpx.SuccessResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Failure 404 {object} httpx.ErrorResponse
// @Router /transactions [post]
func (h *HTTPHandler) Borrow(w http.ResponseWriter, r *http.Request) {
	var req borrowRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ValidationFailed(w, r, err.Error(), nil)
		return
	}
	req.BookID = strings.TrimSpace(req.BookID)
	req.UserID = strings.TrimSpace(req.UserID)

	caller, role := httpx.UserIDFrom(r), httpx.RoleFrom(r)
	if req.UserID == "" && !user.IsStaff(role) {
		req.UserID = caller
	}
	if details := httpx.ValidateStruct(req); len(details) > 0 {
		httpx.ValidationFailed(w, r, "Validation failed", details)
		return
	}
	if req.UserID == "" {
		httpx.ValidationFailed(w, r, "Validation failed", []httpx.ErrorDetail{
			{Field: "userId", Message: "userId is required"},
		})
		return
	}
	if req.UserID != caller && !user.IsStaff(role) {
		httpx.JSONError(w, r, http.StatusForbidden, "FORBIDDEN", "Students may only borrow for themselves", nil)
		return
	}

	in := BorrowInput{BookID: req.BookID, UserID: req.UserID, Actor: caller}
	if req.DueDate != "" {
		due, err := httpx.ParseDate(req.DueDate)
		if err != nil {
			httpx.ValidationFailed(w, r, "Validation failed", []httpx.ErrorDetail{
				{Field: "dueDate", Message: "dueDate must be YYYY-MM-DD or RFC 3339"},
			})
			return
		}
		in.DueDate = &due
	}

	if err := h.service.CheckEligibility(r.Context(), req.UserID); err != nil {
		h.writeError(w, r, "transaction.eligibility", err)
		return
	}
	t, err := h.service.Borrow(r.Context(), in)
	if err != nil {
		h.writeError(w, r, "transaction.borrow", err)
		return
	}
	httpx.JSONSuccessCreated(w, r, t)
}

// List handles GET /transactions
// @Summary List transactions with statuses as of now
// @Tags transactions
// @Security BearerAuth
// @Param userId query string false "Owner; required unless all=true for staff"
// @Param status query string false "active, overdue or returned"
// @Success 200 {object} httpx.SuccessResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Router /transactions [get]
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	caller, role := httpx.UserIDFrom(r), httpx.RoleFrom(r)
	f := Filter{
		UserID: strings.TrimSpace(q.Get("userId")),
		BookID: strings.TrimSpace(q.Get("bookId")),
		Status: Status(q.Get("status")),
	}

	switch {
	case !user.IsStaff(role):
		if f.UserID == "" {
			f.UserID = caller
		}
		if f.UserID != caller {
			httpx.JSONError(w, r, http.StatusForbidden, "FORBIDDEN", "Students may only list their own transactions", nil)
			return
		}
	case f.UserID == "" && q.Get("all") != "true":
		httpx.ValidationFailed(w, r, "Validation failed", []httpx.ErrorDetail{
			{Field: "userId", Message: "userId is required"},
		})
		return
	}
	if f.Status != "" && !f.Status.Valid() {
		httpx.ValidationFailed(w, r, "Invalid status filter", []httpx.ErrorDetail{
			{Field: "status", Message: "status must be one of: active overdue returned"},
		})
		return
	}

	page, pageSize := httpx.Page(r)
	f.Limit = pageSize
	f.Offset = (page - 1) * pageSize

	txs, total, err := h.service.List(r.Context(), f)
	if err != nil {
		h.writeError(w, r, "transaction.list", err)
		return
	}
	httpx.JSONSuccess(w, r, txs, httpx.PageMeta(page, pageSize, total))
}

// Get handles GET /transactions/{id}
// @Summary Get a transaction
// @Tags transactions
// @Security BearerAuth
// @Success 200 {object} httpx.SuccessResponse
// @Failure 404 {object} httpx.ErrorResponse
// @Router /transactions/{id} [get]
func (h *HTTPHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, ok := h.load(w, r)
	if !ok {
		return
	}
	httpx.JSONSuccess(w, r, t, nil)
}

// Update handles PATCH /transactions/{id}
// @Summary Return, renew or settle the fine of a loan
// @Tags transactions
// @Security BearerAuth
// @Success 200 {object} httpx.SuccessResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Failure 404 {object} httpx.ErrorResponse
// @Router /transactions/{id} [patch]
func (h *HTTPHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ValidationFailed(w, r, err.Error(), nil)
		return
	}
	if details := httpx.ValidateStruct(req); len(details) > 0 {
		httpx.ValidationFailed(w, r, "Validation failed", details)
		return
	}
	if req.Action != actionReturn && req.Action != actionRenew && req.Action != actionPayFine {
		httpx.JSONError(w, r, http.StatusBadRequest, "INVALID_ACTION",
			"action must be one of: return renew payFine", nil)
		return
	}
	if req.Action == actionPayFine && !user.IsStaff(httpx.RoleFrom(r)) {
		httpx.JSONError(w, r, http.StatusForbidden, "FORBIDDEN", "Only staff can settle fines", nil)
		return
	}

	current, ok := h.load(w, r)
	if !ok {
		return
	}
	actor := httpx.UserIDFrom(r)

	var (
		t   Transaction
		err error
	)
	switch req.Action {
	case actionReturn:
		var rd *time.Time
		if req.ReturnDate != "" {
			parsed, perr := httpx.ParseDate(req.ReturnDate)
			if perr != nil {
				httpx.ValidationFailed(w, r, "Validation failed", []httpx.ErrorDetail{
					{Field: "returnDate", Message: "returnDate must be YYYY-MM-DD or RFC 3339"},
				})
				return
			}
			rd = &parsed
		}
		t, err = h.service.Return(r.Context(), current.ID, rd, actor)
	case actionRenew:
		days := 0
		if req.RenewDays != nil {
			days = *req.RenewDays
		}
		t, err = h.service.Renew(r.Context(), current.ID, days, actor)
	case actionPayFine:
		paid := true
		if req.FinePaid != nil {
			paid = *req.FinePaid
		}
		t, err = h.service.PayFine(r.Context(), current.ID, paid, actor)
	}
	if err != nil {
		h.writeError(w, r, "transaction."+req.Action, err)
		return
	}
	httpx.JSONSuccess(w, r, t, nil)
}

// Reconcile handles POST /transactions/reconcile
// @Summary Persist overdue status for every open loan past due
// @Tags transactions
// @Security BearerAuth
// @Success 200 {object} httpx.SuccessResponse
// @Router /transactions/reconcile [post]
func (h *HTTPHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.Reconcile(r.Context(), httpx.UserIDFrom(r))
	if err != nil {
		h.writeError(w, r, "transaction.reconcile", err)
		return
	}
	httpx.JSONSuccess(w, r, map[string]int64{"updated": n}, nil)
}

// load fetches the path transaction and checks the caller may see it.
// Students get 404 for other users' loans.
func (h *HTTPHandler) load(w http.ResponseWriter, r *http.Request) (Transaction, bool) {
	t, err := h.service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, "transaction.get", err)
		return Transaction{}, false
	}
	if !user.IsStaff(httpx.RoleFrom(r)) && t.UserID != httpx.UserIDFrom(r) {
		h.writeError(w, r, "transaction.get", ErrNotFound)
		return Transaction{}, false
	}
	return t, true
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		httpx.ValidationFailed(w, r, "Validation failed", []httpx.ErrorDetail{
			{Field: verr.Field, Message: verr.Message},
		})
	case errors.Is(err, ErrNotFound):
		httpx.JSONError(w, r, http.StatusNotFound, "NOT_FOUND", "Transaction not found", nil)
	case errors.Is(err, ErrBookNotFound):
		httpx.JSONError(w, r, http.StatusNotFound, "NOT_FOUND", "Book not found", nil)
	case errors.Is(err, ErrUserNotFound):
		httpx.JSONError(w, r, http.StatusNotFound, "NOT_FOUND", "User not found", nil)
	case errors.Is(err, ErrNoCopiesAvailable):
		httpx.JSONError(w, r, http.StatusBadRequest, "INVENTORY_EXHAUSTED", "No copies available", nil)
	case errors.Is(err, ErrBookNotLendable):
		httpx.JSONError(w, r, http.StatusBadRequest, "BOOK_NOT_LENDABLE", "Book is under maintenance or reserved", nil)
	case errors.Is(err, ErrInvalidAction):
		httpx.JSONError(w, r, http.StatusBadRequest, "INVALID_ACTION", "Action not allowed for this transaction", nil)
	case errors.Is(err, ErrLoanLimit):
		httpx.JSONError(w, r, http.StatusBadRequest, "LOAN_LIMIT_REACHED", "Active loan limit reached", nil)
	case errors.Is(err, ErrHasOverdue):
		httpx.JSONError(w, r, http.StatusBadRequest, "OVERDUE_LOANS", "Return overdue books before borrowing", nil)
	case errors.Is(err, ErrConflict):
		httpx.JSONError(w, r, http.StatusConflict, "CONFLICT", "Transaction is being modified, try again", nil)
	case errors.Is(err, context.DeadlineExceeded):
		httpx.JSONError(w, r, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Database did not respond in time", nil)
	default:
		httpx.InternalError(w, r, op, err)
	}
}
