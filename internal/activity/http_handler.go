package activity

import (
	"net/http"
	"strconv"

	"libraryapi/internal/httpx"
)

type HTTPHandler struct {
	recorder *Recorder
}

func NewHTTPHandler(recorder *Recorder) *HTTPHandler {
	return &HTTPHandler{recorder: recorder}
}

// List handles GET /activity
// @Summary Browse the audit log, newest first
// @Tags activity
// @Security Bearer
// @Param userId query string false "Actor"
// @Param cursor query string false "Opaque cursor from the previous page"
// @Param limit query int false "Page size (max 200)"
// @Success 200 {object} httpx.SuccessResponse
// @Router /activity [get]
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cursor, err := DecodeCursor(q.Get("cursor"))
	if err != nil {
		httpx.ValidationFailed(w, r, "Invalid cursor", []httpx.ErrorDetail{{Field: "cursor", Message: "cursor is malformed"}})
		return
	}
	limit, _ := strconv.Atoi(q.Get("limit"))

	entries, next, err := h.recorder.List(r.Context(), Filter{UserID: q.Get("userId"), After: cursor, Limit: limit})
	if err != nil {
		httpx.InternalError(w, r, "activity.list", err)
		return
	}
	meta := map[string]any{"count": len(entries)}
	if next != "" {
		meta["next_cursor"] = next
	}
	httpx.JSONSuccess(w, r, entries, meta)
}
