package statistics

import (
	"errors"
	"net/http"
	"strconv"

	"libraryapi/internal/httpx"
)

type HTTPHandler struct {
	aggregator *Aggregator
}

func NewHTTPHandler(aggregator *Aggregator) *HTTPHandler {
	return &HTTPHandler{aggregator: aggregator}
}

type reportResponse struct {
	Success bool           `json:"success"`
	Data    Report         `json:"data"`
	Cached  bool           `json:"cached"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// Get handles GET /statistics
// @Summary Library rollups over the last period days
// @Tags statistics
// @Security BearerAuth
// @Param period query int false "Days, 1 to 365 (default 30)"
// @Success 200 {object} reportResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Failure 503 {object} httpx.ErrorResponse
// @Router /statistics [get]
func (h *HTTPHandler) Get(w http.ResponseWriter, r *http.Request) {
	period := DefaultPeriod
	if raw := r.URL.Query().Get("period"); raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil || !ValidPeriod(p) {
			httpx.ValidationFailed(w, r, "Invalid period", []httpx.ErrorDetail{
				{Field: "period", Message: ErrInvalidPeriod.Error()},
			})
			return
		}
		period = p
	}

	report, cached, err := h.aggregator.Report(r.Context(), period)
	switch {
	case errors.Is(err, ErrInvalidPeriod):
		httpx.ValidationFailed(w, r, "Invalid period", []httpx.ErrorDetail{
			{Field: "period", Message: err.Error()},
		})
		return
	case errors.Is(err, ErrUnavailable):
		httpx.JSONError(w, r, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Statistics are temporarily unavailable", nil)
		return
	case err != nil:
		httpx.InternalError(w, r, "statistics.report", err)
		return
	}

	var meta map[string]any
	if id := httpx.RequestIDFrom(r); id != "" {
		meta = map[string]any{"request_id": id}
	}
	httpx.WriteJSON(w, http.StatusOK, reportResponse{Success: true, Data: report, Cached: cached, Meta: meta})
}
