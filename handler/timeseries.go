package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"directus-usage-tracker/analytics"
	"directus-usage-tracker/cache"
	"directus-usage-tracker/model"
)

// GetTimeseries handles GET /activity/timeseries
// @Summary Activity trend buckets
// @Tags Activity
// @Produce json
// @Param start_date query string false "Window start (RFC 3339)"
// @Param end_date query string false "Window end (RFC 3339)"
// @Param granularity query string false "Bucket width" Enums(hour, day, week) default(day)
// @Success 200 {object} model.TimeseriesResponse
// @Failure 400 {object} ErrorResponse "Invalid granularity or date range"
// @Failure 500 {object} ErrorResponse
// @Router /activity/timeseries [get]
func (h *UsageHandler) GetTimeseries(w http.ResponseWriter, r *http.Request) {
	start, end, apiErr := parseDateRange(r)
	if apiErr != nil {
		sendAPIError(w, apiErr)
		return
	}

	granularity := r.URL.Query().Get("granularity")
	if granularity == "" {
		granularity = analytics.GranularityDay
	}
	if !analytics.ValidGranularity(granularity) {
		SendError(w, http.StatusBadRequest, CodeInvalidGranularity,
			"granularity must be one of: hour, day, week",
			map[string]string{"provided": granularity})
		return
	}

	key := fmt.Sprintf("%s:%s|%s|%s", cache.NamespaceTimeseries, granularity,
		start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))
	if payload, ok := h.cache.Get(r.Context(), key); ok {
		var resp model.TimeseriesResponse
		if err := json.Unmarshal(payload, &resp); err == nil {
			resp.Cached = true
			SendJSON(w, http.StatusOK, resp)
			return
		}
	}

	queryStart := time.Now()
	points, err := h.agg.Timeseries(r.Context(), start, end, granularity)
	if err != nil {
		sendDatabaseError(w, err)
		return
	}

	resp := model.TimeseriesResponse{
		Timeseries:  points,
		Granularity: granularity,
		DateRange: model.DateRange{
			Start: start.UTC().Format(time.RFC3339),
			End:   end.UTC().Format(time.RFC3339),
		},
		QueryTimeMs: time.Since(queryStart).Milliseconds(),
		Cached:      false,
		Timestamp:   nowTimestamp(),
	}
	if payload, err := json.Marshal(resp); err == nil {
		h.cache.Set(r.Context(), key, payload, 0)
	}
	SendJSON(w, http.StatusOK, resp)
}
