package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"directus-usage-tracker/cache"
	"directus-usage-tracker/model"
	"directus-usage-tracker/utils"

	"github.com/gorilla/mux"
)

// GetActivity handles GET /activity
// @Summary Aggregated API activity
// @Description Totals, unique users/IPs and by-collection/by-action breakdowns over a date window
// @Tags Activity
// @Produce json
// @Param start_date query string false "Window start (RFC 3339), default 7 days ago"
// @Param end_date query string false "Window end (RFC 3339), default now"
// @Param collections query string false "Comma-separated collection filter"
// @Param actions query string false "Comma-separated action filter"
// @Param ip_addresses query string false "Comma-separated IP filter"
// @Param limit query int false "Top-N breakdown truncation (1-100)" default(10)
// @Success 200 {object} model.ActivityStatistics
// @Failure 400 {object} ErrorResponse "Invalid query parameter or date range"
// @Failure 500 {object} ErrorResponse "Database error"
// @Router /activity [get]
func (h *UsageHandler) GetActivity(w http.ResponseWriter, r *http.Request) {
	filter, apiErr := parseActivityFilter(r, defaultActivityLimit)
	if apiErr != nil {
		sendAPIError(w, apiErr)
		return
	}

	key := activityCacheKey(cache.NamespaceActivity+":stats", filter)
	if payload, ok := h.cache.Get(r.Context(), key); ok {
		var resp model.ActivityStatistics
		if err := json.Unmarshal(payload, &resp); err == nil {
			resp.Cached = true
			SendJSON(w, http.StatusOK, resp)
			return
		}
	}

	queryStart := time.Now()
	stats, err := h.agg.ActivityStats(r.Context(), filter)
	if err != nil {
		sendDatabaseError(w, err)
		return
	}
	stats.QueryTimeMs = time.Since(queryStart).Milliseconds()
	stats.Cached = false
	stats.Timestamp = nowTimestamp()

	if payload, err := json.Marshal(stats); err == nil {
		h.cache.Set(r.Context(), key, payload, 0)
	}
	SendJSON(w, http.StatusOK, stats)
}

// GetActivityIPs handles GET /activity/ips
// @Summary Top client IPs
// @Tags Activity
// @Produce json
// @Param start_date query string false "Window start (RFC 3339)"
// @Param end_date query string false "Window end (RFC 3339)"
// @Param collections query string false "Comma-separated collection filter"
// @Param actions query string false "Comma-separated action filter"
// @Param limit query int false "Top-N truncation (1-100)" default(10)
// @Success 200 {object} model.IPsResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /activity/ips [get]
func (h *UsageHandler) GetActivityIPs(w http.ResponseWriter, r *http.Request) {
	filter, apiErr := parseActivityFilter(r, defaultIPsLimit)
	if apiErr != nil {
		sendAPIError(w, apiErr)
		return
	}

	key := activityCacheKey(cache.NamespaceActivity+":ips", filter)
	if payload, ok := h.cache.Get(r.Context(), key); ok {
		var resp model.IPsResponse
		if err := json.Unmarshal(payload, &resp); err == nil {
			resp.Cached = true
			SendJSON(w, http.StatusOK, resp)
			return
		}
	}

	queryStart := time.Now()
	ips, err := h.agg.TopIPs(r.Context(), filter)
	if err != nil {
		sendDatabaseError(w, err)
		return
	}

	resp := model.IPsResponse{
		IPs:         ips,
		QueryTimeMs: time.Since(queryStart).Milliseconds(),
		Cached:      false,
		Timestamp:   nowTimestamp(),
	}
	if payload, err := json.Marshal(resp); err == nil {
		h.cache.Set(r.Context(), key, payload, 0)
	}
	SendJSON(w, http.StatusOK, resp)
}

// GetActivityByIP handles GET /activity/ips/{ip}
// @Summary Activity statistics for one IP
// @Tags Activity
// @Produce json
// @Param ip path string true "Client IP address"
// @Param start_date query string false "Window start (RFC 3339)"
// @Param end_date query string false "Window end (RFC 3339)"
// @Param collections query string false "Comma-separated collection filter"
// @Param actions query string false "Comma-separated action filter"
// @Param limit query int false "Top-N truncation (1-100)" default(10)
// @Success 200 {object} model.ActivityStatistics
// @Failure 400 {object} ErrorResponse "Malformed IP"
// @Failure 500 {object} ErrorResponse
// @Router /activity/ips/{ip} [get]
func (h *UsageHandler) GetActivityByIP(w http.ResponseWriter, r *http.Request) {
	ip := mux.Vars(r)["ip"]
	if err := utils.ValidateIP(ip); err != nil {
		SendError(w, http.StatusBadRequest, CodeInvalidIP, err.Error(), nil)
		return
	}

	filter, apiErr := parseActivityFilter(r, defaultActivityLimit)
	if apiErr != nil {
		sendAPIError(w, apiErr)
		return
	}
	// The path IP wins over any ip_addresses query filter.
	filter.IPs = []string{ip}

	key := activityCacheKey(cache.NamespaceActivity+":ip", filter)
	if payload, ok := h.cache.Get(r.Context(), key); ok {
		var resp model.ActivityStatistics
		if err := json.Unmarshal(payload, &resp); err == nil {
			resp.Cached = true
			SendJSON(w, http.StatusOK, resp)
			return
		}
	}

	queryStart := time.Now()
	stats, err := h.agg.ActivityStats(r.Context(), filter)
	if err != nil {
		sendDatabaseError(w, err)
		return
	}
	stats.QueryTimeMs = time.Since(queryStart).Milliseconds()
	stats.Cached = false
	stats.Timestamp = nowTimestamp()

	if payload, err := json.Marshal(stats); err == nil {
		h.cache.Set(r.Context(), key, payload, 0)
	}
	SendJSON(w, http.StatusOK, stats)
}
