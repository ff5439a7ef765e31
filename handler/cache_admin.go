package handler

import (
	"net/http"

	"directus-usage-tracker/cache"
)

// CacheClearResponse is the payload of the DELETE cache routes.
type CacheClearResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func (h *UsageHandler) clearPatterns(w http.ResponseWriter, r *http.Request, message string, patterns ...string) {
	for _, pattern := range patterns {
		if err := h.cache.ClearPattern(r.Context(), pattern); err != nil {
			SendError(w, http.StatusInternalServerError, CodeCacheError,
				"Failed to clear cache", err.Error())
			return
		}
	}
	SendJSON(w, http.StatusOK, CacheClearResponse{
		Success:   true,
		Message:   message,
		Timestamp: nowTimestamp(),
	})
}

// ClearCache handles DELETE /cache
// @Summary Invalidate every analytics cache entry
// @Tags Cache
// @Security AdminKey
// @Produce json
// @Success 200 {object} CacheClearResponse
// @Failure 500 {object} ErrorResponse "Cache backend failure"
// @Router /cache [delete]
func (h *UsageHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	h.clearPatterns(w, r, "analytics cache cleared", cache.NamespaceAll+":*")
}

// ClearActivityCache handles DELETE /activity/cache
// @Summary Invalidate cached activity statistics and timeseries
// @Tags Cache
// @Security AdminKey
// @Produce json
// @Success 200 {object} CacheClearResponse
// @Failure 500 {object} ErrorResponse
// @Router /activity/cache [delete]
func (h *UsageHandler) ClearActivityCache(w http.ResponseWriter, r *http.Request) {
	h.clearPatterns(w, r, "activity cache cleared",
		cache.NamespaceActivity+":*", cache.NamespaceTimeseries+":*")
}

// ClearCollectionsCache handles DELETE /collections/cache
// @Summary Invalidate cached collection usage
// @Tags Cache
// @Security AdminKey
// @Produce json
// @Success 200 {object} CacheClearResponse
// @Failure 500 {object} ErrorResponse
// @Router /collections/cache [delete]
func (h *UsageHandler) ClearCollectionsCache(w http.ResponseWriter, r *http.Request) {
	h.clearPatterns(w, r, "collections cache cleared", cache.NamespaceCollections+":*")
}
