package handler

import "net/http"

// HealthResponse is the payload of GET /health.
type HealthResponse struct {
	Status    string `json:"status" example:"ok"`
	Timestamp string `json:"timestamp"`
	Endpoint  string `json:"endpoint" example:"/usage-tracker"`
	Version   string `json:"version" example:"1.2.0"`
}

// HealthCheck handles GET /health
// @Summary Service health
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *UsageHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	SendJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: nowTimestamp(),
		Endpoint:  h.basePath,
		Version:   Version,
	})
}
