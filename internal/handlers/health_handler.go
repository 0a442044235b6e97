package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// HealthResponse reports service health
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Storage string `json:"storage"`
	Cache   bool   `json:"scoreCache"`
}

// HealthHandler handles health checks
type HealthHandler struct {
	check   func(ctx context.Context) error
	version string
	storage string
	cache   bool
	timeout time.Duration
}

// NewHealthHandler creates a new health handler. check may be nil when the
// storage has nothing to probe.
func NewHealthHandler(check func(ctx context.Context) error, version, storage string, cache bool) *HealthHandler {
	return &HealthHandler{
		check:   check,
		version: version,
		storage: storage,
		cache:   cache,
		timeout: 2 * time.Second,
	}
}

// Health reports whether the service and its storage are reachable
// @Summary Health check
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "healthy",
		Version: h.version,
		Storage: h.storage,
		Cache:   h.cache,
	}

	if h.check != nil {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()
		if err := h.check(ctx); err != nil {
			slog.Error("Health check failed", "error", err)
			resp.Status = "unhealthy"
			respondWithJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}

	respondWithJSON(w, http.StatusOK, resp)
}
