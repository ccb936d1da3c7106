package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"tickerhub/internal/application/service"
	"tickerhub/internal/domain/model"
	"tickerhub/internal/domain/port"
	"tickerhub/internal/hub"
)

type HealthHandler struct {
	feed      port.FeedPort
	hub       *hub.Hub
	snapshots *service.SnapshotService
	cache     port.CachePort
	logger    *slog.Logger
}

// NewHealthHandler reports liveness. cache may be nil when the mirror is
// disabled.
func NewHealthHandler(feed port.FeedPort, h *hub.Hub, snapshots *service.SnapshotService, cache port.CachePort, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		feed:      feed,
		hub:       h,
		snapshots: snapshots,
		cache:     cache,
		logger:    logger,
	}
}

func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	overallStatus := "healthy"

	feedState := h.feed.State()
	if feedState != model.FeedConnected {
		overallStatus = "degraded"
	}

	checks := map[string]string{
		"upstream": feedState.String(),
	}

	if h.cache != nil {
		redisStatus := "healthy"
		if err := h.cache.Ping(r.Context()); err != nil {
			redisStatus = "unhealthy"
			overallStatus = "degraded"
			h.logger.Warn("redis health check failed", "error", err)
		}
		checks["redis"] = redisStatus
	}

	response := map[string]interface{}{
		"status":      overallStatus,
		"feed":        h.feed.Name(),
		"checks":      checks,
		"subscribers": h.hub.Count(),
		"symbols":     h.snapshots.SymbolCount(),
	}

	statusCode := http.StatusOK
	if overallStatus == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(response)
}
