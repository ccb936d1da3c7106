package handler

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"tickerhub/internal/application/service"
	"tickerhub/internal/ratelimit"
)

type PriceHandler struct {
	snapshots *service.SnapshotService
	limiter   *ratelimit.Limiter
	logger    *slog.Logger
}

func NewPriceHandler(snapshots *service.SnapshotService, limiter *ratelimit.Limiter, logger *slog.Logger) *PriceHandler {
	return &PriceHandler{
		snapshots: snapshots,
		limiter:   limiter,
		logger:    logger,
	}
}

// GetPrice serves GET /price. With ?symbol= it returns that record, or 404
// when the symbol has not been observed yet. Without it, every tracked
// record. Rate limited per client IP.
func (h *PriceHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	if h.limiter != nil && !h.limiter.Allow(ip) {
		h.logger.Debug("price request rate limited", "ip", ip)
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
		return
	}

	symbol := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("symbol")))
	if symbol == "" {
		writeJSON(w, http.StatusOK, map[string]interface{}{"data": h.snapshots.GetAllPrices()})
		return
	}

	rec, ok := h.snapshots.GetPrice(symbol)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no data for symbol " + symbol})
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// GetLatest serves GET /latest, the bulk snapshot. Not rate limited.
func (h *PriceHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": h.snapshots.GetAllPrices()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
