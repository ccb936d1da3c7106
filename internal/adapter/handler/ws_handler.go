package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"

	"tickerhub/internal/hub"
)

var (
	errServerFull   = errors.New("connection limit reached")
	errTooManyPerIP = errors.New("too many connections from this address")
)

// connGuard enforces the total and per-IP socket caps and tracks live
// sessions so shutdown can join them. Zero caps disable the corresponding
// check.
type connGuard struct {
	mu       sync.Mutex
	wg       sync.WaitGroup
	perIP    map[string]int
	total    int
	maxTotal int
	maxPerIP int
}

func newConnGuard(maxTotal, maxPerIP int) *connGuard {
	return &connGuard{
		perIP:    make(map[string]int),
		maxTotal: maxTotal,
		maxPerIP: maxPerIP,
	}
}

func (g *connGuard) acquire(ip string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.maxTotal > 0 && g.total >= g.maxTotal {
		return errServerFull
	}
	if g.maxPerIP > 0 && g.perIP[ip] >= g.maxPerIP {
		return errTooManyPerIP
	}

	g.total++
	g.perIP[ip]++
	g.wg.Add(1)
	return nil
}

func (g *connGuard) release(ip string) {
	g.mu.Lock()
	g.total--
	if g.perIP[ip] <= 1 {
		delete(g.perIP, ip)
	} else {
		g.perIP[ip]--
	}
	g.mu.Unlock()

	g.wg.Done()
}

type WSHandler struct {
	hub       *hub.Hub
	guard     *connGuard
	keepalive time.Duration
	logger    *slog.Logger
}

func NewWSHandler(h *hub.Hub, maxConns, maxPerIP int, keepalive time.Duration, logger *slog.Logger) *WSHandler {
	return &WSHandler{
		hub:       h,
		guard:     newConnGuard(maxConns, maxPerIP),
		keepalive: keepalive,
		logger:    logger,
	}
}

// Serve upgrades GET /ws, registers a subscriber, and runs the session until
// either side goes away. There is no handshake payload and no backlog: the
// client starts receiving from the next publish.
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)

	if err := h.guard.acquire(ip); err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, errTooManyPerIP) {
			status = http.StatusTooManyRequests
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		h.guard.release(ip)
		h.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	sub, err := h.hub.Register()
	if err != nil {
		h.guard.release(ip)
		conn.Close()
		return
	}

	sess := newSession(conn, sub, h.hub, h.keepalive, func() { h.guard.release(ip) }, h.logger)
	sess.start()
}

// Wait blocks until every accepted session has torn down. Call after the hub
// is closed; session writes are deadline-bounded, so this returns promptly.
func (h *WSHandler) Wait() {
	h.guard.wg.Wait()
}
