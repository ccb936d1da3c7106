package handler

import (
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"tickerhub/internal/hub"
)

const (
	maxInboundSize = 512 * 1024

	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

var keepalivePayload = []byte(`{"type":"keepalive"}`)

// session pumps one subscriber's queue onto its WebSocket connection and
// watches the socket for disconnects. Teardown can be triggered by either
// pump or by a hub eviction closing the queue; it runs exactly once.
type session struct {
	conn      net.Conn
	sub       *hub.Subscriber
	hub       *hub.Hub
	keepalive time.Duration
	release   func()
	logger    *slog.Logger

	closeOnce sync.Once
}

func newSession(conn net.Conn, sub *hub.Subscriber, h *hub.Hub, keepalive time.Duration, release func(), logger *slog.Logger) *session {
	return &session{
		conn:      conn,
		sub:       sub,
		hub:       h,
		keepalive: keepalive,
		release:   release,
		logger:    logger,
	}
}

func (s *session) start() {
	go s.writePump()
	go s.readPump()
}

func (s *session) teardown() {
	s.closeOnce.Do(func() {
		s.hub.Unregister(s.sub)
		s.conn.Close()
		if s.release != nil {
			s.release()
		}
		s.logger.Info("subscriber disconnected", "id", s.sub.ID)
	})
}

// readPump consumes inbound frames for close and liveness detection only;
// there is no inbound protocol. Data frames are read and discarded.
func (s *session) readPump() {
	defer s.teardown()

	s.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		header, err := ws.ReadHeader(s.conn)
		if err != nil {
			return
		}

		if header.Length > maxInboundSize {
			s.logger.Warn("inbound frame too large", "id", s.sub.ID, "size", header.Length)
			return
		}

		payload := make([]byte, header.Length)
		if _, err := io.ReadFull(s.conn, payload); err != nil {
			return
		}
		if header.Masked {
			ws.Cipher(payload, header.Mask, 0)
		}

		switch header.OpCode {
		case ws.OpClose:
			return
		case ws.OpPong, ws.OpPing:
			// Any control traffic proves the client is alive.
			s.conn.SetReadDeadline(time.Now().Add(pongWait))
		}
	}
}

// writePump owns all writes on the connection: queue drain, protocol pings,
// and idle keepalives. A closed queue means eviction or hub shutdown; the
// client gets a close frame and the session ends.
func (s *session) writePump() {
	pinger := time.NewTicker(pingPeriod)
	idle := time.NewTimer(s.keepalive)
	defer func() {
		pinger.Stop()
		idle.Stop()
		s.teardown()
	}()

	for {
		select {
		case msg, open := <-s.sub.Out():
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !open {
				s.conn.Write(ws.CompiledClose)
				return
			}
			if err := wsutil.WriteServerText(s.conn, msg); err != nil {
				return
			}
			resetTimer(idle, s.keepalive)

		case <-idle.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsutil.WriteServerText(s.conn, keepalivePayload); err != nil {
				return
			}
			idle.Reset(s.keepalive)

		case <-pinger.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsutil.WriteServerMessage(s.conn, ws.OpPing, nil); err != nil {
				return
			}
		}
	}
}

// resetTimer drains a fired-but-unread timer before rearming it.
func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
