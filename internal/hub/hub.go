package hub

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"

	"tickerhub/internal/domain/model"
)

// ErrHubClosed is returned by Register once the hub has shut down.
var ErrHubClosed = errors.New("hub closed")

// Subscriber is one downstream client's bounded outbound queue. The hub owns
// registration and the queue's close; the session owns draining Out.
type Subscriber struct {
	ID string

	out       chan []byte
	closeOnce sync.Once
}

// Out is the subscriber's delivery queue. It closes when the subscriber is
// evicted or the hub shuts down; a closed queue means no further writes
// should reach the client beyond a close frame.
func (s *Subscriber) Out() <-chan []byte {
	return s.out
}

func (s *Subscriber) close() {
	s.closeOnce.Do(func() { close(s.out) })
}

// Hub fans every published record out to all registered subscribers. A
// subscriber whose queue is full at publish time is evicted: dropped from the
// registry and its queue closed. One stalled client never blocks the rest.
type Hub struct {
	mu        sync.RWMutex
	subs      map[string]*Subscriber
	closed    bool
	queueSize int
	logger    *slog.Logger
}

func New(queueSize int, logger *slog.Logger) *Hub {
	if queueSize <= 0 {
		queueSize = 100
	}
	return &Hub{
		subs:      make(map[string]*Subscriber),
		queueSize: queueSize,
		logger:    logger,
	}
}

// Register adds a new subscriber. It is visible to every Publish that starts
// after Register returns.
func (h *Hub) Register() (*Subscriber, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}

	sub := &Subscriber{
		ID:  ulid.Make().String(),
		out: make(chan []byte, h.queueSize),
	}
	h.subs[sub.ID] = sub

	h.logger.Info("subscriber registered", "id", sub.ID, "total", len(h.subs))
	return sub, nil
}

// Unregister removes sub and closes its queue. Idempotent: safe from the
// session teardown path and after an eviction already removed it.
func (h *Hub) Unregister(sub *Subscriber) {
	if sub == nil {
		return
	}

	h.mu.Lock()
	_, present := h.subs[sub.ID]
	if present {
		delete(h.subs, sub.ID)
	}
	total := len(h.subs)
	h.mu.Unlock()

	sub.close()

	if present {
		h.logger.Info("subscriber unregistered", "id", sub.ID, "total", total)
	}
}

// Publish enqueues rec on every registered subscriber, marshaling the wire
// envelope once. Full queues evict their subscriber. Cost is one bounded
// enqueue attempt per subscriber.
func (h *Hub) Publish(rec model.PriceRecord) {
	payload, err := json.Marshal(model.StreamMessage{Type: model.MessageTypeTicker, Data: &rec})
	if err != nil {
		h.logger.Error("failed to marshal record", "symbol", rec.Symbol, "error", err)
		return
	}

	var evicted []*Subscriber

	h.mu.Lock()
	for id, sub := range h.subs {
		select {
		case sub.out <- payload:
		default:
			delete(h.subs, id)
			evicted = append(evicted, sub)
		}
	}
	h.mu.Unlock()

	for _, sub := range evicted {
		sub.close()
		h.logger.Warn("subscriber evicted, queue full", "id", sub.ID)
	}
}

// Count reports the number of live subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close evicts every subscriber and rejects further registrations.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true

	subs := make([]*Subscriber, 0, len(h.subs))
	for _, sub := range h.subs {
		subs = append(subs, sub)
	}
	h.subs = make(map[string]*Subscriber)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}

	h.logger.Info("hub closed", "evicted", len(subs))
}
