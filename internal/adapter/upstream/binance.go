package upstream

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"tickerhub/internal/domain/model"
	"tickerhub/internal/domain/port"
)

// BinanceOptions configures the live feed. Durations come straight from the
// config layer.
type BinanceOptions struct {
	BaseURL      string
	Symbols      []string
	ReconnectMin time.Duration
	ReconnectMax time.Duration
	PingInterval time.Duration
	PingTimeout  time.Duration
}

// BinanceFeed keeps a combined ticker stream subscription alive indefinitely,
// reconnecting with jittered exponential backoff after any failure. Shutdown
// happens only through context cancellation.
type BinanceFeed struct {
	opts  BinanceOptions
	state atomic.Int32
	log   *slog.Logger
}

var _ port.FeedPort = (*BinanceFeed)(nil)

func NewBinanceFeed(opts BinanceOptions, log *slog.Logger) *BinanceFeed {
	if opts.ReconnectMin <= 0 {
		opts.ReconnectMin = time.Second
	}
	if opts.ReconnectMax < opts.ReconnectMin {
		opts.ReconnectMax = 30 * time.Second
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 20 * time.Second
	}
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = 20 * time.Second
	}

	return &BinanceFeed{opts: opts, log: log}
}

func (f *BinanceFeed) Name() string { return "binance" }

func (f *BinanceFeed) State() model.FeedState {
	return model.FeedState(f.state.Load())
}

func (f *BinanceFeed) setState(s model.FeedState) {
	old := model.FeedState(f.state.Swap(int32(s)))
	if old != s {
		f.log.Debug("upstream state changed", "from", old.String(), "to", s.String())
	}
}

// Stream starts the connect/receive loop and returns its output channel. The
// channel closes only after the loop has fully stopped.
func (f *BinanceFeed) Stream(ctx context.Context) <-chan model.PriceRecord {
	out := make(chan model.PriceRecord)
	go f.run(ctx, out)
	return out
}

func (f *BinanceFeed) run(ctx context.Context, out chan<- model.PriceRecord) {
	defer close(out)
	defer f.setState(model.FeedShutdown)

	endpoint := f.endpoint()
	backoff := f.opts.ReconnectMin

	for {
		if ctx.Err() != nil {
			return
		}

		f.setState(model.FeedConnecting)

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			f.log.Warn("upstream dial failed", "url", endpoint, "error", err)
			if !f.waitBackoff(ctx, &backoff) {
				return
			}
			continue
		}

		f.setState(model.FeedConnected)
		f.log.Info("upstream connected", "url", endpoint, "symbols", len(f.opts.Symbols))
		backoff = f.opts.ReconnectMin

		err = f.readLoop(ctx, conn, out)
		conn.Close()

		if ctx.Err() != nil {
			return
		}

		f.setState(model.FeedDisconnected)
		f.log.Warn("upstream connection lost", "error", err)

		if !f.waitBackoff(ctx, &backoff) {
			return
		}
	}
}

// readLoop consumes frames until the connection dies or ctx is cancelled.
// A watchdog goroutine pings the server and fails the pending read via a
// deadline when the peer goes silent or ctx ends.
func (f *BinanceFeed) readLoop(ctx context.Context, conn *websocket.Conn, out chan<- model.PriceRecord) error {
	readWait := f.opts.PingInterval + f.opts.PingTimeout

	conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})

	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(f.opts.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				conn.SetReadDeadline(time.Now())
				return
			case <-ticker.C:
				deadline := time.Now().Add(f.opts.PingTimeout)
				if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					conn.SetReadDeadline(time.Now())
					return
				}
			}
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		rec, ok := parseTicker(payload)
		if !ok {
			f.log.Debug("dropping malformed upstream message", "preview", truncate(string(payload), 80))
			continue
		}

		select {
		case out <- rec:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// waitBackoff sleeps the jittered delay and doubles the base for next time.
// Returns false when ctx is cancelled during the wait.
func (f *BinanceFeed) waitBackoff(ctx context.Context, backoff *time.Duration) bool {
	f.setState(model.FeedBackoff)

	delay := *backoff + time.Duration(rand.Int63n(int64(*backoff)+1))
	if delay > f.opts.ReconnectMax {
		delay = f.opts.ReconnectMax
	}

	*backoff *= 2
	if *backoff > f.opts.ReconnectMax {
		*backoff = f.opts.ReconnectMax
	}

	f.log.Info("upstream reconnecting", "delay", delay.Round(time.Millisecond))

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// endpoint builds the stream URL: a single symbol uses the plain ws path,
// several share one combined stream connection.
func (f *BinanceFeed) endpoint() string {
	if len(f.opts.Symbols) == 1 {
		return fmt.Sprintf("%s/ws/%s@ticker", f.opts.BaseURL, strings.ToLower(f.opts.Symbols[0]))
	}

	streams := make([]string, 0, len(f.opts.Symbols))
	for _, s := range f.opts.Symbols {
		streams = append(streams, strings.ToLower(s)+"@ticker")
	}
	return fmt.Sprintf("%s/stream?streams=%s", f.opts.BaseURL, strings.Join(streams, "/"))
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
