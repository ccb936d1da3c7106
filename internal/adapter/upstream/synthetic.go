package upstream

import (
	"context"
	"log/slog"
	"math/rand"
	"strconv"
	"sync/atomic"
	"time"

	"tickerhub/internal/domain/model"
	"tickerhub/internal/domain/port"
)

// SyntheticFeed emits a random walk for the configured symbols. It serves
// local development and tests where the live stream is unreachable, behind
// the same port as the real feed.
type SyntheticFeed struct {
	symbols  []string
	interval time.Duration
	state    atomic.Int32
	log      *slog.Logger
}

var _ port.FeedPort = (*SyntheticFeed)(nil)

func NewSyntheticFeed(symbols []string, interval time.Duration, log *slog.Logger) *SyntheticFeed {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &SyntheticFeed{symbols: symbols, interval: interval, log: log}
}

func (f *SyntheticFeed) Name() string { return "synthetic" }

func (f *SyntheticFeed) State() model.FeedState {
	return model.FeedState(f.state.Load())
}

func (f *SyntheticFeed) Stream(ctx context.Context) <-chan model.PriceRecord {
	out := make(chan model.PriceRecord)

	go func() {
		defer close(out)
		defer f.state.Store(int32(model.FeedShutdown))

		f.state.Store(int32(model.FeedConnected))
		f.log.Info("synthetic feed started", "symbols", len(f.symbols), "interval", f.interval)

		r := rand.New(rand.NewSource(time.Now().UnixNano()))

		price := make(map[string]float64, len(f.symbols))
		open := make(map[string]float64, len(f.symbols))
		for _, sym := range f.symbols {
			price[sym] = 100 + r.Float64()*50000
			open[sym] = price[sym]
		}

		ticker := time.NewTicker(f.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, sym := range f.symbols {
					price[sym] *= 1 + (r.Float64()-0.5)*0.002
					change := (price[sym] - open[sym]) / open[sym] * 100

					rec := model.PriceRecord{
						Symbol:        sym,
						LastPrice:     strconv.FormatFloat(price[sym], 'f', 2, 64),
						ChangePercent: strconv.FormatFloat(change, 'f', 2, 64),
						Timestamp:     time.Now().UnixMilli(),
					}

					select {
					case out <- rec:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return out
}
