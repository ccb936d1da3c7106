package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickerhub/internal/domain/model"
)

// recordingCache captures writes per symbol so tests can check ordering.
type recordingCache struct {
	mu     sync.Mutex
	writes map[string][]string
	fail   bool
}

func newRecordingCache() *recordingCache {
	return &recordingCache{writes: make(map[string][]string)}
}

func (c *recordingCache) SetLatest(_ context.Context, rec model.PriceRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("redis down")
	}
	c.writes[rec.Symbol] = append(c.writes[rec.Symbol], rec.LastPrice)
	return nil
}

func (c *recordingCache) GetAllLatest(context.Context) ([]model.PriceRecord, error) { return nil, nil }
func (c *recordingCache) Ping(context.Context) error                               { return nil }
func (c *recordingCache) Close() error                                             { return nil }

func (c *recordingCache) prices(symbol string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.writes[symbol]))
	copy(out, c.writes[symbol])
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPoolPreservesPerSymbolOrder(t *testing.T) {
	t.Parallel()

	cache := newRecordingCache()
	pool := NewPool(4, cache, testLogger())

	in := make(chan model.PriceRecord)
	done := pool.Start(in)

	symbols := []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "XRPUSDT", "ADAUSDT"}
	const perSymbol = 50

	for i := 0; i < perSymbol; i++ {
		for _, sym := range symbols {
			in <- model.PriceRecord{Symbol: sym, LastPrice: fmt.Sprintf("%d.00", i)}
		}
	}
	close(in)

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("pool did not drain after input closed")
	}

	for _, sym := range symbols {
		got := cache.prices(sym)
		require.Len(t, got, perSymbol, "symbol %s", sym)
		for i, price := range got {
			assert.Equal(t, fmt.Sprintf("%d.00", i), price, "symbol %s out of order", sym)
		}
	}
}

func TestPoolSurvivesWriteFailures(t *testing.T) {
	t.Parallel()

	cache := newRecordingCache()
	cache.fail = true
	pool := NewPool(2, cache, testLogger())

	in := make(chan model.PriceRecord)
	done := pool.Start(in)

	for i := 0; i < 10; i++ {
		in <- model.PriceRecord{Symbol: "BTCUSDT", LastPrice: "1.00"}
	}
	close(in)

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("pool did not drain with failing cache")
	}

	assert.Empty(t, cache.prices("BTCUSDT"))
}

func TestLaneForStable(t *testing.T) {
	t.Parallel()

	for _, sym := range []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"} {
		lane := laneFor(sym, 4)
		for i := 0; i < 10; i++ {
			assert.Equal(t, lane, laneFor(sym, 4))
		}
		assert.GreaterOrEqual(t, lane, 0)
		assert.Less(t, lane, 4)
	}
}
