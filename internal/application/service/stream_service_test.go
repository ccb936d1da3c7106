package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickerhub/internal/domain/model"
	"tickerhub/internal/hub"
	"tickerhub/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func runPipeline(t *testing.T, svc *StreamService, in chan model.PriceRecord) <-chan struct{} {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		svc.Run(in)
	}()
	return done
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not stop after input closed")
	}
}

func tick(symbol, price, change string, ts int64) model.PriceRecord {
	return model.PriceRecord{Symbol: symbol, LastPrice: price, ChangePercent: change, Timestamp: ts}
}

// The full path: feed channel in, one early subscriber, three records. The
// subscriber sees exactly those three in order, the store ends on the last
// value per symbol, and unknown symbols stay unknown.
func TestPipelineEndToEnd(t *testing.T) {
	t.Parallel()

	st := store.New()
	h := hub.New(10, testLogger())
	svc := NewStreamService(st, h, nil, testLogger())
	snapshots := NewSnapshotService(st)

	sub, err := h.Register()
	require.NoError(t, err)

	in := make(chan model.PriceRecord)
	done := runPipeline(t, svc, in)

	in <- tick("BTCUSDT", "50000", "1.2", 1)
	in <- tick("ETHUSDT", "3000", "-0.5", 2)
	in <- tick("BTCUSDT", "50010", "1.25", 3)
	close(in)
	waitDone(t, done)

	want := []struct{ symbol, price, change string }{
		{"BTCUSDT", "50000", "1.2"},
		{"ETHUSDT", "3000", "-0.5"},
		{"BTCUSDT", "50010", "1.25"},
	}
	for _, w := range want {
		var msg model.StreamMessage
		require.NoError(t, json.Unmarshal(<-sub.Out(), &msg))
		assert.Equal(t, model.MessageTypeTicker, msg.Type)
		require.NotNil(t, msg.Data)
		assert.Equal(t, w.symbol, msg.Data.Symbol)
		assert.Equal(t, w.price, msg.Data.LastPrice)
		assert.Equal(t, w.change, msg.Data.ChangePercent)
	}
	select {
	case extra := <-sub.Out():
		t.Fatalf("unexpected fourth message: %s", extra)
	default:
	}

	btc, ok := snapshots.GetPrice("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, "50010", btc.LastPrice)
	assert.Equal(t, "1.25", btc.ChangePercent)

	_, ok = snapshots.GetPrice("XRPUSDT")
	assert.False(t, ok)

	all := snapshots.GetAllPrices()
	require.Len(t, all, 2)
	assert.Equal(t, "BTCUSDT", all[0].Symbol)
	assert.Equal(t, "ETHUSDT", all[1].Symbol)
}

func TestPipelineLateSubscriberGetsNoBacklog(t *testing.T) {
	t.Parallel()

	st := store.New()
	h := hub.New(10, testLogger())
	svc := NewStreamService(st, h, nil, testLogger())

	early, err := h.Register()
	require.NoError(t, err)

	in := make(chan model.PriceRecord)
	done := runPipeline(t, svc, in)

	in <- tick("BTCUSDT", "50000", "1.2", 1)
	in <- tick("ETHUSDT", "3000", "-0.5", 2)

	// Draining both records from the early subscriber proves the first two
	// publishes finished before the late registration below.
	<-early.Out()
	<-early.Out()

	late, err := h.Register()
	require.NoError(t, err)

	in <- tick("BTCUSDT", "50010", "1.25", 3)
	close(in)
	waitDone(t, done)

	var msg model.StreamMessage
	require.NoError(t, json.Unmarshal(<-late.Out(), &msg))
	assert.Equal(t, "50010", msg.Data.LastPrice)

	select {
	case extra := <-late.Out():
		t.Fatalf("late subscriber received backlog: %s", extra)
	default:
	}
}

func TestPipelineMirrorHandoffNeverBlocks(t *testing.T) {
	t.Parallel()

	st := store.New()
	h := hub.New(10, testLogger())

	// Nobody drains the mirror channel, so only its capacity is ever filled.
	mirror := make(chan model.PriceRecord, 1)
	svc := NewStreamService(st, h, mirror, testLogger())

	in := make(chan model.PriceRecord)
	done := runPipeline(t, svc, in)

	for i := 0; i < 20; i++ {
		in <- tick("BTCUSDT", "50000", "1.2", int64(i))
	}
	close(in)
	waitDone(t, done)

	assert.Equal(t, 1, st.Len())

	// Run closed the mirror channel on exit.
	rec, open := <-mirror
	assert.True(t, open)
	assert.Equal(t, "BTCUSDT", rec.Symbol)
	_, open = <-mirror
	assert.False(t, open)
}

type seedCache struct {
	recs []model.PriceRecord
	err  error
}

func (c *seedCache) SetLatest(context.Context, model.PriceRecord) error { return nil }
func (c *seedCache) GetAllLatest(context.Context) ([]model.PriceRecord, error) {
	return c.recs, c.err
}
func (c *seedCache) Ping(context.Context) error { return nil }
func (c *seedCache) Close() error               { return nil }

func TestSeedWarmStart(t *testing.T) {
	t.Parallel()

	st := store.New()
	svc := NewStreamService(st, hub.New(10, testLogger()), nil, testLogger())

	svc.Seed(context.Background(), &seedCache{recs: []model.PriceRecord{
		tick("BTCUSDT", "49990", "1.00", 1),
		tick("ETHUSDT", "2990", "-0.40", 2),
	}})

	require.Equal(t, 2, st.Len())
	rec, ok := st.Get("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, "49990", rec.LastPrice)
}

func TestSeedToleratesMirrorFailure(t *testing.T) {
	t.Parallel()

	st := store.New()
	svc := NewStreamService(st, hub.New(10, testLogger()), nil, testLogger())

	svc.Seed(context.Background(), &seedCache{err: errors.New("redis down")})

	assert.Equal(t, 0, st.Len())
}
