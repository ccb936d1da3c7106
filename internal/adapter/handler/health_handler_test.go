package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickerhub/internal/domain/model"
	"tickerhub/internal/hub"
)

type stubFeed struct {
	state model.FeedState
}

func (f *stubFeed) Stream(context.Context) <-chan model.PriceRecord { return nil }
func (f *stubFeed) State() model.FeedState                          { return f.state }
func (f *stubFeed) Name() string                                    { return "binance" }

type stubCache struct {
	pingErr error
}

func (c *stubCache) SetLatest(context.Context, model.PriceRecord) error { return nil }
func (c *stubCache) GetAllLatest(context.Context) ([]model.PriceRecord, error) {
	return nil, nil
}
func (c *stubCache) Ping(context.Context) error { return c.pingErr }
func (c *stubCache) Close() error               { return nil }

func decodeHealth(t *testing.T, body []byte) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp
}

func TestHealthyWhenFeedConnected(t *testing.T) {
	t.Parallel()

	h := NewHealthHandler(&stubFeed{state: model.FeedConnected}, hub.New(4, testLogger()), seededSnapshots(t), nil, testLogger())

	w := doGet(h.Check, "/healthz")
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeHealth(t, w.Body.Bytes())
	assert.Equal(t, "healthy", resp["status"])
	assert.Equal(t, "binance", resp["feed"])
	assert.Equal(t, float64(2), resp["symbols"])
	assert.Equal(t, float64(0), resp["subscribers"])

	checks := resp["checks"].(map[string]interface{})
	assert.Equal(t, "connected", checks["upstream"])
	_, hasRedis := checks["redis"]
	assert.False(t, hasRedis, "redis check must be omitted when the mirror is disabled")
}

func TestDegradedWhileReconnecting(t *testing.T) {
	t.Parallel()

	h := NewHealthHandler(&stubFeed{state: model.FeedBackoff}, hub.New(4, testLogger()), seededSnapshots(t), nil, testLogger())

	w := doGet(h.Check, "/healthz")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	resp := decodeHealth(t, w.Body.Bytes())
	assert.Equal(t, "degraded", resp["status"])
	checks := resp["checks"].(map[string]interface{})
	assert.Equal(t, "backoff", checks["upstream"])
}

func TestDegradedWhenRedisUnreachable(t *testing.T) {
	t.Parallel()

	cache := &stubCache{pingErr: errors.New("connection refused")}
	h := NewHealthHandler(&stubFeed{state: model.FeedConnected}, hub.New(4, testLogger()), seededSnapshots(t), cache, testLogger())

	w := doGet(h.Check, "/healthz")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	resp := decodeHealth(t, w.Body.Bytes())
	assert.Equal(t, "degraded", resp["status"])
	checks := resp["checks"].(map[string]interface{})
	assert.Equal(t, "connected", checks["upstream"])
	assert.Equal(t, "unhealthy", checks["redis"])
}

func TestHealthyWithReachableRedis(t *testing.T) {
	t.Parallel()

	h := NewHealthHandler(&stubFeed{state: model.FeedConnected}, hub.New(4, testLogger()), seededSnapshots(t), &stubCache{}, testLogger())

	w := doGet(h.Check, "/healthz")
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeHealth(t, w.Body.Bytes())
	checks := resp["checks"].(map[string]interface{})
	assert.Equal(t, "healthy", checks["redis"])
}
