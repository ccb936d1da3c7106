package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tickerhub/internal/domain/model"
	"tickerhub/internal/domain/port"
)

const keyPrefix = "ticker:latest:"

// RedisMirror keeps the latest record per symbol in Redis, one TTL-bounded
// key per symbol overwritten in place. It exists for warm restarts only;
// the in-process store stays authoritative while the process runs.
type RedisMirror struct {
	client *redis.Client
	ttl    time.Duration
}

var _ port.CachePort = (*RedisMirror)(nil)

func NewRedisMirror(addr, password string, db int, ttl time.Duration) (*RedisMirror, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisMirror{
		client: client,
		ttl:    ttl,
	}, nil
}

func (m *RedisMirror) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}

func (m *RedisMirror) SetLatest(ctx context.Context, rec model.PriceRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	if err := m.client.Set(ctx, keyPrefix+rec.Symbol, data, m.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set latest record in redis: %w", err)
	}
	return nil
}

func (m *RedisMirror) GetAllLatest(ctx context.Context) ([]model.PriceRecord, error) {
	var keys []string
	iter := m.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan redis keys: %w", err)
	}

	if len(keys) == 0 {
		return nil, nil
	}

	values, err := m.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch latest records from redis: %w", err)
	}

	out := make([]model.PriceRecord, 0, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			// Key expired between SCAN and MGET.
			continue
		}

		var rec model.PriceRecord
		if err := json.Unmarshal([]byte(s), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record from key %s: %w", keys[i], err)
		}
		out = append(out, rec)
	}

	return out, nil
}

func (m *RedisMirror) Close() error {
	return m.client.Close()
}
