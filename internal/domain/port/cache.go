package port

import (
	"context"

	"tickerhub/internal/domain/model"
)

// CachePort mirrors the latest record per symbol in external storage so a
// restarted process can serve snapshots before the feed delivers anything.
type CachePort interface {
	SetLatest(ctx context.Context, rec model.PriceRecord) error
	GetAllLatest(ctx context.Context) ([]model.PriceRecord, error)
	Ping(ctx context.Context) error
	Close() error
}
