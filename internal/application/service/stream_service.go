package service

import (
	"context"
	"log/slog"

	"tickerhub/internal/domain/model"
	"tickerhub/internal/domain/port"
	"tickerhub/internal/hub"
	"tickerhub/internal/store"
)

// StreamService is the single consumer of the upstream feed channel. Store
// and hub see every record from the same goroutine, so per-symbol order is
// identical for both.
type StreamService struct {
	store  *store.Store
	hub    *hub.Hub
	mirror chan<- model.PriceRecord
	logger *slog.Logger
}

// NewStreamService wires the pipeline. mirror may be nil when mirroring is
// disabled.
func NewStreamService(st *store.Store, h *hub.Hub, mirror chan<- model.PriceRecord, logger *slog.Logger) *StreamService {
	return &StreamService{
		store:  st,
		hub:    h,
		mirror: mirror,
		logger: logger,
	}
}

// Run blocks until in closes, then closes the mirror channel so the mirror
// workers can drain and stop. The mirror handoff never blocks: when its
// queue is full the record is simply not mirrored.
func (s *StreamService) Run(in <-chan model.PriceRecord) {
	count := 0

	for rec := range in {
		s.store.Upsert(rec)
		s.hub.Publish(rec)

		if s.mirror != nil {
			select {
			case s.mirror <- rec:
			default:
			}
		}

		count++
		if count%1000 == 0 {
			s.logger.Debug("pipeline progress", "records", count)
		}
	}

	if s.mirror != nil {
		close(s.mirror)
	}
	s.logger.Info("pipeline stopped", "records", count)
}

// Seed preloads the store from the mirror so snapshot queries have data
// before the first upstream record lands. Failures only cost the warm start.
func (s *StreamService) Seed(ctx context.Context, cache port.CachePort) {
	recs, err := cache.GetAllLatest(ctx)
	if err != nil {
		s.logger.Warn("warm start from mirror failed", "error", err)
		return
	}

	for _, rec := range recs {
		s.store.Upsert(rec)
	}

	if len(recs) > 0 {
		s.logger.Info("store seeded from mirror", "symbols", len(recs))
	}
}
