package worker

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"tickerhub/internal/domain/model"
	"tickerhub/internal/domain/port"
)

// Pool fans mirror writes out across a fixed set of workers. Records are
// sharded by symbol so writes for one symbol stay in order even with several
// workers draining in parallel. Write failures are logged and dropped; the
// mirror is best effort.
type Pool struct {
	workers      int
	cache        port.CachePort
	writeTimeout time.Duration
	logger       *slog.Logger
}

func NewPool(workers int, cache port.CachePort, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{
		workers:      workers,
		cache:        cache,
		writeTimeout: 2 * time.Second,
		logger:       logger,
	}
}

// Start consumes records from in until it closes. The returned channel
// closes once every worker has drained its lane, so shutdown is joinable.
func (p *Pool) Start(in <-chan model.PriceRecord) <-chan struct{} {
	done := make(chan struct{})

	lanes := make([]chan model.PriceRecord, p.workers)
	for i := range lanes {
		lanes[i] = make(chan model.PriceRecord, 64)
	}

	var wg sync.WaitGroup
	wg.Add(p.workers)
	for i := range lanes {
		go func(id int, lane <-chan model.PriceRecord) {
			defer wg.Done()
			p.workerLoop(id, lane)
		}(i, lanes[i])
	}

	go func() {
		for rec := range in {
			lanes[laneFor(rec.Symbol, p.workers)] <- rec
		}
		for _, lane := range lanes {
			close(lane)
		}
	}()

	go func() {
		wg.Wait()
		close(done)
	}()

	return done
}

func (p *Pool) workerLoop(id int, lane <-chan model.PriceRecord) {
	for rec := range lane {
		ctx, cancel := context.WithTimeout(context.Background(), p.writeTimeout)
		if err := p.cache.SetLatest(ctx, rec); err != nil {
			p.logger.Warn("mirror write failed", "worker", id, "symbol", rec.Symbol, "error", err)
		}
		cancel()
	}
}

func laneFor(symbol string, n int) int {
	h := fnv.New32a()
	h.Write([]byte(symbol))
	return int(h.Sum32() % uint32(n))
}
