package store

import (
	"sort"
	"sync"

	"tickerhub/internal/domain/model"
)

// Store holds the latest record per symbol. Last writer wins by arrival
// order; timestamps are never compared, so out-of-order upstream clocks
// cannot resurrect stale data.
type Store struct {
	mu      sync.RWMutex
	records map[string]model.PriceRecord
}

func New() *Store {
	return &Store{
		records: make(map[string]model.PriceRecord),
	}
}

// Upsert replaces the record for rec.Symbol, creating the entry on first
// sight of a symbol.
func (s *Store) Upsert(rec model.PriceRecord) {
	s.mu.Lock()
	s.records[rec.Symbol] = rec
	s.mu.Unlock()
}

// Get returns the current record for symbol, or ok=false if it was never
// observed.
func (s *Store) Get(symbol string) (model.PriceRecord, bool) {
	s.mu.RLock()
	rec, ok := s.records[symbol]
	s.mu.RUnlock()
	return rec, ok
}

// GetAll returns a point-in-time copy of every known record, sorted by
// symbol for deterministic output.
func (s *Store) GetAll() []model.PriceRecord {
	s.mu.RLock()
	out := make([]model.PriceRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Len reports how many symbols have been observed.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
