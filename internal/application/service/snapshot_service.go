package service

import (
	"tickerhub/internal/domain/model"
	"tickerhub/internal/store"
)

// SnapshotService is the read-only query surface over the price store. It
// never touches the publish path.
type SnapshotService struct {
	store *store.Store
}

func NewSnapshotService(st *store.Store) *SnapshotService {
	return &SnapshotService{store: st}
}

func (s *SnapshotService) GetPrice(symbol string) (model.PriceRecord, bool) {
	return s.store.Get(symbol)
}

func (s *SnapshotService) GetAllPrices() []model.PriceRecord {
	return s.store.GetAll()
}

func (s *SnapshotService) SymbolCount() int {
	return s.store.Len()
}
