package memory

import (
	"context"
	"sort"
	"sync"

	"floorops/models"
	"floorops/repository"
	"floorops/services"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PedidoStore struct {
	mu      sync.RWMutex
	pedidos map[primitive.ObjectID]*models.Pedido

	// FailReplace, when set, is consulted before every Replace. Tests use it to make
	// individual saves fail.
	FailReplace func(p *models.Pedido) error
}

func NewPedidoStore() *PedidoStore {
	return &PedidoStore{pedidos: make(map[primitive.ObjectID]*models.Pedido)}
}

func (s *PedidoStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.Pedido, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pedidos[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(p), nil
}

func (s *PedidoStore) List(_ context.Context, f services.PedidoFilter) ([]models.Pedido, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Pedido{}
	for _, p := range s.pedidos {
		if matches(p, f) {
			out = append(out, *clone(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func matches(p *models.Pedido, f services.PedidoFilter) bool {
	if f.MesaID != nil && p.MesaID != *f.MesaID {
		return false
	}
	if len(f.IDs) > 0 && !containsID(f.IDs, p.ID) {
		return false
	}
	if len(f.Statuses) > 0 && !containsString(f.Statuses, p.Status) {
		return false
	}
	if f.PaidFrom != nil || f.PaidTo != nil {
		if p.PaidAt == nil {
			return false
		}
		if f.PaidFrom != nil && p.PaidAt.Before(*f.PaidFrom) {
			return false
		}
		if f.PaidTo != nil && p.PaidAt.After(*f.PaidTo) {
			return false
		}
	}
	if !f.IncludeRemoved && p.RemovedFromList {
		return false
	}
	return true
}

func (s *PedidoStore) Insert(_ context.Context, p *models.Pedido) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	if _, ok := s.pedidos[p.ID]; ok {
		return repository.ErrDuplicate
	}
	s.pedidos[p.ID] = clone(p)
	return nil
}

func (s *PedidoStore) Replace(_ context.Context, p *models.Pedido) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailReplace != nil {
		if err := s.FailReplace(p); err != nil {
			return err
		}
	}
	cur, ok := s.pedidos[p.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if cur.Version != p.Version {
		return repository.ErrStale
	}
	p.Version++
	s.pedidos[p.ID] = clone(p)
	return nil
}

func (s *PedidoStore) Delete(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pedidos[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.pedidos, id)
	return nil
}

func containsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func containsString(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
