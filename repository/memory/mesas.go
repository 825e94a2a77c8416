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

type MesaStore struct {
	mu    sync.RWMutex
	mesas map[primitive.ObjectID]*models.Mesa
}

func NewMesaStore() *MesaStore {
	return &MesaStore{mesas: make(map[primitive.ObjectID]*models.Mesa)}
}

func (s *MesaStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.Mesa, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.mesas[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(m), nil
}

func (s *MesaStore) List(_ context.Context, filter services.MesaFilter) ([]models.Mesa, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Mesa{}
	for _, m := range s.mesas {
		if filter.Area != "" && m.Area != filter.Area {
			continue
		}
		if filter.Status != "" && m.Status != filter.Status {
			continue
		}
		out = append(out, *clone(m))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (s *MesaStore) MaxNumber(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	max := 0
	for _, m := range s.mesas {
		if m.Number > max {
			max = m.Number
		}
	}
	return max, nil
}

func (s *MesaStore) Insert(_ context.Context, m *models.Mesa) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.numberTaken(m.Number, primitive.NilObjectID) {
		return repository.ErrDuplicate
	}
	if m.ID.IsZero() {
		m.ID = primitive.NewObjectID()
	}
	s.mesas[m.ID] = clone(m)
	return nil
}

func (s *MesaStore) Replace(_ context.Context, m *models.Mesa) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.mesas[m.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if cur.Version != m.Version {
		return repository.ErrStale
	}
	if s.numberTaken(m.Number, m.ID) {
		return repository.ErrDuplicate
	}
	m.Version++
	s.mesas[m.ID] = clone(m)
	return nil
}

func (s *MesaStore) Delete(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.mesas[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.mesas, id)
	return nil
}

func (s *MesaStore) numberTaken(number int, except primitive.ObjectID) bool {
	for id, m := range s.mesas {
		if id != except && m.Number == number {
			return true
		}
	}
	return false
}
