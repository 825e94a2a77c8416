package memory

import (
	"context"
	"sort"
	"sync"

	"floorops/models"
	"floorops/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MenuStore resolves menu items by hex id.
type MenuStore struct {
	mu    sync.RWMutex
	items map[primitive.ObjectID]*models.MenuItem
}

func NewMenuStore() *MenuStore {
	return &MenuStore{items: make(map[primitive.ObjectID]*models.MenuItem)}
}

func (s *MenuStore) Put(_ context.Context, item *models.MenuItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.ID.IsZero() {
		item.ID = primitive.NewObjectID()
	}
	s.items[item.ID] = clone(item)
	return nil
}

func (s *MenuStore) Resolve(_ context.Context, ref string) (*models.MenuItem, error) {
	id, err := primitive.ObjectIDFromHex(ref)
	if err != nil {
		return nil, repository.ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(item), nil
}

func (s *MenuStore) List(_ context.Context) ([]models.MenuItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.MenuItem{}
	for _, item := range s.items {
		out = append(out, *clone(item))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// StaffStore is the staff directory.
type StaffStore struct {
	mu    sync.RWMutex
	staff map[primitive.ObjectID]*models.Funcionario
}

func NewStaffStore() *StaffStore {
	return &StaffStore{staff: make(map[primitive.ObjectID]*models.Funcionario)}
}

func (s *StaffStore) Insert(_ context.Context, f *models.Funcionario) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.staff {
		if existing.Phone == f.Phone {
			return repository.ErrDuplicate
		}
	}
	if f.ID.IsZero() {
		f.ID = primitive.NewObjectID()
	}
	s.staff[f.ID] = clone(f)
	return nil
}

func (s *StaffStore) FindByPhone(_ context.Context, phone string) (*models.Funcionario, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, f := range s.staff {
		if f.Phone == phone {
			return clone(f), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *StaffStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.Funcionario, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.staff[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(f), nil
}

func (s *StaffStore) AttachTable(_ context.Context, staff string, mesaID primitive.ObjectID) error {
	return s.update(staff, func(f *models.Funcionario) {
		if !containsID(f.Tables, mesaID) {
			f.Tables = append(f.Tables, mesaID)
		}
	})
}

func (s *StaffStore) DetachTable(_ context.Context, staff string, mesaID primitive.ObjectID) error {
	return s.update(staff, func(f *models.Funcionario) {
		kept := f.Tables[:0]
		for _, id := range f.Tables {
			if id != mesaID {
				kept = append(kept, id)
			}
		}
		f.Tables = kept
	})
}

func (s *StaffStore) update(staff string, apply func(f *models.Funcionario)) error {
	id, err := primitive.ObjectIDFromHex(staff)
	if err != nil {
		return repository.ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.staff[id]
	if !ok {
		return repository.ErrNotFound
	}
	apply(f)
	return nil
}

type AreaStore struct {
	mu    sync.RWMutex
	areas map[string]*models.Area
}

func NewAreaStore() *AreaStore {
	return &AreaStore{areas: make(map[string]*models.Area)}
}

func (s *AreaStore) List(_ context.Context) ([]models.Area, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Area{}
	for _, a := range s.areas {
		out = append(out, *clone(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *AreaStore) Upsert(_ context.Context, a *models.Area) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.areas[a.Name] = clone(a)
	return nil
}
