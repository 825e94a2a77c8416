package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"floorops/models"
	"floorops/repository"
	"floorops/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type CaixaStore struct {
	mu     sync.RWMutex
	caixas map[primitive.ObjectID]*models.Caixa
}

func NewCaixaStore() *CaixaStore {
	return &CaixaStore{caixas: make(map[primitive.ObjectID]*models.Caixa)}
}

func (s *CaixaStore) Insert(_ context.Context, c *models.Caixa) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.Status == models.CaixaAberto && s.openLocked() != nil {
		return repository.ErrDuplicate
	}
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	s.caixas[c.ID] = clone(c)
	return nil
}

func (s *CaixaStore) FindOpen(_ context.Context) (*models.Caixa, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.openLocked()
	if c == nil {
		return nil, repository.ErrNotFound
	}
	return clone(c), nil
}

func (s *CaixaStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.Caixa, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.caixas[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(c), nil
}

func (s *CaixaStore) AddSale(_ context.Context, id primitive.ObjectID, v models.Venda) (*models.Caixa, error) {
	amount := utils.Money(v.Amount).Round(2)
	return s.post(id, func(c *models.Caixa) {
		c.Sales.Total = utils.Float(utils.Money(c.Sales.Total).Add(amount))
		c.Sales.Count++
		if c.PaymentTotals == nil {
			c.PaymentTotals = map[string]float64{}
		}
		c.PaymentTotals[v.Method] = utils.Float(utils.Money(c.PaymentTotals[v.Method]).Add(amount))
		if !c.HasOrder(v.OrderRef) {
			c.OrderRefs = append(c.OrderRefs, v.OrderRef)
		}
	})
}

func (s *CaixaStore) AddCashOut(_ context.Context, id primitive.ObjectID, m models.Movimento) (*models.Caixa, error) {
	return s.post(id, func(c *models.Caixa) { c.CashOuts = append(c.CashOuts, m) })
}

func (s *CaixaStore) AddCashIn(_ context.Context, id primitive.ObjectID, m models.Movimento) (*models.Caixa, error) {
	return s.post(id, func(c *models.Caixa) { c.CashIns = append(c.CashIns, m) })
}

func (s *CaixaStore) post(id primitive.ObjectID, apply func(c *models.Caixa)) (*models.Caixa, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.caixas[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if c.Status != models.CaixaAberto {
		return nil, repository.ErrStale
	}
	apply(c)
	c.Version++
	return clone(c), nil
}

func (s *CaixaStore) Close(_ context.Context, c *models.Caixa) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.caixas[c.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if cur.Status != models.CaixaAberto || cur.Version != c.Version {
		return repository.ErrStale
	}
	c.Version++
	s.caixas[c.ID] = clone(c)
	return nil
}

func (s *CaixaStore) ListOpenedBetween(_ context.Context, from, to time.Time) ([]models.Caixa, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Caixa{}
	for _, c := range s.caixas {
		if c.OpenedAt.Before(from) || c.OpenedAt.After(to) {
			continue
		}
		out = append(out, *clone(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt.Before(out[j].OpenedAt) })
	return out, nil
}

func (s *CaixaStore) openLocked() *models.Caixa {
	for _, c := range s.caixas {
		if c.Status == models.CaixaAberto {
			return c
		}
	}
	return nil
}
