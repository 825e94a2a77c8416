package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"floorops/logger"
	"floorops/models"
	"floorops/repository"
	"floorops/utils"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CaixaService manages till sessions. It keeps a handle to the live session; the
// store's partial unique index on status=aberto is what guarantees there is one.
type CaixaService struct {
	Store    CaixaStore
	Events   Notifier
	Log      *logger.Logger
	Now      func() time.Time
	Location *time.Location

	mu      sync.Mutex
	current primitive.ObjectID
}

func NewCaixaService(store CaixaStore, events Notifier, log *logger.Logger) *CaixaService {
	if events == nil {
		events = nopNotifier{}
	}
	return &CaixaService{Store: store, Events: events, Log: log, Now: time.Now, Location: time.Local}
}

func (s *CaixaService) Open(ctx context.Context, openingAmount float64, notes, staff string) (*models.Caixa, error) {
	if openingAmount < 0 {
		return nil, validation("InvalidAmount", "opening amount cannot be negative", map[string]interface{}{"valorInicial": openingAmount})
	}
	if existing, err := s.Store.FindOpen(ctx); err == nil {
		return nil, conflict("AlreadyOpen", "a till session is already open", map[string]interface{}{"caixa": existing.ID.Hex()})
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("error checking open till session: %w", err)
	}

	totals := make(map[string]float64, len(models.CaixaMethods))
	for _, m := range models.CaixaMethods {
		totals[m] = 0
	}
	c := &models.Caixa{
		Status:        models.CaixaAberto,
		OpenedAt:      s.Now(),
		OpenedBy:      staff,
		OpeningAmount: openingAmount,
		PaymentTotals: totals,
		CashOuts:      []models.Movimento{},
		CashIns:       []models.Movimento{},
		OrderRefs:     []primitive.ObjectID{},
		Notes:         notes,
	}
	if err := s.Store.Insert(ctx, c); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, conflict("AlreadyOpen", "a till session is already open", nil)
		}
		return nil, fmt.Errorf("error opening till session: %w", err)
	}
	s.setCurrent(c.ID)

	s.Log.Info(ctx, "caixa_open", "till session opened", slog.String("caixa", c.ID.Hex()), slog.Float64("valorInicial", openingAmount))
	publish(ctx, s.Events, s.Log, c.OpenedAt, models.EventCaixaAberto, caixaPayload(c))
	return c, nil
}

// Close freezes the open session, computing the expected drawer amount and the
// variance against closingAmount.
func (s *CaixaService) Close(ctx context.Context, closingAmount float64, notes, staff string) (*models.Caixa, error) {
	if closingAmount < 0 {
		return nil, validation("InvalidAmount", "closing amount cannot be negative", map[string]interface{}{"valorFinal": closingAmount})
	}
	c, err := s.open(ctx)
	if err != nil {
		return nil, err
	}

	expected := ExpectedAmount(c)
	now := s.Now()
	c.Status = models.CaixaFechado
	c.ClosedAt = &now
	c.ClosedBy = staff
	c.ClosingAmount = closingAmount
	c.ExpectedAmount = utils.Float(expected)
	c.Variance = utils.Float(utils.Money(closingAmount).Sub(expected))
	c.ClosingNotes = notes

	if err := s.Store.Close(ctx, c); err != nil {
		if errors.Is(err, repository.ErrStale) {
			return nil, conflict("SessionChanged", "the till session changed while closing, retry", map[string]interface{}{"caixa": c.ID.Hex()})
		}
		return nil, fmt.Errorf("error closing till session %s: %w", c.ID.Hex(), err)
	}
	s.setCurrent(primitive.NilObjectID)

	s.Log.Info(ctx, "caixa_close", "till session closed",
		slog.String("caixa", c.ID.Hex()),
		slog.Float64("valorEsperado", c.ExpectedAmount),
		slog.Float64("diferenca", c.Variance))

	payload := caixaPayload(c)
	payload["valorFinal"] = c.ClosingAmount
	payload["valorEsperado"] = c.ExpectedAmount
	payload["diferenca"] = c.Variance
	payload["vendas"] = c.Sales.Total
	payload["quantidade"] = c.Sales.Count
	publish(ctx, s.Events, s.Log, now, models.EventCaixaFechado, payload)
	return c, nil
}

// ExpectedAmount is opening + sales − cash-outs + cash-ins.
func ExpectedAmount(c *models.Caixa) decimal.Decimal {
	exp := utils.Money(c.OpeningAmount).Add(utils.Money(c.Sales.Total))
	for _, m := range c.CashOuts {
		exp = exp.Sub(utils.Money(m.Amount))
	}
	for _, m := range c.CashIns {
		exp = exp.Add(utils.Money(m.Amount))
	}
	return exp
}

func (s *CaixaService) RecordCashOut(ctx context.Context, amount float64, reason, staff string) (*models.Caixa, error) {
	return s.movement(ctx, amount, reason, staff, s.Store.AddCashOut, models.EventCaixaSangria)
}

func (s *CaixaService) RecordCashIn(ctx context.Context, amount float64, reason, staff string) (*models.Caixa, error) {
	return s.movement(ctx, amount, reason, staff, s.Store.AddCashIn, models.EventCaixaReforco)
}

type postMovement func(ctx context.Context, id primitive.ObjectID, m models.Movimento) (*models.Caixa, error)

func (s *CaixaService) movement(ctx context.Context, amount float64, reason, staff string, post postMovement, event string) (*models.Caixa, error) {
	if amount <= 0 {
		return nil, validation("InvalidAmount", "amount must be positive", map[string]interface{}{"valor": amount})
	}
	if reason == "" {
		return nil, validation("MissingReason", "a reason is required", nil)
	}
	c, err := s.openForPosting(ctx)
	if err != nil {
		return nil, err
	}
	m := models.Movimento{Amount: amount, Reason: reason, Timestamp: s.Now(), Staff: staff}
	updated, err := post(ctx, c.ID, m)
	if err != nil {
		return nil, s.postingError(c.ID, err)
	}
	payload := caixaPayload(updated)
	payload["valor"] = amount
	payload["motivo"] = reason
	publish(ctx, s.Events, s.Log, m.Timestamp, event, payload)
	return updated, nil
}

// RecordSale posts a sale to the open session. Totals grow on every call; the order
// reference is added to the session only once.
func (s *CaixaService) RecordSale(ctx context.Context, orderRef primitive.ObjectID, amount float64, method string) (*models.Caixa, error) {
	if amount <= 0 {
		return nil, validation("InvalidAmount", "sale amount must be positive", map[string]interface{}{"valor": amount})
	}
	if !validCaixaMethod(method) {
		return nil, validation("InvalidMethod", fmt.Sprintf("unknown payment method %q", method), map[string]interface{}{"forma": method})
	}
	c, err := s.openForPosting(ctx)
	if err != nil {
		return nil, err
	}
	updated, err := s.Store.AddSale(ctx, c.ID, models.Venda{OrderRef: orderRef, Amount: amount, Method: method})
	if err != nil {
		return nil, s.postingError(c.ID, err)
	}
	payload := caixaPayload(updated)
	payload["pedido"] = orderRef.Hex()
	payload["valor"] = amount
	payload["forma"] = method
	publish(ctx, s.Events, s.Log, s.Now(), models.EventCaixaVenda, payload)
	return updated, nil
}

// Current returns the open session.
func (s *CaixaService) Current(ctx context.Context) (*models.Caixa, error) {
	return s.open(ctx)
}

func (s *CaixaService) Get(ctx context.Context, id primitive.ObjectID) (*models.Caixa, error) {
	c, err := s.Store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("SessionNotFound", "till session not found", map[string]interface{}{"caixa": id.Hex()})
		}
		return nil, fmt.Errorf("error retrieving till session %s: %w", id.Hex(), err)
	}
	return c, nil
}

// List returns the sessions opened between the local days of from and to, inclusive.
func (s *CaixaService) List(ctx context.Context, from, to time.Time) ([]models.Caixa, error) {
	start, _ := dayBounds(from, s.Location)
	_, end := dayBounds(to, s.Location)
	if end.Before(start) {
		return nil, validation("InvalidRange", "end date is before start date", nil)
	}
	return s.Store.ListOpenedBetween(ctx, start, end)
}

func (s *CaixaService) Report(ctx context.Context, from, to time.Time) (*CaixaReport, error) {
	sessions, err := s.List(ctx, from, to)
	if err != nil {
		return nil, err
	}
	r := BuildReport(sessions, s.Location)
	r.From, _ = dayBounds(from, s.Location)
	_, r.To = dayBounds(to, s.Location)
	return &r, nil
}

// open resolves the live session, through the cached handle when it is still open.
func (s *CaixaService) open(ctx context.Context) (*models.Caixa, error) {
	s.mu.Lock()
	id := s.current
	s.mu.Unlock()

	if !id.IsZero() {
		c, err := s.Store.FindByID(ctx, id)
		if err == nil && c.Status == models.CaixaAberto {
			return c, nil
		}
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("error retrieving till session %s: %w", id.Hex(), err)
		}
		s.setCurrent(primitive.NilObjectID)
	}

	c, err := s.Store.FindOpen(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, invalidState("NoOpenSession", "no till session is open", nil)
		}
		return nil, fmt.Errorf("error retrieving open till session: %w", err)
	}
	s.setCurrent(c.ID)
	return c, nil
}

func (s *CaixaService) openForPosting(ctx context.Context) (*models.Caixa, error) {
	c, err := s.open(ctx)
	if CodeOf(err) == "NoOpenSession" {
		return nil, invalidState("SessionClosed", "no till session is open", nil)
	}
	return c, err
}

func (s *CaixaService) setCurrent(id primitive.ObjectID) {
	s.mu.Lock()
	s.current = id
	s.mu.Unlock()
}

func (s *CaixaService) postingError(id primitive.ObjectID, err error) error {
	if errors.Is(err, repository.ErrStale) || errors.Is(err, repository.ErrNotFound) {
		s.setCurrent(primitive.NilObjectID)
		return invalidState("SessionClosed", "the till session is closed", map[string]interface{}{"caixa": id.Hex()})
	}
	return fmt.Errorf("error posting to till session %s: %w", id.Hex(), err)
}

func validCaixaMethod(m string) bool {
	for _, v := range models.CaixaMethods {
		if v == m {
			return true
		}
	}
	return false
}

func caixaPayload(c *models.Caixa) map[string]interface{} {
	return map[string]interface{}{
		"caixa":  c.ID.Hex(),
		"status": c.Status,
	}
}
