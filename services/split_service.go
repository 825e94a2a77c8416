package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"floorops/logger"
	"floorops/models"
	"floorops/repository"
	"floorops/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SplitTolerance is the largest difference between the amount due and the sum of
// the payer shares that is still accepted as rounding.
var SplitTolerance = decimal.NewFromFloat(0.01)

// SplitService pays several open orders of a table with several payer shares.
type SplitService struct {
	Orders PedidoStore
	Mesas  MesaStore
	Sales  SaleRecorder
	Events Notifier
	Log    *logger.Logger
	Now    func() time.Time
	NewID  func() string
}

func NewSplitService(orders PedidoStore, mesas MesaStore, events Notifier, log *logger.Logger) *SplitService {
	if events == nil {
		events = nopNotifier{}
	}
	return &SplitService{
		Orders: orders,
		Mesas:  mesas,
		Events: events,
		Log:    log,
		Now:    time.Now,
		NewID:  uuid.NewString,
	}
}

type SplitPayer struct {
	Name           string  `json:"nome"`
	Method         string  `json:"forma"`
	Amount         float64 `json:"valor"`
	AmountTendered float64 `json:"valorRecebido"`
}

type SplitInput struct {
	MesaID   primitive.ObjectID
	Payers   []SplitPayer
	OrderIDs []primitive.ObjectID
	Staff    string
}

type SplitFailure struct {
	OrderID string `json:"pedido"`
	Error   string `json:"erro"`
}

type SplitResult struct {
	Orders   []models.Pedido            `json:"pedidos"`
	Records  []models.RegistroPagamento `json:"pagamentos"`
	TotalDue float64                    `json:"totalDevido"`
	Failed   []SplitFailure             `json:"falhas,omitempty"`
}

// PayTableSplit validates the payer shares against the amount due by the resolved
// orders and marks every order paid, one save at a time. Orders saved before a
// failing one stay paid; the failures come back in the result together with a
// partial_failure error. The table is not released.
func (s *SplitService) PayTableSplit(ctx context.Context, in SplitInput) (*SplitResult, error) {
	if len(in.Payers) == 0 {
		return nil, validation("MissingPayers", "at least one payer is required", nil)
	}
	for i, py := range in.Payers {
		if py.Amount <= 0 {
			return nil, validation("InvalidAmount", "payer amount must be positive", map[string]interface{}{"pagante": i, "valor": py.Amount})
		}
		if !validOrderMethod(py.Method) {
			return nil, validation("InvalidMethod", fmt.Sprintf("unknown payment method %q", py.Method), map[string]interface{}{"pagante": i, "forma": py.Method})
		}
		if py.AmountTendered < 0 {
			return nil, validation("InvalidAmount", "amount tendered cannot be negative", map[string]interface{}{"pagante": i, "valorRecebido": py.AmountTendered})
		}
	}

	if _, err := s.Mesas.FindByID(ctx, in.MesaID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("TableNotFound", "table not found", map[string]interface{}{"mesa": in.MesaID.Hex()})
		}
		return nil, fmt.Errorf("error retrieving table %s: %w", in.MesaID.Hex(), err)
	}

	orders, err := s.resolveOrders(ctx, in.MesaID, in.OrderIDs)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, notFound("NoOrdersFound", "no open orders found for this table", map[string]interface{}{"mesa": in.MesaID.Hex()})
	}

	due := splitDue(orders)
	paid := decimal.Zero
	for _, py := range in.Payers {
		paid = paid.Add(utils.Money(py.Amount))
	}
	if diff := due.Sub(paid).Abs(); diff.GreaterThan(SplitTolerance) {
		return nil, &Error{
			Kind:    KindMismatch,
			Code:    "AmountMismatch",
			Message: fmt.Sprintf("payer amounts total %s but %s is due", paid.StringFixed(2), due.StringFixed(2)),
			Fields: map[string]interface{}{
				"totalDevido": utils.Float(due),
				"totalPago":   utils.Float(paid),
				"diferenca":   diff.InexactFloat64(),
			},
		}
	}

	now := s.Now()
	records := make([]models.RegistroPagamento, 0, len(in.Payers))
	var methods []string
	for i, py := range in.Payers {
		name := py.Name
		if name == "" {
			name = fmt.Sprintf("Pagante %d", i+1)
		}
		rec := models.RegistroPagamento{
			ID:             s.NewID(),
			Name:           name,
			Method:         py.Method,
			Amount:         py.Amount,
			AmountTendered: py.AmountTendered,
			Timestamp:      now,
			Staff:          in.Staff,
		}
		if py.Method == models.PagamentoDinheiro && py.AmountTendered > py.Amount {
			rec.Change = utils.Float(utils.Money(py.AmountTendered).Sub(utils.Money(py.Amount)))
		}
		records = append(records, rec)
		methods = appendUnique(methods, py.Method)
	}
	method := models.PagamentoOutro
	if len(methods) == 1 {
		method = methods[0]
	}

	result := &SplitResult{Records: records, TotalDue: utils.Float(due)}
	note := fmt.Sprintf("Pagamento dividido entre %d pagantes", len(records))
	for i := range orders {
		p := &orders[i]
		p.Status = models.PedidoPago
		p.PaymentMethod = method
		for _, m := range methods {
			p.PaymentMethods = appendUnique(p.PaymentMethods, m)
		}
		p.PaymentRecords = append(p.PaymentRecords, records...)
		p.PaidAt = &now
		p.PaidBy = in.Staff
		p.StatusHistory = append(p.StatusHistory, models.HistoricoStatus{Status: p.Status, Timestamp: now, Staff: in.Staff, Note: note})
		Recompute(p)
		p.UpdatedAt = now

		if err := saveOrder(ctx, s.Orders, p); err != nil {
			s.Log.Error(ctx, "split_payment_save_failed", "order not marked paid", err,
				slog.String("pedido", p.ID.Hex()), slog.String("mesa", in.MesaID.Hex()))
			result.Failed = append(result.Failed, SplitFailure{OrderID: p.ID.Hex(), Error: err.Error()})
			continue
		}
		result.Orders = append(result.Orders, *p)

		payload := pedidoPayload(p)
		payload["formaPagamento"] = method
		payload["dividido"] = true
		publish(ctx, s.Events, s.Log, now, models.EventPagamentoRegistrado, payload)
	}

	if len(result.Orders) > 0 {
		ref := result.Orders[0].ID
		for _, rec := range records {
			postSale(ctx, s.Sales, s.Log, ref, rec.Amount, rec.Method)
		}
	}

	if len(result.Failed) > 0 {
		return result, &Error{
			Kind:    KindPartialFailure,
			Code:    "PartialSplitPayment",
			Message: fmt.Sprintf("%d of %d orders could not be marked paid", len(result.Failed), len(orders)),
			Fields:  map[string]interface{}{"falhas": result.Failed, "pagos": len(result.Orders)},
		}
	}
	return result, nil
}

func (s *SplitService) resolveOrders(ctx context.Context, mesaID primitive.ObjectID, ids []primitive.ObjectID) ([]models.Pedido, error) {
	filter := PedidoFilter{MesaID: &mesaID, IDs: ids, IncludeRemoved: true}
	all, err := s.Orders.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("error listing orders of table %s: %w", mesaID.Hex(), err)
	}
	open := all[:0]
	for _, p := range all {
		if p.MesaID == mesaID && !p.Settled() {
			open = append(open, p)
		}
	}
	return open, nil
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}
