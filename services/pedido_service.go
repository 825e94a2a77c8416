package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"floorops/logger"
	"floorops/models"
	"floorops/repository"
	"floorops/utils"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	defaultCancelReason        = "Pedido cancelado"
	defaultCancelPaymentReason = "Pagamento cancelado"
)

// PedidoService is the order ledger.
type PedidoService struct {
	Store  PedidoStore
	Tables TableBilling
	Menu   MenuLookup
	Sales  SaleRecorder // nil disables posting payments to the till
	Events Notifier
	Log    *logger.Logger

	Now      func() time.Time
	NewID    func() string
	Location *time.Location
}

func NewPedidoService(store PedidoStore, tables TableBilling, menu MenuLookup, events Notifier, log *logger.Logger) *PedidoService {
	if events == nil {
		events = nopNotifier{}
	}
	return &PedidoService{
		Store:    store,
		Tables:   tables,
		Menu:     menu,
		Events:   events,
		Log:      log,
		Now:      time.Now,
		NewID:    uuid.NewString,
		Location: time.Local,
	}
}

type ItemInput struct {
	MenuItem string   `json:"produto"`
	Quantity int      `json:"quantidade"`
	Note     string   `json:"observacao"`
	Addons   []string `json:"adicionais"`
}

type CreatePedidoInput struct {
	MesaID primitive.ObjectID
	Staff  string
	Items  []ItemInput
	Payer  *models.ClientePedido
}

// Create opens an order against an occupied table. Names and prices are
// snapshotted from the menu. When the payer cannot be linked on the table the
// order is still returned, together with a partial_failure error.
func (s *PedidoService) Create(ctx context.Context, in CreatePedidoInput) (*models.Pedido, error) {
	if in.Staff == "" {
		return nil, validation("MissingStaff", "staff reference is required", nil)
	}
	if in.Payer != nil && (in.Payer.Identifier == "" || in.Payer.Name == "") {
		return nil, validation("MissingPayerData", "payer name and identifier are required", nil)
	}

	mesa, err := s.Tables.Get(ctx, in.MesaID)
	if err != nil {
		return nil, err
	}
	if mesa.Status != models.MesaOcupada {
		return nil, invalidState("TableNotOccupied", "table is not occupied", map[string]interface{}{"mesa": in.MesaID.Hex(), "status": mesa.Status})
	}

	items, err := s.resolveItems(ctx, in.Items)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	p := &models.Pedido{
		MesaID: in.MesaID,
		Staff:  in.Staff,
		Payer:  in.Payer,
		Items:  items,
		Status: models.PedidoAberto,
		StatusHistory: []models.HistoricoStatus{
			{Status: models.PedidoAberto, Timestamp: now, Staff: in.Staff, Note: "Pedido criado"},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	Recompute(p)
	if err := s.Store.Insert(ctx, p); err != nil {
		return nil, fmt.Errorf("error creating order: %w", err)
	}

	publish(ctx, s.Events, s.Log, now, models.EventPedidoNovo, pedidoPayload(p))

	if in.Payer != nil {
		if err := s.Tables.LinkPayerOrder(ctx, in.MesaID, *in.Payer, p.ID); err != nil {
			s.Log.Error(ctx, "payer_link_failed", "order created but payer not linked on table", err,
				slog.String("pedido", p.ID.Hex()), slog.String("mesa", in.MesaID.Hex()))
			return p, &Error{
				Kind:    KindPartialFailure,
				Code:    "PayerLinkFailed",
				Message: "order created but the payer could not be linked to the table",
				Fields:  map[string]interface{}{"pedido": p.ID.Hex(), "identificador": in.Payer.Identifier},
				Err:     err,
			}
		}
	}
	return p, nil
}

func (s *PedidoService) resolveItems(ctx context.Context, in []ItemInput) ([]models.ItemPedido, error) {
	if len(in) == 0 {
		return nil, validation("EmptyOrder", "at least one item is required", nil)
	}
	items := make([]models.ItemPedido, 0, len(in))
	for _, req := range in {
		if req.Quantity < 1 {
			return nil, validation("InvalidQuantity", "quantity must be at least 1", map[string]interface{}{"produto": req.MenuItem, "quantidade": req.Quantity})
		}
		menuItem, err := s.Menu.Resolve(ctx, req.MenuItem)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, notFound("MenuItemNotFound", "menu item not found", map[string]interface{}{"produto": req.MenuItem})
			}
			return nil, fmt.Errorf("error resolving menu item %s: %w", req.MenuItem, err)
		}
		if !menuItem.Available {
			return nil, invalidState("MenuItemUnavailable", fmt.Sprintf("%s is not available", menuItem.Name), map[string]interface{}{"produto": req.MenuItem})
		}
		addons, err := pickAddons(menuItem, req.Addons)
		if err != nil {
			return nil, err
		}
		items = append(items, models.ItemPedido{
			ID:        s.NewID(),
			MenuItem:  req.MenuItem,
			Name:      menuItem.Name,
			Quantity:  req.Quantity,
			UnitPrice: menuItem.Price,
			Addons:    addons,
			Note:      req.Note,
			Status:    models.ItemPendente,
			Prep:      models.TempoPreparo{EstimatedMinutes: menuItem.PrepMinutes},
		})
	}
	return items, nil
}

func pickAddons(item *models.MenuItem, names []string) ([]models.Adicional, error) {
	if len(names) == 0 {
		return nil, nil
	}
	out := make([]models.Adicional, 0, len(names))
	for _, name := range names {
		found := false
		for _, a := range item.Addons {
			if strings.EqualFold(a.Name, name) {
				out = append(out, a)
				found = true
				break
			}
		}
		if !found {
			return nil, validation("UnknownAddon", fmt.Sprintf("%s has no addon %q", item.Name, name), map[string]interface{}{"adicional": name})
		}
	}
	return out, nil
}

func (s *PedidoService) Get(ctx context.Context, id primitive.ObjectID) (*models.Pedido, error) {
	p, err := s.Store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("OrderNotFound", "order not found", map[string]interface{}{"pedido": id.Hex()})
		}
		return nil, fmt.Errorf("error retrieving order %s: %w", id.Hex(), err)
	}
	return p, nil
}

func (s *PedidoService) List(ctx context.Context, filter PedidoFilter) ([]models.Pedido, error) {
	for _, st := range filter.Statuses {
		if !validOrderStatus(st) {
			return nil, validation("InvalidStatus", fmt.Sprintf("unknown order status %q", st), nil)
		}
	}
	return s.Store.List(ctx, filter)
}

// AddItems appends items to an order that is neither paid nor cancelled.
func (s *PedidoService) AddItems(ctx context.Context, id primitive.ObjectID, in []ItemInput) (*models.Pedido, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Settled() {
		return nil, settledError(p)
	}
	items, err := s.resolveItems(ctx, in)
	if err != nil {
		return nil, err
	}
	p.Items = append(p.Items, items...)
	if err := s.save(ctx, p); err != nil {
		return nil, err
	}
	publish(ctx, s.Events, s.Log, s.Now(), models.EventPedidoItem, pedidoPayload(p))
	return p, nil
}

func (s *PedidoService) SetDiscount(ctx context.Context, id primitive.ObjectID, discount float64) (*models.Pedido, error) {
	if discount < 0 {
		return nil, validation("InvalidDiscount", "discount cannot be negative", map[string]interface{}{"desconto": discount})
	}
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Settled() {
		return nil, settledError(p)
	}
	p.Discount = utils.RoundToCents(discount)
	Recompute(p)
	if p.Total < 0 {
		return nil, validation("DiscountExceedsTotal", "discount is greater than the order total", map[string]interface{}{
			"desconto": discount,
			"total":    utils.RoundToCents(p.Subtotal + p.ServiceCharge),
		})
	}
	if err := s.save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// UpdateItemStatus moves one item and then applies the auto-advance rule: all items
// delivered moves an open order to partial; otherwise all items ready or delivered
// moves a partial order to closed. The delivered check wins when both hold.
func (s *PedidoService) UpdateItemStatus(ctx context.Context, id primitive.ObjectID, itemID, status, staff string) (*models.Pedido, error) {
	if !validItemStatus(status) {
		return nil, validation("InvalidItemStatus", fmt.Sprintf("unknown item status %q", status), map[string]interface{}{"status": status})
	}
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	i := p.ItemByID(itemID)
	if i < 0 {
		return nil, notFound("ItemNotFound", "item not found in order", map[string]interface{}{"pedido": id.Hex(), "item": itemID})
	}
	if p.Settled() {
		return nil, settledError(p)
	}

	now := s.Now()
	wasReady := allItems(p.Items, models.ItemPronto, models.ItemEntregue)
	item := &p.Items[i]
	item.Status = status
	switch status {
	case models.ItemPreparando:
		item.Prep.StartedAt = &now
	case models.ItemPronto:
		item.Prep.FinishedAt = &now
	}

	prior := p.Status
	switch {
	case allItems(p.Items, models.ItemEntregue):
		if p.Status == models.PedidoAberto {
			p.Status = models.PedidoParcial
		}
	case allItems(p.Items, models.ItemPronto, models.ItemEntregue) && p.Status == models.PedidoParcial:
		p.Status = models.PedidoFechado
	}
	if p.Status != prior {
		p.StatusHistory = append(p.StatusHistory, models.HistoricoStatus{
			Status: p.Status, Timestamp: now, Staff: staff, Note: "Atualizado pelos itens",
		})
	}

	if err := s.save(ctx, p); err != nil {
		return nil, err
	}

	payload := pedidoPayload(p)
	payload["item"] = itemID
	payload["itemStatus"] = status
	publish(ctx, s.Events, s.Log, now, models.EventPedidoItem, payload)
	if p.Status != prior {
		publish(ctx, s.Events, s.Log, now, models.EventPedidoStatus, pedidoPayload(p))
	}
	if !wasReady && allItems(p.Items, models.ItemPronto, models.ItemEntregue) {
		publish(ctx, s.Events, s.Log, now, models.EventPedidoPronto, pedidoPayload(p))
	}
	return p, nil
}

// UpdateStatus is the direct status set. Paid must go through RegisterPayment and
// nothing leaves paid or cancelled here.
func (s *PedidoService) UpdateStatus(ctx context.Context, id primitive.ObjectID, status, staff string) (*models.Pedido, error) {
	if !validOrderStatus(status) {
		return nil, validation("InvalidStatus", fmt.Sprintf("unknown order status %q", status), map[string]interface{}{"status": status})
	}
	if status == models.PedidoPago {
		return nil, validation("UsePaymentRegistration", "orders are marked paid by registering a payment", nil)
	}
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Settled() {
		return nil, settledError(p)
	}
	if p.Status == status {
		return p, nil
	}
	p.Status = status
	p.StatusHistory = append(p.StatusHistory, models.HistoricoStatus{Status: status, Timestamp: s.Now(), Staff: staff})
	if err := s.save(ctx, p); err != nil {
		return nil, err
	}
	publish(ctx, s.Events, s.Log, s.Now(), models.EventPedidoStatus, pedidoPayload(p))
	return p, nil
}

func (s *PedidoService) Close(ctx context.Context, id primitive.ObjectID, staff string) (*models.Pedido, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Settled() {
		return nil, settledError(p)
	}
	p.Status = models.PedidoFechado
	p.StatusHistory = append(p.StatusHistory, models.HistoricoStatus{Status: p.Status, Timestamp: s.Now(), Staff: staff, Note: "Pedido fechado"})
	if err := s.save(ctx, p); err != nil {
		return nil, err
	}
	publish(ctx, s.Events, s.Log, s.Now(), models.EventPedidoStatus, pedidoPayload(p))
	return p, nil
}

// RegisterPayment settles a single order with one method. The sale is posted to the
// open till when posting is enabled; a missing till does not fail the payment.
func (s *PedidoService) RegisterPayment(ctx context.Context, id primitive.ObjectID, method, staff string) (*models.Pedido, error) {
	if !validOrderMethod(method) {
		return nil, validation("InvalidMethod", fmt.Sprintf("unknown payment method %q", method), map[string]interface{}{"formaPagamento": method})
	}
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Settled() {
		return nil, settledError(p)
	}

	now := s.Now()
	p.Status = models.PedidoPago
	p.PaymentMethod = method
	p.PaidAt = &now
	p.PaidBy = staff
	p.Payment = &models.Pagamento{Method: method, Amount: p.Total, Timestamp: now, Staff: staff}
	p.StatusHistory = append(p.StatusHistory, models.HistoricoStatus{
		Status: p.Status, Timestamp: now, Staff: staff, Note: "Pagamento via " + method,
	})
	if err := s.save(ctx, p); err != nil {
		return nil, err
	}

	postSale(ctx, s.Sales, s.Log, p.ID, p.Total, method)

	payload := pedidoPayload(p)
	payload["formaPagamento"] = method
	publish(ctx, s.Events, s.Log, now, models.EventPagamentoRegistrado, payload)
	return p, nil
}

func (s *PedidoService) Cancel(ctx context.Context, id primitive.ObjectID, reason, staff string) (*models.Pedido, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Settled() {
		return nil, settledError(p)
	}
	if reason == "" {
		reason = defaultCancelReason
	}
	p.Status = models.PedidoCancelado
	p.StatusHistory = append(p.StatusHistory, models.HistoricoStatus{Status: p.Status, Timestamp: s.Now(), Staff: staff, Note: reason})
	if err := s.save(ctx, p); err != nil {
		return nil, err
	}
	publish(ctx, s.Events, s.Log, s.Now(), models.EventPedidoStatus, pedidoPayload(p))
	return p, nil
}

// CancelPayment reverts a paid order to closed. If its table was released in the
// meantime it is reopened so billing can continue. Sales already posted to the till
// are left as they are.
func (s *PedidoService) CancelPayment(ctx context.Context, id primitive.ObjectID, reason, staff string) (*models.Pedido, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != models.PedidoPago {
		return nil, invalidState("NotPaid", "order is not paid", map[string]interface{}{"pedido": id.Hex(), "status": p.Status})
	}
	if reason == "" {
		reason = defaultCancelPaymentReason
	}

	now := s.Now()
	p.Status = models.PedidoFechado
	p.PaymentMethod = ""
	p.PaymentMethods = nil
	p.PaidAt = nil
	p.PaidBy = ""
	p.Payment = nil
	p.StatusHistory = append(p.StatusHistory, models.HistoricoStatus{Status: p.Status, Timestamp: now, Staff: staff, Note: reason})
	if err := s.save(ctx, p); err != nil {
		return nil, err
	}
	publish(ctx, s.Events, s.Log, now, models.EventPagamentoCancelado, pedidoPayload(p))

	mesa, err := s.Tables.Get(ctx, p.MesaID)
	if err == nil && mesa.Status == models.MesaDisponivel {
		_, err = s.Tables.Reopen(ctx, p.MesaID)
	}
	if err != nil {
		s.Log.Error(ctx, "table_reopen_failed", "payment cancelled but table not reopened", err,
			slog.String("pedido", p.ID.Hex()), slog.String("mesa", p.MesaID.Hex()))
		return p, &Error{
			Kind:    KindPartialFailure,
			Code:    "TableReopenFailed",
			Message: "payment cancelled but the table could not be reopened",
			Fields:  map[string]interface{}{"pedido": p.ID.Hex(), "mesa": p.MesaID.Hex()},
			Err:     err,
		}
	}
	return p, nil
}

func (s *PedidoService) SoftDeleteListEntry(ctx context.Context, id primitive.ObjectID, staff string) (*models.Pedido, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	markRemoved(p, staff, s.Now())
	if err := s.save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// SoftDeleteByTableAndDay removes from the history list every paid order of the
// table whose payment falls on the same local calendar day as paymentDate.
func (s *PedidoService) SoftDeleteByTableAndDay(ctx context.Context, mesaID primitive.ObjectID, paymentDate time.Time, staff string) (int, error) {
	from, to := dayBounds(paymentDate, s.Location)
	orders, err := s.Store.List(ctx, PedidoFilter{
		MesaID:         &mesaID,
		Statuses:       []string{models.PedidoPago},
		PaidFrom:       &from,
		PaidTo:         &to,
		IncludeRemoved: true,
	})
	if err != nil {
		return 0, fmt.Errorf("error listing paid orders of table %s: %w", mesaID.Hex(), err)
	}
	now := s.Now()
	removed := 0
	var failed []string
	for i := range orders {
		p := &orders[i]
		if p.RemovedFromList {
			continue
		}
		markRemoved(p, staff, now)
		if err := s.save(ctx, p); err != nil {
			s.Log.Error(ctx, "soft_delete_failed", "failed to remove order from list", err, slog.String("pedido", p.ID.Hex()))
			failed = append(failed, p.ID.Hex())
			continue
		}
		removed++
	}
	if len(failed) > 0 {
		return removed, &Error{
			Kind:    KindPartialFailure,
			Code:    "PartialRemoval",
			Message: fmt.Sprintf("%d of %d orders could not be removed", len(failed), len(failed)+removed),
			Fields:  map[string]interface{}{"falhas": failed, "removidos": removed},
		}
	}
	return removed, nil
}

func (s *PedidoService) Hide(ctx context.Context, id primitive.ObjectID) (*models.Pedido, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	p.HiddenFromList = true
	if err := s.save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PedidoService) MarkVisuallyCompleted(ctx context.Context, id primitive.ObjectID) (*models.Pedido, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	p.VisuallyCompleted = true
	if err := s.save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// PermanentlyDelete removes the order whatever its status.
func (s *PedidoService) PermanentlyDelete(ctx context.Context, id primitive.ObjectID) error {
	if err := s.Store.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("OrderNotFound", "order not found", map[string]interface{}{"pedido": id.Hex()})
		}
		return fmt.Errorf("error deleting order %s: %w", id.Hex(), err)
	}
	s.Log.Warn(ctx, "order_deleted", "order permanently deleted", slog.String("pedido", id.Hex()))
	return nil
}

func (s *PedidoService) save(ctx context.Context, p *models.Pedido) error {
	Recompute(p)
	p.UpdatedAt = s.Now()
	return saveOrder(ctx, s.Store, p)
}

func saveOrder(ctx context.Context, store PedidoStore, p *models.Pedido) error {
	err := store.Replace(ctx, p)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrStale):
		return conflict("OrderChanged", "order was modified concurrently, reload and retry", map[string]interface{}{"pedido": p.ID.Hex()})
	case errors.Is(err, repository.ErrNotFound):
		return notFound("OrderNotFound", "order not found", map[string]interface{}{"pedido": p.ID.Hex()})
	default:
		return fmt.Errorf("error saving order %s: %w", p.ID.Hex(), err)
	}
}

// postSale posts a payment into the open till. Failures are logged, never returned:
// the payment itself already succeeded.
func postSale(ctx context.Context, sales SaleRecorder, log *logger.Logger, orderRef primitive.ObjectID, amount float64, method string) {
	if sales == nil || amount <= 0 {
		return
	}
	_, err := sales.RecordSale(ctx, orderRef, amount, method)
	if err == nil {
		return
	}
	if KindOf(err) == KindInvalidState {
		log.Warn(ctx, "sale_not_posted", "no open till session, sale not posted",
			slog.String("pedido", orderRef.Hex()), slog.Float64("valor", amount))
		return
	}
	log.Error(ctx, "sale_not_posted", "failed to post sale to till", err,
		slog.String("pedido", orderRef.Hex()), slog.Float64("valor", amount))
}

func settledError(p *models.Pedido) error {
	code := "AlreadyPaid"
	if p.Status == models.PedidoCancelado {
		code = "AlreadyCancelled"
	}
	return invalidState(code, "order already "+p.Status, map[string]interface{}{"pedido": p.ID.Hex(), "status": p.Status})
}

func markRemoved(p *models.Pedido, staff string, now time.Time) {
	p.RemovedFromList = true
	p.RemovedBy = staff
	p.RemovedAt = &now
}

// dayBounds returns local midnight and 23:59:59.999 of the day t falls on in loc.
func dayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1).Add(-time.Millisecond)
}

func allItems(items []models.ItemPedido, statuses ...string) bool {
	if len(items) == 0 {
		return false
	}
	for _, it := range items {
		ok := false
		for _, st := range statuses {
			if it.Status == st {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

func validOrderStatus(s string) bool {
	switch s {
	case models.PedidoAberto, models.PedidoParcial, models.PedidoFechado, models.PedidoPago, models.PedidoCancelado:
		return true
	}
	return false
}

func validItemStatus(s string) bool {
	switch s {
	case models.ItemPendente, models.ItemPreparando, models.ItemPronto, models.ItemEntregue, models.ItemCancelado:
		return true
	}
	return false
}

func validOrderMethod(m string) bool {
	switch m {
	case models.PagamentoDinheiro, models.PagamentoCredito, models.PagamentoDebito, models.PagamentoPix, models.PagamentoOutro:
		return true
	}
	return false
}

func pedidoPayload(p *models.Pedido) map[string]interface{} {
	return map[string]interface{}{
		"pedido": p.ID.Hex(),
		"mesa":   p.MesaID.Hex(),
		"status": p.Status,
		"total":  p.Total,
	}
}
