package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"floorops/models"
	"floorops/services"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func checkTotals(t *testing.T, p *models.Pedido) {
	t.Helper()
	want := *p
	services.Recompute(&want)
	if p.Subtotal != want.Subtotal || p.ServiceCharge != want.ServiceCharge || p.Total != want.Total {
		t.Errorf("stored totals %v/%v/%v disagree with recomputation %v/%v/%v",
			p.Subtotal, p.ServiceCharge, p.Total, want.Subtotal, want.ServiceCharge, want.Total)
	}
}

func TestCreateOrderTotals(t *testing.T) {
	f := newFixture(t)
	m := f.occupiedTable(t, 1)
	p := f.order(t, m.ID)

	if p.Status != models.PedidoAberto {
		t.Errorf("status = %s", p.Status)
	}
	if p.Subtotal != 25 || p.ServiceCharge != 2.5 || p.Total != 27.5 {
		t.Errorf("totals = %v/%v/%v, want 25/2.5/27.5", p.Subtotal, p.ServiceCharge, p.Total)
	}
	if len(p.Items) != 2 || p.Items[0].ID == "" || p.Items[0].ID == p.Items[1].ID {
		t.Fatalf("items = %+v", p.Items)
	}
	if p.Items[0].Name != "Hamburguer" || p.Items[0].UnitPrice != 10 || p.Items[0].Status != models.ItemPendente {
		t.Errorf("snapshot = %+v", p.Items[0])
	}
	if f.events.count(models.EventPedidoNovo) != 1 {
		t.Errorf("events = %v", f.events.names())
	}
}

func TestCreateOrderWithAddons(t *testing.T) {
	f := newFixture(t)
	m := f.occupiedTable(t, 1)
	p, err := f.orders.Create(f.ctx, services.CreatePedidoInput{
		MesaID: m.ID,
		Staff:  f.waiter,
		Items:  []services.ItemInput{{MenuItem: f.burger, Quantity: 2, Addons: []string{"Bacon"}, Note: "sem cebola"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if p.Subtotal != 24 || p.ServiceCharge != 2.4 || p.Total != 26.4 {
		t.Errorf("totals = %v/%v/%v, want 24/2.4/26.4", p.Subtotal, p.ServiceCharge, p.Total)
	}

	_, err = f.orders.Create(f.ctx, services.CreatePedidoInput{
		MesaID: m.ID,
		Staff:  f.waiter,
		Items:  []services.ItemInput{{MenuItem: f.burger, Quantity: 1, Addons: []string{"queijo"}}},
	})
	wantErr(t, err, services.KindValidation, "UnknownAddon")
}

func TestCreateOrderErrors(t *testing.T) {
	f := newFixture(t)
	free := f.table(t, 1)
	m := f.occupiedTable(t, 2)
	item := []services.ItemInput{{MenuItem: f.burger, Quantity: 1}}

	tests := []struct {
		name string
		in   services.CreatePedidoInput
		kind services.Kind
		code string
	}{
		{"table not occupied", services.CreatePedidoInput{MesaID: free.ID, Staff: f.waiter, Items: item}, services.KindInvalidState, "TableNotOccupied"},
		{"unknown table", services.CreatePedidoInput{MesaID: primitive.NewObjectID(), Staff: f.waiter, Items: item}, services.KindNotFound, "TableNotFound"},
		{"missing staff", services.CreatePedidoInput{MesaID: m.ID, Items: item}, services.KindValidation, "MissingStaff"},
		{"no items", services.CreatePedidoInput{MesaID: m.ID, Staff: f.waiter}, services.KindValidation, "EmptyOrder"},
		{"zero quantity", services.CreatePedidoInput{MesaID: m.ID, Staff: f.waiter, Items: []services.ItemInput{{MenuItem: f.burger}}}, services.KindValidation, "InvalidQuantity"},
		{"menu miss", services.CreatePedidoInput{MesaID: m.ID, Staff: f.waiter, Items: []services.ItemInput{{MenuItem: primitive.NewObjectID().Hex(), Quantity: 1}}}, services.KindNotFound, "MenuItemNotFound"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.orders.Create(f.ctx, tt.in)
			wantErr(t, err, tt.kind, tt.code)
		})
	}
}

func TestCreateOrderSnapshotsPrice(t *testing.T) {
	f := newFixture(t)
	m := f.occupiedTable(t, 1)
	p := f.order(t, m.ID)

	id, _ := primitive.ObjectIDFromHex(f.burger)
	if err := f.menu.Put(f.ctx, &models.MenuItem{ID: id, Name: "Hamburguer", Price: 99, Available: true}); err != nil {
		t.Fatal(err)
	}
	got, err := f.orders.Get(f.ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Items[0].UnitPrice != 10 || got.Subtotal != 25 {
		t.Errorf("menu change leaked into order: %+v", got.Items[0])
	}
}

func TestCreateOrderLinksPayer(t *testing.T) {
	f := newFixture(t)
	m := f.occupiedTable(t, 1)
	payer := &models.ClientePedido{Identifier: "joao", Name: "Joao"}
	in := services.CreatePedidoInput{MesaID: m.ID, Staff: f.waiter, Payer: payer,
		Items: []services.ItemInput{{MenuItem: f.fries, Quantity: 1}}}

	first, err := f.orders.Create(f.ctx, in)
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.orders.Create(f.ctx, in)
	if err != nil {
		t.Fatal(err)
	}

	got, _ := f.tables.Get(f.ctx, m.ID)
	if len(got.Payers) != 1 {
		t.Fatalf("payers = %+v", got.Payers)
	}
	orders := got.Payers[0].Orders
	if len(orders) != 2 || orders[0] != first.ID || orders[1] != second.ID {
		t.Errorf("payer orders = %v", orders)
	}
}

type failingLink struct {
	services.TableBilling
}

func (failingLink) LinkPayerOrder(context.Context, primitive.ObjectID, models.ClientePedido, primitive.ObjectID) error {
	return errors.New("connection reset")
}

func TestCreateOrderPayerLinkFailure(t *testing.T) {
	f := newFixture(t)
	m := f.occupiedTable(t, 1)
	f.orders.Tables = failingLink{f.tables}

	p, err := f.orders.Create(f.ctx, services.CreatePedidoInput{
		MesaID: m.ID, Staff: f.waiter,
		Payer: &models.ClientePedido{Identifier: "x", Name: "X"},
		Items: []services.ItemInput{{MenuItem: f.fries, Quantity: 1}},
	})
	wantErr(t, err, services.KindPartialFailure, "PayerLinkFailed")
	if p == nil {
		t.Fatal("order should be returned with the partial failure")
	}
	if _, err := f.orders.Get(f.ctx, p.ID); err != nil {
		t.Errorf("order not persisted: %v", err)
	}
}

func TestUpdateItemStatusAutoAdvance(t *testing.T) {
	f := newFixture(t)
	m := f.occupiedTable(t, 1)
	p := f.order(t, m.ID)
	a, b := p.Items[0].ID, p.Items[1].ID

	got, err := f.orders.UpdateItemStatus(f.ctx, p.ID, a, models.ItemPreparando, "")
	if err != nil {
		t.Fatal(err)
	}
	if got.Items[0].Prep.StartedAt == nil {
		t.Error("startedAt not stamped")
	}
	f.clock.Advance(12 * time.Minute)
	got, _ = f.orders.UpdateItemStatus(f.ctx, p.ID, a, models.ItemPronto, "")
	if got.Items[0].Prep.FinishedAt == nil || !got.Items[0].Prep.FinishedAt.Equal(f.clock.Now()) {
		t.Errorf("finishedAt = %v", got.Items[0].Prep.FinishedAt)
	}

	got, _ = f.orders.UpdateItemStatus(f.ctx, p.ID, a, models.ItemEntregue, "")
	if got.Status != models.PedidoAberto {
		t.Fatalf("status = %s after one delivered item", got.Status)
	}
	got, _ = f.orders.UpdateItemStatus(f.ctx, p.ID, b, models.ItemEntregue, "")
	if got.Status != models.PedidoParcial {
		t.Fatalf("status = %s, want parcial once every item is delivered", got.Status)
	}

	// all delivered keeps winning over the ready-or-delivered branch
	got, _ = f.orders.UpdateItemStatus(f.ctx, p.ID, b, models.ItemEntregue, "")
	if got.Status != models.PedidoParcial {
		t.Fatalf("status = %s, want parcial to stick", got.Status)
	}

	got, _ = f.orders.UpdateItemStatus(f.ctx, p.ID, b, models.ItemPronto, "")
	if got.Status != models.PedidoFechado {
		t.Fatalf("status = %s, want fechado from parcial with items ready or delivered", got.Status)
	}
	checkTotals(t, got)

	if n := f.events.count(models.EventPedidoPronto); n != 1 {
		t.Errorf("pedido:pronto emitted %d times, want 1", n)
	}
}

func TestUpdateItemStatusErrors(t *testing.T) {
	f := newFixture(t)
	m := f.occupiedTable(t, 1)
	p := f.order(t, m.ID)

	_, err := f.orders.UpdateItemStatus(f.ctx, p.ID, "nope", models.ItemPronto, "")
	wantErr(t, err, services.KindNotFound, "ItemNotFound")

	_, err = f.orders.UpdateItemStatus(f.ctx, primitive.NewObjectID(), p.Items[0].ID, models.ItemPronto, "")
	wantErr(t, err, services.KindNotFound, "OrderNotFound")

	_, err = f.orders.UpdateItemStatus(f.ctx, p.ID, p.Items[0].ID, "queimado", "")
	wantErr(t, err, services.KindValidation, "InvalidItemStatus")

	if _, err := f.orders.RegisterPayment(f.ctx, p.ID, models.PagamentoPix, ""); err != nil {
		t.Fatal(err)
	}
	_, err = f.orders.UpdateItemStatus(f.ctx, p.ID, p.Items[0].ID, models.ItemPronto, "")
	wantErr(t, err, services.KindInvalidState, "AlreadyPaid")
}

func TestCloseAndPayment(t *testing.T) {
	f := newFixture(t)
	m := f.occupiedTable(t, 1)
	p := f.order(t, m.ID)

	got, err := f.orders.Close(f.ctx, p.ID, f.waiter)
	if err != nil || got.Status != models.PedidoFechado {
		t.Fatalf("Close() = %v, %v", got, err)
	}

	_, err = f.orders.RegisterPayment(f.ctx, p.ID, "cheque", "")
	wantErr(t, err, services.KindValidation, "InvalidMethod")

	got, err = f.orders.RegisterPayment(f.ctx, p.ID, models.PagamentoCredito, f.waiter)
	if err != nil {
		t.Fatalf("RegisterPayment() error = %v", err)
	}
	if got.Status != models.PedidoPago || got.PaymentMethod != models.PagamentoCredito || got.PaidAt == nil || got.PaidBy != f.waiter {
		t.Errorf("payment not stamped: %+v", got)
	}
	if got.Payment == nil || got.Payment.Amount != 27.5 {
		t.Errorf("payment = %+v", got.Payment)
	}

	_, err = f.orders.RegisterPayment(f.ctx, p.ID, models.PagamentoPix, "")
	wantErr(t, err, services.KindInvalidState, "AlreadyPaid")
	_, err = f.orders.Close(f.ctx, p.ID, "")
	wantErr(t, err, services.KindInvalidState, "AlreadyPaid")
	_, err = f.orders.Cancel(f.ctx, p.ID, "", "")
	wantErr(t, err, services.KindInvalidState, "AlreadyPaid")
}

func TestRegisterPaymentPostsSale(t *testing.T) {
	f := newFixture(t)
	m := f.occupiedTable(t, 1)
	p := f.order(t, m.ID)

	// no till open: the payment still goes through
	if _, err := f.orders.RegisterPayment(f.ctx, p.ID, models.PagamentoDinheiro, ""); err != nil {
		t.Fatalf("payment without till failed: %v", err)
	}

	if _, err := f.till.Open(f.ctx, 100, "", ""); err != nil {
		t.Fatal(err)
	}
	q := f.order(t, m.ID)
	if _, err := f.orders.RegisterPayment(f.ctx, q.ID, models.PagamentoDinheiro, ""); err != nil {
		t.Fatal(err)
	}
	c, err := f.till.Current(f.ctx)
	if err != nil {
		t.Fatal(err)
	}
	if c.Sales.Total != 27.5 || c.Sales.Count != 1 || c.PaymentTotals[models.PagamentoDinheiro] != 27.5 {
		t.Errorf("till = %+v", c.Sales)
	}
	if !c.HasOrder(q.ID) || c.HasOrder(p.ID) {
		t.Errorf("orderRefs = %v", c.OrderRefs)
	}
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	m := f.occupiedTable(t, 1)
	p := f.order(t, m.ID)

	got, err := f.orders.Cancel(f.ctx, p.ID, "", f.waiter)
	if err != nil {
		t.Fatal(err)
	}
	last := got.StatusHistory[len(got.StatusHistory)-1]
	if got.Status != models.PedidoCancelado || last.Note != "Pedido cancelado" {
		t.Errorf("status %s, history %+v", got.Status, last)
	}
	_, err = f.orders.RegisterPayment(f.ctx, p.ID, models.PagamentoPix, "")
	wantErr(t, err, services.KindInvalidState, "AlreadyCancelled")
	_, err = f.orders.UpdateStatus(f.ctx, p.ID, models.PedidoAberto, "")
	wantErr(t, err, services.KindInvalidState, "AlreadyCancelled")
	_, err = f.orders.AddItems(f.ctx, p.ID, []services.ItemInput{{MenuItem: f.fries, Quantity: 1}})
	wantErr(t, err, services.KindInvalidState, "AlreadyCancelled")
}

func TestCancelPaymentReopensTable(t *testing.T) {
	f := newFixture(t)
	m := f.occupiedTable(t, 1)
	p := f.order(t, m.ID)

	_, err := f.orders.CancelPayment(f.ctx, p.ID, "", "")
	wantErr(t, err, services.KindInvalidState, "NotPaid")

	if _, err := f.orders.RegisterPayment(f.ctx, p.ID, models.PagamentoDebito, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := f.tables.Release(f.ctx, m.ID, 27.5, ""); err != nil {
		t.Fatal(err)
	}

	got, err := f.orders.CancelPayment(f.ctx, p.ID, "cobrado errado", f.waiter)
	if err != nil {
		t.Fatalf("CancelPayment() error = %v", err)
	}
	if got.Status != models.PedidoFechado || got.PaymentMethod != "" || got.PaidAt != nil || got.PaidBy != "" || got.Payment != nil {
		t.Errorf("payment not cleared: %+v", got)
	}
	if last := got.StatusHistory[len(got.StatusHistory)-1]; last.Note != "cobrado errado" {
		t.Errorf("history note = %q", last.Note)
	}
	table, _ := f.tables.Get(f.ctx, m.ID)
	if table.Status != models.MesaOcupada {
		t.Errorf("table status = %s, want reopened", table.Status)
	}

	if _, err := f.orders.RegisterPayment(f.ctx, p.ID, models.PagamentoPix, ""); err != nil {
		t.Errorf("paying again after cancellation failed: %v", err)
	}
}

func TestDiscountAndItems(t *testing.T) {
	f := newFixture(t)
	m := f.occupiedTable(t, 1)
	p := f.order(t, m.ID)

	got, err := f.orders.SetDiscount(f.ctx, p.ID, 5)
	if err != nil {
		t.Fatal(err)
	}
	if got.Total != 22.5 {
		t.Errorf("total = %v, want 22.5", got.Total)
	}
	_, err = f.orders.SetDiscount(f.ctx, p.ID, -1)
	wantErr(t, err, services.KindValidation, "InvalidDiscount")
	_, err = f.orders.SetDiscount(f.ctx, p.ID, 30)
	wantErr(t, err, services.KindValidation, "DiscountExceedsTotal")

	got, err = f.orders.AddItems(f.ctx, p.ID, []services.ItemInput{{MenuItem: f.fries, Quantity: 3}})
	if err != nil {
		t.Fatal(err)
	}
	if got.Subtotal != 40 || got.ServiceCharge != 4 || got.Total != 39 {
		t.Errorf("totals = %v/%v/%v, want 40/4/39", got.Subtotal, got.ServiceCharge, got.Total)
	}
	checkTotals(t, got)
}

// totalsAddUp checks that the stored parts sum to the stored total to the cent.
func totalsAddUp(t *testing.T, p *models.Pedido) {
	t.Helper()
	sum := decimal.NewFromFloat(p.Subtotal).Add(decimal.NewFromFloat(p.ServiceCharge)).Sub(decimal.NewFromFloat(p.Discount))
	if !sum.Equal(decimal.NewFromFloat(p.Total)) {
		t.Errorf("subtotal %v + service %v - discount %v = %v, stored total %v",
			p.Subtotal, p.ServiceCharge, p.Discount, sum, p.Total)
	}
}

func TestSetDiscountRoundsToCents(t *testing.T) {
	tests := []struct {
		discount     float64
		wantDiscount float64
		wantTotal    float64
	}{
		{1.234, 1.23, 26.27},
		{0.005, 0.01, 27.49},
		{2.5, 2.5, 25},
	}
	for _, tt := range tests {
		f := newFixture(t)
		m := f.occupiedTable(t, 1)
		p := f.order(t, m.ID)

		got, err := f.orders.SetDiscount(f.ctx, p.ID, tt.discount)
		if err != nil {
			t.Fatalf("SetDiscount(%v): %v", tt.discount, err)
		}
		if got.Discount != tt.wantDiscount || got.Total != tt.wantTotal {
			t.Errorf("SetDiscount(%v) = discount %v total %v, want %v %v",
				tt.discount, got.Discount, got.Total, tt.wantDiscount, tt.wantTotal)
		}
		totalsAddUp(t, got)

		stored, err := f.orders.Get(f.ctx, p.ID)
		if err != nil {
			t.Fatal(err)
		}
		totalsAddUp(t, stored)
	}
}

func TestRecomputeRoundsParts(t *testing.T) {
	p := &models.Pedido{
		Items:    []models.ItemPedido{{Quantity: 1, UnitPrice: 10}},
		Discount: 1.234,
	}
	services.Recompute(p)
	if p.Subtotal != 10 || p.ServiceCharge != 1 || p.Discount != 1.23 || p.Total != 9.77 {
		t.Errorf("totals = %v/%v/%v/%v, want 10/1/1.23/9.77", p.Subtotal, p.ServiceCharge, p.Discount, p.Total)
	}
	totalsAddUp(t, p)
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture(t)
	m := f.occupiedTable(t, 1)
	p := f.order(t, m.ID)

	_, err := f.orders.UpdateStatus(f.ctx, p.ID, models.PedidoPago, "")
	wantErr(t, err, services.KindValidation, "UsePaymentRegistration")
	_, err = f.orders.UpdateStatus(f.ctx, p.ID, "servido", "")
	wantErr(t, err, services.KindValidation, "InvalidStatus")

	got, err := f.orders.UpdateStatus(f.ctx, p.ID, models.PedidoParcial, f.waiter)
	if err != nil || got.Status != models.PedidoParcial {
		t.Fatalf("UpdateStatus() = %v, %v", got, err)
	}
	if n := len(got.StatusHistory); n != 2 {
		t.Errorf("history length = %d", n)
	}
}

func TestSoftDeleteByTableAndDay(t *testing.T) {
	f := newFixture(t)
	m := f.occupiedTable(t, 1)
	other := f.occupiedTable(t, 2)

	f.clock.now = time.Date(2026, 3, 10, 23, 20, 0, 0, brt)
	a, b := f.order(t, m.ID), f.order(t, m.ID)
	foreign := f.order(t, other.ID)
	for _, p := range []*models.Pedido{a, b, foreign} {
		if _, err := f.orders.RegisterPayment(f.ctx, p.ID, models.PagamentoPix, ""); err != nil {
			t.Fatal(err)
		}
	}
	f.clock.Advance(time.Hour) // 00:20 of the next local day
	late := f.order(t, m.ID)
	if _, err := f.orders.RegisterPayment(f.ctx, late.ID, models.PagamentoPix, ""); err != nil {
		t.Fatal(err)
	}
	open := f.order(t, m.ID)

	n, err := f.orders.SoftDeleteByTableAndDay(f.ctx, m.ID, time.Date(2026, 3, 10, 9, 0, 0, 0, brt), f.waiter)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("removed %d orders, want 2", n)
	}

	listed, err := f.orders.List(f.ctx, services.PedidoFilter{MesaID: &m.ID})
	if err != nil {
		t.Fatal(err)
	}
	ids := map[primitive.ObjectID]bool{}
	for _, p := range listed {
		ids[p.ID] = true
	}
	if ids[a.ID] || ids[b.ID] || !ids[late.ID] || !ids[open.ID] {
		t.Errorf("listed = %v", ids)
	}
	got, _ := f.orders.Get(f.ctx, a.ID)
	if !got.RemovedFromList || got.RemovedBy != f.waiter || got.Status != models.PedidoPago {
		t.Errorf("removed order = %+v", got)
	}
	if g, _ := f.orders.Get(f.ctx, foreign.ID); g.RemovedFromList {
		t.Error("order of another table removed")
	}
}

func TestPresentationFlagsAndDelete(t *testing.T) {
	f := newFixture(t)
	m := f.occupiedTable(t, 1)
	p := f.order(t, m.ID)

	got, err := f.orders.MarkVisuallyCompleted(f.ctx, p.ID)
	if err != nil || !got.VisuallyCompleted || got.Status != models.PedidoAberto {
		t.Fatalf("MarkVisuallyCompleted() = %+v, %v", got, err)
	}
	got, err = f.orders.SoftDeleteListEntry(f.ctx, p.ID, f.waiter)
	if err != nil || !got.RemovedFromList || got.Total != 27.5 {
		t.Fatalf("SoftDeleteListEntry() = %+v, %v", got, err)
	}
	if _, err := f.orders.RegisterPayment(f.ctx, p.ID, models.PagamentoPix, ""); err != nil {
		t.Fatal(err)
	}
	if err := f.orders.PermanentlyDelete(f.ctx, p.ID); err != nil {
		t.Fatalf("PermanentlyDelete() error = %v", err)
	}
	_, err = f.orders.Get(f.ctx, p.ID)
	wantErr(t, err, services.KindNotFound, "OrderNotFound")
	err = f.orders.PermanentlyDelete(f.ctx, p.ID)
	wantErr(t, err, services.KindNotFound, "OrderNotFound")
}
