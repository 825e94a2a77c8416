package services_test

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"floorops/logger"
	"floorops/models"
	"floorops/repository/memory"
	"floorops/services"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var brt = time.FixedZone("BRT", -3*60*60)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recorder struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *recorder) Publish(_ context.Context, e models.Event) error {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	return nil
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Name)
	}
	return out
}

func (r *recorder) count(name string) int {
	n := 0
	for _, got := range r.names() {
		if got == name {
			n++
		}
	}
	return n
}

type fixture struct {
	ctx     context.Context
	clock   *clock
	events  *recorder
	mesas   *memory.MesaStore
	pedidos *memory.PedidoStore
	caixas  *memory.CaixaStore
	menu    *memory.MenuStore
	staff   *memory.StaffStore

	tables *services.MesaService
	orders *services.PedidoService
	split  *services.SplitService
	till   *services.CaixaService

	burger string
	fries  string
	waiter string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:     context.Background(),
		clock:   &clock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, brt)},
		events:  &recorder{},
		mesas:   memory.NewMesaStore(),
		pedidos: memory.NewPedidoStore(),
		caixas:  memory.NewCaixaStore(),
		menu:    memory.NewMenuStore(),
		staff:   memory.NewStaffStore(),
	}
	log := logger.Discard()

	f.tables = services.NewMesaService(f.mesas, f.staff, f.events, log)
	f.tables.Now = f.clock.Now
	f.tables.SetRand(rand.New(rand.NewSource(7)))

	f.till = services.NewCaixaService(f.caixas, f.events, log)
	f.till.Now = f.clock.Now
	f.till.Location = brt

	f.orders = services.NewPedidoService(f.pedidos, f.tables, f.menu, f.events, log)
	f.orders.Now = f.clock.Now
	f.orders.Location = brt
	f.orders.Sales = f.till

	f.split = services.NewSplitService(f.pedidos, f.mesas, f.events, log)
	f.split.Now = f.clock.Now
	f.split.Sales = f.till

	burger := &models.MenuItem{Name: "Hamburguer", Price: 10, Available: true, PrepMinutes: 15,
		Addons: []models.Adicional{{Name: "bacon", ExtraPrice: 2}}}
	fries := &models.MenuItem{Name: "Batata frita", Price: 5, Available: true}
	for _, item := range []*models.MenuItem{burger, fries} {
		if err := f.menu.Put(f.ctx, item); err != nil {
			t.Fatalf("seed menu: %v", err)
		}
	}
	f.burger, f.fries = burger.ID.Hex(), fries.ID.Hex()

	waiter := &models.Funcionario{Name: "Ana", Phone: "11999990000", Role: models.CargoGarcom}
	if err := f.staff.Insert(f.ctx, waiter); err != nil {
		t.Fatalf("seed staff: %v", err)
	}
	f.waiter = waiter.ID.Hex()
	return f
}

func (f *fixture) table(t *testing.T, number int) *models.Mesa {
	t.Helper()
	m, err := f.tables.Create(f.ctx, services.CreateMesaInput{Number: &number, Capacity: intPtr(4)})
	if err != nil {
		t.Fatalf("create table %d: %v", number, err)
	}
	return m
}

func (f *fixture) occupiedTable(t *testing.T, number int) *models.Mesa {
	t.Helper()
	m := f.table(t, number)
	m, err := f.tables.Occupy(f.ctx, m.ID, 2, f.waiter, 60)
	if err != nil {
		t.Fatalf("occupy table %d: %v", number, err)
	}
	return m
}

// order creates burger x2 + fries x1 on the table: subtotal 25.00, total 27.50.
func (f *fixture) order(t *testing.T, mesaID primitive.ObjectID) *models.Pedido {
	t.Helper()
	p, err := f.orders.Create(f.ctx, services.CreatePedidoInput{
		MesaID: mesaID,
		Staff:  f.waiter,
		Items: []services.ItemInput{
			{MenuItem: f.burger, Quantity: 2},
			{MenuItem: f.fries, Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return p
}

func wantErr(t *testing.T, err error, kind services.Kind, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s/%s error, got nil", kind, code)
	}
	if got := services.KindOf(err); got != kind {
		t.Fatalf("kind = %q, want %q (err: %v)", got, kind, err)
	}
	if code != "" && services.CodeOf(err) != code {
		t.Fatalf("code = %q, want %q (err: %v)", services.CodeOf(err), code, err)
	}
}

func intPtr(v int) *int { return &v }
