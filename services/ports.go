package services

import (
	"context"
	"time"

	"floorops/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MesaStore persists tables. Replace is conditional on the version the caller read
// and returns repository.ErrStale when another writer got there first.
type MesaStore interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Mesa, error)
	List(ctx context.Context, filter MesaFilter) ([]models.Mesa, error)
	MaxNumber(ctx context.Context) (int, error)
	Insert(ctx context.Context, m *models.Mesa) error
	Replace(ctx context.Context, m *models.Mesa) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type MesaFilter struct {
	Area   string
	Status string
}

// PedidoStore persists orders. Replace has the same conditional semantics as MesaStore.
type PedidoStore interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Pedido, error)
	List(ctx context.Context, filter PedidoFilter) ([]models.Pedido, error)
	Insert(ctx context.Context, p *models.Pedido) error
	Replace(ctx context.Context, p *models.Pedido) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type PedidoFilter struct {
	MesaID         *primitive.ObjectID
	IDs            []primitive.ObjectID
	Statuses       []string
	PaidFrom       *time.Time
	PaidTo         *time.Time
	IncludeRemoved bool
}

// CaixaStore persists till sessions. Postings are applied atomically by the store and
// only to a session that is still open; closing is conditional on the version read.
type CaixaStore interface {
	Insert(ctx context.Context, c *models.Caixa) error
	FindOpen(ctx context.Context) (*models.Caixa, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Caixa, error)
	AddSale(ctx context.Context, id primitive.ObjectID, sale models.Venda) (*models.Caixa, error)
	AddCashOut(ctx context.Context, id primitive.ObjectID, m models.Movimento) (*models.Caixa, error)
	AddCashIn(ctx context.Context, id primitive.ObjectID, m models.Movimento) (*models.Caixa, error)
	Close(ctx context.Context, c *models.Caixa) error
	ListOpenedBetween(ctx context.Context, from, to time.Time) ([]models.Caixa, error)
}

// MenuLookup resolves a menu item reference to its current name and price.
type MenuLookup interface {
	Resolve(ctx context.Context, ref string) (*models.MenuItem, error)
}

// StaffDirectory maintains the per-staff assigned tables index. staff is the hex id
// carried in the staff token.
type StaffDirectory interface {
	AttachTable(ctx context.Context, staff string, mesaID primitive.ObjectID) error
	DetachTable(ctx context.Context, staff string, mesaID primitive.ObjectID) error
}

// Notifier delivers events, best-effort.
type Notifier interface {
	Publish(ctx context.Context, e models.Event) error
}

// SaleRecorder posts a completed sale into the open till session.
type SaleRecorder interface {
	RecordSale(ctx context.Context, orderRef primitive.ObjectID, amount float64, method string) (*models.Caixa, error)
}

type nopNotifier struct{}

func (nopNotifier) Publish(context.Context, models.Event) error { return nil }

// TableBilling is the part of the table registry the order ledger depends on.
type TableBilling interface {
	Get(ctx context.Context, id primitive.ObjectID) (*models.Mesa, error)
	LinkPayerOrder(ctx context.Context, id primitive.ObjectID, payer models.ClientePedido, orderID primitive.ObjectID) error
	Reopen(ctx context.Context, id primitive.ObjectID) (*models.Mesa, error)
}
