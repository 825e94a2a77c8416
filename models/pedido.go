package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Pedido statuses.
const (
	PedidoAberto    = "aberto"
	PedidoParcial   = "parcial"
	PedidoFechado   = "fechado"
	PedidoPago      = "pago"
	PedidoCancelado = "cancelado"
)

// Item statuses.
const (
	ItemPendente   = "pendente"
	ItemPreparando = "preparando"
	ItemPronto     = "pronto"
	ItemEntregue   = "entregue"
	ItemCancelado  = "cancelado"
)

// Payment methods accepted on orders.
const (
	PagamentoDinheiro = "dinheiro"
	PagamentoCredito  = "credito"
	PagamentoDebito   = "debito"
	PagamentoPix      = "pix"
	PagamentoOutro    = "outro"
)

// Pedido is a tab of items tied to one table and the staff member who opened it.
// Subtotal, ServiceCharge and Total are derived from Items and Discount.
type Pedido struct {
	ID     primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	MesaID primitive.ObjectID `bson:"mesa" json:"mesa"`
	Staff  string             `bson:"garcom" json:"garcom"`
	Payer  *ClientePedido     `bson:"cliente,omitempty" json:"cliente,omitempty"`
	Items  []ItemPedido       `bson:"itens" json:"itens"`
	Status string             `bson:"status" json:"status"`

	Subtotal      float64 `bson:"subtotal" json:"subtotal"`
	ServiceCharge float64 `bson:"taxaServico" json:"taxaServico"`
	Discount      float64 `bson:"desconto" json:"desconto"`
	Total         float64 `bson:"total" json:"total"`

	PaymentMethod  string              `bson:"formaPagamento" json:"formaPagamento"`
	PaymentMethods []string            `bson:"formasPagamento,omitempty" json:"formasPagamento,omitempty"`
	PaidAt         *time.Time          `bson:"dataPagamento,omitempty" json:"dataPagamento,omitempty"`
	PaidBy         string              `bson:"pagoPor,omitempty" json:"pagoPor,omitempty"`
	Payment        *Pagamento          `bson:"pagamento,omitempty" json:"pagamento,omitempty"`
	PaymentRecords []RegistroPagamento `bson:"historicoPagamentos,omitempty" json:"historicoPagamentos,omitempty"`

	StatusHistory []HistoricoStatus `bson:"historicoStatus" json:"historicoStatus"`

	// presentation-only flags
	RemovedFromList   bool       `bson:"removidoDaLista" json:"removidoDaLista"`
	RemovedBy         string     `bson:"removidoPor,omitempty" json:"removidoPor,omitempty"`
	RemovedAt         *time.Time `bson:"removidoEm,omitempty" json:"removidoEm,omitempty"`
	HiddenFromList    bool       `bson:"ocultoDaLista" json:"ocultoDaLista"`
	VisuallyCompleted bool       `bson:"concluidoVisualmente" json:"concluidoVisualmente"`

	Version   int64     `bson:"versao" json:"versao"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

type ClientePedido struct {
	Identifier string `bson:"identificador" json:"identificador"`
	Name       string `bson:"nome" json:"nome"`
}

type ItemPedido struct {
	ID        string       `bson:"id" json:"id"`
	MenuItem  string       `bson:"produto" json:"produto"`
	Name      string       `bson:"nome" json:"nome"`
	Quantity  int          `bson:"quantidade" json:"quantidade"`
	UnitPrice float64      `bson:"precoUnitario" json:"precoUnitario"`
	Addons    []Adicional  `bson:"adicionais,omitempty" json:"adicionais,omitempty"`
	Note      string       `bson:"observacao,omitempty" json:"observacao,omitempty"`
	Status    string       `bson:"status" json:"status"`
	Prep      TempoPreparo `bson:"preparo" json:"preparo"`
}

type Adicional struct {
	Name       string  `bson:"nome" json:"nome"`
	ExtraPrice float64 `bson:"preco" json:"preco"`
}

type TempoPreparo struct {
	EstimatedMinutes int        `bson:"estimadoMin,omitempty" json:"estimadoMin,omitempty"`
	StartedAt        *time.Time `bson:"inicio,omitempty" json:"inicio,omitempty"`
	FinishedAt       *time.Time `bson:"fim,omitempty" json:"fim,omitempty"`
}

// Pagamento is the payment stamped by a direct (single order) payment.
type Pagamento struct {
	Method    string    `bson:"forma" json:"forma"`
	Amount    float64   `bson:"valor" json:"valor"`
	Timestamp time.Time `bson:"data" json:"data"`
	Staff     string    `bson:"funcionario,omitempty" json:"funcionario,omitempty"`
}

// RegistroPagamento is one payer's share recorded by a split payment.
type RegistroPagamento struct {
	ID             string    `bson:"id" json:"id"`
	Name           string    `bson:"nome" json:"nome"`
	Method         string    `bson:"forma" json:"forma"`
	Amount         float64   `bson:"valor" json:"valor"`
	AmountTendered float64   `bson:"valorRecebido,omitempty" json:"valorRecebido,omitempty"`
	Change         float64   `bson:"troco,omitempty" json:"troco,omitempty"`
	Timestamp      time.Time `bson:"data" json:"data"`
	Staff          string    `bson:"funcionario,omitempty" json:"funcionario,omitempty"`
}

type HistoricoStatus struct {
	Status    string    `bson:"status" json:"status"`
	Timestamp time.Time `bson:"em" json:"em"`
	Staff     string    `bson:"funcionario,omitempty" json:"funcionario,omitempty"`
	Note      string    `bson:"observacao,omitempty" json:"observacao,omitempty"`
}

// ItemByID returns the index of the item with the given id, or -1.
func (p *Pedido) ItemByID(id string) int {
	for i := range p.Items {
		if p.Items[i].ID == id {
			return i
		}
	}
	return -1
}

// Settled reports whether the order is in a status that rejects payment and item changes.
func (p *Pedido) Settled() bool {
	return p.Status == PedidoPago || p.Status == PedidoCancelado
}
