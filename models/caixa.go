package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	CaixaAberto  = "aberto"
	CaixaFechado = "fechado"
)

// PagamentoVale is accepted by the till only (meal vouchers).
const PagamentoVale = "vale"

// CaixaMethods lists the keys of Caixa.PaymentTotals.
var CaixaMethods = []string{
	PagamentoDinheiro,
	PagamentoCredito,
	PagamentoDebito,
	PagamentoPix,
	PagamentoVale,
	PagamentoOutro,
}

// Caixa is a cash-register session. Once closed no field changes.
type Caixa struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Status   string             `bson:"status" json:"status"`
	OpenedAt time.Time          `bson:"dataAbertura" json:"dataAbertura"`
	ClosedAt *time.Time         `bson:"dataFechamento,omitempty" json:"dataFechamento,omitempty"`
	OpenedBy string             `bson:"abertoPor,omitempty" json:"abertoPor,omitempty"`
	ClosedBy string             `bson:"fechadoPor,omitempty" json:"fechadoPor,omitempty"`

	OpeningAmount  float64 `bson:"valorInicial" json:"valorInicial"`
	ClosingAmount  float64 `bson:"valorFinal" json:"valorFinal"`
	ExpectedAmount float64 `bson:"valorEsperado" json:"valorEsperado"`
	Variance       float64 `bson:"diferenca" json:"diferenca"`

	Sales         Vendas               `bson:"vendas" json:"vendas"`
	PaymentTotals map[string]float64   `bson:"totaisPorForma" json:"totaisPorForma"`
	CashOuts      []Movimento          `bson:"sangrias" json:"sangrias"`
	CashIns       []Movimento          `bson:"reforcos" json:"reforcos"`
	OrderRefs     []primitive.ObjectID `bson:"pedidos" json:"pedidos"`

	Notes        string `bson:"observacoes,omitempty" json:"observacoes,omitempty"`
	ClosingNotes string `bson:"observacoesFechamento,omitempty" json:"observacoesFechamento,omitempty"`

	// bumped by every posting so closing can detect a concurrent sale
	Version int64 `bson:"versao" json:"versao"`
}

type Vendas struct {
	Total float64 `bson:"total" json:"total"`
	Count int     `bson:"quantidade" json:"quantidade"`
}

// Movimento is a manual cash movement: a sangria (cash-out) or a reforço (cash-in).
type Movimento struct {
	Amount    float64   `bson:"valor" json:"valor"`
	Reason    string    `bson:"motivo" json:"motivo"`
	Timestamp time.Time `bson:"em" json:"em"`
	Staff     string    `bson:"funcionario,omitempty" json:"funcionario,omitempty"`
}

// Venda is a sale posted into an open session.
type Venda struct {
	OrderRef primitive.ObjectID
	Amount   float64
	Method   string
}

// HasOrder reports whether the order was already posted to this session.
func (c *Caixa) HasOrder(id primitive.ObjectID) bool {
	for _, ref := range c.OrderRefs {
		if ref == id {
			return true
		}
	}
	return false
}
