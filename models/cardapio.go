package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// MenuItem is read from the menu collection when an order is created. Only the
// name, price and addon prices are snapshotted into the order.
type MenuItem struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"nome" json:"nome"`
	Price       float64            `bson:"preco" json:"preco"`
	Addons      []Adicional        `bson:"adicionais,omitempty" json:"adicionais,omitempty"`
	PrepMinutes int                `bson:"tempoPreparo,omitempty" json:"tempoPreparo,omitempty"`
	Available   bool               `bson:"disponivel" json:"disponivel"`
}

// Staff roles.
const (
	CargoGarcom  = "garcom"
	CargoCaixa   = "caixa"
	CargoCozinha = "cozinha"
	CargoGerente = "gerente"
)

type Funcionario struct {
	ID       primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name     string               `bson:"nome" json:"nome"`
	Phone    string               `bson:"telefone" json:"telefone"`
	Password string               `bson:"senha,omitempty" json:"-"`
	Role     string               `bson:"cargo" json:"cargo"`
	Tables   []primitive.ObjectID `bson:"mesasAtendidas,omitempty" json:"mesasAtendidas,omitempty"`
}
