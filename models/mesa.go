package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Mesa statuses.
const (
	MesaDisponivel = "disponivel"
	MesaOcupada    = "ocupada"
	MesaReservada  = "reservada"
	MesaManutencao = "manutencao"
)

// Floor areas.
const (
	AreaInterna   = "interna"
	AreaExterna   = "externa"
	AreaVaranda   = "varanda"
	AreaPrivativa = "privativa"
)

// Mesa is a physical seating unit. Occupancy, payers and unions are transient and
// only present while the table is occupied.
type Mesa struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Number       int                  `bson:"numero" json:"numero"`
	Capacity     int                  `bson:"capacidade" json:"capacidade"`
	Status       string               `bson:"status" json:"status"`
	Location     Localizacao          `bson:"localizacao" json:"localizacao"`
	Area         string               `bson:"area" json:"area"`
	Occupancy    *Ocupacao            `bson:"ocupacaoAtual,omitempty" json:"ocupacaoAtual,omitempty"`
	ServedBy     []Atendimento        `bson:"atendidoPor" json:"atendidoPor"`
	UnitedTables []primitive.ObjectID `bson:"mesasUnidas,omitempty" json:"mesasUnidas,omitempty"`
	UnitedInto   *primitive.ObjectID  `bson:"unidaA,omitempty" json:"unidaA,omitempty"`
	Payers       []Pagante            `bson:"pagantes,omitempty" json:"pagantes,omitempty"`
	History      []HistoricoMesa      `bson:"historico" json:"historico"`
	Version      int64                `bson:"versao" json:"versao"`
	CreatedAt    time.Time            `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time            `bson:"updated_at" json:"updated_at"`
}

type Localizacao struct {
	X float64 `bson:"x" json:"x"`
	Y float64 `bson:"y" json:"y"`
}

type Ocupacao struct {
	StartTime         time.Time `bson:"inicio" json:"inicio"`
	ClientCount       int       `bson:"clientes" json:"clientes"`
	EstimatedDuration int       `bson:"duracaoEstimada,omitempty" json:"duracaoEstimada,omitempty"` // minutes
}

type Atendimento struct {
	Staff     string    `bson:"funcionario" json:"funcionario"`
	Timestamp time.Time `bson:"em" json:"em"`
}

// Pagante is a sub-biller of the table. Orders is a non-owning index of the orders
// assigned to this payer.
type Pagante struct {
	Name       string               `bson:"nome" json:"nome"`
	Identifier string               `bson:"identificador" json:"identificador"`
	Orders     []primitive.ObjectID `bson:"pedidos" json:"pedidos"`
}

type HistoricoMesa struct {
	Timestamp       time.Time `bson:"em" json:"em"`
	PriorStatus     string    `bson:"statusAnterior" json:"statusAnterior"`
	Staff           string    `bson:"funcionario,omitempty" json:"funcionario,omitempty"`
	DurationMinutes int       `bson:"duracaoMinutos" json:"duracaoMinutos"`
	AmountConsumed  float64   `bson:"valorConsumido" json:"valorConsumido"`
}

// PayerIndex returns the position of the payer with the given identifier, or -1.
func (m *Mesa) PayerIndex(identifier string) int {
	for i, p := range m.Payers {
		if p.Identifier == identifier {
			return i
		}
	}
	return -1
}

// Area describes a floor area: its drawing bounds and an optional floor-plan image.
type Area struct {
	Name       string    `bson:"_id" json:"area"`
	PlanURL    string    `bson:"plantaURL,omitempty" json:"plantaURL,omitempty"`
	PreviewURL string    `bson:"plantaPreviewURL,omitempty" json:"plantaPreviewURL,omitempty"`
	UpdatedAt  time.Time `bson:"updated_at" json:"updated_at"`
}
