package models

import "time"

// Event names emitted by the core.
const (
	EventMesaOcupada         = "mesa:ocupada"
	EventMesaLiberada        = "mesa:liberada"
	EventMesaUnida           = "mesa:unida"
	EventMesaAtualizada      = "mesa:atualizada"
	EventPedidoNovo          = "pedido:novo"
	EventPedidoStatus        = "pedido:status"
	EventPedidoItem          = "pedido:item"
	EventPedidoPronto        = "pedido:pronto"
	EventPagamentoRegistrado = "pagamento:registrado"
	EventPagamentoCancelado  = "pagamento:cancelado"
	EventCaixaAberto         = "caixa:aberto"
	EventCaixaFechado        = "caixa:fechado"
	EventCaixaVenda          = "caixa:venda"
	EventCaixaSangria        = "caixa:sangria"
	EventCaixaReforco        = "caixa:reforco"
)

type Event struct {
	Name      string                 `json:"evento"`
	Payload   map[string]interface{} `json:"dados"`
	Timestamp time.Time              `json:"em"`
}
