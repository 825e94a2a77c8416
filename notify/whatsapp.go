package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"floorops/models"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// WhatsAppSink texts the floor team when an order is ready and management when
// the till is closed. Other events are ignored.
type WhatsAppSink struct {
	client *twilio.RestClient
	from   string
	to     []string
}

func NewWhatsAppSink(accountSid, authToken, from string, to []string) *WhatsAppSink {
	return &WhatsAppSink{
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSid,
			Password: authToken,
		}),
		from: from,
		to:   to,
	}
}

func (s *WhatsAppSink) Publish(_ context.Context, e models.Event) error {
	body, ok := WhatsAppMessage(e)
	if !ok {
		return nil
	}
	var errs []error
	for _, to := range s.to {
		params := &twilioApi.CreateMessageParams{}
		params.SetTo(whatsappAddr(to))
		params.SetFrom(whatsappAddr(s.from))
		params.SetBody(body)
		if _, err := s.client.Api.CreateMessage(params); err != nil {
			errs = append(errs, fmt.Errorf("whatsapp to %s: %w", to, err))
		}
	}
	return errors.Join(errs...)
}

// WhatsAppMessage renders the text sent for e, or false when e is not texted.
func WhatsAppMessage(e models.Event) (string, bool) {
	switch e.Name {
	case models.EventPedidoPronto:
		return fmt.Sprintf("Pedido %s pronto para servir (total R$ %s).",
			shortID(e.Payload["pedido"]), brl(e.Payload["total"])), true
	case models.EventCaixaFechado:
		return fmt.Sprintf("Caixa fechado. Vendas: R$ %s em %v pedidos. Esperado: R$ %s, contado: R$ %s, diferença: R$ %s.",
			brl(e.Payload["vendas"]), e.Payload["quantidade"], brl(e.Payload["valorEsperado"]),
			brl(e.Payload["valorFinal"]), brl(e.Payload["diferenca"])), true
	}
	return "", false
}

func whatsappAddr(number string) string {
	if strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	return "whatsapp:" + number
}

func shortID(v interface{}) string {
	id, _ := v.(string)
	if len(id) > 6 {
		return id[len(id)-6:]
	}
	return id
}

// brl formats an amount the Brazilian way: 1234.5 -> 1.234,50.
func brl(v interface{}) string {
	f, _ := v.(float64)
	neg := f < 0
	if neg {
		f = -f
	}
	s := fmt.Sprintf("%.2f", f)
	intPart, frac := s[:len(s)-3], s[len(s)-2:]
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	out := b.String() + "," + frac
	if neg {
		out = "-" + out
	}
	return out
}
