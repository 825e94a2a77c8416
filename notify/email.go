package notify

import (
	"context"
	"fmt"
	"strings"

	"floorops/models"

	"gopkg.in/gomail.v2"
)

// EmailSink mails the till closing summary to the manager.
type EmailSink struct {
	dialer *gomail.Dialer
	from   string
	to     string
}

func NewEmailSink(host string, port int, user, password, to string) *EmailSink {
	return &EmailSink{
		dialer: gomail.NewDialer(host, port, user, password),
		from:   user,
		to:     to,
	}
}

func (s *EmailSink) Publish(_ context.Context, e models.Event) error {
	if e.Name != models.EventCaixaFechado {
		return nil
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", s.to)
	m.SetHeader("Subject", ClosingSubject(e))
	m.SetBody("text/plain", ClosingBody(e))
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send closing summary: %w", err)
	}
	return nil
}

func ClosingSubject(e models.Event) string {
	return "Fechamento de caixa " + e.Timestamp.Format("02/01/2006 15:04")
}

func ClosingBody(e models.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Caixa: %v\n", e.Payload["caixa"])
	fmt.Fprintf(&b, "Vendas: R$ %s (%v pedidos)\n", brl(e.Payload["vendas"]), e.Payload["quantidade"])
	fmt.Fprintf(&b, "Valor esperado: R$ %s\n", brl(e.Payload["valorEsperado"]))
	fmt.Fprintf(&b, "Valor contado: R$ %s\n", brl(e.Payload["valorFinal"]))
	fmt.Fprintf(&b, "Diferença: R$ %s\n", brl(e.Payload["diferenca"]))
	return b.String()
}
