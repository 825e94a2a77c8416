package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"floorops/models"
	"floorops/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const defaultClientName = "Consumidor"

// DocumentArchive stores a rendered document and returns where it can be fetched.
type DocumentArchive interface {
	PutDocument(ctx context.Context, key, contentType string, data []byte) (string, error)
}

type ReceiptPayment struct {
	Method    string    `json:"forma"`
	Amount    float64   `json:"valor"`
	Timestamp time.Time `json:"data"`
	Staff     string    `json:"funcionario,omitempty"`
}

// Receipt is the consistent view of a paid order handed to document generation.
type Receipt struct {
	OrderID       string              `json:"pedido"`
	TableNumber   int                 `json:"mesa"`
	Client        string              `json:"cliente"`
	Items         []models.ItemPedido `json:"itens"`
	Subtotal      float64             `json:"subtotal"`
	ServiceCharge float64             `json:"taxaServico"`
	Discount      float64             `json:"desconto"`
	Total         float64             `json:"total"`
	Payment       ReceiptPayment      `json:"pagamento"`
	IssuedAt      time.Time           `json:"emitidoEm"`
}

type ReceiptService struct {
	Orders  PedidoStore
	Mesas   MesaStore
	Archive DocumentArchive
	Now     func() time.Time
}

func NewReceiptService(orders PedidoStore, mesas MesaStore, archive DocumentArchive) *ReceiptService {
	return &ReceiptService{Orders: orders, Mesas: mesas, Archive: archive, Now: time.Now}
}

func (s *ReceiptService) Receipt(ctx context.Context, orderID primitive.ObjectID) (*Receipt, error) {
	p, err := s.Orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("OrderNotFound", "order not found", map[string]interface{}{"pedido": orderID.Hex()})
		}
		return nil, fmt.Errorf("error retrieving order %s: %w", orderID.Hex(), err)
	}
	if p.Status != models.PedidoPago {
		return nil, invalidState("NotPaid", "receipts are only issued for paid orders", map[string]interface{}{"pedido": orderID.Hex(), "status": p.Status})
	}

	var mesa *models.Mesa
	if m, err := s.Mesas.FindByID(ctx, p.MesaID); err == nil {
		mesa = m
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("error retrieving table %s: %w", p.MesaID.Hex(), err)
	}

	r := &Receipt{
		OrderID:       p.ID.Hex(),
		Client:        clientName(p, mesa),
		Items:         p.Items,
		Subtotal:      p.Subtotal,
		ServiceCharge: p.ServiceCharge,
		Discount:      p.Discount,
		Total:         p.Total,
		Payment:       receiptPayment(p),
		IssuedAt:      s.Now(),
	}
	if mesa != nil {
		r.TableNumber = mesa.Number
	}
	return r, nil
}

// ArchiveReceipt stores the receipt as a JSON document and returns its url.
func (s *ReceiptService) ArchiveReceipt(ctx context.Context, orderID primitive.ObjectID) (string, error) {
	if s.Archive == nil {
		return "", errors.New("receipt archive not configured")
	}
	r, err := s.Receipt(ctx, orderID)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("error encoding receipt: %w", err)
	}
	key := fmt.Sprintf("recibos/%s/%s.json", r.Payment.Timestamp.Format("2006-01-02"), r.OrderID)
	url, err := s.Archive.PutDocument(ctx, key, "application/json", data)
	if err != nil {
		return "", fmt.Errorf("error archiving receipt %s: %w", r.OrderID, err)
	}
	return url, nil
}

func clientName(p *models.Pedido, mesa *models.Mesa) string {
	if p.Payer != nil && p.Payer.Name != "" {
		return p.Payer.Name
	}
	if mesa != nil {
		for _, payer := range mesa.Payers {
			if containsID(payer.Orders, p.ID) && payer.Name != "" {
				return payer.Name
			}
		}
	}
	return defaultClientName
}

// receiptPayment prefers the direct payment stamp over the last split record.
func receiptPayment(p *models.Pedido) ReceiptPayment {
	if p.Payment != nil {
		return ReceiptPayment{Method: p.Payment.Method, Amount: p.Payment.Amount, Timestamp: p.Payment.Timestamp, Staff: p.Payment.Staff}
	}
	if n := len(p.PaymentRecords); n > 0 {
		last := p.PaymentRecords[n-1]
		return ReceiptPayment{Method: last.Method, Amount: last.Amount, Timestamp: last.Timestamp, Staff: last.Staff}
	}
	rp := ReceiptPayment{Method: p.PaymentMethod, Amount: p.Total, Staff: p.PaidBy}
	if p.PaidAt != nil {
		rp.Timestamp = *p.PaidAt
	}
	return rp
}
