package services

import (
	"floorops/models"
	"floorops/utils"

	"github.com/shopspring/decimal"
)

// ServiceChargeRate is the fixed surcharge applied to every order subtotal.
var ServiceChargeRate = decimal.NewFromFloat(0.10)

// Recompute derives Subtotal, ServiceCharge and Total from the items and discount.
// Every part is rounded to cents first, so the stored Total is exactly
// Subtotal + ServiceCharge - Discount. Every mutation of Items or Discount calls it
// before saving.
func Recompute(p *models.Pedido) {
	sub := decimal.Zero
	for _, it := range p.Items {
		qty := decimal.NewFromInt(int64(it.Quantity))
		line := utils.Money(it.UnitPrice)
		for _, a := range it.Addons {
			line = line.Add(utils.Money(a.ExtraPrice))
		}
		sub = sub.Add(line.Mul(qty))
	}
	sub = sub.Round(2)
	svc := sub.Mul(ServiceChargeRate).Round(2)
	discount := utils.Money(p.Discount).Round(2)

	p.Subtotal = utils.Float(sub)
	p.ServiceCharge = utils.Float(svc)
	p.Discount = utils.Float(discount)
	p.Total = utils.Float(sub.Add(svc).Sub(discount))
}

// splitDue is the amount a split payment must cover: unit price times quantity
// over every item, without addons, service charge or discount.
func splitDue(orders []models.Pedido) decimal.Decimal {
	due := decimal.Zero
	for _, p := range orders {
		for _, it := range p.Items {
			due = due.Add(utils.Money(it.UnitPrice).Mul(decimal.NewFromInt(int64(it.Quantity))))
		}
	}
	return due
}
