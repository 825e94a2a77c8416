package services

import (
	"sort"
	"time"

	"floorops/models"
	"floorops/utils"

	"github.com/shopspring/decimal"
)

type CaixaReport struct {
	From          time.Time          `json:"de"`
	To            time.Time          `json:"ate"`
	Sessions      int                `json:"sessoes"`
	TotalSales    float64            `json:"totalVendas"`
	TotalOrders   int                `json:"totalPedidos"`
	AverageTicket float64            `json:"ticketMedio"`
	TotalCashOuts float64            `json:"totalSangrias"`
	TotalCashIns  float64            `json:"totalReforcos"`
	TotalVariance float64            `json:"totalDiferencas"`
	ByMethod      map[string]float64 `json:"porForma"`
	ByDay         []DayTotals        `json:"porDia"`
}

type DayTotals struct {
	Day      string  `json:"dia"`
	Sales    float64 `json:"vendas"`
	Orders   int     `json:"pedidos"`
	CashOuts float64 `json:"sangrias"`
	CashIns  float64 `json:"reforcos"`
}

type dayAcc struct {
	sales, outs, ins decimal.Decimal
	orders           int
}

// BuildReport folds sessions into totals. Sessions are bucketed by the local day they
// were opened on; variance only counts for closed sessions.
func BuildReport(sessions []models.Caixa, loc *time.Location) CaixaReport {
	if loc == nil {
		loc = time.Local
	}
	var sales, outs, ins, variance decimal.Decimal
	orders := 0
	byMethod := map[string]decimal.Decimal{}
	days := map[string]*dayAcc{}

	for _, c := range sessions {
		key := c.OpenedAt.In(loc).Format("2006-01-02")
		d, ok := days[key]
		if !ok {
			d = &dayAcc{}
			days[key] = d
		}

		sales = sales.Add(utils.Money(c.Sales.Total))
		orders += c.Sales.Count
		d.sales = d.sales.Add(utils.Money(c.Sales.Total))
		d.orders += c.Sales.Count

		for _, m := range c.CashOuts {
			outs = outs.Add(utils.Money(m.Amount))
			d.outs = d.outs.Add(utils.Money(m.Amount))
		}
		for _, m := range c.CashIns {
			ins = ins.Add(utils.Money(m.Amount))
			d.ins = d.ins.Add(utils.Money(m.Amount))
		}
		for method, v := range c.PaymentTotals {
			byMethod[method] = byMethod[method].Add(utils.Money(v))
		}
		if c.Status == models.CaixaFechado {
			variance = variance.Add(utils.Money(c.Variance))
		}
	}

	r := CaixaReport{
		Sessions:      len(sessions),
		TotalSales:    utils.Float(sales),
		TotalOrders:   orders,
		TotalCashOuts: utils.Float(outs),
		TotalCashIns:  utils.Float(ins),
		TotalVariance: utils.Float(variance),
		ByMethod:      make(map[string]float64, len(models.CaixaMethods)),
		ByDay:         make([]DayTotals, 0, len(days)),
	}
	if orders > 0 {
		r.AverageTicket = utils.Float(sales.Div(decimal.NewFromInt(int64(orders))))
	}
	for _, m := range models.CaixaMethods {
		r.ByMethod[m] = 0
	}
	for m, v := range byMethod {
		r.ByMethod[m] = utils.Float(v)
	}
	for key, d := range days {
		r.ByDay = append(r.ByDay, DayTotals{
			Day:      key,
			Sales:    utils.Float(d.sales),
			Orders:   d.orders,
			CashOuts: utils.Float(d.outs),
			CashIns:  utils.Float(d.ins),
		})
	}
	sort.Slice(r.ByDay, func(i, j int) bool { return r.ByDay[i].Day < r.ByDay[j].Day })
	return r
}
