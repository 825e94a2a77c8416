package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func (h *Controller) OpenTill(c *gin.Context) {
	var input struct {
		OpeningAmount float64 `json:"valorInicial"`
		Notes         string  `json:"observacoes"`
	}
	if !bindJSON(c, &input) {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	cx, err := h.Till.Open(ctx, input.OpeningAmount, input.Notes, staffID(c))
	if err != nil {
		h.respondError(c, "open_till", err)
		return
	}
	c.JSON(http.StatusCreated, cx)
}

func (h *Controller) CloseTill(c *gin.Context) {
	var input struct {
		ClosingAmount float64 `json:"valorFinal"`
		Notes         string  `json:"observacoes"`
	}
	if !bindJSON(c, &input) {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	cx, err := h.Till.Close(ctx, input.ClosingAmount, input.Notes, staffID(c))
	if err != nil {
		h.respondError(c, "close_till", err)
		return
	}
	c.JSON(http.StatusOK, cx)
}

type movementInput struct {
	Amount float64 `json:"valor"`
	Reason string  `json:"motivo"`
}

func (h *Controller) CashOut(c *gin.Context) {
	var input movementInput
	if !bindJSON(c, &input) {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	cx, err := h.Till.RecordCashOut(ctx, input.Amount, input.Reason, staffID(c))
	if err != nil {
		h.respondError(c, "cash_out", err)
		return
	}
	c.JSON(http.StatusOK, cx)
}

func (h *Controller) CashIn(c *gin.Context) {
	var input movementInput
	if !bindJSON(c, &input) {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	cx, err := h.Till.RecordCashIn(ctx, input.Amount, input.Reason, staffID(c))
	if err != nil {
		h.respondError(c, "cash_in", err)
		return
	}
	c.JSON(http.StatusOK, cx)
}

// RecordSale posts a sale by hand, for deployments that do not post payments
// automatically.
func (h *Controller) RecordSale(c *gin.Context) {
	var input struct {
		OrderID string  `json:"pedido" binding:"required"`
		Amount  float64 `json:"valor"`
		Method  string  `json:"forma"`
	}
	if !bindJSON(c, &input) {
		return
	}
	orderID, err := primitive.ObjectIDFromHex(input.OrderID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid pedido", "code": "InvalidID"})
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	cx, err := h.Till.RecordSale(ctx, orderID, input.Amount, input.Method)
	if err != nil {
		h.respondError(c, "record_sale", err)
		return
	}
	c.JSON(http.StatusOK, cx)
}

func (h *Controller) CurrentTill(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	cx, err := h.Till.Current(ctx)
	if err != nil {
		h.respondError(c, "current_till", err)
		return
	}
	c.JSON(http.StatusOK, cx)
}

func (h *Controller) GetTill(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	cx, err := h.Till.Get(ctx, id)
	if err != nil {
		h.respondError(c, "get_till", err)
		return
	}
	c.JSON(http.StatusOK, cx)
}

// ListTills takes ?de= and ?ate= as YYYY-MM-DD, both defaulting to today.
func (h *Controller) ListTills(c *gin.Context) {
	from, to, ok := h.dateRange(c)
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	sessions, err := h.Till.List(ctx, from, to)
	if err != nil {
		h.respondError(c, "list_tills", err)
		return
	}
	c.JSON(http.StatusOK, sessions)
}

func (h *Controller) TillReport(c *gin.Context) {
	from, to, ok := h.dateRange(c)
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	report, err := h.Till.Report(ctx, from, to)
	if err != nil {
		h.respondError(c, "till_report", err)
		return
	}
	c.JSON(http.StatusOK, report)
}
