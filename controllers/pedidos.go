package controllers

import (
	"net/http"

	"floorops/models"
	"floorops/services"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func (h *Controller) CreateOrder(c *gin.Context) {
	var input struct {
		MesaID string                `json:"mesa" binding:"required"`
		Items  []services.ItemInput  `json:"itens"`
		Payer  *models.ClientePedido `json:"cliente"`
	}
	if !bindJSON(c, &input) {
		return
	}
	mesaID, err := primitive.ObjectIDFromHex(input.MesaID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid mesa", "code": "InvalidID"})
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	p, err := h.Orders.Create(ctx, services.CreatePedidoInput{
		MesaID: mesaID,
		Staff:  staffID(c),
		Items:  input.Items,
		Payer:  input.Payer,
	})
	h.respond(c, "create_order", http.StatusCreated, p, err)
}

// ListOrders filters by ?mesa=, ?status= (repeatable) and ?incluirRemovidos=true.
func (h *Controller) ListOrders(c *gin.Context) {
	var filter services.PedidoFilter
	if mesa := c.Query("mesa"); mesa != "" {
		id, err := primitive.ObjectIDFromHex(mesa)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid mesa", "code": "InvalidID"})
			return
		}
		filter.MesaID = &id
	}
	filter.Statuses = c.QueryArray("status")
	filter.IncludeRemoved = c.Query("incluirRemovidos") == "true"

	ctx, cancel := requestContext(c)
	defer cancel()

	orders, err := h.Orders.List(ctx, filter)
	if err != nil {
		h.respondError(c, "list_orders", err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *Controller) GetOrder(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	p, err := h.Orders.Get(ctx, id)
	if err != nil {
		h.respondError(c, "get_order", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Controller) AddItems(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input struct {
		Items []services.ItemInput `json:"itens"`
	}
	if !bindJSON(c, &input) {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	p, err := h.Orders.AddItems(ctx, id, input.Items)
	if err != nil {
		h.respondError(c, "add_items", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Controller) SetDiscount(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input struct {
		Discount float64 `json:"desconto"`
	}
	if !bindJSON(c, &input) {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	p, err := h.Orders.SetDiscount(ctx, id, input.Discount)
	if err != nil {
		h.respondError(c, "set_discount", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Controller) UpdateItemStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input struct {
		Status string `json:"status" binding:"required"`
	}
	if !bindJSON(c, &input) {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	p, err := h.Orders.UpdateItemStatus(ctx, id, c.Param("itemId"), input.Status, staffID(c))
	if err != nil {
		h.respondError(c, "update_item_status", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Controller) UpdateOrderStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input struct {
		Status string `json:"status" binding:"required"`
	}
	if !bindJSON(c, &input) {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	p, err := h.Orders.UpdateStatus(ctx, id, input.Status, staffID(c))
	if err != nil {
		h.respondError(c, "update_order_status", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Controller) CloseOrder(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	p, err := h.Orders.Close(ctx, id, staffID(c))
	if err != nil {
		h.respondError(c, "close_order", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Controller) RegisterPayment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input struct {
		Method string `json:"formaPagamento" binding:"required"`
	}
	if !bindJSON(c, &input) {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	p, err := h.Orders.RegisterPayment(ctx, id, input.Method, staffID(c))
	if err != nil {
		h.respondError(c, "register_payment", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

type reasonInput struct {
	Reason string `json:"motivo"`
}

func (h *Controller) CancelOrder(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input reasonInput
	if c.Request.ContentLength > 0 && !bindJSON(c, &input) {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	p, err := h.Orders.Cancel(ctx, id, input.Reason, staffID(c))
	if err != nil {
		h.respondError(c, "cancel_order", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Controller) CancelPayment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input reasonInput
	if c.Request.ContentLength > 0 && !bindJSON(c, &input) {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	p, err := h.Orders.CancelPayment(ctx, id, input.Reason, staffID(c))
	h.respond(c, "cancel_payment", http.StatusOK, p, err)
}

// RemoveFromList hides one order from the history list without deleting it.
func (h *Controller) RemoveFromList(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	p, err := h.Orders.SoftDeleteListEntry(ctx, id, staffID(c))
	if err != nil {
		h.respondError(c, "remove_from_list", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// RemoveTableDay hides every paid order of the table paid on ?data=YYYY-MM-DD.
func (h *Controller) RemoveTableDay(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	day, err := h.parseDay(c.Query("data"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid data, want YYYY-MM-DD", "code": "InvalidDate"})
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	removed, err := h.Orders.SoftDeleteByTableAndDay(ctx, id, day, staffID(c))
	h.respond(c, "remove_table_day", http.StatusOK, gin.H{"removidos": removed}, err)
}

func (h *Controller) HideOrder(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	p, err := h.Orders.Hide(ctx, id)
	if err != nil {
		h.respondError(c, "hide_order", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Controller) MarkVisuallyCompleted(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	p, err := h.Orders.MarkVisuallyCompleted(ctx, id)
	if err != nil {
		h.respondError(c, "mark_visually_completed", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Controller) DeleteOrder(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Orders.PermanentlyDelete(ctx, id); err != nil {
		h.respondError(c, "delete_order", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Order deleted"})
}

func (h *Controller) PayTableSplit(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input struct {
		Payers   []services.SplitPayer `json:"pagantes"`
		OrderIDs []string              `json:"pedidos"`
	}
	if !bindJSON(c, &input) {
		return
	}
	orderIDs := make([]primitive.ObjectID, 0, len(input.OrderIDs))
	for _, hex := range input.OrderIDs {
		oid, err := primitive.ObjectIDFromHex(hex)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order id " + hex, "code": "InvalidID"})
			return
		}
		orderIDs = append(orderIDs, oid)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	result, err := h.Split.PayTableSplit(ctx, services.SplitInput{
		MesaID:   id,
		Payers:   input.Payers,
		OrderIDs: orderIDs,
		Staff:    staffID(c),
	})
	h.respond(c, "pay_table_split", http.StatusOK, result, err)
}

func (h *Controller) Receipt(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	r, err := h.Receipts.Receipt(ctx, id)
	if err != nil {
		h.respondError(c, "receipt", err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *Controller) ArchiveReceipt(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if h.Receipts.Archive == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Object storage not configured"})
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	url, err := h.Receipts.ArchiveReceipt(ctx, id)
	if err != nil {
		h.respondError(c, "archive_receipt", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"url": url})
}
