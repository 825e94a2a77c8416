package controllers

import (
	"net/http"

	"floorops/models"
	"floorops/services"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func (h *Controller) ListTables(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	tables, err := h.Tables.List(ctx, services.MesaFilter{Area: c.Query("area"), Status: c.Query("status")})
	if err != nil {
		h.respondError(c, "list_tables", err)
		return
	}
	c.JSON(http.StatusOK, tables)
}

func (h *Controller) GetTable(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	m, err := h.Tables.Get(ctx, id)
	if err != nil {
		h.respondError(c, "get_table", err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Controller) CreateTable(c *gin.Context) {
	var input struct {
		Number   *int                `json:"numero"`
		Capacity *int                `json:"capacidade"`
		Area     string              `json:"area"`
		Location *models.Localizacao `json:"localizacao"`
	}
	if !bindJSON(c, &input) {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	m, err := h.Tables.Create(ctx, services.CreateMesaInput{
		Number:   input.Number,
		Capacity: input.Capacity,
		Area:     input.Area,
		Location: input.Location,
	})
	if err != nil {
		h.respondError(c, "create_table", err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h *Controller) UpdateTable(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input struct {
		Number   *int                `json:"numero"`
		Capacity *int                `json:"capacidade"`
		Area     *string             `json:"area"`
		Location *models.Localizacao `json:"localizacao"`
	}
	if !bindJSON(c, &input) {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	m, err := h.Tables.Update(ctx, id, services.UpdateMesaInput{
		Number:   input.Number,
		Capacity: input.Capacity,
		Area:     input.Area,
		Location: input.Location,
	})
	if err != nil {
		h.respondError(c, "update_table", err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Controller) SetTableStatus(c *gin.Context) {
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

	m, err := h.Tables.SetStatus(ctx, id, input.Status)
	if err != nil {
		h.respondError(c, "set_table_status", err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Controller) DeleteTable(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Tables.Delete(ctx, id); err != nil {
		h.respondError(c, "delete_table", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Table deleted"})
}

func (h *Controller) OccupyTable(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input struct {
		ClientCount       int `json:"clientes"`
		EstimatedDuration int `json:"duracaoEstimada"`
	}
	if !bindJSON(c, &input) {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	m, err := h.Tables.Occupy(ctx, id, input.ClientCount, staffID(c), input.EstimatedDuration)
	if err != nil {
		h.respondError(c, "occupy_table", err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Controller) ReleaseTable(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input struct {
		AmountConsumed float64 `json:"valorConsumido"`
	}
	if !bindJSON(c, &input) {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	m, err := h.Tables.Release(ctx, id, input.AmountConsumed, staffID(c))
	if err != nil {
		h.respondError(c, "release_table", err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Controller) UniteTables(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input struct {
		Secondaries []string `json:"mesas"`
	}
	if !bindJSON(c, &input) {
		return
	}
	secondaries := make([]primitive.ObjectID, 0, len(input.Secondaries))
	for _, hex := range input.Secondaries {
		sid, err := primitive.ObjectIDFromHex(hex)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid table id " + hex, "code": "InvalidID"})
			return
		}
		secondaries = append(secondaries, sid)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	m, err := h.Tables.Unite(ctx, id, secondaries)
	if err != nil {
		h.respondError(c, "unite_tables", err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Controller) AddPayer(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input struct {
		Name       string `json:"nome"`
		Identifier string `json:"identificador"`
	}
	if !bindJSON(c, &input) {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	m, err := h.Tables.AddPayer(ctx, id, input.Name, input.Identifier)
	if err != nil {
		h.respondError(c, "add_payer", err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// AddServer registers the calling waiter on the table.
func (h *Controller) AddServer(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	m, err := h.Tables.AddServer(ctx, id, staffID(c))
	if err != nil {
		h.respondError(c, "add_server", err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Controller) RepairUnions(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	restored, err := h.Tables.RepairUnions(ctx)
	if err != nil {
		h.respondError(c, "repair_unions", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"restauradas": restored})
}

func (h *Controller) Layout(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	layout, err := h.Tables.Layout(ctx)
	if err != nil {
		h.respondError(c, "layout", err)
		return
	}
	c.JSON(http.StatusOK, layout)
}

// UploadFloorPlan takes a multipart "planta" image for an area.
func (h *Controller) UploadFloorPlan(c *gin.Context) {
	if h.Plans == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Object storage not configured"})
		return
	}
	area := c.Param("area")
	if _, ok := services.AreaLayouts[area]; !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown area " + area, "code": "InvalidArea"})
		return
	}
	file, err := c.FormFile("planta")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Floor plan image is required", "code": "MissingFile"})
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	planURL, previewURL, err := h.Plans.UploadFloorPlan(ctx, area, file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "UploadFailed"})
		return
	}
	a, err := h.Tables.SetAreaPlan(ctx, area, planURL, previewURL)
	if err != nil {
		h.respondError(c, "set_area_plan", err)
		return
	}
	c.JSON(http.StatusOK, a)
}
