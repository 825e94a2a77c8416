package controllers

import (
	"context"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"floorops/logger"
	"floorops/middleware"
	"floorops/models"
	"floorops/services"
	"floorops/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const requestTimeout = 10 * time.Second

// StaffLookup finds staff members for login.
type StaffLookup interface {
	FindByPhone(ctx context.Context, phone string) (*models.Funcionario, error)
}

type MenuLister interface {
	List(ctx context.Context) ([]models.MenuItem, error)
}

// FloorPlanUploader stores an area floor plan and returns image and preview urls.
type FloorPlanUploader interface {
	UploadFloorPlan(ctx context.Context, area string, file *multipart.FileHeader) (string, string, error)
}

// Controller holds the services behind the HTTP handlers. Plans may be nil when
// object storage is not configured.
type Controller struct {
	Tables   *services.MesaService
	Orders   *services.PedidoService
	Split    *services.SplitService
	Till     *services.CaixaService
	Receipts *services.ReceiptService
	Staff    StaffLookup
	Menu     MenuLister
	Plans    FloorPlanUploader
	Tokens   *utils.TokenIssuer
	Log      *logger.Logger
	Location *time.Location
}

func requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), requestTimeout)
}

func staffID(c *gin.Context) string {
	return c.GetString(middleware.StaffIDKey)
}

// paramID parses the named path parameter as an ObjectID and answers 400 when it is
// not one.
func paramID(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name, "code": "InvalidID"})
		return primitive.NilObjectID, false
	}
	return id, true
}

func bindJSON(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "InvalidBody"})
		return false
	}
	return true
}

// parseDay reads a YYYY-MM-DD value in loc. An empty value yields today.
func (h *Controller) parseDay(value string) (time.Time, error) {
	if value == "" {
		return time.Now().In(h.Location), nil
	}
	return time.ParseInLocation("2006-01-02", value, h.Location)
}

var statusByKind = map[services.Kind]int{
	services.KindNotFound:       http.StatusNotFound,
	services.KindInvalidState:   http.StatusBadRequest,
	services.KindValidation:     http.StatusBadRequest,
	services.KindConflict:       http.StatusBadRequest,
	services.KindMismatch:       http.StatusBadRequest,
	services.KindPartialFailure: http.StatusMultiStatus,
}

// respondError maps a service error onto its HTTP status. Faults are logged and
// answered with a generic 500.
func (h *Controller) respondError(c *gin.Context, action string, err error) {
	var e *services.Error
	if !errors.As(err, &e) {
		h.Log.Error(c.Request.Context(), action, "request failed", err, slog.String("path", c.FullPath()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(statusByKind[e.Kind], gin.H{"error": e.Message, "code": e.Code, "details": e.Fields})
}

// respond answers result with okStatus, or with 207 and the partial result when err is
// a partial failure.
func (h *Controller) respond(c *gin.Context, action string, okStatus int, result interface{}, err error) {
	if err == nil {
		c.JSON(okStatus, result)
		return
	}
	var e *services.Error
	if errors.As(err, &e) && e.Kind == services.KindPartialFailure && result != nil {
		h.Log.Warn(c.Request.Context(), action, "partially applied", slog.String("code", e.Code))
		c.JSON(http.StatusMultiStatus, gin.H{"error": e.Message, "code": e.Code, "details": e.Fields, "result": result})
		return
	}
	h.respondError(c, action, err)
}

func (h *Controller) dateRange(c *gin.Context) (time.Time, time.Time, bool) {
	from, err := h.parseDay(c.Query("de"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid de, want YYYY-MM-DD", "code": "InvalidDate"})
		return time.Time{}, time.Time{}, false
	}
	to, err := h.parseDay(c.Query("ate"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ate, want YYYY-MM-DD", "code": "InvalidDate"})
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}
