package routes

import (
	"floorops/controllers"
	"floorops/middleware"
	"floorops/models"
	"floorops/utils"

	"github.com/gin-gonic/gin"
)

var (
	allStaff  = []string{models.CargoGarcom, models.CargoCaixa, models.CargoCozinha, models.CargoGerente}
	floorTeam = []string{models.CargoGarcom, models.CargoGerente}
	kitchen   = []string{models.CargoCozinha, models.CargoGarcom, models.CargoGerente}
	cashiers  = []string{models.CargoCaixa, models.CargoGerente}
	managers  = []string{models.CargoGerente}
)

// InitializeRoutes registers the API. ws may be nil when the websocket hub is off.
func InitializeRoutes(router *gin.Engine, h *controllers.Controller, tokens *utils.TokenIssuer, ws gin.HandlerFunc) {
	router.POST("/login", h.Login)

	staff := router.Group("")
	staff.Use(middleware.AuthMiddleware(tokens, allStaff...))
	{
		if ws != nil {
			staff.GET("/ws", ws)
		}
		staff.GET("/cardapio", h.ListMenu)
		staff.GET("/layout", h.Layout)
		staff.GET("/mesas", h.ListTables)
		staff.GET("/mesas/:id", h.GetTable)
		staff.GET("/pedidos", h.ListOrders)
		staff.GET("/pedidos/:id", h.GetOrder)
	}

	floor := router.Group("")
	floor.Use(middleware.AuthMiddleware(tokens, floorTeam...))
	{
		floor.POST("/mesas/:id/ocupar", h.OccupyTable)
		floor.POST("/mesas/:id/liberar", h.ReleaseTable)
		floor.POST("/mesas/:id/unir", h.UniteTables)
		floor.POST("/mesas/:id/clientes", h.AddPayer)
		floor.POST("/mesas/:id/garcons", h.AddServer)

		floor.POST("/pedidos", h.CreateOrder)
		floor.POST("/pedidos/:id/itens", h.AddItems)
		floor.PUT("/pedidos/:id/status", h.UpdateOrderStatus)
		floor.POST("/pedidos/:id/fechar", h.CloseOrder)
		floor.PUT("/pedidos/:id/ocultar", h.HideOrder)
		floor.PUT("/pedidos/:id/concluido", h.MarkVisuallyCompleted)
	}

	cook := router.Group("")
	cook.Use(middleware.AuthMiddleware(tokens, kitchen...))
	{
		cook.PUT("/pedidos/:id/itens/:itemId/status", h.UpdateItemStatus)
	}

	cashier := router.Group("")
	cashier.Use(middleware.AuthMiddleware(tokens, cashiers...))
	{
		cashier.POST("/pedidos/:id/pagamento", h.RegisterPayment)
		cashier.POST("/pedidos/:id/cancelar-pagamento", h.CancelPayment)
		cashier.POST("/pedidos/:id/cancelar", h.CancelOrder)
		cashier.GET("/pedidos/:id/recibo", h.Receipt)
		cashier.POST("/pedidos/:id/recibo", h.ArchiveReceipt)
		cashier.DELETE("/pedidos/:id/lista", h.RemoveFromList)
		cashier.POST("/mesas/:id/pagamento-dividido", h.PayTableSplit)
		cashier.POST("/mesas/:id/historico/remover", h.RemoveTableDay)

		cashier.POST("/caixa/abrir", h.OpenTill)
		cashier.POST("/caixa/fechar", h.CloseTill)
		cashier.POST("/caixa/sangria", h.CashOut)
		cashier.POST("/caixa/reforco", h.CashIn)
		cashier.POST("/caixa/vendas", h.RecordSale)
		cashier.GET("/caixa/atual", h.CurrentTill)
		cashier.GET("/caixa", h.ListTills)
		cashier.GET("/caixa/:id", h.GetTill)
	}

	admin := router.Group("")
	admin.Use(middleware.AuthMiddleware(tokens, managers...))
	{
		admin.POST("/mesas", h.CreateTable)
		admin.PUT("/mesas/:id", h.UpdateTable)
		admin.PUT("/mesas/:id/status", h.SetTableStatus)
		admin.DELETE("/mesas/:id", h.DeleteTable)
		admin.POST("/mesas/reparar-unioes", h.RepairUnions)
		admin.POST("/areas/:area/planta", h.UploadFloorPlan)

		admin.PUT("/pedidos/:id/desconto", h.SetDiscount)
		admin.DELETE("/pedidos/:id", h.DeleteOrder)
		admin.GET("/relatorios/caixa", h.TillReport)
	}
}
