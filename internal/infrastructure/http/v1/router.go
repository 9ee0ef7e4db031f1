// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"stockcore/internal/domain/adjustment"
	"stockcore/internal/domain/ledger"
	"stockcore/internal/domain/reconcile"
	"stockcore/internal/domain/reports"
	"stockcore/internal/domain/salesreturn"
	"stockcore/internal/infrastructure/http/v1/handlers"
	"stockcore/internal/infrastructure/http/v1/middleware"
	"stockcore/internal/infrastructure/storage/postgres"
	"stockcore/pkg/logger"
)

// Permission keys checked by the API. Assignment of keys to actors lives in
// the identity provider; the engine only enforces presence.
const (
	PermStockRead      = "stock.read"
	PermStockSale      = "stock.sale.record"
	PermStockThreshold = "stock.threshold.write"
	PermAdjustWrite    = "inventory.adjust.write"
	PermAdjustApprove  = "inventory.adjust.approve"
	PermReturnWrite    = "inventory.return.write"
	PermReturnApprove  = "inventory.return.approve"
	PermReportsRead    = "reports.read"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	Pool         *postgres.Pool
	Logger       *logger.Logger
	JWTValidator middleware.JWTValidator

	Ledger      *ledger.Service
	Adjustments *adjustment.Service
	Returns     *salesreturn.Service
	Facade      *reconcile.Facade
	Reports     *reports.Service
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no auth required)
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	baseHandler := handlers.NewBaseHandler()
	stockHandler := handlers.NewStockHandler(baseHandler, cfg.Facade, cfg.Ledger)
	adjustmentHandler := handlers.NewAdjustmentHandler(baseHandler, cfg.Facade, cfg.Adjustments)
	returnHandler := handlers.NewReturnHandler(baseHandler, cfg.Facade, cfg.Returns)
	reportsHandler := handlers.NewReportsHandler(baseHandler, cfg.Reports)

	// API v1 (all endpoints require a valid token)
	api := router.Group("/api/v1")
	api.Use(middleware.Auth(cfg.JWTValidator))
	{
		stock := api.Group("/stock")
		{
			stock.GET("/position", middleware.RequirePermission(PermStockRead), stockHandler.GetPosition)
			stock.GET("/positions", middleware.RequirePermission(PermStockRead), stockHandler.ListPositions)
			stock.PUT("/threshold", middleware.RequirePermission(PermStockThreshold), stockHandler.SetThreshold)
			stock.POST("/sales", middleware.RequirePermission(PermStockSale), stockHandler.RecordSale)
		}

		adjustments := api.Group("/adjustments")
		{
			adjustments.POST("", middleware.RequirePermission(PermAdjustWrite), adjustmentHandler.Create)
			adjustments.GET("", middleware.RequirePermission(PermStockRead), adjustmentHandler.List)
			adjustments.GET("/:id", middleware.RequirePermission(PermStockRead), adjustmentHandler.Get)
			adjustments.PUT("/:id", middleware.RequirePermission(PermAdjustWrite), adjustmentHandler.Update)
			adjustments.DELETE("/:id", middleware.RequirePermission(PermAdjustWrite), adjustmentHandler.Delete)
			adjustments.POST("/:id/approve", middleware.RequirePermission(PermAdjustApprove), adjustmentHandler.Approve)
			adjustments.POST("/:id/reject", middleware.RequirePermission(PermAdjustApprove), adjustmentHandler.Reject)
		}

		returns := api.Group("/returns")
		{
			returns.POST("", middleware.RequirePermission(PermReturnWrite), returnHandler.Create)
			returns.GET("", middleware.RequirePermission(PermStockRead), returnHandler.List)
			returns.GET("/:id", middleware.RequirePermission(PermStockRead), returnHandler.Get)
			returns.PUT("/:id", middleware.RequirePermission(PermReturnWrite), returnHandler.Update)
			returns.POST("/:id/approve", middleware.RequirePermission(PermReturnApprove), returnHandler.Approve)
			returns.POST("/:id/reject", middleware.RequirePermission(PermReturnApprove), returnHandler.Reject)
			returns.GET("/eligibility/:salesLineId", middleware.RequirePermission(PermStockRead), returnHandler.Eligibility)
		}

		reportsGroup := api.Group("/reports")
		reportsGroup.Use(middleware.RequireAnyPermission(PermReportsRead, PermStockRead))
		{
			reportsGroup.GET("/valuation", reportsHandler.Valuation)
			reportsGroup.GET("/low-stock", reportsHandler.LowStock)
			reportsGroup.GET("/movements", reportsHandler.Movements)
			reportsGroup.GET("/consistency", reportsHandler.Consistency)
		}
	}

	return router
}
