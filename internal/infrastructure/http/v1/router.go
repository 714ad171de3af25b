// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"timberlot/internal/domain/audit"
	"timberlot/internal/domain/catalogs/client"
	"timberlot/internal/domain/debts"
	"timberlot/internal/domain/kassa"
	"timberlot/internal/domain/lots"
	"timberlot/internal/domain/rates"
	"timberlot/internal/domain/reports"
	"timberlot/internal/domain/vagons"
	"timberlot/internal/infrastructure/http/v1/handlers"
	"timberlot/internal/infrastructure/http/v1/middleware"
	"timberlot/internal/infrastructure/storage/postgres"
	"timberlot/internal/infrastructure/storage/postgres/catalog_repo"
	"timberlot/internal/infrastructure/storage/postgres/document_repo"
	"timberlot/internal/infrastructure/storage/postgres/register_repo"
	"timberlot/internal/infrastructure/storage/postgres/report_repo"
	"timberlot/pkg/logger"
	"timberlot/pkg/numerator"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Pool is the database connection pool (health checks).
	Pool *postgres.Pool

	// TxManager drives transactions for all repositories.
	TxManager *postgres.TxManager

	// Logger for request logging.
	Logger *logger.Logger

	// Numerator generates record numbers.
	Numerator numerator.Generator

	// Audit records entity change history. Nil disables auditing.
	Audit *postgres.AuditService
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

	// Health endpoints (no actor required)
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	// API v1
	v1 := router.Group("/api/v1")
	v1.Use(middleware.Actor())

	registerRoutes(v1, cfg)

	return router
}

// registerRoutes wires repositories, services and handlers. Services share
// one transaction manager so cross-aggregate operations (a lot purchase and
// its cash entry, a sale and its rate lock) commit atomically.
func registerRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	baseHandler := handlers.NewBaseHandler()

	// Repositories
	clientRepo := catalog_repo.NewClientRepo(cfg.TxManager)
	lotRepo := document_repo.NewLotRepo(cfg.TxManager)
	lotRecordRepo := document_repo.NewLotRecordRepo(cfg.TxManager)
	vagonRepo := document_repo.NewVagonRepo(cfg.TxManager)
	vagonSaleRepo := document_repo.NewVagonSaleRepo(cfg.TxManager)
	kassaRepo := register_repo.NewKassaRepo(cfg.TxManager)
	rateRepo := register_repo.NewRateRepo(cfg.TxManager)
	debtSourceRepo := register_repo.NewDebtSourceRepo(cfg.TxManager)
	reportRepo := report_repo.NewReportRepo(cfg.TxManager)

	// Services. The rate service doubles as the rate locker for every
	// record-creating service.
	auditor := auditRecorder(cfg.Audit)

	rateService := rates.NewService(rateRepo, cfg.TxManager, auditor)
	kassaService := kassa.NewService(kassaRepo, cfg.TxManager, cfg.Numerator, rateService, auditor)
	lotService := lots.NewService(lotRepo, lotRecordRepo, kassaService, rateService, cfg.TxManager, cfg.Numerator, auditor)
	vagonService := vagons.NewService(vagonRepo, vagonSaleRepo, kassaService, rateService, cfg.TxManager, cfg.Numerator, auditor)
	debtService := debts.NewService(debtSourceRepo, debtSourceRepo, kassaService, rateService, cfg.TxManager, cfg.Numerator, auditor)
	reportService := reports.NewService(reportRepo, kassaService, debtService, cfg.TxManager)
	clientService := client.NewService(clientRepo, cfg.TxManager, cfg.Numerator)

	// --- CLIENTS ---
	{
		handler := handlers.NewClientHandler(baseHandler, clientService)
		clients := rg.Group("/clients")
		clients.GET("", handler.List)
		clients.POST("", handler.Create)
		clients.GET("/:id", handler.Get)
		clients.PUT("/:id", handler.Update)
		clients.POST("/:id/deletion-mark", handler.SetDeletionMark)
	}

	// --- LOTS ---
	{
		handler := handlers.NewLotHandler(baseHandler, lotService)
		lotsGroup := rg.Group("/lots")
		lotsGroup.GET("", handler.List)
		lotsGroup.POST("", handler.Create)
		lotsGroup.GET("/:id", handler.Get)
		lotsGroup.DELETE("/:id", handler.Delete)
		lotsGroup.GET("/:id/expenses", handler.ListExpenses)
		lotsGroup.POST("/:id/expenses", handler.AttachExpense)
		lotsGroup.POST("/:id/sale", handler.RecordSale)
		lotsGroup.POST("/:id/sale/settle", handler.SettleSale)
		lotsGroup.POST("/:id/status", handler.UpdateStatus)
		lotsGroup.POST("/:id/recompute", handler.Recompute)

		// Standalone expenses live outside any lot.
		rg.POST("/expenses", handler.RecordStandaloneExpense)
	}

	// --- VAGONS ---
	{
		handler := handlers.NewVagonHandler(baseHandler, vagonService)
		vagonsGroup := rg.Group("/vagons")
		vagonsGroup.GET("", handler.List)
		vagonsGroup.POST("", handler.Create)
		vagonsGroup.GET("/:id", handler.Get)
		vagonsGroup.GET("/:id/sales", handler.ListSales)
		vagonsGroup.POST("/:id/sales", handler.RecordSale)
		vagonsGroup.POST("/:id/recompute", handler.Recompute)

		salesGroup := rg.Group("/vagon-sales")
		salesGroup.GET("/:id", handler.GetSale)
		salesGroup.PUT("/:id", handler.UpdateSale)
		salesGroup.DELETE("/:id", handler.DeleteSale)
		salesGroup.POST("/:id/payments", handler.RecordPayment)
	}

	// --- KASSA ---
	{
		handler := handlers.NewKassaHandler(baseHandler, kassaService)
		kassaGroup := rg.Group("/kassa")
		kassaGroup.GET("/entries", handler.List)
		kassaGroup.POST("/entries", handler.Append)
		kassaGroup.GET("/entries/:id", handler.Get)
		kassaGroup.DELETE("/entries/:id", handler.Delete)
		kassaGroup.GET("/balance", handler.Balance)
		kassaGroup.POST("/transfer", handler.Transfer)
	}

	// --- RATES ---
	{
		handler := handlers.NewRateHandler(baseHandler, rateService)
		ratesGroup := rg.Group("/rates")
		ratesGroup.POST("", handler.Set)
		ratesGroup.GET("/current", handler.GetCurrent)
		ratesGroup.GET("/history", handler.History)
	}

	// --- DEBTS ---
	{
		handler := handlers.NewDebtHandler(baseHandler, debtService)
		debtsGroup := rg.Group("/debts")
		debtsGroup.GET("", handler.Summary)
		debtsGroup.GET("/:clientId", handler.GetForClient)
		debtsGroup.POST("/delivery/charges", handler.RecordDeliveryCharge)
		debtsGroup.POST("/delivery/payments", handler.RecordDeliveryPayment)
		debtsGroup.DELETE("/delivery/:id", handler.DeleteDeliveryRecord)
	}

	// --- REPORTS ---
	{
		handler := handlers.NewReportHandler(baseHandler, reportService)
		reportsGroup := rg.Group("/reports")
		reportsGroup.GET("/lot-profitability", handler.GetLotProfitability)
		reportsGroup.GET("/vagon-summary", handler.GetVagonSummary)
		reportsGroup.GET("/kassa-period", handler.GetKassaPeriod)
		reportsGroup.GET("/client-debts", handler.GetClientDebts)
	}

	// --- AUDIT ---
	if cfg.Audit != nil {
		handler := handlers.NewAuditHandler(baseHandler, cfg.Audit)
		rg.GET("/audit/:entityType/:id", handler.GetHistory)
	}
}

// auditRecorder avoids handing services a typed-nil interface when auditing
// is disabled.
func auditRecorder(s *postgres.AuditService) audit.Recorder {
	if s == nil {
		return nil
	}
	return s
}
