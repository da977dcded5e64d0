// cmd/reconciliation/main.go
package main

import (
	"log"

	"reconciliation-service/internal/api/handlers"
	"reconciliation-service/internal/api/responses"
	"reconciliation-service/internal/config"
	"reconciliation-service/internal/core/gaps"
	"reconciliation-service/internal/core/importer"
	"reconciliation-service/internal/core/match"
	"reconciliation-service/internal/core/normalize"
	"reconciliation-service/internal/core/reconcile"
	"reconciliation-service/internal/storage"
	"reconciliation-service/internal/storage/repository"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func main() {
	responses.InitLogger()
	logger := responses.Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Falha ao carregar a configuração: ", err)
	}

	db, err := storage.Open(cfg.Database.Path)
	if err != nil {
		log.Fatal("Falha ao abrir o banco de dados: ", err)
	}
	defer db.Close()

	if err := storage.RunMigrations(cfg.Database.Path, cfg.Database.MigrationsPath); err != nil {
		log.Fatal("Falha ao executar as migrações: ", err)
	}

	tolerance, err := decimal.NewFromString(cfg.Matching.AmountTolerance)
	if err != nil {
		log.Fatal("Tolerância de valor inválida: ", err)
	}
	matcher := match.New(match.Config{
		DateWindowDays:      cfg.Matching.DateWindowDays,
		AmountTolerance:     tolerance,
		AutoAcceptThreshold: cfg.Matching.AutoAcceptThreshold,
	})
	policy := normalize.CompetencePolicy{OffsetMonths: cfg.Billing.CompetenceOffsetMonths}

	clientRepo := repository.NewClientRepo(db)
	invoiceRepo := repository.NewInvoiceRepo(db)
	settlementRepo := repository.NewSettlementRepo(db)
	auditRepo := repository.NewAuditRepo(db)

	reconcileService := reconcile.NewService(db, matcher, logger)
	gapsService := gaps.NewService(clientRepo, invoiceRepo, auditRepo, logger)
	importService := importer.NewService(clientRepo, invoiceRepo, settlementRepo, policy, logger)

	reconciliationHandler := handlers.NewReconciliationHandler(reconcileService)
	gapsHandler := handlers.NewGapsHandler(gapsService, cfg.Billing.GapWindowMonths)
	importHandler := handlers.NewImportHandler(importService)

	router := gin.Default()

	apiV1 := router.Group("/api/v1")
	{
		apiV1.POST("/reconcile", reconciliationHandler.HandleReconcile)
		apiV1.GET("/reconcile/pending", reconciliationHandler.HandleListPending)
		apiV1.GET("/reconcile/unmatched-pix", reconciliationHandler.HandleUnmatchedPix)
		apiV1.POST("/reconcile/pending/:id/approve", reconciliationHandler.HandleApprove)
		apiV1.POST("/reconcile/pending/:id/reject", reconciliationHandler.HandleReject)
		apiV1.GET("/gaps", gapsHandler.HandleDetect)
		apiV1.POST("/import/invoices", importHandler.HandleImportInvoices)
		apiV1.POST("/import/settlements", importHandler.HandleImportSettlements)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "UP", "service": "reconciliation-service"})
	})

	log.Printf("🚀 Reconciliation Service (Go) iniciado e escutando na porta %s", cfg.Server.Port)
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		log.Fatal("Falha ao iniciar o servidor de conciliação: ", err)
	}
}
