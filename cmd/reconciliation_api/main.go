package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bank-reconciliation-engine/internal/config"
	"github.com/bank-reconciliation-engine/internal/data/invoicing"
	"github.com/bank-reconciliation-engine/internal/data/mongo"
	"github.com/bank-reconciliation-engine/internal/data/postgres"
	"github.com/bank-reconciliation-engine/internal/logger"
	"github.com/bank-reconciliation-engine/internal/matching"
	"github.com/bank-reconciliation-engine/internal/platform/persistence"
	"github.com/bank-reconciliation-engine/internal/reconciliation_api"
	"github.com/bank-reconciliation-engine/internal/statement"
	"github.com/bank-reconciliation-engine/internal/workflow"
)

func main() {
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("reconciliation_api")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	// Migrations run while the pool is created
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	invoicingDB, err := persistence.NewInvoicingDB(appCtx, log, &cfg.Invoicing)
	if err != nil {
		log.Error("Failed to initialize invoicing database", "error", err)
		os.Exit(1)
	}

	historyRepo := mongo.NewHistoryRepository(log, mongoDB.Database())
	if err := historyRepo.EnsureIndexes(appCtx); err != nil {
		log.Error("Failed to create history indexes", "error", err)
		os.Exit(1)
	}

	reconciliationService := workflow.NewService(log, workflow.Dependencies{
		TxManager:       postgresDB,
		Imports:         postgres.NewImportRepository(log, postgresDB),
		Transactions:    postgres.NewTransactionRepository(log, postgresDB),
		MatchedPayments: postgres.NewMatchedPaymentRepository(log, postgresDB),
		History:         historyRepo,
		Outbox:          postgres.NewOutboxRepository(log, postgresDB),
		Invoices:        invoicing.NewInvoiceRepository(log, invoicingDB, cfg.Invoicing),
		Engine:          matching.NewEngine(matching.ScoringFromConfig(cfg.Matching)),
		Parser:          statement.NewParser(log),
	}, workflow.Config{
		RawSnapshotLimit:  cfg.Import.RawSnapshotLimit,
		RematchBatchLimit: cfg.Rematch.BatchLimit,
	})

	server := reconciliation_api.NewServer(log, cfg, reconciliationService)
	log.Info("REST server initialized")

	errChan := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")

	// Stop accepting requests before the pools go away
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	postgresDB.Close()
	persistence.CloseGorm(log, invoicingDB)

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
		os.Exit(1)
	}
	log.Info("Server shutdown completed")
}
