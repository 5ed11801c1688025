package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/bank-reconciliation-engine/internal/config"
	"github.com/bank-reconciliation-engine/internal/data/invoicing"
	"github.com/bank-reconciliation-engine/internal/data/mongo"
	"github.com/bank-reconciliation-engine/internal/data/postgres"
	"github.com/bank-reconciliation-engine/internal/logger"
	"github.com/bank-reconciliation-engine/internal/matching"
	"github.com/bank-reconciliation-engine/internal/platform/messaging/consumers"
	"github.com/bank-reconciliation-engine/internal/platform/messaging/producers"
	"github.com/bank-reconciliation-engine/internal/platform/persistence"
	"github.com/bank-reconciliation-engine/internal/reconciliation_worker/consumer"
	"github.com/bank-reconciliation-engine/internal/reconciliation_worker/outbox_poller"
	"github.com/bank-reconciliation-engine/internal/reconciliation_worker/service"
	"github.com/bank-reconciliation-engine/internal/statement"
	"github.com/bank-reconciliation-engine/internal/workflow"
)

func main() {
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("reconciliation_worker")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	log.Info("Starting reconciliation worker",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

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

	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)

	reconciliationService := workflow.NewService(log, workflow.Dependencies{
		TxManager:       postgresDB,
		Imports:         postgres.NewImportRepository(log, postgresDB),
		Transactions:    postgres.NewTransactionRepository(log, postgresDB),
		MatchedPayments: postgres.NewMatchedPaymentRepository(log, postgresDB),
		History:         mongo.NewHistoryRepository(log, mongoDB.Database()),
		Outbox:          outboxRepo,
		Invoices:        invoicing.NewInvoiceRepository(log, invoicingDB, cfg.Invoicing),
		Engine:          matching.NewEngine(matching.ScoringFromConfig(cfg.Matching)),
		Parser:          statement.NewParser(log),
	}, workflow.Config{
		RawSnapshotLimit:  cfg.Import.RawSnapshotLimit,
		RematchBatchLimit: cfg.Rematch.BatchLimit,
	})

	eventProducer, err := producers.NewEventProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize events producer", "error", err)
		os.Exit(1)
	}

	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ producer", "error", err)
		os.Exit(1)
	}
	var deadLetters producers.DeadLetterPublisher
	if dlqProducer != nil {
		deadLetters = dlqProducer
	}

	processingService, err := service.NewWorkerPoolProcessingService(
		service.NewProcessingService(reconciliationService, log),
		service.WorkerPoolConfig{Size: cfg.WorkerPool.Size},
		log,
	)
	if err != nil {
		log.Error("Failed to create worker pool", "error", err)
		os.Exit(1)
	}

	invoiceEventHandler := consumer.NewInvoiceEventHandler(log, processingService, deadLetters)
	kafkaConsumer := consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka)

	poller := outbox_poller.NewPoller(
		&cfg.Outbox,
		outboxRepo,
		outbox_poller.NewEventPublisher(outboxRepo, eventProducer, log),
		log,
	)

	errChan := make(chan error, 1)
	var wg sync.WaitGroup

	if err := kafkaConsumer.Subscribe(appCtx, invoiceEventHandler.HandleMessage); err != nil {
		errChan <- fmt.Errorf("kafka consumer error: %w", err)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		poller.Start(appCtx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Service error occurred", "error", err)
		serviceErr = err
	}

	cancelAppCtx()
	log.Info("Starting graceful shutdown...")

	processingService.Shutdown()
	wg.Wait()

	if err = kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
	}
	if err = dlqProducer.Close(); err != nil {
		log.Error("Error closing DLQ producer", "error", err)
	}
	if err = eventProducer.Close(); err != nil {
		log.Error("Error closing events producer", "error", err)
	}

	postgresDB.Close()
	persistence.CloseGorm(log, invoicingDB)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()
	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	if serviceErr != nil {
		log.Error("Reconciliation worker shutdown with errors", "error", serviceErr)
		os.Exit(1)
	}
	log.Info("Reconciliation worker shutdown completed")
}
