package persistence

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/bank-reconciliation-engine/internal/config"
)

// NewInvoicingDB opens the invoicing system's database through GORM.
// The reconciliation service never migrates it; the schema belongs to the invoicing system.
func NewInvoicingDB(ctx context.Context, logger *slog.Logger, cfg *config.InvoicingConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.PostgresURL), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open invoicing database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access invoicing connection pool: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("failed to ping invoicing database: %w", err)
	}

	logger.Info("Connected to invoicing database")
	return db, nil
}

// CloseGorm closes the connection pool behind a GORM handle
func CloseGorm(logger *slog.Logger, db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		logger.Error("Failed to access invoicing connection pool", "error", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		logger.Error("Failed to close invoicing database", "error", err)
		return
	}
	logger.Info("Closed invoicing database connection")
}
