package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bank-reconciliation-engine/internal/domain/shared"
	"github.com/bank-reconciliation-engine/internal/logger"
	"github.com/bank-reconciliation-engine/internal/workflow"
)

type ProcessingServiceImpl struct {
	rematcher Rematcher
	logger    *slog.Logger
}

func NewProcessingService(rematcher Rematcher, logger *slog.Logger) ProcessingService {
	return &ProcessingServiceImpl{
		rematcher: rematcher,
		logger:    logger,
	}
}

// ProcessInvoiceEvent re-matches the company's open transactions that could settle
// an invoice of the event's kind. A new or changed invoice may be the missing
// counterpart of a transaction imported earlier. Matches are stored as pending;
// nothing is confirmed here.
func (s *ProcessingServiceImpl) ProcessInvoiceEvent(ctx context.Context, event *shared.InvoiceEvent) error {
	if event.CorrelationID != "" {
		ctx = logger.ContextWithCorrelationID(ctx, event.CorrelationID)
	}
	log := logger.FromContext(ctx, s.logger).With(
		"invoice_id", event.InvoiceID.String(),
		"company_id", event.CompanyID.String(),
		"kind", event.Kind,
	)

	outcomes, err := s.rematcher.RematchOpen(ctx, event.OwnerID, event.CompanyID, event.Kind)
	if err != nil {
		log.Error("Failed to rematch open transactions", "error", err)
		return fmt.Errorf("failed to rematch for invoice %s: %w", event.InvoiceID, err)
	}

	var updated, notFound int
	for _, o := range outcomes {
		switch o.Reason {
		case workflow.RematchUpdated:
			updated++
		case workflow.RematchNotFound:
			notFound++
		}
	}

	log.Info("Rematched open transactions",
		"event_type", event.Type,
		"checked", len(outcomes),
		"updated", updated,
		"not_found", notFound,
	)
	return nil
}
