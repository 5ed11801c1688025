package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/bank-reconciliation-engine/internal/domain/invoice"
	"github.com/bank-reconciliation-engine/internal/domain/shared"
	"github.com/bank-reconciliation-engine/internal/workflow"
)

// ProcessingService reacts to invoice lifecycle events
type ProcessingService interface {
	ProcessInvoiceEvent(ctx context.Context, event *shared.InvoiceEvent) error
}

// Rematcher re-runs matching for a company's open transactions
type Rematcher interface {
	RematchOpen(ctx context.Context, ownerID, companyID uuid.UUID, kind invoice.Kind) ([]workflow.RematchOutcome, error)
}
