package invoice

import (
	"context"

	"github.com/google/uuid"
)

// Collaborator is the narrow contract the reconciliation engine consumes from the
// invoicing system. Reads must fail as a whole; callers never match against a
// partial invoice list.
type Collaborator interface {
	GetOutstandingInvoices(ctx context.Context, ownerID, companyID uuid.UUID, kind Kind) ([]Invoice, error)
	MarkInvoicePaid(ctx context.Context, invoiceID uuid.UUID, kind Kind) error
	MarkInvoiceUnpaid(ctx context.Context, invoiceID uuid.UUID, kind Kind) error
}

// ErrInvoiceNotFound indicates the invoice does not exist or is no longer outstanding
type ErrInvoiceNotFound struct {
	InvoiceID uuid.UUID
}

func (e ErrInvoiceNotFound) Error() string {
	return "invoice not found: " + e.InvoiceID.String()
}

// ErrUnknownKind indicates an invoice kind outside outgoing/incoming
type ErrUnknownKind struct {
	Kind Kind
}

func (e ErrUnknownKind) Error() string {
	return "unknown invoice kind: " + string(e.Kind)
}
