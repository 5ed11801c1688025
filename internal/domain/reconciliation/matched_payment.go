package reconciliation

import (
	"time"

	"github.com/google/uuid"

	"github.com/bank-reconciliation-engine/internal/domain/invoice"
)

// MatchedPayment is the audit record of one confirmed link, keyed by company and invoice
type MatchedPayment struct {
	ID            uuid.UUID    `json:"id"`
	CompanyID     uuid.UUID    `json:"company_id"`
	InvoiceID     uuid.UUID    `json:"invoice_id"`
	InvoiceKind   invoice.Kind `json:"invoice_kind"`
	InvoiceNumber string       `json:"invoice_number"`
	TransactionID uuid.UUID    `json:"transaction_id"`
	ImportID      uuid.UUID    `json:"import_id"`
	MatchedBy     string       `json:"matched_by"`
	MatchedAt     time.Time    `json:"matched_at"`
}

// NewMatchedPayment records the confirmed link of a transaction
func NewMatchedPayment(t *BankTransaction, actor string, at time.Time) (*MatchedPayment, error) {
	if _, ok := t.State.(Confirmed); !ok {
		return nil, ErrNotConfirmed
	}
	link := t.Link()
	return &MatchedPayment{
		ID:            uuid.New(),
		CompanyID:     t.CompanyID,
		InvoiceID:     link.InvoiceID,
		InvoiceKind:   link.Kind,
		InvoiceNumber: link.InvoiceNumber,
		TransactionID: t.ID,
		ImportID:      t.ImportID,
		MatchedBy:     actor,
		MatchedAt:     at,
	}, nil
}
