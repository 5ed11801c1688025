package reconciliation

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/bank-reconciliation-engine/internal/domain/invoice"
)

// Workflow conflicts and validation errors
var (
	ErrNoInvoiceLink        = errors.New("transaction has no linked invoice")
	ErrAlreadyConfirmed     = errors.New("transaction is already confirmed")
	ErrNotConfirmed         = errors.New("transaction is not confirmed")
	ErrTransactionConfirmed = errors.New("confirmed transaction must be unconfirmed first")
	ErrDirectionMismatch    = errors.New("invoice kind does not match transaction direction")
	ErrNothingToSync        = errors.New("transaction has no pending invoice update")
	ErrMissingCompany       = errors.New("company id is required")
	ErrMissingActor         = errors.New("actor is required")
	ErrUnsupportedFormat    = errors.New("unsupported statement format")
	ErrEmptyEdit            = errors.New("edit contains no fields")
	ErrInvoicesUnavailable  = errors.New("outstanding invoices are unavailable")
)

// ErrTransactionNotFound indicates a missing bank transaction
type ErrTransactionNotFound struct {
	TransactionID uuid.UUID
}

func (e ErrTransactionNotFound) Error() string {
	return "bank transaction not found: " + e.TransactionID.String()
}

// Is matches any ErrTransactionNotFound when the target has no id
func (e ErrTransactionNotFound) Is(target error) bool {
	t, ok := target.(ErrTransactionNotFound)
	if !ok {
		return false
	}
	if t.TransactionID == uuid.Nil {
		return true
	}
	return e.TransactionID == t.TransactionID
}

// ErrImportNotFound indicates a missing import batch
type ErrImportNotFound struct {
	ImportID uuid.UUID
}

func (e ErrImportNotFound) Error() string {
	return "bank import not found: " + e.ImportID.String()
}

// Is matches any ErrImportNotFound when the target has no id
func (e ErrImportNotFound) Is(target error) bool {
	t, ok := target.(ErrImportNotFound)
	if !ok {
		return false
	}
	if t.ImportID == uuid.Nil {
		return true
	}
	return e.ImportID == t.ImportID
}

// ErrInvoiceAlreadyMatched indicates the invoice is already settled by another confirmed transaction
type ErrInvoiceAlreadyMatched struct {
	InvoiceID     uuid.UUID
	Kind          invoice.Kind
	TransactionID uuid.UUID
}

func (e ErrInvoiceAlreadyMatched) Error() string {
	return fmt.Sprintf("%s invoice %s is already matched to transaction %s", e.Kind, e.InvoiceID, e.TransactionID)
}

// ErrInvalidState indicates persisted columns that do not form a valid state
type ErrInvalidState struct {
	Status Status
	Reason string
}

func (e ErrInvalidState) Error() string {
	return fmt.Sprintf("invalid reconciliation state %q: %s", e.Status, e.Reason)
}
