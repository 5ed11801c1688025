package workflow

import (
	"context"

	"github.com/google/uuid"

	"github.com/bank-reconciliation-engine/internal/domain/invoice"
	"github.com/bank-reconciliation-engine/internal/domain/reconciliation"
	"github.com/bank-reconciliation-engine/internal/matching"
	"github.com/bank-reconciliation-engine/internal/statement"
)

// ReconciliationService is the review workflow exposed to the API and the worker
type ReconciliationService interface {
	// Parse reads a raw statement. Input-format errors are returned as is.
	Parse(ctx context.Context, raw string, format reconciliation.Format) (*statement.Result, error)

	// Match scores parsed transactions against the company's outstanding invoices.
	// Returns ErrInvoicesUnavailable when the invoices cannot be fetched.
	Match(ctx context.Context, ownerID, companyID uuid.UUID, txs []reconciliation.BankTransaction) ([]matching.Result, error)

	// CommitImport persists an import and its transactions in one database transaction
	CommitImport(ctx context.Context, ownerID, companyID uuid.UUID, results []matching.Result, meta ImportMeta) (*CommitResult, error)

	// Confirm accepts the link of a pending transaction and marks the invoice paid
	Confirm(ctx context.Context, companyID, transactionID uuid.UUID, actor string) (*Outcome, error)

	// ConfirmMany confirms each transaction independently
	ConfirmMany(ctx context.Context, companyID uuid.UUID, transactionIDs []uuid.UUID, actor string) []BulkOutcome

	// Unconfirm reverts a confirmed transaction to pending and marks the invoice unpaid
	Unconfirm(ctx context.Context, companyID, transactionID uuid.UUID, actor string) (*Outcome, error)

	// Edit corrects transaction fields and records one history entry per change
	Edit(ctx context.Context, companyID, transactionID uuid.UUID, fields reconciliation.EditFields, actor string) (*reconciliation.BankTransaction, error)

	// Rematch re-runs matching for existing transactions against current invoices
	Rematch(ctx context.Context, ownerID, companyID uuid.UUID, transactionIDs []uuid.UUID) ([]RematchOutcome, error)

	// RematchOpen re-runs matching for the company's open transactions that may settle invoices of kind
	RematchOpen(ctx context.Context, ownerID, companyID uuid.UUID, kind invoice.Kind) ([]RematchOutcome, error)

	// LinkInvoice links an outstanding invoice manually
	LinkInvoice(ctx context.Context, ownerID, companyID, transactionID, invoiceID uuid.UUID, kind invoice.Kind, actor string) (*reconciliation.BankTransaction, error)

	// UnlinkInvoice clears the link of a pending transaction
	UnlinkInvoice(ctx context.Context, companyID, transactionID uuid.UUID, actor string) (*reconciliation.BankTransaction, error)

	// DeleteImport removes an import with its transactions, matched payments and history
	DeleteImport(ctx context.Context, companyID, importID uuid.UUID) (*DeleteResult, error)

	// IsInvoiceMatched reports whether a confirmed transaction already settles the invoice
	IsInvoiceMatched(ctx context.Context, companyID, invoiceID uuid.UUID, kind invoice.Kind) (bool, error)

	// RetryInvoiceSync repeats a failed invoice-side update
	RetryInvoiceSync(ctx context.Context, companyID, transactionID uuid.UUID) (*Outcome, error)

	GetImport(ctx context.Context, companyID, importID uuid.UUID) (*ImportSummary, error)
	ListImports(ctx context.Context, companyID uuid.UUID, page, perPage int) ([]*reconciliation.BankImport, int64, error)
	ListTransactions(ctx context.Context, companyID uuid.UUID, filter reconciliation.TransactionFilter) ([]*reconciliation.BankTransaction, int64, error)

	// GetTransaction returns the transaction with its history
	GetTransaction(ctx context.Context, companyID, transactionID uuid.UUID) (*reconciliation.BankTransaction, error)
}
