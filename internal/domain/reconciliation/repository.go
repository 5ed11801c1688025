package reconciliation

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bank-reconciliation-engine/internal/domain/invoice"
)

// TransactionFilter narrows transaction listings
type TransactionFilter struct {
	ImportID *uuid.UUID
	Status   *Status
	Limit    int
	Offset   int
}

// ImportRepository persists import batches
type ImportRepository interface {
	Create(ctx context.Context, imp *BankImport) error
	GetByID(ctx context.Context, companyID, id uuid.UUID) (*BankImport, error)
	ListByCompany(ctx context.Context, companyID uuid.UUID, limit, offset int) ([]*BankImport, error)
	CountByCompany(ctx context.Context, companyID uuid.UUID) (int64, error)

	// Delete removes the import; its transactions and matched payments cascade
	Delete(ctx context.Context, companyID, id uuid.UUID) error
	WithTx(tx pgx.Tx) ImportRepository
}

// TransactionRepository persists bank transactions and their reconciliation state
type TransactionRepository interface {
	Create(ctx context.Context, tx *BankTransaction) error
	GetByID(ctx context.Context, companyID, id uuid.UUID) (*BankTransaction, error)

	// LockForUpdate reads the transaction with a row lock inside a database transaction
	LockForUpdate(ctx context.Context, companyID, id uuid.UUID) (*BankTransaction, error)
	List(ctx context.Context, companyID uuid.UUID, filter TransactionFilter) ([]*BankTransaction, error)
	Count(ctx context.Context, companyID uuid.UUID, filter TransactionFilter) (int64, error)
	ListByIDs(ctx context.Context, companyID uuid.UUID, ids []uuid.UUID) ([]*BankTransaction, error)

	// ListOpen returns unmatched and pending transactions that may settle invoices of the given kind
	ListOpen(ctx context.Context, companyID uuid.UUID, kind invoice.Kind, limit int) ([]*BankTransaction, error)
	CountStatusesByImport(ctx context.Context, importID uuid.UUID) (StatusCounts, error)
	Update(ctx context.Context, tx *BankTransaction) error
	WithTx(tx pgx.Tx) TransactionRepository
}

// MatchedPaymentRepository persists the matched-payment audit records
type MatchedPaymentRepository interface {
	Create(ctx context.Context, payment *MatchedPayment) error

	// GetByInvoice returns nil when the invoice has no matched payment
	GetByInvoice(ctx context.Context, companyID, invoiceID uuid.UUID, kind invoice.Kind) (*MatchedPayment, error)
	DeleteByTransactionID(ctx context.Context, transactionID uuid.UUID) error
	WithTx(tx pgx.Tx) MatchedPaymentRepository
}

// HistoryRepository stores the append-only edit and confirmation history
type HistoryRepository interface {
	Append(ctx context.Context, entries ...*HistoryEntry) error
	ListByTransactionID(ctx context.Context, transactionID uuid.UUID) ([]*HistoryEntry, error)
	DeleteByImportID(ctx context.Context, importID uuid.UUID) (int64, error)
}
