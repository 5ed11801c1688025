package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bank-reconciliation-engine/internal/domain/invoice"
	"github.com/bank-reconciliation-engine/internal/domain/reconciliation"
	"github.com/bank-reconciliation-engine/internal/platform/persistence"
)

const transactionColumns = `id, company_id, import_id, transaction_date, amount, description, beneficiary, reference,
		status, confidence, invoice_id, invoice_kind, invoice_number, invoice_amount, invoice_counterparty,
		invoice_date, invoice_status, confirmed_by, confirmed_at, invoice_sync, invoice_sync_error, created_at, updated_at`

// TransactionRepository implements reconciliation.TransactionRepository for PostgreSQL
type TransactionRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewTransactionRepository creates a new PostgreSQL bank transaction repository
func NewTransactionRepository(logger *slog.Logger, db *persistence.PostgresDB) reconciliation.TransactionRepository {
	return &TransactionRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx returns a copy of the repository that runs on the given transaction
func (r *TransactionRepository) WithTx(tx pgx.Tx) reconciliation.TransactionRepository {
	return &TransactionRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a committed bank transaction with its reconciliation state
func (r *TransactionRepository) Create(ctx context.Context, t *reconciliation.BankTransaction) error {
	query := `
		INSERT INTO bank_transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
	`

	args := []any{t.ID, t.CompanyID, t.ImportID, t.Date, t.Amount, t.Description, t.Beneficiary, t.Reference}
	args = append(args, stateArgs(t)...)
	args = append(args, t.InvoiceSync, t.InvoiceSyncError, t.CreatedAt, t.UpdatedAt)

	if _, err := r.querier.Exec(ctx, query, args...); err != nil {
		r.logger.Error("Failed to create bank transaction", "transaction_id", t.ID.String(), "error", err)
		return fmt.Errorf("failed to create bank transaction: %w", err)
	}

	return nil
}

// GetByID retrieves a transaction of the given company
func (r *TransactionRepository) GetByID(ctx context.Context, companyID, id uuid.UUID) (*reconciliation.BankTransaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM bank_transactions
		WHERE id = $1 AND company_id = $2
	`

	t, err := scanTransaction(r.querier.QueryRow(ctx, query, id, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, reconciliation.ErrTransactionNotFound{TransactionID: id}
		}
		r.logger.Error("Failed to get bank transaction", "transaction_id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get bank transaction: %w", err)
	}

	return t, nil
}

// LockForUpdate reads the transaction with a row lock. Must run inside a transaction.
func (r *TransactionRepository) LockForUpdate(ctx context.Context, companyID, id uuid.UUID) (*reconciliation.BankTransaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM bank_transactions
		WHERE id = $1 AND company_id = $2
		FOR UPDATE
	`

	t, err := scanTransaction(r.querier.QueryRow(ctx, query, id, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, reconciliation.ErrTransactionNotFound{TransactionID: id}
		}
		r.logger.Error("Failed to lock bank transaction for update", "transaction_id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to lock bank transaction for update: %w", err)
	}

	return t, nil
}

// List returns the company's transactions matching the filter, oldest first
func (r *TransactionRepository) List(ctx context.Context, companyID uuid.UUID, filter reconciliation.TransactionFilter) ([]*reconciliation.BankTransaction, error) {
	where, args := filterClause(companyID, filter)
	query := `
		SELECT ` + transactionColumns + `
		FROM bank_transactions
		WHERE ` + where + `
		ORDER BY transaction_date ASC, created_at ASC, id ASC`

	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += fmt.Sprintf("\n\t\tLIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	return r.query(ctx, "list bank transactions", query, args...)
}

// Count counts the company's transactions matching the filter; paging is ignored
func (r *TransactionRepository) Count(ctx context.Context, companyID uuid.UUID, filter reconciliation.TransactionFilter) (int64, error) {
	where, args := filterClause(companyID, filter)
	query := `SELECT COUNT(*) FROM bank_transactions WHERE ` + where

	var count int64
	if err := r.querier.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		r.logger.Error("Failed to count bank transactions", "company_id", companyID.String(), "error", err)
		return 0, fmt.Errorf("failed to count bank transactions: %w", err)
	}

	return count, nil
}

// ListByIDs returns the company's transactions among ids. Unknown ids are ignored.
func (r *TransactionRepository) ListByIDs(ctx context.Context, companyID uuid.UUID, ids []uuid.UUID) ([]*reconciliation.BankTransaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM bank_transactions
		WHERE company_id = $1 AND id = ANY($2)
		ORDER BY transaction_date ASC, id ASC
	`

	return r.query(ctx, "list bank transactions by id", query, companyID, ids)
}

// ListOpen returns unmatched and pending transactions whose direction settles invoices of kind
func (r *TransactionRepository) ListOpen(ctx context.Context, companyID uuid.UUID, kind invoice.Kind, limit int) ([]*reconciliation.BankTransaction, error) {
	direction := "amount >= 0"
	if kind == invoice.KindIncoming {
		direction = "amount < 0"
	}
	query := `
		SELECT ` + transactionColumns + `
		FROM bank_transactions
		WHERE company_id = $1 AND status IN ($2, $3) AND ` + direction + `
		ORDER BY transaction_date DESC, id ASC
		LIMIT $4
	`

	return r.query(ctx, "list open bank transactions", query,
		companyID, reconciliation.StatusUnmatched, reconciliation.StatusPending, limit)
}

// CountStatusesByImport derives live status counts from the import's current transactions
func (r *TransactionRepository) CountStatusesByImport(ctx context.Context, importID uuid.UUID) (reconciliation.StatusCounts, error) {
	query := `
		SELECT status, COUNT(*)
		FROM bank_transactions
		WHERE import_id = $1
		GROUP BY status
	`

	var counts reconciliation.StatusCounts
	rows, err := r.querier.Query(ctx, query, importID)
	if err != nil {
		r.logger.Error("Failed to count transaction statuses", "import_id", importID.String(), "error", err)
		return counts, fmt.Errorf("failed to count transaction statuses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status reconciliation.Status
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			r.logger.Error("Failed to scan transaction status count", "error", err)
			return counts, fmt.Errorf("failed to scan transaction status count: %w", err)
		}
		switch status {
		case reconciliation.StatusConfirmed:
			counts.Confirmed += n
		case reconciliation.StatusPending:
			counts.Pending += n
		default:
			counts.Unmatched += n
		}
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over transaction status counts", "error", err)
		return counts, fmt.Errorf("error iterating over transaction status counts: %w", err)
	}

	return counts, nil
}

// Update writes the editable fields and the reconciliation state of a transaction
func (r *TransactionRepository) Update(ctx context.Context, t *reconciliation.BankTransaction) error {
	query := `
		UPDATE bank_transactions
		SET transaction_date = $1, amount = $2, description = $3, beneficiary = $4,
			status = $5, confidence = $6, invoice_id = $7, invoice_kind = $8, invoice_number = $9,
			invoice_amount = $10, invoice_counterparty = $11, invoice_date = $12, invoice_status = $13,
			confirmed_by = $14, confirmed_at = $15, invoice_sync = $16, invoice_sync_error = $17, updated_at = $18
		WHERE id = $19 AND company_id = $20
	`

	args := []any{t.Date, t.Amount, t.Description, t.Beneficiary}
	args = append(args, stateArgs(t)...)
	args = append(args, t.InvoiceSync, t.InvoiceSyncError, t.UpdatedAt, t.ID, t.CompanyID)

	result, err := r.querier.Exec(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to update bank transaction", "transaction_id", t.ID.String(), "error", err)
		return fmt.Errorf("failed to update bank transaction: %w", err)
	}

	if result.RowsAffected() == 0 {
		return reconciliation.ErrTransactionNotFound{TransactionID: t.ID}
	}

	return nil
}

func (r *TransactionRepository) query(ctx context.Context, op, query string, args ...any) ([]*reconciliation.BankTransaction, error) {
	rows, err := r.querier.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to "+op, "error", err)
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	defer rows.Close()

	var txs []*reconciliation.BankTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			r.logger.Error("Failed to scan bank transaction", "error", err)
			return nil, fmt.Errorf("failed to scan bank transaction: %w", err)
		}
		txs = append(txs, t)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over bank transactions", "error", err)
		return nil, fmt.Errorf("error iterating over bank transactions: %w", err)
	}

	return txs, nil
}

func filterClause(companyID uuid.UUID, filter reconciliation.TransactionFilter) (string, []any) {
	conditions := []string{"company_id = $1"}
	args := []any{companyID}
	if filter.ImportID != nil {
		args = append(args, *filter.ImportID)
		conditions = append(conditions, fmt.Sprintf("import_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	return strings.Join(conditions, " AND "), args
}

// stateArgs flattens the state into the status, confidence, link and confirmation columns
func stateArgs(t *reconciliation.BankTransaction) []any {
	args := []any{t.Status(), t.Confidence}

	link := t.Link()
	if link == nil {
		args = append(args, nil, nil, nil, nil, nil, nil, nil)
	} else {
		args = append(args,
			link.InvoiceID,
			link.Kind,
			link.InvoiceNumber,
			link.InvoiceAmount,
			link.CounterpartyName,
			link.InvoiceDate,
			link.InvoiceStatus,
		)
	}

	if st, ok := t.State.(reconciliation.Confirmed); ok {
		args = append(args, st.ConfirmedBy, st.ConfirmedAt)
	} else {
		args = append(args, nil, nil)
	}
	return args
}

// transactionRecord mirrors the nullable columns of a bank_transactions row
type transactionRecord struct {
	status              reconciliation.Status
	invoiceID           *uuid.UUID
	invoiceKind         *string
	invoiceNumber       *string
	invoiceAmount       *float64
	invoiceCounterparty *string
	invoiceDate         *time.Time
	invoiceStatus       *string
	confirmedBy         *string
	confirmedAt         *time.Time
}

func (rec transactionRecord) link() *reconciliation.InvoiceLink {
	if rec.invoiceID == nil {
		return nil
	}
	link := &reconciliation.InvoiceLink{InvoiceID: *rec.invoiceID}
	if rec.invoiceKind != nil {
		link.Kind = invoice.Kind(*rec.invoiceKind)
	}
	if rec.invoiceNumber != nil {
		link.InvoiceNumber = *rec.invoiceNumber
	}
	if rec.invoiceAmount != nil {
		link.InvoiceAmount = *rec.invoiceAmount
	}
	if rec.invoiceCounterparty != nil {
		link.CounterpartyName = *rec.invoiceCounterparty
	}
	if rec.invoiceDate != nil {
		link.InvoiceDate = *rec.invoiceDate
	}
	if rec.invoiceStatus != nil {
		link.InvoiceStatus = *rec.invoiceStatus
	}
	return link
}

func scanTransaction(row pgx.Row) (*reconciliation.BankTransaction, error) {
	var t reconciliation.BankTransaction
	var rec transactionRecord
	err := row.Scan(
		&t.ID,
		&t.CompanyID,
		&t.ImportID,
		&t.Date,
		&t.Amount,
		&t.Description,
		&t.Beneficiary,
		&t.Reference,
		&rec.status,
		&t.Confidence,
		&rec.invoiceID,
		&rec.invoiceKind,
		&rec.invoiceNumber,
		&rec.invoiceAmount,
		&rec.invoiceCounterparty,
		&rec.invoiceDate,
		&rec.invoiceStatus,
		&rec.confirmedBy,
		&rec.confirmedAt,
		&t.InvoiceSync,
		&t.InvoiceSyncError,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	var confirmedBy string
	if rec.confirmedBy != nil {
		confirmedBy = *rec.confirmedBy
	}
	state, err := reconciliation.StateFromRecord(rec.status, rec.link(), confirmedBy, rec.confirmedAt)
	if err != nil {
		return nil, err
	}
	t.State = state
	return &t, nil
}
