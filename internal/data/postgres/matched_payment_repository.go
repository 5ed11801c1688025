package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bank-reconciliation-engine/internal/domain/invoice"
	"github.com/bank-reconciliation-engine/internal/domain/reconciliation"
	"github.com/bank-reconciliation-engine/internal/platform/persistence"
)

const uniqueViolation = "23505"

// MatchedPaymentRepository implements reconciliation.MatchedPaymentRepository for PostgreSQL
type MatchedPaymentRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewMatchedPaymentRepository creates a new PostgreSQL matched payment repository
func NewMatchedPaymentRepository(logger *slog.Logger, db *persistence.PostgresDB) reconciliation.MatchedPaymentRepository {
	return &MatchedPaymentRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx returns a copy of the repository that runs on the given transaction
func (r *MatchedPaymentRepository) WithTx(tx pgx.Tx) reconciliation.MatchedPaymentRepository {
	return &MatchedPaymentRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a matched payment. A second record for the same company and
// invoice is rejected by uq_matched_payments_invoice and reported as
// ErrInvoiceAlreadyMatched.
func (r *MatchedPaymentRepository) Create(ctx context.Context, p *reconciliation.MatchedPayment) error {
	query := `
		INSERT INTO matched_payments (id, company_id, invoice_id, invoice_kind, invoice_number, transaction_id, import_id, matched_by, matched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.querier.Exec(ctx, query,
		p.ID,
		p.CompanyID,
		p.InvoiceID,
		p.InvoiceKind,
		p.InvoiceNumber,
		p.TransactionID,
		p.ImportID,
		p.MatchedBy,
		p.MatchedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return reconciliation.ErrInvoiceAlreadyMatched{InvoiceID: p.InvoiceID, Kind: p.InvoiceKind}
		}
		r.logger.Error("Failed to create matched payment",
			"invoice_id", p.InvoiceID.String(),
			"transaction_id", p.TransactionID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to create matched payment: %w", err)
	}

	return nil
}

// GetByInvoice returns the matched payment of an invoice, or nil when there is none
func (r *MatchedPaymentRepository) GetByInvoice(ctx context.Context, companyID, invoiceID uuid.UUID, kind invoice.Kind) (*reconciliation.MatchedPayment, error) {
	query := `
		SELECT id, company_id, invoice_id, invoice_kind, invoice_number, transaction_id, import_id, matched_by, matched_at
		FROM matched_payments
		WHERE company_id = $1 AND invoice_id = $2 AND invoice_kind = $3
	`

	var p reconciliation.MatchedPayment
	err := r.querier.QueryRow(ctx, query, companyID, invoiceID, kind).Scan(
		&p.ID,
		&p.CompanyID,
		&p.InvoiceID,
		&p.InvoiceKind,
		&p.InvoiceNumber,
		&p.TransactionID,
		&p.ImportID,
		&p.MatchedBy,
		&p.MatchedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get matched payment", "invoice_id", invoiceID.String(), "error", err)
		return nil, fmt.Errorf("failed to get matched payment: %w", err)
	}

	return &p, nil
}

// DeleteByTransactionID removes the matched payment of a transaction, if any
func (r *MatchedPaymentRepository) DeleteByTransactionID(ctx context.Context, transactionID uuid.UUID) error {
	query := `DELETE FROM matched_payments WHERE transaction_id = $1`

	if _, err := r.querier.Exec(ctx, query, transactionID); err != nil {
		r.logger.Error("Failed to delete matched payment", "transaction_id", transactionID.String(), "error", err)
		return fmt.Errorf("failed to delete matched payment: %w", err)
	}

	return nil
}
