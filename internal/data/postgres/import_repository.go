// Package postgres provides PostgreSQL implementations of the reconciliation
// repositories. Every repository can be bound to a pgx transaction with WithTx
// so a workflow step commits or rolls back as one unit.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bank-reconciliation-engine/internal/domain/reconciliation"
	"github.com/bank-reconciliation-engine/internal/platform/persistence"
)

// ImportRepository implements reconciliation.ImportRepository for PostgreSQL
type ImportRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewImportRepository creates a new PostgreSQL import repository
func NewImportRepository(logger *slog.Logger, db *persistence.PostgresDB) reconciliation.ImportRepository {
	return &ImportRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx returns a copy of the repository that runs on the given transaction
func (r *ImportRepository) WithTx(tx pgx.Tx) reconciliation.ImportRepository {
	return &ImportRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores an import header together with its snapshot counts
func (r *ImportRepository) Create(ctx context.Context, imp *reconciliation.BankImport) error {
	query := `
		INSERT INTO bank_imports (id, company_id, format, line_count, confirmed_count, pending_count, unmatched_count, raw_snapshot, imported_by, imported_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.querier.Exec(ctx, query,
		imp.ID,
		imp.CompanyID,
		imp.Format,
		imp.LineCount,
		imp.Counts.Confirmed,
		imp.Counts.Pending,
		imp.Counts.Unmatched,
		imp.RawSnapshot,
		imp.ImportedBy,
		imp.ImportedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create bank import", "import_id", imp.ID.String(), "error", err)
		return fmt.Errorf("failed to create bank import: %w", err)
	}

	return nil
}

// GetByID retrieves an import of the given company
func (r *ImportRepository) GetByID(ctx context.Context, companyID, id uuid.UUID) (*reconciliation.BankImport, error) {
	query := `
		SELECT id, company_id, format, line_count, confirmed_count, pending_count, unmatched_count, raw_snapshot, imported_by, imported_at
		FROM bank_imports
		WHERE id = $1 AND company_id = $2
	`

	imp, err := scanImport(r.querier.QueryRow(ctx, query, id, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, reconciliation.ErrImportNotFound{ImportID: id}
		}
		r.logger.Error("Failed to get bank import", "import_id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get bank import: %w", err)
	}

	return imp, nil
}

// ListByCompany returns the company's imports, newest first
func (r *ImportRepository) ListByCompany(ctx context.Context, companyID uuid.UUID, limit, offset int) ([]*reconciliation.BankImport, error) {
	query := `
		SELECT id, company_id, format, line_count, confirmed_count, pending_count, unmatched_count, raw_snapshot, imported_by, imported_at
		FROM bank_imports
		WHERE company_id = $1
		ORDER BY imported_at DESC, id ASC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.querier.Query(ctx, query, companyID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list bank imports", "company_id", companyID.String(), "error", err)
		return nil, fmt.Errorf("failed to list bank imports: %w", err)
	}
	defer rows.Close()

	var imports []*reconciliation.BankImport
	for rows.Next() {
		imp, err := scanImport(rows)
		if err != nil {
			r.logger.Error("Failed to scan bank import", "error", err)
			return nil, fmt.Errorf("failed to scan bank import: %w", err)
		}
		imports = append(imports, imp)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over bank imports", "error", err)
		return nil, fmt.Errorf("error iterating over bank imports: %w", err)
	}

	return imports, nil
}

// CountByCompany counts the company's imports
func (r *ImportRepository) CountByCompany(ctx context.Context, companyID uuid.UUID) (int64, error) {
	query := `SELECT COUNT(*) FROM bank_imports WHERE company_id = $1`

	var count int64
	if err := r.querier.QueryRow(ctx, query, companyID).Scan(&count); err != nil {
		r.logger.Error("Failed to count bank imports", "company_id", companyID.String(), "error", err)
		return 0, fmt.Errorf("failed to count bank imports: %w", err)
	}

	return count, nil
}

// Delete removes an import. Transactions and matched payments go with it through
// ON DELETE CASCADE.
func (r *ImportRepository) Delete(ctx context.Context, companyID, id uuid.UUID) error {
	query := `
		DELETE FROM bank_imports
		WHERE id = $1 AND company_id = $2
	`

	result, err := r.querier.Exec(ctx, query, id, companyID)
	if err != nil {
		r.logger.Error("Failed to delete bank import", "import_id", id.String(), "error", err)
		return fmt.Errorf("failed to delete bank import: %w", err)
	}

	if result.RowsAffected() == 0 {
		return reconciliation.ErrImportNotFound{ImportID: id}
	}

	return nil
}

func scanImport(row pgx.Row) (*reconciliation.BankImport, error) {
	var imp reconciliation.BankImport
	err := row.Scan(
		&imp.ID,
		&imp.CompanyID,
		&imp.Format,
		&imp.LineCount,
		&imp.Counts.Confirmed,
		&imp.Counts.Pending,
		&imp.Counts.Unmatched,
		&imp.RawSnapshot,
		&imp.ImportedBy,
		&imp.ImportedAt,
	)
	if err != nil {
		return nil, err
	}
	return &imp, nil
}
