package workflow

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bank-reconciliation-engine/internal/domain/invoice"
	"github.com/bank-reconciliation-engine/internal/domain/reconciliation"
	"github.com/bank-reconciliation-engine/internal/domain/shared"
	"github.com/bank-reconciliation-engine/internal/logger"
)

// DeleteImport removes an import. Its transactions and matched payments cascade in
// Postgres; the history documents are removed after the commit and a failure there is
// reported in the result. Invoices marked paid through the import are left as they are.
func (s *Service) DeleteImport(ctx context.Context, companyID, importID uuid.UUID) (*DeleteResult, error) {
	log := logger.FromContext(ctx, s.logger)

	err := s.txManager.ExecuteTx(ctx, func(tx pgx.Tx) error {
		imports := s.imports.WithTx(tx)
		if _, err := imports.GetByID(ctx, companyID, importID); err != nil {
			return err
		}
		if err := imports.Delete(ctx, companyID, importID); err != nil {
			return err
		}
		return s.recordEvent(ctx, tx, &shared.ReconciliationEvent{
			Type:       shared.EventImportDeleted,
			CompanyID:  companyID,
			ImportID:   importID,
			OccurredAt: s.now(),
		})
	})
	if err != nil {
		return nil, err
	}

	result := &DeleteResult{ImportID: importID}
	removed, err := s.history.DeleteByImportID(ctx, importID)
	if err != nil {
		log.Error("Failed to delete import history", "import_id", importID.String(), "error", err)
		result.HistoryError = err.Error()
	}
	result.HistoryRemoved = removed
	log.Info("Import deleted", "import_id", importID.String(), "history_entries", removed)
	return result, nil
}

// IsInvoiceMatched reports whether a confirmed transaction already settles the invoice
func (s *Service) IsInvoiceMatched(ctx context.Context, companyID, invoiceID uuid.UUID, kind invoice.Kind) (bool, error) {
	if !kind.Valid() {
		return false, invoice.ErrUnknownKind{Kind: kind}
	}
	payment, err := s.payments.GetByInvoice(ctx, companyID, invoiceID, kind)
	if err != nil {
		return false, err
	}
	return payment != nil, nil
}

func (s *Service) GetImport(ctx context.Context, companyID, importID uuid.UUID) (*ImportSummary, error) {
	imp, err := s.imports.GetByID(ctx, companyID, importID)
	if err != nil {
		return nil, err
	}
	counts, err := s.transactions.CountStatusesByImport(ctx, importID)
	if err != nil {
		return nil, err
	}
	return &ImportSummary{Import: imp, LiveCounts: counts}, nil
}

func (s *Service) ListImports(ctx context.Context, companyID uuid.UUID, page, perPage int) ([]*reconciliation.BankImport, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}

	imports, err := s.imports.ListByCompany(ctx, companyID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.imports.CountByCompany(ctx, companyID)
	if err != nil {
		return nil, 0, err
	}
	return imports, total, nil
}

func (s *Service) ListTransactions(ctx context.Context, companyID uuid.UUID, filter reconciliation.TransactionFilter) ([]*reconciliation.BankTransaction, int64, error) {
	txs, err := s.transactions.List(ctx, companyID, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.transactions.Count(ctx, companyID, filter)
	if err != nil {
		return nil, 0, err
	}
	return txs, total, nil
}

func (s *Service) GetTransaction(ctx context.Context, companyID, transactionID uuid.UUID) (*reconciliation.BankTransaction, error) {
	t, err := s.transactions.GetByID(ctx, companyID, transactionID)
	if err != nil {
		return nil, err
	}
	history, err := s.history.ListByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	t.History = history
	return t, nil
}
