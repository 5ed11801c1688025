package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bank-reconciliation-engine/internal/domain/invoice"
	"github.com/bank-reconciliation-engine/internal/domain/reconciliation"
	"github.com/bank-reconciliation-engine/internal/domain/shared"
	"github.com/bank-reconciliation-engine/internal/logger"
	"github.com/bank-reconciliation-engine/internal/matching"
)

type invoiceKey struct {
	id   uuid.UUID
	kind invoice.Kind
}

// CommitImport stores the import header, every transaction with the status its
// match earned, the matched payments of confirmed rows and the outbox events in one
// database transaction. Confirm-eligible rows whose invoice is already matched, by
// an earlier import or an earlier row of this one, are stored as pending and
// reported as conflicts. Confirmed invoices are marked paid after the commit.
func (s *Service) CommitImport(ctx context.Context, ownerID, companyID uuid.UUID, results []matching.Result, meta ImportMeta) (*CommitResult, error) {
	if companyID == uuid.Nil {
		return nil, reconciliation.ErrMissingCompany
	}
	if meta.ImportedBy == "" {
		return nil, reconciliation.ErrMissingActor
	}
	if !meta.Format.Valid() {
		return nil, reconciliation.ErrUnsupportedFormat
	}

	log := logger.FromContext(ctx, s.logger)
	now := s.now()

	txs := make([]*reconciliation.BankTransaction, 0, len(results))
	for i := range results {
		t, err := s.newCommittedTransaction(results[i], companyID, meta.ImportedBy, now)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		txs = append(txs, t)
	}

	imp, err := reconciliation.NewBankImport(companyID, meta.Format, meta.LineCount, meta.Raw, s.cfg.RawSnapshotLimit, meta.ImportedBy, nil)
	if err != nil {
		return nil, err
	}
	for _, t := range txs {
		t.ImportID = imp.ID
	}

	var conflicts []Conflict
	err = s.txManager.ExecuteTx(ctx, func(tx pgx.Tx) error {
		conflicts = conflicts[:0]
		payments := s.payments.WithTx(tx)

		claimed := make(map[invoiceKey]uuid.UUID)
		for _, t := range txs {
			st, ok := t.State.(reconciliation.Confirmed)
			if !ok {
				continue
			}
			key := invoiceKey{id: st.Link.InvoiceID, kind: st.Link.Kind}
			holder, taken := claimed[key]
			if !taken {
				existing, err := payments.GetByInvoice(ctx, companyID, key.id, key.kind)
				if err != nil {
					return err
				}
				if existing != nil {
					holder, taken = existing.TransactionID, true
				}
			}
			if taken {
				t.State = reconciliation.Pending{Link: st.Link}
				conflicts = append(conflicts, Conflict{
					TempID:        t.TempID,
					TransactionID: t.ID,
					InvoiceID:     key.id,
					Kind:          key.kind,
					MatchedBy:     holder,
				})
				continue
			}
			claimed[key] = t.ID
		}

		imp.Counts = reconciliation.CountStatuses(txs)
		if err := s.imports.WithTx(tx).Create(ctx, imp); err != nil {
			return err
		}

		transactions := s.transactions.WithTx(tx)
		for _, t := range txs {
			if err := transactions.Create(ctx, t); err != nil {
				return err
			}
			if _, ok := t.State.(reconciliation.Confirmed); !ok {
				continue
			}
			payment, err := reconciliation.NewMatchedPayment(t, meta.ImportedBy, now)
			if err != nil {
				return err
			}
			if err := payments.Create(ctx, payment); err != nil {
				return err
			}
			if err := s.recordEvent(ctx, tx, transactionEvent(shared.EventTransactionConfirmed, t, meta.ImportedBy, now)); err != nil {
				return err
			}
		}

		return s.recordEvent(ctx, tx, &shared.ReconciliationEvent{
			Type:       shared.EventImportCommitted,
			CompanyID:  companyID,
			ImportID:   imp.ID,
			Actor:      meta.ImportedBy,
			OccurredAt: now,
		})
	})
	if err != nil {
		log.Error("Failed to commit import", "company_id", companyID.String(), "transactions", len(txs), "error", err)
		return nil, err
	}

	log.Info("Import committed",
		"import_id", imp.ID.String(),
		"company_id", companyID.String(),
		"confirmed", imp.Counts.Confirmed,
		"pending", imp.Counts.Pending,
		"unmatched", imp.Counts.Unmatched,
		"conflicts", len(conflicts),
	)

	result := &CommitResult{Import: imp, Transactions: txs, Conflicts: conflicts}
	for _, t := range txs {
		if _, ok := t.State.(reconciliation.Confirmed); ok {
			result.Outcomes = append(result.Outcomes, s.syncInvoice(ctx, t, reconciliation.InvoiceSyncPaidPending))
		}
	}
	return result, nil
}

// newCommittedTransaction turns a match result into a transaction of the import.
// The status is derived from the confidence, not taken from the result.
func (s *Service) newCommittedTransaction(result matching.Result, companyID uuid.UUID, actor string, now time.Time) (*reconciliation.BankTransaction, error) {
	t := result.Transaction
	t.ID = uuid.New()
	t.CompanyID = companyID
	t.InvoiceSync = reconciliation.InvoiceSyncNone
	t.InvoiceSyncError = ""
	t.History = nil
	t.CreatedAt = now
	t.UpdatedAt = now
	t.State = reconciliation.Unmatched{}
	t.Confidence = 0

	link := result.Link()
	if link == nil {
		return &t, nil
	}
	if link.Kind != t.InvoiceKind() {
		return nil, reconciliation.ErrDirectionMismatch
	}
	if link.InvoiceID == uuid.Nil {
		return nil, errors.New("linked invoice has no id")
	}

	t.Confidence = min(max(result.Confidence, 0), s.engine.Scoring().MaxConfidence)
	switch s.engine.Classify(t.Confidence) {
	case matching.MatchStatusMatched:
		t.State = reconciliation.Confirmed{Link: *link, ConfirmedBy: actor, ConfirmedAt: now}
	case matching.MatchStatusPartial:
		t.State = reconciliation.Pending{Link: *link}
	default:
		t.Confidence = 0
	}
	return &t, nil
}
