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

// Rematch scores existing transactions against the current outstanding invoices.
// Confirmed transactions are skipped. A transaction is only changed when its best
// candidate is a different invoice than the one it links; the new link is always
// pending, never confirmed.
func (s *Service) Rematch(ctx context.Context, ownerID, companyID uuid.UUID, transactionIDs []uuid.UUID) ([]RematchOutcome, error) {
	if companyID == uuid.Nil {
		return nil, reconciliation.ErrMissingCompany
	}
	if len(transactionIDs) == 0 {
		return nil, nil
	}

	invoices, err := s.outstandingInvoices(ctx, ownerID, companyID)
	if err != nil {
		return nil, err
	}

	txs, err := s.transactions.ListByIDs(ctx, companyID, transactionIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*reconciliation.BankTransaction, len(txs))
	for _, t := range txs {
		byID[t.ID] = t
	}

	log := logger.FromContext(ctx, s.logger)
	outcomes := make([]RematchOutcome, 0, len(transactionIDs))
	changed := 0
	for _, id := range transactionIDs {
		t, ok := byID[id]
		if !ok {
			outcomes = append(outcomes, RematchOutcome{TransactionID: id, Reason: RematchNotFound})
			continue
		}
		if t.Status() == reconciliation.StatusConfirmed {
			outcomes = append(outcomes, unchangedOutcome(t, RematchConfirmed))
			continue
		}

		result := s.engine.Match(*t, invoices)
		link := result.Link()
		if link == nil || sameInvoice(t.Link(), link) {
			outcomes = append(outcomes, unchangedOutcome(t, RematchNoNew))
			continue
		}

		outcome, err := s.applyRematch(ctx, companyID, id, link, result.Confidence)
		if err != nil {
			log.Error("Failed to rematch transaction", "transaction_id", id.String(), "error", err)
			return outcomes, err
		}
		if outcome.Changed {
			changed++
		}
		outcomes = append(outcomes, outcome)
	}

	log.Info("Rematched transactions",
		"company_id", companyID.String(),
		"requested", len(transactionIDs),
		"changed", changed,
	)
	return outcomes, nil
}

// RematchOpen rematches the company's unmatched and pending transactions that may
// settle invoices of kind
func (s *Service) RematchOpen(ctx context.Context, ownerID, companyID uuid.UUID, kind invoice.Kind) ([]RematchOutcome, error) {
	if !kind.Valid() {
		return nil, invoice.ErrUnknownKind{Kind: kind}
	}

	open, err := s.transactions.ListOpen(ctx, companyID, kind, s.cfg.RematchBatchLimit)
	if err != nil {
		return nil, err
	}
	if len(open) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, len(open))
	for i, t := range open {
		ids[i] = t.ID
	}
	return s.Rematch(ctx, ownerID, companyID, ids)
}

// applyRematch stores a new link under a row lock. The transaction may have been
// confirmed or relinked since it was scored; it is left alone then.
func (s *Service) applyRematch(ctx context.Context, companyID, id uuid.UUID, link *reconciliation.InvoiceLink, confidence int) (RematchOutcome, error) {
	var outcome RematchOutcome
	var entry *reconciliation.HistoryEntry
	err := s.txManager.ExecuteTx(ctx, func(tx pgx.Tx) error {
		t, err := s.transactions.WithTx(tx).LockForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		if t.Status() == reconciliation.StatusConfirmed {
			outcome = unchangedOutcome(t, RematchConfirmed)
			return nil
		}
		if sameInvoice(t.Link(), link) {
			outcome = unchangedOutcome(t, RematchNoNew)
			return nil
		}

		previous := linkedNumber(t)
		now := s.now()
		if err := t.ApplyMatch(link, confidence, now); err != nil {
			return err
		}
		if err := s.transactions.WithTx(tx).Update(ctx, t); err != nil {
			return err
		}
		entry = reconciliation.NewHistoryEntry(t, reconciliation.ActionRematch, "invoice", previous, link.InvoiceNumber, SystemActor, now)
		if err := s.recordEvent(ctx, tx, transactionEvent(shared.EventTransactionRematched, t, SystemActor, now)); err != nil {
			return err
		}

		outcome = unchangedOutcome(t, RematchUpdated)
		outcome.Changed = true
		return nil
	})
	if err != nil {
		return outcome, err
	}
	if entry != nil {
		s.appendHistory(ctx, entry)
	}
	return outcome, nil
}

func unchangedOutcome(t *reconciliation.BankTransaction, reason RematchReason) RematchOutcome {
	return RematchOutcome{
		TransactionID: t.ID,
		Reason:        reason,
		Status:        t.Status(),
		Confidence:    t.Confidence,
		Link:          t.Link(),
	}
}

func sameInvoice(current, candidate *reconciliation.InvoiceLink) bool {
	if current == nil || candidate == nil {
		return false
	}
	return current.InvoiceID == candidate.InvoiceID && current.Kind == candidate.Kind
}
