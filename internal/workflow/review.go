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

// Confirm accepts the invoice link of a pending transaction. The invoice must not be
// matched by another transaction. The invoice is marked paid after the commit; a
// failure there is reported in the outcome.
func (s *Service) Confirm(ctx context.Context, companyID, transactionID uuid.UUID, actor string) (*Outcome, error) {
	if actor == "" {
		return nil, reconciliation.ErrMissingActor
	}
	log := logger.FromContext(ctx, s.logger)

	var t *reconciliation.BankTransaction
	var entry *reconciliation.HistoryEntry
	err := s.txManager.ExecuteTx(ctx, func(tx pgx.Tx) error {
		var err error
		t, err = s.transactions.WithTx(tx).LockForUpdate(ctx, companyID, transactionID)
		if err != nil {
			return err
		}

		link := t.Link()
		if link == nil {
			return reconciliation.ErrNoInvoiceLink
		}
		if t.Status() == reconciliation.StatusConfirmed {
			return reconciliation.ErrAlreadyConfirmed
		}

		payments := s.payments.WithTx(tx)
		existing, err := payments.GetByInvoice(ctx, companyID, link.InvoiceID, link.Kind)
		if err != nil {
			return err
		}
		if existing != nil && existing.TransactionID != t.ID {
			return reconciliation.ErrInvoiceAlreadyMatched{
				InvoiceID:     link.InvoiceID,
				Kind:          link.Kind,
				TransactionID: existing.TransactionID,
			}
		}

		now := s.now()
		if err := t.Confirm(actor, now); err != nil {
			return err
		}
		if err := s.transactions.WithTx(tx).Update(ctx, t); err != nil {
			return err
		}
		payment, err := reconciliation.NewMatchedPayment(t, actor, now)
		if err != nil {
			return err
		}
		if err := payments.Create(ctx, payment); err != nil {
			return err
		}
		entry = reconciliation.NewHistoryEntry(t, reconciliation.ActionConfirm, "status",
			string(reconciliation.StatusPending), string(reconciliation.StatusConfirmed), actor, now)
		return s.recordEvent(ctx, tx, transactionEvent(shared.EventTransactionConfirmed, t, actor, now))
	})
	if err != nil {
		log.Warn("Confirm rejected", "transaction_id", transactionID.String(), "error", err)
		return nil, err
	}

	log.Info("Transaction confirmed", "transaction_id", t.ID.String(), "invoice_id", t.Link().InvoiceID.String(), "actor", actor)
	historyErr := s.appendHistory(ctx, entry)
	outcome := s.syncInvoice(ctx, t, reconciliation.InvoiceSyncPaidPending)
	outcome.HistoryError = historyErr
	return &outcome, nil
}

// ConfirmMany confirms the transactions one by one; a failure affects only its own transaction
func (s *Service) ConfirmMany(ctx context.Context, companyID uuid.UUID, transactionIDs []uuid.UUID, actor string) []BulkOutcome {
	outcomes := make([]BulkOutcome, 0, len(transactionIDs))
	for _, id := range transactionIDs {
		outcome, err := s.Confirm(ctx, companyID, id, actor)
		outcomes = append(outcomes, BulkOutcome{TransactionID: id, Outcome: outcome, Err: err})
	}
	return outcomes
}

// Unconfirm reverts a confirmed transaction to pending. The link is kept and the
// matched payment removed. The invoice is marked unpaid after the commit.
func (s *Service) Unconfirm(ctx context.Context, companyID, transactionID uuid.UUID, actor string) (*Outcome, error) {
	if actor == "" {
		actor = SystemActor
	}
	log := logger.FromContext(ctx, s.logger)

	var t *reconciliation.BankTransaction
	var entry *reconciliation.HistoryEntry
	err := s.txManager.ExecuteTx(ctx, func(tx pgx.Tx) error {
		var err error
		t, err = s.transactions.WithTx(tx).LockForUpdate(ctx, companyID, transactionID)
		if err != nil {
			return err
		}

		now := s.now()
		if err := t.Unconfirm(now); err != nil {
			return err
		}
		if err := s.transactions.WithTx(tx).Update(ctx, t); err != nil {
			return err
		}
		if err := s.payments.WithTx(tx).DeleteByTransactionID(ctx, t.ID); err != nil {
			return err
		}
		entry = reconciliation.NewHistoryEntry(t, reconciliation.ActionUnconfirm, "status",
			string(reconciliation.StatusConfirmed), string(reconciliation.StatusPending), actor, now)
		return s.recordEvent(ctx, tx, transactionEvent(shared.EventTransactionUnconfirm, t, actor, now))
	})
	if err != nil {
		log.Warn("Unconfirm rejected", "transaction_id", transactionID.String(), "error", err)
		return nil, err
	}

	log.Info("Transaction unconfirmed", "transaction_id", t.ID.String(), "actor", actor)
	historyErr := s.appendHistory(ctx, entry)
	outcome := s.syncInvoice(ctx, t, reconciliation.InvoiceSyncUnpaidPending)
	outcome.HistoryError = historyErr
	return &outcome, nil
}

// Edit applies operator corrections. Matching is not re-run.
func (s *Service) Edit(ctx context.Context, companyID, transactionID uuid.UUID, fields reconciliation.EditFields, actor string) (*reconciliation.BankTransaction, error) {
	var t *reconciliation.BankTransaction
	var changes []*reconciliation.HistoryEntry
	err := s.txManager.ExecuteTx(ctx, func(tx pgx.Tx) error {
		var err error
		t, err = s.transactions.WithTx(tx).LockForUpdate(ctx, companyID, transactionID)
		if err != nil {
			return err
		}

		changes, err = t.ApplyEdit(fields, actor, s.now())
		if err != nil {
			return err
		}
		if len(changes) == 0 {
			return nil
		}
		return s.transactions.WithTx(tx).Update(ctx, t)
	})
	if err != nil {
		return nil, err
	}

	s.appendHistory(ctx, changes...)

	logger.FromContext(ctx, s.logger).Info("Transaction edited", "transaction_id", t.ID.String(), "actor", actor)
	return t, nil
}

// LinkInvoice links an outstanding invoice of the transaction's direction and sets the
// transaction to pending with full confidence
func (s *Service) LinkInvoice(ctx context.Context, ownerID, companyID, transactionID, invoiceID uuid.UUID, kind invoice.Kind, actor string) (*reconciliation.BankTransaction, error) {
	if actor == "" {
		return nil, reconciliation.ErrMissingActor
	}
	if !kind.Valid() {
		return nil, invoice.ErrUnknownKind{Kind: kind}
	}

	invoices, err := s.outstandingOfKind(ctx, ownerID, companyID, kind)
	if err != nil {
		return nil, err
	}
	var target *invoice.Invoice
	for i := range invoices {
		if invoices[i].ID == invoiceID {
			target = &invoices[i]
			break
		}
	}
	if target == nil {
		return nil, invoice.ErrInvoiceNotFound{InvoiceID: invoiceID}
	}

	var t *reconciliation.BankTransaction
	var entry *reconciliation.HistoryEntry
	err = s.txManager.ExecuteTx(ctx, func(tx pgx.Tx) error {
		var err error
		t, err = s.transactions.WithTx(tx).LockForUpdate(ctx, companyID, transactionID)
		if err != nil {
			return err
		}

		previous := linkedNumber(t)
		now := s.now()
		if err := t.LinkInvoice(reconciliation.LinkFromInvoice(*target), now); err != nil {
			return err
		}
		if err := s.transactions.WithTx(tx).Update(ctx, t); err != nil {
			return err
		}
		entry = reconciliation.NewHistoryEntry(t, reconciliation.ActionLink, "invoice", previous, target.InvoiceNumber, actor, now)
		return s.recordEvent(ctx, tx, transactionEvent(shared.EventTransactionLinked, t, actor, now))
	})
	if err != nil {
		return nil, err
	}

	s.appendHistory(ctx, entry)
	logger.FromContext(ctx, s.logger).Info("Invoice linked manually",
		"transaction_id", t.ID.String(),
		"invoice_id", invoiceID.String(),
		"actor", actor,
	)
	return t, nil
}

// UnlinkInvoice clears the link of a pending transaction
func (s *Service) UnlinkInvoice(ctx context.Context, companyID, transactionID uuid.UUID, actor string) (*reconciliation.BankTransaction, error) {
	if actor == "" {
		return nil, reconciliation.ErrMissingActor
	}

	var t *reconciliation.BankTransaction
	var entry *reconciliation.HistoryEntry
	err := s.txManager.ExecuteTx(ctx, func(tx pgx.Tx) error {
		var err error
		t, err = s.transactions.WithTx(tx).LockForUpdate(ctx, companyID, transactionID)
		if err != nil {
			return err
		}

		previous := linkedNumber(t)
		now := s.now()
		if err := t.UnlinkInvoice(now); err != nil {
			return err
		}
		if err := s.transactions.WithTx(tx).Update(ctx, t); err != nil {
			return err
		}
		entry = reconciliation.NewHistoryEntry(t, reconciliation.ActionUnlink, "invoice", previous, "", actor, now)
		return s.recordEvent(ctx, tx, transactionEvent(shared.EventTransactionUnlinked, t, actor, now))
	})
	if err != nil {
		return nil, err
	}

	s.appendHistory(ctx, entry)
	logger.FromContext(ctx, s.logger).Info("Invoice unlinked", "transaction_id", t.ID.String(), "actor", actor)
	return t, nil
}

// RetryInvoiceSync repeats the invoice update that failed after a confirm or unconfirm
func (s *Service) RetryInvoiceSync(ctx context.Context, companyID, transactionID uuid.UUID) (*Outcome, error) {
	t, err := s.transactions.GetByID(ctx, companyID, transactionID)
	if err != nil {
		return nil, err
	}
	if t.InvoiceSync == reconciliation.InvoiceSyncNone {
		return nil, reconciliation.ErrNothingToSync
	}
	if t.Link() == nil {
		return nil, reconciliation.ErrNoInvoiceLink
	}

	pending := t.InvoiceSync
	outcome := s.syncInvoice(ctx, t, pending)
	if outcome.InvoiceSynced {
		entry := reconciliation.NewHistoryEntry(t, reconciliation.ActionInvoiceSync, "invoice_sync",
			string(pending), string(reconciliation.InvoiceSyncNone), SystemActor, s.now())
		outcome.HistoryError = s.appendHistory(ctx, entry)
	}
	return &outcome, nil
}

func linkedNumber(t *reconciliation.BankTransaction) string {
	if link := t.Link(); link != nil {
		return link.InvoiceNumber
	}
	return ""
}
