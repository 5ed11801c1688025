// Package workflow implements the reconciliation review workflow: parse and
// match previews, committing imports and the operator actions on committed
// transactions. Database writes of one step share a Postgres transaction;
// invoice-side effects run after the commit and are reported, never retried
// silently.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bank-reconciliation-engine/internal/domain/invoice"
	"github.com/bank-reconciliation-engine/internal/domain/outbox"
	"github.com/bank-reconciliation-engine/internal/domain/reconciliation"
	"github.com/bank-reconciliation-engine/internal/domain/shared"
	"github.com/bank-reconciliation-engine/internal/logger"
	"github.com/bank-reconciliation-engine/internal/matching"
	"github.com/bank-reconciliation-engine/internal/platform/persistence"
	"github.com/bank-reconciliation-engine/internal/statement"
)

// SystemActor is recorded when no operator is known
const SystemActor = "system"

// Config tunes the workflow
type Config struct {
	RawSnapshotLimit  int
	RematchBatchLimit int
}

// Dependencies are the collaborators of the service
type Dependencies struct {
	TxManager       persistence.TxManager
	Imports         reconciliation.ImportRepository
	Transactions    reconciliation.TransactionRepository
	MatchedPayments reconciliation.MatchedPaymentRepository
	History         reconciliation.HistoryRepository
	Outbox          outbox.Repository
	Invoices        invoice.Collaborator
	Engine          *matching.Engine
	Parser          *statement.Parser
}

// Service implements ReconciliationService
type Service struct {
	txManager    persistence.TxManager
	imports      reconciliation.ImportRepository
	transactions reconciliation.TransactionRepository
	payments     reconciliation.MatchedPaymentRepository
	history      reconciliation.HistoryRepository
	outbox       outbox.Repository
	invoices     invoice.Collaborator
	engine       *matching.Engine
	parser       *statement.Parser
	cfg          Config
	logger       *slog.Logger
	now          func() time.Time
}

var _ ReconciliationService = (*Service)(nil)

// NewService creates the reconciliation workflow service
func NewService(logger *slog.Logger, deps Dependencies, cfg Config) *Service {
	return &Service{
		txManager:    deps.TxManager,
		imports:      deps.Imports,
		transactions: deps.Transactions,
		payments:     deps.MatchedPayments,
		history:      deps.History,
		outbox:       deps.Outbox,
		invoices:     deps.Invoices,
		engine:       deps.Engine,
		parser:       deps.Parser,
		cfg:          cfg,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Parse reads a raw statement in the given format
func (s *Service) Parse(ctx context.Context, raw string, format reconciliation.Format) (*statement.Result, error) {
	return s.parser.Parse(raw, format)
}

// Match fetches the outstanding invoices once and scores every transaction against them.
// Nothing is scored when the invoices cannot be fetched.
func (s *Service) Match(ctx context.Context, ownerID, companyID uuid.UUID, txs []reconciliation.BankTransaction) ([]matching.Result, error) {
	if companyID == uuid.Nil {
		return nil, reconciliation.ErrMissingCompany
	}

	invoices, err := s.outstandingInvoices(ctx, ownerID, companyID)
	if err != nil {
		return nil, err
	}

	results := s.engine.MatchAll(txs, invoices)

	log := logger.FromContext(ctx, s.logger)
	log.Info("Matched statement transactions",
		"company_id", companyID.String(),
		"transactions", len(txs),
		"outgoing_invoices", len(invoices.Outgoing),
		"incoming_invoices", len(invoices.Incoming),
	)
	return results, nil
}

// outstandingInvoices reads both invoice kinds. Any failure fails the whole read.
func (s *Service) outstandingInvoices(ctx context.Context, ownerID, companyID uuid.UUID) (invoice.Set, error) {
	var set invoice.Set
	for _, kind := range []invoice.Kind{invoice.KindOutgoing, invoice.KindIncoming} {
		invoices, err := s.outstandingOfKind(ctx, ownerID, companyID, kind)
		if err != nil {
			return invoice.Set{}, err
		}
		if kind == invoice.KindOutgoing {
			set.Outgoing = invoices
		} else {
			set.Incoming = invoices
		}
	}
	return set, nil
}

func (s *Service) outstandingOfKind(ctx context.Context, ownerID, companyID uuid.UUID, kind invoice.Kind) ([]invoice.Invoice, error) {
	invoices, err := s.invoices.GetOutstandingInvoices(ctx, ownerID, companyID, kind)
	if err != nil {
		logger.FromContext(ctx, s.logger).Error("Failed to fetch outstanding invoices",
			"company_id", companyID.String(),
			"kind", string(kind),
			"error", err,
		)
		return nil, fmt.Errorf("%w: %s invoices: %w", reconciliation.ErrInvoicesUnavailable, kind, err)
	}
	return invoices, nil
}

// recordEvent stores a reconciliation event in the outbox of the running database transaction
func (s *Service) recordEvent(ctx context.Context, tx pgx.Tx, event *shared.ReconciliationEvent) error {
	event.ID = uuid.New()
	event.CorrelationID = logger.CorrelationIDFromContext(ctx)

	message, err := outbox.NewMessage(event)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", event.Type, err)
	}
	return s.outbox.WithTx(tx).Create(ctx, message)
}

func transactionEvent(eventType shared.EventType, t *reconciliation.BankTransaction, actor string, at time.Time) *shared.ReconciliationEvent {
	id := t.ID
	event := &shared.ReconciliationEvent{
		Type:          eventType,
		CompanyID:     t.CompanyID,
		ImportID:      t.ImportID,
		TransactionID: &id,
		Status:        string(t.Status()),
		Confidence:    t.Confidence,
		Actor:         actor,
		OccurredAt:    at,
	}
	if link := t.Link(); link != nil {
		invoiceID := link.InvoiceID
		event.InvoiceID = &invoiceID
		event.InvoiceKind = link.Kind
	}
	return event
}

// syncInvoice runs the invoice-side effect of a committed change. A failure is stored on
// the transaction and reported in the outcome instead of being returned.
func (s *Service) syncInvoice(ctx context.Context, t *reconciliation.BankTransaction, want reconciliation.InvoiceSync) Outcome {
	log := logger.FromContext(ctx, s.logger)
	outcome := Outcome{Transaction: t, InvoiceSynced: true}

	link := t.Link()
	if link == nil {
		return outcome
	}

	var err error
	switch want {
	case reconciliation.InvoiceSyncPaidPending:
		err = s.invoices.MarkInvoicePaid(ctx, link.InvoiceID, link.Kind)
	case reconciliation.InvoiceSyncUnpaidPending:
		err = s.invoices.MarkInvoiceUnpaid(ctx, link.InvoiceID, link.Kind)
	default:
		return outcome
	}

	previous := t.InvoiceSync
	if err != nil {
		log.Error("Invoice update failed after commit",
			"transaction_id", t.ID.String(),
			"invoice_id", link.InvoiceID.String(),
			"pending_update", string(want),
			"error", err,
		)
		t.InvoiceSync = want
		t.InvoiceSyncError = err.Error()
		outcome.InvoiceSynced = false
		outcome.InvoiceSyncError = err.Error()
	} else {
		t.InvoiceSync = reconciliation.InvoiceSyncNone
		t.InvoiceSyncError = ""
	}

	if t.InvoiceSync != previous || err != nil {
		if updateErr := s.transactions.Update(ctx, t); updateErr != nil {
			log.Error("Failed to store invoice sync state",
				"transaction_id", t.ID.String(),
				"invoice_sync", string(t.InvoiceSync),
				"error", updateErr,
			)
		}
	}
	return outcome
}

// appendHistory stores the history of a change once its Postgres transaction has
// committed. A failure is logged and returned as text for the outcome.
func (s *Service) appendHistory(ctx context.Context, entries ...*reconciliation.HistoryEntry) string {
	if len(entries) == 0 {
		return ""
	}
	if err := s.history.Append(ctx, entries...); err != nil {
		logger.FromContext(ctx, s.logger).Error("Failed to record transaction history",
			"transaction_id", entries[0].TransactionID.String(),
			"action", string(entries[0].Action),
			"entries", len(entries),
			"error", err,
		)
		return err.Error()
	}
	return ""
}
