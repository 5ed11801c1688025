package workflow

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/mock"

	"github.com/bank-reconciliation-engine/internal/domain/invoice"
	"github.com/bank-reconciliation-engine/internal/domain/outbox"
	"github.com/bank-reconciliation-engine/internal/domain/reconciliation"
	"github.com/bank-reconciliation-engine/internal/domain/shared"
	"github.com/bank-reconciliation-engine/internal/matching"
	"github.com/bank-reconciliation-engine/internal/statement"
)

type stubTxManager struct {
	calls int
}

func (m *stubTxManager) ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	m.calls++
	return fn(nil)
}

type MockImportRepository struct {
	mock.Mock
}

func (m *MockImportRepository) Create(ctx context.Context, imp *reconciliation.BankImport) error {
	args := m.Called(ctx, imp)
	return args.Error(0)
}

func (m *MockImportRepository) GetByID(ctx context.Context, companyID, id uuid.UUID) (*reconciliation.BankImport, error) {
	args := m.Called(ctx, companyID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reconciliation.BankImport), args.Error(1)
}

func (m *MockImportRepository) ListByCompany(ctx context.Context, companyID uuid.UUID, limit, offset int) ([]*reconciliation.BankImport, error) {
	args := m.Called(ctx, companyID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*reconciliation.BankImport), args.Error(1)
}

func (m *MockImportRepository) CountByCompany(ctx context.Context, companyID uuid.UUID) (int64, error) {
	args := m.Called(ctx, companyID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockImportRepository) Delete(ctx context.Context, companyID, id uuid.UUID) error {
	args := m.Called(ctx, companyID, id)
	return args.Error(0)
}

func (m *MockImportRepository) WithTx(tx pgx.Tx) reconciliation.ImportRepository {
	return m
}

type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Create(ctx context.Context, t *reconciliation.BankTransaction) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockTransactionRepository) GetByID(ctx context.Context, companyID, id uuid.UUID) (*reconciliation.BankTransaction, error) {
	args := m.Called(ctx, companyID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reconciliation.BankTransaction), args.Error(1)
}

func (m *MockTransactionRepository) LockForUpdate(ctx context.Context, companyID, id uuid.UUID) (*reconciliation.BankTransaction, error) {
	args := m.Called(ctx, companyID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reconciliation.BankTransaction), args.Error(1)
}

func (m *MockTransactionRepository) List(ctx context.Context, companyID uuid.UUID, filter reconciliation.TransactionFilter) ([]*reconciliation.BankTransaction, error) {
	args := m.Called(ctx, companyID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*reconciliation.BankTransaction), args.Error(1)
}

func (m *MockTransactionRepository) Count(ctx context.Context, companyID uuid.UUID, filter reconciliation.TransactionFilter) (int64, error) {
	args := m.Called(ctx, companyID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTransactionRepository) ListByIDs(ctx context.Context, companyID uuid.UUID, ids []uuid.UUID) ([]*reconciliation.BankTransaction, error) {
	args := m.Called(ctx, companyID, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*reconciliation.BankTransaction), args.Error(1)
}

func (m *MockTransactionRepository) ListOpen(ctx context.Context, companyID uuid.UUID, kind invoice.Kind, limit int) ([]*reconciliation.BankTransaction, error) {
	args := m.Called(ctx, companyID, kind, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*reconciliation.BankTransaction), args.Error(1)
}

func (m *MockTransactionRepository) CountStatusesByImport(ctx context.Context, importID uuid.UUID) (reconciliation.StatusCounts, error) {
	args := m.Called(ctx, importID)
	return args.Get(0).(reconciliation.StatusCounts), args.Error(1)
}

func (m *MockTransactionRepository) Update(ctx context.Context, t *reconciliation.BankTransaction) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockTransactionRepository) WithTx(tx pgx.Tx) reconciliation.TransactionRepository {
	return m
}

type MockMatchedPaymentRepository struct {
	mock.Mock
}

func (m *MockMatchedPaymentRepository) Create(ctx context.Context, payment *reconciliation.MatchedPayment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockMatchedPaymentRepository) GetByInvoice(ctx context.Context, companyID, invoiceID uuid.UUID, kind invoice.Kind) (*reconciliation.MatchedPayment, error) {
	args := m.Called(ctx, companyID, invoiceID, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reconciliation.MatchedPayment), args.Error(1)
}

func (m *MockMatchedPaymentRepository) DeleteByTransactionID(ctx context.Context, transactionID uuid.UUID) error {
	args := m.Called(ctx, transactionID)
	return args.Error(0)
}

func (m *MockMatchedPaymentRepository) WithTx(tx pgx.Tx) reconciliation.MatchedPaymentRepository {
	return m
}

type MockHistoryRepository struct {
	mock.Mock
}

func (m *MockHistoryRepository) Append(ctx context.Context, entries ...*reconciliation.HistoryEntry) error {
	args := m.Called(ctx, entries)
	return args.Error(0)
}

func (m *MockHistoryRepository) ListByTransactionID(ctx context.Context, transactionID uuid.UUID) ([]*reconciliation.HistoryEntry, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*reconciliation.HistoryEntry), args.Error(1)
}

func (m *MockHistoryRepository) DeleteByImportID(ctx context.Context, importID uuid.UUID) (int64, error) {
	args := m.Called(ctx, importID)
	return args.Get(0).(int64), args.Error(1)
}

type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) Create(ctx context.Context, message *outbox.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MockOutboxRepository) ClaimPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbox.Message), args.Error(1)
}

func (m *MockOutboxRepository) UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockOutboxRepository) IncrementAttempts(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepository) WithTx(tx pgx.Tx) outbox.Repository {
	return m
}

type MockInvoiceCollaborator struct {
	mock.Mock
}

func (m *MockInvoiceCollaborator) GetOutstandingInvoices(ctx context.Context, ownerID, companyID uuid.UUID, kind invoice.Kind) ([]invoice.Invoice, error) {
	args := m.Called(ctx, ownerID, companyID, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]invoice.Invoice), args.Error(1)
}

func (m *MockInvoiceCollaborator) MarkInvoicePaid(ctx context.Context, invoiceID uuid.UUID, kind invoice.Kind) error {
	args := m.Called(ctx, invoiceID, kind)
	return args.Error(0)
}

func (m *MockInvoiceCollaborator) MarkInvoiceUnpaid(ctx context.Context, invoiceID uuid.UUID, kind invoice.Kind) error {
	args := m.Called(ctx, invoiceID, kind)
	return args.Error(0)
}

type testDeps struct {
	txManager    *stubTxManager
	imports      *MockImportRepository
	transactions *MockTransactionRepository
	payments     *MockMatchedPaymentRepository
	history      *MockHistoryRepository
	outbox       *MockOutboxRepository
	invoices     *MockInvoiceCollaborator
}

func (d *testDeps) assertExpectations(t *testing.T) {
	d.imports.AssertExpectations(t)
	d.transactions.AssertExpectations(t)
	d.payments.AssertExpectations(t)
	d.history.AssertExpectations(t)
	d.outbox.AssertExpectations(t)
	d.invoices.AssertExpectations(t)
}

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService() (*Service, *testDeps) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	deps := &testDeps{
		txManager:    &stubTxManager{},
		imports:      new(MockImportRepository),
		transactions: new(MockTransactionRepository),
		payments:     new(MockMatchedPaymentRepository),
		history:      new(MockHistoryRepository),
		outbox:       new(MockOutboxRepository),
		invoices:     new(MockInvoiceCollaborator),
	}
	svc := NewService(logger, Dependencies{
		TxManager:       deps.txManager,
		Imports:         deps.imports,
		Transactions:    deps.transactions,
		MatchedPayments: deps.payments,
		History:         deps.history,
		Outbox:          deps.outbox,
		Invoices:        deps.invoices,
		Engine:          matching.NewEngine(matching.DefaultScoring()),
		Parser:          statement.NewParser(logger),
	}, Config{RawSnapshotLimit: 100, RematchBatchLimit: 50})
	svc.now = func() time.Time { return testNow }
	return svc, deps
}

func testInvoice(kind invoice.Kind, number string, amount float64) invoice.Invoice {
	return invoice.Invoice{
		ID:               uuid.New(),
		Kind:             kind,
		InvoiceNumber:    number,
		TotalAmount:      amount,
		CounterpartyName: "Klant BV",
		InvoiceDate:      time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC),
		Status:           "sent",
	}
}

func storedTransaction(companyID uuid.UUID, amount float64, description string, state reconciliation.State, confidence int) *reconciliation.BankTransaction {
	t := reconciliation.NewDraft("", time.Date(2024, 2, 21, 0, 0, 0, 0, time.UTC), amount, description, "", "")
	t.ID = uuid.New()
	t.CompanyID = companyID
	t.ImportID = uuid.New()
	t.State = state
	t.Confidence = confidence
	return &t
}

func matchResult(description string, amount float64, confidence int, inv *invoice.Invoice) matching.Result {
	result := matching.Result{
		Transaction: reconciliation.NewDraft("tmp", time.Date(2024, 2, 21, 0, 0, 0, 0, time.UTC), amount, description, "", ""),
		Confidence:  confidence,
	}
	if inv != nil {
		result.Candidates = []matching.Candidate{{Invoice: *inv, Confidence: confidence}}
	}
	return result
}
