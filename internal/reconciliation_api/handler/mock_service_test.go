package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/bank-reconciliation-engine/internal/domain/invoice"
	"github.com/bank-reconciliation-engine/internal/domain/reconciliation"
	"github.com/bank-reconciliation-engine/internal/matching"
	"github.com/bank-reconciliation-engine/internal/reconciliation_api/middleware"
	"github.com/bank-reconciliation-engine/internal/statement"
	"github.com/bank-reconciliation-engine/internal/workflow"
)

type MockReconciliationService struct {
	mock.Mock
}

func (m *MockReconciliationService) Parse(ctx context.Context, raw string, format reconciliation.Format) (*statement.Result, error) {
	args := m.Called(ctx, raw, format)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*statement.Result), args.Error(1)
}

func (m *MockReconciliationService) Match(ctx context.Context, ownerID, companyID uuid.UUID, txs []reconciliation.BankTransaction) ([]matching.Result, error) {
	args := m.Called(ctx, ownerID, companyID, txs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]matching.Result), args.Error(1)
}

func (m *MockReconciliationService) CommitImport(ctx context.Context, ownerID, companyID uuid.UUID, results []matching.Result, meta workflow.ImportMeta) (*workflow.CommitResult, error) {
	args := m.Called(ctx, ownerID, companyID, results, meta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*workflow.CommitResult), args.Error(1)
}

func (m *MockReconciliationService) Confirm(ctx context.Context, companyID, transactionID uuid.UUID, actor string) (*workflow.Outcome, error) {
	args := m.Called(ctx, companyID, transactionID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*workflow.Outcome), args.Error(1)
}

func (m *MockReconciliationService) ConfirmMany(ctx context.Context, companyID uuid.UUID, transactionIDs []uuid.UUID, actor string) []workflow.BulkOutcome {
	args := m.Called(ctx, companyID, transactionIDs, actor)
	return args.Get(0).([]workflow.BulkOutcome)
}

func (m *MockReconciliationService) Unconfirm(ctx context.Context, companyID, transactionID uuid.UUID, actor string) (*workflow.Outcome, error) {
	args := m.Called(ctx, companyID, transactionID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*workflow.Outcome), args.Error(1)
}

func (m *MockReconciliationService) Edit(ctx context.Context, companyID, transactionID uuid.UUID, fields reconciliation.EditFields, actor string) (*reconciliation.BankTransaction, error) {
	args := m.Called(ctx, companyID, transactionID, fields, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reconciliation.BankTransaction), args.Error(1)
}

func (m *MockReconciliationService) Rematch(ctx context.Context, ownerID, companyID uuid.UUID, transactionIDs []uuid.UUID) ([]workflow.RematchOutcome, error) {
	args := m.Called(ctx, ownerID, companyID, transactionIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]workflow.RematchOutcome), args.Error(1)
}

func (m *MockReconciliationService) RematchOpen(ctx context.Context, ownerID, companyID uuid.UUID, kind invoice.Kind) ([]workflow.RematchOutcome, error) {
	args := m.Called(ctx, ownerID, companyID, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]workflow.RematchOutcome), args.Error(1)
}

func (m *MockReconciliationService) LinkInvoice(ctx context.Context, ownerID, companyID, transactionID, invoiceID uuid.UUID, kind invoice.Kind, actor string) (*reconciliation.BankTransaction, error) {
	args := m.Called(ctx, ownerID, companyID, transactionID, invoiceID, kind, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reconciliation.BankTransaction), args.Error(1)
}

func (m *MockReconciliationService) UnlinkInvoice(ctx context.Context, companyID, transactionID uuid.UUID, actor string) (*reconciliation.BankTransaction, error) {
	args := m.Called(ctx, companyID, transactionID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reconciliation.BankTransaction), args.Error(1)
}

func (m *MockReconciliationService) DeleteImport(ctx context.Context, companyID, importID uuid.UUID) (*workflow.DeleteResult, error) {
	args := m.Called(ctx, companyID, importID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*workflow.DeleteResult), args.Error(1)
}

func (m *MockReconciliationService) IsInvoiceMatched(ctx context.Context, companyID, invoiceID uuid.UUID, kind invoice.Kind) (bool, error) {
	args := m.Called(ctx, companyID, invoiceID, kind)
	return args.Bool(0), args.Error(1)
}

func (m *MockReconciliationService) RetryInvoiceSync(ctx context.Context, companyID, transactionID uuid.UUID) (*workflow.Outcome, error) {
	args := m.Called(ctx, companyID, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*workflow.Outcome), args.Error(1)
}

func (m *MockReconciliationService) GetImport(ctx context.Context, companyID, importID uuid.UUID) (*workflow.ImportSummary, error) {
	args := m.Called(ctx, companyID, importID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*workflow.ImportSummary), args.Error(1)
}

func (m *MockReconciliationService) ListImports(ctx context.Context, companyID uuid.UUID, page, perPage int) ([]*reconciliation.BankImport, int64, error) {
	args := m.Called(ctx, companyID, page, perPage)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*reconciliation.BankImport), args.Get(1).(int64), args.Error(2)
}

func (m *MockReconciliationService) ListTransactions(ctx context.Context, companyID uuid.UUID, filter reconciliation.TransactionFilter) ([]*reconciliation.BankTransaction, int64, error) {
	args := m.Called(ctx, companyID, filter)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*reconciliation.BankTransaction), args.Get(1).(int64), args.Error(2)
}

func (m *MockReconciliationService) GetTransaction(ctx context.Context, companyID, transactionID uuid.UUID) (*reconciliation.BankTransaction, error) {
	args := m.Called(ctx, companyID, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reconciliation.BankTransaction), args.Error(1)
}

var _ workflow.ReconciliationService = (*MockReconciliationService)(nil)

var (
	testOwnerID   = uuid.New()
	testCompanyID = uuid.New()
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestRouter wires the handlers behind the tenant middleware
func newTestRouter(register func(r gin.IRoutes)) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.CorrelationID())
	register(router.Group("", middleware.RequireTenant()))
	return router
}

func doRequest(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.OwnerIDHeader, testOwnerID.String())
	req.Header.Set(middleware.CompanyIDHeader, testCompanyID.String())
	req.Header.Set(middleware.ActorHeader, "alice")
	req.Header.Set(middleware.CorrelationIDHeader, "corr-test")
	return newRecorder(router, req)
}

func newRecorder(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}
