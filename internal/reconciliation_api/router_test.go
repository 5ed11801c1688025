package reconciliation_api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bank-reconciliation-engine/internal/config"
	"github.com/bank-reconciliation-engine/internal/domain/reconciliation"
	"github.com/bank-reconciliation-engine/internal/reconciliation_api/middleware"
	"github.com/bank-reconciliation-engine/internal/workflow"
)

// stubService answers ListImports; any other call panics on the nil embedded interface
type stubService struct {
	workflow.ReconciliationService
	companyID uuid.UUID
}

func (s *stubService) ListImports(_ context.Context, companyID uuid.UUID, _, _ int) ([]*reconciliation.BankImport, int64, error) {
	s.companyID = companyID
	return []*reconciliation.BankImport{}, 0, nil
}

func newTestServer(t *testing.T) (*Server, *stubService) {
	t.Helper()
	cfg := &config.Config{
		Application: config.ApplicationConfig{Env: "test", Name: "reconciliation"},
		Server: config.ServerConfig{
			Port:               8080,
			CORSAllowedOrigins: []string{"http://localhost:3000"},
		},
		Import: config.ImportConfig{MaxUploadBytes: 1 << 20},
	}
	svc := &stubService{}
	server := NewServer(slog.New(slog.NewTextHandler(io.Discard, nil)), cfg, svc)
	require.NotNil(t, server)
	return server, svc
}

func tenantRequest(method, path string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set(middleware.OwnerIDHeader, uuid.NewString())
	req.Header.Set(middleware.CompanyIDHeader, uuid.NewString())
	return req
}

func TestRouter_Health(t *testing.T) {
	server, _ := newTestServer(t)

	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"ok"`)
	assert.NotEmpty(t, rr.Header().Get(middleware.CorrelationIDHeader))
}

func TestRouter_TenantScoping(t *testing.T) {
	server, svc := newTestServer(t)

	t.Run("MissingHeaders", func(t *testing.T) {
		rr := httptest.NewRecorder()
		server.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/imports", nil))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), middleware.OwnerIDHeader)
	})

	t.Run("CompanyFromHeader", func(t *testing.T) {
		req := tenantRequest(http.MethodGet, "/api/v1/imports")
		rr := httptest.NewRecorder()
		server.Handler().ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, req.Header.Get(middleware.CompanyIDHeader), svc.companyID.String())
	})
}

func TestRouter_RecoversFromPanics(t *testing.T) {
	server, _ := newTestServer(t)

	req := tenantRequest(http.MethodGet, "/api/v1/imports/"+uuid.NewString())
	req.Header.Set(middleware.CorrelationIDHeader, "corr-panic")
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "corr-panic")
}

func TestRouter_CORS(t *testing.T) {
	server, _ := newTestServer(t)

	t.Run("AllowedOrigin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/imports", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", middleware.CompanyIDHeader)
		rr := httptest.NewRecorder()
		server.Handler().ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("UnknownOrigin", func(t *testing.T) {
		req := tenantRequest(http.MethodGet, "/api/v1/imports")
		req.Header.Set("Origin", "http://evil.example")
		rr := httptest.NewRecorder()
		server.Handler().ServeHTTP(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})
}

func TestRouter_UnknownRoute(t *testing.T) {
	server, _ := newTestServer(t)

	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, tenantRequest(http.MethodGet, "/api/v1/payments"))

	assert.Equal(t, http.StatusNotFound, rr.Code)
}
