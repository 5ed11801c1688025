package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bank-reconciliation-engine/internal/domain/reconciliation"
	"github.com/bank-reconciliation-engine/internal/matching"
	"github.com/bank-reconciliation-engine/internal/reconciliation_api/middleware"
	"github.com/bank-reconciliation-engine/internal/statement"
	"github.com/bank-reconciliation-engine/internal/workflow"
)

// StatementHandler handles statement upload, match preview and commit
type StatementHandler struct {
	service        workflow.ReconciliationService
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewStatementHandler creates a new statement handler
func NewStatementHandler(logger *slog.Logger, service workflow.ReconciliationService, maxUploadBytes int64) *StatementHandler {
	return &StatementHandler{
		service:        service,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// Parse reads a statement and returns its transactions and skipped rows
func (h *StatementHandler) Parse(c *gin.Context) {
	var req StatementRequest
	if !h.bind(c, &req) {
		return
	}

	result, err := h.service.Parse(c.Request.Context(), req.Content, reconciliation.Format(req.Format))
	if err != nil {
		respondServiceError(c, h.logger, "parse", err)
		return
	}

	transactions := make([]TransactionResponse, 0, len(result.Transactions))
	for i := range result.Transactions {
		transactions = append(transactions, mapTransaction(&result.Transactions[i]))
	}
	RespondOK(c, ParseResponse{
		Format:       string(result.Format),
		LineCount:    result.LineCount,
		Transactions: transactions,
		RowErrors:    mapRowErrors(result.RowErrors),
	})
}

// Match parses a statement and previews the matches against the current outstanding invoices
func (h *StatementHandler) Match(c *gin.Context) {
	tenant, _ := middleware.GetTenant(c)

	var req StatementRequest
	if !h.bind(c, &req) {
		return
	}

	parsed, results, ok := h.parseAndMatch(c, tenant, req)
	if !ok {
		return
	}

	response := MatchResponse{
		Format:    string(parsed.Format),
		LineCount: parsed.LineCount,
		Results:   make([]MatchResultResponse, 0, len(results)),
		RowErrors: mapRowErrors(parsed.RowErrors),
	}
	for _, r := range results {
		response.Results = append(response.Results, mapMatchResult(r))
	}
	RespondOK(c, response)
}

// Commit parses, matches and stores a statement as a new import
func (h *StatementHandler) Commit(c *gin.Context) {
	tenant, _ := middleware.GetTenant(c)

	var req CommitImportRequest
	if !h.bind(c, &req) {
		return
	}

	selections, err := parseSelections(req.Selections)
	if err != nil {
		RespondBadRequest(c, err.Error())
		return
	}

	parsed, results, ok := h.parseAndMatch(c, tenant, req.StatementRequest)
	if !ok {
		return
	}
	if err := workflow.ApplySelections(results, selections); err != nil {
		respondServiceError(c, h.logger, "commit", err)
		return
	}

	committed, err := h.service.CommitImport(c.Request.Context(), tenant.OwnerID, tenant.CompanyID, results, workflow.ImportMeta{
		Format:     parsed.Format,
		LineCount:  parsed.LineCount,
		Raw:        req.Content,
		ImportedBy: tenant.Actor,
	})
	if err != nil {
		respondServiceError(c, h.logger, "commit", err)
		return
	}

	response := CommitResponse{
		Import:              mapImport(committed.Import),
		Transactions:        mapTransactions(committed.Transactions),
		Conflicts:           make([]ConflictResponse, 0, len(committed.Conflicts)),
		InvoiceSyncFailures: []OutcomeResponse{},
		RowErrors:           mapRowErrors(parsed.RowErrors),
	}
	for _, conflict := range committed.Conflicts {
		response.Conflicts = append(response.Conflicts, ConflictResponse{
			TempID:        conflict.TempID,
			TransactionID: conflict.TransactionID.String(),
			InvoiceID:     conflict.InvoiceID.String(),
			Kind:          string(conflict.Kind),
			MatchedBy:     conflict.MatchedBy.String(),
		})
	}
	for _, outcome := range committed.Outcomes {
		if !outcome.InvoiceSynced {
			response.InvoiceSyncFailures = append(response.InvoiceSyncFailures, mapOutcome(outcome))
		}
	}
	RespondCreated(c, response)
}

func (h *StatementHandler) parseAndMatch(c *gin.Context, tenant middleware.Tenant, req StatementRequest) (*statement.Result, []matching.Result, bool) {
	parsed, err := h.service.Parse(c.Request.Context(), req.Content, reconciliation.Format(req.Format))
	if err != nil {
		respondServiceError(c, h.logger, "parse", err)
		return nil, nil, false
	}

	results, err := h.service.Match(c.Request.Context(), tenant.OwnerID, tenant.CompanyID, parsed.Transactions)
	if err != nil {
		respondServiceError(c, h.logger, "match", err)
		return nil, nil, false
	}
	return parsed, results, true
}

// bind limits the request body and decodes it; it writes the error response itself
func (h *StatementHandler) bind(c *gin.Context, req interface{}) bool {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	if err := c.ShouldBindJSON(req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			RespondWithError(c, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Statement exceeds the upload limit")
			return false
		}
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func parseSelections(requests []SelectionRequest) ([]workflow.Selection, error) {
	selections := make([]workflow.Selection, 0, len(requests))
	for _, r := range requests {
		sel := workflow.Selection{TempID: r.TempID}
		if r.InvoiceID != nil {
			id, err := uuid.Parse(*r.InvoiceID)
			if err != nil {
				return nil, err
			}
			sel.InvoiceID = &id
		}
		selections = append(selections, sel)
	}
	return selections, nil
}
