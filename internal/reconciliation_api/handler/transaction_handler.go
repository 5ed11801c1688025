package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bank-reconciliation-engine/internal/domain/invoice"
	"github.com/bank-reconciliation-engine/internal/domain/reconciliation"
	"github.com/bank-reconciliation-engine/internal/reconciliation_api/middleware"
	"github.com/bank-reconciliation-engine/internal/workflow"
)

// TransactionHandler handles the review actions on committed bank transactions
type TransactionHandler struct {
	service workflow.ReconciliationService
	logger  *slog.Logger
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(logger *slog.Logger, service workflow.ReconciliationService) *TransactionHandler {
	return &TransactionHandler{
		service: service,
		logger:  logger,
	}
}

// List returns the company's transactions, optionally narrowed to an import or status
func (h *TransactionHandler) List(c *gin.Context) {
	tenant, _ := middleware.GetTenant(c)

	var params TransactionListParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	filter := reconciliation.TransactionFilter{
		Limit:  params.PerPage,
		Offset: (params.Page - 1) * params.PerPage,
	}
	if params.ImportID != "" {
		importID := uuid.MustParse(params.ImportID)
		filter.ImportID = &importID
	}
	if params.Status != "" {
		status := reconciliation.Status(params.Status)
		filter.Status = &status
	}

	txs, total, err := h.service.ListTransactions(c.Request.Context(), tenant.CompanyID, filter)
	if err != nil {
		respondServiceError(c, h.logger, "list transactions", err)
		return
	}
	RespondWithPaginatedData(c, http.StatusOK, mapTransactions(txs), params.Page, params.PerPage, int(total))
}

// GetByID returns a transaction with its history
func (h *TransactionHandler) GetByID(c *gin.Context) {
	tenant, id, ok := h.transactionParam(c)
	if !ok {
		return
	}

	t, err := h.service.GetTransaction(c.Request.Context(), tenant.CompanyID, id)
	if err != nil {
		respondServiceError(c, h.logger, "get transaction", err)
		return
	}
	RespondOK(c, mapTransaction(t))
}

// Confirm accepts the transaction's link and marks the invoice paid
func (h *TransactionHandler) Confirm(c *gin.Context) {
	tenant, id, ok := h.transactionParam(c)
	if !ok {
		return
	}

	outcome, err := h.service.Confirm(c.Request.Context(), tenant.CompanyID, id, tenant.Actor)
	if err != nil {
		respondServiceError(c, h.logger, "confirm", err)
		return
	}
	RespondOK(c, mapOutcome(*outcome))
}

// BulkConfirm confirms several transactions; each succeeds or fails on its own
func (h *TransactionHandler) BulkConfirm(c *gin.Context) {
	tenant, _ := middleware.GetTenant(c)

	ids, ok := bindTransactionIDs(c)
	if !ok {
		return
	}

	outcomes := h.service.ConfirmMany(c.Request.Context(), tenant.CompanyID, ids, tenant.Actor)
	responses := make([]BulkOutcomeResponse, 0, len(outcomes))
	for _, o := range outcomes {
		response := BulkOutcomeResponse{TransactionID: o.TransactionID.String()}
		if o.Err != nil {
			response.Error = errorInfo(o.Err)
		} else {
			mapped := mapOutcome(*o.Outcome)
			response.Outcome = &mapped
		}
		responses = append(responses, response)
	}
	RespondOK(c, responses)
}

// Unconfirm reverts a confirmation and marks the invoice unpaid
func (h *TransactionHandler) Unconfirm(c *gin.Context) {
	tenant, id, ok := h.transactionParam(c)
	if !ok {
		return
	}

	outcome, err := h.service.Unconfirm(c.Request.Context(), tenant.CompanyID, id, tenant.Actor)
	if err != nil {
		respondServiceError(c, h.logger, "unconfirm", err)
		return
	}
	RespondOK(c, mapOutcome(*outcome))
}

// Edit corrects the date, amount, description or beneficiary
func (h *TransactionHandler) Edit(c *gin.Context) {
	tenant, id, ok := h.transactionParam(c)
	if !ok {
		return
	}

	var req EditTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	fields := reconciliation.EditFields{
		Amount:      req.Amount,
		Description: req.Description,
		Beneficiary: req.Beneficiary,
	}
	if req.Date != nil {
		date, err := time.Parse(reconciliation.DateLayout, *req.Date)
		if err != nil {
			RespondBadRequest(c, "Invalid date, expected YYYY-MM-DD")
			return
		}
		fields.Date = &date
	}

	t, err := h.service.Edit(c.Request.Context(), tenant.CompanyID, id, fields, tenant.Actor)
	if err != nil {
		respondServiceError(c, h.logger, "edit", err)
		return
	}
	RespondOK(c, mapTransaction(t))
}

// LinkInvoice links an outstanding invoice manually
func (h *TransactionHandler) LinkInvoice(c *gin.Context) {
	tenant, id, ok := h.transactionParam(c)
	if !ok {
		return
	}

	var req LinkInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	t, err := h.service.LinkInvoice(c.Request.Context(), tenant.OwnerID, tenant.CompanyID, id,
		uuid.MustParse(req.InvoiceID), invoice.Kind(req.Kind), tenant.Actor)
	if err != nil {
		respondServiceError(c, h.logger, "link invoice", err)
		return
	}
	RespondOK(c, mapTransaction(t))
}

// UnlinkInvoice clears the link of a pending transaction
func (h *TransactionHandler) UnlinkInvoice(c *gin.Context) {
	tenant, id, ok := h.transactionParam(c)
	if !ok {
		return
	}

	t, err := h.service.UnlinkInvoice(c.Request.Context(), tenant.CompanyID, id, tenant.Actor)
	if err != nil {
		respondServiceError(c, h.logger, "unlink invoice", err)
		return
	}
	RespondOK(c, mapTransaction(t))
}

// Rematch re-runs matching for the given transactions
func (h *TransactionHandler) Rematch(c *gin.Context) {
	tenant, _ := middleware.GetTenant(c)

	ids, ok := bindTransactionIDs(c)
	if !ok {
		return
	}

	outcomes, err := h.service.Rematch(c.Request.Context(), tenant.OwnerID, tenant.CompanyID, ids)
	if err != nil {
		respondServiceError(c, h.logger, "rematch", err)
		return
	}

	responses := make([]RematchOutcomeResponse, 0, len(outcomes))
	for _, o := range outcomes {
		responses = append(responses, mapRematchOutcome(o))
	}
	RespondOK(c, responses)
}

// RetryInvoiceSync repeats a failed invoice update
func (h *TransactionHandler) RetryInvoiceSync(c *gin.Context) {
	tenant, id, ok := h.transactionParam(c)
	if !ok {
		return
	}

	outcome, err := h.service.RetryInvoiceSync(c.Request.Context(), tenant.CompanyID, id)
	if err != nil {
		respondServiceError(c, h.logger, "retry invoice sync", err)
		return
	}
	RespondOK(c, mapOutcome(*outcome))
}

// IsInvoiceMatched reports whether a confirmed transaction settles the invoice
func (h *TransactionHandler) IsInvoiceMatched(c *gin.Context) {
	tenant, _ := middleware.GetTenant(c)

	kind := invoice.Kind(c.Param("kind"))
	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid invoice ID")
		return
	}

	matched, err := h.service.IsInvoiceMatched(c.Request.Context(), tenant.CompanyID, invoiceID, kind)
	if err != nil {
		respondServiceError(c, h.logger, "invoice matched", err)
		return
	}
	RespondOK(c, InvoiceMatchedResponse{InvoiceID: invoiceID.String(), Kind: string(kind), Matched: matched})
}

func (h *TransactionHandler) transactionParam(c *gin.Context) (middleware.Tenant, uuid.UUID, bool) {
	tenant, _ := middleware.GetTenant(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid transaction ID")
		return tenant, uuid.Nil, false
	}
	return tenant, id, true
}

func bindTransactionIDs(c *gin.Context) ([]uuid.UUID, bool) {
	var req TransactionIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return nil, false
	}
	ids := make([]uuid.UUID, 0, len(req.TransactionIDs))
	for _, raw := range req.TransactionIDs {
		ids = append(ids, uuid.MustParse(raw))
	}
	return ids, true
}
