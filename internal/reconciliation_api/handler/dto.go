package handler

import (
	"time"

	"github.com/google/uuid"

	"github.com/bank-reconciliation-engine/internal/domain/reconciliation"
	"github.com/bank-reconciliation-engine/internal/matching"
	"github.com/bank-reconciliation-engine/internal/statement"
	"github.com/bank-reconciliation-engine/internal/workflow"
)

// StatementRequest carries a raw statement for parsing or matching
type StatementRequest struct {
	Format  string `json:"format" binding:"required,oneof=CSV MT940"`
	Content string `json:"content" binding:"required"`
}

// SelectionRequest overrides the previewed match of one row
type SelectionRequest struct {
	TempID    string  `json:"temp_id" binding:"required"`
	InvoiceID *string `json:"invoice_id" binding:"omitempty,uuid"`
}

// CommitImportRequest commits a statement. The statement is parsed and matched again
// against the current invoices; selections pick among the scored candidates.
type CommitImportRequest struct {
	StatementRequest
	Selections []SelectionRequest `json:"selections" binding:"omitempty,dive"`
}

// EditTransactionRequest lists the fields to correct; omitted fields stay unchanged
type EditTransactionRequest struct {
	Date        *string  `json:"date"`
	Amount      *float64 `json:"amount"`
	Description *string  `json:"description"`
	Beneficiary *string  `json:"beneficiary"`
}

// LinkInvoiceRequest links an outstanding invoice manually
type LinkInvoiceRequest struct {
	InvoiceID string `json:"invoice_id" binding:"required,uuid"`
	Kind      string `json:"kind" binding:"required,oneof=outgoing incoming"`
}

// TransactionIDsRequest names transactions for bulk operations
type TransactionIDsRequest struct {
	TransactionIDs []string `json:"transaction_ids" binding:"required,min=1,max=500,dive,uuid"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=20" binding:"min=1,max=100"`
}

// TransactionListParams filters the transaction listing
type TransactionListParams struct {
	PaginationParams
	ImportID string `form:"import_id" binding:"omitempty,uuid"`
	Status   string `form:"status" binding:"omitempty,oneof=unmatched pending confirmed"`
}

// RowErrorResponse describes a skipped statement row
type RowErrorResponse struct {
	Row     int    `json:"row"`
	Field   string `json:"field,omitempty"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

// InvoiceLinkResponse is the invoice a transaction is linked to
type InvoiceLinkResponse struct {
	InvoiceID        string  `json:"invoice_id"`
	Kind             string  `json:"kind"`
	InvoiceNumber    string  `json:"invoice_number"`
	InvoiceAmount    float64 `json:"invoice_amount"`
	CounterpartyName string  `json:"counterparty_name"`
	InvoiceDate      string  `json:"invoice_date"`
	InvoiceStatus    string  `json:"invoice_status"`
}

// HistoryEntryResponse is one recorded change
type HistoryEntryResponse struct {
	Action    string `json:"action"`
	Field     string `json:"field,omitempty"`
	OldValue  string `json:"old_value,omitempty"`
	NewValue  string `json:"new_value,omitempty"`
	Actor     string `json:"actor"`
	CreatedAt string `json:"created_at"`
}

// TransactionResponse represents a bank transaction in API responses
type TransactionResponse struct {
	ID               string                 `json:"id,omitempty"`
	TempID           string                 `json:"temp_id,omitempty"`
	ImportID         string                 `json:"import_id,omitempty"`
	Date             string                 `json:"date"`
	Amount           float64                `json:"amount"`
	Direction        string                 `json:"direction"`
	Description      string                 `json:"description"`
	Beneficiary      string                 `json:"beneficiary,omitempty"`
	Reference        string                 `json:"reference,omitempty"`
	Status           string                 `json:"status"`
	Confidence       int                    `json:"confidence"`
	Invoice          *InvoiceLinkResponse   `json:"invoice,omitempty"`
	ConfirmedBy      string                 `json:"confirmed_by,omitempty"`
	ConfirmedAt      string                 `json:"confirmed_at,omitempty"`
	InvoiceSync      string                 `json:"invoice_sync,omitempty"`
	InvoiceSyncError string                 `json:"invoice_sync_error,omitempty"`
	History          []HistoryEntryResponse `json:"history,omitempty"`
	CreatedAt        string                 `json:"created_at,omitempty"`
	UpdatedAt        string                 `json:"updated_at,omitempty"`
}

// CandidateResponse is one scored invoice of a match preview
type CandidateResponse struct {
	Invoice    InvoiceLinkResponse `json:"invoice"`
	Confidence int                 `json:"confidence"`
	Breakdown  matching.Breakdown  `json:"breakdown"`
	Reasons    []string            `json:"reasons"`
}

// MatchResultResponse is the preview of one parsed row
type MatchResultResponse struct {
	Transaction TransactionResponse `json:"transaction"`
	Status      string              `json:"status"`
	Confidence  int                 `json:"confidence"`
	Candidates  []CandidateResponse `json:"candidates"`
}

// ParseResponse is the outcome of parsing a statement
type ParseResponse struct {
	Format       string                `json:"format"`
	LineCount    int                   `json:"line_count"`
	Transactions []TransactionResponse `json:"transactions"`
	RowErrors    []RowErrorResponse    `json:"row_errors"`
}

// MatchResponse is a parse plus match preview
type MatchResponse struct {
	Format    string                `json:"format"`
	LineCount int                   `json:"line_count"`
	Results   []MatchResultResponse `json:"results"`
	RowErrors []RowErrorResponse    `json:"row_errors"`
}

// ImportResponse represents an import batch
type ImportResponse struct {
	ID         string                       `json:"id"`
	Format     string                       `json:"format"`
	LineCount  int                          `json:"line_count"`
	Counts     reconciliation.StatusCounts  `json:"counts"`
	LiveCounts *reconciliation.StatusCounts `json:"live_counts,omitempty"`
	ImportedBy string                       `json:"imported_by"`
	ImportedAt string                       `json:"imported_at"`
}

// DeleteImportResponse reports a deleted import
type DeleteImportResponse struct {
	ImportID       string `json:"import_id"`
	HistoryRemoved int64  `json:"history_removed"`
	HistoryError   string `json:"history_error,omitempty"`
}

// OutcomeResponse reports a step with an invoice-side effect
type OutcomeResponse struct {
	Transaction      TransactionResponse `json:"transaction"`
	InvoiceSynced    bool                `json:"invoice_synced"`
	InvoiceSyncError string              `json:"invoice_sync_error,omitempty"`
	HistoryError     string              `json:"history_error,omitempty"`
}

// ConflictResponse is a row stored as pending because its invoice was already matched
type ConflictResponse struct {
	TempID        string `json:"temp_id"`
	TransactionID string `json:"transaction_id"`
	InvoiceID     string `json:"invoice_id"`
	Kind          string `json:"kind"`
	MatchedBy     string `json:"matched_by_transaction_id"`
}

// CommitResponse is the outcome of committing an import
type CommitResponse struct {
	Import              ImportResponse        `json:"import"`
	Transactions        []TransactionResponse `json:"transactions"`
	Conflicts           []ConflictResponse    `json:"conflicts"`
	InvoiceSyncFailures []OutcomeResponse     `json:"invoice_sync_failures"`
	RowErrors           []RowErrorResponse    `json:"row_errors"`
}

// BulkOutcomeResponse is the result of one transaction of a bulk confirm
type BulkOutcomeResponse struct {
	TransactionID string           `json:"transaction_id"`
	Outcome       *OutcomeResponse `json:"outcome,omitempty"`
	Error         *ErrorInfo       `json:"error,omitempty"`
}

// RematchOutcomeResponse is the result of re-matching one transaction
type RematchOutcomeResponse struct {
	TransactionID string               `json:"transaction_id"`
	Changed       bool                 `json:"changed"`
	Reason        string               `json:"reason"`
	Status        string               `json:"status,omitempty"`
	Confidence    int                  `json:"confidence"`
	Invoice       *InvoiceLinkResponse `json:"invoice,omitempty"`
}

// InvoiceMatchedResponse answers whether an invoice is settled by a confirmed transaction
type InvoiceMatchedResponse struct {
	InvoiceID string `json:"invoice_id"`
	Kind      string `json:"kind"`
	Matched   bool   `json:"matched"`
}

func mapLink(link *reconciliation.InvoiceLink) *InvoiceLinkResponse {
	if link == nil {
		return nil
	}
	return &InvoiceLinkResponse{
		InvoiceID:        link.InvoiceID.String(),
		Kind:             string(link.Kind),
		InvoiceNumber:    link.InvoiceNumber,
		InvoiceAmount:    link.InvoiceAmount,
		CounterpartyName: link.CounterpartyName,
		InvoiceDate:      link.InvoiceDate.Format(reconciliation.DateLayout),
		InvoiceStatus:    link.InvoiceStatus,
	}
}

func mapTransaction(t *reconciliation.BankTransaction) TransactionResponse {
	response := TransactionResponse{
		TempID:      t.TempID,
		Date:        t.Date.Format(reconciliation.DateLayout),
		Amount:      t.Amount,
		Direction:   string(t.Direction()),
		Description: t.Description,
		Beneficiary: t.Beneficiary,
		Reference:   t.Reference,
		Status:      string(t.Status()),
		Confidence:  t.Confidence,
		Invoice:     mapLink(t.Link()),
	}

	if t.ID != uuid.Nil {
		response.ID = t.ID.String()
		response.ImportID = t.ImportID.String()
		response.InvoiceSync = string(t.InvoiceSync)
		response.InvoiceSyncError = t.InvoiceSyncError
		response.CreatedAt = t.CreatedAt.Format(time.RFC3339)
		response.UpdatedAt = t.UpdatedAt.Format(time.RFC3339)
	}
	if st, ok := t.State.(reconciliation.Confirmed); ok {
		response.ConfirmedBy = st.ConfirmedBy
		response.ConfirmedAt = st.ConfirmedAt.Format(time.RFC3339)
	}
	for _, h := range t.History {
		response.History = append(response.History, HistoryEntryResponse{
			Action:    string(h.Action),
			Field:     h.Field,
			OldValue:  h.OldValue,
			NewValue:  h.NewValue,
			Actor:     h.Actor,
			CreatedAt: h.CreatedAt.Format(time.RFC3339),
		})
	}
	return response
}

func mapTransactions(txs []*reconciliation.BankTransaction) []TransactionResponse {
	responses := make([]TransactionResponse, 0, len(txs))
	for _, t := range txs {
		responses = append(responses, mapTransaction(t))
	}
	return responses
}

func mapRowErrors(rowErrors []statement.RowError) []RowErrorResponse {
	responses := make([]RowErrorResponse, 0, len(rowErrors))
	for _, re := range rowErrors {
		response := RowErrorResponse{Row: re.Row, Field: re.Field, Value: re.Value}
		if re.Err != nil {
			response.Message = re.Err.Error()
		}
		responses = append(responses, response)
	}
	return responses
}

func mapMatchResult(r matching.Result) MatchResultResponse {
	tx := r.Transaction
	response := MatchResultResponse{
		Transaction: mapTransaction(&tx),
		Status:      string(r.Status),
		Confidence:  r.Confidence,
		Candidates:  make([]CandidateResponse, 0, len(r.Candidates)),
	}
	for _, c := range r.Candidates {
		link := c.Link()
		response.Candidates = append(response.Candidates, CandidateResponse{
			Invoice:    *mapLink(&link),
			Confidence: c.Confidence,
			Breakdown:  c.Breakdown,
			Reasons:    c.Reasons,
		})
	}
	return response
}

func mapImport(imp *reconciliation.BankImport) ImportResponse {
	return ImportResponse{
		ID:         imp.ID.String(),
		Format:     string(imp.Format),
		LineCount:  imp.LineCount,
		Counts:     imp.Counts,
		ImportedBy: imp.ImportedBy,
		ImportedAt: imp.ImportedAt.Format(time.RFC3339),
	}
}

func mapOutcome(o workflow.Outcome) OutcomeResponse {
	return OutcomeResponse{
		Transaction:      mapTransaction(o.Transaction),
		InvoiceSynced:    o.InvoiceSynced,
		InvoiceSyncError: o.InvoiceSyncError,
		HistoryError:     o.HistoryError,
	}
}

func mapRematchOutcome(o workflow.RematchOutcome) RematchOutcomeResponse {
	return RematchOutcomeResponse{
		TransactionID: o.TransactionID.String(),
		Changed:       o.Changed,
		Reason:        string(o.Reason),
		Status:        string(o.Status),
		Confidence:    o.Confidence,
		Invoice:       mapLink(o.Link),
	}
}
