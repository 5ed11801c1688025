package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bank-reconciliation-engine/internal/domain/invoice"
	"github.com/bank-reconciliation-engine/internal/domain/reconciliation"
	"github.com/bank-reconciliation-engine/internal/logger"
	"github.com/bank-reconciliation-engine/internal/statement"
	"github.com/bank-reconciliation-engine/internal/workflow"
)

// errorStatus maps service errors to a status code and an error code.
// Unknown errors are internal.
func errorStatus(err error) (int, string) {
	var (
		formatErr      *statement.FormatError
		alreadyMatched reconciliation.ErrInvoiceAlreadyMatched
		invoiceMissing invoice.ErrInvoiceNotFound
		unknownKind    invoice.ErrUnknownKind
		badSelection   workflow.ErrUnknownSelection
	)

	switch {
	case errors.As(err, &formatErr), errors.Is(err, statement.ErrEmptyStatement):
		return http.StatusUnprocessableEntity, "INVALID_STATEMENT"
	case errors.Is(err, reconciliation.ErrInvoicesUnavailable):
		return http.StatusServiceUnavailable, "INVOICES_UNAVAILABLE"
	case errors.Is(err, reconciliation.ErrTransactionNotFound{}),
		errors.Is(err, reconciliation.ErrImportNotFound{}),
		errors.As(err, &invoiceMissing):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.As(err, &alreadyMatched):
		return http.StatusConflict, "INVOICE_ALREADY_MATCHED"
	case errors.Is(err, reconciliation.ErrNoInvoiceLink),
		errors.Is(err, reconciliation.ErrAlreadyConfirmed),
		errors.Is(err, reconciliation.ErrNotConfirmed),
		errors.Is(err, reconciliation.ErrTransactionConfirmed),
		errors.Is(err, reconciliation.ErrNothingToSync):
		return http.StatusConflict, "CONFLICT"
	case errors.Is(err, reconciliation.ErrDirectionMismatch),
		errors.Is(err, reconciliation.ErrMissingActor),
		errors.Is(err, reconciliation.ErrMissingCompany),
		errors.Is(err, reconciliation.ErrUnsupportedFormat),
		errors.Is(err, reconciliation.ErrEmptyEdit),
		errors.As(err, &unknownKind),
		errors.As(err, &badSelection):
		return http.StatusBadRequest, "BAD_REQUEST"
	}
	return http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"
}

// respondServiceError writes the error response for a failed service call
func respondServiceError(c *gin.Context, log *slog.Logger, operation string, err error) {
	status, code := errorStatus(err)
	reqLogger := logger.FromContext(c.Request.Context(), log)

	if status == http.StatusInternalServerError {
		reqLogger.Error("Request failed", "operation", operation, "error", err)
		RespondInternalError(c)
		return
	}
	reqLogger.Warn("Request rejected", "operation", operation, "status", status, "error", err)

	var formatErr *statement.FormatError
	if errors.As(err, &formatErr) && len(formatErr.RowErrors) > 0 {
		RespondWithErrorDetails(c, status, code, formatErr.Message, gin.H{"row_errors": mapRowErrors(formatErr.RowErrors)})
		return
	}
	if errors.As(err, &formatErr) && len(formatErr.MissingRoles) > 0 {
		RespondWithErrorDetails(c, status, code, err.Error(), gin.H{"missing_columns": formatErr.MissingRoles})
		return
	}

	var alreadyMatched reconciliation.ErrInvoiceAlreadyMatched
	if errors.As(err, &alreadyMatched) {
		RespondWithErrorDetails(c, status, code, err.Error(), gin.H{"matched_by_transaction_id": alreadyMatched.TransactionID.String()})
		return
	}

	RespondWithError(c, status, code, err.Error())
}

func errorInfo(err error) *ErrorInfo {
	status, code := errorStatus(err)
	if status == http.StatusInternalServerError {
		return &ErrorInfo{Code: code, Message: "An internal server error occurred"}
	}
	return &ErrorInfo{Code: code, Message: err.Error()}
}
