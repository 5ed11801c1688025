package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bank-reconciliation-engine/internal/reconciliation_api/middleware"
	"github.com/bank-reconciliation-engine/internal/workflow"
)

// ImportHandler handles HTTP requests for import batches
type ImportHandler struct {
	service workflow.ReconciliationService
	logger  *slog.Logger
}

// NewImportHandler creates a new import handler
func NewImportHandler(logger *slog.Logger, service workflow.ReconciliationService) *ImportHandler {
	return &ImportHandler{
		service: service,
		logger:  logger,
	}
}

// List returns the company's imports, newest first
func (h *ImportHandler) List(c *gin.Context) {
	tenant, _ := middleware.GetTenant(c)

	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters")
		return
	}

	imports, total, err := h.service.ListImports(c.Request.Context(), tenant.CompanyID, pagination.Page, pagination.PerPage)
	if err != nil {
		respondServiceError(c, h.logger, "list imports", err)
		return
	}

	responses := make([]ImportResponse, 0, len(imports))
	for _, imp := range imports {
		responses = append(responses, mapImport(imp))
	}
	RespondWithPaginatedData(c, http.StatusOK, responses, pagination.Page, pagination.PerPage, int(total))
}

// GetByID returns an import with its snapshot and current status counts
func (h *ImportHandler) GetByID(c *gin.Context) {
	tenant, _ := middleware.GetTenant(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid import ID")
		return
	}

	summary, err := h.service.GetImport(c.Request.Context(), tenant.CompanyID, id)
	if err != nil {
		respondServiceError(c, h.logger, "get import", err)
		return
	}

	response := mapImport(summary.Import)
	response.LiveCounts = &summary.LiveCounts
	RespondOK(c, response)
}

// Delete removes an import with its transactions and reports the history cleanup
func (h *ImportHandler) Delete(c *gin.Context) {
	tenant, _ := middleware.GetTenant(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid import ID")
		return
	}

	result, err := h.service.DeleteImport(c.Request.Context(), tenant.CompanyID, id)
	if err != nil {
		respondServiceError(c, h.logger, "delete import", err)
		return
	}
	RespondOK(c, DeleteImportResponse{
		ImportID:       result.ImportID.String(),
		HistoryRemoved: result.HistoryRemoved,
		HistoryError:   result.HistoryError,
	})
}
