package reconciliation_api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/bank-reconciliation-engine/internal/reconciliation_api/handler"
	"github.com/bank-reconciliation-engine/internal/reconciliation_api/middleware"
)

type routeHandlers struct {
	statements   *handler.StatementHandler
	imports      *handler.ImportHandler
	transactions *handler.TransactionHandler
}

// setupRouter configures API routes and middleware for the application
func setupRouter(logger *slog.Logger, r *gin.Engine, allowedOrigins []string, h routeHandlers) {
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{
			"Origin", "Content-Type",
			middleware.CorrelationIDHeader,
			middleware.OwnerIDHeader,
			middleware.CompanyIDHeader,
			middleware.ActorHeader,
		},
		ExposeHeaders: []string{"Content-Length", middleware.CorrelationIDHeader},
		MaxAge:        12 * time.Hour,
	}))

	// API v1 endpoints, scoped to the owner and company headers
	v1 := r.Group("/api/v1", middleware.RequireTenant())
	{
		statements := v1.Group("/statements")
		{
			statements.POST("/parse", h.statements.Parse)
			statements.POST("/match", h.statements.Match)
		}

		imports := v1.Group("/imports")
		{
			imports.POST("", h.statements.Commit)
			imports.GET("", h.imports.List)
			imports.GET("/:id", h.imports.GetByID)
			imports.DELETE("/:id", h.imports.Delete)
		}

		transactions := v1.Group("/transactions")
		{
			transactions.GET("", h.transactions.List)
			transactions.POST("/confirm", h.transactions.BulkConfirm)
			transactions.POST("/rematch", h.transactions.Rematch)
			transactions.GET("/:id", h.transactions.GetByID)
			transactions.PATCH("/:id", h.transactions.Edit)
			transactions.POST("/:id/confirm", h.transactions.Confirm)
			transactions.POST("/:id/unconfirm", h.transactions.Unconfirm)
			transactions.POST("/:id/link", h.transactions.LinkInvoice)
			transactions.DELETE("/:id/link", h.transactions.UnlinkInvoice)
			transactions.POST("/:id/invoice-sync", h.transactions.RetryInvoiceSync)
		}

		v1.GET("/invoices/:kind/:id/matched", h.transactions.IsInvoiceMatched)
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
