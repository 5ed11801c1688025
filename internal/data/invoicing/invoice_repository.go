// Package invoicing adapts the invoicing system's database to the invoice.Collaborator
// contract. Sales and purchase invoices live in separate tables owned by that system.
package invoicing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/bank-reconciliation-engine/internal/config"
	"github.com/bank-reconciliation-engine/internal/domain/invoice"
)

const (
	SalesInvoicesTable    = "sales_invoices"
	PurchaseInvoicesTable = "purchase_invoices"
)

// invoiceRecord is a row of either invoice table
type invoiceRecord struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	OwnerID          uuid.UUID `gorm:"type:uuid;index"`
	CompanyID        uuid.UUID `gorm:"type:uuid;index"`
	InvoiceNumber    string    `gorm:"index"`
	CounterpartyName string
	TotalAmount      float64
	InvoiceDate      datatypes.Date
	Status           string `gorm:"index"`
	PaidAt           *time.Time
}

func (r invoiceRecord) toDomain(kind invoice.Kind) invoice.Invoice {
	return invoice.Invoice{
		ID:               r.ID,
		Kind:             kind,
		InvoiceNumber:    r.InvoiceNumber,
		TotalAmount:      r.TotalAmount,
		CounterpartyName: r.CounterpartyName,
		InvoiceDate:      time.Time(r.InvoiceDate).UTC(),
		Status:           r.Status,
	}
}

// InvoiceRepository implements invoice.Collaborator on the invoicing database
type InvoiceRepository struct {
	db     *gorm.DB
	cfg    config.InvoicingConfig
	logger *slog.Logger
}

var _ invoice.Collaborator = (*InvoiceRepository)(nil)

// NewInvoiceRepository creates the invoicing collaborator
func NewInvoiceRepository(logger *slog.Logger, db *gorm.DB, cfg config.InvoicingConfig) *InvoiceRepository {
	return &InvoiceRepository{
		db:     db,
		cfg:    cfg,
		logger: logger,
	}
}

func tableFor(kind invoice.Kind) (string, error) {
	switch kind {
	case invoice.KindOutgoing:
		return SalesInvoicesTable, nil
	case invoice.KindIncoming:
		return PurchaseInvoicesTable, nil
	}
	return "", invoice.ErrUnknownKind{Kind: kind}
}

func (r *InvoiceRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.cfg.Timeout)
}

// GetOutstandingInvoices returns every outstanding invoice of the given kind for a company.
// Any failure fails the whole read.
func (r *InvoiceRepository) GetOutstandingInvoices(ctx context.Context, ownerID, companyID uuid.UUID, kind invoice.Kind) ([]invoice.Invoice, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var records []invoiceRecord
	err = r.db.WithContext(ctx).
		Table(table).
		Where("owner_id = ? AND company_id = ?", ownerID, companyID).
		Where("status IN ?", r.cfg.OutstandingStatuses).
		Order("invoice_date ASC, invoice_number ASC").
		Find(&records).Error
	if err != nil {
		r.logger.Error("Failed to get outstanding invoices",
			"company_id", companyID.String(),
			"kind", string(kind),
			"error", err)
		return nil, fmt.Errorf("failed to get outstanding %s invoices: %w", kind, err)
	}

	invoices := make([]invoice.Invoice, 0, len(records))
	for _, rec := range records {
		invoices = append(invoices, rec.toDomain(kind))
	}
	return invoices, nil
}

// MarkInvoicePaid sets the invoice to the paid status
func (r *InvoiceRepository) MarkInvoicePaid(ctx context.Context, invoiceID uuid.UUID, kind invoice.Kind) error {
	now := time.Now().UTC()
	return r.setStatus(ctx, invoiceID, kind, map[string]interface{}{
		"status":  r.cfg.PaidStatus,
		"paid_at": now,
	})
}

// MarkInvoiceUnpaid returns the invoice to the first outstanding status and clears the payment date
func (r *InvoiceRepository) MarkInvoiceUnpaid(ctx context.Context, invoiceID uuid.UUID, kind invoice.Kind) error {
	return r.setStatus(ctx, invoiceID, kind, map[string]interface{}{
		"status":  r.unpaidStatus(),
		"paid_at": nil,
	})
}

func (r *InvoiceRepository) unpaidStatus() string {
	if len(r.cfg.OutstandingStatuses) > 0 {
		return r.cfg.OutstandingStatuses[0]
	}
	return "sent"
}

func (r *InvoiceRepository) setStatus(ctx context.Context, invoiceID uuid.UUID, kind invoice.Kind, values map[string]interface{}) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	result := r.db.WithContext(ctx).
		Table(table).
		Where("id = ?", invoiceID).
		Updates(values)
	if result.Error != nil {
		r.logger.Error("Failed to update invoice status",
			"invoice_id", invoiceID.String(),
			"kind", string(kind),
			"status", values["status"],
			"error", result.Error)
		return fmt.Errorf("failed to update invoice status: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return invoice.ErrInvoiceNotFound{InvoiceID: invoiceID}
	}

	r.logger.Debug("Updated invoice status",
		"invoice_id", invoiceID.String(),
		"kind", string(kind),
		"status", values["status"])
	return nil
}
