package shared

import (
	"errors"

	"github.com/google/uuid"
)

var (
	ErrUnknownInvoiceEvent = errors.New("unknown invoice event type")
	ErrUnknownInvoiceKind  = errors.New("unknown invoice kind")
	ErrMissingCompanyID    = errors.New("invoice event has no company id")
	ErrMissingOwnerID      = errors.New("invoice event has no owner id")
)

// Validate checks that an invoice event carries what re-matching needs
func (e *InvoiceEvent) Validate() error {
	if e.Type != InvoiceEventCreated && e.Type != InvoiceEventUpdated {
		return ErrUnknownInvoiceEvent
	}
	if !e.Kind.Valid() {
		return ErrUnknownInvoiceKind
	}
	if e.CompanyID == uuid.Nil {
		return ErrMissingCompanyID
	}
	if e.OwnerID == uuid.Nil {
		return ErrMissingOwnerID
	}
	return nil
}
