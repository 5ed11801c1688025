package shared

import (
	"time"

	"github.com/google/uuid"

	"github.com/bank-reconciliation-engine/internal/domain/invoice"
)

// EventType names a reconciliation event published to downstream bookkeeping
type EventType string

const (
	EventImportCommitted      EventType = "reconciliation.import_committed"
	EventImportDeleted        EventType = "reconciliation.import_deleted"
	EventTransactionConfirmed EventType = "reconciliation.transaction_confirmed"
	EventTransactionUnconfirm EventType = "reconciliation.transaction_unconfirmed"
	EventTransactionLinked    EventType = "reconciliation.transaction_linked"
	EventTransactionUnlinked  EventType = "reconciliation.transaction_unlinked"
	EventTransactionRematched EventType = "reconciliation.transaction_rematched"
)

// ReconciliationEvent is the payload stored in the outbox and published to Kafka
type ReconciliationEvent struct {
	ID            uuid.UUID    `json:"id"`
	Type          EventType    `json:"type"`
	CompanyID     uuid.UUID    `json:"company_id"`
	ImportID      uuid.UUID    `json:"import_id"`
	TransactionID *uuid.UUID   `json:"transaction_id,omitempty"`
	InvoiceID     *uuid.UUID   `json:"invoice_id,omitempty"`
	InvoiceKind   invoice.Kind `json:"invoice_kind,omitempty"`
	Status        string       `json:"status,omitempty"`
	Confidence    int          `json:"confidence,omitempty"`
	Actor         string       `json:"actor,omitempty"`
	CorrelationID string       `json:"correlation_id,omitempty"`
	OccurredAt    time.Time    `json:"occurred_at"`
}

// AggregateID returns the transaction id when present, otherwise the import id
func (e *ReconciliationEvent) AggregateID() uuid.UUID {
	if e.TransactionID != nil {
		return *e.TransactionID
	}
	return e.ImportID
}

// InvoiceEventType names an invoice lifecycle event emitted by the invoicing system
type InvoiceEventType string

const (
	InvoiceEventCreated InvoiceEventType = "invoice.created"
	InvoiceEventUpdated InvoiceEventType = "invoice.updated"
)

// InvoiceEvent is consumed from the invoicing system's topic
type InvoiceEvent struct {
	Type          InvoiceEventType `json:"type"`
	InvoiceID     uuid.UUID        `json:"invoice_id"`
	Kind          invoice.Kind     `json:"kind"`
	OwnerID       uuid.UUID        `json:"owner_id"`
	CompanyID     uuid.UUID        `json:"company_id"`
	CorrelationID string           `json:"correlation_id,omitempty"`
	OccurredAt    time.Time        `json:"occurred_at"`
}
