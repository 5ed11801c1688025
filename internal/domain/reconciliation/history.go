package reconciliation

import (
	"time"

	"github.com/google/uuid"
)

// Action names a recorded change to a transaction
type Action string

const (
	ActionEdit        Action = "edit"
	ActionConfirm     Action = "confirm"
	ActionUnconfirm   Action = "unconfirm"
	ActionLink        Action = "link"
	ActionUnlink      Action = "unlink"
	ActionRematch     Action = "rematch"
	ActionInvoiceSync Action = "invoice_sync"
)

// HistoryEntry is one append-only record in a transaction's edit and confirmation history
type HistoryEntry struct {
	ID            uuid.UUID `json:"id" bson:"_id"`
	TransactionID uuid.UUID `json:"transaction_id" bson:"transaction_id"`
	ImportID      uuid.UUID `json:"import_id" bson:"import_id"`
	CompanyID     uuid.UUID `json:"company_id" bson:"company_id"`
	Action        Action    `json:"action" bson:"action"`
	Field         string    `json:"field,omitempty" bson:"field,omitempty"`
	OldValue      string    `json:"old_value,omitempty" bson:"old_value,omitempty"`
	NewValue      string    `json:"new_value,omitempty" bson:"new_value,omitempty"`
	Actor         string    `json:"actor" bson:"actor"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at"`
}

// NewHistoryEntry creates a history entry for the given transaction
func NewHistoryEntry(t *BankTransaction, action Action, field, oldValue, newValue, actor string, at time.Time) *HistoryEntry {
	return &HistoryEntry{
		ID:            uuid.New(),
		TransactionID: t.ID,
		ImportID:      t.ImportID,
		CompanyID:     t.CompanyID,
		Action:        action,
		Field:         field,
		OldValue:      oldValue,
		NewValue:      newValue,
		Actor:         actor,
		CreatedAt:     at,
	}
}
