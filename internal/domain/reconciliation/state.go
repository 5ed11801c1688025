package reconciliation

import (
	"time"

	"github.com/google/uuid"

	"github.com/bank-reconciliation-engine/internal/domain/invoice"
)

// Status is the persisted name of a transaction's reconciliation state
type Status string

const (
	StatusUnmatched Status = "unmatched"
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
)

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusUnmatched, StatusPending, StatusConfirmed:
		return true
	}
	return false
}

// InvoiceLink holds the invoice fields copied onto a transaction when a match is accepted
type InvoiceLink struct {
	InvoiceID        uuid.UUID    `json:"invoice_id"`
	Kind             invoice.Kind `json:"kind"`
	InvoiceNumber    string       `json:"invoice_number"`
	InvoiceAmount    float64      `json:"invoice_amount"`
	CounterpartyName string       `json:"counterparty_name"`
	InvoiceDate      time.Time    `json:"invoice_date"`
	InvoiceStatus    string       `json:"invoice_status"`
}

// LinkFromInvoice copies the reconciliation-relevant fields of an invoice
func LinkFromInvoice(inv invoice.Invoice) InvoiceLink {
	return InvoiceLink{
		InvoiceID:        inv.ID,
		Kind:             inv.Kind,
		InvoiceNumber:    inv.InvoiceNumber,
		InvoiceAmount:    inv.TotalAmount,
		CounterpartyName: inv.CounterpartyName,
		InvoiceDate:      inv.InvoiceDate,
		InvoiceStatus:    inv.Status,
	}
}

// State is the reconciliation state of a transaction. It is one of Unmatched,
// Pending or Confirmed; a link exists exactly when the state is not Unmatched.
type State interface {
	Status() Status
	isState()
}

// Unmatched carries no invoice link
type Unmatched struct{}

// Pending links a transaction to an invoice awaiting operator confirmation
type Pending struct {
	Link InvoiceLink
}

// Confirmed is a link accepted by an operator or by a high-confidence commit
type Confirmed struct {
	Link        InvoiceLink
	ConfirmedBy string
	ConfirmedAt time.Time
}

func (Unmatched) Status() Status { return StatusUnmatched }
func (Pending) Status() Status   { return StatusPending }
func (Confirmed) Status() Status { return StatusConfirmed }

func (Unmatched) isState() {}
func (Pending) isState()   {}
func (Confirmed) isState() {}

// LinkOf returns the invoice link of a state, or nil for Unmatched
func LinkOf(s State) *InvoiceLink {
	switch st := s.(type) {
	case Pending:
		link := st.Link
		return &link
	case Confirmed:
		link := st.Link
		return &link
	}
	return nil
}

// StateFromRecord rebuilds a state from its persisted columns and rejects
// combinations the state type cannot represent.
func StateFromRecord(status Status, link *InvoiceLink, confirmedBy string, confirmedAt *time.Time) (State, error) {
	switch status {
	case StatusUnmatched:
		if link != nil {
			return nil, ErrInvalidState{Status: status, Reason: "unmatched transaction carries an invoice link"}
		}
		return Unmatched{}, nil
	case StatusPending:
		if link == nil {
			return nil, ErrInvalidState{Status: status, Reason: "pending transaction has no invoice link"}
		}
		return Pending{Link: *link}, nil
	case StatusConfirmed:
		if link == nil {
			return nil, ErrInvalidState{Status: status, Reason: "confirmed transaction has no invoice link"}
		}
		st := Confirmed{Link: *link, ConfirmedBy: confirmedBy}
		if confirmedAt != nil {
			st.ConfirmedAt = *confirmedAt
		}
		return st, nil
	}
	return nil, ErrInvalidState{Status: status, Reason: "unknown status"}
}
