package invoice

import (
	"time"

	"github.com/google/uuid"
)

// Kind distinguishes sales invoices from purchase invoices
type Kind string

const (
	// KindOutgoing is a sales invoice issued by the company (money expected in)
	KindOutgoing Kind = "outgoing"
	// KindIncoming is a purchase invoice received by the company (money expected out)
	KindIncoming Kind = "incoming"
)

// Valid reports whether k is one of the known invoice kinds
func (k Kind) Valid() bool {
	return k == KindOutgoing || k == KindIncoming
}

// KindForAmount returns the invoice kind a signed bank amount may settle.
// Money received settles sales invoices, money paid settles purchase invoices.
func KindForAmount(amount float64) Kind {
	if amount < 0 {
		return KindIncoming
	}
	return KindOutgoing
}

// Invoice is an outstanding invoice as exposed by the invoicing system
type Invoice struct {
	ID               uuid.UUID `json:"id"`
	Kind             Kind      `json:"kind"`
	InvoiceNumber    string    `json:"invoice_number"`
	TotalAmount      float64   `json:"total_amount"`
	CounterpartyName string    `json:"counterparty_name"`
	InvoiceDate      time.Time `json:"invoice_date"`
	Status           string    `json:"status"`
}

// Set holds the outstanding invoices of one company, split by kind
type Set struct {
	Outgoing []Invoice
	Incoming []Invoice
}

// ForKind returns the invoices of the given kind
func (s Set) ForKind(kind Kind) []Invoice {
	if kind == KindIncoming {
		return s.Incoming
	}
	return s.Outgoing
}

// Find looks up an invoice by id within the given kind
func (s Set) Find(id uuid.UUID, kind Kind) (Invoice, bool) {
	for _, inv := range s.ForKind(kind) {
		if inv.ID == id {
			return inv, true
		}
	}
	return Invoice{}, false
}
