package reconciliation

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/bank-reconciliation-engine/internal/domain/invoice"
)

// Direction tells whether money was received or paid
type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

// InvoiceSync records an invoice-side update that failed after the transaction was changed
type InvoiceSync string

const (
	InvoiceSyncNone          InvoiceSync = "none"
	InvoiceSyncPaidPending   InvoiceSync = "paid_pending"
	InvoiceSyncUnpaidPending InvoiceSync = "unpaid_pending"
)

// DateLayout is the calendar-date layout used for history values and APIs
const DateLayout = "2006-01-02"

// BankTransaction is one bank ledger line. Drafts produced by the parsers carry
// a TempID and no ID, company or import until the import is committed.
type BankTransaction struct {
	ID          uuid.UUID
	TempID      string
	CompanyID   uuid.UUID
	ImportID    uuid.UUID
	Date        time.Time
	Amount      float64
	Description string
	Beneficiary string
	Reference   string
	State       State
	Confidence  int

	InvoiceSync      InvoiceSync
	InvoiceSyncError string

	History   []*HistoryEntry
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewDraft creates an unmatched, uncommitted transaction
func NewDraft(tempID string, date time.Time, amount float64, description, beneficiary, reference string) BankTransaction {
	return BankTransaction{
		TempID:      tempID,
		Date:        date,
		Amount:      amount,
		Description: description,
		Beneficiary: beneficiary,
		Reference:   reference,
		State:       Unmatched{},
		InvoiceSync: InvoiceSyncNone,
	}
}

// Direction derives the transaction direction from the amount sign
func (t *BankTransaction) Direction() Direction {
	if t.Amount < 0 {
		return DirectionOutgoing
	}
	return DirectionIncoming
}

// InvoiceKind returns the kind of invoice this transaction may settle
func (t *BankTransaction) InvoiceKind() invoice.Kind {
	return invoice.KindForAmount(t.Amount)
}

// Status returns the status of the current state
func (t *BankTransaction) Status() Status {
	if t.State == nil {
		return StatusUnmatched
	}
	return t.State.Status()
}

// Link returns the linked invoice or nil
func (t *BankTransaction) Link() *InvoiceLink {
	return LinkOf(t.State)
}

// Confirm promotes a pending link to confirmed
func (t *BankTransaction) Confirm(actor string, at time.Time) error {
	if actor == "" {
		return ErrMissingActor
	}
	switch st := t.State.(type) {
	case Pending:
		t.State = Confirmed{Link: st.Link, ConfirmedBy: actor, ConfirmedAt: at}
	case Confirmed:
		return ErrAlreadyConfirmed
	default:
		return ErrNoInvoiceLink
	}
	t.UpdatedAt = at
	return nil
}

// Unconfirm reverts a confirmed transaction to pending and keeps its link
func (t *BankTransaction) Unconfirm(at time.Time) error {
	st, ok := t.State.(Confirmed)
	if !ok {
		return ErrNotConfirmed
	}
	t.State = Pending{Link: st.Link}
	t.UpdatedAt = at
	return nil
}

// LinkInvoice sets the invoice link manually and forces the state to pending
func (t *BankTransaction) LinkInvoice(link InvoiceLink, at time.Time) error {
	if _, ok := t.State.(Confirmed); ok {
		return ErrTransactionConfirmed
	}
	if link.Kind != t.InvoiceKind() {
		return ErrDirectionMismatch
	}
	t.State = Pending{Link: link}
	t.Confidence = 100
	t.UpdatedAt = at
	return nil
}

// UnlinkInvoice clears the invoice link and resets the confidence
func (t *BankTransaction) UnlinkInvoice(at time.Time) error {
	switch t.State.(type) {
	case Confirmed:
		return ErrTransactionConfirmed
	case Pending:
	default:
		return ErrNoInvoiceLink
	}
	t.State = Unmatched{}
	t.Confidence = 0
	t.UpdatedAt = at
	return nil
}

// ApplyMatch replaces the link and confidence with a matching result.
// A nil link leaves the transaction unmatched.
func (t *BankTransaction) ApplyMatch(link *InvoiceLink, confidence int, at time.Time) error {
	if _, ok := t.State.(Confirmed); ok {
		return ErrTransactionConfirmed
	}
	if link == nil {
		t.State = Unmatched{}
		t.Confidence = 0
	} else {
		t.State = Pending{Link: *link}
		t.Confidence = confidence
	}
	t.UpdatedAt = at
	return nil
}

// EditFields lists the operator-editable fields; nil means unchanged
type EditFields struct {
	Date        *time.Time
	Amount      *float64
	Description *string
	Beneficiary *string
}

// IsEmpty reports whether no field is set
func (f EditFields) IsEmpty() bool {
	return f.Date == nil && f.Amount == nil && f.Description == nil && f.Beneficiary == nil
}

// ApplyEdit applies the changed fields and returns one history entry per change.
// Changing the sign of a linked transaction's amount is rejected.
func (t *BankTransaction) ApplyEdit(fields EditFields, actor string, at time.Time) ([]*HistoryEntry, error) {
	if actor == "" {
		return nil, ErrMissingActor
	}
	if fields.IsEmpty() {
		return nil, ErrEmptyEdit
	}

	var changes []*HistoryEntry
	record := func(field, oldValue, newValue string) {
		changes = append(changes, NewHistoryEntry(t, ActionEdit, field, oldValue, newValue, actor, at))
	}

	if fields.Amount != nil && *fields.Amount != t.Amount {
		if t.Link() != nil && invoice.KindForAmount(*fields.Amount) != t.InvoiceKind() {
			return nil, ErrDirectionMismatch
		}
		record("amount", formatAmount(t.Amount), formatAmount(*fields.Amount))
		t.Amount = *fields.Amount
	}
	if fields.Date != nil && !sameDay(*fields.Date, t.Date) {
		record("date", t.Date.Format(DateLayout), fields.Date.Format(DateLayout))
		t.Date = *fields.Date
	}
	if fields.Description != nil && *fields.Description != t.Description {
		record("description", t.Description, *fields.Description)
		t.Description = *fields.Description
	}
	if fields.Beneficiary != nil && *fields.Beneficiary != t.Beneficiary {
		record("beneficiary", t.Beneficiary, *fields.Beneficiary)
		t.Beneficiary = *fields.Beneficiary
	}

	if len(changes) > 0 {
		t.UpdatedAt = at
	}
	return changes, nil
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
