package workflow

import (
	"github.com/google/uuid"

	"github.com/bank-reconciliation-engine/internal/domain/invoice"
	"github.com/bank-reconciliation-engine/internal/domain/reconciliation"
)

// ImportMeta describes the statement an import was committed from
type ImportMeta struct {
	Format     reconciliation.Format
	LineCount  int
	Raw        string
	ImportedBy string
}

// Outcome reports a workflow step whose invoice-side effect runs after the database commit.
// InvoiceSynced is false when that effect failed; the transaction keeps the change and
// carries the pending invoice update until RetryInvoiceSync succeeds. HistoryError is set
// when the change was committed but its history entry could not be stored.
type Outcome struct {
	Transaction      *reconciliation.BankTransaction
	InvoiceSynced    bool
	InvoiceSyncError string
	HistoryError     string
}

// BulkOutcome is the result of one transaction of ConfirmMany
type BulkOutcome struct {
	TransactionID uuid.UUID
	Outcome       *Outcome
	Err           error
}

// Conflict is a confirm-eligible row downgraded to pending at commit because its
// invoice was already matched
type Conflict struct {
	TempID        string
	TransactionID uuid.UUID
	InvoiceID     uuid.UUID
	Kind          invoice.Kind
	MatchedBy     uuid.UUID
}

// CommitResult is the outcome of CommitImport
type CommitResult struct {
	Import       *reconciliation.BankImport
	Transactions []*reconciliation.BankTransaction
	Outcomes     []Outcome
	Conflicts    []Conflict
}

// RematchReason explains a rematch outcome
type RematchReason string

const (
	RematchUpdated   RematchReason = "updated"
	RematchNoNew     RematchReason = "no new match"
	RematchConfirmed RematchReason = "confirmed"
	RematchNotFound  RematchReason = "not found"
)

// RematchOutcome is the result of re-matching one transaction
type RematchOutcome struct {
	TransactionID uuid.UUID
	Changed       bool
	Reason        RematchReason
	Status        reconciliation.Status
	Confidence    int
	Link          *reconciliation.InvoiceLink
}

// DeleteResult reports a deleted import. HistoryError is set when the import was
// deleted but its history documents could not be removed.
type DeleteResult struct {
	ImportID       uuid.UUID
	HistoryRemoved int64
	HistoryError   string
}

// ImportSummary pairs the commit-time snapshot counts with counts of the current transactions
type ImportSummary struct {
	Import     *reconciliation.BankImport
	LiveCounts reconciliation.StatusCounts
}
