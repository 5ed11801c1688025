package reconciliation

import (
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Format is the statement format of an import
type Format string

const (
	FormatCSV   Format = "CSV"
	FormatMT940 Format = "MT940"
)

// Valid reports whether f is a supported format
func (f Format) Valid() bool {
	return f == FormatCSV || f == FormatMT940
}

// StatusCounts counts transactions per status
type StatusCounts struct {
	Confirmed int `json:"confirmed"`
	Pending   int `json:"pending"`
	Unmatched int `json:"unmatched"`
}

// Total returns the number of counted transactions
func (c StatusCounts) Total() int {
	return c.Confirmed + c.Pending + c.Unmatched
}

// Add counts one transaction with the given status
func (c *StatusCounts) Add(status Status) {
	switch status {
	case StatusConfirmed:
		c.Confirmed++
	case StatusPending:
		c.Pending++
	default:
		c.Unmatched++
	}
}

// CountStatuses counts the statuses of the given transactions
func CountStatuses(txs []*BankTransaction) StatusCounts {
	var counts StatusCounts
	for _, tx := range txs {
		counts.Add(tx.Status())
	}
	return counts
}

// BankImport is one ingestion batch. Counts are a snapshot taken at commit time
// and are never recomputed.
type BankImport struct {
	ID          uuid.UUID    `json:"id"`
	CompanyID   uuid.UUID    `json:"company_id"`
	Format      Format       `json:"format"`
	LineCount   int          `json:"line_count"`
	Counts      StatusCounts `json:"counts"`
	RawSnapshot string       `json:"raw_snapshot"`
	ImportedBy  string       `json:"imported_by"`
	ImportedAt  time.Time    `json:"imported_at"`
}

// NewBankImport creates an import header with snapshot counts of the given transactions
func NewBankImport(companyID uuid.UUID, format Format, lineCount int, raw string, snapshotLimit int, importedBy string, txs []*BankTransaction) (*BankImport, error) {
	if companyID == uuid.Nil {
		return nil, ErrMissingCompany
	}
	if !format.Valid() {
		return nil, ErrUnsupportedFormat
	}
	if importedBy == "" {
		return nil, ErrMissingActor
	}

	return &BankImport{
		ID:          uuid.New(),
		CompanyID:   companyID,
		Format:      format,
		LineCount:   lineCount,
		Counts:      CountStatuses(txs),
		RawSnapshot: TruncateRaw(raw, snapshotLimit),
		ImportedBy:  importedBy,
		ImportedAt:  time.Now().UTC(),
	}, nil
}

// TruncateRaw keeps at most limit characters of raw input without splitting a rune
func TruncateRaw(raw string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(raw) <= limit {
		return raw
	}
	n := 0
	for i := range raw {
		if n == limit {
			return raw[:i]
		}
		n++
	}
	return raw
}
