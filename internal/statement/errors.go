package statement

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bank-reconciliation-engine/internal/domain/reconciliation"
)

// maxReportedRowErrors limits the row errors carried by a fatal FormatError
const maxReportedRowErrors = 5

var (
	ErrEmptyStatement    = errors.New("statement is empty")
	ErrUnsupportedFormat = reconciliation.ErrUnsupportedFormat
	ErrShortRow          = errors.New("row has fewer columns than the header mapping requires")
	ErrUnknownIndicator  = errors.New("unknown credit/debit indicator")
)

// FormatError is fatal for the whole parse call: the input as a whole
// could not be interpreted.
type FormatError struct {
	Message      string
	MissingRoles []Role
	RowErrors    []RowError
}

func (e *FormatError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if len(e.MissingRoles) > 0 {
		names := make([]string, len(e.MissingRoles))
		for i, r := range e.MissingRoles {
			names[i] = string(r)
		}
		fmt.Fprintf(&b, ": missing column(s) %s", strings.Join(names, ", "))
	}
	if len(e.RowErrors) > 0 {
		msgs := make([]string, len(e.RowErrors))
		for i, re := range e.RowErrors {
			msgs[i] = re.Error()
		}
		fmt.Fprintf(&b, ": %s", strings.Join(msgs, "; "))
	}
	return b.String()
}

// RowError is a recoverable failure of a single data row
type RowError struct {
	Row   int    `json:"row"`
	Field string `json:"field,omitempty"`
	Value string `json:"value,omitempty"`
	Err   error  `json:"-"`
}

func (e RowError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("row %d: %v", e.Row, e.Err)
	}
	return fmt.Sprintf("row %d (%s=%q): %v", e.Row, e.Field, e.Value, e.Err)
}

func (e RowError) Unwrap() error {
	return e.Err
}

func newRowsFailedError(rowErrors []RowError) *FormatError {
	reported := rowErrors
	if len(reported) > maxReportedRowErrors {
		reported = reported[:maxReportedRowErrors]
	}
	return &FormatError{
		Message:   fmt.Sprintf("none of the %d statement rows could be parsed", len(rowErrors)),
		RowErrors: reported,
	}
}
