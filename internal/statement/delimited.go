package statement

import (
	"fmt"
	"strings"

	"github.com/bank-reconciliation-engine/internal/domain/reconciliation"
)

// indicatorSigns maps credit/debit indicator values to the sign they impose
var indicatorSigns = map[string]float64{
	"c":      1,
	"cr":     1,
	"credit": 1,
	"bij":    1,
	"b":      1,
	"d":      -1,
	"dr":     -1,
	"debit":  -1,
	"af":     -1,
	"a":      -1,
}

// ParseDelimited parses a delimited statement whose first non-blank line holds
// the headers. Rows that fail are reported in Result.RowErrors; the call only
// fails as a whole when no row parses.
func ParseDelimited(raw string) (*Result, error) {
	lines := splitLines(raw)

	headerAt := -1
	for i, line := range lines {
		if strings.TrimSpace(line) != "" {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		return nil, ErrEmptyStatement
	}

	delim := DetectDelimiter(lines[headerAt])
	mapping, err := DetectColumns(SplitFields(lines[headerAt], delim))
	if err != nil {
		return nil, err
	}

	result := &Result{Format: reconciliation.FormatCSV}
	required := mapping.MaxIndex() + 1
	row := 0

	for _, line := range lines[headerAt+1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		row++

		fields := SplitFields(line, delim)
		if len(fields) < required {
			result.RowErrors = append(result.RowErrors, RowError{
				Row: row,
				Err: fmt.Errorf("%w: got %d, need %d", ErrShortRow, len(fields), required),
			})
			continue
		}

		tx, rowErr := parseRow(fields, mapping, row, len(result.Transactions)+1)
		if rowErr != nil {
			result.RowErrors = append(result.RowErrors, *rowErr)
			continue
		}
		result.Transactions = append(result.Transactions, tx)
	}

	result.LineCount = row
	if row == 0 {
		return nil, &FormatError{Message: "statement has a header but no data rows"}
	}
	if len(result.Transactions) == 0 {
		return nil, newRowsFailedError(result.RowErrors)
	}
	return result, nil
}

func parseRow(fields []string, mapping ColumnMapping, row, seq int) (reconciliation.BankTransaction, *RowError) {
	dateValue := fields[mapping.Date]
	date, err := ParseDate(dateValue)
	if err != nil {
		return reconciliation.BankTransaction{}, &RowError{Row: row, Field: string(RoleDate), Value: dateValue, Err: err}
	}

	amountValue := fields[mapping.Amount]
	amount, err := ParseAmount(amountValue)
	if err != nil {
		return reconciliation.BankTransaction{}, &RowError{Row: row, Field: string(RoleAmount), Value: amountValue, Err: err}
	}

	if mapping.Indicator >= 0 {
		indicator := strings.ToLower(fields[mapping.Indicator])
		if indicator != "" {
			sign, ok := indicatorSigns[indicator]
			if !ok {
				return reconciliation.BankTransaction{}, &RowError{Row: row, Field: string(RoleIndicator), Value: fields[mapping.Indicator], Err: ErrUnknownIndicator}
			}
			if amount < 0 {
				amount = -amount
			}
			amount *= sign
		}
	}

	return reconciliation.NewDraft(
		tempID(seq),
		date,
		amount,
		fields[mapping.Description],
		optionalField(fields, mapping.Beneficiary),
		optionalField(fields, mapping.Reference),
	), nil
}

func optionalField(fields []string, idx int) string {
	if idx < 0 || idx >= len(fields) {
		return ""
	}
	return fields[idx]
}

func splitLines(raw string) []string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")
	return strings.Split(strings.TrimPrefix(raw, "\ufeff"), "\n")
}

func tempID(seq int) string {
	return fmt.Sprintf("tmp-%d", seq)
}
