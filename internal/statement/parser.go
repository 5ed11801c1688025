// Package statement turns raw bank exports into draft bank transactions.
// It understands delimited text (comma, semicolon or tab separated, with a
// header line) and MT940 statements. Parsing is pure; Parser adds logging.
package statement

import (
	"log/slog"
	"strings"

	"github.com/bank-reconciliation-engine/internal/domain/reconciliation"
)

// Result is the outcome of a successful parse. RowErrors lists rows that
// were skipped.
type Result struct {
	Format       reconciliation.Format            `json:"format"`
	Transactions []reconciliation.BankTransaction `json:"transactions"`
	RowErrors    []RowError                       `json:"row_errors"`
	LineCount    int                              `json:"line_count"`
}

// Parse dispatches raw input to the parser of the requested format
func Parse(raw string, format reconciliation.Format) (*Result, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrEmptyStatement
	}
	switch format {
	case reconciliation.FormatCSV:
		return ParseDelimited(raw)
	case reconciliation.FormatMT940:
		return ParseMT940(raw)
	}
	return nil, ErrUnsupportedFormat
}

// Parser wraps Parse with logging
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a Parser
func NewParser(logger *slog.Logger) *Parser {
	return &Parser{logger: logger}
}

// Parse parses raw input and logs a warning when the input is rejected or rows were skipped
func (p *Parser) Parse(raw string, format reconciliation.Format) (*Result, error) {
	result, err := Parse(raw, format)
	if err != nil {
		p.logger.Warn("Statement rejected", "format", format, "error", err)
		return nil, err
	}

	if len(result.RowErrors) > 0 {
		p.logger.Warn("Skipped unparseable statement rows",
			"format", format,
			"skipped", len(result.RowErrors),
			"parsed", len(result.Transactions),
			"first_error", result.RowErrors[0].Error())
	}
	p.logger.Debug("Statement parsed", "format", format, "transactions", len(result.Transactions), "lines", result.LineCount)
	return result, nil
}
