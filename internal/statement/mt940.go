package statement

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bank-reconciliation-engine/internal/domain/reconciliation"
)

const (
	mt940StatementTag = ":61:"
	mt940NarrativeTag = ":86:"
)

var (
	// value date, optional entry date, (reversal) credit/debit mark, optional funds code, amount
	mt940StatementLine = regexp.MustCompile(`^(\d{6})(\d{4})?(RC|RD|C|D)([A-Z])?(\d+),(\d*)`)
	mt940TagLine       = regexp.MustCompile(`^:\d{2}[A-Z]?:`)
	mt940NameField     = regexp.MustCompile(`/NAME/([^/\n]+)`)
)

// ParseMT940 parses an MT940 statement. Each :86: narrative belongs to the
// :61: statement line that precedes it. Segments without a usable date or
// amount are administrative blocks and are skipped without error.
func ParseMT940(raw string) (*Result, error) {
	text := strings.Join(splitLines(raw), "\n")
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyStatement
	}

	result := &Result{Format: reconciliation.FormatMT940}
	result.LineCount = strings.Count(text, mt940StatementTag)

	segments := strings.Split(text, mt940NarrativeTag)
	for i := 1; i < len(segments); i++ {
		prev := segments[i-1]
		at := strings.LastIndex(prev, mt940StatementTag)
		if at < 0 {
			continue
		}
		line := firstLine(prev[at+len(mt940StatementTag):])

		stmt, ok := parseStatementLine(line)
		if !ok {
			continue
		}

		narrative := narrativeText(segments[i])
		beneficiary := ""
		if m := mt940NameField.FindStringSubmatch(narrative); m != nil {
			beneficiary = strings.TrimSpace(m[1])
		}

		result.Transactions = append(result.Transactions, reconciliation.NewDraft(
			tempID(len(result.Transactions)+1),
			stmt.date,
			stmt.amount,
			narrative,
			beneficiary,
			stmt.reference,
		))
	}

	if len(result.Transactions) == 0 {
		return nil, &FormatError{Message: "MT940 statement contains no :61:/:86: transaction pairs"}
	}
	return result, nil
}

type statementLine struct {
	date      time.Time
	amount    float64
	reference string
}

func parseStatementLine(line string) (statementLine, bool) {
	m := mt940StatementLine.FindStringSubmatch(line)
	if m == nil {
		return statementLine{}, false
	}

	yy, _ := strconv.Atoi(m[1][0:2])
	mm, _ := strconv.Atoi(m[1][2:4])
	dd, _ := strconv.Atoi(m[1][4:6])
	date, ok := calendarDate(2000+yy, mm, dd)
	if !ok {
		return statementLine{}, false
	}

	fraction := m[6]
	if fraction == "" {
		fraction = "0"
	}
	amount, err := decimal.NewFromString(m[5] + "." + fraction)
	if err != nil {
		return statementLine{}, false
	}

	// C and reversed debits add money, D and reversed credits remove it
	switch m[3] {
	case "D", "RC":
		amount = amount.Neg()
	}

	return statementLine{
		date:      date,
		amount:    amount.InexactFloat64(),
		reference: customerReference(line[len(m[0]):]),
	}, true
}

// customerReference reads the reference that follows the transaction type
// identification code, up to the bank reference separator.
func customerReference(rest string) string {
	if len(rest) < 4 || (rest[0] != 'N' && rest[0] != 'F' && rest[0] != 'S') {
		return ""
	}
	ref := rest[4:]
	if i := strings.Index(ref, "//"); i >= 0 {
		ref = ref[:i]
	}
	ref = strings.TrimSpace(ref)
	if strings.EqualFold(ref, "NONREF") {
		return ""
	}
	return ref
}

// narrativeText joins the :86: lines up to the next tag or the end of the message
func narrativeText(segment string) string {
	var parts []string
	for _, line := range strings.Split(segment, "\n") {
		trimmed := strings.TrimSpace(line)
		if mt940TagLine.MatchString(line) || isMessageTrailer(trimmed) {
			break
		}
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, " ")
}

// isMessageTrailer reports the line closing an MT940 message; narrative lines may
// themselves start with a hyphen
func isMessageTrailer(line string) bool {
	return line == "-" || line == "-}"
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
