package statement

import (
	"strings"
)

// Role is the semantic meaning of a statement column
type Role string

const (
	RoleDate        Role = "date"
	RoleAmount      Role = "amount"
	RoleDescription Role = "description"
	RoleBeneficiary Role = "beneficiary"
	RoleReference   Role = "reference"
	RoleIndicator   Role = "indicator"
)

// roleRule maps a role to the lowercase header fragments that identify it
type roleRule struct {
	role     Role
	patterns []string
	required bool
}

// roleRules are evaluated in order. Each role takes the first header containing one of
// its patterns; one header may serve several roles.
var roleRules = []roleRule{
	{role: RoleDate, required: true, patterns: []string{"datum", "date", "boekdatum", "valutadatum", "transaction date"}},
	{role: RoleAmount, required: true, patterns: []string{"bedrag", "amount", "betrag", "montant", "waarde"}},
	{role: RoleDescription, required: true, patterns: []string{"omschrijving", "description", "mededeling", "verwendungszweck", "memo", "details"}},
	{role: RoleBeneficiary, patterns: []string{"begunstigde", "beneficiary", "tegenpartij", "counterparty", "payee", "naam", "name"}},
	{role: RoleReference, patterns: []string{"referentie", "reference", "kenmerk", "ref"}},
	{role: RoleIndicator, patterns: []string{"af bij", "credit/debit", "debit/credit", "c/d", "d/c"}},
}

// ColumnMapping holds the column index of each role, -1 when absent
type ColumnMapping struct {
	Date        int
	Amount      int
	Description int
	Beneficiary int
	Reference   int
	Indicator   int
}

// MaxIndex returns the highest column index a row must provide
func (m ColumnMapping) MaxIndex() int {
	maxIdx := -1
	for _, idx := range []int{m.Date, m.Amount, m.Description, m.Beneficiary, m.Reference, m.Indicator} {
		if idx > maxIdx {
			maxIdx = idx
		}
	}
	return maxIdx
}

func (m *ColumnMapping) set(role Role, idx int) {
	switch role {
	case RoleDate:
		m.Date = idx
	case RoleAmount:
		m.Amount = idx
	case RoleDescription:
		m.Description = idx
	case RoleBeneficiary:
		m.Beneficiary = idx
	case RoleReference:
		m.Reference = idx
	case RoleIndicator:
		m.Indicator = idx
	}
}

// DetectDelimiter picks tab, semicolon or comma from the header line.
// Ties go to comma.
func DetectDelimiter(headerLine string) rune {
	tabs := strings.Count(headerLine, "\t")
	semicolons := strings.Count(headerLine, ";")
	commas := strings.Count(headerLine, ",")

	if tabs > semicolons && tabs > commas {
		return '\t'
	}
	if semicolons > commas {
		return ';'
	}
	return ','
}

// SplitFields splits a line on delim, trims each field and strips one layer
// of surrounding quotes. Quoted delimiters are not supported.
func SplitFields(line string, delim rune) []string {
	parts := strings.Split(line, string(delim))
	for i, p := range parts {
		parts[i] = unquote(strings.TrimSpace(p))
	}
	return parts
}

func unquote(s string) string {
	if len(s) > 0 && (s[0] == '"' || s[0] == '\'') {
		s = s[1:]
	}
	if len(s) > 0 && (s[len(s)-1] == '"' || s[len(s)-1] == '\'') {
		s = s[:len(s)-1]
	}
	return strings.TrimSpace(s)
}

// DetectColumns assigns roles to header columns. Missing mandatory roles
// are reported together in one FormatError.
func DetectColumns(headers []string) (ColumnMapping, error) {
	mapping := ColumnMapping{Date: -1, Amount: -1, Description: -1, Beneficiary: -1, Reference: -1, Indicator: -1}

	lowered := make([]string, len(headers))
	for i, h := range headers {
		lowered[i] = strings.ToLower(strings.TrimSpace(h))
	}

	var missing []Role
	for _, rule := range roleRules {
		idx := findHeader(lowered, rule.patterns)
		if idx < 0 {
			if rule.required {
				missing = append(missing, rule.role)
			}
			continue
		}
		mapping.set(rule.role, idx)
	}

	if len(missing) > 0 {
		return mapping, &FormatError{
			Message:      "cannot detect statement columns from header [" + strings.Join(headers, " | ") + "]",
			MissingRoles: missing,
		}
	}
	return mapping, nil
}

func findHeader(headers []string, patterns []string) int {
	for i, h := range headers {
		if h == "" {
			continue
		}
		for _, p := range patterns {
			if strings.Contains(h, p) {
				return i
			}
		}
	}
	return -1
}
