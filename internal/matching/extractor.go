package matching

import (
	"regexp"
	"strings"
)

// invoiceNumberPatterns deliberately overlap; every match of every pattern is kept
var invoiceNumberPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b\d{4}-\d{3,4}\b`),
	regexp.MustCompile(`(?i)\bINV[-_]?\d{3,}\b`),
	regexp.MustCompile(`(?i)\bFACT[-_]?\d{3,}\b`),
	regexp.MustCompile(`(?i)\bF[-_]?\d{3,}\b`),
	regexp.MustCompile(`\b[A-Z]{2,4}\d{4,}\b`),
	regexp.MustCompile(`\b\d{6,}\b`),
}

// ExtractInvoiceNumbers returns the uppercased invoice-number-like tokens
// found in text, de-duplicated in first-seen order.
func ExtractInvoiceNumbers(text string) []string {
	var tokens []string
	seen := make(map[string]bool)
	for _, pattern := range invoiceNumberPatterns {
		for _, m := range pattern.FindAllString(text, -1) {
			token := strings.ToUpper(m)
			if seen[token] {
				continue
			}
			seen[token] = true
			tokens = append(tokens, token)
		}
	}
	return tokens
}

// normalizeInvoiceNumber folds case and drops hyphens, underscores and spaces
func normalizeInvoiceNumber(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '-', '_', ' ', '\t':
			return -1
		}
		return r
	}, strings.ToUpper(s))
}
