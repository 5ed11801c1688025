package matching

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bank-reconciliation-engine/internal/config"
)

// Scoring holds the points and thresholds of the confidence rubric
type Scoring struct {
	InvoiceNumberExact   int
	InvoiceNumberPartial int
	InvoiceNumberInText  int

	AmountExact           int
	AmountNear            int
	AmountClose           int
	AmountProportional    int
	AmountExactDelta      float64
	AmountNearDelta       float64
	AmountCloseDelta      float64
	AmountProportionalPct float64

	DateWeek        int
	DateMonth       int
	DateQuarter     int
	DateWeekDays    int
	DateMonthDays   int
	DateQuarterDays int

	NameTokenPoints    int
	NameTokenCap       int
	NameTokenMinLength int
	Beneficiary        int

	MaxConfidence    int
	MinConfidence    int
	ConfirmThreshold int
	// MaxCandidates bounds the whole candidate list, best candidate included
	MaxCandidates int
}

// DefaultScoring returns the standard rubric
func DefaultScoring() Scoring {
	return Scoring{
		InvoiceNumberExact:   70,
		InvoiceNumberPartial: 40,
		InvoiceNumberInText:  30,

		AmountExact:           40,
		AmountNear:            30,
		AmountClose:           20,
		AmountProportional:    10,
		AmountExactDelta:      0.01,
		AmountNearDelta:       1,
		AmountCloseDelta:      10,
		AmountProportionalPct: 0.05,

		DateWeek:        15,
		DateMonth:       10,
		DateQuarter:     5,
		DateWeekDays:    7,
		DateMonthDays:   30,
		DateQuarterDays: 90,

		NameTokenPoints:    5,
		NameTokenCap:       15,
		NameTokenMinLength: 3,
		Beneficiary:        20,

		MaxConfidence:    100,
		MinConfidence:    15,
		ConfirmThreshold: 80,
		MaxCandidates:    5,
	}
}

// ScoringFromConfig builds the rubric from the MATCH_* settings
func ScoringFromConfig(cfg config.MatchingConfig) Scoring {
	s := DefaultScoring()
	s.InvoiceNumberExact = cfg.InvoiceNumberExact
	s.InvoiceNumberPartial = cfg.InvoiceNumberPartial
	s.InvoiceNumberInText = cfg.InvoiceNumberInText
	s.AmountExact = cfg.AmountExact
	s.AmountNear = cfg.AmountNear
	s.AmountClose = cfg.AmountClose
	s.AmountProportional = cfg.AmountProportional
	s.AmountProportionalPct = cfg.AmountProportionalPct
	s.DateWeek = cfg.DateWeek
	s.DateMonth = cfg.DateMonth
	s.DateQuarter = cfg.DateQuarter
	s.NameTokenPoints = cfg.NameTokenPoints
	s.NameTokenCap = cfg.NameTokenCap
	s.Beneficiary = cfg.Beneficiary
	s.MinConfidence = cfg.MinConfidence
	s.ConfirmThreshold = cfg.ConfirmThreshold
	s.MaxCandidates = cfg.MaxCandidates
	return s
}

// numberEvidence is what a transaction says about one invoice number
type numberEvidence struct {
	tokens        []string // normalized extracted tokens
	description   string   // lowercased description
	invoiceNumber string
	normalized    string
}

// numberRule is one step of the invoice-number cascade
type numberRule struct {
	name    string
	points  int
	applies func(ev numberEvidence) bool
}

// amountRule scores the absolute difference between transaction and invoice amount
type amountRule struct {
	name   string
	points int
	within func(diff, total decimal.Decimal) bool
}

// dateRule scores the day distance between transaction and invoice date
type dateRule struct {
	name    string
	points  int
	maxDays int
}

func (s Scoring) numberRules() []numberRule {
	return []numberRule{
		{name: "invoice number exact", points: s.InvoiceNumberExact, applies: func(ev numberEvidence) bool {
			for _, tok := range ev.tokens {
				if tok == ev.normalized {
					return true
				}
			}
			return false
		}},
		{name: "invoice number partial", points: s.InvoiceNumberPartial, applies: func(ev numberEvidence) bool {
			for _, tok := range ev.tokens {
				if tok != "" && (strings.Contains(tok, ev.normalized) || strings.Contains(ev.normalized, tok)) {
					return true
				}
			}
			return false
		}},
		{name: "invoice number in description", points: s.InvoiceNumberInText, applies: func(ev numberEvidence) bool {
			return strings.Contains(ev.description, strings.ToLower(ev.invoiceNumber))
		}},
	}
}

func (s Scoring) amountRules() []amountRule {
	below := func(limit float64) func(diff, total decimal.Decimal) bool {
		l := decimal.NewFromFloat(limit)
		return func(diff, _ decimal.Decimal) bool { return diff.LessThan(l) }
	}
	pct := decimal.NewFromFloat(s.AmountProportionalPct)
	return []amountRule{
		{name: "amount exact", points: s.AmountExact, within: below(s.AmountExactDelta)},
		{name: "amount within 1.00", points: s.AmountNear, within: below(s.AmountNearDelta)},
		{name: "amount within 10.00", points: s.AmountClose, within: below(s.AmountCloseDelta)},
		{name: "amount within percentage", points: s.AmountProportional, within: func(diff, total decimal.Decimal) bool {
			return diff.LessThan(total.Mul(pct))
		}},
	}
}

func (s Scoring) dateRules() []dateRule {
	return []dateRule{
		{name: "date within a week", points: s.DateWeek, maxDays: s.DateWeekDays},
		{name: "date within a month", points: s.DateMonth, maxDays: s.DateMonthDays},
		{name: "date within a quarter", points: s.DateQuarter, maxDays: s.DateQuarterDays},
	}
}

// dayDistance counts whole calendar days between a and b
func dayDistance(a, b time.Time) int {
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	days := int(da.Sub(db).Hours() / 24)
	if days < 0 {
		return -days
	}
	return days
}
