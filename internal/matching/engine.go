// Package matching scores outstanding invoices against bank transactions.
//
// Confidence is additive over independent signals: invoice number evidence,
// amount proximity, date proximity, counterparty name overlap and the
// beneficiary field. The engine does no I/O; callers supply the invoices.
package matching

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bank-reconciliation-engine/internal/domain/invoice"
	"github.com/bank-reconciliation-engine/internal/domain/reconciliation"
)

// MatchStatus classifies the best candidate of a transaction
type MatchStatus string

const (
	MatchStatusMatched   MatchStatus = "matched"
	MatchStatusPartial   MatchStatus = "partial"
	MatchStatusUnmatched MatchStatus = "unmatched"
)

// ReconciliationStatus is the status a transaction gets when the result is committed
func (s MatchStatus) ReconciliationStatus() reconciliation.Status {
	switch s {
	case MatchStatusMatched:
		return reconciliation.StatusConfirmed
	case MatchStatusPartial:
		return reconciliation.StatusPending
	}
	return reconciliation.StatusUnmatched
}

// Breakdown holds the points each signal contributed
type Breakdown struct {
	InvoiceNumber int `json:"invoice_number"`
	Amount        int `json:"amount"`
	Date          int `json:"date"`
	Name          int `json:"name"`
	Beneficiary   int `json:"beneficiary"`
}

// Total sums the signals
func (b Breakdown) Total() int {
	return b.InvoiceNumber + b.Amount + b.Date + b.Name + b.Beneficiary
}

// Candidate is one scored invoice
type Candidate struct {
	Invoice    invoice.Invoice `json:"invoice"`
	Confidence int             `json:"confidence"`
	Breakdown  Breakdown       `json:"breakdown"`
	Reasons    []string        `json:"reasons"`
}

// Link returns the fields copied onto a transaction when the candidate is accepted
func (c Candidate) Link() reconciliation.InvoiceLink {
	return reconciliation.LinkFromInvoice(c.Invoice)
}

// Result is the outcome of matching one transaction. Candidates are sorted by
// descending confidence; the first one is the best match.
type Result struct {
	Transaction reconciliation.BankTransaction `json:"transaction"`
	Status      MatchStatus                    `json:"status"`
	Confidence  int                            `json:"confidence"`
	Candidates  []Candidate                    `json:"candidates"`
}

// Best returns the highest scoring candidate or nil
func (r Result) Best() *Candidate {
	if len(r.Candidates) == 0 {
		return nil
	}
	return &r.Candidates[0]
}

// Link returns the invoice link of the best candidate or nil
func (r Result) Link() *reconciliation.InvoiceLink {
	best := r.Best()
	if best == nil {
		return nil
	}
	link := best.Link()
	return &link
}

// Engine scores transactions against invoices
type Engine struct {
	scoring     Scoring
	numberRules []numberRule
	amountRules []amountRule
	dateRules   []dateRule
}

// NewEngine creates an engine with the given rubric
func NewEngine(scoring Scoring) *Engine {
	return &Engine{
		scoring:     scoring,
		numberRules: scoring.numberRules(),
		amountRules: scoring.amountRules(),
		dateRules:   scoring.dateRules(),
	}
}

// Scoring returns the rubric in use
func (e *Engine) Scoring() Scoring {
	return e.scoring
}

// Score rates a single invoice against a transaction. It does not apply
// directional routing or the discard threshold.
func (e *Engine) Score(tx reconciliation.BankTransaction, inv invoice.Invoice) Candidate {
	return e.score(newTransactionEvidence(tx), inv)
}

// Match routes the transaction to invoices of its direction, drops weak
// candidates and classifies the best one.
func (e *Engine) Match(tx reconciliation.BankTransaction, invoices invoice.Set) Result {
	kind := tx.InvoiceKind()
	evidence := newTransactionEvidence(tx)

	var candidates []Candidate
	for _, inv := range invoices.ForKind(kind) {
		if inv.Kind != kind {
			continue
		}
		c := e.score(evidence, inv)
		if c.Confidence <= e.scoring.MinConfidence {
			continue
		}
		candidates = append(candidates, c)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.Invoice.InvoiceNumber != b.Invoice.InvoiceNumber {
			return a.Invoice.InvoiceNumber < b.Invoice.InvoiceNumber
		}
		return a.Invoice.ID.String() < b.Invoice.ID.String()
	})
	if e.scoring.MaxCandidates > 0 && len(candidates) > e.scoring.MaxCandidates {
		candidates = candidates[:e.scoring.MaxCandidates]
	}

	result := Result{Transaction: tx, Status: MatchStatusUnmatched, Candidates: candidates}
	if len(candidates) > 0 {
		result.Confidence = candidates[0].Confidence
		result.Status = e.Classify(result.Confidence)
	}
	return result
}

// Classify returns the status earned by a linked candidate with the given confidence
func (e *Engine) Classify(confidence int) MatchStatus {
	switch {
	case confidence >= e.scoring.ConfirmThreshold:
		return MatchStatusMatched
	case confidence > e.scoring.MinConfidence:
		return MatchStatusPartial
	}
	return MatchStatusUnmatched
}

// MatchAll matches every transaction against the same invoice set
func (e *Engine) MatchAll(txs []reconciliation.BankTransaction, invoices invoice.Set) []Result {
	results := make([]Result, len(txs))
	for i, tx := range txs {
		results[i] = e.Match(tx, invoices)
	}
	return results
}

// transactionEvidence caches what is derived from the transaction once per match
type transactionEvidence struct {
	tx          reconciliation.BankTransaction
	tokens      []string
	description string
	beneficiary string
	amount      decimal.Decimal
}

func newTransactionEvidence(tx reconciliation.BankTransaction) transactionEvidence {
	raw := ExtractInvoiceNumbers(tx.Description)
	tokens := make([]string, 0, len(raw))
	for _, t := range raw {
		if n := normalizeInvoiceNumber(t); n != "" {
			tokens = append(tokens, n)
		}
	}
	return transactionEvidence{
		tx:          tx,
		tokens:      tokens,
		description: strings.ToLower(tx.Description),
		beneficiary: strings.ToLower(strings.TrimSpace(tx.Beneficiary)),
		amount:      decimal.NewFromFloat(tx.Amount).Abs(),
	}
}

func (e *Engine) score(ev transactionEvidence, inv invoice.Invoice) Candidate {
	var b Breakdown
	var reasons []string

	if normalized := normalizeInvoiceNumber(inv.InvoiceNumber); normalized != "" {
		numberEv := numberEvidence{
			tokens:        ev.tokens,
			description:   ev.description,
			invoiceNumber: strings.TrimSpace(inv.InvoiceNumber),
			normalized:    normalized,
		}
		for _, rule := range e.numberRules {
			if rule.applies(numberEv) {
				b.InvoiceNumber = rule.points
				reasons = append(reasons, rule.name)
				break
			}
		}
	}

	total := decimal.NewFromFloat(inv.TotalAmount).Abs()
	diff := ev.amount.Sub(total).Abs()
	for _, rule := range e.amountRules {
		if rule.within(diff, total) {
			b.Amount = rule.points
			reasons = append(reasons, rule.name)
			break
		}
	}

	if !inv.InvoiceDate.IsZero() && !ev.tx.Date.IsZero() {
		days := dayDistance(ev.tx.Date, inv.InvoiceDate)
		for _, rule := range e.dateRules {
			if days <= rule.maxDays {
				b.Date = rule.points
				reasons = append(reasons, rule.name)
				break
			}
		}
	}

	b.Name = e.nameOverlap(ev.description, inv.CounterpartyName)
	if b.Name > 0 {
		reasons = append(reasons, "counterparty name in description")
	}

	counterparty := strings.ToLower(strings.TrimSpace(inv.CounterpartyName))
	if ev.beneficiary != "" && counterparty != "" &&
		(strings.Contains(counterparty, ev.beneficiary) || strings.Contains(ev.beneficiary, counterparty)) {
		b.Beneficiary = e.scoring.Beneficiary
		reasons = append(reasons, "beneficiary matches counterparty")
	}

	confidence := b.Total()
	if confidence > e.scoring.MaxConfidence {
		confidence = e.scoring.MaxConfidence
	}
	if confidence < 0 {
		confidence = 0
	}

	return Candidate{Invoice: inv, Confidence: confidence, Breakdown: b, Reasons: reasons}
}

// nameOverlap awards points per counterparty name token found in the description
func (e *Engine) nameOverlap(description, counterparty string) int {
	points := 0
	for _, token := range strings.Fields(strings.ToLower(counterparty)) {
		if len([]rune(token)) < e.scoring.NameTokenMinLength {
			continue
		}
		if strings.Contains(description, token) {
			points += e.scoring.NameTokenPoints
		}
	}
	if points > e.scoring.NameTokenCap {
		points = e.scoring.NameTokenCap
	}
	return points
}
