package matching

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/bank-reconciliation-engine/internal/config"
	"github.com/bank-reconciliation-engine/internal/domain/invoice"
)

func TestScoring_NumberRules(t *testing.T) {
	rules := DefaultScoring().numberRules()
	exact, partial, inText := rules[0], rules[1], rules[2]

	ev := numberEvidence{tokens: []string{"2024001"}, normalized: "2024001"}
	assert.True(t, exact.applies(ev))
	assert.Equal(t, 70, exact.points)

	ev = numberEvidence{tokens: []string{"INV2024001"}, normalized: "2024001"}
	assert.False(t, exact.applies(ev))
	assert.True(t, partial.applies(ev), "token contains the invoice number")
	assert.Equal(t, 40, partial.points)

	ev = numberEvidence{tokens: []string{"2024001"}, normalized: "FACT2024001"}
	assert.True(t, partial.applies(ev), "invoice number contains the token")

	ev = numberEvidence{description: "betaling nota 17/b", invoiceNumber: "17/B", normalized: "17/B"}
	assert.False(t, partial.applies(ev))
	assert.True(t, inText.applies(ev))
	assert.Equal(t, 30, inText.points)
}

func TestScoring_AmountRules(t *testing.T) {
	rules := DefaultScoring().amountRules()
	total := decimal.NewFromInt(1000)

	first := func(diff float64) string {
		for _, r := range rules {
			if r.within(decimal.NewFromFloat(diff), total) {
				return r.name
			}
		}
		return ""
	}

	assert.Equal(t, "amount exact", first(0.001))
	assert.Equal(t, "amount within 1.00", first(0.01))
	assert.Equal(t, "amount within 1.00", first(0.99))
	assert.Equal(t, "amount within 10.00", first(1))
	assert.Equal(t, "amount within 10.00", first(9.99))
	assert.Equal(t, "amount within percentage", first(10))
	assert.Equal(t, "amount within percentage", first(49.99))
	assert.Equal(t, "", first(50))
}

func TestScoring_DateRules(t *testing.T) {
	engine := NewEngine(DefaultScoring())
	inv := newInvoice(invoice.KindOutgoing, "", 99999, "", day(1))

	testCases := []struct {
		days int
		want int
	}{
		{days: 0, want: 15},
		{days: 7, want: 15},
		{days: 8, want: 10},
		{days: 30, want: 10},
		{days: 31, want: 5},
		{days: 90, want: 5},
		{days: 91, want: 0},
	}
	for _, tc := range testCases {
		tx := newTx(day(1).AddDate(0, 0, tc.days), 1, "", "")
		assert.Equal(t, tc.want, engine.Score(tx, inv).Breakdown.Date, "days=%d", tc.days)

		before := newTx(day(1).AddDate(0, 0, -tc.days), 1, "", "")
		assert.Equal(t, tc.want, engine.Score(before, inv).Breakdown.Date, "days=-%d", tc.days)
	}
}

func TestEngine_Score_NameAndBeneficiary(t *testing.T) {
	engine := NewEngine(DefaultScoring())
	inv := newInvoice(invoice.KindOutgoing, "", 99999, "Groot Handel Bakkerij Jansen BV", day(1))

	tx := newTx(day(1).AddDate(1, 0, 0), 1, "groot handel bakkerij jansen", "")
	c := engine.Score(tx, inv)
	assert.Equal(t, 15, c.Breakdown.Name, "capped at three tokens")
	assert.Equal(t, 0, c.Breakdown.Beneficiary)

	tx = newTx(day(1).AddDate(1, 0, 0), 1, "jansen", "Bakkerij Jansen")
	c = engine.Score(tx, inv)
	assert.Equal(t, 5, c.Breakdown.Name)
	assert.Equal(t, 20, c.Breakdown.Beneficiary, "beneficiary is a substring of the counterparty")

	tx = newTx(day(1).AddDate(1, 0, 0), 1, "", "Groot Handel Bakkerij Jansen BV Amsterdam")
	c = engine.Score(tx, inv)
	assert.Equal(t, 20, c.Breakdown.Beneficiary, "beneficiary is a superstring of the counterparty")
	assert.Equal(t, 20, c.Confidence)
	assert.Contains(t, c.Reasons, "beneficiary matches counterparty")
}

func TestScoringFromConfig(t *testing.T) {
	cfg := config.MatchingConfig{
		InvoiceNumberExact:    60,
		InvoiceNumberPartial:  40,
		InvoiceNumberInText:   30,
		AmountExact:           40,
		AmountNear:            30,
		AmountClose:           20,
		AmountProportional:    10,
		AmountProportionalPct: 0.02,
		DateWeek:              15,
		DateMonth:             10,
		DateQuarter:           5,
		NameTokenPoints:       5,
		NameTokenCap:          15,
		Beneficiary:           20,
		MinConfidence:         20,
		ConfirmThreshold:      85,
		MaxCandidates:         3,
	}

	s := ScoringFromConfig(cfg)

	assert.Equal(t, 60, s.InvoiceNumberExact)
	assert.Equal(t, 0.02, s.AmountProportionalPct)
	assert.Equal(t, 20, s.MinConfidence)
	assert.Equal(t, 85, s.ConfirmThreshold)
	assert.Equal(t, 3, s.MaxCandidates)
	assert.Equal(t, 100, s.MaxConfidence)
	assert.Equal(t, 7, s.DateWeekDays)
}
