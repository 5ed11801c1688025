package workflow

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/bank-reconciliation-engine/internal/matching"
)

// Selection is an operator's choice for one previewed row before commit.
// A nil InvoiceID commits the row unmatched.
type Selection struct {
	TempID    string
	InvoiceID *uuid.UUID
}

// ErrUnknownSelection indicates a selection that does not refer to a previewed row or candidate
type ErrUnknownSelection struct {
	TempID    string
	InvoiceID uuid.UUID
}

func (e ErrUnknownSelection) Error() string {
	if e.InvoiceID == uuid.Nil {
		return fmt.Sprintf("no previewed transaction %q", e.TempID)
	}
	return fmt.Sprintf("invoice %s is not a candidate of transaction %q", e.InvoiceID, e.TempID)
}

// ApplySelections moves the selected candidate of each row to the front and takes
// over its confidence. Only scored candidates can be selected; the commit still
// derives the status from the confidence.
func ApplySelections(results []matching.Result, selections []Selection) error {
	index := make(map[string]int, len(results))
	for i, r := range results {
		index[r.Transaction.TempID] = i
	}

	for _, sel := range selections {
		i, ok := index[sel.TempID]
		if !ok {
			return ErrUnknownSelection{TempID: sel.TempID}
		}
		r := &results[i]

		if sel.InvoiceID == nil {
			r.Candidates = nil
			r.Confidence = 0
			r.Status = matching.MatchStatusUnmatched
			continue
		}

		pos := -1
		for j, c := range r.Candidates {
			if c.Invoice.ID == *sel.InvoiceID {
				pos = j
				break
			}
		}
		if pos < 0 {
			return ErrUnknownSelection{TempID: sel.TempID, InvoiceID: *sel.InvoiceID}
		}

		chosen := r.Candidates[pos]
		reordered := make([]matching.Candidate, 0, len(r.Candidates))
		reordered = append(reordered, chosen)
		reordered = append(reordered, r.Candidates[:pos]...)
		reordered = append(reordered, r.Candidates[pos+1:]...)
		r.Candidates = reordered
		r.Confidence = chosen.Confidence
	}
	return nil
}
