package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bank-reconciliation-engine/internal/domain/invoice"
	"github.com/bank-reconciliation-engine/internal/matching"
)

type candidateView struct {
	InvoiceID     string             `json:"invoice_id"`
	InvoiceNumber string             `json:"invoice_number"`
	Kind          invoice.Kind       `json:"kind"`
	Confidence    int                `json:"confidence"`
	Breakdown     matching.Breakdown `json:"breakdown"`
	Reasons       []string           `json:"reasons"`
}

type matchView struct {
	Transaction transactionView      `json:"transaction"`
	Status      matching.MatchStatus `json:"status"`
	Confidence  int                  `json:"confidence"`
	Candidates  []candidateView      `json:"candidates"`
}

type matchSummary struct {
	Matched   int `json:"matched"`
	Partial   int `json:"partial"`
	Unmatched int `json:"unmatched"`
}

type matchReport struct {
	Summary   matchSummary `json:"summary"`
	Results   []matchView  `json:"results"`
	RowErrors []string     `json:"row_errors"`
}

func newMatchReport(results []matching.Result, rowErrors []string) matchReport {
	report := matchReport{
		Results:   make([]matchView, 0, len(results)),
		RowErrors: rowErrors,
	}
	for _, r := range results {
		switch r.Status {
		case matching.MatchStatusMatched:
			report.Summary.Matched++
		case matching.MatchStatusPartial:
			report.Summary.Partial++
		default:
			report.Summary.Unmatched++
		}

		view := matchView{
			Transaction: newTransactionView(r.Transaction),
			Status:      r.Status,
			Confidence:  r.Confidence,
			Candidates:  make([]candidateView, 0, len(r.Candidates)),
		}
		for _, c := range r.Candidates {
			view.Candidates = append(view.Candidates, candidateView{
				InvoiceID:     c.Invoice.ID.String(),
				InvoiceNumber: c.Invoice.InvoiceNumber,
				Kind:          c.Invoice.Kind,
				Confidence:    c.Confidence,
				Breakdown:     c.Breakdown,
				Reasons:       c.Reasons,
			})
		}
		report.Results = append(report.Results, view)
	}
	return report
}

// scoringFromFlags starts from the standard rubric and applies the thresholds
// given on the command line, in the config file or as STATEMENTCTL_* variables
func scoringFromFlags(v *viper.Viper) (matching.Scoring, error) {
	s := matching.DefaultScoring()
	s.MinConfidence = v.GetInt("min-confidence")
	s.ConfirmThreshold = v.GetInt("confirm-threshold")
	s.MaxCandidates = v.GetInt("max-candidates")

	if s.MinConfidence < 0 || s.MinConfidence >= s.MaxConfidence {
		return s, fmt.Errorf("min-confidence must be between 0 and %d", s.MaxConfidence-1)
	}
	if s.ConfirmThreshold <= s.MinConfidence || s.ConfirmThreshold > s.MaxConfidence {
		return s, fmt.Errorf("confirm-threshold must be above min-confidence and at most %d", s.MaxConfidence)
	}
	if s.MaxCandidates <= 0 {
		return s, fmt.Errorf("max-candidates must be greater than 0")
	}
	return s, nil
}

func newMatchCmd(v *viper.Viper) *cobra.Command {
	defaults := matching.DefaultScoring()

	matchCmd := &cobra.Command{
		Use:   "match",
		Short: "Score statement transactions against an invoice export",
		Long: `Match parses a bank statement and scores every transaction against the
invoices in a CSV export. Nothing is stored and no invoice is changed.

The invoice file needs a header with the columns kind, invoice_number,
total_amount, counterparty_name and invoice_date; id and status are optional.
kind is "outgoing" for sales invoices and "incoming" for purchase invoices.

Examples:
  statementctl match --file statement.csv --invoices invoices.csv
  statementctl match --file statement.sta --invoices invoices.csv --output json
  statementctl match --file statement.csv --invoices invoices.csv --confirm-threshold 90`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return fmt.Errorf("failed to bind flags: %w", err)
			}
			if err := validateOutputFormat(v.GetString("output")); err != nil {
				return err
			}
			_, err := scoringFromFlags(v)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			scoring, err := scoringFromFlags(v)
			if err != nil {
				return err
			}

			logger := newLogger(cmd.ErrOrStderr(), v.GetBool("verbose"))
			result, err := loadStatement(logger, v.GetString("file"), v.GetString("format"))
			if err != nil {
				return err
			}
			invoices, err := loadInvoices(v.GetString("invoices"))
			if err != nil {
				return err
			}
			logger.Debug("Matching statement",
				"transactions", len(result.Transactions),
				"outgoing_invoices", len(invoices.Outgoing),
				"incoming_invoices", len(invoices.Incoming))

			results := matching.NewEngine(scoring).MatchAll(result.Transactions, invoices)
			report := newMatchReport(results, newParseReport(result).RowErrors)

			if v.GetString("output") == outputJSON {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			printMatchReport(cmd.OutOrStdout(), report)
			return nil
		},
	}

	matchCmd.Flags().StringP("file", "f", "", "path to the statement file (required)")
	matchCmd.Flags().String("format", formatAuto, "statement format: auto, CSV, MT940")
	matchCmd.Flags().StringP("invoices", "i", "", "path to the invoice CSV export (required)")
	matchCmd.Flags().StringP("output", "o", outputConsole, "output format: console, json")
	matchCmd.Flags().Int("min-confidence", defaults.MinConfidence, "discard candidates at or below this confidence")
	matchCmd.Flags().Int("confirm-threshold", defaults.ConfirmThreshold, "confidence at which a match is confirm-eligible")
	matchCmd.Flags().Int("max-candidates", defaults.MaxCandidates, "candidates kept per transaction")
	_ = matchCmd.MarkFlagRequired("file")
	_ = matchCmd.MarkFlagRequired("invoices")

	return matchCmd
}

func printMatchReport(w io.Writer, report matchReport) {
	fmt.Fprintf(w, "Matched: %d  Partial: %d  Unmatched: %d  Skipped rows: %d\n\n",
		report.Summary.Matched, report.Summary.Partial, report.Summary.Unmatched, len(report.RowErrors))

	for _, r := range report.Results {
		tx := r.Transaction
		fmt.Fprintf(w, "%-10s %-10s %12.2f  %-9s %3d  %s\n",
			tx.TempID, tx.Date, tx.Amount, r.Status, r.Confidence, truncate(tx.Description, 50))
		for _, c := range r.Candidates {
			fmt.Fprintf(w, "    %3d  %-8s %-16s invoice %d, amount %d, date %d, name %d, beneficiary %d\n",
				c.Confidence, c.Kind, c.InvoiceNumber,
				c.Breakdown.InvoiceNumber, c.Breakdown.Amount, c.Breakdown.Date, c.Breakdown.Name, c.Breakdown.Beneficiary)
		}
	}
}
