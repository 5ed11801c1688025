package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bank-reconciliation-engine/internal/domain/reconciliation"
	"github.com/bank-reconciliation-engine/internal/statement"
)

type transactionView struct {
	TempID      string  `json:"temp_id"`
	Date        string  `json:"date"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
	Beneficiary string  `json:"beneficiary,omitempty"`
	Reference   string  `json:"reference,omitempty"`
}

type parseReport struct {
	Format       reconciliation.Format `json:"format"`
	LineCount    int                   `json:"line_count"`
	Transactions []transactionView     `json:"transactions"`
	RowErrors    []string              `json:"row_errors"`
}

func newTransactionView(tx reconciliation.BankTransaction) transactionView {
	return transactionView{
		TempID:      tx.TempID,
		Date:        tx.Date.Format(reconciliation.DateLayout),
		Amount:      tx.Amount,
		Description: tx.Description,
		Beneficiary: tx.Beneficiary,
		Reference:   tx.Reference,
	}
}

func newParseReport(result *statement.Result) parseReport {
	report := parseReport{
		Format:       result.Format,
		LineCount:    result.LineCount,
		Transactions: make([]transactionView, 0, len(result.Transactions)),
		RowErrors:    make([]string, 0, len(result.RowErrors)),
	}
	for _, tx := range result.Transactions {
		report.Transactions = append(report.Transactions, newTransactionView(tx))
	}
	for _, rowErr := range result.RowErrors {
		report.RowErrors = append(report.RowErrors, rowErr.Error())
	}
	return report
}

func newParseCmd(v *viper.Viper) *cobra.Command {
	parseCmd := &cobra.Command{
		Use:   "parse",
		Short: "Parse a bank statement and print its transactions",
		Long: `Parse reads a CSV or MT940 bank statement and prints the transactions
the reconciliation service would import, plus the rows it would skip.

Examples:
  statementctl parse --file statement.csv
  statementctl parse --file statement.sta --format MT940 --output json`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return fmt.Errorf("failed to bind flags: %w", err)
			}
			return validateOutputFormat(v.GetString("output"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			output := v.GetString("output")

			logger := newLogger(cmd.ErrOrStderr(), v.GetBool("verbose"))
			result, err := loadStatement(logger, v.GetString("file"), v.GetString("format"))
			if err != nil {
				return err
			}

			report := newParseReport(result)
			if output == outputJSON {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			printParseReport(cmd.OutOrStdout(), report)
			return nil
		},
	}

	parseCmd.Flags().StringP("file", "f", "", "path to the statement file (required)")
	parseCmd.Flags().String("format", formatAuto, "statement format: auto, CSV, MT940")
	parseCmd.Flags().StringP("output", "o", outputConsole, "output format: console, json")
	_ = parseCmd.MarkFlagRequired("file")

	return parseCmd
}

func printParseReport(w io.Writer, report parseReport) {
	fmt.Fprintf(w, "Format: %s  Lines: %d  Transactions: %d  Skipped: %d\n\n",
		report.Format, report.LineCount, len(report.Transactions), len(report.RowErrors))

	fmt.Fprintf(w, "%-10s %-10s %12s  %s\n", "ROW", "DATE", "AMOUNT", "DESCRIPTION")
	for _, tx := range report.Transactions {
		fmt.Fprintf(w, "%-10s %-10s %12.2f  %s\n", tx.TempID, tx.Date, tx.Amount, truncate(tx.Description, 60))
	}

	if len(report.RowErrors) > 0 {
		fmt.Fprintln(w, "\nSkipped rows:")
		for _, e := range report.RowErrors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
}
