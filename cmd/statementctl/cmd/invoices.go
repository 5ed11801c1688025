package cmd

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/bank-reconciliation-engine/internal/domain/invoice"
	"github.com/bank-reconciliation-engine/internal/statement"
)

var invoiceColumns = []string{"kind", "invoice_number", "total_amount", "counterparty_name", "invoice_date"}

// loadInvoices reads an invoice export with a header line. Required columns
// are kind, invoice_number, total_amount, counterparty_name and invoice_date;
// id and status are optional. Rows without an id get one derived from the
// kind and number so repeated runs print the same ids.
func loadInvoices(path string) (invoice.Set, error) {
	if err := validateFileExists(path, "invoice file"); err != nil {
		return invoice.Set{}, err
	}
	file, err := os.Open(path)
	if err != nil {
		return invoice.Set{}, fmt.Errorf("failed to open invoice file: %w", err)
	}
	defer file.Close()

	return readInvoices(file)
}

func readInvoices(r io.Reader) (invoice.Set, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return invoice.Set{}, fmt.Errorf("invoice file is empty")
	}
	if err != nil {
		return invoice.Set{}, fmt.Errorf("failed to read invoice header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	var missing []string
	for _, col := range invoiceColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return invoice.Set{}, fmt.Errorf("invoice file is missing columns: %s", strings.Join(missing, ", "))
	}

	field := func(record []string, col string) string {
		i, ok := index[col]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var set invoice.Set
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return invoice.Set{}, fmt.Errorf("failed to read invoice line %d: %w", line, err)
		}

		inv, err := parseInvoiceRecord(func(col string) string { return field(record, col) })
		if err != nil {
			return invoice.Set{}, fmt.Errorf("invoice line %d: %w", line, err)
		}
		if inv.Kind == invoice.KindIncoming {
			set.Incoming = append(set.Incoming, inv)
		} else {
			set.Outgoing = append(set.Outgoing, inv)
		}
	}
	return set, nil
}

func parseInvoiceRecord(field func(string) string) (invoice.Invoice, error) {
	kind := invoice.Kind(strings.ToLower(field("kind")))
	if !kind.Valid() {
		return invoice.Invoice{}, fmt.Errorf("unknown invoice kind '%s'", field("kind"))
	}

	amount, err := statement.ParseAmount(field("total_amount"))
	if err != nil {
		return invoice.Invoice{}, fmt.Errorf("invalid total_amount: %w", err)
	}
	invoiceDate, err := statement.ParseDate(field("invoice_date"))
	if err != nil {
		return invoice.Invoice{}, fmt.Errorf("invalid invoice_date: %w", err)
	}

	number := field("invoice_number")
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(string(kind)+"/"+number))
	if raw := field("id"); raw != "" {
		id, err = uuid.Parse(raw)
		if err != nil {
			return invoice.Invoice{}, fmt.Errorf("invalid id: %w", err)
		}
	}

	status := field("status")
	if status == "" {
		status = "sent"
	}

	return invoice.Invoice{
		ID:               id,
		Kind:             kind,
		InvoiceNumber:    number,
		TotalAmount:      amount,
		CounterpartyName: field("counterparty_name"),
		InvoiceDate:      invoiceDate,
		Status:           status,
	}, nil
}
