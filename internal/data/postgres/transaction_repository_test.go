package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bank-reconciliation-engine/internal/domain/invoice"
	"github.com/bank-reconciliation-engine/internal/domain/reconciliation"
)

var transactionColumnNames = []string{
	"id", "company_id", "import_id", "transaction_date", "amount", "description", "beneficiary", "reference",
	"status", "confidence", "invoice_id", "invoice_kind", "invoice_number", "invoice_amount", "invoice_counterparty",
	"invoice_date", "invoice_status", "confirmed_by", "confirmed_at", "invoice_sync", "invoice_sync_error", "created_at", "updated_at",
}

var testNow = time.Date(2024, 1, 16, 10, 0, 0, 0, time.UTC)

func testLink() reconciliation.InvoiceLink {
	return reconciliation.InvoiceLink{
		InvoiceID:        uuid.New(),
		Kind:             invoice.KindOutgoing,
		InvoiceNumber:    "2024-001",
		InvoiceAmount:    1250,
		CounterpartyName: "Klant BV",
		InvoiceDate:      time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		InvoiceStatus:    "sent",
	}
}

func testTransaction(state reconciliation.State) *reconciliation.BankTransaction {
	return &reconciliation.BankTransaction{
		ID:          uuid.New(),
		CompanyID:   uuid.New(),
		ImportID:    uuid.New(),
		Date:        time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC),
		Amount:      1250,
		Description: "Betaling factuur 2024-001",
		Beneficiary: "Klant BV",
		Reference:   "REF2024001",
		State:       state,
		Confidence:  100,
		InvoiceSync: reconciliation.InvoiceSyncNone,
		CreatedAt:   testNow,
		UpdatedAt:   testNow,
	}
}

// transactionRow renders a transaction as the column values the repository scans
func transactionRow(rows *pgxmock.Rows, t *reconciliation.BankTransaction) *pgxmock.Rows {
	var invoiceID *uuid.UUID
	var kind, number, counterparty, invoiceStatus, confBy *string
	var amount *float64
	var invoiceDate, confAt *time.Time
	if link := t.Link(); link != nil {
		k := string(link.Kind)
		invoiceID, kind, number, counterparty, invoiceStatus = &link.InvoiceID, &k, &link.InvoiceNumber, &link.CounterpartyName, &link.InvoiceStatus
		amount, invoiceDate = &link.InvoiceAmount, &link.InvoiceDate
	}
	if st, ok := t.State.(reconciliation.Confirmed); ok {
		confBy, confAt = &st.ConfirmedBy, &st.ConfirmedAt
	}
	return rows.AddRow(t.ID, t.CompanyID, t.ImportID, t.Date, t.Amount, t.Description, t.Beneficiary, t.Reference,
		t.Status(), t.Confidence, invoiceID, kind, number, amount, counterparty,
		invoiceDate, invoiceStatus, confBy, confAt, t.InvoiceSync, t.InvoiceSyncError, t.CreatedAt, t.UpdatedAt)
}

func TestTransactionRepository_Create(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &TransactionRepository{querier: mock, logger: newTestLogger()}
	query := `INSERT INTO bank_transactions`

	t.Run("unmatched writes null link columns", func(t *testing.T) {
		tx := testTransaction(reconciliation.Unmatched{})
		tx.Confidence = 0
		mock.ExpectExec(query).
			WithArgs(tx.ID, tx.CompanyID, tx.ImportID, tx.Date, tx.Amount, tx.Description, tx.Beneficiary, tx.Reference,
				reconciliation.StatusUnmatched, 0, nil, nil, nil, nil, nil, nil, nil, nil, nil,
				reconciliation.InvoiceSyncNone, "", tx.CreatedAt, tx.UpdatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		assert.NoError(t, repo.Create(ctx, tx))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("confirmed writes link and confirmation", func(t *testing.T) {
		link := testLink()
		tx := testTransaction(reconciliation.Confirmed{Link: link, ConfirmedBy: "auto", ConfirmedAt: testNow})
		mock.ExpectExec(query).
			WithArgs(tx.ID, tx.CompanyID, tx.ImportID, tx.Date, tx.Amount, tx.Description, tx.Beneficiary, tx.Reference,
				reconciliation.StatusConfirmed, 100, link.InvoiceID, link.Kind, link.InvoiceNumber, link.InvoiceAmount,
				link.CounterpartyName, link.InvoiceDate, link.InvoiceStatus, "auto", testNow,
				reconciliation.InvoiceSyncNone, "", tx.CreatedAt, tx.UpdatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		assert.NoError(t, repo.Create(ctx, tx))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failure", func(t *testing.T) {
		tx := testTransaction(reconciliation.Pending{Link: testLink()})
		dbErr := errors.New("fk violation")
		mock.ExpectExec(query).WillReturnError(dbErr)

		err := repo.Create(ctx, tx)
		assert.ErrorIs(t, err, dbErr)
		assert.Contains(t, err.Error(), "failed to create bank transaction")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTransactionRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &TransactionRepository{querier: mock, logger: newTestLogger()}
	query := `FROM bank_transactions\s+WHERE id = \$1 AND company_id = \$2`

	for _, state := range []reconciliation.State{
		reconciliation.Unmatched{},
		reconciliation.Pending{Link: testLink()},
		reconciliation.Confirmed{Link: testLink(), ConfirmedBy: "operator", ConfirmedAt: testNow},
	} {
		t.Run(string(state.Status()), func(t *testing.T) {
			want := testTransaction(state)
			mock.ExpectQuery(query).WithArgs(want.ID, want.CompanyID).
				WillReturnRows(transactionRow(pgxmock.NewRows(transactionColumnNames), want))

			got, err := repo.GetByID(ctx, want.CompanyID, want.ID)
			require.NoError(t, err)
			assert.Equal(t, want, got)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}

	t.Run("not found", func(t *testing.T) {
		id, companyID := uuid.New(), uuid.New()
		mock.ExpectQuery(query).WithArgs(id, companyID).WillReturnError(pgx.ErrNoRows)

		got, err := repo.GetByID(ctx, companyID, id)
		assert.Nil(t, got)
		assert.ErrorIs(t, err, reconciliation.ErrTransactionNotFound{TransactionID: id})
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("inconsistent row", func(t *testing.T) {
		broken := testTransaction(reconciliation.Pending{Link: testLink()})
		rows := pgxmock.NewRows(transactionColumnNames).AddRow(broken.ID, broken.CompanyID, broken.ImportID, broken.Date,
			broken.Amount, broken.Description, broken.Beneficiary, broken.Reference, reconciliation.StatusPending, 60,
			(*uuid.UUID)(nil), (*string)(nil), (*string)(nil), (*float64)(nil), (*string)(nil), (*time.Time)(nil),
			(*string)(nil), (*string)(nil), (*time.Time)(nil), broken.InvoiceSync, "", testNow, testNow)
		mock.ExpectQuery(query).WithArgs(broken.ID, broken.CompanyID).WillReturnRows(rows)

		got, err := repo.GetByID(ctx, broken.CompanyID, broken.ID)
		assert.Nil(t, got)
		var invalid reconciliation.ErrInvalidState
		assert.ErrorAs(t, err, &invalid)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTransactionRepository_LockForUpdate(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &TransactionRepository{querier: mock, logger: newTestLogger()}
	want := testTransaction(reconciliation.Pending{Link: testLink()})

	mock.ExpectQuery(`FOR UPDATE`).WithArgs(want.ID, want.CompanyID).
		WillReturnRows(transactionRow(pgxmock.NewRows(transactionColumnNames), want))

	got, err := repo.LockForUpdate(ctx, want.CompanyID, want.ID)
	require.NoError(t, err)
	assert.Equal(t, want.Link(), got.Link())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_List(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &TransactionRepository{querier: mock, logger: newTestLogger()}
	companyID, importID := uuid.New(), uuid.New()
	status := reconciliation.StatusPending
	filter := reconciliation.TransactionFilter{ImportID: &importID, Status: &status, Limit: 50, Offset: 100}

	tx := testTransaction(reconciliation.Pending{Link: testLink()})
	mock.ExpectQuery(`WHERE company_id = \$1 AND import_id = \$2 AND status = \$3\s+ORDER BY .*\s+LIMIT \$4 OFFSET \$5`).
		WithArgs(companyID, importID, status, 50, 100).
		WillReturnRows(transactionRow(pgxmock.NewRows(transactionColumnNames), tx))

	txs, err := repo.List(ctx, companyID, filter)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, tx.ID, txs[0].ID)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM bank_transactions WHERE company_id = \$1 AND import_id = \$2 AND status = \$3`).
		WithArgs(companyID, importID, status).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(7)))

	count, err := repo.Count(ctx, companyID, filter)
	require.NoError(t, err)
	assert.Equal(t, int64(7), count)

	mock.ExpectQuery(`WHERE company_id = \$1\s+ORDER BY`).
		WithArgs(companyID).
		WillReturnError(errors.New("timeout"))

	_, err = repo.List(ctx, companyID, reconciliation.TransactionFilter{})
	assert.Contains(t, err.Error(), "failed to list bank transactions")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_ListOpen(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &TransactionRepository{querier: mock, logger: newTestLogger()}
	companyID := uuid.New()

	mock.ExpectQuery(`status IN \(\$2, \$3\) AND amount >= 0`).
		WithArgs(companyID, reconciliation.StatusUnmatched, reconciliation.StatusPending, 500).
		WillReturnRows(pgxmock.NewRows(transactionColumnNames))
	txs, err := repo.ListOpen(ctx, companyID, invoice.KindOutgoing, 500)
	require.NoError(t, err)
	assert.Empty(t, txs)

	outgoing := testTransaction(reconciliation.Unmatched{})
	outgoing.Amount = -89.95
	outgoing.Confidence = 0
	mock.ExpectQuery(`status IN \(\$2, \$3\) AND amount < 0`).
		WithArgs(companyID, reconciliation.StatusUnmatched, reconciliation.StatusPending, 500).
		WillReturnRows(transactionRow(pgxmock.NewRows(transactionColumnNames), outgoing))
	txs, err = repo.ListOpen(ctx, companyID, invoice.KindIncoming, 500)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, reconciliation.StatusUnmatched, txs[0].Status())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_ListByIDs(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &TransactionRepository{querier: mock, logger: newTestLogger()}
	tx := testTransaction(reconciliation.Unmatched{})
	tx.Confidence = 0
	ids := []uuid.UUID{tx.ID, uuid.New()}

	mock.ExpectQuery(`id = ANY\(\$2\)`).WithArgs(tx.CompanyID, ids).
		WillReturnRows(transactionRow(pgxmock.NewRows(transactionColumnNames), tx))

	txs, err := repo.ListByIDs(ctx, tx.CompanyID, ids)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, tx.ID, txs[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_CountStatusesByImport(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &TransactionRepository{querier: mock, logger: newTestLogger()}
	importID := uuid.New()

	rows := pgxmock.NewRows([]string{"status", "count"}).
		AddRow(reconciliation.StatusConfirmed, 4).
		AddRow(reconciliation.StatusPending, 1).
		AddRow(reconciliation.StatusUnmatched, 5)
	mock.ExpectQuery(`GROUP BY status`).WithArgs(importID).WillReturnRows(rows)

	counts, err := repo.CountStatusesByImport(ctx, importID)
	require.NoError(t, err)
	assert.Equal(t, reconciliation.StatusCounts{Confirmed: 4, Pending: 1, Unmatched: 5}, counts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_Update(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &TransactionRepository{querier: mock, logger: newTestLogger()}
	link := testLink()
	tx := testTransaction(reconciliation.Pending{Link: link})
	tx.Confidence = 72
	tx.InvoiceSync = reconciliation.InvoiceSyncUnpaidPending
	tx.InvoiceSyncError = "invoicing unavailable"
	query := `UPDATE bank_transactions`

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(tx.Date, tx.Amount, tx.Description, tx.Beneficiary,
				reconciliation.StatusPending, 72, link.InvoiceID, link.Kind, link.InvoiceNumber, link.InvoiceAmount,
				link.CounterpartyName, link.InvoiceDate, link.InvoiceStatus, nil, nil,
				reconciliation.InvoiceSyncUnpaidPending, "invoicing unavailable", tx.UpdatedAt, tx.ID, tx.CompanyID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		assert.NoError(t, repo.Update(ctx, tx))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectExec(query).WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.Update(ctx, tx)
		assert.ErrorIs(t, err, reconciliation.ErrTransactionNotFound{TransactionID: tx.ID})
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
