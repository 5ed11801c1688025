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

	"github.com/bank-reconciliation-engine/internal/domain/outbox"
	"github.com/bank-reconciliation-engine/internal/domain/shared"
)

func TestOutboxRepository_WithTx(t *testing.T) {
	repo := &OutboxRepository{querier: nil, logger: newTestLogger()}

	mockTx := pgx.Tx(nil)
	txRepo := repo.WithTx(mockTx)

	outboxRepo, ok := txRepo.(*OutboxRepository)
	require.True(t, ok)
	assert.Equal(t, mockTx, outboxRepo.querier)
	assert.Equal(t, repo.logger, outboxRepo.logger)
}

func TestOutboxRepository_Create(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &OutboxRepository{querier: mock, logger: newTestLogger()}
	message := &outbox.Message{
		AggregateID: uuid.New(),
		CompanyID:   uuid.New(),
		EventType:   shared.EventTransactionConfirmed,
		Payload:     []byte(`{"type":"reconciliation.transaction_confirmed"}`),
		Status:      shared.OutboxStatusPending,
		CreatedAt:   time.Now(),
	}

	query := `INSERT INTO reconciliation_outbox \(aggregate_id, company_id, event_type, payload, status, attempts, created_at\)`

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery(query).
			WithArgs(message.AggregateID, message.CompanyID, message.EventType, message.Payload, message.Status, 0, message.CreatedAt).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))

		err := repo.Create(ctx, message)
		require.NoError(t, err)
		assert.Equal(t, int64(42), message.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failure", func(t *testing.T) {
		dbErr := errors.New("db error")
		mock.ExpectQuery(query).
			WithArgs(message.AggregateID, message.CompanyID, message.EventType, message.Payload, message.Status, 0, message.CreatedAt).
			WillReturnError(dbErr)

		err := repo.Create(ctx, message)
		assert.ErrorIs(t, err, dbErr)
		assert.Contains(t, err.Error(), "failed to create outbox message")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOutboxRepository_ClaimPending(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &OutboxRepository{querier: mock, logger: newTestLogger(), claimLease: time.Minute}
	now := time.Now()
	aggregateID := uuid.New()
	companyID := uuid.New()

	query := `UPDATE reconciliation_outbox\s+SET last_attempt_at = \$3(.|\n)+FOR UPDATE SKIP LOCKED(.|\n)+RETURNING id, aggregate_id`
	columns := []string{"id", "aggregate_id", "company_id", "event_type", "payload", "status", "attempts", "created_at", "last_attempt_at"}

	t.Run("success", func(t *testing.T) {
		rows := pgxmock.NewRows(columns).
			AddRow(int64(2), aggregateID, companyID, shared.EventImportDeleted, []byte(`{}`), shared.OutboxStatusPending, 2, now, &now).
			AddRow(int64(1), aggregateID, companyID, shared.EventImportCommitted, []byte(`{}`), shared.OutboxStatusPending, 0, now.Add(-time.Second), &now)
		mock.ExpectQuery(query).
			WithArgs(shared.OutboxStatusPending, 10, pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnRows(rows)

		messages, err := repo.ClaimPending(ctx, 10)
		require.NoError(t, err)
		require.Len(t, messages, 2)
		assert.Equal(t, int64(1), messages[0].ID, "oldest message first")
		assert.Equal(t, shared.EventImportCommitted, messages[0].EventType)
		assert.Equal(t, int64(2), messages[1].ID)
		assert.Equal(t, 2, messages[1].Attempts)
		assert.NotNil(t, messages[1].LastAttemptAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nothing pending", func(t *testing.T) {
		mock.ExpectQuery(query).
			WithArgs(shared.OutboxStatusPending, 10, pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnRows(pgxmock.NewRows(columns))

		messages, err := repo.ClaimPending(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, messages)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query error", func(t *testing.T) {
		mock.ExpectQuery(query).
			WithArgs(shared.OutboxStatusPending, 10, pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(errors.New("boom"))

		messages, err := repo.ClaimPending(ctx, 10)
		assert.ErrorContains(t, err, "failed to claim pending outbox messages")
		assert.Nil(t, messages)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOutboxRepository_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &OutboxRepository{querier: mock, logger: newTestLogger()}
	query := `UPDATE reconciliation_outbox\s+SET status = \$1, last_attempt_at = \$2`

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(shared.OutboxStatusProcessed, pgxmock.AnyArg(), int64(7)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		assert.NoError(t, repo.UpdateStatus(ctx, 7, shared.OutboxStatusProcessed))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(shared.OutboxStatusProcessed, pgxmock.AnyArg(), int64(8)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.UpdateStatus(ctx, 8, shared.OutboxStatusProcessed)
		var notFound outbox.ErrMessageNotFound
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, int64(8), notFound.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOutboxRepository_IncrementAttempts(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &OutboxRepository{querier: mock, logger: newTestLogger()}
	query := `UPDATE reconciliation_outbox\s+SET attempts = attempts \+ 1`

	mock.ExpectExec(query).
		WithArgs(pgxmock.AnyArg(), int64(3)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	assert.NoError(t, repo.IncrementAttempts(ctx, 3))

	mock.ExpectExec(query).
		WithArgs(pgxmock.AnyArg(), int64(4)).
		WillReturnError(errors.New("conn reset"))
	err = repo.IncrementAttempts(ctx, 4)
	assert.Contains(t, err.Error(), "failed to increment outbox message attempts")

	assert.NoError(t, mock.ExpectationsWereMet())
}
