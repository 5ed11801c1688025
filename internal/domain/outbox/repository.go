package outbox

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/bank-reconciliation-engine/internal/domain/shared"
)

// Repository stores reconciliation events next to the change that raised them
type Repository interface {
	Create(ctx context.Context, message *Message) error
	// ClaimPending leases up to limit pending messages, oldest first. A claimed
	// message is not handed out again until its lease expires, so relays on
	// several workers never publish the same message concurrently.
	ClaimPending(ctx context.Context, limit int) ([]*Message, error)
	UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error
	IncrementAttempts(ctx context.Context, id int64) error
	WithTx(tx pgx.Tx) Repository
}

// ErrMessageNotFound indicates missing outbox message
type ErrMessageNotFound struct {
	ID int64
}

func (e ErrMessageNotFound) Error() string {
	return "outbox message not found: " + strconv.FormatInt(e.ID, 10)
}
