package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/bank-reconciliation-engine/internal/domain/shared"
)

// Message stores a reconciliation event for reliable publishing
type Message struct {
	ID            int64               `json:"id"`
	AggregateID   uuid.UUID           `json:"aggregate_id"`
	CompanyID     uuid.UUID           `json:"company_id"`
	EventType     shared.EventType    `json:"event_type"`
	Payload       json.RawMessage     `json:"payload"`
	Status        shared.OutboxStatus `json:"status"`
	Attempts      int                 `json:"attempts"`
	CreatedAt     time.Time           `json:"created_at"`
	LastAttemptAt *time.Time          `json:"last_attempt_at,omitempty"`
}

// NewMessage serializes event into a pending message keyed by its aggregate:
// the transaction for transaction events, the import otherwise
func NewMessage(event *shared.ReconciliationEvent) (*Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}

	return &Message{
		AggregateID: event.AggregateID(),
		CompanyID:   event.CompanyID,
		EventType:   event.Type,
		Payload:     payload,
		Status:      shared.OutboxStatusPending,
		Attempts:    0,
		CreatedAt:   time.Now(),
	}, nil
}

// ExhaustedAfterFailure reports whether one more failed publish uses up the
// retry budget of maxAttempts
func (m *Message) ExhaustedAfterFailure(maxAttempts int) bool {
	return m.Attempts+1 >= maxAttempts
}

// Event extracts the reconciliation event from the payload
func (m *Message) Event() (*shared.ReconciliationEvent, error) {
	var event shared.ReconciliationEvent
	if err := json.Unmarshal(m.Payload, &event); err != nil {
		return nil, err
	}
	return &event, nil
}
