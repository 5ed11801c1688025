package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bank-reconciliation-engine/internal/domain/shared"
	"github.com/bank-reconciliation-engine/internal/platform/messaging/producers"
	"github.com/bank-reconciliation-engine/internal/reconciliation_worker/service"
)

// InvoiceEventHandler handles invoice lifecycle messages from Kafka
type InvoiceEventHandler struct {
	processingService service.ProcessingService
	producer          producers.DeadLetterPublisher
	logger            *slog.Logger
}

// NewInvoiceEventHandler creates a new handler. producer may be nil when no DLQ is configured.
func NewInvoiceEventHandler(
	logger *slog.Logger,
	processingService service.ProcessingService,
	producer producers.DeadLetterPublisher,
) *InvoiceEventHandler {
	return &InvoiceEventHandler{
		processingService: processingService,
		producer:          producer,
		logger:            logger,
	}
}

// HandleMessage processes one invoice event. Returning an error makes the consumer retry.
func (h *InvoiceEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var event shared.InvoiceEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return h.rejectMessage(ctx, key, value, fmt.Sprintf("failed to unmarshal invoice event: %s", err))
	}
	if err := event.Validate(); err != nil {
		return h.rejectMessage(ctx, key, value, fmt.Sprintf("invalid invoice event: %s", err))
	}

	logger := h.logger
	if event.CorrelationID != "" {
		logger = h.logger.With("correlation_id", event.CorrelationID)
	}

	logger.Info("Received invoice event",
		"type", event.Type,
		"invoice_id", event.InvoiceID.String(),
		"company_id", event.CompanyID.String(),
		"kind", event.Kind,
	)

	if err := h.processingService.ProcessInvoiceEvent(ctx, &event); err != nil {
		return fmt.Errorf("processing invoice event %s failed: %w", event.InvoiceID.String(), err)
	}
	return nil
}

// rejectMessage parks a message that can never be processed. Without a DLQ it is dropped.
func (h *InvoiceEventHandler) rejectMessage(ctx context.Context, key, value []byte, reason string) error {
	h.logger.Error("Unprocessable invoice event", "message_key", string(key), "reason", reason)

	if h.producer == nil {
		h.logger.Warn("No DLQ configured, dropping invoice event", "message_key", string(key))
		return nil
	}
	err := h.producer.PublishToDLQ(ctx, string(key), value, reason)
	if errors.Is(err, producers.ErrDLQDisabled) {
		h.logger.Warn("No DLQ configured, dropping invoice event", "message_key", string(key))
		return nil
	}
	if err != nil {
		h.logger.Error("Failed to publish invoice event to DLQ", "message_key", string(key), "error", err)
		return fmt.Errorf("failed to park unprocessable invoice event: %w", err)
	}
	return nil
}
