package outbox_poller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bank-reconciliation-engine/internal/config"
	"github.com/bank-reconciliation-engine/internal/domain/outbox"
	"github.com/bank-reconciliation-engine/internal/domain/shared"
)

// Poller relays pending outbox messages to Kafka
type Poller struct {
	outboxRepo       outbox.Repository
	publisher        EventPublisher
	logger           *slog.Logger
	pollInterval     time.Duration
	batchSize        int
	maxRetryAttempts int
}

func NewPoller(
	cfg *config.OutboxConfig,
	outboxRepo outbox.Repository,
	publisher EventPublisher,
	logger *slog.Logger,
) *Poller {
	return &Poller{
		outboxRepo:       outboxRepo,
		publisher:        publisher,
		logger:           logger,
		pollInterval:     cfg.PollingInterval,
		batchSize:        cfg.BatchSize,
		maxRetryAttempts: cfg.MaxRetryAttempts,
	}
}

// Start begins polling until context is canceled
func (p *Poller) Start(ctx context.Context) {
	p.logger.Info("Starting outbox poller",
		"poll_interval", p.pollInterval.String(),
		"batch_size", p.batchSize,
		"max_retry_attempts", p.maxRetryAttempts,
	)
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Outbox poller stopping")
			return
		case <-ticker.C:
			if err := p.processPendingMessages(ctx); err != nil {
				p.logger.Error("Failed to process pending outbox messages", "error", err)
			}
		}
	}
}

// processPendingMessages publishes one batch in id order. A message that keeps
// failing is marked FAILED_TO_PUBLISH after maxRetryAttempts.
func (p *Poller) processPendingMessages(ctx context.Context) error {
	messages, err := p.outboxRepo.ClaimPending(ctx, p.batchSize)
	if err != nil {
		return fmt.Errorf("failed to claim pending outbox messages: %w", err)
	}
	if len(messages) == 0 {
		return nil
	}

	p.logger.Debug("Fetched pending outbox messages", "count", len(messages))

	for _, msg := range messages {
		if err := p.publisher.PublishEvent(ctx, msg); err != nil {
			p.logger.Error("Failed to publish outbox message",
				"outbox_id", msg.ID, "event_type", msg.EventType, "current_attempts", msg.Attempts, "error", err,
			)

			if errInc := p.outboxRepo.IncrementAttempts(ctx, msg.ID); errInc != nil {
				p.logger.Error("Failed to increment attempts for outbox message", "outbox_id", msg.ID, "error", errInc)
				continue
			}

			if msg.ExhaustedAfterFailure(p.maxRetryAttempts) {
				p.logger.Warn("Max retry attempts reached, marking outbox message as FAILED_TO_PUBLISH",
					"outbox_id", msg.ID, "event_type", msg.EventType, "attempts_made", msg.Attempts+1,
				)
				if errUpdate := p.outboxRepo.UpdateStatus(ctx, msg.ID, shared.OutboxStatusFailedToPublish); errUpdate != nil {
					p.logger.Error("Failed to mark outbox message as FAILED_TO_PUBLISH", "outbox_id", msg.ID, "error", errUpdate)
				}
			}
		}
	}
	return nil
}
