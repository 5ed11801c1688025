package producers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	topicLookupAttempts = 5
	topicLookupBackoff  = 2 * time.Second
)

// topicProvisioner makes sure a topic exists before a writer is created
type topicProvisioner struct {
	admin    topicAdmin
	logger   *slog.Logger
	attempts int
	backoff  time.Duration
}

func newTopicProvisioner(admin topicAdmin, logger *slog.Logger) *topicProvisioner {
	return &topicProvisioner{
		admin:    admin,
		logger:   logger,
		attempts: topicLookupAttempts,
		backoff:  topicLookupBackoff,
	}
}

// ensure creates the topic when no partitions can be read for it. Brokers
// often answer the first metadata requests with errors while they start, so
// the lookup is retried before falling back to creation.
func (p *topicProvisioner) ensure(ctx context.Context, topic string, numPartitions, replicationFactor int) error {
	var (
		partitions []kafka.Partition
		err        error
	)
	for attempt := 1; attempt <= p.attempts; attempt++ {
		partitions, err = p.admin.ReadPartitions(topic)
		if err == nil && len(partitions) > 0 {
			p.logger.Debug("Kafka topic exists", "topic", topic, "partitions", len(partitions))
			return nil
		}
		p.logger.Warn("Failed to read topic partitions", "topic", topic, "attempt", attempt, "error", err)
		if attempt == p.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.backoff):
		}
	}

	if numPartitions <= 0 {
		numPartitions = 1
	}
	if replicationFactor <= 0 {
		replicationFactor = 1
	}
	p.logger.Info("Creating Kafka topic", "topic", topic, "partitions", numPartitions, "replication_factor", replicationFactor)
	if err := p.admin.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     numPartitions,
		ReplicationFactor: replicationFactor,
	}); err != nil {
		return fmt.Errorf("failed to create kafka topic %s: %w", topic, err)
	}
	return nil
}
