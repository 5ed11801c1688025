// Package config provides configuration structures and validation for the
// reconciliation services. It handles environment-based configuration for the
// HTTP API, the databases, Kafka, the invoicing system and the matching rubric.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds the complete application configuration with settings for all components.
// Each field represents a major subsystem's configuration and is validated during startup.
type Config struct {
	Application ApplicationConfig
	Logging     LoggingConfig
	Server      ServerConfig
	Kafka       KafkaConfig
	Postgres    PostgresConfig
	MongoDB     MongoDBConfig
	Invoicing   InvoicingConfig
	Outbox      OutboxConfig
	WorkerPool  WorkerPoolConfig
	Import      ImportConfig
	Rematch     RematchConfig
	Matching    MatchingConfig
}

// ApplicationConfig contains general application configuration
type ApplicationConfig struct {
	Env  string
	Name string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port               int           // Port to listen on
	ShutdownTimeout    time.Duration // Grace period for server shutdown
	ReadTimeout        time.Duration // Maximum duration for reading entire request
	WriteTimeout       time.Duration // Maximum duration for writing response
	IdleTimeout        time.Duration // Maximum duration to wait for next request
	CORSAllowedOrigins []string      // Origins allowed to call the API from a browser
}

// KafkaConfig contains Kafka configuration
type KafkaConfig struct {
	Brokers            string
	EventsTopic        string // Reconciliation events published from the outbox
	InvoiceEventsTopic string // Invoice lifecycle events consumed by the worker
	NumPartitions      int    // Number of partitions for topics
	ReplicationFactor  int    // Replication factor for topics
	ConsumerGroup      string
	MinBytes           int
	MaxBytes           int
	MaxWait            time.Duration
	StartOffset        int64
	DLQTopic           string // Topic for Dead Letter Queue
}

// PostgresConfig contains PostgreSQL configuration
type PostgresConfig struct {
	URL             string        // Database connection string
	MaxConns        int32         // Maximum number of open connections
	MinConns        int32         // Maximum number of idle connections
	ConnMaxLifetime time.Duration // Maximum lifetime of a connection
	ConnMaxIdleTime time.Duration // Maximum idle time of a connection
	MigrationsPath  string        // Path to migration files
}

// MongoDBConfig contains MongoDB configuration
type MongoDBConfig struct {
	URI             string
	Database        string
	Timeout         time.Duration
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

// InvoicingConfig points at the invoicing system's database
type InvoicingConfig struct {
	PostgresURL         string
	Timeout             time.Duration // Applies to every call into the invoicing system
	OutstandingStatuses []string      // Invoice statuses that still await payment
	PaidStatus          string
	MaxOpenConns        int
}

// OutboxConfig contains outbox pattern configuration
type OutboxConfig struct {
	PollingInterval  time.Duration
	BatchSize        int
	MaxRetryAttempts int // Maximum number of retry attempts for outbox messages
}

// WorkerPoolConfig contains worker pool configuration
type WorkerPoolConfig struct {
	Size int // Maximum number of workers in the pool
}

// ImportConfig contains statement import limits
type ImportConfig struct {
	RawSnapshotLimit int   // Characters of raw input kept on the import for audit
	MaxUploadBytes   int64 // Largest accepted statement body
}

// RematchConfig bounds automatic re-matching after invoice events
type RematchConfig struct {
	BatchLimit int
}

// MatchingConfig holds the confidence rubric of the matching engine
type MatchingConfig struct {
	InvoiceNumberExact    int
	InvoiceNumberPartial  int
	InvoiceNumberInText   int
	AmountExact           int
	AmountNear            int
	AmountClose           int
	AmountProportional    int
	AmountProportionalPct float64
	DateWeek              int
	DateMonth             int
	DateQuarter           int
	NameTokenPoints       int
	NameTokenCap          int
	Beneficiary           int
	MinConfidence         int
	ConfirmThreshold      int
	MaxCandidates         int
}

// validate performs comprehensive validation of all configuration values,
// ensuring they meet minimum requirements and logical constraints
func (c *Config) validate() error {
	var validationErrors []string

	// Validate Server config
	if c.Server.Port <= 0 {
		validationErrors = append(validationErrors, "SERVER_PORT must be greater than 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_SHUTDOWN_TIMEOUT must be greater than 0")
	}
	if c.Server.ReadTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_READ_TIMEOUT must be greater than 0")
	}
	if c.Server.WriteTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_WRITE_TIMEOUT must be greater than 0")
	}
	if c.Server.IdleTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_IDLE_TIMEOUT must be greater than 0")
	}
	if len(c.Server.CORSAllowedOrigins) == 0 {
		validationErrors = append(validationErrors, "CORS_ALLOWED_ORIGINS is required")
	}

	// Validate Kafka config
	if len(c.Kafka.Brokers) == 0 {
		validationErrors = append(validationErrors, "KAFKA_BROKERS is required")
	}
	if c.Kafka.EventsTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_EVENTS_TOPIC is required")
	}
	if c.Kafka.InvoiceEventsTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_INVOICE_EVENTS_TOPIC is required")
	}
	if c.Kafka.ConsumerGroup == "" {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_GROUP is required")
	}
	if c.Kafka.MinBytes <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MIN_BYTES must be greater than 0")
	}
	if c.Kafka.MaxBytes <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_BYTES must be greater than 0")
	}
	if c.Kafka.MaxWait <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_WAIT must be greater than 0")
	}
	if c.Kafka.DLQTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_DLQ_TOPIC is required")
	}

	// Validate PostgreSQL config
	if c.Postgres.URL == "" {
		validationErrors = append(validationErrors, "POSTGRES_URL is required")
	}
	if c.Postgres.MaxConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONNS must be greater than 0")
	}
	if c.Postgres.MinConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MIN_CONNS must be greater than 0")
	}
	if c.Postgres.ConnMaxLifetime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_LIFETIME must be greater than 0")
	}
	if c.Postgres.ConnMaxIdleTime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	// Validate MongoDB config
	if c.MongoDB.URI == "" {
		validationErrors = append(validationErrors, "MONGO_URI is required")
	}
	if c.MongoDB.Database == "" {
		validationErrors = append(validationErrors, "MONGO_DATABASE is required")
	}
	if c.MongoDB.Timeout <= 0 {
		validationErrors = append(validationErrors, "MONGO_TIMEOUT must be greater than 0")
	}
	if c.MongoDB.MaxPoolSize <= 0 {
		validationErrors = append(validationErrors, "MONGO_MAX_POOL_SIZE must be greater than 0")
	}
	if c.MongoDB.MinPoolSize <= 0 {
		validationErrors = append(validationErrors, "MONGO_MIN_POOL_SIZE must be greater than 0")
	}
	if c.MongoDB.MaxConnIdleTime <= 0 {
		validationErrors = append(validationErrors, "MONGO_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	// Validate invoicing config
	if c.Invoicing.PostgresURL == "" {
		validationErrors = append(validationErrors, "INVOICING_POSTGRES_URL is required")
	}
	if c.Invoicing.Timeout <= 0 {
		validationErrors = append(validationErrors, "INVOICING_TIMEOUT must be greater than 0")
	}
	if len(c.Invoicing.OutstandingStatuses) == 0 {
		validationErrors = append(validationErrors, "INVOICING_OUTSTANDING_STATUSES is required")
	}
	if c.Invoicing.PaidStatus == "" {
		validationErrors = append(validationErrors, "INVOICING_PAID_STATUS is required")
	}

	// Validate Outbox config
	if c.Outbox.PollingInterval <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_POLLING_INTERVAL must be greater than 0")
	}
	if c.Outbox.BatchSize <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_BATCH_SIZE must be greater than 0")
	}
	if c.Outbox.MaxRetryAttempts <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_MAX_RETRY_ATTEMPTS must be greater than 0")
	}

	// Validate WorkerPool config
	if c.WorkerPool.Size <= 0 {
		validationErrors = append(validationErrors, "WORKER_POOL_SIZE must be greater than 0")
	}

	// Validate import and rematch limits
	if c.Import.RawSnapshotLimit <= 0 {
		validationErrors = append(validationErrors, "IMPORT_RAW_SNAPSHOT_LIMIT must be greater than 0")
	}
	if c.Import.MaxUploadBytes <= 0 {
		validationErrors = append(validationErrors, "IMPORT_MAX_UPLOAD_BYTES must be greater than 0")
	}
	if c.Rematch.BatchLimit <= 0 {
		validationErrors = append(validationErrors, "REMATCH_BATCH_LIMIT must be greater than 0")
	}

	validationErrors = append(validationErrors, c.Matching.validate()...)

	if len(validationErrors) > 0 {
		return errors.New(strings.Join(validationErrors, ", "))
	}

	return nil
}

func (m MatchingConfig) validate() []string {
	var validationErrors []string

	points := []struct {
		key   string
		value int
	}{
		{"MATCH_INVOICE_NUMBER_EXACT", m.InvoiceNumberExact},
		{"MATCH_INVOICE_NUMBER_PARTIAL", m.InvoiceNumberPartial},
		{"MATCH_INVOICE_NUMBER_IN_TEXT", m.InvoiceNumberInText},
		{"MATCH_AMOUNT_EXACT", m.AmountExact},
		{"MATCH_AMOUNT_NEAR", m.AmountNear},
		{"MATCH_AMOUNT_CLOSE", m.AmountClose},
		{"MATCH_AMOUNT_PROPORTIONAL", m.AmountProportional},
		{"MATCH_DATE_WEEK", m.DateWeek},
		{"MATCH_DATE_MONTH", m.DateMonth},
		{"MATCH_DATE_QUARTER", m.DateQuarter},
		{"MATCH_NAME_TOKEN_POINTS", m.NameTokenPoints},
		{"MATCH_NAME_TOKEN_CAP", m.NameTokenCap},
		{"MATCH_BENEFICIARY", m.Beneficiary},
	}
	for _, p := range points {
		if p.value < 0 {
			validationErrors = append(validationErrors, p.key+" must not be negative")
		}
	}

	if m.AmountProportionalPct < 0 || m.AmountProportionalPct >= 1 {
		validationErrors = append(validationErrors, "MATCH_AMOUNT_PROPORTIONAL_PCT must be between 0 and 1")
	}
	if m.MinConfidence < 0 || m.MinConfidence >= 100 {
		validationErrors = append(validationErrors, "MATCH_MIN_CONFIDENCE must be between 0 and 99")
	}
	if m.ConfirmThreshold <= m.MinConfidence || m.ConfirmThreshold > 100 {
		validationErrors = append(validationErrors, fmt.Sprintf("MATCH_CONFIRM_THRESHOLD must be above MATCH_MIN_CONFIDENCE (%d) and at most 100", m.MinConfidence))
	}
	if m.MaxCandidates <= 0 {
		validationErrors = append(validationErrors, "MATCH_MAX_CANDIDATES must be greater than 0")
	}
	return validationErrors
}
