// Package config provides configuration structures and validation for the card ledger services.
// It handles environment-based configuration for the API gateway, the transaction processor
// and the ledgerctl tool: HTTP server, databases, message queues, webhooks and transaction policy.
package config

import (
	"errors"
	"strings"
	"time"
)

const (
	// StorageDriverPostgres keeps cards, transactions and ledger entries in PostgreSQL
	StorageDriverPostgres = "postgres"
	// StorageDriverMemory keeps everything in process memory (development only)
	StorageDriverMemory = "memory"

	// WebhookDispatchKafka hands verified processor webhooks to the transaction processor via Kafka
	WebhookDispatchKafka = "kafka"
	// WebhookDispatchInline processes verified processor webhooks inside the gateway
	WebhookDispatchInline = "inline"

	defaultWebhookSecret = "local-dev-webhook-secret"
)

// Config holds the complete application configuration with settings for all components.
// Each field represents a major subsystem's configuration and is validated during startup.
type Config struct {
	Application ApplicationConfig
	Logging     LoggingConfig
	Server      ServerConfig
	Storage     StorageConfig
	Kafka       KafkaConfig
	Postgres    PostgresConfig
	MongoDB     MongoDBConfig
	Outbox      OutboxConfig
	WorkerPool  WorkerPoolConfig
	Webhook     WebhookConfig
	Idempotency IdempotencyConfig
	Metrics     MetricsConfig
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
	Port            int           // Port to listen on
	ShutdownTimeout time.Duration // Grace period for server shutdown
	ReadTimeout     time.Duration // Maximum duration for reading entire request
	WriteTimeout    time.Duration // Maximum duration for writing response
	IdleTimeout     time.Duration // Maximum duration to wait for next request
}

// StorageConfig selects the persistence backend
type StorageConfig struct {
	Driver string
}

// KafkaConfig contains Kafka configuration
type KafkaConfig struct {
	Brokers              string
	ProcessorEventsTopic string // Verified processor webhooks (settlement, refund, reversal)
	DomainEventsTopic    string // card.* and transaction.* events relayed from the outbox
	NumPartitions        int
	ReplicationFactor    int
	ConsumerGroup        string
	MinBytes             int
	MaxBytes             int
	MaxWait              time.Duration
	StartOffset          int64
	DLQTopic             string
}

// PostgresConfig contains PostgreSQL configuration
type PostgresConfig struct {
	URL                 string        // Database connection string
	MaxConns            int32         // Maximum number of open connections
	MinConns            int32         // Minimum number of idle connections
	ConnMaxLifetime     time.Duration // Maximum lifetime of a connection
	ConnMaxIdleTime     time.Duration // Maximum idle time of a connection
	MigrationsPath      string        // Path to migration files
	SerializableRetries int           // Retries after a serialization conflict
	SerializableBackoff time.Duration // First retry delay, doubled on every retry
}

// MongoDBConfig contains MongoDB configuration
type MongoDBConfig struct {
	URI             string
	Database        string
	AuditCollection string
	Timeout         time.Duration
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

// OutboxConfig contains outbox pattern configuration
type OutboxConfig struct {
	PollingInterval  time.Duration
	BatchSize        int
	MaxRetryAttempts int
}

// WorkerPoolConfig contains worker pool configuration
type WorkerPoolConfig struct {
	Size int // Maximum number of workers in the pool
}

// WebhookConfig contains the payment processor webhook contract
type WebhookConfig struct {
	Secret          string
	ProcessorID     string
	SignatureHeader string
	Dispatch        string
}

// IdempotencyConfig controls how long cached responses are kept
type IdempotencyConfig struct {
	TTL time.Duration
}

// MetricsConfig contains Prometheus exposition settings
type MetricsConfig struct {
	Enabled bool
	Path    string
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

	// Validate Storage config
	if c.Storage.Driver != StorageDriverPostgres && c.Storage.Driver != StorageDriverMemory {
		validationErrors = append(validationErrors, "STORAGE_DRIVER must be one of postgres, memory")
	}
	if c.Storage.Driver == StorageDriverMemory && c.Application.Env == "production" {
		validationErrors = append(validationErrors, "STORAGE_DRIVER=memory is not allowed in production")
	}

	// Validate Kafka config
	if len(c.Kafka.Brokers) == 0 {
		validationErrors = append(validationErrors, "KAFKA_BROKERS is required")
	}
	if c.Kafka.ProcessorEventsTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_PROCESSOR_EVENTS_TOPIC is required")
	}
	if c.Kafka.DomainEventsTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_DOMAIN_EVENTS_TOPIC is required")
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
	if c.Postgres.SerializableRetries < 0 {
		validationErrors = append(validationErrors, "POSTGRES_SERIALIZABLE_MAX_RETRIES cannot be negative")
	}
	if c.Postgres.SerializableBackoff <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_SERIALIZABLE_BASE_BACKOFF must be greater than 0")
	}

	// Validate MongoDB config
	if c.MongoDB.URI == "" {
		validationErrors = append(validationErrors, "MONGO_URI is required")
	}
	if c.MongoDB.Database == "" {
		validationErrors = append(validationErrors, "MONGO_DATABASE is required")
	}
	if c.MongoDB.AuditCollection == "" {
		validationErrors = append(validationErrors, "MONGO_AUDIT_COLLECTION is required")
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

	// Validate Webhook config
	if c.Webhook.Secret == "" {
		validationErrors = append(validationErrors, "WEBHOOK_SECRET is required")
	}
	if c.Webhook.Secret == defaultWebhookSecret && c.Application.Env == "production" {
		validationErrors = append(validationErrors, "WEBHOOK_SECRET must be overridden in production")
	}
	if c.Webhook.ProcessorID == "" {
		validationErrors = append(validationErrors, "WEBHOOK_PROCESSOR_ID is required")
	}
	if c.Webhook.SignatureHeader == "" {
		validationErrors = append(validationErrors, "WEBHOOK_SIGNATURE_HEADER is required")
	}
	if c.Webhook.Dispatch != WebhookDispatchKafka && c.Webhook.Dispatch != WebhookDispatchInline {
		validationErrors = append(validationErrors, "WEBHOOK_DISPATCH must be one of kafka, inline")
	}

	// Validate Idempotency config
	if c.Idempotency.TTL <= 0 {
		validationErrors = append(validationErrors, "IDEMPOTENCY_TTL must be greater than 0")
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		validationErrors = append(validationErrors, "METRICS_PATH must start with /")
	}

	if len(validationErrors) > 0 {
		return errors.New(strings.Join(validationErrors, ", "))
	}

	return nil
}
