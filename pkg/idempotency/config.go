package idempotency

import (
	"time"

	"github.com/wms-platform/stock-redistribution/pkg/logging"
)

const (
	// DefaultMaxKeyLength is the maximum length for an idempotency key
	DefaultMaxKeyLength = 255

	// DefaultLockTimeout is how long an unfinished request holds its key
	DefaultLockTimeout = 5 * time.Minute

	// DefaultRetentionPeriod is how long keys and processed message IDs are kept
	DefaultRetentionPeriod = 24 * time.Hour

	// DefaultMaxResponseSize is the largest response body that is cached (1MB)
	DefaultMaxResponseSize = 1 * 1024 * 1024
)

// Config holds configuration for the HTTP idempotency middleware
type Config struct {
	ServiceName string
	Repository  KeyRepository

	// RequireKey rejects mutating requests that carry no Idempotency-Key header
	RequireKey bool

	MaxKeyLength    int
	LockTimeout     time.Duration
	RetentionPeriod time.Duration
	MaxResponseSize int

	Logger  *logging.Logger
	Metrics *Metrics
}

// DefaultConfig returns a default configuration for the given service
func DefaultConfig(serviceName string, repository KeyRepository) *Config {
	return &Config{
		ServiceName:     serviceName,
		Repository:      repository,
		RequireKey:      false,
		MaxKeyLength:    DefaultMaxKeyLength,
		LockTimeout:     DefaultLockTimeout,
		RetentionPeriod: DefaultRetentionPeriod,
		MaxResponseSize: DefaultMaxResponseSize,
	}
}

func (c *Config) logger() *logging.Logger {
	if c.Logger == nil {
		return logging.NewNop()
	}
	return c.Logger
}

// ConsumerConfig holds configuration for Kafka consumer message deduplication
type ConsumerConfig struct {
	ServiceName     string
	Topic           string
	ConsumerGroup   string
	Repository      MessageRepository
	RetentionPeriod time.Duration

	Logger  *logging.Logger
	Metrics *Metrics
}

// DefaultConsumerConfig returns a default consumer configuration
func DefaultConsumerConfig(serviceName, topic, consumerGroup string, repository MessageRepository) *ConsumerConfig {
	return &ConsumerConfig{
		ServiceName:     serviceName,
		Topic:           topic,
		ConsumerGroup:   consumerGroup,
		Repository:      repository,
		RetentionPeriod: DefaultRetentionPeriod,
	}
}

func (c *ConsumerConfig) logger() *logging.Logger {
	if c.Logger == nil {
		return logging.NewNop()
	}
	return c.Logger
}
