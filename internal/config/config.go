package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server     ServerConfig     `mapstructure:"server" validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database" validate:"required"`
	Bus        BusConfig        `mapstructure:"bus" validate:"required"`
	Ledger     LedgerConfig     `mapstructure:"ledger" validate:"required"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler" validate:"required"`
	Lease      LeaseConfig      `mapstructure:"lease" validate:"required"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher" validate:"required"`
	Outbox     OutboxConfig     `mapstructure:"outbox" validate:"required"`
	Email      EmailConfig      `mapstructure:"email"`
	Push       PushConfig       `mapstructure:"push"`
}

// ServerConfig contains settings for the operational HTTP surface and logging.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url" validate:"required,url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// BusConfig selects and configures the event transport.
type BusConfig struct {
	// Driver is either "kafka" or "memory". The memory driver runs every
	// consumer in-process and is only suitable for a single replica.
	Driver string      `mapstructure:"driver" validate:"required,oneof=kafka memory"`
	Kafka  KafkaConfig `mapstructure:"kafka"`

	// WorkerCount and QueueSize size the keyed worker pool of the memory driver.
	WorkerCount int `mapstructure:"worker_count" validate:"gte=1"`
	QueueSize   int `mapstructure:"queue_size" validate:"gte=1"`

	// MaxAttempts bounds how many times a handler is invoked for one message
	// before the message is dead-lettered.
	MaxAttempts  int           `mapstructure:"max_attempts" validate:"gte=1"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff" validate:"gt=0"`
}

// KafkaConfig contains broker addresses, topic routing and consumer sizing.
type KafkaConfig struct {
	Brokers            []string `mapstructure:"brokers" validate:"omitempty,dive,hostname_port"`
	TasksTopic         string   `mapstructure:"tasks_topic"`
	RemindersTopic     string   `mapstructure:"reminders_topic"`
	NotificationsTopic string   `mapstructure:"notifications_topic"`
	DeadLetterTopic    string   `mapstructure:"dead_letter_topic"`
	ConsumersPerGroup  int      `mapstructure:"consumers_per_group" validate:"gte=1"`
}

// LedgerConfig selects the idempotency ledger backend and its retention.
type LedgerConfig struct {
	Driver       string         `mapstructure:"driver" validate:"required,oneof=postgres dynamodb"`
	Retention    time.Duration  `mapstructure:"retention" validate:"gt=0"`
	ReapInterval time.Duration  `mapstructure:"reap_interval" validate:"gt=0"`
	DynamoDB     DynamoDBConfig `mapstructure:"dynamodb"`
}

// DynamoDBConfig configures the DynamoDB ledger table.
type DynamoDBConfig struct {
	Table    string `mapstructure:"table"`
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
}

// SchedulerConfig controls the reminder scheduler tick.
type SchedulerConfig struct {
	TickInterval time.Duration `mapstructure:"tick_interval" validate:"gt=0"`
	TickTimeout  time.Duration `mapstructure:"tick_timeout" validate:"gt=0"`
	BatchSize    int           `mapstructure:"batch_size" validate:"gte=1,lte=10000"`
}

// LeaseConfig configures the scheduler leader lease.
type LeaseConfig struct {
	// Driver is "redis" for multi-replica deployments or "static" when exactly
	// one scheduler replica is deployed.
	Driver    string        `mapstructure:"driver" validate:"required,oneof=redis static"`
	RedisAddr string        `mapstructure:"redis_addr" validate:"required_if=Driver redis"`
	RedisDB   int           `mapstructure:"redis_db" validate:"gte=0"`
	Key       string        `mapstructure:"key" validate:"required"`
	TTL       time.Duration `mapstructure:"ttl" validate:"gt=0"`
}

// DispatcherConfig controls notification delivery retries and timeouts.
type DispatcherConfig struct {
	SendTimeout time.Duration `mapstructure:"send_timeout" validate:"gt=0"`
	BaseDelay   time.Duration `mapstructure:"base_delay" validate:"gt=0"`
	MaxDelay    time.Duration `mapstructure:"max_delay" validate:"gtefield=BaseDelay"`
	MaxAttempts int           `mapstructure:"max_attempts" validate:"gte=1,lte=20"`
	RatePerSec  float64       `mapstructure:"rate_per_sec" validate:"gte=0"`
	RateBurst   int           `mapstructure:"rate_burst" validate:"gte=0"`
}

// OutboxConfig controls the outbox relay loop.
type OutboxConfig struct {
	RelayInterval time.Duration `mapstructure:"relay_interval" validate:"gt=0"`
	BatchSize     int           `mapstructure:"batch_size" validate:"gte=1"`
}

// EmailConfig configures the SES email channel.
type EmailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	From     string `mapstructure:"from" validate:"required_if=Enabled true"`
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
}

// PushConfig configures the push gateway channel.
type PushConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	GatewayURL string `mapstructure:"gateway_url" validate:"required_if=Enabled true"`
	JWTSecret  string `mapstructure:"jwt_secret" validate:"required_if=Enabled true"`
	Issuer     string `mapstructure:"issuer"`
}
