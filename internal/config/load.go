package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "TASKPULSE"

// Load reads configuration from environment variables and an optional YAML file.
// Environment variables take precedence over values from the file. An empty
// configPath searches for config.yaml in the working directory.
// Returns a populated Config struct or an error if loading/validation fails.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys without defaults are invisible to Unmarshal unless bound explicitly.
	for _, key := range []string{
		"database.url",
		"bus.kafka.brokers",
		"lease.redis_addr",
		"ledger.dynamodb.table",
		"ledger.dynamodb.region",
		"ledger.dynamodb.endpoint",
		"email.from",
		"email.region",
		"email.endpoint",
		"push.gateway_url",
		"push.jwt_secret",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("error binding environment variable for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate runs struct-tag validation followed by the cross-field rules
// that tags cannot express.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	var problems []string
	if cfg.Bus.Driver == "kafka" && len(cfg.Bus.Kafka.Brokers) == 0 {
		problems = append(problems, "bus.kafka.brokers is required when bus.driver is kafka")
	}
	if cfg.Ledger.Driver == "dynamodb" && cfg.Ledger.DynamoDB.Table == "" {
		problems = append(problems, "ledger.dynamodb.table is required when ledger.driver is dynamodb")
	}
	if cfg.Scheduler.TickTimeout > cfg.Lease.TTL {
		problems = append(problems, "scheduler.tick_timeout must not exceed lease.ttl")
	}
	if cfg.Push.Enabled {
		if len(cfg.Push.JWTSecret) < 32 {
			problems = append(problems, "push.jwt_secret must be at least 32 characters")
		}
		if u, err := url.Parse(cfg.Push.GatewayURL); err != nil || u.Scheme == "" || u.Host == "" {
			problems = append(problems, "push.gateway_url must be an absolute URL")
		}
	}
	if cfg.Email.Enabled && !strings.Contains(cfg.Email.From, "@") {
		problems = append(problems, "email.from must be an email address")
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(problems, "; "))
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("bus.driver", "memory")
	v.SetDefault("bus.worker_count", 4)
	v.SetDefault("bus.queue_size", 256)
	v.SetDefault("bus.max_attempts", 5)
	v.SetDefault("bus.retry_backoff", 500*time.Millisecond)
	v.SetDefault("bus.kafka.tasks_topic", "tasks")
	v.SetDefault("bus.kafka.reminders_topic", "reminders")
	v.SetDefault("bus.kafka.notifications_topic", "notifications")
	v.SetDefault("bus.kafka.dead_letter_topic", "dead-letter")
	v.SetDefault("bus.kafka.consumers_per_group", 2)

	v.SetDefault("ledger.driver", "postgres")
	v.SetDefault("ledger.retention", 7*24*time.Hour)
	v.SetDefault("ledger.reap_interval", time.Hour)

	v.SetDefault("scheduler.tick_interval", time.Minute)
	v.SetDefault("scheduler.tick_timeout", 45*time.Second)
	v.SetDefault("scheduler.batch_size", 500)

	v.SetDefault("lease.driver", "static")
	v.SetDefault("lease.redis_db", 0)
	v.SetDefault("lease.key", "taskpulse:scheduler:leader")
	v.SetDefault("lease.ttl", 90*time.Second)

	v.SetDefault("dispatcher.send_timeout", 10*time.Second)
	v.SetDefault("dispatcher.base_delay", 500*time.Millisecond)
	v.SetDefault("dispatcher.max_delay", 30*time.Second)
	v.SetDefault("dispatcher.max_attempts", 5)
	v.SetDefault("dispatcher.rate_per_sec", 0)
	v.SetDefault("dispatcher.rate_burst", 0)

	v.SetDefault("outbox.relay_interval", 2*time.Second)
	v.SetDefault("outbox.batch_size", 200)

	v.SetDefault("email.enabled", false)
	v.SetDefault("push.enabled", false)
	v.SetDefault("push.issuer", "taskpulse")
}
