package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	QueueBackendPostgres = "postgres"
	QueueBackendRedis    = "redis"
	QueueBackendMemory   = "memory"

	SenderTelegram = "telegram"
	SenderConsole  = "console"
)

// Config is the full process configuration shared by the api and worker binaries.
type Config struct {
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	API      APIConfig      `envconfig:"API"`
	Worker   WorkerConfig   `envconfig:"WORKER"`
	DB       DBConfig       `envconfig:"DB"`
	Queue    QueueConfig    `envconfig:"QUEUE"`
	Sender   SenderConfig   `envconfig:"SENDER"`
	Telegram TelegramConfig `envconfig:"TELEGRAM"`
	Kafka    KafkaConfig    `envconfig:"KAFKA"`
	Auth     AuthConfig     `envconfig:"AUTH"`
	Tracing  TracingConfig  `envconfig:"OTEL"`
}

type APIConfig struct {
	Addr string `envconfig:"ADDR" default:":8080"`
}

type WorkerConfig struct {
	Addr string `envconfig:"ADDR" default:":8081"`
}

// DBConfig holds the Postgres connection settings
type DBConfig struct {
	URL         string        `envconfig:"URL" required:"true"`
	MaxOpenConn int           `envconfig:"MAX_OPEN_CONN" default:"10"`
	ConnMaxIdle time.Duration `envconfig:"CONN_MAX_IDLE" default:"5m"`
	Migrate     bool          `envconfig:"MIGRATE" default:"true"`
}

// QueueConfig drives the delayed job queue and its consumer pool.
type QueueConfig struct {
	Backend      string        `envconfig:"BACKEND" default:"postgres"`
	Attempts     int           `envconfig:"ATTEMPTS" default:"5"`
	Backoff      time.Duration `envconfig:"BACKOFF" default:"2s"`
	MaxBackoff   time.Duration `envconfig:"MAX_BACKOFF" default:"0"`
	Concurrency  int           `envconfig:"CONCURRENCY" default:"8"`
	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"500ms"`
	Lease        time.Duration `envconfig:"LEASE" default:"5m"`
	RedisURL     string        `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`
	RedisKey     string        `envconfig:"REDIS_KEY" default:"notifications"`
}

type SenderConfig struct {
	Kind string `envconfig:"KIND" default:"telegram"`
}

type TelegramConfig struct {
	BotToken           string `envconfig:"BOT_TOKEN"`
	DisableLinkPreview bool   `envconfig:"DISABLE_LINK_PREVIEW" default:"true"`
}

type KafkaConfig struct {
	Brokers       []string `envconfig:"BROKERS" default:"localhost:9092"`
	TaskTopic     string   `envconfig:"TASK_TOPIC" default:"task-events"`
	ConsumerGroup string   `envconfig:"CONSUMER_GROUP" default:"taskpulse-scheduler"`
	OutcomeTopic  string   `envconfig:"OUTCOME_TOPIC"`
}

type AuthConfig struct {
	SecretKey string `envconfig:"SECRET_KEY"`
}

type TracingConfig struct {
	ServiceName       string `envconfig:"SERVICE_NAME"`
	CollectorEndpoint string `envconfig:"COLLECTOR_ENDPOINT"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings common to both binaries.
func (c *Config) Validate() error {
	switch c.Queue.Backend {
	case QueueBackendPostgres, QueueBackendRedis, QueueBackendMemory:
	default:
		return fmt.Errorf("config: unknown QUEUE_BACKEND %q", c.Queue.Backend)
	}
	if c.Queue.Attempts < 1 {
		return fmt.Errorf("config: QUEUE_ATTEMPTS must be >= 1, got %d", c.Queue.Attempts)
	}
	if c.Queue.Backoff <= 0 {
		return fmt.Errorf("config: QUEUE_BACKOFF must be positive")
	}
	if c.Queue.Concurrency < 1 {
		return fmt.Errorf("config: QUEUE_CONCURRENCY must be >= 1, got %d", c.Queue.Concurrency)
	}
	if c.Queue.PollInterval <= 0 || c.Queue.Lease <= 0 {
		return fmt.Errorf("config: QUEUE_POLL_INTERVAL and QUEUE_LEASE must be positive")
	}
	switch c.Sender.Kind {
	case SenderTelegram, SenderConsole:
	default:
		return fmt.Errorf("config: unknown SENDER_KIND %q", c.Sender.Kind)
	}
	return nil
}

// ValidateAPI checks settings only the api binary needs.
func (c *Config) ValidateAPI() error {
	if c.Auth.SecretKey == "" {
		return fmt.Errorf("config: AUTH_SECRET_KEY is required")
	}
	return nil
}

// ValidateWorker checks settings only the worker binary needs.
func (c *Config) ValidateWorker() error {
	if c.Sender.Kind == SenderTelegram && c.Telegram.BotToken == "" {
		return fmt.Errorf("config: TELEGRAM_BOT_TOKEN is required for the telegram sender")
	}
	return nil
}
