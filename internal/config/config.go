package config

import "time"

// Config holds all application configuration, organized into logical groups.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"       validate:"required"`
	Database     DatabaseConfig     `mapstructure:"database"     validate:"required"`
	Broker       BrokerConfig       `mapstructure:"broker"       validate:"required"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator" validate:"required"`
	Auth         AuthConfig         `mapstructure:"auth"         validate:"required"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"             validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level"        validate:"required,oneof=debug info warn error"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// BrokerConfig selects and configures the message broker backing the task
// queues. Kind "memory" needs no URL and exists for local development and
// tests; "amqp" requires a reachable RabbitMQ server.
type BrokerConfig struct {
	Kind string `mapstructure:"kind" validate:"required,oneof=memory amqp"`
	URL  string `mapstructure:"url"  validate:"required_if=Kind amqp,omitempty,uri"`

	// VisibilityTimeout is how long the memory broker waits for an
	// acknowledgement before redelivering an in-flight task.
	VisibilityTimeout time.Duration `mapstructure:"visibility_timeout" validate:"required"`
}

// OrchestratorConfig contains task execution and retry settings.
type OrchestratorConfig struct {
	// MaxAttempts is the default attempt budget for a task, retries included.
	MaxAttempts int `mapstructure:"max_attempts" validate:"required,gte=1"`

	// RetryInitial, RetryStep and RetryMax parameterize the deterministic
	// backoff: delay(n) = min(initial + step*(n-1), max).
	RetryInitial time.Duration `mapstructure:"retry_initial" validate:"required"`
	RetryStep    time.Duration `mapstructure:"retry_step"    validate:"required"`
	RetryMax     time.Duration `mapstructure:"retry_max"     validate:"required"`

	// TaskTimeout is the default maximum execution duration per task.
	TaskTimeout time.Duration `mapstructure:"task_timeout" validate:"required"`

	// DedupWindow is how long the notification dispatcher suppresses
	// duplicate (type, user, request) deliveries.
	DedupWindow time.Duration `mapstructure:"dedup_window" validate:"required"`

	// PendingInfoDeadline is how long a request may sit in PENDING_INFO
	// before the periodic expiry task moves it to EXPIRED.
	PendingInfoDeadline time.Duration `mapstructure:"pending_info_deadline" validate:"required"`
}

// AuthConfig contains authentication settings for the HTTP surface.
type AuthConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret"     validate:"required,min=32"`
	TokenLifetime time.Duration `mapstructure:"token_lifetime" validate:"required"`
}
