package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// envPrefix is the prefix for environment variables, e.g. PRIORAUTH_SERVER_PORT.
const envPrefix = "PRIORAUTH"

// Load reads configuration from environment variables and an optional
// config.yaml in the working directory. Environment variables take precedence
// over file values. Returns a validated Config or an error describing every
// failed field.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; env vars and defaults carry the load.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys without defaults are invisible to Unmarshal under AutomaticEnv;
	// bind them explicitly.
	for _, key := range []string{"database.url", "broker.url", "auth.jwt_secret"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("broker.kind", "memory")
	v.SetDefault("broker.visibility_timeout", 30*time.Second)

	v.SetDefault("orchestrator.max_attempts", 3)
	v.SetDefault("orchestrator.retry_initial", time.Minute)
	v.SetDefault("orchestrator.retry_step", time.Minute)
	v.SetDefault("orchestrator.retry_max", 5*time.Minute)
	v.SetDefault("orchestrator.task_timeout", 5*time.Minute)
	v.SetDefault("orchestrator.dedup_window", 10*time.Minute)
	v.SetDefault("orchestrator.pending_info_deadline", 14*24*time.Hour)

	v.SetDefault("auth.token_lifetime", time.Hour)
}

// validate runs struct validation and converts failures into a single error
// listing every offending field.
func validate(cfg *Config) error {
	err := validator.New().Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("config validation failed: %w", err)
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
	}

	return fmt.Errorf("config validation failed: %s", strings.Join(fields, ", "))
}
