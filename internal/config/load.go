package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load,
// e.g. WEBAPP_SERVER_PORT overrides server.port.
const EnvPrefix = "WEBAPP"

// setDefaults registers a default for every key. Viper only binds environment
// variables for keys it already knows about, so required settings get an empty
// default and are rejected later by validation.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.cors_allowed_origins", []string{})
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_lifetime_minutes", 60)
	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("auth.cookie_name", "access_token_cookie")
	v.SetDefault("auth.cookie_secure", true)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.events_channel", "events:event")

	v.SetDefault("rabbitmq.url", "")
	v.SetDefault("rabbitmq.exchange", "events")
	v.SetDefault("rabbitmq.channel_pool_size", 8)

	v.SetDefault("task.worker_count", 2)
	v.SetDefault("task.queue_size", 100)
	v.SetDefault("task.report_delay", 10*time.Second)
	v.SetDefault("task.time_limit", time.Hour)

	v.SetDefault("gate.timezone", "UTC")
	v.SetDefault("gate.open", "09:00")
	v.SetDefault("gate.close", "17:00")
	v.SetDefault("gate.message", "Service Unavailable. This endpoint is time-constrained")

	v.SetDefault("relay.port", 5000)
	v.SetDefault("relay.receive_timeout", 60*time.Second)
	v.SetDefault("relay.write_timeout", 10*time.Second)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Load configuration from environment variables and optionally a config file.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks struct-level constraints and the cross-field rules the
// validator tags cannot express.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if _, err := time.LoadLocation(cfg.Gate.Timezone); err != nil {
		return fmt.Errorf("config validation failed: gate.timezone: %w", err)
	}

	if cfg.Gate.Open >= cfg.Gate.Close {
		return fmt.Errorf("config validation failed: gate.open %q must be before gate.close %q",
			cfg.Gate.Open, cfg.Gate.Close)
	}

	return nil
}
