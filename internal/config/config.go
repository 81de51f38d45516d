package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth"     validate:"required"`
	Redis    RedisConfig    `mapstructure:"redis"    validate:"required"`
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq" validate:"required"`
	Task     TaskConfig     `mapstructure:"task"     validate:"required"`
	Gate     GateConfig     `mapstructure:"gate"     validate:"required"`
	Relay    RelayConfig    `mapstructure:"relay"    validate:"required"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`

	// CORSAllowedOrigins enables CORS for the listed origins. Empty disables CORS,
	// which is the production default.
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins" validate:"dive,url"`

	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"               validate:"required,url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"    validate:"gt=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"gte=0"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret"             validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`
	BcryptCost           int    `mapstructure:"bcrypt_cost"            validate:"gte=4,lte=31"`

	// CookieName is the cookie carrying the access token for browser clients
	// and for the websocket handshake.
	CookieName   string `mapstructure:"cookie_name"   validate:"required"`
	CookieSecure bool   `mapstructure:"cookie_secure"`
}

// RedisConfig configures the broadcast (pub/sub) event backend.
type RedisConfig struct {
	URL           string `mapstructure:"url"            validate:"required,url"`
	EventsChannel string `mapstructure:"events_channel" validate:"required"`
}

// RabbitMQConfig configures the durable event backend.
type RabbitMQConfig struct {
	URL             string `mapstructure:"url"               validate:"required,url"`
	Exchange        string `mapstructure:"exchange"          validate:"required"`
	ChannelPoolSize int    `mapstructure:"channel_pool_size" validate:"required,gt=0"`
}

// TaskConfig configures the background report executor.
type TaskConfig struct {
	WorkerCount int `mapstructure:"worker_count" validate:"required,gt=0"`
	QueueSize   int `mapstructure:"queue_size"   validate:"required,gt=0"`

	// ReportDelay simulates the slow external I/O of building a report.
	ReportDelay time.Duration `mapstructure:"report_delay" validate:"gte=0"`
	TimeLimit   time.Duration `mapstructure:"time_limit"   validate:"gt=0"`
}

// GateConfig configures the business-hours window guarding event endpoints.
type GateConfig struct {
	Timezone string `mapstructure:"timezone" validate:"required"`
	Open     string `mapstructure:"open"     validate:"required,datetime=15:04"`
	Close    string `mapstructure:"close"    validate:"required,datetime=15:04"`
	Message  string `mapstructure:"message"  validate:"required"`
}

// RelayConfig configures the websocket relay process.
type RelayConfig struct {
	Port           int           `mapstructure:"port"            validate:"required,gt=0,lt=65536"`
	ReceiveTimeout time.Duration `mapstructure:"receive_timeout" validate:"gt=0"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"   validate:"gt=0"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path" validate:"required_if=Enabled true"`
}
