package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/flaviopcampos/DATACLINICA-sub004/internal/backend"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/email"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/service/export"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/service/order"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/service/stockmovement"
	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/messaging/redis"
)

const envPrefix = "INVENTORY"

type Config struct {
	Server        ServerConfig         `mapstructure:"server"`
	Log           LogConfig            `mapstructure:"log"`
	Database      DatabaseConfig       `mapstructure:"database"`
	JWT           JWTConfig            `mapstructure:"jwt"`
	Backend       backend.Config       `mapstructure:"backend"`
	Redis         RedisConfig          `mapstructure:"redis"`
	S3            export.S3Config      `mapstructure:"s3"`
	Email         email.Config         `mapstructure:"email"`
	Order         order.Config         `mapstructure:"order"`
	StockMovement stockmovement.Config `mapstructure:"stock_movement"`
	Refresher     RefresherConfig      `mapstructure:"refresher"`
	Audit         AuditConfig          `mapstructure:"audit"`
	RateLimit     RateLimitConfig      `mapstructure:"rate_limit"`
	CORS          CORSConfig           `mapstructure:"cors"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
	MetricsPath     string        `mapstructure:"metrics_path"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// DatabaseConfig points at the audit and outbox database. An empty host
// disables persistence; audit entries and change events are then dropped.
// The worker fills it from the environment with envconfig.
type DatabaseConfig struct {
	Host         string `mapstructure:"host" envconfig:"HOST"`
	Port         int    `mapstructure:"port" envconfig:"PORT" default:"5432"`
	User         string `mapstructure:"user" envconfig:"USER" default:"postgres"`
	Password     string `mapstructure:"password" envconfig:"PASSWORD"`
	Name         string `mapstructure:"name" envconfig:"NAME" default:"inventory"`
	SSLMode      string `mapstructure:"sslmode" envconfig:"SSLMODE" default:"disable"`
	MaxOpenConns int    `mapstructure:"max_open_conns" envconfig:"MAX_OPEN_CONNS" default:"10"`
}

func (c DatabaseConfig) Enabled() bool { return c.Host != "" }

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

// RedisConfig enables the change-event subscriber and notification
// publishing. An empty URL keeps both in process.
type RedisConfig struct {
	redis.Config `mapstructure:",squash"`
	Enabled      bool `mapstructure:"enabled"`
}

type RefresherConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type AuditConfig struct {
	RetentionDays   int           `mapstructure:"retention_days"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	IdleTTL           time.Duration `mapstructure:"idle_ttl"`
}

type CORSConfig struct {
	AllowedOrigins   []string      `mapstructure:"allowed_origins"`
	AllowCredentials bool          `mapstructure:"allow_credentials"`
	MaxAge           time.Duration `mapstructure:"max_age"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.metrics_path", "/metrics")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", true)

	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "inventory")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "hospital")

	v.SetDefault("backend.base_url", "http://localhost:8000/api")
	v.SetDefault("backend.api_token", "")
	v.SetDefault("backend.timeout", 30*time.Second)
	v.SetDefault("backend.max_attempts", 3)
	v.SetDefault("backend.backoff_initial", 200*time.Millisecond)
	v.SetDefault("backend.backoff_max", 2*time.Second)
	v.SetDefault("backend.breaker_failures", 5)
	v.SetDefault("backend.breaker_timeout", 30*time.Second)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", 100*time.Millisecond)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)

	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.access_key_id", "")
	v.SetDefault("s3.secret_access_key", "")
	v.SetDefault("s3.path_style", false)
	v.SetDefault("s3.prefix", "exports/")
	v.SetDefault("s3.url_expiry", 15*time.Minute)

	v.SetDefault("email.host", "")
	v.SetDefault("email.port", 587)
	v.SetDefault("email.username", "")
	v.SetDefault("email.password", "")
	v.SetDefault("email.from", "")

	v.SetDefault("order.stats_ttl", 30*time.Second)
	v.SetDefault("order.approval_recipient", "")
	v.SetDefault("order.number_prefix", "PO")
	v.SetDefault("stock_movement.stats_ttl", 30*time.Second)

	v.SetDefault("refresher.interval", time.Minute)
	v.SetDefault("audit.retention_days", 365)
	v.SetDefault("audit.cleanup_interval", 24*time.Hour)

	v.SetDefault("rate_limit.requests_per_second", 20.0)
	v.SetDefault("rate_limit.burst", 40)
	v.SetDefault("rate_limit.idle_ttl", 10*time.Minute)

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("cors.max_age", 12*time.Hour)
}

// LoadConfig reads config.yaml from path (or the default search paths when
// path is empty) and applies INVENTORY_* environment overrides. A missing
// file is not an error; defaults and the environment are enough to run.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/app/config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var problems []string
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, "server.port out of range")
	}
	if c.JWT.Secret == "" {
		problems = append(problems, "jwt.secret is required")
	}
	if c.Backend.BaseURL == "" {
		problems = append(problems, "backend.base_url is required")
	}
	if c.Audit.RetentionDays < 0 {
		problems = append(problems, "audit.retention_days must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
