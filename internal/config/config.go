package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Store drivers
const (
	DriverSQLite   = "sqlite"
	DriverDynamoDB = "dynamodb"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Store    StoreConfig    `mapstructure:"store"`
	Review   ReviewConfig   `mapstructure:"review"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Lark     LarkConfig     `mapstructure:"lark"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds the SQLite configuration. The database always backs
// templates and the session archive, and backs quotes with the sqlite driver.
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	BusyRetries     int           `mapstructure:"busy_retries"`
	BusyBackoff     time.Duration `mapstructure:"busy_backoff"`
}

// StoreConfig selects the quote store backend
type StoreConfig struct {
	Driver   string         `mapstructure:"driver"`
	DynamoDB DynamoDBConfig `mapstructure:"dynamodb"`
}

// DynamoDBConfig holds DynamoDB quote store configuration
type DynamoDBConfig struct {
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	Table           string `mapstructure:"table"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// ReviewConfig holds review session policy
type ReviewConfig struct {
	IdleTimeout            time.Duration `mapstructure:"idle_timeout"`
	LowConfidenceThreshold float64       `mapstructure:"low_confidence_threshold"`
	AutoConfirm            bool          `mapstructure:"auto_confirm"`
	SweepInterval          time.Duration `mapstructure:"sweep_interval"`
}

// OpenAIConfig holds the command interpreter configuration.
// An empty api_key disables transcript interpretation.
type OpenAIConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	PromptsPath string        `mapstructure:"prompts_path"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// LarkConfig holds the Lark conversation transport configuration
type LarkConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	AppID     string `mapstructure:"app_id"`
	AppSecret string `mapstructure:"app_secret"`
	Domain    string `mapstructure:"domain"`
}

// MetricsConfig toggles the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load reads configuration from an optional .env file, the config file at
// configPath (skipped when empty) and environment variables, in increasing
// precedence.
func Load(configPath string) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	bindEnvVars(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.path", "data/quotes.db")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", 0)
	v.SetDefault("database.busy_retries", 3)
	v.SetDefault("database.busy_backoff", "50ms")

	v.SetDefault("store.driver", DriverSQLite)
	v.SetDefault("store.dynamodb.table", "quotes")

	v.SetDefault("review.idle_timeout", 30*time.Minute)
	v.SetDefault("review.low_confidence_threshold", 0.75)
	v.SetDefault("review.auto_confirm", false)
	v.SetDefault("review.sweep_interval", time.Minute)

	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.timeout", 30*time.Second)

	v.SetDefault("lark.enabled", false)
	v.SetDefault("lark.domain", "feishu")

	v.SetDefault("metrics.enabled", true)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars maps environment variables onto configuration keys. Every key
// is reachable as QUOTE_<SECTION>_<KEY>; credentials also accept their
// conventional names.
func bindEnvVars(v *viper.Viper) {
	v.SetEnvPrefix("QUOTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("openai.api_key", "QUOTE_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("openai.base_url", "QUOTE_OPENAI_BASE_URL", "OPENAI_BASE_URL")
	_ = v.BindEnv("lark.app_id", "QUOTE_LARK_APP_ID", "LARK_APP_ID")
	_ = v.BindEnv("lark.app_secret", "QUOTE_LARK_APP_SECRET", "LARK_APP_SECRET")
	_ = v.BindEnv("store.dynamodb.region", "QUOTE_STORE_DYNAMODB_REGION", "AWS_REGION")
	_ = v.BindEnv("store.dynamodb.access_key_id", "QUOTE_STORE_DYNAMODB_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID")
	_ = v.BindEnv("store.dynamodb.secret_access_key", "QUOTE_STORE_DYNAMODB_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Database.BusyRetries < 0 {
		return fmt.Errorf("database.busy_retries must not be negative")
	}

	switch c.Store.Driver {
	case DriverSQLite:
	case DriverDynamoDB:
		if c.Store.DynamoDB.Region == "" {
			return fmt.Errorf("store.dynamodb.region is required for the dynamodb driver")
		}
		if c.Store.DynamoDB.Table == "" {
			return fmt.Errorf("store.dynamodb.table is required for the dynamodb driver")
		}
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}

	if c.Review.LowConfidenceThreshold < 0 || c.Review.LowConfidenceThreshold > 1 {
		return fmt.Errorf("review.low_confidence_threshold must be within [0,1], got %.2f", c.Review.LowConfidenceThreshold)
	}
	if c.Review.IdleTimeout < 0 {
		return fmt.Errorf("review.idle_timeout must not be negative")
	}
	if c.Review.IdleTimeout > 0 && c.Review.SweepInterval <= 0 {
		return fmt.Errorf("review.sweep_interval is required when review.idle_timeout is set")
	}

	if c.Lark.Enabled {
		if c.Lark.AppID == "" {
			return fmt.Errorf("lark.app_id is required when lark is enabled")
		}
		if c.Lark.AppSecret == "" {
			return fmt.Errorf("lark.app_secret is required when lark is enabled")
		}
		if d := strings.ToLower(c.Lark.Domain); d != "" && d != "feishu" && d != "lark" {
			return fmt.Errorf("lark.domain must be feishu or lark, got %q", c.Lark.Domain)
		}
	}

	return nil
}
