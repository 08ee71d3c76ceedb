package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Supported database drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// EnvPrefix prefixes environment overrides, e.g. FLOWFORGE_SERVER_PORT
const EnvPrefix = "FLOWFORGE"

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Lark     LarkConfig     `mapstructure:"lark"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// AuthConfig controls how the caller identity is read from requests
type AuthConfig struct {
	CallerHeader string `mapstructure:"caller_header"`
}

// LarkConfig holds Lark API configuration
type LarkConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	AppID     string `mapstructure:"app_id"`
	AppSecret string `mapstructure:"app_secret"`
	BaseURL   string `mapstructure:"base_url"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Address returns the host:port the HTTP server listens on
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Load loads configuration from file and environment variables.
// An empty configPath uses defaults and the environment only.
// A .env file in the working directory is loaded first when present.
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
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

// loadDotEnv exports variables from path without overriding the environment
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := gotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	// Database defaults
	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.path", "data/flowforge.db")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	// Auth defaults
	v.SetDefault("auth.caller_header", "X-Caller-Identity")

	// Lark defaults
	v.SetDefault("lark.enabled", false)
	v.SetDefault("lark.app_id", "")
	v.SetDefault("lark.app_secret", "")
	v.SetDefault("lark.base_url", "")

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds the conventional names of secrets and connection strings
func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("lark.app_id", "LARK_APP_ID")
	_ = v.BindEnv("lark.app_secret", "LARK_APP_SECRET")
	_ = v.BindEnv("database.dsn", "DATABASE_URL", EnvPrefix+"_DATABASE_DSN")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported database.driver %q", c.Database.Driver)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}

	if c.Auth.CallerHeader == "" {
		return fmt.Errorf("auth.caller_header is required")
	}

	if c.Lark.Enabled {
		if c.Lark.AppID == "" {
			return fmt.Errorf("lark.app_id is required when lark is enabled")
		}
		if c.Lark.AppSecret == "" {
			return fmt.Errorf("lark.app_secret is required when lark is enabled")
		}
	}

	return nil
}
