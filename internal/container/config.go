// Package container provides dependency injection and lifecycle management
// for the workflow engine following Clean Architecture principles.
package container

import (
	"fmt"
	"time"
)

// Supported database backends
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config holds all configuration for the Container.
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Lark notification configuration
	Lark LarkConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Driver selects the backend: sqlite or postgres
	Driver string

	// Path to the SQLite database file
	Path string

	// DSN is the PostgreSQL connection string
	DSN string

	// MaxOpenConns is the maximum number of open SQLite connections
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle SQLite connections
	MaxIdleConns int

	// ConnMaxLifetime is the maximum connection lifetime
	ConnMaxLifetime time.Duration
}

// LarkConfig holds Lark API settings.
type LarkConfig struct {
	// Enabled turns on approver notifications
	Enabled bool

	// AppID is the Lark application ID
	AppID string

	// AppSecret is the Lark application secret
	AppSecret string

	// BaseURL overrides the Open Platform endpoint
	BaseURL string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:          BackendSQLite,
			Path:            "data/flowforge.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case BackendSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required")
		}
	case BackendPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if c.Lark.Enabled {
		if c.Lark.AppID == "" {
			return fmt.Errorf("lark.app_id is required")
		}
		if c.Lark.AppSecret == "" {
			return fmt.Errorf("lark.app_secret is required")
		}
	}

	return nil
}
