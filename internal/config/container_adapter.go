package config

import (
	"github.com/garyjia/flow-forge/internal/container"
	httpserver "github.com/garyjia/flow-forge/internal/interfaces/http"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Driver:          c.Database.Driver,
			Path:            c.Database.Path,
			DSN:             c.Database.DSN,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
		},
		Lark: container.LarkConfig{
			Enabled:   c.Lark.Enabled,
			AppID:     c.Lark.AppID,
			AppSecret: c.Lark.AppSecret,
			BaseURL:   c.Lark.BaseURL,
		},
	}
}

// ToServerConfig converts the server and auth sections to the HTTP server config.
func (c *Config) ToServerConfig() httpserver.ServerConfig {
	return httpserver.ServerConfig{
		Host:            c.Server.Host,
		Port:            c.Server.Port,
		Mode:            c.Server.Mode,
		ReadTimeout:     c.Server.ReadTimeout,
		WriteTimeout:    c.Server.WriteTimeout,
		ShutdownTimeout: c.Server.ShutdownTimeout,
		CallerHeader:    c.Auth.CallerHeader,
	}
}
