package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/garyjia/flow-forge/internal/config"
	"github.com/garyjia/flow-forge/internal/container"
	httpserver "github.com/garyjia/flow-forge/internal/interfaces/http"
	"github.com/garyjia/flow-forge/pkg/utils"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting Flow Forge workflow engine",
		zap.String("version", "1.0.0"),
		zap.String("database", cfg.Database.Driver),
		zap.Int("port", cfg.Server.Port))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Wire database, dispatcher, services and notifier
	c, err := container.NewContainer(cfg.ToContainerConfig(), logger)
	if err != nil {
		logger.Fatal("Failed to create container", zap.Error(err))
	}
	if err := c.Start(ctx); err != nil {
		logger.Fatal("Failed to start container", zap.Error(err))
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error("Container shutdown error", zap.Error(err))
		}
	}()

	services := c.Services()
	server := httpserver.NewServer(cfg.ToServerConfig(), services.Workflow, services.Template, c.ServiceLogger())

	// Blocks until SIGINT/SIGTERM, then drains in-flight requests
	if err := server.Start(ctx); err != nil {
		logger.Error("Server exited with error", zap.Error(err))
		return
	}

	logger.Info("Server exited")
}
