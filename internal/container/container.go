package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/flow-forge/internal/application/dispatcher"
	"github.com/garyjia/flow-forge/internal/application/port"
	"github.com/garyjia/flow-forge/internal/application/service"
	infraLark "github.com/garyjia/flow-forge/internal/infrastructure/external/lark"
)

// Container manages all application dependencies and lifecycle.
// It follows Clean Architecture principles with ordered initialization
// and reverse-order teardown.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure - Data
	database *DatabaseBundle

	// Infrastructure - External
	notifier *infraLark.ApproverNotifier

	// Application
	dispatcher dispatcher.Dispatcher
	services   *ServiceBundle

	// Lifecycle
	mu     sync.RWMutex
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Workflow       port.WorkflowRepository
	TransitionRule port.TransitionRuleRepository
	Template       port.TemplateRepository
	Sequence       port.SequenceRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Workflow service.WorkflowService
	Template service.TemplateService
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components in dependency order:
// 1. Database, migrations and repositories
// 2. Event dispatcher
// 3. Application services
// 4. Optional Lark notifier
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.logger.Info("Starting container initialization")

	db, err := ProvideDatabase(ctx, &c.config.Database, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.database = db
	c.logger.Info("Database initialized", zap.String("backend", db.Backend))

	c.dispatcher, err = ProvideDispatcher(c.logger)
	if err != nil {
		return c.abort(fmt.Errorf("failed to initialize dispatcher: %w", err))
	}

	c.services, err = ProvideServices(&ServiceDeps{
		Repos:      db.Repositories,
		TxManager:  db.TransactionMgr,
		Dispatcher: c.dispatcher,
		Logger:     c.logger,
	})
	if err != nil {
		return c.abort(fmt.Errorf("failed to initialize services: %w", err))
	}
	c.logger.Info("Services initialized")

	c.notifier, err = ProvideNotifier(&c.config.Lark, db.Repositories, c.dispatcher, c.logger.Named("lark"))
	if err != nil {
		return c.abort(fmt.Errorf("failed to initialize notifier: %w", err))
	}
	if c.notifier != nil {
		c.logger.Info("Lark approver notifications enabled")
	}

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

// abort releases what Start opened before failing
func (c *Container) abort(err error) error {
	if c.dispatcher != nil {
		_ = c.dispatcher.Close()
	}
	if c.database != nil {
		_ = c.database.Close()
	}
	return err
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	var errs []error

	// Drain in-flight event handlers before the database goes away
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		} else {
			c.logger.Info("Dispatcher closed")
		}
	}

	if c.database != nil {
		if err := c.database.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	set := func(name string, healthy bool, msg string) {
		status.Components[name] = ComponentHealth{Healthy: healthy, Message: msg}
		if !healthy {
			status.Overall = false
		}
	}

	switch {
	case c.database == nil:
		set("database", false, "not initialized")
	default:
		if err := c.database.Ping(ctx); err != nil {
			set("database", false, fmt.Sprintf("ping failed: %v", err))
		} else {
			set("database", true, c.database.Backend)
		}
	}

	if c.dispatcher != nil {
		set("dispatcher", true, "")
	} else {
		set("dispatcher", false, "not initialized")
	}

	if c.services != nil {
		set("services", true, "")
	} else {
		set("services", false, "not initialized")
	}

	return status
}

// Services returns the service bundle.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// ServiceLogger adapts the root logger to the service.Logger interface.
func (c *Container) ServiceLogger() service.Logger {
	return &zapLoggerAdapter{logger: c.logger}
}

// zapLoggerAdapter adapts zap.Logger to the key/value Logger interfaces
// of the service, dispatcher and http packages.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
