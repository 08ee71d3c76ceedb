package container

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/flow-forge/internal/application/dispatcher"
	"github.com/garyjia/flow-forge/internal/application/port"
	"github.com/garyjia/flow-forge/internal/application/service"
	infraLark "github.com/garyjia/flow-forge/internal/infrastructure/external/lark"
	"github.com/garyjia/flow-forge/internal/infrastructure/persistence/postgres"
	"github.com/garyjia/flow-forge/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/flow-forge/migrations"
	"github.com/garyjia/flow-forge/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	Backend        string
	TransactionMgr port.TransactionManager
	Repositories   *RepositoryBundle
	Ping           func(ctx context.Context) error
	Close          func() error
}

// ProvideDatabase opens the configured backend, applies the embedded
// migrations and builds the repositories on top of it.
func ProvideDatabase(ctx context.Context, cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	switch cfg.Driver {
	case BackendSQLite, "":
		return provideSQLite(cfg, logger)
	case BackendPostgres:
		return providePostgres(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func provideSQLite(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	raw, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(raw, logger).RunMigrations(migrations.SQLite()); err != nil {
		raw.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	db := sqlite.NewDB(raw.DB, logger)
	return &DatabaseBundle{
		Backend:        BackendSQLite,
		TransactionMgr: db,
		Repositories: &RepositoryBundle{
			Workflow:       sqlite.NewWorkflowRepository(db, logger),
			TransitionRule: sqlite.NewTransitionRuleRepository(db, logger),
			Template:       sqlite.NewTemplateRepository(db, logger),
			Sequence:       sqlite.NewSequenceRepository(db, logger),
		},
		Ping:  raw.PingContext,
		Close: raw.Close,
	}, nil
}

func providePostgres(ctx context.Context, cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	db, err := postgres.Open(ctx, cfg.DSN, logger)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(ctx, migrations.Postgres()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		Backend:        BackendPostgres,
		TransactionMgr: db,
		Repositories: &RepositoryBundle{
			Workflow:       postgres.NewWorkflowRepository(db, logger),
			TransitionRule: postgres.NewTransitionRuleRepository(db, logger),
			Template:       postgres.NewTemplateRepository(db, logger),
			Sequence:       postgres.NewSequenceRepository(db, logger),
		},
		Ping: db.Pool.Ping,
		Close: func() error {
			db.Close()
			return nil
		},
	}, nil
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return dispatcher.NewDispatcher(
		dispatcher.WithLogger(&zapLoggerAdapter{logger: logger.Named("dispatcher")}),
	), nil
}

// ServiceDeps holds dependencies required for creating services.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Dispatcher dispatcher.Dispatcher
	Logger     *zap.Logger
}

// ProvideServices creates all application services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	serviceLogger := &zapLoggerAdapter{logger: deps.Logger}

	return &ServiceBundle{
		Workflow: service.NewWorkflowService(
			deps.Repos.Workflow,
			deps.Repos.TransitionRule,
			deps.Repos.Sequence,
			deps.TxManager,
			deps.Dispatcher,
			serviceLogger,
		),
		Template: service.NewTemplateService(
			deps.Repos.Template,
			deps.Repos.Workflow,
			deps.Repos.TransitionRule,
			deps.Repos.Sequence,
			deps.TxManager,
			deps.Dispatcher,
			serviceLogger,
		),
	}, nil
}

// ProvideNotifier creates the Lark approver notifier and subscribes it,
// or returns nil when notifications are disabled.
func ProvideNotifier(cfg *LarkConfig, repos *RepositoryBundle, d dispatcher.Dispatcher, logger *zap.Logger) (*infraLark.ApproverNotifier, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	if d == nil {
		return nil, fmt.Errorf("dispatcher is required for notifications")
	}

	client := infraLark.NewSDKClient(infraLark.Config{
		AppID:     cfg.AppID,
		AppSecret: cfg.AppSecret,
		BaseURL:   cfg.BaseURL,
	}, logger)
	messenger := infraLark.NewMessenger(client, logger)

	notifier := infraLark.NewApproverNotifier(repos.Workflow, repos.TransitionRule, messenger, logger)
	notifier.Register(d)
	return notifier, nil
}
