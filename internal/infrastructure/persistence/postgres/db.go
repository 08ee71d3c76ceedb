package postgres

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/garyjia/flow-forge/internal/application/port"
	"github.com/garyjia/flow-forge/internal/infrastructure/persistence/txscope"
	"github.com/garyjia/flow-forge/pkg/database"
)

// DB wraps a pgx pool and implements TransactionManager
type DB struct {
	Pool   *pgxpool.Pool
	logger *zap.Logger
}

// Open creates a connection pool for dsn and verifies it
func Open(ctx context.Context, dsn string, logger *zap.Logger) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("PostgreSQL connection established",
		zap.String("host", poolConfig.ConnConfig.Host),
		zap.String("database", poolConfig.ConnConfig.Database))
	return NewDB(pool, logger), nil
}

// NewDB wraps an existing pool
func NewDB(pool *pgxpool.Pool, logger *zap.Logger) *DB {
	return &DB{Pool: pool, logger: logger}
}

// Close releases all pooled connections
func (db *DB) Close() {
	db.logger.Info("Closing PostgreSQL pool")
	db.Pool.Close()
}

// WithTransaction implements port.TransactionManager
func (db *DB) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return txscope.Run(ctx, txscope.Driver[pgx.Tx]{
		Begin: func(ctx context.Context) (pgx.Tx, error) {
			return db.Pool.Begin(ctx)
		},
		Commit: func(ctx context.Context, tx pgx.Tx) error {
			return tx.Commit(ctx)
		},
		Rollback: func(ctx context.Context, tx pgx.Tx) error {
			if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
				return err
			}
			return nil
		},
	}, db.logger, fn)
}

// Migrate applies the pending NNN_name.sql migrations of fsys
func (db *DB) Migrate(ctx context.Context, fsys fs.FS) error {
	db.logger.Info("Starting database migrations")

	_, err := db.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	migrations, err := database.LoadMigrations(fsys)
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	for _, m := range migrations {
		err := db.WithTransaction(ctx, func(ctx context.Context) error {
			exec := db.executor(ctx)

			tag, err := exec.Exec(ctx,
				`INSERT INTO schema_migrations (version, name) VALUES ($1, $2) ON CONFLICT (version) DO NOTHING`,
				m.Version, m.Name)
			if err != nil {
				return fmt.Errorf("failed to record migration: %w", err)
			}
			if tag.RowsAffected() == 0 {
				db.logger.Debug("Skipping applied migration", zap.Int("version", m.Version), zap.String("name", m.Name))
				return nil
			}

			db.logger.Info("Applying migration", zap.Int("version", m.Version), zap.String("name", m.Name))
			if _, err := exec.Exec(ctx, m.SQL); err != nil {
				return fmt.Errorf("failed to execute migration SQL: %w", err)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", m.Version, err)
		}
	}

	db.logger.Info("Database migrations completed successfully", zap.Int("available", len(migrations)))
	return nil
}

// executor returns the transaction in ctx or the pool
func (db *DB) executor(ctx context.Context) executor {
	if tx, ok := txscope.From[pgx.Tx](ctx); ok {
		return tx
	}
	return db.Pool
}

// executor covers both *pgxpool.Pool and pgx.Tx
type executor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ port.TransactionManager = (*DB)(nil)
