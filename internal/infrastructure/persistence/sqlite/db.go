package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/garyjia/flow-forge/internal/application/port"
	"github.com/garyjia/flow-forge/internal/infrastructure/persistence/txscope"
	"go.uber.org/zap"
)

// DB is the TransactionManager shared by this package's repositories.
// Statements issued under a WithTransaction context run on that transaction.
type DB struct {
	*sql.DB
	logger *zap.Logger
	driver txscope.Driver[*sql.Tx]
}

// NewDB wraps an open SQLite handle
func NewDB(sqlDB *sql.DB, logger *zap.Logger) *DB {
	return &DB{
		DB:     sqlDB,
		logger: logger,
		driver: txscope.Driver[*sql.Tx]{
			Begin: func(ctx context.Context) (*sql.Tx, error) {
				return sqlDB.BeginTx(ctx, nil)
			},
			Commit: func(_ context.Context, tx *sql.Tx) error {
				return tx.Commit()
			},
			Rollback: func(_ context.Context, tx *sql.Tx) error {
				if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
					return err
				}
				return nil
			},
		},
	}
}

// WithTransaction implements port.TransactionManager
func (db *DB) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return txscope.Run(ctx, db.driver, db.logger, fn)
}

func (db *DB) executor(ctx context.Context) executor {
	if tx, ok := txscope.From[*sql.Tx](ctx); ok {
		return tx
	}
	return db.DB
}

// executor is satisfied by *sql.DB and *sql.Tx
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var _ port.TransactionManager = (*DB)(nil)
