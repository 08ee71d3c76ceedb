package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garyjia/flow-forge/internal/application/port"
	"go.uber.org/zap"
)

// SequenceRepository implements port.SequenceRepository
type SequenceRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewSequenceRepository creates a new sequence repository
func NewSequenceRepository(db *DB, logger *zap.Logger) port.SequenceRepository {
	return &SequenceRepository{
		db:     db,
		logger: logger,
	}
}

// Next increments the named counter and returns the new value
func (r *SequenceRepository) Next(ctx context.Context, name string) (int64, error) {
	query := `UPDATE counters SET value = value + 1 WHERE name = ? RETURNING value`

	var value int64
	err := r.db.executor(ctx).QueryRowContext(ctx, query, name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("unknown counter %q", name)
	}
	if err != nil {
		r.logger.Error("Failed to advance counter", zap.String("counter", name), zap.Error(err))
		return 0, fmt.Errorf("failed to advance counter: %w", err)
	}
	return value, nil
}
