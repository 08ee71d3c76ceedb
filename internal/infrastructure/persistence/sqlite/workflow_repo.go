package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/flow-forge/internal/application/port"
	"github.com/garyjia/flow-forge/internal/domain/entity"
	"github.com/garyjia/flow-forge/internal/domain/workflow"
	"go.uber.org/zap"
)

// WorkflowRepository implements port.WorkflowRepository
type WorkflowRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewWorkflowRepository creates a new workflow repository
func NewWorkflowRepository(db *DB, logger *zap.Logger) port.WorkflowRepository {
	return &WorkflowRepository{
		db:     db,
		logger: logger,
	}
}

// Create stores a new workflow
func (r *WorkflowRepository) Create(ctx context.Context, wf *entity.Workflow) error {
	query := `
		INSERT INTO workflows (id, name, current_state, creator, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.executor(ctx).ExecContext(ctx, query,
		wf.ID,
		wf.Name,
		string(wf.CurrentState),
		string(wf.Creator),
		wf.CreatedAt,
		wf.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create workflow", zap.Int64("id", wf.ID), zap.Error(err))
		return fmt.Errorf("failed to create workflow: %w", err)
	}
	return nil
}

// GetByID retrieves a workflow by ID
func (r *WorkflowRepository) GetByID(ctx context.Context, id int64) (*entity.Workflow, error) {
	return r.get(ctx, id)
}

// GetForUpdate retrieves a workflow inside the caller's transaction.
// SQLite transactions begin IMMEDIATE and already hold the write lock.
func (r *WorkflowRepository) GetForUpdate(ctx context.Context, id int64) (*entity.Workflow, error) {
	return r.get(ctx, id)
}

func (r *WorkflowRepository) get(ctx context.Context, id int64) (*entity.Workflow, error) {
	query := `
		SELECT id, name, current_state, creator, created_at, updated_at
		FROM workflows
		WHERE id = ?
	`

	var wf entity.Workflow
	var state, creator string

	err := r.db.executor(ctx).QueryRowContext(ctx, query, id).Scan(
		&wf.ID,
		&wf.Name,
		&state,
		&creator,
		&wf.CreatedAt,
		&wf.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get workflow by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}

	wf.CurrentState = workflow.State(state)
	wf.Creator = workflow.Identity(creator)
	return &wf, nil
}

// UpdateState sets the workflow's current state
func (r *WorkflowRepository) UpdateState(ctx context.Context, id int64, state workflow.State) error {
	query := `UPDATE workflows SET current_state = ?, updated_at = ? WHERE id = ?`

	result, err := r.db.executor(ctx).ExecContext(ctx, query, string(state), time.Now().UTC(), id)
	if err != nil {
		r.logger.Error("Failed to update workflow state", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to update workflow state: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: workflow %d", workflow.ErrNotFound, id)
	}
	return nil
}
