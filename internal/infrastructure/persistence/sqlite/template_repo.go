package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garyjia/flow-forge/internal/application/port"
	"github.com/garyjia/flow-forge/internal/domain/entity"
	"github.com/garyjia/flow-forge/internal/domain/workflow"
	"go.uber.org/zap"
)

// TemplateRepository implements port.TemplateRepository
type TemplateRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewTemplateRepository creates a new template repository
func NewTemplateRepository(db *DB, logger *zap.Logger) port.TemplateRepository {
	return &TemplateRepository{
		db:     db,
		logger: logger,
	}
}

// Create stores a template and its state definitions in declaration order
func (r *TemplateRepository) Create(ctx context.Context, tpl *entity.Template) error {
	return r.db.WithTransaction(ctx, func(ctx context.Context) error {
		exec := r.db.executor(ctx)

		_, err := exec.ExecContext(ctx,
			`INSERT INTO templates (id, name, initial_state, created_at) VALUES (?, ?, ?, ?)`,
			tpl.ID, tpl.Name, string(tpl.InitialState), tpl.CreatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to create template", zap.Int64("id", tpl.ID), zap.Error(err))
			return fmt.Errorf("failed to create template: %w", err)
		}

		for i, def := range tpl.States {
			dests, approvers, err := encodeRule(def.Rule)
			if err != nil {
				return err
			}
			_, err = exec.ExecContext(ctx,
				`INSERT INTO template_states (template_id, position, state, destinations, approvers)
				 VALUES (?, ?, ?, ?, ?)`,
				tpl.ID, i, string(def.State), dests, approvers,
			)
			if err != nil {
				r.logger.Error("Failed to create template state",
					zap.Int64("template_id", tpl.ID),
					zap.Int("position", i),
					zap.Error(err))
				return fmt.Errorf("failed to create template state: %w", err)
			}
		}
		return nil
	})
}

// GetByID retrieves a template with its state definitions
func (r *TemplateRepository) GetByID(ctx context.Context, id int64) (*entity.Template, error) {
	exec := r.db.executor(ctx)

	var tpl entity.Template
	var initial string

	err := exec.QueryRowContext(ctx,
		`SELECT id, name, initial_state, created_at FROM templates WHERE id = ?`, id,
	).Scan(&tpl.ID, &tpl.Name, &initial, &tpl.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get template by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	tpl.InitialState = workflow.State(initial)

	rows, err := exec.QueryContext(ctx,
		`SELECT state, destinations, approvers FROM template_states WHERE template_id = ? ORDER BY position`, id,
	)
	if err != nil {
		r.logger.Error("Failed to get template states", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get template states: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var state, dests, approvers string
		if err := rows.Scan(&state, &dests, &approvers); err != nil {
			return nil, fmt.Errorf("failed to scan template state: %w", err)
		}
		rule, err := decodeRule(dests, approvers)
		if err != nil {
			return nil, err
		}
		tpl.States = append(tpl.States, workflow.Definition{State: workflow.State(state), Rule: rule})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate template states: %w", err)
	}

	return &tpl, nil
}
