package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/garyjia/flow-forge/internal/application/port"
	"github.com/garyjia/flow-forge/internal/domain/entity"
	"github.com/garyjia/flow-forge/internal/domain/workflow"
)

// SequenceRepository implements port.SequenceRepository
type SequenceRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewSequenceRepository creates a new sequence repository
func NewSequenceRepository(db *DB, logger *zap.Logger) port.SequenceRepository {
	return &SequenceRepository{db: db, logger: logger}
}

// Next increments the named counter and returns the new value.
// The row lock is held until the enclosing transaction ends.
func (r *SequenceRepository) Next(ctx context.Context, name string) (int64, error) {
	var value int64
	err := r.db.executor(ctx).QueryRow(ctx,
		`UPDATE counters SET value = value + 1 WHERE name = $1 RETURNING value`, name,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("unknown counter %q", name)
	}
	if err != nil {
		r.logger.Error("Failed to advance counter", zap.String("counter", name), zap.Error(err))
		return 0, fmt.Errorf("failed to advance counter: %w", err)
	}
	return value, nil
}

// WorkflowRepository implements port.WorkflowRepository
type WorkflowRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewWorkflowRepository creates a new workflow repository
func NewWorkflowRepository(db *DB, logger *zap.Logger) port.WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

// Create stores a new workflow
func (r *WorkflowRepository) Create(ctx context.Context, wf *entity.Workflow) error {
	_, err := r.db.executor(ctx).Exec(ctx, `
		INSERT INTO workflows (id, name, current_state, creator, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		wf.ID, wf.Name, string(wf.CurrentState), string(wf.Creator), wf.CreatedAt, wf.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create workflow", zap.Int64("id", wf.ID), zap.Error(err))
		return fmt.Errorf("failed to create workflow: %w", err)
	}
	return nil
}

// GetByID retrieves a workflow by ID
func (r *WorkflowRepository) GetByID(ctx context.Context, id int64) (*entity.Workflow, error) {
	return r.get(ctx, `SELECT id, name, current_state, creator, created_at, updated_at FROM workflows WHERE id = $1`, id)
}

// GetForUpdate retrieves a workflow and row-locks it for the transaction
func (r *WorkflowRepository) GetForUpdate(ctx context.Context, id int64) (*entity.Workflow, error) {
	return r.get(ctx, `SELECT id, name, current_state, creator, created_at, updated_at FROM workflows WHERE id = $1 FOR UPDATE`, id)
}

func (r *WorkflowRepository) get(ctx context.Context, query string, id int64) (*entity.Workflow, error) {
	var wf entity.Workflow
	var state, creator string

	err := r.db.executor(ctx).QueryRow(ctx, query, id).Scan(
		&wf.ID, &wf.Name, &state, &creator, &wf.CreatedAt, &wf.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
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
	tag, err := r.db.executor(ctx).Exec(ctx,
		`UPDATE workflows SET current_state = $1, updated_at = $2 WHERE id = $3`,
		string(state), time.Now().UTC(), id,
	)
	if err != nil {
		r.logger.Error("Failed to update workflow state", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to update workflow state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: workflow %d", workflow.ErrNotFound, id)
	}
	return nil
}

// TransitionRuleRepository implements port.TransitionRuleRepository
type TransitionRuleRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewTransitionRuleRepository creates a new transition rule repository
func NewTransitionRuleRepository(db *DB, logger *zap.Logger) port.TransitionRuleRepository {
	return &TransitionRuleRepository{db: db, logger: logger}
}

// Upsert replaces the rule for (WorkflowID, SourceState) wholesale
func (r *TransitionRuleRepository) Upsert(ctx context.Context, rule *entity.TransitionRule) error {
	_, err := r.db.executor(ctx).Exec(ctx, `
		INSERT INTO transition_rules (workflow_id, source_state, destinations, approvers, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (workflow_id, source_state) DO UPDATE SET
			destinations = EXCLUDED.destinations,
			approvers = EXCLUDED.approvers,
			updated_at = EXCLUDED.updated_at`,
		rule.WorkflowID,
		string(rule.SourceState),
		workflow.Strings(rule.Destinations),
		workflow.Strings(rule.Approvers),
		rule.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to upsert transition rule",
			zap.Int64("workflow_id", rule.WorkflowID),
			zap.String("source_state", rule.SourceState.String()),
			zap.Error(err))
		return fmt.Errorf("failed to upsert transition rule: %w", err)
	}
	return nil
}

// Get retrieves the rule for a source state, nil when none is defined
func (r *TransitionRuleRepository) Get(ctx context.Context, workflowID int64, source workflow.State) (*entity.TransitionRule, error) {
	row := r.db.executor(ctx).QueryRow(ctx, `
		SELECT workflow_id, source_state, destinations, approvers, updated_at
		FROM transition_rules
		WHERE workflow_id = $1 AND source_state = $2`,
		workflowID, string(source),
	)
	rule, err := scanRule(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get transition rule",
			zap.Int64("workflow_id", workflowID),
			zap.String("source_state", source.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get transition rule: %w", err)
	}
	return rule, nil
}

// ListByWorkflow returns every rule of a workflow ordered by source state
func (r *TransitionRuleRepository) ListByWorkflow(ctx context.Context, workflowID int64) ([]*entity.TransitionRule, error) {
	rows, err := r.db.executor(ctx).Query(ctx, `
		SELECT workflow_id, source_state, destinations, approvers, updated_at
		FROM transition_rules
		WHERE workflow_id = $1
		ORDER BY source_state COLLATE "C"`,
		workflowID,
	)
	if err != nil {
		r.logger.Error("Failed to list transition rules", zap.Int64("workflow_id", workflowID), zap.Error(err))
		return nil, fmt.Errorf("failed to list transition rules: %w", err)
	}
	defer rows.Close()

	var rules []*entity.TransitionRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transition rule: %w", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transition rules: %w", err)
	}
	return rules, nil
}

func scanRule(row pgx.Row) (*entity.TransitionRule, error) {
	var rule entity.TransitionRule
	var source string
	var dests, approvers []string

	if err := row.Scan(&rule.WorkflowID, &source, &dests, &approvers, &rule.UpdatedAt); err != nil {
		return nil, err
	}
	rule.SourceState = workflow.State(source)
	rule.Destinations = workflow.ParseStates(dests)
	rule.Approvers = workflow.ParseIdentities(approvers)
	return &rule, nil
}

// TemplateRepository implements port.TemplateRepository
type TemplateRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewTemplateRepository creates a new template repository
func NewTemplateRepository(db *DB, logger *zap.Logger) port.TemplateRepository {
	return &TemplateRepository{db: db, logger: logger}
}

// Create stores a template and its state definitions in declaration order
func (r *TemplateRepository) Create(ctx context.Context, tpl *entity.Template) error {
	return r.db.WithTransaction(ctx, func(ctx context.Context) error {
		exec := r.db.executor(ctx)

		_, err := exec.Exec(ctx,
			`INSERT INTO templates (id, name, initial_state, created_at) VALUES ($1, $2, $3, $4)`,
			tpl.ID, tpl.Name, string(tpl.InitialState), tpl.CreatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to create template", zap.Int64("id", tpl.ID), zap.Error(err))
			return fmt.Errorf("failed to create template: %w", err)
		}

		for i, def := range tpl.States {
			_, err := exec.Exec(ctx, `
				INSERT INTO template_states (template_id, position, state, destinations, approvers)
				VALUES ($1, $2, $3, $4, $5)`,
				tpl.ID, i, string(def.State),
				workflow.Strings(def.Destinations),
				workflow.Strings(def.Approvers),
			)
			if err != nil {
				r.logger.Error("Failed to create template state",
					zap.Int64("template_id", tpl.ID), zap.Int("position", i), zap.Error(err))
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

	err := exec.QueryRow(ctx,
		`SELECT id, name, initial_state, created_at FROM templates WHERE id = $1`, id,
	).Scan(&tpl.ID, &tpl.Name, &initial, &tpl.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get template by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	tpl.InitialState = workflow.State(initial)

	rows, err := exec.Query(ctx,
		`SELECT state, destinations, approvers FROM template_states WHERE template_id = $1 ORDER BY position`, id,
	)
	if err != nil {
		r.logger.Error("Failed to get template states", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get template states: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var state string
		var dests, approvers []string
		if err := rows.Scan(&state, &dests, &approvers); err != nil {
			return nil, fmt.Errorf("failed to scan template state: %w", err)
		}
		tpl.States = append(tpl.States, workflow.Definition{
			State: workflow.State(state),
			Rule: workflow.Rule{
				Destinations: workflow.ParseStates(dests),
				Approvers:    workflow.ParseIdentities(approvers),
			},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate template states: %w", err)
	}

	return &tpl, nil
}
