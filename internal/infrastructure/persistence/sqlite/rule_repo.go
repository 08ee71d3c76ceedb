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

// TransitionRuleRepository implements port.TransitionRuleRepository
type TransitionRuleRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewTransitionRuleRepository creates a new transition rule repository
func NewTransitionRuleRepository(db *DB, logger *zap.Logger) port.TransitionRuleRepository {
	return &TransitionRuleRepository{
		db:     db,
		logger: logger,
	}
}

// Upsert replaces the rule for (WorkflowID, SourceState) wholesale
func (r *TransitionRuleRepository) Upsert(ctx context.Context, rule *entity.TransitionRule) error {
	query := `
		INSERT INTO transition_rules (workflow_id, source_state, destinations, approvers, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (workflow_id, source_state) DO UPDATE SET
			destinations = excluded.destinations,
			approvers = excluded.approvers,
			updated_at = excluded.updated_at
	`

	dests, approvers, err := encodeRule(rule.Rule)
	if err != nil {
		return err
	}

	_, err = r.db.executor(ctx).ExecContext(ctx, query,
		rule.WorkflowID,
		string(rule.SourceState),
		dests,
		approvers,
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
	query := `
		SELECT workflow_id, source_state, destinations, approvers, updated_at
		FROM transition_rules
		WHERE workflow_id = ? AND source_state = ?
	`

	row := r.db.executor(ctx).QueryRowContext(ctx, query, workflowID, string(source))
	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
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
	query := `
		SELECT workflow_id, source_state, destinations, approvers, updated_at
		FROM transition_rules
		WHERE workflow_id = ?
		ORDER BY source_state
	`

	rows, err := r.db.executor(ctx).QueryContext(ctx, query, workflowID)
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

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRule(s scanner) (*entity.TransitionRule, error) {
	var rule entity.TransitionRule
	var source, dests, approvers string

	if err := s.Scan(&rule.WorkflowID, &source, &dests, &approvers, &rule.UpdatedAt); err != nil {
		return nil, err
	}

	decoded, err := decodeRule(dests, approvers)
	if err != nil {
		return nil, err
	}
	rule.SourceState = workflow.State(source)
	rule.Rule = decoded
	return &rule, nil
}
