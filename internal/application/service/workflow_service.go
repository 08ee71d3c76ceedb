package service

import (
	"context"
	"fmt"

	"github.com/garyjia/flow-forge/internal/application/dispatcher"
	"github.com/garyjia/flow-forge/internal/application/port"
	"github.com/garyjia/flow-forge/internal/domain/entity"
	"github.com/garyjia/flow-forge/internal/domain/event"
	"github.com/garyjia/flow-forge/internal/domain/workflow"
)

// WorkflowService manages workflow instances, their transition rules and
// the transitions themselves. Every mutating call is one transaction.
type WorkflowService interface {
	CreateWorkflow(ctx context.Context, caller workflow.Identity, name string, initial workflow.State) (int64, error)
	GetWorkflow(ctx context.Context, id int64) (*entity.Workflow, error)
	GetWorkflowState(ctx context.Context, id int64) (workflow.State, error)
	DefineTransitions(ctx context.Context, caller workflow.Identity, id int64, source workflow.State, destinations []workflow.State, approvers []workflow.Identity) error
	// GetTransitionRule returns nil, nil when the state is a dead end
	GetTransitionRule(ctx context.Context, id int64, source workflow.State) (*entity.TransitionRule, error)
	ListTransitionRules(ctx context.Context, id int64) ([]*entity.TransitionRule, error)
	TransitionWorkflow(ctx context.Context, caller workflow.Identity, id int64, requested workflow.State) error
}

type workflowServiceImpl struct {
	*registry
}

// NewWorkflowService creates a new WorkflowService. events may be nil.
func NewWorkflowService(
	workflowRepo port.WorkflowRepository,
	ruleRepo port.TransitionRuleRepository,
	sequenceRepo port.SequenceRepository,
	txManager port.TransactionManager,
	events dispatcher.Dispatcher,
	logger Logger,
) WorkflowService {
	return &workflowServiceImpl{
		registry: &registry{
			workflows: workflowRepo,
			rules:     ruleRepo,
			sequences: sequenceRepo,
			txManager: txManager,
			events:    events,
			logger:    logger,
			now:       defaultNow,
		},
	}
}

// CreateWorkflow allocates the next workflow ID and stores the workflow in
// its initial state with the caller as creator
func (s *workflowServiceImpl) CreateWorkflow(ctx context.Context, caller workflow.Identity, name string, initial workflow.State) (int64, error) {
	var wf *entity.Workflow
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		wf, err = s.createWorkflow(txCtx, caller, name, initial)
		return err
	})
	if err != nil {
		s.logFailure("Create workflow", err, "name", name, "caller", caller)
		return 0, err
	}

	s.logger.Info("Workflow created", "id", wf.ID, "name", name, "initial_state", initial, "creator", caller)
	s.publish(ctx, event.NewEvent(event.TypeWorkflowCreated, wf.ID, map[string]interface{}{
		event.KeyName:   name,
		event.KeyState:  initial,
		event.KeyCaller: caller,
	}))
	return wf.ID, nil
}

// GetWorkflow retrieves a workflow by ID
func (s *workflowServiceImpl) GetWorkflow(ctx context.Context, id int64) (*entity.Workflow, error) {
	wf, err := s.workflows.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get workflow", "id", id, "error", err)
		return nil, fmt.Errorf("get workflow: %w", err)
	}
	if wf == nil {
		return nil, fmt.Errorf("%w: workflow %d", workflow.ErrNotFound, id)
	}
	return wf, nil
}

// GetWorkflowState returns the current state of a workflow
func (s *workflowServiceImpl) GetWorkflowState(ctx context.Context, id int64) (workflow.State, error) {
	wf, err := s.GetWorkflow(ctx, id)
	if err != nil {
		return "", err
	}
	return wf.CurrentState, nil
}

// DefineTransitions replaces the rule for (id, source). Only the workflow's
// creator may call it.
func (s *workflowServiceImpl) DefineTransitions(ctx context.Context, caller workflow.Identity, id int64, source workflow.State, destinations []workflow.State, approvers []workflow.Identity) error {
	var rule *entity.TransitionRule
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		rule, err = s.defineTransitions(txCtx, caller, id, source, destinations, approvers)
		return err
	})
	if err != nil {
		s.logFailure("Define transitions", err, "workflow_id", id, "source_state", source, "caller", caller)
		return err
	}

	s.logger.Info("Transitions defined",
		"workflow_id", id,
		"source_state", source,
		"destinations", len(rule.Destinations),
		"approvers", len(rule.Approvers),
	)
	s.publish(ctx, event.NewEvent(event.TypeTransitionsDefined, id, map[string]interface{}{
		event.KeyState:  source,
		event.KeyCaller: caller,
	}))
	return nil
}

// GetTransitionRule looks up the rule for (id, source)
func (s *workflowServiceImpl) GetTransitionRule(ctx context.Context, id int64, source workflow.State) (*entity.TransitionRule, error) {
	if _, err := s.GetWorkflow(ctx, id); err != nil {
		return nil, err
	}
	rule, err := s.rules.Get(ctx, id, source)
	if err != nil {
		s.logger.Error("Failed to get transition rule", "workflow_id", id, "source_state", source, "error", err)
		return nil, fmt.Errorf("get transition rule: %w", err)
	}
	return rule, nil
}

// ListTransitionRules returns all rules declared for a workflow
func (s *workflowServiceImpl) ListTransitionRules(ctx context.Context, id int64) ([]*entity.TransitionRule, error) {
	if _, err := s.GetWorkflow(ctx, id); err != nil {
		return nil, err
	}
	rules, err := s.rules.ListByWorkflow(ctx, id)
	if err != nil {
		s.logger.Error("Failed to list transition rules", "workflow_id", id, "error", err)
		return nil, fmt.Errorf("list transition rules: %w", err)
	}
	return rules, nil
}

// TransitionWorkflow moves a workflow to the requested state. The workflow
// is locked, validated against the rule for its current state and updated
// in one transaction.
func (s *workflowServiceImpl) TransitionWorkflow(ctx context.Context, caller workflow.Identity, id int64, requested workflow.State) error {
	var from workflow.State
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		wf, err := s.lockWorkflow(txCtx, id)
		if err != nil {
			return err
		}

		stored, err := s.rules.Get(txCtx, id, wf.CurrentState)
		if err != nil {
			return fmt.Errorf("get transition rule: %w", err)
		}
		var defs []workflow.Definition
		if stored != nil {
			defs = append(defs, workflow.Definition{State: stored.SourceState, Rule: stored.Rule})
		}
		if err := workflow.NewMachine(wf.CurrentState, defs).Fire(requested, caller); err != nil {
			return err
		}

		from = wf.CurrentState
		if err := s.workflows.UpdateState(txCtx, id, requested); err != nil {
			return fmt.Errorf("update workflow state: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logFailure("Transition", err, "workflow_id", id, "requested_state", requested, "caller", caller)
		return err
	}

	s.logger.Info("Workflow transitioned", "workflow_id", id, "from", from, "to", requested, "caller", caller)
	s.publish(ctx, event.NewEvent(event.TypeWorkflowTransitioned, id, map[string]interface{}{
		event.KeyFromState: from,
		event.KeyToState:   requested,
		event.KeyCaller:    caller,
	}))
	return nil
}
