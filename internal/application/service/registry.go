package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/flow-forge/internal/application/dispatcher"
	"github.com/garyjia/flow-forge/internal/application/port"
	"github.com/garyjia/flow-forge/internal/domain/entity"
	"github.com/garyjia/flow-forge/internal/domain/event"
	"github.com/garyjia/flow-forge/internal/domain/workflow"
)

// registry holds the workflow registry and rule table operations shared by
// the workflow and template services. Its methods expect to run inside a
// transaction opened by the caller.
type registry struct {
	workflows port.WorkflowRepository
	rules     port.TransitionRuleRepository
	sequences port.SequenceRepository
	txManager port.TransactionManager
	events    dispatcher.Dispatcher
	logger    Logger
	now       func() time.Time
}

func (r *registry) createWorkflow(ctx context.Context, caller workflow.Identity, name string, initial workflow.State) (*entity.Workflow, error) {
	id, err := r.sequences.Next(ctx, port.CounterWorkflow)
	if err != nil {
		return nil, fmt.Errorf("allocate workflow id: %w", err)
	}

	now := r.now()
	wf := &entity.Workflow{
		ID:           id,
		Name:         name,
		CurrentState: initial,
		Creator:      caller,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := r.workflows.Create(ctx, wf); err != nil {
		return nil, fmt.Errorf("create workflow: %w", err)
	}
	return wf, nil
}

// lockWorkflow loads a workflow for update and maps absence to ErrNotFound
func (r *registry) lockWorkflow(ctx context.Context, id int64) (*entity.Workflow, error) {
	wf, err := r.workflows.GetForUpdate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get workflow: %w", err)
	}
	if wf == nil {
		return nil, fmt.Errorf("%w: workflow %d", workflow.ErrNotFound, id)
	}
	return wf, nil
}

func (r *registry) defineTransitions(ctx context.Context, caller workflow.Identity, id int64, source workflow.State, destinations []workflow.State, approvers []workflow.Identity) (*entity.TransitionRule, error) {
	wf, err := r.lockWorkflow(ctx, id)
	if err != nil {
		return nil, err
	}
	if wf.Creator != caller {
		return nil, fmt.Errorf("%w: only the creator of workflow %d may define transitions", workflow.ErrUnauthorized, id)
	}

	rule := &entity.TransitionRule{
		WorkflowID:  id,
		SourceState: source,
		Rule:        workflow.NewRule(destinations, approvers),
		UpdatedAt:   r.now(),
	}
	if err := r.rules.Upsert(ctx, rule); err != nil {
		return nil, fmt.Errorf("store transition rule: %w", err)
	}
	return rule, nil
}

// publish hands a committed event to the dispatcher, if one is configured
func (r *registry) publish(ctx context.Context, evt *event.Event) {
	if r.events == nil {
		return
	}
	r.events.DispatchAsync(ctx, evt)
}

// logFailure logs engine rejections at info level and everything else as an error
func (r *registry) logFailure(msg string, err error, keysAndValues ...interface{}) {
	if code, ok := workflow.CodeOf(err); ok {
		r.logger.Info(msg+" rejected", append(keysAndValues, "code", code, "reason", err.Error())...)
		return
	}
	if errors.Is(err, context.Canceled) {
		r.logger.Info(msg+" cancelled", keysAndValues...)
		return
	}
	r.logger.Error(msg+" failed", append(keysAndValues, "error", err)...)
}

func defaultNow() time.Time {
	return time.Now().UTC()
}
