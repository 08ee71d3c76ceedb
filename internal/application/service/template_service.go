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

// TemplateService manages templates and stamps workflows out of them
type TemplateService interface {
	CreateTemplate(ctx context.Context, name string, initial workflow.State, states []workflow.Definition) (int64, error)
	GetTemplate(ctx context.Context, id int64) (*entity.Template, error)
	CreateWorkflowFromTemplate(ctx context.Context, caller workflow.Identity, name string, templateID int64) (int64, error)
}

type templateServiceImpl struct {
	*registry
	templates port.TemplateRepository
}

// NewTemplateService creates a new TemplateService. events may be nil.
func NewTemplateService(
	templateRepo port.TemplateRepository,
	workflowRepo port.WorkflowRepository,
	ruleRepo port.TransitionRuleRepository,
	sequenceRepo port.SequenceRepository,
	txManager port.TransactionManager,
	events dispatcher.Dispatcher,
	logger Logger,
) TemplateService {
	return &templateServiceImpl{
		registry: &registry{
			workflows: workflowRepo,
			rules:     ruleRepo,
			sequences: sequenceRepo,
			txManager: txManager,
			events:    events,
			logger:    logger,
			now:       defaultNow,
		},
		templates: templateRepo,
	}
}

// CreateTemplate stores a new template with its definitions as given.
// Duplicate destinations or approvers are collapsed when a workflow is
// instantiated from it. The initial state is not required to have a
// definition of its own; such templates produce workflows that start in a
// dead end.
func (s *templateServiceImpl) CreateTemplate(ctx context.Context, name string, initial workflow.State, states []workflow.Definition) (int64, error) {
	tpl := &entity.Template{
		Name:         name,
		InitialState: initial,
		States:       make([]workflow.Definition, 0, len(states)),
		CreatedAt:    s.now(),
	}
	hasInitial := false
	for _, def := range states {
		tpl.States = append(tpl.States, workflow.Definition{
			State: def.State,
			Rule: workflow.Rule{
				Destinations: append([]workflow.State{}, def.Destinations...),
				Approvers:    append([]workflow.Identity{}, def.Approvers...),
			},
		})
		hasInitial = hasInitial || def.State == initial
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		id, err := s.sequences.Next(txCtx, port.CounterTemplate)
		if err != nil {
			return fmt.Errorf("allocate template id: %w", err)
		}
		tpl.ID = id
		if err := s.templates.Create(txCtx, tpl); err != nil {
			return fmt.Errorf("create template: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logFailure("Create template", err, "name", name)
		return 0, err
	}

	if !hasInitial {
		s.logger.Info("Template initial state has no outgoing rule", "template_id", tpl.ID, "initial_state", initial)
	}
	s.logger.Info("Template created", "id", tpl.ID, "name", name, "states", len(tpl.States))
	s.publish(ctx, event.NewEvent(event.TypeTemplateCreated, 0, map[string]interface{}{
		event.KeyTemplateID: tpl.ID,
		event.KeyName:       name,
	}))
	return tpl.ID, nil
}

// GetTemplate retrieves a template by ID
func (s *templateServiceImpl) GetTemplate(ctx context.Context, id int64) (*entity.Template, error) {
	tpl, err := s.templates.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get template", "id", id, "error", err)
		return nil, fmt.Errorf("get template: %w", err)
	}
	if tpl == nil {
		return nil, fmt.Errorf("%w: template %d", workflow.ErrNotFound, id)
	}
	return tpl, nil
}

// CreateWorkflowFromTemplate creates a workflow in the template's initial
// state and copies every template rule onto it. Either all of it commits
// or none of it does.
func (s *templateServiceImpl) CreateWorkflowFromTemplate(ctx context.Context, caller workflow.Identity, name string, templateID int64) (int64, error) {
	var (
		wf  *entity.Workflow
		tpl *entity.Template
	)
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		tpl, err = s.templates.GetByID(txCtx, templateID)
		if err != nil {
			return fmt.Errorf("get template: %w", err)
		}
		if tpl == nil {
			return fmt.Errorf("%w: template %d", workflow.ErrNotFound, templateID)
		}

		wf, err = s.createWorkflow(txCtx, caller, name, tpl.InitialState)
		if err != nil {
			return err
		}

		// The caller created wf above, so the creator check always passes.
		for _, def := range tpl.States {
			if _, err := s.defineTransitions(txCtx, caller, wf.ID, def.State, def.Destinations, def.Approvers); err != nil {
				return fmt.Errorf("copy rule for state %s: %w", def.State, err)
			}
		}
		return nil
	})
	if err != nil {
		s.logFailure("Create workflow from template", err, "template_id", templateID, "name", name, "caller", caller)
		return 0, err
	}

	s.logger.Info("Workflow created from template",
		"id", wf.ID,
		"template_id", templateID,
		"initial_state", tpl.InitialState,
		"rules", len(tpl.States),
	)
	s.publish(ctx, event.NewEvent(event.TypeWorkflowCreated, wf.ID, map[string]interface{}{
		event.KeyName:       name,
		event.KeyState:      tpl.InitialState,
		event.KeyCaller:     caller,
		event.KeyTemplateID: templateID,
	}))
	return wf.ID, nil
}
