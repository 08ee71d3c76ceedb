package port

import (
	"context"

	"github.com/garyjia/flow-forge/internal/domain/entity"
	"github.com/garyjia/flow-forge/internal/domain/workflow"
)

// Counter names for the independent ID spaces
const (
	CounterWorkflow = "workflow"
	CounterTemplate = "template"
)

// SequenceRepository owns the stored ID counters. Next increments and reads
// a counter in one statement, inside the caller's transaction.
type SequenceRepository interface {
	Next(ctx context.Context, name string) (int64, error)
}

// WorkflowRepository defines persistence operations for Workflow.
// Getters return nil, nil when the workflow does not exist.
type WorkflowRepository interface {
	// Create stores a workflow whose ID has already been allocated
	Create(ctx context.Context, wf *entity.Workflow) error

	// GetByID retrieves a workflow by its ID
	GetByID(ctx context.Context, id int64) (*entity.Workflow, error)

	// GetForUpdate retrieves a workflow and locks it until the transaction ends
	GetForUpdate(ctx context.Context, id int64) (*entity.Workflow, error)

	// UpdateState sets the current state
	UpdateState(ctx context.Context, id int64, state workflow.State) error
}

// TransitionRuleRepository defines persistence operations for TransitionRule
type TransitionRuleRepository interface {
	// Upsert replaces the rule for (WorkflowID, SourceState)
	Upsert(ctx context.Context, rule *entity.TransitionRule) error

	// Get returns nil, nil when no rule is defined for the pair
	Get(ctx context.Context, workflowID int64, source workflow.State) (*entity.TransitionRule, error)

	// ListByWorkflow returns every rule of a workflow ordered by source state
	ListByWorkflow(ctx context.Context, workflowID int64) ([]*entity.TransitionRule, error)
}

// TemplateRepository defines persistence operations for Template
type TemplateRepository interface {
	// Create stores a template whose ID has already been allocated
	Create(ctx context.Context, tpl *entity.Template) error

	// GetByID returns nil, nil when the template does not exist
	GetByID(ctx context.Context, id int64) (*entity.Template, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
