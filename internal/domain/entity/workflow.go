package entity

import (
	"time"

	"github.com/garyjia/flow-forge/internal/domain/workflow"
)

// MaxNameLength bounds workflow and template names
const MaxNameLength = 64

// Workflow is a single tracked instance progressing through caller-defined states
type Workflow struct {
	ID           int64             `json:"id"`
	Name         string            `json:"name"`
	CurrentState workflow.State    `json:"current_state"`
	Creator      workflow.Identity `json:"creator"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// TransitionRule is the rule declared for one (workflow, source state) pair
type TransitionRule struct {
	WorkflowID  int64          `json:"workflow_id"`
	SourceState workflow.State `json:"source_state"`
	workflow.Rule
	UpdatedAt time.Time `json:"updated_at"`
}
