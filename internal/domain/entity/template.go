package entity

import (
	"time"

	"github.com/garyjia/flow-forge/internal/domain/workflow"
)

// MaxStateDefinitions bounds the number of source states a template declares
const MaxStateDefinitions = 20

// MaxRuleEntries bounds destinations and approvers per rule
const MaxRuleEntries = 10

// Template is an immutable blueprint workflows are stamped from.
// States keeps declaration order.
type Template struct {
	ID           int64                 `json:"id"`
	Name         string                `json:"name"`
	InitialState workflow.State        `json:"initial_state"`
	States       []workflow.Definition `json:"states"`
	CreatedAt    time.Time             `json:"created_at"`
}
