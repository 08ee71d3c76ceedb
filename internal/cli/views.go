package cli

import (
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/garyjia/flow-forge/internal/domain/entity"
	"github.com/garyjia/flow-forge/internal/domain/workflow"
)

type workflowView struct {
	ID           int64  `yaml:"id"`
	Name         string `yaml:"name"`
	CurrentState string `yaml:"current_state"`
	Creator      string `yaml:"creator"`
	CreatedAt    string `yaml:"created_at"`
	UpdatedAt    string `yaml:"updated_at"`
}

type ruleView struct {
	State        string   `yaml:"state"`
	Destinations []string `yaml:"destinations,flow"`
	Approvers    []string `yaml:"approvers,flow"`
}

type templateView struct {
	ID           int64      `yaml:"id"`
	Name         string     `yaml:"name"`
	InitialState string     `yaml:"initial_state"`
	CreatedAt    string     `yaml:"created_at"`
	States       []ruleView `yaml:"states"`
}

func newWorkflowView(wf *entity.Workflow) workflowView {
	return workflowView{
		ID:           wf.ID,
		Name:         wf.Name,
		CurrentState: wf.CurrentState.String(),
		Creator:      wf.Creator.String(),
		CreatedAt:    wf.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    wf.UpdatedAt.Format(time.RFC3339),
	}
}

func newRuleView(source workflow.State, rule workflow.Rule) ruleView {
	return ruleView{
		State:        source.String(),
		Destinations: workflow.Strings(rule.Destinations),
		Approvers:    workflow.Strings(rule.Approvers),
	}
}

func newTemplateView(tpl *entity.Template) templateView {
	v := templateView{
		ID:           tpl.ID,
		Name:         tpl.Name,
		InitialState: tpl.InitialState.String(),
		CreatedAt:    tpl.CreatedAt.Format(time.RFC3339),
		States:       make([]ruleView, 0, len(tpl.States)),
	}
	for _, def := range tpl.States {
		v.States = append(v.States, newRuleView(def.State, def.Rule))
	}
	return v
}

func writeYAML(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func joinStates(states []workflow.State) string {
	if len(states) == 0 {
		return "-"
	}
	names := make([]string, len(states))
	for i, s := range states {
		names[i] = s.String()
	}
	return strings.Join(names, ", ")
}
