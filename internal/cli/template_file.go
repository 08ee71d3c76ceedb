package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/garyjia/flow-forge/internal/domain/entity"
	"github.com/garyjia/flow-forge/internal/domain/workflow"
	"github.com/garyjia/flow-forge/pkg/utils"
)

// TemplateFile is the on-disk form of a template:
//
//	name: expense
//	initial_state: DRAFT
//	states:
//	  - state: DRAFT
//	    destinations: [PENDING]
//	    approvers: [alice]
type TemplateFile struct {
	Name         string          `yaml:"name"`
	InitialState string          `yaml:"initial_state"`
	States       []StateFileItem `yaml:"states"`
}

// StateFileItem is one state definition of a TemplateFile
type StateFileItem struct {
	State        string   `yaml:"state"`
	Destinations []string `yaml:"destinations"`
	Approvers    []string `yaml:"approvers"`
}

// ParseTemplateYAML decodes and bounds-checks a template file
func ParseTemplateYAML(data []byte) (*TemplateFile, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("template: file is empty")
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var tf TemplateFile
	if err := dec.Decode(&tf); err != nil && err != io.EOF {
		return nil, fmt.Errorf("template: decode: %w", err)
	}
	if err := tf.Validate(); err != nil {
		return nil, err
	}
	return &tf, nil
}

// LoadTemplateFile reads a template file from path
func LoadTemplateFile(path string) (*TemplateFile, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("template: read %s: %w", path, err)
	}
	tf, err := ParseTemplateYAML(content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tf, nil
}

// Validate applies the name, token and list bounds
func (tf *TemplateFile) Validate() error {
	if err := utils.ValidateToken("name", tf.Name, entity.MaxNameLength); err != nil {
		return err
	}
	if err := utils.ValidateToken("initial_state", tf.InitialState, workflow.MaxStateLength); err != nil {
		return err
	}
	if len(tf.States) > entity.MaxStateDefinitions {
		return fmt.Errorf("states has %d entries, at most %d allowed", len(tf.States), entity.MaxStateDefinitions)
	}
	for i, s := range tf.States {
		if err := validateRuleInput(fmt.Sprintf("states[%d]", i), s.State, s.Destinations, s.Approvers); err != nil {
			return err
		}
	}
	return nil
}

// Definitions converts the file's states in declaration order
func (tf *TemplateFile) Definitions() []workflow.Definition {
	defs := make([]workflow.Definition, 0, len(tf.States))
	for _, s := range tf.States {
		defs = append(defs, workflow.Definition{
			State: workflow.State(s.State),
			Rule:  workflow.NewRule(workflow.ParseStates(s.Destinations), workflow.ParseIdentities(s.Approvers)),
		})
	}
	return defs
}

// LintReport summarizes the state graph of a template
type LintReport struct {
	Reachable   []workflow.State
	DeadEnds    []workflow.State
	Unreachable []workflow.State
	Duplicates  []workflow.State
	Warnings    []string
}

// Lint walks the graph from the initial state. Findings are warnings only;
// every one of them still describes a template that can be created.
func (tf *TemplateFile) Lint() LintReport {
	defs := tf.Definitions()
	initial := workflow.State(tf.InitialState)

	var report LintReport
	report.Reachable, report.DeadEnds = workflow.Reachable(initial, defs)

	reachable := make(map[workflow.State]bool, len(report.Reachable))
	for _, s := range report.Reachable {
		reachable[s] = true
	}

	seen := make(map[workflow.State]bool, len(defs))
	hasInitial := false
	for _, d := range defs {
		if seen[d.State] {
			report.Duplicates = append(report.Duplicates, d.State)
		} else if !reachable[d.State] {
			report.Unreachable = append(report.Unreachable, d.State)
		}
		seen[d.State] = true
		hasInitial = hasInitial || d.State == initial
	}

	if !hasInitial {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("initial state %s has no outgoing rule; workflows start in a dead end", initial))
	}
	for _, s := range report.Duplicates {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("state %s is declared more than once; the last declaration wins", s))
	}
	for _, s := range report.Unreachable {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("state %s is declared but unreachable from %s", s, initial))
	}
	for _, d := range defs {
		if len(d.Approvers) == 0 && len(d.Destinations) > 0 {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("state %s has destinations but no approvers; nobody can leave it", d.State))
		}
	}
	return report
}

func validateRuleInput(field, state string, destinations, approvers []string) error {
	if err := utils.ValidateToken(field+".state", state, workflow.MaxStateLength); err != nil {
		return err
	}
	if err := utils.ValidateTokens(field+".destinations", destinations, entity.MaxRuleEntries, workflow.MaxStateLength); err != nil {
		return err
	}
	return utils.ValidateTokens(field+".approvers", approvers, entity.MaxRuleEntries, workflow.MaxIdentityLength)
}
