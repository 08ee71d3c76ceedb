package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/flow-forge/internal/domain/workflow"
)

func TestParseTemplateYAML(t *testing.T) {
	tf, err := ParseTemplateYAML([]byte(expenseTemplate))
	require.NoError(t, err)

	assert.Equal(t, "expense", tf.Name)
	assert.Equal(t, "DRAFT", tf.InitialState)

	defs := tf.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, workflow.State("DRAFT"), defs[0].State)
	assert.Equal(t, []workflow.State{"PENDING", "CANCELLED"}, defs[0].Destinations)
	assert.Equal(t, []workflow.Identity{"bob"}, defs[1].Approvers)
}

func TestParseTemplateYAML_Rejects(t *testing.T) {
	tooMany := "name: big\ninitial_state: S0\nstates:\n"
	for i := 0; i < 21; i++ {
		tooMany += "  - state: S" + strings.Repeat("X", i) + "\n"
	}

	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"empty file", "  \n", "file is empty"},
		{"unknown field", "name: x\ninitial_state: A\nowner: bob\n", "field owner not found"},
		{"missing name", "initial_state: A\n", "name is required"},
		{"missing initial state", "name: x\n", "initial_state is required"},
		{"state not ascii", "name: x\ninitial_state: A\nstates:\n  - state: \"É\"\n", "printable ASCII"},
		{"too many states", tooMany, "at most 20 allowed"},
		{"empty destination", "name: x\ninitial_state: A\nstates:\n  - state: A\n    destinations: [\"\"]\n", "states[0].destinations[0] is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTemplateYAML([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestTemplateFile_Lint(t *testing.T) {
	tf := &TemplateFile{
		Name:         "review",
		InitialState: "DRAFT",
		States: []StateFileItem{
			{State: "DRAFT", Destinations: []string{"REVIEW"}, Approvers: []string{"alice"}},
			{State: "REVIEW", Destinations: []string{"DONE"}},
			{State: "DRAFT", Destinations: []string{"REVIEW"}, Approvers: []string{"bob"}},
			{State: "ARCHIVE", Destinations: []string{"DRAFT"}, Approvers: []string{"bob"}},
		},
	}

	report := tf.Lint()

	assert.Equal(t, []workflow.State{"DRAFT", "REVIEW", "DONE"}, report.Reachable)
	assert.Equal(t, []workflow.State{"DONE"}, report.DeadEnds)
	assert.Equal(t, []workflow.State{"DRAFT"}, report.Duplicates)
	assert.Equal(t, []workflow.State{"ARCHIVE"}, report.Unreachable)
	require.Len(t, report.Warnings, 3)
	assert.Contains(t, report.Warnings[0], "declared more than once")
	assert.Contains(t, report.Warnings[1], "ARCHIVE is declared but unreachable")
	assert.Contains(t, report.Warnings[2], "REVIEW has destinations but no approvers")
}
