package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/garyjia/flow-forge/internal/domain/entity"
	"github.com/garyjia/flow-forge/internal/domain/workflow"
	"github.com/garyjia/flow-forge/pkg/utils"
)

func newWorkflowCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "workflow",
		Aliases: []string{"wf"},
		Short:   "Create, inspect and transition workflows",
	}

	cmd.AddCommand(
		withStore(&cobra.Command{
			Use:   "create <name> <initial-state>",
			Short: "Create a workflow owned by the caller",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				caller, err := a.callerIdentity()
				if err != nil {
					return err
				}
				if err := utils.ValidateToken("name", args[0], entity.MaxNameLength); err != nil {
					return err
				}
				if err := utils.ValidateToken("initial state", args[1], workflow.MaxStateLength); err != nil {
					return err
				}

				id, err := a.container.Services().Workflow.CreateWorkflow(cmd.Context(), caller, args[0], workflow.State(args[1]))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			},
		}),
		withStore(&cobra.Command{
			Use:   "show <id>",
			Short: "Show a workflow",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				wf, err := a.container.Services().Workflow.GetWorkflow(cmd.Context(), id)
				if err != nil {
					return err
				}
				return writeYAML(cmd.OutOrStdout(), newWorkflowView(wf))
			},
		}),
		withStore(&cobra.Command{
			Use:   "state <id>",
			Short: "Print the current state of a workflow",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				state, err := a.container.Services().Workflow.GetWorkflowState(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), state)
				return nil
			},
		}),
		newDefineCommand(a),
		withStore(&cobra.Command{
			Use:   "transition <id> <state>",
			Short: "Move a workflow to a new state",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				caller, err := a.callerIdentity()
				if err != nil {
					return err
				}
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				if err := utils.ValidateToken("state", args[1], workflow.MaxStateLength); err != nil {
					return err
				}

				to := workflow.State(args[1])
				if err := a.container.Services().Workflow.TransitionWorkflow(cmd.Context(), caller, id, to); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "workflow %d is now %s\n", id, to)
				return nil
			},
		}),
		withStore(&cobra.Command{
			Use:   "rules <id>",
			Short: "List the transition rules of a workflow",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				rules, err := a.container.Services().Workflow.ListTransitionRules(cmd.Context(), id)
				if err != nil {
					return err
				}
				views := make([]ruleView, 0, len(rules))
				for _, r := range rules {
					views = append(views, newRuleView(r.SourceState, r.Rule))
				}
				return writeYAML(cmd.OutOrStdout(), views)
			},
		}),
	)
	return cmd
}

func newDefineCommand(a *app) *cobra.Command {
	var destinations, approvers []string

	cmd := &cobra.Command{
		Use:   "define <id> <source-state>",
		Short: "Replace the transition rule out of a state",
		Long: `Replace the rule for leaving <source-state>. Only the workflow's creator
may do this. Omitting --to makes the state a dead end for its approvers.`,
		Example: `  flowctl --as alice workflow define 1 DRAFT --to PENDING --approver alice
  flowctl --as alice workflow define 1 PENDING --to APPROVED,REJECTED --approver bob`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := a.callerIdentity()
			if err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := validateRuleInput("rule", args[1], destinations, approvers); err != nil {
				return err
			}

			source := workflow.State(args[1])
			svc := a.container.Services().Workflow
			if err := svc.DefineTransitions(cmd.Context(), caller, id, source, workflow.ParseStates(destinations), workflow.ParseIdentities(approvers)); err != nil {
				return err
			}

			stored, err := svc.GetTransitionRule(cmd.Context(), id, source)
			if err != nil {
				return err
			}
			rule := workflow.Rule{}
			if stored != nil {
				rule = stored.Rule
			}
			return writeYAML(cmd.OutOrStdout(), newRuleView(source, rule))
		},
	}

	cmd.Flags().StringSliceVar(&destinations, "to", nil, "permitted destination states")
	cmd.Flags().StringSliceVar(&approvers, "approver", nil, "identities allowed to perform the transition")
	return withStore(cmd)
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}
