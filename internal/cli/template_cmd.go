package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/garyjia/flow-forge/internal/domain/entity"
	"github.com/garyjia/flow-forge/internal/domain/workflow"
	"github.com/garyjia/flow-forge/pkg/utils"
)

func newTemplateCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "template",
		Aliases: []string{"tpl"},
		Short:   "Manage workflow templates",
	}

	cmd.AddCommand(
		newTemplateCreateCommand(a),
		withStore(&cobra.Command{
			Use:   "show <id>",
			Short: "Show a template",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				tpl, err := a.container.Services().Template.GetTemplate(cmd.Context(), id)
				if err != nil {
					return err
				}
				return writeYAML(cmd.OutOrStdout(), newTemplateView(tpl))
			},
		}),
		withStore(&cobra.Command{
			Use:   "instantiate <id> <workflow-name>",
			Short: "Create a workflow from a template, owned by the caller",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				caller, err := a.callerIdentity()
				if err != nil {
					return err
				}
				templateID, err := parseID(args[0])
				if err != nil {
					return err
				}
				if err := utils.ValidateToken("name", args[1], entity.MaxNameLength); err != nil {
					return err
				}

				id, err := a.container.Services().Template.CreateWorkflowFromTemplate(cmd.Context(), caller, args[1], templateID)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			},
		}),
		newTemplateLintCommand(),
	)
	return cmd
}

func newTemplateCreateCommand(a *app) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "create -f <file.yaml>",
		Short: "Create a template from a YAML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tf, err := LoadTemplateFile(file)
			if err != nil {
				return err
			}

			report := tf.Lint()
			for _, w := range report.Warnings {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning:", w)
			}

			id, err := a.container.Services().Template.CreateTemplate(cmd.Context(), tf.Name, workflow.State(tf.InitialState), tf.Definitions())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "template YAML file")
	_ = cmd.MarkFlagRequired("file")
	return withStore(cmd)
}

func newTemplateLintCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "lint -f <file.yaml>",
		Short: "Check a template file's state graph without storing it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tf, err := LoadTemplateFile(file)
			if err != nil {
				return err
			}

			report := tf.Lint()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "reachable: %s\n", joinStates(report.Reachable))
			fmt.Fprintf(out, "dead ends: %s\n", joinStates(report.DeadEnds))
			for _, w := range report.Warnings {
				fmt.Fprintln(out, "warning:", w)
			}
			if len(report.Warnings) == 0 {
				fmt.Fprintln(out, "ok")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "template YAML file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
