package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/garyjia/flow-forge/internal/infrastructure/export"
)

func newExportCommand(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export workflows and templates to .xlsx workbooks",
	}
	cmd.PersistentFlags().StringVarP(&output, "output", "o", "", "output .xlsx path")
	_ = cmd.MarkPersistentFlagRequired("output")

	cmd.AddCommand(
		withStore(&cobra.Command{
			Use:   "workflow <id>",
			Short: "Export a workflow and its rule table",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				svc := a.container.Services().Workflow
				wf, err := svc.GetWorkflow(cmd.Context(), id)
				if err != nil {
					return err
				}
				rules, err := svc.ListTransitionRules(cmd.Context(), id)
				if err != nil {
					return err
				}
				if err := export.NewWorkbookWriter(a.logger).WriteWorkflow(wf, rules, output); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
				return nil
			},
		}),
		withStore(&cobra.Command{
			Use:   "template <id>",
			Short: "Export a template and its state definitions",
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
				if err := export.NewWorkbookWriter(a.logger).WriteTemplate(tpl, output); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
				return nil
			},
		}),
	)
	return cmd
}
