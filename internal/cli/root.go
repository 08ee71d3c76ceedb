// Package cli implements flowctl, a command line client that drives the
// workflow and template services directly against the configured database.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/flow-forge/internal/config"
	"github.com/garyjia/flow-forge/internal/container"
	"github.com/garyjia/flow-forge/internal/domain/workflow"
	"github.com/garyjia/flow-forge/pkg/utils"
)

// CallerEnv supplies the caller identity when --as is not given
const CallerEnv = "FLOWCTL_CALLER"

// annotation marking commands that need an open container
const needsStore = "flowctl/needs-store"

// app carries the state shared by all subcommands of one invocation
type app struct {
	cfgFile string
	caller  string
	debug   bool

	logger    *zap.Logger
	container *container.Container
}

// NewRootCommand builds the flowctl command tree
func NewRootCommand() *cobra.Command {
	root, _ := newRootCommand()
	return root
}

func newRootCommand() (*cobra.Command, *app) {
	a := &app{}

	root := &cobra.Command{
		Use:   "flowctl",
		Short: "Manage approval-gated workflows and templates",
		Long: `flowctl creates workflows, declares who may move them between states,
performs transitions and manages reusable workflow templates.

It opens the database named in the configuration file directly.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown()
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (defaults and FLOWFORGE_* environment when empty)")
	root.PersistentFlags().StringVar(&a.caller, "as", "", "caller identity (default $"+CallerEnv+")")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging")

	root.AddCommand(
		newWorkflowCommand(a),
		newTemplateCommand(a),
		newExportCommand(a),
		newVersionCommand(),
	)
	return root, a
}

// Execute runs flowctl and returns the process exit code
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root, a := newRootCommand()
	// PersistentPostRunE is skipped when a command fails
	defer a.teardown() //nolint:errcheck

	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, formatError(err))
		return 1
	}
	return 0
}

// formatError prefixes engine errors with their numeric code
func formatError(err error) string {
	if code, ok := workflow.CodeOf(err); ok {
		return fmt.Sprintf("error %d: %v", code, err)
	}
	return fmt.Sprintf("error: %v", err)
}

func (a *app) setup(cmd *cobra.Command) error {
	a.logger = utils.NewCLILogger(a.debug)

	if cmd.Annotations[needsStore] == "" {
		return nil
	}

	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}

	c, err := container.NewContainer(cfg.ToContainerConfig(), a.logger)
	if err != nil {
		return err
	}
	if err := c.Start(cmd.Context()); err != nil {
		return err
	}
	a.container = c
	return nil
}

func (a *app) teardown() error {
	if a.logger != nil {
		defer a.logger.Sync() //nolint:errcheck
	}
	if a.container == nil {
		return nil
	}
	err := a.container.Close()
	a.container = nil
	return err
}

// callerIdentity resolves --as, then the environment
func (a *app) callerIdentity() (workflow.Identity, error) {
	caller := a.caller
	if caller == "" {
		caller = os.Getenv(CallerEnv)
	}
	if caller == "" {
		return "", errors.New("caller identity required: pass --as or set " + CallerEnv)
	}
	if err := utils.ValidateToken("caller identity", caller, workflow.MaxIdentityLength); err != nil {
		return "", err
	}
	return workflow.Identity(caller), nil
}

func withStore(cmd *cobra.Command) *cobra.Command {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations[needsStore] = "true"
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "flowctl v1.0.0")
		},
	}
}
