// Package main provides the library assistant CLI entrypoint.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JuanR0/biblio/internal/config"
	"github.com/JuanR0/biblio/internal/factories"
	"github.com/JuanR0/biblio/internal/observability"
)

// Set at build time with -ldflags "-X main.version=...".
var (
	version = "dev"
	commit  = "none"
)

// cli holds state shared by the subcommands of one invocation.
type cli struct {
	cfgFile    string
	outputJSON bool
	verbose    bool
	noColor    bool

	cfg    *config.Config
	logger *observability.Logger
	ui     *UI
}

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "biblio-cli",
		Short: "Library assistant CLI for questions, rules, and diagnostics",
		Long: `biblio-cli answers library-regulation questions locally and inspects
the loaded knowledge.

Use this tool to:
- Ask questions against the rule files without running the API
- See how a question is categorized and expanded
- Evaluate categorization accuracy over a CSV of questions
- Check the linguistic service and review the audit trail

All commands support --json for automation.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c.ui = NewUI(cmd.OutOrStdout(), cmd.ErrOrStderr(), c.outputJSON, c.noColor)
			if cmd.Name() == "version" {
				return nil
			}

			var err error
			c.cfg, err = config.Load(c.cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			level := "warn"
			if c.verbose {
				level = "debug"
			}
			c.logger = observability.NewLogger(observability.LogConfig{
				Level:       level,
				Format:      "console",
				Output:      cmd.ErrOrStderr(),
				ServiceName: "biblio-cli",
			})
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&c.cfgFile, "config", "c", "", "config file path (default: uses env vars)")
	root.PersistentFlags().BoolVar(&c.outputJSON, "json", false, "output in JSON format")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose output")
	root.PersistentFlags().BoolVar(&c.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		c.newAskCmd(),
		c.newCategorizeCmd(),
		c.newExpandCmd(),
		c.newRulesCmd(),
		c.newInfoCmd(),
		c.newEvalCmd(),
		c.newDiagnoseCmd(),
		c.newAuditCmd(),
		c.newVersionCmd(),
	)
	return root
}

// buildApp wires the engine from the loaded configuration.
func (c *cli) buildApp(ctx context.Context) (*factories.App, error) {
	app, err := factories.Build(ctx, c.cfg, c.logger)
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}
	return app, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
