// Package cli exposes scenarios as subcommands of a single binary.
package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/holochain/wind-tunnel-sub001/internal/config"
	"github.com/holochain/wind-tunnel-sub001/internal/core"
	"github.com/holochain/wind-tunnel-sub001/internal/logging"
	"github.com/holochain/wind-tunnel-sub001/internal/runner"
	"github.com/holochain/wind-tunnel-sub001/internal/summary"
)

// Exit codes
const (
	ExitSuccess       = 0
	ExitScenarioFatal = 1
	ExitRuntimeError  = 2
	ExitConfigError   = 3
)

// ExitCode maps a run error to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, core.ErrConfig):
		return ExitConfigError
	case errors.Is(err, core.ErrScenarioFatal):
		return ExitScenarioFatal
	default:
		return ExitRuntimeError
	}
}

// NewRootCommand builds the command tree with one subcommand per scenario.
func NewRootCommand(scenarios ...runner.Scenario) *cobra.Command {
	root := &cobra.Command{
		Use:   "windtunnel",
		Short: "Run load testing scenarios",
		Long: `
Run a load testing scenario against a running service.

Each scenario is a subcommand. Agents run the scenario's behaviour until the
configured duration elapses or the run is interrupted with Ctrl-C. Flags may
also be set through WT_ prefixed environment variables (WT_AGENTS=5) or a YAML
run profile passed with --config.

Logging is controlled by WT_LOG, e.g. WT_LOG=info or WT_LOG=warn,collector=debug.
`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return core.ConfigErrorf("unknown scenario %q for %q", args[0], cmd.CommandPath())
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logging.ConfigureLogging()
		},
	}
	root.SetFlagErrorFunc(flagError)
	for _, s := range scenarios {
		root.AddCommand(scenarioCommand(s))
	}
	root.AddCommand(summariesCommand())
	return root
}

func flagError(_ *cobra.Command, err error) error {
	return core.ConfigErrorf("%v", err)
}

func noArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		return core.ConfigErrorf("%v", err)
	}
	return nil
}

func scenarioCommand(s runner.Scenario) *cobra.Command {
	short := fmt.Sprintf("Run the %s scenario", s.Name())
	if d := s.DefaultDuration(); d != nil {
		short = fmt.Sprintf("%s (default %ds)", short, *d)
	}
	cmd := &cobra.Command{
		Use:   s.Name(),
		Short: short,
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := resolveOptions(cmd.Flags())
			if err != nil {
				return err
			}
			_, err = s.Run(runner.Options{
				Options:       opts,
				Stdout:        cmd.OutOrStdout(),
				HandleSignals: true,
			})
			return err
		},
	}
	cmd.SetFlagErrorFunc(flagError)
	config.AddFlags(cmd.Flags())
	return cmd
}

func resolveOptions(fs *pflag.FlagSet) (config.Options, error) {
	v, err := config.NewViper(fs)
	if err != nil {
		return config.Options{}, err
	}
	return config.Resolve(v)
}

func summariesCommand() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "summaries",
		Short: "List the run summaries recorded so far",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				path = summary.Path()
			}
			runs, err := summary.LoadAll(path)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 1, 1, 2, ' ', 0)
			fmt.Fprintln(w, "Run ID\tScenario\tStarted\tDuration (s)\tAgents\tPeers at end\tFingerprint")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%.12s\n",
					r.RunID, r.ScenarioName, r.StartedAt, r.RunDuration, r.AgentCount, r.PeerEndCount, r.Fingerprint)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "summary file, defaults to $"+summary.PathEnv+" or "+summary.DefaultPath)
	return cmd
}

// Execute runs the command line and returns the exit code.
func Execute(scenarios ...runner.Scenario) int {
	err := NewRootCommand(scenarios...).Execute()
	if err != nil {
		logging.WithStacktrace(log.NewEntry(log.StandardLogger()), err).Debug("Command failed")
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	return ExitCode(err)
}
