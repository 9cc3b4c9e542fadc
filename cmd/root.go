// Package cmd is the xmupgrade command line.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mensylisir/xmupgrade/common"
	"github.com/mensylisir/xmupgrade/config"
	"github.com/mensylisir/xmupgrade/ending"
	"github.com/mensylisir/xmupgrade/executor"
	"github.com/mensylisir/xmupgrade/history"
	"github.com/mensylisir/xmupgrade/logger"
	"github.com/mensylisir/xmupgrade/runner"
	"github.com/mensylisir/xmupgrade/runtime"
	"github.com/mensylisir/xmupgrade/util"
)

// exitError carries a process exit code out of a cobra command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func fatal(err error) error {
	return &exitError{code: common.ExitFatal, err: err}
}

// app holds what the commands share.
type app struct {
	args   runtime.CliArgs
	out    io.Writer
	errOut io.Writer
	// isTerminal reports whether prompting is possible.
	isTerminal func() bool
	// runOptions are appended when the execution context is built.
	runOptions []runtime.Option
}

// NewRootCommand builds the command tree writing to out and errOut.
func NewRootCommand(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut, isTerminal: stdinIsTerminal}
	return a.rootCommand()
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   common.AppName,
		Short: "Upgrade everything",
		Long: `xmupgrade detects the package managers and tools installed on this machine
and upgrades them one after another, then runs the same on the configured
remote hosts.`,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runUpgrade(cmd.Context())
		},
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&a.args.ConfigPath, "config", "", "config file (default: "+common.AppName+"/config.yaml in the user config directory)")
	flags.StringVar(&a.args.LogDir, "log-dir", "", "write a daily rotated log file to this directory")
	flags.BoolVarP(&a.args.Verbose, "verbose", "v", false, "print step headers and debug logs")

	local := root.Flags()
	local.BoolVarP(&a.args.DryRun, "dry-run", "n", false, "print the commands without running them")
	local.BoolVarP(&a.args.AssumeYes, "yes", "y", false, "do not prompt, and pass the yes flag to tools that take one")
	local.StringSliceVar(&a.args.Only, "only", nil, "run only these steps")
	local.StringSliceVar(&a.args.Skip, "skip", nil, "do not run these steps (alias --disable)")
	local.StringVar(&a.args.RemoteHostLimit, "remote-host-limit", "", "only dispatch to remote hosts matching this regular expression")
	local.BoolVar(&a.args.ShowSkipped, "show-skipped", false, "list skipped steps in the summary")
	local.BoolVar(&a.args.NoHistory, "no-history", false, "do not record this run")

	root.SetGlobalNormalizationFunc(flagAliases)

	root.AddCommand(a.stepsCommand(), a.historyCommand(), a.configCommand())
	return root
}

func flagAliases(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	if name == "disable" {
		name = "skip"
	}
	return pflag.NormalizedName(name)
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	return run(NewRootCommand(os.Stdout, os.Stderr), os.Args[1:])
}

func run(root *cobra.Command, argv []string) int {
	root.SetArgs(argv)
	err := root.ExecuteContext(context.Background())
	if err == nil {
		return common.ExitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintf(root.ErrOrStderr(), "Error: %v\n", ee.err)
		}
		return ee.code
	}
	// Flag parsing and usage errors.
	fmt.Fprintf(root.ErrOrStderr(), "Error: %v\n", err)
	return common.ExitFatal
}

// loadConfig finds, reads and validates the config, then sets up logging.
func (a *app) loadConfig() (*config.Config, error) {
	path, err := config.Discover(a.args.ConfigPath)
	if err != nil {
		return nil, err
	}
	cfg, err := config.NewLoader(path).Load()
	if err != nil {
		return nil, err
	}
	if err := logger.InitGlobalLogger(logger.Options{
		OutputDir: util.FirstNonEmpty(a.args.LogDir, cfg.Misc.LogDir),
		Verbose:   a.args.Verbose,
		Console:   a.errOut,
	}); err != nil {
		return nil, err
	}
	if cfg.Path != "" {
		logger.Log.Debugf("Loaded config %s", cfg.Path)
	}
	return cfg, nil
}

func (a *app) newContext(mode executor.RunMode, cfg *config.Config, opts ...runtime.Option) *runtime.ExecutionContext {
	base := []runtime.Option{runtime.WithOutput(a.out)}
	base = append(base, a.runOptions...)
	return runtime.New(mode, cfg, &a.args, append(base, opts...)...)
}

func (a *app) runUpgrade(ctx context.Context) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return fatal(err)
	}
	mode, err := ResolveMode(&a.args, cfg, a.isTerminal())
	if err != nil {
		return fatal(err)
	}

	quit := runtime.NewQuitFlag()
	stop := quit.WatchInterrupt()
	defer stop()

	rtx := a.newContext(mode, cfg, runtime.WithQuitFlag(quit))
	r, err := runner.New(rtx)
	if err != nil {
		return fatal(err)
	}
	report, err := r.Run(ctx)
	if err != nil {
		return fatal(err)
	}

	if err := ending.Render(a.out, report, ending.RenderOptions{
		ShowSkipped: a.args.ShowSkipped || cfg.Misc.ShowSkipped,
		Verbose:     a.args.Verbose,
	}); err != nil {
		rtx.Log.Warnf("Failed to print summary: %v", err)
	}
	a.record(ctx, rtx, report)

	if code := report.ExitCode(); code != common.ExitOK {
		return &exitError{code: code}
	}
	return nil
}

// record stores the report unless the run was dry or history is off. A
// history error never changes the exit code.
func (a *app) record(ctx context.Context, rtx *runtime.ExecutionContext, report *ending.Report) {
	if rtx.Mode == executor.Dry || a.args.NoHistory || !rtx.Config.Misc.HistoryEnabled() {
		return
	}
	path, err := history.DefaultPath(rtx.Config.Misc.HistoryPath)
	if err != nil {
		rtx.Log.Warnf("Run not recorded: %v", err)
		return
	}
	store, err := history.Open(path)
	if err != nil {
		rtx.Log.Warnf("Run not recorded: %v", err)
		return
	}
	defer store.Close()
	if _, err := store.Record(ctx, report, rtx.Mode.String()); err != nil {
		rtx.Log.Warnf("Run not recorded: %v", err)
		return
	}
	rtx.Log.Debugf("Recorded run in %s", path)
}
