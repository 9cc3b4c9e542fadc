package runtime

import (
	"context"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mensylisir/xmupgrade/cache"
	"github.com/mensylisir/xmupgrade/common"
	"github.com/mensylisir/xmupgrade/config"
	"github.com/mensylisir/xmupgrade/ending"
	"github.com/mensylisir/xmupgrade/executor"
	"github.com/mensylisir/xmupgrade/logger"
	"github.com/mensylisir/xmupgrade/sudo"
)

// ExecutionContext is created once per invocation and handed to every step.
type ExecutionContext struct {
	Mode     executor.RunMode
	Config   *config.Config
	Args     *CliArgs
	Broker   *sudo.Broker
	Executor executor.Executor
	// Input is the terminal, shared by the prompter and remote sessions.
	Input *executor.Input
	// Prompter is shared by every executor of the run so that buffered
	// terminal input is never split between readers.
	Prompter  executor.Prompter
	Platform  common.Platform
	Verbose   bool
	AssumeYes bool
	Quit      *QuitFlag
	RunID     string
	// RemotePrefix is the host name this process was dispatched as. Empty
	// for a local invocation.
	RemotePrefix string
	Log          *logrus.Entry
	// Out receives dry-run lines, prompts and the summary.
	Out io.Writer

	lookPath      func(string) (string, error)
	binaries      *cache.Cache[string, string]
	osReleasePath string
	osReleaseOnce sync.Once
	osRelease     *common.OSRelease
}

// Option customises New.
type Option func(*ExecutionContext)

func WithExecutor(ex executor.Executor) Option {
	return func(r *ExecutionContext) { r.Executor = ex }
}

func WithInput(in *executor.Input) Option {
	return func(r *ExecutionContext) { r.Input = in }
}

func WithPrompter(p executor.Prompter) Option {
	return func(r *ExecutionContext) { r.Prompter = p }
}

func WithBroker(b *sudo.Broker) Option {
	return func(r *ExecutionContext) { r.Broker = b }
}

func WithPlatform(p common.Platform) Option {
	return func(r *ExecutionContext) { r.Platform = p }
}

// WithLookPath replaces exec.LookPath for binary detection.
func WithLookPath(fn func(string) (string, error)) Option {
	return func(r *ExecutionContext) { r.lookPath = fn }
}

// WithOSRelease fixes the distribution instead of reading /etc/os-release.
func WithOSRelease(rel *common.OSRelease) Option {
	return func(r *ExecutionContext) {
		r.osReleaseOnce.Do(func() { r.osRelease = rel })
	}
}

func WithOutput(w io.Writer) Option {
	return func(r *ExecutionContext) { r.Out = w }
}

func WithQuitFlag(q *QuitFlag) Option {
	return func(r *ExecutionContext) { r.Quit = q }
}

func WithRunID(id string) Option {
	return func(r *ExecutionContext) { r.RunID = id }
}

func WithRemotePrefix(prefix string) Option {
	return func(r *ExecutionContext) { r.RemotePrefix = prefix }
}

// New builds the context for one run. Unless overridden, it creates the
// privilege broker and a local executor wired to it.
func New(mode executor.RunMode, cfg *config.Config, args *CliArgs, opts ...Option) *ExecutionContext {
	if cfg == nil {
		cfg = config.Default()
	}
	if args == nil {
		args = NewCliArgs()
	}
	r := &ExecutionContext{
		Mode:          mode,
		Config:        cfg,
		Args:          args,
		Platform:      common.CurrentPlatform(),
		Verbose:       args.Verbose,
		AssumeYes:     args.AssumeYes || cfg.Misc.AssumeYes,
		RemotePrefix:  os.Getenv(common.RemotePrefixEnv),
		Out:           os.Stdout,
		lookPath:      exec.LookPath,
		binaries:      cache.NewCache[string, string](),
		osReleasePath: common.DefaultOSReleasePath,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.RunID == "" {
		r.RunID = uuid.NewString()
	}
	if r.Quit == nil {
		r.Quit = NewQuitFlag()
	}
	if r.Log == nil {
		r.Log = logger.Log.Run(r.RunID)
	}
	if r.Input == nil {
		r.Input = executor.NewInput(os.Stdin)
	}
	if r.Prompter == nil {
		r.Prompter = executor.NewTerminalPrompter(r.Input, r.Out)
	}
	if r.Broker == nil {
		r.Broker = sudo.NewBroker(
			sudo.WithOverride(cfg.Misc.SudoCommand),
			sudo.WithPlatform(r.Platform),
			sudo.WithLogger(r.Log),
		)
	}
	if r.Executor == nil {
		r.Executor = executor.NewLocalExecutor(mode,
			executor.WithElevator(r.Broker),
			executor.WithOutput(r.Out),
			executor.WithPrompter(r.Prompter),
			executor.WithVerbose(r.Verbose),
			executor.WithQuitHandler(r.Quit.Raise),
			executor.WithLogger(r.Log),
		)
	}
	return r
}

// IsRemoteInvocation reports whether this process was started by another
// xmupgrade over SSH.
func (r *ExecutionContext) IsRemoteInvocation() bool {
	return r.RemotePrefix != ""
}

// RemoteArgs are the flags forwarded to a remote invocation. They follow
// the resolved mode, not only the flags given on this command line.
func (r *ExecutionContext) RemoteArgs() []string {
	var args []string
	if r.Mode == executor.Dry {
		args = append(args, "--dry-run")
	}
	if r.AssumeYes || r.Mode == executor.Wet {
		args = append(args, "--yes")
	}
	if r.Verbose {
		args = append(args, "-v")
	}
	return args
}

// Require returns the path of binary, or a skip error when it is not
// installed. Lookups are memoised for the whole run.
func (r *ExecutionContext) Require(binary string) (string, error) {
	path, err := r.binaries.GetOrLoad(binary, func() (string, error) {
		return r.lookPath(binary)
	})
	if err != nil {
		return "", ending.Skip(ending.ReasonNotInstalled)
	}
	return path, nil
}

// RequireAny returns the first installed binary among names.
func (r *ExecutionContext) RequireAny(names ...string) (string, error) {
	for _, name := range names {
		if path, err := r.Require(name); err == nil {
			return path, nil
		}
	}
	return "", ending.Skip(ending.ReasonNotInstalled)
}

// Has reports whether binary is installed.
func (r *ExecutionContext) Has(binary string) bool {
	_, err := r.Require(binary)
	return err == nil
}

// OSRelease returns the Linux distribution, or nil when it is unknown.
func (r *ExecutionContext) OSRelease() *common.OSRelease {
	r.osReleaseOnce.Do(func() {
		if r.Platform != common.Linux {
			return
		}
		rel, err := common.LoadOSRelease(r.osReleasePath)
		if err != nil {
			r.Log.Debugf("Distribution unknown: %v", err)
			return
		}
		r.osRelease = rel
	})
	return r.osRelease
}

// StepLog returns an entry tagged with phase and step.
func (r *ExecutionContext) StepLog(phase, step string) *logrus.Entry {
	return r.Log.WithFields(logrus.Fields{common.Phase: phase, common.StepName: step})
}

// Run executes cmds in order on behalf of step and stops at the first
// outcome that is not a success.
func (r *ExecutionContext) Run(ctx context.Context, step string, cmds ...executor.Command) ending.Outcome {
	for _, cmd := range cmds {
		if cmd.Step == "" {
			cmd.Step = step
		}
		if o := r.Executor.Execute(ctx, cmd); !o.IsSuccess() {
			return o
		}
	}
	return ending.Success()
}
