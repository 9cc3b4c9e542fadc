// Package runner drives one invocation through remote dispatch, the user's
// pre-commands, the planned steps, privilege cleanup and post-commands.
package runner

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mensylisir/xmupgrade/common"
	"github.com/mensylisir/xmupgrade/config"
	"github.com/mensylisir/xmupgrade/ending"
	"github.com/mensylisir/xmupgrade/hook"
	"github.com/mensylisir/xmupgrade/remote"
	"github.com/mensylisir/xmupgrade/runtime"
	"github.com/mensylisir/xmupgrade/step"
	"github.com/mensylisir/xmupgrade/step/runcmd"
	"github.com/mensylisir/xmupgrade/sudo"
)

// RemoteSource yields one unit per remote host.
type RemoteSource interface {
	Steps(rtx *runtime.ExecutionContext) []step.Step
}

// CommandSource yields the user's command tables.
type CommandSource interface {
	Pre() []step.Step
	Main() []step.Step
	Post() []step.Step
}

// Runner executes a single run. It is not reusable.
type Runner struct {
	rtx       *runtime.ExecutionContext
	catalog   *step.Catalog
	remote    RemoteSource
	commands  CommandSource
	observers []Observer

	state  State
	report *ending.Report
}

type Option func(*Runner)

func WithCatalog(c *step.Catalog) Option {
	return func(r *Runner) { r.catalog = c }
}

func WithRemote(src RemoteSource) Option {
	return func(r *Runner) { r.remote = src }
}

func WithCommands(src CommandSource) Option {
	return func(r *Runner) { r.commands = src }
}

func WithObserver(o Observer) Option {
	return func(r *Runner) { r.observers = append(r.observers, o) }
}

// New defaults to the built-in catalog, the config's command tables and a
// dispatcher over misc.remote_topgrades. An invalid --remote-host-limit is
// returned as an error.
func New(rtx *runtime.ExecutionContext, opts ...Option) (*Runner, error) {
	r := &Runner{rtx: rtx, state: Init}
	for _, opt := range opts {
		opt(r)
	}
	if r.catalog == nil {
		r.catalog = step.BuiltinCatalog()
	}
	if r.commands == nil {
		r.commands = runcmd.NewExpander(rtx.Config, rtx.Platform)
	}
	if r.remote == nil {
		d, err := remote.NewDispatcher(rtx.Config, rtx.Args.RemoteHostLimit)
		if err != nil {
			return nil, err
		}
		r.remote = d
	}
	return r, nil
}

// FilterFor collects the step filter from the command line and config.
func FilterFor(rtx *runtime.ExecutionContext) step.Filter {
	return step.Filter{
		Platform:   rtx.Platform,
		Only:       rtx.Args.Only,
		Skip:       rtx.Args.Skip,
		ConfigOnly: rtx.Config.Misc.Only,
		Disabled:   rtx.Config.Misc.Disable,
	}
}

// Plan returns the steps this run would consider.
func (r *Runner) Plan() ([]step.Planned, error) {
	return step.Plan(r.catalog, FilterFor(r.rtx))
}

func (r *Runner) State() State { return r.state }

// Run executes the run and returns its report. An error means the run was
// rejected before any unit started, and there is no report.
func (r *Runner) Run(ctx context.Context) (*ending.Report, error) {
	r.enter(Init)
	plan, err := r.Plan()
	if err != nil {
		return nil, err
	}
	r.report = ending.NewReport(r.rtx.RunID)
	r.rtx.Log.Debugf("Running in %s mode with %d planned steps", r.rtx.Mode, len(plan))

	if r.rtx.Config.Misc.RemoteOrder == config.RemoteAfterPre {
		r.preCommands(ctx)
		r.remoteDispatch(ctx)
	} else {
		r.remoteDispatch(ctx)
		r.preCommands(ctx)
	}
	r.mainSteps(ctx, plan)

	r.enter(PrivilegeClear)
	start := time.Now()
	if o := r.rtx.Broker.Clear(ctx, r.rtx.Executor); o.IsFailed() {
		r.record(common.PhasePost, sudo.StepName, o, time.Since(start))
	}

	r.enter(PostCommands)
	for _, s := range r.commands.Post() {
		r.runUnit(ctx, common.PhasePost, s)
	}

	r.enter(Report)
	r.report.Finish()
	success, skipped, failed := r.report.Counts()
	log := r.rtx.Log.WithFields(logrus.Fields{
		"Succeeded": success,
		"Skipped":   skipped,
		"Failed":    failed,
	})
	if r.report.HasFailures() {
		log.Warn("Run finished with failures")
	} else {
		log.Info("Run finished")
	}

	r.enter(Terminal)
	return r.report, nil
}

func (r *Runner) remoteDispatch(ctx context.Context) {
	r.enter(RemoteDispatch)
	r.runUnits(ctx, common.PhaseRemote, r.remote.Steps(r.rtx))
}

func (r *Runner) preCommands(ctx context.Context) {
	r.enter(PreCommands)
	r.runUnits(ctx, common.PhasePre, r.commands.Pre())
}

func (r *Runner) mainSteps(ctx context.Context, plan []step.Planned) {
	r.enter(MainSteps)
	if r.stopped(ctx) {
		return
	}
	if r.rtx.Config.Misc.PreSudo {
		start := time.Now()
		o := r.rtx.Broker.Elevate(ctx, r.rtx.Executor)
		r.record(common.PhaseMain, sudo.StepName, o, time.Since(start))
	}
	for _, p := range plan {
		if r.stopped(ctx) {
			return
		}
		switch {
		case !p.Runnable():
			r.record(common.PhaseMain, p.Step.Name, ending.Skipped(p.SkipReason), 0)
		case p.Step.Name == step.CustomCommands:
			if !r.runUnits(ctx, common.PhaseMain, r.commands.Main()) {
				return
			}
		default:
			r.runUnit(ctx, common.PhaseMain, p.Step)
		}
	}
}

// runUnits runs steps in order and reports false if the run was stopped
// before all of them ran.
func (r *Runner) runUnits(ctx context.Context, phase string, steps []step.Step) bool {
	for _, s := range steps {
		if r.stopped(ctx) {
			return false
		}
		r.runUnit(ctx, phase, s)
	}
	return true
}

func (r *Runner) stopped(ctx context.Context) bool {
	if r.rtx.Quit.Raised() {
		r.rtx.Log.Debug("Quit requested, skipping remaining units")
		return true
	}
	if ctx.Err() != nil {
		r.rtx.Log.Debugf("Context done, skipping remaining units: %v", ctx.Err())
		return true
	}
	return false
}

// runUnit runs one step. Panics and errors never leave this function.
func (r *Runner) runUnit(ctx context.Context, phase string, s step.Step) {
	log := r.rtx.StepLog(phase, s.Name)
	log.Debugf("Executing %s", s.Name)

	start := time.Now()
	outcome := ending.Success()
	err := hook.Call(hook.Funcs{
		TryFunc: func() error {
			if s.Run == nil {
				return errors.Errorf("step %s has nothing to run", s.Name)
			}
			outcome = s.Run(ctx, r.rtx)
			return nil
		},
	})
	if err != nil {
		var pe *hook.PanicError
		if errors.As(err, &pe) {
			log.Debugf("Recovered panic:\n%s", pe.Stack)
		}
		outcome = ending.Failed(err)
	}
	d := time.Since(start)

	switch outcome.Status {
	case ending.StatusFailed:
		log.Errorf("%s failed: %s", s.Name, outcome.Detail())
	case ending.StatusSkipped:
		log.Debugf("%s skipped: %s", s.Name, outcome.Reason)
	default:
		log.Infof("%s done", s.Name)
	}
	r.record(phase, s.Name, outcome, d)
}

func (r *Runner) record(phase, name string, o ending.Outcome, d time.Duration) {
	r.report.Add(name, phase, o, d)
	for _, obs := range r.observers {
		obs.OnUnit(phase, name, o)
	}
}

func (r *Runner) enter(s State) {
	r.state = s
	r.rtx.Log.WithField(common.Phase, s.String()).Debug("Entering state")
	for _, obs := range r.observers {
		obs.OnState(s)
	}
}
