package runner

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mensylisir/xmupgrade/common"
	"github.com/mensylisir/xmupgrade/config"
	"github.com/mensylisir/xmupgrade/ending"
	"github.com/mensylisir/xmupgrade/executor"
	"github.com/mensylisir/xmupgrade/executor/executortest"
	"github.com/mensylisir/xmupgrade/runtime"
	"github.com/mensylisir/xmupgrade/step"
	"github.com/mensylisir/xmupgrade/step/runcmd"
	"github.com/mensylisir/xmupgrade/sudo"
)

// command is a step that runs its own name as a program.
func command(name string, platforms ...common.Platform) step.Step {
	return step.Step{
		Name:      name,
		Platforms: platforms,
		Run: func(ctx context.Context, rtx *runtime.ExecutionContext) ending.Outcome {
			return rtx.Run(ctx, name, executor.Cmd(name))
		},
	}
}

type fakeRemote struct{ hosts []string }

func (f fakeRemote) Steps(*runtime.ExecutionContext) []step.Step {
	steps := make([]step.Step, len(f.hosts))
	for i, h := range f.hosts {
		steps[i] = step.Step{
			Name: "Remote (" + h + ")",
			Run: func(ctx context.Context, rtx *runtime.ExecutionContext) ending.Outcome {
				return rtx.Run(ctx, "Remote ("+h+")", executor.Cmd("ssh", h))
			},
		}
	}
	return steps
}

type event struct {
	state State
	phase string
	name  string
}

type tracer struct {
	events []event
	broker *sudo.Broker
	clears map[State]int
}

func (t *tracer) OnState(s State) {
	t.events = append(t.events, event{state: s})
	if t.broker != nil {
		t.clears[s] = t.broker.Clears()
	}
}

func (t *tracer) OnUnit(phase, name string, _ ending.Outcome) {
	t.events = append(t.events, event{state: -1, phase: phase, name: name})
}

func (t *tracer) states() []State {
	var out []State
	for _, e := range t.events {
		if e.state >= 0 {
			out = append(out, e.state)
		}
	}
	return out
}

func (t *tracer) units() []string {
	var out []string
	for _, e := range t.events {
		if e.state < 0 {
			out = append(out, e.phase+":"+e.name)
		}
	}
	return out
}

type fixture struct {
	rtx    *runtime.ExecutionContext
	rec    *executortest.Recorder
	broker *sudo.Broker
	trace  *tracer
}

func newFixture(t *testing.T, mode executor.RunMode, cfg *config.Config, args *runtime.CliArgs, opts ...runtime.Option) *fixture {
	t.Helper()
	if cfg == nil {
		cfg = config.Default()
	}
	rec := executortest.NewRecorder(mode)
	broker := sudo.NewBroker(
		sudo.WithPlatform(common.Linux),
		sudo.WithLookPath(func(name string) (string, error) {
			if name == "sudo" {
				return "/usr/bin/sudo", nil
			}
			return "", errors.New("not found")
		}),
		sudo.WithRootCheck(func() bool { return false }),
	)
	rtx := runtime.New(mode, cfg, args, append([]runtime.Option{
		runtime.WithExecutor(rec),
		runtime.WithBroker(broker),
		runtime.WithPlatform(common.Linux),
		runtime.WithOutput(io.Discard),
		runtime.WithRemotePrefix(""),
		runtime.WithPrompter(executor.StaticPrompter(executor.AnswerYes)),
	}, opts...)...)
	return &fixture{
		rtx:    rtx,
		rec:    rec,
		broker: broker,
		trace:  &tracer{broker: broker, clears: map[State]int{}},
	}
}

func (f *fixture) run(t *testing.T, steps []step.Step, hosts ...string) *ending.Report {
	t.Helper()
	catalog, err := step.NewCatalog(steps)
	require.NoError(t, err)
	r, err := New(f.rtx,
		WithCatalog(catalog),
		WithRemote(fakeRemote{hosts: hosts}),
		WithCommands(runcmd.NewExpander(f.rtx.Config, common.Linux, runcmd.WithShell("sh", "-c"))),
		WithObserver(f.trace),
	)
	require.NoError(t, err)
	report, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Terminal, r.State())
	return report
}

// installed is a step that needs its binary on PATH.
func installed(name string) step.Step {
	return step.Step{
		Name: name,
		Run: func(ctx context.Context, rtx *runtime.ExecutionContext) ending.Outcome {
			bin, err := rtx.Require(name)
			if err != nil {
				return ending.FromError(err)
			}
			return rtx.Run(ctx, name, executor.Cmd(bin))
		},
	}
}

func xyz() []step.Step {
	return []step.Step{command("x"), command("y", common.Windows), command("z")}
}

func entryNames(r *ending.Report) []string {
	var out []string
	for _, e := range r.Entries() {
		out = append(out, e.Name)
	}
	return out
}

func TestRun_XYZScenario(t *testing.T) {
	f := newFixture(t, executor.Wet, nil, nil)
	report := f.run(t, xyz())

	entries := report.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, ending.Success(), entries[0].Outcome)
	assert.Equal(t, ending.Skipped(ending.ReasonNotApplicable), entries[1].Outcome)
	assert.Equal(t, ending.Success(), entries[2].Outcome)
	assert.Equal(t, []string{"x", "z"}, f.rec.Lines())
	assert.Equal(t, common.ExitOK, report.ExitCode())
}

func TestRun_SkipReasons(t *testing.T) {
	cfg := config.Default()
	cfg.Misc.Disable = []string{"x"}
	f := newFixture(t, executor.Wet, cfg, nil, runtime.WithLookPath(func(name string) (string, error) {
		if name == "w" {
			return "w", nil
		}
		return "", errors.New("not found")
	}))
	steps := []step.Step{command("x"), command("y", common.Windows), installed("z"), installed("w")}
	report := f.run(t, steps)

	assert.Equal(t, []string{"x", "y", "z", "w"}, entryNames(report))
	want := map[string]ending.Outcome{
		"x": ending.Skipped(ending.ReasonDisabled),
		"y": ending.Skipped(ending.ReasonNotApplicable),
		"z": ending.Skipped(ending.ReasonNotInstalled),
		"w": ending.Success(),
	}
	for name, outcome := range want {
		e, ok := report.Lookup(name)
		require.True(t, ok, name)
		assert.Equal(t, outcome, e.Outcome, name)
	}
	assert.Equal(t, []string{"w"}, f.rec.Lines())
	assert.Len(t, f.rec.Spawned(), 1)
	assert.Equal(t, common.ExitOK, report.ExitCode())
}

func TestRun_OnlyZ(t *testing.T) {
	f := newFixture(t, executor.Wet, nil, &runtime.CliArgs{Only: []string{"z"}})
	report := f.run(t, xyz())

	assert.Equal(t, []string{"z"}, entryNames(report))
	assert.Equal(t, []string{"z"}, f.rec.Lines())
}

func TestRun_FailureDoesNotStopLaterSteps(t *testing.T) {
	f := newFixture(t, executor.Wet, nil, nil)
	f.rec.On("x", ending.Failed(&executor.ProcessError{Program: "x", ExitCode: 1}))
	report := f.run(t, xyz())

	x, ok := report.Lookup("x")
	require.True(t, ok)
	assert.True(t, x.Outcome.IsFailed())
	z, ok := report.Lookup("z")
	require.True(t, ok)
	assert.True(t, z.Outcome.IsSuccess())
	assert.Equal(t, common.ExitFailed, report.ExitCode())
}

func TestRun_PanicIsIsolated(t *testing.T) {
	f := newFixture(t, executor.Wet, nil, nil)
	boom := step.Step{Name: "boom", Run: func(context.Context, *runtime.ExecutionContext) ending.Outcome {
		panic("nil map")
	}}
	report := f.run(t, []step.Step{boom, command("z")})

	e, ok := report.Lookup("boom")
	require.True(t, ok)
	require.True(t, e.Outcome.IsFailed())
	assert.Contains(t, e.Outcome.Detail(), "nil map")
	assert.Equal(t, []string{"z"}, f.rec.Lines())
}

func TestRun_DryNeverSpawns(t *testing.T) {
	cfg := config.Default()
	cfg.PreCommands = config.Commands{{Name: "pre", Line: "echo pre"}}
	cfg.Commands = config.Commands{{Name: "main", Line: "echo main"}}
	cfg.PostCommands = config.Commands{{Name: "post", Line: "echo post"}}
	cfg.Misc.PreSudo = true
	f := newFixture(t, executor.Dry, cfg, &runtime.CliArgs{DryRun: true})
	f.rec.On("x", ending.Failed(&executor.ProcessError{Program: "x", ExitCode: 1}))

	report := f.run(t, append(xyz(), step.Step{Name: step.CustomCommands}), "nas")

	assert.Empty(t, f.rec.Spawned())
	assert.NotEmpty(t, f.rec.Commands())
	for _, e := range report.Entries() {
		assert.False(t, e.Outcome.IsFailed(), e.Name)
	}
	assert.Equal(t, common.ExitOK, report.ExitCode())
}

func TestRun_ClearOnceBetweenMainAndPost(t *testing.T) {
	cfg := config.Default()
	cfg.PostCommands = config.Commands{{Name: "post", Line: "true"}}
	cfg.Misc.PreSudo = true
	f := newFixture(t, executor.Wet, cfg, nil)
	f.run(t, xyz())

	assert.Equal(t, 1, f.broker.Clears())
	assert.Equal(t, 0, f.trace.clears[PrivilegeClear])
	assert.Equal(t, 1, f.trace.clears[PostCommands])
	assert.Equal(t, []State{Init, RemoteDispatch, PreCommands, MainSteps, PrivilegeClear, PostCommands, Report, Terminal},
		f.trace.states())

	lines := f.rec.Lines()
	require.Len(t, lines, 5)
	assert.Equal(t, "/usr/bin/sudo -v", lines[0])
	assert.Equal(t, "/usr/bin/sudo -k", lines[3])
	assert.Equal(t, "sh -c true", lines[4])
}

func TestRun_QuitStillClearsAndRunsPost(t *testing.T) {
	cfg := config.Default()
	cfg.PostCommands = config.Commands{{Name: "post", Line: "true"}}
	f := newFixture(t, executor.Wet, cfg, nil)
	quitter := step.Step{Name: "quitter", Run: func(_ context.Context, rtx *runtime.ExecutionContext) ending.Outcome {
		rtx.Quit.Raise()
		return ending.Skipped(ending.ReasonQuit)
	}}
	report := f.run(t, []step.Step{command("x"), quitter, command("z")})

	assert.Equal(t, []string{"x", "quitter", "post"}, entryNames(report))
	assert.Equal(t, 1, f.broker.Clears())
	assert.Equal(t, 0, f.trace.clears[PrivilegeClear])
	assert.Equal(t, 1, f.trace.clears[PostCommands])
	assert.Equal(t, common.ExitOK, report.ExitCode())
}

func TestRun_RemoteOrder(t *testing.T) {
	tests := []struct {
		order string
		want  []string
	}{
		{config.RemoteBeforePre, []string{"remote:Remote (a)", "remote:Remote (b)", "pre:p", "main:x"}},
		{config.RemoteAfterPre, []string{"pre:p", "remote:Remote (a)", "remote:Remote (b)", "main:x"}},
	}
	for _, tt := range tests {
		t.Run(tt.order, func(t *testing.T) {
			cfg := config.Default()
			cfg.Misc.RemoteOrder = tt.order
			cfg.PreCommands = config.Commands{{Name: "p", Line: "true"}}
			f := newFixture(t, executor.Wet, cfg, nil)
			f.rec.On("ssh", ending.Failed(&executor.ProcessError{Program: "ssh", ExitCode: 255}))

			report := f.run(t, []step.Step{command("x")}, "a", "b")
			assert.Equal(t, tt.want, f.trace.units())
			a, _ := report.Lookup("Remote (a)")
			assert.True(t, a.Outcome.IsFailed())
			b, _ := report.Lookup("Remote (b)")
			assert.True(t, b.Outcome.IsFailed(), "host b still ran")
		})
	}
}

func TestRun_PostCommandsInOrder(t *testing.T) {
	cfg := config.Default()
	cfg.PostCommands = config.Commands{
		{Name: "A", Line: "echo a"},
		{Name: "B", Line: "echo b"},
		{Name: "C", Line: "echo c"},
	}
	f := newFixture(t, executor.Wet, cfg, nil)
	report := f.run(t, nil)

	var post []string
	for _, e := range report.Entries() {
		if e.Phase == common.PhasePost {
			post = append(post, e.Name)
		}
	}
	assert.Equal(t, []string{"A", "B", "C"}, post)
}

func TestRun_CustomCommands(t *testing.T) {
	cfg := config.Default()
	cfg.Commands = config.Commands{{Name: "dotfiles", Line: "git pull"}, {Name: "vim", Line: "vim +PlugUpdate +qa"}}
	steps := []step.Step{command("x"), {Name: step.CustomCommands}, command("z")}

	f := newFixture(t, executor.Wet, cfg, nil)
	report := f.run(t, steps)
	assert.Equal(t, []string{"x", "dotfiles", "vim", "z"}, entryNames(report))

	cfg.Misc.Disable = []string{step.CustomCommands}
	f = newFixture(t, executor.Wet, cfg, nil)
	report = f.run(t, steps)
	assert.Equal(t, []string{"x", step.CustomCommands, "z"}, entryNames(report))
	e, _ := report.Lookup(step.CustomCommands)
	assert.Equal(t, ending.Skipped(ending.ReasonDisabled), e.Outcome)
}

func TestRun_UnknownStepIsFatal(t *testing.T) {
	f := newFixture(t, executor.Wet, nil, &runtime.CliArgs{Skip: []string{"w"}})
	catalog, err := step.NewCatalog(xyz())
	require.NoError(t, err)
	r, err := New(f.rtx, WithCatalog(catalog), WithRemote(fakeRemote{}), WithObserver(f.trace))
	require.NoError(t, err)

	report, err := r.Run(context.Background())
	var unknown *step.UnknownStepError
	require.ErrorAs(t, err, &unknown)
	assert.Nil(t, report)
	assert.Equal(t, []State{Init}, f.trace.states())
	assert.Empty(t, f.rec.Commands())
	assert.Zero(t, f.broker.Clears())
}

func TestNew_InvalidHostLimit(t *testing.T) {
	f := newFixture(t, executor.Wet, nil, &runtime.CliArgs{RemoteHostLimit: "(["})
	_, err := New(f.rtx)
	assert.Error(t, err)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "privilege_clear", PrivilegeClear.String())
	assert.Equal(t, "unknown", State(42).String())
}
