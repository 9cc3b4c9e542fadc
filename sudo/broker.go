package sudo

import (
	"context"
	"os"
	"os/exec"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/mensylisir/xmupgrade/common"
	"github.com/mensylisir/xmupgrade/ending"
	"github.com/mensylisir/xmupgrade/executor"
	"github.com/mensylisir/xmupgrade/logger"
)

// State is the lifecycle of the privilege session.
type State int

const (
	Unresolved State = iota
	Resolved
	Cleared
)

func (s State) String() string {
	switch s {
	case Unresolved:
		return "unresolved"
	case Resolved:
		return "resolved"
	case Cleared:
		return "cleared"
	default:
		return "unknown"
	}
}

// StepName is used for the broker's own commands.
const StepName = "sudo"

// Broker detects the escalation mechanism once, wraps commands and releases
// cached credentials at the end of the run. It implements executor.Elevator.
type Broker struct {
	override string
	platform common.Platform
	lookPath func(string) (string, error)
	isRoot   func() bool
	log      *logrus.Entry

	once sync.Once

	mu     sync.Mutex
	kind   Kind
	path   string
	state  State
	used   bool
	clears int
}

// Option configures a Broker.
type Option func(*Broker)

// WithOverride forces the configured mechanism (misc.sudo_command).
func WithOverride(name string) Option {
	return func(b *Broker) { b.override = name }
}

func WithPlatform(p common.Platform) Option {
	return func(b *Broker) { b.platform = p }
}

// WithLookPath replaces exec.LookPath.
func WithLookPath(fn func(string) (string, error)) Option {
	return func(b *Broker) { b.lookPath = fn }
}

// WithRootCheck replaces the effective-uid check.
func WithRootCheck(fn func() bool) Option {
	return func(b *Broker) { b.isRoot = fn }
}

func WithLogger(entry *logrus.Entry) Option {
	return func(b *Broker) { b.log = entry }
}

func NewBroker(opts ...Option) *Broker {
	b := &Broker{
		platform: common.CurrentPlatform(),
		lookPath: exec.LookPath,
		isRoot:   func() bool { return os.Geteuid() == 0 },
		log:      logrus.NewEntry(logger.Log.Logger),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Detect resolves the mechanism. Only the first call probes the system.
func (b *Broker) Detect() Kind {
	b.once.Do(func() {
		kind, path := b.detect()
		b.mu.Lock()
		b.kind, b.path = kind, path
		if b.state == Unresolved {
			b.state = Resolved
		}
		b.mu.Unlock()
		b.log.Debugf("Privilege escalation: %s %s", kind, path)
	})
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.kind
}

func (b *Broker) detect() (Kind, string) {
	if b.override != "" {
		kind, err := ParseKind(b.override, b.platform)
		if err != nil {
			b.log.Warnf("Ignoring sudo_command: %v", err)
			return KindNone, ""
		}
		if kind == KindNull {
			return KindNull, ""
		}
		path, err := b.lookPath(kind.Binary())
		if err != nil {
			b.log.Warnf("Configured sudo_command %s was not found", kind)
			return KindNone, ""
		}
		return kind, path
	}

	if b.platform != common.Windows && b.isRoot() {
		return KindNull, ""
	}

	for _, kind := range DetectOrder(b.platform) {
		if path, err := b.lookPath(kind.Binary()); err == nil {
			return kind, path
		}
	}
	return KindNone, ""
}

func (b *Broker) Kind() Kind { return b.Detect() }

func (b *Broker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Available reports whether elevated commands can run.
func (b *Broker) Available() bool {
	return b.Detect() != KindNone
}

// Wrap prefixes cmd with the mechanism. Without a mechanism cmd is returned
// unchanged.
func (b *Broker) Wrap(cmd executor.Command) (executor.Command, error) {
	kind := b.Detect()
	if kind == KindNone {
		return cmd, nil
	}
	args, err := kind.wrapArgs(cmd.Elevation)
	if err != nil {
		return cmd, err
	}
	if kind == KindNull {
		return cmd, nil
	}

	b.mu.Lock()
	path := b.path
	b.mu.Unlock()

	inner := cmd.Argv()
	if len(cmd.Env) > 0 && kind != KindGsudo && kind != KindWinSudo {
		inner = append(append([]string{"env"}, cmd.Env...), inner...)
		cmd.Env = nil
	}
	cmd.Program = path
	cmd.Args = append(args, inner...)
	return cmd, nil
}

// NoteUse records that an elevated command ran, so Clear has something to
// invalidate.
func (b *Broker) NoteUse() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.used = true
}

// Elevate caches credentials up front so later prompts do not interrupt
// long running steps.
func (b *Broker) Elevate(ctx context.Context, ex executor.Executor) ending.Outcome {
	kind := b.Detect()
	switch kind {
	case KindNone:
		return ending.Skipped(ending.ReasonNoElevation)
	case KindNull:
		return ending.Success()
	}
	b.mu.Lock()
	path := b.path
	b.mu.Unlock()

	outcome := ex.Execute(ctx, executor.Command{Program: path, Args: kind.preAuthArgs(), Step: StepName})
	if outcome.IsSuccess() && ex.Mode() != executor.Dry {
		b.NoteUse()
	}
	return outcome
}

// Clear drops cached credentials if a session was acquired and moves the
// broker to Cleared. Every call is counted.
func (b *Broker) Clear(ctx context.Context, ex executor.Executor) ending.Outcome {
	b.mu.Lock()
	b.clears++
	used := b.used
	kind, path := b.kind, b.path
	b.state = Cleared
	b.used = false
	b.mu.Unlock()

	args := kind.invalidateArgs()
	if !used || args == nil {
		return ending.Success()
	}
	return ex.Execute(ctx, executor.Command{Program: path, Args: args, Step: StepName, NoConfirm: true})
}

// Clears is the number of Clear calls so far.
func (b *Broker) Clears() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.clears
}
