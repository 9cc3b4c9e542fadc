package executor

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/mensylisir/xmupgrade/ending"
	"github.com/mensylisir/xmupgrade/logger"
)

// spawnFunc actually runs a resolved command.
type spawnFunc func(ctx context.Context, cmd Command) error

// gate applies RunMode, elevation and confirmation to every command before
// it is handed to a spawnFunc. It is shared by the local and remote
// executors.
type gate struct {
	mode     RunMode
	elevator Elevator
	prompter Prompter
	out      io.Writer
	verbose  bool
	onQuit   func()
	log      *logrus.Entry
	// stdin is forwarded to remote commands. Local commands inherit os.Stdin.
	stdin io.Reader

	mu         sync.Mutex
	lastHeader string
}

// Option configures an executor.
type Option func(*gate)

// WithElevator sets the privilege wrapper used for Command.Sudo.
func WithElevator(e Elevator) Option {
	return func(g *gate) { g.elevator = e }
}

// WithPrompter sets the Damp mode prompter.
func WithPrompter(p Prompter) Option {
	return func(g *gate) { g.prompter = p }
}

// WithOutput redirects dry-run lines, prompts and headers. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(g *gate) { g.out = w }
}

// WithVerbose prints a header line before the first command of each step.
func WithVerbose(v bool) Option {
	return func(g *gate) { g.verbose = v }
}

// WithQuitHandler is called when the user answers "quit" to a prompt.
func WithQuitHandler(fn func()) Option {
	return func(g *gate) { g.onQuit = fn }
}

// WithStdin forwards r to commands run by a RemoteExecutor.
func WithStdin(r io.Reader) Option {
	return func(g *gate) { g.stdin = r }
}

// WithLogger sets the entry used for debug logs.
func WithLogger(entry *logrus.Entry) Option {
	return func(g *gate) { g.log = entry }
}

func newGate(mode RunMode, opts ...Option) *gate {
	g := &gate{
		mode: mode,
		out:  os.Stdout,
		log:  logrus.NewEntry(logger.Log.Logger),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.prompter == nil {
		g.prompter = NewTerminalPrompter(os.Stdin, g.out)
	}
	return g
}

func (g *gate) Mode() RunMode { return g.mode }

func (g *gate) run(ctx context.Context, cmd Command, spawn spawnFunc) ending.Outcome {
	g.header(cmd.Step)

	program := cmd.Program
	if cmd.Sudo {
		if g.elevator == nil || !g.elevator.Available() {
			return ending.Skipped(ending.ReasonNoElevation)
		}
		wrapped, err := g.elevator.Wrap(cmd)
		if err != nil {
			return ending.Failed(err)
		}
		cmd = wrapped
	}

	switch g.mode {
	case Dry:
		fmt.Fprintf(g.out, "Dry running: %s\n", cmd)
		return ending.Success()
	case Damp:
		if !cmd.NoConfirm {
			fmt.Fprintf(g.out, "Executing: %s\n", cmd)
			switch g.prompter.Confirm("Proceed?") {
			case AnswerYes:
			case AnswerQuit:
				if g.onQuit != nil {
					g.onQuit()
				}
				return ending.Skipped(ending.ReasonQuit)
			default:
				return ending.Skipped(ending.ReasonDeclined)
			}
		}
	}

	g.log.WithField("step", cmd.Step).Debugf("Executing %s", cmd)
	err := spawn(ctx, cmd)
	if cmd.Sudo && g.elevator != nil {
		g.elevator.NoteUse()
	}
	if err != nil {
		if pe, ok := err.(*ProcessError); ok {
			pe.Program = program
			return ending.Failed(pe)
		}
		return ending.Failed(err)
	}
	return ending.Success()
}

func (g *gate) header(step string) {
	if !g.verbose || step == "" {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if step == g.lastHeader {
		return
	}
	g.lastHeader = step
	fmt.Fprintf(g.out, "\n── %s ──\n", step)
}
