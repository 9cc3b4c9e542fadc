// Package executortest provides an in-memory Executor for tests.
package executortest

import (
	"context"
	"sync"

	"github.com/mensylisir/xmupgrade/ending"
	"github.com/mensylisir/xmupgrade/executor"
)

// Recorder records every command instead of running it. Outcomes can be
// scripted per program; anything unscripted succeeds. In Dry mode nothing is
// recorded as spawned, mirroring the real executors.
type Recorder struct {
	RunMode executor.RunMode

	mu       sync.Mutex
	commands []executor.Command
	spawned  []executor.Command
	outcomes map[string]ending.Outcome
	hook     func(executor.Command)
}

func NewRecorder(mode executor.RunMode) *Recorder {
	return &Recorder{RunMode: mode, outcomes: map[string]ending.Outcome{}}
}

// On scripts the outcome for every command whose program is program.
func (r *Recorder) On(program string, o ending.Outcome) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[program] = o
	return r
}

// OnExecute is called for each command, before its outcome is returned.
func (r *Recorder) OnExecute(fn func(executor.Command)) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hook = fn
	return r
}

func (r *Recorder) Mode() executor.RunMode { return r.RunMode }

func (r *Recorder) Execute(_ context.Context, cmd executor.Command) ending.Outcome {
	r.mu.Lock()
	r.commands = append(r.commands, cmd)
	if r.RunMode != executor.Dry {
		r.spawned = append(r.spawned, cmd)
	}
	o, scripted := r.outcomes[cmd.Program]
	hook := r.hook
	r.mu.Unlock()

	if hook != nil {
		hook(cmd)
	}
	if r.RunMode == executor.Dry || !scripted {
		return ending.Success()
	}
	return o
}

// Commands returns every command seen, in order.
func (r *Recorder) Commands() []executor.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]executor.Command(nil), r.commands...)
}

// Spawned returns the commands that would have started a process.
func (r *Recorder) Spawned() []executor.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]executor.Command(nil), r.spawned...)
}

// Lines returns the command lines seen, in order.
func (r *Recorder) Lines() []string {
	cmds := r.Commands()
	lines := make([]string, len(cmds))
	for i, c := range cmds {
		lines[i] = c.Line()
	}
	return lines
}

var _ executor.Executor = (*Recorder)(nil)
