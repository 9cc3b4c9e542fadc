package executor

import (
	"context"
	"os"
	"os/exec"

	"github.com/pkg/errors"

	"github.com/mensylisir/xmupgrade/ending"
)

// LocalExecutor runs commands on this machine with the terminal attached.
type LocalExecutor struct {
	*gate
	spawn spawnFunc
}

// NewLocalExecutor creates an Executor for local commands.
func NewLocalExecutor(mode RunMode, opts ...Option) *LocalExecutor {
	return &LocalExecutor{gate: newGate(mode, opts...), spawn: spawnProcess}
}

// Execute runs cmd according to the executor's RunMode.
func (l *LocalExecutor) Execute(ctx context.Context, cmd Command) ending.Outcome {
	return l.run(ctx, cmd, l.spawn)
}

// spawnProcess runs cmd synchronously. Stdio is inherited so tool output is
// passed through untouched.
func spawnProcess(ctx context.Context, cmd Command) error {
	c := exec.CommandContext(ctx, cmd.Program, cmd.Args...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr

	if err := c.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ProcessError{Program: cmd.Program, ExitCode: exitErr.ExitCode()}
		}
		return errors.Wrapf(err, "failed to run %s", cmd.Program)
	}
	return nil
}
