package executor

import (
	"context"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/mensylisir/xmupgrade/ending"
	"github.com/mensylisir/xmupgrade/util"
)

// RemoteShell runs a shell command line on another machine. A non-zero exit
// is reported through the exit code, err is reserved for transport failures.
type RemoteShell interface {
	PExec(ctx context.Context, cmd string, stdin io.Reader, stdout, stderr io.Writer) (exitCode int, err error)
}

// RemoteExecutor runs commands through a RemoteShell, streaming output to the
// local terminal.
type RemoteExecutor struct {
	*gate
	shell  RemoteShell
	stdout io.Writer
	stderr io.Writer
}

// NewRemoteExecutor creates an Executor for a connected host. Elevation is
// left to the remote side, so no Elevator should be passed.
func NewRemoteExecutor(shell RemoteShell, mode RunMode, opts ...Option) (*RemoteExecutor, error) {
	if shell == nil {
		return nil, errors.New("remote shell cannot be nil for remote executor")
	}
	return &RemoteExecutor{
		gate:   newGate(mode, opts...),
		shell:  shell,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}, nil
}

func (r *RemoteExecutor) Execute(ctx context.Context, cmd Command) ending.Outcome {
	return r.run(ctx, cmd, r.spawn)
}

func (r *RemoteExecutor) spawn(ctx context.Context, cmd Command) error {
	code, err := r.shell.PExec(ctx, RemoteLine(cmd), r.stdin, r.stdout, r.stderr)
	if err != nil {
		return errors.Wrapf(err, "failed to run %s remotely", cmd.Program)
	}
	if code != 0 {
		return &ProcessError{Program: cmd.Program, ExitCode: code}
	}
	return nil
}

// RemoteLine renders cmd as a single POSIX shell line, including its
// environment and working directory.
func RemoteLine(cmd Command) string {
	line := cmd.Line()
	if len(cmd.Env) > 0 {
		line = "env " + util.ShellJoin(cmd.Env...) + " " + line
	}
	if cmd.Dir != "" {
		line = "cd " + util.ShellQuote(cmd.Dir) + " && " + line
	}
	return line
}
