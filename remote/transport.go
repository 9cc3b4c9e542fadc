package remote

import (
	"context"
	"io"
	"os"
	"path"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/mensylisir/xmupgrade/common"
	"github.com/mensylisir/xmupgrade/connector"
	"github.com/mensylisir/xmupgrade/ending"
	"github.com/mensylisir/xmupgrade/executor"
	"github.com/mensylisir/xmupgrade/logger"
	"github.com/mensylisir/xmupgrade/runtime"
	"github.com/mensylisir/xmupgrade/util"
)

// Invocation is one remote xmupgrade run.
type Invocation struct {
	Host   connector.Host
	Binary string
	Args   []string
	// Step is the report name of the host.
	Step string
}

// Command is `env XMUPGRADE_PREFIX=<host> <binary> <args>`.
func (inv Invocation) Command() executor.Command {
	args := append([]string{common.RemotePrefixEnv + "=" + inv.Host.Name, inv.Binary}, inv.Args...)
	cmd := executor.Cmd("env", args...)
	cmd.Step = inv.Step
	return cmd
}

// Transport carries an invocation to its host.
type Transport interface {
	Name() string
	Run(ctx context.Context, rtx *runtime.ExecutionContext, inv Invocation) ending.Outcome
}

// NativeTransport talks SSH in process. The connection is opened only when
// the command is about to run, so Dry and declined hosts never connect.
type NativeTransport struct {
	dialer connector.Dialer
}

func NewNativeTransport(dialer connector.Dialer) *NativeTransport {
	if dialer == nil {
		dialer = connector.NewDialer()
	}
	return &NativeTransport{dialer: dialer}
}

func (t *NativeTransport) Name() string { return "native" }

func (t *NativeTransport) Run(ctx context.Context, rtx *runtime.ExecutionContext, inv Invocation) ending.Outcome {
	shell := &lazyShell{dialer: t.dialer, host: inv.Host, binary: inv.Binary}
	defer shell.Close()

	opts := []executor.Option{
		executor.WithOutput(rtx.Out),
		executor.WithPrompter(rtx.Prompter),
		executor.WithVerbose(rtx.Verbose),
		executor.WithQuitHandler(rtx.Quit.Raise),
		executor.WithLogger(rtx.Log),
	}
	// A remote run without --yes asks its own questions. The session ends
	// with the command, so a pending read never eats a later answer.
	if rtx.Mode == executor.Damp {
		in := rtx.Input.Session()
		defer in.Close()
		opts = append(opts, executor.WithStdin(in))
	}
	ex, err := executor.NewRemoteExecutor(shell, rtx.Mode, opts...)
	if err != nil {
		return ending.Failed(err)
	}
	return ex.Execute(ctx, inv.Command())
}

// lazyShell dials on first use and checks that an absolute binary path
// exists on the host before running anything.
type lazyShell struct {
	dialer connector.Dialer
	host   connector.Host
	binary string

	mu   sync.Mutex
	conn connector.Connection
}

func (s *lazyShell) connect(ctx context.Context) (connector.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return s.conn, nil
	}
	conn, err := s.dialer.Dial(ctx, s.host)
	if err != nil {
		return nil, err
	}
	if path.IsAbs(s.binary) {
		if _, statErr := conn.StatRemote(ctx, s.binary); statErr != nil {
			_ = conn.Close()
			if errors.Is(statErr, os.ErrNotExist) {
				return nil, errors.Errorf("%s is not installed on %s", s.binary, s.host.Name)
			}
			return nil, statErr
		}
	}
	s.conn = conn
	return conn, nil
}

func (s *lazyShell) PExec(ctx context.Context, cmd string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	conn, err := s.connect(ctx)
	if err != nil {
		return -1, err
	}
	return conn.PExec(ctx, cmd, stdin, stdout, stderr)
}

func (s *lazyShell) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			logger.Log.DebugfHost(s.host.Name, "Closing connection: %v", err)
		}
		s.conn = nil
	}
}

// OpenSSHTransport runs the local ssh binary through the run's executor,
// so RunMode and prompts apply as for any other command.
type OpenSSHTransport struct {
	// Arguments come from misc.ssh_arguments.
	Arguments []string
}

func NewOpenSSHTransport(arguments string) *OpenSSHTransport {
	return &OpenSSHTransport{Arguments: strings.Fields(arguments)}
}

func (t *OpenSSHTransport) Name() string { return "openssh" }

func (t *OpenSSHTransport) Run(ctx context.Context, rtx *runtime.ExecutionContext, inv Invocation) ending.Outcome {
	ssh, err := rtx.Require("ssh")
	if err != nil {
		return ending.FromError(err)
	}
	cmd := executor.Cmd(ssh, t.Argv(inv)...)
	cmd.Step = inv.Step
	return rtx.Executor.Execute(ctx, cmd)
}

// Argv is the ssh argument list for inv, without the program.
func (t *OpenSSHTransport) Argv(inv Invocation) []string {
	h := inv.Host
	args := append([]string(nil), t.Arguments...)
	args = append(args, "-t")
	if h.Port != 0 && h.Port != common.DefaultSSHPort {
		args = append(args, "-p", strconv.Itoa(h.Port))
	}
	if h.KeyFile != "" {
		args = append(args, "-i", h.KeyFile)
	}
	if h.Timeout > 0 {
		args = append(args, "-o", "ConnectTimeout="+strconv.Itoa(int(h.Timeout.Seconds())))
	}
	if h.Bastion != "" {
		jump := h.Bastion
		if h.BastionUser != "" {
			jump = h.BastionUser + "@" + jump
		}
		if h.BastionPort != 0 && h.BastionPort != common.DefaultSSHPort {
			jump += ":" + strconv.Itoa(h.BastionPort)
		}
		args = append(args, "-J", jump)
	}
	return append(args, h.Destination(), util.ShellJoin(inv.Command().Argv()...))
}
