// Package runcmd turns the user's pre_commands, commands and post_commands
// tables into steps.
package runcmd

import (
	"context"

	"github.com/mensylisir/xmupgrade/common"
	"github.com/mensylisir/xmupgrade/config"
	"github.com/mensylisir/xmupgrade/ending"
	"github.com/mensylisir/xmupgrade/executor"
	"github.com/mensylisir/xmupgrade/runtime"
	"github.com/mensylisir/xmupgrade/step"
	"github.com/mensylisir/xmupgrade/util"
)

// Expander builds one step per configured command, in declaration order.
type Expander struct {
	shell []string
	cfg   *config.Config
}

type Option func(*Expander)

// WithShell sets the interpreter and its flag, e.g. "bash", "-c".
func WithShell(argv ...string) Option {
	return func(e *Expander) { e.shell = argv }
}

// NewExpander runs commands through $SHELL -c on unix (sh when unset) and
// cmd /C on Windows.
func NewExpander(cfg *config.Config, platform common.Platform, opts ...Option) *Expander {
	e := &Expander{cfg: cfg, shell: DefaultShell(platform)}
	for _, opt := range opts {
		opt(e)
	}
	if e.cfg == nil {
		e.cfg = config.Default()
	}
	return e
}

func DefaultShell(platform common.Platform) []string {
	if platform == common.Windows {
		return []string{"cmd", "/C"}
	}
	return []string{util.GetenvOrDefault("SHELL", "sh"), "-c"}
}

func (e *Expander) Pre() []step.Step  { return e.steps(e.cfg.PreCommands) }
func (e *Expander) Main() []step.Step { return e.steps(e.cfg.Commands) }
func (e *Expander) Post() []step.Step { return e.steps(e.cfg.PostCommands) }

// Command is the executor command for one command line.
func (e *Expander) Command(name, line string) executor.Command {
	args := append(append([]string(nil), e.shell[1:]...), line)
	cmd := executor.Cmd(e.shell[0], args...)
	cmd.Step = name
	return cmd
}

func (e *Expander) steps(cmds config.Commands) []step.Step {
	out := make([]step.Step, 0, len(cmds))
	for _, c := range cmds {
		name, line := c.Name, c.Line
		out = append(out, step.Step{
			Name:        name,
			Description: line,
			Run: func(ctx context.Context, rtx *runtime.ExecutionContext) ending.Outcome {
				return rtx.Run(ctx, name, e.Command(name, line))
			},
		})
	}
	return out
}
