package executor

import (
	"context"
	"fmt"

	"github.com/mensylisir/xmupgrade/ending"
	"github.com/mensylisir/xmupgrade/util"
)

// RunMode decides whether commands are spawned, printed or confirmed first.
type RunMode int

const (
	// Wet runs commands.
	Wet RunMode = iota
	// Dry prints commands and never spawns anything.
	Dry
	// Damp prints each command and asks before running it.
	Damp
)

func (m RunMode) String() string {
	switch m {
	case Wet:
		return "wet"
	case Dry:
		return "dry"
	case Damp:
		return "damp"
	default:
		return fmt.Sprintf("RunMode(%d)", int(m))
	}
}

// Elevation holds the options passed to the privilege wrapper.
type Elevation struct {
	// LoginShell runs the command through the target user's login shell.
	LoginShell bool
	// PreserveEnv keeps the whole environment. PreserveEnvList keeps only
	// the named variables.
	PreserveEnv     bool
	PreserveEnvList []string
	// SetHome points HOME at the target user's home.
	SetHome bool
	// User is the target user. Empty means root.
	User string
}

// Command is a single program invocation issued by a step.
type Command struct {
	Program string
	Args    []string
	Dir     string
	// Env is appended to the inherited environment, in KEY=VALUE form.
	Env []string

	Sudo      bool
	Elevation Elevation

	// NoConfirm skips the Damp prompt. Used for credential invalidation.
	NoConfirm bool
	// Step names the owner for headers and logs.
	Step string
}

// Cmd builds a Command for program and args.
func Cmd(program string, args ...string) Command {
	return Command{Program: program, Args: args}
}

// WithSudo returns a copy of c that requests elevation.
func (c Command) WithSudo() Command {
	c.Sudo = true
	return c
}

// In returns a copy of c that runs in dir.
func (c Command) In(dir string) Command {
	c.Dir = dir
	return c
}

// WithEnv returns a copy of c with extra KEY=VALUE pairs.
func (c Command) WithEnv(kv ...string) Command {
	c.Env = append(append([]string(nil), c.Env...), kv...)
	return c
}

// Argv is the program followed by its arguments.
func (c Command) Argv() []string {
	return append([]string{c.Program}, c.Args...)
}

// Line is the shell-quoted command line.
func (c Command) Line() string {
	return util.ShellJoin(c.Argv()...)
}

func (c Command) String() string {
	line := c.Line()
	if c.Dir != "" {
		line += " in " + c.Dir
	}
	return line
}

// Executor runs commands according to a RunMode.
type Executor interface {
	Mode() RunMode
	// Execute runs cmd to completion. Output goes straight to the terminal.
	Execute(ctx context.Context, cmd Command) ending.Outcome
}

// Elevator turns a command into an elevated one.
type Elevator interface {
	// Available reports whether commands can be elevated at all.
	Available() bool
	// Wrap prefixes cmd with the privilege mechanism.
	Wrap(cmd Command) (Command, error)
	// NoteUse records that an elevated command actually ran.
	NoteUse()
}

// Answer is a reply to a Damp prompt.
type Answer int

const (
	AnswerNo Answer = iota
	AnswerYes
	AnswerQuit
)

// Prompter asks the user to confirm a command.
type Prompter interface {
	Confirm(prompt string) Answer
}

// ProcessError is returned when a command exits non-zero.
type ProcessError struct {
	// Program is the program the step asked for, before elevation.
	Program  string
	ExitCode int
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("%s exited with code %d", e.Program, e.ExitCode)
}
