package cmd

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/mensylisir/xmupgrade/config"
	"github.com/mensylisir/xmupgrade/executor"
	"github.com/mensylisir/xmupgrade/runtime"
)

// ErrNoTerminal is returned when the run would need to prompt but stdin is
// not a terminal.
var ErrNoTerminal = errors.New("stdin is not a terminal; pass --yes to run without prompts or --dry-run to preview")

// ResolveMode picks the run mode. --dry-run wins over --yes.
func ResolveMode(args *runtime.CliArgs, cfg *config.Config, interactive bool) (executor.RunMode, error) {
	switch {
	case args.DryRun:
		return executor.Dry, nil
	case args.AssumeYes || cfg.Misc.AssumeYes:
		return executor.Wet, nil
	case interactive:
		return executor.Damp, nil
	}
	return executor.Wet, ErrNoTerminal
}

func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}
