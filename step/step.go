package step

import (
	"context"
	"strings"

	"golang.org/x/text/cases"

	"github.com/mensylisir/xmupgrade/common"
	"github.com/mensylisir/xmupgrade/ending"
	"github.com/mensylisir/xmupgrade/runtime"
)

// RunFunc performs a step. Errors are expressed through the outcome.
type RunFunc func(ctx context.Context, rtx *runtime.ExecutionContext) ending.Outcome

// Step is one updatable tool. Steps are plain records, defined once in the
// catalog and never changed afterwards.
type Step struct {
	// Name is the identifier used in config keys and --only/--skip.
	Name        string
	Description string
	// Platforms restricts where the step applies. Empty means everywhere.
	Platforms common.PlatformSet
	Run       RunFunc
}

// AppliesTo reports whether the step is meaningful on p.
func (s Step) AppliesTo(p common.Platform) bool {
	return s.Platforms.Contains(p)
}

var folder = cases.Fold()

// NormalizeName folds case and treats "-" like "_", so "Brew-Cask" and
// "brew_cask" name the same step.
func NormalizeName(name string) string {
	return strings.ReplaceAll(folder.String(strings.TrimSpace(name)), "-", "_")
}
