package step

import (
	"context"

	"github.com/mensylisir/xmupgrade/common"
	"github.com/mensylisir/xmupgrade/ending"
	"github.com/mensylisir/xmupgrade/executor"
	"github.com/mensylisir/xmupgrade/runtime"
)

// ReasonUnknownDistribution is used when no known package manager matches
// the Linux distribution.
const ReasonUnknownDistribution = "unknown distribution"

func runSystem(ctx context.Context, rtx *runtime.ExecutionContext) ending.Outcome {
	switch rtx.Platform {
	case common.Linux:
		return runLinux(ctx, rtx)
	case common.Darwin:
		return tool("system", "softwareupdate", fixed([]string{"--install", "--all"}))(ctx, rtx)
	case common.FreeBSD:
		return tool("system", "pkg", func(rtx *runtime.ExecutionContext, bin string) []executor.Command {
			return []executor.Command{executor.Cmd(bin, yes(rtx, []string{"upgrade"}, "--yes")...).WithSudo()}
		})(ctx, rtx)
	case common.OpenBSD:
		return tool("system", "pkg_add", fixedSudo([]string{"-u"}))(ctx, rtx)
	}
	return ending.Skipped(ending.ReasonNotApplicable)
}

// distroManager picks the package manager for a distribution.
type distroManager struct {
	ids    []string
	binary string
	build  commandsFunc
}

var distroManagers = []distroManager{
	{ids: []string{"debian", "ubuntu"}, binary: "apt-get", build: func(rtx *runtime.ExecutionContext, bin string) []executor.Command {
		return []executor.Command{
			executor.Cmd(bin, "update").WithSudo(),
			executor.Cmd(bin, yes(rtx, []string{"dist-upgrade"}, "-y")...).WithSudo(),
		}
	}},
	{ids: []string{"fedora", "rhel", "centos"}, binary: "dnf", build: func(rtx *runtime.ExecutionContext, bin string) []executor.Command {
		return []executor.Command{executor.Cmd(bin, yes(rtx, []string{"upgrade"}, "-y")...).WithSudo()}
	}},
	{ids: []string{"fedora", "rhel", "centos"}, binary: "yum", build: func(rtx *runtime.ExecutionContext, bin string) []executor.Command {
		return []executor.Command{executor.Cmd(bin, yes(rtx, []string{"upgrade"}, "-y")...).WithSudo()}
	}},
	{ids: []string{"arch"}, binary: "pacman", build: func(rtx *runtime.ExecutionContext, bin string) []executor.Command {
		return []executor.Command{executor.Cmd(bin, yes(rtx, []string{"-Syu"}, "--noconfirm")...).WithSudo()}
	}},
	{ids: []string{"opensuse", "suse", "sles"}, binary: "zypper", build: func(rtx *runtime.ExecutionContext, bin string) []executor.Command {
		return []executor.Command{
			executor.Cmd(bin, "refresh").WithSudo(),
			executor.Cmd(bin, yes(rtx, []string{"dist-upgrade"}, "-y")...).WithSudo(),
		}
	}},
	{ids: []string{"alpine"}, binary: "apk", build: fixedSudo([]string{"update"}, []string{"upgrade"})},
	{ids: []string{"void"}, binary: "xbps-install", build: func(rtx *runtime.ExecutionContext, bin string) []executor.Command {
		return []executor.Command{executor.Cmd(bin, yes(rtx, []string{"-Su"}, "-y")...).WithSudo()}
	}},
}

func fixedSudo(args ...[]string) commandsFunc {
	return func(rtx *runtime.ExecutionContext, bin string) []executor.Command {
		cmds := fixed(args...)(rtx, bin)
		for i := range cmds {
			cmds[i] = cmds[i].WithSudo()
		}
		return cmds
	}
}

func runLinux(ctx context.Context, rtx *runtime.ExecutionContext) ending.Outcome {
	rel := rtx.OSRelease()
	if rel == nil {
		return ending.Skipped(ReasonUnknownDistribution)
	}
	matched := false
	for _, m := range distroManagers {
		if !matchesAny(rel, m.ids) {
			continue
		}
		matched = true
		if bin, err := rtx.Require(m.binary); err == nil {
			return rtx.Run(ctx, "system", m.build(rtx, bin)...)
		}
	}
	if matched {
		return ending.Skipped(ending.ReasonNotInstalled)
	}
	rtx.StepLog(common.PhaseMain, "system").Debugf("No package manager known for %s", rel.ID)
	return ending.Skipped(ReasonUnknownDistribution)
}

func matchesAny(rel *common.OSRelease, ids []string) bool {
	for _, id := range ids {
		if rel.Is(id) {
			return true
		}
	}
	return false
}
