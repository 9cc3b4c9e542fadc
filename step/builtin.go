package step

import (
	"context"

	"github.com/mensylisir/xmupgrade/common"
	"github.com/mensylisir/xmupgrade/ending"
	"github.com/mensylisir/xmupgrade/executor"
	"github.com/mensylisir/xmupgrade/runtime"
)

// CustomCommands is the step id of the user's main-phase commands. The
// runner expands it into one unit per configured command.
const CustomCommands = "custom_commands"

var (
	macOS   = common.PlatformSet{common.Darwin}
	linux   = common.PlatformSet{common.Linux}
	windows = common.PlatformSet{common.Windows}
	brewOS  = common.PlatformSet{common.Darwin, common.Linux}
)

// commandsFunc builds the commands of a step once its binary is found.
type commandsFunc func(rtx *runtime.ExecutionContext, bin string) []executor.Command

// tool is the common adapter shape: skip when binary is missing, otherwise
// run the commands in order.
func tool(name, binary string, build commandsFunc) RunFunc {
	return func(ctx context.Context, rtx *runtime.ExecutionContext) ending.Outcome {
		bin, err := rtx.Require(binary)
		if err != nil {
			return ending.FromError(err)
		}
		return rtx.Run(ctx, name, build(rtx, bin)...)
	}
}

func fixed(args ...[]string) commandsFunc {
	return func(_ *runtime.ExecutionContext, bin string) []executor.Command {
		cmds := make([]executor.Command, len(args))
		for i, a := range args {
			cmds[i] = executor.Cmd(bin, a...)
		}
		return cmds
	}
}

// yes appends flag when the run was started with --yes or assume_yes.
func yes(rtx *runtime.ExecutionContext, args []string, flag ...string) []string {
	if rtx.AssumeYes {
		return append(append([]string(nil), args...), flag...)
	}
	return args
}

// Builtin returns the built-in steps in declaration order. Ordering
// exceptions are applied by BuiltinCatalog.
func Builtin() []Step {
	return []Step{
		{
			Name:        "system",
			Description: "Operating system packages",
			Platforms:   common.PlatformSet{common.Linux, common.Darwin, common.FreeBSD, common.OpenBSD},
			Run:         runSystem,
		},
		{
			Name:        "brew_formula",
			Description: "Homebrew formulae",
			Platforms:   brewOS,
			Run:         tool("brew_formula", "brew", fixed([]string{"update"}, []string{"upgrade", "--formula"})),
		},
		{
			Name:        "brew_cask",
			Description: "Homebrew casks",
			Platforms:   macOS,
			Run:         tool("brew_cask", "brew", fixed([]string{"upgrade", "--cask"})),
		},
		{
			Name:        "mas",
			Description: "Mac App Store applications",
			Platforms:   macOS,
			Run:         tool("mas", "mas", fixed([]string{"upgrade"})),
		},
		{
			Name:      "flatpak",
			Platforms: linux,
			Run: tool("flatpak", "flatpak", func(rtx *runtime.ExecutionContext, bin string) []executor.Command {
				return []executor.Command{executor.Cmd(bin, yes(rtx, []string{"update"}, "--noninteractive")...)}
			}),
		},
		{
			Name:      "snap",
			Platforms: linux,
			Run: tool("snap", "snap", func(_ *runtime.ExecutionContext, bin string) []executor.Command {
				return []executor.Command{executor.Cmd(bin, "refresh").WithSudo()}
			}),
		},
		{
			Name:      "winget",
			Platforms: windows,
			Run: tool("winget", "winget", func(rtx *runtime.ExecutionContext, bin string) []executor.Command {
				args := yes(rtx, []string{"upgrade", "--all"}, "--accept-source-agreements", "--accept-package-agreements")
				return []executor.Command{executor.Cmd(bin, args...)}
			}),
		},
		{
			Name:      "scoop",
			Platforms: windows,
			Run:       tool("scoop", "scoop", fixed([]string{"update"}, []string{"update", "*"})),
		},
		{
			Name:      "chocolatey",
			Platforms: windows,
			Run: tool("chocolatey", "choco", func(rtx *runtime.ExecutionContext, bin string) []executor.Command {
				return []executor.Command{executor.Cmd(bin, yes(rtx, []string{"upgrade", "all"}, "--yes")...).WithSudo()}
			}),
		},
		{
			Name:      "nix",
			Platforms: common.UnixPlatforms,
			Run: tool("nix", "nix-env", func(rtx *runtime.ExecutionContext, bin string) []executor.Command {
				var cmds []executor.Command
				if channel, err := rtx.Require("nix-channel"); err == nil {
					cmds = append(cmds, executor.Cmd(channel, "--update"))
				}
				return append(cmds, executor.Cmd(bin, "--upgrade"))
			}),
		},
		{
			Name:        "cargo",
			Description: "Binaries installed with cargo install",
			Run:         runCargo,
		},
		{
			Name:        "rustup",
			Description: "Rust toolchains",
			Run:         tool("rustup", "rustup", fixed([]string{"update"})),
		},
		{
			Name:        "go",
			Description: "Go binaries via gup",
			Run:         tool("go", "gup", fixed([]string{"update"})),
		},
		{
			Name: "npm",
			Run:  tool("npm", "npm", fixed([]string{"update", "-g"})),
		},
		{
			Name: "pnpm",
			Run:  tool("pnpm", "pnpm", fixed([]string{"update", "-g"})),
		},
		{
			Name: "yarn",
			Run:  tool("yarn", "yarn", fixed([]string{"global", "upgrade"})),
		},
		{
			Name: "pipx",
			Run:  tool("pipx", "pipx", fixed([]string{"upgrade-all"})),
		},
		{
			Name:        "gem",
			Description: "Ruby gems",
			Run:         tool("gem", "gem", fixed([]string{"update"})),
		},
		{
			Name: "conda",
			Run: tool("conda", "conda", func(rtx *runtime.ExecutionContext, bin string) []executor.Command {
				return []executor.Command{executor.Cmd(bin, yes(rtx, []string{"update", "--all"}, "--yes")...)}
			}),
		},
		{
			Name:        "helm",
			Description: "Helm chart repositories",
			Run:         tool("helm", "helm", fixed([]string{"repo", "update"})),
		},
		{
			Name:        "krew",
			Description: "kubectl plugins",
			Run:         tool("krew", "kubectl-krew", fixed([]string{"upgrade"})),
		},
		{
			Name:        "gcloud",
			Description: "Google Cloud SDK components",
			Run: tool("gcloud", "gcloud", func(rtx *runtime.ExecutionContext, bin string) []executor.Command {
				return []executor.Command{executor.Cmd(bin, yes(rtx, []string{"components", "update"}, "--quiet")...)}
			}),
		},
		{
			Name: "deno",
			Run:  tool("deno", "deno", fixed([]string{"upgrade"})),
		},
		{
			Name: "bun",
			Run:  tool("bun", "bun", fixed([]string{"upgrade"})),
		},
		{
			Name:        "tldr",
			Description: "tldr page cache",
			Run:         tool("tldr", "tldr", fixed([]string{"--update"})),
		},
		{
			Name:        "asdf",
			Description: "asdf plugins",
			Run:         tool("asdf", "asdf", fixed([]string{"plugin", "update", "--all"})),
		},
		{
			Name:        CustomCommands,
			Description: "Commands from the commands table",
		},
	}
}

// BuiltinCatalog is the catalog of built-in steps with the default
// ordering exceptions applied.
func BuiltinCatalog() *Catalog {
	return MustCatalog(Builtin(), DefaultOrderingExceptions...)
}

func runCargo(ctx context.Context, rtx *runtime.ExecutionContext) ending.Outcome {
	cargo, err := rtx.Require("cargo")
	if err != nil {
		return ending.FromError(err)
	}
	if _, err := rtx.Require("cargo-install-update"); err != nil {
		rtx.StepLog(common.PhaseMain, "cargo").Debug("cargo-update is not installed")
		return ending.FromError(err)
	}
	return rtx.Run(ctx, "cargo", executor.Cmd(cargo, "install-update", "--git", "--all"))
}
