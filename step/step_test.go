package step

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mensylisir/xmupgrade/common"
	"github.com/mensylisir/xmupgrade/ending"
	"github.com/mensylisir/xmupgrade/executor"
	"github.com/mensylisir/xmupgrade/executor/executortest"
	"github.com/mensylisir/xmupgrade/runtime"
)

func noop(context.Context, *runtime.ExecutionContext) ending.Outcome { return ending.Success() }

func xyzCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := NewCatalog([]Step{
		{Name: "x", Run: noop},
		{Name: "y", Run: noop, Platforms: common.PlatformSet{common.Windows}},
		{Name: "z", Run: noop},
	})
	require.NoError(t, err)
	return c
}

func names(plan []Planned) []string {
	out := make([]string, len(plan))
	for i, p := range plan {
		out[i] = p.Step.Name
	}
	return out
}

func TestNewCatalog_OrderingException(t *testing.T) {
	c, err := NewCatalog([]Step{{Name: "cargo"}, {Name: "npm"}, {Name: "rustup"}}, DefaultOrderingExceptions...)
	require.NoError(t, err)
	assert.Equal(t, []string{"rustup", "cargo", "npm"}, c.Names())

	c, err = NewCatalog([]Step{{Name: "rustup"}, {Name: "cargo"}}, DefaultOrderingExceptions...)
	require.NoError(t, err)
	assert.Equal(t, []string{"rustup", "cargo"}, c.Names(), "already ordered")

	_, err = NewCatalog([]Step{{Name: "cargo"}}, DefaultOrderingExceptions...)
	assert.Error(t, err)

	_, err = NewCatalog([]Step{{Name: "npm"}, {Name: "NPM"}})
	assert.Error(t, err)
}

func TestBuiltinCatalog(t *testing.T) {
	c := BuiltinCatalog()
	names := c.Names()
	assert.Less(t, indexOf(names, "rustup"), indexOf(names, "cargo"))
	assert.Equal(t, CustomCommands, names[len(names)-1])

	s, ok := c.Lookup("Brew-Cask")
	require.True(t, ok)
	assert.Equal(t, "brew_cask", s.Name)
	for _, s := range c.Steps() {
		if s.Name != CustomCommands {
			assert.NotNil(t, s.Run, s.Name)
		}
	}
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

func TestPlan_XYZScenario(t *testing.T) {
	c := xyzCatalog(t)
	plan, err := Plan(c, Filter{Platform: common.Linux})
	require.NoError(t, err)
	require.Equal(t, []string{"x", "y", "z"}, names(plan))
	assert.True(t, plan[0].Runnable())
	assert.Equal(t, ending.ReasonNotApplicable, plan[1].SkipReason)
	assert.True(t, plan[2].Runnable())
}

func TestPlan_OnlyZ(t *testing.T) {
	c := xyzCatalog(t)
	plan, err := Plan(c, Filter{Platform: common.Linux, Only: []string{"z"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"z"}, names(plan))
}

func TestPlan_Filters(t *testing.T) {
	c := xyzCatalog(t)
	tests := []struct {
		name        string
		filter      Filter
		wantNames   []string
		wantReasons []string
	}{
		{"skip omits", Filter{Skip: []string{"x"}}, []string{"y", "z"}, []string{"", ""}},
		{"comma list", Filter{Only: []string{"x,z"}}, []string{"x", "z"}, []string{"", ""}},
		{"disabled is reported", Filter{Disabled: []string{"x"}}, []string{"x", "y", "z"}, []string{ending.ReasonDisabled, "", ""}},
		{"cli only overrides disable", Filter{Only: []string{"x"}, Disabled: []string{"x"}}, []string{"x"}, []string{""}},
		{"config only overrides nothing", Filter{ConfigOnly: []string{"x"}, Disabled: []string{"x"}}, []string{"x"}, []string{ending.ReasonDisabled}},
		{"cli only beats config only", Filter{Only: []string{"y"}, ConfigOnly: []string{"x"}}, []string{"y"}, []string{""}},
		{"skip beats only", Filter{Only: []string{"x", "z"}, Skip: []string{"z"}}, []string{"x"}, []string{""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.filter.Platform = common.Windows
			plan, err := Plan(c, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.wantNames, names(plan))
			reasons := make([]string, len(plan))
			for i, p := range plan {
				reasons[i] = p.SkipReason
			}
			assert.Equal(t, tt.wantReasons, reasons)
		})
	}
}

func TestPlan_UnknownName(t *testing.T) {
	c := xyzCatalog(t)
	for _, f := range []Filter{
		{Only: []string{"w"}},
		{Skip: []string{"w"}},
		{Disabled: []string{"w"}},
		{ConfigOnly: []string{"w"}},
	} {
		_, err := Plan(c, f)
		var ue *UnknownStepError
		require.True(t, errors.As(err, &ue))
		assert.Equal(t, "w", ue.Name)
	}
}

func TestPlan_Deterministic(t *testing.T) {
	c := BuiltinCatalog()
	f := Filter{Platform: common.Linux, Skip: []string{"npm"}, Disabled: []string{"gem", "snap"}}
	first, err := Plan(c, f)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := Plan(c, f)
		require.NoError(t, err)
		assert.Equal(t, names(first), names(again))
		for j := range first {
			assert.Equal(t, first[j].SkipReason, again[j].SkipReason)
		}
	}
}

func newContext(t *testing.T, platform common.Platform, rel *common.OSRelease, assumeYes bool, found ...string) (*runtime.ExecutionContext, *executortest.Recorder) {
	t.Helper()
	rec := executortest.NewRecorder(executor.Wet)
	lp := func(name string) (string, error) {
		for _, f := range found {
			if f == name {
				return name, nil
			}
		}
		return "", errors.New("not found")
	}
	rtx := runtime.New(executor.Wet, nil, &runtime.CliArgs{AssumeYes: assumeYes},
		runtime.WithExecutor(rec), runtime.WithLookPath(lp), runtime.WithPlatform(platform),
		runtime.WithOSRelease(rel), runtime.WithOutput(io.Discard))
	return rtx, rec
}

func TestAdapters(t *testing.T) {
	tests := []struct {
		name      string
		step      string
		platform  common.Platform
		rel       *common.OSRelease
		assumeYes bool
		found     []string
		wantLines []string
		wantSudo  bool
		want      ending.Outcome
	}{
		{name: "missing tool", step: "npm", platform: common.Linux, want: ending.Skipped(ending.ReasonNotInstalled)},
		{name: "npm", step: "npm", platform: common.Linux, found: []string{"npm"},
			wantLines: []string{"npm update -g"}, want: ending.Success()},
		{name: "brew formula", step: "brew_formula", platform: common.Darwin, found: []string{"brew"},
			wantLines: []string{"brew update", "brew upgrade --formula"}, want: ending.Success()},
		{name: "cargo needs cargo-update", step: "cargo", platform: common.Linux, found: []string{"cargo"},
			want: ending.Skipped(ending.ReasonNotInstalled)},
		{name: "cargo", step: "cargo", platform: common.Linux, found: []string{"cargo", "cargo-install-update"},
			wantLines: []string{"cargo install-update --git --all"}, want: ending.Success()},
		{name: "apt assume yes", step: "system", platform: common.Linux, rel: &common.OSRelease{ID: "ubuntu", IDLike: []string{"debian"}},
			assumeYes: true, found: []string{"apt-get"},
			wantLines: []string{"apt-get update", "apt-get dist-upgrade -y"}, wantSudo: true, want: ending.Success()},
		{name: "dnf falls back to yum", step: "system", platform: common.Linux, rel: &common.OSRelease{ID: "centos"},
			found: []string{"yum"}, wantLines: []string{"yum upgrade"}, wantSudo: true, want: ending.Success()},
		{name: "known distro without tool", step: "system", platform: common.Linux, rel: &common.OSRelease{ID: "arch"},
			want: ending.Skipped(ending.ReasonNotInstalled)},
		{name: "unknown distro", step: "system", platform: common.Linux, rel: &common.OSRelease{ID: "plan9"},
			want: ending.Skipped(ReasonUnknownDistribution)},
		{name: "nix with channel", step: "nix", platform: common.Linux, found: []string{"nix-env", "nix-channel"},
			wantLines: []string{"nix-channel --update", "nix-env --upgrade"}, want: ending.Success()},
		{name: "winget assume yes", step: "winget", platform: common.Windows, assumeYes: true, found: []string{"winget"},
			wantLines: []string{"winget upgrade --all --accept-source-agreements --accept-package-agreements"}, want: ending.Success()},
	}
	c := BuiltinCatalog()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rtx, rec := newContext(t, tt.platform, tt.rel, tt.assumeYes, tt.found...)
			s, ok := c.Lookup(tt.step)
			require.True(t, ok)

			got := s.Run(context.Background(), rtx)
			assert.Equal(t, tt.want, got)
			if len(tt.wantLines) == 0 {
				assert.Empty(t, rec.Commands())
				return
			}
			assert.Equal(t, tt.wantLines, rec.Lines())
			for _, cmd := range rec.Commands() {
				assert.Equal(t, tt.wantSudo, cmd.Sudo)
				assert.Equal(t, tt.step, cmd.Step)
			}
		})
	}
}

func TestAdapter_StopsOnFailure(t *testing.T) {
	rtx, rec := newContext(t, common.Darwin, nil, false, "brew")
	rec.On("brew", ending.Failed(&executor.ProcessError{Program: "brew", ExitCode: 1}))
	s, _ := BuiltinCatalog().Lookup("brew_formula")

	o := s.Run(context.Background(), rtx)
	assert.True(t, o.IsFailed())
	assert.Len(t, rec.Commands(), 1)
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "brew_cask", NormalizeName(" Brew-Cask "))
	assert.Equal(t, "custom_commands", NormalizeName("CUSTOM_COMMANDS"))
}
