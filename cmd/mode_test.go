package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mensylisir/xmupgrade/config"
	"github.com/mensylisir/xmupgrade/executor"
	"github.com/mensylisir/xmupgrade/runtime"
)

func TestResolveMode(t *testing.T) {
	yesCfg := config.Default()
	yesCfg.Misc.AssumeYes = true

	tests := []struct {
		name        string
		args        runtime.CliArgs
		cfg         *config.Config
		interactive bool
		want        executor.RunMode
		wantErr     bool
	}{
		{name: "dry run", args: runtime.CliArgs{DryRun: true}, cfg: config.Default(), want: executor.Dry},
		{name: "dry run beats yes", args: runtime.CliArgs{DryRun: true, AssumeYes: true}, cfg: config.Default(), want: executor.Dry},
		{name: "yes flag", args: runtime.CliArgs{AssumeYes: true}, cfg: config.Default(), want: executor.Wet},
		{name: "assume_yes config", cfg: yesCfg, want: executor.Wet},
		{name: "terminal prompts", cfg: config.Default(), interactive: true, want: executor.Damp},
		{name: "no terminal", cfg: config.Default(), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveMode(&tt.args, tt.cfg, tt.interactive)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoTerminal)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
