package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mensylisir/xmupgrade/common"
)

const sampleYAML = `
misc:
  disable: [snap, gcloud]
  assume_yes: true
  sudo_command: doas
  pre_sudo: true
  remote_topgrades: [build-box, "admin@10.0.0.4:2222"]
  ssh_arguments: "-o ConnectTimeout=2"
  history: false
remote_hosts:
  build-box:
    address: 10.0.0.3
    user: admin
    bastion: jump.example.com
pre_commands:
  "Zeta first": "echo z"
  "Alpha second": "echo a"
commands:
  - "Vim": "vim +PlugUpdate +qa"
  - "Emacs": "emacs --batch"
post_commands:
  C: "echo c"
  A: "echo a"
  B: "echo b"
`

const sampleTOML = `
[misc]
disable = ["snap"]
remote_order = "after_pre_commands"
ssh_transport = "openssh"

[remote_hosts.build-box]
port = 2200

[pre_commands]
"Zeta first" = "echo z"
"Alpha second" = "echo a"

[post_commands]
C = "echo c"
A = "echo a"
B = "echo b"
`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoader_YAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", sampleYAML)
	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, []string{"snap", "gcloud"}, cfg.Misc.Disable)
	assert.True(t, cfg.Misc.AssumeYes)
	assert.Equal(t, "doas", cfg.Misc.SudoCommand)
	assert.True(t, cfg.Misc.PreSudo)
	assert.False(t, cfg.Misc.HistoryEnabled())
	assert.Equal(t, []string{"build-box", "admin@10.0.0.4:2222"}, cfg.Misc.RemoteTopgrades)

	assert.Equal(t, []string{"Zeta first", "Alpha second"}, cfg.PreCommands.Names())
	assert.Equal(t, []string{"Vim", "Emacs"}, cfg.Commands.Names())
	assert.Equal(t, []string{"C", "A", "B"}, cfg.PostCommands.Names())
	assert.Equal(t, "echo c", cfg.PostCommands[0].Line)

	host := cfg.RemoteHosts["build-box"]
	assert.Equal(t, common.DefaultSSHPort, host.Port)
	assert.Equal(t, common.DefaultSSHPort, host.BastionPort)
	assert.Equal(t, DefaultDialTimeoutSeconds, host.Timeout)

	assert.Equal(t, DefaultRemoteOrder, cfg.Misc.RemoteOrder)
	assert.Equal(t, DefaultSSHTransport, cfg.Misc.SSHTransport)
	assert.Equal(t, DefaultRemoteTopgradePath, cfg.Misc.RemoteTopgradePath)
}

func TestLoader_TOML(t *testing.T) {
	path := writeConfig(t, "config.toml", sampleTOML)
	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"snap"}, cfg.Misc.Disable)
	assert.Equal(t, RemoteAfterPre, cfg.Misc.RemoteOrder)
	assert.Equal(t, TransportOpenSSH, cfg.Misc.SSHTransport)
	assert.Equal(t, []string{"Zeta first", "Alpha second"}, cfg.PreCommands.Names())
	assert.Equal(t, []string{"C", "A", "B"}, cfg.PostCommands.Names())
	assert.Empty(t, cfg.Commands)
	assert.True(t, cfg.Misc.HistoryEnabled())

	host := cfg.RemoteHosts["build-box"]
	assert.Equal(t, "build-box", host.Address)
	assert.Equal(t, 2200, host.Port)
}

func TestLoader_Defaults(t *testing.T) {
	cfg, err := NewLoader("").Load()
	require.NoError(t, err)
	assert.Equal(t, "", cfg.Path)
	assert.Equal(t, DefaultRemoteOrder, cfg.Misc.RemoteOrder)

	cfg, err = NewLoader(writeConfig(t, "config.yaml", "# only comments\n")).Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.Misc.Disable)
}

func TestLoader_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"bad yaml", "config.yaml", "misc: [unclosed"},
		{"unknown key", "config.yaml", "misc:\n  disabel: [snap]\n"},
		{"bad toml", "config.toml", "[misc\n"},
		{"bad remote order", "config.yaml", "misc:\n  remote_order: sometimes\n"},
		{"bad transport", "config.toml", "[misc]\nssh_transport = \"telnet\"\n"},
		{"empty command", "config.yaml", "commands:\n  Broken: \"\"\n"},
		{"command not string", "config.yaml", "commands:\n  Broken: [a, b]\n"},
		{"commands not mapping", "config.yaml", "commands: just-a-string\n"},
		{"bad port", "config.yaml", "remote_hosts:\n  a:\n    port: 70000\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader(writeConfig(t, tt.file, tt.content)).Load()
			assert.Error(t, err)
		})
	}

	_, err := NewLoader(filepath.Join(t.TempDir(), "missing.yaml")).Load()
	assert.Error(t, err)
}

func TestValidationErrorType(t *testing.T) {
	_, err := Parse([]byte("misc:\n  ssh_transport: telnet\n"), FormatYAML)
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "misc.ssh_transport", ve.Field)
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv(common.ConfigEnv, "")
	t.Setenv("HOME", dir)

	path, err := Discover("")
	require.NoError(t, err)
	assert.Equal(t, "", path)

	appDir := filepath.Join(dir, common.AppName)
	require.NoError(t, os.MkdirAll(appDir, 0755))
	tomlPath := filepath.Join(appDir, "config.toml")
	require.NoError(t, os.WriteFile(tomlPath, nil, 0644))
	path, err = Discover("")
	require.NoError(t, err)
	assert.Equal(t, tomlPath, path)

	yamlPath := filepath.Join(appDir, "config.yaml")
	require.NoError(t, os.WriteFile(yamlPath, nil, 0644))
	path, err = Discover("")
	require.NoError(t, err)
	assert.Equal(t, yamlPath, path)

	explicit := writeConfig(t, "mine.yaml", "")
	path, err = Discover(explicit)
	require.NoError(t, err)
	assert.Equal(t, explicit, path)

	_, err = Discover(filepath.Join(dir, "nope.yaml"))
	assert.Error(t, err)

	t.Setenv(common.ConfigEnv, explicit)
	path, err = Discover("")
	require.NoError(t, err)
	assert.Equal(t, explicit, path)

	t.Setenv(common.ConfigEnv, filepath.Join(dir, "nope.yaml"))
	_, err = Discover("")
	assert.Error(t, err)
}

func TestExampleParses(t *testing.T) {
	cfg, err := Parse([]byte(Example()), FormatYAML)
	require.NoError(t, err)
	assert.Empty(t, cfg.Commands)
}

func TestCommandsMarshalYAMLKeepsOrder(t *testing.T) {
	cmds := Commands{{Name: "b", Line: "echo b"}, {Name: "a", Line: "echo a"}}
	node, err := cmds.MarshalYAML()
	require.NoError(t, err)
	assert.NotNil(t, node)
}

func TestParse_TOMLCommandOrder(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{
			name:    "inline table",
			content: "post_commands = { zeta = \"echo z\", alpha = \"echo a\", mid = \"echo m\" }\n",
			want:    []string{"zeta", "alpha", "mid"},
		},
		{
			name:    "dotted keys",
			content: "post_commands.zeta = \"echo z\"\npost_commands.alpha = \"echo a\"\n",
			want:    []string{"zeta", "alpha"},
		},
		{
			name:    "table",
			content: "[post_commands]\nzeta = \"echo z\"\n\"alpha one\" = \"echo a\"\n",
			want:    []string{"zeta", "alpha one"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.content), FormatTOML)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.PostCommands.Names())
		})
	}
}

func TestOrderedCommands_UnscannedKey(t *testing.T) {
	_, err := orderedCommands("commands", map[string]string{"a": "echo a", "b": "echo b"}, []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"b"`)
}
