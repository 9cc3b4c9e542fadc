package config

import (
	"fmt"
	"time"
)

// Config is the user configuration file.
type Config struct {
	Misc        Misc                  `yaml:"misc" toml:"misc"`
	RemoteHosts map[string]RemoteHost `yaml:"remote_hosts" toml:"remote_hosts"`

	// Custom commands keep their declaration order.
	PreCommands  Commands `yaml:"pre_commands" toml:"-"`
	Commands     Commands `yaml:"commands" toml:"-"`
	PostCommands Commands `yaml:"post_commands" toml:"-"`

	// Path is the file the config was read from. Empty means built-in defaults.
	Path string `yaml:"-" toml:"-"`
}

// Misc holds run-wide settings.
type Misc struct {
	// Disable lists step names that are reported as skipped.
	Disable []string `yaml:"disable" toml:"disable"`
	// Only restricts the run when no --only flag is given.
	Only      []string `yaml:"only" toml:"only"`
	AssumeYes bool     `yaml:"assume_yes" toml:"assume_yes"`

	SudoCommand string `yaml:"sudo_command" toml:"sudo_command"`
	PreSudo     bool   `yaml:"pre_sudo" toml:"pre_sudo"`

	RemoteTopgrades    []string `yaml:"remote_topgrades" toml:"remote_topgrades"`
	RemoteTopgradePath string   `yaml:"remote_topgrade_path" toml:"remote_topgrade_path"`
	RemoteOrder        string   `yaml:"remote_order" toml:"remote_order"`
	SSHTransport       string   `yaml:"ssh_transport" toml:"ssh_transport"`
	SSHArguments       string   `yaml:"ssh_arguments" toml:"ssh_arguments"`

	ShowSkipped bool   `yaml:"show_skipped" toml:"show_skipped"`
	LogDir      string `yaml:"log_dir" toml:"log_dir"`
	History     *bool  `yaml:"history" toml:"history"`
	HistoryPath string `yaml:"history_path" toml:"history_path"`
}

// RemoteHost holds connection settings for an entry of remote_topgrades.
type RemoteHost struct {
	Address     string `yaml:"address" toml:"address"`
	Port        int    `yaml:"port" toml:"port"`
	User        string `yaml:"user" toml:"user"`
	Password    string `yaml:"password" toml:"password"`
	KeyFile     string `yaml:"key_file" toml:"key_file"`
	AgentSocket string `yaml:"agent_socket" toml:"agent_socket"`
	Bastion     string `yaml:"bastion" toml:"bastion"`
	BastionPort int    `yaml:"bastion_port" toml:"bastion_port"`
	BastionUser string `yaml:"bastion_user" toml:"bastion_user"`
	// Timeout is the dial timeout in seconds.
	Timeout int `yaml:"timeout" toml:"timeout"`
	// Path overrides misc.remote_topgrade_path for this host.
	Path string `yaml:"path" toml:"path"`
}

func (h RemoteHost) DialTimeout() time.Duration {
	return time.Duration(h.Timeout) * time.Second
}

// Remote dispatch placement relative to pre_commands.
const (
	RemoteBeforePre = "before_pre_commands"
	RemoteAfterPre  = "after_pre_commands"
)

// Remote transports.
const (
	TransportNative  = "native"
	TransportOpenSSH = "openssh"
)

// HistoryEnabled defaults to true when unset.
func (m Misc) HistoryEnabled() bool {
	return m.History == nil || *m.History
}

// ValidationError describes an invalid config value.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config value for %s: %s", e.Field, e.Message)
}
