package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mensylisir/xmupgrade/common"
	"github.com/mensylisir/xmupgrade/util"
)

const (
	DefaultRemoteTopgradePath = common.AppName
	DefaultRemoteOrder        = RemoteBeforePre
	DefaultSSHTransport       = TransportNative
	DefaultDialTimeoutSeconds = 30
)

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	SetDefaults(cfg)
	return cfg
}

// SetDefaults fills unset values in place.
func SetDefaults(cfg *Config) {
	if cfg.Misc.RemoteTopgradePath == "" {
		cfg.Misc.RemoteTopgradePath = DefaultRemoteTopgradePath
	}
	if cfg.Misc.RemoteOrder == "" {
		cfg.Misc.RemoteOrder = DefaultRemoteOrder
	}
	if cfg.Misc.SSHTransport == "" {
		cfg.Misc.SSHTransport = DefaultSSHTransport
	}
	cfg.Misc.LogDir = ExpandHome(cfg.Misc.LogDir)
	cfg.Misc.HistoryPath = ExpandHome(cfg.Misc.HistoryPath)
	for name, h := range cfg.RemoteHosts {
		if h.Address == "" {
			h.Address = name
		}
		if h.Port == 0 {
			h.Port = common.DefaultSSHPort
		}
		if h.Timeout == 0 {
			h.Timeout = DefaultDialTimeoutSeconds
		}
		h.KeyFile = ExpandHome(h.KeyFile)
		if h.Bastion != "" && h.BastionPort == 0 {
			h.BastionPort = common.DefaultSSHPort
		}
		cfg.RemoteHosts[name] = h
	}
}

// Validate checks enum values and command tables.
func Validate(cfg *Config) error {
	switch cfg.Misc.RemoteOrder {
	case RemoteBeforePre, RemoteAfterPre:
	default:
		return &ValidationError{Field: "misc.remote_order", Message: fmt.Sprintf("%q is not one of %s, %s", cfg.Misc.RemoteOrder, RemoteBeforePre, RemoteAfterPre)}
	}
	switch cfg.Misc.SSHTransport {
	case TransportNative, TransportOpenSSH:
	default:
		return &ValidationError{Field: "misc.ssh_transport", Message: fmt.Sprintf("%q is not one of %s, %s", cfg.Misc.SSHTransport, TransportNative, TransportOpenSSH)}
	}
	for _, table := range []struct {
		field string
		cmds  Commands
	}{
		{"pre_commands", cfg.PreCommands},
		{"commands", cfg.Commands},
		{"post_commands", cfg.PostCommands},
	} {
		for _, c := range table.cmds {
			if c.Line == "" {
				return &ValidationError{Field: table.field + "." + c.Name, Message: "command is empty"}
			}
		}
	}
	for name, h := range cfg.RemoteHosts {
		if h.Port < 0 || h.Port > 65535 {
			return &ValidationError{Field: "remote_hosts." + name + ".port", Message: fmt.Sprintf("%d is out of range", h.Port)}
		}
	}
	return nil
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := util.Home()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[1:])
}
