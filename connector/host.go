package connector

import (
	"fmt"
	"net"
	"os"
	"os/user"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/mensylisir/xmupgrade/common"
	"github.com/mensylisir/xmupgrade/config"
)

// Host is one entry of remote_topgrades with its connection settings.
type Host struct {
	// Name is the entry as written in the config. Reports use it.
	Name        string
	Address     string
	Port        int
	User        string
	Password    string
	KeyFile     string
	AgentSocket string
	Bastion     string
	BastionPort int
	BastionUser string
	Timeout     time.Duration
	// Path overrides the remote binary path.
	Path string
}

// ParseHost reads "[user@]host[:port]". IPv6 addresses with a port must be
// bracketed.
func ParseHost(s string) (Host, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Host{}, errors.New("empty host")
	}
	h := Host{Name: s}
	rest := s
	if i := strings.LastIndex(rest, "@"); i >= 0 {
		h.User = rest[:i]
		rest = rest[i+1:]
		if h.User == "" {
			return Host{}, errors.Errorf("empty user in host %q", s)
		}
	}

	if hostPart, portPart, err := net.SplitHostPort(rest); err == nil {
		port, convErr := strconv.Atoi(portPart)
		if convErr != nil || port <= 0 || port > 65535 {
			return Host{}, errors.Errorf("invalid port %q in host %q", portPart, s)
		}
		h.Address, h.Port = hostPart, port
	} else {
		h.Address = strings.TrimSuffix(strings.TrimPrefix(rest, "["), "]")
	}
	if h.Address == "" {
		return Host{}, errors.Errorf("empty address in host %q", s)
	}
	return h, nil
}

// ResolveHost builds the Host for a remote_topgrades entry. Settings from
// remote_hosts.<name> win over what the entry itself says; missing
// credentials fall back to the ssh agent of the invoking user.
func ResolveHost(name string, hosts map[string]config.RemoteHost) (Host, error) {
	h, err := ParseHost(name)
	if err != nil {
		return Host{}, err
	}
	if rh, ok := hosts[name]; ok {
		if rh.Address != "" {
			h.Address = rh.Address
		}
		if rh.Port > 0 {
			h.Port = rh.Port
		}
		if rh.User != "" {
			h.User = rh.User
		}
		h.Password = rh.Password
		h.KeyFile = rh.KeyFile
		h.AgentSocket = rh.AgentSocket
		h.Bastion = rh.Bastion
		h.BastionPort = rh.BastionPort
		h.BastionUser = rh.BastionUser
		h.Timeout = rh.DialTimeout()
		h.Path = rh.Path
	}
	if h.Port == 0 {
		h.Port = common.DefaultSSHPort
	}
	if h.User == "" {
		h.User = currentUser()
	}
	if h.Password == "" && h.KeyFile == "" && h.AgentSocket == "" {
		h.AgentSocket = DefaultAgentSocket
	}
	return h, h.Validate()
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		name := u.Username
		if i := strings.LastIndex(name, `\`); i >= 0 {
			name = name[i+1:]
		}
		return name
	}
	return os.Getenv("USER")
}

func (h Host) Validate() error {
	if h.Address == "" {
		return errors.Errorf("host %s has no address", h.Name)
	}
	if h.Port < 0 || h.Port > 65535 {
		return errors.Errorf("host %s has invalid port %d", h.Name, h.Port)
	}
	return nil
}

// Destination is the target in ssh(1) syntax.
func (h Host) Destination() string {
	if h.User == "" {
		return h.Address
	}
	return h.User + "@" + h.Address
}

func (h Host) String() string {
	return fmt.Sprintf("%s (%s:%d)", h.Name, h.Address, h.Port)
}

// ConnectionConfig converts h to the parameters of NewConnection.
func (h Host) ConnectionConfig() Config {
	return Config{
		Username:    h.User,
		Password:    h.Password,
		Address:     h.Address,
		Port:        h.Port,
		KeyFile:     h.KeyFile,
		AgentSocket: h.AgentSocket,
		Timeout:     h.Timeout,
		Bastion:     h.Bastion,
		BastionPort: h.BastionPort,
		BastionUser: h.BastionUser,
	}
}
