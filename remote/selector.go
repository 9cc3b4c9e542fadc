package remote

import (
	"net"
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/mensylisir/xmupgrade/config"
	"github.com/mensylisir/xmupgrade/connector"
	"github.com/mensylisir/xmupgrade/ip"
	"github.com/mensylisir/xmupgrade/util"
)

// Selector decides which remote_topgrades entries are dispatched.
type Selector struct {
	limit    *regexp.Regexp
	hostname string
	local    []net.IP
}

type SelectorOption func(*Selector)

// WithHostname replaces the machine's own short host name.
func WithHostname(name string) SelectorOption {
	return func(s *Selector) { s.hostname = strings.ToLower(name) }
}

// WithLocalAddresses replaces the addresses of the local interfaces.
func WithLocalAddresses(addrs []net.IP) SelectorOption {
	return func(s *Selector) { s.local = addrs }
}

// NewSelector compiles limit (--remote-host-limit). An empty limit selects
// every host.
func NewSelector(limit string, opts ...SelectorOption) (*Selector, error) {
	s := &Selector{hostname: util.Hostname()}
	if limit != "" {
		re, err := regexp.Compile(limit)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid remote host limit %q", limit)
		}
		s.limit = re
	}
	if addrs, err := ip.LocalAddresses(); err == nil {
		s.local = addrs
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Select keeps the order of names and drops entries that do not match the
// limit or that point at this machine.
func (s *Selector) Select(names []string, hosts map[string]config.RemoteHost) []string {
	var out []string
	for _, name := range util.UniqueStrings(names) {
		if s.limit != nil && !s.limit.MatchString(name) {
			continue
		}
		if s.IsSelf(name, hosts) {
			continue
		}
		out = append(out, name)
	}
	return out
}

// IsSelf reports whether the entry resolves to this machine by name or
// address.
func (s *Selector) IsSelf(name string, hosts map[string]config.RemoteHost) bool {
	addr := name
	if h, err := connector.ParseHost(name); err == nil {
		addr = h.Address
	}
	if rh, ok := hosts[name]; ok && rh.Address != "" {
		addr = rh.Address
	}
	if ip.IsLocal(addr, s.local) {
		return true
	}
	if s.hostname == "" || net.ParseIP(strings.Trim(addr, "[]")) != nil {
		return false
	}
	addr = strings.ToLower(addr)
	if addr == s.hostname {
		return true
	}
	short, _, _ := strings.Cut(addr, ".")
	return short == s.hostname
}
