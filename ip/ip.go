// Package ip answers whether an address belongs to this machine.
package ip

import (
	"net"
	"strings"

	"github.com/pkg/errors"
)

// LocalAddresses lists every address bound to a local interface, loopback
// included.
func LocalAddresses() ([]net.IP, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get interface addresses")
	}
	out := make([]net.IP, 0, len(addrs))
	for _, addr := range addrs {
		switch v := addr.(type) {
		case *net.IPNet:
			out = append(out, v.IP)
		case *net.IPAddr:
			out = append(out, v.IP)
		}
	}
	return out, nil
}

// GetHostLocalIP returns a non-loopback IPv4 address, preferring a global
// unicast one.
func GetHostLocalIP() (string, error) {
	addrs, err := LocalAddresses()
	if err != nil {
		return "", err
	}
	var fallback string
	for _, a := range addrs {
		v4 := a.To4()
		if v4 == nil || v4.IsLoopback() {
			continue
		}
		if v4.IsGlobalUnicast() {
			return v4.String(), nil
		}
		if fallback == "" && v4.IsLinkLocalUnicast() {
			fallback = v4.String()
		}
	}
	if fallback != "" {
		return fallback, nil
	}
	return "", errors.New("no suitable local IPv4 address found")
}

// IsLocal reports whether host is a literal address that is bound to this
// machine, or a loopback name. Host names other than "localhost" are not
// resolved.
func IsLocal(host string, local []net.IP) bool {
	host = strings.Trim(host, "[]")
	if strings.EqualFold(host, "localhost") {
		return true
	}
	addr := net.ParseIP(host)
	if addr == nil {
		return false
	}
	if addr.IsLoopback() {
		return true
	}
	for _, l := range local {
		if l.Equal(addr) {
			return true
		}
	}
	return false
}
