package ip

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsLocal(t *testing.T) {
	local := []net.IP{net.ParseIP("192.168.1.20"), net.ParseIP("fe80::1")}
	tests := []struct {
		host string
		want bool
	}{
		{"localhost", true},
		{"LOCALHOST", true},
		{"127.0.0.1", true},
		{"::1", true},
		{"[::1]", true},
		{"192.168.1.20", true},
		{"fe80::1", true},
		{"192.168.1.21", false},
		{"build-box", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			assert.Equal(t, tt.want, IsLocal(tt.host, local))
		})
	}
}

func TestLocalAddresses(t *testing.T) {
	addrs, err := LocalAddresses()
	require.NoError(t, err)
	for _, a := range addrs {
		assert.NotNil(t, a)
	}
}
