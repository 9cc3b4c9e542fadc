package connector

import (
	"context"

	"github.com/pkg/errors"
)

// Dialer opens connections to hosts.
type Dialer interface {
	Dial(ctx context.Context, host Host) (Connection, error)
}

type sshDialer struct{}

// NewDialer returns the SSH dialer.
func NewDialer() Dialer {
	return &sshDialer{}
}

// Dial connects to host. ssh.Dial does not take a context, so cancellation
// is only observed before dialing and through the connection timeout.
func (d *sshDialer) Dial(ctx context.Context, host Host) (Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := host.Validate(); err != nil {
		return nil, err
	}
	conn, err := NewConnection(host.ConnectionConfig())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to %s", host.Name)
	}
	return conn, nil
}

var _ Dialer = (*sshDialer)(nil)
