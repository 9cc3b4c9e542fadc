// Package remote runs xmupgrade on the hosts listed in remote_topgrades.
package remote

import (
	"context"
	"fmt"

	"github.com/mensylisir/xmupgrade/config"
	"github.com/mensylisir/xmupgrade/connector"
	"github.com/mensylisir/xmupgrade/ending"
	"github.com/mensylisir/xmupgrade/logger"
	"github.com/mensylisir/xmupgrade/runtime"
	"github.com/mensylisir/xmupgrade/step"
	"github.com/mensylisir/xmupgrade/util"
)

// StepName is the report name of a host.
func StepName(host string) string {
	return fmt.Sprintf("Remote (%s)", host)
}

// Dispatcher turns the selected hosts into units for the runner.
type Dispatcher struct {
	cfg       *config.Config
	selector  *Selector
	transport Transport
}

type Option func(*Dispatcher)

func WithTransport(t Transport) Option {
	return func(d *Dispatcher) { d.transport = t }
}

func WithSelector(s *Selector) Option {
	return func(d *Dispatcher) { d.selector = s }
}

// NewDispatcher picks the transport from misc.ssh_transport. An invalid
// limit is returned as an error.
func NewDispatcher(cfg *config.Config, limit string, opts ...Option) (*Dispatcher, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	d := &Dispatcher{cfg: cfg}
	for _, opt := range opts {
		opt(d)
	}
	if d.selector == nil {
		s, err := NewSelector(limit)
		if err != nil {
			return nil, err
		}
		d.selector = s
	}
	if d.transport == nil {
		switch cfg.Misc.SSHTransport {
		case config.TransportOpenSSH:
			d.transport = NewOpenSSHTransport(cfg.Misc.SSHArguments)
		default:
			d.transport = NewNativeTransport(nil)
		}
	}
	return d, nil
}

// Hosts returns the selected hosts in declaration order.
func (d *Dispatcher) Hosts() []string {
	return d.selector.Select(d.cfg.Misc.RemoteTopgrades, d.cfg.RemoteHosts)
}

// Steps returns one step per selected host. A dispatched process returns
// none, so remote runs never fan out again.
func (d *Dispatcher) Steps(rtx *runtime.ExecutionContext) []step.Step {
	if rtx.IsRemoteInvocation() {
		if len(d.cfg.Misc.RemoteTopgrades) > 0 {
			rtx.Log.Debugf("Running as %s, not dispatching to remote hosts", rtx.RemotePrefix)
		}
		return nil
	}
	hosts := d.Hosts()
	steps := make([]step.Step, 0, len(hosts))
	for _, name := range hosts {
		steps = append(steps, step.Step{
			Name:        StepName(name),
			Description: "xmupgrade on " + name,
			Run: func(ctx context.Context, rtx *runtime.ExecutionContext) ending.Outcome {
				return d.Dispatch(ctx, rtx, name)
			},
		})
	}
	return steps
}

// Dispatch runs xmupgrade on one host. Connection and invocation errors are
// failures of that host only.
func (d *Dispatcher) Dispatch(ctx context.Context, rtx *runtime.ExecutionContext, name string) ending.Outcome {
	host, err := connector.ResolveHost(name, d.cfg.RemoteHosts)
	if err != nil {
		return ending.Failed(err)
	}
	inv := Invocation{
		Host:   host,
		Binary: util.FirstNonEmpty(host.Path, d.cfg.Misc.RemoteTopgradePath, config.DefaultRemoteTopgradePath),
		Args:   rtx.RemoteArgs(),
		Step:   StepName(name),
	}
	log := logger.Log.Host(rtx.RunID, name)
	log.Debugf("Dispatching over %s", d.transport.Name())
	o := d.transport.Run(ctx, rtx, inv)
	if o.IsFailed() {
		log.Warnf("Remote run failed: %v", o.Err)
	}
	return o
}
