package common

import (
	"io/fs"
)

const (
	AppName = "xmupgrade"

	// RemotePrefixEnv is exported to a remote invocation so it knows it was
	// dispatched and must not fan out again.
	RemotePrefixEnv = "XMUPGRADE_PREFIX"
	ConfigEnv       = "XMUPGRADE_CONFIG"
)

// Log field keys, in display order.
const (
	RunID    = "Run"
	Phase    = "Phase"
	StepName = "Step"
	HostName = "Host"
)

const (
	FileMode0755 fs.FileMode = 0755
	FileMode0644 fs.FileMode = 0644
	FileMode0600 fs.FileMode = 0600
	FileMode0700 fs.FileMode = 0700
)

const (
	DefaultSSHPort = 22
)

// Phase names used in reports and logs.
const (
	PhaseRemote = "remote"
	PhasePre    = "pre"
	PhaseMain   = "main"
	PhasePost   = "post"
)

// Exit codes of the CLI.
const (
	ExitOK     = 0
	ExitFailed = 1
	ExitFatal  = 2
)
