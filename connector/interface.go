package connector

import (
	"context"
	"io"
	"os"
)

// Executor runs shell command lines on a remote host.
type Executor interface {
	PExec(ctx context.Context, cmd string, stdin io.Reader, stdout io.Writer, stderr io.Writer) (exitCode int, err error)
}

type FileOperator interface {
	StatRemote(ctx context.Context, remotePath string) (os.FileInfo, error)
}

// Connection is an open session to a remote host.
type Connection interface {
	Executor
	FileOperator
	Close() error
}
