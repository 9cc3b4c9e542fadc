package connector

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"

	"github.com/mensylisir/xmupgrade/common"
	"github.com/mensylisir/xmupgrade/logger"
)

// Config holds the parameters of one SSH connection.
type Config struct {
	Username   string
	Password   string
	Address    string
	Port       int
	PrivateKey string
	KeyFile    string
	// AgentSocket is a unix socket path, or "env:NAME" to read the path from
	// an environment variable.
	AgentSocket string
	Timeout     time.Duration
	Bastion     string
	BastionPort int
	BastionUser string
}

const socketEnvPrefix = "env:"

// DefaultAgentSocket points at the agent of the invoking user.
const DefaultAgentSocket = socketEnvPrefix + "SSH_AUTH_SOCK"

var _ Connection = (*connection)(nil)

type connection struct {
	mu         sync.Mutex
	sftpclient *sftp.Client
	sshclient  *ssh.Client
	config     Config

	connCtx    context.Context
	connCancel context.CancelFunc

	agentSocketConn net.Conn
}

// NewConnection dials the host, through the bastion when one is set, and
// opens an sftp subsystem on the same client.
func NewConnection(cfg Config) (Connection, error) {
	var err error
	cfg, err = validateConfig(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to validate ssh connection parameters")
	}

	authMethods := make([]ssh.AuthMethod, 0)
	conn := &connection{config: cfg}

	if len(cfg.Password) > 0 {
		authMethods = append(authMethods, ssh.Password(cfg.Password))
	}

	if len(cfg.PrivateKey) > 0 {
		signer, parseErr := ssh.ParsePrivateKey([]byte(cfg.PrivateKey))
		if parseErr != nil {
			return nil, errors.Wrap(parseErr, "the given SSH key could not be parsed")
		}
		authMethods = append(authMethods, ssh.PublicKeys(signer))
	}

	if len(cfg.AgentSocket) > 0 {
		addr := agentSocketAddress(cfg.AgentSocket)

		var dialErr error
		conn.agentSocketConn, dialErr = net.Dial("unix", addr)
		if dialErr != nil {
			return nil, errors.Wrapf(dialErr, "could not open SSH agent socket %q", addr)
		}

		agentClient := agent.NewClient(conn.agentSocketConn)
		signers, signersErr := agentClient.Signers()
		if signersErr != nil {
			conn.cleanupAgentSocket()
			return nil, errors.Wrap(signersErr, "error when creating signer for SSH agent")
		}
		authMethods = append(authMethods, ssh.PublicKeys(signers...))
	}

	sshClientConfig := &ssh.ClientConfig{
		User:            cfg.Username,
		Timeout:         cfg.Timeout,
		Auth:            authMethods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}

	targetHost := cfg.Address
	targetPort := cfg.Port
	if cfg.Bastion != "" {
		targetHost = cfg.Bastion
		targetPort = cfg.BastionPort
		sshClientConfig.User = cfg.BastionUser
	}
	endpoint := net.JoinHostPort(targetHost, strconv.Itoa(targetPort))

	client, err := ssh.Dial("tcp", endpoint, sshClientConfig)
	if err != nil {
		conn.cleanupAgentSocket()
		return nil, errors.Wrapf(err, "could not establish connection to %s", endpoint)
	}

	if cfg.Bastion != "" {
		endpointBehindBastion := net.JoinHostPort(cfg.Address, strconv.Itoa(cfg.Port))
		connToTarget, dialErr := client.Dial("tcp", endpointBehindBastion)
		if dialErr != nil {
			_ = client.Close()
			conn.cleanupAgentSocket()
			return nil, errors.Wrapf(dialErr, "could not establish connection to target %s via bastion", endpointBehindBastion)
		}

		targetSSHConfig := &ssh.ClientConfig{
			User:            cfg.Username,
			Timeout:         cfg.Timeout,
			Auth:            authMethods,
			HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		}
		ncc, chans, reqs, clientConnErr := ssh.NewClientConn(connToTarget, endpointBehindBastion, targetSSHConfig)
		if clientConnErr != nil {
			_ = connToTarget.Close()
			_ = client.Close()
			conn.cleanupAgentSocket()
			return nil, errors.Wrapf(clientConnErr, "failed to create SSH client connection to %s via bastion", endpointBehindBastion)
		}
		client = ssh.NewClient(ncc, chans, reqs)
	}

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		_ = client.Close()
		conn.cleanupAgentSocket()
		return nil, errors.Wrap(err, "failed to create SFTP client")
	}

	conn.sshclient = client
	conn.sftpclient = sftpClient
	conn.connCtx, conn.connCancel = context.WithCancel(context.Background())
	return conn, nil
}

func agentSocketAddress(socket string) string {
	if !strings.HasPrefix(socket, socketEnvPrefix) {
		return socket
	}
	envName := strings.TrimPrefix(socket, socketEnvPrefix)
	if envAddr := os.Getenv(envName); len(envAddr) > 0 {
		return envAddr
	}
	logger.Log.Warnf("SSH agent environment variable %s is not set, using %s as the socket path", envName, socket)
	return socket
}

func (c *connection) cleanupAgentSocket() {
	if c.agentSocketConn != nil {
		_ = c.agentSocketConn.Close()
		c.agentSocketConn = nil
	}
}

func validateConfig(cfg Config) (Config, error) {
	if len(cfg.Username) == 0 {
		return cfg, errors.New("no username specified for SSH connection")
	}
	if len(cfg.Address) == 0 {
		return cfg, errors.New("no address specified for SSH connection")
	}
	if len(cfg.Password) == 0 && len(cfg.PrivateKey) == 0 && len(cfg.KeyFile) == 0 && len(cfg.AgentSocket) == 0 {
		return cfg, errors.New("must specify at least one of password, private key, keyfile or agent socket")
	}

	if len(cfg.PrivateKey) == 0 && len(cfg.KeyFile) > 0 {
		content, err := os.ReadFile(cfg.KeyFile)
		if err != nil {
			return cfg, errors.Wrapf(err, "failed to read keyfile %q", cfg.KeyFile)
		}
		cfg.PrivateKey = string(content)
	}

	if cfg.Port <= 0 {
		cfg.Port = common.DefaultSSHPort
	}
	if cfg.Bastion != "" {
		if cfg.BastionPort <= 0 {
			cfg.BastionPort = common.DefaultSSHPort
		}
		if cfg.BastionUser == "" {
			cfg.BastionUser = cfg.Username
		}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return cfg, nil
}

func (c *connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sshclient == nil && c.sftpclient == nil && c.agentSocketConn == nil {
		return nil
	}

	if c.connCancel != nil {
		c.connCancel()
	}

	var combinedErrors []string
	if c.sftpclient != nil {
		if err := c.sftpclient.Close(); err != nil {
			combinedErrors = append(combinedErrors, fmt.Sprintf("sftp close error: %v", err))
		}
		c.sftpclient = nil
	}
	if c.sshclient != nil {
		if err := c.sshclient.Close(); err != nil {
			combinedErrors = append(combinedErrors, fmt.Sprintf("ssh close error: %v", err))
		}
		c.sshclient = nil
	}
	if c.agentSocketConn != nil {
		if err := c.agentSocketConn.Close(); err != nil {
			combinedErrors = append(combinedErrors, fmt.Sprintf("agent socket close error: %v", err))
		}
		c.agentSocketConn = nil
	}
	if len(combinedErrors) > 0 {
		return errors.New(strings.Join(combinedErrors, "; "))
	}
	return nil
}

func (c *connection) newSession(ctx context.Context) (*ssh.Session, error) {
	c.mu.Lock()
	client := c.sshclient
	connCtx := c.connCtx
	c.mu.Unlock()

	if client == nil {
		return nil, errors.New("ssh connection is closed or not initialized")
	}

	opCtx, opCancel := context.WithCancel(ctx)
	defer opCancel()
	go func() {
		select {
		case <-connCtx.Done():
			opCancel()
		case <-opCtx.Done():
		}
	}()

	type result struct {
		sess *ssh.Session
		err  error
	}
	sessionDone := make(chan result, 1)
	go func() {
		s, e := client.NewSession()
		sessionDone <- result{s, e}
	}()

	var sess *ssh.Session
	select {
	case <-opCtx.Done():
		go func() {
			if r := <-sessionDone; r.sess != nil {
				_ = r.sess.Close()
			}
		}()
		return nil, errors.Wrap(opCtx.Err(), "failed to create ssh session (context cancelled)")
	case r := <-sessionDone:
		if r.err != nil {
			return nil, errors.Wrap(r.err, "failed to create ssh session")
		}
		sess = r.sess
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          0,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if ptyErr := sess.RequestPty("xterm", 50, 100, modes); ptyErr != nil {
		_ = sess.Close()
		return nil, errors.Wrap(ptyErr, "failed to request PTY")
	}
	return sess, nil
}

// PExec streams the output of cmd to stdout and stderr. A non-zero exit is
// returned as exitCode with a nil error; err is reserved for transport
// failures and cancellation. When the connection has a password, a sudo
// password prompt on the remote side is answered once.
func (c *connection) PExec(ctx context.Context, cmd string, stdin io.Reader, stdout io.Writer, stderr io.Writer) (exitCode int, err error) {
	sess, err := c.newSession(ctx)
	if err != nil {
		return -1, errors.Wrap(err, "failed to create session for PExec")
	}
	defer sess.Close()

	if stdout == nil {
		stdout = io.Discard
	}
	sess.Stderr = stderr
	sessionStdoutPipe, pipeErr := sess.StdoutPipe()
	if pipeErr != nil {
		return -1, errors.Wrap(pipeErr, "failed to get stdout pipe for PExec")
	}
	sessionStdinPipe, pipeErr := sess.StdinPipe()
	if pipeErr != nil {
		return -1, errors.Wrap(pipeErr, "failed to get stdin pipe for PExec")
	}

	if err = sess.Start(strings.TrimSpace(cmd)); err != nil {
		_ = sessionStdinPipe.Close()
		return -1, errors.Wrapf(err, "failed to start command: %s", cmd)
	}

	var stdinMu sync.Mutex
	if stdin != nil {
		go func() {
			buf := make([]byte, 1024)
			for {
				n, readErr := stdin.Read(buf)
				if n > 0 {
					stdinMu.Lock()
					_, writeErr := sessionStdinPipe.Write(buf[:n])
					stdinMu.Unlock()
					if writeErr != nil {
						return
					}
				}
				if readErr != nil {
					return
				}
			}
		}()
	}

	var wg sync.WaitGroup
	var streamErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		watcher := newPromptWatcher(c.config.Username, c.config.Password)
		reader := bufio.NewReader(sessionStdoutPipe)
		for {
			b, readErr := reader.ReadByte()
			if readErr != nil {
				if readErr != io.EOF {
					streamErr = errors.Wrap(readErr, "error reading remote stdout")
				}
				return
			}
			if _, writeErr := stdout.Write([]byte{b}); writeErr != nil {
				streamErr = errors.Wrap(writeErr, "error writing remote output")
				return
			}
			if watcher.feed(b) {
				logger.Log.Debugf("Password prompt detected for %q, sending password", cmd)
				stdinMu.Lock()
				_, writeErr := sessionStdinPipe.Write([]byte(c.config.Password + "\n"))
				stdinMu.Unlock()
				if writeErr != nil {
					streamErr = errors.Wrap(writeErr, "failed to answer password prompt")
				}
			}
		}
	}()

	waitDone := make(chan error, 1)
	go func() {
		waitDone <- sess.Wait()
	}()

	select {
	case <-ctx.Done():
		_ = sess.Signal(ssh.SIGINT)
		select {
		case <-time.After(250 * time.Millisecond):
		case <-waitDone:
		}
		_ = sess.Close()
		wg.Wait()
		return -1, errors.Wrap(ctx.Err(), "remote command cancelled")

	case err = <-waitDone:
		wg.Wait()
		_ = sessionStdinPipe.Close()
		if streamErr != nil {
			logger.Log.Warnf("Output handling for %q failed: %v", cmd, streamErr)
		}
		if err == nil {
			return 0, nil
		}
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitStatus(), nil
		}
		return -1, errors.Wrapf(err, "remote command %q did not complete", cmd)
	}
}

// promptWatcher spots a password prompt in a byte stream and fires once.
type promptWatcher struct {
	patterns []string
	password string
	line     []byte
	fired    bool
}

func newPromptWatcher(user, password string) *promptWatcher {
	return &promptWatcher{
		patterns: []string{fmt.Sprintf("[sudo] password for %s:", user), "Password:"},
		password: password,
	}
}

func (w *promptWatcher) feed(b byte) bool {
	if w.fired || w.password == "" {
		return false
	}
	if b == '\n' {
		w.line = w.line[:0]
		return false
	}
	w.line = append(w.line, b)
	line := string(w.line)
	if !strings.HasSuffix(line, ": ") {
		return false
	}
	for _, p := range w.patterns {
		if strings.HasPrefix(line, p) {
			w.fired = true
			w.line = w.line[:0]
			return true
		}
	}
	return false
}

// StatRemote stats a remote path over sftp. A missing path is reported as
// os.ErrNotExist.
func (c *connection) StatRemote(ctx context.Context, remotePath string) (os.FileInfo, error) {
	c.mu.Lock()
	sftpClient := c.sftpclient
	c.mu.Unlock()
	if sftpClient == nil {
		return nil, errors.New("sftp client is not initialized or connection is closed")
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := sftpClient.Stat(remotePath)
	if err != nil {
		if os.IsNotExist(err) || strings.Contains(strings.ToLower(err.Error()), "no such file") {
			return nil, os.ErrNotExist
		}
		return nil, errors.Wrapf(err, "sftp: failed to stat remote path %s", remotePath)
	}
	return info, nil
}
