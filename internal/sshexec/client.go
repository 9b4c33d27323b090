// Package sshexec provides the remote-execution layer: an authenticated
// SSH connection, a run-command primitive returning captured output
// streams and an exit code, and file operations built on top of it.
//
// Commands run in fresh sessions over one multiplexed SSH connection.
// A non-zero remote exit code is not a transport error; it is reported
// through Result.ExitCode (or a *CommandError from the higher-level
// helpers) so callers can decide whether to fail soft.
package sshexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/idelchi/remotestat/internal/logging"
)

const (
	// keepaliveInterval is how often keepalive requests are sent.
	keepaliveInterval = 30 * time.Second

	// connectTimeout bounds connection establishment.
	connectTimeout = 30 * time.Second

	// slowCommandThreshold marks commands worth flagging in the logs.
	slowCommandThreshold = 500 * time.Millisecond
)

// Options describes how to reach the remote host.
type Options struct {
	// Host is the hostname or IP address.
	Host string
	// User is the SSH login name.
	User string
	// KeyPath is the private key file, "~" allowed.
	KeyPath string
	// Port is the SSH port.
	Port int
	// Timeout bounds connection establishment. Zero means the default.
	Timeout time.Duration
}

// Result holds the captured output of one remote command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// CommandError reports a remote command that ran but exited non-zero.
type CommandError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("remote command %q exited %d: %s", e.Command, e.ExitCode, strings.TrimSpace(e.Stderr))
}

// Client is an authenticated SSH connection to one remote host.
type Client struct {
	addr   string
	ssh    *ssh.Client
	cancel context.CancelFunc
}

// Dial connects to the host described by opts using public-key
// authentication and starts a keepalive goroutine. The caller must Close
// the client on every exit path.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	signer, err := loadSigner(opts.KeyPath)
	if err != nil {
		return nil, err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = connectTimeout
	}

	cfg := &ssh.ClientConfig{
		User: opts.User,
		Auth: []ssh.AuthMethod{
			ssh.PublicKeys(signer),
		},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}

	addr := net.JoinHostPort(opts.Host, fmt.Sprintf("%d", opts.Port))

	dialer := net.Dialer{Timeout: timeout}

	netConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(netConn, addr, cfg)
	if err != nil {
		netConn.Close()

		return nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}

	keepCtx, keepCancel := context.WithCancel(context.Background())

	client := &Client{
		addr:   addr,
		ssh:    ssh.NewClient(sshConn, chans, reqs),
		cancel: keepCancel,
	}

	go client.keepalive(keepCtx)

	logging.S().Infof("connected to %s@%s", opts.User, addr)

	return client, nil
}

// Addr returns the host:port the client is connected to.
func (c *Client) Addr() string {
	return c.addr
}

// Close stops the keepalive goroutine and closes the SSH connection.
func (c *Client) Close() error {
	c.cancel()

	if err := c.ssh.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("close ssh connection to %s: %w", c.addr, err)
	}

	logging.S().Debugf("disconnected from %s", c.addr)

	return nil
}

// Execute runs cmd in a fresh session and returns its captured output.
// A remote non-zero exit is reported via Result.ExitCode with a nil error;
// only transport-level failures return an error (with ExitCode -1).
func (c *Client) Execute(cmd string) (Result, error) {
	start := time.Now()

	session, err := c.ssh.NewSession()
	if err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("open ssh session: %w", err)
	}
	defer session.Close()

	var outBuf, errBuf bytes.Buffer

	session.Stdout = &outBuf
	session.Stderr = &errBuf

	runErr := session.Run(cmd)
	elapsed := time.Since(start)

	// Truncate long commands to keep logs readable.
	cmdLabel := cmd
	if len(cmdLabel) > 80 {
		cmdLabel = cmdLabel[:80] + "..."
	}

	if elapsed > slowCommandThreshold {
		logging.S().Warnf("slow command (%s): %s", elapsed, cmdLabel)
	} else {
		logging.S().Debugf("executed (%s): %s", elapsed, cmdLabel)
	}

	if runErr != nil {
		var exitErr *ssh.ExitError
		if errors.As(runErr, &exitErr) {
			return Result{
				Stdout:   outBuf.String(),
				Stderr:   errBuf.String(),
				ExitCode: exitErr.ExitStatus(),
			}, nil
		}

		return Result{
			Stdout:   outBuf.String(),
			Stderr:   errBuf.String(),
			ExitCode: -1,
		}, runErr
	}

	return Result{
		Stdout: outBuf.String(),
		Stderr: errBuf.String(),
	}, nil
}

// keepalive sends periodic requests to detect a dead connection early.
func (c *Client) keepalive(ctx context.Context) {
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, _, err := c.ssh.SendRequest("keepalive@openssh.com", true, nil); err != nil {
				logging.S().Warnf("ssh keepalive to %s failed: %v", c.addr, err)

				return
			}
		}
	}
}

// loadSigner reads and parses the private key at path.
func loadSigner(path string) (ssh.Signer, error) {
	path, err := expandPath(path)
	if err != nil {
		return nil, err
	}

	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ssh key %s: %w", path, err)
	}

	signer, err := ssh.ParsePrivateKey(pem)
	if err != nil {
		return nil, fmt.Errorf("parse ssh key %s: %w", path, err)
	}

	return signer, nil
}

// expandPath resolves a leading "~" to the current user's home directory.
func expandPath(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}

	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
