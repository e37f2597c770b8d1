// Package ssh owns the single authenticated cluster connection and runs
// remote commands through it. The underlying transport is synchronous, so
// every remote call is offloaded to a worker goroutine and bounded by a
// per-call timeout; access to the channel is serialized so concurrent
// operations never interleave bytes on the wire.
package ssh

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"namdrunner/internal/errdefs"
	"namdrunner/internal/logger"
	"namdrunner/internal/secrets"

	"github.com/melbahja/goph"
	"github.com/pkg/sftp"
	cryptossh "golang.org/x/crypto/ssh"
)

const connectTestCommand = "echo 'connection test'"

// transport is the minimal surface the Service needs from an established
// connection. Substituted in tests.
type transport interface {
	run(command string) (*CommandResult, error)
	sftp() (*sftp.Client, error)
	close() error
}

type dialFunc func(host string, port uint, username, password string, timeout time.Duration) (transport, error)

// Service is the connection manager. It holds at most one Session and
// serializes all cluster-facing traffic over it.
type Service struct {
	mu          sync.Mutex // guards state, session, conn, expireCause
	opMu        sync.Mutex // serializes remote operations on the channel
	state       State
	session     *Session
	conn        transport
	expireCause error

	connectTimeout time.Duration
	commandTimeout time.Duration

	dial dialFunc
}

func NewService(connectTimeout, commandTimeout time.Duration) *Service {
	return &Service{
		state:          StateDisconnected,
		connectTimeout: connectTimeout,
		commandTimeout: commandTimeout,
		dial:           dialCluster,
	}
}

// State returns the current connection state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Session returns a snapshot of the active session, or nil when there is
// none.
func (s *Service) Session() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil
	}

	snapshot := *s.session
	snapshot.State = s.state
	return &snapshot
}

// Connect authenticates against the cluster. Allowed only from the
// Disconnected or Expired states; a connect attempt while another one is
// in flight is rejected, not queued. The credential is read only inside
// its scoped accessor for the duration of the handshake and never
// retained.
func (s *Service) Connect(host string, port uint, username string, cred *secrets.Credential) error {
	s.mu.Lock()
	switch s.state {
	case StateConnecting:
		s.mu.Unlock()
		return errdefs.Wrap(errdefs.Internal, ErrConnectInProgress, "connect rejected")
	case StateConnected:
		s.mu.Unlock()
		return errdefs.Wrap(errdefs.Internal, ErrAlreadyConnected, "connect rejected")
	}
	s.state = StateConnecting
	s.mu.Unlock()

	var conn transport
	err := cred.Use(func(secret string) error {
		c, dialErr := s.dial(host, port, username, secret, s.connectTimeout)
		if dialErr != nil {
			return dialErr
		}
		conn = c
		return nil
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.state = StateDisconnected
		if errors.Is(err, secrets.ErrCredentialClosed) {
			return errdefs.Wrap(errdefs.Internal, err, "credential no longer available")
		}
		return classifyConnectError(err)
	}

	if s.state != StateConnecting {
		// Disconnect was called while the handshake was in flight.
		_ = conn.close()
		return errdefs.New(errdefs.Internal, "connect aborted")
	}

	s.conn = conn
	s.expireCause = nil
	s.session = &Session{
		State:       StateConnected,
		Host:        host,
		Port:        port,
		Username:    username,
		ConnectedAt: time.Now(),
	}
	s.state = StateConnected

	logger.Info("connected to %s as %s", host, username)
	return nil
}

// Disconnect tears down the channel and drops the session. Always
// allowed; calling it without an active session is a no-op.
func (s *Service) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		if err := s.conn.close(); err != nil {
			logger.Warn("error closing connection: %v", err)
		}
	}

	s.conn = nil
	s.session = nil
	s.expireCause = nil
	s.state = StateDisconnected
	return nil
}

// Execute runs one remote command with the default per-command timeout.
func (s *Service) Execute(ctx context.Context, command string) (*CommandResult, error) {
	return s.ExecuteWithTimeout(ctx, command, s.commandTimeout)
}

// ExecuteWithTimeout runs one remote command on a worker goroutine. When
// the timeout elapses the worker is abandoned and a Timeout error is
// returned; the in-flight remote command may still complete server-side.
func (s *Service) ExecuteWithTimeout(ctx context.Context, command string, timeout time.Duration) (*CommandResult, error) {
	conn, err := s.activeConn()
	if err != nil {
		return nil, err
	}

	type outcome struct {
		result *CommandResult
		err    error
	}

	done := make(chan outcome, 1)

	go func() {
		// The abandoned worker keeps holding the channel lock until the
		// remote side answers, so a later operation still cannot
		// interleave with it.
		s.opMu.Lock()
		defer s.opMu.Unlock()

		result, runErr := conn.run(command)
		done <- outcome{result: result, err: runErr}
	}()

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, errdefs.Wrap(errdefs.Timeout, ctx.Err(), "remote command timed out")
		}
		return nil, errdefs.Wrap(errdefs.Internal, ctx.Err(), "remote command abandoned")
	case <-time.After(timeout):
		return nil, errdefs.New(errdefs.Timeout, "remote command timed out after %s", timeout)
	case out := <-done:
		if out.err != nil {
			classified := classifyTransportError(out.err)
			if sessionFatal(out.err, classified) {
				s.expire(classified)
			}
			return nil, classified
		}
		return out.result, nil
	}
}

// WithSFTP acquires exclusive channel access, opens an SFTP subsystem
// session and hands it to fn. The subsystem is closed when fn returns.
func (s *Service) WithSFTP(fn func(client *sftp.Client) error) error {
	conn, err := s.activeConn()
	if err != nil {
		return err
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	client, err := conn.sftp()
	if err != nil {
		classified := classifyTransportError(err)
		if sessionFatal(err, classified) {
			s.expire(classified)
		}
		return classified
	}
	defer client.Close()

	if err := fn(client); err != nil {
		if isDeadChannel(err) {
			s.expire(classifyTransportError(err))
		}
		return err
	}

	return nil
}

// activeConn returns the transport when the session is usable, or the
// appropriate fail-fast error otherwise.
func (s *Service) activeConn() (transport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateExpired:
		return nil, errdefs.Wrap(errdefs.Authentication, s.expireCause, "session expired, reconnect required")
	case StateDisconnected, StateConnecting:
		return nil, errdefs.Wrap(errdefs.Internal, ErrNotConnected, "cannot reach cluster")
	}

	return s.conn, nil
}

// ExpireSession marks the session dead after a failure detected above
// the transport layer, e.g. when retries against the cluster exhaust on
// timeouts. No-op unless currently Connected.
func (s *Service) ExpireSession(cause error) {
	s.expire(cause)
}

// expire marks the session dead after a detected channel failure. The
// session stays around in the Expired state so callers get a consistent
// fail-fast error until the user reconnects.
func (s *Service) expire(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateConnected {
		return
	}

	logger.Warn("session expired: %v", cause)
	s.state = StateExpired
	s.expireCause = cause

	if s.conn != nil {
		_ = s.conn.close()
		s.conn = nil
	}
}

// gophTransport adapts a goph client to the transport interface.
type gophTransport struct {
	client *goph.Client
}

func (t *gophTransport) run(command string) (*CommandResult, error) {
	cmd, err := t.client.Command(command)
	if err != nil {
		return nil, err
	}

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()

	result := &CommandResult{
		Stdout: strings.TrimSpace(stdout.String()),
		Stderr: strings.TrimSpace(stderr.String()),
	}

	if err != nil {
		var exitErr *cryptossh.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitStatus()
			return result, nil
		}
		return nil, err
	}

	return result, nil
}

func (t *gophTransport) sftp() (*sftp.Client, error) {
	return t.client.NewSftp()
}

func (t *gophTransport) close() error {
	return t.client.Close()
}

// dialCluster establishes the SSH connection with password-only auth and
// verifies it with a throwaway test command.
func dialCluster(host string, port uint, username, password string, timeout time.Duration) (transport, error) {
	sshConfig := &cryptossh.ClientConfig{
		User:            username,
		Auth:            []cryptossh.AuthMethod{cryptossh.Password(password)},
		HostKeyCallback: cryptossh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}

	hostPort := net.JoinHostPort(host, fmt.Sprintf("%d", port))

	conn, err := net.DialTimeout("tcp", hostPort, sshConfig.Timeout)
	if err != nil {
		return nil, err
	}

	sshConn, chans, reqs, err := cryptossh.NewClientConn(conn, hostPort, sshConfig)
	if err != nil {
		conn.Close()
		return nil, err
	}

	client := cryptossh.NewClient(sshConn, chans, reqs)

	session, err := client.NewSession()
	if err != nil {
		client.Close()
		return nil, err
	}
	defer session.Close()

	if err := session.Run(connectTestCommand); err != nil {
		client.Close()
		return nil, err
	}

	return &gophTransport{client: &goph.Client{Client: client}}, nil
}
