package ssh

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"namdrunner/internal/errdefs"
	"namdrunner/internal/secrets"

	"github.com/pkg/sftp"
)

type fakeTransport struct {
	runFn  func(command string) (*CommandResult, error)
	closed bool
}

func (f *fakeTransport) run(command string) (*CommandResult, error) {
	if f.runFn != nil {
		return f.runFn(command)
	}
	return &CommandResult{}, nil
}

func (f *fakeTransport) sftp() (*sftp.Client, error) {
	return nil, errors.New("sftp not available in fake")
}

func (f *fakeTransport) close() error {
	f.closed = true
	return nil
}

func newTestService(conn transport, dialErr error) *Service {
	s := NewService(time.Second, time.Second)
	s.dial = func(host string, port uint, username, password string, timeout time.Duration) (transport, error) {
		if dialErr != nil {
			return nil, dialErr
		}
		return conn, nil
	}
	return s
}

func connectTestService(t *testing.T, conn transport) *Service {
	t.Helper()

	s := newTestService(conn, nil)
	cred := secrets.NewCredential([]byte("hunter2"))
	defer cred.Close()

	if err := s.Connect("login.cluster.edu", 22, "testuser", cred); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	return s
}

func TestConnectPopulatesSession(t *testing.T) {
	s := connectTestService(t, &fakeTransport{})

	if s.State() != StateConnected {
		t.Fatalf("expected Connected, got %s", s.State())
	}

	session := s.Session()
	if session == nil {
		t.Fatal("expected session after connect")
	}
	if session.Host != "login.cluster.edu" || session.Username != "testuser" {
		t.Errorf("unexpected session fields: %+v", session)
	}
	if session.ConnectedAt.IsZero() {
		t.Error("expected ConnectedAt to be set")
	}
}

func TestConnectRejectedWhileConnecting(t *testing.T) {
	release := make(chan struct{})

	s := NewService(time.Second, time.Second)
	s.dial = func(host string, port uint, username, password string, timeout time.Duration) (transport, error) {
		<-release
		return &fakeTransport{}, nil
	}

	cred := secrets.NewCredential([]byte("hunter2"))
	defer cred.Close()

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- s.Connect("login.cluster.edu", 22, "testuser", cred)
	}()

	deadline := time.Now().Add(time.Second)
	for s.State() != StateConnecting {
		if time.Now().After(deadline) {
			t.Fatal("first connect never reached Connecting state")
		}
		time.Sleep(time.Millisecond)
	}

	err := s.Connect("login.cluster.edu", 22, "testuser", cred)
	if !errors.Is(err, ErrConnectInProgress) {
		t.Errorf("expected ErrConnectInProgress, got %v", err)
	}

	close(release)
	if err := <-firstDone; err != nil {
		t.Fatalf("first connect failed: %v", err)
	}
	if s.State() != StateConnected {
		t.Errorf("expected Connected after first connect, got %s", s.State())
	}
}

func TestConnectAuthFailure(t *testing.T) {
	dialErr := errors.New("ssh: handshake failed: ssh: unable to authenticate, attempted methods [none password]")
	s := newTestService(nil, dialErr)

	cred := secrets.NewCredential([]byte("wrong"))
	defer cred.Close()

	err := s.Connect("login.cluster.edu", 22, "testuser", cred)
	if err == nil {
		t.Fatal("expected connect to fail")
	}
	if errdefs.KindOf(err) != errdefs.Authentication {
		t.Errorf("expected Authentication error, got %s", errdefs.KindOf(err))
	}
	if s.State() != StateDisconnected {
		t.Errorf("expected Disconnected after auth failure, got %s", s.State())
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	conn := &fakeTransport{}
	s := connectTestService(t, conn)

	if err := s.Disconnect(); err != nil {
		t.Fatalf("disconnect failed: %v", err)
	}
	if !conn.closed {
		t.Error("expected transport to be closed")
	}
	if s.Session() != nil {
		t.Error("expected session to be dropped")
	}

	if err := s.Disconnect(); err != nil {
		t.Errorf("second disconnect should be a no-op, got %v", err)
	}
}

func TestExecuteWithoutSessionFailsFast(t *testing.T) {
	s := NewService(time.Second, time.Second)

	_, err := s.Execute(context.Background(), "squeue")
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

func TestExecuteTimeoutAbandonsWorker(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	conn := &fakeTransport{
		runFn: func(string) (*CommandResult, error) {
			<-release
			return &CommandResult{}, nil
		},
	}
	s := connectTestService(t, conn)

	_, err := s.ExecuteWithTimeout(context.Background(), "sbatch job.sh", 10*time.Millisecond)
	if errdefs.KindOf(err) != errdefs.Timeout {
		t.Errorf("expected Timeout error, got %v", err)
	}
	if !errdefs.IsRetryable(err) {
		t.Error("expected command timeout to be retryable")
	}
}

func TestDeadChannelExpiresSession(t *testing.T) {
	conn := &fakeTransport{
		runFn: func(string) (*CommandResult, error) {
			return nil, io.EOF
		},
	}
	s := connectTestService(t, conn)

	_, err := s.Execute(context.Background(), "squeue")
	if errdefs.KindOf(err) != errdefs.Network {
		t.Errorf("expected Network error on dead channel, got %v", err)
	}
	if s.State() != StateExpired {
		t.Fatalf("expected Expired state, got %s", s.State())
	}

	// subsequent calls fail fast until the user reconnects
	_, err = s.Execute(context.Background(), "squeue")
	if errdefs.KindOf(err) != errdefs.Authentication {
		t.Errorf("expected fail-fast Authentication error, got %v", err)
	}

	// Expired -> Connecting is the only way back
	cred := secrets.NewCredential([]byte("hunter2"))
	defer cred.Close()
	if err := s.Connect("login.cluster.edu", 22, "testuser", cred); err != nil {
		t.Fatalf("reconnect from Expired failed: %v", err)
	}
	if s.State() != StateConnected {
		t.Errorf("expected Connected after reconnect, got %s", s.State())
	}
}

func TestExecuteReturnsCommandResult(t *testing.T) {
	conn := &fakeTransport{
		runFn: func(command string) (*CommandResult, error) {
			return &CommandResult{Stdout: "Submitted batch job 12345678", ExitCode: 0}, nil
		},
	}
	s := connectTestService(t, conn)

	result, err := s.Execute(context.Background(), "sbatch job.sh")
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if result.Stdout != "Submitted batch job 12345678" {
		t.Errorf("unexpected stdout: %q", result.Stdout)
	}
}

func TestPermissionTransportErrorExpiresSession(t *testing.T) {
	conn := &fakeTransport{
		runFn: func(string) (*CommandResult, error) {
			return nil, errors.New("ssh: rejected: permission denied")
		},
	}
	s := connectTestService(t, conn)

	_, err := s.Execute(context.Background(), "cat job_info.json")
	if errdefs.KindOf(err) != errdefs.Permission {
		t.Errorf("expected Permission error, got %v", err)
	}
	if s.State() != StateExpired {
		t.Fatalf("expected Expired state after permission failure, got %s", s.State())
	}
}

func TestExpireSessionFailsFastAfterwards(t *testing.T) {
	s := connectTestService(t, &fakeTransport{})

	s.ExpireSession(errdefs.New(errdefs.Timeout, "remote command timed out"))

	if s.State() != StateExpired {
		t.Fatalf("expected Expired state, got %s", s.State())
	}

	_, err := s.Execute(context.Background(), "squeue")
	if errdefs.KindOf(err) != errdefs.Authentication {
		t.Errorf("expected fail-fast Authentication error, got %v", err)
	}
}
