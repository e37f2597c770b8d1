package ssh

import (
	"errors"
	"io"
	"net"
	"strings"

	"namdrunner/internal/errdefs"
)

// Connection state errors
var (
	ErrConnectInProgress = errors.New("connection attempt already in progress")
	ErrAlreadyConnected  = errors.New("already connected")
	ErrNotConnected      = errors.New("no active session")
	ErrSessionExpired    = errors.New("session expired, reconnect required")
)

// classifyConnectError maps a handshake failure to the error taxonomy.
// Authentication rejections must not be retried; everything else during
// dialing is a transient network condition.
func classifyConnectError(err error) *errdefs.Error {
	msg := strings.ToLower(err.Error())

	if strings.Contains(msg, "unable to authenticate") ||
		strings.Contains(msg, "permission denied") ||
		strings.Contains(msg, "no supported methods remain") {
		return errdefs.Wrap(errdefs.Authentication, err, "authentication failed")
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errdefs.Wrap(errdefs.Timeout, err, "connection timed out")
	}

	return errdefs.Wrap(errdefs.Network, err, "failed to reach cluster")
}

// classifyTransportError maps a failure during an established-session
// operation to the error taxonomy.
func classifyTransportError(err error) *errdefs.Error {
	if isDeadChannel(err) {
		return errdefs.Wrap(errdefs.Network, err, "connection to cluster lost")
	}

	msg := strings.ToLower(err.Error())

	if strings.Contains(msg, "permission denied") {
		return errdefs.Wrap(errdefs.Permission, err, "remote permission denied")
	}

	if strings.Contains(msg, "no such file") || strings.Contains(msg, "file does not exist") {
		return errdefs.Wrap(errdefs.FileSystem, err, "remote file error")
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errdefs.Wrap(errdefs.Timeout, err, "remote operation timed out")
	}

	return errdefs.Wrap(errdefs.Internal, err, "remote operation failed")
}

// sessionFatal reports whether a transport failure invalidates the
// session: a dead channel, or an authorization failure on the
// established connection. Such errors expire the session.
func sessionFatal(err error, classified *errdefs.Error) bool {
	if isDeadChannel(err) {
		return true
	}
	return classified.Kind == errdefs.Authentication || classified.Kind == errdefs.Permission
}

// isDeadChannel reports whether err indicates the underlying channel can
// no longer carry traffic. Such errors expire the session.
func isDeadChannel(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}

	msg := strings.ToLower(err.Error())

	return strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "use of closed network connection") ||
		strings.Contains(msg, "ssh: disconnect")
}
