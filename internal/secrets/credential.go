// Package secrets holds the cluster password in memory for the shortest
// possible window. The secret lives in a single byte buffer that is
// overwritten on Close; access happens only through a scoped callback that
// borrows a string view over the same bytes, so no plaintext copy outlives
// the authentication call.
package secrets

import (
	"errors"
	"sync"
	"unsafe"
)

var ErrCredentialClosed = errors.New("credential has been destroyed")

// Credential wraps the authentication secret. It is never serialized,
// logged, or stored; callers obtain one right before connecting and close
// it as soon as the handshake finishes.
type Credential struct {
	mu     sync.Mutex
	buf    []byte
	closed bool
}

// NewCredential takes ownership of secret. The caller must not reuse the
// slice afterwards; Close will zero it.
func NewCredential(secret []byte) *Credential {
	return &Credential{buf: secret}
}

// Use invokes fn with a borrowed view of the secret and returns fn's
// result. The view aliases the internal buffer directly (no copy is made),
// so fn must not retain it beyond the call.
func (c *Credential) Use(fn func(secret string) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrCredentialClosed
	}

	if len(c.buf) == 0 {
		return fn("")
	}

	return fn(unsafe.String(unsafe.SliceData(c.buf), len(c.buf)))
}

// Close overwrites the secret bytes and marks the credential destroyed.
// Idempotent.
func (c *Credential) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	for i := range c.buf {
		c.buf[i] = 0
	}

	c.buf = nil
	c.closed = true
}
