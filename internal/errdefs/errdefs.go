// Package errdefs defines the classified error type shared by every
// component that talks to the cluster. All fallible remote boundaries
// return an *Error so retry and reporting logic can treat classification
// uniformly instead of inspecting ad hoc error strings.
package errdefs

import (
	"errors"
	"fmt"
)

type Kind int

const (
	Network Kind = iota
	Authentication
	Permission
	FileSystem
	Protocol
	Timeout
	Validation
	Internal
)

func (k Kind) String() string {
	switch k {
	case Network:
		return "network"
	case Authentication:
		return "authentication"
	case Permission:
		return "permission"
	case FileSystem:
		return "filesystem"
	case Protocol:
		return "protocol"
	case Timeout:
		return "timeout"
	case Validation:
		return "validation"
	case Internal:
		return "internal"
	}
	return "unknown"
}

// Retryable reports whether an error of this kind is safe to retry.
// Only transient transport conditions qualify; authentication, permission
// and validation failures will not heal on their own, and protocol errors
// indicate malformed remote output that a retry would reproduce.
func (k Kind) Retryable() bool {
	return k == Network || k == Timeout
}

// Error is the tagged result type carried across the remote boundary.
// Raw holds the offending remote output for protocol errors so malformed
// records can be diagnosed without re-running the query.
type Error struct {
	Kind    Kind
	Message string
	Raw     string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// NewProtocol builds a protocol error preserving the raw remote text that
// failed to parse.
func NewProtocol(raw string, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    Protocol,
		Message: fmt.Sprintf(format, args...),
		Raw:     raw,
	}
}

// KindOf extracts the classification from err. Unclassified errors are
// reported as Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsRetryable reports whether err may be retried. Unclassified errors are
// never retried.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind.Retryable()
	}
	return false
}
