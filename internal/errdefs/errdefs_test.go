package errdefs

import (
	"errors"
	"fmt"
	"testing"
)

func TestRetryableKinds(t *testing.T) {
	retryable := []Kind{Network, Timeout}
	nonRetryable := []Kind{Authentication, Permission, FileSystem, Protocol, Validation, Internal}

	for _, k := range retryable {
		if !k.Retryable() {
			t.Errorf("expected %s to be retryable", k)
		}
	}

	for _, k := range nonRetryable {
		if k.Retryable() {
			t.Errorf("expected %s to not be retryable", k)
		}
	}
}

func TestKindOfWrappedError(t *testing.T) {
	inner := Wrap(Timeout, errors.New("deadline exceeded"), "command timed out")
	outer := fmt.Errorf("sync failed: %w", inner)

	if KindOf(outer) != Timeout {
		t.Errorf("expected Timeout, got %s", KindOf(outer))
	}

	if !IsRetryable(outer) {
		t.Errorf("expected wrapped timeout to stay retryable")
	}
}

func TestKindOfUnclassified(t *testing.T) {
	err := errors.New("plain error")

	if KindOf(err) != Internal {
		t.Errorf("expected Internal for unclassified error, got %s", KindOf(err))
	}

	if IsRetryable(err) {
		t.Errorf("unclassified errors must not be retryable")
	}
}

func TestProtocolErrorKeepsRawText(t *testing.T) {
	raw := "12345678|test_job|R"
	err := NewProtocol(raw, "expected 10 fields, got 3")

	if err.Raw != raw {
		t.Errorf("expected raw text to be preserved, got %q", err.Raw)
	}

	if err.Kind != Protocol {
		t.Errorf("expected Protocol kind, got %s", err.Kind)
	}
}
