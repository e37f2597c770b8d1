package secrets

import (
	"errors"
	"testing"
)

func TestUsePassesSecret(t *testing.T) {
	cred := NewCredential([]byte("hunter2"))
	defer cred.Close()

	var seen string
	err := cred.Use(func(secret string) error {
		seen = string([]byte(secret)) // copy inside the scope, test-only
		return nil
	})

	if err != nil {
		t.Fatalf("Use failed: %v", err)
	}

	if seen != "hunter2" {
		t.Errorf("expected secret to be passed to callback, got %q", seen)
	}
}

func TestUseReturnsCallbackError(t *testing.T) {
	cred := NewCredential([]byte("secret"))
	defer cred.Close()

	sentinel := errors.New("auth rejected")
	err := cred.Use(func(string) error {
		return sentinel
	})

	if !errors.Is(err, sentinel) {
		t.Errorf("expected callback error to propagate, got %v", err)
	}
}

func TestCloseZeroesBuffer(t *testing.T) {
	buf := []byte("topsecret")
	cred := NewCredential(buf)
	cred.Close()

	for i, b := range buf {
		if b != 0 {
			t.Fatalf("byte %d not zeroed after Close: %v", i, buf)
		}
	}
}

func TestUseAfterCloseFails(t *testing.T) {
	cred := NewCredential([]byte("secret"))
	cred.Close()

	err := cred.Use(func(string) error { return nil })

	if !errors.Is(err, ErrCredentialClosed) {
		t.Errorf("expected ErrCredentialClosed, got %v", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	cred := NewCredential([]byte("secret"))
	cred.Close()
	cred.Close()
}
