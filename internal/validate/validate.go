// Package validate sanitizes user-supplied identifiers before they are
// combined into remote paths or command strings. All checks fail closed:
// bad input yields a Validation error, never a substituted fallback.
package validate

import (
	"strings"

	"namdrunner/internal/errdefs"
)

// SanitizeIdentifier validates a user-supplied identifier (job name, file
// name) for safe use inside remote paths. Only [A-Za-z0-9_-] is accepted;
// anything containing "..", a path separator, or a null byte is rejected
// outright.
func SanitizeIdentifier(s string) (string, error) {
	if s == "" {
		return "", errdefs.New(errdefs.Validation, "identifier cannot be empty")
	}

	if strings.Contains(s, "..") {
		return "", errdefs.New(errdefs.Validation, "identifier cannot contain '..': %q", s)
	}

	if strings.ContainsAny(s, "/\\") {
		return "", errdefs.New(errdefs.Validation, "identifier cannot contain path separators: %q", s)
	}

	if strings.ContainsRune(s, 0) {
		return "", errdefs.New(errdefs.Validation, "identifier cannot contain null bytes")
	}

	for _, r := range s {
		if !isAllowed(r) {
			return "", errdefs.New(errdefs.Validation, "identifier contains disallowed character %q: %q", r, s)
		}
	}

	return s, nil
}

// SanitizeFileName validates a bare file name (no directory part) for
// safe use inside a remote job directory. Dots are allowed so simulation
// inputs like "equil.conf" pass, but "..", separators and null bytes are
// rejected like in SanitizeIdentifier.
func SanitizeFileName(s string) (string, error) {
	if s == "" {
		return "", errdefs.New(errdefs.Validation, "file name cannot be empty")
	}

	if strings.Contains(s, "..") {
		return "", errdefs.New(errdefs.Validation, "file name cannot contain '..': %q", s)
	}

	if strings.ContainsAny(s, "/\\") {
		return "", errdefs.New(errdefs.Validation, "file name cannot contain path separators: %q", s)
	}

	if strings.ContainsRune(s, 0) {
		return "", errdefs.New(errdefs.Validation, "file name cannot contain null bytes")
	}

	for _, r := range s {
		if !isAllowed(r) && r != '.' {
			return "", errdefs.New(errdefs.Validation, "file name contains disallowed character %q: %q", r, s)
		}
	}

	return s, nil
}

func isAllowed(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '_' || r == '-':
		return true
	}
	return false
}

// ValidateMemory checks a scheduler memory request like "16G" or
// "8000M": digits with at most one K/M/G/T suffix. The value ends up
// verbatim inside a generated batch script, so the shape check is
// strict.
func ValidateMemory(s string) (string, error) {
	digits := s
	if len(s) > 0 {
		switch s[len(s)-1] {
		case 'K', 'M', 'G', 'T':
			digits = s[:len(s)-1]
		}
	}

	if digits == "" || !allDigits(digits) {
		return "", errdefs.New(errdefs.Validation, "memory must be digits with an optional K/M/G/T suffix: %q", s)
	}

	return s, nil
}

// ValidateWallTime checks a wall-clock limit in the scheduler's
// [days-]HH:MM:SS form, e.g. "04:00:00" or "1-12:00:00".
func ValidateWallTime(s string) (string, error) {
	rest := s

	if idx := strings.IndexByte(rest, '-'); idx >= 0 {
		days := rest[:idx]
		rest = rest[idx+1:]
		if days == "" || !allDigits(days) {
			return "", errdefs.New(errdefs.Validation, "wall time days part must be numeric: %q", s)
		}
	}

	parts := strings.Split(rest, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return "", errdefs.New(errdefs.Validation, "wall time must be [days-]HH:MM[:SS]: %q", s)
	}
	for _, part := range parts {
		if part == "" || !allDigits(part) {
			return "", errdefs.New(errdefs.Validation, "wall time must be [days-]HH:MM[:SS]: %q", s)
		}
	}

	return s, nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// EscapeForCommand wraps s in single quotes for safe embedding in a remote
// shell command. Embedded single quotes are closed, escaped and reopened
// ('\''), the standard POSIX idiom. Every remote command that interpolates
// a user-influenced value must pass it through here first.
func EscapeForCommand(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
