package ssh

import "time"

// State is the connection lifecycle state. The only path back to an
// active state from Expired is a manual reconnect; no credential is ever
// stored to allow silent resumption.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateExpired:
		return "expired"
	}
	return "unknown"
}

// Session describes the single authenticated connection. At most one
// Session exists at any time and it carries no credential material.
type Session struct {
	State       State
	Host        string
	Port        uint
	Username    string
	ConnectedAt time.Time
}

// CommandResult holds the output of one remote command. A non-zero exit
// code is not a transport error; callers inspect ExitCode themselves.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}
