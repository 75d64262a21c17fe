package reconnect

import (
	"errors"
	"fmt"
)

var (
	// ErrProtocolViolation is returned when the peer sends a message that
	// doesn't fit the session state.
	ErrProtocolViolation = errors.New("protocol violation")
	// ErrRootTimeout is returned by the learner when the root response doesn't
	// arrive in time.
	ErrRootTimeout = errors.New("timed out waiting for root response")
	// ErrBadConfig is returned for invalid configuration.
	ErrBadConfig = errors.New("bad reconnect config")
)

// Role is the side of a reconnect session.
type Role string

const (
	RoleTeacher Role = "teacher"
	RoleLearner Role = "learner"
)

// SessionError is a fatal error that ended a reconnect session.
type SessionError struct {
	Role Role
	Err  error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("%s reconnect session failed: %v", e.Role, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

func protocolViolation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrProtocolViolation, fmt.Sprintf(format, args...))
}
