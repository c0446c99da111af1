package remote

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when the store does not know the turn.
var ErrNotFound = errors.New("turn not found")

// NetworkError means the store could not be reached or timed out. Retry is
// left to the next poll or to the user.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: backend unreachable: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// AuthError means the credentials were rejected or the session expired.
type AuthError struct {
	Op      string
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: not authorized (%d): %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: not authorized (%d)", e.Op, e.Status)
}

// ConflictError means a transition was attempted on a turn that is no
// longer in the required prior state.
type ConflictError struct {
	TurnID  int64
	Action  string
	Message string
}

func (e *ConflictError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s turn %d: action no longer valid: %s", e.Action, e.TurnID, e.Message)
	}
	return fmt.Sprintf("%s turn %d: action no longer valid", e.Action, e.TurnID)
}

// StatusError is any other non-success answer from the store.
type StatusError struct {
	Op      string
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: backend returned %d: %s", e.Op, e.Status, e.Message)
}

// IsConflict reports whether err carries a ConflictError.
func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}

// IsNetwork reports whether err carries a NetworkError.
func IsNetwork(err error) bool {
	var n *NetworkError
	return errors.As(err, &n)
}

// IsAuth reports whether err carries an AuthError.
func IsAuth(err error) bool {
	var a *AuthError
	return errors.As(err, &a)
}
