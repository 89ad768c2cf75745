package session

import (
	"errors"
	"fmt"
)

var (
	ErrCaptureFailed      = errors.New("media capture failed")
	ErrPeerDisconnected   = errors.New("peer disconnected")
	ErrSignalingError     = errors.New("signaling relay error")
	ErrNegotiationTimeout = errors.New("negotiation timed out")
	ErrConnectionFailed   = errors.New("connection failed")
	ErrUnexpectedSignal   = errors.New("unexpected signal kind")
	ErrNotInRoom          = errors.New("not in a room")
	ErrAlreadyJoined      = errors.New("already joined")
)

// CallError wraps a failure with the operation that produced it.
type CallError struct {
	Op      string
	Err     error
	Details string
}

func (e *CallError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *CallError {
	return &CallError{Op: op, Err: err}
}

func WrapError(op string, err error, details string) *CallError {
	return &CallError{Op: op, Err: err, Details: details}
}

// RedirectError is the forced-navigation class of failure: invalid,
// expired, or full room. Reason is one of the signaling reason codes and
// becomes a query parameter on the redirect target.
type RedirectError struct {
	Reason string
	RoomID string
}

func (e *RedirectError) Error() string {
	return fmt.Sprintf("redirect: %s=%s", e.Reason, e.RoomID)
}

// AsRedirect unwraps err to a RedirectError, if it is one.
func AsRedirect(err error) (*RedirectError, bool) {
	var re *RedirectError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}
