package domain

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates a record was not found.
	ErrNotFound = errors.New("record not found")
	// ErrInvalidTransition indicates a membership guard failed: the
	// (event, profile) pair is not in the state the transition requires.
	ErrInvalidTransition = errors.New("invalid membership transition")
	// ErrHostCannotRequest indicates the event host tried to join their own
	// event.
	ErrHostCannotRequest = errors.New("host cannot request to join own event")
	// ErrCapacityExceeded indicates an approval lost the capacity race.
	ErrCapacityExceeded = errors.New("event capacity exceeded")
	// ErrPermissionDenied indicates the actor is not the host of the event
	// for a host-only action.
	ErrPermissionDenied = errors.New("only the host may perform this action")
	// ErrUnavailable indicates a transient store failure; the operation is
	// eligible for offline queueing.
	ErrUnavailable = errors.New("store unavailable")
	// ErrUsernameTaken indicates the requested username belongs to another
	// profile.
	ErrUsernameTaken = errors.New("username is taken")
	// ErrQueueFailed wraps the cause of a queued operation abandoned during
	// replay. It is surfaced exactly once per abandoned operation.
	ErrQueueFailed = errors.New("queued operation failed permanently")
	// ErrStoreNotConfigured indicates the service is missing persistence
	// wiring.
	ErrStoreNotConfigured = errors.New("store is not configured")
	// ErrIDGeneratorNotConfigured indicates an ID generator is required.
	ErrIDGeneratorNotConfigured = errors.New("id generator is not configured")
)

// ValidationError reports one rejected input field. Validation failures are
// permanent: retrying the same input cannot succeed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Reason
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsPermanent reports whether err cannot succeed on retry. The offline
// queue uses it to decide between requeueing and surfacing a failure. A
// canceled context is permanent here: the caller gave up, the store did
// not fail.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	var validation *ValidationError
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrHostCannotRequest) ||
		errors.Is(err, ErrCapacityExceeded) ||
		errors.Is(err, ErrPermissionDenied) ||
		errors.Is(err, ErrUsernameTaken) ||
		errors.Is(err, context.Canceled) ||
		errors.As(err, &validation)
}
