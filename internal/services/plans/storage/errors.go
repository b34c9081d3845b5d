package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates a record, or a membership row in the expected
	// state, was not found.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a write conflicted with existing state, such as
	// requesting to join an event the profile already attends.
	ErrConflict = errors.New("record conflict")
	// ErrCapacityExceeded indicates an approval lost the capacity race: the
	// approved set was already full at the moment of the atomic write.
	ErrCapacityExceeded = errors.New("event capacity exceeded")
	// ErrUnavailable indicates a transient storage failure. Operations that
	// fail with it are eligible for offline queueing and replay.
	ErrUnavailable = errors.New("storage unavailable")
)

// FailureClass is the explicit outcome class of a store operation. The
// adapter folds retryable classes into the domain's unavailability
// sentinel, which the offline queue's retry decision keys on.
type FailureClass int

const (
	// ClassOK means the operation succeeded.
	ClassOK FailureClass = iota
	// ClassPermanent means retrying cannot succeed: the failure reflects
	// state or validation, not connectivity.
	ClassPermanent
	// ClassRetryable means the failure is transient and the operation may
	// succeed later.
	ClassRetryable
)

// Classify maps an error from the store boundary to its failure class.
// Unknown errors classify as retryable, matching the queue's bias toward
// never losing a user-initiated mutation.
func Classify(err error) FailureClass {
	switch {
	case err == nil:
		return ClassOK
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrCapacityExceeded),
		errors.Is(err, context.Canceled):
		return ClassPermanent
	default:
		return ClassRetryable
	}
}
