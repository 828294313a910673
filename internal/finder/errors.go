package finder

import (
	"errors"
	"fmt"

	"github.com/reop/addressfinder/internal/places"
	"github.com/reop/addressfinder/internal/session"
)

var (
	ErrValidationFailed  = errors.New("address validation failed")
	ErrCandidateNotFound = errors.New("candidate not found in current results")
	ErrEmptyQuery        = errors.New("query is empty")
	ErrSearchFailed      = errors.New("place search failed")

	ErrStaleAttempt   = session.ErrStaleAttempt
	ErrNoPendingRural = session.ErrNoPendingRural
	ErrNoSelection    = session.ErrNoSelection
)

// ValidationError carries the user-facing message for a rejected or
// unverifiable address. It matches ErrValidationFailed.
type ValidationError struct {
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) Is(target error) bool { return target == ErrValidationFailed }

// NotFoundError reports a place id that is not in the active result set,
// with the ids that are.
type NotFoundError struct {
	RequestedID string
	Available   []places.Candidate
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("place %q is not in the current results (%d available)", e.RequestedID, len(e.Available))
}

func (e *NotFoundError) Is(target error) bool { return target == ErrCandidateNotFound }
