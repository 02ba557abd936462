package review

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an item ID does not exist.
	ErrNotFound = errors.New("review item not found")

	// ErrInvalidStateTransition is returned when an operation is not
	// allowed from the item's current state.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrStateConflict is returned by a Store when the item's state
	// changed since it was read.
	ErrStateConflict = errors.New("review item state changed concurrently")

	// ErrInvalidScore is returned for a review score outside 0 to 10.
	ErrInvalidScore = errors.New("score must be between 0 and 10")

	// ErrInvalidDecision is returned for a decision other than approve or
	// reject.
	ErrInvalidDecision = errors.New("decision must be approve or reject")
)

// TransitionError describes a rejected transition.
type TransitionError struct {
	ItemID    string
	Operation string
	From      State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: cannot %s item %s in state %s", ErrInvalidStateTransition, e.Operation, e.ItemID, e.From)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidStateTransition
}
