package models

import (
	"errors"
	"fmt"
)

// allowedTransitions is the status state machine as data: each persistent
// status maps to the set of statuses it may move to. Terminal statuses map
// to an empty set.
var allowedTransitions = map[string][]string{
	StatusActive:    {StatusPaused, StatusReviewing, StatusDeclined},
	StatusPaused:    {StatusActive, StatusDeclined},
	StatusReviewing: {StatusConfirmed, StatusDeclined},
	StatusConfirmed: {},
	StatusDeclined:  {},
}

// InvalidTransitionError is returned when a status change violates the
// state machine. It carries both endpoints for the client-facing message.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	// Shown to clients verbatim, hence the capital.
	return fmt.Sprintf("Invalid transition: %s → %s", e.From, e.To)
}

// ValidStatus reports whether s is one of the five persistent statuses.
func ValidStatus(s string) bool {
	_, ok := allowedTransitions[s]
	return ok
}

// ValidateTransition checks that from → to is an allowed status change.
// Unknown statuses on either side are rejected.
func ValidateTransition(from, to string) error {
	targets, ok := allowedTransitions[from]
	if !ok {
		return &InvalidTransitionError{From: from, To: to}
	}
	if !ValidStatus(to) {
		return &InvalidTransitionError{From: from, To: to}
	}
	for _, t := range targets {
		if t == to {
			return nil
		}
	}
	return &InvalidTransitionError{From: from, To: to}
}

// IsInvalidTransition reports whether err is a state-machine violation.
func IsInvalidTransition(err error) bool {
	var e *InvalidTransitionError
	return errors.As(err, &e)
}

// IsTerminal reports whether a status admits no further transitions.
func IsTerminal(status string) bool {
	targets, ok := allowedTransitions[status]
	return ok && len(targets) == 0
}
