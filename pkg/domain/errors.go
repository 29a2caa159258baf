package domain

import (
	"errors"
	"fmt"
)

// ErrUnknownAction is returned when an identifier resolves to no
// declared or built-in action. Fatal to the turn: executing an
// undeclared action would corrupt the conversation's audit trail.
var ErrUnknownAction = errors.New("unknown action")

// ErrServerTimeout is returned when a remote action call exceeds its
// deadline. The engine never retries on its own; business actions may
// not be idempotent.
var ErrServerTimeout = errors.New("action server timeout")

// ErrServerUnavailable is returned on transport-level failure reaching
// the action server.
var ErrServerUnavailable = errors.New("action server unavailable")

// ErrInvalidResponse is returned when an action-server response is
// malformed or references actions or slots the domain does not declare.
var ErrInvalidResponse = errors.New("invalid action server response")

// ErrSessionNotFound is returned by tracker stores when no conversation
// exists for the requested sender.
var ErrSessionNotFound = errors.New("session not found")

// RejectionError signals that an action declined to complete this turn.
// It is not a crash: the caller may apply Events (activation bookkeeping
// plus the rejection marker) and select a different action.
type RejectionError struct {
	ActionName string
	Message    string
	// Events is the batch the caller should still apply despite the
	// rejection, e.g. loop activation and the rejection marker itself.
	Events []Event
}

func (e *RejectionError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("action %q rejected execution", e.ActionName)
	}
	return fmt.Sprintf("action %q rejected execution: %s", e.ActionName, e.Message)
}

// ServerError reports a failure status from the action server.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("action server returned status %d: %s", e.Status, e.Message)
}
