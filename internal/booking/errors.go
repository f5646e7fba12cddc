package booking

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrValidation is returned when a required field is missing or malformed.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned when a request's state changed underneath the caller.
	ErrConflict = errors.New("booking state conflict")

	// ErrExpired is returned when a mutation targets an expired request.
	ErrExpired = errors.New("booking request expired")

	// ErrSlotUnavailable is returned when a selected slot was taken before submission.
	ErrSlotUnavailable = errors.New("slot no longer available")

	// ErrNotFound is returned when the booking or business does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized is returned when the staff session is missing or rejected.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTransport is returned when the FlowKey API could not be reached.
	ErrTransport = errors.New("flowkey api unreachable")
)

// ValidationError is a user-facing validation failure.
type ValidationError struct {
	Step    string `json:"step,omitempty"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("%s: %s: %s", e.Step, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is makes errors.Is(err, ErrValidation) hold.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// TransitionError reports an action attempted from a status it cannot start from.
type TransitionError struct {
	Action Action
	From   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s a %s booking request", e.Action, e.From)
}

// Is makes a rejected transition read as a state conflict.
func (e *TransitionError) Is(target error) bool { return target == ErrConflict }

// ExpiredError reports a request whose expiry has passed.
type ExpiredError struct {
	Reference string
	ExpiresAt time.Time
}

func (e *ExpiredError) Error() string {
	if e.ExpiresAt.IsZero() {
		return fmt.Sprintf("booking request %s has expired", e.Reference)
	}
	return fmt.Sprintf("booking request %s expired at %s", e.Reference, e.ExpiresAt.UTC().Format(time.RFC3339))
}

// Is makes errors.Is(err, ErrExpired) hold.
func (e *ExpiredError) Is(target error) bool { return target == ErrExpired }

// Kind names an error class for transport to callers.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindConflict        Kind = "conflict"
	KindExpired         Kind = "expired"
	KindSlotUnavailable Kind = "slot_unavailable"
	KindNotFound        Kind = "not_found"
	KindUnauthorized    Kind = "unauthorized"
	KindTransport       Kind = "transport"
	KindInternal        Kind = "internal"
)

// Classify maps err onto the taxonomy. Expiry and slot checks run before the
// generic conflict check since both may also wrap ErrConflict.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrExpired):
		return KindExpired
	case errors.Is(err, ErrSlotUnavailable):
		return KindSlotUnavailable
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrTransport):
		return KindTransport
	}
	return KindInternal
}
