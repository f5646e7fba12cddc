package flow

import (
	"fmt"

	"github.com/flowkey/flowkey-booking/internal/booking"
)

var (
	// ErrFlowComplete is returned for any change once the booking exists.
	ErrFlowComplete = fmt.Errorf("booking already submitted: %w", booking.ErrConflict)

	// ErrAtFirstStep is returned when retreating from the first step.
	ErrAtFirstStep = fmt.Errorf("already at the first step: %w", booking.ErrValidation)

	// ErrSubmitInFlight is returned when a submission for the flow is already running.
	ErrSubmitInFlight = fmt.Errorf("submission already in progress: %w", booking.ErrConflict)

	// ErrFlowBusy is returned when another operation on the flow is running.
	ErrFlowBusy = fmt.Errorf("booking flow is being updated: %w", booking.ErrConflict)

	// ErrFlowNotFound is returned when a flow id is unknown or its draft expired.
	ErrFlowNotFound = fmt.Errorf("booking flow not found or expired: %w", booking.ErrNotFound)
)
