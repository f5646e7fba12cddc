package flow

import "github.com/flowkey/flowkey-booking/internal/booking"

// Step is one screen of the public booking flow.
type Step string

const (
	StepService      Step = "service"
	StepDate         Step = "date"
	StepStaff        Step = "staff"
	StepLocation     Step = "location"
	StepDetails      Step = "details"
	StepConfirmation Step = "confirmation"
)

// Steps returns the step sequence for a tenant. Staff and location steps
// exist only when the tenant's flags allow choosing them.
func Steps(settings booking.FlexibleBookingSettings) []Step {
	steps := []Step{StepService, StepDate}
	if settings.AllowStaffSelection {
		steps = append(steps, StepStaff)
	}
	if settings.AllowLocationSelection {
		steps = append(steps, StepLocation)
	}
	return append(steps, StepDetails, StepConfirmation)
}
