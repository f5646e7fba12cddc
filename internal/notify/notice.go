package notify

import (
	"errors"

	"github.com/flowkey/flowkey-booking/internal/booking"
)

// Level is the severity a front end renders a notice with.
type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is a short user-visible message.
type Notice struct {
	Level   Level  `json:"level"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// NoticeFromError describes err for the person who triggered it.
func NoticeFromError(err error) Notice {
	switch booking.Classify(err) {
	case "":
		return Notice{Level: LevelSuccess, Title: "Done"}
	case booking.KindValidation:
		n := Notice{Level: LevelWarning, Title: "Check your details", Message: "Some information is missing or invalid."}
		var vErr *booking.ValidationError
		if errors.As(err, &vErr) {
			n.Message = vErr.Message
			n.Field = vErr.Field
		}
		return n
	case booking.KindSlotUnavailable:
		return Notice{Level: LevelWarning, Title: "Time slot unavailable", Message: "That time was just taken. Please choose another slot."}
	case booking.KindExpired:
		return Notice{Level: LevelWarning, Title: "Request expired", Message: "This booking request has expired and can no longer be changed."}
	case booking.KindConflict:
		return Notice{Level: LevelWarning, Title: "Booking already updated", Message: "This booking changed since you loaded it. The list has been refreshed."}
	case booking.KindNotFound:
		return Notice{Level: LevelError, Title: "Not found", Message: "The booking could not be found."}
	case booking.KindUnauthorized:
		return Notice{Level: LevelError, Title: "Session expired", Message: "Please sign in again."}
	case booking.KindTransport:
		return Notice{Level: LevelError, Title: "Connection problem", Message: "We could not reach the booking service. Please try again."}
	}
	return Notice{Level: LevelError, Title: "Something went wrong", Message: "Please try again."}
}

// NoticeForTransition confirms a staff action.
func NoticeForTransition(action booking.Action, reference string) Notice {
	switch action {
	case booking.ActionApprove:
		return Notice{Level: LevelSuccess, Title: "Booking approved", Message: "Booking " + reference + " was approved and the client has been added."}
	case booking.ActionReject:
		return Notice{Level: LevelInfo, Title: "Booking rejected", Message: "Booking " + reference + " was rejected."}
	case booking.ActionCancel:
		return Notice{Level: LevelInfo, Title: "Booking cancelled", Message: "Booking " + reference + " was cancelled."}
	}
	return Notice{Level: LevelInfo, Title: "Booking updated", Message: "Booking " + reference + " was updated."}
}
