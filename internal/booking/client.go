package booking

import "time"

// ClientSource records how a client record came to exist.
type ClientSource string

const (
	SourceManual      ClientSource = "manual"
	SourceBookingLink ClientSource = "booking_link"
)

// Client is a business's customer record. Booking-link clients are
// materialized by the API when a request is approved; BookingRequestID is a
// lookup reference only.
type Client struct {
	ID               int64        `json:"id"`
	FirstName        string       `json:"first_name"`
	LastName         string       `json:"last_name"`
	Email            string       `json:"email"`
	PhoneNumber      string       `json:"phone_number"`
	Source           ClientSource `json:"source"`
	BookingRequestID *int64       `json:"booking_request_id,omitempty"`
	Active           bool         `json:"active"`
	Gender           string       `json:"gender,omitempty"`
	DOB              string       `json:"dob,omitempty"` // YYYY-MM-DD
	CreatedAt        time.Time    `json:"created_at"`
}

// FullName joins first and last name.
func (c Client) FullName() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// Validate enforces the source/back-reference pairing.
func (c Client) Validate() error {
	switch c.Source {
	case SourceBookingLink:
		if c.BookingRequestID == nil {
			return &ValidationError{Field: "booking_request_id", Message: "booking-link clients must reference the approved booking request"}
		}
	case SourceManual, "":
		if c.BookingRequestID != nil {
			return &ValidationError{Field: "booking_request_id", Message: "manually created clients cannot reference a booking request"}
		}
	default:
		return &ValidationError{Field: "source", Message: "unknown client source " + string(c.Source)}
	}
	if c.DOB != "" {
		if _, err := time.Parse("2006-01-02", c.DOB); err != nil {
			return &ValidationError{Field: "dob", Message: "date of birth must be YYYY-MM-DD"}
		}
	}
	return nil
}
