package booking

// Draft is the booking-creation payload sent to the public bookings endpoint.
type Draft struct {
	BusinessSlug      string `json:"business_slug"`
	ServiceID         int64  `json:"service_id"`
	SessionID         int64  `json:"session_id"`
	StaffID           int64  `json:"staff_id,omitempty"`
	LocationID        int64  `json:"location_id,omitempty"`
	ClientName        string `json:"client_name"`
	ClientEmail       string `json:"client_email"`
	ClientPhone       string `json:"client_phone"`
	Notes             string `json:"notes"`
	SelectedDate      string `json:"selected_date"`
	SelectedTime      string `json:"selected_time"`
	SelectedEndTime   string `json:"selected_end_time"`
	Quantity          int    `json:"quantity"`
	ClientTimezone    string `json:"client_timezone,omitempty"`
	BusinessTimezone  string `json:"business_timezone,omitempty"`
	IsGroupBooking    bool   `json:"is_group_booking,omitempty"`
	GroupBookingNotes string `json:"group_booking_notes,omitempty"`
}
