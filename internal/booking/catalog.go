package booking

import "time"

// FlexibleBookingSettings are the tenant capability flags that decide which
// optional booking steps exist.
type FlexibleBookingSettings struct {
	AllowStaffSelection    bool `json:"allow_staff_selection"`
	AllowLocationSelection bool `json:"allow_location_selection"`
}

// Business is the public profile of a tenant.
type Business struct {
	ID                 int64                   `json:"id"`
	Slug               string                  `json:"slug"`
	Name               string                  `json:"business_name"`
	Description        string                  `json:"description,omitempty"`
	Timezone           string                  `json:"timezone,omitempty"`
	RequiresApproval   bool                    `json:"requires_approval"`
	BookingExpiryHours int                     `json:"booking_expiry_hours,omitempty"`
	MaxGroupSize       int                     `json:"max_group_size,omitempty"`
	FlexibleBooking    FlexibleBookingSettings `json:"flexible_booking_settings"`
}

// Service is something a prospective client can book.
type Service struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	CategoryName    string `json:"category_name,omitempty"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	Price           string `json:"price,omitempty"`
	IsGroup         bool   `json:"is_group,omitempty"`
}

// StaffMember is a bookable instructor.
type StaffMember struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role,omitempty"`
}

// Location is a place a service is delivered.
type Location struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

// Slot is a server-computed open window. Times are HH:MM wall-clock in the
// business timezone; Date is YYYY-MM-DD.
type Slot struct {
	Date            string `json:"date"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	SessionID       int64  `json:"session_id"`
	SessionTitle    string `json:"session_title,omitempty"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	AvailableSpots  int    `json:"available_spots"`
	TotalSpots      int    `json:"total_spots,omitempty"`
	CapacityStatus  string `json:"capacity_status,omitempty"`
	StaffID         int64  `json:"staff_id,omitempty"`
	StaffName       string `json:"staff_name,omitempty"`
	LocationID      int64  `json:"location_id,omitempty"`
	Location        string `json:"location,omitempty"`
}

// Before orders slots by date, start time, then session.
func (s Slot) Before(o Slot) bool {
	if s.Date != o.Date {
		return s.Date < o.Date
	}
	if s.StartTime != o.StartTime {
		return s.StartTime < o.StartTime
	}
	return s.SessionID < o.SessionID
}

// Attendance links a client to a session.
type Attendance struct {
	ClientID int64  `json:"client_id"`
	Status   string `json:"status"`
}

// Session is a schedulable class or appointment. It is consumed, never
// computed, by this service.
type Session struct {
	ID            int64        `json:"id"`
	Title         string       `json:"title"`
	StartTime     time.Time    `json:"start_time"`
	EndTime       time.Time    `json:"end_time"`
	CategoryName  string       `json:"category_name,omitempty"`
	AssignedStaff []int64      `json:"assigned_staff,omitempty"`
	Attendances   []Attendance `json:"attendances,omitempty"`
}

// DateLayout is the ISO calendar date format used on the wire.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD date in UTC.
func ParseDate(raw string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, raw, time.UTC)
}
