// Package booking holds the FlowKey booking domain: booking requests, the
// records they reference, and the error taxonomy shared by the flow,
// availability and lifecycle packages.
package booking

import (
	"strings"
	"time"
)

// Status is the stored or derived state of a booking request.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further staff action can apply.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusExpired || s == StatusCancelled
}

// ParseStatus normalizes a status filter value. Empty input yields "".
func ParseStatus(raw string) (Status, bool) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if s == "" {
		return "", true
	}
	return s, s.Valid()
}

// CancellationInfo describes who cancelled an approved request.
type CancellationInfo struct {
	CancelledAt        time.Time `json:"cancelled_at"`
	CancelledBy        string    `json:"cancelled_by"`
	CancellationReason string    `json:"cancellation_reason"`
	CancelledByClient  bool      `json:"cancelled_by_client"`
}

// Request is a client's request for a session slot. Requests are never
// deleted by this service, only status-transitioned by staff or the
// cancelling party.
type Request struct {
	ID                  int64             `json:"id"`
	Reference           string            `json:"booking_reference"`
	Status              Status            `json:"status"`
	StatusDisplay       string            `json:"status_display,omitempty"`
	ClientName          string            `json:"client_name"`
	ClientEmail         string            `json:"client_email"`
	ClientPhone         string            `json:"client_phone,omitempty"`
	SessionTitle        string            `json:"session_title"`
	SessionDate         time.Time         `json:"session_date"`
	SessionEndTime      time.Time         `json:"session_end_time"`
	CategoryName        string            `json:"category_name"`
	BusinessName        string            `json:"business_name"`
	BookingType         string            `json:"booking_type,omitempty"`
	IsGroupBooking      bool              `json:"is_group_booking"`
	Quantity            int               `json:"quantity"`
	TotalSpotsRequested int               `json:"total_spots_requested,omitempty"`
	Notes               string            `json:"notes,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
	ExpiresAt           time.Time         `json:"expires_at"`
	ApprovedAt          *time.Time        `json:"approved_at,omitempty"`
	RejectionReason     string            `json:"rejection_reason,omitempty"`
	IsDeleted           bool              `json:"is_deleted,omitempty"`
	Cancellation        *CancellationInfo `json:"cancellation_info,omitempty"`
}

// PastExpiry reports whether now is after the request's expiry instant.
// A zero ExpiresAt never expires.
func (r Request) PastExpiry(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}

// EffectiveStatus derives the display status at now: a pending request past
// its expiry reads as expired. The stored Status is left untouched.
func (r Request) EffectiveStatus(now time.Time) Status {
	if r.Status == StatusPending && r.PastExpiry(now) {
		return StatusExpired
	}
	return r.Status
}

// Allows checks whether action may be attempted against r at now. The
// expiry check runs before the status check, so an approved request whose
// expiry has passed is not cancelable. The server stays authoritative; this
// only blocks actions that are certain to fail.
func (r Request) Allows(action Action, now time.Time) error {
	if !action.Valid() {
		return &ValidationError{Field: "action", Message: "unknown action " + string(action)}
	}
	if r.Status == StatusExpired || r.PastExpiry(now) {
		return &ExpiredError{Reference: r.Reference, ExpiresAt: r.ExpiresAt}
	}
	if r.Status != action.From() {
		return &TransitionError{Action: action, From: r.Status}
	}
	return nil
}

// Action is a staff-side transition on a booking request.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionCancel  Action = "cancel"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	return a == ActionApprove || a == ActionReject || a == ActionCancel
}

// From is the only status the action may start from.
func (a Action) From() Status {
	if a == ActionCancel {
		return StatusApproved
	}
	return StatusPending
}

// To is the status the action produces.
func (a Action) To() Status {
	switch a {
	case ActionApprove:
		return StatusApproved
	case ActionReject:
		return StatusRejected
	case ActionCancel:
		return StatusCancelled
	}
	return ""
}

// Confirmation is returned by the API when a public booking is created.
type Confirmation struct {
	Reference        string     `json:"booking_reference"`
	Status           Status     `json:"status"`
	Message          string     `json:"message,omitempty"`
	RequiresApproval bool       `json:"requires_approval,omitempty"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
}
