package booking

import "time"

// NotificationType enumerates booking notification events.
type NotificationType string

const (
	NotificationRequest   NotificationType = "booking_request"
	NotificationApproved  NotificationType = "booking_approved"
	NotificationRejected  NotificationType = "booking_rejected"
	NotificationCancelled NotificationType = "booking_cancelled"
	NotificationExpired   NotificationType = "booking_expired"
)

// NotificationRequestSummary is the request excerpt embedded in a notification.
type NotificationRequestSummary struct {
	ID          int64  `json:"id"`
	Reference   string `json:"booking_reference"`
	ClientName  string `json:"client_name"`
	ClientEmail string `json:"client_email"`
	Status      Status `json:"status"`
}

// Notification is a staff-facing booking event.
type Notification struct {
	ID        int64                       `json:"id"`
	Type      NotificationType            `json:"type"`
	Title     string                      `json:"title"`
	Message   string                      `json:"message"`
	IsRead    bool                        `json:"is_read"`
	ReadAt    *time.Time                  `json:"read_at"`
	CreatedAt time.Time                   `json:"created_at"`
	Request   *NotificationRequestSummary `json:"booking_request"`
}
