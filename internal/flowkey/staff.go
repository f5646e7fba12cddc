package flowkey

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/flowkey/flowkey-booking/internal/booking"
	"github.com/flowkey/flowkey-booking/internal/session"
)

// ListFilter narrows the staff booking list.
type ListFilter struct {
	Status         booking.Status
	Search         string
	IncludeDeleted bool
}

// RequestList is one page of the staff booking list.
type RequestList struct {
	Requests []booking.Request
	Total    int
}

type requestListBody struct {
	Bookings   []booking.Request `json:"bookings"`
	TotalCount *int              `json:"total_count"`
	Items      []booking.Request `json:"items"`
	Total      *int              `json:"total"`
}

// ListRequests returns the tenant's booking requests.
func (c *Client) ListRequests(ctx context.Context, sess *session.Session, f ListFilter) (*RequestList, error) {
	params := url.Values{}
	if f.Status != "" {
		params.Set("status", string(f.Status))
	}
	if f.Search != "" {
		params.Set("search", f.Search)
	}
	if f.IncludeDeleted {
		params.Set("include_deleted", "true")
	}
	path := "/api/booking/manage/"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var body requestListBody
	err := c.do(ctx, call{op: "list_requests", method: http.MethodGet, path: path, sess: sess, staff: true, out: &body})
	if err != nil {
		return nil, err
	}

	list := &RequestList{Requests: body.Bookings}
	if list.Requests == nil {
		list.Requests = body.Items
	}
	switch {
	case body.TotalCount != nil:
		list.Total = *body.TotalCount
	case body.Total != nil:
		list.Total = *body.Total
	default:
		list.Total = len(list.Requests)
	}
	return list, nil
}

// GetRequest returns one booking request.
func (c *Client) GetRequest(ctx context.Context, sess *session.Session, id int64) (*booking.Request, error) {
	var req booking.Request
	err := c.do(ctx, call{
		op:     "get_request",
		method: http.MethodGet,
		path:   "/api/booking/manage/" + strconv.FormatInt(id, 10) + "/",
		sess:   sess,
		staff:  true,
		out:    &req,
	})
	if err != nil {
		return nil, err
	}
	return &req, nil
}

type actionBody struct {
	Action booking.Action `json:"action"`
	Reason string         `json:"reason,omitempty"`
}

// ApplyAction issues approve, reject or cancel. The returned result reflects
// only what the server confirmed.
func (c *Client) ApplyAction(ctx context.Context, sess *session.Session, id int64, action booking.Action, reason string) (*ActionResult, error) {
	if !action.Valid() {
		return nil, &booking.ValidationError{Field: "action", Message: "unknown action " + string(action)}
	}
	var res ActionResult
	err := c.do(ctx, call{
		op:     string(action) + "_request",
		method: http.MethodPatch,
		path:   "/api/booking/manage/" + strconv.FormatInt(id, 10) + "/",
		sess:   sess,
		staff:  true,
		body:   actionBody{Action: action, Reason: reason},
		out:    &res,
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// NotificationList is the staff notification feed.
type NotificationList struct {
	Notifications []booking.Notification
	Unread        int
}

// ListNotifications returns the staff notification feed.
func (c *Client) ListNotifications(ctx context.Context, sess *session.Session) (*NotificationList, error) {
	var raw json.RawMessage
	err := c.do(ctx, call{
		op:     "list_notifications",
		method: http.MethodGet,
		path:   "/api/booking/notifications/",
		sess:   sess,
		staff:  true,
		out:    &raw,
	})
	if err != nil {
		return nil, err
	}

	items, err := decodeList[booking.Notification](raw, "notifications", "results")
	if err != nil {
		return nil, fmt.Errorf("flowkey: list_notifications: decode response: %v: %w", err, booking.ErrTransport)
	}
	list := &NotificationList{Notifications: items}

	var counted struct {
		UnreadCount *int `json:"unread_count"`
	}
	if len(raw) > 0 && raw[0] == '{' && json.Unmarshal(raw, &counted) == nil && counted.UnreadCount != nil {
		list.Unread = *counted.UnreadCount
		return list, nil
	}
	for _, n := range items {
		if !n.IsRead {
			list.Unread++
		}
	}
	return list, nil
}

type notificationActionBody struct {
	Action string `json:"action"`
}

// MarkNotificationRead marks one notification read.
func (c *Client) MarkNotificationRead(ctx context.Context, sess *session.Session, id int64) error {
	return c.do(ctx, call{
		op:     "mark_notification_read",
		method: http.MethodPatch,
		path:   "/api/booking/notifications/" + strconv.FormatInt(id, 10) + "/",
		sess:   sess,
		staff:  true,
		body:   notificationActionBody{Action: "mark_read"},
	})
}

// MarkAllNotificationsRead marks the whole feed read.
func (c *Client) MarkAllNotificationsRead(ctx context.Context, sess *session.Session) error {
	return c.do(ctx, call{
		op:     "mark_all_notifications_read",
		method: http.MethodPost,
		path:   "/api/booking/notifications/mark_all_read/",
		sess:   sess,
		staff:  true,
	})
}
