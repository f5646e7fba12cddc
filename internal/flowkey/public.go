package flowkey

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/flowkey/flowkey-booking/internal/booking"
)

// SlotQuery selects open slots for one date.
type SlotQuery struct {
	Slug       string
	ServiceID  int64
	Date       string
	StaffID    int64
	LocationID int64
}

// RangeQuery selects open slots across a date range, inclusive.
type RangeQuery struct {
	Slug       string
	ServiceID  int64
	StartDate  string
	EndDate    string
	StaffID    int64
	LocationID int64
}

// ActionResult is the API's acknowledgement of a booking mutation.
type ActionResult struct {
	Success            bool           `json:"success"`
	Message            string         `json:"message"`
	Reference          string         `json:"booking_reference"`
	Status             booking.Status `json:"status"`
	RejectionReason    string         `json:"rejection_reason,omitempty"`
	CancellationReason string         `json:"cancellation_reason,omitempty"`
	// Client is the booking-link client created on approval.
	Client *booking.Client `json:"client,omitempty"`
}

func servicePath(slug string, serviceID int64, suffix string) string {
	return fmt.Sprintf("/api/public/businesses/%s/services/%d/%s", url.PathEscape(slug), serviceID, suffix)
}

func optionalIDs(q url.Values, staffID, locationID int64) {
	if staffID > 0 {
		q.Set("staff_id", strconv.FormatInt(staffID, 10))
	}
	if locationID > 0 {
		q.Set("location_id", strconv.FormatInt(locationID, 10))
	}
}

// GetBusiness returns the public profile and booking settings of a tenant.
func (c *Client) GetBusiness(ctx context.Context, slug string) (*booking.Business, error) {
	var biz booking.Business
	err := c.do(ctx, call{
		op:     "get_business",
		method: http.MethodGet,
		path:   "/api/public/businesses/" + url.PathEscape(slug),
		out:    &biz,
	})
	if err != nil {
		return nil, err
	}
	if biz.Slug == "" {
		biz.Slug = slug
	}
	return &biz, nil
}

// ListServices returns the bookable services of a tenant.
func (c *Client) ListServices(ctx context.Context, slug string) ([]booking.Service, error) {
	var raw json.RawMessage
	err := c.do(ctx, call{
		op:     "list_services",
		method: http.MethodGet,
		path:   "/api/public/businesses/" + url.PathEscape(slug) + "/services",
		out:    &raw,
	})
	if err != nil {
		return nil, err
	}
	services, err := decodeList[booking.Service](raw, "services", "results")
	if err != nil {
		return nil, fmt.Errorf("flowkey: list_services: decode response: %v: %w", err, booking.ErrTransport)
	}
	return services, nil
}

// Availability returns the open slots for one date.
func (c *Client) Availability(ctx context.Context, q SlotQuery) ([]booking.Slot, error) {
	params := url.Values{}
	params.Set("date", q.Date)
	optionalIDs(params, q.StaffID, q.LocationID)

	var raw json.RawMessage
	err := c.do(ctx, call{
		op:     "availability",
		method: http.MethodGet,
		path:   servicePath(q.Slug, q.ServiceID, "availability") + "?" + params.Encode(),
		out:    &raw,
	})
	if err != nil {
		return nil, err
	}
	slots, err := decodeList[booking.Slot](raw, "slots", "results")
	if err != nil {
		return nil, fmt.Errorf("flowkey: availability: decode response: %v: %w", err, booking.ErrTransport)
	}
	return slots, nil
}

// AvailabilityRange returns open slots keyed by YYYY-MM-DD. Dates the API
// omits are absent from the map.
func (c *Client) AvailabilityRange(ctx context.Context, q RangeQuery) (map[string][]booking.Slot, error) {
	params := url.Values{}
	params.Set("start_date", q.StartDate)
	params.Set("end_date", q.EndDate)
	optionalIDs(params, q.StaffID, q.LocationID)

	var byDate map[string][]booking.Slot
	err := c.do(ctx, call{
		op:     "availability_range",
		method: http.MethodGet,
		path:   servicePath(q.Slug, q.ServiceID, "availability/range") + "?" + params.Encode(),
		out:    &byDate,
	})
	if err != nil {
		return nil, err
	}
	return byDate, nil
}

// AvailableStaff lists instructors who can deliver a service on date.
func (c *Client) AvailableStaff(ctx context.Context, slug string, serviceID int64, date string) ([]booking.StaffMember, error) {
	params := url.Values{}
	if date != "" {
		params.Set("date", date)
	}
	var raw json.RawMessage
	err := c.do(ctx, call{
		op:     "available_staff",
		method: http.MethodGet,
		path:   servicePath(slug, serviceID, "staff") + "?" + params.Encode(),
		out:    &raw,
	})
	if err != nil {
		return nil, err
	}
	staff, err := decodeList[booking.StaffMember](raw, "staff", "results")
	if err != nil {
		return nil, fmt.Errorf("flowkey: available_staff: decode response: %v: %w", err, booking.ErrTransport)
	}
	return staff, nil
}

// AvailableLocations lists locations offering a service on date, optionally
// narrowed to one instructor.
func (c *Client) AvailableLocations(ctx context.Context, slug string, serviceID int64, date string, staffID int64) ([]booking.Location, error) {
	params := url.Values{}
	if date != "" {
		params.Set("date", date)
	}
	optionalIDs(params, staffID, 0)
	var raw json.RawMessage
	err := c.do(ctx, call{
		op:     "available_locations",
		method: http.MethodGet,
		path:   servicePath(slug, serviceID, "locations") + "?" + params.Encode(),
		out:    &raw,
	})
	if err != nil {
		return nil, err
	}
	locations, err := decodeList[booking.Location](raw, "locations", "results")
	if err != nil {
		return nil, fmt.Errorf("flowkey: available_locations: decode response: %v: %w", err, booking.ErrTransport)
	}
	return locations, nil
}

// CreateBooking submits a booking draft. It is never retried.
func (c *Client) CreateBooking(ctx context.Context, draft booking.Draft) (*booking.Confirmation, error) {
	var conf booking.Confirmation
	err := c.do(ctx, call{
		op:     "create_booking",
		method: http.MethodPost,
		path:   "/api/public/bookings",
		body:   draft,
		out:    &conf,
	})
	if err != nil {
		return nil, err
	}
	if conf.Reference == "" {
		return nil, fmt.Errorf("flowkey: create_booking: response missing booking_reference: %w", booking.ErrTransport)
	}
	return &conf, nil
}

// GetConfirmation returns the public view of a booking by reference.
func (c *Client) GetConfirmation(ctx context.Context, reference string) (*booking.Request, error) {
	var req booking.Request
	err := c.do(ctx, call{
		op:     "get_confirmation",
		method: http.MethodGet,
		path:   "/api/public/bookings/" + url.PathEscape(reference) + "/confirmation",
		out:    &req,
	})
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// CancelBooking cancels a booking on the client's behalf.
func (c *Client) CancelBooking(ctx context.Context, reference, reason string) (*ActionResult, error) {
	var res ActionResult
	err := c.do(ctx, call{
		op:     "cancel_booking",
		method: http.MethodPost,
		path:   "/api/public/bookings/" + url.PathEscape(reference) + "/cancel",
		body:   map[string]string{"reason": reason},
		out:    &res,
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// RescheduleBooking moves a booking to another session slot.
func (c *Client) RescheduleBooking(ctx context.Context, reference string, newSlotID int64) (*ActionResult, error) {
	var res ActionResult
	err := c.do(ctx, call{
		op:     "reschedule_booking",
		method: http.MethodPost,
		path:   "/api/public/bookings/" + url.PathEscape(reference) + "/reschedule",
		body:   map[string]string{"new_slot_id": strconv.FormatInt(newSlotID, 10)},
		out:    &res,
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}
