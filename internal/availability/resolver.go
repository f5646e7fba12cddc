// Package availability resolves open booking slots from the FlowKey API.
// It performs no local availability computation and caches nothing: each
// result is a point-in-time snapshot.
package availability

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/flowkey/flowkey-booking/internal/booking"
	"github.com/flowkey/flowkey-booking/internal/flowkey"
	"github.com/flowkey/flowkey-booking/pkg/logging"
)

// DefaultMaxRangeDays bounds range queries when no limit is configured.
const DefaultMaxRangeDays = 62

// API is the subset of the FlowKey client the resolver needs.
type API interface {
	Availability(ctx context.Context, q flowkey.SlotQuery) ([]booking.Slot, error)
	AvailabilityRange(ctx context.Context, q flowkey.RangeQuery) (map[string][]booking.Slot, error)
	AvailableStaff(ctx context.Context, slug string, serviceID int64, date string) ([]booking.StaffMember, error)
	AvailableLocations(ctx context.Context, slug string, serviceID int64, date string, staffID int64) ([]booking.Location, error)
}

// Query selects the slots of one date.
type Query struct {
	Slug       string
	ServiceID  int64
	Date       string
	StaffID    int64
	LocationID int64
}

// RangeQuery selects slots for every date in [Start, End].
type RangeQuery struct {
	Slug       string
	ServiceID  int64
	Start      string
	End        string
	StaffID    int64
	LocationID int64
}

// Resolver answers availability questions for the booking flow.
type Resolver struct {
	api          API
	maxRangeDays int
	logger       *logging.Logger
}

// NewResolver builds a Resolver. maxRangeDays <= 0 uses DefaultMaxRangeDays.
func NewResolver(api API, maxRangeDays int, logger *logging.Logger) *Resolver {
	if maxRangeDays <= 0 {
		maxRangeDays = DefaultMaxRangeDays
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Resolver{api: api, maxRangeDays: maxRangeDays, logger: logger}
}

// Slots returns the open slots for q.Date ordered by start time. An empty
// result means the day is fully booked and is not an error.
func (r *Resolver) Slots(ctx context.Context, q Query) ([]booking.Slot, error) {
	if err := checkTarget(q.Slug, q.ServiceID); err != nil {
		return nil, err
	}
	if _, err := booking.ParseDate(q.Date); err != nil {
		return nil, &booking.ValidationError{Step: "date", Field: "date", Message: "date must be YYYY-MM-DD"}
	}

	slots, err := r.api.Availability(ctx, flowkey.SlotQuery{
		Slug:       q.Slug,
		ServiceID:  q.ServiceID,
		Date:       q.Date,
		StaffID:    q.StaffID,
		LocationID: q.LocationID,
	})
	if err != nil {
		return nil, fmt.Errorf("availability: slots for %s: %w", q.Date, err)
	}
	r.logger.Debug("availability resolved", "business", q.Slug, "service_id", q.ServiceID, "date", q.Date, "slots", len(slots))
	return sortSlots(slots), nil
}

// Range returns slots for every date in [q.Start, q.End]. Every date is
// present in the result; days without availability map to an empty slice.
func (r *Resolver) Range(ctx context.Context, q RangeQuery) (map[string][]booking.Slot, error) {
	if err := checkTarget(q.Slug, q.ServiceID); err != nil {
		return nil, err
	}
	days, err := r.days(q.Start, q.End)
	if err != nil {
		return nil, err
	}

	byDate, err := r.api.AvailabilityRange(ctx, flowkey.RangeQuery{
		Slug:       q.Slug,
		ServiceID:  q.ServiceID,
		StartDate:  q.Start,
		EndDate:    q.End,
		StaffID:    q.StaffID,
		LocationID: q.LocationID,
	})
	if err != nil {
		return nil, fmt.Errorf("availability: range %s..%s: %w", q.Start, q.End, err)
	}

	out := make(map[string][]booking.Slot, len(days))
	for _, day := range days {
		out[day] = sortSlots(byDate[day])
	}
	return out, nil
}

// Staff lists instructors selectable for the staff step.
func (r *Resolver) Staff(ctx context.Context, slug string, serviceID int64, date string) ([]booking.StaffMember, error) {
	if err := checkTarget(slug, serviceID); err != nil {
		return nil, err
	}
	staff, err := r.api.AvailableStaff(ctx, slug, serviceID, date)
	if err != nil {
		return nil, fmt.Errorf("availability: staff: %w", err)
	}
	if staff == nil {
		staff = []booking.StaffMember{}
	}
	return staff, nil
}

// Locations lists locations selectable for the location step.
func (r *Resolver) Locations(ctx context.Context, slug string, serviceID int64, date string, staffID int64) ([]booking.Location, error) {
	if err := checkTarget(slug, serviceID); err != nil {
		return nil, err
	}
	locations, err := r.api.AvailableLocations(ctx, slug, serviceID, date, staffID)
	if err != nil {
		return nil, fmt.Errorf("availability: locations: %w", err)
	}
	if locations == nil {
		locations = []booking.Location{}
	}
	return locations, nil
}

func (r *Resolver) days(start, end string) ([]string, error) {
	from, err := booking.ParseDate(start)
	if err != nil {
		return nil, &booking.ValidationError{Field: "start_date", Message: "start date must be YYYY-MM-DD"}
	}
	to, err := booking.ParseDate(end)
	if err != nil {
		return nil, &booking.ValidationError{Field: "end_date", Message: "end date must be YYYY-MM-DD"}
	}
	if to.Before(from) {
		return nil, &booking.ValidationError{Field: "end_date", Message: "end date is before start date"}
	}
	span := int(to.Sub(from).Hours()/24) + 1
	if span > r.maxRangeDays {
		return nil, &booking.ValidationError{Field: "end_date", Message: fmt.Sprintf("range may cover at most %d days", r.maxRangeDays)}
	}

	days := make([]string, 0, span)
	for d := from; !d.After(to); d = d.Add(24 * time.Hour) {
		days = append(days, d.Format(booking.DateLayout))
	}
	return days, nil
}

func checkTarget(slug string, serviceID int64) error {
	if strings.TrimSpace(slug) == "" {
		return &booking.ValidationError{Field: "business", Message: "business is required"}
	}
	if serviceID <= 0 {
		return &booking.ValidationError{Step: "service", Field: "service_id", Message: "choose a service first"}
	}
	return nil
}

func sortSlots(slots []booking.Slot) []booking.Slot {
	if slots == nil {
		return []booking.Slot{}
	}
	sorted := make([]booking.Slot, len(slots))
	copy(sorted, slots)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })
	return sorted
}
