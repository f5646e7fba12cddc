package flow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/flowkey/flowkey-booking/internal/availability"
	"github.com/flowkey/flowkey-booking/internal/booking"
	"github.com/flowkey/flowkey-booking/internal/observability/metrics"
	"github.com/flowkey/flowkey-booking/pkg/logging"
)

var flowTracer = otel.Tracer("flowkey.internal.flow")

// Catalog is the FlowKey API surface the booking flow touches.
type Catalog interface {
	GetBusiness(ctx context.Context, slug string) (*booking.Business, error)
	ListServices(ctx context.Context, slug string) ([]booking.Service, error)
	CreateBooking(ctx context.Context, draft booking.Draft) (*booking.Confirmation, error)
}

// Availability resolves the choices offered on the date, staff and
// location steps.
type Availability interface {
	Slots(ctx context.Context, q availability.Query) ([]booking.Slot, error)
	Staff(ctx context.Context, slug string, serviceID int64, date string) ([]booking.StaffMember, error)
	Locations(ctx context.Context, slug string, serviceID int64, date string, staffID int64) ([]booking.Location, error)
}

// SlotChoice identifies a slot picked by the client.
type SlotChoice struct {
	Date      string `json:"date"`
	SessionID int64  `json:"session_id"`
	StartTime string `json:"start_time"`
}

// Service runs booking flows on behalf of browsers, loading and saving each
// flow through a Store around every operation.
type Service struct {
	catalog Catalog
	avail   Availability
	store   Store
	metrics *metrics.BookingMetrics
	logger  *logging.Logger
	now     func() time.Time
	newID   func() string
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithMetrics records step moves and submissions.
func WithMetrics(m *metrics.BookingMetrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDs overrides flow id generation.
func WithIDs(newID func() string) ServiceOption {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// NewService constructs a flow service.
func NewService(catalog Catalog, avail Availability, store Store, logger *logging.Logger, opts ...ServiceOption) *Service {
	if catalog == nil || avail == nil || store == nil {
		panic("flow: catalog, availability and store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		catalog: catalog,
		avail:   avail,
		store:   store,
		logger:  logger,
		now:     time.Now,
		newID:   func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start loads the business settings and begins a flow on the first step.
func (s *Service) Start(ctx context.Context, slug string) (*Flow, error) {
	biz, err := s.catalog.GetBusiness(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("flow: load business %s: %w", slug, err)
	}
	f := New(s.newID(), *biz, s.now())
	if err := s.store.Save(ctx, f); err != nil {
		return nil, err
	}
	s.logger.Info("booking flow started", "flow_id", f.ID, "business", f.BusinessSlug, "steps", len(f.Steps))
	return f, nil
}

// Get returns the stored flow.
func (s *Service) Get(ctx context.Context, id string) (*Flow, error) {
	return s.store.Load(ctx, id)
}

// SelectService chooses a service by id from the tenant's catalog.
func (s *Service) SelectService(ctx context.Context, id string, serviceID int64) (*Flow, error) {
	return s.mutate(ctx, id, func(f *Flow) error {
		services, err := s.catalog.ListServices(ctx, f.BusinessSlug)
		if err != nil {
			return fmt.Errorf("flow: list services: %w", err)
		}
		for _, svc := range services {
			if svc.ID == serviceID {
				return f.SelectService(svc)
			}
		}
		return &booking.ValidationError{Step: string(StepService), Field: "service_id", Message: "Selected service is not offered"}
	})
}

// SelectSlot chooses a slot after confirming it is still open.
func (s *Service) SelectSlot(ctx context.Context, id string, choice SlotChoice) (*Flow, error) {
	return s.mutate(ctx, id, func(f *Flow) error {
		if f.Draft.Service == nil {
			return &booking.ValidationError{Step: string(StepDate), Field: "service_id", Message: "Please select a service first"}
		}
		q := availability.Query{Slug: f.BusinessSlug, ServiceID: f.Draft.Service.ID, Date: choice.Date}
		if f.Draft.Staff != nil {
			q.StaffID = f.Draft.Staff.ID
		}
		if f.Draft.Location != nil {
			q.LocationID = f.Draft.Location.ID
		}
		slots, err := s.avail.Slots(ctx, q)
		if err != nil {
			return err
		}
		for _, slot := range slots {
			if slot.SessionID == choice.SessionID && (choice.StartTime == "" || slot.StartTime == choice.StartTime) {
				return f.SelectSlot(choice.Date, slot)
			}
		}
		return fmt.Errorf("flow: session %d on %s: %w", choice.SessionID, choice.Date, booking.ErrSlotUnavailable)
	})
}

// SelectStaff chooses an instructor offered for the selected service.
func (s *Service) SelectStaff(ctx context.Context, id string, staffID int64) (*Flow, error) {
	return s.mutate(ctx, id, func(f *Flow) error {
		if f.Draft.Service == nil {
			return &booking.ValidationError{Step: string(StepStaff), Field: "service_id", Message: "Please select a service first"}
		}
		staff, err := s.avail.Staff(ctx, f.BusinessSlug, f.Draft.Service.ID, f.Draft.Date)
		if err != nil {
			return err
		}
		for _, m := range staff {
			if m.ID == staffID {
				return f.SelectStaff(m)
			}
		}
		return &booking.ValidationError{Step: string(StepStaff), Field: "staff_id", Message: "Selected staff member is not available"}
	})
}

// SelectLocation chooses a location offered for the selected service.
func (s *Service) SelectLocation(ctx context.Context, id string, locationID int64) (*Flow, error) {
	return s.mutate(ctx, id, func(f *Flow) error {
		if f.Draft.Service == nil {
			return &booking.ValidationError{Step: string(StepLocation), Field: "service_id", Message: "Please select a service first"}
		}
		var staffID int64
		if f.Draft.Staff != nil {
			staffID = f.Draft.Staff.ID
		}
		locations, err := s.avail.Locations(ctx, f.BusinessSlug, f.Draft.Service.ID, f.Draft.Date, staffID)
		if err != nil {
			return err
		}
		for _, l := range locations {
			if l.ID == locationID {
				return f.SelectLocation(l)
			}
		}
		return &booking.ValidationError{Step: string(StepLocation), Field: "location_id", Message: "Selected location is not available"}
	})
}

// UpdateDetails stores the contact details.
func (s *Service) UpdateDetails(ctx context.Context, id string, d Details) (*Flow, error) {
	return s.mutate(ctx, id, func(f *Flow) error { return f.UpdateDetails(d) })
}

// Advance moves the flow forward one step.
func (s *Service) Advance(ctx context.Context, id string) (*Flow, error) {
	f, err := s.mutate(ctx, id, func(f *Flow) error { return f.Advance() })
	if err == nil {
		s.metrics.ObserveFlowStep("advance", string(f.Current()))
	}
	return f, err
}

// Retreat moves the flow back one step.
func (s *Service) Retreat(ctx context.Context, id string) (*Flow, error) {
	f, err := s.mutate(ctx, id, func(f *Flow) error { return f.Retreat() })
	if err == nil {
		s.metrics.ObserveFlowStep("retreat", string(f.Current()))
	}
	return f, err
}

// Reset clears the draft and returns to the first step.
func (s *Service) Reset(ctx context.Context, id string) (*Flow, error) {
	return s.mutate(ctx, id, func(f *Flow) error { return f.Reset() })
}

// Submit creates the booking. A second submission of the same flow while
// one is running fails with ErrSubmitInFlight and issues no API call. On
// success the stored draft is discarded and the confirmed flow returned.
func (s *Service) Submit(ctx context.Context, id string) (*Flow, error) {
	ctx, span := flowTracer.Start(ctx, "flow.submit")
	defer span.End()
	span.SetAttributes(attribute.String("flowkey.flow_id", id))

	release, err := s.store.Lock(ctx, id)
	if errors.Is(err, ErrFlowBusy) {
		s.metrics.ObserveSubmission("in_flight")
		return nil, ErrSubmitInFlight
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer release()

	f, err := s.store.Load(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("flowkey.business", f.BusinessSlug))

	conf, err := f.Submit(ctx, s.catalog)
	if err != nil {
		span.RecordError(err)
		kind := booking.Classify(err)
		s.metrics.ObserveSubmission(string(kind))
		s.logger.Warn("booking submission failed", "flow_id", id, "business", f.BusinessSlug, "kind", kind, "error", err)
		return f, err
	}

	s.metrics.ObserveSubmission("ok")
	s.logger.Info("booking submitted", "flow_id", id, "business", f.BusinessSlug, "booking_reference", conf.Reference, "status", conf.Status)
	if err := s.store.Delete(ctx, id); err != nil {
		s.logger.Warn("failed to discard submitted flow", "flow_id", id, "error", err)
	}
	return f, nil
}

// mutate runs fn under the flow lock so a change cannot interleave with a
// submission and bring a submitted flow back.
func (s *Service) mutate(ctx context.Context, id string, fn func(*Flow) error) (*Flow, error) {
	release, err := s.store.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	f, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(f); err != nil {
		if !errors.Is(err, booking.ErrValidation) {
			s.logger.Debug("flow operation rejected", "flow_id", id, "step", f.Current(), "error", err)
		}
		return f, err
	}
	f.UpdatedAt = s.now()
	if err := s.store.Save(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}
