package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/flowkey/flowkey-booking/internal/availability"
	"github.com/flowkey/flowkey-booking/internal/booking"
	"github.com/flowkey/flowkey-booking/internal/flow"
	"github.com/flowkey/flowkey-booking/internal/flowkey"
	"github.com/flowkey/flowkey-booking/internal/http/middleware"
	"github.com/flowkey/flowkey-booking/internal/notify"
	"github.com/flowkey/flowkey-booking/pkg/logging"
)

// PublicBookings is the public API surface used outside the flow.
type PublicBookings interface {
	ListServices(ctx context.Context, slug string) ([]booking.Service, error)
	GetConfirmation(ctx context.Context, reference string) (*booking.Request, error)
	CancelBooking(ctx context.Context, reference, reason string) (*flowkey.ActionResult, error)
	RescheduleBooking(ctx context.Context, reference string, newSlotID int64) (*flowkey.ActionResult, error)
}

// PublicHandler serves the booking widget: catalog, availability and the
// step-by-step booking flow.
type PublicHandler struct {
	flows    *flow.Service
	resolver *availability.Resolver
	bookings PublicBookings
	logger   *logging.Logger
}

// NewPublicHandler creates the public booking handler.
func NewPublicHandler(flows *flow.Service, resolver *availability.Resolver, bookings PublicBookings, logger *logging.Logger) *PublicHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &PublicHandler{flows: flows, resolver: resolver, bookings: bookings, logger: logger}
}

type flowView struct {
	ID           string                `json:"id"`
	BusinessSlug string                `json:"business_slug"`
	Steps        []flow.Step           `json:"steps"`
	CurrentStep  flow.Step             `json:"current_step"`
	StepIndex    int                   `json:"step_index"`
	CanAdvance   bool                  `json:"can_advance"`
	CanSubmit    bool                  `json:"can_submit"`
	Draft        flow.Draft            `json:"draft"`
	Confirmation *booking.Confirmation `json:"confirmation,omitempty"`
}

func newFlowView(f *flow.Flow) flowView {
	return flowView{
		ID:           f.ID,
		BusinessSlug: f.BusinessSlug,
		Steps:        f.Steps,
		CurrentStep:  f.Current(),
		StepIndex:    f.Index,
		CanAdvance:   f.CanAdvance(),
		CanSubmit:    f.CanSubmit(),
		Draft:        f.Draft,
		Confirmation: f.Confirmation,
	}
}

func (h *PublicHandler) slug(r *http.Request) string {
	slug, _ := middleware.BusinessSlugFromContext(r.Context())
	return slug
}

// StartFlow handles POST /public/{slug}/flows.
func (h *PublicHandler) StartFlow(w http.ResponseWriter, r *http.Request) {
	f, err := h.flows.Start(r.Context(), h.slug(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, newFlowView(f))
}

// ListServices handles GET /public/{slug}/services.
func (h *PublicHandler) ListServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.bookings.ListServices(r.Context(), h.slug(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if services == nil {
		services = []booking.Service{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": services})
}

// Availability handles GET /public/{slug}/services/{serviceID}/availability.
func (h *PublicHandler) Availability(w http.ResponseWriter, r *http.Request) {
	serviceID, err := idParam(r, "serviceID")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	staffID, err := queryID(r, "staff_id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	locationID, err := queryID(r, "location_id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	date := r.URL.Query().Get("date")
	slots, err := h.resolver.Slots(r.Context(), availability.Query{
		Slug:       h.slug(r),
		ServiceID:  serviceID,
		Date:       date,
		StaffID:    staffID,
		LocationID: locationID,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": date, "slots": slots})
}

// AvailabilityRange handles GET /public/{slug}/services/{serviceID}/availability/range.
func (h *PublicHandler) AvailabilityRange(w http.ResponseWriter, r *http.Request) {
	serviceID, err := idParam(r, "serviceID")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	staffID, err := queryID(r, "staff_id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	locationID, err := queryID(r, "location_id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	q := r.URL.Query()
	byDate, err := h.resolver.Range(r.Context(), availability.RangeQuery{
		Slug:       h.slug(r),
		ServiceID:  serviceID,
		Start:      q.Get("start_date"),
		End:        q.Get("end_date"),
		StaffID:    staffID,
		LocationID: locationID,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, byDate)
}

// Staff handles GET /public/{slug}/services/{serviceID}/staff.
func (h *PublicHandler) Staff(w http.ResponseWriter, r *http.Request) {
	serviceID, err := idParam(r, "serviceID")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	staff, err := h.resolver.Staff(r.Context(), h.slug(r), serviceID, r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"staff": staff})
}

// Locations handles GET /public/{slug}/services/{serviceID}/locations.
func (h *PublicHandler) Locations(w http.ResponseWriter, r *http.Request) {
	serviceID, err := idParam(r, "serviceID")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	staffID, err := queryID(r, "staff_id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	locations, err := h.resolver.Locations(r.Context(), h.slug(r), serviceID, r.URL.Query().Get("date"), staffID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"locations": locations})
}

// GetFlow handles GET /public/flows/{flowID}.
func (h *PublicHandler) GetFlow(w http.ResponseWriter, r *http.Request) {
	f, err := h.flows.Get(r.Context(), chi.URLParam(r, "flowID"))
	h.respondFlow(w, f, err, http.StatusOK)
}

// SelectService handles POST /public/flows/{flowID}/service.
func (h *PublicHandler) SelectService(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ServiceID int64 `json:"service_id"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, h.logger, err)
		return
	}
	f, err := h.flows.SelectService(r.Context(), chi.URLParam(r, "flowID"), body.ServiceID)
	h.respondFlow(w, f, err, http.StatusOK)
}

// SelectSlot handles POST /public/flows/{flowID}/slot.
func (h *PublicHandler) SelectSlot(w http.ResponseWriter, r *http.Request) {
	var body flow.SlotChoice
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, h.logger, err)
		return
	}
	f, err := h.flows.SelectSlot(r.Context(), chi.URLParam(r, "flowID"), body)
	h.respondFlow(w, f, err, http.StatusOK)
}

// SelectStaff handles POST /public/flows/{flowID}/staff.
func (h *PublicHandler) SelectStaff(w http.ResponseWriter, r *http.Request) {
	var body struct {
		StaffID int64 `json:"staff_id"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, h.logger, err)
		return
	}
	f, err := h.flows.SelectStaff(r.Context(), chi.URLParam(r, "flowID"), body.StaffID)
	h.respondFlow(w, f, err, http.StatusOK)
}

// SelectLocation handles POST /public/flows/{flowID}/location.
func (h *PublicHandler) SelectLocation(w http.ResponseWriter, r *http.Request) {
	var body struct {
		LocationID int64 `json:"location_id"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, h.logger, err)
		return
	}
	f, err := h.flows.SelectLocation(r.Context(), chi.URLParam(r, "flowID"), body.LocationID)
	h.respondFlow(w, f, err, http.StatusOK)
}

// UpdateDetails handles POST /public/flows/{flowID}/details.
func (h *PublicHandler) UpdateDetails(w http.ResponseWriter, r *http.Request) {
	var body flow.Details
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, h.logger, err)
		return
	}
	f, err := h.flows.UpdateDetails(r.Context(), chi.URLParam(r, "flowID"), body)
	h.respondFlow(w, f, err, http.StatusOK)
}

// Advance handles POST /public/flows/{flowID}/advance.
func (h *PublicHandler) Advance(w http.ResponseWriter, r *http.Request) {
	f, err := h.flows.Advance(r.Context(), chi.URLParam(r, "flowID"))
	h.respondFlow(w, f, err, http.StatusOK)
}

// Retreat handles POST /public/flows/{flowID}/retreat.
func (h *PublicHandler) Retreat(w http.ResponseWriter, r *http.Request) {
	f, err := h.flows.Retreat(r.Context(), chi.URLParam(r, "flowID"))
	h.respondFlow(w, f, err, http.StatusOK)
}

// Reset handles POST /public/flows/{flowID}/reset.
func (h *PublicHandler) Reset(w http.ResponseWriter, r *http.Request) {
	f, err := h.flows.Reset(r.Context(), chi.URLParam(r, "flowID"))
	h.respondFlow(w, f, err, http.StatusOK)
}

// Submit handles POST /public/flows/{flowID}/submit.
func (h *PublicHandler) Submit(w http.ResponseWriter, r *http.Request) {
	f, err := h.flows.Submit(r.Context(), chi.URLParam(r, "flowID"))
	h.respondFlow(w, f, err, http.StatusCreated)
}

func (h *PublicHandler) respondFlow(w http.ResponseWriter, f *flow.Flow, err error, status int) {
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, status, newFlowView(f))
}

// Confirmation handles GET /public/bookings/{reference}/confirmation.
func (h *PublicHandler) Confirmation(w http.ResponseWriter, r *http.Request) {
	req, err := h.bookings.GetConfirmation(r.Context(), chi.URLParam(r, "reference"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// CancelBooking handles POST /public/bookings/{reference}/cancel.
func (h *PublicHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	if err := decodeOptionalJSON(r, &body); err != nil {
		writeError(w, h.logger, err)
		return
	}
	res, err := h.bookings.CancelBooking(r.Context(), chi.URLParam(r, "reference"), body.Reason)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"result": res,
		"notice": notify.Notice{Level: notify.LevelSuccess, Title: "Booking Cancelled", Message: "Your booking has been successfully cancelled."},
	})
}

// RescheduleBooking handles POST /public/bookings/{reference}/reschedule.
func (h *PublicHandler) RescheduleBooking(w http.ResponseWriter, r *http.Request) {
	var body struct {
		NewSlotID int64 `json:"new_slot_id"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if body.NewSlotID <= 0 {
		writeError(w, h.logger, &booking.ValidationError{Field: "new_slot_id", Message: "Please select a new time slot"})
		return
	}
	res, err := h.bookings.RescheduleBooking(r.Context(), chi.URLParam(r, "reference"), body.NewSlotID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"result": res,
		"notice": notify.Notice{Level: notify.LevelSuccess, Title: "Booking Rescheduled", Message: "Your booking has been successfully rescheduled."},
	})
}
