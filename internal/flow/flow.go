// Package flow is the public booking flow: an ordered step sequence with an
// in-progress draft that is only sent to the FlowKey API on submission.
package flow

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/flowkey/flowkey-booking/internal/booking"
)

var emailPattern = regexp.MustCompile(`^\S+@\S+$`)

// Details is the contact information entered on the details step.
type Details struct {
	Name              string `json:"client_name"`
	Email             string `json:"client_email"`
	Phone             string `json:"client_phone"`
	Notes             string `json:"notes,omitempty"`
	Quantity          int    `json:"quantity"`
	ClientTimezone    string `json:"client_timezone,omitempty"`
	IsGroupBooking    bool   `json:"is_group_booking,omitempty"`
	GroupBookingNotes string `json:"group_booking_notes,omitempty"`
}

// Draft holds the selections made so far.
type Draft struct {
	Service  *booking.Service     `json:"service,omitempty"`
	Date     string               `json:"date,omitempty"`
	Slot     *booking.Slot        `json:"slot,omitempty"`
	Staff    *booking.StaffMember `json:"staff,omitempty"`
	Location *booking.Location    `json:"location,omitempty"`
	Details  Details              `json:"details"`
}

// Flow is one prospective client's pass through the booking steps.
type Flow struct {
	ID               string                          `json:"id"`
	BusinessSlug     string                          `json:"business_slug"`
	BusinessTimezone string                          `json:"business_timezone,omitempty"`
	MaxGroupSize     int                             `json:"max_group_size,omitempty"`
	Settings         booking.FlexibleBookingSettings `json:"settings"`
	Steps            []Step                          `json:"steps"`
	Index            int                             `json:"step_index"`
	Draft            Draft                           `json:"draft"`
	Confirmation     *booking.Confirmation           `json:"confirmation,omitempty"`
	CreatedAt        time.Time                       `json:"created_at"`
	UpdatedAt        time.Time                       `json:"updated_at"`
}

// New starts a flow for biz on its first step. The step list is fixed for
// the life of the flow.
func New(id string, biz booking.Business, now time.Time) *Flow {
	return &Flow{
		ID:               id,
		BusinessSlug:     biz.Slug,
		BusinessTimezone: biz.Timezone,
		MaxGroupSize:     biz.MaxGroupSize,
		Settings:         biz.FlexibleBooking,
		Steps:            Steps(biz.FlexibleBooking),
		Draft:            Draft{Details: Details{Quantity: 1}},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Current returns the step the flow is on.
func (f *Flow) Current() Step {
	if f.Index < 0 || f.Index >= len(f.Steps) {
		return StepService
	}
	return f.Steps[f.Index]
}

// Complete reports whether the booking has been submitted.
func (f *Flow) Complete() bool {
	return f.Current() == StepConfirmation
}

// CanAdvance reports whether Advance would succeed.
func (f *Flow) CanAdvance() bool {
	switch f.Current() {
	case StepDetails, StepConfirmation:
		return false
	}
	return f.stepComplete(f.Current()) == nil
}

// CanSubmit reports whether the flow is on details with valid details.
func (f *Flow) CanSubmit() bool {
	return f.Current() == StepDetails && f.ValidateDetails() == nil
}

func (f *Flow) hasStep(step Step) bool {
	for _, s := range f.Steps {
		if s == step {
			return true
		}
	}
	return false
}

// SelectService chooses the service. A different service clears the date
// and slot, which belonged to the earlier choice.
func (f *Flow) SelectService(svc booking.Service) error {
	if f.Complete() {
		return ErrFlowComplete
	}
	if svc.ID <= 0 {
		return &booking.ValidationError{Step: string(StepService), Field: "service_id", Message: "Please select a service"}
	}
	if f.Draft.Service != nil && f.Draft.Service.ID == svc.ID {
		return nil
	}
	f.Draft.Service = &svc
	f.Draft.Date = ""
	f.Draft.Slot = nil
	return nil
}

// SelectDate chooses the date. A different date clears the slot.
func (f *Flow) SelectDate(date string) error {
	if f.Complete() {
		return ErrFlowComplete
	}
	if _, err := booking.ParseDate(date); err != nil {
		return &booking.ValidationError{Step: string(StepDate), Field: "date", Message: "Date must be YYYY-MM-DD"}
	}
	if f.Draft.Date == date {
		return nil
	}
	f.Draft.Date = date
	f.Draft.Slot = nil
	return nil
}

// SelectSlot chooses a slot on date, selecting the date first.
func (f *Flow) SelectSlot(date string, slot booking.Slot) error {
	if f.Complete() {
		return ErrFlowComplete
	}
	if f.Draft.Service == nil {
		return &booking.ValidationError{Step: string(StepDate), Field: "service_id", Message: "Please select a service first"}
	}
	if slot.Date != "" && slot.Date != date {
		return &booking.ValidationError{Step: string(StepDate), Field: "slot", Message: "Time slot does not belong to the selected date"}
	}
	if slot.SessionID <= 0 {
		return &booking.ValidationError{Step: string(StepDate), Field: "slot", Message: "Please select a time slot"}
	}
	if err := f.SelectDate(date); err != nil {
		return err
	}
	if slot.Date == "" {
		slot.Date = date
	}
	f.Draft.Slot = &slot
	return nil
}

// SelectStaff chooses an instructor.
func (f *Flow) SelectStaff(m booking.StaffMember) error {
	if f.Complete() {
		return ErrFlowComplete
	}
	if !f.hasStep(StepStaff) {
		return &booking.ValidationError{Step: string(StepStaff), Field: "staff_id", Message: "Staff selection is not offered"}
	}
	if m.ID <= 0 {
		return &booking.ValidationError{Step: string(StepStaff), Field: "staff_id", Message: "Please select a staff member"}
	}
	f.Draft.Staff = &m
	return nil
}

// SelectLocation chooses a location.
func (f *Flow) SelectLocation(l booking.Location) error {
	if f.Complete() {
		return ErrFlowComplete
	}
	if !f.hasStep(StepLocation) {
		return &booking.ValidationError{Step: string(StepLocation), Field: "location_id", Message: "Location selection is not offered"}
	}
	if l.ID <= 0 {
		return &booking.ValidationError{Step: string(StepLocation), Field: "location_id", Message: "Please select a location"}
	}
	f.Draft.Location = &l
	return nil
}

// UpdateDetails replaces the contact details. Validation runs on submit.
func (f *Flow) UpdateDetails(d Details) error {
	if f.Complete() {
		return ErrFlowComplete
	}
	f.Draft.Details = d
	return nil
}

// Advance moves to the next step when the current step's selection is
// present. On error the current step is unchanged.
func (f *Flow) Advance() error {
	switch f.Current() {
	case StepConfirmation:
		return ErrFlowComplete
	case StepDetails:
		return &booking.ValidationError{Step: string(StepDetails), Field: "submit", Message: "Submit the booking to continue"}
	}
	if err := f.stepComplete(f.Current()); err != nil {
		return err
	}
	f.Index++
	return nil
}

// Retreat moves to the previous step, keeping every selection.
func (f *Flow) Retreat() error {
	if f.Complete() {
		return ErrFlowComplete
	}
	if f.Index == 0 {
		return ErrAtFirstStep
	}
	f.Index--
	return nil
}

// Reset discards all selections and returns to the first step.
func (f *Flow) Reset() error {
	if f.Complete() {
		return ErrFlowComplete
	}
	f.Index = 0
	f.Draft = Draft{Details: Details{Quantity: 1}}
	return nil
}

func (f *Flow) stepComplete(step Step) error {
	d := f.Draft
	switch step {
	case StepService:
		if d.Service == nil {
			return &booking.ValidationError{Step: string(step), Field: "service_id", Message: "Please select a service"}
		}
	case StepDate:
		if d.Date == "" {
			return &booking.ValidationError{Step: string(step), Field: "date", Message: "Please select a date"}
		}
		if d.Slot == nil {
			return &booking.ValidationError{Step: string(step), Field: "slot", Message: "Please select a time slot"}
		}
	case StepStaff:
		if d.Staff == nil {
			return &booking.ValidationError{Step: string(step), Field: "staff_id", Message: "Please select a staff member"}
		}
	case StepLocation:
		if d.Location == nil {
			return &booking.ValidationError{Step: string(step), Field: "location_id", Message: "Please select a location"}
		}
	}
	return nil
}

// ValidateDetails checks the contact details the way the details form does.
func (f *Flow) ValidateDetails() error {
	d := f.Draft.Details
	step := string(StepDetails)
	switch {
	case strings.TrimSpace(d.Name) == "":
		return &booking.ValidationError{Step: step, Field: "client_name", Message: "Full name is required"}
	case strings.TrimSpace(d.Email) == "":
		return &booking.ValidationError{Step: step, Field: "client_email", Message: "Email is required"}
	case !emailPattern.MatchString(strings.TrimSpace(d.Email)):
		return &booking.ValidationError{Step: step, Field: "client_email", Message: "Invalid email format"}
	case strings.TrimSpace(d.Phone) == "":
		return &booking.ValidationError{Step: step, Field: "client_phone", Message: "Phone number is required"}
	case d.Quantity < 1:
		return &booking.ValidationError{Step: step, Field: "quantity", Message: "At least 1 person is required"}
	case f.MaxGroupSize > 0 && d.Quantity > f.MaxGroupSize:
		return &booking.ValidationError{Step: step, Field: "quantity", Message: fmt.Sprintf("Groups are limited to %d people", f.MaxGroupSize)}
	case f.Draft.Slot != nil && f.Draft.Slot.AvailableSpots > 0 && d.Quantity > f.Draft.Slot.AvailableSpots:
		return &booking.ValidationError{Step: step, Field: "quantity", Message: fmt.Sprintf("Only %d spots available", f.Draft.Slot.AvailableSpots)}
	}
	return nil
}

// BookingDraft packages the selections into a booking-creation payload.
func (f *Flow) BookingDraft() (booking.Draft, error) {
	for _, step := range f.Steps {
		if step == StepDetails {
			break
		}
		if err := f.stepComplete(step); err != nil {
			return booking.Draft{}, err
		}
	}
	if err := f.ValidateDetails(); err != nil {
		return booking.Draft{}, err
	}

	d := f.Draft
	out := booking.Draft{
		BusinessSlug:     f.BusinessSlug,
		ServiceID:        d.Service.ID,
		SessionID:        d.Slot.SessionID,
		ClientName:       strings.TrimSpace(d.Details.Name),
		ClientEmail:      strings.TrimSpace(d.Details.Email),
		ClientPhone:      strings.TrimSpace(d.Details.Phone),
		Notes:            d.Details.Notes,
		SelectedDate:     d.Date,
		SelectedTime:     d.Slot.StartTime,
		SelectedEndTime:  d.Slot.EndTime,
		Quantity:         d.Details.Quantity,
		ClientTimezone:   d.Details.ClientTimezone,
		BusinessTimezone: f.BusinessTimezone,
	}
	if d.Staff != nil {
		out.StaffID = d.Staff.ID
	}
	if d.Location != nil {
		out.LocationID = d.Location.ID
	}
	if d.Details.IsGroupBooking {
		out.IsGroupBooking = true
		out.GroupBookingNotes = d.Details.GroupBookingNotes
		if out.GroupBookingNotes == "" {
			out.GroupBookingNotes = "Group booking request"
		}
	}
	return out, nil
}

// Submitter creates bookings.
type Submitter interface {
	CreateBooking(ctx context.Context, draft booking.Draft) (*booking.Confirmation, error)
}

// Submit sends the draft once. On success the flow moves to confirmation;
// on failure it stays on details with the draft untouched.
func (f *Flow) Submit(ctx context.Context, s Submitter) (*booking.Confirmation, error) {
	if f.Complete() {
		return nil, ErrFlowComplete
	}
	if f.Current() != StepDetails {
		return nil, &booking.ValidationError{Step: string(f.Current()), Field: "step", Message: "Submit is only allowed from the details step"}
	}
	draft, err := f.BookingDraft()
	if err != nil {
		return nil, err
	}

	conf, err := s.CreateBooking(ctx, draft)
	if err != nil {
		return nil, fmt.Errorf("flow: submit booking: %w", err)
	}
	f.Confirmation = conf
	f.Index++
	return conf, nil
}
