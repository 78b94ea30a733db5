package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/timeslot"
)

// ReserveRequest identifies the slot either by TimeSlotID (as returned by ListSlots) or by
// StaffID with Start/End.
type ReserveRequest struct {
	ServiceID       string
	TimeSlotID      string
	StaffID         string
	Start           time.Time
	End             time.Time
	SeekerID        string
	GuestEmail      string
	Notes           string
	SpecialRequests string
	IdempotencyKey  string
}

const maxNotesLength = 2000

// BookingEvent is the payload of booking.* events.
type BookingEvent struct {
	BookingID  string    `json:"booking_id"`
	TenantID   string    `json:"tenant_id"`
	ServiceID  string    `json:"service_id"`
	StaffID    string    `json:"staff_id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Status     string    `json:"status"`
	ShortCode  string    `json:"short_code"`
	SeekerID   string    `json:"seeker_id,omitempty"`
	GuestEmail string    `json:"guest_email,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func bookingEvent(eventType string, b model.Booking, at time.Time) (outbox.Event, error) {
	return outbox.ForBooking(b.ID, eventType, BookingEvent{
		BookingID:  b.ID,
		TenantID:   b.TenantID,
		ServiceID:  b.ServiceID,
		StaffID:    b.StaffID,
		Start:      b.Start.UTC(),
		End:        b.End.UTC(),
		Status:     string(b.Status),
		ShortCode:  b.ShortCode,
		SeekerID:   b.Requester.SeekerID(),
		GuestEmail: b.Requester.GuestEmail(),
		Reason:     b.CancelReason,
		OccurredAt: at.UTC(),
	})
}

// Reserve books a slot for the requester. The capacity check and the insert happen under one
// per-staff lock, so concurrent callers can never exceed the tenant's overlap capacity. On any
// error nothing is persisted.
func (s *Service) Reserve(ctx context.Context, tenantID string, req ReserveRequest) (_ model.Booking, err error) {
	const op = "scheduling.Reserve"

	ctx, span := s.startSpan(ctx, "scheduling.reserve",
		attribute.String("tenant.id", tenantID),
		attribute.String("service.id", req.ServiceID),
	)
	replayed := false
	defer func() {
		outcome := reservationOutcome(err)
		if err == nil && replayed {
			outcome = metrics.OutcomeReplayed
		}
		s.metrics.ObserveReservation(outcome)
		endSpan(span, err)
	}()

	requester, ref, err := s.validateReserve(tenantID, req)
	if err != nil {
		return model.Booking{}, err
	}
	staffID, slot := ref.StaffID, ref.Slot
	span.SetAttributes(attribute.String("staff.id", staffID))

	var booking model.Booking
	err = s.store.WithStaffLock(ctx, tenantID, staffID, func(tx ReservationTx) error {
		// A replay returns the original booking even once the slot is gone or in the past.
		if req.IdempotencyKey != "" {
			existingID, err := tx.LookupIdempotencyKey(ctx, req.IdempotencyKey)
			if err != nil {
				return err
			}
			if existingID != "" {
				existing, err := tx.GetBooking(ctx, existingID)
				if err != nil {
					return err
				}
				if !sameReservation(existing, req.ServiceID, requester, staffID, slot) {
					return model.NewValidationError("idempotency_key", "already used for a different reservation")
				}
				booking, replayed = existing, true
				return nil
			}
		}

		svc, tc, err := s.checkReservable(ctx, tenantID, req.ServiceID, &ref)
		if err != nil {
			return err
		}

		overlapping, err := tx.CountOverlapping(ctx, slot)
		if err != nil {
			return err
		}
		if overlapping >= tc.policy.Capacity() {
			return fmt.Errorf("%s: %d of %d places taken: %w", op, overlapping, tc.policy.Capacity(), model.ErrSlotUnavailable)
		}

		status := model.StatusPending
		if tc.policy.AutoConfirmBookings {
			status = model.StatusConfirmed
		}
		booking = model.Booking{
			TenantID:        tenantID,
			ServiceID:       svc.ID,
			StaffID:         staffID,
			TimeSlotID:      ref.Encode(),
			Start:           slot.Start().UTC(),
			End:             slot.End().UTC(),
			Requester:       requester,
			Status:          status,
			Notes:           req.Notes,
			SpecialRequests: req.SpecialRequests,
		}
		if err := tx.InsertBooking(ctx, &booking); err != nil {
			return err
		}

		evt, err := bookingEvent(outbox.TypeBookingReserved, booking, s.now())
		if err != nil {
			return err
		}
		if err := tx.Enqueue(ctx, evt); err != nil {
			return err
		}
		if req.IdempotencyKey != "" {
			return tx.FinalizeIdempotency(ctx, req.IdempotencyKey, booking.ID)
		}
		return nil
	})
	if err != nil {
		return model.Booking{}, err
	}

	if replayed {
		s.logger.Info("reservation replayed", "tenant_id", tenantID, "booking_id", booking.ID)
		span.SetAttributes(attribute.Bool("idempotent.replay", true))
		return booking, nil
	}
	s.logger.Info("slot reserved",
		"tenant_id", tenantID,
		"booking_id", booking.ID,
		"staff_id", staffID,
		"start", booking.Start,
		"status", booking.Status,
	)
	return booking, nil
}

// checkReservable confirms the service and staff member can take the booking and that ref
// is one of the slots the staff member's day currently offers on ref's grid. A ref without a
// grid step gets the tenant default.
func (s *Service) checkReservable(ctx context.Context, tenantID, serviceID string, ref *SlotRef) (model.Service, tenantContext, error) {
	const op = "scheduling.Reserve"

	svc, err := s.store.GetService(ctx, tenantID, serviceID)
	if err != nil {
		return model.Service{}, tenantContext{}, notFoundAsValidation("service_id", "unknown service", err)
	}
	if !svc.IsActive {
		return model.Service{}, tenantContext{}, inactiveService()
	}
	member, err := s.store.GetStaff(ctx, tenantID, ref.StaffID)
	if err != nil {
		return model.Service{}, tenantContext{}, notFoundAsValidation("staff_id", "unknown staff member", err)
	}
	if !member.IsActive || !svc.Offers(member.ID) {
		return model.Service{}, tenantContext{}, model.NewValidationError("staff_id", "staff member does not offer this service")
	}
	if ref.Slot.Duration() != svc.Duration() {
		return model.Service{}, tenantContext{}, model.NewValidationError("slot", fmt.Sprintf("must last %d minutes", svc.DurationMinutes))
	}

	tc, err := s.tenant(ctx, tenantID)
	if err != nil {
		return model.Service{}, tenantContext{}, err
	}
	if ref.Slot.Start().Before(s.now()) {
		return model.Service{}, tenantContext{}, fmt.Errorf("%s: slot starts in the past: %w", op, model.ErrSlotUnavailable)
	}
	windows, err := s.resolveDay(ctx, tenantID, ref.StaffID, availability.DayOf(ref.Slot.Start(), tc.loc), tc)
	if err != nil {
		return model.Service{}, tenantContext{}, err
	}
	opts := availability.SlotOptions{Duration: svc.Duration(), Granularity: ref.Granularity}
	if opts.Granularity <= 0 {
		opts.Granularity = s.granularity(0, tc)
	}
	ref.Granularity = opts.Step()
	ok, err := availability.Bookable(windows, ref.Slot, opts)
	if err != nil {
		return model.Service{}, tenantContext{}, err
	}
	if !ok {
		return model.Service{}, tenantContext{}, fmt.Errorf("%s: %s is not an offered slot: %w", op, ref.Slot, model.ErrSlotUnavailable)
	}
	return svc, tc, nil
}

func sameReservation(b model.Booking, serviceID string, requester model.Requester, staffID string, slot timeslot.Interval) bool {
	return b.ServiceID == serviceID &&
		b.StaffID == staffID &&
		b.Start.Equal(slot.Start()) &&
		b.End.Equal(slot.End()) &&
		b.Requester.SeekerID() == requester.SeekerID() &&
		b.Requester.GuestEmail() == requester.GuestEmail()
}

func inactiveService() error {
	v := model.NewValidationError("service_id", "service is not offered")
	v.Cause = model.ErrNotFound
	return v
}

func reservationOutcome(err error) string {
	var v *model.ValidationError
	switch {
	case err == nil:
		return metrics.OutcomeReserved
	case errors.Is(err, model.ErrSlotUnavailable):
		return metrics.OutcomeUnavailable
	case errors.As(err, &v), errors.Is(err, timeslot.ErrInvalidInterval):
		return metrics.OutcomeInvalid
	}
	return metrics.OutcomeError
}

// validateReserve checks the request shape. A staff/start/end request gets a zero
// Granularity, which means the tenant's default grid.
func (s *Service) validateReserve(tenantID string, req ReserveRequest) (model.Requester, SlotRef, error) {
	v := &model.ValidationError{}
	if tenantID == "" {
		v.Add("tenant_id", "required")
	}
	if strings.TrimSpace(req.ServiceID) == "" {
		v.Add("service_id", "required")
	}
	if len(req.Notes) > maxNotesLength {
		v.Add("notes", fmt.Sprintf("must be at most %d characters", maxNotesLength))
	}
	if len(req.SpecialRequests) > maxNotesLength {
		v.Add("special_requests", fmt.Sprintf("must be at most %d characters", maxNotesLength))
	}

	requester, err := model.NewRequester(req.SeekerID, req.GuestEmail)
	if err != nil {
		var rv *model.ValidationError
		if errors.As(err, &rv) {
			for f, m := range rv.FieldErrors {
				v.Add(f, m)
			}
		}
	}

	var ref SlotRef
	switch {
	case req.TimeSlotID != "":
		ref, err = DecodeSlotRef(req.TimeSlotID)
		if err != nil {
			v.Add("time_slot_id", "malformed")
		} else if req.StaffID != "" && req.StaffID != ref.StaffID {
			v.Add("staff_id", "does not match time_slot_id")
		}
	case req.StaffID != "":
		ref.StaffID = req.StaffID
		ref.Slot, err = timeslot.New(req.Start, req.End)
		if err != nil {
			v.Add("slot", "start must be before end")
		}
	default:
		v.Add("time_slot_id", "either time_slot_id or staff_id with start/end is required")
	}

	if v.HasErrors() {
		return model.Requester{}, SlotRef{}, v
	}
	return requester, ref, nil
}

func notFoundAsValidation(field, msg string, err error) error {
	if errors.Is(err, model.ErrNotFound) {
		v := model.NewValidationError(field, msg)
		v.Cause = model.ErrNotFound
		return v
	}
	return err
}
