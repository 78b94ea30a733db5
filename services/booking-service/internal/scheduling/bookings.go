package scheduling

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/outbox"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

func (s *Service) GetBooking(ctx context.Context, tenantID, id string) (model.Booking, error) {
	if err := requireTenant(tenantID); err != nil {
		return model.Booking{}, err
	}
	return s.store.GetBooking(ctx, tenantID, id)
}

// GetBookingByShortCode accepts codes in any case and with separators.
func (s *Service) GetBookingByShortCode(ctx context.Context, tenantID, code string) (model.Booking, error) {
	if err := requireTenant(tenantID); err != nil {
		return model.Booking{}, err
	}
	code = model.NormalizeShortCode(code)
	if len(code) != model.ShortCodeLength {
		return model.Booking{}, fmt.Errorf("short code %q: %w", code, model.ErrNotFound)
	}
	return s.store.GetBookingByShortCode(ctx, tenantID, code)
}

func (s *Service) ListBookings(ctx context.Context, tenantID string, f BookingFilter) ([]model.Booking, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	if !f.From.IsZero() && !f.To.IsZero() && !f.From.Before(f.To) {
		return nil, model.NewValidationError("from", "must be before to")
	}
	switch {
	case f.Limit <= 0:
		f.Limit = defaultListLimit
	case f.Limit > maxListLimit:
		f.Limit = maxListLimit
	}
	return s.store.ListBookings(ctx, tenantID, f)
}

// ConfirmBooking moves a PENDING booking to CONFIRMED.
func (s *Service) ConfirmBooking(ctx context.Context, tenantID, id string) (model.Booking, error) {
	return s.transition(ctx, tenantID, id, model.StatusConfirmed, "")
}

// CancelBooking releases the booking's capacity. Cancelling twice is an invalid transition.
func (s *Service) CancelBooking(ctx context.Context, tenantID, id, reason string) (model.Booking, error) {
	reason = strings.TrimSpace(reason)
	if len(reason) > maxReasonLength {
		return model.Booking{}, model.NewValidationError("reason", fmt.Sprintf("must be at most %d characters", maxReasonLength))
	}
	return s.transition(ctx, tenantID, id, model.StatusCancelled, reason)
}

func (s *Service) transition(ctx context.Context, tenantID, id string, next model.BookingStatus, reason string) (_ model.Booking, err error) {
	const op = "scheduling.transition"

	ctx, span := s.startSpan(ctx, "scheduling.booking_transition",
		attribute.String("tenant.id", tenantID),
		attribute.String("booking.id", id),
		attribute.String("status", string(next)),
	)
	defer func() { endSpan(span, err) }()

	if err := requireTenant(tenantID); err != nil {
		return model.Booking{}, err
	}

	eventType := outbox.TypeBookingConfirmed
	if next == model.StatusCancelled {
		eventType = outbox.TypeBookingCancelled
	}

	out, err := s.store.ModifyBooking(ctx, tenantID, id, func(b *model.Booking) ([]outbox.Event, error) {
		if !b.Status.CanTransition(next) {
			return nil, fmt.Errorf("%s -> %s: %w", b.Status, next, model.ErrInvalidTransition)
		}
		now := s.now().UTC()
		b.Status = next
		if next == model.StatusCancelled {
			b.CancelledAt = &now
			b.CancelReason = reason
		}
		evt, err := bookingEvent(eventType, *b, now)
		if err != nil {
			return nil, err
		}
		return []outbox.Event{evt}, nil
	})
	if err != nil {
		return model.Booking{}, fmt.Errorf("%s: %w", op, err)
	}
	s.logger.Info("booking status changed", "tenant_id", tenantID, "booking_id", id, "status", next)
	return out, nil
}
