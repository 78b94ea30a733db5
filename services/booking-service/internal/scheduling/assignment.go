package scheduling

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/outbox"
)

// AssignmentEvent is the payload of availability.assigned/unassigned events.
type AssignmentEvent struct {
	AvailabilityID string    `json:"availability_id"`
	TenantID       string    `json:"tenant_id"`
	StaffID        string    `json:"staff_id,omitempty"`
	PreviousStaff  string    `json:"previous_staff_id,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Assign binds an availability record to a staff member. Assigning to the current owner is a
// no-op. Bookings are never touched.
func (s *Service) Assign(ctx context.Context, tenantID, availabilityID, staffID string) (_ availability.Availability, err error) {
	const op = "scheduling.Assign"

	ctx, span := s.startSpan(ctx, "scheduling.assign",
		attribute.String("tenant.id", tenantID),
		attribute.String("availability.id", availabilityID),
		attribute.String("staff.id", staffID),
	)
	defer func() { endSpan(span, err) }()

	v := &model.ValidationError{}
	if tenantID == "" {
		v.Add("tenant_id", "required")
	}
	if availabilityID == "" {
		v.Add("availability_id", "required")
	}
	if staffID == "" {
		v.Add("staff_id", "required")
	}
	if err := v.OrNil(); err != nil {
		return availability.Availability{}, err
	}

	if _, err := s.store.GetStaff(ctx, tenantID, staffID); err != nil {
		return availability.Availability{}, fmt.Errorf("%s: staff %s: %w", op, staffID, err)
	}

	out, err := s.store.ModifyAvailability(ctx, tenantID, availabilityID, func(a *availability.Availability) ([]outbox.Event, error) {
		previous, _ := a.Assignment.StaffID()
		if previous == staffID {
			return nil, ErrNoChange
		}
		a.Assignment = availability.AssignedTo(staffID)
		evt, err := outbox.ForAvailability(a.ID, outbox.TypeAvailabilityAssigned, AssignmentEvent{
			AvailabilityID: a.ID,
			TenantID:       tenantID,
			StaffID:        staffID,
			PreviousStaff:  previous,
			OccurredAt:     s.now().UTC(),
		})
		if err != nil {
			return nil, err
		}
		return []outbox.Event{evt}, nil
	})
	if err != nil {
		return availability.Availability{}, fmt.Errorf("%s: %w", op, err)
	}
	s.logger.Info("availability assigned", "tenant_id", tenantID, "availability_id", availabilityID, "staff_id", staffID)
	return out, nil
}

// Unassign returns an availability record to the unassigned pool.
func (s *Service) Unassign(ctx context.Context, tenantID, availabilityID string) (_ availability.Availability, err error) {
	const op = "scheduling.Unassign"

	ctx, span := s.startSpan(ctx, "scheduling.unassign",
		attribute.String("tenant.id", tenantID),
		attribute.String("availability.id", availabilityID),
	)
	defer func() { endSpan(span, err) }()

	if err := requireTenant(tenantID); err != nil {
		return availability.Availability{}, err
	}
	if availabilityID == "" {
		return availability.Availability{}, model.NewValidationError("availability_id", "required")
	}

	out, err := s.store.ModifyAvailability(ctx, tenantID, availabilityID, func(a *availability.Availability) ([]outbox.Event, error) {
		previous, assigned := a.Assignment.StaffID()
		if !assigned {
			return nil, ErrNoChange
		}
		a.Assignment = availability.Unassigned()
		evt, err := outbox.ForAvailability(a.ID, outbox.TypeAvailabilityUnassigned, AssignmentEvent{
			AvailabilityID: a.ID,
			TenantID:       tenantID,
			PreviousStaff:  previous,
			OccurredAt:     s.now().UTC(),
		})
		if err != nil {
			return nil, err
		}
		return []outbox.Event{evt}, nil
	})
	if err != nil {
		return availability.Availability{}, fmt.Errorf("%s: availability %s: %w", op, availabilityID, err)
	}
	s.logger.Info("availability unassigned", "tenant_id", tenantID, "availability_id", availabilityID)
	return out, nil
}
