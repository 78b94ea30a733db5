package scheduling

import (
	"context"
	"fmt"

	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/outbox"
)

// CreateAvailability validates and stores a new record. Records may be created unassigned.
func (s *Service) CreateAvailability(ctx context.Context, a availability.Availability) (availability.Availability, error) {
	const op = "scheduling.CreateAvailability"

	if err := requireTenant(a.TenantID); err != nil {
		return availability.Availability{}, err
	}
	if err := a.Validate(); err != nil {
		return availability.Availability{}, fmt.Errorf("%s: %w", op, err)
	}
	if staffID, ok := a.Assignment.StaffID(); ok {
		if _, err := s.store.GetStaff(ctx, a.TenantID, staffID); err != nil {
			return availability.Availability{}, notFoundAsValidation("staff_id", "unknown staff member", err)
		}
	}
	if a.Priority == 0 {
		a.Priority = availability.PriorityMedium
	}
	if err := s.store.CreateAvailability(ctx, &a); err != nil {
		return availability.Availability{}, fmt.Errorf("%s: %w", op, err)
	}
	s.logger.Info("availability created",
		"tenant_id", a.TenantID,
		"availability_id", a.ID,
		"type", a.Type,
		"assignment", a.Assignment.String(),
	)
	return a, nil
}

func (s *Service) GetAvailability(ctx context.Context, tenantID, id string) (availability.Availability, error) {
	if err := requireTenant(tenantID); err != nil {
		return availability.Availability{}, err
	}
	return s.store.GetAvailability(ctx, tenantID, id)
}

func (s *Service) ListAvailabilities(ctx context.Context, tenantID string, f AvailabilityFilter) ([]availability.Availability, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	if f.StaffID != "" && f.UnassignedOnly {
		return nil, model.NewValidationError("unassigned", "cannot be combined with staff_id")
	}
	return s.store.ListAvailabilities(ctx, tenantID, f)
}

// AvailabilityPatch carries the editable parts of a record. Nil fields are left alone.
// Assignment changes go through Assign/Unassign.
type AvailabilityPatch struct {
	Priority *availability.Priority
	Label    *string
	// Shape replaces the time fields (DayOfWeek/Window/ClockBreaks or Period/Breaks) of the
	// record. Its Type must match the stored one.
	Shape *availability.Availability
}

// UpdateAvailability applies p and re-validates the record before it is stored.
func (s *Service) UpdateAvailability(ctx context.Context, tenantID, id string, p AvailabilityPatch) (availability.Availability, error) {
	const op = "scheduling.UpdateAvailability"

	if err := requireTenant(tenantID); err != nil {
		return availability.Availability{}, err
	}
	out, err := s.store.ModifyAvailability(ctx, tenantID, id, func(a *availability.Availability) ([]outbox.Event, error) {
		if p.Priority != nil {
			a.Priority = *p.Priority
		}
		if p.Label != nil {
			a.Label = *p.Label
		}
		if p.Shape != nil {
			if p.Shape.Type != a.Type {
				return nil, model.NewValidationError("type", "cannot be changed")
			}
			a.DayOfWeek = p.Shape.DayOfWeek
			a.Window = p.Shape.Window
			a.ClockBreaks = p.Shape.ClockBreaks
			a.Period = p.Shape.Period
			a.Breaks = p.Shape.Breaks
		}
		return nil, a.Validate()
	})
	if err != nil {
		return availability.Availability{}, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// SetAvailabilityActive toggles whether slot resolution considers the record.
func (s *Service) SetAvailabilityActive(ctx context.Context, tenantID, id string, active bool) (availability.Availability, error) {
	const op = "scheduling.SetAvailabilityActive"

	if err := requireTenant(tenantID); err != nil {
		return availability.Availability{}, err
	}
	out, err := s.store.ModifyAvailability(ctx, tenantID, id, func(a *availability.Availability) ([]outbox.Event, error) {
		if a.IsActive == active {
			return nil, ErrNoChange
		}
		a.IsActive = active
		return nil, nil
	})
	if err != nil {
		return availability.Availability{}, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func (s *Service) DeleteAvailability(ctx context.Context, tenantID, id string) error {
	const op = "scheduling.DeleteAvailability"

	if err := requireTenant(tenantID); err != nil {
		return err
	}
	if err := s.store.DeleteAvailability(ctx, tenantID, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.logger.Info("availability deleted", "tenant_id", tenantID, "availability_id", id)
	return nil
}
