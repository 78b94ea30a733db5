package scheduling

import (
	"context"
	"fmt"
	"strings"

	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/model"
)

const maxReasonLength = 500

// CreateAbsence records a staff absence. Administrators may create it already approved;
// anything else waits for ApproveAbsence before it blocks slots.
func (s *Service) CreateAbsence(ctx context.Context, a availability.Absence) (availability.Absence, error) {
	const op = "scheduling.CreateAbsence"

	v := &model.ValidationError{}
	if a.TenantID == "" {
		v.Add("tenant_id", "required")
	}
	if a.StaffID == "" {
		v.Add("staff_id", "required")
	}
	if a.Period.IsZero() {
		v.Add("period", "start must be before end")
	}
	a.Reason = strings.TrimSpace(a.Reason)
	if len(a.Reason) > maxReasonLength {
		v.Add("reason", fmt.Sprintf("must be at most %d characters", maxReasonLength))
	}
	if err := v.OrNil(); err != nil {
		return availability.Absence{}, err
	}
	if _, err := s.store.GetStaff(ctx, a.TenantID, a.StaffID); err != nil {
		return availability.Absence{}, notFoundAsValidation("staff_id", "unknown staff member", err)
	}

	if err := s.store.CreateAbsence(ctx, &a); err != nil {
		return availability.Absence{}, fmt.Errorf("%s: %w", op, err)
	}
	s.logger.Info("absence created",
		"tenant_id", a.TenantID,
		"absence_id", a.ID,
		"staff_id", a.StaffID,
		"approved", a.Approved,
	)
	return a, nil
}

func (s *Service) ApproveAbsence(ctx context.Context, tenantID, id string) (availability.Absence, error) {
	const op = "scheduling.ApproveAbsence"

	if err := requireTenant(tenantID); err != nil {
		return availability.Absence{}, err
	}
	a, err := s.store.ApproveAbsence(ctx, tenantID, id)
	if err != nil {
		return availability.Absence{}, fmt.Errorf("%s: %w", op, err)
	}
	s.logger.Info("absence approved", "tenant_id", tenantID, "absence_id", id)
	return a, nil
}

func (s *Service) GetAbsence(ctx context.Context, tenantID, id string) (availability.Absence, error) {
	if err := requireTenant(tenantID); err != nil {
		return availability.Absence{}, err
	}
	return s.store.GetAbsence(ctx, tenantID, id)
}

func (s *Service) DeleteAbsence(ctx context.Context, tenantID, id string) error {
	const op = "scheduling.DeleteAbsence"

	if err := requireTenant(tenantID); err != nil {
		return err
	}
	if err := s.store.DeleteAbsence(ctx, tenantID, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Service) ListAbsences(ctx context.Context, tenantID string, f AbsenceFilter) ([]availability.Absence, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	if !f.From.IsZero() && !f.To.IsZero() && !f.From.Before(f.To) {
		return nil, model.NewValidationError("from", "must be before to")
	}
	return s.store.ListAbsences(ctx, tenantID, f)
}
