package scheduling

import (
	"context"
	"errors"
	"fmt"

	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/model"
)

// GetSettings returns the stored settings, or the defaults when the tenant has none yet.
func (s *Service) GetSettings(ctx context.Context, tenantID string) (model.TenantSettings, error) {
	if err := requireTenant(tenantID); err != nil {
		return model.TenantSettings{}, err
	}
	st, err := s.store.GetSettings(ctx, tenantID)
	if errors.Is(err, model.ErrNotFound) {
		return model.DefaultTenantSettings(tenantID), nil
	}
	return st, err
}

// PutSettings replaces the tenant's settings. Empty fields take their defaults.
func (s *Service) PutSettings(ctx context.Context, st model.TenantSettings) (model.TenantSettings, error) {
	const op = "scheduling.PutSettings"

	if err := requireTenant(st.TenantID); err != nil {
		return model.TenantSettings{}, err
	}
	if st.Timezone == "" {
		st.Timezone = "UTC"
	}
	if st.Policy.MaxOverlaps == 0 {
		st.Policy.MaxOverlaps = 1
	}
	if st.Policy.OneTimeOverride == "" {
		st.Policy.OneTimeOverride = availability.OverrideDay
	}
	if len(st.WeeklySchedule) == 0 {
		st.WeeklySchedule = availability.DefaultWeeklySchedule()
	}
	if err := st.Validate(); err != nil {
		return model.TenantSettings{}, err
	}
	st.UpdatedAt = s.now().UTC()
	if err := s.store.PutSettings(ctx, st); err != nil {
		return model.TenantSettings{}, fmt.Errorf("%s: %w", op, err)
	}
	s.logger.Info("tenant settings updated",
		"tenant_id", st.TenantID,
		"timezone", st.Timezone,
		"allow_overlap", st.Policy.AllowOverlap,
		"max_overlaps", st.Policy.MaxOverlaps,
	)
	return st, nil
}
