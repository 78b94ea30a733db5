package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/md-rashed-zaman/staffslots/libs/db"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/policy"
)

var _ policy.Provider = (*Store)(nil)

func (s *Store) GetSettings(ctx context.Context, tenantID string) (model.TenantSettings, error) {
	var (
		st           model.TenantSettings
		policyJSON   []byte
		scheduleJSON []byte
	)
	err := s.conn.QueryRow(ctx, `
		SELECT tenant_id, timezone, policy, weekly_schedule, default_granularity_minutes, updated_at
		FROM tenant_settings
		WHERE tenant_id = $1
	`, tenantID).Scan(&st.TenantID, &st.Timezone, &policyJSON, &scheduleJSON, &st.DefaultGranularityMinutes, &st.UpdatedAt)
	if err != nil {
		return model.TenantSettings{}, notFound(err)
	}
	if err := json.Unmarshal(policyJSON, &st.Policy); err != nil {
		return model.TenantSettings{}, fmt.Errorf("decode policy for %s: %w", tenantID, err)
	}
	if err := json.Unmarshal(scheduleJSON, &st.WeeklySchedule); err != nil {
		return model.TenantSettings{}, fmt.Errorf("decode weekly schedule for %s: %w", tenantID, err)
	}
	return st, nil
}

func (s *Store) PutSettings(ctx context.Context, st model.TenantSettings) error {
	return UpsertSettings(ctx, s.conn, st)
}

// UpsertSettings writes st on q. The settings consumer calls it on its inbox transaction.
func UpsertSettings(ctx context.Context, q db.Querier, st model.TenantSettings) error {
	policyJSON, err := json.Marshal(st.Policy)
	if err != nil {
		return err
	}
	scheduleJSON, err := json.Marshal(st.WeeklySchedule)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, `
		INSERT INTO tenant_settings (tenant_id, timezone, policy, weekly_schedule, default_granularity_minutes, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (tenant_id)
		DO UPDATE SET timezone = EXCLUDED.timezone,
		              policy = EXCLUDED.policy,
		              weekly_schedule = EXCLUDED.weekly_schedule,
		              default_granularity_minutes = EXCLUDED.default_granularity_minutes,
		              updated_at = now()
	`, st.TenantID, st.Timezone, policyJSON, scheduleJSON, st.DefaultGranularityMinutes)
	return err
}

// BookingPolicy serves the stored policy, or policy.ErrNoPolicy when the tenant has none.
func (s *Store) BookingPolicy(ctx context.Context, tenantID string) (policy.TenantBookingPolicy, error) {
	st, err := s.GetSettings(ctx, tenantID)
	if errors.Is(err, model.ErrNotFound) {
		return policy.TenantBookingPolicy{}, policy.ErrNoPolicy
	}
	if err != nil {
		return policy.TenantBookingPolicy{}, err
	}
	return st.Policy, nil
}
