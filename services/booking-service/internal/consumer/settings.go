package consumer

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/segmentio/kafka-go"

	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/policy"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/storage"
)

// TopicSettingsUpdated carries tenant configuration from the tenant store.
const TopicSettingsUpdated = "tenant.settings.updated.v1"

// SettingsUpdated is the tenant.settings.updated.v1 payload. Services and Staff are optional
// catalog snapshots replicated alongside the settings.
type SettingsUpdated struct {
	TenantID                  string                      `json:"tenant_id"`
	Timezone                  string                      `json:"timezone"`
	Policy                    *policy.TenantBookingPolicy `json:"policy"`
	WeeklySchedule            availability.WeeklySchedule `json:"weekly_schedule"`
	DefaultGranularityMinutes int                         `json:"default_granularity_minutes"`
	Services                  []ServiceRecord             `json:"services"`
	Staff                     []StaffRecord               `json:"staff"`
}

type ServiceRecord struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	DurationMinutes int      `json:"duration_minutes"`
	StaffIDs        []string `json:"staff_ids"`
	IsActive        *bool    `json:"is_active"`
}

type StaffRecord struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsActive *bool  `json:"is_active"`
}

func (e SettingsUpdated) settings() model.TenantSettings {
	st := model.DefaultTenantSettings(e.TenantID)
	if e.Timezone != "" {
		st.Timezone = e.Timezone
	}
	if e.Policy != nil {
		st.Policy = *e.Policy
		if st.Policy.MaxOverlaps == 0 {
			st.Policy.MaxOverlaps = 1
		}
		if st.Policy.OneTimeOverride == "" {
			st.Policy.OneTimeOverride = availability.OverrideDay
		}
	}
	if len(e.WeeklySchedule) > 0 {
		st.WeeklySchedule = e.WeeklySchedule
	}
	st.DefaultGranularityMinutes = e.DefaultGranularityMinutes
	return st
}

func active(b *bool) bool { return b == nil || *b }

// NewSettingsHandler applies tenant.settings.updated.v1 into the local tables. Malformed
// payloads are logged and dropped so they cannot block the partition.
func NewSettingsHandler(logger *slog.Logger) Handler {
	return func(ctx context.Context, tx pgx.Tx, msg kafka.Message) error {
		var evt SettingsUpdated
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			logger.Error("invalid event payload", "err", err, "topic", msg.Topic)
			return nil
		}
		if evt.TenantID == "" {
			logger.Error("missing required event fields", "topic", msg.Topic)
			return nil
		}
		st := evt.settings()
		if err := st.Validate(); err != nil {
			logger.Error("rejected tenant settings", "err", err, "tenant_id", evt.TenantID)
			return nil
		}

		if err := storage.UpsertSettings(ctx, tx, st); err != nil {
			return err
		}
		for _, s := range evt.Services {
			if s.ID == "" || s.DurationMinutes <= 0 {
				logger.Warn("skipping invalid service", "tenant_id", evt.TenantID, "service_id", s.ID)
				continue
			}
			if err := storage.UpsertService(ctx, tx, model.Service{
				ID:              s.ID,
				TenantID:        evt.TenantID,
				Name:            s.Name,
				DurationMinutes: s.DurationMinutes,
				StaffIDs:        s.StaffIDs,
				IsActive:        active(s.IsActive),
			}); err != nil {
				return err
			}
		}
		for _, s := range evt.Staff {
			if s.ID == "" {
				continue
			}
			if err := storage.UpsertStaff(ctx, tx, model.Staff{
				ID:       s.ID,
				TenantID: evt.TenantID,
				Name:     s.Name,
				IsActive: active(s.IsActive),
			}); err != nil {
				return err
			}
		}
		logger.Info("tenant settings replicated",
			"tenant_id", evt.TenantID,
			"services", len(evt.Services),
			"staff", len(evt.Staff),
		)
		return nil
	}
}
