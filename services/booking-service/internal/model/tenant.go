package model

import (
	"time"

	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/policy"
)

// Service is a bookable offering. Catalog rows are replicated from the tenant store.
type Service struct {
	ID              string
	TenantID        string
	Name            string
	DurationMinutes int
	StaffIDs        []string
	IsActive        bool
}

func (s Service) Duration() time.Duration { return time.Duration(s.DurationMinutes) * time.Minute }

// Offers reports whether staffID may perform the service. An empty staff list means anyone.
func (s Service) Offers(staffID string) bool {
	if len(s.StaffIDs) == 0 {
		return true
	}
	for _, id := range s.StaffIDs {
		if id == staffID {
			return true
		}
	}
	return false
}

type Staff struct {
	ID       string
	TenantID string
	Name     string
	IsActive bool
}

// TenantSettings is the local copy of the tenant's scheduling configuration.
type TenantSettings struct {
	TenantID                  string                      `json:"tenant_id"`
	Timezone                  string                      `json:"timezone"`
	Policy                    policy.TenantBookingPolicy  `json:"policy"`
	WeeklySchedule            availability.WeeklySchedule `json:"weekly_schedule"`
	DefaultGranularityMinutes int                         `json:"default_granularity_minutes,omitempty"`
	UpdatedAt                 time.Time                   `json:"updated_at"`
}

func DefaultTenantSettings(tenantID string) TenantSettings {
	return TenantSettings{
		TenantID:       tenantID,
		Timezone:       "UTC",
		Policy:         policy.Default(),
		WeeklySchedule: availability.DefaultWeeklySchedule(),
	}
}

// Location resolves the tenant timezone, falling back to UTC.
func (s TenantSettings) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (s TenantSettings) Validate() error {
	v := &ValidationError{}
	if s.Timezone != "" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			v.Add("timezone", "unknown timezone")
		}
	}
	if err := s.Policy.Validate(); err != nil {
		v.Add("policy", err.Error())
	}
	if err := s.WeeklySchedule.Validate(); err != nil {
		v.Add("weekly_schedule", err.Error())
	}
	if s.DefaultGranularityMinutes < 0 {
		v.Add("default_granularity_minutes", "must not be negative")
	}
	return v.OrNil()
}
