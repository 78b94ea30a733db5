package scheduling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	otelx "github.com/md-rashed-zaman/staffslots/libs/otel"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/policy"
)

// Service is the application layer: it resolves availability into slots, reserves them under
// the tenant's overlap policy and manages the records slot resolution reads.
type Service struct {
	store   Store
	policy  policy.Provider
	metrics *metrics.BookingMetrics
	logger  *slog.Logger
	tracer  trace.Tracer
	now     func() time.Time
}

type Options struct {
	Logger  *slog.Logger
	Metrics *metrics.BookingMetrics
	// Policy overrides where booking policies come from. Defaults to the stored tenant settings.
	Policy policy.Provider
	Now    func() time.Time
}

func New(store Store, opts Options) *Service {
	s := &Service{
		store:   store,
		policy:  opts.Policy,
		metrics: opts.Metrics,
		logger:  opts.Logger,
		tracer:  otelx.Tracer("booking-service/scheduling"),
		now:     opts.Now,
	}
	if s.policy == nil {
		s.policy = settingsPolicy{store: store}
	}
	s.policy = policy.WithFallback(s.policy, policy.Default())
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// settingsPolicy reads the policy embedded in stored tenant settings.
type settingsPolicy struct {
	store SettingsStore
}

func (p settingsPolicy) BookingPolicy(ctx context.Context, tenantID string) (policy.TenantBookingPolicy, error) {
	st, err := p.store.GetSettings(ctx, tenantID)
	if errors.Is(err, model.ErrNotFound) {
		return policy.TenantBookingPolicy{}, policy.ErrNoPolicy
	}
	if err != nil {
		return policy.TenantBookingPolicy{}, err
	}
	return st.Policy, nil
}

// tenantContext is what every resolution needs about a tenant.
type tenantContext struct {
	settings model.TenantSettings
	policy   policy.TenantBookingPolicy
	loc      *time.Location
}

func (s *Service) tenant(ctx context.Context, tenantID string) (tenantContext, error) {
	const op = "scheduling.tenant"

	st, err := s.store.GetSettings(ctx, tenantID)
	switch {
	case errors.Is(err, model.ErrNotFound):
		st = model.DefaultTenantSettings(tenantID)
	case err != nil:
		return tenantContext{}, fmt.Errorf("%s: %w", op, err)
	}
	if len(st.WeeklySchedule) == 0 {
		st.WeeklySchedule = availability.DefaultWeeklySchedule()
	}

	pol, err := s.policy.BookingPolicy(ctx, tenantID)
	if err != nil {
		return tenantContext{}, fmt.Errorf("%s: %w", op, err)
	}
	return tenantContext{settings: st, policy: pol, loc: st.Location()}, nil
}

// resolveDay returns the free windows of one staff member on one date.
func (s *Service) resolveDay(ctx context.Context, tenantID, staffID string, day availability.Day, tc tenantContext) ([]availability.Window, error) {
	const op = "scheduling.resolveDay"

	records, err := s.store.ListAvailabilities(ctx, tenantID, AvailabilityFilter{StaffID: staffID})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	bounds := day.Bounds()
	absences, err := s.store.ListAbsences(ctx, tenantID, AbsenceFilter{
		StaffID:      staffID,
		From:         bounds.Start(),
		To:           bounds.End(),
		ApprovedOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	windows, err := availability.ResolveDay(availability.DayInput{
		Day:      day,
		Records:  records,
		Fallback: tc.settings.WeeklySchedule,
		Absences: absences,
		Override: tc.policy.OneTimeOverride,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: staff %s on %s: %w", op, staffID, day, err)
	}
	return windows, nil
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func requireTenant(tenantID string) error {
	if tenantID == "" {
		return model.NewValidationError("tenant_id", "required")
	}
	return nil
}
