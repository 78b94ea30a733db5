package scheduling

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/policy"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/timeslot"
)

type Slot struct {
	ID        string    `json:"id"`
	StaffID   string    `json:"staff_id"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Remaining int       `json:"remaining"`
}

type SlotQuery struct {
	ServiceID string
	// StaffID narrows the listing to one staff member. Empty lists every active staff member
	// offering the service.
	StaffID            string
	Date               string
	GranularityMinutes int
}

// ListSlots returns the bookable slots for a service on a date, ordered by start then staff.
func (s *Service) ListSlots(ctx context.Context, tenantID string, q SlotQuery) (_ []Slot, err error) {
	const op = "scheduling.ListSlots"

	ctx, span := s.startSpan(ctx, "scheduling.list_slots",
		attribute.String("tenant.id", tenantID),
		attribute.String("service.id", q.ServiceID),
		attribute.String("staff.id", q.StaffID),
		attribute.String("date", q.Date),
	)
	defer func() { endSpan(span, err) }()
	started := time.Now()

	v := &model.ValidationError{}
	if tenantID == "" {
		v.Add("tenant_id", "required")
	}
	if q.ServiceID == "" {
		v.Add("service_id", "required")
	}
	if q.Date == "" {
		v.Add("date", "required (YYYY-MM-DD)")
	}
	if q.GranularityMinutes < 0 {
		v.Add("granularity_minutes", "must not be negative")
	}
	if v.HasErrors() {
		return nil, v
	}

	tc, err := s.tenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	day, err := availability.ParseDay(q.Date, tc.loc)
	if err != nil {
		return nil, model.NewValidationError("date", "must be YYYY-MM-DD")
	}

	svc, err := s.store.GetService(ctx, tenantID, q.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("%s: service %s: %w", op, q.ServiceID, err)
	}
	if !svc.IsActive {
		return nil, inactiveService()
	}
	if svc.DurationMinutes <= 0 {
		return nil, model.NewValidationError("service_id", "service has no duration")
	}

	staff, err := s.staffFor(ctx, tenantID, svc, q.StaffID)
	if err != nil {
		return nil, err
	}

	opts := availability.SlotOptions{
		Duration:    svc.Duration(),
		Granularity: s.granularity(q.GranularityMinutes, tc),
		NotBefore:   s.now(),
	}

	var out []Slot
	for _, member := range staff {
		slots, err := s.staffSlots(ctx, tenantID, member.ID, day, tc, opts)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, slots...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].StaffID < out[j].StaffID
		}
		return out[i].Start.Before(out[j].Start)
	})

	scope := "service"
	if q.StaffID != "" {
		scope = "staff"
	}
	s.metrics.ObserveSlotListing(scope, len(out), time.Since(started).Seconds())
	return out, nil
}

func (s *Service) staffSlots(ctx context.Context, tenantID, staffID string, day availability.Day, tc tenantContext, opts availability.SlotOptions) ([]Slot, error) {
	windows, err := s.resolveDay(ctx, tenantID, staffID, day, tc)
	if err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		return nil, nil
	}
	candidates, err := availability.GenerateSlots(windows, opts)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	// Bookings may straddle midnight, so look slightly past the day on both sides.
	bounds := day.Bounds()
	lookup, err := timeslot.New(bounds.Start().Add(-opts.Duration), bounds.End().Add(opts.Duration))
	if err != nil {
		return nil, err
	}
	booked, err := s.store.ActiveIntervals(ctx, tenantID, staffID, lookup)
	if err != nil {
		return nil, err
	}

	out := make([]Slot, 0, len(candidates))
	for _, c := range candidates {
		remaining := tc.policy.Remaining(policy.CountOverlapping(c, booked))
		if remaining == 0 {
			continue
		}
		out = append(out, Slot{
			ID:        SlotRef{StaffID: staffID, Slot: c, Granularity: opts.Step()}.Encode(),
			StaffID:   staffID,
			Start:     c.Start().In(tc.loc),
			End:       c.End().In(tc.loc),
			Remaining: remaining,
		})
	}
	return out, nil
}

func (s *Service) staffFor(ctx context.Context, tenantID string, svc model.Service, staffID string) ([]model.Staff, error) {
	if staffID != "" {
		member, err := s.store.GetStaff(ctx, tenantID, staffID)
		if err != nil {
			return nil, fmt.Errorf("staff %s: %w", staffID, err)
		}
		if !member.IsActive || !svc.Offers(member.ID) {
			return nil, model.NewValidationError("staff_id", "staff member does not offer this service")
		}
		return []model.Staff{member}, nil
	}

	all, err := s.store.ListStaff(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	out := make([]model.Staff, 0, len(all))
	for _, member := range all {
		if member.IsActive && svc.Offers(member.ID) {
			out = append(out, member)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Service) granularity(requestedMinutes int, tc tenantContext) time.Duration {
	if requestedMinutes > 0 {
		return time.Duration(requestedMinutes) * time.Minute
	}
	if tc.settings.DefaultGranularityMinutes > 0 {
		return time.Duration(tc.settings.DefaultGranularityMinutes) * time.Minute
	}
	// Zero lets the generator fall back to the service duration.
	return 0
}

var errBadSlotRef = errors.New("malformed slot reference")

// SlotRef names one generated slot: whose it is, when it is and the grid step it was cut on.
type SlotRef struct {
	StaffID     string
	Slot        timeslot.Interval
	Granularity time.Duration
}

// Encode returns an opaque, URL-safe form of the reference.
func (r SlotRef) Encode() string {
	raw := strings.Join([]string{
		r.StaffID,
		strconv.FormatInt(r.Slot.Start().Unix(), 10),
		strconv.FormatInt(r.Slot.End().Unix(), 10),
		strconv.FormatInt(int64(r.Granularity/time.Minute), 10),
	}, "|")
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func DecodeSlotRef(ref string) (SlotRef, error) {
	raw, err := base64.RawURLEncoding.DecodeString(ref)
	if err != nil {
		return SlotRef{}, errBadSlotRef
	}
	parts := strings.Split(string(raw), "|")
	if len(parts) != 4 || parts[0] == "" {
		return SlotRef{}, errBadSlotRef
	}
	start, err1 := strconv.ParseInt(parts[1], 10, 64)
	end, err2 := strconv.ParseInt(parts[2], 10, 64)
	step, err3 := strconv.ParseInt(parts[3], 10, 64)
	if err1 != nil || err2 != nil || err3 != nil || step <= 0 {
		return SlotRef{}, errBadSlotRef
	}
	i, err := timeslot.New(time.Unix(start, 0).UTC(), time.Unix(end, 0).UTC())
	if err != nil {
		return SlotRef{}, err
	}
	return SlotRef{StaffID: parts[0], Slot: i, Granularity: time.Duration(step) * time.Minute}, nil
}
