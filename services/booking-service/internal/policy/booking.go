package policy

import (
	"fmt"

	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/timeslot"
)

// TenantBookingPolicy holds the per-tenant knobs for confirmation and overlap capacity.
type TenantBookingPolicy struct {
	AutoConfirmBookings bool                      `json:"auto_confirm_bookings"`
	AllowOverlap        bool                      `json:"allow_overlap"`
	MaxOverlaps         int                       `json:"max_overlaps"`
	OneTimeOverride     availability.OverrideMode `json:"one_time_override"`
}

func Default() TenantBookingPolicy {
	return TenantBookingPolicy{MaxOverlaps: 1, OneTimeOverride: availability.OverrideDay}
}

func (p TenantBookingPolicy) Validate() error {
	if p.MaxOverlaps < 1 {
		return fmt.Errorf("max_overlaps must be >= 1, got %d", p.MaxOverlaps)
	}
	if _, err := availability.ParseOverrideMode(string(p.OneTimeOverride)); err != nil {
		return err
	}
	return nil
}

// Capacity is how many active bookings may overlap any instant for one staff member.
func (p TenantBookingPolicy) Capacity() int {
	if !p.AllowOverlap {
		return 1
	}
	if p.MaxOverlaps < 1 {
		return 1
	}
	return p.MaxOverlaps
}

// Remaining returns how many more bookings fit given the number already overlapping.
func (p TenantBookingPolicy) Remaining(overlapping int) int {
	r := p.Capacity() - overlapping
	if r < 0 {
		return 0
	}
	return r
}

// Admits reports whether candidate is still bookable next to the existing active bookings.
func (p TenantBookingPolicy) Admits(candidate timeslot.Interval, existing []timeslot.Interval) bool {
	return CountOverlapping(candidate, existing) < p.Capacity()
}

func CountOverlapping(candidate timeslot.Interval, existing []timeslot.Interval) int {
	n := 0
	for _, e := range existing {
		if candidate.Overlaps(e) {
			n++
		}
	}
	return n
}
