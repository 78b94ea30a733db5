package policy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/timeslot"
)

var base = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func hour(t *testing.T, offset int) timeslot.Interval {
	t.Helper()
	i, err := timeslot.FromDuration(base.Add(time.Duration(offset)*time.Hour), time.Hour)
	require.NoError(t, err)
	return i
}

func TestCapacity(t *testing.T) {
	require.Equal(t, 1, TenantBookingPolicy{AllowOverlap: false, MaxOverlaps: 5}.Capacity())
	require.Equal(t, 3, TenantBookingPolicy{AllowOverlap: true, MaxOverlaps: 3}.Capacity())
	require.Equal(t, 1, TenantBookingPolicy{AllowOverlap: true}.Capacity())
}

func TestAdmits_NoOverlap(t *testing.T) {
	p := Default()
	require.True(t, p.Admits(hour(t, 0), nil))
	require.False(t, p.Admits(hour(t, 0), []timeslot.Interval{hour(t, 0)}))
	// Adjacent bookings do not conflict.
	require.True(t, p.Admits(hour(t, 1), []timeslot.Interval{hour(t, 0), hour(t, 2)}))
}

func TestAdmits_WithCapacity(t *testing.T) {
	p := TenantBookingPolicy{AllowOverlap: true, MaxOverlaps: 3}
	existing := []timeslot.Interval{hour(t, 0), hour(t, 0)}
	require.True(t, p.Admits(hour(t, 0), existing))
	require.Equal(t, 1, p.Remaining(len(existing)))

	existing = append(existing, hour(t, 0))
	require.False(t, p.Admits(hour(t, 0), existing))
	require.Equal(t, 0, p.Remaining(len(existing)+1))
}

func TestValidate(t *testing.T) {
	require.NoError(t, Default().Validate())
	require.Error(t, TenantBookingPolicy{MaxOverlaps: 0}.Validate())
	require.Error(t, TenantBookingPolicy{MaxOverlaps: 1, OneTimeOverride: "WEEK"}.Validate())
}

type missingProvider struct{}

func (missingProvider) BookingPolicy(context.Context, string) (TenantBookingPolicy, error) {
	return TenantBookingPolicy{}, ErrNoPolicy
}

type brokenProvider struct{}

func (brokenProvider) BookingPolicy(context.Context, string) (TenantBookingPolicy, error) {
	return TenantBookingPolicy{}, errors.New("db down")
}

func TestWithFallback(t *testing.T) {
	def := TenantBookingPolicy{AutoConfirmBookings: true, MaxOverlaps: 1}

	got, err := WithFallback(missingProvider{}, def).BookingPolicy(context.Background(), "t1")
	require.NoError(t, err)
	require.Equal(t, def, got)

	_, err = WithFallback(brokenProvider{}, def).BookingPolicy(context.Background(), "t1")
	require.Error(t, err)

	stored := TenantBookingPolicy{AllowOverlap: true, MaxOverlaps: 4}
	got, err = WithFallback(NewStaticProvider(stored), def).BookingPolicy(context.Background(), "t1")
	require.NoError(t, err)
	require.Equal(t, stored, got)
}
