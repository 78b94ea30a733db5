package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/timeslot"
)

func clock(t *testing.T, start, end string) timeslot.ClockRange {
	t.Helper()
	r, err := timeslot.NewClockRange(start, end)
	require.NoError(t, err)
	return r
}

func recurring(t *testing.T, day time.Weekday, start, end string, p Priority, breaks ...timeslot.ClockRange) Availability {
	return Availability{
		ID:          "rec-" + start,
		Type:        TypeRecurring,
		Assignment:  AssignedTo("staff-1"),
		Priority:    p,
		IsActive:    true,
		DayOfWeek:   day,
		Window:      clock(t, start, end),
		ClockBreaks: breaks,
	}
}

func oneTime(t *testing.T, period timeslot.Interval, breaks ...timeslot.Interval) Availability {
	return Availability{
		ID:         "one-" + period.Start().Format("15:04"),
		Type:       TypeOneTime,
		Assignment: AssignedTo("staff-1"),
		Priority:   PriorityMedium,
		IsActive:   true,
		Period:     period,
		Breaks:     breaks,
	}
}

func intervals(ws []Window) []timeslot.Interval {
	out := make([]timeslot.Interval, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Interval)
	}
	return out
}

func TestResolveDay_MondayWithLunchBreak(t *testing.T) {
	windows, err := ResolveDay(DayInput{
		Day:     monday,
		Records: []Availability{recurring(t, time.Monday, "09:00", "17:00", PriorityMedium, clock(t, "12:00", "13:00"))},
	})
	require.NoError(t, err)

	slots, err := GenerateSlots(windows, SlotOptions{Duration: time.Hour, Granularity: time.Hour})
	require.NoError(t, err)
	require.Equal(t, []string{"09:00", "10:00", "11:00", "13:00", "14:00", "15:00", "16:00"}, starts(slots))
}

func TestResolveDay_ApprovedAbsenceRemovesSlots(t *testing.T) {
	windows, err := ResolveDay(DayInput{
		Day:     monday,
		Records: []Availability{recurring(t, time.Monday, "09:00", "17:00", PriorityMedium, clock(t, "12:00", "13:00"))},
		Absences: []Absence{
			{ID: "a1", StaffID: "staff-1", Period: span(t, 14, 0, 15, 30), Approved: true},
			{ID: "a2", StaffID: "staff-1", Period: span(t, 9, 0, 11, 0), Approved: false},
		},
	})
	require.NoError(t, err)

	slots, err := GenerateSlots(windows, SlotOptions{Duration: time.Hour})
	require.NoError(t, err)
	require.Equal(t, []string{"09:00", "10:00", "11:00", "13:00", "16:00"}, starts(slots))
}

func TestApplyAbsences_MergesOverlappingAbsences(t *testing.T) {
	windows := []Window{{Interval: span(t, 9, 0, 17, 0)}}
	out := ApplyAbsences(windows, []Absence{
		{Period: span(t, 10, 0, 12, 0), Approved: true},
		{Period: span(t, 11, 0, 13, 0), Approved: true},
	})
	require.Len(t, out, 1)
	require.Equal(t, []timeslot.Interval{span(t, 10, 0, 13, 0)}, out[0].Blocked)
}

func TestApplyAbsences_DropsFullyAbsentWindow(t *testing.T) {
	windows := []Window{{Interval: span(t, 9, 0, 12, 0)}, {Interval: span(t, 13, 0, 17, 0)}}
	out := ApplyAbsences(windows, []Absence{{Period: span(t, 8, 0, 12, 30), Approved: true}})
	require.Equal(t, []timeslot.Interval{span(t, 13, 0, 17, 0)}, intervals(out))
}

func TestResolveRecurring_HighestPriorityWins(t *testing.T) {
	windows, err := ResolveRecurring(monday, []Availability{
		recurring(t, time.Monday, "09:00", "17:00", PriorityLow),
		recurring(t, time.Monday, "10:00", "14:00", PriorityHigh),
		recurring(t, time.Tuesday, "06:00", "22:00", PriorityHigh),
	})
	require.NoError(t, err)
	require.Equal(t, []timeslot.Interval{span(t, 10, 0, 14, 0)}, intervals(windows))
}

func TestResolveRecurring_EqualPrioritiesUnion(t *testing.T) {
	windows, err := ResolveRecurring(monday, []Availability{
		recurring(t, time.Monday, "09:00", "12:00", PriorityMedium),
		recurring(t, time.Monday, "14:00", "18:00", PriorityMedium),
		recurring(t, time.Monday, "11:00", "13:00", PriorityMedium),
		recurring(t, time.Monday, "07:00", "08:00", PriorityLow),
	})
	require.NoError(t, err)
	require.Equal(t, []timeslot.Interval{span(t, 9, 0, 13, 0), span(t, 14, 0, 18, 0)}, intervals(windows))
}

func TestResolveRecurring_BreakCoveredBySiblingIsNotABreak(t *testing.T) {
	windows, err := ResolveRecurring(monday, []Availability{
		recurring(t, time.Monday, "09:00", "17:00", PriorityMedium, clock(t, "12:00", "13:00")),
		recurring(t, time.Monday, "12:30", "14:00", PriorityMedium),
	})
	require.NoError(t, err)
	require.Len(t, windows, 1)
	require.Equal(t, []timeslot.Interval{span(t, 12, 0, 12, 30)}, windows[0].Breaks)
}

func TestResolveRecurring_StoredBreakOutsideWindowFails(t *testing.T) {
	bad := recurring(t, time.Monday, "09:00", "12:00", PriorityMedium, clock(t, "11:30", "12:30"))
	_, err := ResolveRecurring(monday, []Availability{bad})
	require.ErrorIs(t, err, timeslot.ErrInvalidInterval)
}

func TestResolveDay_OneTimeReplacesDay(t *testing.T) {
	windows, err := ResolveDay(DayInput{
		Day: monday,
		Records: []Availability{
			recurring(t, time.Monday, "09:00", "17:00", PriorityMedium),
			oneTime(t, span(t, 12, 0, 17, 0)),
		},
		Override: OverrideDay,
	})
	require.NoError(t, err)
	require.Equal(t, []timeslot.Interval{span(t, 12, 0, 17, 0)}, intervals(windows))
}

func TestResolveDay_OneTimeShadowsOverlapOnly(t *testing.T) {
	windows, err := ResolveDay(DayInput{
		Day: monday,
		Records: []Availability{
			recurring(t, time.Monday, "09:00", "17:00", PriorityMedium, clock(t, "10:00", "10:30"), clock(t, "13:00", "14:00")),
			oneTime(t, span(t, 12, 0, 18, 0), span(t, 15, 0, 15, 30)),
		},
		Override: OverrideOverlap,
	})
	require.NoError(t, err)
	require.Len(t, windows, 1)
	require.True(t, windows[0].Interval.Equal(span(t, 9, 0, 18, 0)))
	// The recurring 13:00 break is shadowed; the one-time break replaces it.
	require.Equal(t, []timeslot.Interval{span(t, 10, 0, 10, 30), span(t, 15, 0, 15, 30)}, windows[0].Breaks)
}

func TestResolveOneTime_ClipsAtMidnight(t *testing.T) {
	late, err := timeslot.New(at(22, 0), at(26, 0))
	require.NoError(t, err)

	windows, err := ResolveOneTime(monday, []Availability{oneTime(t, late)})
	require.NoError(t, err)
	require.Equal(t, []timeslot.Interval{span(t, 22, 0, 24, 0)}, intervals(windows))

	tuesday := Day{Year: 2026, Month: time.March, Dom: 3, Location: time.UTC}
	windows, err = ResolveOneTime(tuesday, []Availability{oneTime(t, late)})
	require.NoError(t, err)
	require.Len(t, windows, 1)
	require.True(t, windows[0].Interval.Start().Equal(at(24, 0)))
	require.True(t, windows[0].Interval.End().Equal(at(26, 0)))
}

func TestResolveDay_FallsBackToWeeklySchedule(t *testing.T) {
	windows, err := ResolveDay(DayInput{Day: monday, Fallback: DefaultWeeklySchedule()})
	require.NoError(t, err)
	require.Equal(t, []timeslot.Interval{span(t, 9, 0, 17, 0)}, intervals(windows))

	sunday := Day{Year: 2026, Month: time.March, Dom: 1, Location: time.UTC}
	windows, err = ResolveDay(DayInput{Day: sunday, Fallback: DefaultWeeklySchedule()})
	require.NoError(t, err)
	require.Empty(t, windows)
}

func TestResolveDay_InactiveRecordsIgnored(t *testing.T) {
	rec := recurring(t, time.Monday, "09:00", "17:00", PriorityMedium)
	rec.IsActive = false

	windows, err := ResolveDay(DayInput{Day: monday, Records: []Availability{rec}})
	require.NoError(t, err)
	require.Empty(t, windows)
}

func TestAvailabilityValidate(t *testing.T) {
	ok := recurring(t, time.Monday, "09:00", "17:00", PriorityMedium, clock(t, "12:00", "13:00"), clock(t, "15:00", "15:15"))
	require.NoError(t, ok.Validate())

	overlapping := recurring(t, time.Monday, "09:00", "17:00", PriorityMedium, clock(t, "12:00", "13:00"), clock(t, "12:30", "13:30"))
	require.ErrorIs(t, overlapping.Validate(), timeslot.ErrInvalidInterval)

	one := oneTime(t, span(t, 9, 0, 12, 0), span(t, 11, 0, 13, 0))
	require.ErrorIs(t, one.Validate(), timeslot.ErrInvalidInterval)
}

func TestAssignmentVariant(t *testing.T) {
	id, ok := Unassigned().StaffID()
	require.False(t, ok)
	require.Empty(t, id)

	id, ok = AssignedTo("s-9").StaffID()
	require.True(t, ok)
	require.Equal(t, "s-9", id)
}
