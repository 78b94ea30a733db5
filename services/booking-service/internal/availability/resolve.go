package availability

import (
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/timeslot"
)

// OverrideMode decides how one-time records interact with recurring ones on the same date.
type OverrideMode string

const (
	// OverrideDay: any one-time record on a date replaces that date's recurring coverage.
	OverrideDay OverrideMode = "DAY"
	// OverrideOverlap: one-time records shadow only the recurring sub-ranges they cover.
	OverrideOverlap OverrideMode = "OVERLAP"
)

func ParseOverrideMode(s string) (OverrideMode, error) {
	switch OverrideMode(strings.ToUpper(strings.TrimSpace(s))) {
	case "", OverrideDay:
		return OverrideDay, nil
	case OverrideOverlap:
		return OverrideOverlap, nil
	}
	return "", fmt.Errorf("unknown one-time override mode %q", s)
}

// Day identifies a calendar date in a tenant's timezone.
type Day struct {
	Year     int
	Month    time.Month
	Dom      int
	Location *time.Location
}

func DayOf(t time.Time, loc *time.Location) Day {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return Day{Year: y, Month: m, Dom: d, Location: loc}
}

// ParseDay parses YYYY-MM-DD in loc.
func ParseDay(s string, loc *time.Location) (Day, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return Day{}, err
	}
	return DayOf(t, loc), nil
}

func (d Day) Start() time.Time { return time.Date(d.Year, d.Month, d.Dom, 0, 0, 0, 0, d.Location) }

// Bounds returns [midnight, next midnight). Its length is not always 24h.
func (d Day) Bounds() timeslot.Interval {
	i, _ := timeslot.New(d.Start(), time.Date(d.Year, d.Month, d.Dom+1, 0, 0, 0, 0, d.Location))
	return i
}

func (d Day) Weekday() time.Weekday { return d.Start().Weekday() }

func (d Day) String() string { return d.Start().Format("2006-01-02") }

// DayInput carries everything needed to resolve one staff member's free windows on one date.
// Records and Absences must already be narrowed to that staff member.
type DayInput struct {
	Day      Day
	Records  []Availability
	Fallback WeeklySchedule
	Absences []Absence
	Override OverrideMode
}

// ResolveDay runs the recurring and one-time resolvers, combines them according to the
// override mode and removes approved absences. Stored breaks that violate containment make it
// fail rather than clip.
func ResolveDay(in DayInput) ([]Window, error) {
	active := make([]Availability, 0, len(in.Records))
	for _, r := range in.Records {
		if r.IsActive {
			active = append(active, r)
		}
	}

	var recurring []Window
	var err error
	if len(active) == 0 {
		recurring, err = ResolveFallback(in.Day, in.Fallback)
	} else {
		recurring, err = ResolveRecurring(in.Day, active)
	}
	if err != nil {
		return nil, err
	}

	oneTime, err := ResolveOneTime(in.Day, active)
	if err != nil {
		return nil, err
	}

	windows := Combine(recurring, oneTime, in.Override)
	return ApplyAbsences(windows, in.Absences), nil
}

// ResolveRecurring materialises the RECURRING records matching the day's weekday. Only the
// highest priority present is used; records sharing that priority are unioned.
func ResolveRecurring(day Day, records []Availability) ([]Window, error) {
	weekday := day.Weekday()
	var best Priority
	var matched []Availability
	for _, r := range records {
		if !r.IsActive || r.Type != TypeRecurring || r.DayOfWeek != weekday {
			continue
		}
		switch {
		case r.Priority > best:
			best = r.Priority
			matched = append(matched[:0], r)
		case r.Priority == best:
			matched = append(matched, r)
		}
	}

	windows := make([]Window, 0, len(matched))
	for _, r := range matched {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("availability %s: %w", r.ID, err)
		}
		w, err := materialise(day, r.Window, r.ClockBreaks)
		if err != nil {
			return nil, fmt.Errorf("availability %s: %w", r.ID, err)
		}
		windows = append(windows, w)
	}
	return Union(windows), nil
}

// ResolveFallback materialises the tenant weekly schedule for the day.
func ResolveFallback(day Day, schedule WeeklySchedule) ([]Window, error) {
	wd, ok := schedule.Day(day.Weekday())
	if !ok || wd.Closed {
		return nil, nil
	}
	if err := validateClockBreaks(wd.Open, wd.Breaks); err != nil {
		return nil, fmt.Errorf("weekly schedule %s: %w", wd.Day, err)
	}
	w, err := materialise(day, wd.Open, wd.Breaks)
	if err != nil {
		return nil, err
	}
	return []Window{w}, nil
}

// ResolveOneTime returns the ONE_TIME records touching the day, clipped to the day's bounds.
// Records crossing midnight contribute their in-day part.
func ResolveOneTime(day Day, records []Availability) ([]Window, error) {
	bounds := day.Bounds()
	var windows []Window
	for _, r := range records {
		if !r.IsActive || r.Type != TypeOneTime {
			continue
		}
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("availability %s: %w", r.ID, err)
		}
		clipped, ok := r.Period.Clip(bounds)
		if !ok {
			continue
		}
		windows = append(windows, Window{
			Interval: clipped,
			Breaks:   timeslot.ClipAll(r.Breaks, clipped),
		})
	}
	return Union(windows), nil
}

// Combine merges recurring and one-time windows for a single day.
func Combine(recurring, oneTime []Window, mode OverrideMode) []Window {
	if len(oneTime) == 0 {
		return recurring
	}
	if mode != OverrideOverlap {
		return oneTime
	}

	shadow := make([]timeslot.Interval, 0, len(oneTime))
	for _, w := range oneTime {
		shadow = append(shadow, w.Interval)
	}
	out := make([]Window, 0, len(recurring)+len(oneTime))
	for _, w := range recurring {
		out = append(out, trim(w, shadow)...)
	}
	out = append(out, oneTime...)
	return Union(out)
}

// Union joins overlapping or touching windows. A break survives only where no contributing
// window offers free time.
func Union(windows []Window) []Window {
	if len(windows) == 0 {
		return nil
	}
	var cover, free []timeslot.Interval
	for _, w := range windows {
		cover = append(cover, w.Interval)
		free = append(free, w.Free()...)
	}
	free = timeslot.Merge(free)

	var out []Window
	for _, c := range timeslot.Merge(cover) {
		gaps := timeslot.SubtractAll([]timeslot.Interval{c}, free)
		// A window that is entirely break offers nothing.
		if len(gaps) == 1 && gaps[0].Equal(c) {
			continue
		}
		out = append(out, Window{Interval: c, Breaks: gaps})
	}
	return out
}

// trim removes blocks from a window, keeping each surviving piece's share of the breaks.
func trim(w Window, blocks []timeslot.Interval) []Window {
	pieces := timeslot.SubtractAll([]timeslot.Interval{w.Interval}, blocks)
	out := make([]Window, 0, len(pieces))
	for _, p := range pieces {
		out = append(out, Window{Interval: p, Breaks: timeslot.ClipAll(w.Breaks, p)})
	}
	return out
}

func materialise(day Day, window timeslot.ClockRange, breaks []timeslot.ClockRange) (Window, error) {
	start := day.Start()
	iv, err := window.On(start, day.Location)
	if err != nil {
		return Window{}, err
	}
	w := Window{Interval: iv}
	for _, b := range breaks {
		bi, err := b.On(start, day.Location)
		if err != nil {
			return Window{}, err
		}
		w.Breaks = append(w.Breaks, bi)
	}
	return w, nil
}
