package timeslot

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidInterval is returned whenever an interval (or a break inside one) is malformed.
var ErrInvalidInterval = errors.New("invalid interval")

// Interval is a half-open time range [Start, End). The zero value is not a valid interval;
// use New.
type Interval struct {
	start time.Time
	end   time.Time
}

func New(start, end time.Time) (Interval, error) {
	if !start.Before(end) {
		return Interval{}, fmt.Errorf("%w: start %s is not before end %s", ErrInvalidInterval,
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return Interval{start: start, end: end}, nil
}

// FromDuration builds [start, start+d).
func FromDuration(start time.Time, d time.Duration) (Interval, error) {
	return New(start, start.Add(d))
}

func (i Interval) Start() time.Time { return i.start }
func (i Interval) End() time.Time   { return i.end }

func (i Interval) Duration() time.Duration { return i.end.Sub(i.start) }

func (i Interval) IsZero() bool { return i.start.IsZero() && i.end.IsZero() }

// Overlaps reports whether the two intervals share at least one instant.
// Touching intervals ([9,10) and [10,11)) do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.start.Before(o.end) && o.start.Before(i.end)
}

// Contains reports whether o lies entirely inside i.
func (i Interval) Contains(o Interval) bool {
	return !o.start.Before(i.start) && !o.end.After(i.end)
}

// Subtract returns the parts of i not covered by o: zero, one or two intervals.
func (i Interval) Subtract(o Interval) []Interval {
	if !i.Overlaps(o) {
		return []Interval{i}
	}
	var out []Interval
	if i.start.Before(o.start) {
		out = append(out, Interval{start: i.start, end: o.start})
	}
	if o.end.Before(i.end) {
		out = append(out, Interval{start: o.end, end: i.end})
	}
	return out
}

// Clip returns the intersection of i and window. ok is false when they do not overlap.
func (i Interval) Clip(window Interval) (Interval, bool) {
	if !i.Overlaps(window) {
		return Interval{}, false
	}
	out := i
	if out.start.Before(window.start) {
		out.start = window.start
	}
	if out.end.After(window.end) {
		out.end = window.end
	}
	return out, true
}

func (i Interval) Equal(o Interval) bool {
	return i.start.Equal(o.start) && i.end.Equal(o.end)
}

// In returns the same instants expressed in loc.
func (i Interval) In(loc *time.Location) Interval {
	return Interval{start: i.start.In(loc), end: i.end.In(loc)}
}

func (i Interval) String() string {
	return fmt.Sprintf("[%s, %s)", i.start.Format(time.RFC3339), i.end.Format(time.RFC3339))
}
