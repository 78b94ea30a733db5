package timeslot

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ClockTime is a wall-clock time of day in minutes from local midnight (0..1440).
type ClockTime int

const MinutesPerDay ClockTime = 24 * 60

// ParseClock parses "HH:MM". "24:00" is accepted and means end of day.
func ParseClock(s string) (ClockTime, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("%w: clock time %q must be HH:MM", ErrInvalidInterval, s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("%w: clock time %q must be HH:MM", ErrInvalidInterval, s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || len(mm) != 2 {
		return 0, fmt.Errorf("%w: clock time %q must be HH:MM", ErrInvalidInterval, s)
	}
	c := ClockTime(h*60 + m)
	if h < 0 || m < 0 || m > 59 || c > MinutesPerDay {
		return 0, fmt.Errorf("%w: clock time %q out of range", ErrInvalidInterval, s)
	}
	return c, nil
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// On returns the instant at which the clock reads c on the given calendar day in loc.
// Day arithmetic goes through time.Date so DST transitions land on the right offset.
func (c ClockTime) On(year int, month time.Month, day int, loc *time.Location) time.Time {
	return time.Date(year, month, day, int(c)/60, int(c)%60, 0, 0, loc)
}

func (c ClockTime) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *ClockTime) UnmarshalText(b []byte) error {
	v, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// ClockRange is a recurring [Start, End) window in local wall-clock time.
type ClockRange struct {
	Start ClockTime `json:"start"`
	End   ClockTime `json:"end"`
}

func NewClockRange(start, end string) (ClockRange, error) {
	s, err := ParseClock(start)
	if err != nil {
		return ClockRange{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return ClockRange{}, err
	}
	r := ClockRange{Start: s, End: e}
	return r, r.Validate()
}

func (r ClockRange) Validate() error {
	if r.Start < 0 || r.End > MinutesPerDay || r.Start >= r.End {
		return fmt.Errorf("%w: clock range %s-%s", ErrInvalidInterval, r.Start, r.End)
	}
	return nil
}

func (r ClockRange) Contains(o ClockRange) bool {
	return r.Start <= o.Start && o.End <= r.End
}

func (r ClockRange) Overlaps(o ClockRange) bool {
	return r.Start < o.End && o.Start < r.End
}

// On materialises the range on a calendar day in loc.
func (r ClockRange) On(day time.Time, loc *time.Location) (Interval, error) {
	y, m, d := day.Date()
	return New(r.Start.On(y, m, d, loc), r.End.On(y, m, d, loc))
}

func (r ClockRange) String() string { return r.Start.String() + "-" + r.End.String() }
