package availability

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/timeslot"
)

type Type string

const (
	TypeRecurring Type = "RECURRING"
	TypeOneTime   Type = "ONE_TIME"
)

func ParseType(s string) (Type, error) {
	switch Type(strings.ToUpper(strings.TrimSpace(s))) {
	case TypeRecurring:
		return TypeRecurring, nil
	case TypeOneTime:
		return TypeOneTime, nil
	}
	return "", fmt.Errorf("unknown availability type %q", s)
}

// Priority orders competing recurring records for the same weekday. Higher wins.
type Priority int

const (
	PriorityLow Priority = iota + 1
	PriorityMedium
	PriorityHigh
)

func ParsePriority(s string) (Priority, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LOW":
		return PriorityLow, nil
	case "", "MEDIUM":
		return PriorityMedium, nil
	case "HIGH":
		return PriorityHigh, nil
	}
	return 0, fmt.Errorf("unknown priority %q", s)
}

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "LOW"
	case PriorityMedium:
		return "MEDIUM"
	case PriorityHigh:
		return "HIGH"
	}
	return fmt.Sprintf("Priority(%d)", int(p))
}

func (p Priority) MarshalJSON() ([]byte, error) { return json.Marshal(p.String()) }

func (p *Priority) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParsePriority(s)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Assignment is either unassigned (the record sits in the tenant pool) or assigned to exactly
// one staff member.
type Assignment struct {
	staffID string
}

func Unassigned() Assignment { return Assignment{} }

func AssignedTo(staffID string) Assignment { return Assignment{staffID: staffID} }

// StaffID returns the assignee, ok is false for the unassigned pool.
func (a Assignment) StaffID() (string, bool) { return a.staffID, a.staffID != "" }

func (a Assignment) IsAssigned() bool { return a.staffID != "" }

func (a Assignment) String() string {
	if a.staffID == "" {
		return "unassigned"
	}
	return "assigned:" + a.staffID
}

// Availability is one administrator-managed record describing when a staff member works.
// RECURRING records use DayOfWeek/Window/ClockBreaks; ONE_TIME records use Period/Breaks.
type Availability struct {
	ID         string
	TenantID   string
	Type       Type
	Assignment Assignment
	Priority   Priority
	Label      string
	IsActive   bool

	DayOfWeek   time.Weekday
	Window      timeslot.ClockRange
	ClockBreaks []timeslot.ClockRange

	Period timeslot.Interval
	Breaks []timeslot.Interval

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the record shape and that every break is contained in its parent window and
// disjoint from its sibling breaks.
func (a Availability) Validate() error {
	switch a.Type {
	case TypeRecurring:
		if a.DayOfWeek < time.Sunday || a.DayOfWeek > time.Saturday {
			return fmt.Errorf("%w: day of week %d", timeslot.ErrInvalidInterval, a.DayOfWeek)
		}
		return validateClockBreaks(a.Window, a.ClockBreaks)
	case TypeOneTime:
		if a.Period.IsZero() {
			return fmt.Errorf("%w: one-time availability without a period", timeslot.ErrInvalidInterval)
		}
		return validateBreaks(a.Period, a.Breaks)
	}
	return fmt.Errorf("unknown availability type %q", a.Type)
}

func validateClockBreaks(window timeslot.ClockRange, breaks []timeslot.ClockRange) error {
	if err := window.Validate(); err != nil {
		return err
	}
	for i, b := range breaks {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("break %d: %w", i, err)
		}
		if !window.Contains(b) {
			return fmt.Errorf("%w: break %s outside window %s", timeslot.ErrInvalidInterval, b, window)
		}
		for j := 0; j < i; j++ {
			if breaks[j].Overlaps(b) {
				return fmt.Errorf("%w: breaks %s and %s overlap", timeslot.ErrInvalidInterval, breaks[j], b)
			}
		}
	}
	return nil
}

func validateBreaks(parent timeslot.Interval, breaks []timeslot.Interval) error {
	for _, b := range breaks {
		if b.IsZero() {
			return fmt.Errorf("%w: empty break", timeslot.ErrInvalidInterval)
		}
		if !parent.Contains(b) {
			return fmt.Errorf("%w: break %s outside %s", timeslot.ErrInvalidInterval, b, parent)
		}
	}
	if timeslot.AnyOverlap(breaks) {
		return fmt.Errorf("%w: overlapping breaks in %s", timeslot.ErrInvalidInterval, parent)
	}
	return nil
}

// Absence blocks a staff member for a period. Only approved absences affect availability.
type Absence struct {
	ID        string
	TenantID  string
	StaffID   string
	Period    timeslot.Interval
	Reason    string
	Approved  bool
	CreatedAt time.Time
}

// WorkDay is the tenant-wide opening pattern for one weekday.
type WorkDay struct {
	Day    time.Weekday          `json:"day"`
	Closed bool                  `json:"closed"`
	Open   timeslot.ClockRange   `json:"open"`
	Breaks []timeslot.ClockRange `json:"breaks,omitempty"`
}

// WeeklySchedule is used for staff that have no availability records of their own.
type WeeklySchedule []WorkDay

func (w WeeklySchedule) Day(d time.Weekday) (WorkDay, bool) {
	for _, wd := range w {
		if wd.Day == d {
			return wd, true
		}
	}
	return WorkDay{}, false
}

func (w WeeklySchedule) Validate() error {
	seen := map[time.Weekday]bool{}
	for _, wd := range w {
		if wd.Day < time.Sunday || wd.Day > time.Saturday {
			return fmt.Errorf("%w: day of week %d", timeslot.ErrInvalidInterval, wd.Day)
		}
		if seen[wd.Day] {
			return fmt.Errorf("%w: duplicate weekday %s", timeslot.ErrInvalidInterval, wd.Day)
		}
		seen[wd.Day] = true
		if wd.Closed {
			continue
		}
		if err := validateClockBreaks(wd.Open, wd.Breaks); err != nil {
			return fmt.Errorf("%s: %w", wd.Day, err)
		}
	}
	return nil
}

// DefaultWeeklySchedule is Mon-Fri 09:00-17:00.
func DefaultWeeklySchedule() WeeklySchedule {
	out := make(WeeklySchedule, 0, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		wd := WorkDay{Day: d, Open: timeslot.ClockRange{Start: 9 * 60, End: 17 * 60}}
		if d == time.Saturday || d == time.Sunday {
			wd.Closed = true
		}
		out = append(out, wd)
	}
	return out
}

// Window is a resolved, absolute stretch of working time with its breaks attached.
// Blocked holds approved absence periods: slots touching them are dropped, but unlike breaks
// they do not move the slot grid.
type Window struct {
	Interval timeslot.Interval
	Breaks   []timeslot.Interval
	Blocked  []timeslot.Interval
}

// Free returns the window with its breaks removed.
func (w Window) Free() []timeslot.Interval {
	return timeslot.SubtractAll([]timeslot.Interval{w.Interval}, w.Breaks)
}
