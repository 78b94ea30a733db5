package availability

import (
	"errors"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/timeslot"
)

var ErrInvalidDuration = errors.New("slot duration must be positive")

type SlotOptions struct {
	Duration time.Duration
	// Granularity is the step between candidate starts. Zero means Duration.
	Granularity time.Duration
	// Slots starting before NotBefore are skipped. Zero disables the check.
	NotBefore time.Time
}

// Step is the effective distance between candidate starts.
func (o SlotOptions) Step() time.Duration {
	if o.Granularity > 0 {
		return o.Granularity
	}
	return o.Duration
}

// GenerateSlots walks every free window in Granularity steps and emits [t, t+Duration)
// whenever it fits inside a break-free sub-interval and touches no blocked period. Each
// window's breaks must be contained in it and must not overlap each other.
//
// All windows are expected to belong to the same staff member; the result is sorted and
// contains no duplicates.
func GenerateSlots(windows []Window, opts SlotOptions) ([]timeslot.Interval, error) {
	if opts.Duration <= 0 {
		return nil, ErrInvalidDuration
	}
	step := opts.Step()

	var slots []timeslot.Interval
	for _, w := range windows {
		if err := validateBreaks(w.Interval, w.Breaks); err != nil {
			return nil, fmt.Errorf("window %s: %w", w.Interval, err)
		}
		for _, sub := range w.Free() {
			for t := sub.Start(); !t.Add(opts.Duration).After(sub.End()); t = t.Add(step) {
				if !opts.NotBefore.IsZero() && t.Before(opts.NotBefore) {
					continue
				}
				s, err := timeslot.FromDuration(t, opts.Duration)
				if err != nil {
					return nil, err
				}
				if blockedBy(s, w.Blocked) {
					continue
				}
				slots = append(slots, s)
			}
		}
	}

	timeslot.Sort(slots)
	out := slots[:0]
	for i, s := range slots {
		if i > 0 && s.Equal(out[len(out)-1]) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// Bookable reports whether candidate is one of the slots GenerateSlots yields for windows
// and opts. An interval that fits into free time but sits off the grid is not bookable.
func Bookable(windows []Window, candidate timeslot.Interval, opts SlotOptions) (bool, error) {
	if candidate.Duration() != opts.Duration {
		return false, nil
	}
	slots, err := GenerateSlots(windows, opts)
	if err != nil {
		return false, err
	}
	for _, s := range slots {
		if s.Equal(candidate) {
			return true, nil
		}
	}
	return false, nil
}
