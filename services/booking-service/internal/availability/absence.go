package availability

import "github.com/md-rashed-zaman/staffslots/services/booking-service/internal/timeslot"

// ApplyAbsences attaches approved absences to the windows they touch. Overlapping absences are
// merged first; unapproved ones are ignored. Windows left with no usable time are dropped.
func ApplyAbsences(windows []Window, absences []Absence) []Window {
	blocks := ApprovedBlocks(absences)
	if len(blocks) == 0 {
		return windows
	}
	out := make([]Window, 0, len(windows))
	for _, w := range windows {
		clipped := timeslot.ClipAll(blocks, w.Interval)
		if len(clipped) == 0 {
			out = append(out, w)
			continue
		}
		if len(timeslot.SubtractAll(w.Free(), clipped)) == 0 {
			continue
		}
		w.Blocked = timeslot.Merge(append(append([]timeslot.Interval(nil), w.Blocked...), clipped...))
		out = append(out, w)
	}
	return out
}

// ApprovedBlocks returns the merged periods of approved absences.
func ApprovedBlocks(absences []Absence) []timeslot.Interval {
	var blocks []timeslot.Interval
	for _, a := range absences {
		if a.Approved && !a.Period.IsZero() {
			blocks = append(blocks, a.Period)
		}
	}
	return timeslot.Merge(blocks)
}

func blockedBy(s timeslot.Interval, blocked []timeslot.Interval) bool {
	for _, b := range blocked {
		if s.Overlaps(b) {
			return true
		}
	}
	return false
}
