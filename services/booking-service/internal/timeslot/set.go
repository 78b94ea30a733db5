package timeslot

import "sort"

// Sort orders intervals by start, then by end. It sorts in place.
func Sort(in []Interval) {
	sort.Slice(in, func(a, b int) bool {
		if in[a].start.Equal(in[b].start) {
			return in[a].end.Before(in[b].end)
		}
		return in[a].start.Before(in[b].start)
	})
}

// Merge returns the union of the given intervals as a sorted list of disjoint intervals.
// Touching intervals are joined.
func Merge(in []Interval) []Interval {
	if len(in) == 0 {
		return nil
	}
	cp := make([]Interval, len(in))
	copy(cp, in)
	Sort(cp)

	merged := make([]Interval, 0, len(cp))
	for _, cur := range cp {
		if len(merged) == 0 {
			merged = append(merged, cur)
			continue
		}
		last := &merged[len(merged)-1]
		if cur.start.After(last.end) {
			merged = append(merged, cur)
			continue
		}
		if cur.end.After(last.end) {
			last.end = cur.end
		}
	}
	return merged
}

// SubtractAll removes every interval in blocks from every interval in base.
// The result is sorted and disjoint.
func SubtractAll(base, blocks []Interval) []Interval {
	out := Merge(base)
	for _, b := range Merge(blocks) {
		next := make([]Interval, 0, len(out))
		for _, piece := range out {
			next = append(next, piece.Subtract(b)...)
		}
		out = next
	}
	return out
}

// ClipAll intersects each interval with window, dropping the ones outside it.
func ClipAll(in []Interval, window Interval) []Interval {
	var out []Interval
	for _, i := range in {
		if c, ok := i.Clip(window); ok {
			out = append(out, c)
		}
	}
	return out
}

// AnyOverlap reports whether two entries of in overlap each other.
func AnyOverlap(in []Interval) bool {
	cp := make([]Interval, len(in))
	copy(cp, in)
	Sort(cp)
	for i := 1; i < len(cp); i++ {
		if cp[i].start.Before(cp[i-1].end) {
			return true
		}
	}
	return false
}
