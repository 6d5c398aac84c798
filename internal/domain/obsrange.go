// Package domain — ObservationRange interval algebra.
// An ObservationRange is a union of closed frequency intervals (MHz); the
// core uses it both for the declared band a scheduler is allowed to observe
// and for permanent RFI exclusion bands.
package domain

import "sort"

// ObservationRange is a sorted, non-overlapping union of closed intervals.
// The zero value is the empty range.
type ObservationRange struct {
	intervals []Band
}

// NewObservationRange builds a range from the given bands, normalizing them
// into sorted, non-overlapping form.
func NewObservationRange(bands ...Band) ObservationRange {
	var r ObservationRange
	for _, b := range bands {
		r.Add(b)
	}
	return r
}

// Intervals returns a copy of the range's normalized intervals.
func (r ObservationRange) Intervals() []Band {
	out := make([]Band, len(r.intervals))
	copy(out, r.intervals)
	return out
}

// IsEmpty reports whether the range covers no frequency at all.
func (r ObservationRange) IsEmpty() bool { return len(r.intervals) == 0 }

// Add unions b into the range, merging any overlapping or touching
// intervals and re-sorting.
func (r *ObservationRange) Add(b Band) {
	if b.LowMhz > b.HighMhz {
		b.LowMhz, b.HighMhz = b.HighMhz, b.LowMhz
	}
	merged := append(r.intervals, b)
	r.intervals = normalize(merged)
}

// Subtract removes b from the range, splitting intervals as needed.
func (r *ObservationRange) Subtract(b Band) {
	if b.LowMhz > b.HighMhz {
		b.LowMhz, b.HighMhz = b.HighMhz, b.LowMhz
	}
	var out []Band
	for _, iv := range r.intervals {
		if iv.HighMhz <= b.LowMhz || iv.LowMhz >= b.HighMhz {
			out = append(out, iv)
			continue
		}
		if iv.LowMhz < b.LowMhz {
			out = append(out, Band{LowMhz: iv.LowMhz, HighMhz: b.LowMhz})
		}
		if iv.HighMhz > b.HighMhz {
			out = append(out, Band{LowMhz: b.HighMhz, HighMhz: iv.HighMhz})
		}
	}
	r.intervals = out
}

// Intersect returns a new range containing only the frequency common to both.
func (r ObservationRange) Intersect(other ObservationRange) ObservationRange {
	var out ObservationRange
	for _, a := range r.intervals {
		for _, b := range other.intervals {
			lo := a.LowMhz
			if b.LowMhz > lo {
				lo = b.LowMhz
			}
			hi := a.HighMhz
			if b.HighMhz < hi {
				hi = b.HighMhz
			}
			if lo < hi {
				out.intervals = append(out.intervals, Band{LowMhz: lo, HighMhz: hi})
			}
		}
	}
	out.intervals = normalize(out.intervals)
	return out
}

// IsIncluded reports whether b is entirely covered by the range.
func (r ObservationRange) IsIncluded(b Band) bool {
	for _, iv := range r.intervals {
		if iv.LowMhz <= b.LowMhz && b.HighMhz <= iv.HighMhz {
			return true
		}
	}
	return false
}

// AboveRange reports whether freq lies strictly above every interval.
func (r ObservationRange) AboveRange(freq float64) bool {
	if len(r.intervals) == 0 {
		return false
	}
	return freq > r.intervals[len(r.intervals)-1].HighMhz
}

// MinValue returns the lowest frequency in the range. The second return
// value is false if the range is empty.
func (r ObservationRange) MinValue() (float64, bool) {
	if len(r.intervals) == 0 {
		return 0, false
	}
	return r.intervals[0].LowMhz, true
}

// GetUseableBandwidth returns the portion of the range remaining after
// removing every band in mask.
func (r ObservationRange) GetUseableBandwidth(mask ObservationRange) ObservationRange {
	out := NewObservationRange(r.intervals...)
	for _, m := range mask.intervals {
		out.Subtract(m)
	}
	return out
}

// TotalWidth returns the sum of all interval widths.
func (r ObservationRange) TotalWidth() float64 {
	var total float64
	for _, iv := range r.intervals {
		total += iv.Width()
	}
	return total
}

// normalize sorts bands by LowMhz and merges any that overlap or touch.
func normalize(bands []Band) []Band {
	if len(bands) == 0 {
		return nil
	}
	sorted := make([]Band, len(bands))
	copy(sorted, bands)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LowMhz < sorted[j].LowMhz })

	out := []Band{sorted[0]}
	for _, b := range sorted[1:] {
		last := &out[len(out)-1]
		if b.LowMhz <= last.HighMhz {
			if b.HighMhz > last.HighMhz {
				last.HighMhz = b.HighMhz
			}
			continue
		}
		out = append(out, b)
	}
	return out
}
