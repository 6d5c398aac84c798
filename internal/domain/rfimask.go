package domain

// RfiMaskElement is one consolidated RFI exclusion band, stored as a
// center frequency and width rather than low/high edges because the
// builder (§4.5) grows elements from a center outward.
type RfiMaskElement struct {
	CenterMhz float64
	WidthMhz  float64
}

// LowMhz returns the element's lower edge.
func (e RfiMaskElement) LowMhz() float64 { return e.CenterMhz - e.WidthMhz/2 }

// HighMhz returns the element's upper edge.
func (e RfiMaskElement) HighMhz() float64 { return e.CenterMhz + e.WidthMhz/2 }

// RecentRfiMask is an ordered, non-overlapping sequence of mask elements
// built deterministically from a sorted signal list.
type RecentRfiMask struct {
	Elements []RfiMaskElement
}

// ToObservationRange converts the mask into the excluded-band representation
// consumed by ObservationRange.GetUseableBandwidth.
func (m RecentRfiMask) ToObservationRange() ObservationRange {
	var r ObservationRange
	for _, e := range m.Elements {
		r.Add(Band{LowMhz: e.LowMhz(), HighMhz: e.HighMhz()})
	}
	return r
}
