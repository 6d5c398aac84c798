// Package domain — sky target types.
// A Target is a catalog object the scheduler may choose to observe; a
// PrimaryTarget is the coarse pointing anchor that groups many Targets for
// beam placement and fairness rotation.
package domain

import "time"

// PrimaryTargetId groups targets under one coarse-grid pointing.
type PrimaryTargetId int64

// TargetId is the catalog identity of a sky object.
type TargetId int64

// Band is a single closed frequency interval in MHz, low inclusive, high
// inclusive. LowMhz must never exceed HighMhz.
type Band struct {
	LowMhz  float64
	HighMhz float64
}

// Width returns the band's extent in MHz.
func (b Band) Width() float64 {
	return b.HighMhz - b.LowMhz
}

// CandidateSignal is a recovered narrowband signal awaiting classification.
type CandidateSignal struct {
	FreqMhz   float64
	PowerDb   float64
	ActivityId int64
	BeamNumber int
	Classification string
}

// Target is a sky object with immutable catalog identity and mutable
// per-target observation bookkeeping.
//
// Invariant: ObservedFreqBands is a sorted, non-overlapping union of bands.
// At most one running activity may hold a target InUse at a time.
type Target struct {
	TargetId        TargetId
	PrimaryTargetId PrimaryTargetId
	CatalogTag      string

	RaJ2000Rad  float64
	DecJ2000Rad float64
	PmRaMasYr   float64
	PmDecMasYr  float64
	ParallaxMas float64

	ObservedFreqBands []Band
	Candidates        []CandidateSignal
	LastObservedAt    time.Time

	inUse bool
}

// InUse reports whether a running activity currently holds this target in
// a data-collection state.
func (t *Target) InUse() bool { return t.inUse }

// MarkInUse transitions the target into the held state. Returns
// ErrTargetInUse if the target is already held.
func (t *Target) MarkInUse() error {
	if t.inUse {
		return ErrTargetInUse
	}
	t.inUse = true
	return nil
}

// Release clears the held state. Safe to call on an already-free target.
func (t *Target) Release() { t.inUse = false }

// AddObservedBand merges b into ObservedFreqBands, preserving the sorted,
// non-overlapping invariant. Adjacent and overlapping bands are coalesced.
func (t *Target) AddObservedBand(b Band) {
	merged := make([]Band, 0, len(t.ObservedFreqBands)+1)
	inserted := false
	for _, existing := range t.ObservedFreqBands {
		if inserted || existing.HighMhz < b.LowMhz {
			merged = append(merged, existing)
			continue
		}
		if existing.LowMhz > b.HighMhz {
			merged = append(merged, b)
			inserted = true
			merged = append(merged, existing)
			continue
		}
		// Overlaps or touches b: widen b to cover both, keep scanning.
		if existing.LowMhz < b.LowMhz {
			b.LowMhz = existing.LowMhz
		}
		if existing.HighMhz > b.HighMhz {
			b.HighMhz = existing.HighMhz
		}
	}
	if !inserted {
		merged = append(merged, b)
	}
	t.ObservedFreqBands = merged
}

// UncoveredWithin returns the portion of allowed not yet present in
// ObservedFreqBands, as a sorted list of bands.
func (t *Target) UncoveredWithin(allowed Band) []Band {
	cursor := allowed.LowMhz
	var out []Band
	for _, ob := range t.ObservedFreqBands {
		lo, hi := ob.LowMhz, ob.HighMhz
		if hi <= cursor || lo >= allowed.HighMhz {
			continue
		}
		if lo > cursor {
			out = append(out, Band{LowMhz: cursor, HighMhz: lo})
		}
		if hi > cursor {
			cursor = hi
		}
	}
	if cursor < allowed.HighMhz {
		out = append(out, Band{LowMhz: cursor, HighMhz: allowed.HighMhz})
	}
	return out
}

// PrimaryTarget is the coarse-grid pointing anchor for many nearby Targets.
type PrimaryTarget struct {
	PrimaryTargetId PrimaryTargetId
	RaJ2000Rad      float64
	DecJ2000Rad     float64
	SynthBeamsizeRad float64
	LastScheduledAt time.Time
}
