// Package tuner assigns channels and center frequencies to detectors over
// the usable portion of a declared observing range, honouring
// channel-grid alignment, DC-channel skipping, per-activity maximum tuning
// spread, and permanent RFI masks.
package tuner

import (
	"fmt"

	"github.com/sonata-sse/sse-core/internal/domain"
)

// Assignment is the outcome of tuning for one detector.
type Assignment struct {
	DxName        string
	Channel       int
	CenterFreqMhz float64
	Used          bool
}

// Config bounds a single tuning pass.
type Config struct {
	TotalChannels int
	MhzPerChannel float64
	Rounder       Rounder
	EdgeToleranceMhz float64
}

// DefaultConfig returns tuning defaults: no rounding, no edge tolerance.
func DefaultConfig(totalChannels int, mhzPerChannel float64) Config {
	return Config{
		TotalChannels: totalChannels,
		MhzPerChannel: mhzPerChannel,
		Rounder:       NoRound{},
	}
}

// DetectorTuner packs detectors onto the usable bandwidth of an
// ObservationRange.
type DetectorTuner struct {
	cfg Config
}

// NewDetectorTuner constructs a tuner bound to cfg.
func NewDetectorTuner(cfg Config) *DetectorTuner {
	if cfg.Rounder == nil {
		cfg.Rounder = NoRound{}
	}
	return &DetectorTuner{cfg: cfg}
}

// TuneObsRange assigns (channelIndex, centerFreqMhz) to each name in
// dxNames over usable, honouring maxSpreadMhz. Detectors that cannot be
// placed (usable bandwidth exhausted, or placing them would exceed
// maxSpreadMhz) are returned with Used=false in assignment order; callers
// typically stop issuing tune commands at the first unused entry.
//
// Returns ErrNoUsableBandwidth if usable is empty.
func (t *DetectorTuner) TuneObsRange(dxNames []string, usable domain.ObservationRange, maxSpreadMhz float64) ([]Assignment, error) {
	if usable.IsEmpty() {
		return nil, fmt.Errorf("tuner: %w", domain.ErrNoUsableBandwidth)
	}

	nextLeftEdge, ok := usable.MinValue()
	if !ok {
		return nil, fmt.Errorf("tuner: %w", domain.ErrNoUsableBandwidth)
	}

	halfBandwidth := t.cfg.MhzPerChannel / 2.0
	dcChannel := t.cfg.TotalChannels / 2
	chanIndex := 0

	out := make([]Assignment, len(dxNames))
	for i := range dxNames {
		out[i] = Assignment{DxName: dxNames[i]}
	}

	firstCenterFreq := 0.0
	haveFirst := false

	for i, name := range dxNames {
		centerFreq, chanIdx, ok := t.placeOne(&nextLeftEdge, &chanIndex, usable, dcChannel, halfBandwidth)
		if !ok {
			break
		}

		centerFreq = t.cfg.Rounder.Round(centerFreq)

		if !haveFirst {
			firstCenterFreq = centerFreq
			haveFirst = true
		} else if centerFreq-firstCenterFreq > maxSpreadMhz {
			break
		}

		out[i] = Assignment{
			DxName:        name,
			Channel:       chanIdx,
			CenterFreqMhz: centerFreq,
			Used:          true,
		}
	}

	return out, nil
}

// placeOne advances nextLeftEdge/chanIndex until it finds a channel-aligned
// candidate whose span lies entirely within usable (honouring the edge
// tolerance and DC-channel skip), or runs out of subranges.
func (t *DetectorTuner) placeOne(nextLeftEdge *float64, chanIndex *int, usable domain.ObservationRange, dcChannel int, halfBandwidth float64) (float64, int, bool) {
	for {
		candidateChan := *chanIndex
		centerFreq := *nextLeftEdge + halfBandwidth
		*nextLeftEdge += t.cfg.MhzPerChannel
		*chanIndex++

		if candidateChan == dcChannel {
			continue
		}

		span := domain.Band{
			LowMhz:  centerFreq - halfBandwidth + t.cfg.EdgeToleranceMhz,
			HighMhz: centerFreq + halfBandwidth - t.cfg.EdgeToleranceMhz,
		}
		if usable.IsIncluded(span) {
			return centerFreq, candidateChan, true
		}

		if usable.AboveRange(*nextLeftEdge) {
			return 0, 0, false
		}

		nextLow, ok := nextSubrangeStart(usable, *nextLeftEdge)
		if !ok {
			return 0, 0, false
		}

		// Align the jump to a channel-grid edge within the new subrange.
		channelsToSkip := int((nextLow+halfBandwidth-*nextLeftEdge)/t.cfg.MhzPerChannel + 0.25)
		if channelsToSkip < 0 {
			channelsToSkip = 0
		}
		*nextLeftEdge += float64(channelsToSkip) * t.cfg.MhzPerChannel
		*chanIndex += channelsToSkip
	}
}

// nextSubrangeStart returns the low edge of the first interval in usable
// that starts at or after freq.
func nextSubrangeStart(usable domain.ObservationRange, freq float64) (float64, bool) {
	for _, iv := range usable.Intervals() {
		if iv.LowMhz >= freq {
			return iv.LowMhz, true
		}
		if iv.HighMhz > freq {
			return freq, true
		}
	}
	return 0, false
}
