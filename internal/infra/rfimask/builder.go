// Package rfimask builds RecentRfiMasks from sorted signal observations.
package rfimask

import (
	"fmt"

	"github.com/sonata-sse/sse-core/internal/domain"
)

// Builder consolidates observed RFI signals into masked bands.
// The zero value is ready to use.
type Builder struct{}

// NewBuilder constructs a RecentRfiMaskBuilder.
func NewBuilder() *Builder { return &Builder{} }

// CreateMask produces mask elements from a sorted ascending signalFreqMhz
// list such that every signal lies within some element's interval extended
// by minMaskElementWidthMhz/2 on each side, neighbouring signals within
// minMaskElementWidthMhz/2 are merged into one wider element, and every
// element is at least minMaskElementWidthMhz wide.
//
// Returns ErrNegativeFrequency, ErrUnsortedSignals, or ErrNonPositiveWidth
// on invalid input.
func (b *Builder) CreateMask(signalFreqMhz []float64, minMaskElementWidthMhz float64) (domain.RecentRfiMask, error) {
	if len(signalFreqMhz) == 0 {
		return domain.RecentRfiMask{}, nil
	}
	if minMaskElementWidthMhz <= 0.0 {
		return domain.RecentRfiMask{}, fmt.Errorf("rfimask: %w", domain.ErrNonPositiveWidth)
	}

	halfMinWidth := minMaskElementWidthMhz * 0.5
	currentCenter := signalFreqMhz[0]
	currentWidth := minMaskElementWidthMhz
	previousFreq := -1.0

	var mask domain.RecentRfiMask

	for i, freq := range signalFreqMhz {
		if freq < 0.0 {
			return domain.RecentRfiMask{}, fmt.Errorf("rfimask: %w", domain.ErrNegativeFrequency)
		}
		if freq < previousFreq {
			return domain.RecentRfiMask{}, fmt.Errorf("rfimask: %w", domain.ErrUnsortedSignals)
		}
		previousFreq = freq

		currentUpperEdge := currentCenter + 0.5*currentWidth
		tooFarAway := freq > currentUpperEdge+halfMinWidth

		if tooFarAway {
			mask.Elements = append(mask.Elements, domain.RfiMaskElement{
				CenterMhz: currentCenter,
				WidthMhz:  currentWidth,
			})
			currentCenter = freq
			currentWidth = minMaskElementWidthMhz
		}

		currentLowerEdge := currentCenter - 0.5*currentWidth
		currentUpperEdge = freq + halfMinWidth
		currentWidth = currentUpperEdge - currentLowerEdge
		currentCenter = 0.5 * (currentUpperEdge + currentLowerEdge)

		if i == len(signalFreqMhz)-1 {
			mask.Elements = append(mask.Elements, domain.RfiMaskElement{
				CenterMhz: currentCenter,
				WidthMhz:  currentWidth,
			})
		}
	}

	return mask, nil
}
