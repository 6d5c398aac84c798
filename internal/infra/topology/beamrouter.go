package topology

import (
	"fmt"
	"sync"

	"github.com/sonata-sse/sse-core/internal/domain"
)

// BeamRouter resolves a (channelizer, channel) pair to the beam it feeds,
// built from an ExpectedTopology's Channelizer↔Beam associations.
//
// Channel-to-beam association is a static, declared fact of the topology
// file, not a latency-scored routing decision, so lookup is a direct
// keyed-map hit rather than a scored candidate search.
type BeamRouter struct {
	mu     sync.RWMutex
	byChan map[int]string // channel index -> beam name
}

// NewBeamRouter builds a router from topo's channelizer associations.
func NewBeamRouter(topo *domain.ExpectedTopology) *BeamRouter {
	r := &BeamRouter{byChan: make(map[int]string)}
	r.Reload(topo)
	return r
}

// Reload replaces the router's association table wholesale, used when the
// topology file is re-read.
func (r *BeamRouter) Reload(topo *domain.ExpectedTopology) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byChan = make(map[int]string)
	for _, assoc := range topo.ChannelizerAssoc {
		for _, ch := range assoc.Channels {
			r.byChan[ch] = assoc.Beam
		}
	}
}

// BeamForChannel returns the beam a channelizer channel feeds. Returns
// ErrUnknownBeam if no topology association covers chan — this is the
// resolved behavior for the lookup that, in the source this was rewritten
// from, fell off the end of its loop without returning: callers here must
// be able to distinguish "no beam" from "beam 0" to avoid mis-tuning
// hardware.
func (r *BeamRouter) BeamForChannel(channel int) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	beam, ok := r.byChan[channel]
	if !ok {
		return "", fmt.Errorf("topology: channel %d: %w", channel, domain.ErrUnknownBeam)
	}
	return beam, nil
}
