package wire

import (
	"fmt"
	"log"
	"sync"

	"github.com/sonata-sse/sse-core/internal/domain"
)

// SequenceTracker enforces the per-direction, per-proxy message-number
// ordering contract: message numbers strictly increase; a gap is logged
// and the tracker resyncs to the observed number rather than dropping the
// connection.
type SequenceTracker struct {
	mu       sync.Mutex
	proxy    string
	expected uint32
	started  bool
}

// NewSequenceTracker starts tracking proxyName; the first message number
// checked, whatever it is, sets the baseline.
func NewSequenceTracker(proxyName string) *SequenceTracker {
	return &SequenceTracker{proxy: proxyName}
}

// Check validates got against the expected next message number. It never
// returns an error that should drop the connection — out-of-sequence
// numbers are logged and the tracker resyncs to got.
func (t *SequenceTracker) Check(got uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.started {
		t.started = true
		t.expected = got + 1
		return nil
	}

	if got != t.expected {
		log.Printf("[wire] %s: out-of-sequence message number: expected %d, got %d; resyncing",
			t.proxy, t.expected, got)
		t.expected = got + 1
		return fmt.Errorf("wire: %s: %w (expected %d got %d)", t.proxy, domain.ErrOutOfSequence, t.expected-1, got)
	}

	t.expected++
	return nil
}
