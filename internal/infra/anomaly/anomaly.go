// Package anomaly flags a component proxy whose recent status history looks
// statistically unhealthy even though no single status report failed
// outright: a healthy/unhealthy flap count over a trailing window, or a gap
// since the last report exceeding the configured silence budget. Either
// condition feeds resilience.QuarantineManager the same way a hard tune/ack
// failure does — extending quarantine to cover soft, behavioral failure
// too, not just a hard tune/ack error.
package anomaly

import (
	"sync"
	"time"

	"github.com/sonata-sse/sse-core/internal/domain"
)

// Config bounds one Detector.
type Config struct {
	WindowSize     int           // number of recent status reports retained per proxy
	MaxTransitions int           // healthy<->unhealthy flips within the window before flagging flapping
	MaxSilence     time.Duration // longest acceptable gap between reports before flagging stale
}

// DefaultConfig retains the last 10 reports, flags flapping once the window
// holds more than 4 transitions, and flags staleness after 60s of silence.
func DefaultConfig() Config {
	return Config{WindowSize: 10, MaxTransitions: 4, MaxSilence: 60 * time.Second}
}

// Verdict is the outcome of one Record call.
type Verdict struct {
	Flagged bool
	Reason  string // "flapping" or "stale", empty when not Flagged
}

type history struct {
	reports  []bool // Healthy, oldest first, capped at WindowSize
	lastSeen time.Time
}

// Detector tracks per-proxy status history and flags behavioral anomalies.
// now is injectable for deterministic tests.
type Detector struct {
	cfg Config
	now func() time.Time

	mu         sync.Mutex
	histories  map[string]*history
}

// New constructs a Detector using time.Now for staleness checks.
func New(cfg Config) *Detector {
	return &Detector{cfg: cfg, now: time.Now, histories: make(map[string]*history)}
}

// NewWithClock constructs a Detector with an injected clock, for
// deterministic tests.
func NewWithClock(cfg Config, now func() time.Time) *Detector {
	return &Detector{cfg: cfg, now: now, histories: make(map[string]*history)}
}

// Record folds one status report for name into its history and returns
// whether the history now looks anomalous. A proxy already flagged in a
// prior call is evaluated fresh each time — Record does not latch.
func (d *Detector) Record(name string, s domain.Status) Verdict {
	d.mu.Lock()
	defer d.mu.Unlock()

	h, ok := d.histories[name]
	if !ok {
		h = &history{}
		d.histories[name] = h
	}

	now := d.now()
	if !h.lastSeen.IsZero() {
		if gap := now.Sub(h.lastSeen); gap > d.cfg.MaxSilence {
			h.lastSeen = now
			h.reports = append(h.reports, s.Healthy)
			h.trim(d.cfg.WindowSize)
			return Verdict{Flagged: true, Reason: "stale"}
		}
	}
	h.lastSeen = now
	h.reports = append(h.reports, s.Healthy)
	h.trim(d.cfg.WindowSize)

	if transitions(h.reports) > d.cfg.MaxTransitions {
		return Verdict{Flagged: true, Reason: "flapping"}
	}
	return Verdict{}
}

// LastSeen returns the timestamp of the most recent Record call for name.
func (d *Detector) LastSeen(name string) (time.Time, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h, ok := d.histories[name]
	if !ok {
		return time.Time{}, false
	}
	return h.lastSeen, true
}

// Forget discards name's history, called on proxy unregistration so a
// future re-registration starts with a clean window.
func (d *Detector) Forget(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.histories, name)
}

func (h *history) trim(windowSize int) {
	if windowSize <= 0 || len(h.reports) <= windowSize {
		return
	}
	h.reports = h.reports[len(h.reports)-windowSize:]
}

func transitions(reports []bool) int {
	n := 0
	for i := 1; i < len(reports); i++ {
		if reports[i] != reports[i-1] {
			n++
		}
	}
	return n
}
