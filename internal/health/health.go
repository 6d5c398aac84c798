// Package health reports whether the core's two hard dependencies — the
// database and the component fabric — are in a state that lets activities
// run: the DB must answer a Ping, which has no timeout of its own (§5: database
// calls are kept short so a stall never blocks the activity event loop),
// and at least the telescope and IF chain categories should have a
// registered proxy for an observation to even be attemptable.
package health

import (
	"time"

	"github.com/sonata-sse/sse-core/internal/infra/fabric"
)

// Pinger is the narrow DB dependency this package needs, satisfied by
// *sqlite.DB.
type Pinger interface {
	Ping() error
}

// Status is a point-in-time liveness snapshot, serialized directly by the
// /health endpoint.
type Status struct {
	CheckedAt            time.Time `json:"checked_at"`
	DBReachable          bool      `json:"db_reachable"`
	RegisteredTelescopes int       `json:"registered_telescopes"`
	RegisteredIFChains   int       `json:"registered_if_chains"`
	RegisteredTestgens   int       `json:"registered_testgens"`
	RegisteredDetectors  int       `json:"registered_detectors"`
}

// Healthy reports whether the core can currently attempt an observation:
// the database answers, and at least one telescope and one IF chain are
// registered. Detectors and testgens are reported but not required — a
// site can be legitimately healthy between detector attachments.
func (s Status) Healthy() bool {
	return s.DBReachable && s.RegisteredTelescopes > 0 && s.RegisteredIFChains > 0
}

// Checker computes Status on demand.
type Checker struct {
	db   Pinger
	site *fabric.Site
	now  func() time.Time
}

// New constructs a Checker using time.Now for the check timestamp.
func New(db Pinger, site *fabric.Site) *Checker {
	return &Checker{db: db, site: site, now: time.Now}
}

// NewWithClock constructs a Checker with an injected clock, for
// deterministic tests.
func NewWithClock(db Pinger, site *fabric.Site, now func() time.Time) *Checker {
	return &Checker{db: db, site: site, now: now}
}

// Check runs the liveness probes and returns a fresh Status.
func (c *Checker) Check() Status {
	return Status{
		CheckedAt:            c.now(),
		DBReachable:          c.db.Ping() == nil,
		RegisteredTelescopes: c.site.Telescopes.Size(),
		RegisteredIFChains:   c.site.IFChains.Size(),
		RegisteredTestgens:   c.site.Testgens.Size(),
		RegisteredDetectors:  c.site.Detectors.Size(),
	}
}
