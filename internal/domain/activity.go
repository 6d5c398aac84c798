// Package domain — activity state machine types.
// An Activity is one coordinated observation from start through write-out;
// it fans out to per-detector ActivityUnits and advances through a fixed
// stage sequence.
package domain

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ActivityKind names the broad category of an activity.
type ActivityKind string

const (
	KindObservation  ActivityKind = "observation"
	KindCalibration  ActivityKind = "calibration"
	KindFollowup     ActivityKind = "followup"
	KindAntennaSetup ActivityKind = "antenna-setup"
)

// ActivityOp is a bit in the activity's operation bitset, naming which
// component categories and modes an activity engages.
type ActivityOp uint32

const (
	UseTscope ActivityOp = 1 << iota
	UseIfc
	UseDetector
	UseTestgen
	FollowUp
	OffObs
	GridNorth
	GridSouth
	GridEast
	GridWest
	MultiTarget
)

// Has reports whether every bit in want is set in the receiver.
func (o ActivityOp) Has(want ActivityOp) bool { return o&want == want }

// ActivityState is a stage in the activity lifecycle.
type ActivityState string

const (
	StatePending       ActivityState = "PENDING"
	StateStarting      ActivityState = "STARTING"
	StateWaitingReady  ActivityState = "WAITING_READY"
	StateCollecting    ActivityState = "COLLECTING"
	StateDetecting     ActivityState = "DETECTING"
	StateReporting     ActivityState = "REPORTING"
	StateDone          ActivityState = "DONE"
	StateFailed        ActivityState = "FAILED"
	StateStopped       ActivityState = "STOPPED"
)

// IsTerminal reports whether state is one the activity cannot leave.
func (s ActivityState) IsTerminal() bool {
	return s == StateDone || s == StateFailed || s == StateStopped
}

// ActivityUnitState tracks one detector's progress within an activity.
type ActivityUnitState string

const (
	UnitPending           ActivityUnitState = "PENDING"
	UnitTuned             ActivityUnitState = "TUNED"
	UnitCollecting        ActivityUnitState = "COLLECTING"
	UnitDetecting         ActivityUnitState = "DETECTING"
	UnitSendingCandidates ActivityUnitState = "SENDING_CANDIDATES"
	UnitComplete          ActivityUnitState = "COMPLETE"
	UnitFailed            ActivityUnitState = "FAILED"
)

// ActivityUnit is the per-detector state within an activity.
type ActivityUnit struct {
	ActivityId      int64
	// TrackingId is an in-process id distinct from the database-assigned
	// ActivityId, assigned once when the unit is created. It is not written
	// to log lines or wire messages.
	TrackingId      uuid.UUID
	TargetId        TargetId
	PrimaryTargetId PrimaryTargetId
	BeamNumber      int
	DxName          string
	DxNumber        int

	DxTuneFreqMhz   float64
	DxLowFreqMhz    float64
	DxHighFreqMhz   float64

	State           ActivityUnitState
	ValidObservation bool
	StartOfDataCollection time.Time

	CandidatesSent int
	mu             sync.Mutex
}

// SetState transitions the unit under its own lock.
func (u *ActivityUnit) SetState(s ActivityUnitState) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.State = s
}

// Snapshot returns the unit's current state without racing SetState.
func (u *ActivityUnit) Snapshot() ActivityUnitState {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.State
}

// ActivityCounters tracks the accounting-identity counters checked at each
// stage boundary: Started = Ready + Failed + Done at steady state.
type ActivityCounters struct {
	Started int
	Ready   int
	Failed  int
	Done    int
}

// Balanced reports whether the accounting identity holds.
func (c ActivityCounters) Balanced() bool {
	return c.Started == c.Ready+c.Failed+c.Done
}

// Activity is the per-observation state machine: it instantiates per-detector
// ActivityUnits, drives component startup, data collection, and detection,
// and surfaces completion or failure exactly once.
type Activity struct {
	ActivityId int64
	Kind       ActivityKind
	Ops        ActivityOp

	PrimaryTargetId PrimaryTargetId
	TargetIds       []TargetId
	DataProductsDir string

	StartTime time.Time

	mu    sync.Mutex
	state ActivityState
	units map[string]*ActivityUnit
	counters ActivityCounters

	stopReceived bool
	failReason   string
	taintedUnits map[string]bool
}

// NewActivity constructs a fresh activity in PENDING.
func NewActivity(id int64, kind ActivityKind, ops ActivityOp) *Activity {
	return &Activity{
		ActivityId:   id,
		Kind:         kind,
		Ops:          ops,
		state:        StatePending,
		units:        make(map[string]*ActivityUnit),
		taintedUnits: make(map[string]bool),
	}
}

// State returns the current lifecycle stage.
func (a *Activity) State() ActivityState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Counters returns a snapshot of the accounting counters.
func (a *Activity) Counters() ActivityCounters {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.counters
}

// Transition moves the activity to next unless it is already in a terminal
// state (for example after a Stop() won the race), in which case the state
// is left unchanged and ErrActivityStopped is returned whatever next is.
func (a *Activity) Transition(next ActivityState) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state.IsTerminal() {
		return ErrActivityStopped
	}
	a.state = next
	return nil
}

// AddUnit registers a new ActivityUnit and increments Started.
func (a *Activity) AddUnit(u *ActivityUnit) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.units[u.DxName] = u
	a.counters.Started++
}

// MarkUnitReady increments the Ready counter for one unit.
func (a *Activity) MarkUnitReady(dxName string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.counters.Ready++
}

// MarkUnitFailed increments Failed and taints the unit so it is excluded
// from ObsHistory writes.
func (a *Activity) MarkUnitFailed(dxName string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.counters.Failed++
	a.taintedUnits[dxName] = true
}

// MarkUnitDone increments Done.
func (a *Activity) MarkUnitDone(dxName string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.counters.Done++
}

// SurvivingUnitCount returns the number of units not tainted by failure.
func (a *Activity) SurvivingUnitCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for name := range a.units {
		if !a.taintedUnits[name] {
			n++
		}
	}
	return n
}

// Units returns a snapshot slice of the activity's units.
func (a *Activity) Units() []*ActivityUnit {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*ActivityUnit, 0, len(a.units))
	for _, u := range a.units {
		out = append(out, u)
	}
	return out
}

// IsTainted reports whether dxName's unit should be excluded from ObsHistory.
func (a *Activity) IsTainted(dxName string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.taintedUnits[dxName]
}

// Stop requests cooperative termination. Idempotent: a second call is a
// no-op and returns nil.
func (a *Activity) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopReceived {
		return nil
	}
	a.stopReceived = true
	if !a.state.IsTerminal() {
		a.state = StateStopped
	}
	return nil
}

// StopRequested reports whether Stop has been called.
func (a *Activity) StopRequested() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopReceived
}

// Fail transitions the activity to FAILED with reason, unless it is already
// terminal.
func (a *Activity) Fail(reason string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state.IsTerminal() {
		return
	}
	a.state = StateFailed
	a.failReason = reason
}

// FailReason returns the stage-specific reason the activity failed, if any.
func (a *Activity) FailReason() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.failReason
}
