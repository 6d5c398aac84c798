// Package activity implements the per-observation state machine (spec
// §4.1): it fans out to per-detector ActivityUnits, drives component
// startup, data collection, and detection through a fixed stage sequence,
// and surfaces completion or failure exactly once to its caller.
//
// The state machine is expressed as discrete stages with explicit
// completion counters and timer handlers, all
// advanced on a single event-loop goroutine: timer expiries and proxy
// callbacks are posted to it as events rather than invoked inline, so every
// counter mutation happens on one goroutine without needing a lock on the
// hot path.
package activity

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/sonata-sse/sse-core/internal/domain"
)

// Stage names one step of the activity lifecycle, corresponding 1:1 to a
// domain.ActivityState except that Teardown has no domain.ActivityState of
// its own — it always precedes a terminal state.
type Stage string

const (
	StagePrepare         Stage = "prepare"
	StageStartComponents Stage = "component ready timeout"
	StageTuneDetectors   Stage = "detector tune timeout"
	StageCollect         Stage = "data collection timeout"
	StageDetect          Stage = "detection timeout"
	StageReport          Stage = "act-unit complete timeout"
	StageTeardown        Stage = "teardown"
)

// Timeouts bounds how long the orchestrator waits at each stage before
// failing the activity with that stage's reason.
type Timeouts struct {
	Prepare         time.Duration
	StartComponents time.Duration
	TuneDetectors   time.Duration
	Collect         time.Duration
	Detect          time.Duration
	Report          time.Duration
}

// DefaultTimeouts returns conservative per-stage deadlines.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Prepare:         5 * time.Second,
		StartComponents: 30 * time.Second,
		TuneDetectors:   15 * time.Second,
		Collect:         10 * time.Minute,
		Detect:          5 * time.Minute,
		Report:          30 * time.Second,
	}
}

// Params parameterizes one Start call.
type Params struct {
	Kind            domain.ActivityKind
	Ops             domain.ActivityOp
	PrimaryTargetId domain.PrimaryTargetId
	TargetIds       []domain.TargetId
	DetectorNames   []string // dx proxies participating, in tuning order
	StartTimeOffset time.Duration
	DataProductsDir string

	// TuningRange is the frequency band TuneDetectors should pack detectors
	// onto. The zero value (Width() <= 0) tells a Detuner implementation to
	// fall back to its full configured observing range — followups name
	// their detectors directly rather than going through target selection,
	// so they carry no scheduler-chosen range of their own.
	TuningRange domain.Band
}

// Validate reports a parameter error surfaced to the caller of start()
// without ever creating the activity.
func (p Params) Validate() error {
	if p.DataProductsDir == "" {
		return fmt.Errorf("activity: %w: empty data products directory", domain.ErrActivityNotPending)
	}
	if p.Ops.Has(domain.UseDetector) && len(p.DetectorNames) == 0 {
		return fmt.Errorf("activity: %w: USE_DETECTOR set with no detectors", domain.ErrActivityNotPending)
	}
	return nil
}

// Callbacks is notified exactly once of completion or failure.
type Callbacks interface {
	ActivityComplete(activityID int64)
	ActivityFailed(activityID int64, reason string)
}

// ComponentStarter issues the allocate/init commands of the StartComponents
// stage. Implementations fan commands out to the telescope, IF chain,
// test-gen, and detector proxies in parallel; the orchestrator only needs
// to know how many *Ready callbacks to expect.
type ComponentStarter interface {
	// StartComponents begins component startup for the given activity and
	// returns how many independent *Ready callbacks the orchestrator
	// should wait for.
	StartComponents(ctx context.Context, activityID int64, p Params) (expectedReady int, err error)
}

// Detuner runs DetectorTuner and issues per-detector tune commands,
// returning how many "detector tuned" acks to expect.
type Detuner interface {
	TuneDetectors(ctx context.Context, activityID int64, detectorNames []string) (expectedAcks int, err error)
}

// Persister writes ObsHistory rows and updates the Activities table during
// Report.
type Persister interface {
	WriteReport(ctx context.Context, act *domain.Activity) error
}

// kind distinguishes the external event types posted to the event loop.
type eventKind int

const (
	evComponentReady eventKind = iota
	evDetectorTuned
	evDataCollectionStarted
	evDataCollectionComplete
	evDetectionComplete
	evCandidatesDone
	evUnitComplete
	evComponentDisconnected
	evStop
)

type event struct {
	kind   eventKind
	dxName string
}

// Orchestrator drives one Activity's state machine to completion.
type Orchestrator struct {
	act      *domain.Activity
	starter  ComponentStarter
	detuner  Detuner
	persist  Persister
	cb       Callbacks
	timeouts Timeouts

	events chan event

	expectedReady int
	expectedAcks  int
	expectedUnits int

	// failedDx holds detector names that disconnected or errored out before
	// reaching a stage's completion check. Once a unit is failed it is
	// treated as settled for every subsequent stage too: the orchestrator
	// never blocks waiting for a callback from a unit it has already
	// written off.
	failedDx map[string]bool
}

// New constructs an Orchestrator around a freshly created domain.Activity.
func New(act *domain.Activity, starter ComponentStarter, detuner Detuner, persist Persister, cb Callbacks, timeouts Timeouts) *Orchestrator {
	return &Orchestrator{
		act:      act,
		starter:  starter,
		detuner:  detuner,
		persist:  persist,
		cb:       cb,
		timeouts: timeouts,
		events:   make(chan event, 64),
		failedDx: make(map[string]bool),
	}
}

// Start validates params, transitions the activity to STARTING, and runs
// the event loop until the activity reaches a terminal state. It returns
// the computed start time (now + StartTimeOffset) once Prepare succeeds.
//
// Start blocks until the activity is fully torn down; callers that need
// concurrency run it in its own goroutine, matching §5's "event loop
// thread owns the activity state machine."
func (o *Orchestrator) Start(ctx context.Context, p Params) (time.Time, error) {
	if err := p.Validate(); err != nil {
		o.cb.ActivityFailed(o.act.ActivityId, fmt.Sprintf("%s: %v", StagePrepare, err))
		return time.Time{}, err
	}

	startTime, err := o.prepare(ctx, p)
	if err != nil {
		o.cb.ActivityFailed(o.act.ActivityId, o.act.FailReason())
		return time.Time{}, err
	}

	o.act.StartTime = startTime
	for _, name := range p.DetectorNames {
		o.act.AddUnit(&domain.ActivityUnit{
			ActivityId:      o.act.ActivityId,
			TrackingId:      uuid.New(),
			PrimaryTargetId: p.PrimaryTargetId,
			DxName:          name,
			State:           domain.UnitPending,
		})
	}

	if err := o.act.Transition(domain.StateStarting); err != nil {
		o.cb.ActivityFailed(o.act.ActivityId, "stopped")
		return time.Time{}, fmt.Errorf("activity: prepare: %w", err)
	}

	o.runLoop(ctx, p)
	return startTime, nil
}

// prepare runs the Prepare stage's entry action (§4.1): compute the start
// time and open the data-products directory, bounded by Timeouts.Prepare
// so a stuck filesystem never hangs Start(). On timeout or error the
// activity is failed with StagePrepare before any component command is
// issued and no event-loop goroutine is ever started.
func (o *Orchestrator) prepare(ctx context.Context, p Params) (time.Time, error) {
	type result struct {
		startTime time.Time
		err       error
	}
	done := make(chan result, 1)
	go func() {
		startTime := time.Now().Add(p.StartTimeOffset)
		if err := os.MkdirAll(p.DataProductsDir, 0o755); err != nil {
			done <- result{err: err}
			return
		}
		done <- result{startTime: startTime}
	}()

	timer := time.NewTimer(o.timeouts.Prepare)
	defer timer.Stop()

	select {
	case r := <-done:
		if r.err != nil {
			o.act.Fail(fmt.Sprintf("%s: %v", StagePrepare, r.err))
			return time.Time{}, fmt.Errorf("activity: %s: %w", StagePrepare, r.err)
		}
		return r.startTime, nil
	case <-timer.C:
		o.act.Fail(fmt.Sprintf("%s: timeout", StagePrepare))
		return time.Time{}, fmt.Errorf("activity: %s: timeout", StagePrepare)
	case <-ctx.Done():
		o.act.Fail(fmt.Sprintf("%s: %v", StagePrepare, ctx.Err()))
		return time.Time{}, ctx.Err()
	}
}

// Stop requests cooperative termination. Idempotent and safe from any
// goroutine.
func (o *Orchestrator) Stop() {
	if err := o.act.Stop(); err != nil {
		return
	}
	select {
	case o.events <- event{kind: evStop}:
	default:
		// Channel full under heavy callback load; the loop will still see
		// act.StopRequested() at its next stage boundary check.
	}
}

// NotifyComponentReady posts a component-ready callback onto the loop.
func (o *Orchestrator) NotifyComponentReady() { o.post(event{kind: evComponentReady}) }

// NotifyDetectorTuned posts a "detector tuned" ack.
func (o *Orchestrator) NotifyDetectorTuned(dxName string) {
	o.post(event{kind: evDetectorTuned, dxName: dxName})
}

// NotifyDataCollectionStarted posts a per-unit data-collection-started event.
func (o *Orchestrator) NotifyDataCollectionStarted(dxName string) {
	o.post(event{kind: evDataCollectionStarted, dxName: dxName})
}

// NotifyDataCollectionComplete posts a per-unit data-collection-complete event.
func (o *Orchestrator) NotifyDataCollectionComplete(dxName string) {
	o.post(event{kind: evDataCollectionComplete, dxName: dxName})
}

// NotifyDetectionComplete posts a per-unit signal-detection-complete event.
func (o *Orchestrator) NotifyDetectionComplete(dxName string) {
	o.post(event{kind: evDetectionComplete, dxName: dxName})
}

// NotifyDoneSendingCandidates posts a per-unit doneSendingCandidateResults event.
func (o *Orchestrator) NotifyDoneSendingCandidates(dxName string) {
	o.post(event{kind: evCandidatesDone, dxName: dxName})
}

// NotifyUnitComplete posts a per-unit activityUnitComplete event.
func (o *Orchestrator) NotifyUnitComplete(dxName string) {
	o.post(event{kind: evUnitComplete, dxName: dxName})
}

// NotifyComponentDisconnected marks dxName's unit as failed: the activity
// continues with the remaining units but the unit is tainted out of
// ObsHistory per §4.1's mid-activity-disconnect edge case.
func (o *Orchestrator) NotifyComponentDisconnected(dxName string) {
	o.post(event{kind: evComponentDisconnected, dxName: dxName})
}

func (o *Orchestrator) post(e event) {
	select {
	case o.events <- e:
	default:
		log.Printf("[activity %d] event channel full, dropping %v for %s", o.act.ActivityId, e.kind, e.dxName)
	}
}

// runLoop is the event-loop body: one goroutine processing stage
// transitions, timer expiries, and proxy callbacks in the order they
// arrive, with no other goroutine mutating o.act's counters directly.
func (o *Orchestrator) runLoop(ctx context.Context, p Params) {
	if !o.enterStartComponents(ctx, p) {
		o.teardown(ctx, p)
		return
	}
	if o.expectedReady > 0 && !o.waitFor(ctx, StageStartComponents, o.timeouts.StartComponents, func(e event) bool {
		if e.kind == evComponentReady {
			o.expectedReady--
		}
		return o.expectedReady <= 0
	}) {
		o.teardown(ctx, p)
		return
	}

	if !o.enterTuneDetectors(ctx, p) {
		o.teardown(ctx, p)
		return
	}
	if o.expectedAcks > 0 && !o.waitFor(ctx, StageTuneDetectors, o.timeouts.TuneDetectors, func(e event) bool {
		if e.kind == evDetectorTuned {
			o.expectedAcks--
		}
		return o.expectedAcks <= 0
	}) {
		o.teardown(ctx, p)
		return
	}

	if err := o.act.Transition(domain.StateCollecting); err != nil {
		o.teardown(ctx, p)
		return
	}
	started := make(map[string]bool)
	completed := o.seedSettled()
	if len(completed) < o.expectedUnits && !o.waitFor(ctx, StageCollect, o.timeouts.Collect, func(e event) bool {
		switch e.kind {
		case evDataCollectionStarted:
			started[e.dxName] = true
			if u := o.unit(e.dxName); u != nil {
				u.SetState(domain.UnitCollecting)
			}
		case evDataCollectionComplete:
			completed[e.dxName] = true
			o.act.MarkUnitReady(e.dxName)
		case evComponentDisconnected:
			o.failUnit(e.dxName)
			completed[e.dxName] = true
		}
		return len(completed) >= o.expectedUnits
	}) {
		o.teardown(ctx, p)
		return
	}

	if err := o.act.Transition(domain.StateDetecting); err != nil {
		o.teardown(ctx, p)
		return
	}
	done := o.seedSettled()
	if len(done) < o.expectedUnits && !o.waitFor(ctx, StageDetect, o.timeouts.Detect, func(e event) bool {
		switch e.kind {
		case evDetectionComplete:
			if u := o.unit(e.dxName); u != nil {
				u.SetState(domain.UnitDetecting)
			}
		case evCandidatesDone:
			done[e.dxName] = true
			if u := o.unit(e.dxName); u != nil {
				u.SetState(domain.UnitSendingCandidates)
			}
		case evComponentDisconnected:
			o.failUnit(e.dxName)
			done[e.dxName] = true
		}
		return len(done) >= o.expectedUnits
	}) {
		o.teardown(ctx, p)
		return
	}

	if o.act.SurvivingUnitCount() == 0 {
		o.act.Fail(fmt.Sprintf("%s: %v", StageDetect, domain.ErrNoSurvivingUnits))
		o.teardown(ctx, p)
		return
	}

	if err := o.act.Transition(domain.StateReporting); err != nil {
		o.teardown(ctx, p)
		return
	}
	complete := o.seedSettled()
	ok := len(complete) >= o.expectedUnits
	if !ok {
		ok = o.waitFor(ctx, StageReport, o.timeouts.Report, func(e event) bool {
			switch e.kind {
			case evUnitComplete:
				complete[e.dxName] = true
				if u := o.unit(e.dxName); u != nil {
					u.SetState(domain.UnitComplete)
				}
				o.act.MarkUnitDone(e.dxName)
			case evComponentDisconnected:
				o.failUnit(e.dxName)
				complete[e.dxName] = true
			}
			return len(complete) >= o.expectedUnits
		})
	}
	if ok {
		if err := o.writeReportWithRetry(ctx); err != nil {
			o.act.Fail(fmt.Sprintf("%s: %v", StageReport, err))
		}
	}

	o.teardown(ctx, p)
}

func (o *Orchestrator) enterStartComponents(ctx context.Context, p Params) bool {
	n, err := o.starter.StartComponents(ctx, o.act.ActivityId, p)
	if err != nil {
		o.act.Fail(fmt.Sprintf("%s: %v", StageStartComponents, err))
		return false
	}
	o.expectedReady = n
	o.expectedUnits = len(p.DetectorNames)
	return true
}

func (o *Orchestrator) enterTuneDetectors(ctx context.Context, p Params) bool {
	if err := o.act.Transition(domain.StateWaitingReady); err != nil {
		return false
	}
	n, err := o.detuner.TuneDetectors(ctx, o.act.ActivityId, p.DetectorNames)
	if err != nil {
		o.act.Fail(fmt.Sprintf("%s: %v", StageTuneDetectors, err))
		return false
	}
	o.expectedAcks = n
	return true
}

// writeReportWithRetry writes the ObsHistory report, retrying once on
// failure per §7 ("Database error — retried once if idempotent; otherwise
// surfaced as activity FAILED during Report"). WriteReport's underlying
// writes (UpdateActivity, InsertActivityUnit) are upserts keyed on
// activity/unit identity, so a retry after a transient failure is safe.
func (o *Orchestrator) writeReportWithRetry(ctx context.Context) error {
	err := o.persist.WriteReport(ctx, o.act)
	if err == nil {
		return nil
	}
	log.Printf("[activity %d] %s: write report failed, retrying once: %v", o.act.ActivityId, StageReport, err)
	return o.persist.WriteReport(ctx, o.act)
}

// waitFor blocks the event loop until consume reports satisfied, the
// stage's deadline fires, Stop is requested, or ctx is cancelled. It
// returns false if the stage did not complete normally — the caller is
// responsible for Fail()ing the activity with an appropriate reason when
// it was a timeout, not a deliberate Stop.
func (o *Orchestrator) waitFor(ctx context.Context, stage Stage, deadline time.Duration, consume func(event) bool) bool {
	timer := time.NewTimer(deadline)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			o.act.Fail(fmt.Sprintf("%s: context cancelled", stage))
			return false
		case <-timer.C:
			o.act.Fail(string(stage))
			return false
		case e := <-o.events:
			if e.kind == evStop {
				return false
			}
			if consume(e) {
				return true
			}
		}
	}
}

// failUnit taints dxName in the activity and remembers it so later stages
// don't wait on a callback that will never come.
func (o *Orchestrator) failUnit(dxName string) {
	o.act.MarkUnitFailed(dxName)
	o.failedDx[dxName] = true
}

// seedSettled returns a fresh per-stage tracking map pre-populated with
// every unit already failed in an earlier stage.
func (o *Orchestrator) seedSettled() map[string]bool {
	out := make(map[string]bool, len(o.failedDx))
	for name := range o.failedDx {
		out[name] = true
	}
	return out
}

func (o *Orchestrator) unit(dxName string) *domain.ActivityUnit {
	for _, u := range o.act.Units() {
		if u.DxName == dxName {
			return u
		}
	}
	return nil
}

// teardown always runs, regardless of how the machine got here: it
// detaches components, drains any further callbacks, and notifies the
// caller exactly once. Per §4.1, Teardown always succeeds.
func (o *Orchestrator) teardown(_ context.Context, _ Params) {
	log.Printf("[activity %d] %s: tearing down (state=%s)", o.act.ActivityId, StageTeardown, o.act.State())
	for {
		select {
		case <-o.events:
			// drain without acting: units may still be posting callbacks
			// after the machine has already decided the activity's fate.
			continue
		default:
		}
		break
	}

	switch o.act.State() {
	case domain.StateDone:
		o.cb.ActivityComplete(o.act.ActivityId)
	case domain.StateFailed:
		o.cb.ActivityFailed(o.act.ActivityId, o.act.FailReason())
	case domain.StateStopped:
		o.cb.ActivityFailed(o.act.ActivityId, "stopped")
	default:
		if err := o.act.Transition(domain.StateDone); err == nil {
			o.cb.ActivityComplete(o.act.ActivityId)
		} else {
			o.cb.ActivityFailed(o.act.ActivityId, o.act.FailReason())
		}
	}
}
