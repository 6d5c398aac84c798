package activity

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sonata-sse/sse-core/internal/domain"
)

type fakeStarter struct {
	expectedReady int
	err           error
}

func (s *fakeStarter) StartComponents(ctx context.Context, activityID int64, p Params) (int, error) {
	return s.expectedReady, s.err
}

type fakeDetuner struct {
	expectedAcks int
	err          error
}

func (d *fakeDetuner) TuneDetectors(ctx context.Context, activityID int64, names []string) (int, error) {
	return d.expectedAcks, d.err
}

type fakePersister struct {
	mu      sync.Mutex
	writes  int
	err     error
	failFor int // if > 0, WriteReport fails this many calls before succeeding
}

func (p *fakePersister) WriteReport(ctx context.Context, act *domain.Activity) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writes++
	if p.failFor > 0 {
		p.failFor--
		return fmt.Errorf("transient db error")
	}
	return p.err
}

type fakeCallbacks struct {
	mu        sync.Mutex
	completed []int64
	failed    map[int64]string
}

func newFakeCallbacks() *fakeCallbacks {
	return &fakeCallbacks{failed: make(map[int64]string)}
}

func (c *fakeCallbacks) ActivityComplete(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.completed = append(c.completed, id)
}

func (c *fakeCallbacks) ActivityFailed(id int64, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failed[id] = reason
}

func (c *fakeCallbacks) didComplete(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, x := range c.completed {
		if x == id {
			return true
		}
	}
	return false
}

func (c *fakeCallbacks) failReason(id int64) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.failed[id]
	return r, ok
}

func shortTimeouts() Timeouts {
	return Timeouts{
		Prepare:         time.Second,
		StartComponents: 200 * time.Millisecond,
		TuneDetectors:   200 * time.Millisecond,
		Collect:         200 * time.Millisecond,
		Detect:          200 * time.Millisecond,
		Report:          200 * time.Millisecond,
	}
}

func TestOrchestratorHappyPath(t *testing.T) {
	act := domain.NewActivity(1, domain.KindObservation, domain.UseDetector)
	starter := &fakeStarter{expectedReady: 2}
	detuner := &fakeDetuner{expectedAcks: 2}
	persist := &fakePersister{}
	cb := newFakeCallbacks()
	o := New(act, starter, detuner, persist, cb, shortTimeouts())

	params := Params{
		Kind:            domain.KindObservation,
		Ops:             domain.UseDetector,
		DetectorNames:   []string{"dx1", "dx2"},
		DataProductsDir: t.TempDir(),
	}

	done := make(chan struct{})
	go func() {
		_, err := o.Start(context.Background(), params)
		if err != nil {
			t.Errorf("Start returned error: %v", err)
		}
		close(done)
	}()

	// Give the loop a moment to enter StartComponents before firing callbacks.
	time.Sleep(20 * time.Millisecond)
	o.NotifyComponentReady()
	o.NotifyComponentReady()

	time.Sleep(20 * time.Millisecond)
	o.NotifyDetectorTuned("dx1")
	o.NotifyDetectorTuned("dx2")

	time.Sleep(20 * time.Millisecond)
	o.NotifyDataCollectionStarted("dx1")
	o.NotifyDataCollectionStarted("dx2")
	o.NotifyDataCollectionComplete("dx1")
	o.NotifyDataCollectionComplete("dx2")

	time.Sleep(20 * time.Millisecond)
	o.NotifyDetectionComplete("dx1")
	o.NotifyDetectionComplete("dx2")
	o.NotifyDoneSendingCandidates("dx1")
	o.NotifyDoneSendingCandidates("dx2")

	time.Sleep(20 * time.Millisecond)
	o.NotifyUnitComplete("dx1")
	o.NotifyUnitComplete("dx2")

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("orchestrator did not finish in time")
	}

	if !cb.didComplete(1) {
		reason, _ := cb.failReason(1)
		t.Fatalf("expected activity 1 to complete, got failure reason %q", reason)
	}
	if persist.writes != 1 {
		t.Fatalf("expected 1 WriteReport call, got %d", persist.writes)
	}
	if act.Counters().Done != 2 {
		t.Fatalf("expected 2 units done, got %+v", act.Counters())
	}
}

func TestOrchestratorStartComponentsTimeout(t *testing.T) {
	act := domain.NewActivity(2, domain.KindObservation, domain.UseDetector)
	starter := &fakeStarter{expectedReady: 1}
	detuner := &fakeDetuner{}
	persist := &fakePersister{}
	cb := newFakeCallbacks()
	to := shortTimeouts()
	to.StartComponents = 30 * time.Millisecond
	o := New(act, starter, detuner, persist, cb, to)

	params := Params{DetectorNames: []string{"dx1"}, DataProductsDir: t.TempDir()}

	done := make(chan struct{})
	go func() {
		o.Start(context.Background(), params)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("orchestrator did not finish in time")
	}

	reason, failed := cb.failReason(2)
	if !failed {
		t.Fatal("expected activity 2 to fail")
	}
	if !strings.Contains(reason, string(StageStartComponents)) {
		t.Fatalf("expected reason to mention %q, got %q", StageStartComponents, reason)
	}
}

func TestOrchestratorStopIsIdempotentAndTearsDown(t *testing.T) {
	act := domain.NewActivity(3, domain.KindObservation, domain.UseDetector)
	starter := &fakeStarter{expectedReady: 1}
	detuner := &fakeDetuner{expectedAcks: 1}
	persist := &fakePersister{}
	cb := newFakeCallbacks()
	o := New(act, starter, detuner, persist, cb, shortTimeouts())

	params := Params{DetectorNames: []string{"dx1"}, DataProductsDir: t.TempDir()}

	done := make(chan struct{})
	go func() {
		o.Start(context.Background(), params)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	o.Stop()
	o.Stop() // idempotent

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("orchestrator did not finish in time")
	}

	if _, failed := cb.failReason(3); !failed {
		t.Fatal("expected a stopped activity to be reported as failed/stopped exactly once")
	}
}

func TestOrchestratorZeroSurvivingUnitsFails(t *testing.T) {
	act := domain.NewActivity(4, domain.KindObservation, domain.UseDetector)
	starter := &fakeStarter{expectedReady: 1}
	detuner := &fakeDetuner{expectedAcks: 1}
	persist := &fakePersister{}
	cb := newFakeCallbacks()
	o := New(act, starter, detuner, persist, cb, shortTimeouts())

	params := Params{DetectorNames: []string{"dx1"}, DataProductsDir: t.TempDir()}

	done := make(chan struct{})
	go func() {
		o.Start(context.Background(), params)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	o.NotifyComponentReady()
	time.Sleep(20 * time.Millisecond)
	o.NotifyDetectorTuned("dx1")
	time.Sleep(20 * time.Millisecond)
	o.NotifyComponentDisconnected("dx1") // fails during Collect

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("orchestrator did not finish in time")
	}

	reason, failed := cb.failReason(4)
	if !failed {
		t.Fatal("expected activity 4 to fail with zero surviving units")
	}
	if !strings.Contains(reason, domain.ErrNoSurvivingUnits.Error()) {
		t.Fatalf("expected reason to mention ErrNoSurvivingUnits, got %q", reason)
	}
}

func TestOrchestratorReportRetriesOnceOnWriteFailure(t *testing.T) {
	act := domain.NewActivity(5, domain.KindObservation, domain.UseDetector)
	starter := &fakeStarter{expectedReady: 1}
	detuner := &fakeDetuner{expectedAcks: 1}
	persist := &fakePersister{failFor: 1} // fails the first WriteReport, succeeds the retry
	cb := newFakeCallbacks()
	o := New(act, starter, detuner, persist, cb, shortTimeouts())

	params := Params{DetectorNames: []string{"dx1"}, DataProductsDir: t.TempDir()}

	done := make(chan struct{})
	go func() {
		o.Start(context.Background(), params)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	o.NotifyComponentReady()
	time.Sleep(20 * time.Millisecond)
	o.NotifyDetectorTuned("dx1")
	time.Sleep(20 * time.Millisecond)
	o.NotifyDataCollectionStarted("dx1")
	o.NotifyDataCollectionComplete("dx1")
	time.Sleep(20 * time.Millisecond)
	o.NotifyDetectionComplete("dx1")
	o.NotifyDoneSendingCandidates("dx1")
	time.Sleep(20 * time.Millisecond)
	o.NotifyUnitComplete("dx1")

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("orchestrator did not finish in time")
	}

	if !cb.didComplete(5) {
		reason, _ := cb.failReason(5)
		t.Fatalf("expected activity 5 to complete after one retry, got failure reason %q", reason)
	}
	if persist.writes != 2 {
		t.Fatalf("expected 2 WriteReport calls (1 failure + 1 retry), got %d", persist.writes)
	}
}

func TestOrchestratorReportFailsAfterRetryExhausted(t *testing.T) {
	act := domain.NewActivity(6, domain.KindObservation, domain.UseDetector)
	starter := &fakeStarter{expectedReady: 1}
	detuner := &fakeDetuner{expectedAcks: 1}
	persist := &fakePersister{failFor: 2} // still failing on the retry
	cb := newFakeCallbacks()
	o := New(act, starter, detuner, persist, cb, shortTimeouts())

	params := Params{DetectorNames: []string{"dx1"}, DataProductsDir: t.TempDir()}

	done := make(chan struct{})
	go func() {
		o.Start(context.Background(), params)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	o.NotifyComponentReady()
	time.Sleep(20 * time.Millisecond)
	o.NotifyDetectorTuned("dx1")
	time.Sleep(20 * time.Millisecond)
	o.NotifyDataCollectionStarted("dx1")
	o.NotifyDataCollectionComplete("dx1")
	time.Sleep(20 * time.Millisecond)
	o.NotifyDetectionComplete("dx1")
	o.NotifyDoneSendingCandidates("dx1")
	time.Sleep(20 * time.Millisecond)
	o.NotifyUnitComplete("dx1")

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("orchestrator did not finish in time")
	}

	reason, failed := cb.failReason(6)
	if !failed {
		t.Fatal("expected activity 6 to fail after retry exhaustion")
	}
	if !strings.Contains(reason, string(StageReport)) {
		t.Fatalf("expected reason to mention %q, got %q", StageReport, reason)
	}
	if persist.writes != 2 {
		t.Fatalf("expected exactly 2 WriteReport attempts, got %d", persist.writes)
	}
}

func TestParamsValidateRejectsEmptyDataDir(t *testing.T) {
	p := Params{}
	if err := p.Validate(); err == nil {
		t.Fatal("expected error for empty DataProductsDir")
	}
}

func TestParamsValidateRejectsDetectorOpWithNoDetectors(t *testing.T) {
	p := Params{Ops: domain.UseDetector, DataProductsDir: "/data"}
	if err := p.Validate(); err == nil {
		t.Fatal("expected error for USE_DETECTOR with no detectors")
	}
}
