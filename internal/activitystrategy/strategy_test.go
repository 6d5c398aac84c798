package activitystrategy

import (
	"testing"
	"time"

	"github.com/sonata-sse/sse-core/internal/domain"
	"github.com/sonata-sse/sse-core/internal/infra/resilience"
	"github.com/sonata-sse/sse-core/internal/infra/scheduler"
)

type fakeSky struct{}

func (fakeSky) RemainingUpTime(t *domain.Target, obsTime time.Time) time.Duration { return time.Hour }
func (fakeSky) TooCloseToAvoidanceBody(t *domain.Target, obsTime time.Time) bool  { return false }
func (fakeSky) InsideGeoExclusionAnnulus(t *domain.Target, obsTime time.Time) bool {
	return false
}
func (fakeSky) AngularSeparationBeamsizes(a, b *domain.Target) float64 { return 5 }
func (fakeSky) HourAngleFromMeridianRad(t *domain.Target, obsTime time.Time) float64 {
	return 0
}

type fakeCatalog struct{}

func (fakeCatalog) TagPriority(tag string) float64 { return 1.0 }

type fakeTargets struct {
	targets []*domain.Target
}

func (f fakeTargets) CandidateTargets() []*domain.Target { return f.targets }

func newTestStrategy(targets []*domain.Target) *Strategy {
	cfg := scheduler.DefaultConfig()
	cfg.AllowedRange = domain.NewObservationRange(domain.Band{LowMhz: 1000, HighMhz: 2000})
	sched := scheduler.NewTargetScheduler(cfg, fakeSky{}, fakeCatalog{})
	q := resilience.NewQuarantineManager()
	return New(DefaultConfig(), sched, fakeTargets{targets: targets}, q, []string{"dx1", "dx2", "dx3", "dx4", "dx5"})
}

func TestNextSelectsObservationAndRotatesFairness(t *testing.T) {
	targets := []*domain.Target{
		{TargetId: 1, PrimaryTargetId: 100},
		{TargetId: 2, PrimaryTargetId: 200},
	}
	s := newTestStrategy(targets)
	obsTime := time.Unix(1_700_000_000, 0)

	p1, err := s.Next(obsTime, false)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if p1.Kind != domain.KindObservation {
		t.Fatalf("expected KindObservation, got %v", p1.Kind)
	}
	if len(p1.DetectorNames) != DefaultConfig().DetectorsPerActivity {
		t.Fatalf("expected %d detectors, got %d", DefaultConfig().DetectorsPerActivity, len(p1.DetectorNames))
	}
	if p1.DataProductsDir == "" {
		t.Fatal("expected non-empty data products dir")
	}

	// Second call should rotate the first primary out of contention,
	// still succeeding because target 2 remains.
	p2, err := s.Next(obsTime, true)
	if err != nil {
		t.Fatalf("Next (2nd): %v", err)
	}
	if p1.DataProductsDir == p2.DataProductsDir {
		t.Fatal("expected distinct data products dirs across activities")
	}
}

func TestQueuedFollowupBypassesScheduler(t *testing.T) {
	s := newTestStrategy(nil) // no candidates at all; scheduler alone would fail
	s.QueueFollowup(42, []string{"dx1"})

	p, err := s.Next(time.Now(), false)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if p.Kind != domain.KindFollowup {
		t.Fatalf("expected KindFollowup, got %v", p.Kind)
	}
	if len(p.TargetIds) != 1 || p.TargetIds[0] != 42 {
		t.Fatalf("expected followup target 42, got %+v", p.TargetIds)
	}
}

func TestAvailableDetectorsExcludesQuarantined(t *testing.T) {
	targets := []*domain.Target{{TargetId: 1, PrimaryTargetId: 100}}
	s := newTestStrategy(targets)

	q := resilience.NewQuarantineManager()
	q.RecordFailure("dx1")
	s.quarantine = q

	p, err := s.Next(time.Unix(1_700_000_000, 0), false)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	for _, name := range p.DetectorNames {
		if name == "dx1" {
			t.Fatal("expected quarantined dx1 excluded from detector roster")
		}
	}
}
