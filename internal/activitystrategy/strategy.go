// Package activitystrategy selects and sequences the next Activity: it
// drains any queued followup observations first, otherwise asks
// TargetScheduler for a fresh primary target plus secondaries, and rotates
// the scheduler's primary-fairness window once per non-followup selection —
// rotation cadence is tied to selection cadence, not to a wall-clock timer.
package activitystrategy

import (
	"fmt"
	"sync"
	"time"

	"github.com/sonata-sse/sse-core/internal/activity"
	"github.com/sonata-sse/sse-core/internal/domain"
	"github.com/sonata-sse/sse-core/internal/infra/resilience"
	"github.com/sonata-sse/sse-core/internal/infra/scheduler"
)

// TargetSource supplies the current candidate pool, e.g. targets paged in
// from the catalog and still within their visibility window.
type TargetSource interface {
	CandidateTargets() []*domain.Target
}

// Config bounds one Strategy.
type Config struct {
	TargetsPerActivity   int // primary + secondaries requested per ChooseTargets call
	DetectorsPerActivity int // max detectors fanned out per activity
	DataProductsRoot     string
}

// DefaultConfig returns a single-target, 4-detector default.
func DefaultConfig() Config {
	return Config{TargetsPerActivity: 1, DetectorsPerActivity: 4, DataProductsRoot: "/var/lib/sse-core/data"}
}

// followup is a queued re-observation of a specific target/band, bypassing
// target selection entirely.
type followup struct {
	targetID domain.TargetId
	dxNames  []string
}

// Strategy decides what the next Activity should be.
type Strategy struct {
	cfg        Config
	sched      *scheduler.TargetScheduler
	targets    TargetSource
	quarantine *resilience.QuarantineManager

	mu             sync.Mutex
	allDetectors   []string
	followupQueue  []followup
	lastPrimary    domain.PrimaryTargetId
	hasLastPrimary bool
	seq            int64
}

// New constructs a Strategy. allDetectors is the full roster of detector
// proxy names the fabric currently has registered; Next filters out any
// currently quarantined name at selection time.
func New(cfg Config, sched *scheduler.TargetScheduler, targets TargetSource, quarantine *resilience.QuarantineManager, allDetectors []string) *Strategy {
	return &Strategy{
		cfg:          cfg,
		sched:        sched,
		targets:      targets,
		quarantine:   quarantine,
		allDetectors: allDetectors,
	}
}

// SetAvailableDetectors replaces the known detector roster, called whenever
// the fabric's registered-detector set changes.
func (s *Strategy) SetAvailableDetectors(names []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allDetectors = names
}

// QueueFollowup schedules a targeted re-observation ahead of the next fresh
// selection, bypassing TargetScheduler entirely — used when an operator or
// the anomaly layer wants another look at a specific target without
// disturbing primary-fairness rotation.
func (s *Strategy) QueueFollowup(targetID domain.TargetId, dxNames []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.followupQueue = append(s.followupQueue, followup{targetID: targetID, dxNames: dxNames})
}

// Next produces the Params for the next activity to run. anyActivitiesRunning
// is forwarded to ChooseTargets, which accepts it but does not use it in
// target selection.
func (s *Strategy) Next(obsTime time.Time, anyActivitiesRunning bool) (activity.Params, error) {
	s.mu.Lock()
	if len(s.followupQueue) > 0 {
		fq := s.followupQueue[0]
		s.followupQueue = s.followupQueue[1:]
		s.seq++
		seq := s.seq
		s.mu.Unlock()
		return activity.Params{
			Kind:            domain.KindFollowup,
			Ops:             domain.UseTscope | domain.UseIfc | domain.UseDetector | domain.FollowUp,
			TargetIds:       []domain.TargetId{fq.targetID},
			DetectorNames:   fq.dxNames,
			DataProductsDir: s.dataProductsDir(obsTime, seq),
		}, nil
	}
	if s.hasLastPrimary {
		s.sched.RotatePrimaryTargetIds(s.lastPrimary)
	}
	detectors := s.availableDetectorsLocked()
	s.mu.Unlock()

	candidates := s.targets.CandidateTargets()
	result, err := s.sched.ChooseTargets(candidates, s.cfg.TargetsPerActivity, obsTime, anyActivitiesRunning)
	if err != nil {
		return activity.Params{}, fmt.Errorf("activitystrategy: %w", err)
	}

	s.mu.Lock()
	s.lastPrimary = result.PrimaryGroupId
	s.hasLastPrimary = true
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	if len(detectors) > s.cfg.DetectorsPerActivity {
		detectors = detectors[:s.cfg.DetectorsPerActivity]
	}

	targetIDs := append([]domain.TargetId{result.PrimaryTargetId}, result.AdditionalIds...)
	return activity.Params{
		Kind:            domain.KindObservation,
		Ops:             domain.UseTscope | domain.UseIfc | domain.UseDetector,
		PrimaryTargetId: result.PrimaryGroupId,
		TargetIds:       targetIDs,
		DetectorNames:   detectors,
		DataProductsDir: s.dataProductsDir(obsTime, seq),
		TuningRange:     result.ChosenRange,
	}, nil
}

// availableDetectorsLocked returns every roster entry not currently
// quarantined. Caller must hold s.mu.
func (s *Strategy) availableDetectorsLocked() []string {
	out := make([]string, 0, len(s.allDetectors))
	for _, name := range s.allDetectors {
		if s.quarantine != nil && s.quarantine.IsQuarantined(name) {
			continue
		}
		out = append(out, name)
	}
	return out
}

func (s *Strategy) dataProductsDir(obsTime time.Time, seq int64) string {
	return fmt.Sprintf("%s/act-%d-%03d", s.cfg.DataProductsRoot, obsTime.Unix(), seq)
}
