// Package obshistory reads and writes the observation record: per-target
// frequency coverage, per-activity completion rows, and recovered candidate
// signals. It is the only component allowed to touch the activities,
// activity_units, observed_freq_bands, and candidate_signals tables, so
// every other package depends on it rather than on internal/infra/sqlite
// directly for those concerns.
package obshistory

import (
	"context"
	"fmt"
	"time"

	"github.com/sonata-sse/sse-core/internal/domain"
	"github.com/sonata-sse/sse-core/internal/infra/sqlite"
)

// Store is the ObsHistory read/write gateway.
type Store struct {
	db  *sqlite.DB
	now func() time.Time
}

// New constructs a Store backed by db, using time.Now for timestamps.
func New(db *sqlite.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// NewWithClock constructs a Store with an injected clock, for deterministic
// tests.
func NewWithClock(db *sqlite.DB, now func() time.Time) *Store {
	return &Store{db: db, now: now}
}

// LoadObservedBands populates t.ObservedFreqBands from the persisted
// history, called once when a Target is paged into the scheduler's working
// set.
func (s *Store) LoadObservedBands(t *domain.Target) error {
	bands, err := s.db.ObservedBandsForTarget(t.TargetId)
	if err != nil {
		return fmt.Errorf("obshistory: load bands for target %d: %w", t.TargetId, err)
	}
	for _, b := range bands {
		t.AddObservedBand(b)
	}
	return nil
}

// RecordObservedBand persists b as newly observed for t and folds it into
// the in-memory target so the next scheduling pass sees it without a
// reload.
func (s *Store) RecordObservedBand(t *domain.Target, b domain.Band) error {
	if err := s.db.RecordObservedBand(t.TargetId, b, s.now()); err != nil {
		return fmt.Errorf("obshistory: record band for target %d: %w", t.TargetId, err)
	}
	t.AddObservedBand(b)
	return nil
}

// RecordCandidate persists a recovered candidate signal against activityID
// and folds it into t.Candidates.
func (s *Store) RecordCandidate(activityID int64, t *domain.Target, beamNumber int, c domain.CandidateSignal) error {
	c.ActivityId = activityID
	c.BeamNumber = beamNumber
	if err := s.db.InsertCandidateSignal(activityID, t.TargetId, beamNumber, c); err != nil {
		return fmt.Errorf("obshistory: record candidate for target %d: %w", t.TargetId, err)
	}
	t.Candidates = append(t.Candidates, c)
	return nil
}

// NewActivityRow inserts a new Activities row and returns its
// database-assigned id, called by the daemon before it builds the
// activity's orchestrator.
func (s *Store) NewActivityRow(kind domain.ActivityKind) (int64, error) {
	id, err := s.db.InsertActivity(kind, s.now())
	if err != nil {
		return 0, fmt.Errorf("obshistory: new activity row: %w", err)
	}
	return id, nil
}

// WriteReport implements activity.Persister: it writes one ActivityUnit row
// per surviving (non-tainted) unit and marks the Activities row valid if at
// least one unit survives, invalid otherwise.
// Tainted units are skipped entirely, per the mid-activity-disconnect rule:
// a unit that disconnected leaves no ObsHistory trace.
func (s *Store) WriteReport(_ context.Context, act *domain.Activity) error {
	valid := act.SurvivingUnitCount() > 0
	if err := s.db.UpdateActivity(act.ActivityId, valid, act.StartTime); err != nil {
		return fmt.Errorf("obshistory: write report for activity %d: %w", act.ActivityId, err)
	}
	for _, u := range act.Units() {
		if act.IsTainted(u.DxName) {
			continue
		}
		u.ValidObservation = true
		if err := s.db.InsertActivityUnit(u); err != nil {
			return fmt.Errorf("obshistory: write report for activity %d: %w", act.ActivityId, err)
		}
	}
	return nil
}
