// Package scheduler implements the Target Scheduler: it ranks
// candidate targets by a multiplicative merit model, enforces visibility
// and availability constraints, selects a primary target plus co-observable
// secondaries, and reserves a not-yet-observed frequency sub-range on the
// primary.
package scheduler

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sonata-sse/sse-core/internal/domain"
)

// SkyModel answers the astronomy questions the scheduler needs but does not
// itself compute — horizon/refraction visibility, sun/moon/zenith
// separation, and angular separation between targets. Low-level ephemeris
// math (star-finder, doppler correction) is an external collaborator; the
// scheduler only consumes this narrow contract.
type SkyModel interface {
	// RemainingUpTime returns how long t stays above the configured horizon
	// (with refraction correction) starting at obsTime.
	RemainingUpTime(t *domain.Target, obsTime time.Time) time.Duration
	// TooCloseToAvoidanceBody reports whether t is inside the configured
	// sun/moon/zenith avoidance angle at obsTime.
	TooCloseToAvoidanceBody(t *domain.Target, obsTime time.Time) bool
	// InsideGeoExclusionAnnulus reports whether t falls within a
	// GEO-satellite exclusion annulus at obsTime.
	InsideGeoExclusionAnnulus(t *domain.Target, obsTime time.Time) bool
	// AngularSeparationBeamsizes returns the angular separation between a
	// and b, expressed as a multiple of the primary beamsize.
	AngularSeparationBeamsizes(a, b *domain.Target) float64
	// HourAngleFromMeridianRad returns |hour angle| from the meridian, in
	// radians, for t at obsTime.
	HourAngleFromMeridianRad(t *domain.Target, obsTime time.Time) float64
}

// CatalogPriority resolves the catalog-tag merit factor from the static
// catalog (satcat). GEO-satellite exclusion is asked of SkyModel, not of
// this interface.
type CatalogPriority interface {
	// TagPriority returns the configured merit multiplier for tag, or 1.0
	// if the tag carries no special priority.
	TagPriority(tag string) float64
}

// Weights configures the independently-bounded merit factors of §4.2. A
// factor's weight of 0 disables it (it contributes 1.0, i.e. no-op) rather
// than zeroing the whole product.
type Weights struct {
	Catalog       float64
	PrimaryId     float64
	Meridian      float64
	Dec           float64
	CompletelyObs float64
	TimeLeft      float64

	FavorHigherDec bool // alternate dec mode: favor higher declination
}

// DefaultWeights returns an equal-weighted configuration with all factors
// enabled.
func DefaultWeights() Weights {
	return Weights{
		Catalog:       1.0,
		PrimaryId:     1.0,
		Meridian:      1.0,
		Dec:           1.0,
		CompletelyObs: 1.0,
		TimeLeft:      1.0,
	}
}

// Config bounds one TargetScheduler instance.
type Config struct {
	Weights Weights

	AllowedRange domain.ObservationRange // configured allowed observing band
	PermanentRfi domain.ObservationRange // permanent RFI exclusion bands

	MinRemainingOnTarget        time.Duration
	MinAcceptableRemainingBandMhz float64
	ReservedFollowupHeadroom    time.Duration

	MinSeparationBeamsizes float64

	// RotationWindow bounds how many most-recently-scheduled primary
	// groups have their fairness bonus zeroed.
	RotationWindow int

	DecMinRad, DecMaxRad float64
}

// DefaultConfig returns scheduler defaults with every merit factor enabled
// and a 10-entry rotation window.
func DefaultConfig() Config {
	return Config{
		Weights:                       DefaultWeights(),
		MinRemainingOnTarget:          10 * time.Minute,
		MinAcceptableRemainingBandMhz: 1.0,
		ReservedFollowupHeadroom:      5 * time.Minute,
		MinSeparationBeamsizes:        1.0,
		RotationWindow:                10,
		DecMinRad:                     -1.5708,
		DecMaxRad:                     1.5708,
	}
}

// Stats is a point-in-time snapshot of scheduler activity, exposed to the
// status API.
type Stats struct {
	Chosen   int
	Rejected int
	NoTarget int
}

// TargetScheduler ranks targets by merit, enforces visibility/availability
// constraints, and selects a primary target plus in-beam secondaries.
type TargetScheduler struct {
	cfg   Config
	sky   SkyModel
	cat   CatalogPriority

	mu             sync.Mutex
	inUse          map[domain.TargetId]bool
	recentPrimary  []primaryUse
	stats          Stats
}

type primaryUse struct {
	id primaryGroupKey
	at int // logical tick, not wall-clock — see RotatePrimaryTargetIds
}

type primaryGroupKey = domain.PrimaryTargetId

// NewTargetScheduler constructs a scheduler bound to cfg, sky, and cat.
func NewTargetScheduler(cfg Config, sky SkyModel, cat CatalogPriority) *TargetScheduler {
	return &TargetScheduler{
		cfg:   cfg,
		sky:   sky,
		cat:   cat,
		inUse: make(map[domain.TargetId]bool),
	}
}

// Stats returns a snapshot of cumulative scheduler activity.
func (s *TargetScheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// MarkInUse flags targetID as held by a running activity, excluding it from
// future ChooseTargets calls until ReleaseTarget.
func (s *TargetScheduler) MarkInUse(targetID domain.TargetId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inUse[targetID] = true
}

// ReleaseTarget clears the in-use mark.
func (s *TargetScheduler) ReleaseTarget(targetID domain.TargetId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inUse, targetID)
}

// RotatePrimaryTargetIds records primaryID as just-scheduled, rolling the
// window so its fairness bonus is zeroed until it ages out. Cadence is the
// caller's responsibility — §4.2 couples this 1:1 to ActivityStrategy's
// per-observation-cycle cadence, not to a wall-clock timer.
func (s *TargetScheduler) RotatePrimaryTargetIds(primaryID domain.PrimaryTargetId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tick := len(s.recentPrimary)
	s.recentPrimary = append(s.recentPrimary, primaryUse{id: primaryID, at: tick})
	if over := len(s.recentPrimary) - s.cfg.RotationWindow; over > 0 && s.cfg.RotationWindow > 0 {
		s.recentPrimary = s.recentPrimary[over:]
	}
}

func (s *TargetScheduler) recentlyScheduled(primaryID domain.PrimaryTargetId) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.RotationWindow <= 0 {
		return false
	}
	for _, u := range s.recentPrimary {
		if u.id == primaryID {
			return true
		}
	}
	return false
}

// Result is the outcome of a successful ChooseTargets call.
type Result struct {
	PrimaryTargetId domain.TargetId
	ChosenRange     domain.Band
	AdditionalIds   []domain.TargetId
	PrimaryGroupId  domain.PrimaryTargetId
}

// ChooseTargets selects a primary target plus up to nRequested-1
// co-observable secondaries from candidates, at obsTime. Returns
// domain.ErrNoTarget if no candidate survives visibility, merit, and
// frequency-selection constraints.
func (s *TargetScheduler) ChooseTargets(
	candidates []*domain.Target,
	nRequested int,
	obsTime time.Time,
	anyActivitiesRunning bool,
) (Result, error) {
	ranked := s.rankedCandidates(candidates, obsTime)

	for _, rc := range ranked {
		chosen, err := s.pickFrequency(rc.target)
		if err != nil {
			s.mu.Lock()
			s.stats.Rejected++
			s.mu.Unlock()
			continue
		}

		additional := s.pickSecondaries(rc.target, chosen, candidates, nRequested-1, obsTime)

		s.mu.Lock()
		s.stats.Chosen++
		s.mu.Unlock()

		return Result{
			PrimaryTargetId: rc.target.TargetId,
			ChosenRange:     chosen,
			AdditionalIds:   additional,
			PrimaryGroupId:  rc.target.PrimaryTargetId,
		}, nil
	}

	s.mu.Lock()
	s.stats.NoTarget++
	s.mu.Unlock()
	return Result{}, fmt.Errorf("scheduler: %w", domain.ErrNoTarget)
}

type rankedCandidate struct {
	target *domain.Target
	merit  float64
}

// rankedCandidates filters by visibility/availability, scores survivors,
// and sorts descending by merit with ties broken by lower targetId.
func (s *TargetScheduler) rankedCandidates(candidates []*domain.Target, obsTime time.Time) []rankedCandidate {
	var out []rankedCandidate
	for _, t := range candidates {
		if !s.visible(t, obsTime) {
			continue
		}
		merit := s.merit(t, obsTime)
		if merit <= 0 {
			continue
		}
		out = append(out, rankedCandidate{target: t, merit: merit})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].merit != out[j].merit {
			return out[i].merit > out[j].merit
		}
		return out[i].target.TargetId < out[j].target.TargetId
	})
	return out
}

// visible applies every visibility predicate of §4.2.
func (s *TargetScheduler) visible(t *domain.Target, obsTime time.Time) bool {
	if t.InUse() {
		return false
	}
	s.mu.Lock()
	inUse := s.inUse[t.TargetId]
	s.mu.Unlock()
	if inUse {
		return false
	}
	if t.DecJ2000Rad < s.cfg.DecMinRad || t.DecJ2000Rad > s.cfg.DecMaxRad {
		return false
	}
	if s.sky.RemainingUpTime(t, obsTime) < s.cfg.MinRemainingOnTarget {
		return false
	}
	if s.sky.TooCloseToAvoidanceBody(t, obsTime) {
		return false
	}
	if s.sky.InsideGeoExclusionAnnulus(t, obsTime) {
		return false
	}
	return true
}

// merit computes the product of independently-bounded factors; any factor
// at or below zero rejects the target by the caller's "merit <= 0" check.
func (s *TargetScheduler) merit(t *domain.Target, obsTime time.Time) float64 {
	w := s.cfg.Weights
	m := 1.0

	if w.Catalog > 0 {
		m *= s.cat.TagPriority(t.CatalogTag) * w.Catalog
	}
	if w.PrimaryId > 0 {
		bonus := 1.0
		if s.recentlyScheduled(t.PrimaryTargetId) {
			bonus = 0.0
		}
		m *= (0.5 + 0.5*bonus) * w.PrimaryId
	}
	if w.Meridian > 0 {
		ha := s.sky.HourAngleFromMeridianRad(t, obsTime)
		m *= meridianFactor(ha) * w.Meridian
	}
	if w.Dec > 0 {
		m *= decFactor(t.DecJ2000Rad, s.cfg.DecMinRad, s.cfg.DecMaxRad, w.FavorHigherDec) * w.Dec
	}
	if w.CompletelyObs > 0 {
		m *= completelyObsFactor(t, s.cfg.AllowedRange) * w.CompletelyObs
	}
	if w.TimeLeft > 0 {
		remaining := s.sky.RemainingUpTime(t, obsTime) - s.cfg.ReservedFollowupHeadroom
		m *= timeLeftFactor(remaining) * w.TimeLeft
	}
	return m
}

// meridianFactor peaks at 1.0 on the meridian and falls off linearly to 0
// at +/- pi (a full half-turn away).
func meridianFactor(absHourAngleRad float64) float64 {
	const pi = 3.14159265358979323846
	if absHourAngleRad < 0 {
		absHourAngleRad = -absHourAngleRad
	}
	f := 1.0 - absHourAngleRad/pi
	if f < 0 {
		return 0
	}
	return f
}

// decFactor prefers lower declinations by default (normalized toward
// decMin), or higher declinations when favorHigher is set.
func decFactor(decRad, decMin, decMax float64, favorHigher bool) float64 {
	if decMax <= decMin {
		return 1.0
	}
	frac := (decRad - decMin) / (decMax - decMin)
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	if favorHigher {
		return frac
	}
	return 1.0 - frac
}

// completelyObsFactor is the inverse of how much of the allowed band is
// already covered on t: 1.0 when nothing is observed, approaching 0 as
// coverage approaches the full allowed range.
func completelyObsFactor(t *domain.Target, allowed domain.ObservationRange) float64 {
	totalWidth := allowed.TotalWidth()
	if totalWidth <= 0 {
		return 1.0
	}
	uncoveredWidth := 0.0
	for _, iv := range allowed.Intervals() {
		for _, u := range t.UncoveredWithin(iv) {
			uncoveredWidth += u.Width()
		}
	}
	observedWidth := totalWidth - uncoveredWidth
	frac := observedWidth / totalWidth
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	return 1.0 - frac
}

// timeLeftFactor is monotone in remaining up-time past reserved headroom;
// non-positive remaining time rejects the target outright.
func timeLeftFactor(remaining time.Duration) float64 {
	if remaining <= 0 {
		return 0
	}
	hours := remaining.Hours()
	return hours / (hours + 1.0) // asymptotic toward 1, always in (0,1)
}

// pickFrequency computes observedFreqBands ∩ allowed and returns the
// lowest un-covered sub-range of width >= MinAcceptableRemainingBandMhz,
// with permanent RFI bands removed. Returns domain.ErrTargetExhausted if
// none qualifies.
func (s *TargetScheduler) pickFrequency(t *domain.Target) (domain.Band, error) {
	for _, allowedIv := range s.cfg.AllowedRange.Intervals() {
		for _, uncovered := range t.UncoveredWithin(allowedIv) {
			usable := domain.NewObservationRange(uncovered)
			usable = usable.GetUseableBandwidth(s.cfg.PermanentRfi)
			for _, iv := range usable.Intervals() {
				if iv.Width() >= s.cfg.MinAcceptableRemainingBandMhz {
					return iv, nil
				}
			}
		}
	}
	return domain.Band{}, fmt.Errorf("scheduler: target %d: %w", t.TargetId, domain.ErrTargetExhausted)
}

// pickSecondaries finds up to want additional visible, not-yet-observed
// targets within one primary beamsize of primary, mutually separated by at
// least MinSeparationBeamsizes.
func (s *TargetScheduler) pickSecondaries(
	primary *domain.Target,
	chosenRange domain.Band,
	candidates []*domain.Target,
	want int,
	obsTime time.Time,
) []domain.TargetId {
	if want <= 0 {
		return nil
	}
	var chosen []*domain.Target
	var out []domain.TargetId

	for _, t := range candidates {
		if len(out) >= want {
			break
		}
		if t.TargetId == primary.TargetId {
			continue
		}
		if !s.visible(t, obsTime) {
			continue
		}
		if len(t.UncoveredWithin(chosenRange)) == 0 {
			continue // already observed in the chosen range
		}
		if s.sky.AngularSeparationBeamsizes(primary, t) > 1.0 {
			continue // outside primary's beam
		}
		if s.sky.AngularSeparationBeamsizes(primary, t) < s.cfg.MinSeparationBeamsizes {
			continue // too close to primary
		}
		tooClose := false
		for _, c := range chosen {
			if s.sky.AngularSeparationBeamsizes(c, t) < s.cfg.MinSeparationBeamsizes {
				tooClose = true
				break
			}
		}
		if tooClose {
			continue
		}
		chosen = append(chosen, t)
		out = append(out, t.TargetId)
	}
	return out
}
