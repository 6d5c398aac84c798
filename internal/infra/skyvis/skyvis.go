// Package skyvis is the minimal stand-in for the scheduler's SkyModel
// contract: horizon visibility with a fixed refraction allowance, hour
// angle from the meridian, sun/moon/zenith avoidance, and beamsize-relative
// angular separation.
//
// Spec §1 places "low-level ephemeris math (star-finder, doppler
// calculator)" explicitly out of scope as an external collaborator — this
// package is a deliberately low-precision geometric implementation that
// satisfies scheduler.SkyModel's contract for wiring and testing purposes,
// not a production-grade ephemeris. A real deployment would swap this for
// a dedicated astrometry library behind the same interface. Lunar position
// is approximated as "never near the moon" (MoonAvoidRad has no matching
// ephemeris here); only sun and zenith avoidance are computed from an
// actual body position, consistent with that stand-in status.
package skyvis

import (
	"math"
	"time"

	"github.com/sonata-sse/sse-core/internal/domain"
)

// GeoSlotChecker resolves whether a right ascension falls within a known
// GEO-satellite exclusion slot, satisfied by satcat.Catalog.
type GeoSlotChecker interface {
	NearGeoSlot(raRad float64) bool
}

// Config bounds one Model: the observing site's geodetic position and the
// configured sun/moon/zenith avoidance angles.
type Config struct {
	LatitudeRad      float64
	LongitudeRad     float64 // east positive
	HorizonRad       float64 // minimum altitude counted as "up", refraction folded in
	SunAvoidRad      float64
	MoonAvoidRad     float64
	ZenithAvoidRad   float64
	SynthBeamsizeRad float64

	// StepSize bounds RemainingUpTime's forward search resolution.
	StepSize time.Duration
	MaxSearch time.Duration
}

// DefaultConfig returns a configuration at the Hat Creek Radio Observatory
// site (approximate ATA location), a 15-degree horizon, 5-degree solar
// avoidance, and a beamsize matching the ATA's ~3.5 arcmin synthesized beam.
func DefaultConfig() Config {
	return Config{
		LatitudeRad:      0.712027, // ~40.8°N
		LongitudeRad:     -2.119442, // ~-121.47°E
		HorizonRad:       0.2618,    // 15 deg
		SunAvoidRad:      0.0873,    // 5 deg
		MoonAvoidRad:     0.0524,    // 3 deg
		ZenithAvoidRad:   0.0175,    // 1 deg
		SynthBeamsizeRad: 0.001018,  // ~3.5 arcmin
		StepSize:         time.Minute,
		MaxSearch:        12 * time.Hour,
	}
}

// Model implements scheduler.SkyModel.
type Model struct {
	cfg Config
	geo GeoSlotChecker
}

// New constructs a Model bound to cfg and a GEO-slot catalog.
func New(cfg Config, geo GeoSlotChecker) *Model {
	return &Model{cfg: cfg, geo: geo}
}

// RemainingUpTime returns how long t stays above the configured horizon,
// starting at obsTime, by marching forward in StepSize increments up to
// MaxSearch.
func (m *Model) RemainingUpTime(t *domain.Target, obsTime time.Time) time.Duration {
	if m.altitudeRad(t, obsTime) < m.cfg.HorizonRad {
		return 0
	}
	step := m.cfg.StepSize
	if step <= 0 {
		step = time.Minute
	}
	elapsed := time.Duration(0)
	for elapsed < m.cfg.MaxSearch {
		elapsed += step
		if m.altitudeRad(t, obsTime.Add(elapsed)) < m.cfg.HorizonRad {
			return elapsed
		}
	}
	return m.cfg.MaxSearch
}

// TooCloseToAvoidanceBody reports whether t is within the configured sun or
// zenith avoidance angle at obsTime. See the package doc for why lunar
// avoidance is not evaluated here.
func (m *Model) TooCloseToAvoidanceBody(t *domain.Target, obsTime time.Time) bool {
	sunRa, sunDec := sunPositionRad(obsTime)
	if angularSeparationRad(t.RaJ2000Rad, t.DecJ2000Rad, sunRa, sunDec) < m.cfg.SunAvoidRad {
		return true
	}
	lst := m.localSiderealTimeRad(obsTime)
	if angularSeparationRad(t.RaJ2000Rad, t.DecJ2000Rad, lst, m.cfg.LatitudeRad) < m.cfg.ZenithAvoidRad {
		return true
	}
	return false
}

// InsideGeoExclusionAnnulus reports whether t's right ascension falls
// within a known geostationary satellite slot.
func (m *Model) InsideGeoExclusionAnnulus(t *domain.Target, _ time.Time) bool {
	if m.geo == nil {
		return false
	}
	return m.geo.NearGeoSlot(t.RaJ2000Rad)
}

// AngularSeparationBeamsizes returns the angular separation between a and b
// as a multiple of the configured synthesized beamsize.
func (m *Model) AngularSeparationBeamsizes(a, b *domain.Target) float64 {
	sep := angularSeparationRad(a.RaJ2000Rad, a.DecJ2000Rad, b.RaJ2000Rad, b.DecJ2000Rad)
	if m.cfg.SynthBeamsizeRad <= 0 {
		return math.Inf(1)
	}
	return sep / m.cfg.SynthBeamsizeRad
}

// HourAngleFromMeridianRad returns |hour angle| from the meridian for t at
// obsTime, in radians.
func (m *Model) HourAngleFromMeridianRad(t *domain.Target, obsTime time.Time) float64 {
	ha := m.hourAngleRad(t, obsTime)
	if ha < 0 {
		ha = -ha
	}
	return ha
}

func (m *Model) hourAngleRad(t *domain.Target, obsTime time.Time) float64 {
	lst := m.localSiderealTimeRad(obsTime)
	ha := lst - t.RaJ2000Rad
	return normalizeSigned(ha)
}

func (m *Model) altitudeRad(t *domain.Target, obsTime time.Time) float64 {
	ha := m.hourAngleRad(t, obsTime)
	sinAlt := math.Sin(t.DecJ2000Rad)*math.Sin(m.cfg.LatitudeRad) +
		math.Cos(t.DecJ2000Rad)*math.Cos(m.cfg.LatitudeRad)*math.Cos(ha)
	return math.Asin(clamp(sinAlt, -1, 1))
}

// localSiderealTimeRad computes local apparent sidereal time from a
// low-precision Greenwich mean sidereal time formula (Meeus, ch. 12),
// ignoring nutation — adequate for the avoidance-angle and horizon checks
// this package exists to satisfy.
func (m *Model) localSiderealTimeRad(t time.Time) float64 {
	jd := julianDay(t)
	d := jd - 2451545.0
	gmstDeg := 280.46061837 + 360.98564736629*d
	lstDeg := gmstDeg + radToDeg(m.cfg.LongitudeRad)
	return normalizeSigned(degToRad(lstDeg))
}

// sunPositionRad returns the sun's apparent right ascension and
// declination at t using the US Naval Observatory's low-precision formula.
func sunPositionRad(t time.Time) (raRad, decRad float64) {
	n := julianDay(t) - 2451545.0
	lDeg := normalizeDeg(280.460 + 0.9856474*n)
	gDeg := normalizeDeg(357.528 + 0.9856003*n)
	g := degToRad(gDeg)
	lambdaDeg := lDeg + 1.915*math.Sin(g) + 0.020*math.Sin(2*g)
	lambda := degToRad(normalizeDeg(lambdaDeg))
	epsilon := degToRad(23.439 - 0.0000004*n)

	ra := math.Atan2(math.Cos(epsilon)*math.Sin(lambda), math.Cos(lambda))
	dec := math.Asin(clamp(math.Sin(epsilon)*math.Sin(lambda), -1, 1))
	return normalizeSigned(ra), dec
}

func angularSeparationRad(ra1, dec1, ra2, dec2 float64) float64 {
	cosSep := math.Sin(dec1)*math.Sin(dec2) + math.Cos(dec1)*math.Cos(dec2)*math.Cos(ra1-ra2)
	return math.Acos(clamp(cosSep, -1, 1))
}

func julianDay(t time.Time) float64 {
	return float64(t.UTC().Unix())/86400.0 + 2440587.5
}

func degToRad(d float64) float64 { return d * math.Pi / 180 }
func radToDeg(r float64) float64 { return r * 180 / math.Pi }

func normalizeDeg(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	return d
}

// normalizeSigned wraps a radian angle into (-pi, pi].
func normalizeSigned(r float64) float64 {
	r = math.Mod(r, 2*math.Pi)
	if r > math.Pi {
		r -= 2 * math.Pi
	}
	if r <= -math.Pi {
		r += 2 * math.Pi
	}
	return r
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
