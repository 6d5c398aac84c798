package skyvis

import (
	"testing"
	"time"

	"github.com/sonata-sse/sse-core/internal/domain"
)

func TestRemainingUpTimeZeroBelowHorizon(t *testing.T) {
	cfg := DefaultConfig()
	m := New(cfg, nil)

	// A target at the southern celestial pole from a northern site never
	// clears the horizon.
	target := &domain.Target{RaJ2000Rad: 0, DecJ2000Rad: -1.55}
	obsTime := time.Date(2026, 6, 1, 6, 0, 0, 0, time.UTC)

	if got := m.RemainingUpTime(target, obsTime); got != 0 {
		t.Fatalf("RemainingUpTime = %v, want 0", got)
	}
}

func TestRemainingUpTimeCircumpolarStaysUp(t *testing.T) {
	cfg := DefaultConfig()
	m := New(cfg, nil)

	// A target near the north celestial pole from a northern site never sets.
	target := &domain.Target{RaJ2000Rad: 0, DecJ2000Rad: 1.45}
	obsTime := time.Date(2026, 6, 1, 6, 0, 0, 0, time.UTC)

	if got := m.RemainingUpTime(target, obsTime); got != cfg.MaxSearch {
		t.Fatalf("RemainingUpTime = %v, want MaxSearch %v", got, cfg.MaxSearch)
	}
}

func TestAngularSeparationBeamsizesSameTargetIsZero(t *testing.T) {
	cfg := DefaultConfig()
	m := New(cfg, nil)
	target := &domain.Target{RaJ2000Rad: 1.0, DecJ2000Rad: 0.5}

	if got := m.AngularSeparationBeamsizes(target, target); got != 0 {
		t.Fatalf("AngularSeparationBeamsizes(same,same) = %v, want 0", got)
	}
}

func TestAngularSeparationBeamsizesScalesWithBeamsize(t *testing.T) {
	cfg := DefaultConfig()
	a := &domain.Target{RaJ2000Rad: 0, DecJ2000Rad: 0}
	b := &domain.Target{RaJ2000Rad: cfg.SynthBeamsizeRad, DecJ2000Rad: 0}

	m := New(cfg, nil)
	got := m.AngularSeparationBeamsizes(a, b)
	if got < 0.9 || got > 1.1 {
		t.Fatalf("AngularSeparationBeamsizes ~1 beamsize apart = %v, want ~1", got)
	}
}

type fakeGeo struct{ near bool }

func (f fakeGeo) NearGeoSlot(float64) bool { return f.near }

func TestInsideGeoExclusionAnnulusDelegates(t *testing.T) {
	m := New(DefaultConfig(), fakeGeo{near: true})
	target := &domain.Target{RaJ2000Rad: 1.2}
	if !m.InsideGeoExclusionAnnulus(target, time.Now()) {
		t.Fatal("expected delegation to report near")
	}

	m2 := New(DefaultConfig(), fakeGeo{near: false})
	if m2.InsideGeoExclusionAnnulus(target, time.Now()) {
		t.Fatal("expected delegation to report not near")
	}
}

func TestHourAngleFromMeridianRadNonNegative(t *testing.T) {
	m := New(DefaultConfig(), nil)
	target := &domain.Target{RaJ2000Rad: 2.0, DecJ2000Rad: 0.3}
	obsTime := time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)

	if got := m.HourAngleFromMeridianRad(target, obsTime); got < 0 {
		t.Fatalf("HourAngleFromMeridianRad = %v, want >= 0", got)
	}
}
