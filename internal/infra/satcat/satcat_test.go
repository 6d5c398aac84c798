package satcat

import "testing"

func TestTagPriorityKnownAndUnknown(t *testing.T) {
	c := NewCatalog(DefaultTagPriorities, nil, 0)
	if got := c.TagPriority("habitable-zone"); got != 2.0 {
		t.Fatalf("got %v, want 2.0", got)
	}
	if got := c.TagPriority("unlisted-tag"); got != 1.0 {
		t.Fatalf("got %v, want 1.0 for unknown tag", got)
	}
}

func TestNearGeoSlot(t *testing.T) {
	c := NewCatalog(nil, []float64{1.0, 2.0}, 0.05)
	if !c.NearGeoSlot(1.02) {
		t.Fatal("expected 1.02 to be within annulus of slot 1.0")
	}
	if c.NearGeoSlot(1.5) {
		t.Fatal("did not expect 1.5 to be near any slot")
	}
}

func TestNearGeoSlotDisabledWithZeroWidth(t *testing.T) {
	c := NewCatalog(nil, []float64{1.0}, 0)
	if c.NearGeoSlot(1.0) {
		t.Fatal("zero annulus width should disable exclusion")
	}
}
