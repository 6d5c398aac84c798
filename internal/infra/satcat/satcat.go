// Package satcat holds two small static tables the scheduler consumes:
// catalog-tag observation priority, and a list of known geostationary slots
// used to build the GEO-satellite exclusion annulus. Both are grounded in
// original_source's findNearbyTargets.cpp / StarFinder.h static-catalog
// style — a plain in-memory map and sorted slice, not a database
// table, because this data changes on satellite-launch timescales, not
// per-observation.
package satcat

import "sort"

// TagPriority is the configured merit multiplier for one catalog tag.
type TagPriority struct {
	Tag      string
	Priority float64
}

// DefaultTagPriorities mirrors the high-priority/low-priority split of
// the catalog merit factor's configured priority tiers.
var DefaultTagPriorities = []TagPriority{
	{Tag: "habitable-zone", Priority: 2.0},
	{Tag: "known-exoplanet", Priority: 1.8},
	{Tag: "nearby-star", Priority: 1.4},
	{Tag: "tess-candidate", Priority: 1.2},
	{Tag: "catalog-filler", Priority: 0.6},
}

// Catalog is a static, in-memory lookup for catalog-tag priority and
// GEO-satellite exclusion slots. The zero value gives every tag priority
// 1.0 (it does not use DefaultTagPriorities) and has no GEO slots.
type Catalog struct {
	tagPriority map[string]float64
	geoSlotsRad []float64 // right ascension of known geostationary slots, radians
	annulusHalfWidthRad float64
}

// NewCatalog builds a Catalog from tags and geoSlotsRad (each slot's
// right ascension, radians), with exclusion annulus half-width
// annulusHalfWidthRad.
func NewCatalog(tags []TagPriority, geoSlotsRad []float64, annulusHalfWidthRad float64) *Catalog {
	tp := make(map[string]float64, len(tags))
	for _, t := range tags {
		tp[t.Tag] = t.Priority
	}
	sorted := append([]float64{}, geoSlotsRad...)
	sort.Float64s(sorted)
	return &Catalog{tagPriority: tp, geoSlotsRad: sorted, annulusHalfWidthRad: annulusHalfWidthRad}
}

// TagPriority returns tag's configured merit multiplier, or 1.0 if tag
// carries no special priority. Implements scheduler.CatalogPriority.
func (c *Catalog) TagPriority(tag string) float64 {
	if c == nil {
		return 1.0
	}
	if p, ok := c.tagPriority[tag]; ok {
		return p
	}
	return 1.0
}

// NearGeoSlot reports whether raRad falls within the exclusion annulus of
// any known geostationary slot.
func (c *Catalog) NearGeoSlot(raRad float64) bool {
	if c == nil || c.annulusHalfWidthRad <= 0 {
		return false
	}
	for _, slot := range c.geoSlotsRad {
		d := raRad - slot
		if d < 0 {
			d = -d
		}
		if d <= c.annulusHalfWidthRad {
			return true
		}
	}
	return false
}
