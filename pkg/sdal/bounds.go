package sdal

import "github.com/paulmach/orb"

// Bounds is an axis-aligned bounding box in decimal degrees. MinLon > MaxLon
// indicates the box wraps the antimeridian, exactly
// as RgnHdr_t stores the raw signed longitude values without normalizing them.
type Bounds struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// Wraps reports whether the box crosses the antimeridian.
func (b Bounds) Wraps() bool {
	return b.MinLon > b.MaxLon
}

// Empty reports whether the box has never been extended by a point.
func (b Bounds) Empty() bool {
	return b.MinLat > b.MaxLat
}

// EmptyBounds returns a bounds value suitable as the zero element for Extend.
func EmptyBounds() Bounds {
	return Bounds{MinLat: 1, MaxLat: -1, MinLon: 1, MaxLon: -1}
}

// Extend grows b to include p, returning the new bounds. The first Extend
// call on an EmptyBounds() value collapses it to a single point.
func (b Bounds) Extend(p orb.Point) Bounds {
	lon, lat := p[0], p[1]
	if b.Empty() {
		return Bounds{MinLat: lat, MaxLat: lat, MinLon: lon, MaxLon: lon}
	}
	if lat < b.MinLat {
		b.MinLat = lat
	}
	if lat > b.MaxLat {
		b.MaxLat = lat
	}
	if lon < b.MinLon {
		b.MinLon = lon
	}
	if lon > b.MaxLon {
		b.MaxLon = lon
	}
	return b
}

// Union returns the smallest bounds containing both b and o. Antimeridian
// wrapping boxes are unioned conservatively (widened, never re-wrapped).
func (b Bounds) Union(o Bounds) Bounds {
	if b.Empty() {
		return o
	}
	if o.Empty() {
		return b
	}
	return Bounds{
		MinLat: min(b.MinLat, o.MinLat),
		MaxLat: max(b.MaxLat, o.MaxLat),
		MinLon: min(b.MinLon, o.MinLon),
		MaxLon: max(b.MaxLon, o.MaxLon),
	}
}

// Intersects reports whether b and o share any area, handling antimeridian
// wrapping on either side.
func (b Bounds) Intersects(o Bounds) bool {
	if b.MaxLat < o.MinLat || o.MaxLat < b.MinLat {
		return false
	}
	return lonRangesOverlap(b.MinLon, b.MaxLon, o.MinLon, o.MaxLon)
}

func lonRangesOverlap(aMin, aMax, bMin, bMax float64) bool {
	aSpans := splitLonRange(aMin, aMax)
	bSpans := splitLonRange(bMin, bMax)
	for _, a := range aSpans {
		for _, b := range bSpans {
			if a[0] <= b[1] && b[0] <= a[1] {
				return true
			}
		}
	}
	return false
}

// splitLonRange splits a (possibly antimeridian-wrapping) longitude range
// into one or two non-wrapping [min, max] spans.
func splitLonRange(lonMin, lonMax float64) [][2]float64 {
	if lonMin <= lonMax {
		return [][2]float64{{lonMin, lonMax}}
	}
	return [][2]float64{{lonMin, 180}, {-180, lonMax}}
}

// Centroid returns the bounds' center point. For an antimeridian-wrapping
// box, the longitude centroid is computed on the unwrapped (0..360-shifted)
// range and re-wrapped, so it falls on the shorter arc.
func (b Bounds) Centroid() orb.Point {
	lat := (b.MinLat + b.MaxLat) / 2
	if !b.Wraps() {
		return orb.Point{(b.MinLon + b.MaxLon) / 2, lat}
	}
	unwrappedMax := b.MaxLon + 360
	c := (b.MinLon + unwrappedMax) / 2
	if c > 180 {
		c -= 360
	}
	return orb.Point{c, lat}
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
