package sdal

import (
	"github.com/dhconnelly/rtreego"

	"github.com/KickingAnimal/SDAL-Builder/internal/encoder"
)

// kdLeafSpatial adapts a KDLeafItem's bbox to rtreego.Spatial: a southwest
// corner point plus (width, height) lengths.
type kdLeafSpatial struct {
	item encoder.KDLeafItem
}

// Bounds implements rtreego.Spatial.
func (s kdLeafSpatial) Bounds() rtreego.Rect {
	minLon, minLat := float64(s.item.Bbox.MinLon), float64(s.item.Bbox.MinLat)
	maxLon, maxLat := float64(s.item.Bbox.MaxLon), float64(s.item.Bbox.MaxLat)
	width, height := maxLon-minLon, maxLat-minLat
	if width <= 0 {
		width = 1
	}
	if height <= 0 {
		height = 1
	}
	rect, _ := rtreego.NewRect(rtreego.Point{minLon, minLat}, []float64{width, height})
	return rect
}

// verifyKDLeafCoverage is the optional rtreego-backed self-check run after
// a region's KD-tree is sealed (BuildOptions.Verify): it builds an R-tree
// over the same leaf items the KD-tree was built from and confirms every
// one of them is found by a spatial query over the region's own bounding
// box. The firmware's spatial lookups rely on the leaf-bbox union covering
// the region bbox, and an independent spatial index checks that without
// re-deriving the KD-tree's own split arithmetic. It never alters the bytes
// already sealed: a mismatch only produces ErrVerificationFailed.
func verifyKDLeafCoverage(items []encoder.KDLeafItem, regionCode string, union encoder.Bbox) error {
	if len(items) == 0 {
		return nil
	}

	rtree := rtreego.NewTree(2, 1, 4)
	for _, it := range items {
		rtree.Insert(kdLeafSpatial{item: it})
	}

	width := float64(union.MaxLon-union.MinLon) + 1
	height := float64(union.MaxLat-union.MinLat) + 1
	queryRect, err := rtreego.NewRect(rtreego.Point{float64(union.MinLon), float64(union.MinLat)}, []float64{width, height})
	if err != nil {
		return &encoder.ErrVerificationFailed{Reason: "region " + regionCode + ": degenerate bbox for verification query: " + err.Error()}
	}

	found := rtree.SearchIntersect(queryRect)
	if len(found) != len(items) {
		return &encoder.ErrVerificationFailed{Reason: "region " + regionCode + ": KD-tree leaf coverage mismatch against R-tree cross-check"}
	}
	return nil
}
