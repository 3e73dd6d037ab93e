package encoder

import "sort"

// KDNodeSize is the fixed size, in bytes, of one KD-tree node entry within
// an IDxPclHdr_t-prefixed payload (PSF §3).
const KDNodeSize = 19

// KDBboxPrefixSize is the size, in bytes, of the bounding-box prefix that
// distinguishes an IDxPclHdr_t payload from a plain PclHdr_t payload
// (PSF §4.4).
const KDBboxPrefixSize = 16

// kdAxisLon and kdAxisLat are the two split axes a KD-tree node can use.
const (
	kdAxisLon byte = 0
	kdAxisLat byte = 1
)

// noParcel is the sentinel ParcelOffset for an empty KD-tree leaf (no road
// parcel falls in this quadrant). It reuses EndOfChain so readers can treat
// "no data" and "end of chain" with the same 0xFFFFFFFF check.
const noParcel uint32 = EndOfChain

// KDLeafItem is one (bbox, pid, first-parcel-offset) tuple recorded for
// every sealed road parcel of a region, the raw input to BuildKDTree
// (PSF §4.4).
type KDLeafItem struct {
	Bbox   Bbox
	PID    uint16
	Offset uint32
}

// kdNode is the in-memory form of one fixed-size KD-tree node entry.
// Internal nodes set Axis/SplitValue/LeftOffset/RightOffset and leave
// PID/ParcelOffset zero/sentinel; leaves do the reverse (LeftOffset ==
// RightOffset == 0 marks a leaf, per PSF §3: "child offsets ... 0 =
// leaf").
type kdNode struct {
	Axis         byte
	SplitValue   int32
	LeftOffset   uint32
	RightOffset  uint32
	PID          uint16
	ParcelOffset uint32
}

func (n kdNode) marshal() []byte {
	buf := make([]byte, 0, KDNodeSize)
	buf = append(buf, n.Axis)
	buf = WriteInt32LE(buf, n.SplitValue)
	buf = WriteUint32LE(buf, n.LeftOffset)
	buf = WriteUint32LE(buf, n.RightOffset)
	buf = WriteUint16LE(buf, n.PID)
	buf = WriteUint32LE(buf, n.ParcelOffset)
	return buf
}

// BuildKDTree builds the two-level median-split spatial index over items
// (PSF §4.4) and returns the 7 fixed-size node entries in pre-order
// (root, left-internal, left-leaf-0, left-leaf-1, right-internal,
// right-leaf-0, right-leaf-1) plus the union of every item's bbox.
//
// regionWraps selects antimeridian-aware longitude comparison: centroids
// are unwrapped into [0,360) before sorting/splitting so the split falls on
// the shorter arc, then the root's SplitValue is re-wrapped into the normal
// signed range.
func BuildKDTree(items []KDLeafItem, regionWraps bool) ([]byte, Bbox, error) {
	var union Bbox
	for _, it := range items {
		union = unionBbox(union, it.Bbox)
	}

	lonOf := func(it KDLeafItem) float64 { return centroidLon(it.Bbox, regionWraps) }
	latOf := func(it KDLeafItem) float64 { return centroidLat(it.Bbox) }

	lower, upper, rootSplit := splitByKey(items, lonOf)
	if regionWraps {
		rootSplit = rewrapLon(rootSplit)
	}

	llLeaf0, llLeaf1, lSplit := splitByKey(lower, latOf)
	rlLeaf0, rlLeaf1, rSplit := splitByKey(upper, latOf)

	leaf := func(group []KDLeafItem) kdNode {
		if len(group) == 0 {
			return kdNode{PID: 0, ParcelOffset: noParcel}
		}
		sort.SliceStable(group, func(i, j int) bool { return group[i].Offset < group[j].Offset })
		first := group[0]
		return kdNode{PID: first.PID, ParcelOffset: first.Offset}
	}

	leaf0, leaf1 := leaf(llLeaf0), leaf(llLeaf1)
	leaf2, leaf3 := leaf(rlLeaf0), leaf(rlLeaf1)

	// Pre-order byte offsets within the 7-entry array.
	offRoot := uint32(0)
	offLInt := offRoot + KDNodeSize
	offLeaf0 := offLInt + KDNodeSize
	offLeaf1 := offLeaf0 + KDNodeSize
	offRInt := offLeaf1 + KDNodeSize
	offLeaf2 := offRInt + KDNodeSize
	offLeaf3 := offLeaf2 + KDNodeSize

	root := kdNode{Axis: kdAxisLon, SplitValue: int32(rootSplit), LeftOffset: offLInt, RightOffset: offRInt}
	lInt := kdNode{Axis: kdAxisLat, SplitValue: int32(lSplit), LeftOffset: offLeaf0, RightOffset: offLeaf1}
	rInt := kdNode{Axis: kdAxisLat, SplitValue: int32(rSplit), LeftOffset: offLeaf2, RightOffset: offLeaf3}

	nodes := []kdNode{root, lInt, leaf0, leaf1, rInt, leaf2, leaf3}
	payload := make([]byte, 0, len(nodes)*KDNodeSize)
	for _, n := range nodes {
		payload = append(payload, n.marshal()...)
	}
	return payload, union, nil
}

// splitByKey sorts items by key (stable, preserving input order on ties)
// and splits at the median: the lower half gets the extra element when the
// count is odd (PSF §4.4 tie-breaking). Returns the two halves plus the
// split value used (the key of the first element of the upper half, or the
// last element's key if upper is empty).
func splitByKey(items []KDLeafItem, key func(KDLeafItem) float64) (lower, upper []KDLeafItem, splitValue float64) {
	sorted := make([]KDLeafItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool { return key(sorted[i]) < key(sorted[j]) })

	lowerSize := (len(sorted) + 1) / 2
	lower = sorted[:lowerSize]
	upper = sorted[lowerSize:]

	switch {
	case len(upper) > 0:
		splitValue = key(upper[0])
	case len(lower) > 0:
		splitValue = key(lower[len(lower)-1])
	default:
		splitValue = 0
	}
	return lower, upper, splitValue
}

func centroidLon(b Bbox, wraps bool) float64 {
	minLon, maxLon := float64(b.MinLon), float64(b.MaxLon)
	if minLon > maxLon {
		maxLon += 360e6
	}
	c := (minLon + maxLon) / 2
	// In a wrapping region every centroid is compared on the [0,360)
	// domain, so the median falls on the shorter arc across 180 rather
	// than the long way around through 0.
	if wraps && c < 0 {
		c += 360e6
	}
	return c
}

func centroidLat(b Bbox) float64 {
	return (float64(b.MinLat) + float64(b.MaxLat)) / 2
}

func rewrapLon(v float64) float64 {
	const fullTurn = 360e6
	for v > 180e6 {
		v -= fullTurn
	}
	for v < -180e6 {
		v += fullTurn
	}
	return v
}

func unionBbox(a, b Bbox) Bbox {
	if !a.set {
		return b
	}
	if !b.set {
		return a
	}
	return a.Extend(b.MinLon, b.MinLat).Extend(b.MaxLon, b.MaxLat)
}

// MarshalIDxBboxPrefix encodes b as the 16-byte bounding-box prefix that
// precedes a KD-tree node array inside an IDxPclHdr_t payload: min_lat,
// max_lat, min_lon, max_lon, each a signed 32-bit micro-degree value.
func MarshalIDxBboxPrefix(b Bbox) []byte {
	buf := make([]byte, 0, KDBboxPrefixSize)
	buf = WriteInt32LE(buf, b.MinLat)
	buf = WriteInt32LE(buf, b.MaxLat)
	buf = WriteInt32LE(buf, b.MinLon)
	buf = WriteInt32LE(buf, b.MaxLon)
	return buf
}

// SealKDTree builds the KD-tree over items and seals it as a single
// PID_KDTREE parcel with its IDxPclHdr_t bounding-box prefix, returning the
// parcel's region-relative offset.
func SealKDTree(framer *Framer, items []KDLeafItem, regionWraps bool) (uint32, Bbox, error) {
	nodes, union, err := BuildKDTree(items, regionWraps)
	if err != nil {
		return 0, Bbox{}, err
	}
	payload := append(MarshalIDxBboxPrefix(union), nodes...)
	offset, err := framer.Seal(PIDKDTree, payload)
	return offset, union, err
}
