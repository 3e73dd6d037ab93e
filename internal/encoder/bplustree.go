package encoder

import "sort"

// BPlusFanOut is the B+-tree fan-out F (PSF §4.5): internal nodes hold
// up to F+1 child pointers with one sorted separator key per child, leaves
// up to F key/value pairs.
const BPlusFanOut = 64

// BPlusLeafFill is the fraction of fan-out leaves are packed to on the
// initial bulk build, leaving room for later insertions (PSF §4.5: "¾
// fan-out (48/64)").
const BPlusLeafFill = BPlusFanOut * 3 / 4

// WayEntry is one (way id, location) pair fed to the B+-tree builder.
// FileIndex/Offset together are the 6-byte value stored in a leaf
// (PSF §3: "value = 6-byte (file index, offset) pair").
type WayEntry struct {
	WayID     uint64
	FileIndex uint16
	Offset    uint32
}

// bNode is one in-memory B+-tree node, before serialization.
type bNode struct {
	leaf     bool
	keys     []uint64     // leaf: one per entry; internal: one separator key per child
	entries  []WayEntry   // leaf only
	children []*bNode     // internal only
	next     *bNode       // leaf only: next-leaf pointer for range scans
	offset   uint32       // region-relative offset, assigned once sealed
}

// BuildBPlusTree bulk-loads entries (already required to carry distinct
// WayIDs) into a bottom-up B+-tree per PSF §4.5 and seals every node as
// its own PID_WAYIDX parcel through framer, chaining level-order via the
// shared next_offset mechanism. Returns the region-relative offset of the
// root node.
//
// entries is sorted by WayID internally (stable) using ExternalSort when it
// exceeds spillThreshold, and otherwise with the in-memory stable sort.
// Both paths produce identical order, so the spill path never changes the
// bytes a build writes.
func BuildBPlusTree(framer *Framer, entries []WayEntry, spillThreshold int, spillDir string) (uint32, error) {
	sorted, err := sortWayEntries(entries, spillThreshold, spillDir)
	if err != nil {
		return 0, err
	}
	if err := assertUniqueWayIDs(sorted); err != nil {
		return 0, err
	}
	if len(sorted) == 0 {
		return 0, nil
	}

	leaves := buildLeaves(sorted)
	root := buildInternalLevels(leaves)
	return sealLevelOrder(framer, root)
}

// assertUniqueWayIDs fails with ErrDuplicateWayID on the first repeated id
// in a WayID-sorted slice.
func assertUniqueWayIDs(sorted []WayEntry) error {
	for i := 1; i < len(sorted); i++ {
		if sorted[i].WayID == sorted[i-1].WayID {
			return &ErrDuplicateWayID{WayID: sorted[i].WayID}
		}
	}
	return nil
}

// buildLeaves packs sorted entries into leaf nodes at BPlusLeafFill
// capacity, left to right, linking next-leaf pointers as it goes.
func buildLeaves(sorted []WayEntry) []*bNode {
	var leaves []*bNode
	for start := 0; start < len(sorted); start += BPlusLeafFill {
		end := start + BPlusLeafFill
		if end > len(sorted) {
			end = len(sorted)
		}
		chunk := sorted[start:end]
		leaf := &bNode{leaf: true, entries: append([]WayEntry(nil), chunk...)}
		for _, e := range chunk {
			leaf.keys = append(leaf.keys, e.WayID)
		}
		leaves = append(leaves, leaf)
	}
	for i := 0; i+1 < len(leaves); i++ {
		leaves[i].next = leaves[i+1]
	}
	return leaves
}

// buildInternalLevels repeatedly groups children at fan-out F+1 per parent
// until a single root remains, using the first key of each child as the
// separator (PSF §4.5 step 3).
func buildInternalLevels(level []*bNode) *bNode {
	if len(level) == 1 {
		return level[0]
	}

	const childrenPerParent = BPlusFanOut + 1
	var parents []*bNode
	for start := 0; start < len(level); start += childrenPerParent {
		end := start + childrenPerParent
		if end > len(level) {
			end = len(level)
		}
		children := level[start:end]
		parent := &bNode{children: append([]*bNode(nil), children...)}
		for _, c := range children {
			parent.keys = append(parent.keys, firstKey(c))
		}
		parents = append(parents, parent)
	}
	return buildInternalLevels(parents)
}

func firstKey(n *bNode) uint64 { return n.keys[0] }

// sealLevelOrder serializes the tree breadth-first (level order), sealing
// each node as a PID_WAYIDX parcel and chaining next_offset across
// level-order neighbours (PSF §4.5: "its next_offset chains level-order
// neighbours"). Returns the root's offset.
func sealLevelOrder(framer *Framer, root *bNode) (uint32, error) {
	queue := []*bNode{root}
	var rootOffset uint32
	first := true

	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]

		payload := marshalBNode(n)
		offset, err := framer.Seal(PIDWayIdx, payload)
		if err != nil {
			return 0, err
		}
		n.offset = offset
		if first {
			rootOffset = offset
			first = false
		}

		if !n.leaf {
			queue = append(queue, n.children...)
		}
	}

	// A second pass re-marshals every node now that all offsets are
	// concrete: an internal node's children, and a leaf's next-leaf
	// neighbour, are both sealed *after* the node itself in level order, so
	// their offsets are unknown at first marshal time and cannot be
	// expressed through next_offset back-patching alone.
	return rootOffset, rewriteNodePointers(framer, root)
}

// rewriteNodePointers overwrites every already-framed node payload in place
// once all nodes have been sealed and carry concrete offsets, fixing up
// internal child-offset tables and leaf next-leaf pointers.
func rewriteNodePointers(framer *Framer, root *bNode) error {
	var walk func(n *bNode) error
	walk = func(n *bNode) error {
		if err := framer.Rewrite(n.offset, marshalBNode(n)); err != nil {
			return err
		}
		for _, c := range n.children {
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(root)
}

// marshalBNode encodes a node's payload. Internal: key count (u16) then
// one separator key (u64) and one child offset (u32) per child, keys
// first. Leaf: entry count (u16) then entries (way_id u64 + file_index
// u16 + offset u32) then next-leaf offset (u32, EndOfChain if none).
func marshalBNode(n *bNode) []byte {
	if n.leaf {
		buf := make([]byte, 0, 2+len(n.entries)*14+4)
		buf = WriteUint16LE(buf, uint16(len(n.entries)))
		for _, e := range n.entries {
			buf = WriteUint64LE(buf, e.WayID)
			buf = WriteUint16LE(buf, e.FileIndex)
			buf = WriteUint32LE(buf, e.Offset)
		}
		nextOff := EndOfChain
		if n.next != nil {
			nextOff = n.next.offset
		}
		buf = WriteUint32LE(buf, nextOff)
		return buf
	}

	buf := make([]byte, 0, 2+len(n.keys)*8+len(n.children)*4)
	buf = WriteUint16LE(buf, uint16(len(n.keys)))
	for _, k := range n.keys {
		buf = WriteUint64LE(buf, k)
	}
	for _, c := range n.children {
		buf = WriteUint32LE(buf, c.offset)
	}
	return buf
}

// sortWayEntries sorts entries by WayID, spilling to a memory-mapped
// external merge sort once the input exceeds spillThreshold (PSF §5,
// §9).
func sortWayEntries(entries []WayEntry, spillThreshold int, spillDir string) ([]WayEntry, error) {
	if len(entries) <= spillThreshold {
		sorted := append([]WayEntry(nil), entries...)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].WayID < sorted[j].WayID })
		return sorted, nil
	}
	return ExternalSort(entries, spillDir)
}
