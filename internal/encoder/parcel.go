package encoder

import (
	"encoding/binary"
	"math"
)

// PclHdrSize is the fixed size, in bytes, of a PclHdr_t header.
const PclHdrSize = 16

// EndOfChain marks the next_offset field of the last parcel in a PID chain.
const EndOfChain uint32 = 0xFFFFFFFF

// FlagNoCompression is the only flag bit this profile ever sets (PSF §4.1,
// §9: Huffman/SZIP bits are reserved but never engaged).
const FlagNoCompression byte = 1 << 0

// MaxSizeTableEntries is the largest a region's ucaParcelSizes table may grow
// to before a payload's size class is rejected with ErrPayloadTooLarge.
const MaxSizeTableEntries = 255

// PclHdr holds the decoded fields of a PclHdr_t, for tests and verification.
type PclHdr struct {
	PID        uint16
	Flags      byte
	SizeCode   byte
	PayloadLen uint32
	CRC32      uint32
	NextOffset uint32
}

// Marshal encodes h as a 16-byte PclHdr_t.
func (h PclHdr) Marshal() []byte {
	buf := make([]byte, 0, PclHdrSize)
	buf = WriteUint16LE(buf, h.PID)
	buf = append(buf, h.Flags, h.SizeCode)
	buf = WriteUint32LE(buf, h.PayloadLen)
	buf = WriteUint32LE(buf, h.CRC32)
	buf = WriteUint32LE(buf, h.NextOffset)
	return buf
}

// UnmarshalPclHdr decodes a 16-byte PclHdr_t from the front of buf.
func UnmarshalPclHdr(buf []byte) (PclHdr, error) {
	if len(buf) < PclHdrSize {
		return PclHdr{}, &ErrInputExhausted{Stage: "PclHdr_t"}
	}
	return PclHdr{
		PID:        binary.LittleEndian.Uint16(buf[0:2]),
		Flags:      buf[2],
		SizeCode:   buf[3],
		PayloadLen: binary.LittleEndian.Uint32(buf[4:8]),
		CRC32:      binary.LittleEndian.Uint32(buf[8:12]),
		NextOffset: binary.LittleEndian.Uint32(buf[12:16]),
	}, nil
}

// pidChain tracks the first and most recently sealed parcel of one PID chain,
// so the next seal can back-patch the previous parcel's next_offset.
type pidChain struct {
	firstOffset     uint32
	lastHeaderStart uint32
}

// Framer wraps a payload blob in a PclHdr_t, chains same-PID parcels via
// next_offset, and pads each frame to the region's unit size (PSF §4.2).
//
// A Framer is scoped to one region: its size table and chain state are not
// shared across regions, matching PSF §5's "size table per region is
// mutated only by the region's own assembler".
type Framer struct {
	unitSize   int
	baseOffset uint32 // offset of the Framer's body within the enclosing region file (e.g. 512, past RgnHdr_t)
	body       []byte
	sizeTable  []uint32
	chains     map[uint16]*pidChain
}

// NewFramer creates a Framer whose emitted offsets are relative to the start
// of the region file, with the body beginning at baseOffset (past RgnHdr_t).
func NewFramer(unitSize int, baseOffset uint32) *Framer {
	return &Framer{
		unitSize:   unitSize,
		baseOffset: baseOffset,
		chains:     make(map[uint16]*pidChain),
	}
}

// Seal frames payload under pid, appends it to the region body, chains it
// after any previously sealed parcel of the same PID, and returns the
// region-relative offset of its header.
func (f *Framer) Seal(pid uint16, payload []byte) (uint32, error) {
	if len(payload) > math.MaxUint32 {
		return 0, &ErrPayloadOverflow{PID: pid, Size: len(payload)}
	}

	sizeCode, err := f.sizeCodeFor(len(payload))
	if err != nil {
		return 0, err
	}

	offset := f.baseOffset + uint32(len(f.body))

	hdr := PclHdr{
		PID:        pid,
		Flags:      FlagNoCompression,
		SizeCode:   sizeCode,
		PayloadLen: uint32(len(payload)),
		CRC32:      CRC32IEEE(payload),
		NextOffset: EndOfChain,
	}

	frame := make([]byte, 0, PclHdrSize+len(payload))
	frame = append(frame, hdr.Marshal()...)
	frame = append(frame, payload...)
	frame = PadTo(frame, f.unitSize)
	f.body = append(f.body, frame...)

	chain, ok := f.chains[pid]
	if !ok {
		f.chains[pid] = &pidChain{firstOffset: offset, lastHeaderStart: offset}
		return offset, nil
	}

	f.backpatchNextOffset(chain.lastHeaderStart, offset)
	chain.lastHeaderStart = offset
	return offset, nil
}

// backpatchNextOffset rewrites the next_offset field (bytes 12:16) of the
// header starting at headerOffset (region-relative) to point at target.
func (f *Framer) backpatchNextOffset(headerOffset, target uint32) {
	pos := headerOffset - f.baseOffset + 12
	binary.LittleEndian.PutUint32(f.body[pos:pos+4], target)
}

// sizeCodeFor returns the smallest size-table index whose class is >= n,
// growing the table with a new class if none fits (PSF §4.2 step 2).
func (f *Framer) sizeCodeFor(n int) (byte, error) {
	for i, class := range f.sizeTable {
		if class >= uint32(n) {
			return byte(i), nil
		}
	}
	if len(f.sizeTable) >= MaxSizeTableEntries {
		return 0, &ErrPayloadTooLarge{PayloadLen: n, TableLength: len(f.sizeTable)}
	}
	f.sizeTable = append(f.sizeTable, uint32(n))
	return byte(len(f.sizeTable) - 1), nil
}

// Rewrite overwrites the already-sealed payload at headerOffset (a value
// previously returned by Seal) with newPayload, which must be exactly as
// long as the original payload, and recomputes that parcel's CRC-32. This
// lets a builder back-patch a parcel's body after later parcels have been
// sealed, without disturbing chaining or padding. The B+-tree's internal
// nodes need this: their children's offsets aren't known until those
// children are themselves sealed (PSF §4.5).
func (f *Framer) Rewrite(headerOffset uint32, newPayload []byte) error {
	pos := headerOffset - f.baseOffset
	hdr, err := UnmarshalPclHdr(f.body[pos : pos+PclHdrSize])
	if err != nil {
		return err
	}
	if uint32(len(newPayload)) != hdr.PayloadLen {
		return &ErrPayloadOverflow{PID: hdr.PID, Size: len(newPayload)}
	}

	payloadStart := pos + PclHdrSize
	copy(f.body[payloadStart:payloadStart+uint32(len(newPayload))], newPayload)

	hdr.CRC32 = CRC32IEEE(newPayload)
	copy(f.body[pos:pos+PclHdrSize], hdr.Marshal())
	return nil
}

// ChainOffsets walks the sealed chain for pid from its first parcel via
// next_offset and returns every header's region-relative offset, in chain
// (sealing) order. Used to translate a RoadSink's per-parcel-ordinal way
// locations into absolute file offsets once every parcel has been sealed.
func (f *Framer) ChainOffsets(pid uint16) []uint32 {
	first, ok := f.FirstOffset(pid)
	if !ok {
		return nil
	}
	var offsets []uint32
	for offset := first; offset != EndOfChain; {
		offsets = append(offsets, offset)
		pos := offset - f.baseOffset
		hdr, err := UnmarshalPclHdr(f.body[pos : pos+PclHdrSize])
		if err != nil {
			break
		}
		offset = hdr.NextOffset
	}
	return offsets
}

// Body returns the accumulated, already-padded parcel bytes for this region.
func (f *Framer) Body() []byte { return f.body }

// SizeTable returns the region's size classes, index == size_code.
func (f *Framer) SizeTable() []uint32 { return f.sizeTable }

// FirstOffset returns the region-relative offset of the first parcel sealed
// under pid, if any.
func (f *Framer) FirstOffset(pid uint16) (uint32, bool) {
	chain, ok := f.chains[pid]
	if !ok {
		return 0, false
	}
	return chain.firstOffset, true
}

// PIDs returns the set of PIDs that have at least one sealed parcel, in a
// stable (ascending) order; deterministic builds need fixed iteration
// order over PID tables (PSF §9).
func (f *Framer) PIDs() []uint16 {
	pids := make([]uint16, 0, len(f.chains))
	for pid := range f.chains {
		pids = append(pids, pid)
	}
	for i := 1; i < len(pids); i++ {
		for j := i; j > 0 && pids[j-1] > pids[j]; j-- {
			pids[j-1], pids[j] = pids[j], pids[j-1]
		}
	}
	return pids
}
