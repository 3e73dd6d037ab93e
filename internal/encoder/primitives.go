// Package encoder implements the SDAL Parcel Storage Format byte-level encoding:
// little-endian field writers, CRC-32 checksums, parcel framing, per-PID record
// encoding, the two-level spatial KD-tree, and the OSM-id B+-tree.
package encoder

import (
	"encoding/binary"
	"hash/crc32"
	"math"

	"github.com/paulmach/orb"
)

// WriteUint16LE appends v to buf as two little-endian bytes.
func WriteUint16LE(buf []byte, v uint16) []byte {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}

// WriteUint32LE appends v to buf as four little-endian bytes.
func WriteUint32LE(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

// WriteUint64LE appends v to buf as eight little-endian bytes.
func WriteUint64LE(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

// WriteInt32LE appends v to buf as four little-endian bytes (two's complement).
func WriteInt32LE(buf []byte, v int32) []byte {
	return WriteUint32LE(buf, uint32(v))
}

// WriteInt24LE appends the low 24 bits of v to buf as three little-endian bytes.
// Used for the delta-encoded road point coordinates (PSF §4.3).
func WriteInt24LE(buf []byte, v int32) []byte {
	u := uint32(v)
	return append(buf, byte(u), byte(u>>8), byte(u>>16))
}

// ReadInt24LE reads a little-endian, sign-extended 24-bit integer from buf[0:3].
func ReadInt24LE(buf []byte) int32 {
	u := uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16
	if u&0x800000 != 0 {
		u |= 0xFF000000
	}
	return int32(u)
}

// CRC32IEEE computes the CRC-32 of payload using the IEEE 802.3 polynomial
// (0xEDB88320 reflected), initial value 0xFFFFFFFF, final XOR 0xFFFFFFFF,
// exactly stdlib crc32.ChecksumIEEE.
func CRC32IEEE(payload []byte) uint32 {
	return crc32.ChecksumIEEE(payload)
}

// PadTo appends zero bytes to buf until its length is a multiple of align.
// align must be a power of two (region unit size, e.g. 2048).
func PadTo(buf []byte, align int) []byte {
	rem := len(buf) % align
	if rem == 0 {
		return buf
	}
	return append(buf, make([]byte, align-rem)...)
}

// MicroDeg is a coordinate expressed in signed 32-bit micro-degrees, the wire
// format used throughout PclHdr_t-framed payloads.
type MicroDeg int32

// MicroDegFromOrb converts an orb.Point (lon, lat in decimal degrees) to a
// pair of micro-degree values. Rounded, not truncated: a float64 holding
// 35.001 sits a hair below the decimal value, and truncation would turn it
// into 35000999 instead of 35001000.
func MicroDegFromOrb(p orb.Point) (lon, lat MicroDeg) {
	return MicroDeg(math.Round(p[0] * 1e6)), MicroDeg(math.Round(p[1] * 1e6))
}

// ToOrb converts a micro-degree (lon, lat) pair back to an orb.Point.
func ToOrb(lon, lat MicroDeg) orb.Point {
	return orb.Point{float64(lon) / 1e6, float64(lat) / 1e6}
}
