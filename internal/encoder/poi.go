package encoder

import (
	"github.com/paulmach/orb"
)

// PoiRecord is a single point-of-interest ready for encoding.
type PoiRecord struct {
	Class uint8
	Point orb.Point // lon, lat decimal degrees
	Name  string
}

// NameTable is the PID_POINAMES string table: a length-prefixed UTF-8 blob,
// deduplicated by exact byte equality via a running hash map (PSF §4.3).
// Names are encoded once, in first-seen order, and referenced elsewhere by
// their byte offset into the table.
type NameTable struct {
	buf     []byte
	offsets map[string]uint32
}

// NewNameTable creates an empty name table.
func NewNameTable() *NameTable {
	return &NameTable{offsets: make(map[string]uint32)}
}

// Intern returns the byte offset of name within the table, appending a new
// length-prefixed entry (u16 length + UTF-8 bytes) only if name was not
// already interned.
func (t *NameTable) Intern(name string) uint32 {
	if off, ok := t.offsets[name]; ok {
		return off
	}
	off := uint32(len(t.buf))
	t.buf = WriteUint16LE(t.buf, uint16(len(name)))
	t.buf = append(t.buf, name...)
	t.offsets[name] = off
	return off
}

// Bytes returns the table's encoded payload, suitable for sealing into a
// PID_POINAMES parcel.
func (t *NameTable) Bytes() []byte { return t.buf }

// Len reports the number of distinct names interned so far.
func (t *NameTable) Len() int { return len(t.offsets) }

// PoiSink accumulates Poi records into PID_POINAMES parcel payloads. Each
// record is: class u8, lat i32, lon i32, name_offset u32 (into the region's
// NameTable, which the caller seals separately as its own PID_POINAMES
// chain entry, matching PSF §4.3's "records store byte-offsets into
// this table").
type PoiSink struct {
	framer    *Framer
	names     *NameTable
	threshold int
	buf       []byte
}

// NewPoiSink creates a sink that seals PID_POINAMES record parcels through
// framer once the accumulated payload reaches threshold bytes. names is
// shared with the caller so the string table itself can be sealed once, at
// end of region, into the same PID_POINAMES chain; it follows any record
// parcels this sink already sealed during streaming.
func NewPoiSink(framer *Framer, names *NameTable, threshold int) *PoiSink {
	return &PoiSink{framer: framer, names: names, threshold: threshold}
}

// Add interns p.Name and appends p's fixed-size record to the buffer,
// sealing a parcel first if needed.
func (s *PoiSink) Add(p PoiRecord) error {
	nameOff := s.names.Intern(p.Name)
	lon, lat := MicroDegFromOrb(p.Point)

	record := make([]byte, 0, 1+4+4+4)
	record = append(record, p.Class)
	record = WriteInt32LE(record, int32(lat))
	record = WriteInt32LE(record, int32(lon))
	record = WriteUint32LE(record, nameOff)

	if len(s.buf) > 0 && len(s.buf)+len(record) > s.threshold {
		if err := s.Flush(); err != nil {
			return err
		}
	}
	s.buf = append(s.buf, record...)
	return nil
}

// Flush seals any buffered records into a PID_POINAMES record parcel.
func (s *PoiSink) Flush() error {
	if len(s.buf) == 0 {
		return nil
	}
	if _, err := s.framer.Seal(PIDPOINames, s.buf); err != nil {
		return err
	}
	s.buf = s.buf[:0]
	return nil
}
