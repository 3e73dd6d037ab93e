package encoder

import (
	"github.com/paulmach/orb"
)

// RoadClass mirrors the legacy firmware's coarse road classification byte.
type RoadClass uint8

// Road classes used by the upstream OSM normalization (PSF §6).
const (
	RoadClassMotorway RoadClass = iota
	RoadClassPrimary
	RoadClassSecondary
	RoadClassResidential
	RoadClassService
	RoadClassUnclassified
)

// RoadRecord is the normalized, already-deduplicated input to RoadSink.
// NameRef is a byte offset into the region's PID_POINAMES string table,
// resolved by the caller through NameTable.Intern before encoding.
type RoadRecord struct {
	WayID   uint64
	Class   RoadClass
	NameRef uint32
	Points  []orb.Point // lon, lat decimal degrees, in stream order
}

// RoadSink accumulates Road records into PID_NAV parcel payloads and seals
// them through a Framer once the configured threshold is reached (PSF v1.7
// §4.3, §9 "streaming record input keeps memory bounded by the configured
// parcel threshold"). Records are never reordered: the B+-tree provides
// random access, not the chain itself.
type RoadSink struct {
	framer       *Framer
	threshold    int
	buf          []byte
	bbox         Bbox
	parcelBbox   Bbox   // union of the points in the in-progress payload only
	sealedBboxes []Bbox // one per sealed parcel, in chain order
	locations    []RoadWayOffset
	sealed       int
}

// RoadWayOffset pairs a way id with the parcel-relative byte offset of its
// encoded record, for feeding into the B+-tree builder once all parcels are
// sealed and their region-relative base offsets are known.
type RoadWayOffset struct {
	WayID        uint64
	ParcelIndex  int // ordinal of the sealed PID_NAV parcel holding this record (0-based, chain order)
	OffsetInBody uint32
}

// Bbox is an axis-aligned bounding box in signed 32-bit micro-degrees.
type Bbox struct {
	MinLat, MaxLat, MinLon, MaxLon int32
	set                            bool
}

// Extend grows b to include (lonMicro, latMicro).
func (b Bbox) Extend(lonMicro, latMicro int32) Bbox {
	if !b.set {
		return Bbox{MinLat: latMicro, MaxLat: latMicro, MinLon: lonMicro, MaxLon: lonMicro, set: true}
	}
	if latMicro < b.MinLat {
		b.MinLat = latMicro
	}
	if latMicro > b.MaxLat {
		b.MaxLat = latMicro
	}
	if lonMicro < b.MinLon {
		b.MinLon = lonMicro
	}
	if lonMicro > b.MaxLon {
		b.MaxLon = lonMicro
	}
	return b
}

// Set reports whether the bbox has been extended at least once.
func (b Bbox) Set() bool { return b.set }

// NewRoadSink creates a sink that seals PID_NAV parcels through framer once
// the accumulated payload reaches threshold bytes.
func NewRoadSink(framer *Framer, threshold int) *RoadSink {
	return &RoadSink{framer: framer, threshold: threshold}
}

// Add encodes r and appends it to the current payload buffer, first sealing
// the buffered records as a parcel if appending r would take the buffer past
// the threshold (PSF v1.7 §3 "Lifecycle"). It never splits a single record
// across two parcels.
func (s *RoadSink) Add(r RoadRecord) error {
	record := encodeRoadRecord(r)

	if len(s.buf) > 0 && len(s.buf)+len(record) > s.threshold {
		if err := s.seal(); err != nil {
			return err
		}
	}

	s.locations = append(s.locations, RoadWayOffset{
		WayID:        r.WayID,
		ParcelIndex:  s.parcelOrdinal(),
		OffsetInBody: uint32(len(s.buf)),
	})
	s.buf = append(s.buf, record...)

	for _, p := range r.Points {
		lon, lat := MicroDegFromOrb(p)
		s.bbox = s.bbox.Extend(int32(lon), int32(lat))
		s.parcelBbox = s.parcelBbox.Extend(int32(lon), int32(lat))
	}
	return nil
}

// parcelOrdinal is the chain index the next sealed parcel will get, used to
// stamp RoadWayOffset.ParcelIndex at Add time.
func (s *RoadSink) parcelOrdinal() int {
	return s.sealed
}

// Flush seals any buffered, not-yet-framed payload. Safe to call on an empty
// buffer (no-op).
func (s *RoadSink) Flush() error {
	if len(s.buf) == 0 {
		return nil
	}
	return s.seal()
}

func (s *RoadSink) seal() error {
	if _, err := s.framer.Seal(PIDNav, s.buf); err != nil {
		return err
	}
	s.sealed++
	s.sealedBboxes = append(s.sealedBboxes, s.parcelBbox)
	s.parcelBbox = Bbox{}
	s.buf = s.buf[:0]
	return nil
}

// Bbox returns the union of all points seen so far.
func (s *RoadSink) Bbox() Bbox { return s.bbox }

// ParcelBboxes returns the per-parcel point bboxes, one per sealed PID_NAV
// parcel in chain order: the KD-tree builder's raw input, one leaf item
// per road parcel.
func (s *RoadSink) ParcelBboxes() []Bbox { return s.sealedBboxes }

// Locations returns the (way id, parcel ordinal, in-parcel offset) triples
// recorded for every road added, in insertion order.
func (s *RoadSink) Locations() []RoadWayOffset { return s.locations }

// encodeRoadRecord packs one road into its wire format:
//
//	record_len  u16  (byte length of everything that follows)
//	way_id      u64
//	class       u8
//	name_ref    u32
//	point_count u16
//	points      point_count * (dlat i24, dlon i24)
//
// Every point, including the first, is delta-encoded from the previous one;
// the first point's "previous" is the implicit origin (0,0), so a 2-point
// road is always 2 + 8 + 1 + 4 + 2 + 12 = 29 payload bytes.
func encodeRoadRecord(r RoadRecord) []byte {
	body := make([]byte, 0, 8+1+4+2+len(r.Points)*6)
	body = WriteUint64LE(body, r.WayID)
	body = append(body, byte(r.Class))
	body = WriteUint32LE(body, r.NameRef)
	body = WriteUint16LE(body, uint16(len(r.Points)))

	var prevLon, prevLat int32
	for _, p := range r.Points {
		lon, lat := MicroDegFromOrb(p)
		body = WriteInt24LE(body, int32(lat)-prevLat)
		body = WriteInt24LE(body, int32(lon)-prevLon)
		prevLon, prevLat = int32(lon), int32(lat)
	}

	out := make([]byte, 0, 2+len(body))
	out = WriteUint16LE(out, uint16(len(body)))
	out = append(out, body...)
	return out
}
