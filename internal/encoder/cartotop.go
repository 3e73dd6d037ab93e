package encoder

// CartotopEntrySize is the fixed size, in bytes, of one region directory
// entry inside CARTOTOP.SDL (PSF §3).
const CartotopEntrySize = 64

// CartotopEntry is one region directory record: region id, an 8-byte
// filename stem, the region's bounding box in micro-degrees, and the
// DB_ID the firmware cross-checks against the referenced region file's
// embedded database id.
type CartotopEntry struct {
	RegionID   uint16
	Stem       string // region filename stem, truncated/padded to 8 bytes
	MinLat     int32
	MaxLat     int32
	MinLon     int32
	MaxLon     int32
	DBID       uint32
}

// Marshal encodes e as a 64-byte region directory entry. Layout: region_id
// (2), stem (8), min_lat/max_lat/min_lon/max_lon (4 each, 16 total), db_id
// (4), reserved padding to 64 bytes.
func (e CartotopEntry) Marshal() []byte {
	buf := make([]byte, 0, CartotopEntrySize)
	buf = WriteUint16LE(buf, e.RegionID)
	buf = append(buf, padOrTruncateStem(e.Stem)...)
	buf = WriteInt32LE(buf, e.MinLat)
	buf = WriteInt32LE(buf, e.MaxLat)
	buf = WriteInt32LE(buf, e.MinLon)
	buf = WriteInt32LE(buf, e.MaxLon)
	buf = WriteUint32LE(buf, e.DBID)
	return PadTo(buf, CartotopEntrySize)
}

func padOrTruncateStem(stem string) []byte {
	out := make([]byte, 8)
	copy(out, stem)
	return out
}

// EncodeCartotop packs entries, in order, into the PID_CARTOTOP payload
// (PSF §4.3: "written only into the global scope; one entry per
// region").
func EncodeCartotop(entries []CartotopEntry) []byte {
	buf := make([]byte, 0, len(entries)*CartotopEntrySize)
	for _, e := range entries {
		buf = append(buf, e.Marshal()...)
	}
	return buf
}
