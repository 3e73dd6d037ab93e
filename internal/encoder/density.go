package encoder

// DensityTileRecord is one raster tile of a density overlay, normalized from
// the upstream DensityTile record (PSF §6).
type DensityTileRecord struct {
	X, Y, Zoom uint32
	Bytes      []byte
}

// tileKey packs (zoom, x, y) into a single sortable 64-bit key for the
// PID_DENS0 directory: zoom in the top byte, x and y in the remaining 28
// bits apiece, generous for any tile pyramid this firmware era ever saw.
func tileKey(zoom, x, y uint32) uint64 {
	return uint64(zoom)<<56 | uint64(x&0x0FFFFFFF)<<28 | uint64(y&0x0FFFFFFF)
}

// densityDirEntry is one PID_DENS0 directory record: tile key plus the
// offset (within the concatenated PID_DENS1 payload stream) and length of
// its raw tile bytes.
type densityDirEntry struct {
	key    uint64
	offset uint32
	length uint32
}

// DensitySink accumulates density tiles into two parallel parcel families,
// PID_DENS0 (tile directory) and PID_DENS1 (raw tile bytes), each written
// to its own file (DENS<rr>0.SDL / DENS<rr>1.SDL, PSF §6), hence the two
// independent Framers. Directory and payload are both sealed once, at end of
// region; tile counts per region are small enough (a handful of zoom
// levels over one region) that streaming them in chunks like
// RoadSink/PoiSink buys nothing and would only complicate the directory's
// offset bookkeeping.
type DensitySink struct {
	dirFramer     *Framer
	payloadFramer *Framer
	dir           []densityDirEntry
	payload       []byte
}

// NewDensitySink creates an empty density sink writing its directory and
// payload parcels through two separate per-file Framers.
func NewDensitySink(dirFramer, payloadFramer *Framer) *DensitySink {
	return &DensitySink{dirFramer: dirFramer, payloadFramer: payloadFramer}
}

// Add appends t's bytes to the payload stream and records a directory entry
// for it. A zero-byte tile is valid (PSF §8 boundary test) and produces
// a directory entry with length 0.
func (s *DensitySink) Add(t DensityTileRecord) {
	entry := densityDirEntry{
		key:    tileKey(t.Zoom, t.X, t.Y),
		offset: uint32(len(s.payload)),
		length: uint32(len(t.Bytes)),
	}
	s.dir = append(s.dir, entry)
	s.payload = append(s.payload, t.Bytes...)
}

// Flush seals the accumulated directory (PID_DENS0) and payload (PID_DENS1)
// as single parcels each, in that order, so PID_DENS0 is always resolvable
// before PID_DENS1's bytes are needed. No-op if no tiles were added.
func (s *DensitySink) Flush() error {
	if len(s.dir) == 0 {
		return nil
	}

	dirBuf := make([]byte, 0, 2+len(s.dir)*16)
	dirBuf = WriteUint16LE(dirBuf, uint16(len(s.dir)))
	for _, e := range s.dir {
		dirBuf = WriteUint64LE(dirBuf, e.key)
		dirBuf = WriteUint32LE(dirBuf, e.offset)
		dirBuf = WriteUint32LE(dirBuf, e.length)
	}

	if _, err := s.dirFramer.Seal(PIDDens0, dirBuf); err != nil {
		return err
	}
	if _, err := s.payloadFramer.Seal(PIDDens1, s.payload); err != nil {
		return err
	}
	return nil
}

// HasTiles reports whether any tile was added, so callers can skip emitting
// empty DENS<rr>0.SDL/DENS<rr>1.SDL files for regions with no density
// overlay.
func (s *DensitySink) HasTiles() bool { return len(s.dir) > 0 }
