package sdal

import (
	"fmt"

	"github.com/KickingAnimal/SDAL-Builder/internal/encoder"
)

// RgnHdrSize is the fixed size, in bytes, of one region header: the
// leading 512 bytes of every per-region .SDL file, in both OEM and SDAL
// mode (PSF §3, §4.7: only the header's *framing* differs between
// modes, never a map parcel's payload bytes).
const RgnHdrSize = 512

// maxPIDDirEntries bounds the per-file PID directory kept inside RgnHdr.
// A dense 256-entry offset table plus a parallel 256-entry size table is
// 1024+256 bytes, which cannot fit in a 512-byte header and would push a
// region's first parcel off its offset-512 start. The header instead
// carries a compact, sparse PID directory sized to the ≤16 active PIDs a
// region ever populates.
const maxPIDDirEntries = 16

// maxSizeClasses bounds the quantized ucaParcelSizes table kept inline in
// RgnHdr for the same reason; size classes beyond this count are not
// recorded, and when a file has fewer classes the unused slots repeat the
// last class's quantized value. Each parcel's own PclHdr_t.payload_len
// remains exact regardless; ucaParcelSizes is legacy bookkeeping, not the
// read path.
const maxSizeClasses = 32

// sizeClassUnit is the byte granularity ucaParcelSizes entries are
// quantized to, so a single byte covers sizes up to 255 × 256 = 65,280
// bytes; larger classes, including a full 64 KiB parcel, are clamped to 255.
const sizeClassUnit = 256

// pidDirEntry is one (pid, first-parcel-offset, size_code) row of a
// region file's compact PID directory.
type pidDirEntry struct {
	pid      uint16
	offset   uint32
	sizeCode byte
}

// RgnHdr is the decoded form of one region file's 512-byte header.
// DBID is stored here rather than inside the PID_NAV payload, so a road
// parcel's payload_len depends only on its road records, never on the
// region's database id.
type RgnHdr struct {
	RegionID uint16
	Code     [2]byte
	DBID     uint32
	UnitSize uint32
	Bbox     encoder.Bbox
	PIDDir   []pidDirEntry
	// SizeTable is the region's quantized ucaParcelSizes legacy bookkeeping
	// table (PSF §3), kept for format fidelity; the read path always
	// trusts each parcel's own PclHdr_t.PayloadLen instead.
	SizeTable [maxSizeClasses]byte
}

// Marshal encodes h as the fixed 512-byte SDAL-mode RgnHdr_t.
func (h RgnHdr) Marshal() []byte {
	buf := make([]byte, 0, RgnHdrSize)
	buf = encoder.WriteUint16LE(buf, h.RegionID)
	buf = append(buf, h.Code[0], h.Code[1])
	buf = encoder.WriteUint32LE(buf, h.DBID)
	buf = encoder.WriteUint32LE(buf, h.UnitSize)
	buf = encoder.WriteInt32LE(buf, h.Bbox.MinLat)
	buf = encoder.WriteInt32LE(buf, h.Bbox.MaxLat)
	buf = encoder.WriteInt32LE(buf, h.Bbox.MinLon)
	buf = encoder.WriteInt32LE(buf, h.Bbox.MaxLon)
	buf = append(buf, byte(len(h.PIDDir)))
	buf = append(buf, h.SizeTable[:]...)

	for i := 0; i < maxPIDDirEntries; i++ {
		if i < len(h.PIDDir) {
			e := h.PIDDir[i]
			buf = encoder.WriteUint16LE(buf, e.pid)
			buf = encoder.WriteUint32LE(buf, e.offset)
			buf = append(buf, e.sizeCode)
		} else {
			buf = encoder.WriteUint16LE(buf, 0)
			buf = encoder.WriteUint32LE(buf, 0)
			buf = append(buf, 0)
		}
	}

	return encoder.PadTo(buf, RgnHdrSize)
}

// marshalOEM produces the OEM-mode framing: the SDAL-mode header with its
// first four bytes (region id and code) replaced by an "OEMR" marker so the
// two modes are byte-distinguishable, and an identical PID directory, since
// OEM-mode readers still need to find their parcels. Only the leading 512
// bytes may differ between modes.
func (h RgnHdr) marshalOEM() []byte {
	sdal := h.Marshal()
	out := append([]byte("OEMR"), sdal[4:]...)
	return out[:RgnHdrSize]
}

// HeaderBytes returns the 512-byte file prefix for the given mode.
func (h RgnHdr) HeaderBytes(mode FormatMode) []byte {
	if mode == ModeOEM {
		return h.marshalOEM()
	}
	return h.Marshal()
}

func quantizeSizeClass(n uint32) byte {
	q := (n + sizeClassUnit - 1) / sizeClassUnit
	if q > 255 {
		return 255
	}
	return byte(q)
}

func buildPIDDir(framer *encoder.Framer) []pidDirEntry {
	pids := framer.PIDs()
	dir := make([]pidDirEntry, 0, len(pids))
	for _, pid := range pids {
		offset, _ := framer.FirstOffset(pid)
		// size_code here defaults to 0 even when chains share overlapping
		// size classes, matching original-disc behavior; callers surface a
		// warning for that case.
		dir = append(dir, pidDirEntry{pid: pid, offset: offset, sizeCode: 0})
	}
	return dir
}

func quantizedSizeTable(framer *encoder.Framer) [maxSizeClasses]byte {
	var out [maxSizeClasses]byte
	table := framer.SizeTable()
	for i := range out {
		if i < len(table) {
			out[i] = quantizeSizeClass(table[i])
		} else if len(table) > 0 {
			out[i] = quantizeSizeClass(table[len(table)-1])
		}
	}
	return out
}

// RegionInput describes one region to build: its upstream record stream
// plus the identifiers the region and global directory need.
type RegionInput struct {
	// RegionID is the region's numeric identifier.
	RegionID uint16
	// Code is the two-character region code (e.g. "CY").
	Code string
	// Stem is the filename stem the trailing map/meta digit is appended to
	// (e.g. "CY" for CY1.SDL/CY0.SDL), used for <stem>0.SDL/<stem>1.SDL.
	Stem string
	// DBID is this region's database id, cross-linked into CARTOTOP.SDL;
	// the firmware verifies the two match at load time.
	DBID uint32
	// Stream yields this region's Road/Poi/DensityTile/End records.
	Stream RecordStream
}

// RegionFiles holds the bytes of every file one region contributes to the
// ISO image.
type RegionFiles struct {
	// MapFile is <stem>1.SDL: PID_NAV, PID_KDTREE, PID_WAYIDX.
	MapFile []byte
	// MetaFile is <stem>0.SDL: PID_POINAMES.
	MetaFile []byte
	// DensityDirFile is DENS<rr>0.SDL, nil if the region has no density
	// overlay.
	DensityDirFile []byte
	// DensityPayloadFile is DENS<rr>1.SDL, nil if the region has no density
	// overlay.
	DensityPayloadFile []byte
}

// RegionResult is what RegionAssembler.Build returns: the region's output
// files plus the metadata CARTOTOP.SDL and the global KD-tree need.
type RegionResult struct {
	Input          RegionInput
	Files          RegionFiles
	Bbox           Bounds
	FirstNavOffset uint32 // offset of the first PID_NAV parcel inside MapFile
}

// RegionAssembler builds one region's files from its record stream
// (PSF §4.6): a struct describing inputs and a Build method producing
// output.
type RegionAssembler struct {
	Options BuildOptions
}

// NewRegionAssembler creates an assembler using opts.
func NewRegionAssembler(opts BuildOptions) *RegionAssembler {
	return &RegionAssembler{Options: opts}
}

// Build drains in.Stream to End and produces in's region files. Returns
// ErrBboxInvalid if the region seals with zero road parcels (PSF §7).
func (a *RegionAssembler) Build(in RegionInput) (*RegionResult, error) {
	log := a.Options.Logger

	mapFramer := encoder.NewFramer(a.Options.UnitSize, RgnHdrSize)
	metaFramer := encoder.NewFramer(a.Options.UnitSize, RgnHdrSize)
	densDirFramer := encoder.NewFramer(a.Options.UnitSize, RgnHdrSize)
	densPayloadFramer := encoder.NewFramer(a.Options.UnitSize, RgnHdrSize)

	roads := encoder.NewRoadSink(mapFramer, a.Options.ParcelThreshold)
	names := encoder.NewNameTable()
	pois := encoder.NewPoiSink(metaFramer, names, a.Options.ParcelThreshold)
	density := encoder.NewDensitySink(densDirFramer, densPayloadFramer)

	var wayEntries []encoder.WayEntry
	fileIndex := uint16(in.RegionID)

	for {
		rec, err := in.Stream.Next()
		if err != nil {
			return nil, fmt.Errorf("region %s: %w", in.Code, err)
		}
		switch r := rec.(type) {
		case Road:
			if err := roads.Add(encoder.RoadRecord{
				WayID: r.WayID, Class: encoder.RoadClass(r.Class), NameRef: names.Intern(r.Name), Points: r.Points,
			}); err != nil {
				return nil, err
			}
		case Poi:
			if err := pois.Add(encoder.PoiRecord{Class: r.Class, Point: r.Point, Name: r.Name}); err != nil {
				return nil, err
			}
		case DensityTile:
			density.Add(encoder.DensityTileRecord{X: r.X, Y: r.Y, Zoom: r.Zoom, Bytes: r.Bytes})
		case End:
			goto drained
		default:
			return nil, fmt.Errorf("region %s: unrecognized record type %T", in.Code, r)
		}
	}
drained:

	if err := roads.Flush(); err != nil {
		return nil, err
	}
	if len(names.Bytes()) > 0 {
		if _, err := metaFramer.Seal(encoder.PIDPOINames, names.Bytes()); err != nil {
			return nil, err
		}
	}
	if err := pois.Flush(); err != nil {
		return nil, err
	}
	if err := density.Flush(); err != nil {
		return nil, err
	}

	bbox := roads.Bbox()
	if !bbox.Set() {
		return nil, &encoder.ErrBboxInvalid{RegionCode: in.Code, Reason: "region sealed with zero road parcels"}
	}
	regionWraps := bbox.MinLon > bbox.MaxLon

	navOffset, _ := mapFramer.FirstOffset(encoder.PIDNav)
	navChain := mapFramer.ChainOffsets(encoder.PIDNav)
	for _, loc := range roads.Locations() {
		if loc.ParcelIndex >= len(navChain) {
			continue
		}
		absOffset := navChain[loc.ParcelIndex] + encoder.PclHdrSize + loc.OffsetInBody
		wayEntries = append(wayEntries, encoder.WayEntry{WayID: loc.WayID, FileIndex: fileIndex, Offset: absOffset})
	}

	kdItems := roadParcelItems(roads, navChain)
	_, kdUnion, err := encoder.SealKDTree(mapFramer, kdItems, regionWraps)
	if err != nil {
		return nil, err
	}
	if a.Options.Verify {
		if err := verifyKDLeafCoverage(kdItems, in.Code, kdUnion); err != nil {
			return nil, err
		}
	}

	if len(wayEntries) > 0 {
		if _, err := encoder.BuildBPlusTree(mapFramer, wayEntries, a.Options.SpillThreshold, a.Options.SpillDir); err != nil {
			return nil, err
		}
	}

	log.V(1).Info("region sealed", "code", in.Code, "roads", len(wayEntries), "names", names.Len())
	if len(mapFramer.PIDs()) > 1 {
		log.Info("size_code defaulted to 0 across pid chains with overlapping size classes", "code", in.Code)
	}

	mapHdr := RgnHdr{RegionID: in.RegionID, Code: codeBytes(in.Code), DBID: in.DBID, UnitSize: uint32(a.Options.UnitSize),
		Bbox: bbox, PIDDir: buildPIDDir(mapFramer), SizeTable: quantizedSizeTable(mapFramer)}
	metaHdr := RgnHdr{RegionID: in.RegionID, Code: codeBytes(in.Code), DBID: in.DBID, UnitSize: uint32(a.Options.UnitSize),
		Bbox: bbox, PIDDir: buildPIDDir(metaFramer), SizeTable: quantizedSizeTable(metaFramer)}

	files := RegionFiles{
		MapFile:  append(mapHdr.HeaderBytes(a.Options.FormatMode), mapFramer.Body()...),
		MetaFile: append(metaHdr.HeaderBytes(a.Options.FormatMode), metaFramer.Body()...),
	}

	if len(densDirFramer.Body()) > 0 {
		densHdr := RgnHdr{RegionID: in.RegionID, Code: codeBytes(in.Code), DBID: in.DBID, UnitSize: uint32(a.Options.UnitSize),
			Bbox: bbox, PIDDir: buildPIDDir(densDirFramer), SizeTable: quantizedSizeTable(densDirFramer)}
		payloadHdr := RgnHdr{RegionID: in.RegionID, Code: codeBytes(in.Code), DBID: in.DBID, UnitSize: uint32(a.Options.UnitSize),
			Bbox: bbox, PIDDir: buildPIDDir(densPayloadFramer), SizeTable: quantizedSizeTable(densPayloadFramer)}
		files.DensityDirFile = append(densHdr.HeaderBytes(a.Options.FormatMode), densDirFramer.Body()...)
		files.DensityPayloadFile = append(payloadHdr.HeaderBytes(a.Options.FormatMode), densPayloadFramer.Body()...)
	}

	bounds := Bounds{
		MinLat: float64(bbox.MinLat) / 1e6, MaxLat: float64(bbox.MaxLat) / 1e6,
		MinLon: float64(bbox.MinLon) / 1e6, MaxLon: float64(bbox.MaxLon) / 1e6,
	}

	return &RegionResult{Input: in, Files: files, Bbox: bounds, FirstNavOffset: navOffset}, nil
}

// roadParcelItems zips a RoadSink's per-parcel bboxes with the sealed
// PID_NAV chain's header offsets into the KD-tree builder's raw input: one
// (bbox, pid, first-parcel-offset) leaf item per road parcel.
func roadParcelItems(roads *encoder.RoadSink, navChain []uint32) []encoder.KDLeafItem {
	bboxes := roads.ParcelBboxes()
	items := make([]encoder.KDLeafItem, 0, len(bboxes))
	for i, bbox := range bboxes {
		if i >= len(navChain) {
			break
		}
		items = append(items, encoder.KDLeafItem{Bbox: bbox, PID: encoder.PIDNav, Offset: navChain[i]})
	}
	return items
}

func codeBytes(code string) [2]byte {
	var out [2]byte
	copy(out[:], code)
	return out
}
