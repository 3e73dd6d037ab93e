package sdal

import (
	"math"
	"strings"

	"github.com/KickingAnimal/SDAL-Builder/internal/encoder"
)

// GlbMediaHeaderSize is the fixed size, in bytes, of GlbMediaHeader_t
// (PSF §3, §6).
const GlbMediaHeaderSize = 512

// glbMagic and glbVersionMajor/glbVersionMinor are the fixed identity fields
// every built image carries; the firmware rejects an image without them.
var glbMagic = [4]byte{'S', 'D', 'A', 'L'}

const (
	glbVersionMajor byte = 1
	glbVersionMinor byte = 7
)

// maxSuppLanguageBytes bounds the encoded, comma-joined supplementary
// language list (PSF §3: "up to 32 bytes").
const maxSuppLanguageBytes = 32

// GlbMediaHeader is the decoded form of INIT.SDL's leading 512 bytes.
type GlbMediaHeader struct {
	CreationTime           int64
	RegionCount            uint16
	Language               string
	SupplementaryLanguages []string
	CartotopOffset         uint32
	SizeTable              [maxSizeClasses]byte
}

// Marshal encodes h as the fixed 512-byte GlbMediaHeader_t.
func (h GlbMediaHeader) Marshal() []byte {
	buf := make([]byte, 0, GlbMediaHeaderSize)
	buf = append(buf, glbMagic[:]...)
	buf = append(buf, glbVersionMajor, glbVersionMinor)
	buf = encoder.WriteUint64LE(buf, uint64(h.CreationTime))
	buf = encoder.WriteUint16LE(buf, h.RegionCount)

	var lang [3]byte
	copy(lang[:], h.Language)
	buf = append(buf, lang[:]...)

	var supp [maxSuppLanguageBytes]byte
	copy(supp[:], strings.Join(h.SupplementaryLanguages, ","))
	buf = append(buf, supp[:]...)

	buf = encoder.WriteUint32LE(buf, h.CartotopOffset)
	buf = append(buf, h.SizeTable[:]...)
	return encoder.PadTo(buf, GlbMediaHeaderSize)
}

// MediaFiles holds the bytes of every global (non-region-scoped) file a
// build produces.
type MediaFiles struct {
	// Init is INIT.SDL: GlbMediaHeader_t followed by the baked constants blob.
	Init []byte
	// Cartotop is CARTOTOP.SDL: the global region directory, one
	// CartotopEntry per region, header-prefixed like a region file.
	Cartotop []byte
	// KDTree is KDTREE.SDL: the global two-level KD-tree over region
	// bounding boxes, header-prefixed like a region file.
	KDTree []byte
	// Regions is REGIONS.SDL, OEM mode only; nil in SDAL mode.
	Regions []byte
	// MTOC is MTOC.SDL, OEM mode only; nil in SDAL mode.
	MTOC []byte
}

// MediaAssembler accumulates sealed regions and, once every region has
// been built, composes the global files that tie them together (PSF §4.7,
// §6).
type MediaAssembler struct {
	Options BuildOptions
	regions []*RegionResult
}

// NewMediaAssembler creates an assembler using opts.
func NewMediaAssembler(opts BuildOptions) *MediaAssembler {
	return &MediaAssembler{Options: opts}
}

// AddRegion records a sealed region's result for inclusion in the global
// files. Regions must be added in the same order they are to appear in
// CARTOTOP.SDL and REGIONS.SDL (PSF §9: deterministic builds require
// fixed iteration order).
func (m *MediaAssembler) AddRegion(r *RegionResult) {
	m.regions = append(m.regions, r)
}

// Finalize composes every global file from the regions added so far. It
// never mutates a region's own files, only reads their bounding boxes and
// identifiers.
func (m *MediaAssembler) Finalize() (*MediaFiles, error) {
	cartotopBytes, err := m.buildCartotop()
	if err != nil {
		return nil, err
	}
	kdTreeBytes, globalBbox, err := m.buildKDTree()
	if err != nil {
		return nil, err
	}

	init := m.buildInit(globalBbox)

	files := &MediaFiles{
		Init:     init,
		Cartotop: cartotopBytes,
		KDTree:   kdTreeBytes,
	}

	if m.Options.FormatMode == ModeOEM {
		files.Regions = m.buildRegionsSummary()
		files.MTOC = m.buildMTOC(files)
	}
	return files, nil
}

// buildInit composes GlbMediaHeader_t plus the baked constants blob.
func (m *MediaAssembler) buildInit(globalBbox encoder.Bbox) []byte {
	hdr := GlbMediaHeader{
		CreationTime:           m.Options.CreationTime,
		RegionCount:            uint16(len(m.regions)),
		Language:               m.Options.Language,
		SupplementaryLanguages: m.Options.SupplementaryLanguages,
		CartotopOffset:         RgnHdrSize, // CARTOTOP.SDL's first parcel always starts right after its own header
	}
	out := make([]byte, 0, GlbMediaHeaderSize+len(BakedInit))
	out = append(out, hdr.Marshal()...)
	out = append(out, BakedInit...)
	return out
}

// buildCartotop seals one CartotopEntry per region, in insertion order.
// CARTOTOP.SDL carries exactly one entry per built region.
func (m *MediaAssembler) buildCartotop() ([]byte, error) {
	framer := encoder.NewFramer(m.Options.UnitSize, RgnHdrSize)

	entries := make([]encoder.CartotopEntry, 0, len(m.regions))
	for _, r := range m.regions {
		entries = append(entries, encoder.CartotopEntry{
			RegionID: r.Input.RegionID,
			Stem:     r.Input.Stem,
			MinLat:   microDeg(r.Bbox.MinLat),
			MaxLat:   microDeg(r.Bbox.MaxLat),
			MinLon:   microDeg(r.Bbox.MinLon),
			MaxLon:   microDeg(r.Bbox.MaxLon),
			DBID:     r.Input.DBID,
		})
	}

	if _, err := framer.Seal(encoder.PIDCartotop, encoder.EncodeCartotop(entries)); err != nil {
		return nil, err
	}

	hdr := RgnHdr{DBID: 0, UnitSize: uint32(m.Options.UnitSize), PIDDir: buildPIDDir(framer), SizeTable: quantizedSizeTable(framer)}
	return append(hdr.HeaderBytes(m.Options.FormatMode), framer.Body()...), nil
}

// buildKDTree seals the global two-level KD-tree over every region's
// bounding box, one leaf entry per region, and returns its bytes plus the
// union of every region's bbox.
func (m *MediaAssembler) buildKDTree() ([]byte, encoder.Bbox, error) {
	framer := encoder.NewFramer(m.Options.UnitSize, RgnHdrSize)

	var items []encoder.KDLeafItem
	var wraps bool
	for _, r := range m.regions {
		bbox := encoder.Bbox{}.
			Extend(microDeg(r.Bbox.MinLon), microDeg(r.Bbox.MinLat)).
			Extend(microDeg(r.Bbox.MaxLon), microDeg(r.Bbox.MaxLat))
		if r.Bbox.Wraps() {
			wraps = true
		}
		items = append(items, encoder.KDLeafItem{Bbox: bbox, PID: encoder.PIDNav, Offset: r.FirstNavOffset})
	}

	_, union, err := encoder.SealKDTree(framer, items, wraps)
	if err != nil {
		return nil, encoder.Bbox{}, err
	}

	hdr := RgnHdr{DBID: 0, UnitSize: uint32(m.Options.UnitSize), Bbox: union, PIDDir: buildPIDDir(framer), SizeTable: quantizedSizeTable(framer)}
	return append(hdr.HeaderBytes(m.Options.FormatMode), framer.Body()...), union, nil
}

// regionSummaryEntrySize is the fixed size of one REGIONS.SDL row: region id
// (2), code (2), db_id (4), bbox (16), padded to a round 32 bytes.
const regionSummaryEntrySize = 32

// buildRegionsSummary produces REGIONS.SDL (OEM mode only, PSF §9): a
// flat per-region summary table, one fixed-size row per region.
func (m *MediaAssembler) buildRegionsSummary() []byte {
	buf := make([]byte, 0, len(m.regions)*regionSummaryEntrySize)
	for _, r := range m.regions {
		code := codeBytes(r.Input.Code)
		row := make([]byte, 0, regionSummaryEntrySize)
		row = encoder.WriteUint16LE(row, r.Input.RegionID)
		row = append(row, code[:]...)
		row = encoder.WriteUint32LE(row, r.Input.DBID)
		row = encoder.WriteInt32LE(row, microDeg(r.Bbox.MinLat))
		row = encoder.WriteInt32LE(row, microDeg(r.Bbox.MaxLat))
		row = encoder.WriteInt32LE(row, microDeg(r.Bbox.MinLon))
		row = encoder.WriteInt32LE(row, microDeg(r.Bbox.MaxLon))
		buf = append(buf, encoder.PadTo(row, regionSummaryEntrySize)...)
	}
	return buf
}

// mtocEntrySize is the fixed size of one MTOC.SDL row: an 8-byte filename
// stem plus a 4-byte file length, padded to 16 bytes.
const mtocEntrySize = 16

// buildMTOC produces MTOC.SDL (OEM mode only, PSF §9): a directory of
// INIT, CARTOTOP, KDTREE and each region's map and metadata files, by
// filename stem and byte length: the media "table of contents" an
// original-disc firmware's loader walks before touching any region file.
// REGIONS.SDL, MTOC.SDL itself and the density files are not listed.
func (m *MediaAssembler) buildMTOC(files *MediaFiles) []byte {
	row := func(stem string, size int) []byte {
		r := make([]byte, 0, mtocEntrySize)
		var s [8]byte
		copy(s[:], stem)
		r = append(r, s[:]...)
		r = encoder.WriteUint32LE(r, uint32(size))
		return encoder.PadTo(r, mtocEntrySize)
	}

	buf := make([]byte, 0, mtocEntrySize*(3+len(m.regions)*2))
	buf = append(buf, row("INIT", len(files.Init))...)
	buf = append(buf, row("CARTOTOP", len(files.Cartotop))...)
	buf = append(buf, row("KDTREE", len(files.KDTree))...)
	for _, r := range m.regions {
		buf = append(buf, row(r.Input.Stem+"1", len(r.Files.MapFile))...)
		buf = append(buf, row(r.Input.Stem+"0", len(r.Files.MetaFile))...)
	}
	return buf
}

func microDeg(degrees float64) int32 {
	return int32(math.Round(degrees * 1e6))
}
