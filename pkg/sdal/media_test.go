package sdal

import (
	"encoding/binary"
	"testing"

	"github.com/KickingAnimal/SDAL-Builder/internal/encoder"
)

func regionResult(id uint16, code, stem string, dbid uint32, minLon, minLat, maxLon, maxLat float64) *RegionResult {
	return &RegionResult{
		Input:          RegionInput{RegionID: id, Code: code, Stem: stem, DBID: dbid},
		Bbox:           Bounds{MinLat: minLat, MaxLat: maxLat, MinLon: minLon, MaxLon: maxLon},
		FirstNavOffset: 512,
	}
}

func twoRegionAssembler(mode FormatMode) *MediaAssembler {
	opts := DefaultBuildOptions()
	opts.FormatMode = mode
	m := NewMediaAssembler(opts)
	m.AddRegion(regionResult(1, "CY", "CY", 0x1001, 33.0, 35.0, 33.1, 35.1))
	m.AddRegion(regionResult(2, "MT", "MT", 0x1002, 14.4, 35.8, 14.6, 36.0))
	return m
}

func TestMediaInitHeaderIdentity(t *testing.T) {
	files, err := twoRegionAssembler(ModeSDAL).Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	init := files.Init
	if string(init[0:4]) != "SDAL" {
		t.Errorf("magic = %q, want SDAL", init[0:4])
	}
	if init[4] != 1 || init[5] != 7 {
		t.Errorf("version = (%d, %d), want (1, 7)", init[4], init[5])
	}
	if got := binary.LittleEndian.Uint16(init[14:16]); got != 2 {
		t.Errorf("region count = %d, want 2", got)
	}
	if len(init) < GlbMediaHeaderSize+len(BakedInit) {
		t.Errorf("INIT.SDL shorter than header + baked blob")
	}
}

func TestMediaInitCarriesLanguages(t *testing.T) {
	opts := DefaultBuildOptions()
	opts.Language = "deu"
	opts.SupplementaryLanguages = []string{"eng", "fra"}
	m := NewMediaAssembler(opts)
	m.AddRegion(regionResult(1, "CY", "CY", 1, 33.0, 35.0, 33.1, 35.1))

	files, err := m.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	init := files.Init
	if string(init[16:19]) != "deu" {
		t.Errorf("language = %q, want deu", init[16:19])
	}
	if string(init[19:26]) != "eng,fra" {
		t.Errorf("supplementary languages = %q, want eng,fra", init[19:26])
	}
}

func TestMediaCartotopEntries(t *testing.T) {
	files, err := twoRegionAssembler(ModeSDAL).Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	hdr, err := encoder.UnmarshalPclHdr(files.Cartotop[RgnHdrSize:])
	if err != nil {
		t.Fatalf("cartotop parcel header: %v", err)
	}
	if hdr.PID != encoder.PIDCartotop {
		t.Fatalf("PID = 0x%x, want 0x%x", hdr.PID, encoder.PIDCartotop)
	}
	if hdr.PayloadLen != 2*encoder.CartotopEntrySize {
		t.Fatalf("payload length = %d, want %d", hdr.PayloadLen, 2*encoder.CartotopEntrySize)
	}

	payload := files.Cartotop[RgnHdrSize+encoder.PclHdrSize:]
	if got := binary.LittleEndian.Uint32(payload[26:30]); got != 0x1001 {
		t.Errorf("entry 0 db_id = 0x%x, want 0x1001", got)
	}
	second := payload[encoder.CartotopEntrySize:]
	if got := binary.LittleEndian.Uint32(second[26:30]); got != 0x1002 {
		t.Errorf("entry 1 db_id = 0x%x, want 0x1002", got)
	}
}

func TestMediaGlobalKDTreeUnionCoversRegions(t *testing.T) {
	files, err := twoRegionAssembler(ModeSDAL).Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	// The IDxPclHdr_t bbox prefix carries the union of both region bboxes.
	prefix := files.KDTree[RgnHdrSize+encoder.PclHdrSize:]
	minLat := int32(binary.LittleEndian.Uint32(prefix[0:4]))
	maxLat := int32(binary.LittleEndian.Uint32(prefix[4:8]))
	minLon := int32(binary.LittleEndian.Uint32(prefix[8:12]))
	maxLon := int32(binary.LittleEndian.Uint32(prefix[12:16]))

	if minLat != 35_000_000 || maxLat != 36_000_000 {
		t.Errorf("union lat = (%d, %d)", minLat, maxLat)
	}
	if minLon != 14_400_000 || maxLon != 33_100_000 {
		t.Errorf("union lon = (%d, %d)", minLon, maxLon)
	}
}

func TestMediaOEMOnlyFiles(t *testing.T) {
	oem, err := twoRegionAssembler(ModeOEM).Finalize()
	if err != nil {
		t.Fatalf("OEM finalize: %v", err)
	}
	if oem.Regions == nil || oem.MTOC == nil {
		t.Error("OEM mode must emit REGIONS.SDL and MTOC.SDL")
	}
	if len(oem.Regions) != 2*regionSummaryEntrySize {
		t.Errorf("REGIONS.SDL length = %d, want %d", len(oem.Regions), 2*regionSummaryEntrySize)
	}
	// INIT, CARTOTOP, KDTREE plus two rows per region.
	if len(oem.MTOC) != 7*mtocEntrySize {
		t.Errorf("MTOC.SDL length = %d, want %d", len(oem.MTOC), 7*mtocEntrySize)
	}

	sdalFiles, err := twoRegionAssembler(ModeSDAL).Finalize()
	if err != nil {
		t.Fatalf("SDAL finalize: %v", err)
	}
	if sdalFiles.Regions != nil || sdalFiles.MTOC != nil {
		t.Error("SDAL mode must not emit OEM control files")
	}
}
