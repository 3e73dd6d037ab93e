package sdal

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/paulmach/orb"

	"github.com/KickingAnimal/SDAL-Builder/internal/encoder"
)

func singleRoadInput() RegionInput {
	return RegionInput{
		RegionID: 1,
		Code:     "CY",
		Stem:     "CY",
		DBID:     0xC0FFEE,
		Stream: NewSliceStream([]Record{
			Road{
				WayID:  42,
				Class:  1,
				Name:   "Ledra Street",
				Points: []orb.Point{{33.0, 35.0}, {33.001, 35.001}},
			},
		}),
	}
}

func testOptions() BuildOptions {
	opts := DefaultBuildOptions()
	opts.FormatMode = ModeSDAL
	return opts
}

func TestRegionBuildEmptyStreamFails(t *testing.T) {
	a := NewRegionAssembler(testOptions())
	in := RegionInput{RegionID: 1, Code: "ZZ", Stem: "ZZ", Stream: NewSliceStream(nil)}

	_, err := a.Build(in)
	var bbox *encoder.ErrBboxInvalid
	if !errors.As(err, &bbox) {
		t.Fatalf("got %v, want *ErrBboxInvalid", err)
	}
	if bbox.RegionCode != "ZZ" {
		t.Errorf("region code = %q, want ZZ", bbox.RegionCode)
	}
}

func TestRegionBuildSingleRoad(t *testing.T) {
	a := NewRegionAssembler(testOptions())

	result, err := a.Build(singleRoadInput())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	mapFile := result.Files.MapFile
	if len(mapFile)%2048 != 512 {
		t.Errorf("map file length %d is not header + whole units", len(mapFile))
	}
	if result.FirstNavOffset != 512 {
		t.Errorf("first nav parcel offset = %d, want 512", result.FirstNavOffset)
	}

	hdr, err := encoder.UnmarshalPclHdr(mapFile[512:])
	if err != nil {
		t.Fatalf("nav parcel header: %v", err)
	}
	if hdr.PID != encoder.PIDNav {
		t.Errorf("PID = 0x%x, want 0x%x", hdr.PID, encoder.PIDNav)
	}
	if hdr.PayloadLen != 29 {
		t.Errorf("payload_len = %d, want 29", hdr.PayloadLen)
	}
	if hdr.Flags&1 == 0 {
		t.Error("NO_COMPRESSION flag not set")
	}
	payload := mapFile[512+encoder.PclHdrSize : 512+encoder.PclHdrSize+29]
	if hdr.CRC32 != encoder.CRC32IEEE(payload) {
		t.Error("nav parcel CRC mismatch")
	}
	if hdr.NextOffset != encoder.EndOfChain {
		t.Errorf("single parcel next_offset = 0x%x, want end-of-chain", hdr.NextOffset)
	}

	// The KD-tree parcel follows in the next unit; its leaf references the
	// nav parcel at 512.
	kdHdr, err := encoder.UnmarshalPclHdr(mapFile[512+2048:])
	if err != nil {
		t.Fatalf("kd parcel header: %v", err)
	}
	if kdHdr.PID != encoder.PIDKDTree {
		t.Fatalf("second parcel PID = 0x%x, want 0x%x", kdHdr.PID, encoder.PIDKDTree)
	}
	kdPayload := mapFile[512+2048+encoder.PclHdrSize:]
	leaf0 := kdPayload[encoder.KDBboxPrefixSize+2*encoder.KDNodeSize:]
	if got := binary.LittleEndian.Uint32(leaf0[15:19]); got != 512 {
		t.Errorf("kd leaf parcel offset = %d, want 512", got)
	}

	// Region bbox covers both road points.
	if result.Bbox.MinLon != 33.0 || result.Bbox.MinLat != 35.0 {
		t.Errorf("bbox min = (%v, %v)", result.Bbox.MinLon, result.Bbox.MinLat)
	}
}

func TestRegionBuildWayIndexResolvesRecordOffset(t *testing.T) {
	a := NewRegionAssembler(testOptions())

	result, err := a.Build(singleRoadInput())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	mapFile := result.Files.MapFile

	// B+-tree root (a single leaf) occupies the third unit.
	idxHdr, err := encoder.UnmarshalPclHdr(mapFile[512+2*2048:])
	if err != nil {
		t.Fatalf("way index header: %v", err)
	}
	if idxHdr.PID != encoder.PIDWayIdx {
		t.Fatalf("third parcel PID = 0x%x, want 0x%x", idxHdr.PID, encoder.PIDWayIdx)
	}

	leaf := mapFile[512+2*2048+encoder.PclHdrSize:]
	if got := binary.LittleEndian.Uint16(leaf[0:2]); got != 1 {
		t.Fatalf("leaf entry count = %d, want 1", got)
	}
	if got := binary.LittleEndian.Uint64(leaf[2:10]); got != 42 {
		t.Errorf("leaf key = %d, want 42", got)
	}
	// Value points at the road record's first byte, just past the nav
	// parcel's header.
	if got := binary.LittleEndian.Uint32(leaf[12:16]); got != 512+encoder.PclHdrSize {
		t.Errorf("leaf offset = %d, want %d", got, 512+encoder.PclHdrSize)
	}
}

func TestRegionBuildDuplicateWayID(t *testing.T) {
	a := NewRegionAssembler(testOptions())
	in := RegionInput{
		RegionID: 1, Code: "CY", Stem: "CY",
		Stream: NewSliceStream([]Record{
			Road{WayID: 7, Points: []orb.Point{{33.0, 35.0}, {33.001, 35.001}}},
			Road{WayID: 7, Points: []orb.Point{{33.002, 35.002}, {33.003, 35.003}}},
		}),
	}

	_, err := a.Build(in)
	var dup *encoder.ErrDuplicateWayID
	if !errors.As(err, &dup) {
		t.Fatalf("got %v, want *ErrDuplicateWayID", err)
	}
	if dup.WayID != 7 {
		t.Errorf("duplicate id = %d, want 7", dup.WayID)
	}
}

func TestRegionBuildModeParity(t *testing.T) {
	oemOpts := DefaultBuildOptions()
	oemOpts.FormatMode = ModeOEM
	sdalOpts := DefaultBuildOptions()
	sdalOpts.FormatMode = ModeSDAL

	oem, err := NewRegionAssembler(oemOpts).Build(singleRoadInput())
	if err != nil {
		t.Fatalf("OEM build: %v", err)
	}
	sdal, err := NewRegionAssembler(sdalOpts).Build(singleRoadInput())
	if err != nil {
		t.Fatalf("SDAL build: %v", err)
	}

	oemMap, sdalMap := oem.Files.MapFile, sdal.Files.MapFile
	if len(oemMap) != len(sdalMap) {
		t.Fatalf("file lengths differ: %d vs %d", len(oemMap), len(sdalMap))
	}
	if string(oemMap[:4]) == string(sdalMap[:4]) {
		t.Error("mode prefixes are indistinguishable")
	}
	for i := RgnHdrSize; i < len(oemMap); i++ {
		if oemMap[i] != sdalMap[i] {
			t.Fatalf("payload bytes diverge at %d between modes", i)
		}
	}
}

func TestRegionBuildChainWalkTerminates(t *testing.T) {
	opts := testOptions()
	opts.ParcelThreshold = 40 // force one parcel per road

	in := RegionInput{
		RegionID: 1, Code: "CY", Stem: "CY",
		Stream: NewSliceStream([]Record{
			Road{WayID: 1, Points: []orb.Point{{33.0, 35.0}, {33.001, 35.001}}},
			Road{WayID: 2, Points: []orb.Point{{33.002, 35.002}, {33.003, 35.003}}},
			Road{WayID: 3, Points: []orb.Point{{33.004, 35.004}, {33.005, 35.005}}},
		}),
	}

	result, err := NewRegionAssembler(opts).Build(in)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	mapFile := result.Files.MapFile
	visited := map[uint32]bool{}
	offset := result.FirstNavOffset
	for {
		if visited[offset] {
			t.Fatalf("chain revisits offset %d", offset)
		}
		visited[offset] = true
		hdr, err := encoder.UnmarshalPclHdr(mapFile[offset:])
		if err != nil {
			t.Fatalf("header at %d: %v", offset, err)
		}
		if hdr.PID != encoder.PIDNav {
			t.Fatalf("chain led to PID 0x%x at %d", hdr.PID, offset)
		}
		if hdr.NextOffset == encoder.EndOfChain {
			break
		}
		offset = hdr.NextOffset
	}
	if len(visited) != 3 {
		t.Errorf("chain visited %d parcels, want 3", len(visited))
	}
}

func TestRegionBuildVerifyPass(t *testing.T) {
	opts := testOptions()
	opts.Verify = true

	if _, err := NewRegionAssembler(opts).Build(singleRoadInput()); err != nil {
		t.Fatalf("Build with verification: %v", err)
	}
}

func TestRegionBuildDensityFiles(t *testing.T) {
	a := NewRegionAssembler(testOptions())
	in := RegionInput{
		RegionID: 1, Code: "CY", Stem: "CY",
		Stream: NewSliceStream([]Record{
			Road{WayID: 1, Points: []orb.Point{{33.0, 35.0}, {33.001, 35.001}}},
			DensityTile{X: 1, Y: 2, Zoom: 3, Bytes: []byte{1, 2, 3}},
		}),
	}

	result, err := a.Build(in)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if result.Files.DensityDirFile == nil || result.Files.DensityPayloadFile == nil {
		t.Fatal("density files missing")
	}

	hdr, err := encoder.UnmarshalPclHdr(result.Files.DensityDirFile[RgnHdrSize:])
	if err != nil {
		t.Fatal(err)
	}
	if hdr.PID != encoder.PIDDens0 {
		t.Errorf("density dir PID = 0x%x, want 0x%x", hdr.PID, encoder.PIDDens0)
	}
}

func TestRegionBuildNoDensityFilesWithoutTiles(t *testing.T) {
	a := NewRegionAssembler(testOptions())

	result, err := a.Build(singleRoadInput())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if result.Files.DensityDirFile != nil || result.Files.DensityPayloadFile != nil {
		t.Error("density files emitted for a region with no tiles")
	}
}
