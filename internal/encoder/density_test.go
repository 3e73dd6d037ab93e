package encoder

import (
	"encoding/binary"
	"testing"
)

func TestDensitySinkDirectoryAndPayload(t *testing.T) {
	dirF := NewFramer(64, 0)
	payF := NewFramer(64, 0)
	s := NewDensitySink(dirF, payF)

	s.Add(DensityTileRecord{X: 1, Y: 2, Zoom: 3, Bytes: []byte{0xAA, 0xBB}})
	s.Add(DensityTileRecord{X: 4, Y: 5, Zoom: 3, Bytes: []byte{0xCC}})

	if err := s.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	dirHdr, err := UnmarshalPclHdr(dirF.Body())
	if err != nil {
		t.Fatal(err)
	}
	if dirHdr.PID != PIDDens0 {
		t.Errorf("directory PID = 0x%x, want 0x%x", dirHdr.PID, PIDDens0)
	}

	dir := dirF.Body()[PclHdrSize:]
	if got := binary.LittleEndian.Uint16(dir[0:2]); got != 2 {
		t.Fatalf("directory count = %d, want 2", got)
	}

	// First entry: key for (3,1,2), offset 0, length 2.
	if got := binary.LittleEndian.Uint64(dir[2:10]); got != tileKey(3, 1, 2) {
		t.Errorf("entry 0 key = %d, want %d", got, tileKey(3, 1, 2))
	}
	if got := binary.LittleEndian.Uint32(dir[10:14]); got != 0 {
		t.Errorf("entry 0 offset = %d, want 0", got)
	}
	if got := binary.LittleEndian.Uint32(dir[14:18]); got != 2 {
		t.Errorf("entry 0 length = %d, want 2", got)
	}
	// Second entry starts where the first tile's bytes end.
	if got := binary.LittleEndian.Uint32(dir[26:30]); got != 2 {
		t.Errorf("entry 1 offset = %d, want 2", got)
	}

	payHdr, err := UnmarshalPclHdr(payF.Body())
	if err != nil {
		t.Fatal(err)
	}
	if payHdr.PID != PIDDens1 {
		t.Errorf("payload PID = 0x%x, want 0x%x", payHdr.PID, PIDDens1)
	}
	if payHdr.PayloadLen != 3 {
		t.Errorf("payload length = %d, want 3", payHdr.PayloadLen)
	}
}

func TestDensitySinkZeroByteTile(t *testing.T) {
	dirF := NewFramer(64, 0)
	payF := NewFramer(64, 0)
	s := NewDensitySink(dirF, payF)

	s.Add(DensityTileRecord{X: 0, Y: 0, Zoom: 0, Bytes: nil})

	if err := s.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	dir := dirF.Body()[PclHdrSize:]
	if got := binary.LittleEndian.Uint32(dir[14:18]); got != 0 {
		t.Errorf("zero-byte tile length = %d, want 0", got)
	}

	payHdr, err := UnmarshalPclHdr(payF.Body())
	if err != nil {
		t.Fatal(err)
	}
	if payHdr.PayloadLen != 0 {
		t.Errorf("payload parcel length = %d, want 0", payHdr.PayloadLen)
	}
}

func TestDensitySinkEmptyFlushIsNoop(t *testing.T) {
	dirF := NewFramer(64, 0)
	payF := NewFramer(64, 0)
	s := NewDensitySink(dirF, payF)

	if err := s.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if s.HasTiles() {
		t.Error("HasTiles on empty sink")
	}
	if len(dirF.Body()) != 0 || len(payF.Body()) != 0 {
		t.Error("empty flush sealed parcels")
	}
}

func TestTileKeyOrdering(t *testing.T) {
	if tileKey(1, 0, 0) <= tileKey(0, 1000, 1000) {
		t.Error("zoom does not dominate tile key ordering")
	}
	if tileKey(2, 1, 0) <= tileKey(2, 0, 1000) {
		t.Error("x does not dominate y within a zoom level")
	}
}
