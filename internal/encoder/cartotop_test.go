package encoder

import (
	"encoding/binary"
	"testing"
)

func TestCartotopEntryMarshal(t *testing.T) {
	e := CartotopEntry{
		RegionID: 7,
		Stem:     "CY",
		MinLat:   35_000_000,
		MaxLat:   35_001_000,
		MinLon:   33_000_000,
		MaxLon:   33_001_000,
		DBID:     0xDEADBEEF,
	}

	buf := e.Marshal()
	if len(buf) != CartotopEntrySize {
		t.Fatalf("entry length = %d, want %d", len(buf), CartotopEntrySize)
	}
	if got := binary.LittleEndian.Uint16(buf[0:2]); got != 7 {
		t.Errorf("region id = %d, want 7", got)
	}
	if string(buf[2:4]) != "CY" {
		t.Errorf("stem prefix = %q, want CY", buf[2:4])
	}
	for _, b := range buf[4:10] {
		if b != 0 {
			t.Errorf("stem padding not zeroed: % x", buf[2:10])
			break
		}
	}
	if got := binary.LittleEndian.Uint32(buf[26:30]); got != 0xDEADBEEF {
		t.Errorf("db_id = 0x%08X, want 0xDEADBEEF", got)
	}
}

func TestEncodeCartotopConcatenatesEntries(t *testing.T) {
	entries := []CartotopEntry{{RegionID: 1, Stem: "CY"}, {RegionID: 2, Stem: "MT"}}
	buf := EncodeCartotop(entries)
	if len(buf) != 2*CartotopEntrySize {
		t.Fatalf("payload length = %d, want %d", len(buf), 2*CartotopEntrySize)
	}
	if got := binary.LittleEndian.Uint16(buf[CartotopEntrySize:]); got != 2 {
		t.Errorf("second entry region id = %d, want 2", got)
	}
}
