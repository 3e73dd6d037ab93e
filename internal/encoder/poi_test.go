package encoder

import (
	"encoding/binary"
	"testing"

	"github.com/paulmach/orb"
)

func TestNameTableInternDeduplicates(t *testing.T) {
	tbl := NewNameTable()

	off1 := tbl.Intern("Main Street")
	off2 := tbl.Intern("High Street")
	off3 := tbl.Intern("Main Street")

	if off1 != 0 {
		t.Errorf("first intern offset = %d, want 0", off1)
	}
	wantSecond := uint32(2 + len("Main Street"))
	if off2 != wantSecond {
		t.Errorf("second intern offset = %d, want %d", off2, wantSecond)
	}
	if off3 != off1 {
		t.Errorf("re-intern offset = %d, want %d", off3, off1)
	}
	if tbl.Len() != 2 {
		t.Errorf("distinct names = %d, want 2", tbl.Len())
	}
}

func TestNameTableEncoding(t *testing.T) {
	tbl := NewNameTable()
	tbl.Intern("ab")

	buf := tbl.Bytes()
	if len(buf) != 4 {
		t.Fatalf("table length = %d, want 4", len(buf))
	}
	if got := binary.LittleEndian.Uint16(buf[0:2]); got != 2 {
		t.Errorf("length prefix = %d, want 2", got)
	}
	if string(buf[2:4]) != "ab" {
		t.Errorf("name bytes = %q, want %q", buf[2:4], "ab")
	}
}

func TestPoiSinkRecordLayout(t *testing.T) {
	f := NewFramer(64, 0)
	names := NewNameTable()
	s := NewPoiSink(f, names, 1024)

	err := s.Add(PoiRecord{Class: 5, Point: orb.Point{33.0, 35.0}, Name: "Kiosk"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	hdr, err := UnmarshalPclHdr(f.Body())
	if err != nil {
		t.Fatal(err)
	}
	if hdr.PID != PIDPOINames {
		t.Errorf("PID = 0x%x, want 0x%x", hdr.PID, PIDPOINames)
	}
	if hdr.PayloadLen != 13 {
		t.Fatalf("payload_len = %d, want 13", hdr.PayloadLen)
	}

	payload := f.Body()[PclHdrSize : PclHdrSize+13]
	if payload[0] != 5 {
		t.Errorf("class = %d, want 5", payload[0])
	}
	if got := int32(binary.LittleEndian.Uint32(payload[1:5])); got != 35_000_000 {
		t.Errorf("lat = %d, want 35000000", got)
	}
	if got := int32(binary.LittleEndian.Uint32(payload[5:9])); got != 33_000_000 {
		t.Errorf("lon = %d, want 33000000", got)
	}
	if got := binary.LittleEndian.Uint32(payload[9:13]); got != 0 {
		t.Errorf("name offset = %d, want 0", got)
	}
}

func TestPoiSinkSealsAtThreshold(t *testing.T) {
	f := NewFramer(32, 0)
	names := NewNameTable()
	s := NewPoiSink(f, names, 20)

	for i := 0; i < 3; i++ {
		if err := s.Add(PoiRecord{Class: byte(i), Point: orb.Point{0, 0}, Name: "x"}); err != nil {
			t.Fatalf("Add %d: %v", i, err)
		}
	}
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	// 13-byte records against a 20-byte threshold: a parcel seals once a
	// second record would overflow the buffer.
	chain := f.ChainOffsets(PIDPOINames)
	if len(chain) != 3 {
		t.Errorf("sealed %d parcels, want 3", len(chain))
	}
}
