package encoder

import (
	"encoding/binary"
	"fmt"
	"os"
	"sort"

	"golang.org/x/sys/unix"
)

// spillRecordSize is the on-disk size of one (way_id, file_index, offset)
// triple in the spill file: way_id u64 (8) + file_index u32 (4, the
// WayEntry.FileIndex widened for alignment) + offset u32 (4) + 8 bytes
// padding to a round 24 bytes, matching PSF §5's "24 bytes" estimate.
const spillRecordSize = 24

// ExternalSort sorts entries by WayID via a memory-mapped scratch file
// rather than an in-process slice sort (PSF §5, §9). A single scratch
// file is sized up front, mmap'd PROT_READ|PROT_WRITE, and the sort runs
// entirely against that mapping.
//
// The algorithm is an in-place sort over the mapping, not a merge of sorted
// runs. The sort itself works on the file's pages, but the input slice and
// the returned slice each hold the full set of entries in the Go heap, so
// this path does not reduce peak memory below that of the in-memory sort.
func ExternalSort(entries []WayEntry, dir string) ([]WayEntry, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	f, err := os.CreateTemp(dir, "sdal-wayidx-*.spill")
	if err != nil {
		return nil, fmt.Errorf("create spill file: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)
	defer f.Close()

	size := int64(len(entries)) * spillRecordSize
	if err := f.Truncate(size); err != nil {
		return nil, fmt.Errorf("truncate spill file: %w", err)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap spill file: %w", err)
	}
	defer unix.Munmap(data)

	for i, e := range entries {
		writeSpillRecord(data[i*spillRecordSize:], e)
	}

	sortSpillRecords(data, len(entries))

	out := make([]WayEntry, len(entries))
	for i := range out {
		out[i] = readSpillRecord(data[i*spillRecordSize:])
	}

	if err := unix.Msync(data, unix.MS_SYNC); err != nil {
		return nil, fmt.Errorf("msync spill file: %w", err)
	}
	return out, nil
}

func writeSpillRecord(buf []byte, e WayEntry) {
	binary.LittleEndian.PutUint64(buf[0:8], e.WayID)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(e.FileIndex))
	binary.LittleEndian.PutUint32(buf[12:16], e.Offset)
}

func readSpillRecord(buf []byte) WayEntry {
	return WayEntry{
		WayID:     binary.LittleEndian.Uint64(buf[0:8]),
		FileIndex: uint16(binary.LittleEndian.Uint32(buf[8:12])),
		Offset:    binary.LittleEndian.Uint32(buf[12:16]),
	}
}

// sortSpillRecords sorts the n fixed-size records in data in place by their
// leading WayID key, directly against the mmap'd region.
func sortSpillRecords(data []byte, n int) {
	tmp := make([]byte, spillRecordSize)
	sort.Sort(&spillSortable{data: data, n: n, tmp: tmp})
}

// spillSortable adapts the mmap'd record array to sort.Interface, swapping
// whole fixed-size records in place.
type spillSortable struct {
	data []byte
	n    int
	tmp  []byte
}

func (s *spillSortable) Len() int { return s.n }

func (s *spillSortable) Less(i, j int) bool {
	ki := binary.LittleEndian.Uint64(s.data[i*spillRecordSize:])
	kj := binary.LittleEndian.Uint64(s.data[j*spillRecordSize:])
	return ki < kj
}

func (s *spillSortable) Swap(i, j int) {
	ri := s.data[i*spillRecordSize : i*spillRecordSize+spillRecordSize]
	rj := s.data[j*spillRecordSize : j*spillRecordSize+spillRecordSize]
	copy(s.tmp, ri)
	copy(ri, rj)
	copy(rj, s.tmp)
}
