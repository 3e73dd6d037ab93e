package sdal

import "github.com/paulmach/orb"

// Record is the tagged variant the upstream OSM record stream yields:
// Road, Poi, DensityTile, or End (PSF §6). Acquiring and parsing the
// underlying .pbf extract is out of scope for this package; RecordStream
// is the boundary interface a caller's OSM parser must satisfy.
type Record interface {
	isRecord()
}

// Road is a single OSM way normalized into a polyline with a road class and
// an optional name.
type Road struct {
	WayID  uint64
	Class  uint8
	Name   string
	Points []orb.Point // lon, lat; decimal degrees
}

func (Road) isRecord() {}

// Poi is a single point-of-interest.
type Poi struct {
	Class uint8
	Point orb.Point
	Name  string
}

func (Poi) isRecord() {}

// DensityTile is one raster tile of a density overlay (PSF §4.3, PID_DENS0/1).
type DensityTile struct {
	X, Y, Zoom uint32
	Bytes      []byte
}

func (DensityTile) isRecord() {}

// End marks the end of a record stream for one region.
type End struct{}

func (End) isRecord() {}

// RecordStream is the pull-based producer interface the core consumes. A
// caller-supplied OSM parser implements this; the core never reorders or
// buffers more than one record's worth of lookahead (PSF §5, §9).
type RecordStream interface {
	// Next returns the next record. The stream yields exactly one End record
	// as its final value; calling Next again after End is a caller error.
	Next() (Record, error)
}

// SliceStream adapts a pre-built slice of records into a RecordStream, for
// tests and small in-process builds. The slice need not include a trailing
// End record; SliceStream appends one implicitly.
type SliceStream struct {
	records []Record
	pos     int
}

// NewSliceStream creates a RecordStream over records, in order.
func NewSliceStream(records []Record) *SliceStream {
	return &SliceStream{records: records}
}

// Next implements RecordStream.
func (s *SliceStream) Next() (Record, error) {
	if s.pos < len(s.records) {
		r := s.records[s.pos]
		s.pos++
		return r, nil
	}
	return End{}, nil
}
