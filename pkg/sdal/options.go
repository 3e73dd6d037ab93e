// Package sdal is the public API for building SDAL/PSF v1.7 navigation map
// archives from a stream of normalized OSM records (PSF v1.7). It composes
// the byte-level encoder in internal/encoder (parcel framing, per-PID
// record encoding, the spatial KD-tree, and the OSM-id B+-tree) into
// region files, a media header, and a final ISO 9660 image.
package sdal

import (
	"os"

	"github.com/go-logr/logr"
)

// FormatMode selects the control-file framing profile (PSF §4.7, §6).
// Map parcel *payloads* never differ between modes; only the 512-byte
// prefix of each file and whether REGIONS.SDL/MTOC.SDL are emitted.
type FormatMode int

const (
	// ModeOEM preserves byte-for-byte layout of the original commercial
	// discs: control files carry non-SDAL headers, and REGIONS.SDL/MTOC.SDL
	// are emitted, matching original-disc layout.
	ModeOEM FormatMode = iota
	// ModeSDAL prefixes every region file (map, metadata and density) and
	// CARTOTOP.SDL/KDTREE.SDL with a full 512-byte RgnHdr_t and omits the
	// OEM-only control files. INIT.SDL starts with GlbMediaHeader_t in
	// both modes.
	ModeSDAL
)

// BuildOptions configures a Builder: a plain struct with a Default
// constructor, no external config-file parser.
type BuildOptions struct {
	// UnitSize is the region-scoped parcel alignment granularity in bytes,
	// must be a power of two (PSF §3). Default 2048.
	UnitSize int

	// ParcelThreshold is the payload byte threshold at which an
	// in-progress PID_NAV/PID_POINAMES buffer is sealed into a parcel
	// (PSF §3). Default 64 KiB.
	ParcelThreshold int

	// SpillThreshold is the (way_id, offset) entry count above which the
	// B+-tree builder spills its sort to a memory-mapped temporary file
	// instead of sorting in the Go heap (PSF §5). Default 10,000,000.
	SpillThreshold int

	// SpillDir is the directory used for the B+-tree's external sort
	// scratch file. Default os.TempDir().
	SpillDir string

	// FormatMode selects OEM or SDAL control-file framing. Default ModeOEM
	// (PSF §6's CLI default).
	FormatMode FormatMode

	// Language is the 3-letter primary language identifier baked into
	// GlbMediaHeader_t.
	Language string

	// SupplementaryLanguages is a comma-separated list (≤32 bytes encoded)
	// of additional languages, matching the CLI's --supp-lang.
	SupplementaryLanguages []string

	// CreationTime is the Unix-seconds timestamp baked into
	// GlbMediaHeader_t.creation_time. Supplied by the caller, never
	// wall-clock time internally, so builds stay reproducible (PSF v1.7
	// §9). Use 0 for reproducibility tests.
	CreationTime int64

	// Verify enables the optional rtreego-backed self-verification pass
	// over the KD-tree after a region is built. Off by default: it is not
	// on the critical path.
	Verify bool

	// Logger receives warnings (e.g. the size_code collision default-to-0
	// case, PSF §9) and a per-region summary at verbosity 1. Verification
	// failures are returned as errors, not logged. Defaults to
	// logr.Discard().
	Logger logr.Logger
}

// DefaultBuildOptions returns the option set PSF v1.7's defaults describe.
func DefaultBuildOptions() BuildOptions {
	return BuildOptions{
		UnitSize:        2048,
		ParcelThreshold: 64 * 1024,
		SpillThreshold:  10_000_000,
		SpillDir:        os.TempDir(),
		FormatMode:      ModeOEM,
		Language:        "eng",
		CreationTime:    0,
		Verify:          false,
		Logger:          logr.Discard(),
	}
}
