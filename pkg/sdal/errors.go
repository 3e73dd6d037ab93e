package sdal

import "github.com/KickingAnimal/SDAL-Builder/internal/encoder"

// Typed build errors, re-exported so callers outside this module can
// discriminate failures with errors.As without reaching into
// internal/encoder (which Go's internal-package rule would refuse anyway).
// One alias per row of the builder's error taxonomy.
type (
	// ErrPayloadOverflow: a single payload exceeded the 32-bit length field.
	ErrPayloadOverflow = encoder.ErrPayloadOverflow
	// ErrPayloadTooLarge: a region's size table filled all 255 entries.
	ErrPayloadTooLarge = encoder.ErrPayloadTooLarge
	// ErrDuplicateWayID: the B+-tree builder saw the same OSM way id twice.
	ErrDuplicateWayID = encoder.ErrDuplicateWayID
	// ErrBboxInvalid: a region sealed with zero road parcels or a
	// degenerate bounding box.
	ErrBboxInvalid = encoder.ErrBboxInvalid
	// ErrInputExhausted: the upstream record stream ended mid-record.
	ErrInputExhausted = encoder.ErrInputExhausted
	// ErrWriteFailed: an underlying filesystem I/O error, after cleanup.
	ErrWriteFailed = encoder.ErrWriteFailed
	// ErrVerificationFailed: the optional self-verification pass found a
	// mismatch between written bytes and an independent cross-check.
	ErrVerificationFailed = encoder.ErrVerificationFailed
	// ErrCancelled: the caller's context was cancelled mid-build.
	ErrCancelled = encoder.ErrCancelled
)
