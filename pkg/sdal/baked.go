package sdal

import _ "embed"

// BakedInit is the original-OEM INIT.SDL fragment: static binary headers and
// translation dictionaries carried forward from the commercial discs
// (PSF §6 "baked constants input"). An immutable byte array embedded at
// compile time, not process-wide mutable state; go:embed gives exactly
// that.
//
// The bytes checked in here are a placeholder derived by the build tooling;
// a real release replaces baked_init.bin with the fragment extracted from an
// original-OEM disc image and recompiles. MediaAssembler never mutates this
// slice, only appends it verbatim to INIT.SDL.
//
//go:embed baked_init.bin
var BakedInit []byte
