package main

import (
	"context"
	"fmt"
	"log"

	"github.com/paulmach/orb"

	"github.com/KickingAnimal/SDAL-Builder/pkg/sdal"
)

// buildRegion returns a fresh RegionInput: a RecordStream is single-use, so
// OEM and SDAL builds each need their own.
func buildRegion() sdal.RegionInput {
	stream := sdal.NewSliceStream([]sdal.Record{
		sdal.Road{
			WayID:  7,
			Class:  1,
			Name:   "Leoforos Archiepiskopou Kyprianou",
			Points: []orb.Point{{33.36, 35.17}, {33.37, 35.18}},
		},
	})
	return sdal.RegionInput{RegionID: 1, Code: "MT", Stem: "MT", DBID: 1, Stream: stream}
}

// buildWith runs a full build under mode, writing the image to outPath, and
// returns any build error.
func buildWith(mode sdal.FormatMode, outPath string) error {
	opts := sdal.DefaultBuildOptions()
	opts.FormatMode = mode

	builder := sdal.NewBuilder(opts)
	writer := sdal.NewISOWriter("MALTA")
	return builder.Build(context.Background(), []sdal.RegionInput{buildRegion()}, writer, outPath)
}

func main() {
	// Only each file's 512-byte prefix differs between modes; map parcel
	// payloads are byte-identical either way (PSF §4.7).
	if err := buildWith(sdal.ModeOEM, "malta-oem.iso"); err != nil {
		log.Fatal(err)
	}
	if err := buildWith(sdal.ModeSDAL, "malta-sdal.iso"); err != nil {
		log.Fatal(err)
	}

	fmt.Println("wrote malta-oem.iso (REGIONS.SDL/MTOC.SDL present) and malta-sdal.iso (full RgnHdr_t on every region, CARTOTOP and KDTREE file)")
}
