package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/KickingAnimal/SDAL-Builder/pkg/sdal"
)

// buildOneRegion drives a single-region build and classifies the error, the
// way a caller embedding pkg/sdal is expected to: builder errors are fatal
// (PSF §4.8's "Failure semantics"), but which typed error came back
// decides what the caller tells its own user.
func buildOneRegion(region sdal.RegionInput, outPath string) error {
	opts := sdal.DefaultBuildOptions()
	builder := sdal.NewBuilder(opts)
	writer := sdal.NewISOWriter("DEMO")

	err := builder.Build(context.Background(), []sdal.RegionInput{region}, writer, outPath)
	if err == nil {
		return nil
	}

	var bboxErr *sdal.ErrBboxInvalid
	var dupErr *sdal.ErrDuplicateWayID
	switch {
	case errors.As(err, &bboxErr):
		return fmt.Errorf("region %s sealed with no usable roads: %w", bboxErr.RegionCode, err)
	case errors.As(err, &dupErr):
		return fmt.Errorf("upstream extract has a duplicate way id %d: %w", dupErr.WayID, err)
	default:
		return fmt.Errorf("build failed: %w", err)
	}
}

func main() {
	// An empty region stream yields zero road parcels, which region.go
	// rejects with ErrBboxInvalid rather than emitting a region with no
	// bounding box (PSF §7).
	empty := sdal.RegionInput{
		RegionID: 1, Code: "ZZ", Stem: "ZZ", DBID: 1,
		Stream: sdal.NewSliceStream(nil),
	}

	if err := buildOneRegion(empty, "empty.iso"); err != nil {
		log.Printf("expected failure: %v", err)
	} else {
		log.Fatal("expected ErrBboxInvalid, build succeeded instead")
	}

	fmt.Println("no partial ISO left behind: a failed build removes its output before returning")
}
