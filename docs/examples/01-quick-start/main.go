package main

import (
	"context"
	"fmt"
	"log"

	"github.com/paulmach/orb"

	"github.com/KickingAnimal/SDAL-Builder/pkg/sdal"
)

func main() {
	// One road, one region, enough to produce a valid image.
	stream := sdal.NewSliceStream([]sdal.Record{
		sdal.Road{
			WayID: 42,
			Class: 0,
			Name:  "Archiepiskopou Makariou III",
			Points: []orb.Point{
				{33.0, 35.0},
				{33.001, 35.001},
			},
		},
	})

	region := sdal.RegionInput{
		RegionID: 1,
		Code:     "CY",
		Stem:     "CY",
		DBID:     1,
		Stream:   stream,
	}

	opts := sdal.DefaultBuildOptions()
	builder := sdal.NewBuilder(opts)
	writer := sdal.NewISOWriter("CYPRUS")

	ctx := context.Background()
	if err := builder.Build(ctx, []sdal.RegionInput{region}, writer, "cyprus.iso"); err != nil {
		log.Fatal(err)
	}

	fmt.Println("wrote cyprus.iso")
}
