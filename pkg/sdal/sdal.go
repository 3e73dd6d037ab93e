package sdal

import (
	"context"
	"fmt"

	"github.com/KickingAnimal/SDAL-Builder/internal/encoder"
)

// Builder is the top-level public entry point: it drives every region
// through RegionAssembler, then composes MediaAssembler's global files, then
// hands the whole set to an ISOWriter (PSF §5). The real work lives in
// region.go/media.go/iso.go; Builder only sequences it.
type Builder struct {
	Options BuildOptions
}

// NewBuilder creates a Builder using opts.
func NewBuilder(opts BuildOptions) *Builder {
	return &Builder{Options: opts}
}

// Build drains every region in regions (in order), composes the global
// files, and writes a complete ISO 9660 image to outPath via writer.
//
// Regions are processed strictly sequentially (no goroutines on this path),
// matching PSF §5's single-threaded, pull-based model. ctx is checked
// between regions and before the final ISO write so a long build can be
// cancelled without corrupting output; a cancellation surfaces as
// ErrCancelled, never a partially written outPath (ISOWriter.Finalize's own
// no-partial-write contract covers the last step).
func (b *Builder) Build(ctx context.Context, regions []RegionInput, writer ISOWriter, outPath string) error {
	regionAsm := NewRegionAssembler(b.Options)
	mediaAsm := NewMediaAssembler(b.Options)

	for _, in := range regions {
		if err := ctx.Err(); err != nil {
			return &encoder.ErrCancelled{Stage: fmt.Sprintf("region %s", in.Code), Err: err}
		}

		result, err := regionAsm.Build(in)
		if err != nil {
			return fmt.Errorf("build region %s: %w", in.Code, err)
		}
		mediaAsm.AddRegion(result)

		if err := writer.AddFile("/"+result.Input.Stem+"1.SDL", result.Files.MapFile); err != nil {
			return fmt.Errorf("stage %s1.SDL: %w", result.Input.Stem, err)
		}
		if err := writer.AddFile("/"+result.Input.Stem+"0.SDL", result.Files.MetaFile); err != nil {
			return fmt.Errorf("stage %s0.SDL: %w", result.Input.Stem, err)
		}
		if result.Files.DensityDirFile != nil {
			code := result.Input.Code
			if err := writer.AddFile("/DENS"+code+"0.SDL", result.Files.DensityDirFile); err != nil {
				return fmt.Errorf("stage DENS%s0.SDL: %w", code, err)
			}
			if err := writer.AddFile("/DENS"+code+"1.SDL", result.Files.DensityPayloadFile); err != nil {
				return fmt.Errorf("stage DENS%s1.SDL: %w", code, err)
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return &encoder.ErrCancelled{Stage: "media assembly", Err: err}
	}

	media, err := mediaAsm.Finalize()
	if err != nil {
		return fmt.Errorf("finalize media: %w", err)
	}

	if err := writer.AddFile("/INIT.SDL", media.Init); err != nil {
		return fmt.Errorf("stage INIT.SDL: %w", err)
	}
	if err := writer.AddFile("/CARTOTOP.SDL", media.Cartotop); err != nil {
		return fmt.Errorf("stage CARTOTOP.SDL: %w", err)
	}
	if err := writer.AddFile("/KDTREE.SDL", media.KDTree); err != nil {
		return fmt.Errorf("stage KDTREE.SDL: %w", err)
	}
	if media.Regions != nil {
		if err := writer.AddFile("/REGIONS.SDL", media.Regions); err != nil {
			return fmt.Errorf("stage REGIONS.SDL: %w", err)
		}
	}
	if media.MTOC != nil {
		if err := writer.AddFile("/MTOC.SDL", media.MTOC); err != nil {
			return fmt.Errorf("stage MTOC.SDL: %w", err)
		}
	}

	if err := ctx.Err(); err != nil {
		return &encoder.ErrCancelled{Stage: "ISO finalize", Err: err}
	}

	if err := writer.Finalize(outPath); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}
	return nil
}

