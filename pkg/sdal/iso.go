package sdal

import (
	"bytes"
	"os"
	"strings"

	"github.com/kdomanski/iso9660"

	"github.com/KickingAnimal/SDAL-Builder/internal/encoder"
)

// ISOWriter is the façade this package drives to serialize a built image's
// files into an ISO 9660 volume (PSF §4.8). It is an interface, not a
// concrete type, so tests can substitute a recording fake without touching
// a real iso9660 writer.
type ISOWriter interface {
	// AddFile stages one file at isoPath (e.g. "/CY1.SDL") with the given
	// contents. Staging a path a second time replaces its contents.
	AddFile(isoPath string, data []byte) error
	// Finalize writes the assembled volume to outPath. On any error it
	// removes a partially-written outPath rather than leaving a truncated
	// image behind (PSF §4.8's no-partial-write rule).
	Finalize(outPath string) error
}

// isoVolumeWriter adapts github.com/kdomanski/iso9660's staged writer to
// ISOWriter. Files are buffered here and only handed to the library at
// Finalize time, so staging never touches the filesystem until the build
// has actually survived to the final write.
type isoVolumeWriter struct {
	volumeID  string
	files     map[string][]byte
	fileOrder []string
}

// NewISOWriter creates an ISOWriter that produces a single ISO 9660 level 1
// volume named volumeID.
func NewISOWriter(volumeID string) ISOWriter {
	return &isoVolumeWriter{
		volumeID: volumeID,
		files:    make(map[string][]byte),
	}
}

// AddFile implements ISOWriter.
func (iw *isoVolumeWriter) AddFile(isoPath string, data []byte) error {
	if _, exists := iw.files[isoPath]; !exists {
		iw.fileOrder = append(iw.fileOrder, isoPath)
	}
	iw.files[isoPath] = data
	return nil
}

// Finalize implements ISOWriter: it stages every file added so far in call
// order and streams the volume to outPath. A failure at any stage removes
// outPath so a caller never mistakes a partial image for a complete one.
func (iw *isoVolumeWriter) Finalize(outPath string) error {
	w, err := iso9660.NewWriter()
	if err != nil {
		return &encoder.ErrWriteFailed{Path: outPath, Err: err}
	}
	defer w.Cleanup()

	for _, path := range iw.fileOrder {
		name := strings.TrimPrefix(path, "/")
		if err := w.AddFile(bytes.NewReader(iw.files[path]), name); err != nil {
			return &encoder.ErrWriteFailed{Path: path, Err: err}
		}
	}

	out, err := os.Create(outPath)
	if err != nil {
		return &encoder.ErrWriteFailed{Path: outPath, Err: err}
	}

	if err := w.WriteTo(out, iw.volumeID); err != nil {
		out.Close()
		os.Remove(outPath)
		return &encoder.ErrWriteFailed{Path: outPath, Err: err}
	}
	if err := out.Close(); err != nil {
		os.Remove(outPath)
		return &encoder.ErrWriteFailed{Path: outPath, Err: err}
	}
	return nil
}
