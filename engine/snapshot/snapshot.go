// Package snapshot exports accumulated radiance as image files.
package snapshot

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/oxy-wavefront/common"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/accumulation"
	"golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/tiff"
)

// Format is an image container supported by Encode.
type Format int

const (
	FormatPNG Format = iota
	FormatBMP
	FormatTIFF
)

// ErrUnknownFormat is returned for file extensions with no matching Format.
var ErrUnknownFormat = errors.New("snapshot: unknown image format")

func (f Format) String() string {
	switch f {
	case FormatPNG:
		return "png"
	case FormatBMP:
		return "bmp"
	case FormatTIFF:
		return "tiff"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// FormatFromPath picks the Format matching the extension of path.
//
// Parameters:
//   - path: a file path such as "out.png"
//
// Returns:
//   - Format: the matching format
//   - error: ErrUnknownFormat if the extension is not recognized
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return FormatPNG, nil
	case ".bmp":
		return FormatBMP, nil
	case ".tif", ".tiff":
		return FormatTIFF, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, filepath.Ext(path))
	}
}

// Encode writes img to w in the given format.
func Encode(w io.Writer, img image.Image, format Format) error {
	switch format {
	case FormatPNG:
		return png.Encode(w, img)
	case FormatBMP:
		return bmp.Encode(w, img)
	case FormatTIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return fmt.Errorf("%w: %v", ErrUnknownFormat, format)
	}
}

// Scale resamples img by factor with a Catmull-Rom filter. A factor of 1 or less than or
// equal to zero returns img unchanged.
//
// Parameters:
//   - img: the source image
//   - factor: the scale factor applied to both dimensions
//
// Returns:
//   - image.Image: the scaled image
func Scale(img image.Image, factor float32) image.Image {
	if factor <= 0 || factor == 1 {
		return img
	}
	b := img.Bounds()
	w := max(int(float32(b.Dx())*factor+0.5), 1)
	h := max(int(float32(b.Dy())*factor+0.5), 1)
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

// WriteFile tonemaps buf and writes it to path. The format follows the path's extension
// unless WithFormat overrides it.
//
// Parameters:
//   - path: the destination file
//   - buf: the accumulation state to export
//   - opts: optional export settings
//
// Returns:
//   - error: an error if the format is unknown or the file cannot be written
func WriteFile(path string, buf *accumulation.Buffer, opts ...Option) (err error) {
	o := &options{exposure: 1, scale: 1}
	for _, opt := range opts {
		opt(o)
	}
	format := o.format
	if format == nil {
		f, err := FormatFromPath(path)
		if err != nil {
			return err
		}
		format = &f
	}

	img := Scale(buf.Image(o.exposure), o.scale)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating snapshot: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	if err := Encode(f, img, *format); err != nil {
		return fmt.Errorf("encoding %s snapshot: %w", *format, err)
	}
	common.Logger().Info("snapshot written", "path", path, "format", format.String(), "width", img.Bounds().Dx(), "height", img.Bounds().Dy(), "samples", buf.TotalSamples())
	return nil
}
