package snapshot

import (
	"bytes"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-wavefront/common"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/accumulation"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

func TestFormatFromPath(t *testing.T) {
	tests := map[string]Format{"a.png": FormatPNG, "b.BMP": FormatBMP, "c.tif": FormatTIFF, "d.tiff": FormatTIFF}
	for path, expected := range tests {
		got, err := FormatFromPath(path)
		if err != nil {
			t.Fatalf("%s: %v", path, err)
		}
		if got != expected {
			t.Errorf("%s: got %v, expected %v", path, got, expected)
		}
	}
	if _, err := FormatFromPath("e.jpg"); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("got %v, expected ErrUnknownFormat", err)
	}
}

func testBuffer() *accumulation.Buffer {
	b := accumulation.NewBuffer(4, 2)
	b.Accumulate([2]uint32{1, 1}, common.Vec3{1, 0.5, 0})
	return b
}

func TestEncodeDecodes(t *testing.T) {
	img := testBuffer().Image(1)
	decoders := map[Format]func(*bytes.Buffer) (image.Image, error){
		FormatPNG:  func(b *bytes.Buffer) (image.Image, error) { i, _, err := image.Decode(b); return i, err },
		FormatBMP:  func(b *bytes.Buffer) (image.Image, error) { return bmp.Decode(b) },
		FormatTIFF: func(b *bytes.Buffer) (image.Image, error) { return tiff.Decode(b) },
	}
	for format, decode := range decoders {
		var buf bytes.Buffer
		if err := Encode(&buf, img, format); err != nil {
			t.Fatalf("%v: %v", format, err)
		}
		out, err := decode(&buf)
		if err != nil {
			t.Fatalf("%v: %v", format, err)
		}
		if out.Bounds() != img.Bounds() {
			t.Errorf("%v: got bounds %v, expected %v", format, out.Bounds(), img.Bounds())
		}
		r, _, _, _ := out.At(1, 1).RGBA()
		if r>>8 != 255 {
			t.Errorf("%v: got red %d, expected 255", format, r>>8)
		}
	}
}

func TestScale(t *testing.T) {
	img := testBuffer().Image(1)
	if got := Scale(img, 2).Bounds(); got.Dx() != 8 || got.Dy() != 4 {
		t.Errorf("got %v, expected 8x4", got)
	}
	if got := Scale(img, 1); got != image.Image(img) {
		t.Error("scale 1 should return the source image")
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.png")
	if err := WriteFile(path, testBuffer(), WithScale(0.5)); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 2 || cfg.Height != 1 {
		t.Errorf("got %dx%d, expected 2x1", cfg.Width, cfg.Height)
	}

	if err := WriteFile(filepath.Join(t.TempDir(), "frame.xyz"), testBuffer()); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("got %v, expected ErrUnknownFormat", err)
	}
}
