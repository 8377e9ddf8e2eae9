// Package accumulation holds the progressive per-pixel radiance estimate. Each pixel keeps
// the arithmetic mean of every contribution since the last reset and the number of
// contributions that mean is built from.
package accumulation

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/Carmen-Shannon/oxy-wavefront/common"
)

const (
	// RadianceStride is the device stride of one radiance entry (vec4f).
	RadianceStride = 16

	// CountStride is the device stride of one sample count (u32).
	CountStride = 4

	gamma = 2.2
)

// Buffer is the host accumulation state for a width x height viewport.
//
// Accumulate is not synchronized. Concurrent callers are safe only while each pixel
// receives at most one contribution per frame, which holds because a frame traces one path
// per pixel.
type Buffer struct {
	width    int
	height   int
	radiance []common.Vec3
	counts   []uint32
}

// NewBuffer allocates a zeroed Buffer.
//
// Parameters:
//   - width: the viewport width in pixels
//   - height: the viewport height in pixels
//
// Returns:
//   - *Buffer: the zeroed buffer
func NewBuffer(width, height int) *Buffer {
	b := &Buffer{}
	b.Resize(width, height)
	return b
}

// Resize reallocates both arrays for width x height pixels. All samples are discarded.
func (b *Buffer) Resize(width, height int) {
	width = max(width, 0)
	height = max(height, 0)
	b.width = width
	b.height = height
	b.radiance = make([]common.Vec3, width*height)
	b.counts = make([]uint32, width*height)
}

// Reset zeroes every pixel's mean and sample count.
func (b *Buffer) Reset() {
	clear(b.radiance)
	clear(b.counts)
}

// ClearPixel zeroes the mean and sample count of (x, y). Out of bounds pixels are ignored.
func (b *Buffer) ClearPixel(x, y int) {
	if x < 0 || y < 0 || x >= b.width || y >= b.height {
		return
	}
	i := y*b.width + x
	b.radiance[i] = common.Vec3{}
	b.counts[i] = 0
}

// Accumulate folds one radiance contribution into the running mean of a pixel.
//
// Parameters:
//   - pixel: the pixel coordinate, assumed in bounds
//   - r: the contribution
func (b *Buffer) Accumulate(pixel [2]uint32, r common.Vec3) {
	i := int(pixel[1])*b.width + int(pixel[0])
	n := b.counts[i]
	next := float32(n) + 1
	sum := b.radiance[i].Multiply(float32(n)).Add(r)
	b.radiance[i] = common.Vec3{sum[0] / next, sum[1] / next, sum[2] / next}
	b.counts[i] = n + 1
}

// Width returns the viewport width.
func (b *Buffer) Width() int { return b.width }

// Height returns the viewport height.
func (b *Buffer) Height() int { return b.height }

// Radiance returns the running mean at (x, y).
func (b *Buffer) Radiance(x, y int) common.Vec3 {
	return b.radiance[y*b.width+x]
}

// SampleCount returns the number of contributions folded into (x, y).
func (b *Buffer) SampleCount(x, y int) uint32 {
	return b.counts[y*b.width+x]
}

// TotalSamples returns the sum of all per-pixel sample counts.
func (b *Buffer) TotalSamples() uint64 {
	var total uint64
	for _, c := range b.counts {
		total += uint64(c)
	}
	return total
}

// Clone returns a deep copy of b.
func (b *Buffer) Clone() *Buffer {
	return &Buffer{
		width:    b.width,
		height:   b.height,
		radiance: append([]common.Vec3(nil), b.radiance...),
		counts:   append([]uint32(nil), b.counts...),
	}
}

// Marshal encodes the radiance means in the device layout (vec4f per pixel, w unused).
func (b *Buffer) Marshal() []byte {
	buf := make([]byte, max(len(b.radiance), 1)*RadianceStride)
	for i, r := range b.radiance {
		common.PutVec3(buf, i*RadianceStride, r)
	}
	return buf
}

// FromGPU decodes device accumulation buffers read back after a frame.
//
// Parameters:
//   - width: the viewport width
//   - height: the viewport height
//   - radiance: the radiance buffer, RadianceStride bytes per pixel
//   - counts: the sample count buffer, CountStride bytes per pixel
//
// Returns:
//   - *Buffer: the decoded buffer
//   - error: an error if either buffer is shorter than the viewport requires
func FromGPU(width, height int, radiance, counts []byte) (*Buffer, error) {
	n := width * height
	if len(radiance) < n*RadianceStride || len(counts) < n*CountStride {
		return nil, fmt.Errorf("accumulation readback too short for %dx%d: %d radiance bytes, %d count bytes", width, height, len(radiance), len(counts))
	}
	b := NewBuffer(width, height)
	for i := range n {
		b.radiance[i] = common.Vec3At(radiance, i*RadianceStride)
		b.counts[i] = binary.LittleEndian.Uint32(counts[i*CountStride:])
	}
	return b, nil
}

// Image converts the running means to 8-bit sRGB-ish color with gamma 2.2. Pixels with no
// samples are black.
//
// Parameters:
//   - exposure: a linear scale applied before the gamma curve
//
// Returns:
//   - *image.NRGBA: the converted image
func (b *Buffer) Image(exposure float32) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, b.width, b.height))
	for y := range b.height {
		for x := range b.width {
			r := b.radiance[y*b.width+x].Multiply(exposure)
			img.SetNRGBA(x, y, color.NRGBA{R: toneByte(r[0]), G: toneByte(r[1]), B: toneByte(r[2]), A: 255})
		}
	}
	return img
}

func toneByte(v float32) uint8 {
	if !(v > 0) {
		return 0
	}
	c := math.Pow(float64(v), 1/gamma)
	if c >= 1 {
		return 255
	}
	return uint8(c*255 + 0.5)
}
