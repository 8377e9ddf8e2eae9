package accumulation

import (
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-wavefront/common"
)

func TestRunningMean(t *testing.T) {
	b := NewBuffer(2, 2)
	samples := []common.Vec3{{1, 0, 0}, {0, 2, 0}, {0, 0, 3}, {0.5, 0.5, 0.5}, {4, 4, 4}}

	var sum common.Vec3
	for i, s := range samples {
		b.Accumulate([2]uint32{1, 0}, s)
		sum = sum.Add(s)
		expected := sum.Multiply(1 / float32(i+1))
		if got := b.Radiance(1, 0); !got.ApproxEqual(expected, 1e-5) {
			t.Errorf("after %d samples: got %v, expected %v", i+1, got, expected)
		}
		if got := b.SampleCount(1, 0); got != uint32(i+1) {
			t.Errorf("got count %d, expected %d", got, i+1)
		}
	}
	if got := b.SampleCount(0, 0); got != 0 {
		t.Errorf("untouched pixel: got count %d, expected 0", got)
	}
	if got := b.TotalSamples(); got != uint64(len(samples)) {
		t.Errorf("got total %d, expected %d", got, len(samples))
	}
}

func TestConstantContributionIsExact(t *testing.T) {
	b := NewBuffer(1, 1)
	c := common.Vec3{0.1, 0.2, 0.3}
	for range 2 {
		b.Accumulate([2]uint32{0, 0}, c)
	}
	if got := b.Radiance(0, 0); got != c {
		t.Errorf("got %v, expected %v", got, c)
	}
}

func TestResetIdempotent(t *testing.T) {
	b := NewBuffer(3, 1)
	b.Accumulate([2]uint32{2, 0}, common.Vec3{1, 1, 1})
	b.Reset()
	b.Reset()
	for x := range 3 {
		if b.SampleCount(x, 0) != 0 || b.Radiance(x, 0) != (common.Vec3{}) {
			t.Errorf("pixel %d not zero after reset", x)
		}
	}
	b.Accumulate([2]uint32{2, 0}, common.Vec3{1, 1, 1})
	if got := b.SampleCount(2, 0); got != 1 {
		t.Errorf("got count %d, expected 1", got)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	b := NewBuffer(1, 1)
	b.Accumulate([2]uint32{0, 0}, common.Vec3{1, 0, 0})
	c := b.Clone()
	b.Accumulate([2]uint32{0, 0}, common.Vec3{1, 0, 0})
	if got := c.SampleCount(0, 0); got != 1 {
		t.Errorf("got clone count %d, expected 1", got)
	}
}

func TestFromGPU(t *testing.T) {
	src := NewBuffer(2, 1)
	src.Accumulate([2]uint32{1, 0}, common.Vec3{0.25, 0.5, 1})
	counts := make([]byte, 2*CountStride)
	counts[CountStride] = 1

	b, err := FromGPU(2, 1, src.Marshal(), counts)
	if err != nil {
		t.Fatal(err)
	}
	if got := b.Radiance(1, 0); got != (common.Vec3{0.25, 0.5, 1}) {
		t.Errorf("got %v, expected {0.25 0.5 1}", got)
	}
	if got := b.SampleCount(1, 0); got != 1 {
		t.Errorf("got count %d, expected 1", got)
	}

	if _, err := FromGPU(4, 4, src.Marshal(), counts); err == nil {
		t.Error("expected an error for a short readback")
	}
}

func TestImage(t *testing.T) {
	b := NewBuffer(3, 1)
	b.Accumulate([2]uint32{0, 0}, common.Vec3{1, 1, 1})
	b.Accumulate([2]uint32{1, 0}, common.Vec3{0.5, 0, 10})

	img := b.Image(1)
	if got := img.NRGBAAt(0, 0); got.R != 255 || got.A != 255 {
		t.Errorf("got %v, expected white", got)
	}
	half := uint8(math.Pow(0.5, 1/2.2)*255 + 0.5)
	if got := img.NRGBAAt(1, 0); got.R != half || got.G != 0 || got.B != 255 {
		t.Errorf("got %v, expected {%d 0 255}", got, half)
	}
	if got := img.NRGBAAt(2, 0); got.R != 0 || got.G != 0 || got.B != 0 {
		t.Errorf("got %v, expected black", got)
	}
}

func TestClearPixel(t *testing.T) {
	b := NewBuffer(2, 1)
	b.Accumulate([2]uint32{0, 0}, common.Vec3{1, 1, 1})
	b.Accumulate([2]uint32{1, 0}, common.Vec3{2, 2, 2})

	b.ClearPixel(0, 0)
	if b.SampleCount(0, 0) != 0 || b.Radiance(0, 0) != (common.Vec3{}) {
		t.Error("cleared pixel kept its state")
	}
	if got := b.Radiance(1, 0); got != (common.Vec3{2, 2, 2}) {
		t.Errorf("got %v, expected untouched neighbour", got)
	}
	b.ClearPixel(5, 5)
	if got := b.TotalSamples(); got != 1 {
		t.Errorf("got total %d, expected 1", got)
	}
}
