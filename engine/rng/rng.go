// Package rng implements the PCG4D counter-based random stream shared by the host kernels
// and the WGSL kernels. A stream is seeded from a pixel coordinate and a frame counter, so
// any invocation can restart it without shared state.
package rng

// maxUint32 is the divisor that maps a uint32 lane to [0, 1].
const maxUint32 = float32(0xffffffff)

// Stream is a PCG4D state vector. The zero value is valid but produces a fixed sequence;
// use New to seed it per pixel and frame.
type Stream struct {
	s0 [4]uint32
}

// New seeds a stream for pixel (x, y) at the given frame counter.
//
// Parameters:
//   - x: the pixel column
//   - y: the pixel row
//   - frame: the per-frame seed, incremented by the path tracer every frame
//
// Returns:
//   - Stream: the seeded stream
func New(x, y, frame uint32) Stream {
	return Stream{s0: [4]uint32{x, y, frame, x + y}}
}

// Skip advances the stream by n steps. A path at depth d skips d steps so that every bounce
// of a wavefront path draws the same values a single-kernel path would.
func (s *Stream) Skip(n uint32) {
	for range n {
		pcg4d(&s.s0)
	}
}

// Float2 advances the stream once and returns two uniform values in [0, 1].
func (s *Stream) Float2() (float32, float32) {
	pcg4d(&s.s0)
	return float32(s.s0[0]) / maxUint32, float32(s.s0[1]) / maxUint32
}

// Float3 advances the stream once and returns three uniform values in [0, 1].
func (s *Stream) Float3() (float32, float32, float32) {
	pcg4d(&s.s0)
	return float32(s.s0[0]) / maxUint32, float32(s.s0[1]) / maxUint32, float32(s.s0[2]) / maxUint32
}

// State returns the raw state vector.
func (s *Stream) State() [4]uint32 {
	return s.s0
}

func pcg4d(v *[4]uint32) {
	for i := range v {
		v[i] = v[i]*1664525 + 1013904223
	}
	mix(v)
	for i := range v {
		v[i] ^= v[i] >> 16
	}
	mix(v)
}

func mix(v *[4]uint32) {
	v[0] += v[1] * v[3]
	v[1] += v[2] * v[0]
	v[2] += v[0] * v[1]
	v[3] += v[1] * v[2]
}
