// Package sampling holds the surface scatter sampler used by the scatter stage and the
// megakernel.
package sampling

import (
	"math"

	"github.com/Carmen-Shannon/oxy-wavefront/common"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/rng"
)

// shrink keeps the sampled offset strictly inside the unit sphere so the direction never
// collapses onto -n.
const shrink = 0.99999

// ScatterRecord is the result of sampling an outgoing direction at a surface.
type ScatterRecord struct {
	// Direction is the unit outgoing direction.
	Direction common.Vec3
	// PDF is the probability density of Direction with respect to solid angle.
	PDF float32
	// Value is the BSDF cosine term for Direction, excluding albedo.
	Value float32
}

// Weight returns Value/PDF, the throughput factor before albedo. A zero or negative pdf
// yields zero so degenerate samples terminate the path's contribution.
func (r ScatterRecord) Weight() float32 {
	if r.PDF <= 0 {
		return 0
	}
	return r.Value / r.PDF
}

// SampleCosine maps two uniform values to a cosine-distributed direction around n by
// offsetting n with a uniform point on the unit sphere.
//
// Parameters:
//   - u, v: uniform values in [0, 1]
//   - n: the unit surface normal
//
// Returns:
//   - common.Vec3: the sampled unit direction
//   - float32: its pdf, cos(theta)/pi
func SampleCosine(u, v float32, n common.Vec3) (common.Vec3, float32) {
	a := (1 - 2*u) * shrink
	b := float32(math.Sqrt(float64(1-a*a))) * shrink
	phi := 2 * math.Pi * float64(v)
	offset := common.Vec3{b * float32(math.Cos(phi)), b * float32(math.Sin(phi)), a}
	dir := n.Add(offset).Normalize()
	return dir, dir.Dot(n) / math.Pi
}

// Lambert draws one sample of the Lambertian BSDF from s.
//
// Parameters:
//   - s: the random stream, advanced by one step
//   - normal: the unit shading normal
//   - view: the unit direction back towards the ray origin (unused by a Lambertian surface)
//
// Returns:
//   - ScatterRecord: the sampled direction, pdf and cosine value
func Lambert(s *rng.Stream, normal, view common.Vec3) ScatterRecord {
	u, v := s.Float2()
	dir, pdf := SampleCosine(u, v, normal)
	return ScatterRecord{
		Direction: dir,
		PDF:       pdf,
		Value:     dir.Dot(normal) / math.Pi,
	}
}
