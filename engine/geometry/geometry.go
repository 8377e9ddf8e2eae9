// Package geometry provides the triangle scene model and the surface intersector used by
// the trace stage. Intersection is exposed through the Intersector interface; the package
// ships a flattened BVH and a brute-force reference implementation.
package geometry

import (
	"github.com/Carmen-Shannon/oxy-wavefront/common"
)

// DefaultTMin is the minimum accepted hit distance, used to avoid re-hitting the surface a
// scattered ray leaves from.
const DefaultTMin = 1e-4

// Ray is a half line starting at Origin. Direction is expected to be unit length.
type Ray struct {
	Origin    common.Vec3
	Direction common.Vec3
}

// At returns the point at distance t along the ray.
func (r Ray) At(t float32) common.Vec3 {
	return r.Origin.Add(r.Direction.Multiply(t))
}

// Hit describes the closest intersection of a ray with the scene.
type Hit struct {
	// T is the distance along the ray.
	T float32
	// Position is the world space hit point.
	Position common.Vec3
	// Normal is the barycentric interpolation of the vertex normals, flipped to face the ray.
	Normal common.Vec3
	// FaceNormal is the geometric triangle normal, flipped to face the ray.
	FaceNormal common.Vec3
	// U and V are the barycentric coordinates of the hit relative to vertices 1 and 2.
	U, V float32
	// Triangle is the index of the hit triangle in the intersector's Scene. It is the
	// opaque surface reference carried in hit records and used for material lookup.
	Triangle uint32
}

// Material holds the surface parameters of a Lambertian surface.
type Material struct {
	Albedo common.Vec3
}

// Triangle references three vertices of a Scene and a material index.
type Triangle struct {
	V        [3]uint32
	Material uint32
}

// Scene is an indexed triangle soup with per-vertex normals and a material table.
type Scene struct {
	Positions []common.Vec3
	Normals   []common.Vec3
	Triangles []Triangle
	Materials []Material
}

// Material returns the material of triangle tri. Out of range references return a black
// material so a malformed index cannot crash a kernel.
func (s *Scene) Material(tri uint32) Material {
	if int(tri) >= len(s.Triangles) {
		return Material{}
	}
	m := s.Triangles[tri].Material
	if int(m) >= len(s.Materials) {
		return Material{}
	}
	return s.Materials[m]
}

// Empty reports whether the scene has no triangles.
func (s *Scene) Empty() bool {
	return s == nil || len(s.Triangles) == 0
}

// Intersector finds the closest surface hit along a ray.
type Intersector interface {
	// Intersect returns the closest hit with distance in [tMin, tMax].
	//
	// Parameters:
	//   - ray: the ray to trace
	//   - tMin: the minimum accepted distance
	//   - tMax: the maximum accepted distance
	//
	// Returns:
	//   - Hit: the closest hit, valid only when the bool is true
	//   - bool: true if any surface was hit
	Intersect(ray Ray, tMin, tMax float32) (Hit, bool)

	// Scene returns the scene whose triangle indices Hit.Triangle refers to. Implementations
	// may reorder triangles, so material lookups must go through this scene.
	//
	// Returns:
	//   - *Scene: the indexed scene
	Scene() *Scene
}
