package geometry

import "github.com/Carmen-Shannon/oxy-wavefront/common"

// intersectTriangle runs the Möller-Trumbore test against triangle tri of s. On success it
// returns the distance and the barycentric coordinates of the hit.
func intersectTriangle(s *Scene, tri uint32, ray Ray, tMin, tMax float32) (t, u, v float32, ok bool) {
	const epsilon = 1e-8

	idx := s.Triangles[tri].V
	v0 := s.Positions[idx[0]]
	edge1 := s.Positions[idx[1]].Subtract(v0)
	edge2 := s.Positions[idx[2]].Subtract(v0)

	h := ray.Direction.Cross(edge2)
	a := edge1.Dot(h)
	if a > -epsilon && a < epsilon {
		return 0, 0, 0, false
	}

	f := 1 / a
	sv := ray.Origin.Subtract(v0)
	u = f * sv.Dot(h)
	if u < 0 || u > 1 {
		return 0, 0, 0, false
	}

	q := sv.Cross(edge1)
	v = f * ray.Direction.Dot(q)
	if v < 0 || u+v > 1 {
		return 0, 0, 0, false
	}

	t = f * edge2.Dot(q)
	if t < tMin || t > tMax {
		return 0, 0, 0, false
	}
	return t, u, v, true
}

// buildHit fills in the surface attributes for a confirmed triangle hit.
func buildHit(s *Scene, tri uint32, ray Ray, t, u, v float32) Hit {
	idx := s.Triangles[tri].V
	p0, p1, p2 := s.Positions[idx[0]], s.Positions[idx[1]], s.Positions[idx[2]]
	face := p1.Subtract(p0).Cross(p2.Subtract(p0)).Normalize()

	normal := face
	if len(s.Normals) == len(s.Positions) {
		w := 1 - u - v
		normal = s.Normals[idx[0]].Multiply(w).
			Add(s.Normals[idx[1]].Multiply(u)).
			Add(s.Normals[idx[2]].Multiply(v)).
			Normalize()
	}

	if ray.Direction.Dot(face) > 0 {
		face = face.Negate()
	}
	if ray.Direction.Dot(normal) > 0 {
		normal = normal.Negate()
	}

	return Hit{
		T:          t,
		Position:   ray.At(t),
		Normal:     normal,
		FaceNormal: face,
		U:          u,
		V:          v,
		Triangle:   tri,
	}
}

// triangleBounds returns the bounding box of triangle tri.
func triangleBounds(s *Scene, tri uint32) AABB {
	idx := s.Triangles[tri].V
	box := AABB{Min: s.Positions[idx[0]], Max: s.Positions[idx[0]]}
	box = box.Extend(s.Positions[idx[1]])
	return box.Extend(s.Positions[idx[2]])
}

// triangleCentroid returns the centroid of triangle tri.
func triangleCentroid(s *Scene, tri uint32) common.Vec3 {
	idx := s.Triangles[tri].V
	return s.Positions[idx[0]].Add(s.Positions[idx[1]]).Add(s.Positions[idx[2]]).Multiply(1.0 / 3.0)
}
