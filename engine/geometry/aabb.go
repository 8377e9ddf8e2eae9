package geometry

import "github.com/Carmen-Shannon/oxy-wavefront/common"

// AABB is an axis aligned bounding box.
type AABB struct {
	Min, Max common.Vec3
}

// Extend grows the box to contain p.
func (b AABB) Extend(p common.Vec3) AABB {
	return AABB{Min: b.Min.Min(p), Max: b.Max.Max(p)}
}

// Union returns the smallest box containing both b and o.
func (b AABB) Union(o AABB) AABB {
	return AABB{Min: b.Min.Min(o.Min), Max: b.Max.Max(o.Max)}
}

// Center returns the midpoint of the box.
func (b AABB) Center() common.Vec3 {
	return b.Min.Add(b.Max).Multiply(0.5)
}

// LongestAxis returns 0, 1 or 2 for the axis with the largest extent.
func (b AABB) LongestAxis() int {
	e := b.Max.Subtract(b.Min)
	switch {
	case e[0] >= e[1] && e[0] >= e[2]:
		return 0
	case e[1] >= e[2]:
		return 1
	default:
		return 2
	}
}

// Hit runs the slab test and reports whether the ray enters the box within [tMin, tMax].
// Axes the ray runs parallel to are tested by containment instead of division.
func (b AABB) Hit(ray Ray, tMin, tMax float32) bool {
	for axis := range 3 {
		o, d := ray.Origin[axis], ray.Direction[axis]
		if d == 0 {
			if o < b.Min[axis] || o > b.Max[axis] {
				return false
			}
			continue
		}
		inv := 1 / d
		t0 := (b.Min[axis] - o) * inv
		t1 := (b.Max[axis] - o) * inv
		if inv < 0 {
			t0, t1 = t1, t0
		}
		tMin = max(tMin, t0)
		tMax = min(tMax, t1)
		if tMax < tMin {
			return false
		}
	}
	return true
}
