package common

import "math"

// Vec3 is a three component float32 vector used for positions, directions and colors.
// It is laid out as [x, y, z] so it can be copied straight into vec3<f32> GPU fields.
type Vec3 [3]float32

func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v[0] + o[0], v[1] + o[1], v[2] + o[2]}
}

func (v Vec3) Subtract(o Vec3) Vec3 {
	return Vec3{v[0] - o[0], v[1] - o[1], v[2] - o[2]}
}

// Multiply scales every component by s.
func (v Vec3) Multiply(s float32) Vec3 {
	return Vec3{v[0] * s, v[1] * s, v[2] * s}
}

// MultiplyVec multiplies component-wise, as used for color filtering.
func (v Vec3) MultiplyVec(o Vec3) Vec3 {
	return Vec3{v[0] * o[0], v[1] * o[1], v[2] * o[2]}
}

func (v Vec3) Negate() Vec3 {
	return Vec3{-v[0], -v[1], -v[2]}
}

func (v Vec3) Dot(o Vec3) float32 {
	return v[0]*o[0] + v[1]*o[1] + v[2]*o[2]
}

func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v[1]*o[2] - v[2]*o[1],
		v[2]*o[0] - v[0]*o[2],
		v[0]*o[1] - v[1]*o[0],
	}
}

func (v Vec3) LengthSquared() float32 {
	return v.Dot(v)
}

func (v Vec3) Length() float32 {
	return float32(math.Sqrt(float64(v.LengthSquared())))
}

// Normalize returns the unit vector in the direction of v. A zero vector is returned unchanged.
func (v Vec3) Normalize() Vec3 {
	l := v.Length()
	if l == 0 {
		return v
	}
	return v.Multiply(1 / l)
}

// Min returns the component-wise minimum of v and o.
func (v Vec3) Min(o Vec3) Vec3 {
	return Vec3{min(v[0], o[0]), min(v[1], o[1]), min(v[2], o[2])}
}

// Max returns the component-wise maximum of v and o.
func (v Vec3) Max(o Vec3) Vec3 {
	return Vec3{max(v[0], o[0]), max(v[1], o[1]), max(v[2], o[2])}
}

// ApproxEqual reports whether every component of v is within eps of o.
func (v Vec3) ApproxEqual(o Vec3, eps float32) bool {
	for i := range 3 {
		d := v[i] - o[i]
		if d < -eps || d > eps {
			return false
		}
	}
	return true
}
