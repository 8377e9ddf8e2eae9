package common

import (
	"encoding/binary"
	"math"
)

// PutFloat32 writes f as little-endian IEEE-754 bits at buf[off:].
func PutFloat32(buf []byte, off int, f float32) {
	binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(f))
}

// Float32At reads a little-endian float32 from buf[off:].
func Float32At(buf []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
}

// PutVec3 writes the three components of v starting at buf[off:]. The caller is responsible
// for the trailing padding required by vec3<f32> alignment.
func PutVec3(buf []byte, off int, v Vec3) {
	for i := range 3 {
		PutFloat32(buf, off+i*4, v[i])
	}
}

// Vec3At reads three consecutive float32 values from buf[off:].
func Vec3At(buf []byte, off int) Vec3 {
	return Vec3{Float32At(buf, off), Float32At(buf, off+4), Float32At(buf, off+8)}
}

// PutMat4 writes a column-major 4x4 matrix at buf[off:].
func PutMat4(buf []byte, off int, m [16]float32) {
	for i := range 16 {
		PutFloat32(buf, off+i*4, m[i])
	}
}
