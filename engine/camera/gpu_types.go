package camera

import (
	_ "embed"

	"github.com/Carmen-Shannon/oxy-wavefront/common"
)

// GPUCameraUniformSource is the canonical WGSL definition of the CameraUniform struct and the
// camera_ray helper that unprojects a normalized device coordinate into a world-space ray.
// Matches GPUCameraUniform layout exactly (128 bytes, std430 aligned).
//
//go:embed assets/camera_uniform.wgsl
var GPUCameraUniformSource string

// GPUCameraUniformSize is the byte size of GPUCameraUniform.
const GPUCameraUniformSize = 128

// GPUCameraUniform is the GPU-aligned representation of the camera uniform buffer.
type GPUCameraUniform struct {
	CameraToWorld     [16]float32 // offset  0: mat4x4<f32>
	InverseProjection [16]float32 // offset 64: mat4x4<f32>
}

// Marshal serializes the GPUCameraUniform struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (g *GPUCameraUniform) Marshal() []byte {
	buf := make([]byte, GPUCameraUniformSize)
	common.PutMat4(buf, 0, g.CameraToWorld)
	common.PutMat4(buf, 64, g.InverseProjection)
	return buf
}

// Ray unprojects ndc through the uniform exactly as camera_ray does on the device.
//
// Parameters:
//   - ndc: the normalized device coordinate, x right and y up in [-1, 1]
//
// Returns:
//   - origin: the world-space point on the near plane
//   - direction: the normalized world-space direction toward the far plane
func (g *GPUCameraUniform) Ray(ndc [2]float32) (origin, direction common.Vec3) {
	var m [16]float32
	common.Mul4(m[:], g.CameraToWorld[:], g.InverseProjection[:])
	origin = common.TransformPoint(m[:], common.Vec3{ndc[0], ndc[1], 0})
	far := common.TransformPoint(m[:], common.Vec3{ndc[0], ndc[1], 1})
	return origin, far.Subtract(origin).Normalize()
}
