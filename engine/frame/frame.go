// Package frame defines the per-frame parameter block every path tracing kernel reads.
package frame

import (
	_ "embed"
	"encoding/binary"

	"github.com/Carmen-Shannon/oxy-wavefront/common"
)

// GPUFrameParamsSource is the canonical WGSL definition of the FrameParams struct.
// Matches Params.Marshal exactly (48 bytes, std430 aligned).
//
//go:embed assets/frame_params.wgsl
var GPUFrameParamsSource string

// ParamsSize is the std430 size of FrameParams.
const ParamsSize = 48

// Params is the host copy of the frame parameter uniform.
type Params struct {
	Background    common.Vec3
	Frame         uint32
	Width         uint32
	Height        uint32
	Bounces       uint32
	NodeCount     uint32
	SmoothNormals bool
}

// Marshal serializes p into its uniform buffer layout.
//
// Returns:
//   - []byte: the serialized byte buffer
func (p Params) Marshal() []byte {
	buf := make([]byte, ParamsSize)
	common.PutVec3(buf, 0, p.Background)
	binary.LittleEndian.PutUint32(buf[12:], p.Frame)
	binary.LittleEndian.PutUint32(buf[16:], p.Width)
	binary.LittleEndian.PutUint32(buf[20:], p.Height)
	binary.LittleEndian.PutUint32(buf[24:], p.Bounces)
	binary.LittleEndian.PutUint32(buf[28:], p.NodeCount)
	if p.SmoothNormals {
		binary.LittleEndian.PutUint32(buf[32:], 1)
	}
	return buf
}

// Pixels returns the number of pixels in the frame.
func (p Params) Pixels() uint32 {
	return p.Width * p.Height
}
